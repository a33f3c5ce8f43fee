package models

// LocationPoint is a geocoded pickup or dropoff. It is replaced wholesale
// when the user selects a new place; individual fields are never edited.
type LocationPoint struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
	PlaceID string  `json:"placeId,omitempty"`
}

// StopPoint is an intermediate waypoint between pickup and dropoff.
// Order is 1-based. Only an explicit reorder recomputes it; add/remove
// leave existing Order values untouched.
type StopPoint struct {
	PlaceID string  `json:"placeId"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
	Order   int     `json:"order,omitempty"`
	Time    string  `json:"time,omitempty"`
}

// PriceSegment is the fare for one leg between two ordered stops or
// endpoints. Amount is in minor currency units (halalas).
type PriceSegment struct {
	PickupOrder int   `json:"pickup_order"`
	DropOrder   int   `json:"drop_order"`
	Amount      int64 `json:"amount"`
}

// RideDraft is the in-progress ride being assembled by the creation wizard.
// Every field is optional until a wizard page sets it; the model performs no
// cross-field validation. A drop time earlier than the departure time is
// representable. Validation happens when the draft is published upstream.
type RideDraft struct {
	Pickup                *LocationPoint `json:"pickup,omitempty"`
	Dropoff               *LocationPoint `json:"dropoff,omitempty"`
	RideRoute             *string        `json:"ride_route,omitempty"`
	SelectedRoutePolyline *string        `json:"selected_route_polyline,omitempty"`
	DepartureDate         *string        `json:"departure_date,omitempty"` // YYYY-MM-DD
	DepartureTime         *string        `json:"departure_time,omitempty"` // HH:MM
	DropTime              *string        `json:"drop_time,omitempty"`      // HH:MM
	AvailableSeats        *int           `json:"available_seats,omitempty"`
	Max2InBack            *bool          `json:"max_2_in_back,omitempty"`
	PricePerSeat          *int64         `json:"price_per_seat,omitempty"`
	Prices                []PriceSegment `json:"prices,omitempty"`
	Stops                 []StopPoint    `json:"stops,omitempty"`
	Notes                 *string        `json:"notes,omitempty"`
	VehicleID             *int           `json:"vehicle_id,omitempty"`
	IsReturn              *bool          `json:"is_return,omitempty"`
}

// DefaultDraft is the shape a fresh or cleared draft has: everything unset.
func DefaultDraft() RideDraft { return RideDraft{} }

// Merge applies a shallow patch: every non-nil field of p replaces the
// corresponding field of d, last write wins. Nil fields are left alone, so a
// patch cannot unset a field.
func (d *RideDraft) Merge(p RideDraft) {
	if p.Pickup != nil {
		d.Pickup = p.Pickup
	}
	if p.Dropoff != nil {
		d.Dropoff = p.Dropoff
	}
	if p.RideRoute != nil {
		d.RideRoute = p.RideRoute
	}
	if p.SelectedRoutePolyline != nil {
		d.SelectedRoutePolyline = p.SelectedRoutePolyline
	}
	if p.DepartureDate != nil {
		d.DepartureDate = p.DepartureDate
	}
	if p.DepartureTime != nil {
		d.DepartureTime = p.DepartureTime
	}
	if p.DropTime != nil {
		d.DropTime = p.DropTime
	}
	if p.AvailableSeats != nil {
		d.AvailableSeats = p.AvailableSeats
	}
	if p.Max2InBack != nil {
		d.Max2InBack = p.Max2InBack
	}
	if p.PricePerSeat != nil {
		d.PricePerSeat = p.PricePerSeat
	}
	if p.Prices != nil {
		d.Prices = p.Prices
	}
	if p.Stops != nil {
		d.Stops = p.Stops
	}
	if p.Notes != nil {
		d.Notes = p.Notes
	}
	if p.VehicleID != nil {
		d.VehicleID = p.VehicleID
	}
	if p.IsReturn != nil {
		d.IsReturn = p.IsReturn
	}
}

type SortOption int

const (
	SortDepartureEarliest SortOption = 1
	SortPriceLowest       SortOption = 2
	SortPriceHighest      SortOption = 3
	SortShortestRide      SortOption = 4
	SortClosestDeparture  SortOption = 5
)

type StopsFilter string

const (
	StopsDirectOnly   StopsFilter = "direct_only"
	StopsOneStop      StopsFilter = "one_stop"
	StopsTwoPlusStops StopsFilter = "two_plus_stops"
)

type CarModelYear string

const (
	CarModelWithin3Years CarModelYear = "3_years"
	CarModelWithin5Years CarModelYear = "5_years"
	CarModelAny          CarModelYear = "all"
)

// RideSearchFilters is the active search/filter/sort criteria for ride
// discovery. Every field has a hard-coded default; see DefaultFilters.
type RideSearchFilters struct {
	SortBy                SortOption   `json:"sort_by"`
	StopsFilter           StopsFilter  `json:"stops_filter"`
	VerifiedDriversOnly   bool         `json:"verified_drivers_only"`
	Max2InBack            bool         `json:"max_2_in_back"`
	InstantBooking        bool         `json:"instant_booking"`
	SmokingAllowed        bool         `json:"smoking_allowed"`
	PetsAllowed           bool         `json:"pets_allowed"`
	PowerOutlets          bool         `json:"power_outlets"`
	AirConditioning       bool         `json:"air_conditioning"`
	AccessibleForDisabled bool         `json:"accessible_for_disabled"`
	CarModelYear          CarModelYear `json:"car_model_year"`
}

func DefaultFilters() RideSearchFilters {
	return RideSearchFilters{
		SortBy:       SortDepartureEarliest,
		StopsFilter:  StopsDirectOnly,
		CarModelYear: CarModelAny,
	}
}

// ActiveCount reports how many fields differ from their defaults.
func (f RideSearchFilters) ActiveCount() int {
	def := DefaultFilters()
	n := 0
	if f.SortBy != def.SortBy {
		n++
	}
	if f.StopsFilter != def.StopsFilter {
		n++
	}
	if f.VerifiedDriversOnly != def.VerifiedDriversOnly {
		n++
	}
	if f.Max2InBack != def.Max2InBack {
		n++
	}
	if f.InstantBooking != def.InstantBooking {
		n++
	}
	if f.SmokingAllowed != def.SmokingAllowed {
		n++
	}
	if f.PetsAllowed != def.PetsAllowed {
		n++
	}
	if f.PowerOutlets != def.PowerOutlets {
		n++
	}
	if f.AirConditioning != def.AirConditioning {
		n++
	}
	if f.AccessibleForDisabled != def.AccessibleForDisabled {
		n++
	}
	if f.CarModelYear != def.CarModelYear {
		n++
	}
	return n
}

// FilterPatch is a shallow patch over RideSearchFilters; nil fields leave
// the current value alone, last write wins per field.
type FilterPatch struct {
	SortBy                *SortOption   `json:"sort_by,omitempty"`
	StopsFilter           *StopsFilter  `json:"stops_filter,omitempty"`
	VerifiedDriversOnly   *bool         `json:"verified_drivers_only,omitempty"`
	Max2InBack            *bool         `json:"max_2_in_back,omitempty"`
	InstantBooking        *bool         `json:"instant_booking,omitempty"`
	SmokingAllowed        *bool         `json:"smoking_allowed,omitempty"`
	PetsAllowed           *bool         `json:"pets_allowed,omitempty"`
	PowerOutlets          *bool         `json:"power_outlets,omitempty"`
	AirConditioning       *bool         `json:"air_conditioning,omitempty"`
	AccessibleForDisabled *bool         `json:"accessible_for_disabled,omitempty"`
	CarModelYear          *CarModelYear `json:"car_model_year,omitempty"`
}

func (f *RideSearchFilters) Apply(p FilterPatch) {
	if p.SortBy != nil {
		f.SortBy = *p.SortBy
	}
	if p.StopsFilter != nil {
		f.StopsFilter = *p.StopsFilter
	}
	if p.VerifiedDriversOnly != nil {
		f.VerifiedDriversOnly = *p.VerifiedDriversOnly
	}
	if p.Max2InBack != nil {
		f.Max2InBack = *p.Max2InBack
	}
	if p.InstantBooking != nil {
		f.InstantBooking = *p.InstantBooking
	}
	if p.SmokingAllowed != nil {
		f.SmokingAllowed = *p.SmokingAllowed
	}
	if p.PetsAllowed != nil {
		f.PetsAllowed = *p.PetsAllowed
	}
	if p.PowerOutlets != nil {
		f.PowerOutlets = *p.PowerOutlets
	}
	if p.AirConditioning != nil {
		f.AirConditioning = *p.AirConditioning
	}
	if p.AccessibleForDisabled != nil {
		f.AccessibleForDisabled = *p.AccessibleForDisabled
	}
	if p.CarModelYear != nil {
		f.CarModelYear = *p.CarModelYear
	}
}
