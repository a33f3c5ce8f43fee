package api

import "github.com/example/viacar/internal/models"

type OTPRequest struct {
	Phone string `json:"phone"`
}

type VerifyOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type VerifyOTPResponse struct {
	Token      string `json:"token"`
	IsNewUser  bool   `json:"is_new_user"`
	UserID     int    `json:"user_id"`
	ProfileSet bool   `json:"profile_set"`
}

type RegisterRequest struct {
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	BirthDate string `json:"birth_date,omitempty"` // YYYY-MM-DD
	Gender    string `json:"gender,omitempty"`
}

type Profile struct {
	ID        int    `json:"id"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	BirthDate string `json:"birth_date,omitempty"`
	Gender    string `json:"gender,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	Verified  bool   `json:"verified"`
}

type BankAccount struct {
	ID         int    `json:"id,omitempty"`
	BankName   string `json:"bank_name"`
	HolderName string `json:"holder_name"`
	IBAN       string `json:"iban"`
}

type VehicleBrand struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type VehicleModel struct {
	ID      int    `json:"id"`
	BrandID int    `json:"brand_id"`
	Name    string `json:"name"`
}

type AddVehicleRequest struct {
	BrandID     int    `json:"brand_id"`
	ModelID     int    `json:"model_id"`
	Year        int    `json:"year"`
	Color       string `json:"color"`
	PlateNumber string `json:"plate_number"`
}

type Vehicle struct {
	ID          int    `json:"id"`
	BrandID     int    `json:"brand_id"`
	ModelID     int    `json:"model_id"`
	Year        int    `json:"year"`
	Color       string `json:"color"`
	PlateNumber string `json:"plate_number"`
}

type RideCreated struct {
	RideID int `json:"ride_id"`
}

// SearchQuery is what the discovery page sends upstream: endpoints plus the
// active filter set. Page is 1-based.
type SearchQuery struct {
	From          *models.LocationPoint    `json:"from,omitempty"`
	To            *models.LocationPoint    `json:"to,omitempty"`
	DepartureDate string                   `json:"departure_date,omitempty"`
	Seats         int                      `json:"seats,omitempty"`
	Filters       models.RideSearchFilters `json:"filters"`
	Page          int                      `json:"page,omitempty"`
}

type RideSummary struct {
	ID            int                  `json:"id"`
	DriverName    string               `json:"driver_name"`
	Pickup        models.LocationPoint `json:"pickup"`
	Dropoff       models.LocationPoint `json:"dropoff"`
	DepartureDate string               `json:"departure_date"`
	DepartureTime string               `json:"departure_time"`
	PricePerSeat  int64                `json:"price_per_seat"`
	SeatsLeft     int                  `json:"seats_left"`
	StopsCount    int                  `json:"stops_count"`
	Status        string               `json:"status"`
}

type SearchResult struct {
	Rides []RideSummary `json:"rides"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
}

type RideDetail struct {
	RideSummary
	Stops    []models.StopPoint    `json:"stops,omitempty"`
	Prices   []models.PriceSegment `json:"prices,omitempty"`
	Notes    string                `json:"notes,omitempty"`
	Polyline string                `json:"polyline,omitempty"`
	Vehicle  *Vehicle              `json:"vehicle,omitempty"`
}

// MyRidesQuery filters the authenticated user's own rides.
type MyRidesQuery struct {
	Status   string `json:"status,omitempty"`
	FromDate string `json:"from_date,omitempty"`
	ToDate   string `json:"to_date,omitempty"`
	Page     int    `json:"page,omitempty"`
}

type RideAlertRequest struct {
	From          models.LocationPoint `json:"from"`
	To            models.LocationPoint `json:"to"`
	DepartureDate string               `json:"departure_date"`
	Seats         int                  `json:"seats"`
}

// UserStatus aggregates the flags gating publishing: identity verification,
// bank details and vehicle on file.
type UserStatus struct {
	Verified    bool `json:"verified"`
	HasBank     bool `json:"has_bank"`
	HasVehicle  bool `json:"has_vehicle"`
	CanPublish  bool `json:"can_publish"`
	RidesActive int  `json:"rides_active"`
}
