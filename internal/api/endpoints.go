package api

// Endpoints maps each upstream operation to its path. Deployments override
// individual paths through configuration rather than recompiling; the
// defaults match the platform's current layout.
type Endpoints struct {
	SendOTP            string
	VerifyOTP          string
	Register           string
	Profile            string
	UpdateProfile      string
	UploadProfileImage string

	BankAccounts      string
	AddBankAccount    string
	UpdateBankAccount string
	DeleteBankAccount string

	VehicleBrands string
	VehicleModels string
	AddVehicle    string

	CreateRide       string
	SearchRides      string
	RideDetail       string
	UpdateRideStatus string
	MyRides          string

	CreateRideAlert string
	UserStatus      string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		SendOTP:            "/auth/otp/send",
		VerifyOTP:          "/auth/otp/verify",
		Register:           "/auth/register",
		Profile:            "/profile",
		UpdateProfile:      "/profile/update",
		UploadProfileImage: "/profile/image",

		BankAccounts:      "/bank-details",
		AddBankAccount:    "/bank-details/add",
		UpdateBankAccount: "/bank-details/update",
		DeleteBankAccount: "/bank-details/delete",

		VehicleBrands: "/vehicles/brands",
		VehicleModels: "/vehicles/models",
		AddVehicle:    "/vehicles/add",

		CreateRide:       "/rides/create",
		SearchRides:      "/rides/search",
		RideDetail:       "/rides/detail",
		UpdateRideStatus: "/rides/status",
		MyRides:          "/rides/mine",

		CreateRideAlert: "/ride-alerts/create",
		UserStatus:      "/user/status",
	}
}

// Override replaces any path present in the map, keyed by the snake_case
// operation name (e.g. "send_otp"). Unknown names are ignored.
func (e Endpoints) Override(paths map[string]string) Endpoints {
	targets := map[string]*string{
		"send_otp":             &e.SendOTP,
		"verify_otp":           &e.VerifyOTP,
		"register":             &e.Register,
		"profile":              &e.Profile,
		"update_profile":       &e.UpdateProfile,
		"upload_profile_image": &e.UploadProfileImage,
		"bank_accounts":        &e.BankAccounts,
		"add_bank_account":     &e.AddBankAccount,
		"update_bank_account":  &e.UpdateBankAccount,
		"delete_bank_account":  &e.DeleteBankAccount,
		"vehicle_brands":       &e.VehicleBrands,
		"vehicle_models":       &e.VehicleModels,
		"add_vehicle":          &e.AddVehicle,
		"create_ride":          &e.CreateRide,
		"search_rides":         &e.SearchRides,
		"ride_detail":          &e.RideDetail,
		"update_ride_status":   &e.UpdateRideStatus,
		"my_rides":             &e.MyRides,
		"create_ride_alert":    &e.CreateRideAlert,
		"user_status":          &e.UserStatus,
	}
	for name, path := range paths {
		if p, ok := targets[name]; ok && path != "" {
			*p = path
		}
	}
	return e
}
