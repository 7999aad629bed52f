package models

import "time"

// VehicleStatus is the lifecycle status of a fleet vehicle
type VehicleStatus string

const (
	VehicleActive      VehicleStatus = "ACTIVE"
	VehicleMaintenance VehicleStatus = "MAINTENANCE"
	VehicleInactive    VehicleStatus = "INACTIVE"
)

// Valid reports whether the status is a known tag
func (s VehicleStatus) Valid() bool {
	switch s {
	case VehicleActive, VehicleMaintenance, VehicleInactive:
		return true
	}
	return false
}

// onlineWindow is how recent the last GPS ping must be for a vehicle to
// count as online.
const onlineWindow = 5 * time.Minute

// Vehicle represents a fleet vehicle together with its current-state
// snapshot (last known position, speed, heading, odometer). The snapshot
// fields are written only by the telematics service, guarded so that
// LastSeen never moves backwards.
type Vehicle struct {
	ID                int64         `json:"id"`
	RegistrationPlate string        `json:"registrationPlate"`
	VIN               string        `json:"vin"`
	Brand             string        `json:"brand"`
	Model             string        `json:"model"`
	Status            VehicleStatus `json:"status"`

	LastSeen       *time.Time `json:"lastSeen,omitempty"`
	CurrentLat     *float64   `json:"currentLat,omitempty"`
	CurrentLon     *float64   `json:"currentLon,omitempty"`
	CurrentSpeed   *float64   `json:"currentSpeed,omitempty"`
	CurrentHeading *float64   `json:"currentHeading,omitempty"`
	TotalOdometer  *float64   `json:"totalOdometer,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsOnline reports whether the vehicle pinged within the online window
func (v *Vehicle) IsOnline(now time.Time) bool {
	if v.LastSeen == nil {
		return false
	}
	return now.Sub(*v.LastSeen) < onlineWindow
}

// VehicleCreate is the payload for registering a vehicle
type VehicleCreate struct {
	RegistrationPlate string        `json:"registrationPlate" binding:"required,max=20"`
	VIN               string        `json:"vin" binding:"required,max=17"`
	Brand             string        `json:"brand" binding:"required"`
	Model             string        `json:"model" binding:"required"`
	Status            VehicleStatus `json:"status"`
}

// VehicleStatusView is the status row returned by the telematics endpoints
type VehicleStatusView struct {
	ID                int64         `json:"id"`
	RegistrationPlate string        `json:"registrationPlate"`
	Brand             string        `json:"brand"`
	Model             string        `json:"model"`
	Status            VehicleStatus `json:"status"`
	IsOnline          bool          `json:"isOnline"`
	LastSeen          *time.Time    `json:"lastSeen"`
	CurrentSpeed      *float64      `json:"currentSpeed"`
	CurrentHeading    *float64      `json:"currentHeading"`
}

// OnlineCounts summarizes the online/offline split of the fleet
type OnlineCounts struct {
	Total   int `json:"total"`
	Online  int `json:"online"`
	Offline int `json:"offline"`
}
