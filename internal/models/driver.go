package models

import "time"

// Driver represents a fleet driver
type Driver struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	LicenseNumber string    `json:"licenseNumber"`
	CardNumber    *string   `json:"cardNumber,omitempty"` // tachograph card
	Timezone      string    `json:"timezone"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// DriverCreate is the payload for registering a driver
type DriverCreate struct {
	Name          string  `json:"name" binding:"required,max=255"`
	LicenseNumber string  `json:"licenseNumber" binding:"required,max=50"`
	CardNumber    *string `json:"cardNumber"`
	Timezone      string  `json:"timezone"`
}
