// Package tachograph defines the contract between the core and the
// external tachograph extractor. The core consumes an ordered sequence
// of activity records and enforces the contract (start < end,
// non-negative duration, known type tag); decoding the regulatory DDD/TGD
// byte formats is external work and never happens here.
package tachograph

import (
	"time"

	"github.com/fleetgrid/fleet-backend-go/internal/apperrors"
	"github.com/fleetgrid/fleet-backend-go/internal/models"
)

// ActivityRecord is one extracted activity interval
type ActivityRecord struct {
	ActivityType    models.ActivityType `json:"activityType"`
	StartTime       time.Time           `json:"startTime"`
	EndTime         time.Time           `json:"endTime"`
	DurationMinutes int                 `json:"durationMinutes"`
	OdometerStart   *float64            `json:"odometerStart,omitempty"`
	OdometerEnd     *float64            `json:"odometerEnd,omitempty"`
	DistanceKm      *float64            `json:"distanceKm,omitempty"`
}

// ParseResult is the extractor's output for one uploaded file
type ParseResult struct {
	Success             bool             `json:"success"`
	CardNumber          *string          `json:"cardNumber,omitempty"`
	DriverName          *string          `json:"driverName,omitempty"`
	VehicleRegistration *string          `json:"vehicleRegistration,omitempty"`
	Activities          []ActivityRecord `json:"activities"`
	TotalDrivingMinutes int              `json:"totalDrivingMinutes"`
	TotalRestMinutes    int              `json:"totalRestMinutes"`
	TotalWorkMinutes    int              `json:"totalWorkMinutes"`
	Errors              []string         `json:"errors"`
	Warnings            []string         `json:"warnings"`
}

// Extractor converts an uploaded file's bytes into candidate activity
// records. Implementations live outside the core.
type Extractor interface {
	Parse(data []byte, filename string) ParseResult
}

// ValidateRecord enforces the extractor output contract on one record
func ValidateRecord(rec ActivityRecord) error {
	if !rec.ActivityType.Valid() {
		return apperrors.NewValidation("unknown activity type: %s", rec.ActivityType)
	}
	if !rec.EndTime.After(rec.StartTime) {
		return apperrors.NewValidation(
			"activity end time %s must be after start time %s",
			rec.EndTime.Format(time.RFC3339), rec.StartTime.Format(time.RFC3339))
	}
	if rec.DurationMinutes < 0 {
		return apperrors.NewValidation("activity duration must not be negative: %d", rec.DurationMinutes)
	}
	return nil
}

// Unsupported is the placeholder wired when no external extractor is
// configured. It rejects every upload rather than fabricating activities.
type Unsupported struct{}

// Parse always fails with an explanatory error
func (Unsupported) Parse(data []byte, filename string) ParseResult {
	return ParseResult{
		Success: false,
		Errors:  []string{"no tachograph extractor configured"},
	}
}
