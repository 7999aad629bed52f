package models

import "time"

// ActivityType classifies a driver activity interval
type ActivityType string

const (
	ActivityDriving      ActivityType = "DRIVING"
	ActivityRest         ActivityType = "REST"
	ActivityWork         ActivityType = "WORK"
	ActivityAvailability ActivityType = "AVAILABILITY"
	ActivityBreak        ActivityType = "BREAK"
	ActivityUnknown      ActivityType = "UNKNOWN"
)

// Valid reports whether the type is a known tag
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityDriving, ActivityRest, ActivityWork,
		ActivityAvailability, ActivityBreak, ActivityUnknown:
		return true
	}
	return false
}

// ActivitySource identifies where an activity record came from
type ActivitySource string

const (
	SourceTachograph  ActivitySource = "TACHOGRAPH"
	SourceManual      ActivitySource = "MANUAL"
	SourceGPSInferred ActivitySource = "GPS_INFERRED"
)

// Valid reports whether the source is a known tag
func (s ActivitySource) Valid() bool {
	switch s {
	case SourceTachograph, SourceManual, SourceGPSInferred:
		return true
	}
	return false
}

// GPSRef is one fused GPS position reference attached to an activity
type GPSRef struct {
	GPSID     int64     `json:"gpsId"`
	Timestamp time.Time `json:"timestamp"`
}

// DriverActivity is a half-open [start, end) interval classifying a
// driver's status. For a given driver no two stored intervals overlap;
// the activity service owns that invariant. GPSRefs is the only field
// mutated after creation, appended to by the GPS fuser.
type DriverActivity struct {
	ID              int64          `json:"id"`
	DriverID        int64          `json:"driverId"`
	VehicleID       *int64         `json:"vehicleId,omitempty"`
	ActivityType    ActivityType   `json:"activityType"`
	Source          ActivitySource `json:"source"`
	StartTime       time.Time      `json:"startTime"`
	EndTime         time.Time      `json:"endTime"`
	DurationMinutes int            `json:"durationMinutes"`
	OdometerStart   *float64       `json:"odometerStart,omitempty"`
	OdometerEnd     *float64       `json:"odometerEnd,omitempty"`
	DistanceKm      *float64       `json:"distanceKm,omitempty"`
	SourceFile      *string        `json:"sourceFile,omitempty"`
	CardNumber      *string        `json:"cardNumber,omitempty"`
	GPSRefs         []GPSRef       `json:"gpsRefs,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// DriverActivityCreate is the payload for a single manual activity entry
type DriverActivityCreate struct {
	DriverID        int64          `json:"driverId" binding:"required"`
	VehicleID       *int64         `json:"vehicleId"`
	ActivityType    ActivityType   `json:"activityType" binding:"required"`
	Source          ActivitySource `json:"source"`
	StartTime       time.Time      `json:"startTime" binding:"required"`
	EndTime         time.Time      `json:"endTime" binding:"required"`
	DurationMinutes int            `json:"durationMinutes" binding:"required"`
	OdometerStart   *float64       `json:"odometerStart"`
	OdometerEnd     *float64       `json:"odometerEnd"`
	DistanceKm      *float64       `json:"distanceKm"`
	SourceFile      *string        `json:"sourceFile"`
	CardNumber      *string        `json:"cardNumber"`
}

// ActivityFilter narrows an activity query
type ActivityFilter struct {
	StartDate    *time.Time
	EndDate      *time.Time
	ActivityType *ActivityType
}

// ActivitySummary aggregates a driver's activities over a period into
// regulatory compliance figures
type ActivitySummary struct {
	DriverID     int64     `json:"driverId"`
	DriverName   string    `json:"driverName"`
	PeriodStart  time.Time `json:"periodStart"`
	PeriodEnd    time.Time `json:"periodEnd"`
	DrivingHours float64   `json:"drivingHours"`
	RestHours    float64   `json:"restHours"`
	WorkHours    float64   `json:"workHours"`
	DistanceKm   float64   `json:"distanceKm"`
	Violations   []string  `json:"violations"`
}

// FusionResult reports how many GPS positions a fusion pass associated
type FusionResult struct {
	DriverID               int64 `json:"driverId"`
	GPSPositionsAssociated int   `json:"gpsPositionsAssociated"`
}
