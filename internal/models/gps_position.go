package models

import "time"

// GPSPosition is one timestamped sample from a vehicle's tracking device.
// Rows are immutable once written; retention is an external job.
type GPSPosition struct {
	ID        int64     `json:"id"`
	VehicleID int64     `json:"vehicleId"`
	DriverID  *int64    `json:"driverId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Speed     *float64  `json:"speed,omitempty"`    // km/h
	Heading   *float64  `json:"heading,omitempty"`  // degrees (0-360)
	Odometer  *float64  `json:"odometer,omitempty"` // km
	Ignition  bool      `json:"ignition"`
}

// GPSPositionCreate is the ingestion payload from telematics devices.
// Range checks are enforced again by the service so that batch items
// arriving through other paths get the same treatment.
type GPSPositionCreate struct {
	VehicleID int64     `json:"vehicleId" binding:"required"`
	DriverID  *int64    `json:"driverId"`
	Lat       float64   `json:"lat" binding:"min=-90,max=90"`
	Lon       float64   `json:"lon" binding:"min=-180,max=180"`
	Speed     *float64  `json:"speed" binding:"omitempty,gte=0"`
	Heading   *float64  `json:"heading" binding:"omitempty,gte=0,lte=360"`
	Odometer  *float64  `json:"odometer" binding:"omitempty,gte=0"`
	Ignition  bool      `json:"ignition"`
	Timestamp time.Time `json:"timestamp" binding:"required"`
}

// GPSPositionBatch is the batch ingestion payload, capped at 1000 items
type GPSPositionBatch struct {
	Positions []GPSPositionCreate `json:"positions" binding:"required,min=1,max=1000"`
}

// IngestionStats reports the outcome of an ingestion operation.
// Individual item failures never abort the batch; they end up in Errors.
type IngestionStats struct {
	TotalReceived         int      `json:"totalReceived"`
	SuccessfullyProcessed int      `json:"successfullyProcessed"`
	Failed                int      `json:"failed"`
	Errors                []string `json:"errors"`
}

// TrackDistance is the summed great-circle distance over a vehicle's
// positions in a time window
type TrackDistance struct {
	VehicleID  int64     `json:"vehicleId"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Positions  int       `json:"positions"`
	DistanceKm float64   `json:"distanceKm"`
}
