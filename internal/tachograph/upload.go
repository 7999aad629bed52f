package tachograph

// UploadResult reports the outcome of one tachograph file upload
type UploadResult struct {
	Success           bool        `json:"success"`
	Filename          string      `json:"filename"`
	DriverID          int64       `json:"driverId,omitempty"`
	ActivitiesCreated int         `json:"activitiesCreated"`
	ActivitiesSkipped int         `json:"activitiesSkipped"` // duplicates and overlaps
	ParseResult       ParseResult `json:"parseResult"`
	Errors            []string    `json:"errors"`
}
