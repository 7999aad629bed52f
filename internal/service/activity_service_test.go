package service

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fleetgrid/fleet-backend-go/internal/apperrors"
	"github.com/fleetgrid/fleet-backend-go/internal/models"
	"github.com/fleetgrid/fleet-backend-go/internal/tachograph"
)

// fakeExtractor returns a canned parse result
type fakeExtractor struct {
	result tachograph.ParseResult
}

func (f fakeExtractor) Parse(data []byte, filename string) tachograph.ParseResult {
	return f.result
}

func newActivityService() *ActivityService {
	return NewActivityService(driverRepo, activityRepo, positionRepo, tachograph.Unsupported{})
}

func activityInput(driverID int64, activityType models.ActivityType, start, end time.Time) models.DriverActivityCreate {
	return models.DriverActivityCreate{
		DriverID:        driverID,
		ActivityType:    activityType,
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: int(end.Sub(start).Minutes()),
	}
}

func TestCreateActivity_OverlapRejected(t *testing.T) {
	resetDB(t)
	svc := newActivityService()
	driver := createTestDriver(t)

	nine := utc(2024, 3, 15, 9, 0)
	ten := utc(2024, 3, 15, 10, 0)

	if _, err := svc.CreateActivity(activityInput(driver.ID, models.ActivityDriving, nine, ten)); err != nil {
		t.Fatalf("CreateActivity: %v", err)
	}

	// [09:30, 10:30) intersects [09:00, 10:00)
	_, err := svc.CreateActivity(activityInput(driver.ID, models.ActivityWork,
		utc(2024, 3, 15, 9, 30), utc(2024, 3, 15, 10, 30)))

	var conflictErr *apperrors.ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if !strings.Contains(conflictErr.Message, nine.Format(time.RFC3339)) {
		t.Errorf("conflict message %q should name the existing interval bounds", conflictErr.Message)
	}

	activities, err := svc.GetDriverActivities(driver.ID, models.ActivityFilter{})
	if err != nil {
		t.Fatalf("GetDriverActivities: %v", err)
	}
	if len(activities) != 1 {
		t.Errorf("stored activities = %d, want exactly 1", len(activities))
	}
}

func TestCreateActivity_AdjacentIntervalsAllowed(t *testing.T) {
	resetDB(t)
	svc := newActivityService()
	driver := createTestDriver(t)

	// Half-open intervals: [09:00, 10:00) and [10:00, 10:30) share only
	// the boundary instant and do not overlap
	if _, err := svc.CreateActivity(activityInput(driver.ID, models.ActivityDriving,
		utc(2024, 3, 15, 9, 0), utc(2024, 3, 15, 10, 0))); err != nil {
		t.Fatalf("CreateActivity first: %v", err)
	}
	if _, err := svc.CreateActivity(activityInput(driver.ID, models.ActivityBreak,
		utc(2024, 3, 15, 10, 0), utc(2024, 3, 15, 10, 30))); err != nil {
		t.Fatalf("CreateActivity adjacent: %v", err)
	}
}

func TestCreateActivity_Validation(t *testing.T) {
	resetDB(t)
	svc := newActivityService()
	driver := createTestDriver(t)

	cases := []struct {
		name  string
		input models.DriverActivityCreate
	}{
		{
			"end before start",
			activityInput(driver.ID, models.ActivityDriving, utc(2024, 3, 15, 10, 0), utc(2024, 3, 15, 9, 0)),
		},
		{
			"unknown activity type",
			activityInput(driver.ID, models.ActivityType("NAPPING"), utc(2024, 3, 15, 9, 0), utc(2024, 3, 15, 10, 0)),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateActivity(tc.input)
			var validationErr *apperrors.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestCreateActivity_UnknownDriver(t *testing.T) {
	resetDB(t)
	svc := newActivityService()

	_, err := svc.CreateActivity(activityInput(9999, models.ActivityDriving,
		utc(2024, 3, 15, 9, 0), utc(2024, 3, 15, 10, 0)))

	var notFoundErr *apperrors.NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func extractedRecord(activityType models.ActivityType, start, end time.Time) tachograph.ActivityRecord {
	return tachograph.ActivityRecord{
		ActivityType:    activityType,
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: int(end.Sub(start).Minutes()),
	}
}

func TestStoreExtracted_DuplicateSkipped(t *testing.T) {
	resetDB(t)
	svc := newActivityService()
	driver := createTestDriver(t)

	rec := extractedRecord(models.ActivityDriving, utc(2024, 3, 15, 9, 0), utc(2024, 3, 15, 10, 0))
	result := tachograph.ParseResult{Success: true, Activities: []tachograph.ActivityRecord{rec}}

	created, skipped, _, err := svc.StoreExtracted(driver.ID, result, "card.ddd", nil)
	if err != nil {
		t.Fatalf("StoreExtracted: %v", err)
	}
	if created != 1 || skipped != 0 {
		t.Fatalf("first submission: created=%d skipped=%d, want 1/0", created, skipped)
	}

	// Identical re-submission is harmless
	created, skipped, _, err = svc.StoreExtracted(driver.ID, result, "card.ddd", nil)
	if err != nil {
		t.Fatalf("StoreExtracted resubmit: %v", err)
	}
	if created != 0 || skipped != 1 {
		t.Errorf("resubmission: created=%d skipped=%d, want 0/1", created, skipped)
	}

	activities, err := svc.GetDriverActivities(driver.ID, models.ActivityFilter{})
	if err != nil {
		t.Fatalf("GetDriverActivities: %v", err)
	}
	if len(activities) != 1 {
		t.Errorf("stored activities = %d, want exactly 1", len(activities))
	}
}

func TestStoreExtracted_PartialOverlapSkipped(t *testing.T) {
	resetDB(t)
	svc := newActivityService()
	driver := createTestDriver(t)

	first := tachograph.ParseResult{Success: true, Activities: []tachograph.ActivityRecord{
		extractedRecord(models.ActivityDriving, utc(2024, 3, 15, 9, 0), utc(2024, 3, 15, 10, 0)),
	}}
	if _, _, _, err := svc.StoreExtracted(driver.ID, first, "a.ddd", nil); err != nil {
		t.Fatalf("StoreExtracted: %v", err)
	}

	// Overlapping but not identical: skipped, no merge
	second := tachograph.ParseResult{Success: true, Activities: []tachograph.ActivityRecord{
		extractedRecord(models.ActivityDriving, utc(2024, 3, 15, 9, 30), utc(2024, 3, 15, 10, 30)),
	}}
	created, skipped, _, err := svc.StoreExtracted(driver.ID, second, "b.ddd", nil)
	if err != nil {
		t.Fatalf("StoreExtracted overlap: %v", err)
	}
	if created != 0 || skipped != 1 {
		t.Errorf("overlapping record: created=%d skipped=%d, want 0/1", created, skipped)
	}
}

func TestStoreExtracted_ContractViolationCollected(t *testing.T) {
	resetDB(t)
	svc := newActivityService()
	driver := createTestDriver(t)

	good := extractedRecord(models.ActivityWork, utc(2024, 3, 15, 11, 0), utc(2024, 3, 15, 12, 0))
	bad := extractedRecord(models.ActivityWork, utc(2024, 3, 15, 13, 0), utc(2024, 3, 15, 12, 0)) // end before start
	result := tachograph.ParseResult{Success: true, Activities: []tachograph.ActivityRecord{bad, good}}

	created, skipped, errs, err := svc.StoreExtracted(driver.ID, result, "card.ddd", nil)
	if err != nil {
		t.Fatalf("StoreExtracted: %v", err)
	}
	if created != 1 || skipped != 0 {
		t.Errorf("created=%d skipped=%d, want 1/0", created, skipped)
	}
	if len(errs) != 1 {
		t.Errorf("errs = %v, want exactly one contract violation", errs)
	}
}

func TestGetActivitySummary_ViolationBoundaries(t *testing.T) {
	resetDB(t)
	svc := newActivityService()

	cases := []struct {
		name           string
		drivingMinutes int
		wantViolations int
		wantSubstring  string
	}{
		{"exactly 9 hours is compliant", 540, 0, ""},
		{"9.1 hours is an extended day", 546, 1, "Extended daily driving"},
		{"exactly 10 hours is still extended", 600, 1, "Extended daily driving"},
		{"10.1 hours exceeds the hard limit", 606, 1, "Exceeded maximum daily driving limit"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resetDB(t)
			driver := createTestDriver(t)

			start := utc(2024, 3, 15, 0, 0)
			end := start.Add(time.Duration(tc.drivingMinutes) * time.Minute)
			if _, err := svc.CreateActivity(activityInput(driver.ID, models.ActivityDriving, start, end)); err != nil {
				t.Fatalf("CreateActivity: %v", err)
			}

			summary, err := svc.GetActivitySummary(driver.ID, utc(2024, 3, 15, 0, 0), utc(2024, 3, 16, 0, 0))
			if err != nil {
				t.Fatalf("GetActivitySummary: %v", err)
			}
			if len(summary.Violations) != tc.wantViolations {
				t.Fatalf("violations = %v, want %d", summary.Violations, tc.wantViolations)
			}
			if tc.wantSubstring != "" && !strings.Contains(summary.Violations[0], tc.wantSubstring) {
				t.Errorf("violation %q should contain %q", summary.Violations[0], tc.wantSubstring)
			}
		})
	}
}

func TestGetActivitySummary_Aggregation(t *testing.T) {
	resetDB(t)
	svc := newActivityService()
	driver := createTestDriver(t)

	drive := activityInput(driver.ID, models.ActivityDriving, utc(2024, 3, 15, 8, 0), utc(2024, 3, 15, 10, 0))
	drive.DistanceKm = floatPtr(142.5)
	rest := activityInput(driver.ID, models.ActivityRest, utc(2024, 3, 15, 10, 0), utc(2024, 3, 15, 10, 45))
	brk := activityInput(driver.ID, models.ActivityBreak, utc(2024, 3, 15, 10, 45), utc(2024, 3, 15, 11, 0))
	work := activityInput(driver.ID, models.ActivityWork, utc(2024, 3, 15, 11, 0), utc(2024, 3, 15, 11, 30))

	for _, input := range []models.DriverActivityCreate{drive, rest, brk, work} {
		if _, err := svc.CreateActivity(input); err != nil {
			t.Fatalf("CreateActivity: %v", err)
		}
	}

	summary, err := svc.GetActivitySummary(driver.ID, utc(2024, 3, 15, 0, 0), utc(2024, 3, 16, 0, 0))
	if err != nil {
		t.Fatalf("GetActivitySummary: %v", err)
	}

	if summary.DrivingHours != 2 {
		t.Errorf("DrivingHours = %g, want 2", summary.DrivingHours)
	}
	if summary.RestHours != 1 { // 45min REST + 15min BREAK
		t.Errorf("RestHours = %g, want 1", summary.RestHours)
	}
	if summary.WorkHours != 0.5 {
		t.Errorf("WorkHours = %g, want 0.5", summary.WorkHours)
	}
	if summary.DistanceKm != 142.5 { // activities without distance count as zero
		t.Errorf("DistanceKm = %g, want 142.5", summary.DistanceKm)
	}
	if summary.DriverName != "Test Driver" {
		t.Errorf("DriverName = %q, want %q", summary.DriverName, "Test Driver")
	}
}

func TestGetActivitySummary_UnknownDriver(t *testing.T) {
	resetDB(t)
	svc := newActivityService()

	_, err := svc.GetActivitySummary(9999, utc(2024, 3, 15, 0, 0), utc(2024, 3, 16, 0, 0))
	var notFoundErr *apperrors.NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestFuseGPS_Containment(t *testing.T) {
	resetDB(t)
	activitySvc := newActivityService()
	telematicsSvc := newTelematicsService()
	driver := createTestDriver(t)
	vehicle := createTestVehicle(t)

	if _, err := activitySvc.CreateActivity(activityInput(driver.ID, models.ActivityDriving,
		utc(2024, 3, 15, 9, 0), utc(2024, 3, 15, 10, 0))); err != nil {
		t.Fatalf("CreateActivity driving: %v", err)
	}
	if _, err := activitySvc.CreateActivity(activityInput(driver.ID, models.ActivityBreak,
		utc(2024, 3, 15, 10, 0), utc(2024, 3, 15, 10, 30))); err != nil {
		t.Fatalf("CreateActivity break: %v", err)
	}

	pos := position(vehicle.ID, utc(2024, 3, 15, 9, 45))
	pos.DriverID = &driver.ID
	if _, err := telematicsSvc.IngestPosition(pos); err != nil {
		t.Fatalf("IngestPosition: %v", err)
	}

	count, err := activitySvc.FuseGPSWithActivities(driver.ID, utc(2024, 3, 15, 9, 0), utc(2024, 3, 15, 11, 0))
	if err != nil {
		t.Fatalf("FuseGPSWithActivities: %v", err)
	}
	if count != 1 {
		t.Fatalf("associated = %d, want 1", count)
	}

	activities, err := activitySvc.GetDriverActivities(driver.ID, models.ActivityFilter{})
	if err != nil {
		t.Fatalf("GetDriverActivities: %v", err)
	}

	// List is newest first: break, then driving
	for _, a := range activities {
		switch a.ActivityType {
		case models.ActivityDriving:
			if len(a.GPSRefs) != 1 {
				t.Errorf("driving activity gps refs = %d, want 1", len(a.GPSRefs))
			}
		case models.ActivityBreak:
			if len(a.GPSRefs) != 0 {
				t.Errorf("break activity gps refs = %d, want 0", len(a.GPSRefs))
			}
		}
	}
}

func TestFuseGPS_RepeatInvocationIdempotent(t *testing.T) {
	resetDB(t)
	activitySvc := newActivityService()
	telematicsSvc := newTelematicsService()
	driver := createTestDriver(t)
	vehicle := createTestVehicle(t)

	if _, err := activitySvc.CreateActivity(activityInput(driver.ID, models.ActivityDriving,
		utc(2024, 3, 15, 9, 0), utc(2024, 3, 15, 10, 0))); err != nil {
		t.Fatalf("CreateActivity: %v", err)
	}

	pos := position(vehicle.ID, utc(2024, 3, 15, 9, 30))
	pos.DriverID = &driver.ID
	if _, err := telematicsSvc.IngestPosition(pos); err != nil {
		t.Fatalf("IngestPosition: %v", err)
	}

	first, err := activitySvc.FuseGPSWithActivities(driver.ID, utc(2024, 3, 15, 9, 0), utc(2024, 3, 15, 10, 0))
	if err != nil {
		t.Fatalf("first fuse: %v", err)
	}
	if first != 1 {
		t.Fatalf("first fuse associated = %d, want 1", first)
	}

	second, err := activitySvc.FuseGPSWithActivities(driver.ID, utc(2024, 3, 15, 9, 0), utc(2024, 3, 15, 10, 0))
	if err != nil {
		t.Fatalf("second fuse: %v", err)
	}
	if second != 0 {
		t.Errorf("second fuse associated = %d, want 0", second)
	}

	activities, err := activitySvc.GetDriverActivities(driver.ID, models.ActivityFilter{})
	if err != nil {
		t.Fatalf("GetDriverActivities: %v", err)
	}
	if len(activities[0].GPSRefs) != 1 {
		t.Errorf("gps refs = %d, want 1 after repeated fusion", len(activities[0].GPSRefs))
	}
}

func TestFuseGPS_ConcurrentWindowsPreserveAssociations(t *testing.T) {
	resetDB(t)
	activitySvc := newActivityService()
	telematicsSvc := newTelematicsService()
	driver := createTestDriver(t)
	vehicle := createTestVehicle(t)

	if _, err := activitySvc.CreateActivity(activityInput(driver.ID, models.ActivityDriving,
		utc(2024, 3, 15, 9, 0), utc(2024, 3, 15, 10, 0))); err != nil {
		t.Fatalf("CreateActivity: %v", err)
	}

	for _, ts := range []time.Time{utc(2024, 3, 15, 9, 15), utc(2024, 3, 15, 9, 45)} {
		pos := position(vehicle.ID, ts)
		pos.DriverID = &driver.ID
		if _, err := telematicsSvc.IngestPosition(pos); err != nil {
			t.Fatalf("IngestPosition %s: %v", ts, err)
		}
	}

	// Both windows intersect the activity but each selects a different
	// position. Whichever fusion commits second must not overwrite the
	// first one's association.
	windows := [][2]time.Time{
		{utc(2024, 3, 15, 9, 0), utc(2024, 3, 15, 9, 30)},
		{utc(2024, 3, 15, 9, 30), utc(2024, 3, 15, 10, 0)},
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(windows))
	for _, w := range windows {
		wg.Add(1)
		go func(start, end time.Time) {
			defer wg.Done()
			if _, err := activitySvc.FuseGPSWithActivities(driver.ID, start, end); err != nil {
				errs <- err
			}
		}(w[0], w[1])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("FuseGPSWithActivities: %v", err)
	}

	activities, err := activitySvc.GetDriverActivities(driver.ID, models.ActivityFilter{})
	if err != nil {
		t.Fatalf("GetDriverActivities: %v", err)
	}
	if len(activities) != 1 {
		t.Fatalf("activities = %d, want 1", len(activities))
	}
	if len(activities[0].GPSRefs) != 2 {
		t.Fatalf("gps refs = %d, want 2 after concurrent fusions", len(activities[0].GPSRefs))
	}
}

func TestProcessTachographFile(t *testing.T) {
	resetDB(t)
	driver := createTestDriver(t)

	card := "D123456789"
	extractor := fakeExtractor{result: tachograph.ParseResult{
		Success:    true,
		CardNumber: &card,
		Activities: []tachograph.ActivityRecord{
			extractedRecord(models.ActivityDriving, utc(2024, 3, 15, 6, 0), utc(2024, 3, 15, 8, 0)),
			extractedRecord(models.ActivityBreak, utc(2024, 3, 15, 8, 0), utc(2024, 3, 15, 8, 45)),
		},
	}}
	svc := NewActivityService(driverRepo, activityRepo, positionRepo, extractor)

	result, err := svc.ProcessTachographFile(driver.ID, nil, "card.ddd", []byte{0x76, 0x01})
	if err != nil {
		t.Fatalf("ProcessTachographFile: %v", err)
	}
	if !result.Success {
		t.Fatalf("upload failed: %v", result.Errors)
	}
	if result.ActivitiesCreated != 2 || result.ActivitiesSkipped != 0 {
		t.Errorf("created=%d skipped=%d, want 2/0", result.ActivitiesCreated, result.ActivitiesSkipped)
	}

	// Card number backfilled onto the driver
	updated, err := driverRepo.GetByID(driver.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.CardNumber == nil || *updated.CardNumber != card {
		t.Errorf("driver card number = %v, want %q", updated.CardNumber, card)
	}
}

func TestProcessTachographFile_NoExtractor(t *testing.T) {
	resetDB(t)
	svc := newActivityService()
	driver := createTestDriver(t)

	result, err := svc.ProcessTachographFile(driver.ID, nil, "card.ddd", []byte{0x00})
	if err != nil {
		t.Fatalf("ProcessTachographFile: %v", err)
	}
	if result.Success {
		t.Error("upload without an extractor should not succeed")
	}
	if len(result.Errors) == 0 {
		t.Error("expected an explanatory error")
	}
}
