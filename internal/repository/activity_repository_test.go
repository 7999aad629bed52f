package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fleetgrid/fleet-backend-go/internal/database"
	"github.com/fleetgrid/fleet-backend-go/internal/models"
)

var (
	testVehicleRepo  *VehicleRepository
	testDriverRepo   *DriverRepository
	testPositionRepo *PositionRepository
	testActivityRepo *ActivityRepository
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "fleet-repo-test")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create temp dir:", err)
		os.Exit(1)
	}

	if err := database.Init(database.Config{Path: filepath.Join(dir, "test.db")}); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init database:", err)
		os.Exit(1)
	}
	if err := database.NewMigrationManager(database.GetDB()).RunMigrations(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to run migrations:", err)
		os.Exit(1)
	}

	db := database.GetDB()
	testVehicleRepo = NewVehicleRepository(db)
	testDriverRepo = NewDriverRepository(db)
	testPositionRepo = NewPositionRepository(db)
	testActivityRepo = NewActivityRepository(db)

	code := m.Run()

	database.Close()
	os.RemoveAll(dir)
	os.Exit(code)
}

func resetTables(t *testing.T) {
	t.Helper()
	db := database.GetDB()
	for _, table := range []string{"driver_activities", "gps_positions", "drivers", "vehicles"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("failed to clear table %s: %v", table, err)
		}
	}
}

var licenseSeq int

func newDriver(t *testing.T) *models.Driver {
	t.Helper()
	licenseSeq++
	d, err := testDriverRepo.Create(models.DriverCreate{
		Name:          "Repo Driver",
		LicenseNumber: fmt.Sprintf("RLIC-%06d", licenseSeq),
	})
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}
	return d
}

func insertActivity(t *testing.T, driverID int64, activityType models.ActivityType, start, end time.Time) int64 {
	t.Helper()
	var id int64
	err := database.Transaction(func(tx *sql.Tx) error {
		var err error
		id, err = testActivityRepo.Insert(tx, &models.DriverActivity{
			DriverID:        driverID,
			ActivityType:    activityType,
			Source:          models.SourceTachograph,
			StartTime:       start,
			EndTime:         end,
			DurationMinutes: int(end.Sub(start).Minutes()),
		})
		return err
	})
	if err != nil {
		t.Fatalf("failed to insert activity: %v", err)
	}
	return id
}

func at(hour, min int) time.Time {
	return time.Date(2024, 3, 15, hour, min, 0, 0, time.UTC)
}

func TestList_OrderedByStartDescending(t *testing.T) {
	resetTables(t)
	driver := newDriver(t)

	insertActivity(t, driver.ID, models.ActivityDriving, at(8, 0), at(9, 0))
	insertActivity(t, driver.ID, models.ActivityBreak, at(10, 0), at(10, 30))
	insertActivity(t, driver.ID, models.ActivityWork, at(9, 0), at(10, 0))

	activities, err := testActivityRepo.List(driver.ID, models.ActivityFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(activities) != 3 {
		t.Fatalf("len = %d, want 3", len(activities))
	}
	for i := 1; i < len(activities); i++ {
		if activities[i].StartTime.After(activities[i-1].StartTime) {
			t.Errorf("activities not ordered by start time descending: %v before %v",
				activities[i-1].StartTime, activities[i].StartTime)
		}
	}
}

func TestList_Filters(t *testing.T) {
	resetTables(t)
	driver := newDriver(t)

	insertActivity(t, driver.ID, models.ActivityDriving, at(8, 0), at(9, 0))
	insertActivity(t, driver.ID, models.ActivityBreak, at(9, 0), at(9, 30))
	insertActivity(t, driver.ID, models.ActivityDriving, at(12, 0), at(13, 0))

	driving := models.ActivityDriving
	activities, err := testActivityRepo.List(driver.ID, models.ActivityFilter{ActivityType: &driving})
	if err != nil {
		t.Fatalf("List by type: %v", err)
	}
	if len(activities) != 2 {
		t.Errorf("driving activities = %d, want 2", len(activities))
	}

	start := at(8, 30)
	end := at(10, 0)
	activities, err = testActivityRepo.List(driver.ID, models.ActivityFilter{StartDate: &start, EndDate: &end})
	if err != nil {
		t.Fatalf("List by window: %v", err)
	}
	if len(activities) != 1 || activities[0].ActivityType != models.ActivityBreak {
		t.Errorf("window query = %v, want only the break activity", activities)
	}
}

func TestFindOverlapping(t *testing.T) {
	resetTables(t)
	driver := newDriver(t)
	other := newDriver(t)

	insertActivity(t, driver.ID, models.ActivityDriving, at(9, 0), at(10, 0))

	cases := []struct {
		name        string
		driverID    int64
		start, end  time.Time
		wantOverlap bool
	}{
		{"partial overlap", driver.ID, at(9, 30), at(10, 30), true},
		{"fully contained", driver.ID, at(9, 15), at(9, 45), true},
		{"containing", driver.ID, at(8, 0), at(11, 0), true},
		{"adjacent after", driver.ID, at(10, 0), at(11, 0), false},
		{"adjacent before", driver.ID, at(8, 0), at(9, 0), false},
		{"other driver", other.ID, at(9, 0), at(10, 0), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := database.Transaction(func(tx *sql.Tx) error {
				existing, err := testActivityRepo.FindOverlapping(tx, tc.driverID, tc.start, tc.end)
				if err != nil {
					return err
				}
				if (existing != nil) != tc.wantOverlap {
					t.Errorf("overlap = %v, want %v", existing != nil, tc.wantOverlap)
				}
				return nil
			})
			if err != nil {
				t.Fatalf("FindOverlapping: %v", err)
			}
		})
	}
}

func TestUpdateGPSRefs_RoundTrip(t *testing.T) {
	resetTables(t)
	driver := newDriver(t)
	id := insertActivity(t, driver.ID, models.ActivityDriving, at(9, 0), at(10, 0))

	refs := []models.GPSRef{
		{GPSID: 101, Timestamp: at(9, 15)},
		{GPSID: 102, Timestamp: at(9, 45)},
	}
	err := database.Transaction(func(tx *sql.Tx) error {
		return testActivityRepo.UpdateGPSRefs(tx, id, refs)
	})
	if err != nil {
		t.Fatalf("UpdateGPSRefs: %v", err)
	}

	activity, err := testActivityRepo.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(activity.GPSRefs) != 2 {
		t.Fatalf("gps refs = %d, want 2", len(activity.GPSRefs))
	}
	if activity.GPSRefs[0].GPSID != 101 || !activity.GPSRefs[1].Timestamp.Equal(at(9, 45)) {
		t.Errorf("gps refs round trip mismatch: %+v", activity.GPSRefs)
	}
}
