package repository

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/fleetgrid/fleet-backend-go/internal/database"
	"github.com/fleetgrid/fleet-backend-go/internal/models"
)

var repoPlateSeq int

func newVehicle(t *testing.T) *models.Vehicle {
	t.Helper()
	repoPlateSeq++
	v, err := testVehicleRepo.Create(models.VehicleCreate{
		RegistrationPlate: fmt.Sprintf("B-RP %d", repoPlateSeq),
		VIN:               fmt.Sprintf("WVWZZZ1JZ3X%06d", repoPlateSeq),
		Brand:             "Volvo",
		Model:             "FH16",
	})
	if err != nil {
		t.Fatalf("failed to create vehicle: %v", err)
	}
	return v
}

func insertPosition(t *testing.T, pos models.GPSPositionCreate) int64 {
	t.Helper()
	var id int64
	err := database.Transaction(func(tx *sql.Tx) error {
		var err error
		id, err = testPositionRepo.Insert(tx, pos)
		return err
	})
	if err != nil {
		t.Fatalf("failed to insert position: %v", err)
	}
	return id
}

func TestPositionGetByID(t *testing.T) {
	resetTables(t)
	vehicle := newVehicle(t)
	driver := newDriver(t)

	ts := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	speed := 72.5
	id := insertPosition(t, models.GPSPositionCreate{
		VehicleID: vehicle.ID,
		DriverID:  &driver.ID,
		Lat:       52.52,
		Lon:       13.405,
		Speed:     &speed,
		Ignition:  true,
		Timestamp: ts,
	})

	got, err := testPositionRepo.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil {
		t.Fatal("GetByID returned nil for existing position")
	}
	if got.VehicleID != vehicle.ID {
		t.Errorf("vehicle id = %d, want %d", got.VehicleID, vehicle.ID)
	}
	if got.DriverID == nil || *got.DriverID != driver.ID {
		t.Errorf("driver id = %v, want %d", got.DriverID, driver.ID)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %s, want %s", got.Timestamp, ts)
	}
	if got.Speed == nil || *got.Speed != speed {
		t.Errorf("speed = %v, want %v", got.Speed, speed)
	}
	if !got.Ignition {
		t.Error("ignition = false, want true")
	}

	missing, err := testPositionRepo.GetByID(id + 1000)
	if err != nil {
		t.Fatalf("GetByID missing: %v", err)
	}
	if missing != nil {
		t.Errorf("GetByID missing = %+v, want nil", missing)
	}
}

func TestPositionListByDriverBounds(t *testing.T) {
	resetTables(t)
	vehicle := newVehicle(t)
	driver := newDriver(t)

	base := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{-time.Minute, 0, 30 * time.Minute, time.Hour, time.Hour + time.Minute} {
		insertPosition(t, models.GPSPositionCreate{
			VehicleID: vehicle.ID,
			DriverID:  &driver.ID,
			Lat:       52.52,
			Lon:       13.405,
			Timestamp: base.Add(offset),
		})
	}

	positions, err := testPositionRepo.ListByDriver(driver.ID, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListByDriver: %v", err)
	}

	// Both window edges are included, the minute outside each is not
	if len(positions) != 3 {
		t.Fatalf("positions = %d, want 3", len(positions))
	}
	for i := 1; i < len(positions); i++ {
		if positions[i].Timestamp.Before(positions[i-1].Timestamp) {
			t.Errorf("positions out of order at %d: %s after %s",
				i, positions[i-1].Timestamp, positions[i].Timestamp)
		}
	}
}
