package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fleetgrid/fleet-backend-go/internal/models"
)

// VehicleRepository handles database operations for vehicles and their
// current-state snapshots
type VehicleRepository struct {
	db *sql.DB
}

// NewVehicleRepository creates a new vehicle repository
func NewVehicleRepository(db *sql.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

const vehicleColumns = `id, registration_plate, vin, brand, model, status,
	last_seen, current_lat, current_lon, current_speed, current_heading, total_odometer,
	created_at, updated_at`

// Create inserts a new vehicle
func (r *VehicleRepository) Create(input models.VehicleCreate) (*models.Vehicle, error) {
	status := input.Status
	if status == "" {
		status = models.VehicleActive
	}

	now := time.Now().UTC()
	result, err := r.db.Exec(
		`INSERT INTO vehicles (registration_plate, vin, brand, model, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		input.RegistrationPlate, input.VIN, input.Brand, input.Model, string(status),
		toUnix(now), toUnix(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert vehicle: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle id: %w", err)
	}

	return r.GetByID(id)
}

// GetByID retrieves a vehicle by ID, returning nil when it does not exist
func (r *VehicleRepository) GetByID(id int64) (*models.Vehicle, error) {
	row := r.db.QueryRow(`SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?`, id)

	v, err := scanVehicle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}

	return v, nil
}

// List retrieves all vehicles ordered by registration plate
func (r *VehicleRepository) List() ([]models.Vehicle, error) {
	rows, err := r.db.Query(`SELECT ` + vehicleColumns + ` FROM vehicles ORDER BY registration_plate`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, *v)
	}

	return vehicles, rows.Err()
}

// UpdateSnapshot applies a position to the vehicle's current-state
// snapshot. The WHERE guard makes the update a no-op unless the new
// timestamp is strictly newer than the stored last_seen, so out-of-order
// deliveries cannot roll the snapshot backwards. Odometer is kept when
// the position carries none.
func (r *VehicleRepository) UpdateSnapshot(tx *sql.Tx, vehicleID int64, pos models.GPSPositionCreate) error {
	ts := toUnix(pos.Timestamp)
	_, err := tx.Exec(
		`UPDATE vehicles
		 SET last_seen = ?, current_lat = ?, current_lon = ?,
		     current_speed = ?, current_heading = ?,
		     total_odometer = COALESCE(?, total_odometer),
		     updated_at = ?
		 WHERE id = ? AND (last_seen IS NULL OR last_seen < ?)`,
		ts, pos.Lat, pos.Lon, pos.Speed, pos.Heading, pos.Odometer,
		toUnix(time.Now()), vehicleID, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to update vehicle snapshot: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVehicle(row rowScanner) (*models.Vehicle, error) {
	var v models.Vehicle
	var status string
	var lastSeen sql.NullInt64
	var lat, lon, speed, heading, odometer sql.NullFloat64
	var createdAt, updatedAt int64

	err := row.Scan(
		&v.ID, &v.RegistrationPlate, &v.VIN, &v.Brand, &v.Model, &status,
		&lastSeen, &lat, &lon, &speed, &heading, &odometer,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.Status = models.VehicleStatus(status)
	v.LastSeen = fromNullUnix(lastSeen)
	v.CurrentLat = fromNullFloat(lat)
	v.CurrentLon = fromNullFloat(lon)
	v.CurrentSpeed = fromNullFloat(speed)
	v.CurrentHeading = fromNullFloat(heading)
	v.TotalOdometer = fromNullFloat(odometer)
	v.CreatedAt = fromUnix(createdAt)
	v.UpdatedAt = fromUnix(updatedAt)

	return &v, nil
}
