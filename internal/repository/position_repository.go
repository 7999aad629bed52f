package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fleetgrid/fleet-backend-go/internal/models"
)

// PositionRepository handles database operations for GPS positions
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

const positionColumns = `id, vehicle_id, driver_id, timestamp, lat, lon, speed, heading, odometer, ignition`

// Insert persists one GPS position and returns its ID. Positions are
// immutable; there is no update path.
func (r *PositionRepository) Insert(tx *sql.Tx, pos models.GPSPositionCreate) (int64, error) {
	result, err := tx.Exec(
		`INSERT INTO gps_positions (vehicle_id, driver_id, timestamp, lat, lon, speed, heading, odometer, ignition)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pos.VehicleID, pos.DriverID, toUnix(pos.Timestamp),
		pos.Lat, pos.Lon, pos.Speed, pos.Heading, pos.Odometer, pos.Ignition,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert gps position: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get gps position id: %w", err)
	}

	return id, nil
}

// GetByID retrieves a single position by ID, returning nil when it does
// not exist
func (r *PositionRepository) GetByID(id int64) (*models.GPSPosition, error) {
	row := r.db.QueryRow(`SELECT `+positionColumns+` FROM gps_positions WHERE id = ?`, id)

	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gps position: %w", err)
	}

	return p, nil
}

// ListByDriver retrieves a driver's positions with timestamps in
// [start, end], inclusive on both ends, ordered by timestamp ascending
func (r *PositionRepository) ListByDriver(driverID int64, start, end time.Time) ([]models.GPSPosition, error) {
	rows, err := r.db.Query(
		`SELECT `+positionColumns+` FROM gps_positions
		 WHERE driver_id = ? AND timestamp >= ? AND timestamp <= ?
		 ORDER BY timestamp ASC`,
		driverID, toUnix(start), toUnix(end),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query driver positions: %w", err)
	}
	defer rows.Close()

	return collectPositions(rows)
}

// ListByVehicle retrieves a vehicle's positions with timestamps in
// [start, end], ordered by timestamp ascending
func (r *PositionRepository) ListByVehicle(vehicleID int64, start, end time.Time) ([]models.GPSPosition, error) {
	rows, err := r.db.Query(
		`SELECT `+positionColumns+` FROM gps_positions
		 WHERE vehicle_id = ? AND timestamp >= ? AND timestamp <= ?
		 ORDER BY timestamp ASC`,
		vehicleID, toUnix(start), toUnix(end),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicle positions: %w", err)
	}
	defer rows.Close()

	return collectPositions(rows)
}

func collectPositions(rows *sql.Rows) ([]models.GPSPosition, error) {
	var positions []models.GPSPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gps position: %w", err)
		}
		positions = append(positions, *p)
	}

	return positions, rows.Err()
}

func scanPosition(row rowScanner) (*models.GPSPosition, error) {
	var p models.GPSPosition
	var driverID sql.NullInt64
	var ts int64
	var speed, heading, odometer sql.NullFloat64

	err := row.Scan(&p.ID, &p.VehicleID, &driverID, &ts, &p.Lat, &p.Lon, &speed, &heading, &odometer, &p.Ignition)
	if err != nil {
		return nil, err
	}

	p.DriverID = fromNullInt(driverID)
	p.Timestamp = fromUnix(ts)
	p.Speed = fromNullFloat(speed)
	p.Heading = fromNullFloat(heading)
	p.Odometer = fromNullFloat(odometer)

	return &p, nil
}
