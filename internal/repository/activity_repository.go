package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fleetgrid/fleet-backend-go/internal/models"
)

// ActivityRepository handles database operations for driver activities.
// The write paths (FindOverlapping, Insert, UpdateGPSRefs) take the
// caller's transaction so that overlap checks and inserts commit as one
// unit.
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

const activityColumns = `id, driver_id, vehicle_id, activity_type, source,
	start_time, end_time, duration_minutes, odometer_start, odometer_end, distance_km,
	source_file, card_number, gps_refs, created_at`

// FindOverlapping returns any activity of the driver whose interval
// intersects [start, end): existing.start < end AND existing.end > start.
// Returns nil when there is no overlap.
func (r *ActivityRepository) FindOverlapping(tx *sql.Tx, driverID int64, start, end time.Time) (*models.DriverActivity, error) {
	row := tx.QueryRow(
		`SELECT `+activityColumns+` FROM driver_activities
		 WHERE driver_id = ? AND start_time < ? AND end_time > ?
		 LIMIT 1`,
		driverID, toUnix(end), toUnix(start),
	)

	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping activity: %w", err)
	}

	return a, nil
}

// Insert persists a new activity and returns its ID
func (r *ActivityRepository) Insert(tx *sql.Tx, a *models.DriverActivity) (int64, error) {
	refs, err := marshalGPSRefs(a.GPSRefs)
	if err != nil {
		return 0, err
	}

	result, err := tx.Exec(
		`INSERT INTO driver_activities
		 (driver_id, vehicle_id, activity_type, source, start_time, end_time, duration_minutes,
		  odometer_start, odometer_end, distance_km, source_file, card_number, gps_refs, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.DriverID, a.VehicleID, string(a.ActivityType), string(a.Source),
		toUnix(a.StartTime), toUnix(a.EndTime), a.DurationMinutes,
		a.OdometerStart, a.OdometerEnd, a.DistanceKm,
		a.SourceFile, a.CardNumber, refs, toUnix(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert activity: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get activity id: %w", err)
	}

	return id, nil
}

// List retrieves a driver's activities with optional filters, ordered by
// start time descending. Date filters match activities contained in the
// window: start_time >= StartDate and end_time <= EndDate.
func (r *ActivityRepository) List(driverID int64, filter models.ActivityFilter) ([]models.DriverActivity, error) {
	query := `SELECT ` + activityColumns + ` FROM driver_activities WHERE driver_id = ?`
	args := []interface{}{driverID}

	var conditions []string
	if filter.StartDate != nil {
		conditions = append(conditions, "start_time >= ?")
		args = append(args, toUnix(*filter.StartDate))
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "end_time <= ?")
		args = append(args, toUnix(*filter.EndDate))
	}
	if filter.ActivityType != nil {
		conditions = append(conditions, "activity_type = ?")
		args = append(args, string(*filter.ActivityType))
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	return collectActivities(rows)
}

// ListIntersecting retrieves a driver's activities whose intervals
// intersect [start, end], ordered by start time ascending. It takes the
// caller's transaction because the fuser rewrites the gps_refs it reads
// here; loading them outside the write lock would let a concurrent
// fusion's commit be overwritten from a stale list.
func (r *ActivityRepository) ListIntersecting(tx *sql.Tx, driverID int64, start, end time.Time) ([]models.DriverActivity, error) {
	rows, err := tx.Query(
		`SELECT `+activityColumns+` FROM driver_activities
		 WHERE driver_id = ? AND start_time <= ? AND end_time >= ?
		 ORDER BY start_time ASC`,
		driverID, toUnix(end), toUnix(start),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query intersecting activities: %w", err)
	}
	defer rows.Close()

	return collectActivities(rows)
}

// GetByID retrieves a single activity by ID, returning nil when it does
// not exist
func (r *ActivityRepository) GetByID(id int64) (*models.DriverActivity, error) {
	row := r.db.QueryRow(`SELECT `+activityColumns+` FROM driver_activities WHERE id = ?`, id)

	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	return a, nil
}

// UpdateGPSRefs replaces the fused GPS reference list of an activity.
// Interval bounds are never touched here.
func (r *ActivityRepository) UpdateGPSRefs(tx *sql.Tx, activityID int64, refs []models.GPSRef) error {
	data, err := marshalGPSRefs(refs)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`UPDATE driver_activities SET gps_refs = ? WHERE id = ?`, data, activityID)
	if err != nil {
		return fmt.Errorf("failed to update gps refs for activity %d: %w", activityID, err)
	}

	return nil
}

func marshalGPSRefs(refs []models.GPSRef) (interface{}, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gps refs: %w", err)
	}
	return string(data), nil
}

func collectActivities(rows *sql.Rows) ([]models.DriverActivity, error) {
	var activities []models.DriverActivity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, *a)
	}

	return activities, rows.Err()
}

func scanActivity(row rowScanner) (*models.DriverActivity, error) {
	var a models.DriverActivity
	var vehicleID sql.NullInt64
	var activityType, source string
	var startTime, endTime, createdAt int64
	var odoStart, odoEnd, distance sql.NullFloat64
	var sourceFile, cardNumber, gpsRefs sql.NullString

	err := row.Scan(
		&a.ID, &a.DriverID, &vehicleID, &activityType, &source,
		&startTime, &endTime, &a.DurationMinutes, &odoStart, &odoEnd, &distance,
		&sourceFile, &cardNumber, &gpsRefs, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	a.VehicleID = fromNullInt(vehicleID)
	a.ActivityType = models.ActivityType(activityType)
	a.Source = models.ActivitySource(source)
	a.StartTime = fromUnix(startTime)
	a.EndTime = fromUnix(endTime)
	a.OdometerStart = fromNullFloat(odoStart)
	a.OdometerEnd = fromNullFloat(odoEnd)
	a.DistanceKm = fromNullFloat(distance)
	a.SourceFile = fromNullString(sourceFile)
	a.CardNumber = fromNullString(cardNumber)
	a.CreatedAt = fromUnix(createdAt)

	if gpsRefs.Valid && gpsRefs.String != "" {
		if err := json.Unmarshal([]byte(gpsRefs.String), &a.GPSRefs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal gps refs: %w", err)
		}
	}

	return &a, nil
}
