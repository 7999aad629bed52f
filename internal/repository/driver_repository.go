package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fleetgrid/fleet-backend-go/internal/models"
)

// DriverRepository handles database operations for drivers
type DriverRepository struct {
	db *sql.DB
}

// NewDriverRepository creates a new driver repository
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{db: db}
}

const driverColumns = `id, name, license_number, card_number, timezone, created_at, updated_at`

// Create inserts a new driver
func (r *DriverRepository) Create(input models.DriverCreate) (*models.Driver, error) {
	tz := input.Timezone
	if tz == "" {
		tz = "UTC"
	}

	now := time.Now().UTC()
	result, err := r.db.Exec(
		`INSERT INTO drivers (name, license_number, card_number, timezone, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		input.Name, input.LicenseNumber, input.CardNumber, tz, toUnix(now), toUnix(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert driver: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get driver id: %w", err)
	}

	return r.GetByID(id)
}

// GetByID retrieves a driver by ID, returning nil when it does not exist
func (r *DriverRepository) GetByID(id int64) (*models.Driver, error) {
	row := r.db.QueryRow(`SELECT `+driverColumns+` FROM drivers WHERE id = ?`, id)

	d, err := scanDriver(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get driver: %w", err)
	}

	return d, nil
}

// List retrieves all drivers ordered by name
func (r *DriverRepository) List() ([]models.Driver, error) {
	rows, err := r.db.Query(`SELECT ` + driverColumns + ` FROM drivers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query drivers: %w", err)
	}
	defer rows.Close()

	var drivers []models.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan driver: %w", err)
		}
		drivers = append(drivers, *d)
	}

	return drivers, rows.Err()
}

// UpdateCardNumber sets the driver's tachograph card number
func (r *DriverRepository) UpdateCardNumber(id int64, cardNumber string) error {
	_, err := r.db.Exec(
		`UPDATE drivers SET card_number = ?, updated_at = ? WHERE id = ?`,
		cardNumber, toUnix(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update driver card number: %w", err)
	}
	return nil
}

func scanDriver(row rowScanner) (*models.Driver, error) {
	var d models.Driver
	var cardNumber sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&d.ID, &d.Name, &d.LicenseNumber, &cardNumber, &d.Timezone, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	d.CardNumber = fromNullString(cardNumber)
	d.CreatedAt = fromUnix(createdAt)
	d.UpdatedAt = fromUnix(updatedAt)

	return &d, nil
}
