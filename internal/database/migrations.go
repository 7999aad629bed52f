package database

import (
	"database/sql"
	"fmt"
	"log"
	"sort"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations holds the schema history. Versions are applied in order and
// recorded in the migrations table; already applied versions are skipped.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "001_initial_migration",
		SQL: `
			CREATE TABLE IF NOT EXISTS vehicles (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				registration_plate TEXT NOT NULL UNIQUE,
				vin TEXT NOT NULL UNIQUE,
				brand TEXT NOT NULL,
				model TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'ACTIVE',
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			);

			CREATE TABLE IF NOT EXISTS drivers (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				license_number TEXT NOT NULL UNIQUE,
				card_number TEXT UNIQUE,
				timezone TEXT NOT NULL DEFAULT 'UTC',
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			);
		`,
	},
	{
		Version: 2,
		Name:    "002_add_telematics_and_activities",
		SQL: `
			ALTER TABLE vehicles ADD COLUMN last_seen INTEGER;
			ALTER TABLE vehicles ADD COLUMN current_lat REAL;
			ALTER TABLE vehicles ADD COLUMN current_lon REAL;
			ALTER TABLE vehicles ADD COLUMN current_speed REAL;
			ALTER TABLE vehicles ADD COLUMN current_heading REAL;
			ALTER TABLE vehicles ADD COLUMN total_odometer REAL;

			CREATE TABLE IF NOT EXISTS gps_positions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				vehicle_id INTEGER NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
				driver_id INTEGER REFERENCES drivers(id) ON DELETE SET NULL,
				timestamp INTEGER NOT NULL,
				lat REAL NOT NULL,
				lon REAL NOT NULL,
				speed REAL,
				heading REAL,
				odometer REAL,
				ignition INTEGER NOT NULL DEFAULT 0
			);

			CREATE INDEX IF NOT EXISTS idx_gps_vehicle_timestamp ON gps_positions(vehicle_id, timestamp);
			CREATE INDEX IF NOT EXISTS idx_gps_driver_timestamp ON gps_positions(driver_id, timestamp);

			CREATE TABLE IF NOT EXISTS driver_activities (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				driver_id INTEGER NOT NULL REFERENCES drivers(id) ON DELETE CASCADE,
				vehicle_id INTEGER REFERENCES vehicles(id) ON DELETE SET NULL,
				activity_type TEXT NOT NULL,
				source TEXT NOT NULL DEFAULT 'TACHOGRAPH',
				start_time INTEGER NOT NULL,
				end_time INTEGER NOT NULL,
				duration_minutes INTEGER NOT NULL,
				odometer_start REAL,
				odometer_end REAL,
				distance_km REAL,
				source_file TEXT,
				card_number TEXT,
				gps_refs TEXT,
				created_at INTEGER NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_activity_driver_time ON driver_activities(driver_id, start_time, end_time);
			CREATE INDEX IF NOT EXISTS idx_activity_time_range ON driver_activities(start_time, end_time);
			CREATE INDEX IF NOT EXISTS idx_activity_card ON driver_activities(card_number, start_time);
		`,
	},
}

// MigrationManager manages database migrations
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// InitMigrationsTable creates the migrations tracking table
func (m *MigrationManager) InitMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := m.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns a list of applied migration versions
func (m *MigrationManager) GetAppliedMigrations() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}

	return applied, nil
}

// ApplyMigration applies a single migration
func (m *MigrationManager) ApplyMigration(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	// Execute migration SQL
	_, err = tx.Exec(migration.SQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
	}

	// Record migration
	_, err = tx.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", migration.Version, migration.Name)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}

	log.Printf("Applied migration %d: %s", migration.Version, migration.Name)
	return nil
}

// RunMigrations runs all pending migrations
func (m *MigrationManager) RunMigrations() error {
	// Initialize migrations table
	if err := m.InitMigrationsTable(); err != nil {
		return err
	}

	// Get applied migrations
	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return err
	}

	pending := make([]Migration, len(migrations))
	copy(pending, migrations)
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Version < pending[j].Version
	})

	// Apply pending migrations
	for _, migration := range pending {
		if applied[migration.Version] {
			continue
		}

		if err := m.ApplyMigration(migration); err != nil {
			return err
		}
	}

	log.Println("All migrations applied successfully")
	return nil
}
