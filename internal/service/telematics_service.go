package service

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fleetgrid/fleet-backend-go/internal/apperrors"
	"github.com/fleetgrid/fleet-backend-go/internal/database"
	"github.com/fleetgrid/fleet-backend-go/internal/models"
	"github.com/fleetgrid/fleet-backend-go/internal/repository"
	"github.com/fleetgrid/fleet-backend-go/internal/spatial"
)

// clockSkewTolerance is how far into the future a reported position
// timestamp may lie before it is rejected. Device clocks drift.
const clockSkewTolerance = time.Minute

// TelematicsService handles GPS position ingestion and vehicle tracking.
// It is the only writer of the vehicle current-state snapshot.
type TelematicsService struct {
	vehicleRepo  *repository.VehicleRepository
	driverRepo   *repository.DriverRepository
	positionRepo *repository.PositionRepository
}

// NewTelematicsService creates a new telematics service
func NewTelematicsService(
	vehicleRepo *repository.VehicleRepository,
	driverRepo *repository.DriverRepository,
	positionRepo *repository.PositionRepository,
) *TelematicsService {
	return &TelematicsService{
		vehicleRepo:  vehicleRepo,
		driverRepo:   driverRepo,
		positionRepo: positionRepo,
	}
}

// IngestPosition persists a single GPS position and applies it to the
// vehicle's snapshot. The snapshot only moves forward: a position older
// than the stored last_seen is kept as an event but does not overwrite
// the current state.
func (s *TelematicsService) IngestPosition(pos models.GPSPositionCreate) (*models.GPSPosition, error) {
	return s.ingest(pos, true)
}

func (s *TelematicsService) ingest(pos models.GPSPositionCreate, updateVehicle bool) (*models.GPSPosition, error) {
	if err := validatePosition(pos); err != nil {
		return nil, err
	}

	vehicle, err := s.vehicleRepo.GetByID(pos.VehicleID)
	if err != nil {
		return nil, apperrors.NewService(err, "failed to load vehicle %d", pos.VehicleID)
	}
	if vehicle == nil {
		return nil, apperrors.NewNotFound("vehicle %d not found", pos.VehicleID)
	}

	if pos.DriverID != nil {
		driver, err := s.driverRepo.GetByID(*pos.DriverID)
		if err != nil {
			return nil, apperrors.NewService(err, "failed to load driver %d", *pos.DriverID)
		}
		if driver == nil {
			return nil, apperrors.NewNotFound("driver %d not found", *pos.DriverID)
		}
	}

	var created *models.GPSPosition
	err = database.Transaction(func(tx *sql.Tx) error {
		id, err := s.positionRepo.Insert(tx, pos)
		if err != nil {
			return err
		}

		if updateVehicle {
			if err := s.vehicleRepo.UpdateSnapshot(tx, pos.VehicleID, pos); err != nil {
				return err
			}
		}

		created = &models.GPSPosition{
			ID:        id,
			VehicleID: pos.VehicleID,
			DriverID:  pos.DriverID,
			Timestamp: pos.Timestamp.UTC().Truncate(time.Second),
			Lat:       pos.Lat,
			Lon:       pos.Lon,
			Speed:     pos.Speed,
			Heading:   pos.Heading,
			Odometer:  pos.Odometer,
			Ignition:  pos.Ignition,
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewService(err, "failed to ingest position for vehicle %d", pos.VehicleID)
	}

	return created, nil
}

// IngestBatch processes each position independently; a failing item is
// collected as an error string and does not abort its siblings. The
// vehicle snapshot is updated at most once per vehicle, with the
// latest-timestamp position that made it through the loop.
func (s *TelematicsService) IngestBatch(positions []models.GPSPositionCreate) *models.IngestionStats {
	stats := &models.IngestionStats{
		TotalReceived: len(positions),
		Errors:        []string{},
	}

	latest := make(map[int64]models.GPSPositionCreate)

	for _, pos := range positions {
		if _, err := s.ingest(pos, false); err != nil {
			stats.Failed++
			if isDomainError(err) {
				stats.Errors = append(stats.Errors, err.Error())
			} else {
				stats.Errors = append(stats.Errors, fmt.Sprintf("unexpected error: %v", err))
			}
			continue
		}
		stats.SuccessfullyProcessed++

		current, ok := latest[pos.VehicleID]
		if !ok || pos.Timestamp.After(current.Timestamp) {
			latest[pos.VehicleID] = pos
		}
	}

	for vehicleID, pos := range latest {
		err := database.Transaction(func(tx *sql.Tx) error {
			return s.vehicleRepo.UpdateSnapshot(tx, vehicleID, pos)
		})
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("failed to update vehicle %d: %v", vehicleID, err))
		}
	}

	return stats
}

// GetVehicleStatus returns a vehicle's current snapshot with its online
// indicator
func (s *TelematicsService) GetVehicleStatus(vehicleID int64) (*models.VehicleStatusView, error) {
	vehicle, err := s.vehicleRepo.GetByID(vehicleID)
	if err != nil {
		return nil, apperrors.NewService(err, "failed to load vehicle %d", vehicleID)
	}
	if vehicle == nil {
		return nil, apperrors.NewNotFound("vehicle %d not found", vehicleID)
	}

	view := statusView(vehicle, time.Now().UTC())
	return &view, nil
}

// ListVehicleStatus returns the status of all vehicles
func (s *TelematicsService) ListVehicleStatus() ([]models.VehicleStatusView, error) {
	vehicles, err := s.vehicleRepo.List()
	if err != nil {
		return nil, apperrors.NewService(err, "failed to list vehicles")
	}

	now := time.Now().UTC()
	views := make([]models.VehicleStatusView, 0, len(vehicles))
	for i := range vehicles {
		views = append(views, statusView(&vehicles[i], now))
	}

	return views, nil
}

// OnlineCounts returns the online/offline split of the fleet
func (s *TelematicsService) OnlineCounts() (*models.OnlineCounts, error) {
	vehicles, err := s.vehicleRepo.List()
	if err != nil {
		return nil, apperrors.NewService(err, "failed to list vehicles")
	}

	counts := &models.OnlineCounts{Total: len(vehicles)}
	now := time.Now().UTC()
	for i := range vehicles {
		if vehicles[i].IsOnline(now) {
			counts.Online++
		}
	}
	counts.Offline = counts.Total - counts.Online

	return counts, nil
}

// GetTrackDistance sums the great-circle distance over a vehicle's
// positions in [start, end]
func (s *TelematicsService) GetTrackDistance(vehicleID int64, start, end time.Time) (*models.TrackDistance, error) {
	vehicle, err := s.vehicleRepo.GetByID(vehicleID)
	if err != nil {
		return nil, apperrors.NewService(err, "failed to load vehicle %d", vehicleID)
	}
	if vehicle == nil {
		return nil, apperrors.NewNotFound("vehicle %d not found", vehicleID)
	}

	positions, err := s.positionRepo.ListByVehicle(vehicleID, start, end)
	if err != nil {
		return nil, apperrors.NewService(err, "failed to load positions for vehicle %d", vehicleID)
	}

	var meters float64
	for i := 1; i < len(positions); i++ {
		meters += spatial.HaversineDistance(
			positions[i-1].Lat, positions[i-1].Lon,
			positions[i].Lat, positions[i].Lon,
		)
	}

	return &models.TrackDistance{
		VehicleID:  vehicleID,
		Start:      start,
		End:        end,
		Positions:  len(positions),
		DistanceKm: meters / 1000,
	}, nil
}

func statusView(v *models.Vehicle, now time.Time) models.VehicleStatusView {
	return models.VehicleStatusView{
		ID:                v.ID,
		RegistrationPlate: v.RegistrationPlate,
		Brand:             v.Brand,
		Model:             v.Model,
		Status:            v.Status,
		IsOnline:          v.IsOnline(now),
		LastSeen:          v.LastSeen,
		CurrentSpeed:      v.CurrentSpeed,
		CurrentHeading:    v.CurrentHeading,
	}
}

func validatePosition(pos models.GPSPositionCreate) error {
	if pos.Timestamp.After(time.Now().UTC().Add(clockSkewTolerance)) {
		return apperrors.NewValidation("timestamp cannot be in the future")
	}
	if pos.Lat < -90 || pos.Lat > 90 {
		return apperrors.NewValidation("latitude must be between -90 and 90: %g", pos.Lat)
	}
	if pos.Lon < -180 || pos.Lon > 180 {
		return apperrors.NewValidation("longitude must be between -180 and 180: %g", pos.Lon)
	}
	if pos.Speed != nil && *pos.Speed < 0 {
		return apperrors.NewValidation("speed must not be negative: %g", *pos.Speed)
	}
	if pos.Heading != nil && (*pos.Heading < 0 || *pos.Heading > 360) {
		return apperrors.NewValidation("heading must be between 0 and 360: %g", *pos.Heading)
	}
	if pos.Odometer != nil && *pos.Odometer < 0 {
		return apperrors.NewValidation("odometer must not be negative: %g", *pos.Odometer)
	}
	return nil
}
