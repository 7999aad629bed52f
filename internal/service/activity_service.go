package service

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fleetgrid/fleet-backend-go/internal/apperrors"
	"github.com/fleetgrid/fleet-backend-go/internal/database"
	"github.com/fleetgrid/fleet-backend-go/internal/models"
	"github.com/fleetgrid/fleet-backend-go/internal/repository"
	"github.com/fleetgrid/fleet-backend-go/internal/tachograph"
)

// Daily driving limits in hours. Strictly-greater comparisons: exactly
// 9.0h or 10.0h is still compliant.
const (
	maxDailyDrivingHours      = 10.0
	extendedDailyDrivingHours = 9.0
)

// ActivityService manages driver activity intervals: storage with
// overlap detection, compliance summaries, and fusion of GPS positions
// into activities.
type ActivityService struct {
	driverRepo   *repository.DriverRepository
	activityRepo *repository.ActivityRepository
	positionRepo *repository.PositionRepository
	extractor    tachograph.Extractor
}

// NewActivityService creates a new activity service
func NewActivityService(
	driverRepo *repository.DriverRepository,
	activityRepo *repository.ActivityRepository,
	positionRepo *repository.PositionRepository,
	extractor tachograph.Extractor,
) *ActivityService {
	return &ActivityService{
		driverRepo:   driverRepo,
		activityRepo: activityRepo,
		positionRepo: positionRepo,
		extractor:    extractor,
	}
}

// CreateActivity stores a single activity after checking that it does
// not overlap any of the driver's existing intervals. The check and the
// insert run in one write transaction: two concurrent submissions with
// intersecting windows cannot both pass.
func (s *ActivityService) CreateActivity(input models.DriverActivityCreate) (*models.DriverActivity, error) {
	if err := validateActivityInput(&input); err != nil {
		return nil, err
	}

	driver, err := s.driverRepo.GetByID(input.DriverID)
	if err != nil {
		return nil, apperrors.NewService(err, "failed to load driver %d", input.DriverID)
	}
	if driver == nil {
		return nil, apperrors.NewNotFound("driver %d not found", input.DriverID)
	}

	var id int64
	err = database.WriteTransaction(func(tx *sql.Tx) error {
		existing, err := s.activityRepo.FindOverlapping(tx, input.DriverID, input.StartTime, input.EndTime)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.NewConflict(
				"activity overlaps with existing activity from %s to %s",
				existing.StartTime.Format(time.RFC3339), existing.EndTime.Format(time.RFC3339))
		}

		id, err = s.activityRepo.Insert(tx, &models.DriverActivity{
			DriverID:        input.DriverID,
			VehicleID:       input.VehicleID,
			ActivityType:    input.ActivityType,
			Source:          input.Source,
			StartTime:       input.StartTime,
			EndTime:         input.EndTime,
			DurationMinutes: input.DurationMinutes,
			OdometerStart:   input.OdometerStart,
			OdometerEnd:     input.OdometerEnd,
			DistanceKm:      input.DistanceKm,
			SourceFile:      input.SourceFile,
			CardNumber:      input.CardNumber,
		})
		return err
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, apperrors.NewService(err, "failed to create activity for driver %d", input.DriverID)
	}

	activity, err := s.activityRepo.GetByID(id)
	if err != nil {
		return nil, apperrors.NewService(err, "failed to load created activity %d", id)
	}

	return activity, nil
}

// StoreExtracted stores the extractor's records for one driver. A record
// whose bounds and type match an existing interval exactly is a harmless
// re-submission and is skipped; a record that merely overlaps is also
// skipped, since merging partially-overlapping intervals is not
// implemented. Records violating the extractor contract are collected as
// error strings and never abort the rest of the batch.
func (s *ActivityService) StoreExtracted(
	driverID int64,
	result tachograph.ParseResult,
	sourceFile string,
	vehicleID *int64,
) (created, skipped int, errs []string, err error) {
	driver, derr := s.driverRepo.GetByID(driverID)
	if derr != nil {
		return 0, 0, nil, apperrors.NewService(derr, "failed to load driver %d", driverID)
	}
	if driver == nil {
		return 0, 0, nil, apperrors.NewNotFound("driver %d not found", driverID)
	}

	err = database.WriteTransaction(func(tx *sql.Tx) error {
		for _, rec := range result.Activities {
			if verr := tachograph.ValidateRecord(rec); verr != nil {
				errs = append(errs, verr.Error())
				continue
			}

			existing, ferr := s.activityRepo.FindOverlapping(tx, driverID, rec.StartTime, rec.EndTime)
			if ferr != nil {
				return ferr
			}
			if existing != nil {
				// compare at storage granularity (unix seconds)
				if existing.StartTime.Unix() == rec.StartTime.Unix() &&
					existing.EndTime.Unix() == rec.EndTime.Unix() &&
					existing.ActivityType == rec.ActivityType {
					// exact duplicate re-submission
					skipped++
					continue
				}
				// Partial overlap: skipped. Merging overlapping
				// intervals is a known unimplemented capability.
				skipped++
				continue
			}

			_, ierr := s.activityRepo.Insert(tx, &models.DriverActivity{
				DriverID:        driverID,
				VehicleID:       vehicleID,
				ActivityType:    rec.ActivityType,
				Source:          models.SourceTachograph,
				StartTime:       rec.StartTime,
				EndTime:         rec.EndTime,
				DurationMinutes: rec.DurationMinutes,
				OdometerStart:   rec.OdometerStart,
				OdometerEnd:     rec.OdometerEnd,
				DistanceKm:      rec.DistanceKm,
				SourceFile:      &sourceFile,
				CardNumber:      result.CardNumber,
			})
			if ierr != nil {
				return ierr
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, 0, errs, apperrors.NewService(err, "failed to store extracted activities for driver %d", driverID)
	}

	return created, skipped, errs, nil
}

// ProcessTachographFile runs the upload flow: extract, store, backfill
// the driver's card number when it was unknown
func (s *ActivityService) ProcessTachographFile(
	driverID int64,
	vehicleID *int64,
	filename string,
	content []byte,
) (*tachograph.UploadResult, error) {
	driver, err := s.driverRepo.GetByID(driverID)
	if err != nil {
		return nil, apperrors.NewService(err, "failed to load driver %d", driverID)
	}
	if driver == nil {
		return nil, apperrors.NewNotFound("driver %d not found", driverID)
	}

	parseResult := s.extractor.Parse(content, filename)
	if !parseResult.Success {
		return &tachograph.UploadResult{
			Success:     false,
			Filename:    filename,
			DriverID:    driverID,
			ParseResult: parseResult,
			Errors:      parseResult.Errors,
		}, nil
	}

	created, skipped, errs, err := s.StoreExtracted(driverID, parseResult, filename, vehicleID)
	if err != nil {
		return nil, err
	}

	if parseResult.CardNumber != nil && driver.CardNumber == nil {
		if err := s.driverRepo.UpdateCardNumber(driverID, *parseResult.CardNumber); err != nil {
			errs = append(errs, fmt.Sprintf("failed to update driver card number: %v", err))
		}
	}

	if errs == nil {
		errs = []string{}
	}

	return &tachograph.UploadResult{
		Success:           true,
		Filename:          filename,
		DriverID:          driverID,
		ActivitiesCreated: created,
		ActivitiesSkipped: skipped,
		ParseResult:       parseResult,
		Errors:            errs,
	}, nil
}

// GetDriverActivities retrieves a driver's activities with optional
// filters, newest first
func (s *ActivityService) GetDriverActivities(driverID int64, filter models.ActivityFilter) ([]models.DriverActivity, error) {
	if filter.ActivityType != nil && !filter.ActivityType.Valid() {
		return nil, apperrors.NewValidation("unknown activity type: %s", *filter.ActivityType)
	}

	activities, err := s.activityRepo.List(driverID, filter)
	if err != nil {
		return nil, apperrors.NewService(err, "failed to list activities for driver %d", driverID)
	}

	return activities, nil
}

// GetActivitySummary aggregates a driver's activities over a period into
// compliance figures and violation messages
func (s *ActivityService) GetActivitySummary(driverID int64, start, end time.Time) (*models.ActivitySummary, error) {
	driver, err := s.driverRepo.GetByID(driverID)
	if err != nil {
		return nil, apperrors.NewService(err, "failed to load driver %d", driverID)
	}
	if driver == nil {
		return nil, apperrors.NewNotFound("driver %d not found", driverID)
	}

	activities, err := s.activityRepo.List(driverID, models.ActivityFilter{
		StartDate: &start,
		EndDate:   &end,
	})
	if err != nil {
		return nil, apperrors.NewService(err, "failed to list activities for driver %d", driverID)
	}

	var drivingMinutes, restMinutes, workMinutes int
	var distance float64
	for i := range activities {
		a := &activities[i]
		switch a.ActivityType {
		case models.ActivityDriving:
			drivingMinutes += a.DurationMinutes
		case models.ActivityRest, models.ActivityBreak:
			restMinutes += a.DurationMinutes
		case models.ActivityWork:
			workMinutes += a.DurationMinutes
		}
		if a.DistanceKm != nil {
			distance += *a.DistanceKm
		}
	}

	drivingHours := float64(drivingMinutes) / 60

	violations := []string{}
	if drivingHours > maxDailyDrivingHours {
		violations = append(violations, fmt.Sprintf("Exceeded maximum daily driving limit: %.1fh", drivingHours))
	} else if drivingHours > extendedDailyDrivingHours {
		violations = append(violations, fmt.Sprintf("Extended daily driving: %.1fh (max 2x/week)", drivingHours))
	}

	return &models.ActivitySummary{
		DriverID:     driverID,
		DriverName:   driver.Name,
		PeriodStart:  start,
		PeriodEnd:    end,
		DrivingHours: drivingHours,
		RestHours:    float64(restMinutes) / 60,
		WorkHours:    float64(workMinutes) / 60,
		DistanceKm:   distance,
		Violations:   violations,
	}, nil
}

// FuseGPSWithActivities attaches each of the driver's GPS positions in
// [start, end] to the first activity whose bounds contain its timestamp.
// At most one association per position, and a position already present
// in an activity's reference list is not appended again, so repeated
// invocations over overlapping ranges stay idempotent.
//
// Containment is inclusive on both ends: two adjacent intervals sharing
// an exact boundary instant can both contain a position at that instant,
// in which case the earlier interval wins.
func (s *ActivityService) FuseGPSWithActivities(driverID int64, start, end time.Time) (int, error) {
	positions, err := s.positionRepo.ListByDriver(driverID, start, end)
	if err != nil {
		return 0, apperrors.NewService(err, "failed to list positions for driver %d", driverID)
	}
	if len(positions) == 0 {
		return 0, nil
	}

	// Reference lists are read and rewritten under the same write lock.
	// A fusion over an overlapping window cannot load a list, lose the
	// race, and then overwrite the winner's associations.
	associated := 0
	err = database.WriteTransaction(func(tx *sql.Tx) error {
		associated = 0
		activities, err := s.activityRepo.ListIntersecting(tx, driverID, start, end)
		if err != nil {
			return err
		}
		if len(activities) == 0 {
			return nil
		}

		dirty := make(map[int64]bool)
		for i := range positions {
			pos := &positions[i]
			for j := range activities {
				a := &activities[j]
				if pos.Timestamp.Before(a.StartTime) || pos.Timestamp.After(a.EndTime) {
					continue
				}
				if !containsGPSRef(a.GPSRefs, pos.ID) {
					a.GPSRefs = append(a.GPSRefs, models.GPSRef{GPSID: pos.ID, Timestamp: pos.Timestamp})
					dirty[a.ID] = true
					associated++
				}
				break
			}
		}

		for i := range activities {
			a := &activities[i]
			if !dirty[a.ID] {
				continue
			}
			if err := s.activityRepo.UpdateGPSRefs(tx, a.ID, a.GPSRefs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.NewService(err, "failed to store gps associations for driver %d", driverID)
	}

	return associated, nil
}

func containsGPSRef(refs []models.GPSRef, gpsID int64) bool {
	for _, ref := range refs {
		if ref.GPSID == gpsID {
			return true
		}
	}
	return false
}

func validateActivityInput(input *models.DriverActivityCreate) error {
	if !input.ActivityType.Valid() {
		return apperrors.NewValidation("unknown activity type: %s", input.ActivityType)
	}
	if input.Source == "" {
		input.Source = models.SourceTachograph
	}
	if !input.Source.Valid() {
		return apperrors.NewValidation("unknown activity source: %s", input.Source)
	}
	if !input.EndTime.After(input.StartTime) {
		return apperrors.NewValidation(
			"activity end time %s must be after start time %s",
			input.EndTime.Format(time.RFC3339), input.StartTime.Format(time.RFC3339))
	}
	if input.DurationMinutes < 0 {
		return apperrors.NewValidation("activity duration must not be negative: %d", input.DurationMinutes)
	}
	return nil
}
