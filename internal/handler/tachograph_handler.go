package handler

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fleetgrid/fleet-backend-go/internal/models"
	"github.com/fleetgrid/fleet-backend-go/internal/service"
	"github.com/fleetgrid/fleet-backend-go/pkg/response"
)

const maxTachographFileSize = 10 * 1024 * 1024 // 10 MB

// TachographHandler handles HTTP requests for driver activities:
// tachograph uploads, manual entries, summaries, and GPS fusion
type TachographHandler struct {
	activityService *service.ActivityService
}

// NewTachographHandler creates a new tachograph handler
func NewTachographHandler(activityService *service.ActivityService) *TachographHandler {
	return &TachographHandler{
		activityService: activityService,
	}
}

// Upload handles POST /api/v1/tachograph/upload (multipart)
func (h *TachographHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "Missing file")
		return
	}

	driverID, err := strconv.ParseInt(c.PostForm("driverId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid driverId")
		return
	}

	var vehicleID *int64
	if v := c.PostForm("vehicleId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.BadRequest(c, "Invalid vehicleId")
			return
		}
		vehicleID = &id
	}

	filename := fileHeader.Filename
	ext := strings.ToLower(filename[strings.LastIndex(filename, ".")+1:])
	if !strings.Contains(filename, ".") || (ext != "ddd" && ext != "tgd") {
		response.BadRequest(c, "Invalid file type. Allowed: .DDD, .TGD")
		return
	}
	if fileHeader.Size > maxTachographFileSize {
		response.BadRequest(c, "File too large. Maximum size: 10 MB")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.InternalError(c, "Failed to read file: "+err.Error())
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		response.InternalError(c, "Failed to read file: "+err.Error())
		return
	}
	if len(content) == 0 {
		response.BadRequest(c, "Empty file")
		return
	}

	result, err := h.activityService.ProcessTachographFile(driverID, vehicleID, filename, content)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, result)
}

// CreateActivity handles POST /api/v1/tachograph/activities
func (h *TachographHandler) CreateActivity(c *gin.Context) {
	var input models.DriverActivityCreate
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, "Invalid activity payload: "+err.Error())
		return
	}

	activity, err := h.activityService.CreateActivity(input)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, activity)
}

// GetActivities handles GET /api/v1/tachograph/activities/:driverId
func (h *TachographHandler) GetActivities(c *gin.Context) {
	driverID, err := strconv.ParseInt(c.Param("driverId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid driver ID")
		return
	}

	var filter models.ActivityFilter
	if v := c.Query("startDate"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(c, "Invalid startDate timestamp, expected RFC3339")
			return
		}
		filter.StartDate = &t
	}
	if v := c.Query("endDate"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(c, "Invalid endDate timestamp, expected RFC3339")
			return
		}
		filter.EndDate = &t
	}
	if v := c.Query("activityType"); v != "" {
		at := models.ActivityType(v)
		filter.ActivityType = &at
	}

	activities, err := h.activityService.GetDriverActivities(driverID, filter)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"data":  activities,
		"count": len(activities),
	})
}

// GetSummary handles GET /api/v1/tachograph/summary/:driverId
func (h *TachographHandler) GetSummary(c *gin.Context) {
	driverID, err := strconv.ParseInt(c.Param("driverId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid driver ID")
		return
	}

	start, end, ok := parseTimeRange(c, "startDate", "endDate")
	if !ok {
		return
	}

	summary, err := h.activityService.GetActivitySummary(driverID, start, end)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, summary)
}

// FuseGPS handles POST /api/v1/tachograph/fuse-gps/:driverId
func (h *TachographHandler) FuseGPS(c *gin.Context) {
	driverID, err := strconv.ParseInt(c.Param("driverId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid driver ID")
		return
	}

	start, end, ok := parseTimeRange(c, "startTime", "endTime")
	if !ok {
		return
	}

	count, err := h.activityService.FuseGPSWithActivities(driverID, start, end)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, models.FusionResult{
		DriverID:               driverID,
		GPSPositionsAssociated: count,
	})
}
