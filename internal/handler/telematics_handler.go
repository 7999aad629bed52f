package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fleetgrid/fleet-backend-go/internal/models"
	"github.com/fleetgrid/fleet-backend-go/internal/service"
	"github.com/fleetgrid/fleet-backend-go/pkg/response"
)

// TelematicsHandler handles HTTP requests for GPS ingestion and vehicle
// status
type TelematicsHandler struct {
	telematicsService *service.TelematicsService
}

// NewTelematicsHandler creates a new telematics handler
func NewTelematicsHandler(telematicsService *service.TelematicsService) *TelematicsHandler {
	return &TelematicsHandler{
		telematicsService: telematicsService,
	}
}

// IngestPosition handles POST /api/v1/telematics/positions
func (h *TelematicsHandler) IngestPosition(c *gin.Context) {
	var pos models.GPSPositionCreate
	if err := c.ShouldBindJSON(&pos); err != nil {
		response.BadRequest(c, "Invalid position payload: "+err.Error())
		return
	}

	created, err := h.telematicsService.IngestPosition(pos)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, created)
}

// IngestBatch handles POST /api/v1/telematics/positions/batch
func (h *TelematicsHandler) IngestBatch(c *gin.Context) {
	var batch models.GPSPositionBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		response.BadRequest(c, "Invalid batch payload: "+err.Error())
		return
	}

	stats := h.telematicsService.IngestBatch(batch.Positions)
	response.Success(c, stats)
}

// Ping handles POST /api/v1/telematics/ping.
// Lightweight device heartbeat: always answers 200 with an ok/error
// payload so constrained devices do not have to interpret status codes.
func (h *TelematicsHandler) Ping(c *gin.Context) {
	now := time.Now().UTC().Format(time.RFC3339)

	var pos models.GPSPositionCreate
	if err := c.ShouldBindJSON(&pos); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "error": "invalid payload", "timestamp": now})
		return
	}

	created, err := h.telematicsService.IngestPosition(pos)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "error": err.Error(), "timestamp": now})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "id": created.ID, "timestamp": now})
}

// GetVehicleStatus handles GET /api/v1/telematics/status/:vehicleId
func (h *TelematicsHandler) GetVehicleStatus(c *gin.Context) {
	vehicleID, err := strconv.ParseInt(c.Param("vehicleId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid vehicle ID")
		return
	}

	status, err := h.telematicsService.GetVehicleStatus(vehicleID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, status)
}

// ListVehicleStatus handles GET /api/v1/telematics/status
func (h *TelematicsHandler) ListVehicleStatus(c *gin.Context) {
	statuses, err := h.telematicsService.ListVehicleStatus()
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, statuses)
}

// OnlineStats handles GET /api/v1/telematics/stats/online
func (h *TelematicsHandler) OnlineStats(c *gin.Context) {
	counts, err := h.telematicsService.OnlineCounts()
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, counts)
}

// GetTrackDistance handles GET /api/v1/telematics/track/:vehicleId/distance
func (h *TelematicsHandler) GetTrackDistance(c *gin.Context) {
	vehicleID, err := strconv.ParseInt(c.Param("vehicleId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid vehicle ID")
		return
	}

	start, end, ok := parseTimeRange(c, "start", "end")
	if !ok {
		return
	}

	distance, err := h.telematicsService.GetTrackDistance(vehicleID, start, end)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, distance)
}

// parseTimeRange reads two required RFC3339 query parameters. On failure
// it writes a 400 response and returns ok=false.
func parseTimeRange(c *gin.Context, startKey, endKey string) (start, end time.Time, ok bool) {
	startStr := c.Query(startKey)
	endStr := c.Query(endKey)
	if startStr == "" || endStr == "" {
		response.BadRequest(c, startKey+" and "+endKey+" query parameters are required")
		return
	}

	var err error
	start, err = time.Parse(time.RFC3339, startStr)
	if err != nil {
		response.BadRequest(c, "Invalid "+startKey+" timestamp, expected RFC3339")
		return
	}
	end, err = time.Parse(time.RFC3339, endStr)
	if err != nil {
		response.BadRequest(c, "Invalid "+endKey+" timestamp, expected RFC3339")
		return
	}

	return start, end, true
}
