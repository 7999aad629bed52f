package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fleetgrid/fleet-backend-go/internal/models"
	"github.com/fleetgrid/fleet-backend-go/internal/repository"
	"github.com/fleetgrid/fleet-backend-go/pkg/response"
)

// VehicleHandler handles HTTP requests for vehicle records. Plain data
// access; the telematics service owns all snapshot writes, and there is
// no delete path.
type VehicleHandler struct {
	vehicleRepo *repository.VehicleRepository
}

// NewVehicleHandler creates a new vehicle handler
func NewVehicleHandler(vehicleRepo *repository.VehicleRepository) *VehicleHandler {
	return &VehicleHandler{vehicleRepo: vehicleRepo}
}

// Create handles POST /api/v1/vehicles
func (h *VehicleHandler) Create(c *gin.Context) {
	var input models.VehicleCreate
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, "Invalid vehicle payload: "+err.Error())
		return
	}

	if input.Status != "" && !input.Status.Valid() {
		response.BadRequest(c, "Unknown vehicle status: "+string(input.Status))
		return
	}

	vehicle, err := h.vehicleRepo.Create(input)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			response.Conflict(c, "Vehicle with this registration plate or VIN already exists")
			return
		}
		response.InternalError(c, err.Error())
		return
	}

	response.Created(c, vehicle)
}

// List handles GET /api/v1/vehicles
func (h *VehicleHandler) List(c *gin.Context) {
	vehicles, err := h.vehicleRepo.List()
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"data":  vehicles,
		"count": len(vehicles),
	})
}

// GetByID handles GET /api/v1/vehicles/:id
func (h *VehicleHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid vehicle ID")
		return
	}

	vehicle, err := h.vehicleRepo.GetByID(id)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	if vehicle == nil {
		response.NotFound(c, "Vehicle not found")
		return
	}

	response.Success(c, vehicle)
}
