package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fleetgrid/fleet-backend-go/internal/models"
	"github.com/fleetgrid/fleet-backend-go/internal/repository"
	"github.com/fleetgrid/fleet-backend-go/pkg/response"
)

// DriverHandler handles HTTP requests for driver records
type DriverHandler struct {
	driverRepo *repository.DriverRepository
}

// NewDriverHandler creates a new driver handler
func NewDriverHandler(driverRepo *repository.DriverRepository) *DriverHandler {
	return &DriverHandler{driverRepo: driverRepo}
}

// Create handles POST /api/v1/drivers
func (h *DriverHandler) Create(c *gin.Context) {
	var input models.DriverCreate
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, "Invalid driver payload: "+err.Error())
		return
	}

	driver, err := h.driverRepo.Create(input)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			response.Conflict(c, "Driver with this license or card number already exists")
			return
		}
		response.InternalError(c, err.Error())
		return
	}

	response.Created(c, driver)
}

// List handles GET /api/v1/drivers
func (h *DriverHandler) List(c *gin.Context) {
	drivers, err := h.driverRepo.List()
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"data":  drivers,
		"count": len(drivers),
	})
}

// GetByID handles GET /api/v1/drivers/:id
func (h *DriverHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid driver ID")
		return
	}

	driver, err := h.driverRepo.GetByID(id)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	if driver == nil {
		response.NotFound(c, "Driver not found")
		return
	}

	response.Success(c, driver)
}
