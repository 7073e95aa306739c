package shared

import (
	"context"
	"errors"
	"net/http"

	"taxilink/internal/models"
	"taxilink/internal/services"
	"taxilink/internal/utils"
	"taxilink/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideHandler struct {
	rideService services.RideService
	logger      *logger.Logger
}

func NewRideHandler(rideService services.RideService, log *logger.Logger) *RideHandler {
	return &RideHandler{
		rideService: rideService,
		logger:      log,
	}
}

// DestinationStop is deliberately not required at the binding layer: pickups
// have no destination, and the service enforces it for rides.
type createRideRequest struct {
	Type            string `json:"type" binding:"required"`
	StartStop       string `json:"start_stop" binding:"required"`
	DestinationStop string `json:"destination_stop"`
}

// CreateRide handles POST /api/v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req createRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body: "+err.Error())
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	request, err := h.rideService.Create(c.Request.Context(), userID, models.RideType(req.Type), req.StartStop, req.DestinationStop)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	utils.CreatedResponse(c, "Ride request created", request)
}

// AcceptRide handles POST /api/v1/rides/:id/accept
func (h *RideHandler) AcceptRide(c *gin.Context) {
	h.transition(c, h.rideService.Accept, "Ride accepted")
}

// CompleteRide handles POST /api/v1/rides/:id/complete
func (h *RideHandler) CompleteRide(c *gin.Context) {
	h.transition(c, h.rideService.Complete, "Ride completed")
}

// CancelRide handles POST /api/v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	rideRequestID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride request ID")
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	request, err := h.rideService.Cancel(c.Request.Context(), rideRequestID, userID, c.GetString("user_type"))
	if err != nil {
		h.serviceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride cancelled", request)
}

// GetRide handles GET /api/v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	rideRequestID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride request ID")
		return
	}

	request, err := h.rideService.GetByID(c.Request.Context(), rideRequestID)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride retrieved", request)
}

type transitionFunc func(ctx context.Context, rideRequestID, actorID primitive.ObjectID) (*models.RideRequest, error)

func (h *RideHandler) transition(c *gin.Context, apply transitionFunc, message string) {
	rideRequestID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride request ID")
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	request, err := apply(c.Request.Context(), rideRequestID, userID)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	utils.SuccessResponse(c, message, request)
}

func (h *RideHandler) serviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		utils.ErrorResponse(c, http.StatusForbidden, "NOT_OWNER", err.Error())
	case errors.Is(err, services.ErrForbidden):
		utils.ErrorResponse(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		utils.ErrorResponse(c, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, services.ErrNoAvailableTaxi):
		utils.ErrorResponse(c, http.StatusConflict, "NO_AVAILABLE_TAXI", err.Error())
	default:
		h.logger.WithError(err).Error("Ride operation failed")
		utils.InternalServerErrorResponse(c)
	}
}

func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		return primitive.NilObjectID, false
	}
	userID, ok := raw.(primitive.ObjectID)
	return userID, ok
}
