package shared

import (
	"errors"
	"net/http"

	"taxilink/internal/services"
	"taxilink/internal/utils"
	"taxilink/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ChatHandler struct {
	chatService services.ChatService
	logger      *logger.Logger
}

func NewChatHandler(chatService services.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      log,
	}
}

type initiateChatRequest struct {
	RideRequestID string `json:"ride_request_id" binding:"required"`
}

// InitiateChat handles POST /api/v1/chats
func (h *ChatHandler) InitiateChat(c *gin.Context) {
	var req initiateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body: "+err.Error())
		return
	}

	rideRequestID, err := primitive.ObjectIDFromHex(req.RideRequestID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride request ID")
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	session, err := h.chatService.Initiate(c.Request.Context(), rideRequestID, userID)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	utils.CreatedResponse(c, "Chat session ready", session)
}

// GetMessages handles GET /api/v1/chats/:id/messages
func (h *ChatHandler) GetMessages(c *gin.Context) {
	chatSessionID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid chat session ID")
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	messages, err := h.chatService.History(c.Request.Context(), chatSessionID, userID)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Messages retrieved", messages)
}

func (h *ChatHandler) serviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrForbidden):
		utils.ErrorResponse(c, http.StatusForbidden, "NOT_PARTICIPANT", err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		utils.ErrorResponse(c, http.StatusConflict, "NO_DRIVER_ASSIGNED", err.Error())
	default:
		h.logger.WithError(err).Error("Chat operation failed")
		utils.InternalServerErrorResponse(c)
	}
}
