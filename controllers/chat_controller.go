package controllers

import (
	"errors"
	"net/http"

	"backend/services"

	"github.com/gin-gonic/gin"
)

type ChatController struct {
	conv *services.ConversationService
}

func NewChatController(conv *services.ConversationService) *ChatController {
	return &ChatController{conv: conv}
}

// PostChat handles one free-form text message. The inference service decides
// whether it adds, updates, or deletes a log entry.
func (cc *ChatController) PostChat(c *gin.Context) {
	var body struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := cc.conv.HandleChat(c.Request.Context(), body.Message)
	if err != nil {
		respondConversationError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func respondConversationError(c *gin.Context, err error) {
	var ve *services.ValidationError
	switch {
	case errors.Is(err, services.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
