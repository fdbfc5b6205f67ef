package controllers

import (
	"io"
	"net/http"
	"strings"

	"backend/services"
	"backend/utils"

	"github.com/gin-gonic/gin"
)

type ImageController struct {
	conv *services.ConversationService
}

func NewImageController(conv *services.ConversationService) *ImageController {
	return &ImageController{conv: conv}
}

// PostAnalyze handles a food photo, either as a multipart "image" file or as
// JSON {"image_base64": ...} (raw base64 or data URI). A photo always creates
// a new log entry.
func (ic *ImageController) PostAnalyze(c *gin.Context) {
	image, err := readImage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := ic.conv.HandleImage(c.Request.Context(), image)
	if err != nil {
		respondConversationError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func readImage(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, _, err := c.Request.FormFile("image")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	var body struct {
		ImageBase64 string `json:"image_base64" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, err
	}
	return utils.DecodeImagePayload(body.ImageBase64)
}
