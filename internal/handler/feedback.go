package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"marrfa-assistant/internal/model"
	"marrfa-assistant/internal/repository"
)

// FeedbackLogger records user actions on listings
type FeedbackLogger interface {
	LogFeedback(ctx context.Context, requestID, listingID, action string) error
}

// FeedbackHandler handles feedback-related HTTP requests
type FeedbackHandler struct {
	feedback FeedbackLogger
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(feedback FeedbackLogger) *FeedbackHandler {
	return &FeedbackHandler{
		feedback: feedback,
	}
}

// Submit handles POST /api/v1/feedback
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req model.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	// Validate action
	validActions := map[string]bool{
		"click":        true,
		"contact":      true,
		"view_details": true,
	}

	if !validActions[req.Action] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action. Must be one of: click, contact, view_details"})
		return
	}

	if h.feedback == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Feedback storage is not configured"})
		return
	}

	// Log feedback
	err := h.feedback.LogFeedback(c.Request.Context(), req.RequestID, req.ListingID, req.Action)
	if errors.Is(err, repository.ErrRequestNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown request_id"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log feedback: " + err.Error()})
		return
	}

	response := model.FeedbackResponse{
		Success: true,
		Message: "Feedback logged successfully",
	}

	c.JSON(http.StatusOK, response)
}
