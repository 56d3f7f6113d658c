// Feedback HTTP handlers.
//
// Exposes POST /chat/messages/:id/feedback for rating assistant messages.
// The payload carries a 1-5 score; the service maps it to up/down and
// snapshots the conversation's service context at submission time.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-chat-gateway/internal/services"
)

// LeaveFeedbackRequest is the JSON payload for submitting feedback. The
// target message is addressed in the URL path.
type LeaveFeedbackRequest struct {
	// Rating is a 1-5 score; 4 and above counts as positive. Range
	// enforcement lives in the service so out-of-range values answer 422.
	Rating int `json:"rating" binding:"required" minimum:"1" maximum:"5" example:"4"`
	// Comment optionally explains the rating.
	Comment string `json:"comment,omitempty" example:"Cited the wrong section"`
}

// FeedbackResponse echoes the stored feedback.
type FeedbackResponse struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
	Rating    string `json:"rating"`
	Comment   string `json:"comment,omitempty"`
}

// LeaveFeedback godoc
// @ID          leaveFeedback
// @Summary     Rate an assistant message
// @Description Records a 1-5 rating (stored as up or down) with an optional comment. Repeated submissions for the same message overwrite the previous rating.
// @Tags        Feedback
// @Accept      json
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer token"
// @Param       id             path    string  true  "Assistant message ID (UUID)"
// @Param       body           body    handlers.LeaveFeedbackRequest  true  "Feedback payload"
//
// @Success     201  {object} handlers.FeedbackResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Message not found"
// @Failure     422  {object} handlers.ErrorResponse "Validation failed"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chat/messages/{id}/feedback [post]
func (h *Handlers) LeaveFeedback(c *gin.Context) {
	messageID := c.Param("id")
	if _, err := uuid.Parse(messageID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message id must be a UUID")
		return
	}
	var req LeaveFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	fb, err := h.fbSvc.Leave(c.Request.Context(), messageID, req.Rating, strings.TrimSpace(req.Comment))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMessageNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
		case errors.Is(err, services.ErrInvalidRating),
			errors.Is(err, services.ErrForbiddenFeedback):
			fail(c, http.StatusUnprocessableEntity, ErrCodeValidation,
				"feedback requires a 1-5 rating on an assistant message")
		default:
			failInternal(c, ErrCodeFeedbackFailed, err)
		}
		return
	}

	ok(c, http.StatusCreated, FeedbackResponse{
		ID:        fb.ID,
		MessageID: fb.MessageID,
		Rating:    fb.Rating,
		Comment:   fb.Comment,
	})
}
