// Chat HTTP handler.
//
// This file exposes the persona reply endpoint:
//   - POST /chat (append the user's turn, generate the persona's answer,
//     persist both, return the assistant message)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-fortune-backend/internal/services"
)

// ChatRequest is the JSON payload for a persona exchange.
type ChatRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Character string `json:"character" binding:"required" example:"kaede"`
	Message   string `json:"message" binding:"required"`
}

// ChatResponse returns the persisted assistant reply.
type ChatResponse struct {
	Success bool                `json:"success"`
	Reply   ConversationMessage `json:"reply"`
}

// Chat godoc
// @ID          chat
// @Summary     Ask a persona
// @Description Stores the user's message, generates the persona's reply with the user's profile woven into the prompt, stores it, and returns the assistant turn.
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ChatRequest  true  "Chat payload"
//
// @Success     200  {object}  handlers.ChatResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown session"
// @Failure     502  {object}  handlers.ErrorResponse  "All providers failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	row, err := h.answerSvc.Answer(c.Request.Context(), req.SessionID, req.Character, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCharacter), errors.Is(err, services.ErrEmptyMessage):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrSessionNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "unknown session")
		case errors.Is(err, services.ErrAnswerFailed):
			fail(c, http.StatusBadGateway, ErrCodeAnswerFailed, "could not generate a reply")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "chat failed")
		}
		return
	}

	ok(c, http.StatusOK, ChatResponse{
		Success: true,
		Reply: ConversationMessage{
			ID:          row.ID,
			Role:        row.Role,
			Content:     row.Message,
			MessageType: row.MessageType,
			Timestamp:   row.Timestamp,
		},
	})
}
