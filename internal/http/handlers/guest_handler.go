// Guest and persona HTTP handlers.
//
// This file exposes:
//   - POST /guest/message (advance the guest state machine)
//   - GET  /guest/state   (read it without mutating)
//   - GET  /personas      (registry listing for clients)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-fortune-backend/internal/guest"
)

// GuestMessageRequest records one guest turn against the session buffer.
// Role defaults to "user"; assistant turns are buffered but do not count
// toward the free-message limit.
type GuestMessageRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Character string `json:"character" binding:"required" example:"kaede"`
	Role      string `json:"role" example:"user"`
	Content   string `json:"content" binding:"required"`
}

// GuestMessage godoc
// @ID          guestMessage
// @Summary     Record a guest message
// @Description Buffers one guest turn and returns the updated counter, limit, and registration-prompt flags. The prompt guidance is surfaced exactly once per session.
// @Tags        Guest
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.GuestMessageRequest  true  "Guest turn"
//
// @Success     200  {object}  guest.Snapshot
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /guest/message [post]
func (h *Handlers) GuestMessage(c *gin.Context) {
	var req GuestMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	role := req.Role
	if role == "" {
		role = "user"
	}

	snap, err := h.guests.Record(c.Request.Context(), req.SessionID, req.Character, role, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, guest.ErrUnknownPersona),
			errors.Is(err, guest.ErrEmptyMessage),
			errors.Is(err, guest.ErrInvalidRole):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to record guest message")
		}
		return
	}

	ok(c, http.StatusOK, snap)
}

// GuestState godoc
// @ID          guestState
// @Summary     Read guest state
// @Description Returns the current guest snapshot without recording anything. Absent sessions read as fresh.
// @Tags        Guest
// @Produce     json
//
// @Param       sessionId  query  string  true  "Guest session id"
// @Param       character  query  string  true  "Persona id"
//
// @Success     200  {object}  guest.Snapshot
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Router      /guest/state [get]
func (h *Handlers) GuestState(c *gin.Context) {
	sessionID := c.Query("sessionId")
	characterID := c.Query("character")
	if sessionID == "" || characterID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sessionId and character are required")
		return
	}

	snap, err := h.guests.Peek(c.Request.Context(), sessionID, characterID)
	if err != nil {
		if errors.Is(err, guest.ErrUnknownPersona) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown persona")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to read guest state")
		return
	}
	ok(c, http.StatusOK, snap)
}

// ListPersonas godoc
// @ID          listPersonas
// @Summary     List personas
// @Description Returns the fixed persona catalog: id, display name, title, and registration guidance.
// @Tags        Personas
// @Produce     json
//
// @Success     200  {object}  map[string]any
// @Router      /personas [get]
func (h *Handlers) ListPersonas(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"personas": h.personas.List()})
}
