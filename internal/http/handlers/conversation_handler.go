// Conversation HTTP handlers.
//
// This file exposes the stored-conversation endpoints:
//   - POST /conversation         (append one turn)
//   - GET  /conversation         (read log, ETag support)
//   - GET  /last-conversations   (per-persona recency dashboard, token auth)
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-fortune-backend/internal/domain"
	"github.com/tbourn/go-fortune-backend/internal/http/middleware"
	"github.com/tbourn/go-fortune-backend/internal/repo"
	"github.com/tbourn/go-fortune-backend/internal/services"
	"github.com/tbourn/go-fortune-backend/internal/utils"
)

//
// DTOs
//

// AppendConversationRequest is the JSON payload for storing one turn.
//
// IsGuestMessage marks turns that belong to a guest buffer; those are never
// persisted server-side and the request is rejected so a buggy client cannot
// leak guest history into the store.
type AppendConversationRequest struct {
	SessionID      string `json:"sessionId"`
	Character      string `json:"character" binding:"required" example:"kaede"`
	Role           string `json:"role" binding:"required" example:"user"`
	Content        string `json:"content" binding:"required"`
	MessageType    string `json:"messageType" example:"normal"`
	IsGuestMessage bool   `json:"isGuestMessage"`
}

// ConversationMessage is the wire shape of one stored turn.
type ConversationMessage struct {
	ID          uint      `json:"id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	MessageType string    `json:"messageType"`
	Timestamp   time.Time `json:"timestamp"`
}

// ConversationHistoryResponse wraps a conversation read.
type ConversationHistoryResponse struct {
	Success    bool                  `json:"success"`
	Messages   []ConversationMessage `json:"messages"`
	HasHistory bool                  `json:"hasHistory"`
}

// LastConversationsResponse is the per-persona recency view for a user.
type LastConversationsResponse struct {
	LastConversations map[string]*time.Time `json:"lastConversations"`
	Nickname          string                `json:"nickname"`
}

func toWireMessages(rows []domain.Conversation) []ConversationMessage {
	out := make([]ConversationMessage, 0, len(rows))
	for _, r := range rows {
		out = append(out, ConversationMessage{
			ID:          r.ID,
			Role:        r.Role,
			Content:     r.Message,
			MessageType: r.MessageType,
			Timestamp:   r.Timestamp,
		})
	}
	return out
}

//
// Handlers
//

// AppendConversation godoc
// @ID          appendConversation
// @Summary     Store one conversation turn
// @Description Appends a message to the (user, persona) log, evicting the oldest rows beyond the retention cap in the same transaction.
// @Tags        Conversations
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false  "Client-generated key for safe retries"
// @Param       body             body    handlers.AppendConversationRequest  true  "Turn payload"
//
// @Success     200  {object}  map[string]any
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing session"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown session"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversation [post]
func (h *Handlers) AppendConversation(c *gin.Context) {
	var req AppendConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" && !req.IsGuestMessage {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "sessionId is required")
		return
	}

	// Serve a detected replay from the stored record instead of re-appending.
	if middleware.IsReplay(c) && h.db != nil {
		if key, found := middleware.GetIdempotencyKey(c); found {
			rec, err := repo.GetIdempotency(c.Request.Context(), h.db, req.SessionID, req.Character, key, time.Now().UTC())
			if err == nil && rec != nil {
				ok(c, rec.Status, gin.H{"success": true, "messageId": utils.AtoiDefault(rec.MessageID, 0), "replayed": true})
				return
			}
		}
	}

	row, err := h.histSvc.Append(c.Request.Context(), req.SessionID, req.Character, req.Role, req.Content, req.MessageType, req.IsGuestMessage)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrGuestMessage):
			// Guest turns live only in the session buffer. Acknowledge the
			// request without persisting; no messageId is assigned.
			ok(c, http.StatusOK, gin.H{"success": true})
		case errors.Is(err, services.ErrInvalidCharacter),
			errors.Is(err, services.ErrInvalidRole),
			errors.Is(err, services.ErrInvalidMessageType),
			errors.Is(err, services.ErrEmptyMessage):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrSessionNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "unknown session")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to store message")
		}
		return
	}

	// Record the outcome so retries carrying the same key replay instead of
	// appending twice. Best effort; a racing duplicate insert is harmless.
	if key, found := middleware.GetIdempotencyKey(c); found && h.db != nil {
		_, _ = repo.CreateIdempotency(c.Request.Context(), h.db, req.SessionID, req.Character, key,
			strconv.FormatUint(uint64(row.ID), 10), http.StatusOK, h.idemTTL)
	}

	ok(c, http.StatusOK, gin.H{"success": true, "messageId": row.ID})
}

// GetConversation godoc
// @ID          getConversation
// @Summary     Read a conversation log
// @Description Returns the stored (user, persona) log oldest-first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Conversations
// @Produce     json
//
// @Param       sessionId      query   string  true   "Session id"
// @Param       character      query   string  true   "Persona id"
// @Param       limit          query   int     false  "Max rows (default 100)"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
//
// @Success     200  {object}  handlers.ConversationHistoryResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown session"
// @Router      /conversation [get]
func (h *Handlers) GetConversation(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Query("sessionId")
	characterID := c.Query("character")
	if sessionID == "" || characterID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sessionId and character are required")
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), 0)

	// ETag pre-check (best effort).
	if h.db != nil {
		if u, err := h.userSvc.ResolveSession(ctx, sessionID); err == nil {
			if count, maxTS, err := repo.ConversationStats(ctx, h.db, u.ID, characterID); err == nil {
				var ts int64
				if maxTS != nil {
					ts = maxTS.Unix()
				}
				etag := fmt.Sprintf(`W/"conv:%d:%s:%d:%d"`, u.ID, characterID, count, ts)
				c.Header("ETag", etag)
				if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
					c.Status(http.StatusNotModified)
					return
				}
			}
		}
	}

	rows, hasHistory, err := h.histSvc.History(ctx, sessionID, characterID, limit)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCharacter):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown persona")
		case errors.Is(err, services.ErrSessionNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "unknown session")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to read conversation")
		}
		return
	}

	ok(c, http.StatusOK, ConversationHistoryResponse{
		Success:    true,
		Messages:   toWireMessages(rows),
		HasHistory: hasHistory,
	})
}

// LastConversations godoc
// @ID          lastConversations
// @Summary     Per-persona last activity
// @Description Returns the most recent conversation timestamp for each persona (null when the user never talked to one). The caller identifies via a signed user token.
// @Tags        Conversations
// @Produce     json
//
// @Param       userToken  query  string  true  "Signed user token"
//
// @Success     200  {object}  handlers.LastConversationsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid or expired token"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Router      /last-conversations [get]
func (h *Handlers) LastConversations(c *gin.Context) {
	raw := c.Query("userToken")
	if raw == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "userToken is required")
		return
	}
	userID, err := h.tokens.Verify(raw)
	if err != nil {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or expired token")
		return
	}

	last, nickname, err := h.histSvc.LastActivity(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to read activity")
		return
	}

	ok(c, http.StatusOK, LastConversationsResponse{LastConversations: last, Nickname: nickname})
}
