// Package services – ConversationService
//
// This file implements the ConversationService, the application-level
// component that owns stored conversation logs. It validates persona ids,
// roles, and subtypes against the fixed catalogs, resolves the acting user
// from a session id, and delegates persistence to the retention-capped
// repository append. Guest-originated messages are rejected with
// ErrGuestMessage before they ever reach the store.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-fortune-backend/internal/domain"
	"github.com/tbourn/go-fortune-backend/internal/persona"
	"github.com/tbourn/go-fortune-backend/internal/repo"
)

// DefaultReadLimit bounds history reads when the caller does not supply one.
const DefaultReadLimit = 100

// ConversationService coordinates validation and persistence of chat turns.
type ConversationService struct {
	DB       *gorm.DB
	Personas *persona.Registry

	// HistoryCap is the retention cap per (user, persona) pair.
	HistoryCap int
}

// NewConversationService constructs a ConversationService with the given cap.
func NewConversationService(db *gorm.DB, reg *persona.Registry, historyCap int) *ConversationService {
	return &ConversationService{DB: db, Personas: reg, HistoryCap: historyCap}
}

// Append validates and stores one turn for the user bound to sessionID.
//
// Returns:
//   - ErrInvalidCharacter / ErrInvalidRole / ErrInvalidMessageType /
//     ErrEmptyMessage on validation failure,
//   - ErrGuestMessage when isGuest is set (guest turns are never persisted),
//   - ErrSessionNotFound when sessionID does not resolve to a user.
func (s *ConversationService) Append(ctx context.Context, sessionID, characterID, role, message, messageType string, isGuest bool) (*domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Append",
		trace.WithAttributes(
			attribute.String("character.id", characterID),
			attribute.String("message.role", role),
		),
	)
	defer span.End()

	if !s.Personas.Valid(characterID) {
		return nil, ErrInvalidCharacter
	}
	if role != domain.RoleUser && role != domain.RoleAssistant {
		return nil, ErrInvalidRole
	}
	if messageType == "" {
		messageType = domain.MessageTypeNormal
	}
	switch messageType {
	case domain.MessageTypeNormal, domain.MessageTypeSystem, domain.MessageTypeWarning:
	default:
		return nil, ErrInvalidMessageType
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if isGuest {
		return nil, ErrGuestMessage
	}

	u, err := repo.FindUserBySessionID(ctx, s.DB, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	row, err := repo.AppendConversation(ctx, s.DB, u.ID, characterID, role, message, messageType, s.HistoryCap)
	if err != nil {
		return nil, err
	}
	_ = repo.TouchUserActivity(ctx, s.DB, u.ID, row.Timestamp)
	return row, nil
}

// History returns the stored log for (session, persona) oldest-first, plus a
// flag reporting whether any rows exist. A limit <= 0 applies DefaultReadLimit.
func (s *ConversationService) History(ctx context.Context, sessionID, characterID string, limit int) ([]domain.Conversation, bool, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(
			attribute.String("character.id", characterID),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if !s.Personas.Valid(characterID) {
		return nil, false, ErrInvalidCharacter
	}
	u, err := repo.FindUserBySessionID(ctx, s.DB, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrSessionNotFound
		}
		return nil, false, err
	}
	if limit <= 0 {
		limit = DefaultReadLimit
	}

	rows, err := repo.ListConversation(ctx, s.DB, u.ID, characterID, limit)
	if err != nil {
		return nil, false, err
	}
	return rows, len(rows) > 0, nil
}

// LastActivity returns the most recent message timestamp per persona for the
// given user id (nil for personas without history), together with the user's
// nickname for the dashboard header.
func (s *ConversationService) LastActivity(ctx context.Context, userID uint) (map[string]*time.Time, string, error) {
	u, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", err
	}
	activity, err := repo.LastActivityByCharacter(ctx, s.DB, userID, s.Personas.IDs())
	if err != nil {
		return nil, "", err
	}
	return activity, u.Nickname, nil
}

// DeleteByIDs removes the listed message rows, reporting the affected count.
func (s *ConversationService) DeleteByIDs(ctx context.Context, ids []uint) (int64, error) {
	return repo.DeleteConversationsByID(ctx, s.DB, ids)
}

// DeletePair wipes the (user, persona) log, reporting the affected count.
func (s *ConversationService) DeletePair(ctx context.Context, userID uint, characterID string) (int64, error) {
	if !s.Personas.Valid(characterID) {
		return 0, ErrInvalidCharacter
	}
	return repo.DeleteConversationsByPair(ctx, s.DB, userID, characterID)
}

// DeleteUserLogs wipes every log for userID, reporting the affected count.
func (s *ConversationService) DeleteUserLogs(ctx context.Context, userID uint) (int64, error) {
	return repo.DeleteConversationsByUser(ctx, s.DB, userID)
}
