// Package services – ChatService
//
// This file implements the ChatService, which produces persona replies. It
// resolves the acting user from a session id, assembles the persona system
// prompt and recent turn context, calls the completion client, and persists
// both sides of the exchange under the retention cap. Provider failures are
// surfaced as ErrAnswerFailed; the user's turn is still stored so the log
// reflects what was asked.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-fortune-backend/internal/domain"
	"github.com/tbourn/go-fortune-backend/internal/llm"
	"github.com/tbourn/go-fortune-backend/internal/persona"
	"github.com/tbourn/go-fortune-backend/internal/repo"
)

// DefaultHistoryTurns bounds the prior turns sent as completion context when
// the service is constructed without an explicit value.
const DefaultHistoryTurns = 20

// ChatService orchestrates one question/answer exchange with a persona.
type ChatService struct {
	DB        *gorm.DB
	Personas  *persona.Registry
	Completer llm.Completer

	// HistoryCap is the retention cap per (user, persona) pair.
	HistoryCap int
	// HistoryTurns is how many stored turns accompany each completion.
	HistoryTurns int
}

// NewChatService constructs a ChatService.
func NewChatService(db *gorm.DB, reg *persona.Registry, c llm.Completer, historyCap, historyTurns int) *ChatService {
	if historyTurns <= 0 {
		historyTurns = DefaultHistoryTurns
	}
	return &ChatService{
		DB:           db,
		Personas:     reg,
		Completer:    c,
		HistoryCap:   historyCap,
		HistoryTurns: historyTurns,
	}
}

// Answer stores the user's message, obtains the persona's reply, stores it,
// and returns the assistant row.
//
// Returns ErrInvalidCharacter, ErrEmptyMessage, ErrSessionNotFound on input
// failure and ErrAnswerFailed when the completion client cannot produce a
// reply. In the ErrAnswerFailed case the user's turn has already been
// persisted.
func (s *ChatService) Answer(ctx context.Context, sessionID, characterID, message string) (*domain.Conversation, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Answer",
		trace.WithAttributes(attribute.String("character.id", characterID)),
	)
	defer span.End()

	b, ok := s.Personas.Lookup(characterID)
	if !ok {
		return nil, ErrInvalidCharacter
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	u, err := repo.FindUserBySessionID(ctx, s.DB, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	history, err := repo.ListRecentTurns(ctx, s.DB, u.ID, characterID, s.HistoryTurns)
	if err != nil {
		return nil, err
	}

	if _, err := repo.AppendConversation(ctx, s.DB, u.ID, characterID, domain.RoleUser, message, domain.MessageTypeNormal, s.HistoryCap); err != nil {
		return nil, err
	}

	system := b.SystemPrompt(persona.PromptInput{
		Nickname:   u.Nickname,
		BirthYear:  u.BirthYear,
		BirthMonth: u.BirthMonth,
		BirthDay:   u.BirthDay,
		Guardian:   u.Guardian,
	})

	turns := make([]llm.Turn, 0, len(history))
	for _, h := range history {
		turns = append(turns, llm.Turn{Role: h.Role, Content: h.Message})
	}

	reply, err := s.Completer.Complete(ctx, system, turns, message)
	if err != nil {
		log.Error().Err(err).
			Str("character_id", characterID).
			Uint("user_id", u.ID).
			Msg("completion failed")
		return nil, ErrAnswerFailed
	}

	row, err := repo.AppendConversation(ctx, s.DB, u.ID, characterID, domain.RoleAssistant, reply, domain.MessageTypeNormal, s.HistoryCap)
	if err != nil {
		return nil, err
	}
	_ = repo.TouchUserActivity(ctx, s.DB, u.ID, time.Now().UTC())
	return row, nil
}
