// Handler wiring for the public API.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. Service dependencies are abstract
// interfaces so transport concerns stay separate from business logic.
package handlers

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-fortune-backend/internal/domain"
	"github.com/tbourn/go-fortune-backend/internal/guest"
	"github.com/tbourn/go-fortune-backend/internal/persona"
	"github.com/tbourn/go-fortune-backend/internal/services"
	"github.com/tbourn/go-fortune-backend/internal/token"
)

//
// Service contracts (context-aware)
//

// IdentityService defines user lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type IdentityService interface {
	// Register creates or resolves a user from the full identity tuple.
	Register(ctx context.Context, nickname string, year, month, day int, gender string) (*services.RegisterResult, error)
	// CreateGuest creates a user for an anonymous visitor, deduplicating on a
	// client-supplied session id and resolving nickname collisions silently.
	CreateGuest(ctx context.Context, nickname string, year, month, day int, gender, sessionID, clientIP string) (*services.RegisterResult, error)
	// Login resolves a user from the identity tuple, optionally checking a
	// legacy passphrase.
	Login(ctx context.Context, nickname string, year, month, day int, passphrase string) (*domain.User, error)
	// ResetPassphrase issues a fresh passphrase and returns it in plaintext
	// exactly once.
	ResetPassphrase(ctx context.Context, nickname string, year, month, day int) (string, error)
	// UpdateGuardian assigns a guardian by user id or identity tuple; an empty
	// guardian draws one at random from the catalog.
	UpdateGuardian(ctx context.Context, userID uint, nickname string, year, month, day int, guardian string) (string, error)
	// ResolveSession maps a session id to its user.
	ResolveSession(ctx context.Context, sessionID string) (*domain.User, error)
}

// HistoryService defines stored-conversation operations consumed by handlers.
type HistoryService interface {
	// Append validates and stores one turn for the session's user.
	Append(ctx context.Context, sessionID, characterID, role, message, messageType string, isGuest bool) (*domain.Conversation, error)
	// History returns the log for (session, persona) oldest-first.
	History(ctx context.Context, sessionID, characterID string, limit int) ([]domain.Conversation, bool, error)
	// LastActivity returns the most recent timestamp per persona plus the
	// user's nickname.
	LastActivity(ctx context.Context, userID uint) (map[string]*time.Time, string, error)
	// DeleteByIDs removes rows by id and reports how many went away.
	DeleteByIDs(ctx context.Context, ids []uint) (int64, error)
	// DeletePair wipes one (user, persona) log.
	DeletePair(ctx context.Context, userID uint, characterID string) (int64, error)
	// DeleteUserLogs wipes everything stored for a user.
	DeleteUserLogs(ctx context.Context, userID uint) (int64, error)
}

// AnswerService produces a persona reply for a user message, persisting both
// sides of the exchange.
type AnswerService interface {
	Answer(ctx context.Context, sessionID, characterID, message string) (*domain.Conversation, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for identity, conversations, chat,
// guest state, and administration.
type Handlers struct {
	userSvc   IdentityService
	histSvc   HistoryService
	answerSvc AnswerService
	guests    *guest.Manager
	personas  *persona.Registry
	tokens    *token.Codec
	cookieTTL time.Duration
	idemTTL   time.Duration

	// db backs ETag stats pre-checks, idempotency records, and the admin
	// repository calls.
	db *gorm.DB
}

// New constructs a Handlers instance bound to the given services.
func New(
	userSvc IdentityService,
	histSvc HistoryService,
	answerSvc AnswerService,
	guests *guest.Manager,
	personas *persona.Registry,
	tokens *token.Codec,
	cookieTTL, idemTTL time.Duration,
	db *gorm.DB,
) *Handlers {
	return &Handlers{
		userSvc:   userSvc,
		histSvc:   histSvc,
		answerSvc: answerSvc,
		guests:    guests,
		personas:  personas,
		tokens:    tokens,
		cookieTTL: cookieTTL,
		idemTTL:   idemTTL,
		db:        db,
	}
}
