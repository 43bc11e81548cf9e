// Package services – UserService
//
// This file implements the UserService, which owns identity and session
// resolution: guest creation with session-id de-duplication, explicit
// registration with idempotent exact-tuple matching, login against the
// (nickname, birth date) tuple, the legacy passphrase flows, and guardian
// assignment. Nickname collisions are resolved with a numeric suffix on the
// guest path and surfaced as ErrNicknameConflict on the explicit path.
//
// Observability: the main operations are OpenTelemetry-instrumented; spans
// carry nickname-free identifiers only.
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-fortune-backend/internal/domain"
	"github.com/tbourn/go-fortune-backend/internal/repo"
)

const (
	nicknameMaxRunes = 64

	// suffix attempts before falling back to a timestamp suffix
	maxSuffixAttempts = 1000
)

// UserService implements the identity use-cases. It is safe for concurrent
// use; all state lives in the database.
type UserService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// RegisterResult reports the outcome of Register and CreateGuest: the resolved
// user plus whether a new row was created (201) or an existing one matched (200).
type RegisterResult struct {
	User    *domain.User
	Created bool
}

// Register implements the explicit registration path.
//
// Semantics:
//   - Exact (nickname, year, month, day) match: the existing user is returned
//     with Created=false (idempotent re-registration).
//   - Nickname held by a user with a different birth date: ErrNicknameConflict.
//   - No match: a new row is created with a generated session id.
func (s *UserService) Register(ctx context.Context, nickname string, year, month, day int, gender string) (*RegisterResult, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Register")
	defer span.End()

	nickname, err := normalizeNickname(nickname)
	if err != nil {
		return nil, err
	}
	if err := validateBirthDate(year, month, day); err != nil {
		return nil, err
	}

	if u, err := repo.FindUserByTuple(ctx, s.DB, nickname, year, month, day); err == nil {
		span.SetAttributes(attribute.Bool("register.idempotent", true))
		return &RegisterResult{User: u, Created: false}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	taken, err := repo.NicknameTaken(ctx, s.DB, nickname)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrNicknameConflict
	}

	u := &domain.User{
		Nickname:   nickname,
		BirthYear:  year,
		BirthMonth: month,
		BirthDay:   day,
		Gender:     gender,
		SessionID:  uuid.NewString(),
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		return nil, err
	}
	return &RegisterResult{User: u, Created: true}, nil
}

// CreateGuest implements the guest-creation path used on first interaction.
//
// When sessionID already belongs to a user, that user is returned unchanged
// (de-duplication guard against double submission). Otherwise the nickname is
// collision-resolved with a numeric suffix, a session id is generated when the
// client did not supply one, and a new row is created.
func (s *UserService) CreateGuest(ctx context.Context, nickname string, year, month, day int, gender, sessionID, clientIP string) (*RegisterResult, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "CreateGuest",
		trace.WithAttributes(attribute.Bool("guest.session_supplied", sessionID != "")),
	)
	defer span.End()

	if sessionID != "" {
		if u, err := repo.FindUserBySessionID(ctx, s.DB, sessionID); err == nil {
			return &RegisterResult{User: u, Created: false}, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	nickname, err := normalizeNickname(nickname)
	if err != nil {
		return nil, err
	}
	if err := validateBirthDate(year, month, day); err != nil {
		return nil, err
	}

	resolved, err := s.resolveNickname(ctx, nickname)
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	u := &domain.User{
		Nickname:   resolved,
		BirthYear:  year,
		BirthMonth: month,
		BirthDay:   day,
		Gender:     gender,
		SessionID:  sessionID,
		IPAddress:  clientIP,
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		return nil, err
	}
	return &RegisterResult{User: u, Created: true}, nil
}

// Login resolves a user by exact (nickname, birth date) match. When a
// passphrase is supplied (legacy variant), it must verify against the stored
// hash. Any mismatch yields ErrUnauthorized; the caller must not distinguish
// unknown nickname from wrong birth date.
func (s *UserService) Login(ctx context.Context, nickname string, year, month, day int, passphrase string) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Login")
	defer span.End()

	nickname, err := normalizeNickname(nickname)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if err := validateBirthDate(year, month, day); err != nil {
		return nil, ErrUnauthorized
	}

	u, err := repo.FindUserByTuple(ctx, s.DB, nickname, year, month, day)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	if passphrase != "" {
		if u.Passphrase == "" ||
			bcrypt.CompareHashAndPassword([]byte(u.Passphrase), []byte(passphrase)) != nil {
			return nil, ErrUnauthorized
		}
	}

	_ = repo.TouchUserActivity(ctx, s.DB, u.ID, time.Now())
	return u, nil
}

// ResetPassphrase regenerates the legacy secondary credential for the user
// matching the exact tuple, stores its hash, and returns the plaintext once.
func (s *UserService) ResetPassphrase(ctx context.Context, nickname string, year, month, day int) (string, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "ResetPassphrase")
	defer span.End()

	nickname, err := normalizeNickname(nickname)
	if err != nil {
		return "", ErrUserNotFound
	}
	u, err := repo.FindUserByTuple(ctx, s.DB, nickname, year, month, day)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	plain, err := randomPassphrase(8)
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	if err := repo.UpdatePassphrase(ctx, s.DB, u.ID, string(hash)); err != nil {
		return "", err
	}
	return plain, nil
}

// UpdateGuardian assigns guardian to the user identified either by id or by
// the exact tuple. An empty guardian picks one at random from the catalog; a
// non-catalog value is rejected with ErrUnknownGuardian. The assigned label
// is returned.
func (s *UserService) UpdateGuardian(ctx context.Context, userID uint, nickname string, year, month, day int, guardian string) (string, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "UpdateGuardian",
		trace.WithAttributes(attribute.Int("user.id", int(userID))),
	)
	defer span.End()

	if guardian == "" {
		guardian = RandomGuardian()
	} else if !KnownGuardian(guardian) {
		return "", ErrUnknownGuardian
	}

	if userID == 0 {
		nick, err := normalizeNickname(nickname)
		if err != nil {
			return "", ErrUserNotFound
		}
		u, err := repo.FindUserByTuple(ctx, s.DB, nick, year, month, day)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", ErrUserNotFound
			}
			return "", err
		}
		userID = u.ID
	}

	if err := repo.UpdateGuardian(ctx, s.DB, userID, guardian); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return guardian, nil
}

// ResolveSession returns the user bound to sessionID, or ErrSessionNotFound.
func (s *UserService) ResolveSession(ctx context.Context, sessionID string) (*domain.User, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionNotFound
	}
	u, err := repo.FindUserBySessionID(ctx, s.DB, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return u, nil
}

// resolveNickname returns base unchanged when free, otherwise the first free
// numeric-suffix variant (base1, base2, …). After maxSuffixAttempts it falls
// back to a timestamp suffix, which is unique enough for the guest path.
func (s *UserService) resolveNickname(ctx context.Context, base string) (string, error) {
	taken, err := repo.NicknameTaken(ctx, s.DB, base)
	if err != nil {
		return "", err
	}
	if !taken {
		return base, nil
	}
	for i := 1; i < maxSuffixAttempts; i++ {
		candidate := fmt.Sprintf("%s%d", base, i)
		taken, err := repo.NicknameTaken(ctx, s.DB, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return fmt.Sprintf("%s%d", base, time.Now().Unix()), nil
}

// normalizeNickname trims, collapses internal whitespace, and applies NFKC so
// visually identical nicknames compare equal, then enforces length bounds.
func normalizeNickname(s string) (string, error) {
	s = whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	s = norm.NFKC.String(s)
	if s == "" || utf8.RuneCountInString(s) > nicknameMaxRunes {
		return "", ErrInvalidNickname
	}
	return s, nil
}

// validateBirthDate checks each component against its stated range. Day
// validity relative to the month (e.g. Feb 30) is intentionally not enforced,
// matching the storage contract.
func validateBirthDate(year, month, day int) error {
	if year < 1900 || year > 2100 {
		return ErrInvalidBirthDate
	}
	if month < 1 || month > 12 {
		return ErrInvalidBirthDate
	}
	if day < 1 || day > 31 {
		return ErrInvalidBirthDate
	}
	return nil
}

// randomPassphrase returns n characters from an unambiguous alphabet using
// crypto/rand.
func randomPassphrase(n int) (string, error) {
	const alphabet = "abcdefghjkmnpqrstuvwxyz23456789"
	out := make([]byte, n)
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		out[i] = alphabet[int(buf[i])%len(alphabet)]
	}
	return string(out), nil
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
