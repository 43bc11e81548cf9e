package guest

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-fortune-backend/internal/persona"
)

// Default caps. BufferCap bounds memory for the recent-message buffer;
// MessageLimit is the free-usage threshold that triggers the registration
// prompt. The two are independent.
const (
	DefaultBufferCap    = 16
	DefaultMessageLimit = 10
)

// Manager advances guest sessions through the registration funnel:
// fresh → active → limit-reached → (registration) → migrating → steady.
// Registered-steady has no guest state at all; CompleteMigration ends a
// session's life here.
type Manager struct {
	Store    Store
	Personas *persona.Registry

	BufferCap    int
	MessageLimit int
}

// NewManager constructs a Manager; non-positive caps take the defaults.
func NewManager(store Store, reg *persona.Registry, bufferCap, messageLimit int) *Manager {
	if bufferCap <= 0 {
		bufferCap = DefaultBufferCap
	}
	if messageLimit <= 0 {
		messageLimit = DefaultMessageLimit
	}
	return &Manager{Store: store, Personas: reg, BufferCap: bufferCap, MessageLimit: messageLimit}
}

// Record registers one guest message against (sessionID, characterID) and
// returns the resulting snapshot.
//
// The counter always increments; the buffer drops its oldest entry once the
// cap is reached. Crossing the message limit flips the phase to limit-reached
// and surfaces the persona's registration guidance exactly once per session:
// later calls keep LimitReached true but ShowPrompt false.
//
// Personas that disallow repeat guest visits are not refused here: turning a
// returning guest away is a page-load concern, reported by Peek. Mid-chat the
// session keeps counting like any other.
func (m *Manager) Record(ctx context.Context, sessionID, characterID, role, content string) (Snapshot, error) {
	b, ok := m.Personas.Lookup(characterID)
	if !ok {
		return Snapshot{}, ErrUnknownPersona
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Snapshot{}, ErrEmptyMessage
	}
	if role != "user" && role != "assistant" {
		return Snapshot{}, ErrInvalidRole
	}

	s, err := m.Store.Get(ctx, sessionID, characterID)
	if err != nil {
		return Snapshot{}, err
	}
	if s == nil {
		s = &Session{Phase: PhaseFresh}
	}

	s.Visited = true
	s.Entries = append(s.Entries, Entry{Role: role, Content: content})
	if n := len(s.Entries) - m.BufferCap; n > 0 {
		s.Entries = s.Entries[n:]
	}
	if role == "user" {
		s.Count++
	}

	showPrompt := false
	if s.Count >= m.MessageLimit {
		s.Phase = PhaseLimitReached
		if !s.PromptShown {
			s.PromptShown = true
			showPrompt = true
		}
	} else {
		s.Phase = PhaseActive
	}

	if err := m.Store.Put(ctx, sessionID, characterID, s); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Phase:        s.Phase,
		Count:        s.Count,
		Limit:        m.MessageLimit,
		LimitReached: s.Count >= m.MessageLimit,
		ShowPrompt:   showPrompt,
	}
	if showPrompt {
		snap.Guidance = b.Profile().Guidance
	}
	return snap, nil
}

// CompleteMigration consumes the guest session after a successful
// registration: it synthesizes the persona's welcome-back greeting from the
// most recent buffered guest user-message and clears the buffer and counter.
//
// Migration never blocks registration. Any failure here (missing session,
// store error, empty buffer) degrades to the persona's generic greeting and
// logs at warn level; the error is swallowed.
func (m *Manager) CompleteMigration(ctx context.Context, sessionID, characterID, nickname string) string {
	b, ok := m.Personas.Lookup(characterID)
	if !ok {
		return ""
	}

	lastMsg := ""
	s, err := m.Store.Get(ctx, sessionID, characterID)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("character_id", characterID).Msg("guest buffer read failed, using generic greeting")
	case s != nil:
		lastMsg = s.lastUserMessage()
	}

	if err := m.Store.Delete(ctx, sessionID, characterID); err != nil {
		log.Warn().Err(err).Str("character_id", characterID).Msg("guest buffer clear failed")
	}

	return b.WelcomeBack(nickname, lastMsg)
}

// Peek reports the current snapshot without mutating anything. Absent
// sessions read as fresh. For personas that disallow repeat guest visits,
// a session that has already been visited reports ForceRegister, so the
// client redirects straight to registration on the next page load.
func (m *Manager) Peek(ctx context.Context, sessionID, characterID string) (Snapshot, error) {
	b, ok := m.Personas.Lookup(characterID)
	if !ok {
		return Snapshot{}, ErrUnknownPersona
	}
	s, err := m.Store.Get(ctx, sessionID, characterID)
	if err != nil {
		return Snapshot{}, err
	}
	if s == nil {
		return Snapshot{Phase: PhaseFresh, Limit: m.MessageLimit}, nil
	}
	return Snapshot{
		Phase:         s.Phase,
		Count:         s.Count,
		Limit:         m.MessageLimit,
		LimitReached:  s.Count >= m.MessageLimit,
		ForceRegister: b.ForceReregistration() && s.Visited,
	}, nil
}
