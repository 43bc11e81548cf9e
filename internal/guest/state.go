// Package guest tracks anonymous visitor state: a bounded recent-message
// buffer and a monotonic message counter, scoped to (session id, persona) and
// held outside the relational store. Nothing here is ever persisted as
// conversation history; on registration the buffer is consumed once for the
// welcome-back greeting and then discarded.
package guest

// Phase labels where a guest session sits in the registration funnel.
type Phase string

const (
	// PhaseFresh: no buffered messages yet.
	PhaseFresh Phase = "guest-fresh"
	// PhaseActive: one or more messages buffered, counter below the limit.
	PhaseActive Phase = "guest-active"
	// PhaseLimitReached: counter at or past the limit, registration prompt due.
	PhaseLimitReached Phase = "limit-reached"
	// PhaseMigrating: registration succeeded, buffer about to be discarded.
	PhaseMigrating Phase = "registered-migrating"
)

// Entry is one buffered guest turn.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the stored per-(session, persona) guest state.
//
// Entries is bounded by the manager's buffer cap with silent oldest-first
// drop. Count keeps growing past the cap: it measures usage, not memory.
type Session struct {
	Entries     []Entry `json:"entries"`
	Count       int     `json:"count"`
	PromptShown bool    `json:"promptShown"`
	Visited     bool    `json:"visited"`
	Phase       Phase   `json:"phase"`
}

// lastUserMessage returns the most recent buffered user-role entry, or "".
func (s *Session) lastUserMessage() string {
	for i := len(s.Entries) - 1; i >= 0; i-- {
		if s.Entries[i].Role == "user" {
			return s.Entries[i].Content
		}
	}
	return ""
}

// Snapshot is what the transport layer reports back after a state change.
type Snapshot struct {
	Phase         Phase  `json:"phase"`
	Count         int    `json:"count"`
	Limit         int    `json:"limit"`
	LimitReached  bool   `json:"limitReached"`
	ShowPrompt    bool   `json:"showPrompt"`
	ForceRegister bool   `json:"forceRegister"`
	Guidance      string `json:"guidance,omitempty"`
}
