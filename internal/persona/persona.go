// Package persona defines the static catalog of the four scripted fortune
// tellers. Each entry combines display metadata with the behavior that varies
// per persona: the system prompt handed to the LLM, the registration guidance
// copy, the welcome-back synthesis after guest migration, and whether a
// returning guest is forced straight to registration.
//
// The catalog is immutable at runtime; it is code, not user data. Persona
// quirks are expressed through the Behavior interface with a shared default
// implementation, selected by id through the Registry.
package persona

import (
	"fmt"
	"strings"
)

// Persona ids. These are wire values: clients send them as the `character`
// field and they key the per-(user, persona) conversation logs.
const (
	IDKaede  = "kaede"
	IDSena   = "sena"
	IDTowa   = "towa"
	IDMiyabi = "miyabi"
)

// Profile is the display metadata of a catalog entry.
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Title    string `json:"title"`
	Guidance string `json:"guidance"`
}

// PromptInput carries the user attributes a system prompt may reference.
// Zero values are valid; builders must tolerate missing guardian or nickname.
type PromptInput struct {
	Nickname   string
	BirthYear  int
	BirthMonth int
	BirthDay   int
	Guardian   string
}

// Behavior captures everything that differs between personas. Implementations
// are stateless and safe for concurrent use.
type Behavior interface {
	// Profile returns the static display metadata.
	Profile() Profile
	// SystemPrompt builds the LLM system prompt for this persona and user.
	SystemPrompt(in PromptInput) string
	// WelcomeBack renders the post-registration greeting. lastGuestMessage is
	// the most recent buffered guest user-message, or "" when none survived;
	// implementations must produce a usable greeting either way.
	WelcomeBack(nickname, lastGuestMessage string) string
	// ForceReregistration reports whether any prior guest activity sends a
	// returning visitor straight to registration.
	ForceReregistration() bool
}

// base supplies the shared defaults; concrete personas embed it and override
// what they need.
type base struct {
	profile Profile
	voice   string // one-line tone instruction appended to every prompt
}

func (b base) Profile() Profile          { return b.profile }
func (b base) ForceReregistration() bool { return false }

func (b base) SystemPrompt(in PromptInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, %s. Stay in character at all times. ", b.profile.Name, b.profile.Title)
	if in.Nickname != "" {
		fmt.Fprintf(&sb, "You are speaking with %s", in.Nickname)
		if in.BirthYear > 0 {
			fmt.Fprintf(&sb, ", born %04d-%02d-%02d", in.BirthYear, in.BirthMonth, in.BirthDay)
		}
		sb.WriteString(". ")
	}
	if in.Guardian != "" {
		fmt.Fprintf(&sb, "Their guardian spirit is %s; weave it into your readings when natural. ", in.Guardian)
	}
	sb.WriteString(b.voice)
	return sb.String()
}

func (b base) WelcomeBack(nickname, lastGuestMessage string) string {
	if lastGuestMessage == "" {
		return fmt.Sprintf("Welcome, %s. The cards have been waiting for you.", nickname)
	}
	return fmt.Sprintf("Welcome back, %s. You were telling me: \"%s\" — let us continue from there.",
		nickname, lastGuestMessage)
}

// kaede is the tarot reader. Her client flourish (the card draw) lives in the
// frontend; server-side she only differs in tone and welcome copy.
type kaede struct{ base }

func (k kaede) WelcomeBack(nickname, lastGuestMessage string) string {
	if lastGuestMessage == "" {
		return fmt.Sprintf("%s... the deck already knows your name. Draw a card when you are ready.", nickname)
	}
	return fmt.Sprintf("%s, before you registered you asked: \"%s\". Let me lay the cards for that question.",
		nickname, lastGuestMessage)
}

// sena reads western astrology from the birth date.
type sena struct{ base }

func (s sena) SystemPrompt(in PromptInput) string {
	p := s.base.SystemPrompt(in)
	if in.BirthYear > 0 {
		p += " Derive the visitor's sun sign from their birth date and anchor every reading in it."
	}
	return p
}

// towa channels guardian spirits. She is the one persona that refuses
// repeated guest sessions: any prior guest activity forces registration.
type towa struct{ base }

func (t towa) ForceReregistration() bool { return true }

func (t towa) WelcomeBack(nickname, lastGuestMessage string) string {
	if lastGuestMessage == "" {
		return fmt.Sprintf("%s, your guardian has crossed the veil to meet you. Speak freely now.", nickname)
	}
	return fmt.Sprintf("%s, your guardian heard you say \"%s\" and would not let me rest until you returned.",
		nickname, lastGuestMessage)
}

// miyabi is the psychology-flavored counselor.
type miyabi struct{ base }
