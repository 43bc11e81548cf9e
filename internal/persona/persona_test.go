package persona

import (
	"strings"
	"testing"
)

func TestRegistry_Catalog(t *testing.T) {
	r := DefaultRegistry()

	ids := r.IDs()
	want := []string{IDKaede, IDSena, IDTowa, IDMiyabi}
	if len(ids) != len(want) {
		t.Fatalf("ids: %v", ids)
	}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("id %d: want %q, got %q", i, id, ids[i])
		}
	}

	for _, id := range want {
		if !r.Valid(id) {
			t.Fatalf("%q should be valid", id)
		}
		b, ok := r.Lookup(id)
		if !ok || b.Profile().ID != id {
			t.Fatalf("lookup %q: ok=%v profile=%+v", id, ok, b.Profile())
		}
		if b.Profile().Guidance == "" {
			t.Fatalf("%q has no guidance copy", id)
		}
	}

	if r.Valid("nobody") {
		t.Fatalf("unknown id must be invalid")
	}
	if _, ok := r.Lookup("nobody"); ok {
		t.Fatalf("unknown id must not resolve")
	}

	profiles := r.List()
	if len(profiles) != 4 || profiles[0].ID != IDKaede {
		t.Fatalf("list: %+v", profiles)
	}
}

func TestForceReregistration_TowaOnly(t *testing.T) {
	r := DefaultRegistry()
	for _, id := range r.IDs() {
		b, _ := r.Lookup(id)
		if got, want := b.ForceReregistration(), id == IDTowa; got != want {
			t.Fatalf("%q: ForceReregistration=%v", id, got)
		}
	}
}

func TestSystemPrompt(t *testing.T) {
	r := DefaultRegistry()
	in := PromptInput{Nickname: "Aoi", BirthYear: 2000, BirthMonth: 5, BirthDay: 10, Guardian: "Seiryu"}

	for _, id := range r.IDs() {
		b, _ := r.Lookup(id)
		p := b.SystemPrompt(in)
		if !strings.Contains(p, b.Profile().Name) {
			t.Fatalf("%q prompt misses persona name: %q", id, p)
		}
		if !strings.Contains(p, "Aoi") || !strings.Contains(p, "2000-05-10") {
			t.Fatalf("%q prompt misses user attributes: %q", id, p)
		}
		if !strings.Contains(p, "Seiryu") {
			t.Fatalf("%q prompt misses guardian: %q", id, p)
		}

		// Zero-value input must still render something usable.
		if empty := b.SystemPrompt(PromptInput{}); empty == "" || strings.Contains(empty, "0000") {
			t.Fatalf("%q zero-value prompt: %q", id, empty)
		}
	}

	// Sena anchors readings in the sun sign when a birth date is known.
	sena, _ := r.Lookup(IDSena)
	if !strings.Contains(sena.SystemPrompt(in), "sun sign") {
		t.Fatalf("sena prompt misses the astrology anchor")
	}
	if strings.Contains(sena.SystemPrompt(PromptInput{}), "sun sign") {
		t.Fatalf("sena must not mention the sun sign without a birth date")
	}
}

func TestWelcomeBack(t *testing.T) {
	r := DefaultRegistry()
	for _, id := range r.IDs() {
		b, _ := r.Lookup(id)

		plain := b.WelcomeBack("Aoi", "")
		if !strings.Contains(plain, "Aoi") {
			t.Fatalf("%q generic greeting misses nickname: %q", id, plain)
		}
		if strings.Contains(plain, `""`) {
			t.Fatalf("%q generic greeting quotes an empty message: %q", id, plain)
		}

		quoted := b.WelcomeBack("Aoi", "will I pass my exam?")
		if !strings.Contains(quoted, "will I pass my exam?") {
			t.Fatalf("%q greeting misses the guest message: %q", id, quoted)
		}
	}
}
