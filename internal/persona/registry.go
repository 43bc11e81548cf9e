package persona

// Registry is the read-only lookup over the fixed persona catalog.
// The zero value is not usable; construct with DefaultRegistry.
type Registry struct {
	order []string
	byID  map[string]Behavior
}

// DefaultRegistry returns the catalog of the four production personas.
func DefaultRegistry() *Registry {
	entries := []Behavior{
		kaede{base{
			profile: Profile{
				ID:       IDKaede,
				Name:     "Kaede",
				Title:    "the tarot reader",
				Guidance: "Register your name and birth date so the cards remember you between visits.",
			},
			voice: "Speak in vivid card imagery, one card per answer, and always end with a gentle question.",
		}},
		sena{base{
			profile: Profile{
				ID:       IDSena,
				Name:     "Sena",
				Title:    "the astrologer",
				Guidance: "Tell me your birth date and I will chart the sky you were born under.",
			},
			voice: "Reference planets and houses sparingly; keep readings warm and concrete.",
		}},
		towa{base{
			profile: Profile{
				ID:       IDTowa,
				Name:     "Towa",
				Title:    "the guardian medium",
				Guidance: "Your guardian can only bind to a registered name. Register to receive yours.",
			},
			voice: "Speak slowly and formally, as one relaying words from something older than yourself.",
		}},
		miyabi{base{
			profile: Profile{
				ID:       IDMiyabi,
				Name:     "Miyabi",
				Title:    "the mind reader",
				Guidance: "Register so I can follow the thread of your story across our conversations.",
			},
			voice: "Mirror the visitor's wording, name the feeling underneath it, never diagnose.",
		}},
	}

	r := &Registry{byID: make(map[string]Behavior, len(entries))}
	for _, e := range entries {
		r.order = append(r.order, e.Profile().ID)
		r.byID[e.Profile().ID] = e
	}
	return r
}

// Lookup returns the persona behavior for id, or false when id is not part of
// the catalog.
func (r *Registry) Lookup(id string) (Behavior, bool) {
	b, ok := r.byID[id]
	return b, ok
}

// Valid reports whether id names a catalog persona.
func (r *Registry) Valid(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// IDs returns the persona ids in catalog order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// List returns the display profiles in catalog order.
func (r *Registry) List() []Profile {
	out := make([]Profile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].Profile())
	}
	return out
}
