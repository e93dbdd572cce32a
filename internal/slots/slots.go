// Package slots is the catalog of replaceable sound-effect slots.
//
// The catalog is a static table derived once from the shape of the host's
// banks ([sfx.PlayerBankFields], [sfx.InteractionBankFields]). The derivation
// rules below are the single source of truth for mapping filenames and JSON
// keys to bank fields:
//
//   - player bank: the "Vocals" marker is removed from the field name
//     ("landVocalsPerfect" → "landPerfect").
//   - interaction bank: the field name is capitalised and prefixed with
//     "interaction" ("greeting" → "interactionGreeting").
package slots

import (
	"slices"
	"strings"

	"github.com/MrWong99/vocalswap/pkg/sfx"
)

const (
	playerMarker      = "Vocals"
	interactionPrefix = "interaction"
)

// Descriptor identifies one replaceable sound-effect slot.
type Descriptor struct {
	// ID is the stable slot identifier, "<kind>.<field>".
	ID string

	Kind sfx.BankKind

	// Field is the bank field the slot lives in.
	Field string

	// Token names the slot in filenames and configuration keys.
	Token string
}

// PlayerToken derives the slot token of a player bank field.
func PlayerToken(field string) string {
	i := strings.Index(field, playerMarker)
	if i < 0 {
		return field
	}
	return field[:i] + field[i+len(playerMarker):]
}

// InteractionToken derives the slot token of an interaction bank field.
func InteractionToken(field string) string {
	if field == "" {
		return interactionPrefix
	}
	return interactionPrefix + strings.ToUpper(field[:1]) + field[1:]
}

// Catalog is the immutable set of slot descriptors for both bank kinds.
type Catalog struct {
	byKind  map[sfx.BankKind][]Descriptor
	byToken map[string]Descriptor
	all     []Descriptor
}

// New builds a catalog from the host bank shapes.
func New() *Catalog {
	c := &Catalog{
		byKind:  make(map[sfx.BankKind][]Descriptor, len(sfx.Kinds)),
		byToken: make(map[string]Descriptor),
	}
	for _, kind := range sfx.Kinds {
		for _, field := range sfx.FieldsOf(kind) {
			token := PlayerToken(field)
			if kind == sfx.InteractionBank {
				token = InteractionToken(field)
			}
			d := Descriptor{
				ID:    kind.String() + "." + field,
				Kind:  kind,
				Field: field,
				Token: token,
			}
			c.byKind[kind] = append(c.byKind[kind], d)
			c.byToken[strings.ToLower(token)] = d
			c.all = append(c.all, d)
		}
	}
	return c
}

var defaultCatalog = New()

// Default returns the process-wide catalog.
func Default() *Catalog { return defaultCatalog }

// Descriptors returns the slots of kind in bank declaration order.
func (c *Catalog) Descriptors(kind sfx.BankKind) []Descriptor {
	return slices.Clone(c.byKind[kind])
}

// All returns every slot, player bank first.
func (c *Catalog) All() []Descriptor {
	return slices.Clone(c.all)
}

// Lookup finds the slot named by token, ignoring case.
func (c *Catalog) Lookup(token string) (Descriptor, bool) {
	d, ok := c.byToken[strings.ToLower(token)]
	return d, ok
}

// ByField finds the slot stored in field of the bank of kind.
func (c *Catalog) ByField(kind sfx.BankKind, field string) (Descriptor, bool) {
	for _, d := range c.byKind[kind] {
		if d.Field == field {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Tokens returns every slot token in alphabetical order.
func (c *Catalog) Tokens() []string {
	out := make([]string, 0, len(c.all))
	for _, d := range c.all {
		out = append(out, d.Token)
	}
	slices.Sort(out)
	return out
}
