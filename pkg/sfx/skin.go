package sfx

import "strconv"

// DefaultCacheIndex is the cache index reserved for the default configuration.
// Real skin indexes are never negative, so it cannot collide with one.
const DefaultCacheIndex = -1

// Skin identifies which configuration applies: a concrete cosmetic skin index
// or the default configuration. The zero value is the default.
//
// Skin is comparable and may be used as a map key.
type Skin struct {
	index int
	set   bool
}

// DefaultSkin is the configuration applied when no skin-specific entry exists.
var DefaultSkin = Skin{}

// SkinIndex returns the skin for a concrete, non-negative skin index.
// Negative indexes are not valid skins; use [Skin.IsValid] to check.
func SkinIndex(i int) Skin {
	return Skin{index: i, set: true}
}

// Index returns the skin index and true, or 0 and false for the default skin.
func (s Skin) Index() (int, bool) {
	return s.index, s.set
}

// IsDefault reports whether s is the default skin.
func (s Skin) IsDefault() bool { return !s.set }

// IsValid reports whether s is the default skin or a non-negative skin index.
func (s Skin) IsValid() bool { return !s.set || s.index >= 0 }

// CacheIndex maps s to its bank cache index: a skin index maps to itself and
// the default skin maps to [DefaultCacheIndex].
func (s Skin) CacheIndex() int {
	if !s.set {
		return DefaultCacheIndex
	}
	return s.index
}

// String returns "default" or the decimal skin index.
func (s Skin) String() string {
	if !s.set {
		return "default"
	}
	return strconv.Itoa(s.index)
}

// Label is the suffix appended to the names of built banks and instances.
func (s Skin) Label() string {
	if !s.set {
		return "Default Swap"
	}
	return "Skin " + strconv.Itoa(s.index) + " Swap"
}
