// Package swapconfig holds the merged swap configuration of every registered
// mod directory.
//
// A mod directory contributes configuration in two ways: JSON configuration
// files named <name>.<skin|default>.<suffix>.json, and loose audio files named
// <name>.<skin|default>.<token>[.<seq>].<ext>. [Model.RegisterDirectory]
// decodes and discovers both, resolves every clip path to an absolute path,
// and merges the result into one [SwapSpecSet] per skin. A clip list set by a
// configuration file is never replaced by discovered files, and the first
// directory to configure a slot's clips keeps them.
package swapconfig

import (
	"maps"
	"slices"

	"github.com/MrWong99/vocalswap/pkg/sfx"
)

// SettingsOverride overrides individual playback settings of a slot. A nil
// field inherits the base instance's value.
type SettingsOverride struct {
	Volume          *float64 `json:"volume,omitempty"`
	VolumeVariation *float64 `json:"volumeVariation,omitempty"`
	Pitch           *float64 `json:"pitch,omitempty"`
	PitchVariation  *float64 `json:"pitchVariation,omitempty"`
	Range           *float64 `json:"range,omitempty"`
	CooldownSeconds *float64 `json:"cooldownSeconds,omitempty"`
	SpatialBlend    *float64 `json:"spatialBlend,omitempty"`
	DopplerLevel    *float64 `json:"dopplerLevel,omitempty"`
	HighPriority    *bool    `json:"highPriority,omitempty"`
}

// OverrideFrom returns an override that sets every field to the value in s.
func OverrideFrom(s sfx.Settings) *SettingsOverride {
	return &SettingsOverride{
		Volume:          &s.Volume,
		VolumeVariation: &s.VolumeVariation,
		Pitch:           &s.Pitch,
		PitchVariation:  &s.PitchVariation,
		Range:           &s.Range,
		CooldownSeconds: &s.CooldownSeconds,
		SpatialBlend:    &s.SpatialBlend,
		DopplerLevel:    &s.DopplerLevel,
		HighPriority:    &s.HighPriority,
	}
}

// Apply returns base with every present override applied. Volume, both
// variations, spatial blend and doppler level are clamped to [0, 1]; pitch,
// range and cooldown are taken as given.
func (o *SettingsOverride) Apply(base sfx.Settings) sfx.Settings {
	if o == nil {
		return base
	}
	out := base
	if o.Volume != nil {
		out.Volume = clamp01(*o.Volume)
	}
	if o.VolumeVariation != nil {
		out.VolumeVariation = clamp01(*o.VolumeVariation)
	}
	if o.Pitch != nil {
		out.Pitch = *o.Pitch
	}
	if o.PitchVariation != nil {
		out.PitchVariation = clamp01(*o.PitchVariation)
	}
	if o.Range != nil {
		out.Range = *o.Range
	}
	if o.CooldownSeconds != nil {
		out.CooldownSeconds = *o.CooldownSeconds
	}
	if o.SpatialBlend != nil {
		out.SpatialBlend = clamp01(*o.SpatialBlend)
	}
	if o.DopplerLevel != nil {
		out.DopplerLevel = clamp01(*o.DopplerLevel)
	}
	if o.HighPriority != nil {
		out.HighPriority = *o.HighPriority
	}
	return out
}

// IsEmpty reports whether o overrides nothing.
func (o *SettingsOverride) IsEmpty() bool {
	return o == nil || *o == SettingsOverride{}
}

// Clone returns a deep copy of o.
func (o *SettingsOverride) Clone() *SettingsOverride {
	if o == nil {
		return nil
	}
	return &SettingsOverride{
		Volume:          clonePtr(o.Volume),
		VolumeVariation: clonePtr(o.VolumeVariation),
		Pitch:           clonePtr(o.Pitch),
		PitchVariation:  clonePtr(o.PitchVariation),
		Range:           clonePtr(o.Range),
		CooldownSeconds: clonePtr(o.CooldownSeconds),
		SpatialBlend:    clonePtr(o.SpatialBlend),
		DopplerLevel:    clonePtr(o.DopplerLevel),
		HighPriority:    clonePtr(o.HighPriority),
	}
}

// layer returns an override holding every field present in o, falling back to
// under for the rest.
func (o *SettingsOverride) layer(under *SettingsOverride) *SettingsOverride {
	if o == nil {
		return under.Clone()
	}
	out := o.Clone()
	if under == nil {
		return out
	}
	out.Volume = firstPtr(out.Volume, under.Volume)
	out.VolumeVariation = firstPtr(out.VolumeVariation, under.VolumeVariation)
	out.Pitch = firstPtr(out.Pitch, under.Pitch)
	out.PitchVariation = firstPtr(out.PitchVariation, under.PitchVariation)
	out.Range = firstPtr(out.Range, under.Range)
	out.CooldownSeconds = firstPtr(out.CooldownSeconds, under.CooldownSeconds)
	out.SpatialBlend = firstPtr(out.SpatialBlend, under.SpatialBlend)
	out.DopplerLevel = firstPtr(out.DopplerLevel, under.DopplerLevel)
	out.HighPriority = firstPtr(out.HighPriority, under.HighPriority)
	return out
}

// SlotSwapSpec is the configuration of a single slot.
type SlotSwapSpec struct {
	// BasePath prefixes the slot's relative clip paths.
	BasePath string `json:"basePath,omitempty"`

	// Clips lists the clip files of the slot, resolved to absolute paths once
	// the spec is part of a [Model].
	Clips []string `json:"clips,omitempty"`

	Settings *SettingsOverride `json:"settings,omitempty"`

	// explicit is set when Clips came from a configuration file rather than
	// from discovered audio files.
	explicit bool
}

// Explicit reports whether the slot's clip list was set by a configuration
// file. Explicit clip lists are never replaced by discovered files.
func (s *SlotSwapSpec) Explicit() bool {
	return s.explicit && len(s.Clips) > 0
}

// Clone returns a deep copy of s.
func (s *SlotSwapSpec) Clone() *SlotSwapSpec {
	if s == nil {
		return nil
	}
	return &SlotSwapSpec{
		BasePath: s.BasePath,
		Clips:    slices.Clone(s.Clips),
		Settings: s.Settings.Clone(),
		explicit: s.explicit,
	}
}

// SwapSpecSet is the swap configuration of one skin, or of the default.
type SwapSpecSet struct {
	Skin sfx.Skin `json:"-"`

	// BasePath prefixes the relative clip paths of every slot.
	BasePath string `json:"basePath,omitempty"`

	// Swaps maps a slot token to its configuration.
	Swaps map[string]*SlotSwapSpec `json:"swaps,omitempty"`
}

// NewSwapSpecSet returns an empty set for skin.
func NewSwapSpecSet(skin sfx.Skin) *SwapSpecSet {
	return &SwapSpecSet{Skin: skin, Swaps: make(map[string]*SlotSwapSpec)}
}

// Clone returns a deep copy of s.
func (s *SwapSpecSet) Clone() *SwapSpecSet {
	if s == nil {
		return nil
	}
	out := &SwapSpecSet{
		Skin:     s.Skin,
		BasePath: s.BasePath,
		Swaps:    make(map[string]*SlotSwapSpec, len(s.Swaps)),
	}
	for token, slot := range s.Swaps {
		out.Swaps[token] = slot.Clone()
	}
	return out
}

// Tokens returns the configured slot tokens in alphabetical order.
func (s *SwapSpecSet) Tokens() []string {
	return slices.Sorted(maps.Keys(s.Swaps))
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func firstPtr[T any](a, b *T) *T {
	if a != nil {
		return a
	}
	return clonePtr(b)
}
