// Package sfx defines the boundary between vocalswap and the host game's audio
// engine.
//
// The host owns two vocal banks: the [PlayerBank] with the primary character's
// vocalizations and the [InteractionBank] used by the interaction (NPC)
// character. Each bank is a fixed set of named fields, each holding one
// [Instance]: the clips that may be played for that sound effect together with
// its playback [Settings].
//
// vocalswap never mutates a [Bank] handed to it. Replacement banks are built as
// new values that share every untouched [Instance] with the original.
//
// The interfaces in this package ([Decoder], [Engine], [PlayNotifier]) are
// implemented by the host. In-process implementations live in the decode and
// memhost subpackages; call-recording mocks live in sfx/mock.
package sfx

import (
	"context"
	"time"
)

// BankKind identifies one of the two vocal banks owned by the host.
type BankKind int

const (
	// PlayerBank is the primary character's vocal bank.
	PlayerBank BankKind = iota

	// InteractionBank is the interaction character's vocal bank.
	InteractionBank
)

// Kinds lists every bank kind in a stable order.
var Kinds = []BankKind{PlayerBank, InteractionBank}

// String returns the human-readable name of the bank kind.
func (k BankKind) String() string {
	switch k {
	case PlayerBank:
		return "player"
	case InteractionBank:
		return "interaction"
	default:
		return "unknown"
	}
}

// IsValid reports whether k is a recognised bank kind.
func (k BankKind) IsValid() bool {
	return k == PlayerBank || k == InteractionBank
}

// ParseBankKind is the inverse of [BankKind.String].
func ParseBankKind(s string) (BankKind, bool) {
	switch s {
	case "player":
		return PlayerBank, true
	case "interaction":
		return InteractionBank, true
	}
	return 0, false
}

// PlayerBankFields is the shape of the host's player vocal bank: the names of
// every field holding an [Instance], in declaration order.
var PlayerBankFields = []string{
	"jumpVocals",
	"doubleJumpVocals",
	"landVocals",
	"landVocalsPerfect",
	"boostVocals",
	"fallVocals",
	"hurtVocals",
	"deathVocals",
	"grappleVocals",
	"effortVocals",
	"idleVocals",
	"victoryVocals",
}

// InteractionBankFields is the shape of the host's interaction vocal bank.
var InteractionBankFields = []string{
	"greeting",
	"goodbye",
	"talk",
	"laugh",
	"surprised",
	"thinking",
}

// FieldsOf returns the field names of the bank of the given kind.
func FieldsOf(kind BankKind) []string {
	switch kind {
	case PlayerBank:
		return PlayerBankFields
	case InteractionBank:
		return InteractionBankFields
	}
	return nil
}

// Format is an audio container format the host can decode.
type Format string

const (
	FormatWAV Format = "wav"
	FormatOGG Format = "ogg"
	FormatMP3 Format = "mp3"
)

// Clip is a decoded audio clip. Samples are interleaved float32 PCM in [-1, 1].
type Clip struct {
	// Name is a display name for logs and debugging.
	Name string

	// Path is the file the clip was decoded from. Empty for host-owned clips.
	Path string

	Format     Format
	SampleRate int
	Channels   int
	Samples    []float32
}

// Duration returns the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	if c == nil || c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Settings are the playback parameters of an [Instance].
type Settings struct {
	Volume          float64 `json:"volume" yaml:"volume"`
	VolumeVariation float64 `json:"volumeVariation" yaml:"volume_variation"`
	Pitch           float64 `json:"pitch" yaml:"pitch"`
	PitchVariation  float64 `json:"pitchVariation" yaml:"pitch_variation"`
	Range           float64 `json:"range" yaml:"range"`
	CooldownSeconds float64 `json:"cooldownSeconds" yaml:"cooldown_seconds"`
	SpatialBlend    float64 `json:"spatialBlend" yaml:"spatial_blend"`
	DopplerLevel    float64 `json:"dopplerLevel" yaml:"doppler_level"`
	HighPriority    bool    `json:"highPriority" yaml:"high_priority"`
}

// Instance is one playable sound effect: a clip pool plus playback settings.
// Instances are treated as immutable once they are part of a [Bank].
type Instance struct {
	Name     string
	Settings Settings
	Clips    []*Clip

	// LastPlayed is the host's cooldown bookkeeping, carried over verbatim
	// when an instance is replaced.
	LastPlayed float64
}

// Bank is an immutable vocal bank: one [Instance] per field of its kind.
type Bank struct {
	name      string
	kind      BankKind
	instances map[string]*Instance
}

// NewBank creates a bank of the given kind. Fields missing from instances are
// left nil; unknown fields are ignored. The map is copied.
func NewBank(name string, kind BankKind, instances map[string]*Instance) *Bank {
	b := &Bank{
		name:      name,
		kind:      kind,
		instances: make(map[string]*Instance, len(FieldsOf(kind))),
	}
	for _, f := range FieldsOf(kind) {
		if inst, ok := instances[f]; ok {
			b.instances[f] = inst
		}
	}
	return b
}

// Name returns the bank's display name.
func (b *Bank) Name() string { return b.name }

// Kind returns the bank kind.
func (b *Bank) Kind() BankKind { return b.kind }

// Instance returns the instance stored in field, or nil.
func (b *Bank) Instance(field string) *Instance { return b.instances[field] }

// Fields returns the field names of the bank in declaration order.
func (b *Bank) Fields() []string { return FieldsOf(b.kind) }

// Decoder decodes an audio file into a [Clip]. Decoding may block on I/O and
// must honour ctx cancellation by returning an error.
type Decoder interface {
	Decode(ctx context.Context, path string, format Format) (*Clip, error)
}

// DecoderFunc adapts a function to the [Decoder] interface.
type DecoderFunc func(ctx context.Context, path string, format Format) (*Clip, error)

// Decode implements [Decoder].
func (f DecoderFunc) Decode(ctx context.Context, path string, format Format) (*Clip, error) {
	return f(ctx, path, format)
}

// Engine is the host's audio engine as seen by vocalswap.
//
// Implementations must be safe for concurrent use.
type Engine interface {
	// LiveBank returns the bank currently installed for kind. It returns nil
	// while the host has not created the owning game object yet.
	LiveBank(kind BankKind) *Bank

	// Install makes b the live bank for its kind.
	Install(ctx context.Context, b *Bank) error
}

// PlayEvent describes one sound effect dispatched by the host.
type PlayEvent struct {
	Kind     BankKind
	Field    string
	Instance *Instance
}

// PlayNotifier is implemented by engines that report dispatched sound effects.
// The returned function removes the listener.
type PlayNotifier interface {
	OnPlay(listener func(PlayEvent)) (remove func())
}
