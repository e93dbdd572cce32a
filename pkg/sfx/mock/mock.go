// Package mock provides in-memory mock implementations of the [sfx.Decoder] and
// [sfx.Engine] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	dec := &mock.Decoder{Errors: map[string]error{"/mods/bad.wav": io.ErrUnexpectedEOF}}
//	eng := &mock.Engine{Live: map[sfx.BankKind]*sfx.Bank{sfx.PlayerBank: base}}
package mock

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/MrWong99/vocalswap/pkg/sfx"
)

// ─── Decoder ──────────────────────────────────────────────────────────────────

// DecodeCall records the arguments of a single [Decoder.Decode] invocation.
type DecodeCall struct {
	Path   string
	Format sfx.Format
}

// Decoder is a mock implementation of [sfx.Decoder]. Unless Errors holds an
// entry for the path, Decode returns a fresh one-sample clip named after it.
type Decoder struct {
	mu sync.Mutex

	// Errors maps a path to the error Decode returns for it.
	Errors map[string]error

	// Delay is slept (honouring ctx) before every decode.
	Delay time.Duration

	// Calls records all Decode invocations in order.
	Calls []DecodeCall
}

// Decode implements [sfx.Decoder].
func (d *Decoder) Decode(ctx context.Context, path string, format sfx.Format) (*sfx.Clip, error) {
	d.mu.Lock()
	d.Calls = append(d.Calls, DecodeCall{Path: path, Format: format})
	err := d.Errors[path]
	delay := d.Delay
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	return &sfx.Clip{
		Name:       filepath.Base(path),
		Path:       path,
		Format:     format,
		SampleRate: 48000,
		Channels:   1,
		Samples:    []float32{0},
	}, nil
}

// CallCount returns how many times Decode was called.
func (d *Decoder) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Calls)
}

// CallsFor returns how many times Decode was called for path.
func (d *Decoder) CallsFor(path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.Calls {
		if c.Path == path {
			n++
		}
	}
	return n
}

// ─── Engine ───────────────────────────────────────────────────────────────────

// Engine is a mock implementation of [sfx.Engine] and [sfx.PlayNotifier].
// Installing a bank makes it the live bank for its kind.
type Engine struct {
	mu sync.Mutex

	// Live holds the live bank per kind. A missing entry reads as nil.
	Live map[sfx.BankKind]*sfx.Bank

	// InstallError is returned by Install (the live bank is left unchanged).
	InstallError error

	// Installed records every bank passed to Install, in order.
	Installed []*sfx.Bank

	// CallCountLiveBank records how many times LiveBank was called.
	CallCountLiveBank int

	listeners map[int]func(sfx.PlayEvent)
	nextID    int
}

// LiveBank implements [sfx.Engine].
func (e *Engine) LiveBank(kind sfx.BankKind) *sfx.Bank {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CallCountLiveBank++
	return e.Live[kind]
}

// Install implements [sfx.Engine].
func (e *Engine) Install(_ context.Context, b *sfx.Bank) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Installed = append(e.Installed, b)
	if e.InstallError != nil {
		return e.InstallError
	}
	if e.Live == nil {
		e.Live = make(map[sfx.BankKind]*sfx.Bank)
	}
	e.Live[b.Kind()] = b
	return nil
}

// SetLive replaces the live bank for kind, simulating the host (re)creating it.
func (e *Engine) SetLive(kind sfx.BankKind, b *sfx.Bank) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Live == nil {
		e.Live = make(map[sfx.BankKind]*sfx.Bank)
	}
	e.Live[kind] = b
}

// InstalledFor returns the banks installed for kind, in order.
func (e *Engine) InstalledFor(kind sfx.BankKind) []*sfx.Bank {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*sfx.Bank
	for _, b := range e.Installed {
		if b.Kind() == kind {
			out = append(out, b)
		}
	}
	return out
}

// OnPlay implements [sfx.PlayNotifier].
func (e *Engine) OnPlay(listener func(sfx.PlayEvent)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[int]func(sfx.PlayEvent))
	}
	id := e.nextID
	e.nextID++
	e.listeners[id] = listener
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// ListenerCount returns the number of registered play listeners.
func (e *Engine) ListenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// EmitPlay calls every registered listener with ev.
// Use this in tests to simulate the host dispatching a sound effect.
func (e *Engine) EmitPlay(ev sfx.PlayEvent) {
	e.mu.Lock()
	ls := make([]func(sfx.PlayEvent), 0, len(e.listeners))
	for _, l := range e.listeners {
		ls = append(ls, l)
	}
	e.mu.Unlock()
	for _, l := range ls {
		l(ev)
	}
}

// ─── Fixtures ─────────────────────────────────────────────────────────────────

// BaseBank returns a bank of kind with one instance per field. Every instance
// is named after its field, has volume 0.5, pitch 1 and a single host clip.
func BaseBank(kind sfx.BankKind) *sfx.Bank {
	instances := make(map[string]*sfx.Instance)
	for _, f := range sfx.FieldsOf(kind) {
		instances[f] = &sfx.Instance{
			Name: f,
			Settings: sfx.Settings{
				Volume:          0.5,
				VolumeVariation: 0.1,
				Pitch:           1,
				PitchVariation:  0.05,
				Range:           40,
				CooldownSeconds: 0.2,
				SpatialBlend:    0.5,
				DopplerLevel:    0.5,
			},
			Clips:      []*sfx.Clip{{Name: f + "_base"}},
			LastPlayed: 1.5,
		}
	}
	return sfx.NewBank("base "+kind.String(), kind, instances)
}
