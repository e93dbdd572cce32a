// Package memhost is an in-process host audio engine.
//
// A [Host] holds the live vocal bank of each kind, accepts replacement banks
// through [Host.Install] and dispatches plays to registered listeners. It
// backs the serve command and integration tests where no game process is
// attached.
package memhost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/vocalswap/pkg/sfx"
)

var (
	// ErrNoBank is returned by [Host.Play] when no bank of the kind is live.
	ErrNoBank = errors.New("memhost: no live bank")

	// ErrUnknownField is returned by [Host.Play] for a field the bank lacks.
	ErrUnknownField = errors.New("memhost: unknown field")
)

// Option configures a [Host].
type Option func(*Host)

// WithDeferredPlayer keeps the player bank absent until [Host.SpawnPlayer].
func WithDeferredPlayer() Option {
	return func(h *Host) { h.deferPlayer = true }
}

// Host implements [sfx.Engine] and [sfx.PlayNotifier]. It is safe for
// concurrent use.
type Host struct {
	manifest    *Manifest
	deferPlayer bool

	mu   sync.RWMutex
	live map[sfx.BankKind]*sfx.Bank

	lmu       sync.Mutex
	listeners map[int]func(sfx.PlayEvent)
	nextID    int
}

var (
	_ sfx.Engine       = (*Host)(nil)
	_ sfx.PlayNotifier = (*Host)(nil)
)

// New creates a Host with the banks of m live. A nil m uses
// [DefaultManifest].
func New(m *Manifest, opts ...Option) *Host {
	if m == nil {
		m = DefaultManifest()
	}
	h := &Host{
		manifest:  m,
		live:      make(map[sfx.BankKind]*sfx.Bank, len(sfx.Kinds)),
		listeners: make(map[int]func(sfx.PlayEvent)),
	}
	for _, o := range opts {
		o(h)
	}
	for _, kind := range sfx.Kinds {
		if kind == sfx.PlayerBank && h.deferPlayer {
			continue
		}
		if b := m.Bank(kind); b != nil {
			h.live[kind] = b
		}
	}
	return h
}

// LiveBank implements [sfx.Engine].
func (h *Host) LiveBank(kind sfx.BankKind) *sfx.Bank {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.live[kind]
}

// Install implements [sfx.Engine].
func (h *Host) Install(ctx context.Context, b *sfx.Bank) error {
	if b == nil {
		return errors.New("memhost: install nil bank")
	}
	if !b.Kind().IsValid() {
		return fmt.Errorf("memhost: install bank of invalid kind %d", b.Kind())
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	h.live[b.Kind()] = b
	h.mu.Unlock()
	slog.Debug("memhost: installed bank", "kind", b.Kind().String(), "bank", b.Name())
	return nil
}

// SpawnPlayer creates the player bank from the manifest if none is live and
// reports whether it did.
func (h *Host) SpawnPlayer() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.live[sfx.PlayerBank] != nil {
		return false
	}
	b := h.manifest.Bank(sfx.PlayerBank)
	if b == nil {
		return false
	}
	h.live[sfx.PlayerBank] = b
	return true
}

// Play dispatches the sound effect in field of the live bank of kind and
// returns the instance that was played.
func (h *Host) Play(kind sfx.BankKind, field string) (*sfx.Instance, error) {
	b := h.LiveBank(kind)
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoBank, kind)
	}
	inst := b.Instance(field)
	if inst == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, kind, field)
	}

	h.lmu.Lock()
	ls := make([]func(sfx.PlayEvent), 0, len(h.listeners))
	for _, l := range h.listeners {
		ls = append(ls, l)
	}
	h.lmu.Unlock()

	ev := sfx.PlayEvent{Kind: kind, Field: field, Instance: inst}
	for _, l := range ls {
		l(ev)
	}
	return inst, nil
}

// OnPlay implements [sfx.PlayNotifier].
func (h *Host) OnPlay(listener func(sfx.PlayEvent)) func() {
	h.lmu.Lock()
	defer h.lmu.Unlock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = listener
	return func() {
		h.lmu.Lock()
		defer h.lmu.Unlock()
		delete(h.listeners, id)
	}
}
