// Package controller decides which vocal bank is live in the host.
//
// A [Controller] reacts to three host events: a skin being equipped, a scene
// being loaded and a mod directory being registered. For each bank kind it
// captures the host's original bank the first time one exists, asks the bank
// pipeline for the bank of the equipped skin and installs it, or reinstalls
// the original when no configuration applies.
//
// Building and installing runs under one lock per bank kind, so a slow player
// bank build never delays the interaction bank. Failures are logged and never
// reach the caller. A build outlives the request that started it; only the
// context given to [WithLifetime] cancels it.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/vocalswap/internal/bank"
	"github.com/MrWong99/vocalswap/internal/observe"
	"github.com/MrWong99/vocalswap/internal/slots"
	"github.com/MrWong99/vocalswap/internal/swapconfig"
	"github.com/MrWong99/vocalswap/pkg/sfx"
)

// State is the build state of one bank kind.
type State int32

const (
	// Idle means no build or install is in flight.
	Idle State = iota

	// Rebuilding means a build or install is in flight.
	Rebuilding
)

// String returns "idle" or "rebuilding".
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Rebuilding:
		return "rebuilding"
	default:
		return "unknown"
	}
}

// Option configures a [Controller].
type Option func(*Controller)

// WithCatalog sets the slot catalog. Defaults to [slots.Default].
func WithCatalog(c *slots.Catalog) Option {
	return func(ctl *Controller) { ctl.catalog = c }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(ctl *Controller) { ctl.metrics = m }
}

// WithLifetime sets the context whose cancellation aborts builds in flight,
// usually the process context. Defaults to [context.Background].
func WithLifetime(ctx context.Context) Option {
	return func(ctl *Controller) { ctl.lifetime = ctx }
}

type kindState struct {
	mu    sync.Mutex
	state atomic.Int32
}

// Controller installs the bank of the equipped skin into the host engine.
// It is safe for concurrent use.
type Controller struct {
	engine   sfx.Engine
	model    *swapconfig.Model
	pipeline *bank.Pipeline
	catalog  *slots.Catalog
	metrics  *observe.Metrics
	lifetime context.Context

	kinds map[sfx.BankKind]*kindState

	equippedMu  sync.Mutex
	equipped    sfx.Skin
	hasEquipped bool

	playMu     sync.Mutex
	removePlay func()
}

// New creates a Controller. The pipeline must read its configuration from
// model, and model must invalidate the pipeline.
func New(engine sfx.Engine, model *swapconfig.Model, pipeline *bank.Pipeline, opts ...Option) *Controller {
	c := &Controller{
		engine:   engine,
		model:    model,
		pipeline: pipeline,
		catalog:  slots.Default(),
		lifetime: context.Background(),
		kinds:    make(map[sfx.BankKind]*kindState, len(sfx.Kinds)),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	for _, k := range sfx.Kinds {
		c.kinds[k] = &kindState{}
	}
	return c
}

// Equipped returns the last applied skin and whether any skin was applied yet.
func (c *Controller) Equipped() (sfx.Skin, bool) {
	c.equippedMu.Lock()
	defer c.equippedMu.Unlock()
	return c.equipped, c.hasEquipped
}

// State returns the build state of kind.
func (c *Controller) State(kind sfx.BankKind) State {
	ks, ok := c.kinds[kind]
	if !ok {
		return Idle
	}
	return State(ks.state.Load())
}

// Captured reports whether the base bank of kind has been captured.
func (c *Controller) Captured(kind sfx.BankKind) bool {
	return c.pipeline.Base(kind) != nil
}

// Ready reports whether the base banks of both kinds have been captured.
func (c *Controller) Ready() bool {
	for _, k := range sfx.Kinds {
		if !c.Captured(k) {
			return false
		}
	}
	return true
}

// ApplySkin records skin as equipped and installs its banks for both kinds
// concurrently. It blocks until both kinds are done.
func (c *Controller) ApplySkin(ctx context.Context, skin sfx.Skin) {
	if !skin.IsValid() {
		slog.Warn("controller: ignoring invalid skin", "skin", skin.String())
		return
	}
	c.equippedMu.Lock()
	c.equipped, c.hasEquipped = skin, true
	c.equippedMu.Unlock()

	ctx, span := observe.StartSwapSpan(ctx, "controller.apply_skin", "", skin.String())
	defer span.End()

	var g errgroup.Group
	for _, kind := range sfx.Kinds {
		g.Go(func() error {
			return c.ApplyKind(ctx, kind, skin)
		})
	}
	// ApplyKind logs its own failures.
	_ = g.Wait()
}

// ApplyKind installs the bank of kind for skin. When the base bank of kind
// cannot be captured yet it does nothing. The returned error has already
// been logged.
//
// Cancelling ctx does not abort the apply; ctx only contributes its values,
// such as the active span.
func (c *Controller) ApplyKind(ctx context.Context, kind sfx.BankKind, skin sfx.Skin) (err error) {
	ks, ok := c.kinds[kind]
	if !ok {
		return fmt.Errorf("controller: invalid bank kind %d", kind)
	}
	ctx, cancel := c.detach(ctx)
	defer cancel()
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.state.Store(int32(Rebuilding))
	defer ks.state.Store(int32(Idle))

	log := observe.Logger(ctx).With("kind", kind.String(), "skin", skin.String())
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("controller: apply %s bank: panic: %v", kind, r)
			log.Error("controller: could not replace vocals", "err", err)
		}
	}()

	base := c.pipeline.Base(kind)
	if base == nil {
		base = c.pipeline.CaptureBase(c.engine.LiveBank(kind))
	}
	if base == nil {
		log.Debug("controller: base bank not available yet")
		return nil
	}

	res, err := c.pipeline.GetOrBuildBank(ctx, kind, skin)
	if err != nil {
		c.metrics.RecordBankInstall(ctx, kind.String(), "error")
		log.Error("controller: could not replace vocals", "err", err)
		return err
	}

	target, result := res.Bank, "swapped"
	if res.Identity {
		target, result = base, "original"
	}
	if err := c.engine.Install(ctx, target); err != nil {
		c.metrics.RecordBankInstall(ctx, kind.String(), "error")
		err = fmt.Errorf("controller: install %s bank: %w", kind, err)
		log.Error("controller: could not replace vocals", "err", err)
		return err
	}
	c.metrics.RecordBankInstall(ctx, kind.String(), result)
	if res.Identity {
		log.Info("controller: reset to original bank", "bank", target.Name())
	} else {
		log.Info("controller: installed replacement bank", "bank", target.Name())
	}
	return nil
}

// detach returns a context with the values of ctx that is cancelled with the
// controller lifetime instead of with ctx.
func (c *Controller) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	dctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(c.lifetime, cancel)
	return dctx, func() {
		stop()
		cancel()
	}
}

// OnSkinEquipped handles the host reporting the equipped skin index.
func (c *Controller) OnSkinEquipped(ctx context.Context, index int) {
	if index < 0 {
		slog.Warn("controller: ignoring negative skin index", "index", index)
		return
	}
	c.ApplySkin(ctx, sfx.SkinIndex(index))
}

// OnSceneLoaded handles the host finishing a scene load. Only single-scene
// loads matter: when a base bank is still missing, the equipped skin is
// applied again so the base bank is captured once the host created it.
func (c *Controller) OnSceneLoaded(ctx context.Context, single bool) {
	if !single || c.Ready() {
		return
	}
	skin, ok := c.Equipped()
	if !ok {
		return
	}
	slog.Debug("controller: scene loaded without base banks, applying skin again", "skin", skin.String())
	c.ApplySkin(ctx, skin)
}

// OnDirectory registers a mod directory and returns the skins whose
// configuration it changed. When those include the equipped skin or the
// default configuration, the equipped skin is applied again.
func (c *Controller) OnDirectory(ctx context.Context, dir string) ([]sfx.Skin, error) {
	touched, err := c.model.RegisterDirectory(ctx, dir)
	if err != nil {
		return nil, err
	}
	skin, ok := c.Equipped()
	if !ok {
		return touched, nil
	}
	for _, t := range touched {
		if t == skin || t.IsDefault() {
			slog.Debug("controller: configuration of equipped skin changed", "skin", skin.String(), "dir", dir)
			c.ApplySkin(ctx, skin)
			break
		}
	}
	return touched, nil
}
