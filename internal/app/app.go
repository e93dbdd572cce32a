// Package app wires the vocalswap subsystems into a running service.
//
// New builds the host engine, decoder, configuration model, clip cache, bank
// pipeline, controller, mod directory source and HTTP surface from a
// [config.Config]. Run registers the mod directories, equips the configured
// skin and serves until the context is cancelled. Shutdown releases what Run
// left behind.
//
// Tests inject an engine and decoder through options; when an option is not
// given, New creates the in-process host and the file decoder.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/vocalswap/internal/bank"
	"github.com/MrWong99/vocalswap/internal/clipcache"
	"github.com/MrWong99/vocalswap/internal/config"
	"github.com/MrWong99/vocalswap/internal/controller"
	"github.com/MrWong99/vocalswap/internal/httpapi"
	"github.com/MrWong99/vocalswap/internal/moddir"
	"github.com/MrWong99/vocalswap/internal/observe"
	"github.com/MrWong99/vocalswap/internal/swapconfig"
	"github.com/MrWong99/vocalswap/pkg/sfx"
	"github.com/MrWong99/vocalswap/pkg/sfx/decode"
	"github.com/MrWong99/vocalswap/pkg/sfx/memhost"
)

// App owns the lifetime of every vocalswap subsystem.
type App struct {
	cfg *config.Config

	engine   sfx.Engine
	host     *memhost.Host // nil when an external engine was injected
	decoder  sfx.Decoder
	metrics  *observe.Metrics
	logLevel *slog.LevelVar

	model    *swapconfig.Model
	clips    *clipcache.Cache
	pipeline *bank.Pipeline
	ctl      *controller.Controller
	source   *moddir.Source
	api      *httpapi.Server

	stopOnce sync.Once
}

// Option configures an [App].
type Option func(*App)

// WithEngine injects the host engine instead of creating the in-process host
// from the manifest.
func WithEngine(e sfx.Engine) Option {
	return func(a *App) { a.engine = e }
}

// WithDecoder injects the audio decoder.
func WithDecoder(d sfx.Decoder) Option {
	return func(a *App) { a.decoder = d }
}

// WithMetrics sets the metrics sink of every subsystem.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel lets [App.Reload] change the log level.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New wires all subsystems. It loads the base bank manifest but registers no
// mod directory and installs nothing; that happens in [App.Run]. Cancelling
// ctx aborts bank builds and clip decodes in flight.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Host engine ───────────────────────────────────────────────────
	if a.engine == nil {
		host, err := newHost(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("app: init host: %w", err)
		}
		a.engine, a.host = host, host
	} else if h, ok := a.engine.(*memhost.Host); ok {
		a.host = h
	}
	if a.decoder == nil {
		a.decoder = decode.New()
	}

	// ── 2. Swap pipeline ─────────────────────────────────────────────────
	a.model = swapconfig.New(
		swapconfig.WithConfigSuffix(cfg.Mods.ConfigSuffix),
		swapconfig.WithMetrics(a.metrics),
	)
	a.clips = clipcache.New(a.decoder,
		clipcache.WithMetrics(a.metrics),
		clipcache.WithLifetime(ctx),
	)
	a.pipeline = bank.New(a.model, a.clips, bank.WithMetrics(a.metrics))
	a.model.AddInvalidator(a.pipeline)
	a.ctl = controller.New(a.engine, a.model, a.pipeline,
		controller.WithMetrics(a.metrics),
		controller.WithLifetime(ctx),
	)

	// ── 3. Mod directories ───────────────────────────────────────────────
	a.source = moddir.New(a.registerDirectory,
		moddir.WithRoots(cfg.Mods.Roots...),
		moddir.WithDirectories(cfg.Mods.Directories...),
		moddir.WithWatch(cfg.Mods.Watch),
		moddir.WithDebounce(cfg.Mods.Debounce),
		moddir.WithScanned(a.equipConfigured),
	)

	// ── 4. Debug aids ────────────────────────────────────────────────────
	if cfg.Debug.LogPlays {
		if err := a.ctl.SetPlayLogging(true); err != nil {
			slog.Warn("app: play logging unavailable", "err", err)
		}
	}

	// ── 5. HTTP surface ──────────────────────────────────────────────────
	if cfg.Server.ListenAddr != "" {
		apiOpts := []httpapi.Option{httpapi.WithMetrics(a.metrics)}
		if a.host != nil {
			apiOpts = append(apiOpts, httpapi.WithHost(a.host))
		}
		a.api = httpapi.New(a.ctl, a.model, apiOpts...)
	}

	slog.Debug("app: wired", "roots", len(cfg.Mods.Roots), "directories", len(cfg.Mods.Directories))
	return a, nil
}

func newHost(cfg config.HostConfig) (*memhost.Host, error) {
	manifest := memhost.DefaultManifest()
	if cfg.BaseBanks != "" {
		m, err := memhost.LoadManifest(cfg.BaseBanks)
		if err != nil {
			return nil, err
		}
		manifest = m
	}
	var opts []memhost.Option
	if cfg.DeferPlayer {
		opts = append(opts, memhost.WithDeferredPlayer())
	}
	return memhost.New(manifest, opts...), nil
}

// Controller returns the skin switch controller.
func (a *App) Controller() *controller.Controller { return a.ctl }

// Model returns the configuration model.
func (a *App) Model() *swapconfig.Model { return a.model }

// Host returns the in-process host, or nil when an engine was injected.
func (a *App) Host() *memhost.Host { return a.host }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run registers every mod directory, equips the configured skin, then
// watches for new mod directories and serves HTTP until ctx is cancelled.
// It returns ctx.Err() after a cancellation.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.source.Run(gctx)
	})
	if a.api != nil {
		g.Go(func() error {
			return a.api.ListenAndServe(gctx, a.cfg.Server.ListenAddr)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (a *App) registerDirectory(ctx context.Context, dir string) {
	if _, err := a.ctl.OnDirectory(ctx, dir); err != nil {
		slog.Warn("app: could not register mod directory", "dir", dir, "err", err)
	}
}

func (a *App) equipConfigured(ctx context.Context) {
	slog.Info("app: mod directories registered",
		"directories", len(a.source.Registered()),
		"skins_configured", len(a.model.Skins()),
	)
	a.ctl.OnSkinEquipped(ctx, a.cfg.Host.EquippedSkin)
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies the hot-reloadable part of a configuration change.
func (a *App) Reload(ctx context.Context, d config.ConfigDiff) {
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.Level())
		slog.Info("app: log level changed", "level", d.NewLogLevel)
	}
	if d.LogPlaysChanged {
		if err := a.ctl.SetPlayLogging(d.NewLogPlays); err != nil {
			slog.Warn("app: play logging unavailable", "err", err)
		}
	}
	for _, dir := range d.AddedDirectories {
		a.source.AddDirectory(ctx, dir)
	}
	for _, root := range d.AddedRoots {
		a.source.AddRoot(ctx, root)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("app: configuration changes need a restart", "fields", d.RestartRequired)
	}
}

// ─── Debug ───────────────────────────────────────────────────────────────────

// ExampleConfig captures the base banks of the host, spawning the player
// first when the host defers it, and renders the example configuration.
func (a *App) ExampleConfig(ctx context.Context) ([]byte, error) {
	if a.host != nil {
		a.host.SpawnPlayer()
	}
	for _, kind := range sfx.Kinds {
		a.pipeline.CaptureBase(a.engine.LiveBank(kind))
	}
	return a.ctl.ExampleConfig()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops play logging. Running goroutines stop with the context given
// to [App.Run].
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
			return
		}
		if a.ctl.PlayLogging() {
			if lerr := a.ctl.SetPlayLogging(false); lerr != nil && !errors.Is(lerr, controller.ErrNoPlayNotifier) {
				err = lerr
			}
		}
		slog.Info("app: shutdown complete", "clips_cached", a.clips.Len())
	})
	return err
}
