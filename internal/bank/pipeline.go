package bank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/vocalswap/internal/observe"
	"github.com/MrWong99/vocalswap/internal/slots"
	"github.com/MrWong99/vocalswap/internal/swapconfig"
	"github.com/MrWong99/vocalswap/pkg/sfx"
)

// ErrMissingBaseBank is returned when a bank is requested before the base bank
// of its kind has been captured.
var ErrMissingBaseBank = errors.New("bank: base bank not captured")

// SpecSource looks up the merged configuration of a skin, falling back to the
// default configuration. *swapconfig.Model satisfies it.
type SpecSource interface {
	Lookup(skin sfx.Skin) (*swapconfig.SwapSpecSet, bool)
}

// Result is the outcome of [Pipeline.GetOrBuildBank].
type Result struct {
	// Bank is the built replacement bank. Nil when Identity is set.
	Bank *sfx.Bank

	// Identity reports that no configuration applies and the original base
	// bank should be used unchanged.
	Identity bool
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithCatalog sets the slot catalog. Defaults to [slots.Default].
func WithCatalog(c *slots.Catalog) Option {
	return func(p *Pipeline) { p.catalog = c }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

type entry struct {
	bank *sfx.Bank

	// source is the cache index of the configuration the bank was built
	// from; it differs from the entry's key when a skin fell back to the
	// default configuration.
	source int
}

// Pipeline owns the captured base banks and the cache of built banks.
// It is safe for concurrent use.
type Pipeline struct {
	specs   SpecSource
	loader  ClipLoader
	catalog *slots.Catalog
	metrics *observe.Metrics

	mu    sync.Mutex
	base  map[sfx.BankKind]*sfx.Bank
	cache map[sfx.BankKind]map[int]entry

	// gens counts invalidations per kind and cache index. A build stores its
	// bank only when the generations it started from are still current.
	gens map[sfx.BankKind]map[int]uint64
}

// New creates a Pipeline reading configuration from specs and clips from
// loader.
func New(specs SpecSource, loader ClipLoader, opts ...Option) *Pipeline {
	p := &Pipeline{
		specs:   specs,
		loader:  loader,
		catalog: slots.Default(),
		base:    make(map[sfx.BankKind]*sfx.Bank, len(sfx.Kinds)),
		cache:   make(map[sfx.BankKind]map[int]entry, len(sfx.Kinds)),
		gens:    make(map[sfx.BankKind]map[int]uint64, len(sfx.Kinds)),
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	for _, k := range sfx.Kinds {
		p.cache[k] = make(map[int]entry)
		p.gens[k] = make(map[int]uint64)
	}
	return p
}

// CaptureBase records b as the original bank of its kind unless one was
// captured before. It returns the retained base bank, which is b on the first
// call. A nil b is ignored.
func (p *Pipeline) CaptureBase(b *sfx.Bank) *sfx.Bank {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b == nil {
		return nil
	}
	if cur, ok := p.base[b.Kind()]; ok {
		return cur
	}
	p.base[b.Kind()] = b
	slog.Info("bank: captured base bank", "kind", b.Kind().String(), "name", b.Name())
	return b
}

// Base returns the captured base bank of kind, or nil.
func (p *Pipeline) Base(kind sfx.BankKind) *sfx.Bank {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.base[kind]
}

// GetOrBuildBank returns the replacement bank of kind for skin. Banks are
// cached per skin; a skin without configuration of its own uses the default
// configuration, and when neither exists the result is Identity. Identity
// results are not cached.
//
// A build that was interrupted by ctx is returned as an error and not cached.
// A build that overlapped a call to [Pipeline.Invalidate] of its skin or of the
// default configuration is discarded and started again.
func (p *Pipeline) GetOrBuildBank(ctx context.Context, kind sfx.BankKind, skin sfx.Skin) (Result, error) {
	if !kind.IsValid() {
		return Result{}, fmt.Errorf("bank: invalid bank kind %d", kind)
	}
	if !skin.IsValid() {
		return Result{}, fmt.Errorf("bank: invalid skin %s", skin)
	}
	key := skin.CacheIndex()

	for {
		p.mu.Lock()
		base := p.base[kind]
		cached, hit := p.cache[kind][key]
		gen, defGen := p.gens[kind][key], p.gens[kind][sfx.DefaultCacheIndex]
		p.mu.Unlock()

		if base == nil {
			return Result{}, fmt.Errorf("%w: %s", ErrMissingBaseBank, kind)
		}
		if hit {
			p.metrics.RecordBankCacheHit(ctx, kind.String())
			return Result{Bank: cached.bank}, nil
		}

		set, ok := p.specs.Lookup(skin)
		if !ok {
			return Result{Identity: true}, nil
		}

		built, err := p.build(ctx, kind, skin, base, set)
		if err != nil {
			return Result{}, err
		}

		p.mu.Lock()
		if cur, ok := p.cache[kind][key]; ok {
			p.mu.Unlock()
			return Result{Bank: cur.bank}, nil
		}
		if p.gens[kind][key] != gen || p.gens[kind][sfx.DefaultCacheIndex] != defGen {
			p.mu.Unlock()
			observe.Logger(ctx).Debug("bank: configuration changed during build, building again",
				"kind", kind.String(), "skin", skin.String())
			continue
		}
		p.cache[kind][key] = entry{bank: built, source: set.Skin.CacheIndex()}
		p.mu.Unlock()

		observe.Logger(ctx).Info("bank: built replacement bank",
			"kind", kind.String(),
			"skin", skin.String(),
			"config", set.Skin.String(),
			"slots", len(set.Swaps),
		)
		return Result{Bank: built}, nil
	}
}

func (p *Pipeline) build(ctx context.Context, kind sfx.BankKind, skin sfx.Skin, base *sfx.Bank, set *swapconfig.SwapSpecSet) (*sfx.Bank, error) {
	ctx, span := observe.StartSwapSpan(ctx, "bank.build", kind.String(), skin.String(),
		observe.AttrConfig.String(set.Skin.String()),
	)
	defer span.End()

	start := time.Now()
	built, err := BuildBank(ctx, base, set, p.loader, p.catalog)
	p.metrics.RecordBankBuild(ctx, kind.String(), time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("bank: build %s bank for %s: %w", kind, skin, err)
	}
	return built, nil
}

// Invalidate evicts the bank of kind cached under cacheIndex, along with every
// bank of kind that was built from the configuration stored under cacheIndex.
func (p *Pipeline) Invalidate(kind sfx.BankKind, cacheIndex int) {
	if !kind.IsValid() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gens[kind][cacheIndex]++
	for key, e := range p.cache[kind] {
		if key == cacheIndex || e.source == cacheIndex {
			delete(p.cache[kind], key)
			p.metrics.RecordBankInvalidation(context.Background(), kind.String())
		}
	}
}

// Cached reports whether a bank of kind is cached for skin.
func (p *Pipeline) Cached(kind sfx.BankKind, skin sfx.Skin) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.cache[kind][skin.CacheIndex()]
	return ok
}
