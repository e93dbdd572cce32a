package swapconfig

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/MrWong99/vocalswap/internal/naming"
	"github.com/MrWong99/vocalswap/internal/observe"
	"github.com/MrWong99/vocalswap/internal/slots"
	"github.com/MrWong99/vocalswap/pkg/sfx"
)

// Invalidator evicts cached banks built from outdated configuration.
type Invalidator interface {
	Invalidate(kind sfx.BankKind, cacheIndex int)
}

// InvalidatorFunc adapts a function to the [Invalidator] interface.
type InvalidatorFunc func(kind sfx.BankKind, cacheIndex int)

// Invalidate implements [Invalidator].
func (f InvalidatorFunc) Invalidate(kind sfx.BankKind, cacheIndex int) { f(kind, cacheIndex) }

// Option configures a [Model].
type Option func(*Model)

// WithInvalidator adds an invalidator notified for every skin a registration
// touches. May be given more than once.
func WithInvalidator(inv Invalidator) Option {
	return func(m *Model) { m.invalidators = append(m.invalidators, inv) }
}

// WithConfigSuffix sets the suffix of configuration file names.
// Defaults to [naming.DefaultConfigSuffix].
func WithConfigSuffix(suffix string) Option {
	return func(m *Model) {
		if suffix != "" {
			m.suffix = suffix
		}
	}
}

// WithCatalog sets the slot catalog used to match tokens.
// Defaults to [slots.Default].
func WithCatalog(c *slots.Catalog) Option {
	return func(m *Model) { m.catalog = c }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(met *observe.Metrics) Option {
	return func(m *Model) { m.metrics = met }
}

// Model is the process-wide merged swap configuration.
//
// A single lock guards each registration from the first file read to the
// last merge, so a bank build never observes a half-registered directory.
// Model is safe for concurrent use.
type Model struct {
	mu   sync.RWMutex
	sets map[sfx.Skin]*SwapSpecSet

	invMu        sync.Mutex
	invalidators []Invalidator

	suffix  string
	catalog *slots.Catalog
	metrics *observe.Metrics
}

// New creates an empty Model.
func New(opts ...Option) *Model {
	m := &Model{
		sets:    make(map[sfx.Skin]*SwapSpecSet),
		suffix:  naming.DefaultConfigSuffix,
		catalog: slots.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// AddInvalidator registers inv after construction. Used when the invalidator
// itself needs the Model to be built.
func (m *Model) AddInvalidator(inv Invalidator) {
	m.invMu.Lock()
	defer m.invMu.Unlock()
	m.invalidators = append(m.invalidators, inv)
}

// ConfigSuffix returns the suffix of configuration file names.
func (m *Model) ConfigSuffix() string { return m.suffix }

type discoveryKey struct {
	skin  sfx.Skin
	token string
}

// RegisterDirectory scans the files directly inside dir and merges their
// configuration into the model. Malformed configuration files and files that
// do not follow the naming conventions are logged and skipped. It returns the
// skins whose configuration was touched, in cache index order; their cached
// banks of both kinds are invalidated before RegisterDirectory returns.
//
// An error is returned only when dir itself cannot be read.
func (m *Model) RegisterDirectory(ctx context.Context, dir string) ([]sfx.Skin, error) {
	abs, err := filepath.Abs(naming.NormalizePath(dir))
	if err != nil {
		return nil, fmt.Errorf("swapconfig: resolve %q: %w", dir, err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("swapconfig: read directory %q: %w", abs, err)
	}

	log := observe.Logger(ctx).With("dir", abs)
	touched := make(map[sfx.Skin]struct{})

	m.mu.Lock()

	discovered := make(map[discoveryKey][]string)
	var order []discoveryKey
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		path := filepath.Join(abs, name)

		switch {
		case naming.IsAudioFile(name):
			asset, ok := naming.ParseAssetFilename(name)
			if !ok {
				log.Debug("swapconfig: ignoring audio file with unrecognised name", "file", name)
				continue
			}
			d, ok := m.catalog.Lookup(asset.Token)
			if !ok {
				log.Warn("swapconfig: ignoring audio file for unknown slot", "file", name, "token", asset.Token)
				continue
			}
			key := discoveryKey{skin: asset.Skin, token: d.Token}
			if _, seen := discovered[key]; !seen {
				order = append(order, key)
			}
			discovered[key] = append(discovered[key], path)

		case naming.IsConfigFile(name, m.suffix):
			cn, ok := naming.ParseConfigFilename(name, m.suffix)
			if !ok {
				log.Warn("swapconfig: ignoring configuration file with unrecognised name", "file", name)
				continue
			}
			set, err := loadFile(path, cn.Skin)
			if err != nil {
				m.metrics.ConfigParseErrors.Add(ctx, 1)
				log.Error("swapconfig: skipping configuration file", "file", name, "err", err)
				continue
			}
			m.canonicalize(log, set, path)
			resolveClips(set, abs)
			m.mergeConfig(log, set)
			touched[cn.Skin] = struct{}{}
			log.Info("swapconfig: loaded configuration file", "file", name, "skin", cn.Skin.String(), "slots", len(set.Swaps))
		}
	}

	for _, key := range order {
		m.mergeDiscovered(log, key, discovered[key])
		touched[key.skin] = struct{}{}
	}

	m.mu.Unlock()

	m.metrics.DirectoriesRegistered.Add(ctx, 1)
	skins := sortSkins(slices.Collect(maps.Keys(touched)))
	m.invalidate(skins)
	log.Info("swapconfig: registered directory", "skins", len(skins), "discovered_slots", len(order))
	return skins, nil
}

// RegisterExplicitSpec replaces the whole configuration of set.Skin with a
// copy of set, as if it had been read from a configuration file with no
// directory. Every slot with clips is explicit.
func (m *Model) RegisterExplicitSpec(ctx context.Context, set *SwapSpecSet) error {
	if set == nil {
		return errors.New("swapconfig: register explicit spec: nil set")
	}
	if !set.Skin.IsValid() {
		return fmt.Errorf("swapconfig: register explicit spec: invalid skin %s", set.Skin)
	}
	in := set.Clone()
	if in.Swaps == nil {
		in.Swaps = make(map[string]*SlotSwapSpec)
	}
	for token, slot := range in.Swaps {
		if slot == nil {
			delete(in.Swaps, token)
			continue
		}
		slot.explicit = len(slot.Clips) > 0
	}
	log := observe.Logger(ctx)
	m.canonicalize(log, in, "")
	resolveClips(in, "")

	m.mu.Lock()
	m.sets[in.Skin] = in
	m.mu.Unlock()

	m.invalidate([]sfx.Skin{in.Skin})
	log.Info("swapconfig: registered explicit spec", "skin", in.Skin.String(), "slots", len(in.Swaps))
	return nil
}

// Lookup returns a copy of the configuration of skin, falling back to the
// default configuration. It reports false when neither exists.
func (m *Model) Lookup(skin sfx.Skin) (*SwapSpecSet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if set, ok := m.sets[skin]; ok {
		return set.Clone(), true
	}
	if set, ok := m.sets[sfx.DefaultSkin]; ok {
		return set.Clone(), true
	}
	return nil, false
}

// Get returns a copy of the configuration registered for exactly skin.
func (m *Model) Get(skin sfx.Skin) (*SwapSpecSet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.sets[skin]
	if !ok {
		return nil, false
	}
	return set.Clone(), true
}

// Skins returns every configured skin in cache index order.
func (m *Model) Skins() []sfx.Skin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortSkins(slices.Collect(maps.Keys(m.sets)))
}

// Snapshot returns copies of every configured set in cache index order.
func (m *Model) Snapshot() []*SwapSpecSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*SwapSpecSet, 0, len(m.sets))
	for _, skin := range sortSkins(slices.Collect(maps.Keys(m.sets))) {
		out = append(out, m.sets[skin].Clone())
	}
	return out
}

// ─── Merging ─────────────────────────────────────────────────────────────────

// mergeConfig layers a decoded configuration file into the model. The caller
// must hold m.mu.
func (m *Model) mergeConfig(log *slog.Logger, in *SwapSpecSet) {
	cur, ok := m.sets[in.Skin]
	if !ok {
		m.sets[in.Skin] = in
		return
	}
	if cur.BasePath == "" {
		cur.BasePath = in.BasePath
	}
	for token, slot := range in.Swaps {
		prev, ok := cur.Swaps[token]
		if !ok {
			cur.Swaps[token] = slot
			continue
		}
		if prev.Explicit() {
			log.Debug("swapconfig: slot already configured, keeping earlier clips",
				"skin", in.Skin.String(), "slot", token)
			continue
		}
		if len(slot.Clips) == 0 {
			slot.Clips = prev.Clips
			slot.explicit = prev.explicit
		}
		if slot.BasePath == "" {
			slot.BasePath = prev.BasePath
		}
		slot.Settings = prev.Settings.layer(slot.Settings)
		cur.Swaps[token] = slot
	}
}

// mergeDiscovered folds the audio files found for one slot into the model.
// The caller must hold m.mu.
func (m *Model) mergeDiscovered(log *slog.Logger, key discoveryKey, paths []string) {
	set, ok := m.sets[key.skin]
	if !ok {
		set = NewSwapSpecSet(key.skin)
		m.sets[key.skin] = set
	}
	slot, ok := set.Swaps[key.token]
	if !ok {
		set.Swaps[key.token] = &SlotSwapSpec{Clips: slices.Clone(paths)}
		return
	}
	if slot.Explicit() {
		log.Debug("swapconfig: ignoring discovered files for explicitly configured slot",
			"skin", key.skin.String(), "slot", key.token, "files", len(paths))
		return
	}
	slot.Clips = slices.Clone(paths)
	slot.explicit = false
}

// canonicalize rewrites the slot keys of set to catalog tokens. Unknown keys
// are dropped; of several keys naming the same slot the alphabetically first
// one wins.
func (m *Model) canonicalize(log *slog.Logger, set *SwapSpecSet, path string) {
	out := make(map[string]*SlotSwapSpec, len(set.Swaps))
	for _, key := range set.Tokens() {
		d, ok := m.catalog.Lookup(key)
		if !ok {
			log.Warn("swapconfig: ignoring unknown slot", "path", path, "slot", key)
			continue
		}
		if _, dup := out[d.Token]; dup {
			log.Warn("swapconfig: ignoring duplicate slot", "path", path, "slot", key)
			continue
		}
		out[d.Token] = set.Swaps[key]
	}
	set.Swaps = out
}

// resolveClips rewrites every relative clip path of set to
// dir/set.BasePath/slot.BasePath/clip.
func resolveClips(set *SwapSpecSet, dir string) {
	for _, slot := range set.Swaps {
		for i, clip := range slot.Clips {
			p := naming.NormalizePath(clip)
			if filepath.IsAbs(p) {
				slot.Clips[i] = filepath.Clean(p)
				continue
			}
			slot.Clips[i] = naming.JoinPaths(dir, set.BasePath, slot.BasePath, clip)
		}
	}
}

func (m *Model) invalidate(skins []sfx.Skin) {
	m.invMu.Lock()
	invs := slices.Clone(m.invalidators)
	m.invMu.Unlock()
	for _, skin := range skins {
		for _, kind := range sfx.Kinds {
			for _, inv := range invs {
				inv.Invalidate(kind, skin.CacheIndex())
			}
		}
	}
}

func loadFile(path string, skin sfx.Skin) (*SwapSpecSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigParseError{Path: path, Err: err}
	}
	defer f.Close()
	return Decode(f, path, skin)
}

func sortSkins(skins []sfx.Skin) []sfx.Skin {
	slices.SortFunc(skins, func(a, b sfx.Skin) int {
		return cmp.Compare(a.CacheIndex(), b.CacheIndex())
	})
	return skins
}
