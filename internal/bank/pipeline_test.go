package bank_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/vocalswap/internal/bank"
	"github.com/MrWong99/vocalswap/internal/clipcache"
	"github.com/MrWong99/vocalswap/internal/slots"
	"github.com/MrWong99/vocalswap/internal/swapconfig"
	"github.com/MrWong99/vocalswap/pkg/sfx"
	"github.com/MrWong99/vocalswap/pkg/sfx/mock"
)

// staticSpecs is a SpecSource backed by a map, with default fallback.
type staticSpecs struct {
	mu      sync.Mutex
	sets    map[sfx.Skin]*swapconfig.SwapSpecSet
	lookups int
}

func (s *staticSpecs) Lookup(skin sfx.Skin) (*swapconfig.SwapSpecSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if set, ok := s.sets[skin]; ok {
		return set.Clone(), true
	}
	if set, ok := s.sets[sfx.DefaultSkin]; ok {
		return set.Clone(), true
	}
	return nil, false
}

func (s *staticSpecs) put(set *swapconfig.SwapSpecSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[set.Skin] = set
}

// interruptedLoader fails its first fail loads the way a decode aborted by
// shutdown fails, then defers to next.
type interruptedLoader struct {
	mu   sync.Mutex
	fail int
	next bank.ClipLoader
}

func (l *interruptedLoader) GetOrLoad(ctx context.Context, path string) (*sfx.Clip, error) {
	l.mu.Lock()
	if l.fail > 0 {
		l.fail--
		l.mu.Unlock()
		return nil, &clipcache.ClipDecodeError{Path: path, Err: context.Canceled}
	}
	l.mu.Unlock()
	return l.next.GetOrLoad(ctx, path)
}

func ptr[T any](v T) *T { return &v }

func specSet(skin sfx.Skin, swaps map[string]*swapconfig.SlotSwapSpec) *swapconfig.SwapSpecSet {
	set := swapconfig.NewSwapSpecSet(skin)
	for k, v := range swaps {
		set.Swaps[k] = v
	}
	return set
}

type fixture struct {
	specs    *staticSpecs
	decoder  *mock.Decoder
	pipeline *bank.Pipeline
	dir      string
}

func newFixture(t *testing.T, sets ...*swapconfig.SwapSpecSet) *fixture {
	t.Helper()
	specs := &staticSpecs{sets: make(map[sfx.Skin]*swapconfig.SwapSpecSet)}
	for _, s := range sets {
		specs.sets[s.Skin] = s
	}
	dec := &mock.Decoder{}
	p := bank.New(specs, clipcache.New(dec))
	for _, k := range sfx.Kinds {
		p.CaptureBase(mock.BaseBank(k))
	}
	return &fixture{specs: specs, decoder: dec, pipeline: p, dir: t.TempDir()}
}

func (f *fixture) clip(name string) string { return filepath.Join(f.dir, name) }

func mustBuild(t *testing.T, p *bank.Pipeline, kind sfx.BankKind, skin sfx.Skin) *sfx.Bank {
	t.Helper()
	res, err := p.GetOrBuildBank(context.Background(), kind, skin)
	if err != nil {
		t.Fatalf("GetOrBuildBank(%s, %s): %v", kind, skin, err)
	}
	if res.Identity {
		t.Fatalf("GetOrBuildBank(%s, %s) returned identity", kind, skin)
	}
	return res.Bank
}

func TestGetOrBuildBank_ReplacesOnlyConfiguredSlots(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.specs.sets[sfx.SkinIndex(3)] = specSet(sfx.SkinIndex(3), map[string]*swapconfig.SlotSwapSpec{
		"jump": {
			Clips:    []string{f.clip("a.wav"), f.clip("b.ogg")},
			Settings: &swapconfig.SettingsOverride{Volume: ptr(1.5), Pitch: ptr(2.0)},
		},
	})

	base := f.pipeline.Base(sfx.PlayerBank)
	b := mustBuild(t, f.pipeline, sfx.PlayerBank, sfx.SkinIndex(3))

	if b == base {
		t.Fatal("built bank is the base bank")
	}
	if b.Name() != "base player Skin 3 Swap" {
		t.Errorf("Name = %q", b.Name())
	}

	jump := b.Instance("jumpVocals")
	orig := base.Instance("jumpVocals")
	if jump == orig {
		t.Fatal("configured slot shares the base instance")
	}
	if jump.Name != "jumpVocals Skin 3 Swap" {
		t.Errorf("instance name = %q", jump.Name)
	}
	if jump.Settings.Volume != 1 {
		t.Errorf("volume = %v, want 1 (clamped)", jump.Settings.Volume)
	}
	if jump.Settings.Pitch != 2 {
		t.Errorf("pitch = %v, want 2", jump.Settings.Pitch)
	}
	if jump.Settings.Range != orig.Settings.Range {
		t.Errorf("range = %v, want inherited %v", jump.Settings.Range, orig.Settings.Range)
	}
	if jump.LastPlayed != orig.LastPlayed {
		t.Errorf("LastPlayed = %v, want %v", jump.LastPlayed, orig.LastPlayed)
	}
	if len(jump.Clips) != 2 || jump.Clips[0].Path != f.clip("a.wav") || jump.Clips[1].Path != f.clip("b.ogg") {
		t.Errorf("clips = %+v", jump.Clips)
	}

	for _, field := range b.Fields() {
		if field == "jumpVocals" {
			continue
		}
		if b.Instance(field) != base.Instance(field) {
			t.Errorf("unconfigured slot %s does not share the base instance", field)
		}
	}
}

func TestGetOrBuildBank_InteractionSlots(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.specs.sets[sfx.DefaultSkin] = specSet(sfx.DefaultSkin, map[string]*swapconfig.SlotSwapSpec{
		"interactionLaugh": {Clips: []string{f.clip("haha.mp3")}},
		"jump":             {Clips: []string{f.clip("j.wav")}},
	})

	b := mustBuild(t, f.pipeline, sfx.InteractionBank, sfx.DefaultSkin)
	base := f.pipeline.Base(sfx.InteractionBank)

	if b.Instance("laugh") == base.Instance("laugh") {
		t.Error("laugh slot was not replaced")
	}
	if b.Instance("laugh").Name != "laugh Default Swap" {
		t.Errorf("instance name = %q", b.Instance("laugh").Name)
	}
	if f.decoder.CallsFor(f.clip("j.wav")) != 0 {
		t.Error("player slot clips were loaded for the interaction bank")
	}
}

func TestGetOrBuildBank_SettingsOnlySlotHasNoClips(t *testing.T) {
	t.Parallel()
	f := newFixture(t, specSet(sfx.SkinIndex(1), map[string]*swapconfig.SlotSwapSpec{
		"hurt": {Settings: &swapconfig.SettingsOverride{DopplerLevel: ptr(-4.0)}},
	}))

	hurt := mustBuild(t, f.pipeline, sfx.PlayerBank, sfx.SkinIndex(1)).Instance("hurtVocals")
	if len(hurt.Clips) != 0 {
		t.Errorf("clips = %d, want 0", len(hurt.Clips))
	}
	if hurt.Settings.DopplerLevel != 0 {
		t.Errorf("doppler = %v, want 0", hurt.Settings.DopplerLevel)
	}
}

func TestGetOrBuildBank_SkipsFailedClips(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.decoder.Errors = map[string]error{f.clip("bad.wav"): errors.New("corrupt")}
	f.specs.sets[sfx.SkinIndex(2)] = specSet(sfx.SkinIndex(2), map[string]*swapconfig.SlotSwapSpec{
		"death": {Clips: []string{f.clip("bad.wav"), f.clip("good.wav"), f.clip("odd.flac")}},
	})

	death := mustBuild(t, f.pipeline, sfx.PlayerBank, sfx.SkinIndex(2)).Instance("deathVocals")
	if len(death.Clips) != 1 || death.Clips[0].Path != f.clip("good.wav") {
		t.Errorf("clips = %+v, want only good.wav", death.Clips)
	}
}

func TestGetOrBuildBank_CachedBankIsIdentical(t *testing.T) {
	t.Parallel()
	f := newFixture(t, specSet(sfx.SkinIndex(4), map[string]*swapconfig.SlotSwapSpec{
		"idle": {Clips: []string{"/x/idle.wav"}},
	}))

	first := mustBuild(t, f.pipeline, sfx.PlayerBank, sfx.SkinIndex(4))
	second := mustBuild(t, f.pipeline, sfx.PlayerBank, sfx.SkinIndex(4))

	if first != second {
		t.Error("consecutive builds returned different banks")
	}
	if f.specs.lookups != 1 {
		t.Errorf("spec lookups = %d, want 1", f.specs.lookups)
	}
	if !f.pipeline.Cached(sfx.PlayerBank, sfx.SkinIndex(4)) {
		t.Error("bank should be cached")
	}
}

func TestInvalidate_ForcesRebuild(t *testing.T) {
	t.Parallel()
	f := newFixture(t, specSet(sfx.SkinIndex(4), map[string]*swapconfig.SlotSwapSpec{
		"idle": {Clips: []string{"/x/idle.wav"}},
	}))

	first := mustBuild(t, f.pipeline, sfx.PlayerBank, sfx.SkinIndex(4))
	inter := mustBuild(t, f.pipeline, sfx.InteractionBank, sfx.SkinIndex(4))

	f.pipeline.Invalidate(sfx.PlayerBank, 4)

	second := mustBuild(t, f.pipeline, sfx.PlayerBank, sfx.SkinIndex(4))
	if first == second {
		t.Error("bank was not rebuilt after invalidation")
	}
	if mustBuild(t, f.pipeline, sfx.InteractionBank, sfx.SkinIndex(4)) != inter {
		t.Error("invalidating the player bank evicted the interaction bank")
	}
	if f.decoder.CallCount() != 1 {
		t.Errorf("decode calls = %d, want 1 (clips stay cached)", f.decoder.CallCount())
	}
}

func TestGetOrBuildBank_CallerCancellationKeepsClips(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.decoder.Delay = 50 * time.Millisecond
	f.specs.put(specSet(sfx.SkinIndex(1), map[string]*swapconfig.SlotSwapSpec{
		"jump": {Clips: []string{f.clip("jump.wav")}},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(5*time.Millisecond, cancel)
	defer timer.Stop()

	res, err := f.pipeline.GetOrBuildBank(ctx, sfx.PlayerBank, sfx.SkinIndex(1))
	if err != nil {
		t.Fatalf("GetOrBuildBank: %v", err)
	}
	if got := len(res.Bank.Instance("jumpVocals").Clips); got != 1 {
		t.Fatalf("jump clips = %d, want 1", got)
	}
	if later := mustBuild(t, f.pipeline, sfx.PlayerBank, sfx.SkinIndex(1)); later != res.Bank {
		t.Error("complete bank was not cached")
	}
}

func TestGetOrBuildBank_InterruptedBuildIsNotCached(t *testing.T) {
	t.Parallel()
	specs := &staticSpecs{sets: map[sfx.Skin]*swapconfig.SwapSpecSet{
		sfx.SkinIndex(1): specSet(sfx.SkinIndex(1), map[string]*swapconfig.SlotSwapSpec{
			"jump": {Clips: []string{"/x/jump.wav"}},
		}),
	}}
	loader := &interruptedLoader{fail: 1, next: clipcache.New(&mock.Decoder{})}
	p := bank.New(specs, loader)
	p.CaptureBase(mock.BaseBank(sfx.PlayerBank))

	_, err := p.GetOrBuildBank(context.Background(), sfx.PlayerBank, sfx.SkinIndex(1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if p.Cached(sfx.PlayerBank, sfx.SkinIndex(1)) {
		t.Fatal("interrupted build was cached")
	}

	b := mustBuild(t, p, sfx.PlayerBank, sfx.SkinIndex(1))
	if got := len(b.Instance("jumpVocals").Clips); got != 1 {
		t.Errorf("jump clips after retry = %d, want 1", got)
	}
}

func TestGetOrBuildBank_InvalidationDuringBuild(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.decoder.Delay = 100 * time.Millisecond
	oldClip, newClip := f.clip("old.wav"), f.clip("new.wav")
	f.specs.put(specSet(sfx.SkinIndex(1), map[string]*swapconfig.SlotSwapSpec{
		"jump": {Clips: []string{oldClip}},
	}))

	type outcome struct {
		res bank.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := f.pipeline.GetOrBuildBank(context.Background(), sfx.PlayerBank, sfx.SkinIndex(1))
		done <- outcome{res, err}
	}()

	for f.decoder.CallsFor(oldClip) == 0 {
		time.Sleep(time.Millisecond)
	}
	f.specs.put(specSet(sfx.SkinIndex(1), map[string]*swapconfig.SlotSwapSpec{
		"jump": {Clips: []string{newClip}},
	}))
	f.pipeline.Invalidate(sfx.PlayerBank, 1)

	var out outcome
	select {
	case out = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("build did not finish")
	}
	if out.err != nil {
		t.Fatalf("GetOrBuildBank: %v", out.err)
	}
	if got := out.res.Bank.Instance("jumpVocals").Clips[0].Path; got != newClip {
		t.Errorf("returned bank plays %q, want %q", got, newClip)
	}
	cached := mustBuild(t, f.pipeline, sfx.PlayerBank, sfx.SkinIndex(1))
	if got := cached.Instance("jumpVocals").Clips[0].Path; got != newClip {
		t.Errorf("cached bank plays %q, want %q", got, newClip)
	}
}

func TestGetOrBuildBank_FallsBackToDefault(t *testing.T) {
	t.Parallel()
	f := newFixture(t, specSet(sfx.DefaultSkin, map[string]*swapconfig.SlotSwapSpec{
		"fall": {Clips: []string{"/x/fall.wav"}},
	}))

	b := mustBuild(t, f.pipeline, sfx.PlayerBank, sfx.SkinIndex(8))
	if b.Name() != "base player Default Swap" {
		t.Errorf("Name = %q, want the default configuration", b.Name())
	}

	// Evicting the default configuration also evicts skins built from it.
	f.pipeline.Invalidate(sfx.PlayerBank, sfx.DefaultCacheIndex)
	if f.pipeline.Cached(sfx.PlayerBank, sfx.SkinIndex(8)) {
		t.Error("skin 8 built from the default configuration survived its invalidation")
	}
}

func TestGetOrBuildBank_IdentityWithoutConfiguration(t *testing.T) {
	t.Parallel()
	f := newFixture(t, specSet(sfx.SkinIndex(1), nil))

	res, err := f.pipeline.GetOrBuildBank(context.Background(), sfx.PlayerBank, sfx.SkinIndex(2))
	if err != nil {
		t.Fatalf("GetOrBuildBank: %v", err)
	}
	if !res.Identity || res.Bank != nil {
		t.Errorf("result = %+v, want identity", res)
	}
	if f.pipeline.Cached(sfx.PlayerBank, sfx.SkinIndex(2)) {
		t.Error("identity results must not be cached")
	}
}

func TestGetOrBuildBank_MissingBaseBank(t *testing.T) {
	t.Parallel()
	specs := &staticSpecs{sets: map[sfx.Skin]*swapconfig.SwapSpecSet{
		sfx.DefaultSkin: specSet(sfx.DefaultSkin, nil),
	}}
	p := bank.New(specs, clipcache.New(&mock.Decoder{}))

	_, err := p.GetOrBuildBank(context.Background(), sfx.PlayerBank, sfx.DefaultSkin)
	if !errors.Is(err, bank.ErrMissingBaseBank) {
		t.Fatalf("err = %v, want ErrMissingBaseBank", err)
	}
	if specs.lookups != 0 {
		t.Error("configuration was consulted without a base bank")
	}
}

func TestGetOrBuildBank_RejectsInvalidArguments(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	if _, err := f.pipeline.GetOrBuildBank(context.Background(), sfx.PlayerBank, sfx.SkinIndex(-1)); err == nil {
		t.Error("expected error for negative skin")
	}
	if _, err := f.pipeline.GetOrBuildBank(context.Background(), sfx.BankKind(7), sfx.DefaultSkin); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestCaptureBase_KeepsFirst(t *testing.T) {
	t.Parallel()
	p := bank.New(&staticSpecs{}, clipcache.New(&mock.Decoder{}))

	if got := p.CaptureBase(nil); got != nil {
		t.Errorf("CaptureBase(nil) = %v, want nil", got)
	}
	first := mock.BaseBank(sfx.PlayerBank)
	second := mock.BaseBank(sfx.PlayerBank)

	if got := p.CaptureBase(first); got != first {
		t.Error("first capture not retained")
	}
	if got := p.CaptureBase(second); got != first {
		t.Error("second capture replaced the first")
	}
	if p.Base(sfx.InteractionBank) != nil {
		t.Error("interaction base captured unexpectedly")
	}
}

func TestClipDedupAcrossSlots(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	shared := f.clip("shared.wav")
	f.specs.sets[sfx.SkinIndex(6)] = specSet(sfx.SkinIndex(6), map[string]*swapconfig.SlotSwapSpec{
		"jump": {Clips: []string{shared}},
		"land": {Clips: []string{shared}},
	})

	b := mustBuild(t, f.pipeline, sfx.PlayerBank, sfx.SkinIndex(6))
	if got := f.decoder.CallsFor(shared); got != 1 {
		t.Errorf("decode calls = %d, want 1", got)
	}
	if b.Instance("jumpVocals").Clips[0] != b.Instance("landVocals").Clips[0] {
		t.Error("slots hold different handles for the same clip")
	}
}

func TestBuildBank_UsesCatalogTokens(t *testing.T) {
	t.Parallel()
	base := mock.BaseBank(sfx.PlayerBank)
	set := specSet(sfx.SkinIndex(0), map[string]*swapconfig.SlotSwapSpec{
		"landPerfect": {Settings: &swapconfig.SettingsOverride{HighPriority: ptr(true)}},
	})

	b, err := bank.BuildBank(context.Background(), base, set, clipcache.New(&mock.Decoder{}), slots.Default())
	if err != nil {
		t.Fatalf("BuildBank: %v", err)
	}
	if !b.Instance("landVocalsPerfect").Settings.HighPriority {
		t.Error("landPerfect did not map to landVocalsPerfect")
	}
	if b.Instance("landVocals") != base.Instance("landVocals") {
		t.Error("landVocals should be untouched")
	}
}
