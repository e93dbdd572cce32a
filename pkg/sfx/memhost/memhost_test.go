package memhost_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/vocalswap/pkg/sfx"
	"github.com/MrWong99/vocalswap/pkg/sfx/memhost"
)

const testManifest = `
banks:
  player:
    name: PlayerVocals
    instances:
      jumpVocals:
        settings:
          volume: 0.8
          pitch: 1.1
          high_priority: true
        clips: [jump_01, jump_02]
  interaction:
    instances:
      greeting:
        clips: [hello]
`

func parse(t *testing.T, s string) *memhost.Manifest {
	t.Helper()
	m, err := memhost.ParseManifest(strings.NewReader(s))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	return m
}

func TestParseManifest(t *testing.T) {
	t.Parallel()

	m := parse(t, testManifest)
	player := m.Bank(sfx.PlayerBank)
	if player == nil {
		t.Fatal("player bank missing")
	}
	if player.Name() != "PlayerVocals" {
		t.Errorf("Name() = %q", player.Name())
	}
	jump := player.Instance("jumpVocals")
	if jump == nil {
		t.Fatal("jumpVocals missing")
	}
	if jump.Settings.Volume != 0.8 || jump.Settings.Pitch != 1.1 || !jump.Settings.HighPriority {
		t.Errorf("settings = %+v", jump.Settings)
	}
	if len(jump.Clips) != 2 || jump.Clips[0].Name != "jump_01" {
		t.Errorf("clips = %v", jump.Clips)
	}
	if player.Instance("landVocals") != nil {
		t.Error("landVocals should be nil")
	}

	interaction := m.Bank(sfx.InteractionBank)
	if interaction.Name() != "interaction vocals" {
		t.Errorf("default name = %q", interaction.Name())
	}
}

func TestParseManifest_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown kind", "banks:\n  boss:\n    name: x\n", "unknown bank kind"},
		{"unknown field", "banks:\n  player:\n    instances:\n      sneezeVocals: {}\n", "unknown field"},
		{"unknown key", "banks:\n  player:\n    colour: red\n", "colour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := memhost.ParseManifest(strings.NewReader(tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "banks.yaml")
	if err := os.WriteFile(path, []byte(testManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := memhost.LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Bank(sfx.PlayerBank) == nil {
		t.Error("player bank missing")
	}

	if _, err := memhost.LoadManifest(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing manifest")
	}
}

func TestDefaultManifest_CoversEveryField(t *testing.T) {
	t.Parallel()

	m := memhost.DefaultManifest()
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, kind := range sfx.Kinds {
		b := m.Bank(kind)
		for _, f := range sfx.FieldsOf(kind) {
			if b.Instance(f) == nil {
				t.Errorf("%s.%s missing", kind, f)
			}
		}
	}
}

func TestHost_InstallReplacesLiveBank(t *testing.T) {
	t.Parallel()

	h := memhost.New(nil)
	orig := h.LiveBank(sfx.InteractionBank)
	if orig == nil {
		t.Fatal("interaction bank missing")
	}

	repl := sfx.NewBank("swap", sfx.InteractionBank, nil)
	if err := h.Install(context.Background(), repl); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if h.LiveBank(sfx.InteractionBank) != repl {
		t.Error("live bank not replaced")
	}
	if h.LiveBank(sfx.PlayerBank) == nil {
		t.Error("player bank should be untouched")
	}

	if err := h.Install(context.Background(), nil); err == nil {
		t.Error("expected error installing nil bank")
	}
}

func TestHost_DeferredPlayer(t *testing.T) {
	t.Parallel()

	h := memhost.New(nil, memhost.WithDeferredPlayer())
	if h.LiveBank(sfx.PlayerBank) != nil {
		t.Fatal("player bank should be absent before spawn")
	}
	if !h.SpawnPlayer() {
		t.Fatal("SpawnPlayer() = false, want true")
	}
	first := h.LiveBank(sfx.PlayerBank)
	if first == nil {
		t.Fatal("player bank missing after spawn")
	}
	if h.SpawnPlayer() {
		t.Error("second SpawnPlayer() = true, want false")
	}
	if h.LiveBank(sfx.PlayerBank) != first {
		t.Error("second spawn replaced the bank")
	}
}

func TestHost_Play(t *testing.T) {
	t.Parallel()

	h := memhost.New(parse(t, testManifest))

	var got []sfx.PlayEvent
	remove := h.OnPlay(func(ev sfx.PlayEvent) { got = append(got, ev) })

	inst, err := h.Play(sfx.PlayerBank, "jumpVocals")
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if len(got) != 1 || got[0].Instance != inst || got[0].Field != "jumpVocals" || got[0].Kind != sfx.PlayerBank {
		t.Errorf("events = %+v", got)
	}

	remove()
	if _, err := h.Play(sfx.PlayerBank, "jumpVocals"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("listener called after removal: %d events", len(got))
	}

	if _, err := h.Play(sfx.PlayerBank, "landVocals"); !errors.Is(err, memhost.ErrUnknownField) {
		t.Errorf("err = %v, want ErrUnknownField", err)
	}

	deferred := memhost.New(nil, memhost.WithDeferredPlayer())
	if _, err := deferred.Play(sfx.PlayerBank, "jumpVocals"); !errors.Is(err, memhost.ErrNoBank) {
		t.Errorf("err = %v, want ErrNoBank", err)
	}
}

func TestLoadManifest_Shipped(t *testing.T) {
	t.Parallel()

	m, err := memhost.LoadManifest(filepath.Join("..", "..", "..", "configs", "banks.yaml"))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	for _, kind := range sfx.Kinds {
		b := m.Bank(kind)
		if b == nil {
			t.Fatalf("%s bank missing", kind)
		}
		for _, f := range sfx.FieldsOf(kind) {
			if b.Instance(f) == nil {
				t.Errorf("%s.%s missing", kind, f)
			}
		}
	}
}
