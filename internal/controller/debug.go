package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/MrWong99/vocalswap/internal/bank"
	"github.com/MrWong99/vocalswap/internal/naming"
	"github.com/MrWong99/vocalswap/internal/swapconfig"
	"github.com/MrWong99/vocalswap/pkg/sfx"
)

// ErrNoPlayNotifier is returned by [Controller.SetPlayLogging] when the engine
// does not report dispatched sound effects.
var ErrNoPlayNotifier = errors.New("controller: engine does not report plays")

type exampleSlot struct {
	Clips    []string                     `json:"clips"`
	Settings *swapconfig.SettingsOverride `json:"settings"`
}

type exampleConfig struct {
	BasePath string                 `json:"basePath"`
	Swaps    map[string]exampleSlot `json:"swaps"`
}

// ExampleConfigName returns the file name of the example configuration for
// the configured suffix. It targets skin 0 so that dropping it into a mod
// directory has a visible effect.
func (c *Controller) ExampleConfigName() string {
	return naming.ExampleConfigName(c.model.ConfigSuffix())
}

// SlotTokens returns every slot token in alphabetical order.
func (c *Controller) SlotTokens() []string {
	return c.catalog.Tokens()
}

// ExampleConfig renders a configuration file that lists every slot with an
// empty clip list and the settings of the captured base banks. Slots are
// sorted alphabetically. Both base banks must have been captured.
func (c *Controller) ExampleConfig() ([]byte, error) {
	cfg := exampleConfig{Swaps: make(map[string]exampleSlot)}
	for _, kind := range sfx.Kinds {
		base := c.pipeline.Base(kind)
		if base == nil {
			return nil, fmt.Errorf("controller: example config: %w: %s", bank.ErrMissingBaseBank, kind)
		}
		for _, d := range c.catalog.Descriptors(kind) {
			var settings sfx.Settings
			if inst := base.Instance(d.Field); inst != nil {
				settings = inst.Settings
			}
			cfg.Swaps[d.Token] = exampleSlot{
				Clips:    []string{},
				Settings: swapconfig.OverrideFrom(settings),
			}
		}
	}
	// encoding/json writes map keys in sorted order.
	return json.MarshalIndent(cfg, "", "  ")
}

// WriteExampleConfig writes [Controller.ExampleConfig] to path.
func (c *Controller) WriteExampleConfig(path string) error {
	data, err := c.ExampleConfig()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("controller: write example config: %w", err)
	}
	slog.Info("controller: wrote example config", "path", path)
	return nil
}

// SetPlayLogging turns logging of every dispatched sound effect on or off.
// The engine must implement [sfx.PlayNotifier].
func (c *Controller) SetPlayLogging(on bool) error {
	n, ok := c.engine.(sfx.PlayNotifier)
	if !ok {
		return ErrNoPlayNotifier
	}

	c.playMu.Lock()
	defer c.playMu.Unlock()
	switch {
	case on && c.removePlay == nil:
		c.removePlay = n.OnPlay(logPlay)
		slog.Info("controller: logging played vocals")
	case !on && c.removePlay != nil:
		c.removePlay()
		c.removePlay = nil
		slog.Info("controller: stopped logging played vocals")
	}
	return nil
}

// PlayLogging reports whether played sound effects are logged.
func (c *Controller) PlayLogging() bool {
	c.playMu.Lock()
	defer c.playMu.Unlock()
	return c.removePlay != nil
}

func logPlay(ev sfx.PlayEvent) {
	name, clips := "<nil>", 0
	if ev.Instance != nil {
		name, clips = ev.Instance.Name, len(ev.Instance.Clips)
	}
	slog.Info("controller: vocal played",
		"kind", ev.Kind.String(),
		"field", ev.Field,
		"instance", name,
		"clips", clips,
	)
}
