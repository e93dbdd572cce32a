// Package bank builds replacement vocal banks from swap configuration and
// caches them per (bank kind, skin).
//
// A built bank starts as a copy of the captured base bank. Every slot the
// configuration names gets a new [sfx.Instance] with overridden settings and
// clips; every other slot shares the base instance. Built banks are never
// modified; a configuration change evicts them through [Pipeline.Invalidate].
package bank

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrWong99/vocalswap/internal/slots"
	"github.com/MrWong99/vocalswap/internal/swapconfig"
	"github.com/MrWong99/vocalswap/pkg/sfx"
)

// ClipLoader resolves a clip path to a decoded clip.
type ClipLoader interface {
	GetOrLoad(ctx context.Context, path string) (*sfx.Clip, error)
}

// BuildBank builds a replacement for base from set. Clips that fail to load
// are logged and left out of their slot. The build fails only when a load was
// cancelled or timed out.
func BuildBank(ctx context.Context, base *sfx.Bank, set *swapconfig.SwapSpecSet, loader ClipLoader, catalog *slots.Catalog) (*sfx.Bank, error) {
	kind := base.Kind()
	label := set.Skin.Label()
	instances := make(map[string]*sfx.Instance, len(base.Fields()))

	for _, d := range catalog.Descriptors(kind) {
		orig := base.Instance(d.Field)
		slot, ok := set.Swaps[d.Token]
		if !ok {
			instances[d.Field] = orig
			continue
		}
		if orig == nil {
			orig = &sfx.Instance{Name: d.Field}
		}
		inst, err := buildInstance(ctx, orig, slot, label, loader)
		if err != nil {
			return nil, err
		}
		instances[d.Field] = inst
	}

	return sfx.NewBank(base.Name()+" "+label, kind, instances), nil
}

func buildInstance(ctx context.Context, orig *sfx.Instance, slot *swapconfig.SlotSwapSpec, label string, loader ClipLoader) (*sfx.Instance, error) {
	inst := &sfx.Instance{
		Name:       orig.Name + " " + label,
		Settings:   slot.Settings.Apply(orig.Settings),
		LastPlayed: orig.LastPlayed,
		Clips:      make([]*sfx.Clip, 0, len(slot.Clips)),
	}
	for _, path := range slot.Clips {
		clip, err := loader.GetOrLoad(ctx, path)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if err != nil {
			slog.Warn("bank: leaving clip out of slot", "instance", inst.Name, "path", path, "err", err)
			continue
		}
		inst.Clips = append(inst.Clips, clip)
	}
	return inst, nil
}
