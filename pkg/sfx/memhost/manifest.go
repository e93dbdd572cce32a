package memhost

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/vocalswap/pkg/sfx"
)

// Manifest describes the original vocal banks of the host.
//
//	banks:
//	  player:
//	    name: PlayerVocals
//	    instances:
//	      jumpVocals:
//	        settings: {volume: 0.8, pitch: 1}
//	        clips: [jump_01, jump_02]
//	  interaction:
//	    ...
type Manifest struct {
	Banks map[string]BankManifest `yaml:"banks"`
}

// BankManifest describes one bank. The map key of [Manifest.Banks] is the
// bank kind ("player" or "interaction").
type BankManifest struct {
	Name      string                      `yaml:"name"`
	Instances map[string]InstanceManifest `yaml:"instances"`
}

// InstanceManifest describes one field of a bank. Clips are host-owned clip
// names; they carry no audio.
type InstanceManifest struct {
	Settings sfx.Settings `yaml:"settings"`
	Clips    []string     `yaml:"clips"`
}

// LoadManifest reads and validates the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("memhost: open manifest %q: %w", path, err)
	}
	defer f.Close()
	return ParseManifest(f)
}

// ParseManifest decodes and validates a manifest. Unknown keys are errors.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("memhost: decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate reports unknown bank kinds and unknown fields.
func (m *Manifest) Validate() error {
	var errs []error
	for kindName, bm := range m.Banks {
		kind, ok := sfx.ParseBankKind(kindName)
		if !ok {
			errs = append(errs, fmt.Errorf("banks.%s: unknown bank kind", kindName))
			continue
		}
		fields := sfx.FieldsOf(kind)
		for field := range bm.Instances {
			if !slices.Contains(fields, field) {
				errs = append(errs, fmt.Errorf("banks.%s.instances.%s: unknown field", kindName, field))
			}
		}
	}
	return errors.Join(errs...)
}

// Bank builds the bank of kind, or returns nil when the manifest has none.
func (m *Manifest) Bank(kind sfx.BankKind) *sfx.Bank {
	bm, ok := m.Banks[kind.String()]
	if !ok {
		return nil
	}
	name := bm.Name
	if name == "" {
		name = kind.String() + " vocals"
	}
	instances := make(map[string]*sfx.Instance, len(bm.Instances))
	for field, im := range bm.Instances {
		inst := &sfx.Instance{Name: field, Settings: im.Settings}
		for _, c := range im.Clips {
			inst.Clips = append(inst.Clips, &sfx.Clip{Name: c})
		}
		instances[field] = inst
	}
	return sfx.NewBank(name, kind, instances)
}

// DefaultManifest returns a manifest with every field of both kinds, unit
// volume and pitch and one clip named after the field.
func DefaultManifest() *Manifest {
	m := &Manifest{Banks: make(map[string]BankManifest, len(sfx.Kinds))}
	for _, kind := range sfx.Kinds {
		bm := BankManifest{Instances: make(map[string]InstanceManifest)}
		for _, f := range sfx.FieldsOf(kind) {
			bm.Instances[f] = InstanceManifest{
				Settings: sfx.Settings{
					Volume:          1,
					Pitch:           1,
					PitchVariation:  0.05,
					Range:           30,
					CooldownSeconds: 0.1,
					SpatialBlend:    1,
				},
				Clips: []string{f + "_01"},
			}
		}
		m.Banks[kind.String()] = bm
	}
	return m
}
