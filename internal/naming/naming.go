// Package naming implements the on-disk conventions used to discover vocal
// swaps: cross-platform path normalization and the dotted filename schemes for
// loose audio files and JSON configuration files.
//
//	<friendly>.<skin|default>.<slot>[.<sequence>].<wav|ogg|mp3>
//	<friendly>.<skin|default>.<suffix>.json
package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MrWong99/vocalswap/pkg/sfx"
)

// DefaultSegment is the skin segment that selects the default configuration.
const DefaultSegment = "default"

// DefaultConfigSuffix is the configuration file suffix used when none is configured.
const DefaultConfigSuffix = "hastevocalsfx"

// ErrUnsupportedFormat is returned for audio files with an unknown extension.
var ErrUnsupportedFormat = errors.New("naming: unsupported audio format")

var formats = map[string]sfx.Format{
	".wav": sfx.FormatWAV,
	".ogg": sfx.FormatOGG,
	".mp3": sfx.FormatMP3,
}

// SupportedExtensions returns the recognised audio extensions, sorted.
func SupportedExtensions() []string {
	return []string{".mp3", ".ogg", ".wav"}
}

// IsAudioFile reports whether name has a supported audio extension.
func IsAudioFile(name string) bool {
	_, ok := formats[strings.ToLower(filepath.Ext(name))]
	return ok
}

// FormatFromPath returns the audio format implied by the extension of path.
func FormatFromPath(path string) (sfx.Format, error) {
	ext := filepath.Ext(path)
	f, ok := formats[strings.ToLower(ext)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return f, nil
}

// NormalizePath rewrites the directory separators in path to the host
// separator, but only when path uses the other platform's separator
// exclusively. Paths that mix both separators, or already use the host
// separator, are returned unchanged.
func NormalizePath(path string) string {
	return normalizeFor(path, filepath.Separator)
}

func normalizeFor(path string, host rune) string {
	other := '\\'
	if host == '\\' {
		other = '/'
	}
	if strings.ContainsRune(path, host) || !strings.ContainsRune(path, other) {
		return path
	}
	return strings.ReplaceAll(path, string(other), string(host))
}

// JoinPaths normalizes every segment and joins them. Empty segments are
// skipped, and an absolute segment discards everything before it.
func JoinPaths(segments ...string) string {
	var parts []string
	for _, s := range segments {
		if s == "" {
			continue
		}
		s = NormalizePath(s)
		if filepath.IsAbs(s) {
			parts = parts[:0]
		}
		parts = append(parts, s)
	}
	return filepath.Join(parts...)
}

// AssetName is the parsed form of a loose audio filename.
type AssetName struct {
	Friendly string
	Skin     sfx.Skin

	// Token is the slot token exactly as written in the filename.
	Token string

	// Sequence is the optional ordering index; HasSequence reports presence.
	Sequence    int
	HasSequence bool

	Format sfx.Format
}

// ParseAssetFilename parses the base name of a loose audio file. It reports
// false for names that do not follow the convention; such files are ignored.
func ParseAssetFilename(name string) (AssetName, bool) {
	parts := strings.Split(filepath.Base(name), ".")
	if len(parts) < 4 || len(parts) > 5 {
		return AssetName{}, false
	}
	skin, ok := parseSkin(parts[1])
	if !ok {
		return AssetName{}, false
	}
	format, ok := formats["."+strings.ToLower(parts[len(parts)-1])]
	if !ok {
		return AssetName{}, false
	}
	a := AssetName{
		Friendly: parts[0],
		Skin:     skin,
		Token:    parts[2],
		Format:   format,
	}
	if a.Token == "" {
		return AssetName{}, false
	}
	if len(parts) == 5 {
		seq, err := strconv.Atoi(parts[3])
		if err != nil {
			return AssetName{}, false
		}
		a.Sequence, a.HasSequence = seq, true
	}
	return a, true
}

// ConfigName is the parsed form of a configuration filename.
type ConfigName struct {
	Friendly string
	Skin     sfx.Skin
}

// ParseConfigFilename parses the base name of a configuration file carrying
// the given suffix. It reports false for any other name.
func ParseConfigFilename(name, suffix string) (ConfigName, bool) {
	parts := strings.Split(filepath.Base(name), ".")
	if len(parts) != 4 || parts[2] != suffix || parts[3] != "json" {
		return ConfigName{}, false
	}
	skin, ok := parseSkin(parts[1])
	if !ok {
		return ConfigName{}, false
	}
	return ConfigName{Friendly: parts[0], Skin: skin}, true
}

// ExampleConfigName returns the file name of the example configuration for
// suffix. It targets skin 0.
func ExampleConfigName(suffix string) string {
	return "Example.00000." + suffix + ".json"
}

// IsConfigFile reports whether name ends in ".<suffix>.json".
func IsConfigFile(name, suffix string) bool {
	return strings.HasSuffix(name, "."+suffix+".json")
}

// ParseSkin parses a skin segment: "default" or a non-negative decimal index.
func ParseSkin(s string) (sfx.Skin, bool) {
	return parseSkin(s)
}

func parseSkin(s string) (sfx.Skin, bool) {
	if s == DefaultSegment {
		return sfx.DefaultSkin, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return sfx.Skin{}, false
	}
	return sfx.SkinIndex(n), true
}
