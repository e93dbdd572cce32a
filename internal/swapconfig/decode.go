package swapconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/MrWong99/vocalswap/pkg/sfx"
)

// ConfigParseError reports a configuration file that could not be decoded.
// The file is skipped; the rest of its directory is still registered.
type ConfigParseError struct {
	Path string
	Err  error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("swapconfig: parse %q: %v", e.Path, e.Err)
}

func (e *ConfigParseError) Unwrap() error { return e.Err }

// skinIndexKey is an optional top-level field some configuration files carry
// next to basePath and swaps.
const skinIndexKey = "skinIndex"

// Decode decodes one configuration file body read from r. The skin comes from
// the file name; a top-level skinIndex that disagrees with it is logged and
// ignored. Clip paths are returned as written; they are resolved when the set
// is registered with a [Model].
//
// Any failure is returned as a *[ConfigParseError].
func Decode(r io.Reader, path string, skin sfx.Skin) (*SwapSpecSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ConfigParseError{Path: path, Err: err}
	}
	if !gjson.ValidBytes(data) {
		return nil, &ConfigParseError{Path: path, Err: errors.New("invalid JSON")}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, &ConfigParseError{Path: path, Err: fmt.Errorf("top-level value must be an object, got %s", root.Type)}
	}

	set := NewSwapSpecSet(skin)
	if err := json.Unmarshal(data, set); err != nil {
		return nil, &ConfigParseError{Path: path, Err: err}
	}
	set.Skin = skin
	if set.Swaps == nil {
		set.Swaps = make(map[string]*SlotSwapSpec)
	}
	for token, slot := range set.Swaps {
		if slot == nil {
			delete(set.Swaps, token)
			continue
		}
		slot.explicit = len(slot.Clips) > 0
	}

	checkSkinIndex(root.Get(skinIndexKey), path, skin)
	return set, nil
}

func checkSkinIndex(v gjson.Result, path string, skin sfx.Skin) {
	if !v.Exists() || v.Type == gjson.Null {
		return
	}
	if v.Type != gjson.Number {
		slog.Warn("swapconfig: ignoring non-numeric skinIndex", "path", path, "value", v.Raw)
		return
	}
	idx, ok := skin.Index()
	if !ok || int64(idx) != v.Int() {
		slog.Warn("swapconfig: skinIndex disagrees with file name, using file name",
			"path", path,
			"skin", skin.String(),
			"skin_index", v.Int(),
		)
	}
}
