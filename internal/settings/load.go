package settings

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Format is the encoding of a settings file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported settings file extension %q", filepath.Ext(path))
	}
}

// Load reads a settings file and overlays it onto Default().
func Load(path string) (Settings, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Settings{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	s, err := Parse(data, format)
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse validates data against the settings schema and overlays it onto
// Default(). Fields absent from data keep their default.
func Parse(data []byte, format Format) (Settings, error) {
	ctx := cuecontext.New()

	var value cue.Value
	switch format {
	case FormatCUE:
		value = ctx.CompileBytes(data, cue.Filename("settings.cue"))
	case FormatYAML, FormatJSON:
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Settings{}, fmt.Errorf("%w: parse %s: %v", ErrInvalid, format, err)
		}
		return FromMap(raw)
	default:
		return Settings{}, fmt.Errorf("unsupported settings format %q", format)
	}
	if err := value.Err(); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return fromValue(ctx, value)
}

// FromMap validates a decoded document (e.g. a block of a scenario file)
// and overlays it onto Default().
func FromMap(raw map[string]any) (Settings, error) {
	ctx := cuecontext.New()
	if raw == nil {
		raw = map[string]any{}
	}
	value := ctx.Encode(raw)
	if err := value.Err(); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return fromValue(ctx, value)
}

func fromValue(ctx *cue.Context, value cue.Value) (Settings, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Settings{}, fmt.Errorf("compile settings schema: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Settings")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	doc, err := unified.MarshalJSON()
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	s := Default()
	if err := json.Unmarshal(doc, &s); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return s, nil
}
