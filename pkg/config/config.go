// Package config holds the options of a layout run and loads them from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"cstruct2yaml/pkg/diag"
	"cstruct2yaml/pkg/layout"
)

// Output formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Config is the full set of options. Sizes are in bits.
type Config struct {
	PackAlignment    int    `yaml:"pack_alignment"`
	PointerSize      int    `yaml:"pointer_size"`
	IncludeAnonymous bool   `yaml:"include_anonymous"`
	IncludeBitfields bool   `yaml:"include_bitfields"`
	IncludeOffsets   bool   `yaml:"include_offsets"`
	IncludeChildren  bool   `yaml:"include_children"`
	BitPrecision     bool   `yaml:"bit_precision"`
	FlattenAnonymous bool   `yaml:"flatten_anonymous"`
	OutputFormat     string `yaml:"output_format"`
	Verbose          bool   `yaml:"verbose"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		PackAlignment:    layout.DefaultPackBits,
		PointerSize:      layout.DefaultPointerBits,
		IncludeAnonymous: true,
		IncludeBitfields: true,
		IncludeOffsets:   true,
		IncludeChildren:  true,
		BitPrecision:     true,
		OutputFormat:     FormatYAML,
	}
}

// Load reads path over the defaults and validates the result. Keys missing
// from the file keep their default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, diag.New(diag.PhaseConfig, diag.KindInvalidConfig).
			File(path).
			Detail("cannot read config file").
			Cause(err).
			Build()
	}
	return Parse(data, path)
}

// Parse decodes YAML over the defaults. name is used in error messages.
func Parse(data []byte, name string) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, diag.New(diag.PhaseConfig, diag.KindInvalidConfig).
			File(name).
			Detail("cannot decode config").
			Cause(err).
			Build()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks sizes and the output format.
func (c Config) Validate() error {
	if c.PackAlignment <= 0 || c.PackAlignment%8 != 0 {
		return invalid("pack_alignment", "must be a positive multiple of 8 bits, got %d", c.PackAlignment)
	}
	if c.PointerSize <= 0 || c.PointerSize%8 != 0 {
		return invalid("pointer_size", "must be a positive multiple of 8 bits, got %d", c.PointerSize)
	}
	switch c.OutputFormat {
	case FormatYAML, FormatJSON:
	default:
		return invalid("output_format", "must be %q or %q, got %q", FormatYAML, FormatJSON, c.OutputFormat)
	}
	return nil
}

// Policy returns the alignment policy for c, with pragmaBits taking
// precedence over the configured pack alignment when non-zero.
func (c Config) Policy(pragmaBits int) (layout.Policy, error) {
	p, err := layout.NewPolicy(c.PackAlignment, c.PointerSize)
	if err != nil {
		return layout.Policy{}, fmt.Errorf("alignment policy: %w", err)
	}
	return p.WithPack(pragmaBits), nil
}

// Extension returns the file extension for the output format.
func (c Config) Extension() string {
	if c.OutputFormat == FormatJSON {
		return ".json"
	}
	return ".yml"
}

func invalid(field, msg string, args ...any) error {
	return diag.New(diag.PhaseConfig, diag.KindInvalidConfig).
		Symbol(field).
		Detail(msg, args...).
		Build()
}
