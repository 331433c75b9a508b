// Package config loads the mp4dump YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultYaml = `
format: text
hexdump: true
max_rows: 0
log:
  level: warn
  format: console
  no_color: false
`

// Config is the mp4dump configuration. Flags override file values.
type Config struct {
	// Format is the output format, text or json.
	Format string `yaml:"format"`
	// HexDump shows hex dump tables in text output.
	HexDump bool `yaml:"hexdump"`
	// MaxRows limits the number of printed rows, 0 for no limit.
	MaxRows int `yaml:"max_rows"`
	Log     Log `yaml:"log"`
}

type Log struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	NoColor bool   `yaml:"no_color"`
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	if err := yaml.Unmarshal([]byte(defaultYaml), &c); err != nil {
		panic(err)
	}
	return c
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	if err := Decode(f, &c); err != nil {
		return c, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Decode reads YAML from r into c, keeping the values of absent keys.
func Decode(r io.Reader, c *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return c.Validate()
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be text or json, got %q", c.Format)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("max_rows must not be negative, got %d", c.MaxRows)
	}
	return nil
}
