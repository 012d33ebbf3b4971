// Package config loads the swarm feature flags from standard locations.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/orbitkit/constellation/errors"
)

// Environment variables that override the file-based flags.
const (
	EnvSwarmEnabled       = "SWARM_ENABLED"
	EnvSchemaValidation   = "SWARM_SCHEMA_VALIDATION"
	EnvEntropyCompression = "SWARM_ENTROPY_COMPRESSION"
	EnvMaxPayloadBytes    = "SWARM_MAX_PAYLOAD_BYTES"
)

// Flags is the recognized configuration surface.
type Flags struct {
	// SwarmEnabled turns the coordination core on. Default: false.
	SwarmEnabled bool `toml:"swarm_enabled"`

	// SchemaValidation rejects decoded health summaries that violate
	// their field bounds. Default: true.
	SchemaValidation bool `toml:"schema_validation"`

	// EntropyCompression enables the codec's LZ4 stage. Default: true.
	EntropyCompression bool `toml:"entropy_compression"`

	// MaxPayloadBytes caps the compressed health payload. Default: 1024.
	MaxPayloadBytes int `toml:"max_payload_bytes"`
}

// Defaults returns the flag defaults.
func Defaults() Flags {
	return Flags{
		SwarmEnabled:       false,
		SchemaValidation:   true,
		EntropyCompression: true,
		MaxPayloadBytes:    1024,
	}
}

// Validate checks the flags.
func (f *Flags) Validate() error {
	if f.MaxPayloadBytes <= 0 {
		return errors.Newf(errors.ErrCodeInvalidConfig, "max payload %d must be positive", f.MaxPayloadBytes)
	}
	return nil
}

// StandardPaths returns the config file locations in priority order.
func StandardPaths() []string {
	paths := []string{"swarm.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "orbitkit", "swarm.toml"))
		paths = append(paths, filepath.Join(home, ".orbitkit", "swarm.toml"))
	}
	return paths
}

// Load reads flags from the first available standard location, then applies
// environment overrides. A missing file is not an error; defaults apply.
func Load() (Flags, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			flags, err := LoadFile(path)
			if err != nil {
				return Defaults(), path, err
			}
			return flags, path, nil
		}
	}

	flags := Defaults()
	applyEnv(&flags)
	return flags, "", flags.Validate()
}

// LoadFile reads flags from a specific file and applies environment
// overrides on top.
func LoadFile(path string) (Flags, error) {
	flags := Defaults()
	if _, err := toml.DecodeFile(path, &flags); err != nil {
		return Defaults(), errors.WrapWithCode(err, errors.ErrCodeInvalidConfig, "parse config file")
	}

	applyEnv(&flags)
	return flags, flags.Validate()
}

// applyEnv overrides flags from the environment. Unparseable values are
// ignored so a bad variable cannot disable a safety-relevant default.
func applyEnv(f *Flags) {
	if v, ok := lookupBool(EnvSwarmEnabled); ok {
		f.SwarmEnabled = v
	}
	if v, ok := lookupBool(EnvSchemaValidation); ok {
		f.SchemaValidation = v
	}
	if v, ok := lookupBool(EnvEntropyCompression); ok {
		f.EntropyCompression = v
	}
	if raw := os.Getenv(EnvMaxPayloadBytes); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			f.MaxPayloadBytes = v
		}
	}
}

func lookupBool(name string) (bool, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
