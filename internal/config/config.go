// Package config exposes the narrow query interface the core consumes from
// the configuration file (§1: "the configuration-file reader... only its
// query interface is used"). Per §6.4 the config file is itself a RecordDB
// object, so this package is a thin, path-addressed view over a parsed
// recorddb.Object — it does not attempt to be a general config framework.
//
// Shaped after the teacher's internal/config/config.go (LoadConfig +
// ValidateConfig), generalized from a fixed TOML struct to an arbitrary
// RecordDB tree since the bot's config schema (server/nick/channels) bears
// no resemblance to a services daemon's (uplinks/dbs/services/policers).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ircservd/internal/recorddb"
)

// Config is a read-only view over a parsed RecordDB config tree.
type Config struct {
	root *recorddb.Object
	path string
}

// LoadConfig reads and parses the RecordDB file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	root, err := recorddb.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &Config{root: root, path: path}, nil
}

// Validate checks the presence of required keys, refusing startup on a
// fatal misconfiguration (§7 "Configuration errors... refuse startup for
// fatal misconfiguration").
func Validate(cfg *Config, required ...string) error {
	var missing []string
	for _, key := range required {
		if _, ok := cfg.lookup(key); !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration keys: %s", strings.Join(missing, ", "))
	}
	return nil
}

// lookup walks a '/'-separated path through nested objects, returning the
// leaf Value.
func (c *Config) lookup(path string) (*recorddb.Value, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	obj := c.root
	for i, part := range parts {
		v, ok := obj.Get(part)
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		if v.Kind != recorddb.KindObject {
			return nil, false
		}
		obj = v.Object
	}
	return nil, false
}

// GetString returns the scalar string at path, or def if absent.
func (c *Config) GetString(path, def string) string {
	v, ok := c.lookup(path)
	if !ok || v.Kind != recorddb.KindString {
		return def
	}
	return v.Str
}

// GetInt returns the integer at path, or def if absent or non-numeric.
func (c *Config) GetInt(path string, def int) int {
	v, ok := c.lookup(path)
	if !ok || v.Kind != recorddb.KindString {
		return def
	}
	n, err := strconv.Atoi(v.Str)
	if err != nil {
		return def
	}
	return n
}

// GetDuration treats the value at path as a count of seconds, matching
// §6.4's plain-integer interval keys (e.g. dbs/<name>/frequency).
func (c *Config) GetDuration(path string, def time.Duration) time.Duration {
	v, ok := c.lookup(path)
	if !ok || v.Kind != recorddb.KindString {
		return def
	}
	secs, err := strconv.Atoi(v.Str)
	if err != nil {
		return def
	}
	return time.Duration(secs) * time.Second
}

// GetStringList returns the list at path, or nil if absent.
func (c *Config) GetStringList(path string) []string {
	v, ok := c.lookup(path)
	if !ok || v.Kind != recorddb.KindList {
		return nil
	}
	return v.List
}

// Section returns the child object at path as its own Config view, or nil
// if absent. Used to hand a subsystem exactly its own config subtree, e.g.
// Section("services/chanserv").
func (c *Config) Section(path string) *Config {
	v, ok := c.lookup(path)
	if !ok || v.Kind != recorddb.KindObject {
		return nil
	}
	return &Config{root: v.Object, path: c.path}
}

// Names lists the immediate children at path (used to enumerate e.g. every
// configured uplink under uplinks/*).
func (c *Config) Names(path string) []string {
	if path == "" {
		return c.root.Names()
	}
	v, ok := c.lookup(path)
	if !ok || v.Kind != recorddb.KindObject {
		return nil
	}
	return v.Object.Names()
}
