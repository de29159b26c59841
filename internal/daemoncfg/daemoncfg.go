// Package daemoncfg loads and saves the daemon's TOML config file (spec
// §6.2) and implements the connect-command logic (spec §4.8) that
// appends a new control-plane entry to it.
package daemoncfg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is the daemon's config file location when --config is not
// given.
const DefaultPath = "/etc/wirewarden/daemon.toml"

// ErrTokenAlreadyConnected is returned by Connect when the config file
// already has an entry for the given api_token.
var ErrTokenAlreadyConnected = errors.New("daemoncfg: api token already connected")

// ServerEntry is one control plane this daemon polls.
type ServerEntry struct {
	APIHost  string `toml:"api_host"`
	APIToken string `toml:"api_token"`
}

// Config is the full daemon config file.
type Config struct {
	Servers []ServerEntry `toml:"servers"`
}

// Load reads and parses path. A missing file is equivalent to an empty
// Config{} — spec §6.2's "missing file is equivalent to servers = []".
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("daemoncfg: read %s: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("daemoncfg: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path atomically: marshal to a temp file in the
// same directory, then rename over the destination, so a crash mid-write
// never leaves a truncated config file for the next cycle to read.
func Save(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("daemoncfg: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("daemoncfg: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".daemon-*.toml")
	if err != nil {
		return fmt.Errorf("daemoncfg: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("daemoncfg: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("daemoncfg: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("daemoncfg: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("daemoncfg: rename into place: %w", err)
	}
	return nil
}

// Connect appends a new (apiHost, apiToken) entry to the config at path
// and persists it, rejecting a token that is already present. This is
// the whole of the `connect` CLI subcommand's logic; cmd/wirewarden-agent
// wraps it with flag parsing and user-facing output.
func Connect(path, apiHost, apiToken string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return Config{}, err
	}
	for _, entry := range cfg.Servers {
		if entry.APIToken == apiToken {
			return Config{}, ErrTokenAlreadyConnected
		}
	}
	cfg.Servers = append(cfg.Servers, ServerEntry{APIHost: apiHost, APIToken: apiToken})
	if err := Save(path, cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RemoveEntry drops the entry for apiToken from cfg, returning whether
// anything was removed. Used by the reconciler after a 401/404 response
// (spec §4.7 step 6) before it persists the pruned config.
func RemoveEntry(cfg Config, apiToken string) (Config, bool) {
	out := make([]ServerEntry, 0, len(cfg.Servers))
	removed := false
	for _, entry := range cfg.Servers {
		if entry.APIToken == apiToken {
			removed = true
			continue
		}
		out = append(out, entry)
	}
	cfg.Servers = out
	return cfg, removed
}
