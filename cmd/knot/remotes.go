package main

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// RemotesConfig holds all named remotes and tracks which one is active.
type RemotesConfig struct {
	Active  string            `toml:"active"`
	Remotes map[string]Remote `toml:"remotes"`
}

// Remote is a named server profile.
type Remote struct {
	URL     string `toml:"url"`
	Token   string `toml:"token,omitempty"`
	NATSURL string `toml:"nats_url,omitempty"`
}

// remotesPath returns ~/.local/state/knot/remotes.toml. It creates nothing;
// saveRemotesConfig makes the directory on demand.
func remotesPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "knot", "remotes.toml"), nil
}

func loadRemotesConfig() (RemotesConfig, error) {
	path, err := remotesPath()
	if err != nil {
		return RemotesConfig{}, err
	}
	cfg := RemotesConfig{Remotes: map[string]Remote{}}
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
		return RemotesConfig{}, err
	}
	if cfg.Remotes == nil {
		cfg.Remotes = map[string]Remote{}
	}
	return cfg, nil
}

func saveRemotesConfig(cfg RemotesConfig) error {
	path, err := remotesPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// The active profile is resolved once per process; edits to remotes.toml
// do not affect an already-running command.
var (
	activeOnce   sync.Once
	activeCached Remote
)

func activeRemote() Remote {
	activeOnce.Do(func() {
		cfg, err := loadRemotesConfig()
		if err != nil || cfg.Active == "" {
			return
		}
		activeCached = cfg.Remotes[cfg.Active]
	})
	return activeCached
}
