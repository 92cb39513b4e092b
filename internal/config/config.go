// Package config holds the daemon configuration, a TOML file under the
// profile directory.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents ~/.roomchat/config.toml.
type Config struct {
	// Pseudo is the display name used for the name-only login and the
	// chat-join-room handshake.
	Pseudo string `toml:"pseudo"`

	// ServerURL is the websocket endpoint of the chat backend.
	ServerURL string `toml:"server_url"`

	// APIBase is the base URL of the room/image HTTP API.
	APIBase string `toml:"api_base"`

	// ListenAddr is where the local HTTP surface (status, push
	// subscriptions) binds.
	ListenAddr string `toml:"listen_addr"`

	// DataDir overrides the default profile directory when set.
	DataDir string `toml:"data_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ServerURL:  "wss://api.tools.gavago.fr/socket",
		APIBase:    "https://api.tools.gavago.fr/socketio/api",
		ListenAddr: "127.0.0.1:8480",
	}
}

// Load reads config from the given path. Returns an error if the file is
// missing; callers fall back to Default.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
