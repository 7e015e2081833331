// Package config manages the uploader's stored user profiles and resolves
// which server and API key a run should use. Profiles live in a TOML file
// at ~/.immich/config.toml:
//
//	current_user = "home"
//
//	[users.home]
//	server_url = "http://192.168.1.10:2283"
//	api_key = "..."
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ErrUserNotFound is returned when a named profile does not exist.
var ErrUserNotFound = errors.New("user not found")

// Profile holds the server coordinates of one stored user.
type Profile struct {
	ServerURL string `toml:"server_url"`
	APIKey    string `toml:"api_key"`
}

// Config is the on-disk profile store.
type Config struct {
	CurrentUser string             `toml:"current_user,omitempty"`
	Users       map[string]Profile `toml:"users"`
}

// Path returns the location of the config file, ~/.immich/config.toml.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".immich", "config.toml"), nil
}

// Load reads the store from disk. A missing file is not an error: it
// yields an empty store, so first use works without setup.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	cfg := &Config{Users: map[string]Profile{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Users == nil {
		cfg.Users = map[string]Profile{}
	}
	return cfg, nil
}

// Save writes the store back, creating the config directory if needed.
// The file is written 0600: it holds API keys.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// AddUser stores a profile under name. The first profile ever added, or any
// profile added with makeDefault, becomes the current user.
func (c *Config) AddUser(name string, p Profile, makeDefault bool) {
	if c.Users == nil {
		c.Users = map[string]Profile{}
	}
	c.Users[name] = p
	if makeDefault || c.CurrentUser == "" {
		c.CurrentUser = name
	}
}

// DeleteUser removes a profile. Deleting the current user clears the
// default.
func (c *Config) DeleteUser(name string) error {
	if _, ok := c.Users[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUserNotFound, name)
	}
	delete(c.Users, name)
	if c.CurrentUser == name {
		c.CurrentUser = ""
	}
	return nil
}

// SetDefault marks an existing profile as the current user.
func (c *Config) SetDefault(name string) error {
	if _, ok := c.Users[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUserNotFound, name)
	}
	c.CurrentUser = name
	return nil
}

// CurrentProfile returns the default profile, if one is set and present.
func (c *Config) CurrentProfile() (string, Profile, bool) {
	if c.CurrentUser == "" {
		return "", Profile{}, false
	}
	p, ok := c.Users[c.CurrentUser]
	return c.CurrentUser, p, ok
}
