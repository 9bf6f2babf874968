// Package userconfig persists chess-arena preferences in a YAML file.
package userconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"
)

type Config struct {
	Theme       string    `yaml:"theme"`
	ServerURL   string    `yaml:"serverUrl"`
	Sound       bool      `yaml:"sound"`
	ShowPreview bool      `yaml:"showPreview"`
	AutoConnect bool      `yaml:"autoConnect"`
	Difficulty  string    `yaml:"difficulty,omitempty"`
	LastUpdated time.Time `yaml:"lastUpdated,omitempty"`
}

const DefaultTheme = "classic"

func Defaults(serverURL string) Config {
	return Config{
		Theme:       DefaultTheme,
		ServerURL:   serverURL,
		Sound:       true,
		ShowPreview: true,
		AutoConnect: true,
	}
}

// Info reports whether the file exists and when it last changed.
type Info struct {
	Path     string
	Exists   bool
	Modified time.Time
}

type Store struct {
	path     string
	defaults Config
	now      func() time.Time
}

func NewStore(path string, defaults Config) *Store {
	return &Store{path: path, defaults: defaults, now: time.Now}
}

func (s *Store) Path() string { return s.path }

// Load returns the stored config layered over the defaults. A missing file
// yields the defaults.
func (s *Store) Load() (Config, error) {
	cfg := s.defaults
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return s.defaults, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return cfg, nil
}

// Save stamps LastUpdated and replaces the file.
func (s *Store) Save(cfg Config) (Config, error) {
	cfg.LastUpdated = s.now().UTC().Truncate(time.Second)
	raw, err := yaml.Marshal(&cfg)
	if err != nil {
		return cfg, fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return cfg, fmt.Errorf("create config dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return cfg, fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return cfg, fmt.Errorf("replace config: %w", err)
	}
	return cfg, nil
}

// Update loads, applies fn and saves.
func (s *Store) Update(fn func(*Config) error) (Config, error) {
	cfg, err := s.Load()
	if err != nil {
		return cfg, err
	}
	if err := fn(&cfg); err != nil {
		return cfg, err
	}
	return s.Save(cfg)
}

// Reset deletes the file so the defaults apply again.
func (s *Store) Reset() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reset config: %w", err)
	}
	return nil
}

func (s *Store) Stat() (Info, error) {
	info := Info{Path: s.path}
	st, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return info, nil
	}
	if err != nil {
		return info, err
	}
	info.Exists = true
	info.Modified = st.ModTime()
	return info, nil
}
