// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the gridsim configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/tesseract/pkg/logging"
	"github.com/AleutianAI/tesseract/services/grid/telemetry"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the whole gridsim configuration.
type Config struct {
	Sim       SimConfig        `yaml:"sim" json:"sim"`
	Server    ServerConfig     `yaml:"server" json:"server"`
	Store     StoreConfig      `yaml:"store" json:"store"`
	Layout    LayoutConfig     `yaml:"layout" json:"layout"`
	Telemetry telemetry.Config `yaml:"telemetry" json:"telemetry"`
	Logging   logging.Config   `yaml:"logging" json:"logging"`
}

// SimConfig configures the world runner.
type SimConfig struct {
	Name         string        `yaml:"name" json:"name" validate:"required"`
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval" validate:"gte=0"`
	EventBuffer  int           `yaml:"event_buffer" json:"event_buffer" validate:"gte=1"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr" validate:"required,hostname_port"`

	// MutationsPerSecond limits tile edits across all clients. Zero
	// disables the limit.
	MutationsPerSecond float64 `yaml:"mutations_per_second" json:"mutations_per_second" validate:"gte=0"`
	MutationBurst      int     `yaml:"mutation_burst" json:"mutation_burst" validate:"gte=0"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"gt=0"`
}

// StoreConfig configures the snapshot database.
type StoreConfig struct {
	Path       string        `yaml:"path" json:"path" validate:"required_without=InMemory"`
	InMemory   bool          `yaml:"in_memory" json:"in_memory"`
	SyncWrites bool          `yaml:"sync_writes" json:"sync_writes"`
	GCInterval time.Duration `yaml:"gc_interval" json:"gc_interval" validate:"gte=0"`
}

// LayoutConfig names a layout file to load at startup and, optionally,
// keep applying as it changes.
type LayoutConfig struct {
	Path     string        `yaml:"path,omitempty" json:"path,omitempty"`
	Watch    bool          `yaml:"watch" json:"watch"`
	Debounce time.Duration `yaml:"debounce" json:"debounce" validate:"gte=0"`
}

// Default returns the configuration written on first run.
func Default() Config {
	return Config{
		Sim: SimConfig{
			Name:         "gridsim",
			TickInterval: 50 * time.Millisecond,
			EventBuffer:  64,
		},
		Server: ServerConfig{
			Addr:               "127.0.0.1:8088",
			MutationsPerSecond: 200,
			MutationBurst:      50,
			ShutdownTimeout:    5 * time.Second,
		},
		Store: StoreConfig{
			Path:       filepath.Join("~", ".tesseract", "snapshots"),
			SyncWrites: true,
			GCInterval: 5 * time.Minute,
		},
		Layout: LayoutConfig{
			Watch:    true,
			Debounce: 200 * time.Millisecond,
		},
		Telemetry: telemetry.DefaultConfig(),
		Logging: logging.Config{
			Level:   logging.LevelInfo,
			Format:  logging.FormatAuto,
			Service: "gridsim",
		},
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			errs := make([]error, 0, len(verrs))
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%w: %s failed %q", ErrInvalidConfig, fe.Namespace(), fe.Tag()))
			}
			return errors.Join(errs...)
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Parse decodes data over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the config at path, creating it with defaults first if it does
// not exist. The bool reports whether the file was created.
func Load(path string) (Config, bool, error) {
	created := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := WriteDefault(path); err != nil {
			return Config{}, false, err
		}
		created = true
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, false, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, created, nil
}

// WriteDefault writes Default to path, creating its directory.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o640)
}

// DefaultPath returns ~/.tesseract/gridsim.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".tesseract", "gridsim.yaml"), nil
}

// ExpandHome expands a leading ~ in path.
func ExpandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
