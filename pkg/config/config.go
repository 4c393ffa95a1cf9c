/*
Copyright 2026 The KServe Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads tensorwire settings from TENSORWIRE_* environment
// variables, optionally overlaid with a TOML file.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/validator.v9"

	"github.com/kserve/tensorwire/pkg/constants"
)

var validate = validator.New()

// ServerConfig configures `tensorwire serve`.
type ServerConfig struct {
	Port           int           `envconfig:"PORT" toml:"port" default:"8080" validate:"min=1,max=65535"`
	IdentityHeader string        `envconfig:"IDENTITY_HEADER" toml:"identity_header" default:"X-Request-ID" validate:"required"`
	MaxSessions    int           `envconfig:"MAX_SESSIONS" toml:"max_sessions" default:"0" validate:"min=0"`
	SessionTTL     time.Duration `envconfig:"SESSION_TTL" toml:"session_ttl" default:"0s"`
	SweepInterval  time.Duration `envconfig:"SWEEP_INTERVAL" toml:"sweep_interval" default:"1m"`
	MaxFrameBytes  int64         `envconfig:"MAX_FRAME_BYTES" toml:"max_frame_bytes" default:"268435456" validate:"min=0"`
	LogLevel       string        `envconfig:"LOG_LEVEL" toml:"log_level" default:"info" validate:"oneof=debug info warn error"`
}

// ClientConfig configures `tensorwire call`.
type ClientConfig struct {
	Timeout        time.Duration `envconfig:"CLIENT_TIMEOUT" default:"30s"`
	IdentityHeader string        `envconfig:"IDENTITY_HEADER" default:"X-Request-ID" validate:"required"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
}

// LoadServer reads and validates the server configuration.
func LoadServer() (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := envconfig.Process(constants.EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read server configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeFile overlays the keys present in a TOML file onto c. Keys absent from
// the file keep their current value; unknown keys are rejected.
func (c *ServerConfig) MergeFile(path string) error {
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return errors.Wrapf(err, "failed to load config file %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return errors.Errorf("unknown keys in config file %s: %v", path, undecoded)
	}
	return nil
}

// Validate checks the configuration after flags have been applied.
func (c *ServerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid server configuration")
	}
	if c.SessionTTL < 0 {
		return errors.Errorf("invalid server configuration: session TTL must not be negative, got %s", c.SessionTTL)
	}
	if c.SessionTTL > 0 && c.SweepInterval <= 0 {
		return errors.Errorf("invalid server configuration: sweep interval must be positive when a session TTL is set, got %s", c.SweepInterval)
	}
	return nil
}

// LoadClient reads and validates the client configuration.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := envconfig.Process(constants.EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read client configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ClientConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid client configuration")
	}
	if c.Timeout < 0 {
		return errors.Errorf("invalid client configuration: timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}
