// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Forked from github.com/zondax/ledger-go
// Licensed under the Apache License, Version 2.0

package ledger_transport

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PacketSize is the HID report size used by Ledger devices.
const PacketSize = 64

// Config is the root configuration for ledgerctl and LedgerAdmin.
type Config struct {
	Transport TransportConfig `mapstructure:"transport"`
	Log       LogConfig       `mapstructure:"log"`
}

// TransportConfig describes one packet channel.
type TransportConfig struct {
	// PacketSize is the fixed physical packet size.
	PacketSize int `mapstructure:"packet_size"`
	// CommandTag tags wrapped chunks, 0 to 255.
	CommandTag int `mapstructure:"command_tag"`
	// Wrapped selects ModeWrapped; false selects the legacy ModeUnwrapped.
	Wrapped bool `mapstructure:"wrapped"`
	// ReadTimeout bounds a single packet read on HID devices. Zero waits forever.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// File, when set, receives log output rotated by size.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		PacketSize:  PacketSize,
		CommandTag:  int(CommandAPDU),
		Wrapped:     true,
		ReadTimeout: 20 * time.Second,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Transport: DefaultTransportConfig(),
		Log: LogConfig{
			Level:      getLogLevel(),
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// LoadConfig reads configuration from path, or from LEDGER_CONFIG when path
// is empty. A missing file leaves the defaults in place. Environment variables
// use the prefix LEDGER, e.g. LEDGER_TRANSPORT_WRAPPED=false.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("transport.packet_size", cfg.Transport.PacketSize)
	v.SetDefault("transport.command_tag", cfg.Transport.CommandTag)
	v.SetDefault("transport.wrapped", cfg.Transport.Wrapped)
	v.SetDefault("transport.read_timeout", cfg.Transport.ReadTimeout)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.max_size_mb", cfg.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", cfg.Log.MaxBackups)

	if path == "" {
		path = os.Getenv("LEDGER_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Transport.validate(); err != nil {
		return nil, err
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	return cfg, nil
}

func (c TransportConfig) validate() error {
	if c.Wrapped && c.PacketSize < MinChunkSize {
		return fmt.Errorf("%w: packet size %d, wrapped mode needs at least %d", ErrInvalidChunkSize, c.PacketSize, MinChunkSize)
	}
	if c.PacketSize < 2 {
		return fmt.Errorf("%w: packet size %d, unwrapped mode needs at least 2", ErrInvalidChunkSize, c.PacketSize)
	}
	if c.CommandTag < 0 || c.CommandTag > 0xff {
		return fmt.Errorf("%w: %d", ErrInvalidCommandTag, c.CommandTag)
	}
	return nil
}

// tag is the validated command tag.
func (c TransportConfig) tag() byte {
	return byte(c.CommandTag)
}
