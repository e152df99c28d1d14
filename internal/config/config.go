// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads the YAML file that sizes a queue, its pool and the
// msgq-pump workload.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"code.hybscloud.com/msgq"
)

// Pool mode names accepted in pool.mode.
const (
	ModePassThrough = "passthrough"
	ModeDynamic     = "dynamic"
	ModeFixed       = "fixed"
)

// Defaults applied by Validate to zero fields.
const (
	DefaultBlockSize      = 256
	DefaultBlocks         = 64
	DefaultProducers      = 1
	DefaultConsumers      = 1
	DefaultMessages       = 1000
	DefaultReceiveTimeout = time.Second
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the complete configuration file.
type Config struct {
	Queue QueueConfig `yaml:"queue"`
	Pool  PoolConfig  `yaml:"pool"`
	Pump  PumpConfig  `yaml:"pump"`
}

// QueueConfig sizes the queue.
type QueueConfig struct {
	Capacity int  `yaml:"capacity"` // max queued messages (default: 1000)
	Strict   bool `yaml:"strict"`   // short receive buffers fail instead of truncating
}

// PoolConfig selects the block pool behind the queue.
type PoolConfig struct {
	Mode      string `yaml:"mode"`       // passthrough, dynamic, fixed
	Blocks    int    `yaml:"blocks"`     // fixed only
	BlockSize int    `yaml:"block_size"` // dynamic and fixed
	Mapped    bool   `yaml:"mapped"`     // fixed only: back the region with mmap
}

// PumpConfig drives cmd/msgq-pump.
type PumpConfig struct {
	Producers      int           `yaml:"producers"`
	Consumers      int           `yaml:"consumers"`
	Messages       int           `yaml:"messages"` // per producer
	ReceiveTimeout time.Duration `yaml:"receive_timeout"`
}

// Load reads, parses and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fills defaults and rejects inconsistent settings.
func Validate(cfg *Config) error {
	if cfg.Queue.Capacity == 0 {
		cfg.Queue.Capacity = msgq.DefaultCapacity
	}
	if cfg.Queue.Capacity < 0 {
		return fmt.Errorf("%w: queue.capacity must be > 0, got %d", ErrInvalid, cfg.Queue.Capacity)
	}

	switch cfg.Pool.Mode {
	case "", ModePassThrough:
		cfg.Pool.Mode = ModePassThrough
		cfg.Pool.Blocks, cfg.Pool.BlockSize = 0, 0
	case ModeDynamic:
		if cfg.Pool.BlockSize == 0 {
			cfg.Pool.BlockSize = DefaultBlockSize
		}
		cfg.Pool.Blocks = 0
	case ModeFixed:
		if cfg.Pool.BlockSize == 0 {
			cfg.Pool.BlockSize = DefaultBlockSize
		}
		if cfg.Pool.Blocks == 0 {
			cfg.Pool.Blocks = DefaultBlocks
		}
	default:
		return fmt.Errorf("%w: pool.mode must be passthrough, dynamic or fixed, got %q", ErrInvalid, cfg.Pool.Mode)
	}
	if cfg.Pool.Blocks < 0 || cfg.Pool.BlockSize < 0 {
		return fmt.Errorf("%w: pool.blocks and pool.block_size must be >= 0", ErrInvalid)
	}
	if cfg.Pool.Mapped && cfg.Pool.Mode != ModeFixed {
		return fmt.Errorf("%w: pool.mapped requires pool.mode fixed", ErrInvalid)
	}

	if err := validatePump(&cfg.Pump); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func validatePump(p *PumpConfig) error {
	if p.Producers == 0 {
		p.Producers = DefaultProducers
	}
	if p.Consumers == 0 {
		p.Consumers = DefaultConsumers
	}
	if p.Messages == 0 {
		p.Messages = DefaultMessages
	}
	if p.ReceiveTimeout == 0 {
		p.ReceiveTimeout = DefaultReceiveTimeout
	}
	switch {
	case p.Producers < 0:
		return fmt.Errorf("pump.producers must be > 0, got %d", p.Producers)
	case p.Consumers < 0:
		return fmt.Errorf("pump.consumers must be > 0, got %d", p.Consumers)
	case p.Messages < 0:
		return fmt.Errorf("pump.messages must be > 0, got %d", p.Messages)
	case p.ReceiveTimeout < 0:
		return fmt.Errorf("pump.receive_timeout must be > 0, got %v", p.ReceiveTimeout)
	}
	return nil
}

// Builder returns a queue builder for the validated configuration.
func (c *Config) Builder() *msgq.Builder {
	b := msgq.New(c.Queue.Capacity)
	switch c.Pool.Mode {
	case ModeDynamic:
		b.Dynamic(c.Pool.BlockSize)
	case ModeFixed:
		b.Fixed(c.Pool.Blocks, c.Pool.BlockSize)
		if c.Pool.Mapped {
			b.MappedRegion()
		}
	default:
		b.PassThrough()
	}
	if c.Queue.Strict {
		b.StrictReceive()
	}
	return b
}
