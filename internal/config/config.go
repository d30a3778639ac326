// Package config loads the handful of knobs the kernel's components
// need to be constructed: where to put their files, how big a block
// is, how many buffers to pool, and how long lock/buffer waits may run
// before aborting.
package config

import (
	"os"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

const (
	DefaultBlockSize     = 400
	DefaultBufferSize    = 8
	DefaultLogFileName   = "simpledb.log"
	DefaultBufferMaxWait = 10000
	DefaultLockMaxWait   = 10000
)

// Config captures the construction parameters for a kernel instance.
// Every *MaxWaitMS field is in milliseconds, matching the TOML keys.
type Config struct {
	Directory       string `toml:"directory"`
	BlockSize       int    `toml:"block_size"`
	BufferSize      int    `toml:"buffer_size"`
	LogFileName     string `toml:"log_file_name"`
	BufferMaxWaitMS int    `toml:"buffer_max_wait_ms"`
	LockMaxWaitMS   int    `toml:"lock_max_wait_ms"`
}

// Default returns a Config with every field set to the kernel's
// documented defaults, rooted at dir.
func Default(dir string) Config {
	return Config{
		Directory:       dir,
		BlockSize:       DefaultBlockSize,
		BufferSize:      DefaultBufferSize,
		LogFileName:     DefaultLogFileName,
		BufferMaxWaitMS: DefaultBufferMaxWait,
		LockMaxWaitMS:   DefaultLockMaxWait,
	}
}

// Load reads a Config from a TOML file at path, filling in defaults for
// any field left unset or non-positive.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config file %s", path)
	}

	cfg := Default("")
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parse config file %s", path)
	}
	cfg.applyDefaults()

	if cfg.Directory == "" {
		return Config{}, errors.Errorf("config file %s: directory is required", path)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BlockSize <= 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.LogFileName == "" {
		c.LogFileName = DefaultLogFileName
	}
	if c.BufferMaxWaitMS <= 0 {
		c.BufferMaxWaitMS = DefaultBufferMaxWait
	}
	if c.LockMaxWaitMS <= 0 {
		c.LockMaxWaitMS = DefaultLockMaxWait
	}
}

// BufferMaxWait returns BufferMaxWaitMS as a time.Duration.
func (c Config) BufferMaxWait() time.Duration {
	return time.Duration(c.BufferMaxWaitMS) * time.Millisecond
}

// LockMaxWait returns LockMaxWaitMS as a time.Duration.
func (c Config) LockMaxWait() time.Duration {
	return time.Duration(c.LockMaxWaitMS) * time.Millisecond
}
