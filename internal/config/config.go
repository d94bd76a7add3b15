// Package config loads the server configuration. Sources are applied in
// order, later ones winning: built-in defaults, a YAML file, RESPKV_*
// environment variables, command-line flags.
package config

import (
	"errors"
	"fmt"
)

const (
	DefaultDir        = "/tmp/redis-files"
	DefaultDBFilename = "dump.rdb"
	DefaultAddr       = "127.0.0.1:6379"
)

type Config struct {
	// Dir and DBFilename locate the snapshot file read by KEYS.
	Dir        string `koanf:"dir"`
	DBFilename string `koanf:"dbfilename"`
	Addr       string `koanf:"addr"`
	// RateLimit caps commands per second on one connection. Zero disables it.
	RateLimit int            `koanf:"ratelimit"`
	Log       LogConfig      `koanf:"log"`
	Gateway   GatewayConfig  `koanf:"gateway"`
	Snapshot  SnapshotConfig `koanf:"snapshot"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// GatewayConfig enables the WebSocket and metrics listener when Addr is set.
type GatewayConfig struct {
	Addr string `koanf:"addr"`
}

// SnapshotConfig names a Cloud Storage object copied to Dir/DBFilename at
// startup. Empty Bucket disables the download.
type SnapshotConfig struct {
	Bucket string `koanf:"bucket"`
	Object string `koanf:"object"`
}

func Default() *Config {
	return &Config{
		Dir:        DefaultDir,
		DBFilename: DefaultDBFilename,
		Addr:       DefaultAddr,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

var ErrInvalid = errors.New("invalid configuration")

func (c *Config) Validate() error {
	switch {
	case c.Dir == "":
		return fmt.Errorf("%w: dir is empty", ErrInvalid)
	case c.DBFilename == "":
		return fmt.Errorf("%w: dbfilename is empty", ErrInvalid)
	case c.Addr == "":
		return fmt.Errorf("%w: addr is empty", ErrInvalid)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: ratelimit must not be negative", ErrInvalid)
	}
	return nil
}

// SnapshotObject is the object name to fetch, defaulting to DBFilename.
func (c *Config) SnapshotObject() string {
	if c.Snapshot.Object != "" {
		return c.Snapshot.Object
	}
	return c.DBFilename
}
