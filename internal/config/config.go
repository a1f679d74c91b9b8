package config

import (
	"log"
	"os"
	"path/filepath"

	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"
)

// Config holds the full service configuration.
type Config struct {
	Server ServerConfig  `json:"server" yaml:"server"`
	App    AppConfig     `json:"app" yaml:"app"`
	Badger BadgerConfig  `json:"badger" yaml:"badger"`
	Redis  RedisConfig   `json:"redis" yaml:"redis"`
	Sweep  SweepConfig   `json:"sweep" yaml:"sweep"`
	Logger logger.Config `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type AppConfig struct {
	NodeID int64 `json:"node_id" yaml:"node_id"`
	// ChunkSize is a server-side constant, never client-supplied, so a
	// single upload cannot dictate memory use.
	ChunkSize     int64 `json:"chunk_size" yaml:"chunk_size"`
	MaxFileSize   int64 `json:"max_file_size" yaml:"max_file_size"`
	Compression   bool  `json:"compression" yaml:"compression"`
	DeleteWorkers int   `json:"delete_workers" yaml:"delete_workers"`
}

type BadgerConfig struct {
	DataDir    string `json:"data_dir" yaml:"data_dir"`
	SyncWrites bool   `json:"sync_writes" yaml:"sync_writes"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type SweepConfig struct {
	IntervalSeconds int `json:"interval_seconds" yaml:"interval_seconds"`
	// PendingGraceSeconds is how long a pending record may exist before
	// the sweeper treats it as a crashed upload and reaps it.
	PendingGraceSeconds int `json:"pending_grace_seconds" yaml:"pending_grace_seconds"`
}

// DefaultConfig returns the configuration used when no file overrides
// it.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":5000",
		},
		App: AppConfig{
			NodeID:        1,
			ChunkSize:     1 * 1024 * 1024,        // 1MB
			MaxFileSize:   2 * 1024 * 1024 * 1024, // 2GB
			Compression:   false,
			DeleteWorkers: 4,
		},
		Badger: BadgerConfig{
			DataDir:    "data/gridstore",
			SyncWrites: true,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Sweep: SweepConfig{
			IntervalSeconds:     300,
			PendingGraceSeconds: 3600,
		},
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// when no explicit path was given and the conventional file is absent.
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "config", env+".yaml")
	}

	cfg := DefaultConfig()

	parsedCfg, err := conflux.ParseConfig(configPath, cfg)
	if err != nil {
		log.Printf("Config file not usable, falling back to defaults. Path: %s, Error: %v", configPath, err)
		if path != "" {
			return nil, err
		}
		return cfg, nil
	}

	return parsedCfg, nil
}

// MustLoad loads configuration or exits on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
