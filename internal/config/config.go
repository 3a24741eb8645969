// Package config resolves server settings from flags, with environment
// variables (optionally from a .env file) providing the flag defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const DefaultEnvFile = ".env"

type Config struct {
	APIHost     string
	APIPort     int
	Serve       bool
	WebHost     string
	WebPort     int
	StreamPort  int // 0 disables the websocket feed
	StoragePath string
	PIDPath     string
	PIDLock     bool
	Dev         bool

	EnginePath       string
	EngineDepth      int
	EngineThreads    int
	EngineHash       int // MB
	HandshakeTimeout time.Duration
	MaxBoards        int

	LogLevel  string
	LogPretty bool
}

// LoadEnv loads a .env file into the process environment without
// overriding variables already set. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Parse builds the config from args, using lookup for flag defaults.
// Pass os.LookupEnv in production.
func Parse(name string, args []string, lookup func(string) (string, bool), output io.Writer) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := envReader{lookup: lookup}

	fset := flag.NewFlagSet(name, flag.ContinueOnError)
	if output != nil {
		fset.SetOutput(output)
	}

	cfg := &Config{}

	// API server
	fset.StringVar(&cfg.APIHost, "api-host", env.getString("API_HOST", "localhost"), "API server host")
	fset.IntVar(&cfg.APIPort, "api-port", env.getInt("API_PORT", 8080), "API server port")
	fset.BoolVar(&cfg.Dev, "dev", env.getBool("DEV", false), "Development mode (relaxed rate limits)")
	fset.StringVar(&cfg.StoragePath, "storage-path", env.getString("STORAGE_PATH", ""), "Path to SQLite analysis log (disabled if empty)")
	fset.StringVar(&cfg.PIDPath, "pid", env.getString("PID_FILE", ""), "Optional path to write PID file")
	fset.BoolVar(&cfg.PIDLock, "pid-lock", env.getBool("PID_LOCK", false), "Lock PID file to allow only one instance (requires -pid)")

	// Web UI and live feed
	fset.BoolVar(&cfg.Serve, "serve", env.getBool("SERVE", false), "Enable web UI server")
	fset.StringVar(&cfg.WebHost, "web-host", env.getString("WEB_HOST", "localhost"), "Web UI server host")
	fset.IntVar(&cfg.WebPort, "web-port", env.getInt("WEB_PORT", 9090), "Web UI server port")
	fset.IntVar(&cfg.StreamPort, "stream-port", env.getInt("STREAM_PORT", 8081), "Websocket analysis feed port (0 disables)")

	// Engine
	fset.StringVar(&cfg.EnginePath, "engine-path", env.getString("ENGINE_PATH", "stockfish"), "UCI engine binary")
	fset.IntVar(&cfg.EngineDepth, "engine-depth", env.getInt("ENGINE_DEPTH", 15), "Default search depth")
	fset.IntVar(&cfg.EngineThreads, "engine-threads", env.getInt("ENGINE_THREADS", 1), "Engine Threads option (0 leaves engine default)")
	fset.IntVar(&cfg.EngineHash, "engine-hash", env.getInt("ENGINE_HASH", 16), "Engine Hash option in MB (0 leaves engine default)")
	fset.DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", env.getDuration("ENGINE_HANDSHAKE_TIMEOUT", 10*time.Second), "Time allowed for the engine to answer uci")
	fset.IntVar(&cfg.MaxBoards, "max-boards", env.getInt("MAX_BOARDS", 16), "Maximum concurrent analysis boards (one engine each)")

	// Logging
	fset.StringVar(&cfg.LogLevel, "log-level", env.getString("LOG_LEVEL", "info"), "Log level (trace, debug, info, warn, error)")
	fset.BoolVar(&cfg.LogPretty, "log-pretty", env.getBool("LOG_PRETTY", false), "Human-readable console logs")

	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	if len(env.errs) > 0 {
		return nil, errors.Join(env.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.PIDLock && c.PIDPath == "" {
		errs = append(errs, errors.New("-pid-lock flag requires the -pid flag to be set"))
	}
	if !validPort(c.APIPort) {
		errs = append(errs, fmt.Errorf("invalid api port %d", c.APIPort))
	}
	if c.Serve && !validPort(c.WebPort) {
		errs = append(errs, fmt.Errorf("invalid web port %d", c.WebPort))
	}
	if c.StreamPort != 0 && !validPort(c.StreamPort) {
		errs = append(errs, fmt.Errorf("invalid stream port %d", c.StreamPort))
	}
	if c.EnginePath == "" {
		errs = append(errs, errors.New("engine path is required"))
	}
	if c.EngineDepth < 1 || c.EngineDepth > 40 {
		errs = append(errs, fmt.Errorf("engine depth %d out of range 1-40", c.EngineDepth))
	}
	if c.EngineThreads < 0 || c.EngineHash < 0 {
		errs = append(errs, errors.New("engine threads and hash must not be negative"))
	}
	if c.HandshakeTimeout < 0 {
		errs = append(errs, errors.New("handshake timeout must not be negative"))
	}
	if c.MaxBoards < 1 {
		errs = append(errs, fmt.Errorf("max boards must be at least 1, got %d", c.MaxBoards))
	}
	return errors.Join(errs...)
}

// APIAddr returns host:port of the REST API
func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

// StreamAddr returns host:port of the websocket feed, empty when disabled
func (c *Config) StreamAddr() string {
	if c.StreamPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.APIHost, c.StreamPort)
}

func validPort(p int) bool {
	return p > 0 && p < 65536
}

// envReader collects conversion errors so all bad variables are reported at once
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) getString(key, def string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (e *envReader) getInt(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *envReader) getBool(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *envReader) getDuration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
