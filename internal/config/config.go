// Package config resolves rtspview settings with the precedence
// defaults < file < environment < flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/inloco/rtspview/internal/stream"
)

const envPrefix = "RTSPVIEW_"

// Config holds configuration for the viewer process.
type Config struct {
	ConfigFile     string        `yaml:"-"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	Addr           string        `yaml:"addr"`
	FFmpegPath     string        `yaml:"ffmpeg_path"`
	RTSPTransport  string        `yaml:"rtsp_transport"`
	InputArgs      []string      `yaml:"input_args"`
	StartupTimeout time.Duration `yaml:"startup_timeout"`
	KillGrace      time.Duration `yaml:"kill_grace"`
	TickInterval   time.Duration `yaml:"tick_interval"`
	QueueSize      int           `yaml:"queue_size"`
	Resolution     string        `yaml:"resolution"`
	URL            string        `yaml:"url"`
	Resume         bool          `yaml:"resume"`
	RedisAddr      string        `yaml:"redis_addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ICEServers     []string      `yaml:"ice_servers"`
}

// SetDefaults initializes c with built-in defaults.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.StartupTimeout == 0 {
		c.StartupTimeout = 2 * time.Second
	}
	if c.KillGrace == 0 {
		c.KillGrace = 2 * time.Second
	}
	if c.TickInterval == 0 {
		c.TickInterval = 100 * time.Millisecond
	}
	if c.QueueSize == 0 {
		c.QueueSize = 4
	}
	if c.Resolution == "" {
		c.Resolution = stream.DefaultResolution.String()
	}
	if c.ConfigFile == "" {
		c.ConfigFile = DefaultConfigPath("rtspview.yaml")
	}
}

// ApplyEnv overlays RTSPVIEW_* environment variables onto the current values.
// Malformed numbers and durations are ignored.
func (c *Config) ApplyEnv() {
	if v := getEnv("CONFIG_FILE"); v != "" {
		c.ConfigFile = v
	}
	if v := getEnv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := getEnv("ADDR"); v != "" {
		c.Addr = v
	} else if v := getEnv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Addr = fmt.Sprintf(":%d", n)
		}
	}
	if v := getEnv("FFMPEG_PATH"); v != "" {
		c.FFmpegPath = v
	}
	if v := getEnv("RTSP_TRANSPORT"); v != "" {
		c.RTSPTransport = v
	}
	if v := getEnv("INPUT_ARGS"); v != "" {
		c.InputArgs = strings.Fields(v)
	}
	if v := getEnv("STARTUP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.StartupTimeout = d
		}
	}
	if v := getEnv("KILL_GRACE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.KillGrace = d
		}
	}
	if v := getEnv("TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.TickInterval = d
		}
	}
	if v := getEnv("QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.QueueSize = n
		}
	}
	if v := getEnv("RESOLUTION"); v != "" {
		c.Resolution = v
	}
	if v := getEnv("URL"); v != "" {
		c.URL = v
	}
	if v := getEnv("RESUME"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Resume = b
		}
	}
	if v := getEnv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := getEnv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitComma(v)
	}
	if v := getEnv("ICE_SERVERS"); v != "" {
		c.ICEServers = splitComma(v)
	}
}

// BindFlagsFromCurrent binds command line flags using the current config
// values as defaults.
func (c *Config) BindFlagsFromCurrent(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "config file path")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log output (console, json)")
	fs.StringVar(&c.Addr, "addr", c.Addr, "HTTP listen address for the viewer and API")
	fs.StringVar(&c.FFmpegPath, "ffmpeg", c.FFmpegPath, "transcoder executable")
	fs.StringVar(&c.RTSPTransport, "rtsp-transport", c.RTSPTransport, "RTSP lower transport passed to the transcoder (tcp, udp); empty lets it choose")
	fs.Func("input-args", "space separated transcoder options placed before -i, e.g. \"-re\" for file sources", func(v string) error {
		c.InputArgs = strings.Fields(v)
		return nil
	})
	fs.DurationVar(&c.StartupTimeout, "startup-timeout", c.StartupTimeout, "how long a start watches the transcoder for errors")
	fs.DurationVar(&c.KillGrace, "kill-grace", c.KillGrace, "time between SIGTERM and SIGKILL when stopping the transcoder")
	fs.DurationVar(&c.TickInterval, "tick", c.TickInterval, "frame presentation period")
	fs.IntVar(&c.QueueSize, "queue-size", c.QueueSize, "complete frames buffered between reader and presenter")
	fs.StringVar(&c.Resolution, "resolution", c.Resolution, "initial decode resolution (240p, 360p, 480p, 720p)")
	fs.StringVar(&c.URL, "url", c.URL, "stream URL to open at startup")
	fs.BoolVar(&c.Resume, "resume", c.Resume, "reopen the last stream URL at startup")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "redis connection URL for remembered settings")
	fs.Func("allowed-origins", "comma separated list of allowed CORS origins", func(v string) error {
		c.AllowedOrigins = splitComma(v)
		return nil
	})
	fs.Func("ice-servers", "comma separated list of STUN/TURN URLs offered to viewers", func(v string) error {
		c.ICEServers = splitComma(v)
		return nil
	})
}

// LoadFile populates the config from a YAML file.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate reports settings the viewer cannot run with.
func (c *Config) Validate() error {
	if _, err := stream.ParseResolution(c.Resolution); err != nil {
		return fmt.Errorf("config: resolution: %w", err)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("config: queue_size must be positive, got %d", c.QueueSize)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("config: tick_interval must be positive, got %s", c.TickInterval)
	}
	if c.StartupTimeout <= 0 {
		return fmt.Errorf("config: startup_timeout must be positive, got %s", c.StartupTimeout)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("config: unsupported log_format %q", c.LogFormat)
	}
	switch c.RTSPTransport {
	case "", "tcp", "udp", "udp_multicast", "http", "https":
	default:
		return fmt.Errorf("config: unsupported rtsp_transport %q", c.RTSPTransport)
	}
	return nil
}

// DefaultConfigPath returns the default location of the named config file.
func DefaultConfigPath(name string) string {
	home, _ := os.UserHomeDir()
	return resolveConfigPath(runtime.GOOS, home, os.Getenv("ProgramData"), name)
}

func resolveConfigPath(goos, home, programData, name string) string {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "rtspview", name)
	case "windows":
		if programData == "" {
			programData = "C:/ProgramData"
		}
		programData = strings.TrimRight(programData, "\\/")
		return filepath.Join(programData, "rtspview", name)
	default:
		return filepath.Join("/etc", "rtspview", name)
	}
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func splitComma(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
