// Package config handles loading, defaulting, and validation of the CyBot
// control TOML configuration file. Every section maps to a typed struct so
// the rest of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/large-farva/cybot-control/internal/protocol"
	"github.com/large-farva/cybot-control/internal/tracker"
	"github.com/large-farva/cybot-control/internal/viewport"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Robot    RobotConfig    `toml:"robot"    json:"robot"`
	Commands CommandsConfig `toml:"commands" json:"commands"`
	Tracker  TrackerConfig  `toml:"tracker"  json:"tracker"`
	Viewport ViewportConfig `toml:"viewport" json:"viewport"`
	Server   ServerConfig   `toml:"server"   json:"server"`
	Logging  LoggingConfig  `toml:"logging"  json:"logging"`
	Demo     DemoConfig     `toml:"demo"     json:"demo"`
	Mirror   MirrorConfig   `toml:"mirror"   json:"mirror"`
}

type RobotConfig struct {
	Host               string `toml:"host"                 json:"host"`
	Port               int    `toml:"port"                 json:"port"`
	ConnectTimeoutMS   int    `toml:"connect_timeout_ms"   json:"connect_timeout_ms"`
	ReconnectBackoffMS int    `toml:"reconnect_backoff_ms" json:"reconnect_backoff_ms"`
	// Bootstrap is written once after every connect, e.g. "m\n" to start a
	// scan. Empty sends nothing.
	Bootstrap string `toml:"bootstrap"   json:"bootstrap"`
	// Terminator follows every outbound command: "\n" for line-buffered
	// firmware, "" for raw single-character firmware.
	Terminator      string `toml:"terminator"        json:"terminator"`
	ReadBufferBytes int    `toml:"read_buffer_bytes" json:"read_buffer_bytes"`
	MaxLineBytes    int    `toml:"max_line_bytes"    json:"max_line_bytes"`
}

// CommandsConfig is the intent-to-character table. Each value must be a
// single ASCII character.
type CommandsConfig struct {
	Forward string `toml:"forward" json:"forward"`
	Back    string `toml:"back"    json:"back"`
	Left    string `toml:"left"    json:"left"`
	Right   string `toml:"right"   json:"right"`
	Scan    string `toml:"scan"    json:"scan"`
	Stop    string `toml:"stop"    json:"stop"`
	Approve string `toml:"approve" json:"approve"`
	Deny    string `toml:"deny"    json:"deny"`
}

type TrackerConfig struct {
	InitialHeadingDeg float64 `toml:"initial_heading_deg"  json:"initial_heading_deg"`
	TurnAddsVertex    bool    `toml:"turn_adds_vertex"     json:"turn_adds_vertex"`
	InitialHalfSpanCM float64 `toml:"initial_half_span_cm" json:"initial_half_span_cm"`
}

type ViewportConfig struct {
	PaddingFactor float64 `toml:"padding_factor"  json:"padding_factor"`
	GridSpacingCM float64 `toml:"grid_spacing_cm" json:"grid_spacing_cm"`
	MinSpanCM     float64 `toml:"min_span_cm"     json:"min_span_cm"`
	DefaultWidth  int     `toml:"default_width"   json:"default_width"`
	DefaultHeight int     `toml:"default_height"  json:"default_height"`
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
}

type DemoConfig struct {
	Enabled    bool   `toml:"enabled"     json:"enabled"`
	Bind       string `toml:"bind"        json:"bind"`
	Legacy     bool   `toml:"legacy"      json:"legacy"`
	Autonomous bool   `toml:"autonomous"  json:"autonomous"`
	IntervalMS int    `toml:"interval_ms" json:"interval_ms"`
}

type MirrorConfig struct {
	Enabled     bool   `toml:"enabled"      json:"enabled"`
	Broker      string `toml:"broker"       json:"broker"`
	Port        int    `toml:"port"         json:"port"`
	ClientID    string `toml:"client_id"    json:"client_id"`
	TopicPrefix string `toml:"topic_prefix" json:"topic_prefix"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Robot: RobotConfig{
			Host:               "192.168.1.1",
			Port:               288,
			ConnectTimeoutMS:   5000,
			ReconnectBackoffMS: 3000,
			Bootstrap:          "",
			Terminator:         "",
			ReadBufferBytes:    1024,
			MaxLineBytes:       4096,
		},
		Commands: CommandsConfig{
			Forward: "w",
			Back:    "s",
			Left:    "a",
			Right:   "d",
			Scan:    "m",
			Stop:    " ",
			Approve: "y",
			Deny:    "n",
		},
		Tracker: TrackerConfig{
			InitialHeadingDeg: 90,
			TurnAddsVertex:    true,
			InitialHalfSpanCM: 50,
		},
		Viewport: ViewportConfig{
			PaddingFactor: 1.2,
			GridSpacingCM: 50,
			MinSpanCM:     100,
			DefaultWidth:  800,
			DefaultHeight: 600,
		},
		Server: ServerConfig{
			Bind: "127.0.0.1:8088",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Demo: DemoConfig{
			Enabled:    false,
			Bind:       "127.0.0.1:2288",
			Legacy:     false,
			Autonomous: true,
			IntervalMS: 1500,
		},
		Mirror: MirrorConfig{
			Enabled:     false,
			Broker:      "localhost",
			Port:        1883,
			ClientID:    "cybotd",
			TopicPrefix: "cybot",
		},
	}
}

// DefaultConfigDir is where cybotd looks for its config file.
func DefaultConfigDir() string {
	if dir := os.Getenv("CYBOT_CONFIG_DIR"); dir != "" {
		return dir
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "cybot")
	}
	return "/etc/cybot"
}

// DefaultPath is the config file used when no --config flag is given.
func DefaultPath() string {
	return filepath.Join(DefaultConfigDir(), "cybot.toml")
}

// Load reads the TOML file at path, layers it on top of the defaults,
// applies environment overrides, and validates the result. A missing file
// is not an error: the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// applyEnv lets CYBOT_ADDR=host:port override the robot address.
func applyEnv(cfg *Config) error {
	addr := os.Getenv("CYBOT_ADDR")
	if addr == "" {
		return nil
	}
	return cfg.SetRobotAddr(addr)
}

// SetRobotAddr sets host and port from a host:port string.
func (c *Config) SetRobotAddr(addr string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("robot address %q: %w", addr, err)
	}
	if host == "" {
		return fmt.Errorf("robot address %q: missing host", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("robot address %q: port must be between 1 and 65535", addr)
	}
	c.Robot.Host = host
	c.Robot.Port = port
	return nil
}

// RobotAddr is the host:port the session dials.
func (c Config) RobotAddr() string {
	return net.JoinHostPort(c.Robot.Host, strconv.Itoa(c.Robot.Port))
}

func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Robot.ConnectTimeoutMS) * time.Millisecond
}

func (c Config) ReconnectBackoff() time.Duration {
	return time.Duration(c.Robot.ReconnectBackoffMS) * time.Millisecond
}

// CommandTable converts the [commands] section. validate guarantees every
// entry is one character.
func (c Config) CommandTable() protocol.CommandTable {
	t := protocol.CommandTable{}
	for intent, v := range c.Commands.entries() {
		if len(v) == 1 {
			t[intent] = v[0]
		}
	}
	return t
}

func (cc CommandsConfig) entries() map[string]string {
	return map[string]string{
		protocol.IntentForward: cc.Forward,
		protocol.IntentBack:    cc.Back,
		protocol.IntentLeft:    cc.Left,
		protocol.IntentRight:   cc.Right,
		protocol.IntentScan:    cc.Scan,
		protocol.IntentStop:    cc.Stop,
		protocol.IntentApprove: cc.Approve,
		protocol.IntentDeny:    cc.Deny,
	}
}

func (c Config) TrackerConfig() tracker.Config {
	return tracker.Config{
		InitialHeadingDeg: c.Tracker.InitialHeadingDeg,
		TurnAddsVertex:    c.Tracker.TurnAddsVertex,
		InitialHalfSpanCM: c.Tracker.InitialHalfSpanCM,
	}
}

func (c Config) ViewportParams() viewport.Params {
	return viewport.Params{
		PaddingFactor: c.Viewport.PaddingFactor,
		GridSpacingCM: c.Viewport.GridSpacingCM,
		MinSpanCM:     c.Viewport.MinSpanCM,
	}
}

func validate(cfg Config) error {
	if cfg.Robot.Host == "" {
		return errors.New("robot.host must not be empty")
	}
	if cfg.Robot.Port < 1 || cfg.Robot.Port > 65535 {
		return errors.New("robot.port must be between 1 and 65535")
	}
	if cfg.Robot.ConnectTimeoutMS < 1 {
		return errors.New("robot.connect_timeout_ms must be >= 1")
	}
	if cfg.Robot.ReconnectBackoffMS < 1 {
		return errors.New("robot.reconnect_backoff_ms must be >= 1")
	}
	if cfg.Robot.Terminator != "" && cfg.Robot.Terminator != "\n" && cfg.Robot.Terminator != "\r\n" {
		return errors.New(`robot.terminator must be "", "\n" or "\r\n"`)
	}
	if cfg.Robot.ReadBufferBytes < 1 {
		return errors.New("robot.read_buffer_bytes must be >= 1")
	}
	if cfg.Robot.MaxLineBytes < 16 {
		return errors.New("robot.max_line_bytes must be >= 16")
	}

	seen := map[byte]string{}
	for intent, v := range cfg.Commands.entries() {
		if len(v) != 1 || v[0] > 0x7f {
			return fmt.Errorf("commands.%s must be a single ASCII character, got %q", intent, v)
		}
		if other, dup := seen[v[0]]; dup {
			return fmt.Errorf("commands.%s and commands.%s both use %q", intent, other, v)
		}
		seen[v[0]] = intent
	}

	if cfg.Viewport.PaddingFactor <= 0 {
		return errors.New("viewport.padding_factor must be > 0")
	}
	if cfg.Viewport.GridSpacingCM <= 0 {
		return errors.New("viewport.grid_spacing_cm must be > 0")
	}
	if cfg.Viewport.MinSpanCM <= 0 {
		return errors.New("viewport.min_span_cm must be > 0")
	}
	if cfg.Viewport.DefaultWidth < 1 || cfg.Viewport.DefaultHeight < 1 {
		return errors.New("viewport.default_width and default_height must be >= 1")
	}
	if cfg.Tracker.InitialHalfSpanCM < 0 {
		return errors.New("tracker.initial_half_span_cm must be >= 0")
	}
	if cfg.Demo.IntervalMS < 0 {
		return errors.New("demo.interval_ms must be >= 0")
	}
	if cfg.Demo.Enabled && cfg.Demo.Bind == "" {
		return errors.New("demo.bind must be set when demo is enabled")
	}
	if cfg.Mirror.Enabled {
		if cfg.Mirror.Broker == "" {
			return errors.New("mirror.broker must be set when mirror is enabled")
		}
		if cfg.Mirror.Port < 1 || cfg.Mirror.Port > 65535 {
			return errors.New("mirror.port must be between 1 and 65535")
		}
	}
	return nil
}
