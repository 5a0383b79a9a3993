package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort           = 8765
	DefaultPollInterval   = 150 * time.Millisecond
	DefaultDebounceWindow = 500 * time.Millisecond
	DefaultMaxSilence     = 5 * time.Second
	DefaultSessionName    = "main"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Capture CaptureConfig `yaml:"capture"`
	Tmux    TmuxConfig    `yaml:"tmux"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	// LockFile guards against two relays polling the same tmux server.
	// Empty disables the lock.
	LockFile string `yaml:"lock_file"`
	// SendBuffer is the per-client outbound queue length. A client whose
	// queue fills up is disconnected.
	SendBuffer int `yaml:"send_buffer"`
}

type CaptureConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	DebounceWindow  time.Duration `yaml:"debounce_window"`
	MaxSilence      time.Duration `yaml:"max_silence"`
	HistoryLines    int           `yaml:"history_lines"`
	StripBoxDrawing bool          `yaml:"strip_box_drawing"`
	// MaxFailures is the number of consecutive non-fatal capture errors
	// after which the attached session is treated as gone.
	MaxFailures int `yaml:"max_failures"`
}

type TmuxConfig struct {
	Binary         string        `yaml:"binary"`
	Socket         string        `yaml:"socket"` // -L socket name, empty = default server
	DefaultSession string        `yaml:"default_session"`
	DefaultCommand string        `yaml:"default_command"`
	EnterDelay     time.Duration `yaml:"enter_delay"`
	AttachOnCreate bool          `yaml:"attach_on_create"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:       DefaultPort,
			Host:       "0.0.0.0",
			LockFile:   filepath.Join(os.TempDir(), "relay-server.lock"),
			SendBuffer: 256,
		},
		Capture: CaptureConfig{
			PollInterval:    DefaultPollInterval,
			DebounceWindow:  DefaultDebounceWindow,
			MaxSilence:      DefaultMaxSilence,
			HistoryLines:    100,
			StripBoxDrawing: true,
			MaxFailures:     3,
		},
		Tmux: TmuxConfig{
			Binary:         "tmux",
			DefaultSession: DefaultSessionName,
			EnterDelay:     50 * time.Millisecond,
		},
	}
}

// Default returns a config populated with built-in defaults.
func Default() *Config {
	return defaultConfig()
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, falling back to defaults when the file does not
// exist. Any other read or parse error is returned.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.SendBuffer <= 0 {
		return fmt.Errorf("server.send_buffer must be positive, got %d", c.Server.SendBuffer)
	}
	if c.Capture.PollInterval <= 0 {
		return fmt.Errorf("capture.poll_interval must be positive, got %s", c.Capture.PollInterval)
	}
	if c.Capture.DebounceWindow < 0 {
		return fmt.Errorf("capture.debounce_window must not be negative, got %s", c.Capture.DebounceWindow)
	}
	if c.Capture.MaxSilence < c.Capture.DebounceWindow {
		return fmt.Errorf("capture.max_silence (%s) must not be shorter than capture.debounce_window (%s)",
			c.Capture.MaxSilence, c.Capture.DebounceWindow)
	}
	if c.Capture.HistoryLines < 0 {
		return fmt.Errorf("capture.history_lines must not be negative, got %d", c.Capture.HistoryLines)
	}
	if c.Capture.MaxFailures < 1 {
		return fmt.Errorf("capture.max_failures must be at least 1, got %d", c.Capture.MaxFailures)
	}
	if c.Tmux.Binary == "" {
		return errors.New("tmux.binary must not be empty")
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
