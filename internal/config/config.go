// File: internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigPaths holds all relevant paths for the application
type ConfigPaths struct {
	BaseDir      string // Base directory for config files
	ActiveConfig string // Path to the config file
	DataDir      string // Directory for application data
	DBFile       string // Path to the payload cache database
}

// Config holds all application configuration
type Config struct {
	DeviceID   string `json:"device_id" yaml:"device_id"`
	DeviceName string `json:"device_name" yaml:"device_name"`

	// Resolved at load time, never persisted
	SystemPaths ConfigPaths `json:"-" yaml:"-"`

	Log      LogConfig      `json:"log" yaml:"log"`
	Display  DisplayConfig  `json:"display" yaml:"display"`
	Remote   RemoteConfig   `json:"remote" yaml:"remote"`
	Transfer TransferConfig `json:"transfer" yaml:"transfer"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
}

// LogConfig holds logging-related configuration
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "json" or "console"
	Output string `json:"output" yaml:"output"` // "stderr", "stdout" or a file path
}

// DisplayConfig selects the X display and the selections kept in sync
type DisplayConfig struct {
	Name       string   `json:"name" yaml:"name"` // empty means $DISPLAY
	Selections []string `json:"selections" yaml:"selections"`
}

// RemoteConfig says how to reach the peer. Exactly one side is set.
type RemoteConfig struct {
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"` // multiaddr
	Dial   string `json:"dial,omitempty" yaml:"dial,omitempty"`     // multiaddr
}

// TransferConfig tunes payload transfers
type TransferConfig struct {
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ReplyTimeout      time.Duration `json:"reply_timeout" yaml:"reply_timeout"`
	CompressThreshold int           `json:"compress_threshold" yaml:"compress_threshold"`
}

// StorageConfig holds storage-related configuration
type StorageConfig struct {
	DBPath    string `json:"db_path" yaml:"db_path"`
	KeepItems int    `json:"keep_items" yaml:"keep_items"`
}

// Overridable for tests
var (
	getConfigPaths   = GetConfigPaths
	generateDeviceID = func() string { return uuid.New().String() }
)

// GetConfigPaths returns the platform-specific configuration paths
func GetConfigPaths() (*ConfigPaths, error) {
	baseDir := os.Getenv("CLIPBRIDGE_CONFIG_DIR")
	if baseDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(configDir, "clipbridge")
	}

	dataDir := os.Getenv("CLIPBRIDGE_DATA_DIR")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		switch runtime.GOOS {
		case "darwin":
			dataDir = filepath.Join(homeDir, "Library", "Application Support", "clipbridge")
		default:
			if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
				dataDir = filepath.Join(xdgDataHome, "clipbridge")
			} else {
				dataDir = filepath.Join(homeDir, ".local", "share", "clipbridge")
			}
		}
	}

	for _, dir := range []string{baseDir, dataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	return &ConfigPaths{
		BaseDir:      baseDir,
		ActiveConfig: filepath.Join(baseDir, "config.yaml"),
		DataDir:      dataDir,
		DBFile:       filepath.Join(dataDir, "clipbridge.db"),
	}, nil
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	paths, err := getConfigPaths()
	if err != nil {
		// fall back to the working directory
		paths = &ConfigPaths{ActiveConfig: "config.yaml", DBFile: "clipbridge.db"}
	}
	hostname, _ := os.Hostname()

	return &Config{
		DeviceID:    generateDeviceID(),
		DeviceName:  hostname,
		SystemPaths: *paths,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Display: DisplayConfig{
			Selections: []string{"PRIMARY", "CLIPBOARD"},
		},
		Remote: RemoteConfig{
			Listen: "/ip4/127.0.0.1/tcp/7020",
		},
		Transfer: TransferConfig{
			IdleTimeout:       5 * time.Second,
			ReplyTimeout:      10 * time.Second,
			CompressThreshold: 1024, // 1KB
		},
		Storage: StorageConfig{
			DBPath:    paths.DBFile,
			KeepItems: 20,
		},
	}
}

// Load loads the configuration from the specified file or creates default if not exists
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		var err error
		configPath, err = GetActiveConfigPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		cfg := DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		overrideFromEnv(cfg)
		return cfg, nil
	}

	// Missing keys keep their defaults
	cfg := DefaultConfig()
	defaultRemote := cfg.Remote
	cfg.Remote = RemoteConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Remote == (RemoteConfig{}) {
		cfg.Remote = defaultRemote
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = generateDeviceID()
	}

	overrideFromEnv(cfg)
	return cfg, nil
}

// Save saves the configuration to the specified file
func (c *Config) Save(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate reports the first setting the bridge cannot run with.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: log.format must be json or console, got %q", ErrInvalidConfig, c.Log.Format)
	}

	if len(c.Display.Selections) == 0 {
		return fmt.Errorf("%w: display.selections is empty", ErrInvalidConfig)
	}
	for _, s := range c.Display.Selections {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: display.selections has a blank name", ErrInvalidConfig)
		}
	}

	switch {
	case c.Remote.Listen == "" && c.Remote.Dial == "":
		return fmt.Errorf("%w: one of remote.listen or remote.dial is required", ErrInvalidConfig)
	case c.Remote.Listen != "" && c.Remote.Dial != "":
		return fmt.Errorf("%w: remote.listen and remote.dial are exclusive", ErrInvalidConfig)
	}

	if c.Transfer.IdleTimeout <= 0 || c.Transfer.ReplyTimeout <= 0 {
		return fmt.Errorf("%w: transfer timeouts must be positive", ErrInvalidConfig)
	}
	if c.Transfer.CompressThreshold < 0 {
		return fmt.Errorf("%w: transfer.compress_threshold is negative", ErrInvalidConfig)
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("%w: storage.db_path is empty", ErrInvalidConfig)
	}
	if c.Storage.KeepItems < 0 {
		return fmt.Errorf("%w: storage.keep_items is negative", ErrInvalidConfig)
	}
	return nil
}

// GetActiveConfigPath returns the path to the currently active config
func GetActiveConfigPath() (string, error) {
	paths, err := getConfigPaths()
	if err != nil {
		return "", err
	}
	return paths.ActiveConfig, nil
}

// overrideFromEnv overrides configuration values from environment variables
func overrideFromEnv(config *Config) {
	if val := os.Getenv("CLIPBRIDGE_DISPLAY"); val != "" {
		config.Display.Name = val
	}
	// an explicit endpoint replaces the other side
	if val := os.Getenv("CLIPBRIDGE_LISTEN"); val != "" {
		config.Remote = RemoteConfig{Listen: val}
	}
	if val := os.Getenv("CLIPBRIDGE_DIAL"); val != "" {
		config.Remote = RemoteConfig{Dial: val}
	}
	if val := os.Getenv("CLIPBRIDGE_LOG_LEVEL"); val != "" {
		config.Log.Level = val
	}
	if val := os.Getenv("CLIPBRIDGE_DATA_DIR"); val != "" {
		config.SystemPaths.DataDir = val
		config.Storage.DBPath = filepath.Join(val, "clipbridge.db")
	}
}
