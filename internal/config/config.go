package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/viper"
)

type Config struct {
	Relay    RelayConfig    `mapstructure:"relay"`
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Draw     DrawConfig     `mapstructure:"draw"`
	Log      LogConfig      `mapstructure:"log"`
}

// RelayConfig describes how the generator reaches the model.
type RelayConfig struct {
	URL         string        `mapstructure:"url" validate:"required|fullUrl"`
	Backend     string        `mapstructure:"backend" validate:"required|in:relay,direct"`
	Model       string        `mapstructure:"model" validate:"required"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// Token is the shared secret between the client and a relay that
	// requires one. Empty means the relay is open.
	Token string `mapstructure:"token"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" validate:"required"`
	Port int    `mapstructure:"port" validate:"required|min:1|max:65535"`
}

type UpstreamConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required|fullUrl"`
	APIKey  string `mapstructure:"api_key"`
}

type StorageConfig struct {
	DataDir string `mapstructure:"data_dir" validate:"required"`
}

type DrawConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required|in:trace,debug,info,warn,error"`
	File  string `mapstructure:"file"`
}

// Load reads $XDG_CONFIG_HOME/crowtreasure/config.json (if present), applies
// defaults and CROWTREASURE_* environment overrides, then validates.
func Load() (Config, error) {
	return LoadFrom(configFilePath())
}

// LoadFrom is Load with an explicit config file path. A missing file is not an error.
func LoadFrom(path string) (Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(cfg.Storage.DataDir, "crowtreasure.log")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section and the numeric ranges the tags cannot express.
func (c *Config) Validate() error {
	for _, section := range []any{&c.Relay, &c.Server, &c.Upstream, &c.Storage, &c.Log} {
		v := validate.Struct(section)
		if !v.Validate() {
			return fmt.Errorf("invalid config: %w", v.Errors)
		}
	}
	if c.Relay.Temperature < 0 || c.Relay.Temperature > 2 {
		return fmt.Errorf("invalid config: relay.temperature %v outside [0, 2]", c.Relay.Temperature)
	}
	if c.Relay.Timeout < 0 {
		return fmt.Errorf("invalid config: relay.timeout must not be negative")
	}
	if c.Draw.Delay < 0 {
		return fmt.Errorf("invalid config: draw.delay must not be negative")
	}
	return nil
}

func newViper(path string) *viper.Viper {
	v := newFileViper(path)
	for _, s := range specs {
		v.SetDefault(s.key, s.def())
		if s.env != "" {
			v.BindEnv(s.key, s.env)
		}
	}
	return v
}

func newFileViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	return v
}

func isNotExist(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, fs.ErrNotExist)
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "crowtreasure", "config.json")
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "crowtreasure-data"
		}
	}
	return filepath.Join(dir, "crowtreasure")
}
