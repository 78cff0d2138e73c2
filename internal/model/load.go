package model

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix  = "CLIFORM"
	EnvConfig  = "CLIFORM_CONFIG"
	ConfigName = "cliform.yaml"
	DotEnvName = ".env"
)

// ConfigDirs returns the directories searched for ConfigName, in order: the
// cliform directory in the user config dir, then the working directory.
func ConfigDirs() []string {
	var dirs []string
	if d, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(d, "cliform"))
	}
	return append(dirs, ".")
}

// FindConfig returns the configuration file to load. CLIFORM_CONFIG wins over
// the search in dirs. The result is empty when there is nothing to load.
func FindConfig(dirs ...string) string {
	if path, ok := os.LookupEnv(EnvConfig); ok && path != "" {
		return path
	}
	for _, d := range dirs {
		path := filepath.Join(d, ConfigName)
		if exists(path) {
			return path
		}
	}
	return ""
}

// LoadEnv loads the given dotenv files into the process environment.
// Variables already set are kept and missing files are skipped.
func LoadEnv(paths ...string) error {
	for _, path := range paths {
		err := godotenv.Load(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// LoadConfig reads path on top of DefaultConfig, applies CLIFORM_* variables
// and validates the result. An empty path means defaults and environment only.
func LoadConfig(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	return decode(v)
}

// ReadConfig is LoadConfig for YAML read from r.
func ReadConfig(r io.Reader) (Config, error) {
	v := newViper()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return decode(v)
}

// WriteConfig stores cfg as YAML into path, creating the parent directory.
func WriteConfig(path string, cfg Config) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("log", d.Log)
	v.SetDefault("capture", d.Capture)
	v.SetDefault("ui.tick_interval", d.UI.TickInterval)
	v.SetDefault("ui.theme", d.UI.Theme)
	v.SetDefault("ui.alt_screen", d.UI.AltScreen)

	// ui.theme is CLIFORM_UI_THEME
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
