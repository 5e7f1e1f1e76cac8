package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/cairnstack/cairn/errors"
)

// DefaultConfigName is the config file looked up in the search paths.
const DefaultConfigName = "cairn.toml"

// Load reads the cairn configuration, searching the current directory
// and ~/.config/cairn/ for cairn.toml. A missing file is not an error;
// defaults and environment variables apply.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("cairn")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "cairn"))
	}

	SetDefaults(v)
	BindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config file %s", configPath)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &config, nil
}
