package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ConfigBaseName is the base name of the configuration file without extension.
const ConfigBaseName = "multida"

// EnvPrefix prefixes environment variables overriding configuration keys,
// e.g. MULTIDA_DA_SUBMIT_STRATEGY.
const EnvPrefix = "MULTIDA"

// DefaultHome returns the default home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + ConfigBaseName
	}
	return filepath.Join(home, "."+ConfigBaseName)
}

// NewViper returns a viper instance bound to the flags of cmd and to the
// environment. The config file (multida.yaml, .toml or .json in home) is read
// if present.
func NewViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName(ConfigBaseName)
	v.AddConfigPath(v.GetString(FlagHome))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: reading config file: %w", ErrConfig, err)
		}
	}
	return v, nil
}

// Load builds the node configuration for cmd: defaults, overridden by the
// config file, the environment and finally flags. The DA section is normalized.
func Load(cmd *cobra.Command) (NodeConfig, error) {
	v, err := NewViper(cmd)
	if err != nil {
		return NodeConfig{}, err
	}
	nc := DefaultNodeConfig()
	if err := nc.GetViperConfig(v); err != nil {
		return NodeConfig{}, err
	}
	if err := nc.Instrumentation.ValidateBasic(); err != nil {
		return NodeConfig{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := nc.DA.Normalize(); err != nil {
		return NodeConfig{}, err
	}
	return nc, nil
}
