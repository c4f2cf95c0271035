package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rollkit/multida/types"
)

const (
	// FlagHome is the directory holding the config file and the receipt database.
	FlagHome = "home"
	// FlagDBPath is the receipt database directory, relative to home.
	FlagDBPath = "db_path"
	// FlagDASubmitStrategy is "all", "quorum" or a number of backends.
	FlagDASubmitStrategy = "da.submit_strategy"
	// FlagDAServers takes one JSON backend config per value.
	FlagDAServers = "da.servers"
	// FlagDASubmitTimeout bounds a single backend submission.
	FlagDASubmitTimeout = "da.submit_timeout"
	// FlagRPCListenAddress is the receipt API listen address.
	FlagRPCListenAddress = "rpc.laddr"
	// FlagRPCCORSAllowedOrigins lists origins allowed by the receipt API.
	FlagRPCCORSAllowedOrigins = "rpc.cors_allowed_origins"
	// FlagPrometheus enables the prometheus endpoint.
	FlagPrometheus = "instrumentation.prometheus"
	// FlagPrometheusListenAddr is the prometheus endpoint listen address.
	FlagPrometheusListenAddr = "instrumentation.prometheus_listen_addr"
	// FlagLogLevel is one of debug, info, error or none.
	FlagLogLevel = "log.level"
	// FlagLogFormat is plain or json.
	FlagLogFormat = "log.format"
)

// Config file only keys.
const (
	keyRPCCORSAllowedMethods = "rpc.cors_allowed_methods"
	keyRPCCORSAllowedHeaders = "rpc.cors_allowed_headers"
)

// NodeConfig stores multida configuration.
type NodeConfig struct {
	RootDir         string                 `mapstructure:"home"`
	DBPath          string                 `mapstructure:"db_path"`
	DA              DAConfig               `mapstructure:"da"`
	RPC             RPCConfig              `mapstructure:"rpc"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
	Log             LogConfig              `mapstructure:"log"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DBDir returns the absolute receipt database directory.
func (nc NodeConfig) DBDir() string {
	if filepath.IsAbs(nc.DBPath) {
		return nc.DBPath
	}
	return filepath.Join(nc.RootDir, nc.DBPath)
}

// GetViperConfig reads configuration parameters from Viper instance.
//
// DA servers are accepted both as JSON strings (command line) and as nested
// maps (config file).
func (nc *NodeConfig) GetViperConfig(v *viper.Viper) error {
	nc.RootDir = v.GetString(FlagHome)
	nc.DBPath = v.GetString(FlagDBPath)

	strategy, err := types.ParseSubmitStrategy(v.GetString(FlagDASubmitStrategy))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	nc.DA.SubmitStrategy = strategy
	nc.DA.SubmitTimeout = v.GetDuration(FlagDASubmitTimeout)
	nc.DA.Servers, err = readServers(v.Get(FlagDAServers))
	if err != nil {
		return err
	}

	nc.RPC.ListenAddress = v.GetString(FlagRPCListenAddress)
	nc.RPC.CORSAllowedOrigins = v.GetStringSlice(FlagRPCCORSAllowedOrigins)
	if methods := v.GetStringSlice(keyRPCCORSAllowedMethods); len(methods) > 0 {
		nc.RPC.CORSAllowedMethods = methods
	}
	if headers := v.GetStringSlice(keyRPCCORSAllowedHeaders); len(headers) > 0 {
		nc.RPC.CORSAllowedHeaders = headers
	}

	if nc.Instrumentation == nil {
		nc.Instrumentation = DefaultInstrumentationConfig()
	}
	nc.Instrumentation.Prometheus = v.GetBool(FlagPrometheus)
	nc.Instrumentation.PrometheusListenAddr = v.GetString(FlagPrometheusListenAddr)

	nc.Log.Level = v.GetString(FlagLogLevel)
	nc.Log.Format = v.GetString(FlagLogFormat)
	return nil
}

func readServers(raw interface{}) ([]BackendConfig, error) {
	var items []interface{}
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		for _, s := range val {
			items = append(items, s)
		}
	case []interface{}:
		items = val
	case string:
		if val == "" || val == "[]" {
			return nil, nil
		}
		items = []interface{}{val}
	default:
		return nil, fmt.Errorf("%w: unsupported servers value %T", ErrConfig, raw)
	}

	servers := make([]BackendConfig, 0, len(items))
	for i, item := range items {
		var (
			bc  BackendConfig
			err error
		)
		switch val := item.(type) {
		case string:
			bc, err = ParseBackendConfig(val)
		default:
			var data []byte
			data, err = json.Marshal(val)
			if err == nil {
				err = json.Unmarshal(data, &bc)
			}
		}
		if err != nil {
			if !errors.Is(err, ErrConfig) {
				err = fmt.Errorf("%w: %w", ErrConfig, err)
			}
			return nil, fmt.Errorf("server %d: %w", i, err)
		}
		servers = append(servers, bc)
	}
	return servers, nil
}

// AddFlags adds multida specific configuration options to cobra Command.
func AddFlags(cmd *cobra.Command) {
	def := DefaultNodeConfig()
	cmd.PersistentFlags().String(FlagHome, def.RootDir, "directory for config and data")
	cmd.PersistentFlags().String(FlagDBPath, def.DBPath, "receipt database path, relative to home")
	cmd.PersistentFlags().String(FlagDASubmitStrategy, def.DA.SubmitStrategy.String(),
		"backends that must acknowledge a batch: 'all', 'quorum' or a number")
	cmd.PersistentFlags().StringArray(FlagDAServers, nil,
		`DA server config as JSON, e.g. '{"ledger":{"namespace":"...","conn":"..."}}' or '{"object-store":{"scheme":"s3","config":{...}}}'`)
	cmd.PersistentFlags().Duration(FlagDASubmitTimeout, def.DA.SubmitTimeout, "timeout of one backend submission")
	cmd.PersistentFlags().String(FlagRPCListenAddress, def.RPC.ListenAddress, "receipt API listen address")
	cmd.PersistentFlags().StringSlice(FlagRPCCORSAllowedOrigins, def.RPC.CORSAllowedOrigins, "origins allowed to query the receipt API")
	cmd.PersistentFlags().Bool(FlagPrometheus, def.Instrumentation.Prometheus, "serve prometheus metrics")
	cmd.PersistentFlags().String(FlagPrometheusListenAddr, def.Instrumentation.PrometheusListenAddr, "prometheus listen address")
	cmd.PersistentFlags().String(FlagLogLevel, def.Log.Level, "log level (debug, info, error, none)")
	cmd.PersistentFlags().String(FlagLogFormat, def.Log.Format, "log format (plain, json)")
}
