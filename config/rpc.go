package config

// RPCConfig holds receipt API configuration params.
type RPCConfig struct {
	ListenAddress string `mapstructure:"laddr"`

	// Cross Origin Resource Sharing settings
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	CORSAllowedMethods []string `mapstructure:"cors_allowed_methods"`
	CORSAllowedHeaders []string `mapstructure:"cors_allowed_headers"`

	// Maximum number of simultaneous connections.
	// 0 - unlimited.
	MaxOpenConnections int `mapstructure:"max_open_connections"`
}

// IsCorsEnabled returns true if cross-origin resource sharing is enabled.
func (cfg RPCConfig) IsCorsEnabled() bool {
	return len(cfg.CORSAllowedOrigins) != 0
}
