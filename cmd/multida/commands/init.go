package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rollkit/multida/config"
)

// NewInitCmd returns the command writing a default configuration file.
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: fmt.Sprintf("Initialize a new %s.yaml file in the home directory", config.ConfigBaseName),
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := cmd.Flags().GetString(config.FlagHome)
			if err != nil {
				return fmt.Errorf("error reading home flag: %w", err)
			}
			if err := os.MkdirAll(home, 0o750); err != nil {
				return err
			}

			def := config.DefaultNodeConfig()
			v := viper.New()
			v.Set(config.FlagDBPath, def.DBPath)
			v.Set(config.FlagDASubmitStrategy, def.DA.SubmitStrategy.String())
			v.Set(config.FlagDASubmitTimeout, def.DA.SubmitTimeout.String())
			v.Set(config.FlagDAServers, []interface{}{})
			v.Set(config.FlagRPCListenAddress, def.RPC.ListenAddress)
			v.Set(config.FlagRPCCORSAllowedOrigins, def.RPC.CORSAllowedOrigins)
			v.Set(config.FlagPrometheus, def.Instrumentation.Prometheus)
			v.Set(config.FlagPrometheusListenAddr, def.Instrumentation.PrometheusListenAddr)
			v.Set(config.FlagLogLevel, def.Log.Level)
			v.Set(config.FlagLogFormat, def.Log.Format)

			path := filepath.Join(home, config.ConfigBaseName+".yaml")
			if err := v.SafeWriteConfigAs(path); err != nil {
				return fmt.Errorf("error writing %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s; add DA servers under da.servers\n", path)
			return nil
		},
	}
}
