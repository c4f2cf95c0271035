package config

import (
	"time"

	"github.com/rollkit/multida/types"
)

const (
	// Version is the current multida version
	Version = "0.1.0"
	// DefaultLedgerMaxSegmentSize is the segment limit of ledger backends.
	DefaultLedgerMaxSegmentSize = 1024 * 1024
	// DefaultObjectStoreMaxSegmentSize is the segment limit of object store backends.
	DefaultObjectStoreMaxSegmentSize = 4 * 1024 * 1024
	// DefaultSubmitTimeout bounds one backend submission.
	DefaultSubmitTimeout = 60 * time.Second
	// DefaultRPCListenAddress is the receipt API listen address.
	DefaultRPCListenAddress = "127.0.0.1:7980"
)

// DefaultNodeConfig returns default values of NodeConfig
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		RootDir: DefaultHome(),
		DBPath:  "data",
		DA: DAConfig{
			SubmitStrategy: types.All(),
			SubmitTimeout:  DefaultSubmitTimeout,
		},
		RPC: RPCConfig{
			ListenAddress:      DefaultRPCListenAddress,
			CORSAllowedOrigins: []string{},
			CORSAllowedMethods: []string{"HEAD", "GET"},
			CORSAllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With"},
			MaxOpenConnections: 900,
		},
		Instrumentation: DefaultInstrumentationConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "plain",
		},
	}
}
