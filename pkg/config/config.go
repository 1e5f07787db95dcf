// Package config holds server and client settings and reads them from
// flags, environment variables and .env files.
//
// Every flag can also be set through an environment variable named
// DISTLOCK_<FLAG> with dashes replaced by underscores, for example
// DISTLOCK_DEFAULT_LEASE=30s. Values in .env and .env.local are loaded into
// the environment first; variables already set win.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/daniel-salmon/distlock/pkg/logging"
	"github.com/daniel-salmon/distlock/pkg/store"
	"github.com/daniel-salmon/distlock/pkg/types"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "distlock"

// flag keys
const (
	KeyGRPCAddr      = "grpc-addr"
	KeyHTTPAddr      = "http-addr"
	KeyStoreEngine   = "store-engine"
	KeyDefaultLease  = "default-lease"
	KeyMaxWorkers    = "max-workers"
	KeyShutdownGrace = "shutdown-grace"
	KeyLogLevel      = "log-level"
	KeyLogFormat     = "log-format"

	KeyEndpoint  = "endpoint"
	KeyTimeout   = "timeout"
	KeyHeartbeat = "heartbeat"
)

// --------------------------------------------------------------------------
// Server configuration
// --------------------------------------------------------------------------

type ServerConfig struct {
	// gRPC listen address
	GRPCAddr string
	// HTTP gateway listen address, empty disables the gateway
	HTTPAddr string

	StoreEngine  store.Engine
	DefaultLease time.Duration

	// upper bound on concurrently served streams
	MaxWorkers uint32
	// how long graceful shutdown may take before connections are cut
	ShutdownGrace time.Duration

	LogLevel  string
	LogFormat string
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		GRPCAddr:      ":50051",
		HTTPAddr:      ":8080",
		StoreEngine:   store.EngineMemory,
		DefaultLease:  types.DefaultLease,
		MaxWorkers:    5,
		ShutdownGrace: time.Second,
		LogLevel:      "info",
		LogFormat:     logging.FormatText,
	}
}

// LoadServer reads the server configuration from v.
func LoadServer(v *viper.Viper) (*ServerConfig, error) {
	cfg := &ServerConfig{
		GRPCAddr:      v.GetString(KeyGRPCAddr),
		HTTPAddr:      v.GetString(KeyHTTPAddr),
		StoreEngine:   store.Engine(v.GetString(KeyStoreEngine)),
		DefaultLease:  v.GetDuration(KeyDefaultLease),
		MaxWorkers:    v.GetUint32(KeyMaxWorkers),
		ShutdownGrace: v.GetDuration(KeyShutdownGrace),
		LogLevel:      v.GetString(KeyLogLevel),
		LogFormat:     v.GetString(KeyLogFormat),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration values are valid.
func (c *ServerConfig) Validate() error {
	if c.GRPCAddr == "" {
		return fmt.Errorf("%s is required", KeyGRPCAddr)
	}
	switch c.StoreEngine {
	case store.EngineMemory, store.EngineSharded:
	default:
		return fmt.Errorf("invalid %s %q (expected %s or %s)", KeyStoreEngine, c.StoreEngine, store.EngineMemory, store.EngineSharded)
	}
	if c.DefaultLease <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyDefaultLease, c.DefaultLease)
	}
	if c.MaxWorkers == 0 {
		return fmt.Errorf("%s must be at least 1", KeyMaxWorkers)
	}
	if c.ShutdownGrace < 0 {
		return fmt.Errorf("%s must not be negative", KeyShutdownGrace)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid %s %q (expected text or json)", KeyLogFormat, c.LogFormat)
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection(&sb, "RPC Server")
	addField(&sb, "gRPC Address", c.GRPCAddr)
	addField(&sb, "HTTP Address", orDisabled(c.HTTPAddr))
	addField(&sb, "Max Workers", fmt.Sprintf("%d", c.MaxWorkers))
	addField(&sb, "Shutdown Grace", c.ShutdownGrace.String())

	addSection(&sb, "Lock Store")
	addField(&sb, "Engine", string(c.StoreEngine))
	addField(&sb, "Default Lease", c.DefaultLease.String())

	addSection(&sb, "Logging")
	addField(&sb, "Log Level", c.LogLevel)
	addField(&sb, "Log Format", c.LogFormat)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration
// --------------------------------------------------------------------------

type ClientConfig struct {
	// gRPC address of the server
	Endpoint string
	// per-call deadline, 0 means none
	Timeout time.Duration
	// poll interval of blocking acquisition
	Heartbeat time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:  "localhost:50051",
		Timeout:   10 * time.Second,
		Heartbeat: 3 * time.Second,
	}
}

// LoadClient reads the client configuration from v.
func LoadClient(v *viper.Viper) (*ClientConfig, error) {
	cfg := &ClientConfig{
		Endpoint:  v.GetString(KeyEndpoint),
		Timeout:   v.GetDuration(KeyTimeout),
		Heartbeat: v.GetDuration(KeyHeartbeat),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ClientConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%s is required", KeyEndpoint)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%s must not be negative", KeyTimeout)
	}
	if c.Heartbeat <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyHeartbeat, c.Heartbeat)
	}
	return nil
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection(&sb, "Client Configuration")
	addField(&sb, "Endpoint", c.Endpoint)
	addField(&sb, "Timeout", c.Timeout.String())
	addField(&sb, "Heartbeat", c.Heartbeat.String())

	return sb.String()
}

// --------------------------------------------------------------------------
// Environment
// --------------------------------------------------------------------------

// InitEnv loads .env files and makes v read DISTLOCK_* variables.
func InitEnv(v *viper.Viper) {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func addSection(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
}

func addField(sb *strings.Builder, name, value string) {
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
}

func orDisabled(addr string) string {
	if addr == "" {
		return "disabled"
	}
	return addr
}
