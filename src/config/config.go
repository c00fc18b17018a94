package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"

	"ledger-socket/src/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// identifierPattern guards table and schema names that end up in SQL text.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// Default returns the settings used when neither file nor environment say
// otherwise.
func Default() *models.MConfig {
	return &models.MConfig{
		Name:     "ledger-socket",
		LogLevel: "INFO",
		Server: models.MServerConfig{
			Host:        "0.0.0.0",
			Port:        50007,
			ControlPort: 50051,
		},
		Gateway: models.MGatewayConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			SocketHost:     "localhost",
			SocketPort:     50007,
			DialTimeout:    3,
			RequestTimeout: 10,
			MaxRetries:     2,
		},
		Storage: models.MStorageConfig{
			DBType:              "sqlite",
			DBConnectionString:  "postgres://localhost:5432/postgres?sslmode=disable",
			DBName:              "clientes_db",
			AccountsTable:       "personas",
			OperationsTable:     "operaciones",
			HealthCheckInterval: 10,
		},
	}
}

// -----------------------------------------------------------------------------

// NewConfig builds the configuration in three layers: defaults, the YAML file
// at configPath (skipped when absent), then environment variables. A .env
// file in the working directory is loaded into the environment first.
func NewConfig(configPath string) (*Config, error) {
	// 1. .env is optional
	_ = godotenv.Load()

	config := &Config{MConfig: Default()}

	// 2. Overlay the YAML file
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// defaults only
		case err != nil:
			return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
		default:
			if err := yaml.Unmarshal(data, config.MConfig); err != nil {
				return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
			}
		}
	}

	// 3. Environment wins
	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// applyEnv maps the deployment variables onto the config. MONGO_* names are
// kept so existing compose files keep working; they now address the SQL store.
func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString("LOG_LEVEL", &c.LogLevel)

	setString("SERVER_HOST", &c.Server.Host)
	if err := setInt("SERVER_PORT", &c.Server.Port); err != nil {
		return err
	}
	if err := setInt("CONTROL_PORT", &c.Server.ControlPort); err != nil {
		return err
	}

	setString("GATEWAY_HOST", &c.Gateway.Host)
	if err := setInt("GATEWAY_PORT", &c.Gateway.Port); err != nil {
		return err
	}
	setString("SOCKET_HOST", &c.Gateway.SocketHost)
	if err := setInt("SOCKET_PORT", &c.Gateway.SocketPort); err != nil {
		return err
	}

	setString("LEDGER_DB_TYPE", &c.Storage.DBType)
	setString("LEDGER_DB_PATH", &c.Storage.DBPath)
	setString("MONGO_URI", &c.Storage.DBConnectionString)
	setString("MONGO_DB", &c.Storage.DBName)
	setString("MONGO_COLLECTION", &c.Storage.AccountsTable)
	setString("MONGO_COLLECTION_OPS", &c.Storage.OperationsTable)

	return nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// TCP server
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d", c.Server.Port)
	}
	if c.Server.ControlPort < 0 || c.Server.ControlPort > 65535 {
		return fmt.Errorf("invalid control port number: %d", c.Server.ControlPort)
	}

	// Gateway
	if c.Gateway.Host == "" {
		return fmt.Errorf("gateway host cannot be empty")
	}
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("invalid gateway port number: %d", c.Gateway.Port)
	}
	if c.Gateway.SocketHost == "" {
		return fmt.Errorf("socket host cannot be empty")
	}
	if c.Gateway.SocketPort <= 0 || c.Gateway.SocketPort > 65535 {
		return fmt.Errorf("invalid socket port number: %d", c.Gateway.SocketPort)
	}
	if c.Gateway.DialTimeout <= 0 {
		return fmt.Errorf("dial timeout must be greater than 0")
	}
	if c.Gateway.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Gateway.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	// Storage
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" && c.Storage.DBName == "" {
			return fmt.Errorf("database path or name required for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
		if !identifierPattern.MatchString(c.Storage.DBName) {
			return fmt.Errorf("invalid database name %q", c.Storage.DBName)
		}
	default:
		return fmt.Errorf("unsupported database type %q", c.Storage.DBType)
	}
	if !identifierPattern.MatchString(c.Storage.AccountsTable) {
		return fmt.Errorf("invalid accounts table name %q", c.Storage.AccountsTable)
	}
	if !identifierPattern.MatchString(c.Storage.OperationsTable) {
		return fmt.Errorf("invalid operations table name %q", c.Storage.OperationsTable)
	}
	if c.Storage.AccountsTable == c.Storage.OperationsTable {
		return fmt.Errorf("accounts and operations tables must differ")
	}
	if c.Storage.HealthCheckInterval <= 0 {
		return fmt.Errorf("health check interval must be greater than 0")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
