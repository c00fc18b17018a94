package models

// MConfig Structure
type MConfig struct {
	Name     string         `yaml:"name"`
	LogLevel string         `yaml:"log_level"`
	Server   MServerConfig  `yaml:"server"`
	Gateway  MGatewayConfig `yaml:"gateway"`
	Storage  MStorageConfig `yaml:"storage"`
}

// MServerConfig describes the TCP command server and its gRPC control port.
type MServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	ControlPort int    `yaml:"control_port"` // 0 disables the health service
}

// MGatewayConfig describes the HTTP gateway and how it reaches the TCP server.
type MGatewayConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	SocketHost     string `yaml:"socket_host"`
	SocketPort     int    `yaml:"socket_port"`
	DialTimeout    int    `yaml:"dial_timeout"`    // seconds
	RequestTimeout int    `yaml:"request_timeout"` // seconds
	MaxRetries     int    `yaml:"retries"`
}

type MStorageConfig struct {
	DBType              string `yaml:"db_type"`
	DBPath              string `yaml:"db_path"`
	DBConnectionString  string `yaml:"db_connection_string"`
	DBName              string `yaml:"db_name"`
	AccountsTable       string `yaml:"accounts_table"`
	OperationsTable     string `yaml:"operations_table"`
	SeedSampleData      bool   `yaml:"seed_sample_data"`
	HealthCheckInterval int    `yaml:"health_check_interval"` // seconds
}
