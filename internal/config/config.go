package config

import (
	"time"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	MongoDB     MongoDBConfig     `mapstructure:"mongodb"`
	DeviceModel DeviceModelConfig `mapstructure:"device_model"`
}

// DeviceModelConfig holds the per-message batch limits and the absolute
// value-size cap the device model enforces on GetVariables/SetVariables.
type DeviceModelConfig struct {
	ItemsPerMessage        int `mapstructure:"items_per_message"`
	BytesPerMessage        int `mapstructure:"bytes_per_message"`
	AbsoluteMaxValueLength int `mapstructure:"absolute_max_value_length"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int       `mapstructure:"port"`
	Host string    `mapstructure:"host"`
	TLS  TLSConfig `mapstructure:"tls"`
}

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or text
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI               string                   `mapstructure:"uri"`
	Database          string                   `mapstructure:"database"`
	ConnectionTimeout time.Duration            `mapstructure:"connection_timeout"`
	MaxPoolSize       uint64                   `mapstructure:"max_pool_size"`
	Collections       MongoDBCollectionsConfig `mapstructure:"collections"`
}

// MongoDBCollectionsConfig holds collection names
type MongoDBCollectionsConfig struct {
	Stations          string `mapstructure:"stations"`
	ConfigurationKeys string `mapstructure:"configuration_keys"`
}
