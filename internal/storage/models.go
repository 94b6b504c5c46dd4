package storage

import (
	"time"
)

// Station represents a charging station configuration
type Station struct {
	ID                string            `bson:"_id,omitempty"`
	StationID         string            `bson:"station_id"`
	Name              string            `bson:"name"`
	Enabled           bool              `bson:"enabled"`
	ProtocolVersion   string            `bson:"protocol_version"`
	Vendor            string            `bson:"vendor"`
	Model             string            `bson:"model"`
	SerialNumber      string            `bson:"serial_number"`
	FirmwareVersion   string            `bson:"firmware_version"`
	Connectors        []Connector       `bson:"connectors"`
	ConnectionStatus  string            `bson:"connection_status"`
	LastHeartbeat     *time.Time        `bson:"last_heartbeat,omitempty"`
	CreatedAt         time.Time         `bson:"created_at"`
	UpdatedAt         time.Time         `bson:"updated_at"`
	Tags              []string          `bson:"tags,omitempty"`
}

// Connector represents a charging connector
type Connector struct {
	ID       int    `bson:"id"`
	Type     string `bson:"type"` // cType2, cCCS2, etc. — OCPP 2.0.1 ConnectorEnumType values
	MaxPower int    `bson:"max_power"`
	Status   string `bson:"status"`
}

// ConfigurationKey is the persisted form of one station configuration
// key/value entry.
type ConfigurationKey struct {
	ID        string    `bson:"_id,omitempty"`
	StationID string    `bson:"station_id"`
	Key       string    `bson:"key"`
	KeyLower  string    `bson:"key_lower"` // case-insensitive lookup index
	Value     string    `bson:"value"`
	ReadOnly  bool      `bson:"readonly"`
	Visible   bool      `bson:"visible"`
	Reboot    bool      `bson:"reboot"`
	UpdatedAt time.Time `bson:"updated_at"`
}
