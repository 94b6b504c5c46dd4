package station

import (
	"time"
)

// Config represents a station's static identity and topology.
type Config struct {
	// Identity
	ID        string
	StationID string
	Name      string
	Enabled   bool
	AutoStart bool

	// Hardware Info
	Vendor          string
	Model           string
	SerialNumber    string
	FirmwareVersion string

	// Topology: one or more EVSEs, each with one or more connectors
	EVSEs []EVSEConfig

	// CSMS Connection
	CSMSURL string

	// Simulation defaults, overridden at runtime by persisted device model
	// variables once SetVariables changes them
	Simulation SimulationConfig

	// Metadata
	CreatedAt time.Time
	UpdatedAt time.Time
	Tags      []string
}

// EVSEConfig represents one EVSE and its connectors.
type EVSEConfig struct {
	ID         int
	Connectors []ConnectorConfig
}

// ConnectorConfig represents a physical connector.
type ConnectorConfig struct {
	ID            int
	Type          string // cCCS1, cCCS2, cType2, ... OCPP 2.0.1 ConnectorEnumType values
	MaxPowerWatts int
}

// SimulationConfig holds the station's boot-time defaults for variables the
// device model also exposes as ReadWrite (HeartbeatInterval,
// WebSocketPingInterval). Once a station boots, the live value tracked by
// Station overrides these; they only seed the first run.
type SimulationConfig struct {
	BootDelaySeconds             int
	HeartbeatIntervalSeconds     int
	WebSocketPingIntervalSeconds int
}
