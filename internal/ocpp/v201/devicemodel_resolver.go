package v201

import "strconv"

// StationContext is the live runtime collaborator the device model consults
// for values it doesn't own itself (identity strings, heartbeat/ws-ping
// intervals, EVSE topology) and for the two side effects a successful set
// can trigger.
type StationContext interface {
	LogPrefix() string

	Model() string
	VendorName() string
	SerialNumber() string
	FirmwareVersion() string

	HeartbeatInterval() int
	WebSocketPingInterval() int
	RestartHeartbeat()
	RestartWebSocketPing()

	EVSEs() map[int]EVSEInfo
}

// EVSEInfo describes one EVSE/connector topology entry as the report builder
// needs it.
type EVSEInfo struct {
	ID          int
	ConnectorID int // 0 when this entry represents the EVSE itself, not a connector
}

// ConfigurationKeyEntry is the persisted shape of one ConfigurationKey Store
// row.
type ConfigurationKeyEntry struct {
	Key      string
	Value    string
	ReadOnly bool
	Visible  bool
	Reboot   bool
}

// ConfigurationKeyAddOptions carries the optional fields of Add.
type ConfigurationKeyAddOptions struct {
	ReadOnly bool
	Visible  bool
	Reboot   bool
}

// ConfigurationKeyStore is the persistent key/value bag a station maintains.
// Key lookup is case-insensitive; storage preserves the casing it was
// written with. Implementations: storage.MemoryKeyStore, storage.MongoKeyStore.
type ConfigurationKeyStore interface {
	Get(stationID, keyName string) (*ConfigurationKeyEntry, bool)
	Add(stationID, keyName, value string, opts ConfigurationKeyAddOptions, overwrite bool) error
	SetValue(stationID, keyName, value string) error
}

const defaultTxUpdatedInterval = 60

// resolveValue computes the current value of a metadata entry, in the order
// specified for live reads: resolve hook, persistent store, volatile
// overrides, well-known live fallbacks, then an unconditional post-process.
func resolveValue(meta *VariableMetadata, stationID string, station StationContext, store ConfigurationKeyStore, mgr *VariableManager, componentInstance, variableInstance string) string {
	var value string

	if meta.Resolve != nil {
		value = meta.Resolve(station)
	}

	switch {
	case value != "": // the resolve hook answered

	case meta.Persistence == PersistencePersistent:
		key := compositeKeyFor(meta, componentInstance)
		instanceScoped := variableInstance != "" || (componentInstance != "" && !meta.FlattenInstance)
		entry, ok := store.Get(stationID, key)
		if !ok && meta.DefaultValue != nil && !instanceScoped {
			resolved := *meta.DefaultValue
			_ = store.Add(stationID, key, resolved, ConfigurationKeyAddOptions{
				ReadOnly: meta.Mutability == MutabilityReadOnly,
				Visible:  true,
				Reboot:   meta.RebootRequired,
			}, false)
			entry, ok = store.Get(stationID, key)
		}
		if ok {
			value = entry.Value
		}

	default: // Volatile
		key := compositeKeyFor(meta, componentInstance)
		if v, ok := mgr.runtimeOverrides[key]; ok {
			value = v
		}
	}

	if value == "" {
		value = wellKnownLiveFallback(meta, station)
	}

	if meta.PostProcess != nil {
		value = meta.PostProcess(station, value)
	}

	return value
}

// compositeKeyFor applies the registry's FlattenInstance exception before
// delegating to buildCompositeKey.
func compositeKeyFor(meta *VariableMetadata, componentInstance string) string {
	if meta.FlattenInstance {
		componentInstance = ""
	}
	return buildCompositeKey(meta.Component, componentInstance, meta.Variable)
}

func wellKnownLiveFallback(meta *VariableMetadata, station StationContext) string {
	switch {
	case meta.Component == ComponentOCPPCommCtrlr && meta.Variable == "HeartbeatInterval":
		return strconv.Itoa(station.HeartbeatInterval())
	case meta.Component == ComponentOCPPCommCtrlr && meta.Variable == "WebSocketPingInterval":
		return strconv.Itoa(station.WebSocketPingInterval())
	case meta.Component == ComponentSampledDataCtrlr && meta.Variable == "TxUpdatedInterval":
		return strconv.Itoa(defaultTxUpdatedInterval)
	default:
		return ""
	}
}
