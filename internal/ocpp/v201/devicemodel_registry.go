package v201

import (
	"strconv"
	"strings"
)

// VariableMetadata is a catalog entry describing one (Component, Variable)
// pair on the device model's protocol surface. Entries are immutable after
// boot; the Registry they live in is the sole authority on whether a given
// pair is supported at all.
type VariableMetadata struct {
	Component   ComponentName
	Variable    string
	Instance    string // empty for the common case; set for variable-level instancing
	DataType    DataType
	Mutability  Mutability
	Persistence Persistence

	SupportedAttributes []AttributeType // never empty
	SupportsMonitoring  bool

	DefaultValue *string
	Min          *float64
	Max          *float64
	EnumValues   []string
	Pattern      string // regexp source; empty means unconstrained

	// Resolve returns a live value straight from the station, bypassing the
	// ConfigurationKey Store. Optional.
	Resolve func(station StationContext) string
	// PostProcess normalizes a resolved value before it is returned. Optional.
	PostProcess func(station StationContext, raw string) string

	RebootRequired bool
	SupportsTarget bool

	// FlattenInstance marks registry exceptions (e.g. MessageAttemptInterval)
	// whose composite key omits the component instance even though the
	// component itself is instanced.
	FlattenInstance bool
}

// HasAttribute reports whether kind is one of the variable's supported
// attribute kinds.
func (m *VariableMetadata) HasAttribute(kind AttributeType) bool {
	for _, a := range m.SupportedAttributes {
		if a == kind {
			return true
		}
	}
	return false
}

func strPtr(s string) *string { return &s }
func fPtr(f float64) *float64 { return &f }

// registryIndexKey builds the lookup key for the registry's internal map.
// Unlike buildCompositeKey, this never includes a station-specific
// component instance — the registry describes variable *types*, not live
// component instances.
func registryIndexKey(component ComponentName, variable, instance string) string {
	return strings.ToLower(string(component)) + "/" + strings.ToLower(variable) + "/" + strings.ToLower(instance)
}

// Registry is the static, declarative catalog of every (Component, Variable)
// pair the station claims to implement.
type Registry struct {
	byKey []registryEntry
	index map[string]*VariableMetadata
}

type registryEntry struct {
	key  string
	meta *VariableMetadata
}

func newRegistry(entries []*VariableMetadata) *Registry {
	r := &Registry{index: make(map[string]*VariableMetadata, len(entries)*2)}
	for _, e := range entries {
		key := registryIndexKey(e.Component, e.Variable, e.Instance)
		r.index[key] = e
		r.byKey = append(r.byKey, registryEntry{key: key, meta: e})
		if e.Instance != "" {
			// also index the instance-agnostic fallback, unless something
			// more specific already claimed it
			fallbackKey := registryIndexKey(e.Component, e.Variable, "")
			if _, exists := r.index[fallbackKey]; !exists {
				r.index[fallbackKey] = e
			}
		}
	}
	return r
}

// Lookup returns the metadata for (component, variable, instance), falling
// back to the instance-agnostic entry when a variable-instance-specific one
// doesn't exist.
func (r *Registry) Lookup(component ComponentName, variable, instance string) *VariableMetadata {
	if meta, ok := r.index[registryIndexKey(component, variable, instance)]; ok {
		return meta
	}
	if instance != "" {
		if meta, ok := r.index[registryIndexKey(component, variable, "")]; ok {
			return meta
		}
	}
	return nil
}

// All returns every registry entry in a stable declaration order.
func (r *Registry) All() []*VariableMetadata {
	out := make([]*VariableMetadata, 0, len(r.byKey))
	seen := make(map[*VariableMetadata]bool, len(r.byKey))
	for _, e := range r.byKey {
		if seen[e.meta] {
			continue
		}
		seen[e.meta] = true
		out = append(out, e.meta)
	}
	return out
}

// SupportsComponent reports whether component (compared case-insensitively,
// like every device model name) names a component the registry carries at least one
// variable for.
func (r *Registry) SupportsComponent(component ComponentName) bool {
	_, ok := r.supportedComponentsLower()[strings.ToLower(string(component))]
	return ok
}

func (r *Registry) supportedComponentsLower() map[string]bool {
	out := make(map[string]bool, len(r.byKey))
	for _, e := range r.byKey {
		out[strings.ToLower(string(e.meta.Component))] = true
	}
	return out
}

// DefaultRegistry is the catalog built at package init and shared by the
// package-level DefaultManager convenience wrapper. Per-station managers may
// also be built against it; the registry itself carries no station state.
var DefaultRegistry = newRegistry(buildStandardRegistry())

func buildStandardRegistry() []*VariableMetadata {
	return []*VariableMetadata{
		// ---- ChargingStation ----
		{
			Component:           ComponentChargingStation, Variable: "Model",
			DataType:            DataTypeString, Mutability: MutabilityReadOnly, Persistence: PersistenceVolatile,
			SupportedAttributes: []AttributeType{AttributeActual},
			Resolve:             func(s StationContext) string { return s.Model() },
		},
		{
			Component:           ComponentChargingStation, Variable: "VendorName",
			DataType:            DataTypeString, Mutability: MutabilityReadOnly, Persistence: PersistenceVolatile,
			SupportedAttributes: []AttributeType{AttributeActual},
			Resolve:             func(s StationContext) string { return s.VendorName() },
		},
		{
			Component:           ComponentChargingStation, Variable: "SerialNumber",
			DataType:            DataTypeString, Mutability: MutabilityReadOnly, Persistence: PersistenceVolatile,
			SupportedAttributes: []AttributeType{AttributeActual},
			Resolve:             func(s StationContext) string { return s.SerialNumber() },
		},
		{
			Component:           ComponentChargingStation, Variable: "FirmwareVersion",
			DataType:            DataTypeString, Mutability: MutabilityReadOnly, Persistence: PersistenceVolatile,
			SupportedAttributes: []AttributeType{AttributeActual},
			Resolve:             func(s StationContext) string { return s.FirmwareVersion() },
		},
		{
			Component:           ComponentChargingStation, Variable: "Available",
			DataType:            DataTypeBoolean, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual}, SupportsMonitoring: true,
			DefaultValue:        strPtr("true"),
		},
		{
			Component:           ComponentChargingStation, Variable: "AvailabilityState",
			DataType:            DataTypeOptionList, Mutability: MutabilityReadOnly, Persistence: PersistenceVolatile,
			SupportedAttributes: []AttributeType{AttributeActual}, SupportsMonitoring: true,
			EnumValues:          []string{"Available", "Occupied", "Reserved", "Unavailable", "Faulted"},
		},

		// ---- SecurityCtrlr ----
		{
			Component:           ComponentSecurityCtrlr, Variable: "BasicAuthPassword",
			DataType:            DataTypeString, Mutability: MutabilityWriteOnly, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
		},
		{
			Component:           ComponentSecurityCtrlr, Variable: "SecurityProfile",
			DataType:            DataTypeInteger, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual}, SupportsMonitoring: true,
			DefaultValue:        strPtr("1"), Min: fPtr(0), Max: fPtr(3),
		},
		{
			Component:           ComponentSecurityCtrlr, Variable: "OrganizationName",
			DataType:            DataTypeString, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("OCPP Emulator"),
		},

		// ---- OCPPCommCtrlr ----
		{
			Component:           ComponentOCPPCommCtrlr, Variable: "HeartbeatInterval",
			DataType:            DataTypeInteger, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual, AttributeMinSet, AttributeMaxSet},
			SupportsMonitoring:  true,
			DefaultValue:        strPtr("60"), Min: fPtr(1), Max: fPtr(86400),
			Resolve:             func(s StationContext) string { return itoaInterval(s.HeartbeatInterval()) },
		},
		{
			Component:           ComponentOCPPCommCtrlr, Variable: "WebSocketPingInterval",
			DataType:            DataTypeInteger, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("30"), Min: fPtr(0), Max: fPtr(3600),
			Resolve:             func(s StationContext) string { return itoaInterval(s.WebSocketPingInterval()) },
		},
		{
			Component:           ComponentOCPPCommCtrlr, Variable: "RetryBackOffRepeatTimes",
			DataType:            DataTypeInteger, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("3"), Min: fPtr(0),
		},
		{
			Component:           ComponentOCPPCommCtrlr, Variable: "RetryBackOffWaitMinimum",
			DataType:            DataTypeInteger, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("10"), Min: fPtr(0),
		},
		{
			Component:           ComponentOCPPCommCtrlr, Variable: "NetworkConnectionProfiles",
			DataType:            DataTypeInteger, Mutability: MutabilityReadOnly, Persistence: PersistenceVolatile,
			SupportedAttributes: []AttributeType{AttributeActual},
			Resolve:             func(StationContext) string { return "1" },
		},
		{
			// Registry exception named in the Design Notes: the composite key
			// omits the component instance for this one variable.
			Component:           ComponentOCPPCommCtrlr, Variable: "MessageAttemptInterval",
			DataType:            DataTypeInteger, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("60"), Min: fPtr(1),
			FlattenInstance:     true,
		},

		// ---- AuthCtrlr ----
		{
			Component:           ComponentAuthCtrlr, Variable: "Enabled",
			DataType:            DataTypeBoolean, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual}, SupportsMonitoring: true,
			DefaultValue:        strPtr("true"),
		},
		{
			Component:           ComponentAuthCtrlr, Variable: "LocalAuthorizeOffline",
			DataType:            DataTypeBoolean, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("true"),
		},
		{
			Component:           ComponentAuthCtrlr, Variable: "LocalPreAuthorize",
			DataType:            DataTypeBoolean, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("false"),
		},
		{
			Component:           ComponentAuthCtrlr, Variable: "AuthorizeRemoteStart",
			DataType:            DataTypeBoolean, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("false"),
		},

		// ---- TxCtrlr ----
		{
			Component:           ComponentTxCtrlr, Variable: "EVConnectionTimeOut",
			DataType:            DataTypeInteger, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("30"), Min: fPtr(0),
		},
		{
			Component:           ComponentTxCtrlr, Variable: "StopTxOnEVSideDisconnect",
			DataType:            DataTypeBoolean, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("true"),
		},
		{
			Component:           ComponentTxCtrlr, Variable: "StopTxOnInvalidId",
			DataType:            DataTypeBoolean, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("true"),
		},
		{
			Component:           ComponentTxCtrlr, Variable: "TxStartPoint",
			DataType:            DataTypeOptionList, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("Authorized"),
			EnumValues:          []string{"Authorized", "EVConnected", "PowerPathClosed"},
		},
		{
			Component:           ComponentTxCtrlr, Variable: "TxStopPoint",
			DataType:            DataTypeOptionList, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("EVConnected"),
			EnumValues:          []string{"EVConnected", "Authorized", "PowerPathClosed", "EnergyTransfer"},
		},

		// ---- SampledDataCtrlr ----
		{
			Component:           ComponentSampledDataCtrlr, Variable: "Enabled",
			DataType:            DataTypeBoolean, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("true"),
		},
		{
			Component:           ComponentSampledDataCtrlr, Variable: "TxUpdatedInterval",
			DataType:            DataTypeInteger, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("60"), Min: fPtr(0),
		},
		{
			Component:           ComponentSampledDataCtrlr, Variable: "TxUpdatedMeasurands",
			DataType:            DataTypeMemberList, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("Energy.Active.Import.Register,Power.Active.Import"),
			EnumValues:          []string{"Energy.Active.Import.Register", "Power.Active.Import", "Current.Import", "Voltage", "SoC"},
		},
		{
			Component:           ComponentSampledDataCtrlr, Variable: "TxEndedMeasurands",
			DataType:            DataTypeMemberList, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("Energy.Active.Import.Register"),
			EnumValues:          []string{"Energy.Active.Import.Register", "Power.Active.Import", "SoC"},
		},

		// ---- ClockCtrlr ----
		{
			Component:           ComponentClockCtrlr, Variable: "TimeSource",
			DataType:            DataTypeSequenceList, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("Heartbeat"),
			EnumValues:          []string{"Heartbeat", "NTP", "GPS", "RealTimeClock", "MobileNetwork", "RadioTimeTransmitter"},
		},
		{
			Component:           ComponentClockCtrlr, Variable: "TimeOffset",
			DataType:            DataTypeString, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("+00:00"),
		},
		{
			Component:           ComponentClockCtrlr, Variable: "NtpServerUri",
			DataType:            DataTypeString, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr(""),
		},

		// ---- DeviceDataCtrlr ----
		{
			Component:           ComponentDeviceDataCtrlr, Variable: "BytesPerMessage",
			DataType:            DataTypeInteger, Mutability: MutabilityReadOnly, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("65535"),
		},
		{
			Component:           ComponentDeviceDataCtrlr, Variable: "ItemsPerMessage",
			DataType:            DataTypeInteger, Mutability: MutabilityReadOnly, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("100"),
		},
		{
			// size-control allowlist: materialization at boot is optional
			Component:           ComponentDeviceDataCtrlr, Variable: "ConfigurationValueSize",
			DataType:            DataTypeInteger, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			Min:                 fPtr(0),
		},
		{
			Component:           ComponentDeviceDataCtrlr, Variable: "ValueSize",
			DataType:            DataTypeInteger, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			Min:                 fPtr(0),
		},
		{
			Component:           ComponentDeviceDataCtrlr, Variable: "ReportingValueSize",
			DataType:            DataTypeInteger, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			Min:                 fPtr(0),
		},

		// ---- EVSE (per-instance; instance-agnostic template) ----
		{
			Component:           ComponentEVSE, Variable: "Available",
			DataType:            DataTypeBoolean, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual}, SupportsMonitoring: true,
			DefaultValue:        strPtr("true"),
		},
		{
			Component:           ComponentEVSE, Variable: "AvailabilityState",
			DataType:            DataTypeOptionList, Mutability: MutabilityReadOnly, Persistence: PersistenceVolatile,
			SupportedAttributes: []AttributeType{AttributeActual}, SupportsMonitoring: true,
			EnumValues:          []string{"Available", "Occupied", "Reserved", "Unavailable", "Faulted"},
		},
		{
			Component:           ComponentEVSE, Variable: "Power",
			DataType:            DataTypeDecimal, Mutability: MutabilityReadOnly, Persistence: PersistenceVolatile,
			SupportedAttributes: []AttributeType{AttributeActual, AttributeTarget, AttributeMaxSet},
			SupportsTarget:      true,
		},
		{
			Component:           ComponentEVSE, Variable: "SupplyPhases",
			DataType:            DataTypeInteger, Mutability: MutabilityReadOnly, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			DefaultValue:        strPtr("3"),
		},

		// ---- Connector (per-instance; instance-agnostic template) ----
		{
			Component:           ComponentConnector, Variable: "Available",
			DataType:            DataTypeBoolean, Mutability: MutabilityReadWrite, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual}, SupportsMonitoring: true,
			DefaultValue:        strPtr("true"),
		},
		{
			Component:           ComponentConnector, Variable: "AvailabilityState",
			DataType:            DataTypeOptionList, Mutability: MutabilityReadOnly, Persistence: PersistenceVolatile,
			SupportedAttributes: []AttributeType{AttributeActual}, SupportsMonitoring: true,
			EnumValues:          []string{"Available", "Occupied", "Reserved", "Unavailable", "Faulted"},
		},
		{
			Component:           ComponentConnector, Variable: "ConnectorType",
			DataType:            DataTypeOptionList, Mutability: MutabilityReadOnly, Persistence: PersistencePersistent,
			SupportedAttributes: []AttributeType{AttributeActual},
			EnumValues:          []string{
				"cCCS1", "cCCS2", "cG105", "cTesla", "cType1", "cType2",
				"s309-1P-16A", "s309-1P-32A", "s309-3P-16A", "s309-3P-32A",
				"sBS1361", "sCEE-7-7", "sType2", "sType3",
				"Other1PhMax16A", "Other1PhOver16A", "Other3Ph", "Pan",
				"wInductive", "wResonant", "Undetermined", "Unknown",
			},
		},
	}
}

func itoaInterval(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	return strconv.Itoa(seconds)
}
