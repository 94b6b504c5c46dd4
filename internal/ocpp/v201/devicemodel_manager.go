package v201

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/ruslanhut/ocpp-emu/internal/metrics"
)

// VariableManager owns the override maps and self-check set, and implements
// getVariable/setVariable attribute semantics for one station. Unlike the
// source this repository is grounded on, the manager is constructible — one
// instance per station — rather than a forced process singleton; a
// package-level DefaultManager below preserves the convenience of a shared
// instance for callers that don't need per-station isolation.
type VariableManager struct {
	stationID string
	station   StationContext
	store     ConfigurationKeyStore
	registry  *Registry
	logger    *slog.Logger

	invalidVariables map[string]bool
	runtimeOverrides map[string]string
	minSetOverrides  map[string]string
	maxSetOverrides  map[string]string
}

// NewVariableManager builds a manager for one station, backed by registry
// (DefaultRegistry in the common case) and store.
func NewVariableManager(stationID string, station StationContext, store ConfigurationKeyStore, registry *Registry, logger *slog.Logger) *VariableManager {
	if registry == nil {
		registry = DefaultRegistry
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VariableManager{
		stationID:        stationID,
		station:          station,
		store:            store,
		registry:         registry,
		logger:           logger,
		invalidVariables: make(map[string]bool),
		runtimeOverrides: make(map[string]string),
		minSetOverrides:  make(map[string]string),
		maxSetOverrides:  make(map[string]string),
	}
}

// ---- size control helpers ----

func (m *VariableManager) sizeControlValue(variable string) int {
	key := buildCompositeKey(ComponentDeviceDataCtrlr, "", variable)
	entry, ok := m.store.Get(m.stationID, key)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(entry.Value)
	if err != nil {
		return 0
	}
	return n
}

// effectiveWriteLimit is the write-size bound: the smaller of
// ConfigurationValueSize and ValueSize among positive values, hard-capped at
// OCPPValueAbsoluteMaxLength.
func (m *VariableManager) effectiveWriteLimit() int {
	limit := 0
	if cv := m.sizeControlValue("ConfigurationValueSize"); cv > 0 {
		limit = cv
	}
	if vs := m.sizeControlValue("ValueSize"); vs > 0 && (limit == 0 || vs < limit) {
		limit = vs
	}
	if limit <= 0 || limit > OCPPValueAbsoluteMaxLength {
		limit = OCPPValueAbsoluteMaxLength
	}
	return limit
}

// applyReadTruncation truncates a read value to ValueSize, then
// ReportingValueSize, then the absolute cap.
func (m *VariableManager) applyReadTruncation(value string) string {
	value = enforceReportingValueSize(value, m.sizeControlValue("ValueSize"))
	value = enforceReportingValueSize(value, m.sizeControlValue("ReportingValueSize"))
	value = enforceReportingValueSize(value, OCPPValueAbsoluteMaxLength)
	return value
}

// ---- GetVariable (B06) ----

// GetVariable resolves one GetVariableData item. Callers driving a top-level
// getVariables batch should call validatePersistentMappings once before the
// loop.
func (m *VariableManager) GetVariable(req GetVariableData) GetVariableResult {
	attrType := AttributeActual
	if req.AttributeType != nil {
		attrType = *req.AttributeType
	}

	component := ComponentName(req.Component.Name)
	if !m.registry.SupportsComponent(component) {
		return rejectGet(req, attrType, GetVariableStatusUnknownComponent, ReasonNotFound, "")
	}

	meta := m.registry.Lookup(component, req.Variable.Name, req.Variable.Instance)
	if meta == nil {
		return rejectGet(req, attrType, GetVariableStatusUnknownVariable, ReasonNotFound, "")
	}

	if attrType == AttributeActual && meta.Mutability == MutabilityWriteOnly {
		return rejectGet(req, attrType, GetVariableStatusRejected, ReasonWriteOnly, "")
	}

	if !meta.HasAttribute(attrType) {
		return rejectGet(req, attrType, GetVariableStatusNotSupportedAttributeType, ReasonUnsupportedParam, "")
	}

	key := compositeKeyFor(meta, req.Component.Instance)
	if m.invalidVariables[key] {
		return rejectGet(req, attrType, GetVariableStatusRejected, ReasonInternalError, "variable failed startup self-check")
	}

	if attrType == AttributeMinSet || attrType == AttributeMaxSet {
		value, ok := m.staticOrOverrideBound(meta, key, attrType)
		if !ok {
			return rejectGet(req, attrType, GetVariableStatusNotSupportedAttributeType, ReasonUnsupportedParam, "")
		}
		return GetVariableResult{
			AttributeType:   &attrType,
			AttributeStatus: GetVariableStatusAccepted,
			AttributeValue:  value,
			Component:       req.Component,
			Variable:        req.Variable,
		}
	}

	value := resolveValue(meta, m.stationID, m.station, m.store, m, req.Component.Instance, req.Variable.Instance)

	if value == "" {
		if attrType == AttributeTarget && meta.SupportsTarget {
			return GetVariableResult{
				AttributeType:   &attrType,
				AttributeStatus: GetVariableStatusAccepted,
				Component:       req.Component,
				Variable:        req.Variable,
			}
		}
		return rejectGet(req, attrType, GetVariableStatusRejected, ReasonInvalidValue, "")
	}

	value = m.applyReadTruncation(value)

	return GetVariableResult{
		AttributeType:   &attrType,
		AttributeStatus: GetVariableStatusAccepted,
		AttributeValue:  value,
		Component:       req.Component,
		Variable:        req.Variable,
	}
}

func rejectGet(req GetVariableData, attrType AttributeType, status GetVariableStatusType, reason ReasonCodeType, info string) GetVariableResult {
	var statusInfo *StatusInfo
	if reason != "" {
		statusInfo = &StatusInfo{ReasonCode: string(reason), AdditionalInfo: truncateInfo(info)}
	}
	return GetVariableResult{
		AttributeType:   &attrType,
		AttributeStatus: status,
		Component:       req.Component,
		Variable:        req.Variable,
		StatusInfo:      statusInfo,
	}
}

// staticOrOverrideBound returns the MinSet/MaxSet value for key: the active
// override if set, else the registry's static bound as a decimal string.
func (m *VariableManager) staticOrOverrideBound(meta *VariableMetadata, key string, kind AttributeType) (string, bool) {
	overrides := m.minSetOverrides
	staticBound := meta.Min
	if kind == AttributeMaxSet {
		overrides = m.maxSetOverrides
		staticBound = meta.Max
	}
	if v, ok := overrides[key]; ok {
		return v, true
	}
	if staticBound != nil {
		return strconv.FormatFloat(*staticBound, 'f', -1, 64), true
	}
	return "", false
}

// ---- SetVariable (B06) ----

// SetVariable applies one SetVariableData item.
func (m *VariableManager) SetVariable(req SetVariableData) SetVariableResult {
	attrType := AttributeActual
	if req.AttributeType != nil {
		attrType = *req.AttributeType
	}

	component := ComponentName(req.Component.Name)
	if !m.registry.SupportsComponent(component) {
		return rejectSet(req, attrType, SetVariableStatusUnknownComponent, ReasonNotFound, "")
	}

	meta := m.registry.Lookup(component, req.Variable.Name, req.Variable.Instance)
	if meta == nil {
		return rejectSet(req, attrType, SetVariableStatusUnknownVariable, ReasonNotFound, "")
	}

	if !meta.HasAttribute(attrType) {
		return rejectSet(req, attrType, SetVariableStatusNotSupportedAttributeType, ReasonUnsupportedParam, "")
	}

	key := compositeKeyFor(meta, req.Component.Instance)

	if m.invalidVariables[key] && attrType == AttributeActual && meta.Mutability != MutabilityWriteOnly {
		return rejectSet(req, attrType, SetVariableStatusRejected, ReasonInternalError, "variable failed startup self-check")
	}

	if attrType == AttributeMinSet || attrType == AttributeMaxSet {
		return m.setBound(req, meta, key, attrType)
	}

	if meta.Mutability == MutabilityReadOnly {
		return rejectSet(req, attrType, SetVariableStatusRejected, ReasonReadOnly, "")
	}

	limit := m.effectiveWriteLimit()
	if len([]rune(req.AttributeValue)) > limit {
		return rejectSet(req, attrType, SetVariableStatusRejected, ReasonTooLargeElement, "")
	}

	result := validate(meta, req.AttributeValue)
	if !result.OK {
		return rejectSet(req, attrType, SetVariableStatusRejected, result.ReasonCode, result.Info)
	}

	if meta.DataType == DataTypeInteger {
		n, _ := strconv.Atoi(req.AttributeValue)
		if minStr, ok := m.minSetOverrides[key]; ok {
			if minVal, err := strconv.ParseFloat(minStr, 64); err == nil && float64(n) < minVal {
				return rejectSet(req, attrType, SetVariableStatusRejected, ReasonValueTooLow, "")
			}
		}
		if maxStr, ok := m.maxSetOverrides[key]; ok {
			if maxVal, err := strconv.ParseFloat(maxStr, 64); err == nil && float64(n) > maxVal {
				return rejectSet(req, attrType, SetVariableStatusRejected, ReasonValueTooHigh, "")
			}
		}
	}

	previous, _ := m.store.Get(m.stationID, key)
	changed := previous == nil || previous.Value != req.AttributeValue

	if meta.Persistence == PersistencePersistent && meta.Mutability != MutabilityWriteOnly {
		if err := m.store.SetValue(m.stationID, key, req.AttributeValue); err != nil {
			m.logger.Error("failed to persist configuration key", "stationId", m.stationID, "key", key, "error", err)
			return rejectSet(req, attrType, SetVariableStatusRejected, ReasonInternalError, "")
		}
	} else if meta.Persistence == PersistenceVolatile && meta.Mutability != MutabilityReadOnly {
		m.runtimeOverrides[key] = req.AttributeValue
	}

	if meta.Mutability == MutabilityWriteOnly {
		delete(m.invalidVariables, key)
	}

	m.applySideEffects(meta, req.AttributeValue)

	rebootRequired := meta.RebootRequired
	if entry, ok := m.store.Get(m.stationID, key); ok && entry.Reboot {
		rebootRequired = true
	}
	if rebootRequired && changed {
		return SetVariableResult{
			AttributeType:   &attrType,
			AttributeStatus: SetVariableStatusRebootRequired,
			Component:       req.Component,
			Variable:        req.Variable,
		}
	}

	return SetVariableResult{
		AttributeType:   &attrType,
		AttributeStatus: SetVariableStatusAccepted,
		Component:       req.Component,
		Variable:        req.Variable,
	}
}

func (m *VariableManager) setBound(req SetVariableData, meta *VariableMetadata, key string, kind AttributeType) SetVariableResult {
	if meta.DataType != DataTypeInteger {
		return rejectSet(req, kind, SetVariableStatusRejected, ReasonUnsupportedParam, "")
	}

	result := validate(meta, req.AttributeValue)
	if !result.OK {
		return rejectSet(req, kind, SetVariableStatusRejected, result.ReasonCode, result.Info)
	}

	newVal, _ := strconv.ParseFloat(req.AttributeValue, 64)

	otherOverrides, myOverrides := m.maxSetOverrides, m.minSetOverrides
	if kind == AttributeMaxSet {
		otherOverrides, myOverrides = m.minSetOverrides, m.maxSetOverrides
	}

	otherVal, otherOK := m.currentBoundValue(meta, key, otherOverrides, oppositeStatic(meta, kind))
	if otherOK {
		if kind == AttributeMinSet && newVal > otherVal {
			return rejectSet(req, kind, SetVariableStatusRejected, ReasonInvalidValue, "MaxSet lower than MinSet")
		}
		if kind == AttributeMaxSet && newVal < otherVal {
			return rejectSet(req, kind, SetVariableStatusRejected, ReasonInvalidValue, "MaxSet lower than MinSet")
		}
	}

	myOverrides[key] = req.AttributeValue

	return SetVariableResult{
		AttributeType:   &kind,
		AttributeStatus: SetVariableStatusAccepted,
		Component:       req.Component,
		Variable:        req.Variable,
	}
}

func oppositeStatic(meta *VariableMetadata, kind AttributeType) *float64 {
	if kind == AttributeMinSet {
		return meta.Max
	}
	return meta.Min
}

func (m *VariableManager) currentBoundValue(meta *VariableMetadata, key string, overrides map[string]string, staticBound *float64) (float64, bool) {
	if v, ok := overrides[key]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	if staticBound != nil {
		return *staticBound, true
	}
	return 0, false
}

func (m *VariableManager) applySideEffects(meta *VariableMetadata, newValue string) {
	if meta.Component != ComponentOCPPCommCtrlr {
		return
	}
	n, err := strconv.Atoi(newValue)
	if err != nil {
		return
	}
	switch meta.Variable {
	case "HeartbeatInterval":
		if n > 0 {
			m.station.RestartHeartbeat()
		}
	case "WebSocketPingInterval":
		if n >= 0 {
			m.station.RestartWebSocketPing()
		}
	}
}

func rejectSet(req SetVariableData, attrType AttributeType, status SetVariableStatusType, reason ReasonCodeType, info string) SetVariableResult {
	var statusInfo *StatusInfo
	if reason != "" {
		statusInfo = &StatusInfo{ReasonCode: string(reason), AdditionalInfo: truncateInfo(info)}
	}
	return SetVariableResult{
		AttributeType:   &attrType,
		AttributeStatus: status,
		Component:       req.Component,
		Variable:        req.Variable,
		StatusInfo:      statusInfo,
	}
}

// ---- Startup self-check ----

var sizeControlAllowlist = map[string]bool{
	"configurationvaluesize": true,
	"valuesize":              true,
	"reportingvaluesize":     true,
}

// validatePersistentMappings is the startup self-check: every Persistent,
// non-WriteOnly registry entry must have a materialized ConfigurationKey, a
// default to seed one from, or a registry-sanctioned reason to stay absent.
// Idempotent: clears invalidVariables at entry.
func (m *VariableManager) validatePersistentMappings() {
	m.invalidVariables = make(map[string]bool)

	for _, meta := range m.registry.All() {
		if meta.Persistence != PersistencePersistent || meta.Mutability == MutabilityWriteOnly {
			continue
		}

		key := compositeKeyFor(meta, "")
		if _, ok := m.store.Get(m.stationID, key); ok {
			continue
		}

		if sizeControlAllowlist[strings.ToLower(meta.Variable)] {
			continue
		}
		if meta.Instance != "" || isPerUnitComponent(meta.Component) {
			continue // instance-scoped entries materialize lazily on first set
		}

		if meta.DefaultValue != nil {
			_ = m.store.Add(m.stationID, key, *meta.DefaultValue, ConfigurationKeyAddOptions{
				ReadOnly: meta.Mutability == MutabilityReadOnly,
				Visible:  true,
				Reboot:   meta.RebootRequired,
			}, false)
			m.logger.Info("materialized default configuration key", "stationId", m.stationID, "key", key)
			continue
		}

		m.invalidVariables[key] = true
		m.logger.Error("persistent variable has no default and no stored value", "stationId", m.stationID, "key", key)
	}

	metrics.SelfCheckInvalidVariables.WithLabelValues(m.stationID).Set(float64(len(m.invalidVariables)))
}

// ResetRuntimeOverrides clears the volatile override map. Used by tests and
// station reboots.
func (m *VariableManager) ResetRuntimeOverrides() {
	m.runtimeOverrides = make(map[string]string)
}

// DefaultManager is the package-level convenience wrapper kept for callers
// that want the historical single-manager behavior instead of one instance
// per station. Production code should prefer a manager obtained from
// internal/station.Station; DefaultManager is nil until InitDefaultManager
// is called.
var DefaultManager *VariableManager

// InitDefaultManager installs DefaultManager for a single-station process.
func InitDefaultManager(stationID string, station StationContext, store ConfigurationKeyStore) {
	DefaultManager = NewVariableManager(stationID, station, store, DefaultRegistry, nil)
}
