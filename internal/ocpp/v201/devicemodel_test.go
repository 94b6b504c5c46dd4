package v201

import (
	"log/slog"
	"os"
	"strings"
	"testing"
)

type fakeStationContext struct {
	model, vendor, serial, firmware   string
	heartbeat, wsPing                 int
	heartbeatRestarts, wsPingRestarts int
	evses                             map[int]EVSEInfo
}

func newFakeStation() *fakeStationContext {
	return &fakeStationContext{
		model:     "Sim-1", vendor: "Acme", serial: "SN1", firmware: "1.0",
		heartbeat: 60, wsPing: 30,
		evses:     map[int]EVSEInfo{},
	}
}

func (f *fakeStationContext) LogPrefix() string          { return "[test]" }
func (f *fakeStationContext) Model() string              { return f.model }
func (f *fakeStationContext) VendorName() string         { return f.vendor }
func (f *fakeStationContext) SerialNumber() string       { return f.serial }
func (f *fakeStationContext) FirmwareVersion() string    { return f.firmware }
func (f *fakeStationContext) HeartbeatInterval() int     { return f.heartbeat }
func (f *fakeStationContext) WebSocketPingInterval() int { return f.wsPing }
func (f *fakeStationContext) RestartHeartbeat()          { f.heartbeatRestarts++ }
func (f *fakeStationContext) RestartWebSocketPing()      { f.wsPingRestarts++ }
func (f *fakeStationContext) EVSEs() map[int]EVSEInfo    { return f.evses }

type fakeKeyStore struct {
	data map[string]map[string]*ConfigurationKeyEntry
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{data: make(map[string]map[string]*ConfigurationKeyEntry)}
}

func (s *fakeKeyStore) Get(stationID, keyName string) (*ConfigurationKeyEntry, bool) {
	station, ok := s.data[stationID]
	if !ok {
		return nil, false
	}
	e, ok := station[strings.ToLower(keyName)]
	if !ok {
		return nil, false
	}
	copied := *e
	return &copied, true
}

func (s *fakeKeyStore) Add(stationID, keyName, value string, opts ConfigurationKeyAddOptions, overwrite bool) error {
	station, ok := s.data[stationID]
	if !ok {
		station = make(map[string]*ConfigurationKeyEntry)
		s.data[stationID] = station
	}
	key := strings.ToLower(keyName)
	if _, exists := station[key]; exists && !overwrite {
		return nil
	}
	station[key] = &ConfigurationKeyEntry{Key: keyName, Value: value, ReadOnly: opts.ReadOnly, Visible: opts.Visible, Reboot: opts.Reboot}
	return nil
}

func (s *fakeKeyStore) SetValue(stationID, keyName, value string) error {
	station, ok := s.data[stationID]
	if !ok {
		station = make(map[string]*ConfigurationKeyEntry)
		s.data[stationID] = station
	}
	key := strings.ToLower(keyName)
	if e, exists := station[key]; exists {
		e.Value = value
		return nil
	}
	station[key] = &ConfigurationKeyEntry{Key: keyName, Value: value, Visible: true}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestManager() (*VariableManager, *fakeStationContext, *fakeKeyStore) {
	station := newFakeStation()
	store := newFakeKeyStore()
	mgr := NewVariableManager("station-1", station, store, DefaultRegistry, testLogger())
	return mgr, station, store
}

func attr(kind AttributeType) *AttributeType { return &kind }

// ---- Startup self-check ----

func TestSelfCheckMaterializesDefaults(t *testing.T) {
	mgr, _, store := newTestManager()
	mgr.validatePersistentMappings()

	entry, ok := store.Get("station-1", "ocppcommctrlr/heartbeatinterval")
	if !ok {
		t.Fatal("expected HeartbeatInterval to be materialized with its default")
	}
	if entry.Value != "60" {
		t.Errorf("expected default value 60, got %q", entry.Value)
	}
}

func TestSelfCheckAllowsSizeControlAbsence(t *testing.T) {
	mgr, _, _ := newTestManager()
	mgr.validatePersistentMappings()

	for _, v := range []string{"valuesize", "reportingvaluesize", "configurationvaluesize"} {
		key := "devicedatactrlr/" + v
		if mgr.invalidVariables[key] {
			t.Errorf("expected %s to be allowed absent, marked invalid", v)
		}
	}
}

func TestSelfCheckAllowsInstanceScopedAbsence(t *testing.T) {
	mgr, station, store := newTestManager()
	station.evses = map[int]EVSEInfo{0: {ID: 1, ConnectorID: 0}}
	mgr.validatePersistentMappings()

	if mgr.invalidVariables["evse.1/available"] {
		t.Error("instance-scoped persistent variable should defer materialization, not be marked invalid")
	}
	if mgr.invalidVariables["connector/connectortype"] {
		t.Error("per-unit persistent variable without a default should not be marked invalid")
	}
	if _, ok := store.Get("station-1", "evse/available"); ok {
		t.Error("per-unit defaults must not materialize an instance-less key at boot")
	}
}

func TestSelfCheckIdempotentClearsInvalid(t *testing.T) {
	mgr, _, _ := newTestManager()
	mgr.invalidVariables["stale/key"] = true
	mgr.validatePersistentMappings()

	if mgr.invalidVariables["stale/key"] {
		t.Error("expected self-check to clear stale invalid entries")
	}
}

// ---- GetVariable / SetVariable decision order ----

func TestGetVariableUnknownComponent(t *testing.T) {
	mgr, _, _ := newTestManager()
	res := mgr.GetVariable(GetVariableData{
		Component: Component{Name: "NoSuchComponent"},
		Variable:  Variable{Name: "Whatever"},
	})
	if res.AttributeStatus != GetVariableStatusUnknownComponent {
		t.Errorf("expected UnknownComponent, got %s", res.AttributeStatus)
	}
	if res.StatusInfo == nil || res.StatusInfo.ReasonCode != string(ReasonNotFound) {
		t.Errorf("expected reason NotFound, got %+v", res.StatusInfo)
	}
}

func TestGetVariableUnknownVariable(t *testing.T) {
	mgr, _, _ := newTestManager()
	res := mgr.GetVariable(GetVariableData{
		Component: Component{Name: string(ComponentAuthCtrlr)},
		Variable:  Variable{Name: "NoSuchVariable"},
	})
	if res.AttributeStatus != GetVariableStatusUnknownVariable {
		t.Errorf("expected UnknownVariable, got %s", res.AttributeStatus)
	}
}

func TestGetVariableWriteOnlyRejectsActual(t *testing.T) {
	mgr, _, _ := newTestManager()
	res := mgr.GetVariable(GetVariableData{
		Component: Component{Name: string(ComponentSecurityCtrlr)},
		Variable:  Variable{Name: "BasicAuthPassword"},
	})
	if res.AttributeStatus != GetVariableStatusRejected {
		t.Fatalf("expected Rejected, got %s", res.AttributeStatus)
	}
	if res.StatusInfo.ReasonCode != string(ReasonWriteOnly) {
		t.Errorf("expected reason WriteOnly, got %s", res.StatusInfo.ReasonCode)
	}
}

func TestGetVariableUnsupportedAttribute(t *testing.T) {
	mgr, _, _ := newTestManager()
	res := mgr.GetVariable(GetVariableData{
		AttributeType: attr(AttributeTarget),
		Component:     Component{Name: string(ComponentAuthCtrlr)},
		Variable:      Variable{Name: "Enabled"},
	})
	if res.AttributeStatus != GetVariableStatusNotSupportedAttributeType {
		t.Errorf("expected NotSupportedAttributeType, got %s", res.AttributeStatus)
	}
}

func TestGetVariableCaseInsensitiveRoundTrip(t *testing.T) {
	mgr, _, _ := newTestManager()
	mgr.validatePersistentMappings()

	lower := mgr.GetVariable(GetVariableData{
		Component: Component{Name: "authctrlr"},
		Variable:  Variable{Name: "authorizeRemoteStart"},
	})
	upper := mgr.GetVariable(GetVariableData{
		Component: Component{Name: "AuthCtrlr"},
		Variable:  Variable{Name: "AuthorizeRemoteStart"},
	})
	if lower.AttributeStatus != upper.AttributeStatus || lower.AttributeValue != upper.AttributeValue {
		t.Errorf("expected case-insensitive lookups to agree, got %+v vs %+v", lower, upper)
	}
	if lower.AttributeStatus != GetVariableStatusAccepted {
		t.Errorf("expected Accepted, got %s", lower.AttributeStatus)
	}
}

func TestGetVariableEmptyTargetAccepted(t *testing.T) {
	mgr, _, _ := newTestManager()
	res := mgr.GetVariable(GetVariableData{
		AttributeType: attr(AttributeTarget),
		Component:     Component{Name: string(ComponentEVSE), Instance: "1"},
		Variable:      Variable{Name: "Power"},
	})
	if res.AttributeStatus != GetVariableStatusAccepted {
		t.Fatalf("expected Accepted for an unset Target on a target-capable variable, got %s", res.AttributeStatus)
	}
	if res.AttributeValue != "" {
		t.Errorf("expected empty Target value, got %q", res.AttributeValue)
	}
}

func TestSetVariableReadOnlyRejectsActual(t *testing.T) {
	mgr, _, _ := newTestManager()
	res := mgr.SetVariable(SetVariableData{
		AttributeValue: "3",
		Component:      Component{Name: string(ComponentEVSE)},
		Variable:       Variable{Name: "SupplyPhases"},
	})
	if res.AttributeStatus != SetVariableStatusRejected {
		t.Fatalf("expected Rejected, got %s", res.AttributeStatus)
	}
	if res.StatusInfo.ReasonCode != string(ReasonReadOnly) {
		t.Errorf("expected reason ReadOnly, got %s", res.StatusInfo.ReasonCode)
	}
}

func TestSetVariableBooleanRejectsInvalidValue(t *testing.T) {
	mgr, _, _ := newTestManager()
	res := mgr.SetVariable(SetVariableData{
		AttributeValue: "maybe",
		Component:      Component{Name: string(ComponentAuthCtrlr)},
		Variable:       Variable{Name: "AuthorizeRemoteStart"},
	})
	if res.AttributeStatus != SetVariableStatusRejected {
		t.Fatalf("expected Rejected, got %s", res.AttributeStatus)
	}
	if res.StatusInfo.ReasonCode != string(ReasonInvalidValue) {
		t.Errorf("expected reason InvalidValue, got %s", res.StatusInfo.ReasonCode)
	}
	want := `AuthorizeRemoteStart must be "true" or "false"`
	if res.StatusInfo.AdditionalInfo != want {
		t.Errorf("expected info %q, got %q", want, res.StatusInfo.AdditionalInfo)
	}
}

func TestSetVariableIdempotence(t *testing.T) {
	mgr, _, _ := newTestManager()
	req := SetVariableData{
		AttributeValue: "true",
		Component:      Component{Name: string(ComponentAuthCtrlr)},
		Variable:       Variable{Name: "Enabled"},
	}
	first := mgr.SetVariable(req)
	second := mgr.SetVariable(req)

	if first.AttributeStatus != SetVariableStatusAccepted || second.AttributeStatus != SetVariableStatusAccepted {
		t.Fatalf("expected both sets to be Accepted, got %s then %s", first.AttributeStatus, second.AttributeStatus)
	}
}

func TestSetVariableWriteOnlyClearsInvalidFlag(t *testing.T) {
	mgr, _, _ := newTestManager()
	key := "securityctrlr/basicauthpassword"
	mgr.invalidVariables[key] = true

	res := mgr.SetVariable(SetVariableData{
		AttributeValue: "s3cret!",
		Component:      Component{Name: string(ComponentSecurityCtrlr)},
		Variable:       Variable{Name: "BasicAuthPassword"},
	})
	if res.AttributeStatus != SetVariableStatusAccepted {
		t.Fatalf("expected Accepted, got %s (%+v)", res.AttributeStatus, res.StatusInfo)
	}
	if mgr.invalidVariables[key] {
		t.Error("expected successful WriteOnly set to clear the invalid flag")
	}
}

func TestSetVariableInvalidActualRejected(t *testing.T) {
	mgr, _, _ := newTestManager()
	key := "authctrlr/enabled"
	mgr.invalidVariables[key] = true

	res := mgr.SetVariable(SetVariableData{
		AttributeValue: "true",
		Component:      Component{Name: string(ComponentAuthCtrlr)},
		Variable:       Variable{Name: "Enabled"},
	})
	if res.AttributeStatus != SetVariableStatusRejected {
		t.Fatalf("expected Rejected, got %s", res.AttributeStatus)
	}
	if res.StatusInfo.ReasonCode != string(ReasonInternalError) {
		t.Errorf("expected reason InternalError, got %s", res.StatusInfo.ReasonCode)
	}
}

// ---- MinSet/MaxSet bounds ----

func TestMinSetMaxSetOrderingRejected(t *testing.T) {
	mgr, _, _ := newTestManager()

	minRes := mgr.SetVariable(SetVariableData{
		AttributeType:  attr(AttributeMinSet),
		AttributeValue: "30",
		Component:      Component{Name: string(ComponentOCPPCommCtrlr)},
		Variable:       Variable{Name: "HeartbeatInterval"},
	})
	if minRes.AttributeStatus != SetVariableStatusAccepted {
		t.Fatalf("expected MinSet=30 to be accepted, got %s (%+v)", minRes.AttributeStatus, minRes.StatusInfo)
	}

	maxRes := mgr.SetVariable(SetVariableData{
		AttributeType:  attr(AttributeMaxSet),
		AttributeValue: "20",
		Component:      Component{Name: string(ComponentOCPPCommCtrlr)},
		Variable:       Variable{Name: "HeartbeatInterval"},
	})
	if maxRes.AttributeStatus != SetVariableStatusRejected {
		t.Fatalf("expected MaxSet=20 (below MinSet=30) to be rejected, got %s", maxRes.AttributeStatus)
	}
	if maxRes.StatusInfo.ReasonCode != string(ReasonInvalidValue) {
		t.Errorf("expected reason InvalidValue, got %s", maxRes.StatusInfo.ReasonCode)
	}
	if maxRes.StatusInfo.AdditionalInfo != "MaxSet lower than MinSet" {
		t.Errorf("expected info %q, got %q", "MaxSet lower than MinSet", maxRes.StatusInfo.AdditionalInfo)
	}
}

func TestMinSetMaxSetOnlyOnIntegerDataType(t *testing.T) {
	mgr, _, _ := newTestManager()
	// EVSE/Power is decimal and declares MaxSet, so the request passes the
	// attribute check and reaches the integer-only rule for bounds.
	res := mgr.SetVariable(SetVariableData{
		AttributeType:  attr(AttributeMaxSet),
		AttributeValue: "1",
		Component:      Component{Name: string(ComponentEVSE)},
		Variable:       Variable{Name: "Power"},
	})
	if res.AttributeStatus != SetVariableStatusRejected {
		t.Fatalf("expected Rejected, got %s", res.AttributeStatus)
	}
	if res.StatusInfo.ReasonCode != string(ReasonUnsupportedParam) {
		t.Errorf("expected reason UnsupportedParam, got %s", res.StatusInfo.ReasonCode)
	}
}

func TestMinSetMaxSetStaticBoundsEnforced(t *testing.T) {
	mgr, _, _ := newTestManager()
	res := mgr.SetVariable(SetVariableData{
		AttributeType:  attr(AttributeMinSet),
		AttributeValue: "999999",
		Component:      Component{Name: string(ComponentOCPPCommCtrlr)},
		Variable:       Variable{Name: "HeartbeatInterval"},
	})
	if res.AttributeStatus != SetVariableStatusRejected {
		t.Fatalf("expected Rejected for MinSet above static Max, got %s", res.AttributeStatus)
	}
}

func TestActiveMinSetBoundEnforcedOnActualWrite(t *testing.T) {
	mgr, _, _ := newTestManager()

	minRes := mgr.SetVariable(SetVariableData{
		AttributeType:  attr(AttributeMinSet),
		AttributeValue: "100",
		Component:      Component{Name: string(ComponentOCPPCommCtrlr)},
		Variable:       Variable{Name: "HeartbeatInterval"},
	})
	if minRes.AttributeStatus != SetVariableStatusAccepted {
		t.Fatalf("expected MinSet set to be accepted, got %s", minRes.AttributeStatus)
	}

	res := mgr.SetVariable(SetVariableData{
		AttributeValue: "50",
		Component:      Component{Name: string(ComponentOCPPCommCtrlr)},
		Variable:       Variable{Name: "HeartbeatInterval"},
	})
	if res.AttributeStatus != SetVariableStatusRejected {
		t.Fatalf("expected Actual write below active MinSet to be rejected, got %s", res.AttributeStatus)
	}
	if res.StatusInfo.ReasonCode != string(ReasonValueTooLow) {
		t.Errorf("expected reason ValueTooLow, got %s", res.StatusInfo.ReasonCode)
	}
}

// ---- Size limits and truncation ----

func TestReadTruncationAppliesReportingValueSize(t *testing.T) {
	mgr, _, _ := newTestManager()

	setRes := mgr.SetVariable(SetVariableData{
		AttributeValue: "10",
		Component:      Component{Name: string(ComponentDeviceDataCtrlr)},
		Variable:       Variable{Name: "ReportingValueSize"},
	})
	if setRes.AttributeStatus != SetVariableStatusAccepted {
		t.Fatalf("expected ReportingValueSize set to be accepted, got %s (%+v)", setRes.AttributeStatus, setRes.StatusInfo)
	}

	fullValue := "Heartbeat,NTP,GPS,RealTimeClock,MobileNetwork,RadioTimeTransmitter"
	timeSourceRes := mgr.SetVariable(SetVariableData{
		AttributeValue: fullValue,
		Component:      Component{Name: string(ComponentClockCtrlr)},
		Variable:       Variable{Name: "TimeSource"},
	})
	if timeSourceRes.AttributeStatus != SetVariableStatusAccepted {
		t.Fatalf("expected TimeSource set to be accepted, got %s (%+v)", timeSourceRes.AttributeStatus, timeSourceRes.StatusInfo)
	}

	getRes := mgr.GetVariable(GetVariableData{
		Component: Component{Name: string(ComponentClockCtrlr)},
		Variable:  Variable{Name: "TimeSource"},
	})
	if getRes.AttributeStatus != GetVariableStatusAccepted {
		t.Fatalf("expected Accepted, got %s", getRes.AttributeStatus)
	}
	if len(getRes.AttributeValue) != 10 {
		t.Fatalf("expected truncated value of length 10, got %q (len %d)", getRes.AttributeValue, len(getRes.AttributeValue))
	}
	if fullValue[:10] != getRes.AttributeValue {
		t.Errorf("expected truncated value to be a prefix of the stored value, got %q", getRes.AttributeValue)
	}
}

func TestSetVariableRejectsOversizeValue(t *testing.T) {
	mgr, _, _ := newTestManager()
	_ = mgr.SetVariable(SetVariableData{
		AttributeValue: "5",
		Component:      Component{Name: string(ComponentDeviceDataCtrlr)},
		Variable:       Variable{Name: "ValueSize"},
	})

	res := mgr.SetVariable(SetVariableData{
		AttributeValue: "123456",
		Component:      Component{Name: string(ComponentSecurityCtrlr)},
		Variable:       Variable{Name: "OrganizationName"},
	})
	if res.AttributeStatus != SetVariableStatusRejected {
		t.Fatalf("expected Rejected, got %s", res.AttributeStatus)
	}
	if res.StatusInfo.ReasonCode != string(ReasonTooLargeElement) {
		t.Errorf("expected reason TooLargeElement, got %s", res.StatusInfo.ReasonCode)
	}
}

// ---- Side effects ----

func TestSetHeartbeatIntervalRestartsHeartbeat(t *testing.T) {
	mgr, station, _ := newTestManager()
	res := mgr.SetVariable(SetVariableData{
		AttributeValue: "120",
		Component:      Component{Name: string(ComponentOCPPCommCtrlr)},
		Variable:       Variable{Name: "HeartbeatInterval"},
	})
	if res.AttributeStatus != SetVariableStatusAccepted && res.AttributeStatus != SetVariableStatusRebootRequired {
		t.Fatalf("expected Accepted or RebootRequired, got %s (%+v)", res.AttributeStatus, res.StatusInfo)
	}
	if station.heartbeatRestarts != 1 {
		t.Errorf("expected RestartHeartbeat to be called once, got %d", station.heartbeatRestarts)
	}
}

// ---- Base report builder (B07/B08) ----

func TestBuildBaseReportConfigurationInventory(t *testing.T) {
	mgr, _, _ := newTestManager()
	mgr.validatePersistentMappings()

	rows := BuildBaseReport(mgr, ReportBaseConfigurationInventory)
	status := GenericDeviceModelStatusFor(rows)
	if status != GenericDeviceModelStatusAccepted {
		t.Fatalf("expected Accepted, got %s", status)
	}

	found := false
	for _, row := range rows {
		if row.Component.Name == string(ComponentOCPPCommCtrlr) && row.Variable.Name == "HeartbeatInterval" {
			found = true
		}
	}
	if !found {
		t.Error("expected ConfigurationInventory to contain OCPPCommCtrlr/HeartbeatInterval")
	}
}

func TestBuildBaseReportUnknownReportBase(t *testing.T) {
	mgr, _, _ := newTestManager()
	mgr.validatePersistentMappings()

	if IsKnownReportBase("UnsupportedReportBase") {
		t.Fatal("expected UnsupportedReportBase to be unknown")
	}
	rows := BuildBaseReport(mgr, "UnsupportedReportBase")
	if rows != nil {
		t.Errorf("expected no rows for an unknown reportBase, got %d", len(rows))
	}
}

func TestBuildBaseReportEmptyResultSet(t *testing.T) {
	station := newFakeStation()
	store := newFakeKeyStore()
	emptyRegistry := newRegistry(nil)
	mgr := NewVariableManager("empty-station", station, store, emptyRegistry, testLogger())
	mgr.validatePersistentMappings()

	rows := BuildBaseReport(mgr, ReportBaseConfigurationInventory)
	status := GenericDeviceModelStatusFor(rows)
	if status != GenericDeviceModelStatusEmptyResultSet {
		t.Fatalf("expected EmptyResultSet for an empty registry/store, got %s", status)
	}
}

func TestBuildBaseReportSummaryInventoryIncludesAvailabilityState(t *testing.T) {
	mgr, _, _ := newTestManager()
	mgr.validatePersistentMappings()

	rows := BuildBaseReport(mgr, ReportBaseSummaryInventory)
	var found *ReportData
	for i := range rows {
		if rows[i].Component.Name == string(ComponentChargingStation) && rows[i].Variable.Name == "AvailabilityState" {
			found = &rows[i]
		}
	}
	if found == nil {
		t.Fatal("expected SummaryInventory to include ChargingStation/AvailabilityState")
	}
	if !found.VariableCharacteristics.SupportsMonitor {
		t.Error("expected AvailabilityState to support monitoring")
	}
	if len(found.VariableAttribute) != 1 || found.VariableAttribute[0].Type != AttributeActual {
		t.Errorf("expected exactly one Actual attribute, got %+v", found.VariableAttribute)
	}
}

func TestBuildBaseReportFullInventoryIncludesEVSETopology(t *testing.T) {
	mgr, station, _ := newTestManager()
	station.evses = map[int]EVSEInfo{
		0: {ID: 1, ConnectorID: 0},
		1: {ID: 1, ConnectorID: 1},
	}
	mgr.validatePersistentMappings()

	rows := BuildBaseReport(mgr, ReportBaseFullInventory)
	evseFound, connectorFound := false, false
	for _, row := range rows {
		if row.Component.Name == string(ComponentEVSE) && row.Component.Instance == "1" {
			evseFound = true
		}
		if row.Component.Name == string(ComponentConnector) && row.Component.Instance == "1" {
			connectorFound = true
		}
	}
	if !evseFound {
		t.Error("expected FullInventory to include an EVSE instance row")
	}
	if !connectorFound {
		t.Error("expected FullInventory to include a Connector instance row")
	}
}

// ---- Service façade ----

func TestServiceHandleGetBaseReportUnsupported(t *testing.T) {
	mgr, _, _ := newTestManager()
	svc := NewService("station-1", mgr, testLogger())

	resp, err := svc.HandleGetBaseReport("station-1", &GetBaseReportRequest{RequestId: 4, ReportBase: "UnsupportedReportBase"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != GenericDeviceModelStatusNotSupported {
		t.Errorf("expected NotSupported, got %s", resp.Status)
	}
}

func TestServiceHandleGetBaseReportAccepted(t *testing.T) {
	mgr, _, _ := newTestManager()
	svc := NewService("station-1", mgr, testLogger())

	resp, err := svc.HandleGetBaseReport("station-1", &GetBaseReportRequest{RequestId: 1, ReportBase: ReportBaseConfigurationInventory})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != GenericDeviceModelStatusAccepted {
		t.Errorf("expected Accepted, got %s", resp.Status)
	}
}

func TestServiceTooManyElementsRejectsEveryItem(t *testing.T) {
	mgr, _, store := newTestManager()
	mgr.validatePersistentMappings()
	// ItemsPerMessage is ReadOnly in the registry; the station sets it
	// directly in the ConfigurationKey Store, not through SetVariable.
	_ = store.SetValue("station-1", "devicedatactrlr/itemspermessage", "1")
	svc := NewService("station-1", mgr, testLogger())

	req := &GetVariablesRequest{GetVariableData: []GetVariableData{
		{Component: Component{Name: string(ComponentAuthCtrlr)}, Variable: Variable{Name: "Enabled"}},
		{Component: Component{Name: string(ComponentAuthCtrlr)}, Variable: Variable{Name: "LocalPreAuthorize"}},
	}}
	resp, err := svc.HandleGetVariables("station-1", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, result := range resp.GetVariableResult {
		if result.AttributeStatus != GetVariableStatusRejected {
			t.Errorf("expected every item rejected once ItemsPerMessage is exceeded, got %s", result.AttributeStatus)
		}
	}
}

func TestServiceGetVariablesBatchPreservesOrder(t *testing.T) {
	mgr, _, _ := newTestManager()
	svc := NewService("station-1", mgr, testLogger())

	req := &GetVariablesRequest{GetVariableData: []GetVariableData{
		{Component: Component{Name: "NoSuchComponent"}, Variable: Variable{Name: "X"}},
		{Component: Component{Name: string(ComponentAuthCtrlr)}, Variable: Variable{Name: "Enabled"}},
	}}
	resp, err := svc.HandleGetVariables("station-1", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.GetVariableResult) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.GetVariableResult))
	}
	if resp.GetVariableResult[0].AttributeStatus != GetVariableStatusUnknownComponent {
		t.Errorf("expected first result UnknownComponent, got %s", resp.GetVariableResult[0].AttributeStatus)
	}
	if resp.GetVariableResult[1].AttributeStatus != GetVariableStatusAccepted {
		t.Errorf("expected second result Accepted, got %s", resp.GetVariableResult[1].AttributeStatus)
	}
}

// ---- Key and size utilities ----

func TestBuildCompositeKeyLowerCases(t *testing.T) {
	got := buildCompositeKey(ComponentEVSE, "1", "Available")
	want := "evse.1/available"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestEnforceReportingValueSizeNoopOnNonPositiveLimit(t *testing.T) {
	if got := enforceReportingValueSize("hello", 0); got != "hello" {
		t.Errorf("expected no-op, got %q", got)
	}
	if got := enforceReportingValueSize("hello", -1); got != "hello" {
		t.Errorf("expected no-op, got %q", got)
	}
}

func TestEnforceReportingValueSizeTruncatesByRuneCount(t *testing.T) {
	got := enforceReportingValueSize("héllo world", 5)
	if len([]rune(got)) != 5 {
		t.Errorf("expected truncation to 5 runes, got %q", got)
	}
}

// ---- Validators ----

func TestValidateIntegerRejectsDecimalForm(t *testing.T) {
	meta := &VariableMetadata{Variable: "HeartbeatInterval", DataType: DataTypeInteger}
	res := validate(meta, "1.5")
	if res.OK {
		t.Fatal("expected decimal-form integer to be rejected")
	}
	if res.ReasonCode != ReasonInvalidValue {
		t.Errorf("expected reason InvalidValue, got %s", res.ReasonCode)
	}
}

func TestValidateSequenceListRejectsDuplicates(t *testing.T) {
	meta := &VariableMetadata{Variable: "TimeSource", DataType: DataTypeSequenceList, EnumValues: []string{"Heartbeat", "NTP"}}
	res := validate(meta, "Heartbeat,Heartbeat")
	if res.OK {
		t.Fatal("expected duplicate tokens to be rejected")
	}
}

func TestValidateSequenceListRejectsUnknownToken(t *testing.T) {
	meta := &VariableMetadata{Variable: "TimeSource", DataType: DataTypeSequenceList, EnumValues: []string{"Heartbeat", "NTP"}}
	res := validate(meta, "Heartbeat,GPS")
	if res.OK {
		t.Fatal("expected unsupported token to be rejected")
	}
}

func TestValidateMemberListOrderIrrelevant(t *testing.T) {
	meta := &VariableMetadata{Variable: "TxUpdatedMeasurands", DataType: DataTypeMemberList, EnumValues: []string{"A", "B"}}
	if res := validate(meta, "A,B"); !res.OK {
		t.Errorf("expected A,B to be accepted: %+v", res)
	}
	if res := validate(meta, "B,A"); !res.OK {
		t.Errorf("expected B,A to be accepted regardless of order: %+v", res)
	}
}

func TestValidateDateTimeRequiresISO8601(t *testing.T) {
	meta := &VariableMetadata{Variable: "Whenever", DataType: DataTypeDateTime}
	if res := validate(meta, "not-a-date"); res.OK {
		t.Error("expected an invalid date-time to be rejected")
	}
	if res := validate(meta, "2026-07-31T12:00:00Z"); !res.OK {
		t.Errorf("expected a valid RFC3339 timestamp to be accepted: %+v", res)
	}
}

func TestTruncateInfoCapsAt50Characters(t *testing.T) {
	long := "this message is intentionally much longer than fifty characters to exercise the cap"
	got := truncateInfo(long)
	if len([]rune(got)) != 50 {
		t.Errorf("expected 50-rune cap, got %d runes", len([]rune(got)))
	}
}

// ---- Registry ----

func TestRegistryInstanceAgnosticFallback(t *testing.T) {
	meta := DefaultRegistry.Lookup(ComponentEVSE, "Available", "1")
	if meta == nil {
		t.Fatal("expected EVSE/Available to resolve via the instance-agnostic fallback")
	}
}

func TestRegistryUnknownPairReturnsNil(t *testing.T) {
	if DefaultRegistry.Lookup(ComponentAuthCtrlr, "DoesNotExist", "") != nil {
		t.Error("expected nil for an unregistered variable")
	}
}

// ---- ResetRuntimeOverrides ----

func TestResetRuntimeOverridesClearsVolatileState(t *testing.T) {
	mgr, _, _ := newTestManager()
	mgr.runtimeOverrides["some/key"] = "value"
	mgr.ResetRuntimeOverrides()
	if len(mgr.runtimeOverrides) != 0 {
		t.Error("expected runtime overrides to be cleared")
	}
}
