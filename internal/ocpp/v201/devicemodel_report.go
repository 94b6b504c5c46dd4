package v201

import "strconv"

// IsKnownReportBase reports whether reportBase is one of the three shapes
// this builder knows how to assemble. An unknown reportBase must surface as
// GenericDeviceModelStatusNotSupported rather than an empty inventory.
func IsKnownReportBase(reportBase ReportBaseType) bool {
	switch reportBase {
	case ReportBaseConfigurationInventory, ReportBaseFullInventory, ReportBaseSummaryInventory:
		return true
	default:
		return false
	}
}

// BuildBaseReport renders the registry/manager state into the ReportData rows
// GetBaseReport/NotifyReport transmit, shaped by reportBase (B08). Callers
// must check IsKnownReportBase first; an unsupported reportBase here simply
// yields no rows.
func BuildBaseReport(mgr *VariableManager, reportBase ReportBaseType) []ReportData {
	if !IsKnownReportBase(reportBase) {
		return nil
	}

	instances := collectComponentInstances(mgr)

	var rows []ReportData
	for _, meta := range mgr.registry.All() {
		if meta.Persistence != PersistencePersistent && reportBase == ReportBaseConfigurationInventory {
			continue
		}
		if reportBase == ReportBaseSummaryInventory && meta.Mutability != MutabilityReadOnly {
			continue
		}

		for _, instance := range instancesFor(meta, instances) {
			if reportBase == ReportBaseConfigurationInventory && !mgr.hasVisibleConfigurationKey(meta, instance) {
				continue
			}
			rows = append(rows, buildReportRow(mgr, meta, instance, reportBase))
		}
	}
	return rows
}

// hasVisibleConfigurationKey reports whether meta (rendered for
// componentInstance) has a materialized, visible ConfigurationKey entry.
// ConfigurationInventory reports every *visible Persistent configuration
// key*, not every persistent registry entry — a persistent variable whose
// key was never materialized (e.g. before the startup self-check has run,
// or an instance-scoped variable nothing has set yet) contributes no row.
func (m *VariableManager) hasVisibleConfigurationKey(meta *VariableMetadata, componentInstance string) bool {
	key := compositeKeyFor(meta, componentInstance)
	entry, ok := m.store.Get(m.stationID, key)
	return ok && entry.Visible
}

// isPerUnitComponent reports whether component is rendered once per physical
// unit rather than once per station. Per-unit configuration keys materialize
// lazily when an instance is first written, never at boot.
func isPerUnitComponent(component ComponentName) bool {
	return component == ComponentEVSE || component == ComponentConnector
}

// instancesFor returns the component instances a given metadata entry should
// be rendered for: the single empty instance for station-scoped components,
// or one row per known EVSE/Connector instance for EVSE/Connector metadata.
func instancesFor(meta *VariableMetadata, instances componentInstances) []string {
	switch meta.Component {
	case ComponentEVSE:
		return instances.evse
	case ComponentConnector:
		return instances.connector
	default:
		return []string{""}
	}
}

type componentInstances struct {
	evse      []string
	connector []string
}

func collectComponentInstances(mgr *VariableManager) componentInstances {
	var out componentInstances
	for _, info := range mgr.station.EVSEs() {
		if info.ConnectorID == 0 {
			out.evse = append(out.evse, strconv.Itoa(info.ID))
		} else {
			out.connector = append(out.connector, strconv.Itoa(info.ConnectorID))
		}
	}
	return out
}

func buildReportRow(mgr *VariableManager, meta *VariableMetadata, componentInstance string, reportBase ReportBaseType) ReportData {
	component := Component{Name: string(meta.Component)}
	if componentInstance != "" {
		component.Instance = componentInstance
	}
	variable := Variable{Name: meta.Variable, Instance: meta.Instance}

	row := ReportData{
		Component:               component,
		Variable:                variable,
		VariableCharacteristics: VariableCharacteristics{
			DataType:        meta.DataType,
			SupportsMonitor: meta.SupportsMonitoring,
			MinLimit:        meta.Min,
			MaxLimit:        meta.Max,
		},
	}
	if len(meta.EnumValues) > 0 {
		row.VariableCharacteristics.ValuesList = joinComma(meta.EnumValues)
	}

	if reportBase == ReportBaseSummaryInventory {
		row.VariableAttribute = []VariableAttribute{summaryAttribute(meta)}
		return row
	}

	for _, attrType := range meta.SupportedAttributes {
		if attrType != AttributeActual && !extendedAttributeDataTypes[meta.DataType] {
			continue
		}
		attr := VariableAttribute{
			Type:       attrType,
			Mutability: meta.Mutability,
			Persistent: meta.Persistence == PersistencePersistent,
		}
		if attrType == AttributeActual && meta.Mutability != MutabilityWriteOnly {
			attr.Value = mgr.applyReadTruncation(resolveValue(meta, mgr.stationID, mgr.station, mgr.store, mgr, componentInstance, meta.Instance))
		} else if attrType == AttributeMinSet || attrType == AttributeMaxSet {
			key := compositeKeyFor(meta, componentInstance)
			if v, ok := mgr.staticOrOverrideBound(meta, key, attrType); ok {
				attr.Value = v
			}
		}
		row.VariableAttribute = append(row.VariableAttribute, attr)
	}

	return row
}

// extendedAttributeDataTypes lists the data types whose Target/MinSet/MaxSet
// attributes are reported in an inventory; every other type, boolean
// included, reports Actual only. The size-control variables are integers but
// declare only Actual, so they too report Actual only.
var extendedAttributeDataTypes = map[DataType]bool{
	DataTypeInteger: true,
	DataTypeDecimal: true,
}

func summaryAttribute(meta *VariableMetadata) VariableAttribute {
	return VariableAttribute{
		Type:       AttributeActual,
		Mutability: meta.Mutability,
		Persistent: meta.Persistence == PersistencePersistent,
	}
}

func joinComma(values []string) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += ","
		}
		out += v
	}
	return out
}

// GenericDeviceModelStatusFor maps the rows built for a known reportBase to
// the façade-level status GetBaseReport answers with: EmptyResultSet for no
// rows, Accepted otherwise. An unknown reportBase is answered NotSupported by
// HandleGetBaseReport before this is reached.
func GenericDeviceModelStatusFor(rows []ReportData) GenericDeviceModelStatusType {
	if len(rows) == 0 {
		return GenericDeviceModelStatusEmptyResultSet
	}
	return GenericDeviceModelStatusAccepted
}
