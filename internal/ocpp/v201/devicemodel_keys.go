package v201

import "strings"

// OCPPValueAbsoluteMaxLength is the hard upper bound on any Variable
// attribute value, matching OCPP 2.0.1 Part 2's widest string type
// (CiString2500Type) used for Variable values. Deployments may lower it via
// SetAbsoluteMaxValueLength at boot; it is never a per-station setting since
// it reflects the wire format, not station configuration.
var OCPPValueAbsoluteMaxLength = 2500

// SetAbsoluteMaxValueLength overrides OCPPValueAbsoluteMaxLength. n <= 0 is
// ignored, leaving the current value in place.
func SetAbsoluteMaxValueLength(n int) {
	if n > 0 {
		OCPPValueAbsoluteMaxLength = n
	}
}

// buildCompositeKey builds the case-folded composite key used to index the
// ConfigurationKey Store and the override maps: component[.componentInstance]/variable.
func buildCompositeKey(component ComponentName, componentInstance, variable string) string {
	name := strings.ToLower(string(component))
	if componentInstance != "" {
		name = name + "." + strings.ToLower(componentInstance)
	}
	return name + "/" + strings.ToLower(variable)
}

// enforceReportingValueSize truncates value to at most limit Unicode code
// points. A non-positive limit is a no-op.
func enforceReportingValueSize(value string, limit int) string {
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
