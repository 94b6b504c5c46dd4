// Package metrics exposes the Prometheus counters the device model façade
// updates as it processes GetVariables/SetVariables/GetBaseReport batches.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// GetVariablesTotal counts individual GetVariable results by status.
	GetVariablesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ocpp_get_variables_total",
		Help: "Total GetVariable results processed, labeled by attribute status.",
	}, []string{"status"})

	// SetVariablesTotal counts individual SetVariable results by status.
	SetVariablesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ocpp_set_variables_total",
		Help: "Total SetVariable results processed, labeled by attribute status.",
	}, []string{"status"})

	// BaseReportsTotal counts GetBaseReport requests by reportBase and
	// outcome status.
	BaseReportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ocpp_base_reports_total",
		Help: "Total GetBaseReport requests, labeled by report base and status.",
	}, []string{"report_base", "status"})

	// NotifyReportPagesTotal counts NotifyReport pages sent.
	NotifyReportPagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ocpp_notify_report_pages_total",
		Help: "Total NotifyReport pages sent to the CSMS.",
	})

	// SelfCheckInvalidVariables tracks the current count of variables that
	// failed a station's last startup self-check.
	SelfCheckInvalidVariables = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ocpp_self_check_invalid_variables",
		Help: "Number of variables a station's last startup self-check flagged as invalid.",
	}, []string{"station_id"})
)

func init() {
	prometheus.MustRegister(
		GetVariablesTotal,
		SetVariablesTotal,
		BaseReportsTotal,
		NotifyReportPagesTotal,
		SelfCheckInvalidVariables,
	)
}
