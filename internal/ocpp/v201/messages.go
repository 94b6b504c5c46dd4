package v201

// =========== BootNotification ===========

// BootNotificationRequest represents a BootNotification request (CS → CSMS)
type BootNotificationRequest struct {
	ChargingStation ChargingStation `json:"chargingStation"`
	Reason          BootReasonType  `json:"reason"`
}

// BootNotificationResponse represents a BootNotification response (CSMS → CS)
type BootNotificationResponse struct {
	CurrentTime DateTime               `json:"currentTime"`
	Interval    int                    `json:"interval"` // Heartbeat interval in seconds
	Status      RegistrationStatusType `json:"status"`
	StatusInfo  *StatusInfo            `json:"statusInfo,omitempty"`
}

// =========== Heartbeat ===========

// HeartbeatRequest represents a Heartbeat request (CS → CSMS)
type HeartbeatRequest struct {
	// Empty payload
}

// HeartbeatResponse represents a Heartbeat response (CSMS → CS)
type HeartbeatResponse struct {
	CurrentTime DateTime `json:"currentTime"`
}

// =========== GetVariables ===========

// GetVariablesRequest represents a GetVariables request (CSMS → CS)
type GetVariablesRequest struct {
	GetVariableData []GetVariableData `json:"getVariableData"`
}

// GetVariablesResponse represents a GetVariables response (CS → CSMS)
type GetVariablesResponse struct {
	GetVariableResult []GetVariableResult `json:"getVariableResult"`
}

// =========== SetVariables ===========

// SetVariablesRequest represents a SetVariables request (CSMS → CS)
type SetVariablesRequest struct {
	SetVariableData []SetVariableData `json:"setVariableData"`
}

// SetVariablesResponse represents a SetVariables response (CS → CSMS)
type SetVariablesResponse struct {
	SetVariableResult []SetVariableResult `json:"setVariableResult"`
}

// =========== GetBaseReport ===========

// GetBaseReportRequest represents a GetBaseReport request (CSMS → CS)
type GetBaseReportRequest struct {
	RequestId  int            `json:"requestId"`
	ReportBase ReportBaseType `json:"reportBase"`
}

// GetBaseReportResponse represents a GetBaseReport response (CS → CSMS)
type GetBaseReportResponse struct {
	Status     GenericDeviceModelStatusType `json:"status"`
	StatusInfo *StatusInfo                  `json:"statusInfo,omitempty"`
}

// =========== NotifyReport ===========

// NotifyReportRequest represents a NotifyReport request (CS → CSMS), sent one
// or more times in response to a GetBaseReport, paginated by the station's
// ItemsPerMessage limit.
type NotifyReportRequest struct {
	RequestId   int          `json:"requestId"`
	GeneratedAt DateTime     `json:"generatedAt"`
	SeqNo       int          `json:"seqNo"`
	Tbc         *bool        `json:"tbc,omitempty"` // To Be Continued
	ReportData  []ReportData `json:"reportData"`
}

// NotifyReportResponse represents a NotifyReport response (CSMS → CS)
type NotifyReportResponse struct {
	// Empty payload
}
