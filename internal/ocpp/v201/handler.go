package v201

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ruslanhut/ocpp-emu/internal/ocpp"
)

// Handler handles OCPP 2.0.1 protocol messages
type Handler struct {
	logger *slog.Logger

	// Callbacks for handling incoming requests from CSMS
	OnGetVariables  func(stationID string, req *GetVariablesRequest) (*GetVariablesResponse, error)
	OnSetVariables  func(stationID string, req *SetVariablesRequest) (*SetVariablesResponse, error)
	OnGetBaseReport func(stationID string, req *GetBaseReportRequest) (*GetBaseReportResponse, error)

	// Callback for sending messages
	SendMessage func(stationID string, data []byte) error
}

// NewHandler creates a new OCPP 2.0.1 handler
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		logger: logger,
	}
}

// HandleCall processes incoming Call messages from CSMS
func (h *Handler) HandleCall(stationID string, call *ocpp.Call) (interface{}, error) {
	h.logger.Debug("Handling OCPP 2.0.1 Call", "stationId", stationID, "action", call.Action)

	switch Action(call.Action) {
	case ActionGetVariables:
		return h.handleGetVariables(stationID, call)
	case ActionSetVariables:
		return h.handleSetVariables(stationID, call)
	case ActionGetBaseReport:
		return h.handleGetBaseReport(stationID, call)
	default:
		return nil, fmt.Errorf("action not implemented: %s", call.Action)
	}
}

// ==================== CSMS → CS Request Handlers ====================

// handleGetVariables handles GetVariables request
func (h *Handler) handleGetVariables(stationID string, call *ocpp.Call) (*GetVariablesResponse, error) {
	var req GetVariablesRequest
	if err := json.Unmarshal(call.Payload, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal GetVariables request: %w", err)
	}

	if h.OnGetVariables == nil {
		// Return rejected for each requested variable
		results := make([]GetVariableResult, len(req.GetVariableData))
		for i, data := range req.GetVariableData {
			results[i] = GetVariableResult{
				AttributeStatus: GetVariableStatusRejected,
				Component:       data.Component,
				Variable:        data.Variable,
			}
		}
		return &GetVariablesResponse{GetVariableResult: results}, nil
	}

	return h.OnGetVariables(stationID, &req)
}

// handleSetVariables handles SetVariables request
func (h *Handler) handleSetVariables(stationID string, call *ocpp.Call) (*SetVariablesResponse, error) {
	var req SetVariablesRequest
	if err := json.Unmarshal(call.Payload, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal SetVariables request: %w", err)
	}

	if h.OnSetVariables == nil {
		// Return rejected for each requested variable
		results := make([]SetVariableResult, len(req.SetVariableData))
		for i, data := range req.SetVariableData {
			results[i] = SetVariableResult{
				AttributeStatus: SetVariableStatusRejected,
				Component:       data.Component,
				Variable:        data.Variable,
			}
		}
		return &SetVariablesResponse{SetVariableResult: results}, nil
	}

	return h.OnSetVariables(stationID, &req)
}

// handleGetBaseReport handles GetBaseReport request. The promised NotifyReport
// delivery happens out of band, driven by the caller via BuildAndSendReport
// once this handler has returned the façade's accept/reject decision.
func (h *Handler) handleGetBaseReport(stationID string, call *ocpp.Call) (*GetBaseReportResponse, error) {
	var req GetBaseReportRequest
	if err := json.Unmarshal(call.Payload, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal GetBaseReport request: %w", err)
	}

	if h.OnGetBaseReport == nil {
		return &GetBaseReportResponse{Status: GenericDeviceModelStatusNotSupported}, nil
	}

	return h.OnGetBaseReport(stationID, &req)
}

// ==================== Outgoing Messages (Charging Station → CSMS) ====================

// SendBootNotification sends a BootNotification request
func (h *Handler) SendBootNotification(stationID string, req *BootNotificationRequest) (*ocpp.Call, error) {
	call, err := ocpp.NewCall(string(ActionBootNotification), req)
	if err != nil {
		return nil, fmt.Errorf("failed to create BootNotification call: %w", err)
	}

	data, err := call.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal BootNotification: %w", err)
	}

	if h.SendMessage != nil {
		if err := h.SendMessage(stationID, data); err != nil {
			return nil, fmt.Errorf("failed to send BootNotification: %w", err)
		}
	}

	return call, nil
}

// SendHeartbeat sends a Heartbeat request
func (h *Handler) SendHeartbeat(stationID string) (*ocpp.Call, error) {
	req := HeartbeatRequest{}
	call, err := ocpp.NewCall(string(ActionHeartbeat), req)
	if err != nil {
		return nil, fmt.Errorf("failed to create Heartbeat call: %w", err)
	}

	data, err := call.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Heartbeat: %w", err)
	}

	if h.SendMessage != nil {
		if err := h.SendMessage(stationID, data); err != nil {
			return nil, fmt.Errorf("failed to send Heartbeat: %w", err)
		}
	}

	return call, nil
}

// SendNotifyReport sends a single NotifyReport page
func (h *Handler) SendNotifyReport(stationID string, req *NotifyReportRequest) (*ocpp.Call, error) {
	call, err := ocpp.NewCall(string(ActionNotifyReport), req)
	if err != nil {
		return nil, fmt.Errorf("failed to create NotifyReport call: %w", err)
	}

	data, err := call.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal NotifyReport: %w", err)
	}

	if h.SendMessage != nil {
		if err := h.SendMessage(stationID, data); err != nil {
			return nil, fmt.Errorf("failed to send NotifyReport: %w", err)
		}
	}

	return call, nil
}

// ==================== Response Handlers ====================

// HandleCallResult processes CallResult responses from CSMS
func (h *Handler) HandleCallResult(stationID string, result *ocpp.CallResult, originalAction Action) (interface{}, error) {
	h.logger.Debug("Handling OCPP 2.0.1 CallResult", "stationId", stationID, "action", originalAction)

	switch originalAction {
	case ActionBootNotification:
		var resp BootNotificationResponse
		if err := json.Unmarshal(result.Payload, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal BootNotification response: %w", err)
		}
		return &resp, nil

	case ActionHeartbeat:
		var resp HeartbeatResponse
		if err := json.Unmarshal(result.Payload, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal Heartbeat response: %w", err)
		}
		return &resp, nil

	case ActionNotifyReport:
		var resp NotifyReportResponse
		if err := json.Unmarshal(result.Payload, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal NotifyReport response: %w", err)
		}
		return &resp, nil

	default:
		return nil, fmt.Errorf("unknown action for CallResult: %s", originalAction)
	}
}
