package v201

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ruslanhut/ocpp-emu/internal/metrics"
)

// Service wires a VariableManager to a Handler's device-model callbacks,
// enforcing the façade-level batch limits (ItemsPerMessage, BytesPerMessage)
// GetVariables/SetVariables/GetBaseReport share.
type Service struct {
	stationID string
	mgr       *VariableManager
	logger    *slog.Logger
}

// NewService builds a façade for one station's VariableManager.
func NewService(stationID string, mgr *VariableManager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{stationID: stationID, mgr: mgr, logger: logger}
}

// Attach wires this service's handlers onto h.
func (svc *Service) Attach(h *Handler) {
	h.OnGetVariables = svc.HandleGetVariables
	h.OnSetVariables = svc.HandleSetVariables
	h.OnGetBaseReport = svc.HandleGetBaseReport
}

func (svc *Service) itemsPerMessage() int {
	if n := svc.mgr.sizeControlValue("ItemsPerMessage"); n > 0 {
		return n
	}
	return 100
}

func (svc *Service) bytesPerMessage() int {
	if n := svc.mgr.sizeControlValue("BytesPerMessage"); n > 0 {
		return n
	}
	return 65535
}

// HandleGetVariables runs the self-check once per batch, then resolves every
// requested item, enforcing ItemsPerMessage/BytesPerMessage on the way in and
// BytesPerMessage again on the assembled response.
func (svc *Service) HandleGetVariables(stationID string, req *GetVariablesRequest) (*GetVariablesResponse, error) {
	svc.mgr.validatePersistentMappings()

	if reason, ok := svc.precheckBatch(len(req.GetVariableData), req.GetVariableData); !ok {
		results := make([]GetVariableResult, len(req.GetVariableData))
		for i, item := range req.GetVariableData {
			results[i] = rejectGetFacade(item, reason)
			metrics.GetVariablesTotal.WithLabelValues(string(results[i].AttributeStatus)).Inc()
		}
		return &GetVariablesResponse{GetVariableResult: results}, nil
	}

	results := make([]GetVariableResult, len(req.GetVariableData))
	for i, item := range req.GetVariableData {
		results[i] = svc.safeGetVariable(item)
		metrics.GetVariablesTotal.WithLabelValues(string(results[i].AttributeStatus)).Inc()
	}

	resp := &GetVariablesResponse{GetVariableResult: results}
	if svc.responseExceedsBytes(resp) {
		for i, item := range req.GetVariableData {
			results[i] = rejectGetFacade(item, facadeReasonTooLargeElement)
		}
		resp = &GetVariablesResponse{GetVariableResult: results}
	}
	return resp, nil
}

// HandleSetVariables runs the self-check once per batch, then applies every
// requested item, enforcing ItemsPerMessage/BytesPerMessage.
func (svc *Service) HandleSetVariables(stationID string, req *SetVariablesRequest) (*SetVariablesResponse, error) {
	svc.mgr.validatePersistentMappings()

	if reason, ok := svc.precheckBatch(len(req.SetVariableData), req.SetVariableData); !ok {
		results := make([]SetVariableResult, len(req.SetVariableData))
		for i, item := range req.SetVariableData {
			results[i] = rejectSetFacade(item, reason)
			metrics.SetVariablesTotal.WithLabelValues(string(results[i].AttributeStatus)).Inc()
		}
		return &SetVariablesResponse{SetVariableResult: results}, nil
	}

	results := make([]SetVariableResult, len(req.SetVariableData))
	for i, item := range req.SetVariableData {
		results[i] = svc.safeSetVariable(item)
		metrics.SetVariablesTotal.WithLabelValues(string(results[i].AttributeStatus)).Inc()
	}

	resp := &SetVariablesResponse{SetVariableResult: results}
	if svc.responseExceedsBytes(resp) {
		for i, item := range req.SetVariableData {
			results[i] = rejectSetFacade(item, facadeReasonTooLargeElement)
		}
		resp = &SetVariablesResponse{SetVariableResult: results}
	}
	return resp, nil
}

// facadeRejectReason distinguishes the two pre-flight failure modes.
type facadeRejectReason int

const (
	facadeReasonNone facadeRejectReason = iota
	facadeReasonTooManyElements
	facadeReasonTooLargeElement
)

// precheckBatch enforces ItemsPerMessage and BytesPerMessage on the
// incoming request before any item is processed.
func (svc *Service) precheckBatch(count int, payload any) (facadeRejectReason, bool) {
	if limit := svc.itemsPerMessage(); count > limit {
		return facadeReasonTooManyElements, false
	}
	data, err := json.Marshal(payload)
	if err == nil && len(data) > svc.bytesPerMessage() {
		return facadeReasonTooLargeElement, false
	}
	return facadeReasonNone, true
}

func rejectGetFacade(item GetVariableData, reason facadeRejectReason) GetVariableResult {
	attrType := AttributeActual
	if item.AttributeType != nil {
		attrType = *item.AttributeType
	}
	code := ReasonTooLargeElement
	if reason == facadeReasonTooManyElements {
		code = ReasonTooManyElements
	}
	return GetVariableResult{
		AttributeType:   &attrType,
		AttributeStatus: GetVariableStatusRejected,
		Component:       item.Component,
		Variable:        item.Variable,
		StatusInfo:      &StatusInfo{ReasonCode: string(code)},
	}
}

func rejectSetFacade(item SetVariableData, reason facadeRejectReason) SetVariableResult {
	attrType := AttributeActual
	if item.AttributeType != nil {
		attrType = *item.AttributeType
	}
	code := ReasonTooLargeElement
	if reason == facadeReasonTooManyElements {
		code = ReasonTooManyElements
	}
	return SetVariableResult{
		AttributeType:   &attrType,
		AttributeStatus: SetVariableStatusRejected,
		Component:       item.Component,
		Variable:        item.Variable,
		StatusInfo:      &StatusInfo{ReasonCode: string(code)},
	}
}

// safeGetVariable runs mgr.GetVariable with a recover so that a single bad
// item (e.g. a registry hook panicking) can never poison the rest of the
// batch: no error escapes to poison sibling items.
func (svc *Service) safeGetVariable(item GetVariableData) (result GetVariableResult) {
	defer func() {
		if r := recover(); r != nil {
			svc.logger.Error("panic resolving variable", "stationId", svc.stationID,
				"component", item.Component.Name, "variable", item.Variable.Name, "panic", r)
			attrType := AttributeActual
			if item.AttributeType != nil {
				attrType = *item.AttributeType
			}
			result = GetVariableResult{
				AttributeType:   &attrType,
				AttributeStatus: GetVariableStatusRejected,
				Component:       item.Component,
				Variable:        item.Variable,
				StatusInfo:      &StatusInfo{ReasonCode: string(ReasonInternalError), AdditionalInfo: truncateInfo("internal error")},
			}
		}
	}()
	return svc.mgr.GetVariable(item)
}

// safeSetVariable is safeGetVariable's counterpart for SetVariable.
func (svc *Service) safeSetVariable(item SetVariableData) (result SetVariableResult) {
	defer func() {
		if r := recover(); r != nil {
			svc.logger.Error("panic applying variable", "stationId", svc.stationID,
				"component", item.Component.Name, "variable", item.Variable.Name, "panic", r)
			attrType := AttributeActual
			if item.AttributeType != nil {
				attrType = *item.AttributeType
			}
			result = SetVariableResult{
				AttributeType:   &attrType,
				AttributeStatus: SetVariableStatusRejected,
				Component:       item.Component,
				Variable:        item.Variable,
				StatusInfo:      &StatusInfo{ReasonCode: string(ReasonInternalError), AdditionalInfo: truncateInfo("internal error")},
			}
		}
	}()
	return svc.mgr.SetVariable(item)
}

// responseExceedsBytes reports whether the assembled response exceeds
// BytesPerMessage, triggering the second per-message check that re-rejects
// every item.
func (svc *Service) responseExceedsBytes(resp interface{}) bool {
	data, err := json.Marshal(resp)
	if err != nil {
		return false
	}
	return len(data) > svc.bytesPerMessage()
}

// HandleGetBaseReport answers the façade-level accept/reject decision.
// NotifyReport delivery happens separately via BuildAndSendReport.
func (svc *Service) HandleGetBaseReport(stationID string, req *GetBaseReportRequest) (*GetBaseReportResponse, error) {
	svc.mgr.validatePersistentMappings()

	if !IsKnownReportBase(req.ReportBase) {
		metrics.BaseReportsTotal.WithLabelValues(string(req.ReportBase), string(GenericDeviceModelStatusNotSupported)).Inc()
		return &GetBaseReportResponse{Status: GenericDeviceModelStatusNotSupported}, nil
	}

	rows := BuildBaseReport(svc.mgr, req.ReportBase)
	status := GenericDeviceModelStatusFor(rows)
	metrics.BaseReportsTotal.WithLabelValues(string(req.ReportBase), string(status)).Inc()
	return &GetBaseReportResponse{Status: status}, nil
}

// BuildAndSendReport builds the inventory for reportBase and sends it through
// h as one or more NotifyReport pages, chunked to ItemsPerMessage and marked
// tbc (to-be-continued) on every page but the last.
func (svc *Service) BuildAndSendReport(h *Handler, requestID int, reportBase ReportBaseType, generatedAt DateTime) error {
	rows := BuildBaseReport(svc.mgr, reportBase)
	limit := svc.itemsPerMessage()
	if limit <= 0 {
		limit = 100
	}

	if len(rows) == 0 {
		_, err := h.SendNotifyReport(svc.stationID, &NotifyReportRequest{
			RequestId:   requestID,
			GeneratedAt: generatedAt,
			SeqNo:       0,
			ReportData:  nil,
		})
		if err == nil {
			metrics.NotifyReportPagesTotal.Inc()
		}
		return err
	}

	for offset := 0; offset < len(rows); offset += limit {
		end := offset + limit
		if end > len(rows) {
			end = len(rows)
		}
		page := rows[offset:end]
		tbc := end < len(rows)

		req := &NotifyReportRequest{
			RequestId:   requestID,
			GeneratedAt: generatedAt,
			SeqNo:       offset / limit,
			ReportData:  page,
		}
		if tbc {
			req.Tbc = &tbc
		}

		if _, err := h.SendNotifyReport(svc.stationID, req); err != nil {
			return fmt.Errorf("failed to send NotifyReport page %d: %w", req.SeqNo, err)
		}
		metrics.NotifyReportPagesTotal.Inc()
	}

	return nil
}
