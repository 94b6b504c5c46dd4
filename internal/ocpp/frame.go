// Package ocpp implements the OCPP-J RPC framing shared by every protocol
// version: Call, CallResult and CallError frames serialized as positional
// JSON arrays. Protocol semantics live in the version packages (v201); this
// package only splits and assembles frames.
package ocpp

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// MessageType tags the first element of every OCPP-J frame.
type MessageType int

const (
	MessageTypeCall       MessageType = 2 // [2, id, action, payload]
	MessageTypeCallResult MessageType = 3 // [3, id, payload]
	MessageTypeCallError  MessageType = 4 // [4, id, code, description, details]
)

// ErrorCode is the closed set of RPC framework error codes OCPP-J defines
// for CallError frames.
type ErrorCode string

const (
	ErrorCodeNotImplemented                ErrorCode = "NotImplemented"
	ErrorCodeNotSupported                  ErrorCode = "NotSupported"
	ErrorCodeInternalError                 ErrorCode = "InternalError"
	ErrorCodeProtocolError                 ErrorCode = "ProtocolError"
	ErrorCodeSecurityError                 ErrorCode = "SecurityError"
	ErrorCodeFormationViolation            ErrorCode = "FormationViolation"
	ErrorCodePropertyConstraintViolation   ErrorCode = "PropertyConstraintViolation"
	ErrorCodeOccurrenceConstraintViolation ErrorCode = "OccurrenceConstraintViolation"
	ErrorCodeTypeConstraintViolation       ErrorCode = "TypeConstraintViolation"
	ErrorCodeGenericError                  ErrorCode = "GenericError"
)

// Call is a request frame; the receiver answers with a CallResult or
// CallError carrying the same UniqueID.
type Call struct {
	UniqueID string
	Action   string
	Payload  json.RawMessage
}

// CallResult is the success reply to a Call.
type CallResult struct {
	UniqueID string
	Payload  json.RawMessage
}

// CallError is the failure reply to a Call.
type CallError struct {
	UniqueID     string
	ErrorCode    ErrorCode
	ErrorDesc    string
	ErrorDetails json.RawMessage
}

// NewCall builds a Call with a fresh message ID, marshaling payload.
func NewCall(action string, payload interface{}) (*Call, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", action, err)
	}
	return &Call{UniqueID: NewMessageID(), Action: action, Payload: raw}, nil
}

// NewCallResult builds the success reply to the Call identified by uniqueID.
func NewCallResult(uniqueID string, payload interface{}) (*CallResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result payload: %w", err)
	}
	return &CallResult{UniqueID: uniqueID, Payload: raw}, nil
}

// NewCallError builds the failure reply to the Call identified by uniqueID.
func NewCallError(uniqueID string, code ErrorCode, desc string) *CallError {
	return &CallError{
		UniqueID:     uniqueID,
		ErrorCode:    code,
		ErrorDesc:    desc,
		ErrorDetails: json.RawMessage("{}"),
	}
}

// NewMessageID returns a fresh unique message ID. OCPP-J allows any string up
// to 36 characters; this implementation always uses UUIDs.
func NewMessageID() string {
	return uuid.New().String()
}

func (c *Call) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{MessageTypeCall, c.UniqueID, c.Action, c.Payload})
}

func (c *Call) UnmarshalJSON(data []byte) error {
	arr, err := splitFrame(data, MessageTypeCall, 4)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(arr[1], &c.UniqueID); err != nil {
		return fmt.Errorf("invalid Call unique ID: %w", err)
	}
	if err := json.Unmarshal(arr[2], &c.Action); err != nil {
		return fmt.Errorf("invalid Call action: %w", err)
	}
	c.Payload = arr[3]
	return nil
}

func (cr *CallResult) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{MessageTypeCallResult, cr.UniqueID, cr.Payload})
}

func (cr *CallResult) UnmarshalJSON(data []byte) error {
	arr, err := splitFrame(data, MessageTypeCallResult, 3)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(arr[1], &cr.UniqueID); err != nil {
		return fmt.Errorf("invalid CallResult unique ID: %w", err)
	}
	cr.Payload = arr[2]
	return nil
}

func (ce *CallError) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{MessageTypeCallError, ce.UniqueID, ce.ErrorCode, ce.ErrorDesc, ce.ErrorDetails})
}

func (ce *CallError) UnmarshalJSON(data []byte) error {
	arr, err := splitFrame(data, MessageTypeCallError, 5)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(arr[1], &ce.UniqueID); err != nil {
		return fmt.Errorf("invalid CallError unique ID: %w", err)
	}
	if err := json.Unmarshal(arr[2], &ce.ErrorCode); err != nil {
		return fmt.Errorf("invalid CallError code: %w", err)
	}
	if err := json.Unmarshal(arr[3], &ce.ErrorDesc); err != nil {
		return fmt.Errorf("invalid CallError description: %w", err)
	}
	ce.ErrorDetails = arr[4]
	return nil
}

// ToBytes serializes the frame for the wire.
func (c *Call) ToBytes() ([]byte, error)        { return json.Marshal(c) }
func (cr *CallResult) ToBytes() ([]byte, error) { return json.Marshal(cr) }
func (ce *CallError) ToBytes() ([]byte, error)  { return json.Marshal(ce) }

// ParseFrame decodes one wire frame into *Call, *CallResult or *CallError
// according to its message type tag.
func ParseFrame(data []byte) (interface{}, error) {
	msgType, err := peekMessageType(data)
	if err != nil {
		return nil, err
	}

	switch msgType {
	case MessageTypeCall:
		var call Call
		if err := json.Unmarshal(data, &call); err != nil {
			return nil, err
		}
		return &call, nil
	case MessageTypeCallResult:
		var result CallResult
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, err
		}
		return &result, nil
	case MessageTypeCallError:
		var callErr CallError
		if err := json.Unmarshal(data, &callErr); err != nil {
			return nil, err
		}
		return &callErr, nil
	default:
		return nil, fmt.Errorf("unknown message type: %d", msgType)
	}
}

// splitFrame unmarshals a frame into its positional elements, checking the
// type tag and element count.
func splitFrame(data []byte, want MessageType, elements int) ([]json.RawMessage, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, fmt.Errorf("frame is not a JSON array: %w", err)
	}
	if len(arr) != elements {
		return nil, fmt.Errorf("frame type %d needs %d elements, got %d", want, elements, len(arr))
	}
	var msgType MessageType
	if err := json.Unmarshal(arr[0], &msgType); err != nil {
		return nil, fmt.Errorf("invalid message type tag: %w", err)
	}
	if msgType != want {
		return nil, fmt.Errorf("expected message type %d, got %d", want, msgType)
	}
	return arr, nil
}

func peekMessageType(data []byte) (MessageType, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return 0, fmt.Errorf("frame is not a JSON array: %w", err)
	}
	if len(arr) < 3 {
		return 0, fmt.Errorf("frame too short: %d elements", len(arr))
	}
	var msgType MessageType
	if err := json.Unmarshal(arr[0], &msgType); err != nil {
		return 0, fmt.Errorf("invalid message type tag: %w", err)
	}
	return msgType, nil
}
