package stream

import (
	"bytes"
	"encoding/json"
	"math"
	"time"

	"backend-rxdispatch/internal/eta"
	"backend-rxdispatch/internal/shared/geo"
)

type MessageType string

const (
	TypeConnected          MessageType = "connected"
	TypeLocationUpdate     MessageType = "location_update"
	TypeDriverLocation     MessageType = "driver_location"
	TypeAck                MessageType = "ack"
	TypePing               MessageType = "ping"
	TypePong               MessageType = "pong"
	TypeError              MessageType = "error"
	TypeETARequest         MessageType = "eta_request"
	TypeClientDisconnected MessageType = "client_disconnected"
	TypeETAUpdate          MessageType = "eta_update"
)

type Role string

const (
	RoleDriver   Role = "driver"
	RoleObserver Role = "observer"
)

// ParseRole maps the role query parameter. Customers and dispatchers are
// both observers.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "driver":
		return RoleDriver, true
	case "customer", "observer", "dispatcher":
		return RoleObserver, true
	}
	return "", false
}

// Inbound is one of LocationUpdate, Ping or ETARequest.
type Inbound interface {
	Type() MessageType
}

type LocationUpdate struct {
	Point     geo.Point
	Heading   *float64
	Speed     *float64
	Accuracy  *float64
	Timestamp *time.Time
}

func (LocationUpdate) Type() MessageType { return TypeLocationUpdate }

type Ping struct{}

func (Ping) Type() MessageType { return TypePing }

type ETARequest struct{}

func (ETARequest) Type() MessageType { return TypeETARequest }

type envelope struct {
	Type *MessageType `json:"type"`
}

// Only lat and lng are strict. The optional fields are kept raw so a value
// of an unexpected shape is dropped instead of failing the whole update.
type locationPayload struct {
	Lat       *float64        `json:"lat"`
	Lng       *float64        `json:"lng"`
	Heading   json.RawMessage `json:"heading"`
	Speed     json.RawMessage `json:"speed"`
	Accuracy  json.RawMessage `json:"accuracy"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// ParseInbound decodes a client frame. Unknown fields are ignored, unknown
// types and wrongly typed fields are rejected. The returned error is always
// a *ValidationError.
func ParseInbound(raw []byte) (Inbound, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, invalid(CodeMalformedMessage, "message must be a JSON object")
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, invalid(CodeMalformedMessage, "decode message: %v", err)
	}
	if env.Type == nil || *env.Type == "" {
		return nil, invalid(CodeMalformedMessage, "missing message type")
	}

	switch *env.Type {
	case TypeLocationUpdate:
		return parseLocation(raw)
	case TypePing:
		return Ping{}, nil
	case TypeETARequest:
		return ETARequest{}, nil
	default:
		return nil, invalid(CodeUnknownType, "unsupported message type %q", *env.Type)
	}
}

func parseLocation(raw []byte) (Inbound, error) {
	var p locationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, invalid(CodeInvalidLocation, "decode location: %v", err)
	}
	if p.Lat == nil || p.Lng == nil {
		return nil, invalid(CodeInvalidLocation, "lat and lng are required")
	}
	pt := geo.Point{Lat: *p.Lat, Lng: *p.Lng}
	if !pt.Valid() {
		return nil, invalid(CodeInvalidLocation, "coordinates out of range")
	}
	return LocationUpdate{
		Point:     pt,
		Heading:   optionalFloat(p.Heading),
		Speed:     optionalFloat(p.Speed),
		Accuracy:  optionalFloat(p.Accuracy),
		Timestamp: optionalTime(p.Timestamp),
	}, nil
}

func optionalFloat(raw json.RawMessage) *float64 {
	var v *float64
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return nil
	}
	return v
}

// optionalTime accepts RFC 3339 strings and epoch milliseconds, the shape
// browsers send from Date.now().
func optionalTime(raw json.RawMessage) *time.Time {
	if len(raw) == 0 {
		return nil
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		if ms <= 0 || math.IsInf(ms, 0) {
			return nil
		}
		t := time.UnixMilli(int64(ms)).UTC()
		return &t
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

// Outbound messages.

type ConnectedMessage struct {
	Type       MessageType `json:"type"`
	TrackingID string      `json:"tracking_id"`
	ClientID   string      `json:"client_id"`
	Role       Role        `json:"role"`
}

type DriverLocationMessage struct {
	Type       MessageType `json:"type"`
	TrackingID string      `json:"tracking_id"`
	Lat        float64     `json:"lat"`
	Lng        float64     `json:"lng"`
	Heading    *float64    `json:"heading,omitempty"`
	Speed      *float64    `json:"speed,omitempty"`
	Accuracy   *float64    `json:"accuracy,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

type AckMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

type PongMessage struct {
	Type MessageType `json:"type"`
	Time time.Time   `json:"time"`
}

type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

type ETARequestMessage struct {
	Type     MessageType `json:"type"`
	ClientID string      `json:"client_id"`
}

type ClientDisconnectedMessage struct {
	Type MessageType `json:"type"`
	Role Role        `json:"role"`
}

type ETAUpdateMessage struct {
	Type MessageType `json:"type"`
	eta.Estimate
}

func errorMessage(err *ValidationError) ErrorMessage {
	return ErrorMessage{Type: TypeError, Code: err.Code, Message: err.Message}
}
