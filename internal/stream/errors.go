package stream

import (
	"errors"
	"fmt"
)

var (
	ErrRoomFull          = errors.New("stream: room is at capacity")
	ErrInvalidTrackingID = errors.New("stream: invalid tracking id")
)

const (
	CodeMalformedMessage = "malformed_message"
	CodeUnknownType      = "unknown_type"
	CodeInvalidLocation  = "invalid_location"
	CodeForbidden        = "forbidden"
	CodeRoomFull         = "room_full"
)

// ValidationError is reported to the sending connection only.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalid(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}
