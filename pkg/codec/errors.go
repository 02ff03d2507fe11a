package codec

import (
	"errors"
	"fmt"
)

// Sentinel errors. The structured error types below match them through Is,
// so callers can test the kind with errors.Is and the details with errors.As.
var (
	ErrValidation         = errors.New("validation error")
	ErrSchemaDecode       = errors.New("schema decode error")
	ErrStreamIO           = errors.New("stream i/o error")
	ErrTruncatedFrame     = errors.New("truncated frame")
	ErrPayloadTooLarge    = errors.New("payload exceeds frame length field")
	ErrBadMagic           = errors.New("bad frame magic")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// ValidationError reports a record with a missing or wrongly typed field.
// Field is the dotted path of the offending field, e.g. "device.id".
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// SchemaDecodeError reports payload bytes that are not a valid protobuf message.
type SchemaDecodeError struct {
	Offset int
	Err    error
}

func (e *SchemaDecodeError) Error() string {
	return fmt.Sprintf("malformed payload at offset %d: %v", e.Offset, e.Err)
}

func (e *SchemaDecodeError) Unwrap() error {
	return e.Err
}

func (e *SchemaDecodeError) Is(target error) bool {
	return target == ErrSchemaDecode
}

// StreamIOError wraps a failure of the underlying file or compressed stream.
type StreamIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *StreamIOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StreamIOError) Unwrap() error {
	return e.Err
}

func (e *StreamIOError) Is(target error) bool {
	return target == ErrStreamIO
}

// TruncatedFrameError reports a header or payload shorter than declared.
type TruncatedFrameError struct {
	Part string // "header" or "payload"
	Want int
	Got  int
}

func (e *TruncatedFrameError) Error() string {
	return fmt.Sprintf("truncated %s: got %d of %d bytes", e.Part, e.Got, e.Want)
}

func (e *TruncatedFrameError) Is(target error) bool {
	return target == ErrTruncatedFrame
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
