package codec

import (
	"fmt"
	"sync"
)

// Message is a payload schema that can be carried in a frame.
type Message interface {
	Type() MessageType
	Validate() error
	Size() int
	MarshalAppend(buf []byte) ([]byte, error)
}

// DecodeFunc decodes one payload of a registered message type.
type DecodeFunc func(payload []byte) (Message, error)

// Registry maps frame type tags to payload decoders. Frames carrying a tag
// that is not registered are rejected with ErrUnknownMessageType.
type Registry struct {
	mu       sync.RWMutex
	decoders map[MessageType]DecodeFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[MessageType]DecodeFunc)}
}

// DefaultRegistry knows every message type defined by this package.
var DefaultRegistry = func() *Registry {
	r := NewRegistry()
	r.Register(TypeDeviceApps, func(payload []byte) (Message, error) {
		m, err := Unmarshal(payload)
		if err != nil {
			return nil, err
		}
		return m, nil
	})
	return r
}()

// Register adds or replaces the decoder for t.
func (r *Registry) Register(t MessageType, fn DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[t] = fn
}

// Lookup returns the decoder registered for t.
func (r *Registry) Lookup(t MessageType) (DecodeFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.decoders[t]
	return fn, ok
}

// Decode dispatches payload to the decoder registered for t.
func (r *Registry) Decode(t MessageType, payload []byte) (Message, error) {
	fn, ok := r.Lookup(t)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, uint16(t))
	}
	return fn(payload)
}

// EncodeFrame validates msg and returns its header and payload. The payload
// buffer is sized exactly to msg.Size().
func EncodeFrame(msg Message) (Header, []byte, error) {
	if err := msg.Validate(); err != nil {
		return Header{}, nil, err
	}
	size := msg.Size()
	if size > MaxPayloadSize {
		return Header{}, nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, size)
	}
	payload, err := msg.MarshalAppend(make([]byte, 0, size))
	if err != nil {
		return Header{}, nil, err
	}
	if len(payload) != size {
		return Header{}, nil, fmt.Errorf("encoded %d bytes, expected %d", len(payload), size)
	}
	h, err := NewHeader(msg.Type(), size)
	if err != nil {
		return Header{}, nil, err
	}
	return h, payload, nil
}
