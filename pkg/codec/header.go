package codec

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// Magic marks the start of every frame.
const Magic uint32 = 0xFFFFFFFF

// HeaderSize is the encoded size of a frame header in bytes.
const HeaderSize = 8

// MaxPayloadSize is the largest payload the 16-bit length field can describe.
const MaxPayloadSize = math.MaxUint16

// MessageType identifies the schema of a frame payload.
type MessageType uint16

// TypeDeviceApps is the only message type currently defined.
const TypeDeviceApps MessageType = 1

func (t MessageType) String() string {
	switch t {
	case TypeDeviceApps:
		return "DeviceApps"
	default:
		return "unknown"
	}
}

// Header is the fixed-size prefix of a frame.
// Format: [Magic(4)][Type(2)][Length(2)], little-endian.
type Header struct {
	Magic  uint32
	Type   MessageType
	Length uint16
}

// NewHeader builds a header for a payload of payloadLen bytes.
func NewHeader(t MessageType, payloadLen int) (Header, error) {
	if payloadLen < 0 || payloadLen > MaxPayloadSize {
		return Header{}, ErrPayloadTooLarge
	}
	return Header{Magic: Magic, Type: t, Length: uint16(payloadLen)}, nil
}

// AppendHeader appends the encoded header to buf.
func AppendHeader(buf []byte, h Header) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, h.Magic)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(h.Type))
	return binary.LittleEndian.AppendUint16(buf, h.Length)
}

// MarshalBinary encodes the header into HeaderSize bytes.
func (h Header) MarshalBinary() ([]byte, error) {
	return AppendHeader(make([]byte, 0, HeaderSize), h), nil
}

// UnmarshalBinary decodes a header from the first HeaderSize bytes of data.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return &TruncatedFrameError{Part: "header", Want: HeaderSize, Got: len(data)}
	}
	h.Magic = binary.LittleEndian.Uint32(data[0:4])
	h.Type = MessageType(binary.LittleEndian.Uint16(data[4:6]))
	h.Length = binary.LittleEndian.Uint16(data[6:8])
	return nil
}

// ReadHeader reads one header from r. It returns io.EOF when r is exhausted
// before the first byte and a *TruncatedFrameError when it ends mid-header.
// Magic and type are not checked here.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	n, err := io.ReadFull(r, buf[:])
	switch {
	case err == nil:
	case errors.Is(err, io.EOF) && n == 0:
		return Header{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return Header{}, &TruncatedFrameError{Part: "header", Want: HeaderSize, Got: n}
	default:
		return Header{}, &StreamIOError{Op: "read header", Err: err}
	}

	var h Header
	if err := h.UnmarshalBinary(buf[:]); err != nil {
		return Header{}, err
	}
	return h, nil
}
