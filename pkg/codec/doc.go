// Package codec implements the DeviceApps record schema and the frame header
// used by devapps container files.
//
// # Frame Format
//
// A container file is a gzip stream whose decompressed content is a sequence
// of frames written back to back, with no separators:
//
//	[Magic(4)][Type(2)][Length(2)][Payload(Length)]
//
// Fields:
//   - Magic: constant 0xFFFFFFFF marking the start of a frame (little-endian)
//   - Type: 16-bit message type tag; TypeDeviceApps (1) is the only one defined
//   - Length: 16-bit unsigned payload length in bytes (little-endian)
//   - Payload: protobuf encoding of the message
//
// The 16-bit length field caps a payload at 65535 bytes. Records that encode
// larger than that are rejected with ErrPayloadTooLarge, never truncated.
//
// # Record Schema
//
// The payload of a TypeDeviceApps frame is a protobuf message with the
// following fields:
//
//	device (1): message { id (1): bytes, type (2): bytes }   required
//	lat    (2): double                                       optional
//	lon    (3): double                                       optional
//	apps   (4): repeated uint32                              unpacked on write
//
// Optional coordinates are modelled as *float64 so that an absent value is
// distinguishable from an explicit 0.0. The packed form of apps is accepted
// on read.
//
// Unknown field numbers carrying a well-formed wire type are skipped, as
// protobuf decoders do, so payloads written by a newer schema still decode.
// Known fields with the wrong wire type and any malformed tag, varint or
// length prefix are rejected with a SchemaDecodeError.
//
// # Usage
//
//	rec := &codec.DeviceApps{
//	    Device: codec.Device{ID: "e7e1a50c0ec2747ca56cd9e1558c0d7c", Type: "idfa"},
//	    Lat:    codec.Float(67.7835424444),
//	    Apps:   []uint32{42, 43, 44},
//	}
//
//	header, payload, err := codec.EncodeFrame(rec)
//	if err != nil {
//	    return err
//	}
//
//	decoded, err := codec.Unmarshal(payload)
//
// # Error Handling
//
// Errors are structured and can be tested with errors.Is against the
// package sentinels or inspected with errors.As:
//   - ValidationError (ErrValidation): a required field is missing or has the wrong type
//   - SchemaDecodeError (ErrSchemaDecode): payload bytes are not valid protobuf
//   - TruncatedFrameError (ErrTruncatedFrame): header or payload shorter than declared
//   - StreamIOError (ErrStreamIO): the underlying reader or writer failed
//
// # Message Types
//
// Decoding dispatches on the frame type through a Registry. DefaultRegistry
// holds the DeviceApps decoder; frames with any other tag are rejected with
// ErrUnknownMessageType rather than skipped.
package codec
