package codec

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
)

func sampleRecord() *DeviceApps {
	return &DeviceApps{
		Device: Device{ID: "e7e1a50c0ec2747ca56cd9e1558c0d7c", Type: "idfa"},
		Lat:    Float(67.7835424444),
		Lon:    Float(-22.8044005471),
		Apps:   []uint32{42, 43, 44},
	}
}

func TestDeviceApps_RoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		rec  *DeviceApps
	}{
		{
			name: "full record",
			rec:  sampleRecord(),
		},
		{
			name: "no coordinates",
			rec: &DeviceApps{
				Device: Device{ID: "abc", Type: "gaid"},
				Apps:   []uint32{1},
			},
		},
		{
			name: "zero latitude is present",
			rec: &DeviceApps{
				Device: Device{ID: "abc", Type: "gaid"},
				Lat:    Float(0),
				Apps:   []uint32{},
			},
		},
		{
			name: "only longitude",
			rec: &DeviceApps{
				Device: Device{ID: "abc", Type: "adid"},
				Lon:    Float(-0.5),
				Apps:   []uint32{7, 3, 5},
			},
		},
		{
			name: "empty apps",
			rec: &DeviceApps{
				Device: Device{ID: "x", Type: "dvid"},
				Apps:   []uint32{},
			},
		},
		{
			name: "extreme app ids keep order",
			rec: &DeviceApps{
				Device: Device{ID: "x", Type: "dvid"},
				Apps:   []uint32{math.MaxUint32, 0, 128, 127, 16384},
			},
		},
		{
			name: "unicode device",
			rec: &DeviceApps{
				Device: Device{ID: "🔑 device", Type: "тип"},
				Apps:   []uint32{1},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := Marshal(tc.rec)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if len(encoded) != tc.rec.Size() {
				t.Errorf("Size mismatch: encoded %d bytes, Size() = %d", len(encoded), tc.rec.Size())
			}
			if cap(encoded) != len(encoded) {
				t.Errorf("Buffer over-allocated: cap %d, len %d", cap(encoded), len(encoded))
			}

			decoded, err := Unmarshal(encoded)
			if err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if !reflect.DeepEqual(decoded, tc.rec) {
				t.Errorf("Round trip mismatch:\n got %+v\nwant %+v", decoded, tc.rec)
			}
		})
	}
}

func TestDeviceApps_PresenceFlags(t *testing.T) {
	rec := &DeviceApps{
		Device: Device{ID: "abc", Type: "idfa"},
		Lat:    Float(0),
		Apps:   []uint32{},
	}

	encoded, err := Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	decoded, err := Unmarshal(encoded)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.Lat == nil {
		t.Fatal("Expected lat to be present")
	}
	if *decoded.Lat != 0 {
		t.Errorf("Expected lat 0, got %v", *decoded.Lat)
	}
	if decoded.Lon != nil {
		t.Errorf("Expected lon to be absent, got %v", *decoded.Lon)
	}
}

func TestDeviceApps_WireFormat(t *testing.T) {
	rec := &DeviceApps{
		Device: Device{ID: "ab", Type: "c"},
		Apps:   []uint32{1, 300},
	}
	want := []byte{
		0x0a, 0x07, // device, 7 bytes
		0x0a, 0x02, 'a', 'b', // id
		0x12, 0x01, 'c', // type
		0x20, 0x01, // apps: 1
		0x20, 0xac, 0x02, // apps: 300
	}

	encoded, err := Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !bytes.Equal(encoded, want) {
		t.Errorf("Encoding mismatch:\n got % x\nwant % x", encoded, want)
	}
	if rec.Size() != 14 {
		t.Errorf("Expected size 14, got %d", rec.Size())
	}
}

func TestUnmarshal_PackedApps(t *testing.T) {
	payload := []byte{
		0x0a, 0x07, 0x0a, 0x02, 'a', 'b', 0x12, 0x01, 'c',
		0x22, 0x03, 0x01, 0xac, 0x02, // packed apps: 1, 300
		0x20, 0x05, // unpacked app: 5
	}

	rec, err := Unmarshal(payload)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	want := []uint32{1, 300, 5}
	if !reflect.DeepEqual(rec.Apps, want) {
		t.Errorf("Apps mismatch: got %v, want %v", rec.Apps, want)
	}
}

func TestUnmarshal_SkipsUnknownFields(t *testing.T) {
	payload := []byte{
		0x0a, 0x09, 0x0a, 0x02, 'a', 'b', 0x12, 0x01, 'c',
		0x18, 0x01, // unknown device field 3
		0x28, 0x05, // unknown field 5
		0x20, 0x01,
	}

	rec, err := Unmarshal(payload)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if rec.Device.ID != "ab" || rec.Device.Type != "c" {
		t.Errorf("Unexpected device: %+v", rec.Device)
	}
	if !reflect.DeepEqual(rec.Apps, []uint32{1}) {
		t.Errorf("Unexpected apps: %v", rec.Apps)
	}
}

func TestUnmarshal_MalformedPayload(t *testing.T) {
	valid, err := Marshal(&DeviceApps{Device: Device{ID: "ab", Type: "c"}, Apps: []uint32{1, 300}})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	testCases := []struct {
		name string
		data []byte
	}{
		{
			name: "truncated varint",
			data: valid[:len(valid)-1],
		},
		{
			name: "truncated device",
			data: valid[:5],
		},
		{
			name: "device with varint wire type",
			data: []byte{0x08, 0x01},
		},
		{
			name: "latitude with varint wire type",
			data: []byte{0x10, 0x01},
		},
		{
			name: "truncated latitude",
			data: []byte{0x11, 0x00, 0x00, 0x00},
		},
		{
			name: "field number zero",
			data: []byte{0x00, 0x01},
		},
		{
			name: "length beyond buffer",
			data: []byte{0x0a, 0x10, 'a'},
		},
		{
			name: "app id overflows uint32",
			data: []byte{0x20, 0xff, 0xff, 0xff, 0xff, 0x1f},
		},
		{
			name: "apps with fixed32 wire type",
			data: []byte{0x25, 0x01, 0x00, 0x00, 0x00},
		},
		{
			name: "unknown field with truncated value",
			data: []byte{0x0a, 0x05, 0x0a, 0x01, 'a', 0x12, 0x00, 0x32, 0x05, 'x'},
		},
		{
			name: "unknown field with group wire type",
			data: []byte{0x0a, 0x05, 0x0a, 0x01, 'a', 0x12, 0x00, 0x2b},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Unmarshal(tc.data)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, ErrSchemaDecode) {
				t.Errorf("Expected ErrSchemaDecode, got %v", err)
			}
			var sde *SchemaDecodeError
			if !errors.As(err, &sde) {
				t.Errorf("Expected *SchemaDecodeError, got %T", err)
			}
		})
	}
}

func TestUnmarshal_MissingRequiredFields(t *testing.T) {
	testCases := []struct {
		name   string
		data   []byte
		reason string
	}{
		{
			name:   "empty payload",
			data:   []byte{},
			reason: "malformed device",
		},
		{
			name:   "apps only",
			data:   []byte{0x20, 0x01},
			reason: "malformed device",
		},
		{
			name:   "device without id",
			data:   []byte{0x0a, 0x03, 0x12, 0x01, 'c'},
			reason: "invalid device id",
		},
		{
			name:   "device without type",
			data:   []byte{0x0a, 0x04, 0x0a, 0x02, 'a', 'b'},
			reason: "invalid device type",
		},
		{
			name:   "empty id",
			data:   []byte{0x0a, 0x05, 0x0a, 0x00, 0x12, 0x01, 'c'},
			reason: "invalid device id",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Unmarshal(tc.data)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("Expected ErrValidation, got %v", err)
			}
			if errors.Is(err, ErrSchemaDecode) {
				t.Error("Validation failure must not be reported as a schema decode error")
			}
			if err.Error() != tc.reason {
				t.Errorf("Error message mismatch: got %q, want %q", err.Error(), tc.reason)
			}
		})
	}
}

func TestMarshal_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		rec    *DeviceApps
		reason string
	}{
		{
			name:   "nil record",
			rec:    nil,
			reason: "malformed device",
		},
		{
			name:   "empty id",
			rec:    &DeviceApps{Device: Device{Type: "idfa"}},
			reason: "invalid device id",
		},
		{
			name:   "empty type",
			rec:    &DeviceApps{Device: Device{ID: "abc"}},
			reason: "invalid device type",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := Marshal(tc.rec)
			if encoded != nil {
				t.Errorf("Expected no output, got %d bytes", len(encoded))
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected *ValidationError, got %v", err)
			}
			if ve.Reason != tc.reason {
				t.Errorf("Reason mismatch: got %q, want %q", ve.Reason, tc.reason)
			}
		})
	}
}

func TestDeviceApps_LargeRecord(t *testing.T) {
	rec := &DeviceApps{
		Device: Device{ID: strings.Repeat("d", 300), Type: "idfa"},
		Apps:   make([]uint32, 20000),
	}
	for i := range rec.Apps {
		rec.Apps[i] = uint32(i * 7919)
	}

	encoded, err := Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	decoded, err := Unmarshal(encoded)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(decoded.Apps, rec.Apps) {
		t.Error("Apps mismatch after round trip")
	}
	if decoded.Device.ID != rec.Device.ID {
		t.Error("Device id mismatch after round trip")
	}
}
