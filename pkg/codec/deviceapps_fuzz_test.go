//go:build fuzz
// +build fuzz

package codec

import (
	"errors"
	"reflect"
	"testing"
)

// FuzzDeviceApps_RoundTrip tests marshal/unmarshal round-trip with random inputs
func FuzzDeviceApps_RoundTrip(f *testing.F) {
	f.Add("e7e1a50c0ec2747ca56cd9e1558c0d7c", "idfa", 67.7835424444, true, []byte{42, 43, 44})
	f.Add("a", "b", 0.0, false, []byte{})
	f.Add("device", "gaid", -1.5, true, []byte{0xff, 0x00})

	f.Fuzz(func(t *testing.T, id, typ string, lat float64, hasLat bool, apps []byte) {
		if id == "" || typ == "" || len(id) > 10000 || len(apps) > 10000 {
			t.Skip("Input outside record domain")
		}
		if lat != lat {
			t.Skip("NaN does not compare equal")
		}

		rec := &DeviceApps{Device: Device{ID: id, Type: typ}, Apps: []uint32{}}
		if hasLat {
			rec.Lat = Float(lat)
		}
		for i, b := range apps {
			rec.Apps = append(rec.Apps, uint32(b)<<uint(i%24))
		}

		encoded, err := Marshal(rec)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if len(encoded) != rec.Size() {
			t.Fatalf("Size mismatch: %d != %d", len(encoded), rec.Size())
		}

		decoded, err := Unmarshal(encoded)
		if err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if !reflect.DeepEqual(decoded, rec) {
			t.Errorf("Round trip mismatch: got %+v, want %+v", decoded, rec)
		}
	})
}

// FuzzUnmarshal_NoPanic tests that arbitrary payloads never panic and always
// fail with one of the documented error kinds
func FuzzUnmarshal_NoPanic(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x0a, 0x07, 0x0a, 0x02, 'a', 'b', 0x12, 0x01, 'c', 0x20, 0x01})
	f.Add([]byte{0x0a, 0x10, 'a'})
	f.Add([]byte{0x22, 0x03, 0x01, 0xac, 0x02})

	f.Fuzz(func(t *testing.T, data []byte) {
		rec, err := Unmarshal(data)
		if err != nil {
			if !errors.Is(err, ErrSchemaDecode) && !errors.Is(err, ErrValidation) {
				t.Fatalf("Unexpected error kind: %v", err)
			}
			return
		}
		if err := rec.Validate(); err != nil {
			t.Fatalf("Decoded record failed validation: %v", err)
		}
	})
}
