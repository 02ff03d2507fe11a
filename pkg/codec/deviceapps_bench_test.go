//go:build bench
// +build bench

package codec

import (
	"testing"
)

func benchmarkRecords() []struct {
	name string
	rec  *DeviceApps
} {
	medium := make([]uint32, 100)
	large := make([]uint32, 10000)
	for i := range large {
		large[i] = uint32(i * 31)
		if i < len(medium) {
			medium[i] = uint32(i * 1000)
		}
	}

	return []struct {
		name string
		rec  *DeviceApps
	}{
		{name: "small", rec: &DeviceApps{Device: Device{ID: "e7e1a50c0ec2747ca56cd9e1558c0d7c", Type: "idfa"}, Lat: Float(1), Lon: Float(2), Apps: []uint32{42, 43, 44}}},
		{name: "medium", rec: &DeviceApps{Device: Device{ID: "e7e1a50c0ec2747ca56cd9e1558c0d7c", Type: "idfa"}, Apps: medium}},
		{name: "large", rec: &DeviceApps{Device: Device{ID: "e7e1a50c0ec2747ca56cd9e1558c0d7c", Type: "idfa"}, Apps: large}},
	}
}

func BenchmarkMarshal(b *testing.B) {
	for _, bm := range benchmarkRecords() {
		b.Run(bm.name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := Marshal(bm.rec); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkUnmarshal(b *testing.B) {
	for _, bm := range benchmarkRecords() {
		encoded, err := Marshal(bm.rec)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(bm.name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(encoded)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := Unmarshal(encoded); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
