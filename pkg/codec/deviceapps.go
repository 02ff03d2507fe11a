package codec

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the DeviceApps protobuf schema:
//
//	message DeviceApps {
//	    message Device {
//	        optional bytes id = 1;
//	        optional bytes type = 2;
//	    }
//	    optional Device device = 1;
//	    optional double lat = 2;
//	    optional double lon = 3;
//	    repeated uint32 apps = 4;
//	}
const (
	fieldDevice protowire.Number = 1
	fieldLat    protowire.Number = 2
	fieldLon    protowire.Number = 3
	fieldApps   protowire.Number = 4

	fieldDeviceID   protowire.Number = 1
	fieldDeviceType protowire.Number = 2
)

// Device identifies the device a record belongs to. Both fields are required.
type Device struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// DeviceApps is one record: a device, an optional position and the ids of
// the apps installed on it. A nil Lat or Lon means the coordinate is absent.
type DeviceApps struct {
	Device Device   `json:"device"`
	Lat    *float64 `json:"lat,omitempty"`
	Lon    *float64 `json:"lon,omitempty"`
	Apps   []uint32 `json:"apps"`
}

// Float returns a pointer to v, for filling Lat and Lon.
func Float(v float64) *float64 {
	return &v
}

// Validate checks the required device fields.
func (m *DeviceApps) Validate() error {
	if m == nil {
		return invalid("device", "malformed device")
	}
	if m.Device.ID == "" {
		return invalid("device.id", "invalid device id")
	}
	if m.Device.Type == "" {
		return invalid("device.type", "invalid device type")
	}
	return nil
}

// Type implements Message.
func (m *DeviceApps) Type() MessageType {
	return TypeDeviceApps
}

func (d *Device) size() int {
	n := 0
	n += protowire.SizeTag(fieldDeviceID) + protowire.SizeBytes(len(d.ID))
	n += protowire.SizeTag(fieldDeviceType) + protowire.SizeBytes(len(d.Type))
	return n
}

// Size returns the exact number of bytes Marshal produces for m.
func (m *DeviceApps) Size() int {
	n := protowire.SizeTag(fieldDevice) + protowire.SizeBytes(m.Device.size())
	if m.Lat != nil {
		n += protowire.SizeTag(fieldLat) + protowire.SizeFixed64()
	}
	if m.Lon != nil {
		n += protowire.SizeTag(fieldLon) + protowire.SizeFixed64()
	}
	for _, app := range m.Apps {
		n += protowire.SizeTag(fieldApps) + protowire.SizeVarint(uint64(app))
	}
	return n
}

// MarshalAppend validates m and appends its wire encoding to buf.
// Apps are written unpacked, one tag per element.
func (m *DeviceApps) MarshalAppend(buf []byte) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	buf = protowire.AppendTag(buf, fieldDevice, protowire.BytesType)
	buf = protowire.AppendVarint(buf, uint64(m.Device.size()))
	buf = protowire.AppendTag(buf, fieldDeviceID, protowire.BytesType)
	buf = protowire.AppendString(buf, m.Device.ID)
	buf = protowire.AppendTag(buf, fieldDeviceType, protowire.BytesType)
	buf = protowire.AppendString(buf, m.Device.Type)

	if m.Lat != nil {
		buf = protowire.AppendTag(buf, fieldLat, protowire.Fixed64Type)
		buf = protowire.AppendFixed64(buf, math.Float64bits(*m.Lat))
	}
	if m.Lon != nil {
		buf = protowire.AppendTag(buf, fieldLon, protowire.Fixed64Type)
		buf = protowire.AppendFixed64(buf, math.Float64bits(*m.Lon))
	}
	for _, app := range m.Apps {
		buf = protowire.AppendTag(buf, fieldApps, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(app))
	}
	return buf, nil
}

// Marshal encodes m into a buffer of exactly m.Size() bytes.
func Marshal(m *DeviceApps) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	size := m.Size()
	buf, err := m.MarshalAppend(make([]byte, 0, size))
	if err != nil {
		return nil, err
	}
	if len(buf) != size {
		return nil, fmt.Errorf("encoded %d bytes, expected %d", len(buf), size)
	}
	return buf, nil
}

// Unmarshal decodes a DeviceApps payload. Malformed wire data yields a
// *SchemaDecodeError; a well-formed payload missing a required field
// yields a *ValidationError.
func Unmarshal(data []byte) (*DeviceApps, error) {
	m := &DeviceApps{Apps: []uint32{}}
	if err := m.Unmarshal(data); err != nil {
		return nil, err
	}
	return m, nil
}

// Unmarshal decodes data into m, merging repeated occurrences of a field the
// way protobuf does.
func (m *DeviceApps) Unmarshal(data []byte) error {
	var hasDevice, hasID, hasType bool
	if m.Apps == nil {
		m.Apps = []uint32{}
	}

	d := decoder{buf: data}
	for !d.done() {
		num, typ, err := d.tag()
		if err != nil {
			return err
		}
		switch num {
		case fieldDevice:
			v, err := d.bytes(typ)
			if err != nil {
				return err
			}
			base := d.off - len(v)
			id, typeOK, err := unmarshalDevice(&m.Device, v, base)
			if err != nil {
				return err
			}
			hasDevice = true
			hasID = hasID || id
			hasType = hasType || typeOK
		case fieldLat:
			v, err := d.double(typ)
			if err != nil {
				return err
			}
			m.Lat = &v
		case fieldLon:
			v, err := d.double(typ)
			if err != nil {
				return err
			}
			m.Lon = &v
		case fieldApps:
			if err := d.apps(typ, &m.Apps); err != nil {
				return err
			}
		default:
			if err := d.skip(num, typ); err != nil {
				return err
			}
		}
	}

	switch {
	case !hasDevice:
		return invalid("device", "malformed device")
	case !hasID || m.Device.ID == "":
		return invalid("device.id", "invalid device id")
	case !hasType || m.Device.Type == "":
		return invalid("device.type", "invalid device type")
	}
	return nil
}

func unmarshalDevice(dev *Device, data []byte, base int) (hasID, hasType bool, err error) {
	d := decoder{buf: data, base: base}
	for !d.done() {
		num, typ, err := d.tag()
		if err != nil {
			return false, false, err
		}
		switch num {
		case fieldDeviceID:
			v, err := d.bytes(typ)
			if err != nil {
				return false, false, err
			}
			dev.ID = string(v)
			hasID = true
		case fieldDeviceType:
			v, err := d.bytes(typ)
			if err != nil {
				return false, false, err
			}
			dev.Type = string(v)
			hasType = true
		default:
			if err := d.skip(num, typ); err != nil {
				return false, false, err
			}
		}
	}
	return hasID, hasType, nil
}

var errWireType = errors.New("unexpected wire type")

// decoder walks a protobuf buffer, reporting errors with absolute offsets.
type decoder struct {
	buf  []byte
	off  int
	base int
}

func (d *decoder) done() bool {
	return d.off >= len(d.buf)
}

func (d *decoder) fail(err error) error {
	return &SchemaDecodeError{Offset: d.base + d.off, Err: err}
}

func (d *decoder) tag() (protowire.Number, protowire.Type, error) {
	num, typ, n := protowire.ConsumeTag(d.buf[d.off:])
	if n < 0 {
		return 0, 0, d.fail(protowire.ParseError(n))
	}
	d.off += n
	return num, typ, nil
}

func (d *decoder) bytes(typ protowire.Type) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, d.fail(errWireType)
	}
	v, n := protowire.ConsumeBytes(d.buf[d.off:])
	if n < 0 {
		return nil, d.fail(protowire.ParseError(n))
	}
	d.off += n
	return v, nil
}

func (d *decoder) double(typ protowire.Type) (float64, error) {
	if typ != protowire.Fixed64Type {
		return 0, d.fail(errWireType)
	}
	v, n := protowire.ConsumeFixed64(d.buf[d.off:])
	if n < 0 {
		return 0, d.fail(protowire.ParseError(n))
	}
	d.off += n
	return math.Float64frombits(v), nil
}

func (d *decoder) varint32() (uint32, error) {
	v, n := protowire.ConsumeVarint(d.buf[d.off:])
	if n < 0 {
		return 0, d.fail(protowire.ParseError(n))
	}
	if v > math.MaxUint32 {
		return 0, d.fail(fmt.Errorf("app id %d overflows uint32", v))
	}
	d.off += n
	return uint32(v), nil
}

// apps accepts both the unpacked and the packed encoding of a repeated uint32.
func (d *decoder) apps(typ protowire.Type, dst *[]uint32) error {
	switch typ {
	case protowire.VarintType:
		v, err := d.varint32()
		if err != nil {
			return err
		}
		*dst = append(*dst, v)
		return nil
	case protowire.BytesType:
		packed, err := d.bytes(typ)
		if err != nil {
			return err
		}
		inner := decoder{buf: packed, base: d.base + d.off - len(packed)}
		for !inner.done() {
			v, err := inner.varint32()
			if err != nil {
				return err
			}
			*dst = append(*dst, v)
		}
		return nil
	default:
		return d.fail(errWireType)
	}
}

func (d *decoder) skip(num protowire.Number, typ protowire.Type) error {
	n := protowire.ConsumeFieldValue(num, typ, d.buf[d.off:])
	if n < 0 {
		return d.fail(protowire.ParseError(n))
	}
	d.off += n
	return nil
}
