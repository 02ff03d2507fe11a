package codec

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
)

// FromMap builds a DeviceApps record from a loosely typed object, such as a
// decoded JSON document:
//
//	{"device": {"id": "...", "type": "idfa"}, "lat": 1.5, "lon": -2, "apps": [1, 2]}
//
// Checks run in order: device object, device id, device type, coordinates,
// apps. A lat or lon key holding null is treated as absent.
func FromMap(obj map[string]any) (*DeviceApps, error) {
	m := &DeviceApps{}

	dev, ok := asObject(obj["device"])
	if !ok {
		return nil, invalid("device", "malformed device")
	}
	id, ok := dev["id"].(string)
	if !ok || id == "" {
		return nil, invalid("device.id", "invalid device id")
	}
	typ, ok := dev["type"].(string)
	if !ok || typ == "" {
		return nil, invalid("device.type", "invalid device type")
	}
	m.Device = Device{ID: id, Type: typ}

	var err error
	if m.Lat, err = optionalFloat(obj, "lat", "invalid latitude"); err != nil {
		return nil, err
	}
	if m.Lon, err = optionalFloat(obj, "lon", "invalid longitude"); err != nil {
		return nil, err
	}

	apps, ok := obj["apps"]
	if !ok {
		return nil, invalid("apps", "missing apps")
	}
	if m.Apps, err = appList(apps); err != nil {
		return nil, err
	}
	return m, nil
}

// AsMap is the inverse of FromMap. Absent coordinates are omitted.
func (m *DeviceApps) AsMap() map[string]any {
	obj := map[string]any{
		"device": map[string]any{
			"id":   m.Device.ID,
			"type": m.Device.Type,
		},
		"apps": append([]uint32{}, m.Apps...),
	}
	if m.Lat != nil {
		obj["lat"] = *m.Lat
	}
	if m.Lon != nil {
		obj["lon"] = *m.Lon
	}
	return obj
}

func asObject(v any) (map[string]any, bool) {
	switch o := v.(type) {
	case map[string]any:
		return o, o != nil
	case map[string]string:
		if o == nil {
			return nil, false
		}
		out := make(map[string]any, len(o))
		for k, s := range o {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func optionalFloat(obj map[string]any, key, reason string) (*float64, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil, invalid(key, reason)
	}
	return &f, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	}
	return 0, false
}

func appList(v any) ([]uint32, error) {
	if ids, ok := v.([]uint32); ok {
		return append([]uint32{}, ids...), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, invalid("apps", "apps should be a list")
	}
	out := make([]uint32, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		id, ok := toAppID(rv.Index(i).Interface())
		if !ok {
			return nil, invalid("apps["+strconv.Itoa(i)+"]", "invalid app id")
		}
		out = append(out, id)
	}
	return out, nil
}

func toAppID(v any) (uint32, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n < 0 || n > math.MaxUint32 {
			return 0, false
		}
		return uint32(n), true
	case json.Number:
		u, err := strconv.ParseUint(n.String(), 10, 32)
		return uint32(u), err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < 0 || i > math.MaxUint32 {
			return 0, false
		}
		return uint32(i), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxUint32 {
			return 0, false
		}
		return uint32(u), true
	}
	return 0, false
}
