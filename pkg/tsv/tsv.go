// Package tsv converts gzip-compressed tab-separated app install logs into
// framed DeviceApps files.
//
// Each input line has five fields:
//
//	dev_type \t dev_id \t lat \t lon \t app,app,app
package tsv

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ssargent/devapps/pkg/codec"
)

// DefaultMaxErrorRate is the share of bad lines a conversion tolerates
const DefaultMaxErrorRate = 0.01

// DefaultDeviceTypes lists the device types accepted when Options.DeviceTypes is empty
var DefaultDeviceTypes = []string{"idfa", "gaid", "adid", "dvid"}

var (
	// ErrMalformedLine is returned by ParseLine for a line it cannot use
	ErrMalformedLine = errors.New("malformed line")
	// ErrUnknownDeviceType marks a line whose device type is not accepted
	ErrUnknownDeviceType = errors.New("unknown device type")
	// ErrHighErrorRate is returned when too many lines of a file were rejected
	ErrHighErrorRate = errors.New("high error rate")
)

// ParseLine parses one input line. App ids that are not unsigned 32-bit
// integers are dropped; everything else that is wrong fails the line.
func ParseLine(line string) (*codec.DeviceApps, error) {
	parts := strings.Split(strings.TrimSpace(line), "\t")
	if len(parts) < 5 {
		return nil, fmt.Errorf("%w: expected 5 fields, got %d", ErrMalformedLine, len(parts))
	}

	devType, devID := parts[0], parts[1]
	if devType == "" || devID == "" {
		return nil, fmt.Errorf("%w: empty device type or id", ErrMalformedLine)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid latitude %q", ErrMalformedLine, parts[2])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid longitude %q", ErrMalformedLine, parts[3])
	}

	apps := make([]uint32, 0)
	for _, raw := range strings.Split(parts[4], ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
		if err != nil {
			continue
		}
		apps = append(apps, uint32(id))
	}

	return &codec.DeviceApps{
		Device: codec.Device{ID: devID, Type: devType},
		Lat:    codec.Float(lat),
		Lon:    codec.Float(lon),
		Apps:   apps,
	}, nil
}

// Stats counts the lines of one or more conversions
type Stats struct {
	Processed int // Non-blank lines read
	Errors    int // Lines rejected
}

// ErrorRate returns Errors / Processed, or 0 when nothing was processed
func (s Stats) ErrorRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Processed)
}

// Add accumulates other into s
func (s *Stats) Add(other Stats) {
	s.Processed += other.Processed
	s.Errors += other.Errors
}
