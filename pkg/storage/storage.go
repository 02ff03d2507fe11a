// Package storage keeps the latest DeviceApps record per device in a
// pebble key-value store. Keys are "<type>\x00<id>"; values are the record's
// protobuf payload. Device types may not contain NUL, so a key always
// splits back into the device it was built from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog"

	"github.com/ssargent/devapps/pkg/codec"
	"github.com/ssargent/devapps/pkg/stream"
)

// DefaultBatchSize is the number of records committed at once by Load
const DefaultBatchSize = 1000

// ErrNotFound is returned by Get for an unknown device
var ErrNotFound = errors.New("device not found")

// Storage is a pebble-backed record store
type Storage struct {
	db        *pebble.DB
	batchSize int
	logger    zerolog.Logger
}

// Option adjusts a Storage
type Option func(*Storage)

// WithBatchSize sets the number of records Load commits at once
func WithBatchSize(n int) Option {
	return func(s *Storage) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLogger sets the store logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Storage) { s.logger = l }
}

// Open opens (or creates) the store in dir
func Open(dir string, opts ...Option) (*Storage, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", dir, err)
	}

	s := &Storage{db: db, batchSize: DefaultBatchSize, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// keySep ends the device type in a key
const keySep = 0x00

// Key returns the store key of a device
func Key(devType, devID string) []byte {
	key := make([]byte, 0, len(devType)+1+len(devID))
	key = append(key, devType...)
	key = append(key, keySep)
	return append(key, devID...)
}

// storable reports whether devType can appear in a key
func storable(devType string) bool {
	return strings.IndexByte(devType, keySep) < 0
}

func typePrefix(devType string) []byte {
	return append([]byte(devType), keySep)
}

// encode validates rec and returns its key and payload
func encode(rec *codec.DeviceApps) ([]byte, []byte, error) {
	payload, err := codec.Marshal(rec)
	if err != nil {
		return nil, nil, err
	}
	if !storable(rec.Device.Type) {
		return nil, nil, &codec.ValidationError{Field: "device.type", Reason: "device type contains NUL"}
	}
	return Key(rec.Device.Type, rec.Device.ID), payload, nil
}

// Put stores rec, replacing any earlier record of the same device
func (s *Storage) Put(rec *codec.DeviceApps) error {
	key, payload, err := encode(rec)
	if err != nil {
		return err
	}
	return s.db.Set(key, payload, pebble.NoSync)
}

// Get returns the record stored for a device
func (s *Storage) Get(devType, devID string) (*codec.DeviceApps, error) {
	if !storable(devType) {
		return nil, fmt.Errorf("%w: %q:%s", ErrNotFound, devType, devID)
	}
	data, closer, err := s.db.Get(Key(devType, devID))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s:%s", ErrNotFound, devType, devID)
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// Unmarshal copies out of data, which is only valid until closer.Close
	return codec.Unmarshal(data)
}

// Delete removes the record of a device
func (s *Storage) Delete(devType, devID string) error {
	if !storable(devType) {
		return nil
	}
	return s.db.Delete(Key(devType, devID), pebble.NoSync)
}

// Each calls fn for every stored record whose device type is devType, or
// for every record when devType is empty, in key order.
func (s *Storage) Each(ctx context.Context, devType string, fn func(*codec.DeviceApps) error) error {
	if !storable(devType) {
		return nil
	}
	opts := &pebble.IterOptions{}
	if devType != "" {
		prefix := typePrefix(devType)
		opts.LowerBound = prefix
		opts.UpperBound = prefixEnd(prefix)
	}

	iter, err := s.db.NewIter(opts)
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := codec.Unmarshal(iter.Value())
		if err != nil {
			return fmt.Errorf("corrupt record %q: %w", iter.Key(), err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Count returns the number of stored records
func (s *Storage) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.Each(ctx, "", func(*codec.DeviceApps) error {
		n++
		return nil
	})
	return n, err
}

func prefixEnd(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// LoadStats summarizes a Load
type LoadStats struct {
	Records int `json:"records"`
	Batches int `json:"batches"`
}

// Load streams a framed file into the store, committing in batches. A
// decode failure stops the load; batches committed before it stay.
func (s *Storage) Load(ctx context.Context, path string, opts ...stream.Option) (LoadStats, error) {
	var stats LoadStats

	config := stream.ReaderConfig{FilePath: path}
	for _, opt := range opts {
		opt(&config.Options)
	}

	r, err := stream.NewReader(config)
	if err != nil {
		return stats, err
	}
	defer r.Close()

	batch := s.db.NewBatch()
	defer func() { _ = batch.Close() }()
	pending := 0

	commit := func() error {
		if pending == 0 {
			return nil
		}
		if err := batch.Commit(pebble.Sync); err != nil {
			return fmt.Errorf("failed to commit batch: %w", err)
		}
		stats.Records += pending
		stats.Batches++
		pending = 0
		closeErr := batch.Close()
		batch = s.db.NewBatch()
		return closeErr
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, err
		}

		key, payload, err := encode(rec)
		if err != nil {
			return stats, err
		}
		if err := batch.Set(key, payload, nil); err != nil {
			return stats, err
		}
		pending++

		if pending >= s.batchSize {
			if err := commit(); err != nil {
				return stats, err
			}
		}
	}

	if err := commit(); err != nil {
		return stats, err
	}

	s.logger.Info().
		Str("path", path).
		Int("records", stats.Records).
		Int("batches", stats.Batches).
		Msg("loaded file")
	return stats, nil
}

// Close closes the store
func (s *Storage) Close() error {
	return s.db.Close()
}
