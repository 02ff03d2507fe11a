// Package jsonl reads and writes DeviceApps records as JSON lines.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"

	"github.com/ssargent/devapps/pkg/codec"
)

// MaxLineSize bounds a single input line
const MaxLineSize = 4 * 1024 * 1024

// ErrInvalidJSON is returned for a line that is not well-formed JSON
var ErrInvalidJSON = errors.New("invalid json")

// Source yields one value per non-blank input line. Objects come out as
// map[string]any; any other JSON value is passed through unchanged so the
// encoder can reject it.
type Source struct {
	scanner *bufio.Scanner
	line    int
	record  any
	err     error
}

// NewSource returns a Source reading from r
func NewSource(r io.Reader) *Source {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return &Source{scanner: scanner}
}

// Next advances to the next value
func (s *Source) Next() bool {
	if s.err != nil {
		return false
	}

	for s.scanner.Scan() {
		s.line++
		raw := s.scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		if !gjson.ValidBytes(raw) {
			s.err = fmt.Errorf("line %d: %w", s.line, ErrInvalidJSON)
			return false
		}

		s.record = gjson.ParseBytes(raw).Value()
		return true
	}

	if err := s.scanner.Err(); err != nil {
		s.err = fmt.Errorf("line %d: %w", s.line+1, err)
	}
	return false
}

// Record returns the current value
func (s *Source) Record() any {
	return s.record
}

// Err returns the error that stopped the source, if any
func (s *Source) Err() error {
	return s.err
}

// Line returns the number of the last line read
func (s *Source) Line() int {
	return s.line
}

// Encoder writes records as JSON lines
type Encoder struct {
	enc *json.Encoder
}

// NewEncoder returns an Encoder writing to w
func NewEncoder(w io.Writer) *Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Encoder{enc: enc}
}

// Encode writes one record followed by a newline
func (e *Encoder) Encode(rec *codec.DeviceApps) error {
	return e.enc.Encode(rec)
}
