package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
	"github.com/tidwall/gjson"

	"github.com/ssargent/devapps/pkg/codec"
	"github.com/ssargent/devapps/pkg/storage"
	"github.com/ssargent/devapps/pkg/stream"
)

// fileExt is the extension of framed files in the data directory
const fileExt = ".pb.gz"

// Server holds the API server state
type Server struct {
	store   IRecordStore
	config  ServerConfig
	metrics *Metrics
	logger  zerolog.Logger
}

// NewServer creates a new API server
func NewServer(store IRecordStore, config ServerConfig, metrics *Metrics, logger zerolog.Logger) *Server {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{
		store:   store,
		config:  config,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

func (s *Server) filePath(id ksuid.KSUID) string {
	return filepath.Join(s.config.DataDir, id.String()+fileExt)
}

// parseFileID validates the {id} URL parameter. Only KSUIDs are accepted,
// so the id can never name a path outside the data directory.
func parseFileID(r *http.Request) (ksuid.KSUID, bool) {
	id, err := ksuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

// handleWriteFile accepts a JSON array of records and writes it as a new
// framed file. Unlike stream.WriteFile, which leaves the records before a
// failure on disk, an upload is all or nothing: on any write error the
// partial file is removed and no id is returned.
func (s *Server) handleWriteFile(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodyBytes+1))
	if err != nil {
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if int64(len(body)) > s.config.MaxBodyBytes {
		sendError(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	if !gjson.ValidBytes(body) {
		sendError(w, "Invalid JSON in request body", http.StatusBadRequest)
		return
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		sendError(w, "Request body should be a JSON array of records", http.StatusBadRequest)
		return
	}

	elems := doc.Array()
	records := make([]any, len(elems))
	for i, elem := range elems {
		records[i] = elem.Value()
	}

	id := ksuid.New()
	path := s.filePath(id)
	written, err := stream.WriteFile(path, stream.Slice(records), s.config.StreamOptions...)
	if err != nil {
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			s.logger.Warn().Err(removeErr).Str("path", path).Msg("failed to remove partial file")
		}

		var ve *codec.ValidationError
		if errors.As(err, &ve) {
			s.metrics.RecordValidationError(ve.Field)
			sendJSON(w, http.StatusBadRequest, APIResponse{Success: false, Error: ve.Reason, Field: ve.Field})
			return
		}
		if errors.Is(err, codec.ErrPayloadTooLarge) {
			sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error().Err(err).Str("path", path).Msg("failed to write file")
		sendError(w, "Failed to write file", http.StatusInternalServerError)
		return
	}

	s.metrics.RecordWrite(len(records), written)
	s.logger.Info().Str("id", id.String()).Int("records", len(records)).Int64("bytes", written).Msg("file written")
	sendSuccess(w, WriteResult{ID: id.String(), Bytes: written, Records: len(records)})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.config.DataDir)
	if err != nil && !os.IsNotExist(err) {
		sendError(w, "Failed to list files", http.StatusInternalServerError)
		return
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		id, err := ksuid.Parse(strings.TrimSuffix(name, fileExt))
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{ID: id.String(), Size: info.Size(), Created: id.Time().UTC()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	sendSuccess(w, files)
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFileID(r)
	if !ok {
		sendError(w, "Invalid file id", http.StatusBadRequest)
		return
	}

	records, err := stream.ReadFile(s.filePath(id), s.config.StreamOptions...)
	if err != nil {
		s.sendDecodeError(w, err)
		return
	}

	s.metrics.RecordRead(len(records))
	sendSuccess(w, records)
}

func (s *Server) handleLoadFile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, ok := parseFileID(r)
	if !ok {
		sendError(w, "Invalid file id", http.StatusBadRequest)
		return
	}

	stats, err := s.store.Load(r.Context(), s.filePath(id), s.config.StreamOptions...)
	s.metrics.RecordStoreOperation("load", err == nil, time.Since(start))
	if err != nil {
		s.sendDecodeError(w, err)
		return
	}

	s.metrics.RecordRead(stats.Records)
	s.updateStoreStats(r.Context())
	sendSuccess(w, stats)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	devType := chi.URLParam(r, "type")
	devID := chi.URLParam(r, "id")

	rec, err := s.store.Get(devType, devID)
	s.metrics.RecordStoreOperation("get", err == nil, time.Since(start))
	if errors.Is(err, storage.ErrNotFound) {
		sendError(w, "Device not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("type", devType).Str("id", devID).Msg("failed to get device")
		sendError(w, "Failed to get device", http.StatusInternalServerError)
		return
	}

	sendSuccess(w, rec)
}

// sendDecodeError maps a read failure to a response
func (s *Server) sendDecodeError(w http.ResponseWriter, err error) {
	kind, status := decodeErrorKind(err)
	if kind == "not_found" {
		sendError(w, "File not found", http.StatusNotFound)
		return
	}

	s.metrics.RecordDecodeError(kind)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("failed to read file")
		sendError(w, "Failed to read file", status)
		return
	}
	sendError(w, err.Error(), status)
}

func decodeErrorKind(err error) (string, int) {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "not_found", http.StatusNotFound
	case errors.Is(err, codec.ErrTruncatedFrame):
		return "truncated", http.StatusUnprocessableEntity
	case errors.Is(err, codec.ErrBadMagic):
		return "bad_magic", http.StatusUnprocessableEntity
	case errors.Is(err, codec.ErrUnknownMessageType):
		return "unknown_type", http.StatusUnprocessableEntity
	case errors.Is(err, codec.ErrSchemaDecode):
		return "schema", http.StatusUnprocessableEntity
	case errors.Is(err, codec.ErrValidation):
		return "validation", http.StatusUnprocessableEntity
	default:
		return "io", http.StatusInternalServerError
	}
}
