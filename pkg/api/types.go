package api

import (
	"context"
	"time"

	"github.com/ssargent/devapps/pkg/codec"
	"github.com/ssargent/devapps/pkg/storage"
	"github.com/ssargent/devapps/pkg/stream"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Field   string      `json:"field,omitempty"` // Set for record validation failures
}

// FileInfo describes a framed file held by the service
type FileInfo struct {
	ID      string    `json:"id"`
	Size    int64     `json:"size"` // Compressed size on disk
	Created time.Time `json:"created"`
}

// WriteResult is returned after a file has been written
type WriteResult struct {
	ID      string `json:"id"`
	Bytes   int64  `json:"bytes"` // Uncompressed frame bytes
	Records int    `json:"records"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port          int
	Bind          string
	APIKey        string // Empty disables authentication
	DataDir       string // Directory of framed files
	MaxBodyBytes  int64  // Upload limit; 0 selects DefaultMaxBodyBytes
	StreamOptions []stream.Option
}

// DefaultMaxBodyBytes limits the size of an upload
const DefaultMaxBodyBytes = 64 << 20

// IRecordStore defines the record store operations used by the server
type IRecordStore interface {
	Get(devType, devID string) (*codec.DeviceApps, error)
	Load(ctx context.Context, path string, opts ...stream.Option) (storage.LoadStats, error)
	Count(ctx context.Context) (int, error)
}
