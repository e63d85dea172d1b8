package pipeline

import (
	"context"
	"time"

	"github.com/tuushin/crmsync/backend-go/internal/config"
	"github.com/tuushin/crmsync/backend-go/internal/crm"
)

// Fetcher is the upstream page source; *crm.Client implements it.
type Fetcher interface {
	CheckCredentials() error
	FetchPages(ctx context.Context, q crm.Query, fn func(*crm.Page) error) error
}

// Uploader receives raw page bodies for archiving; storage.ObjectStorage satisfies it.
type Uploader interface {
	UploadObject(ctx context.Context, key string, data []byte) error
}

// Clock returns the current time.
type Clock func() time.Time

// PipelineConfig holds the tunables of a sync run
type PipelineConfig struct {
	ChunkSize          int            // Records per upsert transaction
	DefaultFilterTypes []int          // Used when a request names no filter types
	DefaultWindowDays  int            // Trailing window when a request names no dates
	KeepUnidentified   bool           // Persist records without upstream id under a generated id
	Location           *time.Location // Calendar used for date windows and upstream dates
}

const (
	defaultChunkSize  = 25
	defaultWindowDays = 30
)

var defaultFilterTypes = []int{1, 2}

// DefaultPipelineConfig returns sensible defaults
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ChunkSize:          defaultChunkSize,
		DefaultFilterTypes: append([]int(nil), defaultFilterTypes...),
		DefaultWindowDays:  defaultWindowDays,
		Location:           time.UTC,
	}
}

// ConfigFromSettings maps application settings onto a PipelineConfig.
func ConfigFromSettings(cfg config.SyncConfig) PipelineConfig {
	pc := DefaultPipelineConfig()
	if cfg.ChunkSize > 0 {
		pc.ChunkSize = cfg.ChunkSize
	}
	if len(cfg.DefaultFilterTypes) > 0 {
		pc.DefaultFilterTypes = append([]int(nil), cfg.DefaultFilterTypes...)
	}
	if cfg.DefaultWindowDays > 0 {
		pc.DefaultWindowDays = cfg.DefaultWindowDays
	}
	pc.KeepUnidentified = cfg.KeepUnidentified
	pc.Location = LoadLocation(cfg.Timezone)
	return pc
}

// LoadLocation resolves a zone name, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
