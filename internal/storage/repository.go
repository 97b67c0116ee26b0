// Package storage keeps a history of generation runs and their artifacts so
// that a rerun can skip combinations it has already produced.
//
// Backends register themselves by kind from an init function; import
// prefill/internal/storage/all to get every backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrRunNotFound is returned by MarkSubmitted for an unknown run id.
var ErrRunNotFound = errors.New("storage: run not found")

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
}

// Run is one invocation of the generator.
type Run struct {
	ID           string
	Job          string
	Mode         string
	Source       string
	Combinations int
	CreatedAt    time.Time

	// Set by MarkSubmitted.
	BatchID     string
	SubmittedAt time.Time
}

// ArtifactRow is one generated link or letter request.
type ArtifactRow struct {
	// Fingerprint identifies the combination; see output.Fingerprint.
	Fingerprint string
	Index       int
	// Artifact is the link URL, or the JSON-encoded letter parameters.
	Artifact string
	Label    string
}

// Repository is the backend-agnostic run store. Each backend implements
// artifact dedupe in its own idiom (ON CONFLICT, INSERT OR IGNORE, NOT EXISTS).
type Repository interface {
	// Close releases backend resources. Call once.
	Close()

	// EnsureTables creates the run and artifact tables if they are missing.
	EnsureTables(ctx context.Context) error

	SaveRun(ctx context.Context, run Run) error

	// InsertArtifacts stores rows for runID, skipping any whose fingerprint is
	// already stored (by this or an earlier run). It returns the number of rows
	// actually inserted.
	InsertArtifacts(ctx context.Context, runID string, rows []ArtifactRow) (int64, error)

	// MarkSubmitted records the batch id the letter backend returned for runID.
	MarkSubmitted(ctx context.Context, runID, batchID string) error

	// ListArtifacts returns the rows stored under runID ordered by index.
	ListArtifacts(ctx context.Context, runID string) ([]ArtifactRow, error)
}

// Factory opens a backend.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. It panics on an empty kind,
// a nil factory or a duplicate registration.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds lists the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}
