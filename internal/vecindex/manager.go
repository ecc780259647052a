package vecindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/oppmatch/engine/internal/apperrors"
)

// ItemSource is the source of truth the index is (re)built from.
type ItemSource interface {
	// ListEmbedded returns every item that has an embedding.
	ListEmbedded(ctx context.Context) ([]Item, error)
}

// Manager owns the live index: loading the persisted artifact at startup,
// rebuilding from source when the artifact is absent or corrupt, and swapping
// in rebuilt indexes without disturbing concurrent searches.
type Manager struct {
	path   string
	dim    int
	source ItemSource
	logger *slog.Logger

	mu  sync.RWMutex
	idx *Index
}

// ManagerParams configures a Manager.
type ManagerParams struct {
	// ArtifactPath is where the index artifact lives on disk.
	ArtifactPath string
	// Dim is the system embedding dimension D.
	Dim    int
	Source ItemSource
	Logger *slog.Logger
}

// NewManager creates a Manager. Call Load before serving searches.
func NewManager(p ManagerParams) *Manager {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		path:   p.ArtifactPath,
		dim:    p.Dim,
		source: p.Source,
		logger: logger,
		idx:    Empty(p.Dim),
	}
}

// Load reads the persisted artifact, rebuilding from source when it is absent
// or corrupt (self-healing). When the source of truth itself has no valid
// embeddings, Load installs an explicitly empty index so search degrades to
// "no results" instead of crashing. Only a source read failure is an error.
func (m *Manager) Load(ctx context.Context) error {
	idx, err := LoadArtifact(m.path)
	if err == nil && idx.Dim() == m.dim {
		m.swap(idx)
		m.logger.Info("vector index loaded", "path", m.path, "items", idx.Len(), "dim", idx.Dim())

		return nil
	}

	if err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("vector index artifact unreadable, rebuilding", "path", m.path, "error", err)
	} else if err == nil {
		m.logger.Warn("vector index artifact has stale dimension, rebuilding",
			"path", m.path, "artifact_dim", idx.Dim(), "expected_dim", m.dim)
	}

	if err := m.Rebuild(ctx); err != nil {
		if errors.Is(err, apperrors.ErrIndexBuild) {
			m.swap(Empty(m.dim))
			m.logger.Warn("no valid embeddings in source; serving empty index", "error", err)

			return nil
		}

		return err
	}

	return nil
}

// Rebuild lists items from source, builds a fresh index, persists the
// artifact atomically, and swaps the new index in. Rebuilding is rare and
// exclusive with respect to other rebuilds; searches keep running against the
// old index until the swap. The operation is idempotent: the same source data
// yields the same index content.
func (m *Manager) Rebuild(ctx context.Context) error {
	items, err := m.source.ListEmbedded(ctx)
	if err != nil {
		return apperrors.NewStorageError("list embedded items", err)
	}

	idx, err := Build(m.dim, items, m.logger)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	if err := SaveArtifact(m.path, idx); err != nil {
		// Keep serving the previous index; artifact and memory must agree.
		return apperrors.NewStorageError("persist index artifact", err)
	}

	m.swap(idx)
	m.logger.Info("vector index rebuilt", "items", idx.Len(), "dim", idx.Dim())

	return nil
}

// Search runs a filtered nearest-neighbor search against the current index.
// The index is shared read-only; concurrent searches never block each other.
func (m *Manager) Search(ctx context.Context, query []float32, topK int, filter func(itemID string) bool) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search cancelled: %w", err)
	}

	m.mu.RLock()
	idx := m.idx
	m.mu.RUnlock()

	results, err := idx.Search(query, topK, filter)
	if err != nil {
		return nil, err
	}

	if len(results) < topK {
		m.logger.Debug("search shortfall after filtering",
			"requested", topK, "returned", len(results), "indexed", idx.Len())
	}

	return results, nil
}

// Stats returns the current item count and dimension.
func (m *Manager) Stats() (count, dim int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.idx.Len(), m.idx.Dim()
}

func (m *Manager) swap(idx *Index) {
	m.mu.Lock()
	m.idx = idx
	m.mu.Unlock()
}
