package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/consentforge/consentforge/engine/chunk"
	"github.com/consentforge/consentforge/engine/core"
	"github.com/consentforge/consentforge/engine/dense"
	"github.com/consentforge/consentforge/engine/extract"
	"github.com/consentforge/consentforge/engine/sparse"
	"github.com/consentforge/consentforge/pkg/config"
	"github.com/consentforge/consentforge/pkg/logger"
)

const (
	metaFile    = "meta.json"
	chunksFile  = "chunks.json"
	bm25File    = "bm25.json"
	vectorsFile = "vectors.json"
	registry    = "indexes.json"
)

// Meta describes one built index. Indexes are append-only: rebuilding the
// same document allocates a fresh id and leaves prior indexes untouched.
type Meta struct {
	IndexID      core.ID   `json:"index_id"`
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name"`
	CreatedAt    time.Time `json:"created_at"`
	ChunkCount   int       `json:"chunk_count"`
	PageCount    int       `json:"page_count"`
	EmbedModel   string    `json:"embed_model"`
}

// Snapshot bundles every artifact of a loaded index.
type Snapshot struct {
	Meta   Meta
	Chunks []chunk.Chunk
	Sparse *sparse.Model
	Store  *dense.Store
}

// Manager builds, persists and loads indexes under the data directory.
type Manager struct {
	cfg      *config.Config
	embedder dense.Embedder
	builder  *chunk.Builder
}

// NewManager wires a manager from config and an embedding adapter.
func NewManager(cfg *config.Config, embedder dense.Embedder) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("index: config is required")
	}
	if embedder == nil {
		return nil, errors.New("index: embedder is required")
	}
	builder, err := chunk.NewBuilder(cfg.Chunking.Size, cfg.Chunking.Overlap, cfg.Chunking.MinChars)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	return &Manager{cfg: cfg, embedder: embedder, builder: builder}, nil
}

// Build chunks the extracted pages, fits the sparse model, embeds every
// chunk and persists the artifacts. Nothing is left on disk if any stage
// fails; a half-built index is never observable.
func (m *Manager) Build(
	ctx context.Context,
	documentID, documentName string,
	pages []extract.Page,
) (Meta, error) {
	log := logger.FromContext(ctx)
	chunks, err := m.builder.Build(documentID, pages)
	if err != nil {
		return Meta{}, err
	}
	corpus := make([]string, len(chunks))
	for i := range chunks {
		corpus[i] = chunks[i].Heading + "\n" + chunks[i].Text
	}
	model := sparse.Build(corpus, m.cfg.Sparse.K1, m.cfg.Sparse.B)
	store, err := dense.BuildStore(ctx, m.embedder, chunks)
	if err != nil {
		return Meta{}, err
	}
	meta := Meta{
		IndexID:      core.MustNewID(core.PrefixIndex),
		DocumentID:   documentID,
		DocumentName: documentName,
		CreatedAt:    time.Now().UTC(),
		ChunkCount:   len(chunks),
		PageCount:    len(pages),
		EmbedModel:   m.cfg.Embedder.Model,
	}
	dir := m.indexDir(meta.IndexID)
	if err := m.persist(dir, meta, chunks, model, store); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.Warn("failed to clean up partial index", "dir", dir, "error", rmErr)
		}
		return Meta{}, fmt.Errorf("index: persist %s: %w", meta.IndexID, err)
	}
	if err := m.register(meta); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.Warn("failed to clean up partial index", "dir", dir, "error", rmErr)
		}
		return Meta{}, fmt.Errorf("index: register %s: %w", meta.IndexID, err)
	}
	log.Info("index built",
		"index_id", meta.IndexID,
		"document_id", documentID,
		"chunks", meta.ChunkCount,
		"pages", meta.PageCount)
	return meta, nil
}

func (m *Manager) persist(
	dir string,
	meta Meta,
	chunks []chunk.Chunk,
	model *sparse.Model,
	store *dense.Store,
) error {
	if err := core.WriteJSONFile(filepath.Join(dir, metaFile), meta); err != nil {
		return err
	}
	if err := core.WriteJSONFile(filepath.Join(dir, chunksFile), chunks); err != nil {
		return err
	}
	if err := sparse.Save(filepath.Join(dir, bm25File), model); err != nil {
		return err
	}
	return store.Save(filepath.Join(dir, vectorsFile))
}

// Load assembles a full snapshot for indexID, or ErrIndexNotFound.
func (m *Manager) Load(indexID core.ID) (*Snapshot, error) {
	dir := m.indexDir(indexID)
	var meta Meta
	if err := core.ReadJSONFile(filepath.Join(dir, metaFile), &meta); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.ErrIndexNotFound
		}
		return nil, fmt.Errorf("index: load meta %s: %w", indexID, err)
	}
	var chunks []chunk.Chunk
	if err := core.ReadJSONFile(filepath.Join(dir, chunksFile), &chunks); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.ErrIndexNotFound
		}
		return nil, fmt.Errorf("index: load chunks %s: %w", indexID, err)
	}
	model, err := sparse.Load(filepath.Join(dir, bm25File))
	if err != nil {
		return nil, err
	}
	store, err := dense.LoadStore(filepath.Join(dir, vectorsFile), m.embedder)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Meta: meta, Chunks: chunks, Sparse: model, Store: store}, nil
}

// LatestForDocument returns the most recently built index for documentID.
func (m *Manager) LatestForDocument(documentID string) (Meta, error) {
	entries, err := m.readRegistry()
	if err != nil {
		return Meta{}, err
	}
	var latest Meta
	found := false
	for _, meta := range entries {
		if meta.DocumentID != documentID {
			continue
		}
		// ksuid ids sort by creation time, which breaks timestamp ties.
		if !found || meta.CreatedAt.After(latest.CreatedAt) ||
			(meta.CreatedAt.Equal(latest.CreatedAt) && meta.IndexID > latest.IndexID) {
			latest = meta
			found = true
		}
	}
	if !found {
		return Meta{}, core.ErrIndexNotFound
	}
	return latest, nil
}

// List returns all registered indexes, newest first.
func (m *Manager) List() ([]Meta, error) {
	entries, err := m.readRegistry()
	if err != nil {
		return nil, err
	}
	list := make([]Meta, 0, len(entries))
	for _, meta := range entries {
		list = append(list, meta)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].IndexID < list[j].IndexID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (m *Manager) indexDir(indexID core.ID) string {
	return filepath.Join(m.cfg.Data.IndexesDir(), indexID.String())
}

func (m *Manager) registryPath() string {
	return filepath.Join(m.cfg.Data.DBDir(), registry)
}

func (m *Manager) readRegistry() (map[string]Meta, error) {
	entries := map[string]Meta{}
	if err := core.ReadJSONFile(m.registryPath(), &entries); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("index: read registry: %w", err)
	}
	return entries, nil
}

func (m *Manager) register(meta Meta) error {
	entries, err := m.readRegistry()
	if err != nil {
		return err
	}
	entries[meta.IndexID.String()] = meta
	return core.WriteJSONFile(m.registryPath(), entries)
}
