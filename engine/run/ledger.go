package run

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/consentforge/consentforge/engine/core"
	"github.com/consentforge/consentforge/engine/index"
	"github.com/consentforge/consentforge/engine/retrieval"
	"github.com/consentforge/consentforge/pkg/config"
)

// Run statuses. A run is terminal once it leaves StatusRunning.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusRefined   = "refined"
	StatusFailed    = "failed"
)

const runsRegistry = "runs.json"

// Meta is the run-level record kept in meta.json and the runs registry.
type Meta struct {
	RunID      core.ID    `json:"run_id"`
	DocumentID string     `json:"document_id"`
	IndexID    core.ID    `json:"index_id"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// SectionArtifact is one generated section. Warnings carry non-fatal
// conditions such as missing citations or a failed generation attempt.
type SectionArtifact struct {
	Name      string         `json:"name"`
	DraftText string         `json:"draft_text"`
	FinalText string         `json:"final_text"`
	Warnings  []string       `json:"warnings"`
	Facts     map[string]any `json:"facts,omitempty"`
}

// Provenance is the per-hit slice of a snippet kept in run logs.
type Provenance struct {
	ChunkID     string  `json:"chunk_id"`
	Page        int     `json:"page"`
	SectionPath string  `json:"section_path"`
	Heading     string  `json:"heading_norm"`
	Score       float64 `json:"score"`
}

// Logs is the consolidated provenance view persisted as logs.json.
type Logs struct {
	RunID          core.ID                 `json:"run_id"`
	DocumentID     string                  `json:"document_id"`
	IndexID        core.ID                 `json:"index_id"`
	EmbeddingModel string                  `json:"embedding_model"`
	Sections       map[string][]Provenance `json:"sections"`
	ProcedureFacts map[string]any          `json:"procedure_facts"`
}

// Ledger owns the run directory tree and the runs registry. Section writes
// are last-write-wins so refinement can overwrite first-pass artifacts.
type Ledger struct {
	cfg *config.Config
}

// NewLedger wires a ledger over the configured data directory.
func NewLedger(cfg *config.Config) *Ledger {
	return &Ledger{cfg: cfg}
}

// Create allocates a run in StatusRunning and registers it.
func (l *Ledger) Create(documentID string, indexID core.ID) (Meta, error) {
	meta := Meta{
		RunID:      core.MustNewID(core.PrefixRun),
		DocumentID: documentID,
		IndexID:    indexID,
		Status:     StatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	if err := core.WriteJSONFile(l.metaPath(meta.RunID), meta); err != nil {
		return Meta{}, fmt.Errorf("run: create %s: %w", meta.RunID, err)
	}
	if err := l.updateRegistry(meta); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

// Read returns the run meta, or ErrRunNotFound.
func (l *Ledger) Read(runID core.ID) (Meta, error) {
	var meta Meta
	if err := core.ReadJSONFile(l.metaPath(runID), &meta); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Meta{}, core.ErrRunNotFound
		}
		return Meta{}, fmt.Errorf("run: read %s: %w", runID, err)
	}
	return meta, nil
}

// WriteSectionArtifact persists the snippets and the section body for one
// section. Repeated writes for the same name overwrite the prior artifact.
func (l *Ledger) WriteSectionArtifact(
	runID core.ID,
	artifact SectionArtifact,
	hits []retrieval.Hit,
) error {
	if _, err := l.Read(runID); err != nil {
		return err
	}
	if artifact.Warnings == nil {
		artifact.Warnings = []string{}
	}
	dir := l.runDir(runID)
	if err := core.WriteJSONFile(filepath.Join(dir, "snippets", artifact.Name+".json"), hits); err != nil {
		return fmt.Errorf("run: write snippets %s/%s: %w", runID, artifact.Name, err)
	}
	if err := core.WriteJSONFile(filepath.Join(dir, "sections", artifact.Name+".json"), artifact); err != nil {
		return fmt.Errorf("run: write section %s/%s: %w", runID, artifact.Name, err)
	}
	return nil
}

// ReadSection returns one section artifact, or ErrRunNotFound when either
// the run or the section file is missing.
func (l *Ledger) ReadSection(runID core.ID, name string) (SectionArtifact, error) {
	var artifact SectionArtifact
	path := filepath.Join(l.runDir(runID), "sections", name+".json")
	if err := core.ReadJSONFile(path, &artifact); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SectionArtifact{}, core.ErrRunNotFound
		}
		return SectionArtifact{}, fmt.Errorf("run: read section %s/%s: %w", runID, name, err)
	}
	return artifact, nil
}

// ReadSnippets returns the persisted hits for one section. Missing files
// yield an empty slice so partial runs stay readable.
func (l *Ledger) ReadSnippets(runID core.ID, name string) ([]retrieval.Hit, error) {
	var hits []retrieval.Hit
	path := filepath.Join(l.runDir(runID), "snippets", name+".json")
	if err := core.ReadJSONFile(path, &hits); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("run: read snippets %s/%s: %w", runID, name, err)
	}
	return hits, nil
}

// ListSections returns the section names with artifacts, sorted.
func (l *Ledger) ListSections(runID core.ID) ([]string, error) {
	if _, err := l.Read(runID); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(l.runDir(runID), "sections"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("run: list sections %s: %w", runID, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// WriteRefinementQueries persists the follow-up queries asked per section.
func (l *Ledger) WriteRefinementQueries(runID core.ID, queries map[string][]string) error {
	path := filepath.Join(l.runDir(runID), "refinement", "queries.json")
	if err := core.WriteJSONFile(path, queries); err != nil {
		return fmt.Errorf("run: write refinement queries %s: %w", runID, err)
	}
	return nil
}

// Finalize moves the run to a terminal status and stamps the finish time.
func (l *Ledger) Finalize(runID core.ID, status string) (Meta, error) {
	meta, err := l.Read(runID)
	if err != nil {
		return Meta{}, err
	}
	now := time.Now().UTC()
	meta.Status = status
	meta.FinishedAt = &now
	if err := core.WriteJSONFile(l.metaPath(runID), meta); err != nil {
		return Meta{}, fmt.Errorf("run: finalize %s: %w", runID, err)
	}
	if err := l.updateRegistry(meta); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

// BuildLogs assembles the consolidated provenance view and persists it as
// logs.json. Partial runs produce partial logs rather than an error.
func (l *Ledger) BuildLogs(runID core.ID) (Logs, error) {
	meta, err := l.Read(runID)
	if err != nil {
		return Logs{}, err
	}
	logs := Logs{
		RunID:          meta.RunID,
		DocumentID:     meta.DocumentID,
		IndexID:        meta.IndexID,
		Sections:       map[string][]Provenance{},
		ProcedureFacts: map[string]any{},
	}
	var idxMeta index.Meta
	idxMetaPath := filepath.Join(l.cfg.Data.IndexesDir(), meta.IndexID.String(), "meta.json")
	if readErr := core.ReadJSONFile(idxMetaPath, &idxMeta); readErr == nil {
		logs.EmbeddingModel = idxMeta.EmbedModel
	}
	names, err := l.sectionNamesFromSnippets(runID)
	if err != nil {
		return Logs{}, err
	}
	for _, name := range names {
		hits, readErr := l.ReadSnippets(runID, name)
		if readErr != nil {
			return Logs{}, readErr
		}
		prov := make([]Provenance, 0, len(hits))
		for _, h := range hits {
			prov = append(prov, Provenance{
				ChunkID:     h.ChunkID,
				Page:        h.Page,
				SectionPath: h.SectionPath,
				Heading:     h.Heading,
				Score:       h.Score,
			})
		}
		logs.Sections[name] = prov
	}
	if proc, readErr := l.ReadSection(runID, "Procedures"); readErr == nil && len(proc.Facts) > 0 {
		logs.ProcedureFacts = proc.Facts
	}
	if err := core.WriteJSONFile(filepath.Join(l.runDir(runID), "logs.json"), logs); err != nil {
		return Logs{}, fmt.Errorf("run: write logs %s: %w", runID, err)
	}
	return logs, nil
}

func (l *Ledger) sectionNamesFromSnippets(runID core.ID) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(l.runDir(runID), "snippets"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("run: list snippets %s: %w", runID, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

func (l *Ledger) runDir(runID core.ID) string {
	return filepath.Join(l.cfg.Data.RunsDir(), runID.String())
}

func (l *Ledger) metaPath(runID core.ID) string {
	return filepath.Join(l.runDir(runID), "meta.json")
}

func (l *Ledger) registryPath() string {
	return filepath.Join(l.cfg.Data.DBDir(), runsRegistry)
}

func (l *Ledger) updateRegistry(meta Meta) error {
	entries := map[string]Meta{}
	if err := core.ReadJSONFile(l.registryPath(), &entries); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("run: read registry: %w", err)
	}
	entries[meta.RunID.String()] = meta
	if err := core.WriteJSONFile(l.registryPath(), entries); err != nil {
		return fmt.Errorf("run: write registry: %w", err)
	}
	return nil
}

// List returns all registered runs, newest first.
func (l *Ledger) List() ([]Meta, error) {
	entries := map[string]Meta{}
	if err := core.ReadJSONFile(l.registryPath(), &entries); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("run: read registry: %w", err)
	}
	list := make([]Meta, 0, len(entries))
	for _, meta := range entries {
		list = append(list, meta)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].StartedAt.Equal(list[j].StartedAt) {
			return list[i].RunID > list[j].RunID
		}
		return list[i].StartedAt.After(list[j].StartedAt)
	})
	return list, nil
}
