// Package project builds the queryable index of one documentation root from
// its needs snapshot.
package project

import (
	"log/slog"
	"time"

	"needsls/internal/needs"
	"needsls/internal/paths"
	"needsls/internal/snapshot"
)

// Index is the derived, read-only view over one snapshot for one root.
// It is never mutated after Build; reloads replace it wholesale.
type Index struct {
	snapshotPath string
	srcDir       string
	version      string
	loadedAt     time.Time

	needs       *needs.Map
	types       []string
	docsPerType map[string][]string
	needsPerDoc map[string][]*needs.Need
	covered     map[string]bool
	files       []string
	warnings    []error
}

// Stats summarizes an Index.
type Stats struct {
	Needs       int `json:"needs" yaml:"needs"`
	Types       int `json:"types" yaml:"types"`
	Documents   int `json:"documents" yaml:"documents"`
	BackLinks   int `json:"backLinks" yaml:"backLinks"`
	Unlocatable int `json:"unlocatable" yaml:"unlocatable"`
}

// Build derives the type list, docs per type, needs per document and the
// covered file set from m. srcDir is the root source directory; when empty
// the index covers no files.
func Build(m *needs.Map, srcDir string) *Index {
	if m == nil {
		m = needs.NewMap()
	}
	idx := &Index{
		srcDir:      srcDir,
		loadedAt:    time.Now(),
		needs:       m,
		docsPerType: make(map[string][]string),
		needsPerDoc: make(map[string][]*needs.Need),
		covered:     make(map[string]bool),
	}

	for _, n := range m.All() {
		doc := n.Doc()

		docs, seen := idx.docsPerType[n.Type]
		if !seen {
			idx.types = append(idx.types, n.Type)
		}
		if !contains(docs, doc) {
			docs = append(docs, doc)
		}
		idx.docsPerType[n.Type] = docs

		idx.needsPerDoc[doc] = append(idx.needsPerDoc[doc], n)

		if srcDir != "" && n.Locatable() {
			file := paths.DocPath(srcDir, doc)
			if !idx.covered[file] {
				idx.covered[file] = true
				idx.files = append(idx.files, file)
			}
		}
	}

	return idx
}

// Load runs the full pipeline for one root: read the snapshot, inherit
// doctypes through parent chains, compute back-links and build the index.
// Parent resolution problems are logged and leave the affected needs
// unlocatable; they do not fail the load.
func Load(snapshotPath, srcDir string, logger *slog.Logger) (*Index, error) {
	res, err := snapshot.Load(snapshotPath, logger)
	if err != nil {
		return nil, err
	}

	warnings := res.Warnings
	for _, problem := range needs.ResolveParents(res.Needs) {
		if logger != nil {
			logger.Error("Parent resolution failed", "path", snapshotPath, "error", problem.Error())
		}
		warnings = append(warnings, problem)
	}
	needs.ComputeBackLinks(res.Needs)

	idx := Build(res.Needs, srcDir)
	idx.snapshotPath = snapshotPath
	idx.version = res.Version
	idx.warnings = warnings
	return idx, nil
}

// Warnings returns the problems found while loading: schema warnings from
// the snapshot and parent resolution failures.
func (idx *Index) Warnings() []error {
	return idx.warnings
}

// SnapshotPath returns the snapshot the index was loaded from.
func (idx *Index) SnapshotPath() string { return idx.snapshotPath }

// SrcDir returns the root source directory.
func (idx *Index) SrcDir() string { return idx.srcDir }

// Version returns the snapshot version the needs were taken from.
func (idx *Index) Version() string { return idx.version }

// LoadedAt returns when the index was built.
func (idx *Index) LoadedAt() time.Time { return idx.loadedAt }

// Needs returns the underlying needs map.
func (idx *Index) Needs() *needs.Map { return idx.needs }

// Need looks a need up by id.
func (idx *Index) Need(id string) (*needs.Need, bool) {
	if idx == nil || id == "" {
		return nil, false
	}
	return idx.needs.Get(id)
}

// Types returns the distinct need types in first-seen order.
func (idx *Index) Types() []string {
	out := make([]string, len(idx.types))
	copy(out, idx.types)
	return out
}

// HasType reports whether any need has type t.
func (idx *Index) HasType(t string) bool {
	_, ok := idx.docsPerType[t]
	return ok
}

// DocsForType returns the distinct documents containing needs of type t.
func (idx *Index) DocsForType(t string) []string {
	docs := idx.docsPerType[t]
	out := make([]string, len(docs))
	copy(out, docs)
	return out
}

// NeedsInDoc returns the needs of a document identifier in snapshot order.
func (idx *Index) NeedsInDoc(doc string) []*needs.Need {
	return idx.needsPerDoc[doc]
}

// HasDoc reports whether doc is a known document identifier.
func (idx *Index) HasDoc(doc string) bool {
	_, ok := idx.needsPerDoc[doc]
	return ok
}

// Files returns the normalized absolute paths of all covered documents.
func (idx *Index) Files() []string {
	out := make([]string, len(idx.files))
	copy(out, idx.files)
	return out
}

// Covers reports whether the document at path belongs to this root.
func (idx *Index) Covers(path string) bool {
	if idx == nil || path == "" {
		return false
	}
	return idx.covered[paths.Normalize(path)]
}

// DocPath returns the absolute source path of n's document. ok is false
// when the need is not locatable or the root has no source directory.
func (idx *Index) DocPath(n *needs.Need) (string, bool) {
	if n == nil || idx.srcDir == "" || !n.Locatable() {
		return "", false
	}
	return paths.DocPath(idx.srcDir, n.Doc()), true
}

// Stats computes summary counts.
func (idx *Index) Stats() Stats {
	s := Stats{
		Needs:     idx.needs.Len(),
		Types:     len(idx.types),
		Documents: len(idx.needsPerDoc),
	}
	for _, n := range idx.needs.All() {
		s.BackLinks += len(n.BkLinks)
		if !n.Locatable() {
			s.Unlocatable++
		}
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
