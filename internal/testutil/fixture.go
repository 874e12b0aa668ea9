// Package testutil provides fixtures for tests: temporary documentation
// roots with a needs snapshot and rst sources.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// Need describes one need written into a fixture snapshot. Fields left
// empty are omitted from the JSON.
type Need struct {
	ID         string
	Title      string
	Desc       string
	Type       string
	DocName    string
	DocType    string
	Status     string
	ParentNeed string
	Links      []string
	Extra      map[string]any
}

// Root is a temporary documentation root.
type Root struct {
	// Dir is the absolute path of the root directory.
	Dir string

	// SrcDir is the source directory documents are written to.
	SrcDir string

	// SnapshotPath is where WriteSnapshot puts needs.json.
	SnapshotPath string
}

// NewRoot creates an empty documentation root under t.TempDir().
func NewRoot(t *testing.T) *Root {
	t.Helper()

	dir := t.TempDir()
	src := filepath.Join(dir, "docs")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatalf("Failed to create source dir: %v", err)
	}

	return &Root{
		Dir:          dir,
		SrcDir:       src,
		SnapshotPath: filepath.Join(dir, "build", "needs.json"),
	}
}

// WriteSnapshot writes a single-version snapshot holding needs in order.
func (r *Root) WriteSnapshot(t *testing.T, list ...Need) {
	t.Helper()
	WriteFile(t, r.SnapshotPath, SnapshotJSON(t, "1.0", list...))
}

// WriteDoc writes a source document relative to SrcDir and returns its
// absolute path.
func (r *Root) WriteDoc(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(r.SrcDir, filepath.FromSlash(rel))
	WriteFile(t, path, []byte(content))
	return path
}

// SnapshotJSON renders a snapshot document. Needs keep their order in the
// output so loaders relying on key order can be tested.
func SnapshotJSON(t *testing.T, version string, list ...Need) []byte {
	t.Helper()

	buf := []byte(`{"current_version":`)
	buf = appendJSON(t, buf, version)
	buf = append(buf, `,"project":"fixture","versions":{`...)
	buf = appendJSON(t, buf, version)
	buf = append(buf, `:{"needs":{`...)
	for i, n := range list {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendJSON(t, buf, n.ID)
		buf = append(buf, ':')
		buf = appendJSON(t, buf, n.fields())
	}
	return append(buf, "}}}}"...)
}

func (n Need) fields() map[string]any {
	out := map[string]any{
		"id":          n.ID,
		"title":       n.Title,
		"description": n.Desc,
		"type":        n.Type,
		"docname":     n.DocName,
	}
	if n.DocType != "" {
		out["doctype"] = n.DocType
	}
	if n.Status != "" {
		out["status"] = n.Status
	}
	if n.ParentNeed != "" {
		out["parent_need"] = n.ParentNeed
	}
	if n.Links != nil {
		out["links"] = n.Links
	}
	for k, v := range n.Extra {
		out[k] = v
	}
	return out
}

func appendJSON(t *testing.T, buf []byte, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal fixture: %v", err)
	}
	return append(buf, data...)
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}
