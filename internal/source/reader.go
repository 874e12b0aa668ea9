package source

import (
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"needsls/internal/errors"
	"needsls/internal/paths"
)

// DefaultCacheSize is the number of documents kept split in memory.
const DefaultCacheSize = 256

// Overlay provides the content of documents open in the editor, which
// takes precedence over the file on disk.
type Overlay interface {
	Text(path string) (string, bool)
}

type cachedDoc struct {
	modTime time.Time
	size    int64
	lines   []string
}

// Reader reads documents as lines. Files on disk are cached until their
// modification time or size changes.
type Reader struct {
	cache   *lru.Cache[string, cachedDoc]
	overlay Overlay
}

// NewReader creates a Reader caching up to size documents. overlay may be nil.
func NewReader(size int, overlay Overlay) *Reader {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, cachedDoc](size)
	if err != nil {
		// only fails for non-positive sizes
		panic(err)
	}
	return &Reader{cache: cache, overlay: overlay}
}

// Lines returns the lines of the document at path.
func (r *Reader) Lines(path string) ([]string, error) {
	path = paths.Normalize(path)

	if r.overlay != nil {
		if text, ok := r.overlay.Text(path); ok {
			return SplitLines(text), nil
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.New(errors.DocumentUnreadable, "cannot read document "+path, err)
	}
	if doc, ok := r.cache.Get(path); ok && doc.modTime.Equal(info.ModTime()) && doc.size == info.Size() {
		return doc.lines, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.DocumentUnreadable, "cannot read document "+path, err)
	}
	lines := SplitLines(string(data))
	r.cache.Add(path, cachedDoc{modTime: info.ModTime(), size: info.Size(), lines: lines})
	return lines, nil
}

// Purge drops all cached documents.
func (r *Reader) Purge() {
	r.cache.Purge()
}
