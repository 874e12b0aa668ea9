// Package documents tracks the text of documents open in the editor.
package documents

import (
	"sync"

	"needsls/internal/paths"
)

// Document is one open text document.
type Document struct {
	URI        string
	Path       string
	LanguageID string
	Version    int
	Text       string
}

// Store holds open documents keyed by normalized file path.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{docs: make(map[string]*Document)}
}

// Open records a newly opened document.
func (s *Store) Open(uri, languageID string, version int, text string) {
	p := paths.Normalize(paths.URIToPath(uri))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[p] = &Document{URI: uri, Path: p, LanguageID: languageID, Version: version, Text: text}
}

// Update replaces the full text of an open document. Updates older than
// the stored version are ignored. It returns false for unknown documents.
func (s *Store) Update(uri string, version int, text string) bool {
	p := paths.Normalize(paths.URIToPath(uri))

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[p]
	if !ok {
		return false
	}
	if version != 0 && version < doc.Version {
		return true
	}
	next := *doc
	next.Version = version
	next.Text = text
	s.docs[p] = &next
	return true
}

// Close forgets a document.
func (s *Store) Close(uri string) {
	p := paths.Normalize(paths.URIToPath(uri))

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, p)
}

// Get returns the open document at uri.
func (s *Store) Get(uri string) (Document, bool) {
	p := paths.Normalize(paths.URIToPath(uri))

	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[p]
	if !ok {
		return Document{}, false
	}
	return *doc, true
}

// Text returns the content of the open document at path.
func (s *Store) Text(path string) (string, bool) {
	p := paths.Normalize(path)

	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[p]
	if !ok {
		return "", false
	}
	return doc.Text, true
}

// Len returns the number of open documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
