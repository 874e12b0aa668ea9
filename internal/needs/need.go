// Package needs holds the Need model of a snapshot and the derived-graph
// passes run on it after loading: doctype inheritance through parent_need
// chains and back-link computation.
package needs

import "encoding/json"

// ReverseLinkSuffix marks extension fields holding arrays of need ids.
const ReverseLinkSuffix = "_back"

// Need is one authored requirement/spec unit from the snapshot.
type Need struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	DocName     string `json:"docname"`
	DocType     string `json:"doctype"`
	Status      string `json:"status,omitempty"`
	ParentNeed  string `json:"parent_need,omitempty"`

	Links []string `json:"links,omitempty"`

	// ReverseLinks holds every extension field whose name ends in
	// ReverseLinkSuffix and whose value is an array, in snapshot order.
	ReverseLinks []FieldLinks `json:"-"`

	// Extra keeps all remaining fields undecoded.
	Extra map[string]json.RawMessage `json:"-"`

	// BkLinks is derived by ComputeBackLinks: ids of needs pointing here,
	// first-seen order, no duplicates.
	BkLinks []string `json:"bkLinks"`
}

// FieldLinks is one reverse-link field and the ids it lists.
type FieldLinks struct {
	Field string
	IDs   []string
}

// Doc returns the document identifier (docname + doctype), e.g. "chapter/index.rst".
func (n *Need) Doc() string {
	return n.DocName + n.DocType
}

// Locatable reports whether the need's source document can be derived.
func (n *Need) Locatable() bool {
	return n.DocName != "" && n.DocType != ""
}

func (n *Need) addBackLink(id string) {
	for _, existing := range n.BkLinks {
		if existing == id {
			return
		}
	}
	n.BkLinks = append(n.BkLinks, id)
}

// Map is an insertion-ordered set of needs keyed by id.
type Map struct {
	order []string
	byID  map[string]*Need
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{byID: make(map[string]*Need)}
}

// Add inserts n. It returns false and leaves the map unchanged when the id
// is already present.
func (m *Map) Add(n *Need) bool {
	if _, exists := m.byID[n.ID]; exists {
		return false
	}
	m.byID[n.ID] = n
	m.order = append(m.order, n.ID)
	return true
}

// Get looks a need up by id.
func (m *Map) Get(id string) (*Need, bool) {
	if m == nil {
		return nil, false
	}
	n, ok := m.byID[id]
	return n, ok
}

// Len returns the number of needs.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// All returns all needs in insertion order.
func (m *Map) All() []*Need {
	if m == nil {
		return nil
	}
	all := make([]*Need, 0, len(m.order))
	for _, id := range m.order {
		all = append(all, m.byID[id])
	}
	return all
}
