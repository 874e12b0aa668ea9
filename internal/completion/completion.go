// Package completion suggests need types, document paths, need ids and
// directive snippets for the word under the cursor.
package completion

import (
	"path"
	"sort"
	"strings"

	"needsls/internal/project"
	"needsls/internal/source"
)

// Markers the word under the cursor is classified by.
const (
	PathMarker      = "->"
	RolePathMarker  = ":need:`->"
	DirectiveMarker = ".."
	OptionMarker    = ":"
)

// Kind mirrors the LSP CompletionItemKind values used here.
type Kind int

const (
	KindText      Kind = 1
	KindSnippet   Kind = 15
	KindFile      Kind = 17
	KindReference Kind = 18
	KindFolder    Kind = 19
	KindEnum      Kind = 13
)

// Edit replaces a span of the cursor line.
type Edit struct {
	Line      int    `json:"line" yaml:"line"`
	StartChar int    `json:"startChar" yaml:"startChar"`
	EndChar   int    `json:"endChar" yaml:"endChar"`
	NewText   string `json:"newText" yaml:"newText"`
}

// Item is one suggestion.
type Item struct {
	Label           string `json:"label" yaml:"label"`
	Kind            Kind   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Detail          string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Documentation   string `json:"documentation,omitempty" yaml:"documentation,omitempty"`
	InsertText      string `json:"insertText,omitempty" yaml:"insertText,omitempty"`
	Snippet         bool   `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	AdditionalEdits []Edit `json:"additionalEdits,omitempty" yaml:"additionalEdits,omitempty"`
}

// Request is the cursor context of a completion.
type Request struct {
	// Word is the token under the cursor.
	Word string
	// Line and Character locate the cursor.
	Line      int
	Character int
	// PrevLine is the line above the cursor, "" on the first line.
	PrevLine string
}

// Engine produces completion items.
type Engine struct {
	newID func() string
}

// New creates an Engine generating ids with NewID.
func New() *Engine {
	return &Engine{newID: NewID}
}

// Complete returns the suggestions for req. Markers are tried in order:
// path grammar, directive snippets, role and option; anything else yields
// nothing.
func (e *Engine) Complete(idx *project.Index, req Request) []Item {
	if idx == nil {
		return nil
	}
	word := req.Word
	switch {
	case strings.HasPrefix(word, PathMarker) || strings.HasPrefix(word, RolePathMarker):
		return e.completePath(idx, req)
	case strings.HasPrefix(word, DirectiveMarker):
		return e.completeDirective(idx)
	case strings.HasPrefix(word, OptionMarker):
		return e.completeOption(req.PrevLine)
	default:
		return nil
	}
}

// completePath walks type > document > id. The level is the number of
// '>' in the word, the arrow of the marker included.
func (e *Engine) completePath(idx *project.Index, req Request) []Item {
	word := req.Word
	level := strings.Count(word, ">")
	parts := strings.Split(word, ">")

	switch level {
	case 1:
		types := idx.Types()
		items := make([]Item, 0, len(types))
		for _, t := range types {
			items = append(items, Item{Label: t, Detail: "need type", Kind: KindEnum})
		}
		return items

	case 2:
		if !idx.HasType(parts[1]) {
			return nil
		}
		return completeDocPath(idx.DocsForType(parts[1]), parts[2])

	case 3:
		typ, doc := parts[1], parts[2]
		if !idx.HasDoc(doc) {
			return nil
		}
		typed := word[strings.Index(word, PathMarker):]
		width := source.Column(typed, len(typed))
		if strings.HasSuffix(word, "`") {
			width--
		}
		start := req.Character - width
		if start < 0 {
			start = 0
		}
		del := Edit{Line: req.Line, StartChar: start, EndChar: req.Character}

		var items []Item
		for _, n := range idx.NeedsInDoc(doc) {
			if n.Type != typ {
				continue
			}
			items = append(items, Item{
				Label:           n.ID,
				Kind:            KindReference,
				Detail:          n.Title,
				Documentation:   n.Description,
				InsertText:      n.ID,
				AdditionalEdits: []Edit{del},
			})
		}
		return items

	default:
		return nil
	}
}

// completeDocPath suggests documents starting with prefix. A single match
// completes to its remainder. Several matches spread over folders suggest
// the next path segment only.
func completeDocPath(docs []string, prefix string) []Item {
	prefix = strings.Replace(prefix, "`", "", 1)

	var found []string
	for _, doc := range docs {
		if strings.HasPrefix(doc, prefix) {
			found = append(found, doc)
		}
	}

	switch len(found) {
	case 0:
		return nil
	case 1:
		rest := found[0][len(prefix):]
		return []Item{{Label: rest, Detail: "needs doc", InsertText: rest, Kind: KindFile}}
	}

	depth := strings.Count(prefix, "/")
	maxDepth := 0
	for _, doc := range found {
		if d := strings.Count(doc, "/"); d > maxDepth {
			maxDepth = d
		}
	}

	if maxDepth == 0 && depth == 0 {
		items := make([]Item, 0, len(found))
		for _, doc := range found {
			items = append(items, Item{Label: doc, Detail: "path to need doc", Kind: KindFile})
		}
		return items
	}

	seen := make(map[string]bool)
	var segments []string
	for _, doc := range found {
		parts := strings.Split(doc, "/")
		if len(parts) <= depth {
			continue
		}
		seg := parts[depth]
		if !seen[seg] {
			seen[seg] = true
			segments = append(segments, seg)
		}
	}
	sort.Strings(segments)

	items := make([]Item, 0, len(segments))
	for _, seg := range segments {
		kind := KindFolder
		if path.Ext(seg) != "" {
			kind = KindFile
		}
		items = append(items, Item{Label: seg, Detail: "path to needs doc", Kind: kind})
	}
	return items
}

func (e *Engine) completeDirective(idx *project.Index) []Item {
	types := idx.Types()
	items := make([]Item, 0, len(types))
	for _, t := range types {
		items = append(items, Item{
			Label:      source.DirectiveOpen(t),
			Detail:     "need directive",
			Kind:       KindSnippet,
			InsertText: directiveSnippet(t, e.idFor(t)),
			Snippet:    true,
		})
	}
	return items
}

func directiveSnippet(typ, id string) string {
	return strings.Join([]string{
		" " + escapeSnippet(typ) + ":: ${1:Title}",
		"\t:id: ${2:" + escapeSnippet(id) + "}",
		"\t:status: ${3:open}",
		"",
		"\t${4:Content.}",
	}, "\n")
}

func (e *Engine) completeOption(prevLine string) []Item {
	typ, _ := source.DirectiveType(prevLine)
	return []Item{
		{
			Label:      ":need:",
			Detail:     "need role",
			Kind:       KindSnippet,
			InsertText: "need:`${1:ID}`",
			Snippet:    true,
		},
		{
			Label:      ":id:",
			Detail:     "needs option",
			Kind:       KindSnippet,
			InsertText: "id: ${1:" + escapeSnippet(e.idFor(typ)) + "}",
			Snippet:    true,
		},
	}
}

// idFor generates an id, prefixed with the upper-cased type when known.
func (e *Engine) idFor(typ string) string {
	id := e.newID()
	if typ == "" {
		return id
	}
	return strings.ToUpper(typ) + "_" + id
}

var snippetEscaper = strings.NewReplacer(`\`, `\\`, `$`, `\$`, `}`, `\}`)

func escapeSnippet(s string) string {
	return snippetEscaper.Replace(s)
}
