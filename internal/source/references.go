package source

import (
	"fmt"
	"log/slog"
	"regexp"

	"needsls/internal/errors"
	"needsls/internal/needs"
	"needsls/internal/project"
	"needsls/internal/slogutil"
)

// Location is a span on one line of a document.
type Location struct {
	Path      string `json:"path" yaml:"path"`
	Line      int    `json:"line" yaml:"line"`
	StartChar int    `json:"startChar" yaml:"startChar"`
	EndChar   int    `json:"endChar" yaml:"endChar"`
}

// Resolver locates needs and their references in source documents.
type Resolver struct {
	reader *Reader
	logger *slog.Logger
}

// NewResolver creates a Resolver. logger may be nil.
func NewResolver(reader *Reader, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Resolver{reader: reader, logger: logger}
}

// Definition returns the directive line opening n.
func (r *Resolver) Definition(idx *project.Index, n *needs.Need) (Location, error) {
	path, ok := idx.DocPath(n)
	if !ok {
		return Location{}, errors.Newf(errors.DirectiveNotFound, "need %s has no source document", n.ID)
	}
	lines, err := r.reader.Lines(path)
	if err != nil {
		return Location{}, err
	}
	line, ok := LocateDirective(n, lines)
	if !ok {
		return Location{}, errors.Newf(errors.DirectiveNotFound, "no definition of %s found in %s", n.ID, path)
	}
	return Location{Path: path, Line: line}, nil
}

// optionListPattern matches an option line whose comma separated value
// list contains id. The first submatch is the id.
func optionListPattern(id string) *regexp.Regexp {
	return regexp.MustCompile(`:[^:\s][^:]*:\s+(?:[^\s,]+,\s*)*(` + regexp.QuoteMeta(id) + `)(?:\s*,|\s*$)`)
}

// FindReferences returns one location per back-link of target: the span of
// target's id in the first option line of the back-linking need's directive
// block listing it. The block ends at the next directive.
// Back-links that cannot be located are logged and skipped.
func (r *Resolver) FindReferences(idx *project.Index, target *needs.Need) []Location {
	if idx == nil || target == nil {
		return nil
	}
	pattern := optionListPattern(target.ID)

	locations := make([]Location, 0, len(target.BkLinks))
	for _, linkID := range target.BkLinks {
		loc, err := r.reference(idx, linkID, target.ID, pattern)
		if err != nil {
			r.logger.Warn("Skipping reference", "target", target.ID, "from", linkID, "error", err.Error())
			continue
		}
		locations = append(locations, loc)
	}
	return locations
}

func (r *Resolver) reference(idx *project.Index, linkID, targetID string, pattern *regexp.Regexp) (Location, error) {
	from, ok := idx.Need(linkID)
	if !ok {
		return Location{}, errors.Newf(errors.NeedNotFound, "need %s not found", linkID)
	}
	def, err := r.Definition(idx, from)
	if err != nil {
		return Location{}, err
	}
	lines, err := r.reader.Lines(def.Path)
	if err != nil {
		return Location{}, err
	}

	for i := def.Line; i < len(lines); i++ {
		if _, opens := DirectiveType(lines[i]); opens && i > def.Line {
			break
		}
		m := pattern.FindStringSubmatchIndex(lines[i])
		if m == nil {
			continue
		}
		start := Column(lines[i], m[2])
		return Location{
			Path:      def.Path,
			Line:      i,
			StartChar: start,
			EndChar:   start + Column(targetID, len(targetID)),
		}, nil
	}
	return Location{}, errors.New(errors.DirectiveNotFound,
		fmt.Sprintf("%s not referenced under directive of %s", targetID, linkID), nil)
}
