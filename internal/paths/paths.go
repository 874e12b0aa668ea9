// Package paths converts between LSP document URIs and filesystem paths and
// normalizes the paths used to route documents to project roots.
package paths

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// WorkspacePlaceholder is substituted with the workspace root in path settings.
const WorkspacePlaceholder = "${workspaceFolder}"

// URIToPath returns the filesystem path for a file:// URI.
// Non-file URIs are returned unchanged.
func URIToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}

	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}

	p := u.Path
	// file:///C:/docs -> C:/docs on Windows
	if runtime.GOOS == "windows" && len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p)
}

// PathToURI returns a file:// URI for an absolute filesystem path.
func PathToURI(path string) string {
	if path == "" {
		return ""
	}
	slashed := filepath.ToSlash(path)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	u := url.URL{Scheme: "file", Path: slashed}
	return u.String()
}

// Normalize makes path absolute and clean. Routing compares normalized paths only.
func Normalize(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// ExpandWorkspace replaces the workspace placeholder with root. The root may
// be given as a path or a file:// URI.
func ExpandWorkspace(value, root string) string {
	if !strings.Contains(value, WorkspacePlaceholder) {
		return value
	}
	return strings.ReplaceAll(value, WorkspacePlaceholder, URIToPath(root))
}

// DocPath joins a source root with a document identifier (docname + doctype).
// Document identifiers always use forward slashes.
func DocPath(srcDir, doc string) string {
	parts := strings.Split(strings.ReplaceAll(doc, "\\", "/"), "/")
	return Normalize(filepath.Join(append([]string{srcDir}, parts...)...))
}
