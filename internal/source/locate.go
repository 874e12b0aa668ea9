package source

import (
	"strings"

	"needsls/internal/needs"
)

// IDOption is the option line defining a need's id.
func IDOption(id string) string {
	return ":id: " + id
}

// DirectiveOpen is the directive line opening a need of the given type.
func DirectiveOpen(typ string) string {
	return ".. " + typ + "::"
}

// hasIDOption reports whether line defines id. The id must end the option
// value so REQ_1 does not match a line defining REQ_10.
func hasIDOption(line, id string) bool {
	pattern := IDOption(id)
	for rest := line; ; {
		i := strings.Index(rest, pattern)
		if i < 0 {
			return false
		}
		after := rest[i+len(pattern):]
		if strings.TrimSpace(after) == "" {
			return true
		}
		rest = rest[i+1:]
	}
}

// LocateIDLine returns the index of the first line defining n's id.
func LocateIDLine(n *needs.Need, lines []string) (int, bool) {
	if n == nil || n.ID == "" {
		return 0, false
	}
	for i, line := range lines {
		if hasIDOption(line, n.ID) {
			return i, true
		}
	}
	return 0, false
}

// LocateDirective returns the index of the directive line opening n: the
// nearest line before n's id option that opens a directive of n's type.
func LocateDirective(n *needs.Need, lines []string) (int, bool) {
	idLine, ok := LocateIDLine(n, lines)
	if !ok || n.Type == "" {
		return 0, false
	}
	pattern := DirectiveOpen(n.Type)
	for i := idLine - 1; i >= 0; i-- {
		if strings.Contains(lines[i], pattern) {
			return i, true
		}
	}
	return 0, false
}

// DirectiveType returns the need type of a directive opened on line, as
// in ".. req:: Title".
func DirectiveType(line string) (string, bool) {
	rest := strings.TrimSpace(line)
	if !strings.HasPrefix(rest, "..") {
		return "", false
	}
	rest = strings.TrimLeft(rest[2:], " ")
	end := strings.Index(rest, "::")
	if end <= 0 {
		return "", false
	}
	typ := rest[:end]
	if strings.ContainsAny(typ, " \t") {
		return "", false
	}
	return typ, true
}
