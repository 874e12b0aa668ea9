// Package version holds the release identity of needsls. Release builds
// stamp Commit and BuildDate with -ldflags -X.
package version

import "strings"

// ServerName is announced to clients in the initialize result.
const ServerName = "needsls"

var (
	Version   = "0.4.0"
	Commit    = ""
	BuildDate = ""
)

// Full is the text printed by the version command. Lines for fields the
// build did not stamp are omitted; the commit is shortened to 12 characters.
func Full() string {
	lines := []string{ServerName + " version " + Version}
	if Commit != "" {
		commit := Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		lines = append(lines, "commit "+commit)
	}
	if BuildDate != "" {
		lines = append(lines, "built "+BuildDate)
	}
	return strings.Join(lines, "\n")
}
