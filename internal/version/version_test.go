package version

import "testing"

func TestFull(t *testing.T) {
	origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
	defer func() {
		Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
	}()

	tests := []struct {
		name      string
		commit    string
		buildDate string
		want      string
	}{
		{"unstamped", "", "", "needsls version 1.2.3"},
		{"short commit", "abc", "", "needsls version 1.2.3\ncommit abc"},
		{"full hash", "0123456789abcdef", "2026-01-15", "needsls version 1.2.3\ncommit 0123456789ab\nbuilt 2026-01-15"},
		{"date only", "", "2026-01-15", "needsls version 1.2.3\nbuilt 2026-01-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit, BuildDate = "1.2.3", tt.commit, tt.buildDate
			if got := Full(); got != tt.want {
				t.Errorf("Full() = %q, want %q", got, tt.want)
			}
		})
	}
}
