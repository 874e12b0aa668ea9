package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"needsls/internal/errors"
)

type initFile struct {
	NeedsJSON  string       `toml:"needsJson"`
	SrcDir     string       `toml:"srcDir"`
	LogLevel   string       `toml:"logLevel"`
	Watch      bool         `toml:"watch"`
	DebounceMs int          `toml:"debounceMs"`
	Folders    []initFolder `toml:"folders,omitempty"`
}

type initFolder struct {
	NeedsJSON string `toml:"needsJson"`
	SrcDir    string `toml:"srcDir"`
}

// WriteInitFile writes a starter .needsls/config.toml below root and returns
// its path. An existing file is only replaced when force is set.
func WriteInitFile(root string, s *Settings, force bool) (string, error) {
	path := filepath.Join(root, Dir, "config.toml")
	if _, err := os.Stat(path); err == nil && !force {
		return path, errors.Newf(errors.ConfigInvalid, "%s already exists", path)
	}

	if s == nil {
		s = DefaultSettings()
		s.NeedsJSON = "${workspaceFolder}/docs/_build/needs/needs.json"
		s.SrcDir = "${workspaceFolder}/docs"
	}
	out := initFile{
		NeedsJSON:  s.NeedsJSON,
		SrcDir:     s.SrcDir,
		LogLevel:   s.LogLevel,
		Watch:      s.Watch,
		DebounceMs: s.DebounceMs,
	}
	for _, f := range s.Folders {
		out.Folders = append(out.Folders, initFolder(f))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", errors.New(errors.ConfigInvalid, "cannot create config directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", errors.New(errors.ConfigInvalid, "cannot create config file", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(out); err != nil {
		return "", errors.New(errors.ConfigInvalid, "cannot encode config file", err)
	}
	return path, nil
}
