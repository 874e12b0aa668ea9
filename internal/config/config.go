package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"needsls/internal/errors"
	"needsls/internal/paths"
)

const (
	// Namespace is the settings section clients send the server's keys under.
	Namespace = "sphinx-needs"

	// EnvPrefix prefixes environment overrides, e.g. NEEDSLS_NEEDSJSON.
	EnvPrefix = "NEEDSLS"

	// Dir is the workspace directory holding the optional config file.
	Dir = ".needsls"
)

// Settings represents the complete server configuration
type Settings struct {
	NeedsJSON     string   `json:"needsJson" mapstructure:"needsJson" yaml:"needsJson"`
	SrcDir        string   `json:"srcDir" mapstructure:"srcDir" yaml:"srcDir"`
	Folders       []Folder `json:"folders" mapstructure:"folders" yaml:"folders"`
	LogLevel      string   `json:"logLevel" mapstructure:"logLevel" yaml:"logLevel"`
	LogFile       string   `json:"logFile" mapstructure:"logFile" yaml:"logFile"`
	ActivateFiles []string `json:"activateFiles" mapstructure:"activateFiles" yaml:"activateFiles"`
	Watch         bool     `json:"watch" mapstructure:"watch" yaml:"watch"`
	DebounceMs    int      `json:"debounceMs" mapstructure:"debounceMs" yaml:"debounceMs"`
}

// Folder is one additional documentation root of a multi-root setup
type Folder struct {
	NeedsJSON string `json:"needsJson" mapstructure:"needsJson" yaml:"needsJson"`
	SrcDir    string `json:"srcDir" mapstructure:"srcDir" yaml:"srcDir"`
}

// Root is one (snapshot, source directory) pair to be indexed
type Root struct {
	SnapshotPath string `json:"snapshotPath" yaml:"snapshotPath"`
	SrcDir       string `json:"srcDir" yaml:"srcDir"`
	Default      bool   `json:"default" yaml:"default"`
}

var validLevels = map[string]bool{
	"off": true, "error": true, "warn": true, "warning": true,
	"info": true, "debug": true, "verbose": true, "trace": true,
}

// DefaultSettings returns the default configuration
func DefaultSettings() *Settings {
	return &Settings{
		LogLevel:      "info",
		ActivateFiles: []string{"restructuredtext"},
		DebounceMs:    200,
	}
}

// MultiRoot reports whether additional folders are configured
func (s *Settings) MultiRoot() bool {
	return len(s.Folders) > 0
}

// Roots lists the configured roots, the default root first
func (s *Settings) Roots() []Root {
	var roots []Root
	if s.NeedsJSON != "" {
		roots = append(roots, Root{SnapshotPath: s.NeedsJSON, SrcDir: s.SrcDir, Default: true})
	}
	for _, f := range s.Folders {
		roots = append(roots, Root{SnapshotPath: f.NeedsJSON, SrcDir: f.SrcDir})
	}
	return roots
}

// Validate checks if the configuration is valid
func (s *Settings) Validate() error {
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return errors.Newf(errors.ConfigInvalid, "logLevel %q is not one of off, error, warn, info, debug", s.LogLevel)
	}
	if s.DebounceMs < 0 {
		return errors.Newf(errors.ConfigInvalid, "debounceMs must not be negative, got %d", s.DebounceMs)
	}
	for i, f := range s.Folders {
		if f.NeedsJSON == "" {
			return errors.Newf(errors.ConfigInvalid, "folders[%d].needsJson is empty", i)
		}
	}
	return nil
}

// Resolve substitutes the workspace placeholder in every path setting and
// anchors relative paths at root. root may be a path or a file:// URI.
func (s *Settings) Resolve(root string) {
	s.NeedsJSON = resolvePath(s.NeedsJSON, root)
	s.SrcDir = resolvePath(s.SrcDir, root)
	s.LogFile = resolvePath(s.LogFile, root)
	for i := range s.Folders {
		s.Folders[i].NeedsJSON = resolvePath(s.Folders[i].NeedsJSON, root)
		s.Folders[i].SrcDir = resolvePath(s.Folders[i].SrcDir, root)
	}
}

func resolvePath(value, root string) string {
	if value == "" {
		return ""
	}
	value = paths.ExpandWorkspace(value, root)
	if !filepath.IsAbs(value) && root != "" {
		value = filepath.Join(paths.URIToPath(root), value)
	}
	return paths.Normalize(value)
}

// Loader resolves Settings from defaults, the workspace config file, settings
// pushed by the client and the environment, in increasing precedence.
type Loader struct {
	root   string
	client map[string]interface{}
}

// NewLoader creates a loader for the workspace at root. An empty root skips
// the config file and leaves relative paths relative to the process.
func NewLoader(root string) *Loader {
	return &Loader{root: paths.URIToPath(root)}
}

// Root returns the workspace root.
func (l *Loader) Root() string {
	return l.root
}

// SetClientSettings replaces the client settings layer. raw may hold the
// keys directly or nested under Namespace.
func (l *Loader) SetClientSettings(raw map[string]interface{}) error {
	if raw == nil {
		l.client = nil
		return nil
	}
	if nested, ok := raw[Namespace]; ok {
		section, ok := nested.(map[string]interface{})
		if !ok && nested != nil {
			return errors.Newf(errors.ConfigInvalid, "%q settings must be an object, got %T", Namespace, nested)
		}
		raw = section
	}
	l.client = raw
	return nil
}

// Load resolves the current settings. Paths are expanded and anchored at
// the workspace root.
func (l *Loader) Load() (*Settings, error) {
	v := viper.New()

	def := DefaultSettings()
	v.SetDefault("needsJson", def.NeedsJSON)
	v.SetDefault("srcDir", def.SrcDir)
	v.SetDefault("folders", []interface{}{})
	v.SetDefault("logLevel", def.LogLevel)
	v.SetDefault("logFile", def.LogFile)
	v.SetDefault("activateFiles", def.ActivateFiles)
	v.SetDefault("watch", def.Watch)
	v.SetDefault("debounceMs", def.DebounceMs)

	if l.root != "" {
		if err := loadDotEnv(filepath.Join(l.root, ".env")); err != nil {
			return nil, err
		}

		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(l.root, Dir))
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errors.New(errors.ConfigInvalid, "cannot read config file", err)
			}
		}
	}

	if l.client != nil {
		if err := v.MergeConfigMap(l.client); err != nil {
			return nil, errors.New(errors.ConfigInvalid, "cannot merge client settings", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "cannot decode settings", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.Resolve(l.root)
	return &s, nil
}

// ConfigFile returns the config file viper would read, or "" when none exists.
func (l *Loader) ConfigFile() string {
	if l.root == "" {
		return ""
	}
	for _, ext := range viper.SupportedExts {
		path := filepath.Join(l.root, Dir, "config."+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.New(errors.ConfigInvalid, fmt.Sprintf("cannot load %s", path), err)
	}
	return nil
}
