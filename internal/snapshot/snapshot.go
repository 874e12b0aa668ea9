// Package snapshot reads the JSON export of all needs of a documentation
// project, selects its current version and decodes the needs map.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"needsls/internal/errors"
	"needsls/internal/needs"
)

// Result is a successfully loaded snapshot.
type Result struct {
	Path     string
	Project  string
	Version  string
	Needs    *needs.Map
	Warnings []error
}

type rawSnapshot struct {
	Project        string                     `json:"project"`
	CurrentVersion json.RawMessage            `json:"current_version"`
	Versions       map[string]json.RawMessage `json:"versions"`
}

type rawVersion struct {
	Needs json.RawMessage `json:"needs"`
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Load reads and decodes the snapshot at path.
//
// A missing or unreadable file and an empty needs map are expected states
// and come back as NeedsErrors with a non-error severity; malformed JSON and
// a current_version absent from versions are SNAPSHOT_INVALID. A missing
// current_version only adds a warning. Every outcome is logged at the
// severity of its code.
func Load(path string, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	res, err := load(path)
	if err != nil {
		report(logger, "Snapshot not loaded", err, "path", path)
		return nil, err
	}
	for _, w := range res.Warnings {
		report(logger, "Snapshot warning", w, "path", path)
	}
	logger.Info("Snapshot loaded",
		"path", path,
		"version", res.Version,
		"needs", res.Needs.Len(),
		"warnings", len(res.Warnings),
	)
	return res, nil
}

func load(path string) (*Result, error) {
	if path == "" {
		return nil, errors.Newf(errors.SnapshotNotConfigured, "needs json path not configured")
	}

	data, err := readFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.SnapshotMissing, fmt.Sprintf("needs json %s does not exist", path), err)
		}
		return nil, errors.New(errors.SnapshotUnreadable, fmt.Sprintf("cannot read needs json %s", path), err)
	}

	var raw rawSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.New(errors.SnapshotInvalid, fmt.Sprintf("cannot parse needs json %s", path), err)
	}

	res := &Result{Path: path, Project: raw.Project}

	version, ok := decodeString(raw.CurrentVersion)
	if !ok || version == "" {
		res.Warnings = append(res.Warnings, errors.Newf(errors.VersionMissing,
			"current_version is empty in %s; specifying version in conf.py is recommended", path))
		// a lone version is unambiguous whatever its key
		if len(raw.Versions) == 1 {
			for key := range raw.Versions {
				version = key
			}
		}
	}
	res.Version = version

	if raw.Versions == nil {
		return nil, errors.Newf(errors.SnapshotInvalid, "no versions in %s", path)
	}
	rawVer, ok := raw.Versions[version]
	if !ok {
		return nil, errors.Newf(errors.SnapshotInvalid, "current version %q not found in versions of %s", version, path)
	}

	var ver rawVersion
	if err := json.Unmarshal(rawVer, &ver); err != nil {
		return nil, errors.New(errors.SnapshotInvalid, fmt.Sprintf("version %q of %s is not an object", version, path), err)
	}

	m := needs.NewMap()
	if !isNull(ver.Needs) {
		entries, err := decodeObject(ver.Needs)
		if err != nil {
			return nil, errors.New(errors.SnapshotInvalid, fmt.Sprintf("needs of version %q in %s", version, path), err)
		}
		for _, e := range entries {
			n, problems := decodeNeed(e.Key, e.Value)
			res.Warnings = append(res.Warnings, problems...)
			if n == nil {
				continue
			}
			if !m.Add(n) {
				res.Warnings = append(res.Warnings, errors.Newf(errors.SnapshotInvalid, "duplicate need id %s", n.ID))
			}
		}
	}

	if m.Len() == 0 {
		return nil, errors.Newf(errors.NeedsEmpty, "no needs found in %s", path)
	}

	res.Needs = m
	return res, nil
}

// readFile reads path, transparently inflating gzip and zstd content.
func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, _ := br.Peek(4)

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return io.ReadAll(br)
	}
}

func report(logger *slog.Logger, msg string, err error, args ...any) {
	args = append(args, "code", string(errors.CodeOf(err)), "error", err.Error())
	switch errors.Severity(errors.CodeOf(err)) {
	case errors.LevelInfo:
		logger.Info(msg, args...)
	case errors.LevelWarning:
		logger.Warn(msg, args...)
	default:
		logger.Error(msg, args...)
	}
}
