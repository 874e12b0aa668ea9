package registry

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"needsls/internal/config"
	"needsls/internal/testutil"
)

type recorder struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
}

func (r *recorder) ShowWarning(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, msg)
}

func (r *recorder) ShowError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings, r.errors = nil, nil
}

func newRoot(t *testing.T, doc, title string) *testutil.Root {
	t.Helper()
	root := testutil.NewRoot(t)
	root.WriteSnapshot(t, testutil.Need{ID: "REQ_1", Title: title, Type: "req", DocName: doc, DocType: ".rst"})
	root.WriteDoc(t, doc+".rst", ".. req:: "+title+"\n   :id: REQ_1\n")
	return root
}

func title(t *testing.T, r *Registry, docPath string) string {
	t.Helper()
	idx := r.Resolve(docPath)
	require.NotNil(t, idx, "no index for %s", docPath)
	n, ok := idx.Need("REQ_1")
	require.True(t, ok)
	return n.Title
}

func TestConfigure_SingleRoot(t *testing.T) {
	a := newRoot(t, "index", "From A")
	rec := &recorder{}
	r := New(nil, rec)

	r.Configure(&config.Settings{NeedsJSON: a.SnapshotPath, SrcDir: a.SrcDir})

	assert.Equal(t, "From A", title(t, r, filepath.Join(a.SrcDir, "index.rst")))
	assert.Equal(t, "From A", title(t, r, "/somewhere/else.rst"), "single root answers every document")
	assert.Equal(t, "From A", title(t, r, ""))
	assert.Empty(t, rec.warnings)
	assert.Empty(t, rec.errors)

	roots := r.Roots()
	require.Len(t, roots, 1)
	assert.True(t, roots[0].Default)
	assert.True(t, roots[0].Loaded)
	assert.Equal(t, 1, roots[0].Stats.Needs)

	assert.Same(t, r.Default(), r.Index(a.SnapshotPath))
	assert.Nil(t, r.Index("/not/configured.json"))
}

func TestConfigure_Unconfigured(t *testing.T) {
	rec := &recorder{}
	r := New(nil, rec)

	r.Configure(nil)

	assert.Nil(t, r.Resolve("/docs/index.rst"))
	assert.Nil(t, r.Default())
	assert.Empty(t, r.Roots())
	require.Len(t, rec.warnings, 1)
	assert.Contains(t, rec.warnings[0], "SNAPSHOT_NOT_CONFIGURED")
}

func TestResolve_DisjointMultiRoot(t *testing.T) {
	a := newRoot(t, "alpha", "From A")
	b := newRoot(t, "beta", "From B")
	r := New(nil, nil)

	r.Configure(&config.Settings{
		Folders: []config.Folder{
			{NeedsJSON: a.SnapshotPath, SrcDir: a.SrcDir},
			{NeedsJSON: b.SnapshotPath, SrcDir: b.SrcDir},
		},
	})

	assert.Equal(t, "From A", title(t, r, filepath.Join(a.SrcDir, "alpha.rst")))
	assert.Equal(t, "From B", title(t, r, filepath.Join(b.SrcDir, "beta.rst")))
	assert.Nil(t, r.Resolve(filepath.Join(b.SrcDir, "new.rst")), "no default root to fall back to")
}

func TestResolve_FallsBackToDefault(t *testing.T) {
	def := newRoot(t, "index", "Default")
	b := newRoot(t, "beta", "From B")
	r := New(nil, nil)

	r.Configure(&config.Settings{
		NeedsJSON: def.SnapshotPath,
		SrcDir:    def.SrcDir,
		Folders:   []config.Folder{{NeedsJSON: b.SnapshotPath, SrcDir: b.SrcDir}},
	})

	assert.Equal(t, "From B", title(t, r, filepath.Join(b.SrcDir, "beta.rst")))
	assert.Equal(t, "Default", title(t, r, filepath.Join(b.SrcDir, "brand-new.rst")))
	assert.Equal(t, []string{def.SnapshotPath, b.SnapshotPath}, r.SnapshotPaths())
}

func TestHandleFileEvent_ChangedReloads(t *testing.T) {
	a := newRoot(t, "index", "Before")
	r := New(nil, nil)
	r.Configure(&config.Settings{NeedsJSON: a.SnapshotPath, SrcDir: a.SrcDir})
	before := r.Default()

	a.WriteSnapshot(t, testutil.Need{ID: "REQ_1", Title: "After", Type: "req", DocName: "index", DocType: ".rst"})
	assert.True(t, r.HandleFileEvent(FileEvent{Path: a.SnapshotPath, Type: Changed}))

	assert.Equal(t, "After", title(t, r, ""))
	assert.NotSame(t, before, r.Default(), "index replaced, not mutated")

	n, _ := before.Need("REQ_1")
	assert.Equal(t, "Before", n.Title)
}

func TestHandleFileEvent_IgnoresOtherPaths(t *testing.T) {
	a := newRoot(t, "index", "A")
	r := New(nil, nil)
	r.Configure(&config.Settings{NeedsJSON: a.SnapshotPath, SrcDir: a.SrcDir})

	assert.False(t, r.HandleFileEvent(FileEvent{Path: filepath.Join(a.Dir, "other.json"), Type: Changed}))
	assert.False(t, r.Reload(filepath.Join(a.Dir, "other.json")))
}

func TestHandleFileEvent_DeletedKeepsIndex(t *testing.T) {
	a := newRoot(t, "index", "Kept")
	rec := &recorder{}
	r := New(nil, rec)
	r.Configure(&config.Settings{NeedsJSON: a.SnapshotPath, SrcDir: a.SrcDir})

	require.NoError(t, os.Remove(a.SnapshotPath))
	assert.True(t, r.HandleFileEvent(FileEvent{Path: a.SnapshotPath, Type: Deleted}))

	assert.Equal(t, "Kept", title(t, r, ""))
	require.Len(t, rec.warnings, 1)
	assert.Contains(t, rec.warnings[0], "deleted")
}

func TestReload_UnreadableKeepsLastGood(t *testing.T) {
	a := newRoot(t, "index", "Good")
	rec := &recorder{}
	r := New(nil, rec)
	r.Configure(&config.Settings{NeedsJSON: a.SnapshotPath, SrcDir: a.SrcDir})

	// a directory in place of the file cannot be read
	require.NoError(t, os.Remove(a.SnapshotPath))
	require.NoError(t, os.Mkdir(a.SnapshotPath, 0755))
	assert.True(t, r.HandleFileEvent(FileEvent{Path: a.SnapshotPath, Type: Changed}))

	assert.Equal(t, "Good", title(t, r, ""))
	require.Len(t, rec.warnings, 1)
	assert.Contains(t, rec.warnings[0], "keeping the previous index")

	roots := r.Roots()
	require.Len(t, roots, 1)
	assert.True(t, roots[0].Loaded)
	assert.Contains(t, roots[0].Error, "SNAPSHOT_UNREADABLE")

	// reconfiguring with a different srcDir rebuilds and overwrites
	rec.reset()
	r.Configure(&config.Settings{NeedsJSON: a.SnapshotPath, SrcDir: t.TempDir()})
	assert.Nil(t, r.Default())
	require.Len(t, rec.warnings, 1)
	assert.Contains(t, rec.warnings[0], "SNAPSHOT_UNREADABLE")
}

func TestConfigure_UnchangedRootsKeepIndex(t *testing.T) {
	a := newRoot(t, "alpha", "From A")
	b := newRoot(t, "beta", "From B")
	rec := &recorder{}
	r := New(nil, rec)

	settings := &config.Settings{
		NeedsJSON: a.SnapshotPath,
		SrcDir:    a.SrcDir,
		Folders:   []config.Folder{{NeedsJSON: b.SnapshotPath, SrcDir: b.SrcDir}},
	}
	r.Configure(settings)
	beforeA := r.Index(a.SnapshotPath)
	beforeB := r.Index(b.SnapshotPath)
	require.NotNil(t, beforeA)
	require.NotNil(t, beforeB)

	require.NoError(t, os.Remove(b.SnapshotPath))
	require.NoError(t, os.Mkdir(b.SnapshotPath, 0755))

	rec.reset()
	settings.LogLevel = "debug"
	r.Configure(settings)

	assert.Same(t, beforeA, r.Index(a.SnapshotPath))
	assert.Same(t, beforeB, r.Index(b.SnapshotPath))
	assert.Equal(t, "From B", title(t, r, filepath.Join(b.SrcDir, "beta.rst")))
	assert.Empty(t, rec.warnings)
}

func TestReload_CreatedAfterMissing(t *testing.T) {
	a := testutil.NewRoot(t)
	rec := &recorder{}
	r := New(nil, rec)
	r.Configure(&config.Settings{NeedsJSON: a.SnapshotPath, SrcDir: a.SrcDir})

	assert.Nil(t, r.Default())
	require.Len(t, rec.warnings, 1)
	assert.Contains(t, rec.warnings[0], "SNAPSHOT_MISSING")

	a.WriteSnapshot(t, testutil.Need{ID: "REQ_1", Title: "Late", Type: "req", DocName: "index", DocType: ".rst"})
	r.HandleFileEvent(FileEvent{Path: a.SnapshotPath, Type: Created})
	assert.Equal(t, "Late", title(t, r, ""))
}

func TestConfigure_DataErrorsAreErrors(t *testing.T) {
	a := testutil.NewRoot(t)
	testutil.WriteFile(t, a.SnapshotPath, []byte(`{"current_version": "1.0", "versions": {}}`))
	rec := &recorder{}
	r := New(nil, rec)

	r.Configure(&config.Settings{NeedsJSON: a.SnapshotPath, SrcDir: a.SrcDir})

	assert.Nil(t, r.Default())
	require.Len(t, rec.errors, 1)
	assert.Contains(t, rec.errors[0], "SNAPSHOT_INVALID")
}

func TestConfigure_MissingSrcDirWarns(t *testing.T) {
	a := newRoot(t, "index", "A")
	rec := &recorder{}
	r := New(nil, rec)

	r.Configure(&config.Settings{NeedsJSON: a.SnapshotPath, SrcDir: filepath.Join(a.Dir, "nope")})

	require.Len(t, rec.warnings, 1)
	assert.Contains(t, rec.warnings[0], "SRCDIR_MISSING")
	assert.NotNil(t, r.Default(), "the index still loads")
}

func TestConfigure_RemovesRoots(t *testing.T) {
	a := newRoot(t, "alpha", "From A")
	b := newRoot(t, "beta", "From B")
	r := New(nil, nil)

	r.Configure(&config.Settings{NeedsJSON: a.SnapshotPath, SrcDir: a.SrcDir,
		Folders: []config.Folder{{NeedsJSON: b.SnapshotPath, SrcDir: b.SrcDir}}})
	require.True(t, r.Owns(b.SnapshotPath))

	r.Configure(&config.Settings{NeedsJSON: a.SnapshotPath, SrcDir: a.SrcDir})
	assert.False(t, r.Owns(b.SnapshotPath))
	assert.False(t, r.HandleFileEvent(FileEvent{Path: b.SnapshotPath, Type: Changed}))
	assert.Equal(t, "From A", title(t, r, filepath.Join(b.SrcDir, "beta.rst")))
}

func TestRegistry_ConcurrentReloadAndResolve(t *testing.T) {
	a := newRoot(t, "index", "A")
	r := New(nil, nil)
	r.Configure(&config.Settings{NeedsJSON: a.SnapshotPath, SrcDir: a.SrcDir})
	doc := filepath.Join(a.SrcDir, "index.rst")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Reload(a.SnapshotPath)
		}()
		go func() {
			defer wg.Done()
			idx := r.Resolve(doc)
			if assert.NotNil(t, idx) {
				_, ok := idx.Need("REQ_1")
				assert.True(t, ok)
			}
		}()
	}
	wg.Wait()
}
