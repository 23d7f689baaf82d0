package vfs_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LightningFastRom/mediafs/pkg/identity"
	"github.com/LightningFastRom/mediafs/pkg/index"
	ledgermem "github.com/LightningFastRom/mediafs/pkg/ledger/memory"
	"github.com/LightningFastRom/mediafs/pkg/storage"
	"github.com/LightningFastRom/mediafs/pkg/storage/policy"
	"github.com/LightningFastRom/mediafs/pkg/vfs"
)

const (
	uidShell = identity.Token(2000)
	uidA     = identity.Token(10100)
	uidB     = identity.Token(10101)
	uidAnon  = identity.Token(10999)

	pkgA = "com.example.alpha"
	pkgB = "com.example.beta"
)

type fixture struct {
	vol    *vfs.Volume
	idx    *index.MemoryIndex
	grants *identity.StaticGrants
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	idx := index.NewMemoryIndex()
	grants := identity.NewStaticGrants()
	resolver := identity.NewResolver(grants)
	resolver.Register(uidA, pkgA)
	resolver.Register(uidB, pkgB)

	engine := policy.New(ledgermem.New(), idx, policy.Options{})
	vol, err := vfs.New(t.TempDir(), resolver, engine, idx, vfs.Options{})
	require.NoError(t, err)

	return &fixture{vol: vol, idx: idx, grants: grants}
}

func TestVolumeProvisionsWellKnownDirs(t *testing.T) {
	f := newFixture(t)

	entries, err := f.vol.ReadDir(t.Context(), uidA, "")
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name] = e.IsDir
	}
	for _, dir := range []string{"DCIM", "Pictures", "Movies", "Music", "Download", "Android"} {
		assert.True(t, names[dir], "expected provisioned directory %s", dir)
	}
}

func TestCreateHonorsDirectoryMediaTypes(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	cases := []struct {
		name string
		path string
		ok   bool
	}{
		{"audio in Music", "Music/song.mp3", true},
		{"image in Music", "Music/cover.jpg", false},
		{"video in Music", "Music/clip.mp4", false},
		{"video in Movies", "Movies/clip.mp4", true},
		{"audio in Movies", "Movies/song.mp3", false},
		{"image in DCIM", "DCIM/shot.jpg", true},
		{"video in DCIM", "DCIM/clip.mp4", true},
		{"audio in DCIM", "DCIM/song.mp3", false},
		{"image in Pictures", "Pictures/art.png", true},
		{"audio in Pictures", "Pictures/song.ogg", false},
		{"document in Download", "Download/report.pdf", true},
		{"audio in Download", "Download/song.mp3", true},
		{"document in Pictures", "Pictures/report.pdf", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.vol.Create(ctx, uidA, tc.path)
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, storage.IsCode(err, storage.ErrTypeMismatch))
				assert.Contains(t, err.Error(), "Operation not permitted")
			}
		})
	}
}

func TestCreateAtVolumeRootDenied(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"stray.txt", "photo.jpg", "Downloadish"} {
		err := f.vol.Create(t.Context(), uidA, name)
		require.Error(t, err, "create of %s at root should fail", name)
		assert.True(t, storage.IsCode(err, storage.ErrPermissionDenied))
		assert.Contains(t, err.Error(), "Operation not permitted")
	}

	// Occupied root names fail on existence before policy is consulted.
	err := f.vol.Create(t.Context(), uidA, "Download")
	assert.True(t, storage.IsCode(err, storage.ErrAlreadyExists))

	// Privileged callers are not scoped.
	require.NoError(t, f.vol.Create(t.Context(), uidShell, "rootfile.txt"))
}

func TestForeignSandboxIndistinguishableFromAbsent(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	// pkgB is installed and has a populated sandbox; "com.absent.pkg" was
	// never installed. Caller A must get byte-identical errors for both.
	require.NoError(t, f.vol.Mkdir(ctx, uidB, "Android/data/"+pkgB))
	require.NoError(t, f.vol.Create(ctx, uidB, "Android/data/"+pkgB+"/secret.txt"))

	installed := f.vol.Create(ctx, uidA, "Android/data/"+pkgB+"/mine.txt")
	absent := f.vol.Create(ctx, uidA, "Android/data/com.absent.pkg/mine.txt")
	require.Error(t, installed)
	require.Error(t, absent)
	assert.True(t, storage.IsCode(installed, storage.ErrNotFound))
	assert.True(t, storage.IsCode(absent, storage.ErrNotFound))

	var se1, se2 *storage.StorageError
	require.ErrorAs(t, installed, &se1)
	require.ErrorAs(t, absent, &se2)
	assert.Equal(t, se1.Message, se2.Message)

	// Creating at the exact path of an existing foreign file must not leak
	// its existence through a different error than the absent sibling.
	occupied := f.vol.Create(ctx, uidA, "Android/data/"+pkgB+"/secret.txt")
	require.Error(t, occupied)
	assert.True(t, storage.IsCode(occupied, storage.ErrNotFound))
	require.ErrorAs(t, occupied, &se1)
	assert.Equal(t, se2.Message, se1.Message)

	// Same through a non-exclusive creating open.
	_, errOpen := f.vol.Open(ctx, uidA, "Android/data/"+pkgB+"/secret.txt", os.O_WRONLY|os.O_CREATE)
	require.Error(t, errOpen)
	assert.True(t, storage.IsCode(errOpen, storage.ErrNotFound))
	require.ErrorAs(t, errOpen, &se1)
	assert.Equal(t, se2.Message, se1.Message)

	_, errInstalled := f.vol.ReadDir(ctx, uidA, "Android/data/"+pkgB)
	_, errAbsent := f.vol.ReadDir(ctx, uidA, "Android/data/com.absent.pkg")
	require.Error(t, errInstalled)
	require.Error(t, errAbsent)
	require.ErrorAs(t, errInstalled, &se1)
	require.ErrorAs(t, errAbsent, &se2)
	assert.Equal(t, se1.Message, se2.Message)

	_, errStat := f.vol.Stat(ctx, uidA, "Android/data/"+pkgB+"/secret.txt")
	assert.True(t, storage.IsCode(errStat, storage.ErrNotFound))
}

func TestOwnSandboxFullAccess(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	require.NoError(t, f.vol.Mkdir(ctx, uidA, "Android/data/"+pkgA))
	require.NoError(t, f.vol.Mkdir(ctx, uidA, "Android/data/"+pkgA+"/files"))
	require.NoError(t, f.vol.Create(ctx, uidA, "Android/data/"+pkgA+"/files/state.bin"))

	// No media-type rules inside a sandbox.
	require.NoError(t, f.vol.Create(ctx, uidA, "Android/data/"+pkgA+"/files/song.mp3"))

	entries, err := f.vol.ReadDir(ctx, uidA, "Android/data/"+pkgA+"/files")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, f.vol.Unlink(ctx, uidA, "Android/data/"+pkgA+"/files/state.bin"))
	require.NoError(t, f.vol.Unlink(ctx, uidA, "Android/data/"+pkgA+"/files/song.mp3"))
	require.NoError(t, f.vol.Rmdir(ctx, uidA, "Android/data/"+pkgA+"/files"))
}

func TestUnlinkOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	require.NoError(t, f.vol.Create(ctx, uidA, "DCIM/owned.jpg"))

	err := f.vol.Unlink(ctx, uidB, "DCIM/owned.jpg")
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrPermissionDenied))
	assert.Contains(t, err.Error(), "Permission denied")

	// The broad write grant unlocks foreign deletes.
	f.grants.Grant(pkgB, true, true)
	require.NoError(t, f.vol.Unlink(ctx, uidB, "DCIM/owned.jpg"))

	// The owner can always delete its own contribution.
	require.NoError(t, f.vol.Create(ctx, uidA, "DCIM/owned.jpg"))
	require.NoError(t, f.vol.Unlink(ctx, uidA, "DCIM/owned.jpg"))
}

func TestUnlinkDirectoryRejected(t *testing.T) {
	f := newFixture(t)

	err := f.vol.Unlink(t.Context(), uidShell, "DCIM")
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrIsDirectory))
}

func TestRecreateAfterDelete(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	require.NoError(t, f.vol.Create(ctx, uidA, "Download/notes.txt"))
	require.NoError(t, f.vol.Unlink(ctx, uidA, "Download/notes.txt"))

	// The ownership record must be gone: a second create is a fresh
	// contribution, not a conflict.
	require.NoError(t, f.vol.Create(ctx, uidA, "Download/notes.txt"))
}

func TestRenameAppliesDestinationTypeRules(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	require.NoError(t, f.vol.Create(ctx, uidA, "DCIM/shot.jpg"))

	err := f.vol.Rename(ctx, uidA, "DCIM/shot.jpg", "Music/shot.jpg")
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrTypeMismatch))

	require.NoError(t, f.vol.Rename(ctx, uidA, "DCIM/shot.jpg", "Pictures/shot.jpg"))

	// Ownership followed the move.
	require.NoError(t, f.vol.Unlink(ctx, uidA, "Pictures/shot.jpg"))
}

func TestRenameForeignFileDenied(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	require.NoError(t, f.vol.Create(ctx, uidA, "Download/mine.txt"))

	err := f.vol.Rename(ctx, uidB, "Download/mine.txt", "Download/stolen.txt")
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrPermissionDenied))
}

func TestRenameOntoExistingDenied(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	require.NoError(t, f.vol.Create(ctx, uidA, "Download/a.txt"))
	require.NoError(t, f.vol.Create(ctx, uidA, "Download/b.txt"))

	err := f.vol.Rename(ctx, uidA, "Download/a.txt", "Download/b.txt")
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrAlreadyExists))
}

func TestMkdirRules(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	require.NoError(t, f.vol.Mkdir(ctx, uidA, "Download/myapp"))
	require.NoError(t, f.vol.Create(ctx, uidA, "Download/myapp/data.bin"))

	err := f.vol.Mkdir(ctx, uidA, "newtopdir")
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrPermissionDenied))

	err = f.vol.Mkdir(ctx, uidA, "Android/data/"+pkgB+"/cache")
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrNotFound))

	err = f.vol.Rmdir(ctx, uidA, "Download/myapp")
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrNotEmpty))

	require.NoError(t, f.vol.Unlink(ctx, uidA, "Download/myapp/data.bin"))
	require.NoError(t, f.vol.Rmdir(ctx, uidA, "Download/myapp"))
}

func TestAnonymousCallerLimitedToPublicContribution(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	require.NoError(t, f.vol.Create(ctx, uidAnon, "Download/drop.txt"))

	// Without a package identity there is no ownership, so the anonymous
	// caller cannot delete what it just wrote.
	err := f.vol.Unlink(ctx, uidAnon, "Download/drop.txt")
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrPermissionDenied))
}

func TestEscapingPathsRejected(t *testing.T) {
	f := newFixture(t)

	for _, p := range []string{"../outside.txt", "Download/../../etc/passwd"} {
		err := f.vol.Create(t.Context(), uidA, p)
		require.Error(t, err, "path %s must not resolve", p)
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	}
}

func TestIndexUnavailableFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	// A file present on disk but absent from the ledger forces the engine
	// to consult the index for ownership.
	require.NoError(t, os.WriteFile(f.vol.Root()+"/Download/legacy.txt", []byte("x"), 0o644))
	f.idx.SetAvailable(false)

	err := f.vol.Unlink(ctx, uidA, "Download/legacy.txt")
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrUnavailable))
	assert.Contains(t, err.Error(), "Permission denied")
}
