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

func TestIndexDeleteRetiresFileAndOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	require.NoError(t, f.vol.Create(ctx, uidA, "Download/doomed.txt"))

	n, err := f.vol.IndexDelete(ctx, "Download", "doomed.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(f.vol.Root() + "/Download/doomed.txt")
	assert.True(t, os.IsNotExist(err))

	// The ownership record is gone with the row: any caller may recreate
	// the name as a fresh contribution.
	require.NoError(t, f.vol.Create(ctx, uidB, "Download/doomed.txt"))
}

func TestIndexDeleteUnknownRow(t *testing.T) {
	f := newFixture(t)

	_, err := f.vol.IndexDelete(t.Context(), "Download", "ghost.txt")
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrNotFound))
}

func TestIndexRenamePreservesOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	require.NoError(t, f.vol.Create(ctx, uidA, "Download/old.txt"))

	require.NoError(t, f.vol.IndexRename(ctx, "Download", "old.txt", "new.txt"))

	entries, err := f.idx.Query(ctx, "Download", "new.txt")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, pkgA, entries[0].Owner)

	// The original owner still controls the renamed file.
	require.NoError(t, f.vol.Unlink(ctx, uidA, "Download/new.txt"))
}

func TestIndexRenameOntoExisting(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	require.NoError(t, f.vol.Create(ctx, uidA, "Download/a.txt"))
	require.NoError(t, f.vol.Create(ctx, uidA, "Download/b.txt"))

	err := f.vol.IndexRename(ctx, "Download", "a.txt", "b.txt")
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrAlreadyExists))
}

// newPendingFixture builds a volume whose index withholds inserted rows
// until Sync, modeling the consistency window of a real index service.
func newPendingFixture(t *testing.T) *fixture {
	t.Helper()

	idx := index.NewMemoryIndexWithOptions(index.MemoryIndexOptions{AutoPublish: false})
	grants := identity.NewStaticGrants()
	resolver := identity.NewResolver(grants)
	resolver.Register(uidA, pkgA)
	resolver.Register(uidB, pkgB)

	engine := policy.New(ledgermem.New(), idx, policy.Options{})
	vol, err := vfs.New(t.TempDir(), resolver, engine, idx, vfs.Options{})
	require.NoError(t, err)

	return &fixture{vol: vol, idx: idx, grants: grants}
}

func TestOwnershipBackfillWaitsForIndexSync(t *testing.T) {
	f := newPendingFixture(t)
	ctx := t.Context()

	// A file landed on disk and in the index, but the engine's ledger
	// never saw it (an indexer contribution). Until the row is published
	// the engine cannot attribute it, so its contributor has no special
	// rights over it yet.
	require.NoError(t, os.WriteFile(f.vol.Root()+"/DCIM/ext.jpg", []byte{0xFF, 0xD8}, 0o644))
	_, err := f.idx.Insert(ctx, index.Entry{
		RelativeDir: "DCIM",
		DisplayName: "ext.jpg",
		Owner:       pkgA,
		Kind:        storage.KindImage,
	})
	require.NoError(t, err)

	err = f.vol.Unlink(ctx, uidA, "DCIM/ext.jpg")
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrPermissionDenied))

	// Once the index publishes the row, ownership resolves and the delete
	// goes through.
	f.idx.Sync()
	require.NoError(t, f.vol.Unlink(ctx, uidA, "DCIM/ext.jpg"))
}
