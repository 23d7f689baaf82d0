package index

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LightningFastRom/mediafs/pkg/storage"
)

func TestMemoryIndexInsertAndQuery(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := t.Context()

	id, err := idx.Insert(ctx, Entry{
		RelativeDir: "DCIM",
		DisplayName: "shot.jpg",
		Owner:       "com.example.app",
		Kind:        storage.KindImage,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	rows, err := idx.Query(ctx, "DCIM", "shot.jpg")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "com.example.app", rows[0].Owner)
	assert.Equal(t, "DCIM/shot.jpg", rows[0].Path())
	assert.False(t, rows[0].AddedAt.IsZero())

	rows, err = idx.Query(ctx, "DCIM", "other.jpg")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemoryIndexConsistencyWindow(t *testing.T) {
	idx := NewMemoryIndexWithOptions(MemoryIndexOptions{AutoPublish: false})
	ctx := t.Context()

	_, err := idx.Insert(ctx, Entry{RelativeDir: "Pictures", DisplayName: "a.png"})
	require.NoError(t, err)

	// Inside the window the row is not yet queryable.
	rows, err := idx.Query(ctx, "Pictures", "a.png")
	require.NoError(t, err)
	assert.Empty(t, rows)

	idx.Sync()

	rows, err = idx.Query(ctx, "Pictures", "a.png")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMemoryIndexDeleteReachesPendingRows(t *testing.T) {
	idx := NewMemoryIndexWithOptions(MemoryIndexOptions{AutoPublish: false})
	ctx := t.Context()

	_, err := idx.Insert(ctx, Entry{RelativeDir: "Download", DisplayName: "x.txt"})
	require.NoError(t, err)

	n, err := idx.Delete(ctx, "Download", "x.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The deleted row must not surface on the next sync.
	idx.Sync()
	rows, err := idx.Query(ctx, "Download", "x.txt")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemoryIndexRename(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := t.Context()

	_, err := idx.Insert(ctx, Entry{RelativeDir: "Download", DisplayName: "old.txt", Owner: "com.example.app"})
	require.NoError(t, err)

	n, err := idx.Rename(ctx, "Download", "old.txt", "new.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := idx.Query(ctx, "Download", "new.txt")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "com.example.app", rows[0].Owner)

	rows, err = idx.Query(ctx, "Download", "old.txt")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemoryIndexUnavailable(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := t.Context()
	idx.SetAvailable(false)

	_, err := idx.Insert(ctx, Entry{RelativeDir: "DCIM", DisplayName: "a.jpg"})
	assert.True(t, storage.IsCode(err, storage.ErrUnavailable))

	_, err = idx.Query(ctx, "DCIM", "a.jpg")
	assert.True(t, storage.IsCode(err, storage.ErrUnavailable))

	_, err = idx.Delete(ctx, "DCIM", "a.jpg")
	assert.True(t, storage.IsCode(err, storage.ErrUnavailable))

	_, err = idx.Rename(ctx, "DCIM", "a.jpg", "b.jpg")
	assert.True(t, storage.IsCode(err, storage.ErrUnavailable))

	// Reachability is recoverable.
	idx.SetAvailable(true)
	_, err = idx.Insert(ctx, Entry{RelativeDir: "DCIM", DisplayName: "a.jpg"})
	require.NoError(t, err)
}
