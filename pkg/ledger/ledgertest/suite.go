// Package ledgertest provides a reusable test suite for ledger.Store
// implementations. It tests the interface contract, not implementation
// details, so every backend (memory, badger) runs the same assertions.
package ledgertest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LightningFastRom/mediafs/pkg/ledger"
	"github.com/LightningFastRom/mediafs/pkg/storage"
)

// Suite runs the full ledger.Store contract against a backend.
type Suite struct {
	// NewStore creates a fresh store per test for isolation.
	NewStore func(t *testing.T) ledger.Store
}

// Run executes all tests in the suite.
func (s *Suite) Run(t *testing.T) {
	t.Run("CreateAndLookup", s.testCreateAndLookup)
	t.Run("DuplicateCreate", s.testDuplicateCreate)
	t.Run("Delete", s.testDelete)
	t.Run("DeleteMissing", s.testDeleteMissing)
	t.Run("LookupMissing", s.testLookupMissing)
	t.Run("RenameFile", s.testRenameFile)
	t.Run("RenameSubtree", s.testRenameSubtree)
	t.Run("RenameMissing", s.testRenameMissing)
	t.Run("Reconcile", s.testReconcile)
	t.Run("ConcurrentCreateOneWinner", s.testConcurrentCreateOneWinner)
}

func record(path, owner string, kind storage.MediaKind) ledger.Record {
	return ledger.Record{Path: path, Owner: owner, Kind: kind, CreatedAt: time.Now().UTC()}
}

func (s *Suite) testCreateAndLookup(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	rec := record("DCIM/photo.jpg", "com.example.camera", storage.KindImage)
	require.NoError(t, store.RecordCreate(ctx, rec))

	got, err := store.Lookup(ctx, "DCIM/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, rec.Path, got.Path)
	assert.Equal(t, rec.Owner, got.Owner)
	assert.Equal(t, rec.Kind, got.Kind)
}

func (s *Suite) testDuplicateCreate(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	rec := record("Music/track.mp3", "com.example.player", storage.KindAudio)
	require.NoError(t, store.RecordCreate(ctx, rec))

	err := store.RecordCreate(ctx, record("Music/track.mp3", "com.other", storage.KindAudio))
	assert.True(t, storage.IsCode(err, storage.ErrAlreadyExists))

	// The original owner must survive the failed create.
	got, err := store.Lookup(ctx, "Music/track.mp3")
	require.NoError(t, err)
	assert.Equal(t, "com.example.player", got.Owner)
}

func (s *Suite) testDelete(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.RecordCreate(ctx, record("Download/doc.pdf", "com.example", storage.KindNonMedia)))
	require.NoError(t, store.RecordDelete(ctx, "Download/doc.pdf"))

	_, err := store.Lookup(ctx, "Download/doc.pdf")
	assert.True(t, storage.IsCode(err, storage.ErrNotFound))
}

func (s *Suite) testDeleteMissing(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	err := store.RecordDelete(context.Background(), "Download/ghost.pdf")
	assert.True(t, storage.IsCode(err, storage.ErrNotFound))
}

func (s *Suite) testLookupMissing(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	_, err := store.Lookup(context.Background(), "Pictures/nothing.png")
	assert.True(t, storage.IsCode(err, storage.ErrNotFound))
}

func (s *Suite) testRenameFile(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.RecordCreate(ctx, record("DCIM/old.jpg", "com.example", storage.KindImage)))
	require.NoError(t, store.Rename(ctx, "DCIM/old.jpg", "DCIM/new.jpg"))

	_, err := store.Lookup(ctx, "DCIM/old.jpg")
	assert.True(t, storage.IsCode(err, storage.ErrNotFound))

	got, err := store.Lookup(ctx, "DCIM/new.jpg")
	require.NoError(t, err)
	assert.Equal(t, "DCIM/new.jpg", got.Path)
	assert.Equal(t, "com.example", got.Owner)
}

func (s *Suite) testRenameSubtree(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.RecordCreate(ctx, record("DCIM/trip/a.jpg", "com.example", storage.KindImage)))
	require.NoError(t, store.RecordCreate(ctx, record("DCIM/trip/b.jpg", "com.example", storage.KindImage)))
	require.NoError(t, store.RecordCreate(ctx, record("DCIM/tripod.jpg", "com.example", storage.KindImage)))

	require.NoError(t, store.Rename(ctx, "DCIM/trip", "DCIM/vacation"))

	for _, moved := range []string{"DCIM/vacation/a.jpg", "DCIM/vacation/b.jpg"} {
		got, err := store.Lookup(ctx, moved)
		require.NoError(t, err, moved)
		assert.Equal(t, moved, got.Path)
	}

	// Sibling sharing the name prefix but not the directory must not move.
	_, err := store.Lookup(ctx, "DCIM/tripod.jpg")
	assert.NoError(t, err)

	_, err = store.Lookup(ctx, "DCIM/trip/a.jpg")
	assert.True(t, storage.IsCode(err, storage.ErrNotFound))
}

func (s *Suite) testRenameMissing(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	err := store.Rename(context.Background(), "Movies/ghost.mp4", "Movies/still-ghost.mp4")
	assert.True(t, storage.IsCode(err, storage.ErrNotFound))
}

func (s *Suite) testReconcile(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	// Reconcile inserts when absent and overwrites when present.
	require.NoError(t, store.Reconcile(ctx, record("Pictures/found.png", "", storage.KindImage)))
	got, err := store.Lookup(ctx, "Pictures/found.png")
	require.NoError(t, err)
	assert.Equal(t, "", got.Owner)

	require.NoError(t, store.Reconcile(ctx, record("Pictures/found.png", "com.example", storage.KindImage)))
	got, err = store.Lookup(ctx, "Pictures/found.png")
	require.NoError(t, err)
	assert.Equal(t, "com.example", got.Owner)
}

func (s *Suite) testConcurrentCreateOneWinner(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.RecordCreate(ctx, record("Download/contested.bin", "com.example", storage.KindNonMedia))
		}()
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case storage.IsCode(err, storage.ErrAlreadyExists):
			losses++
		default:
			t.Fatalf("unexpected error from racing create: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, losses)
}
