package e2e

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LightningFastRom/mediafs/pkg/storage"
	"github.com/LightningFastRom/mediafs/test/e2e/framework"
)

const (
	uidGallery = 10100
	uidNotes   = 10101

	pkgGallery = "com.example.gallery"
	pkgNotes   = "com.example.notes"
)

func forEachStore(t *testing.T, fn func(t *testing.T, env *framework.TestEnv)) {
	for _, storeType := range framework.StoreTypes {
		t.Run(string(storeType), func(t *testing.T) {
			fn(t, framework.NewTestEnv(t, storeType))
		})
	}
}

// TestMediaLifecycle walks one file through contribution, discovery,
// foreign access attempts, rename, and deletion.
func TestMediaLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, env *framework.TestEnv) {
		env.Install(uidGallery, pkgGallery, false, false)
		env.Install(uidNotes, pkgNotes, false, false)

		photo := []byte("jpeg bytes")
		require.NoError(t, env.WriteFileAs(uidGallery, "DCIM/sunset.jpg", photo))

		// The contributor reads its own file back.
		got, err := env.ReadFileAs(uidGallery, "DCIM/sunset.jpg")
		require.NoError(t, err)
		assert.Equal(t, photo, got)

		// Without broad read the other app cannot discover it.
		env.AssertHidden(uidNotes, "DCIM", "sunset.jpg")

		// With broad read it becomes discoverable but stays undeletable.
		env.Grants.Grant(pkgNotes, true, false)
		env.AssertVisible(uidNotes, "DCIM", "sunset.jpg")
		err = env.DeleteAs(uidNotes, "DCIM/sunset.jpg")
		require.Error(t, err)
		assert.True(t, storage.IsCode(err, storage.ErrPermissionDenied))

		// The owner renames within type rules and finally deletes.
		require.NoError(t, env.RenameAs(uidGallery, "DCIM/sunset.jpg", "Pictures/sunset.jpg"))
		require.NoError(t, env.DeleteAs(uidGallery, "Pictures/sunset.jpg"))

		_, err = env.ReadFileAs(uidGallery, "Pictures/sunset.jpg")
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	})
}

// TestSandboxLifecycle exercises install, private storage, and uninstall.
func TestSandboxLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, env *framework.TestEnv) {
		env.Install(uidGallery, pkgGallery, true, true)
		env.Install(uidNotes, pkgNotes, false, false)

		require.NoError(t, env.MkdirAs(uidNotes, "Android/data/"+pkgNotes))
		require.NoError(t, env.WriteFileAs(uidNotes, "Android/data/"+pkgNotes+"/prefs.xml", []byte("<xml/>")))

		// Even broad read and write stop at a foreign data sandbox.
		_, err := env.ReadFileAs(uidGallery, "Android/data/"+pkgNotes+"/prefs.xml")
		require.Error(t, err)
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))

		err = env.WriteFileAs(uidGallery, "Android/data/"+pkgNotes+"/planted.txt", nil)
		require.Error(t, err)
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))

		// After uninstall the uid is anonymous; the sandbox denies it too.
		env.Uninstall(uidNotes, pkgNotes)
		_, err = env.ReadFileAs(uidNotes, "Android/data/"+pkgNotes+"/prefs.xml")
		require.Error(t, err)
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	})
}

// TestDownloadSharing covers the untyped public directory: any file type,
// per-owner deletion, non-media invisibility to others.
func TestDownloadSharing(t *testing.T) {
	forEachStore(t, func(t *testing.T, env *framework.TestEnv) {
		env.Install(uidGallery, pkgGallery, true, false)
		env.Install(uidNotes, pkgNotes, false, false)

		require.NoError(t, env.WriteFileAs(uidNotes, "Download/notes.txt", []byte("todo")))
		require.NoError(t, env.WriteFileAs(uidNotes, "Download/cover.jpg", []byte("img")))

		// Media crosses app boundaries under broad read; documents do not.
		env.AssertVisible(uidGallery, "Download", "cover.jpg")
		env.AssertHidden(uidGallery, "Download", "notes.txt")

		// An exact path still opens for reading.
		got, err := env.ReadFileAs(uidGallery, "Download/notes.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("todo"), got)
	})
}

// TestManyContributors spreads files over both apps and checks each owner
// sees exactly its own plus foreign media it is entitled to.
func TestManyContributors(t *testing.T) {
	forEachStore(t, func(t *testing.T, env *framework.TestEnv) {
		env.Install(uidGallery, pkgGallery, false, false)
		env.Install(uidNotes, pkgNotes, false, false)

		for i := 0; i < 5; i++ {
			require.NoError(t, env.WriteFileAs(uidGallery, fmt.Sprintf("Pictures/g%d.png", i), []byte{byte(i)}))
			require.NoError(t, env.WriteFileAs(uidNotes, fmt.Sprintf("Download/n%d.txt", i), []byte{byte(i)}))
		}

		pics, err := env.ListAs(uidGallery, "Pictures")
		require.NoError(t, err)
		assert.Len(t, pics, 5)

		// Without grants the other app sees an empty Pictures directory.
		pics, err = env.ListAs(uidNotes, "Pictures")
		require.NoError(t, err)
		assert.Empty(t, pics)

		downloads, err := env.ListAs(uidNotes, "Download")
		require.NoError(t, err)
		assert.Len(t, downloads, 5)
	})
}
