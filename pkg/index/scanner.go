package index

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/LightningFastRom/mediafs/pkg/storage"
)

// Scanner discovers files already on the volume and back-fills index rows
// for them as system-contributed content. It is the engine-side equivalent
// of a media scan: files touched by privileged tools (shell, adb) have no
// contributing app, but still need index rows to become queryable.
type Scanner struct {
	// Root is the physical root of the shared volume.
	Root string

	// Index receives the discovered rows.
	Index Index
}

// ScanFile indexes a single file by its normalized volume-relative path.
// Existing rows for the same (directory, name) are replaced. The media kind
// comes from the extension table, with content sniffing as a fallback for
// files whose extension says nothing.
func (s *Scanner) ScanFile(ctx context.Context, rel string) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}

	dir, name := splitEntry(rel)

	kind := storage.KindOfName(name)
	if kind == storage.KindNonMedia {
		kind = sniffKind(filepath.Join(s.Root, filepath.FromSlash(rel)))
	}

	if _, err := s.Index.Delete(ctx, dir, name); err != nil {
		return uuid.Nil, err
	}
	return s.Index.Insert(ctx, Entry{
		RelativeDir: dir,
		DisplayName: name,
		Owner:       "",
		Kind:        kind,
	})
}

// ScanDir walks the subtree rooted at the normalized volume-relative
// directory and indexes every regular file, returning how many were
// indexed.
func (s *Scanner) ScanDir(ctx context.Context, rel string) (int, error) {
	start := filepath.Join(s.Root, filepath.FromSlash(rel))

	indexed := 0
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		if _, err := s.ScanFile(ctx, filepath.ToSlash(relPath)); err != nil {
			return err
		}
		indexed++
		return nil
	})
	if err != nil {
		return indexed, err
	}
	return indexed, nil
}

// sniffKind detects the media kind from file content. Unreadable or
// unrecognized files are NonMedia.
func sniffKind(physical string) storage.MediaKind {
	mtype, err := mimetype.DetectFile(physical)
	if err != nil {
		return storage.KindNonMedia
	}
	switch {
	case strings.HasPrefix(mtype.String(), "image/"):
		return storage.KindImage
	case strings.HasPrefix(mtype.String(), "video/"):
		return storage.KindVideo
	case strings.HasPrefix(mtype.String(), "audio/"):
		return storage.KindAudio
	default:
		return storage.KindNonMedia
	}
}

// splitEntry splits a normalized volume-relative path into its directory
// (no trailing slash, "" for the root) and display name.
func splitEntry(rel string) (dir, name string) {
	dir, name = path.Split(rel)
	return strings.TrimSuffix(dir, "/"), name
}
