// Package classify maps paths inside the shared volume to storage classes.
//
// Classification is pure and total: every normalized volume-relative path has
// exactly one class, computed from its first segments against a static table.
// No filesystem access is ever performed.
package classify

import (
	"path"
	"strings"

	"github.com/LightningFastRom/mediafs/pkg/storage"
)

// Class is the storage class of a path inside the shared volume.
type Class int

const (
	// Unclassified covers paths that match no table entry, including
	// unknown top-level directories and the bare Android containers
	// ("Android", "Android/data") that hold sandboxes but are not
	// themselves sandboxes.
	Unclassified Class = iota

	// VolumeRoot is the root of the shared volume itself.
	VolumeRoot

	// PublicMedia is a well-known public directory accepting a fixed set of
	// media kinds (DCIM, Pictures, Movies, Music).
	PublicMedia

	// PublicDownload is the public download directory, which accepts files
	// of any type.
	PublicDownload

	// AppData is a per-app private sandbox under Android/data/<pkg>.
	AppData

	// AppMedia is a per-app media sandbox under Android/media/<pkg>.
	AppMedia
)

func (c Class) String() string {
	switch c {
	case VolumeRoot:
		return "volume-root"
	case PublicMedia:
		return "public-media"
	case PublicDownload:
		return "public-download"
	case AppData:
		return "app-data"
	case AppMedia:
		return "app-media"
	default:
		return "unclassified"
	}
}

// IsSandbox reports whether the class is a per-app sandbox.
func (c Class) IsSandbox() bool {
	return c == AppData || c == AppMedia
}

// IsPublic reports whether the class is a public directory tree.
func (c Class) IsPublic() bool {
	return c == PublicMedia || c == PublicDownload
}

// KindSet is a set of media kinds accepted by a public directory.
type KindSet uint8

const (
	acceptImage KindSet = 1 << iota
	acceptVideo
	acceptAudio
)

// Contains reports whether the set accepts the given kind. NonMedia is never
// a member of any typed set.
func (s KindSet) Contains(k storage.MediaKind) bool {
	switch k {
	case storage.KindImage:
		return s&acceptImage != 0
	case storage.KindVideo:
		return s&acceptVideo != 0
	case storage.KindAudio:
		return s&acceptAudio != 0
	default:
		return false
	}
}

// Result is the classification of one path.
type Result struct {
	// Class is the storage class.
	Class Class

	// Owner is the sandbox owner package, set only for AppData and AppMedia.
	Owner string

	// Accepts is the set of media kinds creatable in this tree, set only for
	// PublicMedia. PublicDownload accepts any type and carries no set.
	Accepts KindSet
}

// publicDirs maps well-known top-level directory names to the media kinds
// they accept. Download accepts anything and is handled separately.
var publicDirs = map[string]KindSet{
	"DCIM":     acceptImage | acceptVideo,
	"Pictures": acceptImage | acceptVideo,
	"Movies":   acceptVideo,
	"Music":    acceptAudio,
}

// downloadDirs are the accepted spellings of the public download directory.
// Android names it "Download"; the plural appears in host-side tooling.
var downloadDirs = map[string]bool{
	"Download":  true,
	"Downloads": true,
}

// Path classifies a normalized volume-relative path (see Normalize).
// The empty path is the volume root.
func Path(rel string) Result {
	if rel == "" {
		return Result{Class: VolumeRoot}
	}

	segments := strings.Split(rel, "/")
	top := segments[0]

	if kinds, ok := publicDirs[top]; ok {
		return Result{Class: PublicMedia, Accepts: kinds}
	}
	if downloadDirs[top] {
		return Result{Class: PublicDownload}
	}

	// Android/data/<pkg> and Android/media/<pkg>. The containers themselves
	// ("Android", "Android/data") stay unclassified.
	if top == "Android" && len(segments) >= 3 {
		switch segments[1] {
		case "data":
			return Result{Class: AppData, Owner: segments[2]}
		case "media":
			return Result{Class: AppMedia, Owner: segments[2]}
		}
	}

	return Result{Class: Unclassified}
}

// Normalize converts a caller-supplied path into the canonical volume-relative
// form used everywhere in the engine: forward slashes, no leading or trailing
// slash, "" for the root. It reports false for paths that escape the volume.
func Normalize(p string) (string, bool) {
	p = strings.ReplaceAll(p, "\\", "/")
	cleaned := path.Clean(strings.TrimPrefix(p, "/"))
	if cleaned == "." || cleaned == "/" {
		return "", true
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}
