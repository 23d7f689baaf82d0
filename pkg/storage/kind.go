package storage

import (
	"path/filepath"
	"strings"
)

// MediaKind is the content class of a file, derived from its name.
//
// The mapping from file extension to MediaKind is a fixed table. Content
// sniffing (looking at actual bytes) is only done by the index scanner;
// access decisions always use the name-based classification so that a
// decision for a path is stable regardless of file state.
type MediaKind int

const (
	// KindNonMedia is any file that is not a recognized media type.
	KindNonMedia MediaKind = iota

	// KindImage is a recognized still-image file.
	KindImage

	// KindVideo is a recognized video file.
	KindVideo

	// KindAudio is a recognized audio file.
	KindAudio
)

func (k MediaKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "nonmedia"
	}
}

// IsMedia reports whether the kind is a recognized media class.
func (k MediaKind) IsMedia() bool {
	return k != KindNonMedia
}

// extensionKinds maps lower-case file extensions (with leading dot) to their
// media kind. Anything absent from the table is NonMedia.
var extensionKinds = map[string]MediaKind{
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".gif":  KindImage,
	".webp": KindImage,
	".bmp":  KindImage,
	".heic": KindImage,

	".mp4":  KindVideo,
	".mkv":  KindVideo,
	".webm": KindVideo,
	".3gp":  KindVideo,
	".avi":  KindVideo,
	".mov":  KindVideo,

	".mp3":  KindAudio,
	".ogg":  KindAudio,
	".oga":  KindAudio,
	".wav":  KindAudio,
	".flac": KindAudio,
	".m4a":  KindAudio,
	".aac":  KindAudio,
	".opus": KindAudio,
}

// KindOfName returns the MediaKind for a file name or path based on its
// extension. The lookup is case-insensitive and total: unknown and missing
// extensions classify as KindNonMedia.
func KindOfName(name string) MediaKind {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return KindNonMedia
	}
	return extensionKinds[ext]
}
