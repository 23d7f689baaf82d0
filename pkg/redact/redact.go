// Package redact strips sensitive embedded metadata from media content
// served to non-owning callers.
//
// Redaction works on byte ranges: the JPEG/EXIF container is parsed to
// locate positional metadata (the GPS IFD), and those ranges are zeroed in
// the returned copy. Zeroing in place keeps every offset in the container
// valid, so the image payload is never corrupted, and the operation is
// idempotent: once the GPS IFD pointer reads zero, a second pass finds
// nothing to redact.
package redact

import (
	"encoding/binary"
	"path/filepath"
	"strings"
)

// Range is a half-open byte range [Off, Off+Len) within a file.
type Range struct {
	Off int
	Len int
}

// IsRedactable reports whether redaction applies to files with this name.
// Only JPEG carries EXIF in the formats the engine recognizes.
func IsRedactable(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return true
	default:
		return false
	}
}

// Apply returns content with every sensitive range zeroed. When nothing
// needs redaction the input slice is returned unchanged.
func Apply(data []byte) []byte {
	ranges := Ranges(data)
	if len(ranges) == 0 {
		return data
	}

	out := make([]byte, len(data))
	copy(out, data)
	for _, r := range ranges {
		for i := r.Off; i < r.Off+r.Len && i < len(out); i++ {
			out[i] = 0
		}
	}
	return out
}

// Ranges returns the sensitive byte ranges of a JPEG. Content that is not a
// JPEG, carries no EXIF, or is malformed yields no ranges: redaction never
// guesses at offsets inside data it cannot parse.
func Ranges(data []byte) []Range {
	tiffOff, tiffLen, ok := findExifBlock(data)
	if !ok {
		return nil
	}
	return gpsRanges(data, tiffOff, tiffLen)
}

// findExifBlock walks JPEG marker segments looking for the APP1 Exif
// payload and returns the offset and length of its embedded TIFF block.
func findExifBlock(data []byte) (off, length int, ok bool) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return 0, 0, false
	}

	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			return 0, 0, false
		}
		marker := data[pos+1]

		// Padding and standalone markers carry no length word.
		if marker == 0xFF {
			pos++
			continue
		}
		if marker == 0x01 || (marker >= 0xD0 && marker <= 0xD9) {
			pos += 2
			continue
		}
		// Entropy-coded data follows SOS; EXIF never appears after it.
		if marker == 0xDA {
			return 0, 0, false
		}

		segLen := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		if segLen < 2 || pos+2+segLen > len(data) {
			return 0, 0, false
		}

		if marker == 0xE1 {
			payload := data[pos+4 : pos+2+segLen]
			if len(payload) >= 6 && string(payload[:6]) == "Exif\x00\x00" {
				return pos + 4 + 6, segLen - 2 - 6, true
			}
		}
		pos += 2 + segLen
	}
	return 0, 0, false
}

// TIFF entry field types to their element sizes in bytes.
var typeSizes = map[uint16]int{
	1:  1, // BYTE
	2:  1, // ASCII
	3:  2, // SHORT
	4:  4, // LONG
	5:  8, // RATIONAL
	6:  1, // SBYTE
	7:  1, // UNDEFINED
	8:  2, // SSHORT
	9:  4, // SLONG
	10: 8, // SRATIONAL
	11: 4, // FLOAT
	12: 8, // DOUBLE
}

const tagGPSInfo = 0x8825

// gpsRanges parses the TIFF block and collects the ranges holding GPS data:
// the GPS IFD pointer value, the GPS IFD itself, and any entry values
// stored outside the IFD.
func gpsRanges(data []byte, tiffOff, tiffLen int) []Range {
	if tiffLen < 8 || tiffOff+tiffLen > len(data) {
		return nil
	}
	tiff := data[tiffOff : tiffOff+tiffLen]

	var order binary.ByteOrder
	switch {
	case tiff[0] == 'I' && tiff[1] == 'I':
		order = binary.LittleEndian
	case tiff[0] == 'M' && tiff[1] == 'M':
		order = binary.BigEndian
	default:
		return nil
	}
	if order.Uint16(tiff[2:4]) != 42 {
		return nil
	}

	ifd0 := int(order.Uint32(tiff[4:8]))
	if ifd0 <= 0 || ifd0+2 > tiffLen {
		return nil
	}

	var ranges []Range
	count := int(order.Uint16(tiff[ifd0 : ifd0+2]))
	for i := 0; i < count; i++ {
		entry := ifd0 + 2 + i*12
		if entry+12 > tiffLen {
			return nil
		}
		if order.Uint16(tiff[entry:entry+2]) != tagGPSInfo {
			continue
		}

		gpsOff := int(order.Uint32(tiff[entry+8 : entry+12]))
		if gpsOff == 0 {
			// Already redacted.
			return nil
		}

		// Zero the pointer itself so readers treat GPS as absent.
		ranges = append(ranges, Range{Off: tiffOff + entry + 8, Len: 4})
		ranges = append(ranges, ifdRanges(tiff, tiffOff, gpsOff, order)...)
		return ranges
	}
	return nil
}

// ifdRanges returns the byte ranges of a whole IFD: its entry table and
// every value stored outside it.
func ifdRanges(tiff []byte, tiffOff, ifd int, order binary.ByteOrder) []Range {
	if ifd+2 > len(tiff) {
		return nil
	}
	count := int(order.Uint16(tiff[ifd : ifd+2]))
	tableLen := 2 + count*12 + 4
	if ifd+tableLen > len(tiff) {
		tableLen = len(tiff) - ifd
	}

	ranges := []Range{{Off: tiffOff + ifd, Len: tableLen}}

	for i := 0; i < count; i++ {
		entry := ifd + 2 + i*12
		if entry+12 > len(tiff) {
			break
		}
		typ := order.Uint16(tiff[entry+2 : entry+4])
		num := int(order.Uint32(tiff[entry+4 : entry+8]))
		size, ok := typeSizes[typ]
		if !ok {
			continue
		}
		total := size * num
		if total <= 4 {
			continue
		}
		valOff := int(order.Uint32(tiff[entry+8 : entry+12]))
		if valOff <= 0 || valOff+total > len(tiff) {
			continue
		}
		ranges = append(ranges, Range{Off: tiffOff + valOff, Len: total})
	}
	return ranges
}
