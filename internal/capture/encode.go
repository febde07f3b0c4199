package capture

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"
)

// Image encodings for snapshots.
const (
	EncodingPNG  = "png"
	EncodingJPEG = "jpeg"
)

// DefaultJPEGQuality is used when quality is out of range.
const DefaultJPEGQuality = 90

// Encode writes img in the given encoding.
func Encode(w io.Writer, img image.Image, encoding string, quality int) error {
	switch encoding {
	case EncodingPNG:
		return png.Encode(w, img)
	case EncodingJPEG:
		if quality < 1 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	default:
		return fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// ContentType returns the MIME type of an encoding.
func ContentType(encoding string) string {
	if encoding == EncodingJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// EncodingForPath picks the encoding from a file extension, PNG by default.
func EncodingForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return EncodingJPEG
	default:
		return EncodingPNG
	}
}
