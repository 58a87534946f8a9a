package ofd

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var formatMediaTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
	"webp": "image/webp",
}

// imageExtension returns the file extension used for synthetic image names.
func imageExtension(mediaType string) string {
	switch strings.ToLower(mediaType) {
	case "image/jpeg":
		return ".jpg"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tiff"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// sniffImageMediaType reports the media type of an encoded image payload.
func sniffImageMediaType(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	mt, ok := formatMediaTypes[format]
	return mt, ok
}

// imageMediaType picks the media type of an image element on write.
func imageMediaType(img ImageElement) string {
	if img.MediaType != "" {
		return img.MediaType
	}
	if mt, ok := sniffImageMediaType(img.Data); ok {
		return mt
	}
	return DefaultImageMediaType
}

// mediaTypeFromFormat maps a registry Format attribute to a media type.
// Producers write either a MIME type or a bare format name such as "PNG".
func mediaTypeFromFormat(format string) (string, bool) {
	f := strings.TrimSpace(format)
	if f == "" {
		return "", false
	}
	if strings.Contains(f, "/") {
		return f, true
	}
	mt, ok := formatMediaTypes[strings.ToLower(f)]
	return mt, ok
}
