package utils

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupportedImage is returned by ValidateImage for anything outside the accepted set
var ErrUnsupportedImage = errors.New("unsupported image type")

// acceptedImageTypes are the declared MIME types the analysis service takes
var acceptedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// extensionTypes is consulted before the system MIME table so the result
// does not depend on the host's /etc/mime.types
var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".jpe":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".svg":  "image/svg+xml",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".json": "application/json",
}

// DeclaredContentType returns the MIME type a file declares through its
// extension. Content is never inspected.
func DeclaredContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "application/octet-stream"
	}
	if contentType, ok := extensionTypes[ext]; ok {
		return contentType
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}

// ValidateImage checks a declared content type against the accepted image
// types. Parameters such as "; charset=" are ignored.
func ValidateImage(name, declaredType string) error {
	mediaType, _, err := mime.ParseMediaType(declaredType)
	if err != nil {
		return fmt.Errorf("%s: %w: %q", name, ErrUnsupportedImage, declaredType)
	}
	if !acceptedImageTypes[strings.ToLower(mediaType)] {
		return fmt.Errorf("%s: %w: %s", name, ErrUnsupportedImage, mediaType)
	}
	return nil
}

// AcceptedExtensions lists, sorted, the file extensions whose declared type passes ValidateImage
func AcceptedExtensions() []string {
	var exts []string
	for ext, contentType := range extensionTypes {
		if acceptedImageTypes[contentType] {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}
