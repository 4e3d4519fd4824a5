package server

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// allowedFile reports whether name carries one of the accepted image extensions
func allowedFile(name string) bool {
	if !strings.Contains(name, ".") {
		return false
	}
	ext := name[strings.LastIndex(name, ".")+1:]
	return allowedExtensions[strings.ToLower(ext)]
}

// secureFilename reduces an uploaded name to a flat ASCII name that is safe
// to use as a storage key. Path separators become underscores, whitespace
// runs collapse to one underscore and leading or trailing dots are removed.
func secureFilename(name string) string {
	name = norm.NFKD.String(name)
	name = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, name)

	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// storedName builds the unique stored name for an upload
func storedName(id, original string) string {
	safe := secureFilename(original)
	if safe == "" || !allowedFile(safe) {
		safe = "image" + strings.ToLower(filepath.Ext(original))
	}
	return id + "_" + safe
}
