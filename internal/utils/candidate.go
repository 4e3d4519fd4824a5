package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/HaiFongPan/dermascan-cli/internal/session"
)

// LoadCandidate reads a local file into a candidate. The declared type comes
// from the extension; maxBytes <= 0 disables the size limit.
//
// A file whose declared type is not an accepted image is returned without
// its content and without the size check, so selection rejects it by type.
func LoadCandidate(path string, maxBytes int64) (*session.CandidateFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	name := filepath.Base(path)
	contentType := DeclaredContentType(path)
	if ValidateImage(name, contentType) != nil {
		return &session.CandidateFile{Name: name, ContentType: contentType}, nil
	}

	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, fmt.Errorf("%s is %s, larger than the %s limit",
			name, humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(maxBytes)))
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return &session.CandidateFile{
		Name:        name,
		ContentType: contentType,
		Data:        data,
	}, nil
}

// Validator adapts ValidateImage to the session selection hook
func Validator() session.Validator {
	return ValidateImage
}
