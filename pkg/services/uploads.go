package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ScratchStore keeps uploaded images on disk only for the duration of a
// request. Callers must invoke the returned cleanup on every exit path.
type ScratchStore struct {
	dir string
}

func NewScratchStore(dir string) (*ScratchStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &ScratchStore{dir: dir}, nil
}

// SaveTemp writes the upload into the scratch directory under its sanitized
// client-supplied filename and returns the path plus a cleanup func that
// removes the file. A per-save prefix keeps concurrent uploads of the same
// filename from stomping each other.
func (s *ScratchStore) SaveTemp(header *multipart.FileHeader) (string, func(), error) {
	name := SanitizeFilename(header.Filename)
	if name == "" {
		return "", nil, fmt.Errorf("invalid filename %q", header.Filename)
	}

	src, err := header.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	path := filepath.Join(s.dir, uuid.NewString()[:8]+"_"+name)
	dst, err := os.Create(path)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}

	return path, func() { os.Remove(path) }, nil
}

// SanitizeFilename strips any path components and characters that could
// escape the scratch directory, keeping the base name only.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.TrimSpace(name)
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	return out
}
