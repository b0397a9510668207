// Package media persists uploaded originals under a per-project directory.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mosaiko-ai/factcheck-gateway/internal/domain"
)

type Store struct {
	root string
}

// New creates a media store rooted at the same storage root as the session
// store, so deleting a project removes its media alongside its session file.
func New(root string) *Store {
	return &Store{root: root}
}

// SaveImage writes the uploaded bytes under <root>/<project_id>/imagens/ with
// a collision-resistant name and returns the stored path.
func (s *Store) SaveImage(projectID, filename string, data []byte) (string, error) {
	dir := filepath.Join(s.root, projectID, "imagens")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", domain.ErrInternal("failed to create media directory: %s", err)
	}

	name := fmt.Sprintf("%d_%s_%s",
		time.Now().Unix(),
		uuid.New().String()[:8],
		SanitizeFilename(filename))
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", domain.ErrInternal("failed to write media file: %s", err)
	}
	return path, nil
}

// SanitizeFilename strips everything but letters, digits, dots, dashes and
// underscores, so client-supplied names cannot carry path elements.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
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
	if b.Len() == 0 {
		return "upload"
	}
	return b.String()
}
