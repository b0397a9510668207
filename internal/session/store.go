// Package session implements the per-project session store: an in-memory map
// lazily backed by one JSON file per project under the storage root.
//
// The store is the single writer-coordinating point within the process. The
// mutex protects the map itself; two concurrent stage runs for the same
// project may still interleave their load/mutate/save steps, and the file
// reflects whichever write lands last. Sharing the storage root across
// processes is unsupported.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/mosaiko-ai/factcheck-gateway/internal/domain"
)

const mediaDirName = "imagens"

type Store struct {
	root   string
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// New creates the store and its storage root.
func New(root string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Store{
		root:     root,
		logger:   logger,
		sessions: make(map[string]*domain.Session),
	}, nil
}

// ValidateProjectID rejects ids that could escape the storage root.
func ValidateProjectID(projectID string) error {
	if projectID == "" {
		return domain.ErrInvalidInput("projeto_id é obrigatório")
	}
	if strings.ContainsAny(projectID, "/\\") || strings.Contains(projectID, "..") {
		return domain.ErrInvalidInput("projeto_id inválido: %q", projectID)
	}
	return nil
}

// FilePath returns the session file path for a project id.
func (s *Store) FilePath(projectID string) string {
	return filepath.Join(s.root, projectID+".json")
}

// MediaDir returns the per-project directory holding uploaded originals.
func (s *Store) MediaDir(projectID string) string {
	return filepath.Join(s.root, projectID, mediaDirName)
}

// GetOrCreate returns the cached session for the project, loading it from
// disk on first access. A missing or unparseable file yields a fresh empty
// session; the bad file is only replaced when the session is next saved.
func (s *Store) GetOrCreate(projectID string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[projectID]; ok {
		return sess
	}

	sess, err := s.load(projectID)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("discarding unreadable session file",
				slog.String("project_id", projectID),
				slog.String("error", err.Error()))
		}
		sess = domain.NewSession(projectID)
	}
	s.sessions[projectID] = sess
	return sess
}

// Load reads the persisted session from disk, bypassing the cache. It backs
// the fetch endpoint, which always reflects durable state.
func (s *Store) Load(projectID string) (*domain.Session, error) {
	sess, err := s.load(projectID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound("projeto não encontrado: %s", projectID)
		}
		return nil, domain.ErrInternal("failed to read session %s: %s", projectID, err)
	}
	return sess, nil
}

func (s *Store) load(projectID string) (*domain.Session, error) {
	data, err := os.ReadFile(s.FilePath(projectID))
	if err != nil {
		return nil, err
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", projectID, err)
	}
	return &sess, nil
}

// Save serializes the full session to its file, replacing prior content
// atomically so a crash mid-write never leaves a truncated record.
func (s *Store) Save(sess *domain.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return domain.ErrInternal("failed to encode session %s: %s", sess.ProjectID, err)
	}
	if err := renameio.WriteFile(s.FilePath(sess.ProjectID), data, 0o644); err != nil {
		return domain.ErrInternal("failed to write session %s: %s", sess.ProjectID, err)
	}
	return nil
}

// List scans every persisted session file, skipping unparseable ones, and
// returns summaries sorted by creation time descending. Sessions without a
// creation time sort last.
func (s *Store) List() ([]domain.ProjectSummary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, domain.ErrInternal("failed to scan storage root: %s", err)
	}

	summaries := []domain.ProjectSummary{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable session file",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()))
			continue
		}
		var sess domain.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			s.logger.Warn("skipping unparseable session file",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()))
			continue
		}
		name := sess.Name
		if name == "" {
			name = "Sem nome"
		}
		summaries = append(summaries, domain.ProjectSummary{
			ProjectID:          sess.ProjectID,
			Name:               name,
			CreatedAt:          sess.CreatedAt,
			ExecutedStageCount: sess.DistinctStageCount(),
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// Delete drops the in-memory entry, removes the session file and the
// per-project media directory. It fails with not found when the session file
// does not exist.
func (s *Store) Delete(projectID string) error {
	s.mu.Lock()
	delete(s.sessions, projectID)
	s.mu.Unlock()

	path := s.FilePath(projectID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrNotFound("projeto não encontrado: %s", projectID)
		}
		return domain.ErrInternal("failed to stat session %s: %s", projectID, err)
	}
	if err := os.Remove(path); err != nil {
		return domain.ErrInternal("failed to delete session %s: %s", projectID, err)
	}
	if err := os.RemoveAll(filepath.Join(s.root, projectID)); err != nil {
		return domain.ErrInternal("failed to delete media for %s: %s", projectID, err)
	}
	return nil
}

// Evict drops a cached session without touching disk. Used by tests to
// simulate a process restart.
func (s *Store) Evict(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, projectID)
}

// ActiveCount returns the number of sessions currently cached in memory.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// PersistedCount returns the number of session files on disk.
func (s *Store) PersistedCount() (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			count++
		}
	}
	return count, nil
}
