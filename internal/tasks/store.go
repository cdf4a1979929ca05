package tasks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/scribe/internal/models"
	"github.com/desertthunder/scribe/internal/shared"
)

// storeVersion identifies the current on-disk document layout.
const storeVersion = 1

// timeLayout is fixed-width so timestamp strings sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func timestamp() string {
	return time.Now().UTC().Format(timeLayout)
}

type storeDocument struct {
	Version int                     `json:"version"`
	Tasks   map[string]*models.Task `json:"tasks"`
}

// Store persists every task record in a single JSON document. Writes go
// through a temp file and rename so a crash mid-write never corrupts the
// document. All methods are safe for concurrent use; returned tasks are
// clones, never the stored instances.
type Store struct {
	path   string
	logger *log.Logger

	mu    sync.Mutex
	tasks map[string]*models.Task
}

// NewStore opens (or initializes) the task document at path. An unreadable or
// malformed document is logged and replaced with an empty one rather than
// aborting startup.
func NewStore(path string, logger *log.Logger) *Store {
	s := &Store{path: path, logger: logger, tasks: map[string]*models.Task{}}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("task store unreadable, starting empty", "path", s.path, "error", err)
		}
		return
	}

	var doc storeDocument
	if err := json.Unmarshal(data, &doc); err == nil && doc.Version == storeVersion {
		s.tasks = doc.Tasks
	} else {
		// Pre-versioned documents were a flat id → task map.
		var legacy map[string]*models.Task
		if err := json.Unmarshal(data, &legacy); err != nil {
			s.logger.Warn("task store malformed, starting empty", "path", s.path, "error", err)
			return
		}
		s.tasks = legacy
	}
	if s.tasks == nil {
		s.tasks = map[string]*models.Task{}
	}
	for id, task := range s.tasks {
		if task == nil {
			delete(s.tasks, id)
			continue
		}
		task.ID = id
		backfill(task)
	}
	s.logger.Debug("task store loaded", "path", s.path, "tasks", len(s.tasks))
}

// backfill normalizes records written by older revisions: missing timestamps,
// filename fields derivable from legacy absolute paths, and the translation
// flag.
func backfill(t *models.Task) {
	if t.CreatedAt == "" {
		if t.UpdatedAt != "" {
			t.CreatedAt = t.UpdatedAt
		} else {
			t.CreatedAt = timestamp()
		}
	}
	if t.UpdatedAt == "" {
		t.UpdatedAt = t.CreatedAt
	}
	if t.Status.Terminal() && t.FinishedAt == "" {
		t.FinishedAt = t.UpdatedAt
	}
	if t.ScriptFilename == "" && t.ScriptPath != "" {
		t.ScriptFilename = filepath.Base(t.ScriptPath)
	}
	if t.SummaryFilename == "" && t.SummaryPath != "" {
		t.SummaryFilename = filepath.Base(t.SummaryPath)
	}
	if t.TranslationFilename == "" && t.TranslationPath != "" {
		t.TranslationFilename = filepath.Base(t.TranslationPath)
	}
	if !t.HasTranslation && (t.Translation != "" || t.TranslationFilename != "") {
		t.HasTranslation = true
	}
}

func (s *Store) save() error {
	doc := storeDocument{Version: storeVersion, Tasks: s.tasks}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding task store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing task store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing task store: %w", err)
	}
	return nil
}

// Put inserts or replaces a task record and persists the document.
func (s *Store) Put(t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t.Clone()
	return s.save()
}

// Get returns a clone of the task with the given id.
func (s *Store) Get(id string) (*models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Update applies mutate to the stored task under the store lock, stamps
// UpdatedAt, persists, and returns a clone of the result.
func (s *Store) Update(id string, mutate func(*models.Task)) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, id)
	}
	mutate(t)
	t.UpdatedAt = timestamp()
	if err := s.save(); err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// Delete removes a task record and persists the document. Deleting an absent
// id is not an error.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return nil
	}
	delete(s.tasks, id)
	return s.save()
}

// Len reports the number of stored tasks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Snapshot returns clones of every stored task keyed by id.
func (s *Store) Snapshot() map[string]*models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*models.Task, len(s.tasks))
	for id, t := range s.tasks {
		out[id] = t.Clone()
	}
	return out
}

// CompletedPage returns one page of completed tasks, newest finished first,
// along with the total completed count. page is 1-based.
func (s *Store) CompletedPage(page, limit int) (int, []*models.Task) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	s.mu.Lock()
	var completed []*models.Task
	for _, t := range s.tasks {
		if t.Status == models.StatusCompleted {
			completed = append(completed, t.Clone())
		}
	}
	s.mu.Unlock()

	sort.Slice(completed, func(i, j int) bool {
		a, b := completed[i], completed[j]
		if a.FinishedAt != b.FinishedAt {
			return a.FinishedAt > b.FinishedAt
		}
		return a.ID < b.ID
	})

	total := len(completed)
	start := (page - 1) * limit
	if start >= total {
		return total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return total, completed[start:end]
}
