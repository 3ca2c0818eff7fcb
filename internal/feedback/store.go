package feedback

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"smartsdlc/internal/models"
)

// Store is an insert-only, ordered log of feedback entries. Implementations
// serialize Append so entries keep arrival order and never interleave.
type Store interface {
	Append(ctx context.Context, fb models.Feedback) error
	List(ctx context.Context) ([]models.Feedback, error)
	ListByMessageID(ctx context.Context, messageID string) ([]models.Feedback, error)
}

func filterByMessage(all []models.Feedback, messageID string) []models.Feedback {
	out := make([]models.Feedback, 0)
	for _, fb := range all {
		if fb.MessageID == messageID {
			out = append(out, fb)
		}
	}
	return out
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []models.Feedback
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, fb models.Feedback) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.entries = append(s.entries, fb)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]models.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Feedback, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *MemoryStore) ListByMessageID(ctx context.Context, messageID string) ([]models.Feedback, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterByMessage(all, messageID), nil
}

// FileStore appends one JSON document per line to a log file. Each entry is
// written with a single write call and synced before Append returns.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("feedback log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create feedback dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Append(ctx context.Context, fb models.Feedback) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open feedback log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append feedback: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync feedback log: %w", err)
	}
	return f.Close()
}

func (s *FileStore) List(ctx context.Context) ([]models.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Feedback{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open feedback log: %w", err)
	}
	defer f.Close()

	out := make([]models.Feedback, 0)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var fb models.Feedback
		if err := json.Unmarshal(scanner.Bytes(), &fb); err != nil {
			return nil, fmt.Errorf("decode feedback log: %w", err)
		}
		out = append(out, fb)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read feedback log: %w", err)
	}
	return out, nil
}

func (s *FileStore) ListByMessageID(ctx context.Context, messageID string) ([]models.Feedback, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterByMessage(all, messageID), nil
}
