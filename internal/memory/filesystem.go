package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FileStore persists phase-tagged records as JSON files under a base
// directory, one file per record, grouped by memory type. Writes are buffered
// and pushed to disk on Flush or transparently on retrieval.
type FileStore struct {
	baseDir string
	mu      sync.Mutex
	pending []Record
}

func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

// sanitizeComponent validates a path component to prevent directory traversal.
func sanitizeComponent(name string) (string, error) {
	cleaned := filepath.Clean(name)
	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid path component: contains parent directory reference")
	}
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid path component: absolute paths not allowed")
	}
	return cleaned, nil
}

type fileRecord struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Phase    string         `json:"phase"`
	Payload  any            `json:"payload"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Sequence int            `json:"sequence"`
}

func (s *FileStore) StoreWithPhase(ctx context.Context, payload any, memoryType, phase string, metadata map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := Record{
		ID:       uuid.New().String(),
		Type:     memoryType,
		Phase:    phase,
		Payload:  payload,
		Metadata: metadata,
	}
	s.pending = append(s.pending, rec)
	return rec.ID, nil
}

func (s *FileStore) RetrieveWithPhase(ctx context.Context, memoryType, phase string, query map[string]any) (any, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}

	dir, err := sanitizeComponent(memoryType)
	if err != nil {
		return nil, err
	}
	pattern := filepath.Join(s.baseDir, dir, "*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	sort.Strings(matches)

	var found *fileRecord
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var rec fileRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if rec.Phase != phase || !matchesQuery(rec.Metadata, query) {
			continue
		}
		if found == nil || rec.Sequence > found.Sequence {
			r := rec
			found = &r
		}
	}
	if found == nil {
		return nil, nil
	}
	return found.Payload, nil
}

func (s *FileStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for i, rec := range pending {
		if err := s.writeRecord(rec); err != nil {
			// Put unwritten records back so a later Flush retries them.
			s.mu.Lock()
			s.pending = append(pending[i:], s.pending...)
			s.mu.Unlock()
			return err
		}
	}
	return nil
}

func (s *FileStore) writeRecord(rec Record) error {
	dir, err := sanitizeComponent(rec.Type)
	if err != nil {
		return err
	}
	fullDir := filepath.Join(s.baseDir, dir)
	if err := os.MkdirAll(fullDir, 0755); err != nil {
		return fmt.Errorf("creating record directory: %w", err)
	}

	fr := fileRecord{
		ID:       rec.ID,
		Type:     rec.Type,
		Phase:    rec.Phase,
		Payload:  rec.Payload,
		Metadata: rec.Metadata,
		Sequence: s.nextSequence(fullDir),
	}
	data, err := json.MarshalIndent(fr, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	path := filepath.Join(fullDir, fmt.Sprintf("%06d_%s.json", fr.Sequence, rec.ID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}

func (s *FileStore) nextSequence(dir string) int {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0
	}
	return len(matches)
}
