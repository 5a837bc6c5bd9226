package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ctrlhome/automation-core/internal/apperr"
)

// Repository defines rule persistence. The rules file contract is a JSON
// array; writes are whole-file replacements.
type Repository interface {
	List(ctx context.Context) ([]Rule, error)
	Save(ctx context.Context, rules []Rule) error
}

// FileRepository persists rules as a single JSON array. Every mutation
// rewrites the whole file atomically: the new content is written to a
// temp file in the same directory, then renamed into place.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileRepository returns a FileRepository backed by path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// List reads every rule from the file. A missing or empty file yields an
// empty list.
func (r *FileRepository) List(_ context.Context) ([]Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *FileRepository) load() ([]Rule, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading rules file: %v", apperr.ErrIO, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var list []Rule
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: parsing rules file: %v", apperr.ErrIO, err)
	}
	return list, nil
}

// Save replaces the entire rules file with rules, in order.
func (r *FileRepository) Save(_ context.Context, rules []Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(rules)
}

func (r *FileRepository) save(rules []Rule) error {
	if rules == nil {
		rules = []Rule{}
	}
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshalling rules: %v", apperr.ErrIO, err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating rules directory: %v", apperr.ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".rules-*.json.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp rules file: %v", apperr.ErrIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // best-effort cleanup; rename below is the success path

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing temp rules file: %v", apperr.ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: syncing temp rules file: %v", apperr.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing temp rules file: %v", apperr.ErrIO, err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("%w: replacing rules file: %v", apperr.ErrIO, err)
	}
	return nil
}
