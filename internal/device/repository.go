package device

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ctrlhome/automation-core/internal/apperr"
)

// Repository defines device persistence. The devices file contract is a
// JSON object keyed by device_id; writes are whole-file replacements.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	Create(ctx context.Context, device *Device) error
	Update(ctx context.Context, device *Device) error
	Delete(ctx context.Context, id string) error
}

// FileRepository persists devices as a single JSON file, keyed by
// device_id. Every mutation rewrites the whole file atomically: the new
// content is written to a temp file in the same directory, then renamed
// into place, so a crash mid-write can never leave a half-written file.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileRepository returns a FileRepository backed by path. Nothing is
// read at construction; every method reads the file afresh.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Load reads the devices file into memory, returning the decoded set. A
// missing file is treated as an empty registry, per the empty-file policy.
func (r *FileRepository) Load(ctx context.Context) (map[string]Device, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *FileRepository) load() (map[string]Device, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return make(map[string]Device), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading devices file: %v", apperr.ErrIO, err)
	}
	if len(data) == 0 {
		return make(map[string]Device), nil
	}

	var devices map[string]Device
	if err := json.Unmarshal(data, &devices); err != nil {
		return nil, fmt.Errorf("%w: parsing devices file: %v", apperr.ErrIO, err)
	}
	for id, d := range devices {
		d.ID = id
		devices[id] = d
	}
	return devices, nil
}

func (r *FileRepository) save(devices map[string]Device) error {
	data, err := json.MarshalIndent(devices, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshalling devices: %v", apperr.ErrIO, err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating devices directory: %v", apperr.ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".devices-*.json.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp devices file: %v", apperr.ErrIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // best-effort cleanup; rename below is the success path

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing temp devices file: %v", apperr.ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: syncing temp devices file: %v", apperr.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing temp devices file: %v", apperr.ErrIO, err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("%w: replacing devices file: %v", apperr.ErrIO, err)
	}
	return nil
}

// GetByID retrieves a device by id, reading the file fresh each time.
// Registry is the caching layer; Repository stays a thin, consistent
// source of truth.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	devices, err := r.load()
	if err != nil {
		return nil, err
	}
	d, ok := devices[id]
	if !ok {
		return nil, notFound(id)
	}
	return &d, nil
}

// List retrieves all devices, sorted by id for deterministic output.
func (r *FileRepository) List(ctx context.Context) ([]Device, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	devices, err := r.load()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(devices))
	for id := range devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Device, 0, len(devices))
	for _, id := range ids {
		out = append(out, devices[id])
	}
	return out, nil
}

// Create inserts a new device, rejecting an existing id as ErrExists.
// On save failure the in-memory set is discarded and the error returned,
// so the caller's retry starts from the file's true last-good state.
func (r *FileRepository) Create(ctx context.Context, device *Device) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	devices, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := devices[device.ID]; ok {
		return exists(device.ID)
	}

	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	devices[device.ID] = *device
	if err := r.save(devices); err != nil {
		return err
	}
	return nil
}

// Update replaces an existing device definition in full.
func (r *FileRepository) Update(ctx context.Context, device *Device) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	devices, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := devices[device.ID]; !ok {
		return notFound(device.ID)
	}

	device.UpdatedAt = time.Now().UTC()
	devices[device.ID] = *device
	if err := r.save(devices); err != nil {
		return err
	}
	return nil
}

// Delete removes a device by id. Dependent rules are left untouched; see
// the evaluator's handling of a device_command action whose device is
// gone.
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	devices, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := devices[id]; !ok {
		return notFound(id)
	}

	delete(devices, id)
	if err := r.save(devices); err != nil {
		return err
	}
	return nil
}
