package device

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// mockRepository is a test implementation of Repository.
type mockRepository struct {
	mu        sync.Mutex
	devices   map[string]*Device
	createErr error
	updateErr error
	deleteErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{devices: make(map[string]*Device)}
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d, ok := m.devices[id]; ok {
		cpy := *d
		return &cpy, nil
	}
	return nil, notFound(id)
}

func (m *mockRepository) List(_ context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	devices := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, *d)
	}
	return devices, nil
}

func (m *mockRepository) Create(_ context.Context, d *Device) error {
	if m.createErr != nil {
		return m.createErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[d.ID]; ok {
		return exists(d.ID)
	}
	cpy := *d
	m.devices[d.ID] = &cpy
	return nil
}

func (m *mockRepository) Update(_ context.Context, d *Device) error {
	if m.updateErr != nil {
		return m.updateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[d.ID]; !ok {
		return notFound(d.ID)
	}
	cpy := *d
	m.devices[d.ID] = &cpy
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[id]; !ok {
		return notFound(id)
	}
	delete(m.devices, id)
	return nil
}

// addDevice inserts a device directly into the mock, bypassing Registry.
func (m *mockRepository) addDevice(d *Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := *d
	m.devices[d.ID] = &cpy
}

func testSensor(id, name string) *Device {
	return &Device{
		ID:          id,
		Name:        name,
		Type:        KindSensor,
		StatusTopic: "home/sensors/" + id + "/state",
		DataFields:  []string{"temp"},
	}
}

func testActuator(id, name string) *Device {
	return &Device{
		ID:           id,
		Name:         name,
		Type:         KindActuator,
		StatusTopic:  "home/dev/" + id + "/state",
		CommandTopic: "home/dev/" + id + "/set",
		Commands: map[string]Command{
			"on": {PayloadTemplate: map[string]any{"state": "on"}},
			"cool": {PayloadTemplate: map[string]any{
				"mode":   "cool",
				"target": "{temp}",
			}},
		},
	}
}

func TestRegistry_Load(t *testing.T) {
	repo := newMockRepository()
	repo.addDevice(testSensor("dev-1", "Sensor 1"))
	repo.addDevice(testSensor("dev-2", "Sensor 2"))

	registry := NewRegistry(repo)
	if err := registry.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if registry.Count() != 2 {
		t.Errorf("Count() = %d, want 2", registry.Count())
	}
}

func TestRegistry_Get(t *testing.T) {
	repo := newMockRepository()
	repo.addDevice(testSensor("dev-get", "Test Sensor"))

	registry := NewRegistry(repo)
	ctx := context.Background()
	if err := registry.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	t.Run("returns device from cache", func(t *testing.T) {
		got, err := registry.Get(ctx, "dev-get")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.ID != "dev-get" {
			t.Errorf("ID = %q, want %q", got.ID, "dev-get")
		}
	})

	t.Run("returns ErrNotFound for nonexistent", func(t *testing.T) {
		_, err := registry.Get(ctx, "nonexistent")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("returned copy is independent of cache", func(t *testing.T) {
		got, _ := registry.Get(ctx, "dev-get")
		got.Name = "mutated"

		again, _ := registry.Get(ctx, "dev-get")
		if again.Name == "mutated" {
			t.Error("mutating a returned device leaked into the cache")
		}
	})
}

func TestRegistry_Add(t *testing.T) {
	repo := newMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	t.Run("adds a valid device", func(t *testing.T) {
		d := testSensor("new-dev", "New Sensor")
		stored, err := registry.Add(ctx, d)
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		if stored.ID != "new-dev" {
			t.Errorf("ID = %q, want %q", stored.ID, "new-dev")
		}

		got, err := registry.Get(ctx, "new-dev")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Name != "New Sensor" {
			t.Errorf("Name = %q, want %q", got.Name, "New Sensor")
		}
	})

	t.Run("rejects an invalid device", func(t *testing.T) {
		d := &Device{ID: "bad", Name: ""}
		_, err := registry.Add(ctx, d)
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("Add() error = %v, want ErrInvalid", err)
		}
	})

	t.Run("rejects a duplicate id", func(t *testing.T) {
		d1 := testSensor("dup", "First")
		if _, err := registry.Add(ctx, d1); err != nil {
			t.Fatalf("first Add() error = %v", err)
		}

		d2 := testSensor("dup", "Second")
		_, err := registry.Add(ctx, d2)
		if !errors.Is(err, ErrExists) {
			t.Errorf("Add() error = %v, want ErrExists", err)
		}
	})
}

func TestRegistry_Update(t *testing.T) {
	repo := newMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	if _, err := registry.Add(ctx, testSensor("dev-update", "Original")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	t.Run("shallow-merges changed fields", func(t *testing.T) {
		updated, err := registry.Update(ctx, "dev-update", &Device{Name: "Updated"})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if updated.Name != "Updated" {
			t.Errorf("Name = %q, want %q", updated.Name, "Updated")
		}
		if updated.StatusTopic == "" {
			t.Error("StatusTopic was dropped by the merge")
		}
	})

	t.Run("rejects changing id", func(t *testing.T) {
		_, err := registry.Update(ctx, "dev-update", &Device{ID: "other-id"})
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("Update() error = %v, want ErrInvalid", err)
		}
	})

	t.Run("returns ErrNotFound for nonexistent", func(t *testing.T) {
		_, err := registry.Update(ctx, "nonexistent", &Device{Name: "Ghost"})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Update() error = %v, want ErrNotFound", err)
		}
	})
}

func TestRegistry_Delete(t *testing.T) {
	repo := newMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	if _, err := registry.Add(ctx, testSensor("dev-delete", "To Delete")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	t.Run("removes from cache and repo", func(t *testing.T) {
		if err := registry.Delete(ctx, "dev-delete"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		_, err := registry.Get(ctx, "dev-delete")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("returns ErrNotFound for nonexistent", func(t *testing.T) {
		err := registry.Delete(ctx, "nonexistent")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete() error = %v, want ErrNotFound", err)
		}
	})
}

func TestRegistry_StatusTopics(t *testing.T) {
	repo := newMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	if _, err := registry.Add(ctx, testSensor("sensor-1", "Sensor 1")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := registry.Add(ctx, testActuator("act-1", "Actuator 1")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	topics := registry.StatusTopics()
	if len(topics) != 1 {
		t.Fatalf("StatusTopics() returned %d topics, want 1 (only sensors count)", len(topics))
	}
	if topics[0] != "home/sensors/sensor-1/state" {
		t.Errorf("StatusTopics()[0] = %q, want %q", topics[0], "home/sensors/sensor-1/state")
	}
}

func TestRegistry_ResolveCommand(t *testing.T) {
	repo := newMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	if _, err := registry.Add(ctx, testActuator("ac-1", "AC")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	t.Run("renders the payload template", func(t *testing.T) {
		topic, payload, err := registry.ResolveCommand(ctx, "ac-1", "cool", map[string]any{"temp": 21})
		if err != nil {
			t.Fatalf("ResolveCommand() error = %v", err)
		}
		if topic != "home/dev/ac-1/set" {
			t.Errorf("topic = %q, want %q", topic, "home/dev/ac-1/set")
		}
		if payload["mode"] != "cool" {
			t.Errorf("payload[mode] = %v, want %q", payload["mode"], "cool")
		}
		if payload["target"] != 21 {
			t.Errorf("payload[target] = %v (%T), want int 21", payload["target"], payload["target"])
		}
	})

	t.Run("missing param fails validation", func(t *testing.T) {
		_, _, err := registry.ResolveCommand(ctx, "ac-1", "cool", map[string]any{})
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("ResolveCommand() error = %v, want ErrInvalid", err)
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		_, _, err := registry.ResolveCommand(ctx, "ac-1", "boost", nil)
		if !errors.Is(err, ErrCommandNotFound) {
			t.Errorf("ResolveCommand() error = %v, want ErrCommandNotFound", err)
		}
	})

	t.Run("unknown device", func(t *testing.T) {
		_, _, err := registry.ResolveCommand(ctx, "nonexistent", "cool", nil)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("ResolveCommand() error = %v, want ErrNotFound", err)
		}
	})
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	repo := newMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	if _, err := registry.Add(ctx, testSensor("concurrent", "Concurrent Device")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = registry.Get(ctx, "concurrent")
		}()
		go func() {
			defer wg.Done()
			_, _ = registry.List(ctx)
		}()
	}
	wg.Wait()

	if _, err := registry.Get(ctx, "concurrent"); err != nil {
		t.Errorf("Get() after concurrent access error = %v", err)
	}
}
