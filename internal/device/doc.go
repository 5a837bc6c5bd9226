// Package device provides the DeviceRegistry: the source of truth for
// sensor and actuator definitions in an automation-core installation.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────┐
//	│                        DeviceRegistry                        │
//	│                                                              │
//	│  ┌──────────────────┐  ┌──────────────────┐  ┌────────────┐ │
//	│  │     Registry     │  │    Repository    │  │ Validation │ │
//	│  │  (registry.go)   │─▶│ (repository.go)  │  │(validation)│ │
//	│  │                  │  │                  │  │            │ │
//	│  │ • CRUD ops       │  │ • JSON file CRUD │  │ • shape    │ │
//	│  │ • in-memory cache│  │ • atomic rewrite │  │ • per-kind │ │
//	│  │ • template render│  │                  │  │   rules    │ │
//	│  └──────────────────┘  └──────────────────┘  └────────────┘ │
//	└────────────────────────────────────────────────────────────┘
//
// Registry wraps Repository with a sync.RWMutex-guarded cache, loaded on
// startup via Load and kept in sync by every mutation. Reads and writes
// always cross a DeepCopy boundary so a caller can never mutate the
// cache by holding onto a returned pointer.
//
// # Usage
//
//	repo := device.NewFileRepository(cfg.Store.DevicesFile)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//	if err := registry.Load(ctx); err != nil {
//	    return err
//	}
//
//	dev := &device.Device{
//	    ID:           "ac_lr",
//	    Name:         "Living Room AC",
//	    Type:         device.KindActuator,
//	    StatusTopic:  "home/dev/ac_lr/state",
//	    CommandTopic: "home/dev/ac_lr/set",
//	    Commands: map[string]device.Command{
//	        "cool": {PayloadTemplate: map[string]any{"mode": "cool", "target": "{t}"}},
//	    },
//	}
//	stored, err := registry.Add(ctx, dev)
//
//	topic, payload, err := registry.ResolveCommand(ctx, "ac_lr", "cool", map[string]any{"t": 21})
//
// # Thread Safety
//
// Registry is safe for concurrent use; FileRepository serializes its own
// reads and writes behind a mutex, so a single Registry/Repository pair
// never races against itself.
package device
