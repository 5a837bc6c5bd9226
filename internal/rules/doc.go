// Package rules provides the RuleStore and RuleEvaluator: the
// automation-graph half of automation-core, sitting alongside
// internal/device's DeviceRegistry.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                          RuleStore                           │
//	│  ┌──────────────────┐  ┌──────────────────┐  ┌────────────┐ │
//	│  │      Store       │  │    Repository    │  │ Validation │ │
//	│  │   (store.go)     │─▶│ (repository.go)  │  │(validation)│ │
//	│  │                  │  │                  │  │            │ │
//	│  │ • CRUD by id/name│  │ • JSON file array│  │ • trigger  │ │
//	│  │ • change notify  │  │ • atomic rewrite │  │ • action   │ │
//	│  └──────────────────┘  └──────────────────┘  └────────────┘ │
//	└─────────────────────────────────────────────────────────────┘
//
// Store's change-notification hook is a plain func(), set once at
// wiring time — there is no event bus. A Store mutation persists first;
// the hook only fires after a successful save, so it never runs against
// a rule set that failed to reach disk.
//
// Evaluator holds a snapshot of enabled rules published with an
// atomic.Pointer swap, so Process never takes a lock to read it. Reload
// rebuilds the snapshot from the Store; wiring calls it from the same
// change-notification hook Store invokes.
//
// # Usage
//
//	repo := rules.NewFileRepository(cfg.Store.RulesFile)
//	store := rules.NewStore(repo)
//	store.SetLogger(log)
//	if err := store.Load(ctx); err != nil {
//	    return err
//	}
//
//	evaluator := rules.NewEvaluator(store, registry)
//	evaluator.SetLogger(log)
//	evaluator.Reload()
//	// busClient.Start installs the evaluator's action handler.
//
//	store.SetChangeHandler(func() {
//	    evaluator.Reload()
//	    busClient.ReconcileSubscriptions()
//	})
//
// On every inbound message, BusClient calls evaluator.Process(ctx, topic,
// payload) after updating the StateCache.
package rules
