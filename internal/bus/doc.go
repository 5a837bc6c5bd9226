// Package bus provides the BusClient: the long-lived bridge between the
// MQTT broker and the in-process StateCache/RuleEvaluator pair.
//
// # Architecture
//
//	broker ──▶ Client.onMessage ──▶ StateCache.Apply ──▶ RuleEvaluator.Process
//	                                                            │
//	                                                            ▼
//	broker ◀── Client.Publish ◀── handleResolvedAction ◀── resolved action
//
// Client owns three pieces of mutable state, each behind its own lock:
// the underlying Conn (swapped out on reconnect), the subscribed-topics
// set, and the command-history ring. The connection state machine is
// disconnected → connecting → connected → disconnected; the underlying
// infrastructure/mqtt client's own auto-reconnect is disabled, so every
// transition after the first is driven by Client's own bounded,
// cancellable retry loop (reconnectLoop).
//
// Conn is a narrow interface over *infrastructure/mqtt.Client, satisfied
// structurally; tests inject a fake Conn and ConnectFunc to exercise
// reconnect and dispatch behavior without a broker.
//
// An optional Observer (SetObserver) receives best-effort state_update
// and rule_fired notifications off the dispatch path, for the API
// surface's live event stream; a nil Observer is a no-op.
//
// # Usage
//
//	client := bus.NewClient(bus.DefaultConnect(cfg.MQTT), registry, evaluator, cache, bus.Options{
//	    QoS:                  byte(cfg.MQTT.QoS),
//	    ReconnectDelay:       cfg.ReconnectDelay(),
//	    ReconnectMaxAttempts: cfg.MQTT.ReconnectMaxAttempts,
//	    HistorySize:          cfg.Store.CommandHistorySize,
//	})
//	client.SetLogger(log)
//	if err := client.Start(ctx); err != nil {
//	    return err
//	}
//	defer client.Stop()
//
//	ruleStore.SetChangeHandler(func() {
//	    evaluator.Reload()
//	    client.ReconcileSubscriptions()
//	})
package bus
