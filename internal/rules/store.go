package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Logger defines the logging interface used by Store.
type Logger interface {
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}
func (noopLogger) Info(string, ...any) {}

// Key selects which Rule field identifies a rule in get/modify/delete.
type Key string

const (
	KeyID   Key = "id"
	KeyName Key = "name"
)

// Store is the durable rule list: an in-memory slice backed by a
// file Repository. Every mutation persists before the in-memory copy is
// considered authoritative; a save failure rolls the in-memory change
// back. After a successful save, the change-notification hook (set once
// at wiring time, per the cross-component wiring contract) is invoked
// synchronously, so callers observe evaluator reload and subscription
// reconciliation as part of the same call.
type Store struct {
	repo     Repository
	mu       sync.Mutex
	rules    []Rule
	onChange func()
	logger   Logger
}

// NewStore creates a Store over repo. Call Load before serving traffic.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo, logger: noopLogger{}}
}

// SetLogger installs logger for warnings (e.g. duplicate rule names).
func (s *Store) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// SetChangeHandler installs the callback invoked after every successful
// mutation. Wiring sets this once to RuleEvaluator.Reload composed with
// BusClient.ReconcileSubscriptions.
func (s *Store) SetChangeHandler(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Load reads the rules file into memory.
func (s *Store) Load(ctx context.Context) error {
	rules, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()
	return nil
}

// List returns every rule, enabled and disabled, in file order.
func (s *Store) List() []Rule {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Rule, len(s.rules))
	for i := range s.rules {
		out[i] = *s.rules[i].DeepCopy()
	}
	return out
}

// Get returns the first rule matching identifier under key.
func (s *Store) Get(identifier string, key Key) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(identifier, key)
	if idx < 0 {
		return nil, notFound(identifier)
	}
	return s.rules[idx].DeepCopy(), nil
}

func (s *Store) indexOf(identifier string, key Key) int {
	for i := range s.rules {
		if key == KeyName {
			if s.rules[i].Name == identifier {
				return i
			}
			continue
		}
		if s.rules[i].ID == identifier {
			return i
		}
	}
	return -1
}

// Add validates r, assigns a rule_id if missing, rejects an id conflict,
// warns (but accepts) a duplicate name, persists, and notifies.
func (s *Store) Add(ctx context.Context, r *Rule) (*Rule, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := ValidateRule(r); err != nil {
		return nil, err
	}

	s.mu.Lock()

	if s.indexOf(r.ID, KeyID) >= 0 {
		s.mu.Unlock()
		return nil, exists(r.ID)
	}
	if s.indexOf(r.Name, KeyName) >= 0 {
		s.logger.Warn("rule name is not unique", "name", r.Name)
	}

	updated := append(append([]Rule(nil), s.rules...), *r)
	if err := s.repo.Save(ctx, updated); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.rules = updated
	onChange := s.onChange
	s.mu.Unlock()

	// onChange (evaluator reload + subscription reconcile) must run
	// outside the lock: it calls back into Store.List, which also
	// acquires s.mu, and mu is not reentrant.
	if onChange != nil {
		onChange()
	}
	return r.DeepCopy(), nil
}

// Modify locates the rule matching identifier under key, rejects a name
// collision with a different rule, replaces the record, persists, and
// notifies.
func (s *Store) Modify(ctx context.Context, identifier string, key Key, r *Rule) (*Rule, error) {
	if err := ValidateRule(r); err != nil {
		return nil, err
	}

	s.mu.Lock()

	idx := s.indexOf(identifier, key)
	if idx < 0 {
		s.mu.Unlock()
		return nil, notFound(identifier)
	}

	existingID := s.rules[idx].ID
	if r.Name != s.rules[idx].Name {
		if otherIdx := s.indexOf(r.Name, KeyName); otherIdx >= 0 && s.rules[otherIdx].ID != existingID {
			s.mu.Unlock()
			return nil, invalid(fmt.Sprintf("name %q is already used by rule %q", r.Name, s.rules[otherIdx].ID))
		}
	}

	r.ID = existingID
	updated := append([]Rule(nil), s.rules...)
	updated[idx] = *r

	if err := s.repo.Save(ctx, updated); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.rules = updated
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange()
	}
	return r.DeepCopy(), nil
}

// Delete removes the rule matching identifier under key, persists, and
// notifies. Returns ErrNotFound if no rule matches.
func (s *Store) Delete(ctx context.Context, identifier string, key Key) error {
	s.mu.Lock()

	idx := s.indexOf(identifier, key)
	if idx < 0 {
		s.mu.Unlock()
		return notFound(identifier)
	}

	updated := append(append([]Rule(nil), s.rules[:idx]...), s.rules[idx+1:]...)
	if err := s.repo.Save(ctx, updated); err != nil {
		s.mu.Unlock()
		return err
	}
	s.rules = updated
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange()
	}
	return nil
}
