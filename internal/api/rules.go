package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ctrlhome/automation-core/internal/rules"
)

// ruleKey resolves the "by" query parameter to a rules.Key, defaulting
// to lookup by id per the external-interfaces contract.
func ruleKey(r *http.Request) rules.Key {
	switch r.URL.Query().Get("by") {
	case "name":
		return rules.KeyName
	default:
		return rules.KeyID
	}
}

// handleListRules returns every rule, enabled and disabled.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	if s.ruleStore == nil {
		writeUnavailable(w, "rule store not initialized")
		return
	}
	writeOK(w, s.ruleStore.List())
}

// handleGetRule looks up one rule by id or name (?by=id|name).
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	if s.ruleStore == nil {
		writeUnavailable(w, "rule store not initialized")
		return
	}

	ident := chi.URLParam(r, "ident")
	rule, err := s.ruleStore.Get(ident, ruleKey(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, rule)
}

// handleCreateRule adds a rule. RuleStore's change notification reloads
// the evaluator and reconciles bus subscriptions before this returns.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	if s.ruleStore == nil {
		writeUnavailable(w, "rule store not initialized")
		return
	}

	var rule rules.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	created, err := s.ruleStore.Add(r.Context(), &rule)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCreated(w, created)
}

// handleUpdateRule replaces a rule located by id or name (?by=id|name).
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	if s.ruleStore == nil {
		writeUnavailable(w, "rule store not initialized")
		return
	}

	ident := chi.URLParam(r, "ident")

	var rule rules.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	updated, err := s.ruleStore.Modify(r.Context(), ident, ruleKey(r), &rule)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, updated)
}

// handleDeleteRule removes a rule located by id or name (?by=id|name).
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if s.ruleStore == nil {
		writeUnavailable(w, "rule store not initialized")
		return
	}

	ident := chi.URLParam(r, "ident")
	if err := s.ruleStore.Delete(r.Context(), ident, ruleKey(r)); err != nil {
		writeError(w, err)
		return
	}
	writeNoContent(w)
}
