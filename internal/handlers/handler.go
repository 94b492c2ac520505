package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/smixab/ihub-bot/internal/services"
)

// Handler bundles the services the HTTP layer needs. All endpoint methods
// hang off it so tests can wire fakes in without touching globals.
type Handler struct {
	Store        *services.KnowledgeStore
	Ranker       *services.Ranker
	Guard        *services.Guard
	Orchestrator *services.Orchestrator
}

func New(store *services.KnowledgeStore, ranker *services.Ranker, guard *services.Guard, orch *services.Orchestrator) *Handler {
	return &Handler{Store: store, Ranker: ranker, Guard: guard, Orchestrator: orch}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"error": message})
}
