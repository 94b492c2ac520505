package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/smixab/ihub-bot/internal/models"
	"github.com/smixab/ihub-bot/pkg/clientip"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// SearchRequest is the body of POST /api/search. Limit is a pointer so an
// omitted limit and an explicit zero can be told apart.
type SearchRequest struct {
	Query string `json:"query"`
	Limit *int   `json:"limit"`
}

// Chat handles POST /api/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "No message provided")
		return
	}

	ip := clientip.FromRequest(r)
	result, err := h.Orchestrator.Respond(r.Context(), ip, r.UserAgent(), message)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process message")
		return
	}

	if result.Denied {
		status := http.StatusForbidden
		if result.DenyReason == models.DenyRateLimited {
			status = http.StatusTooManyRequests
		}
		payload := map[string]interface{}{
			"error":  result.DenyText,
			"reason": string(result.DenyReason),
		}
		if result.RetryAfter > 0 {
			payload["retry_after"] = result.RetryAfter
		}
		writeJSON(w, status, payload)
		return
	}

	payload := map[string]interface{}{
		"response":       result.Response,
		"source":         string(result.Source),
		"relevant_tools": result.Tools,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
	if result.Warning {
		payload["warning"] = "Your recent messages have been flagged. Continued violations may result in a temporary block."
	}
	writeJSON(w, http.StatusOK, payload)
}

// Search handles POST /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "No query provided")
		return
	}

	limit := 0 // Search applies the default when <= 0
	if req.Limit != nil {
		if *req.Limit <= 0 {
			writeError(w, http.StatusBadRequest, "Limit must be a positive integer")
			return
		}
		limit = *req.Limit
	}

	results, err := h.Ranker.Search(r.Context(), req.Query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	if results == nil {
		results = []models.ScoredTool{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}
