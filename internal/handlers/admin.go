package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/smixab/ihub-bot/internal/models"
	"github.com/smixab/ihub-bot/internal/services"
)

const (
	recentActivityHours = 24
	recentActivityLimit = 50
	defaultBlockHours   = 24
)

// Stats handles GET /api/admin/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Guard.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load statistics")
		return
	}
	activity, err := h.Guard.RecentActivity(recentActivityHours, recentActivityLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load recent activity")
		return
	}
	if activity == nil {
		activity = []models.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":           stats,
		"recent_activity": activity,
	})
}

// UserDetail handles GET /api/admin/user/{ip}.
func (h *Handler) UserDetail(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	stats, err := h.Guard.UserStats(ip)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// BlockRequest is the body of POST /api/admin/block.
type BlockRequest struct {
	IP            string `json:"ip"`
	Reason        string `json:"reason"`
	DurationHours *int   `json:"duration_hours"`
}

// BlockUser handles POST /api/admin/block.
func (h *Handler) BlockUser(w http.ResponseWriter, r *http.Request) {
	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.IP) == "" {
		writeError(w, http.StatusBadRequest, "IP address is required")
		return
	}

	hours := defaultBlockHours
	if req.DurationHours != nil {
		if *req.DurationHours <= 0 {
			writeError(w, http.StatusBadRequest, "Duration must be a positive number of hours")
			return
		}
		hours = *req.DurationHours
	}
	reason := req.Reason
	if reason == "" {
		reason = "Blocked by administrator"
	}

	if err := h.Guard.Block(req.IP, reason, hours, "admin"); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to block user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("User %s blocked for %d hours", req.IP, hours),
	})
}

// UnblockRequest is the body of POST /api/admin/unblock.
type UnblockRequest struct {
	IP string `json:"ip"`
}

// UnblockUser handles POST /api/admin/unblock.
func (h *Handler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	var req UnblockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.IP) == "" {
		writeError(w, http.StatusBadRequest, "IP address is required")
		return
	}
	if err := h.Guard.Unblock(req.IP, "admin"); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to unblock user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("User %s unblocked", req.IP),
	})
}

// GetModerationConfig handles GET /api/admin/config.
func (h *Handler) GetModerationConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Guard.Config())
}

// SetModerationConfig handles POST /api/admin/config. The body may carry a
// subset of fields; omitted fields keep their current values.
func (h *Handler) SetModerationConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.Guard.Config()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.Guard.SetConfig(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Moderation config updated",
		"config":  cfg,
	})
}

// GetBadWords handles GET /api/admin/bad-words.
func (h *Handler) GetBadWords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Guard.BadWords())
}

// BadWordsRequest is the body of POST /api/admin/bad-words. Pointer slices
// distinguish "not sent" from "sent empty".
type BadWordsRequest struct {
	Words    *[]string `json:"words"`
	Patterns *[]string `json:"patterns"`
}

// SetBadWords handles POST /api/admin/bad-words.
func (h *Handler) SetBadWords(w http.ResponseWriter, r *http.Request) {
	var req BadWordsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	current := h.Guard.BadWords()
	if req.Words != nil {
		current.Words = *req.Words
	}
	if req.Patterns != nil {
		current.Patterns = *req.Patterns
	}

	if err := h.Guard.SetBadWords(current); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Bad word list updated",
		"words":    len(current.Words),
		"patterns": len(current.Patterns),
	})
}

// ExportKnowledgeBase handles POST /api/admin/export.
func (h *Handler) ExportKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	name, err := h.Store.Export()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to export knowledge base")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Knowledge base exported",
		"backup":  name,
	})
}

// ImportKnowledgeBase handles POST /api/admin/import. The ?replace=true query
// parameter swaps the whole collection instead of merging by id.
func (h *Handler) ImportKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	replace := r.URL.Query().Get("replace") == "true"

	count, err := h.Store.Import(data, replace)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Knowledge base imported",
		"imported": count,
		"replaced": replace,
	})
}
