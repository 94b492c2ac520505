package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/smixab/ihub-bot/internal/models"
	"github.com/smixab/ihub-bot/internal/services"
)

// ListTools handles GET /api/tools, with an optional ?category= filter.
func (h *Handler) ListTools(w http.ResponseWriter, r *http.Request) {
	var tools []models.ToolRecord
	if category := r.URL.Query().Get("category"); category != "" {
		tools = h.Store.FilterByCategory(category)
	} else {
		tools = h.Store.List()
	}
	if tools == nil {
		tools = []models.ToolRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tools": tools,
		"count": len(tools),
	})
}

// ListCategories handles GET /api/categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories := h.Store.Categories()
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

// CreateTool handles POST /api/tools (admin).
func (h *Handler) CreateTool(w http.ResponseWriter, r *http.Request) {
	var tool models.ToolRecord
	if err := json.NewDecoder(r.Body).Decode(&tool); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(tool.Name) == "" {
		writeError(w, http.StatusBadRequest, "Tool name is required")
		return
	}

	created, err := h.Store.Create(tool)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save tool")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Tool added successfully",
		"tool":    created,
	})
}

// UpdateTool handles PUT /api/tools/{id} (admin).
func (h *Handler) UpdateTool(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid tool ID")
		return
	}

	var tool models.ToolRecord
	if err := json.NewDecoder(r.Body).Decode(&tool); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	tool.ID = id

	if err := h.Store.Update(tool); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Tool not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save tool")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Tool updated successfully",
		"tool":    tool,
	})
}

// DeleteTool handles DELETE /api/tools/{id} (admin).
func (h *Handler) DeleteTool(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid tool ID")
		return
	}
	if err := h.Store.Delete(id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Tool not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete tool")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Tool deleted successfully"})
}
