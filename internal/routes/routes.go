package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/smixab/ihub-bot/internal/handlers"
	"github.com/smixab/ihub-bot/internal/middleware"
)

// SetupRoutes mounts the public and admin API on r. Admin routes are gated
// by the X-Admin-Password header when adminPasswordHash is set.
func SetupRoutes(r *chi.Mux, h *handlers.Handler, adminPasswordHash string) {
	// Public chat and search routes
	r.Post("/api/chat", h.Chat)
	r.Post("/api/search", h.Search)
	r.Get("/api/tools", h.ListTools)
	r.Get("/api/categories", h.ListCategories)

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminAuth(adminPasswordHash))

		r.Get("/api/admin/stats", h.Stats)
		r.Get("/api/admin/user/{ip}", h.UserDetail)
		r.Post("/api/admin/block", h.BlockUser)
		r.Post("/api/admin/unblock", h.UnblockUser)
		r.Get("/api/admin/config", h.GetModerationConfig)
		r.Post("/api/admin/config", h.SetModerationConfig)
		r.Get("/api/admin/bad-words", h.GetBadWords)
		r.Post("/api/admin/bad-words", h.SetBadWords)
		r.Post("/api/admin/export", h.ExportKnowledgeBase)
		r.Post("/api/admin/import", h.ImportKnowledgeBase)

		// Knowledge base management
		r.Post("/api/tools", h.CreateTool)
		r.Put("/api/tools/{id}", h.UpdateTool)
		r.Delete("/api/tools/{id}", h.DeleteTool)
	})
}
