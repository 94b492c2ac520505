package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/smixab/ihub-bot/internal/config"
	"github.com/smixab/ihub-bot/internal/database"
	"github.com/smixab/ihub-bot/internal/handlers"
	"github.com/smixab/ihub-bot/internal/middleware"
	"github.com/smixab/ihub-bot/internal/routes"
	"github.com/smixab/ihub-bot/internal/services"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	// Load configuration
	cfg := config.Load()

	// Open the moderation database
	log.Printf("Opening moderation database at %s...", cfg.ModerationDBPath)
	db, err := database.Open(cfg.ModerationDBPath)
	if err != nil {
		log.Fatal("Failed to open moderation database:", err)
	}
	defer db.Close()

	activity := services.NewActivityStore(db)
	guard, err := services.NewGuard(activity, cfg.ModerationConfigPath, cfg.BadWordsPath)
	if err != nil {
		log.Fatal("Failed to initialize moderation:", err)
	}
	log.Println("✅ Moderation initialized")

	store, err := services.NewKnowledgeStore(cfg.KnowledgeBasePath)
	if err != nil {
		log.Fatal("Failed to load knowledge base:", err)
	}
	log.Printf("✅ Knowledge base loaded (%d tools)", len(store.List()))

	// Text generation and embeddings are optional; without a key the chat
	// endpoint serves template responses and search is lexical only.
	var generator services.Generator
	var embedder services.Embedder
	if cfg.OpenAIAPIKey != "" {
		client := services.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.ChatModel, cfg.EmbeddingModel)
		generator = client
		embedder = client
		log.Println("✅ Language model configured")
	} else {
		log.Println("⚠️  WARNING: OPENAI_API_KEY not set. Chat will use template responses and lexical search only.")
	}

	ranker := services.NewRanker(store, embedder, db)
	orchestrator := services.NewOrchestrator(guard, ranker, generator, services.SchoolInfo{
		Name:  cfg.SchoolName,
		Type:  cfg.SchoolType,
		Focus: cfg.SchoolFocus,
	}, cfg.LLMTimeout)

	h := handlers.New(store, ranker, guard, orchestrator)

	if cfg.AdminPasswordHash == "" {
		log.Println("⚠️  WARNING: ADMIN_PASSWORD_HASH not set. Admin API is unprotected.")
	}

	// Setup router
	r := chi.NewRouter()

	r.Use(middleware.RequestID)

	// Custom CORS: set headers and respond to OPTIONS with 200 so preflight never gets 403
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	if cfg.IsProduction() {
		r.Use(middleware.SecurityHeaders)
		log.Println("✅ Production security headers enabled")
	}
	r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	routes.SetupRoutes(r, h, cfg.AdminPasswordHash)

	// Log registered routes for debugging
	log.Println("📋 Registered routes:")
	log.Println("  GET  /health")
	log.Println("  POST /api/chat")
	log.Println("  POST /api/search")
	log.Println("  GET  /api/tools")
	log.Println("  GET  /api/categories")
	log.Println("  GET  /api/admin/stats")
	log.Println("  GET  /api/admin/user/{ip}")
	log.Println("  POST /api/admin/block")
	log.Println("  POST /api/admin/unblock")
	log.Println("  GET  /api/admin/config")
	log.Println("  POST /api/admin/config")
	log.Println("  GET  /api/admin/bad-words")
	log.Println("  POST /api/admin/bad-words")
	log.Println("  POST /api/admin/export")
	log.Println("  POST /api/admin/import")
	log.Println("  POST /api/tools")
	log.Println("  PUT  /api/tools/{id}")
	log.Println("  DELETE /api/tools/{id}")

	log.Printf("🚀 Resource hub bot running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
