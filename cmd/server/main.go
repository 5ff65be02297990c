package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"argus/internal/cache"
	"argus/internal/config"
	contextmatcher "argus/internal/context"
	"argus/internal/database"
	"argus/internal/embedding"
	"argus/internal/envelope"
	"argus/internal/handlers"
	"argus/internal/ingest"
	"argus/internal/logging"
	"argus/internal/metrics"
	"argus/internal/middleware"
	"argus/internal/popuptemplates"
	"argus/internal/preflight"
	"argus/internal/scheduler"
	"argus/internal/store"
	"argus/internal/tier"
	"argus/internal/transport"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logging.Init()

	log.Println("🚀 Starting Argus Server...")

	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, AI tier mode: %s)", cfg.Port, cfg.AITierMode)

	// MongoDB is the system of record (spec §4.5) and is required.
	if cfg.MongoURI == "" {
		log.Fatal("❌ MONGODB_URI environment variable is required")
	}
	mongoDB, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Close(context.Background())
	log.Println("✅ MongoDB connected successfully")

	if err := mongoDB.Initialize(context.Background()); err != nil {
		log.Fatalf("❌ Failed to initialize MongoDB collections: %v", err)
	}
	log.Println("✅ MongoDB collections and indexes ready")

	// Optional MySQL id-counter bootstrap table (spec §4.5 enrichment):
	// persists the event/trigger counters across restarts without a
	// max(id) aggregation scan on every boot. Runs Mongo-only otherwise.
	var counterDB *database.DB
	if cfg.DatabaseURL != "" {
		counterDB, err = database.New(cfg.DatabaseURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to id-counter database: %v (falling back to max(id) reseed)", err)
			counterDB = nil
		} else if err := counterDB.Initialize(); err != nil {
			log.Printf("⚠️ Failed to initialize id-counter database: %v (falling back to max(id) reseed)", err)
			counterDB = nil
		} else {
			defer counterDB.Close()
			log.Println("✅ Id-counter bootstrap database connected")
		}
	} else {
		log.Println("ℹ️ DATABASE_URL not set; id counters will reseed from max(id) on every restart")
	}

	deadLetter := envelope.NewDeadLetterWriter(cfg.DataDir + "/dead-letter.jsonl")
	safeCaller := envelope.NewSafeCallerDebug(deadLetter, cfg.DebugErrors)

	documentStore, err := store.New(context.Background(), mongoDB, counterDB, deadLetter, cfg.HotWindowDays)
	if err != nil {
		log.Fatalf("❌ Failed to initialize document store: %v", err)
	}
	log.Println("✅ Document store adapter ready")

	llmClient := tier.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)

	tierMode := parseTierMode(cfg.AITierMode)
	orchestrator := tier.New(tierMode, llmClient, safeCaller, cfg.AICooldownBaseSec)
	log.Printf("✅ Tier orchestrator initialized (mode=%s)", tierMode)

	probeCtx, cancelProbe := context.WithCancel(context.Background())
	defer cancelProbe()
	go orchestrator.HealthProbe(probeCtx, 60*time.Second, llmClient.Ping)

	responseCache := cache.New(cfg.AICacheMaxSize, time.Duration(cfg.AICacheTTLSec)*time.Second)

	tierService := tier.NewService(orchestrator, llmClient, responseCache)

	if popupStore, err := popuptemplates.Load(cfg.PopupTemplatesPath); err != nil {
		log.Printf("⚠️ Failed to load popup templates from %s: %v (using compiled-in defaults)", cfg.PopupTemplatesPath, err)
	} else {
		tierService.SetPopupTemplates(popupStore)
		popupStore.Watch()
		log.Printf("✅ Popup templates loaded from %s", cfg.PopupTemplatesPath)
	}

	embeddingClient := embedding.NewClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimension)

	hub := transport.NewHub()

	matcher := contextmatcher.New(documentStore, tierService, embeddingClient)

	pipeline := ingest.New(documentStore, tierService, embeddingClient, hub, ingest.Config{
		ProcessOwnMessages: cfg.ProcessOwnMessages,
		SkipGroupMessages:  cfg.SkipGroupMessages,
	})

	retryQueue := scheduler.NewRetryQueue(cfg.DataDir + "/failed-reminders.jsonl")

	sched := scheduler.New()
	sched.Register("time-triggers", scheduler.NewTimeTriggersJob(documentStore, tierService, hub, retryQueue))
	sched.Register("due-reminders", scheduler.NewDueRemindersJob(documentStore, tierService, hub, retryQueue))
	sched.Register("snooze-expiry", scheduler.NewSnoozeExpiryJob(documentStore, tierService, hub, retryQueue))
	sched.Register("daily-snapshot", scheduler.NewDailySnapshotJob(documentStore, cfg.DataDir+"/backups", cfg.BackupRetentionDays))
	sched.Register("embedding-backfill", scheduler.NewEmbeddingBackfillJob(documentStore, embeddingClient))
	sched.Start()
	log.Println("✅ Scheduler started (5 jobs registered)")

	metrics.Init(hub.Connected)

	checker := preflight.NewChecker(mongoDB, llmClient)
	results := checker.RunAll()
	if preflight.HasFailures(results) {
		log.Fatal("❌ Pre-flight checks failed; refusing to start")
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitGlobalRPS, cfg.RateLimitPerIPRPS)

	webhookHandler := handlers.NewWebhookHandler(pipeline)
	healthHandler := handlers.NewHealthHandler(tierService, retryQueue, matcher)
	wsHandler := handlers.NewWebSocketHandler(hub, documentStore)
	eventsHandler := handlers.NewEventsHandler(documentStore, hub)
	backupHandler := handlers.NewBackupHandler(documentStore, cfg.DataDir+"/backups")
	contextCheckHandler := handlers.NewContextCheckHandler(matcher)
	chatHandler := handlers.NewChatHandler(documentStore, tierService)
	aiStatusHandler := handlers.NewAIStatusHandler(tierService)
	formCheckHandler := handlers.NewFormCheckHandler(documentStore)

	app := fiber.New(fiber.Config{
		AppName:        "Argus",
		ReadTimeout:    900 * time.Second,
		WriteTimeout:   900 * time.Second,
		IdleTimeout:    900 * time.Second,
		BodyLimit:      50 * 1024 * 1024,
		ReadBufferSize: 16384,
		UnescapePath:   true,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("argus")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: allowedOrigins != "*",
	}))

	app.Use("/api", rateLimiter.Middleware())

	api := app.Group("/api")

	api.Post("/webhook/*", webhookHandler.Handle)
	api.Post("/context-check", contextCheckHandler.Handle)
	api.Post("/chat", chatHandler.Handle)
	api.Post("/form-check", formCheckHandler.Handle)

	api.Get("/events", eventsHandler.List)
	api.Get("/events/day/:timestamp", eventsHandler.ByDay)
	api.Get("/events/status/:status", eventsHandler.ByStatus)
	api.Get("/events/:id", eventsHandler.Get)
	api.Patch("/events/:id", eventsHandler.Update)
	api.Delete("/events/:id", eventsHandler.Delete)
	api.Post("/events/:id/complete", eventsHandler.Complete)
	api.Post("/events/:id/set-reminder", eventsHandler.SetReminder)
	api.Post("/events/:id/snooze", eventsHandler.Snooze)
	api.Post("/events/:id/ignore", eventsHandler.Ignore)
	api.Post("/events/:id/dismiss", eventsHandler.Dismiss)
	api.Post("/events/:id/acknowledge", eventsHandler.Acknowledge)
	api.Post("/events/:id/confirm-update", eventsHandler.ConfirmUpdate)
	api.Post("/events/:id/context-url", eventsHandler.SetContextURL)

	api.Get("/stats", eventsHandler.Stats)
	api.Get("/health", healthHandler.Handle)
	api.Get("/ai-status", aiStatusHandler.Handle)

	api.Get("/backup/export", backupHandler.Export)
	api.Get("/backup/list", backupHandler.List)
	api.Post("/backup/import", backupHandler.Import)
	api.Post("/backup/restore/:filename", backupHandler.Restore)

	// Single persistent duplex-channel endpoint (spec §4.9): at most one
	// client connection at any moment, last-connection-wins.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsHandler.Handle))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("🛑 Shutdown signal received, draining...")
		sched.Stop()
		if err := app.ShutdownWithContext(context.Background()); err != nil {
			log.Printf("⚠️ Error during HTTP shutdown: %v", err)
		}
	}()

	log.Printf("🌐 Listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
	log.Println("👋 Server stopped")
}

func parseTierMode(raw string) tier.Mode {
	switch strings.ToLower(raw) {
	case "force-t1":
		return tier.ModeForceT1
	case "force-t2":
		return tier.ModeForceT2
	case "force-t3":
		return tier.ModeForceT3
	default:
		return tier.ModeAuto
	}
}
