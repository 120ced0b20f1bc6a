package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/stayflow/stayflow-backend/database"
	"github.com/stayflow/stayflow-backend/internal/activity"
	"github.com/stayflow/stayflow-backend/internal/config"
	"github.com/stayflow/stayflow-backend/internal/delivery"
	"github.com/stayflow/stayflow-backend/internal/handlers"
	"github.com/stayflow/stayflow-backend/internal/invoice"
	"github.com/stayflow/stayflow-backend/internal/jobs"
	"github.com/stayflow/stayflow-backend/internal/llm"
	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/payments"
	"github.com/stayflow/stayflow-backend/internal/routes"
	"github.com/stayflow/stayflow-backend/internal/services"
	"github.com/stayflow/stayflow-backend/internal/storage"
)

const version = "1.0.0"

func main() {
	// Load .env file for local development
	config.LoadEnvFiles()
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	for _, dir := range []string{cfg.UploadsDir, cfg.AssetsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("Failed to create directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	// Initialize storage
	var store storage.Store
	health := handlers.NewHealthHandler(version, getStorageType(cfg))

	// Check if we should use memory store (for testing)
	if cfg.UseMemory {
		logger.Warn("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		logger.Info("📦 Connecting to PostgreSQL database...")
		if err := database.Connect(cfg.Database); err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}

		dbStore := storage.NewDatabaseStore(database.DB)
		logger.Info("🔄 Running database migrations...")
		if err := dbStore.Migrate(); err != nil {
			logger.Error("Failed to migrate database", "error", err)
			os.Exit(1)
		}
		logger.Info("✅ Database migrations completed!")

		store = dbStore
		health.PingDatabase = database.Ping
	}
	storage.SetStore(store)

	sessions := services.NewSessionManager(cfg.SessionTTL)
	sessions.StartJanitor(10 * time.Minute)
	health.ActiveSessions = sessions.ActiveCount

	httpClient := &http.Client{Timeout: 30 * time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Paid channel
	var (
		paid  delivery.Channel
		media handlers.MediaDownloader
	)
	switch cfg.PaidProvider {
	case "twilio":
		tw, err := delivery.NewTwilioChannel(cfg.Twilio, cfg.PublicBaseURL, cfg.UploadsDir)
		if err != nil {
			logger.Error("Failed to initialize Twilio channel", "error", err)
			os.Exit(1)
		}
		paid = tw
	default:
		cloud := delivery.NewCloudAPIChannel(cfg.WhatsApp, httpClient)
		paid = cloud
		media = cloud
	}
	if !paid.Ready() {
		logger.Warn("⚠️  Paid WhatsApp channel not configured - messages will be limited", "provider", paid.Name())
	}

	// Free channel
	var (
		free delivery.Channel
		wweb *delivery.WhatsmeowChannel
	)
	if cfg.WWebEnabled {
		w, err := delivery.NewWhatsmeowChannel(cfg.WWebStorePath, cfg.UploadsDir)
		if err != nil {
			logger.Error("⚠️  WhatsApp Web channel unavailable", "error", err)
		} else {
			wweb = w
			free = w
		}
	}
	gateway := delivery.NewGateway(free, paid)
	health.FreeChannelUp = gateway.FreeReady

	var (
		recorder      activity.Recorder = activity.Nop{}
		notifications handlers.NotificationLog
		bolt          *activity.BoltRecorder
	)
	if b, err := activity.NewBoltRecorder(cfg.ActivityDBPath, 512); err != nil {
		logger.Warn("⚠️  Activity log disabled", "error", err)
	} else {
		bolt = b
		recorder = b
		notifications = b
	}

	var chat llm.Client
	if c := llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, httpClient); c.Configured() {
		chat = c
	} else {
		logger.Warn("⚠️  LLM not configured - inputs are accepted without validation")
	}

	razorpay := payments.NewRazorpayClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, httpClient)
	renderer := invoice.NewRenderer(cfg.UploadsDir)

	billing := services.NewBillingService(cfg, store, gateway, renderer, razorpay, recorder)
	assistant := services.NewAssistant(cfg, services.AssistantDeps{
		Store:     store,
		Sessions:  sessions,
		Messenger: gateway,
		Validator: services.NewLLMValidator(chat, cfg.LLM.ValidationModel),
		Responder: services.NewLLMResponder(chat, cfg.LLM.ChatModel, cfg.BusinessName),
		Recorder:  recorder,
		Billing:   billing,
	})

	if wweb != nil {
		wweb.OnMessage(assistant.HandleIncoming)
		if err := wweb.Start(ctx); err != nil {
			logger.Error("⚠️  WhatsApp Web failed to start", "error", err)
		}
	}

	// Initialize and start notification jobs
	notificationJob := jobs.NewNotificationJob(billing, cfg.BillCron, cfg.ReminderCron, cfg.FinalReminderCron)
	if err := notificationJob.Start(ctx); err != nil {
		logger.Error("Failed to start notification jobs", "error", err)
		os.Exit(1)
	}

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: cfg.BusinessName + " Backend v" + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Admin-Key",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app, cfg, routes.Handlers{
		Health:   health,
		WhatsApp: handlers.NewWhatsAppHandler(assistant, media, cfg.WhatsApp.VerifyToken, cfg.UploadsDir),
		Payment:  handlers.NewPaymentHandler(billing),
		Admin:    handlers.NewAdminHandler(store, billing, assistant, sessions, notifications, cfg.OwnerPhone),
	})

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		logger.Info("🛑 Gracefully shutting down...")
		logger.Info("⏹️  Stopping notification jobs...")
		notificationJob.Stop()
		sessions.Stop()
		if wweb != nil {
			wweb.Stop()
		}
		cancel()
		logger.Info("⏹️  Shutting down server...")
		_ = app.Shutdown()
	}()

	// Start server
	logger.Info("========================================")
	logger.Info("🚀 Backend starting", "business", cfg.BusinessName, "port", cfg.Port)
	logger.Info("📊 Storage", "type", getStorageType(cfg))
	logger.Info("🌍 Environment", "env", cfg.Environment)
	logger.Info("📱 WhatsApp", "paid", paid.Name(), "paid_ready", paid.Ready(), "free_enabled", free != nil)
	logger.Info("⏰ Billing schedule", "bills", cfg.BillCron, "reminder", cfg.ReminderCron, "final", cfg.FinalReminderCron)
	logger.Info("========================================")

	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Error("Server stopped", "error", err)
	}

	if bolt != nil {
		if err := bolt.Close(); err != nil {
			logger.Warn("Failed to close activity log", "error", err)
		}
	}
	if !cfg.UseMemory {
		if err := database.Close(); err != nil {
			logger.Warn("Failed to close database", "error", err)
		}
	}
}

func getStorageType(cfg *config.Config) string {
	if cfg.UseMemory {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}
