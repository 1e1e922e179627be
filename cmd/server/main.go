package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"servus-backend/internal/audit"
	"servus-backend/internal/auth"
	"servus-backend/internal/cache"
	"servus-backend/internal/config"
	"servus-backend/internal/database"
	"servus-backend/internal/db"
	"servus-backend/internal/events"
	h "servus-backend/internal/http"
	"servus-backend/internal/handlers"
	"servus-backend/internal/health"
	"servus-backend/internal/logging"
	"servus-backend/internal/mail"
	"servus-backend/internal/middleware"
	"servus-backend/internal/repositories"
	"servus-backend/internal/services"
	"servus-backend/internal/storage"
	"servus-backend/internal/timeutil"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.Setup(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
	log.Println("Server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := database.NewMigrator(pool).RunMigrations(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	ratingCache := cache.New(cfg)
	defer ratingCache.Close()

	fileStorage, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	uploadDir := ""
	if local, ok := fileStorage.(*storage.LocalStorage); ok {
		uploadDir = local.Root()
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(pool)
	technicianRepo := repositories.NewTechnicianRepository(pool)
	customerRepo := repositories.NewCustomerRepository(pool)
	materialRepo := repositories.NewMaterialRepository(pool)
	jobRepo := repositories.NewJobRepository(pool)
	jobMaterialRepo := repositories.NewJobMaterialRepository(pool)
	noteRepo := repositories.NewNoteRepository(pool)
	photoRepo := repositories.NewPhotoRepository(pool)
	invoiceRepo := repositories.NewInvoiceRepository(pool)
	feedbackRepo := repositories.NewFeedbackRepository(pool)
	emailRepo := repositories.NewEmailRepository(pool)
	dashboardRepo := repositories.NewDashboardRepository(pool)

	// Initialize services
	recorder := audit.NewRecorder(timeutil.Now)
	jwtManager := auth.NewJWTManager(cfg)
	bus := events.NewBus()

	authService := services.NewAuthService(userRepo, jwtManager, recorder)
	userService := services.NewUserService(userRepo, recorder)
	customerService := services.NewCustomerService(customerRepo, recorder)
	materialService := services.NewMaterialService(materialRepo, recorder)
	jobService := services.NewJobService(jobRepo, technicianRepo, customerRepo, bus, recorder)
	attachmentService := services.NewAttachmentService(services.AttachmentDeps{
		Jobs:           jobRepo,
		Technicians:    technicianRepo,
		Customers:      customerRepo,
		Materials:      materialRepo,
		JobMaterials:   jobMaterialRepo,
		Notes:          noteRepo,
		Photos:         photoRepo,
		Storage:        fileStorage,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, recorder)
	invoiceService := services.NewInvoiceService(invoiceRepo, jobRepo, technicianRepo, customerRepo, jobMaterialRepo, recorder)
	feedbackService := services.NewFeedbackService(feedbackRepo, jobRepo, customerRepo, technicianRepo, ratingCache, recorder)
	dashboardService := services.NewDashboardService(dashboardRepo, recorder)
	technicianService := services.NewTechnicianService(technicianRepo, dashboardRepo, recorder)
	notificationService := services.NewNotificationService(emailRepo, timeutil.Now)

	if cfg.Bootstrap.OwnerEmail != "" {
		if err := authService.BootstrapOwner(ctx, cfg.Bootstrap.OwnerName, cfg.Bootstrap.OwnerEmail, cfg.Bootstrap.OwnerPassword); err != nil {
			return fmt.Errorf("bootstrap owner: %w", err)
		}
	}

	// Domain events: the outbox and the live feed both hang off the bus
	hub := events.NewHub(cfg.Server.CorsAllowedOrigins)
	bus.Subscribe(notificationService.Handle)
	bus.Subscribe(hub.Handle)
	go hub.Run(ctx)

	emailWorker := services.NewEmailWorker(emailRepo, mail.New(cfg), services.EmailWorkerConfig{
		Schedule:     cfg.Email.DrainSchedule,
		BatchSize:    cfg.Email.BatchSize,
		MaxRetries:   cfg.Email.MaxRetries,
		ClaimTimeout: cfg.Email.ClaimTimeout,
	}, timeutil.Now)
	if err := emailWorker.Start(); err != nil {
		return err
	}
	defer emailWorker.Stop()

	// Initialize handlers
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, authService)
	router := h.NewRouter(h.Handlers{
		Auth:         handlers.NewAuthHandler(authService),
		User:         handlers.NewUserHandler(userService),
		Customer:     handlers.NewCustomerHandler(customerService, jobService),
		Material:     handlers.NewMaterialHandler(materialService),
		Job:          handlers.NewJobHandler(jobService),
		Attachment:   handlers.NewAttachmentHandler(attachmentService),
		Invoice:      handlers.NewInvoiceHandler(invoiceService),
		Feedback:     handlers.NewFeedbackHandler(feedbackService),
		Dashboard:    handlers.NewDashboardHandler(dashboardService),
		Technician:   handlers.NewTechnicianHandler(technicianService),
		Notification: handlers.NewNotificationHandler(notificationService),
		Health:       handlers.NewHealthHandler(health.NewHealthChecker(pool, ratingCache, uploadDir)),
		Hub:          hub,
	}, authMiddleware, h.Options{
		UploadDir:    uploadDir,
		UploadPrefix: cfg.Storage.PublicPrefix,
		LoginLimiter: middleware.NewIPRateLimiter("login", cfg.RateLimit.LoginRPS, cfg.RateLimit.LoginBurst),
		GuestLimiter: middleware.NewIPRateLimiter("guest", cfg.RateLimit.GuestRPS, cfg.RateLimit.GuestBurst),
	})

	// Wrap with panic recovery and CORS
	handler := middleware.PanicRecovery(middleware.NewCORS(cfg)(router))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
