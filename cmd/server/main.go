package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"

	"familysync/internal/config"
	"familysync/internal/database"
	"familysync/internal/handlers"
	"familysync/internal/realtime"
	"familysync/internal/repository"
	"familysync/internal/security"
	"familysync/internal/service"
	"familysync/migrations"
)

func main() {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	// Load configuration
	cfg, err := config.LoadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)

	// Run migrations, from disk when a path is configured
	if cfg.MigrationsPath != "" {
		err = db.RunMigrations(cfg.MigrationsPath)
	} else {
		err = db.RunMigrationsFS(migrations.FS)
	}
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Migrations completed successfully")

	hub := realtime.NewHub(realtime.DefaultBufferSize)

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	eventRepo := repository.NewEventRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// Email is optional; without SES_FROM_EMAIL messages are skipped
	var mailer service.Mailer
	emailService, err := service.NewEmailService(context.Background(), cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, cfg.EmailDebug)
	if err != nil {
		log.Printf("Warning: email disabled: %v", err)
	} else {
		mailer = emailService
	}

	// Initialize services
	authService := service.NewAuthService(accountRepo, memberRepo, familyRepo, mailer, cfg.SessionDuration)
	familyService := service.NewFamilyService(familyRepo, memberRepo, db.Dialect, hub, mailer, cfg.DefaultTimezone)
	calendarService := service.NewCalendarService(eventRepo, memberRepo, hub)
	taskService := service.NewTaskService(taskRepo, memberRepo, hub)
	chatService := service.NewChatService(messageRepo, hub, cfg.ChatHistoryLimit)
	profileService := service.NewProfileService(memberRepo, authService, hub)
	dashboardService := service.NewDashboardService(calendarService, taskService, memberRepo)

	oauthProviders := map[string]handlers.OAuthProvider{
		"google": {
			Name:  "google",
			Label: "Google",
			Config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     google.Endpoint,
				Scopes:       []string{"openid", "email", "profile"},
			},
			UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		},
		"facebook": {
			Name:  "facebook",
			Label: "Facebook",
			Config: &oauth2.Config{
				ClientID:     cfg.FacebookClientID,
				ClientSecret: cfg.FacebookClientSecret,
				Endpoint:     facebook.Endpoint,
				Scopes:       []string{"email", "public_profile"},
			},
			UserInfoURL: "https://graph.facebook.com/me?fields=id,name,email",
		},
		"apple": {
			Name:  "apple",
			Label: "Apple",
			Config: &oauth2.Config{
				ClientID:     cfg.AppleClientID,
				ClientSecret: cfg.AppleClientSecret,
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://appleid.apple.com/auth/authorize",
					TokenURL: "https://appleid.apple.com/auth/token",
				},
				Scopes: []string{"name", "email"},
			},
			AuthParams: map[string]string{
				"response_mode": "query",
			},
		},
	}

	// Login and registration attempts per client IP
	limiter := security.NewRateLimiter(10, time.Minute)
	defer limiter.Stop()

	csrf := security.NewCSRFGenerator(cfg.CSRFSecret)
	liveHandler := handlers.NewLiveHandler(chatService)

	handler := handlers.NewRouter(handlers.Handlers{
		Middleware: handlers.NewMiddleware(authService, csrf, limiter),
		Auth:       handlers.NewAuthHandler(authService, csrf, oauthProviders, cfg.OAuthRedirectBaseURL),
		Family:     handlers.NewFamilyHandler(familyService, profileService),
		Calendar:   handlers.NewCalendarHandler(calendarService),
		Task:       handlers.NewTaskHandler(taskService),
		Chat:       handlers.NewChatHandler(chatService),
		Profile:    handlers.NewProfileHandler(profileService),
		Dashboard:  handlers.NewDashboardHandler(dashboardService),
		Live:       liveHandler,
	})

	// Start server. No write timeout: /api/live connections are long-lived.
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background session cleanup
	go cleanupExpiredSessions(ctx, authService)

	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	log.Println("Server shutting down...")

	if err := liveHandler.Close(); err != nil {
		log.Printf("Error closing live connections: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}

// cleanupExpiredSessions periodically removes expired sessions
func cleanupExpiredSessions(ctx context.Context, authService *service.AuthService) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := authService.CleanupExpiredSessions(ctx); err != nil {
				log.Printf("Error cleaning up expired sessions: %v", err)
			} else {
				log.Println("Expired sessions cleaned up")
			}
		}
	}
}
