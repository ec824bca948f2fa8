package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"database/sql"

	"github.com/billkie/saas-sprawl/internal/analysis"
	"github.com/billkie/saas-sprawl/internal/config"
	"github.com/billkie/saas-sprawl/internal/handler"
	"github.com/billkie/saas-sprawl/internal/integrations/ecb"
	"github.com/billkie/saas-sprawl/internal/integrations/googlews"
	"github.com/billkie/saas-sprawl/internal/integrations/quickbooks"
	"github.com/billkie/saas-sprawl/internal/middleware"
	"github.com/billkie/saas-sprawl/internal/repository"
	"github.com/billkie/saas-sprawl/internal/scheduler"
	"github.com/billkie/saas-sprawl/internal/service"
	"github.com/billkie/saas-sprawl/internal/utils/email"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	mailer := email.NewSender(cfg, logger)
	qbClient := quickbooks.NewClient(cfg.QuickBooksClientID, cfg.QuickBooksClientSecret,
		cfg.QuickBooksTokenURL, cfg.QuickBooksAPIBaseURL, logger)
	gwClient := googlews.NewClient(cfg.GoogleClientID, cfg.GoogleClientSecret,
		cfg.GoogleTokenURL, cfg.GoogleAPIBaseURL, logger)
	ecbClient := ecb.NewClient(cfg.ECBRatesURL, logger)

	analysisCfg := analysis.DefaultConfig()
	analysisCfg.MinConfidence = cfg.MinConfidence

	reconciler := service.NewReconciler(repo, service.ReconcilePolicy{
		MinConfidence:       cfg.MinConfidence,
		DefaultNotifyBefore: cfg.NotifyBeforeDays,
		DefaultCurrency:     cfg.BaseCurrency,
	}, logger)

	authSvc := service.NewAuthService(repo, cfg.JWTSecret, logger)
	subscriptionSvc := service.NewSubscriptionService(repo, cfg.NotifyBeforeDays, cfg.BaseCurrency, logger)
	notificationSvc := service.NewNotificationService(repo, logger)
	dashboardSvc := service.NewDashboardService(repo, ecbClient, cfg.BaseCurrency, logger)
	renewalSvc := service.NewRenewalService(repo, mailer, logger)
	syncSvc := service.NewSyncService(repo, qbClient, gwClient, mailer, reconciler,
		analysisCfg, cfg.SyncLookbackDays, logger)

	h := handler.NewHandler(authSvc, subscriptionSvc, notificationSvc, dashboardSvc,
		syncSvc, renewalSvc, logger)

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/signup", h.Signup).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/subscriptions", h.ListSubscriptions).Methods("GET")
	authRouter.HandleFunc("/subscriptions", h.CreateSubscription).Methods("POST")
	authRouter.HandleFunc("/subscriptions/{id}", h.UpdateSubscription).Methods("PATCH")
	authRouter.HandleFunc("/subscriptions/{id}", h.DeleteSubscription).Methods("DELETE")
	authRouter.HandleFunc("/notifications", h.ListNotifications).Methods("GET")
	authRouter.HandleFunc("/notifications/read-all", h.MarkAllNotificationsRead).Methods("POST")
	authRouter.HandleFunc("/notifications/{id}/read", h.MarkNotificationRead).Methods("POST")
	authRouter.HandleFunc("/notifications/{id}", h.DeleteNotification).Methods("DELETE")
	authRouter.HandleFunc("/dashboard/summary", h.DashboardSummary).Methods("GET")
	authRouter.HandleFunc("/sync", h.TriggerSync).Methods("POST")
	authRouter.HandleFunc("/renewals/check", h.TriggerRenewalCheck).Methods("POST")

	// Start scheduled jobs
	sched, err := scheduler.New(syncSvc, renewalSvc, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize scheduler: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
