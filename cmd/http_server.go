package cmd

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/jotpay/payment-service/internal"
	"github.com/jotpay/payment-service/internal/core/events"
	"github.com/jotpay/payment-service/internal/notification"
	"github.com/jotpay/payment-service/internal/payment"
	paymentpostgres "github.com/jotpay/payment-service/internal/payment/postgres"
	"github.com/jotpay/payment-service/internal/processor"
	"github.com/jotpay/payment-service/internal/transport"
	"github.com/jotpay/payment-service/internal/transport/rest"
	"github.com/jotpay/payment-service/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle payment initiation, status reads, processor webhooks and admin overrides`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config         *internal.Config
	DB             *sqlx.DB
	GormDB         *gorm.DB
	Router         *chi.Mux
	Logger         *slog.Logger
	PaymentHandler *payment.Handler
	WebhookHandler *payment.WebhookHandler
	AdminHandler   *payment.AdminHandler
	AdminPublicKey *rsa.PublicKey
	Reconciler     *payment.Reconciler
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	healthHandler := rest.NewHealthHandler(map[string]rest.CheckFunc{
		"postgres":  rest.DatabaseCheck(deps.DB.DB),
		"processor": rest.ProcessorCheck(deps.Config.Processor.TokenURL),
	})
	rest.RegisterAllRoutes(deps.Router, healthHandler, deps.PaymentHandler, deps.WebhookHandler, deps.AdminHandler, deps.AdminPublicKey, deps.Logger)

	reconcilerCtx, stopReconciler := context.WithCancel(context.Background())
	go deps.Reconciler.Run(reconcilerCtx)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		stopReconciler()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		stopReconciler()
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"))
	log := logger.L()

	db, gormDB, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	adminKey, err := config.Security.GetPublicKey()
	if err != nil {
		log.Warn("admin public key not configured, admin endpoints disabled", "error", err)
		adminKey = nil
	}

	eventBus := events.NewEventBus(log)

	var mailer notification.Mailer
	if config.Notification.Enabled {
		mailer = notification.NewSMTPMailer(notification.SMTPConfig{
			Host:     config.Notification.SMTPHost,
			Port:     config.Notification.SMTPPort,
			Username: config.Notification.SMTPUser,
			Password: config.Notification.SMTPPass,
			From:     config.Notification.FromAddress,
		})
	} else {
		mailer = &notification.LogMailer{Logger: log}
	}
	dispatcher := notification.NewDispatcher(mailer, log)
	dispatcher.RegisterEventHandlers(eventBus)

	feed := payment.NewFeed(log)
	repo := paymentpostgres.NewPaymentRepository(gormDB)
	service := payment.NewService(repo, feed, eventBus, log)

	processorClient := processor.NewClient(processor.Config{
		BaseURL:      config.Processor.BaseURL,
		TokenURL:     config.Processor.TokenURL,
		ClientID:     config.Processor.ClientID,
		ClientSecret: config.Processor.ClientSecret,
		Timeout:      config.Processor.Timeout,
	}, log)

	initiator := payment.NewInitiator(processorClient, service, config.Processor.WalletID, config.Processor.Currency, log)

	reconciler := payment.NewReconciler(service, processorClient,
		config.Reconciler.PollInterval,
		config.Reconciler.PendingAge,
		config.Reconciler.BatchSize,
		log)

	baseHandler := transport.NewBaseHandler(log)

	return &Dependencies{
		Config:         config,
		Logger:         log,
		DB:             db,
		GormDB:         gormDB,
		Router:         chi.NewRouter(),
		PaymentHandler: payment.NewHandler(baseHandler, initiator, service, log),
		WebhookHandler: payment.NewWebhookHandler(baseHandler, service, log),
		AdminHandler:   payment.NewAdminHandler(baseHandler, service, processorClient, config.Processor.WalletID, log),
		AdminPublicKey: adminKey,
		Reconciler:     reconciler,
	}, nil
}

// initDB opens one pgx-backed connection pool and shares it between
// the sqlx handle used for health checks and the gorm handle used by
// the repository.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, *gorm.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: dbConn.DB}), &gorm.Config{})
	if err != nil {
		_ = dbConn.Close()
		return nil, nil, fmt.Errorf("failed to open gorm over db connection: %w", err)
	}

	return dbConn, gormDB, nil
}
