package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jotpay/payment-service/internal/core/events"
	"github.com/jotpay/payment-service/internal/notification"
	"github.com/jotpay/payment-service/internal/payment"
	paymentpostgres "github.com/jotpay/payment-service/internal/payment/postgres"
	"github.com/jotpay/payment-service/internal/processor"
	"github.com/jotpay/payment-service/pkg/logger"
)

var (
	reconcileOnce bool

	reconcileCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Run the pending-payment reconciler",
		Long:  `Re-checks stale PENDING payments against the processor and applies the statuses it reports. Runs continuously unless --once is set.`,
		Run: func(cmd *cobra.Command, args []string) {
			runReconciler()
		},
	}
)

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileOnce, "once", false, "Run a single reconciliation sweep and exit")
}

func runReconciler() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(os.Getenv("APP_ENV"))
	log := logger.L()

	_, gormDB, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
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

	reconciler := payment.NewReconciler(service, processorClient,
		config.Reconciler.PollInterval,
		config.Reconciler.PendingAge,
		config.Reconciler.BatchSize,
		log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if reconcileOnce {
		reconciler.RunOnce(ctx)
		return
	}

	go reconciler.Run(ctx)

	log.Info("reconciler is running. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("received signal, shutting down reconciler", "signal", sig)
	cancel()
}
