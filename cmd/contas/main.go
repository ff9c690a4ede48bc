package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"contas/internal/amqp"
	"contas/internal/auth"
	"contas/internal/backend"
	"contas/internal/cli"
	"contas/internal/core"
	apphttp "contas/internal/http"
	"contas/internal/log"
	"contas/internal/services"
)

func main() {
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)
	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	backends, err := backend.NewFactory(logger.Logger.With(log.FieldComponent, log.ComponentBackend)).Create(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backends", log.FieldError, err)
		os.Exit(1)
	}
	defer backends.Cleanup()

	// Events are optional: without a broker the spreadsheet mirror is off.
	var events services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			events = amqpClient
			defer amqpClient.Close()
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	formatter, err := core.NewFormatter(cfg.DisplayLocale, cfg.DisplayCurrency)
	if err != nil {
		logger.Warn("Formatted amounts disabled", "locale", cfg.DisplayLocale, "currency", cfg.DisplayCurrency, log.FieldError, err)
		formatter = nil
	}

	deps := apphttp.Deps{
		Transactions: services.NewTransactionService(backends.Store, backends.Blobs, events, services.TransactionOptions{
			ReceiptTTL:     cfg.ReceiptURLTTL,
			MaxUploadBytes: cfg.MaxUploadBytes,
		}),
		Entities: services.NewEntityService(backends.Store),
		Reports:  services.NewReportService(backends.Store, formatter),
		Exchange: services.NewExchangeService(backends.Store, events),
		Verifier: auth.NewVerifier(cfg.SessionSecret, cfg.SessionIssuer),
		Logger:   logger.WithComponent(log.ComponentHTTP),
		Store:    backends.Store,
		Files:    backends.Files,
	}
	srv := apphttp.NewServer(cfg.ListenAddr(), deps, apphttp.Options{
		MaxUploadBytes:     cfg.MaxUploadBytes,
		ReceiptTTL:         cfg.ReceiptURLTTL,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	serve := func(context.Context) error {
		logger.Info("Starting contas server",
			"addr", cfg.ListenAddr(),
			"data_backend", cfg.DataBackend,
			"blob_backend", cfg.BlobBackend,
			"events_enabled", events != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	if err := cli.Run(ctx, logger, cfg.ShutdownTimeout, srv.Shutdown, serve); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
}
