package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"contas/internal/adapters"
	"contas/internal/amqp"
	"contas/internal/backend"
	"contas/internal/cache"
	"contas/internal/cli"
	"contas/internal/config"
	"contas/internal/log"
	gsheet "contas/internal/sheets/google"
	"contas/internal/worker"
)

func main() {
	resync := flag.String("resync", "", "comma-separated owner ids whose transactions are rewritten to the sheet on start-up")
	flag.Parse()

	cfg := cli.LoadAndValidateConfig((*config.Config).ValidateWorker)
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	ctx := context.Background()

	logger.Info("Starting contas-worker", log.FieldOperation, log.OpStartup)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	// The worker only reads transactions; receipts are never touched.
	backendCfg.Blob = backend.MemoryBlob
	backends, err := backend.NewFactory(logger.Logger.With(log.FieldComponent, log.ComponentBackend)).Create(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize store", log.FieldError, err)
		os.Exit(1)
	}
	defer backends.Cleanup()

	sheetsClient, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	caches := cache.NewManager()
	caches.Register(sheetsClient.RowCache())
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(adapters.NewStoreRowSource(backends.Store), sheetsClient, logger.Logger)

	for _, owner := range strings.Split(*resync, ",") {
		if owner = strings.TrimSpace(owner); owner == "" {
			continue
		}
		if _, err := mirror.Resync(ctx, owner); err != nil {
			logger.Error("Resync failed", log.FieldOwner, owner, log.FieldError, err)
		}
	}

	consume := func(ctx context.Context) error {
		return amqpClient.ConsumeTransactionEvents(ctx, mirror.HandleEvent)
	}
	if err := cli.Run(ctx, logger, cfg.ShutdownTimeout, nil, consume); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
}
