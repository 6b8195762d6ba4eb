package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"eventdesk/internal/api"
	"eventdesk/internal/auth"
	"eventdesk/internal/config"
	"eventdesk/internal/db"
	"eventdesk/internal/directory"
	"eventdesk/internal/ingest"
	"eventdesk/internal/notify"
	"eventdesk/internal/service"
	"eventdesk/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	sqdb, err := db.OpenSQLite(cfg.DBPath, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer sqdb.Close()
	if err := db.ApplyMigrationFile(sqdb, "migrations/001_init.sql"); err != nil {
		log.Fatalf("migration: %v", err)
	}

	st := store.New(sqdb)
	if cfg.BootstrapOwnerExternalID != "" && cfg.BootstrapOwnerPassword != "" {
		hash, err := auth.HashPassword(cfg.BootstrapOwnerPassword)
		if err != nil {
			log.Fatalf("bootstrap owner hash: %v", err)
		}
		if err := st.EnsureOwner(context.Background(), cfg.BootstrapOwnerExternalID, cfg.BootstrapOwnerUsername, hash); err != nil {
			log.Fatalf("bootstrap owner create: %v", err)
		}
	}

	var sender notify.Sender
	if cfg.NotifySender == "telegram" {
		tg, err := notify.NewTelegramSender(cfg.TelegramBotToken)
		if err != nil {
			log.Fatalf("telegram sender: %v", err)
		}
		sender = tg
	}

	svc := service.New(cfg, st, sender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runner *ingest.Runner
	sources := make([]ingest.Source, 0, len(cfg.ScanSources)+1)
	for _, url := range cfg.ScanSources {
		sources = append(sources, ingest.NewWebSource(url))
	}
	if cfg.PartnerIMAPHost != "" {
		sources = append(sources, ingest.NewMailboxSource(cfg))
	}
	if len(sources) > 0 {
		runner = ingest.NewRunner(cfg, st, ingest.NewHTTPClassifier(cfg), sources...)
		go runner.Run(ctx)
	}

	exporter, err := directory.NewExporter(cfg)
	if err != nil {
		log.Fatalf("directory exporter: %v", err)
	}
	if exporter != nil {
		defer exporter.Close()
		syncer := directory.NewSyncer(st, exporter, time.Hour)
		go syncer.Run(ctx)
	}

	var ingestHook api.IngestRunner
	if runner != nil {
		ingestHook = runner
	}
	r := api.NewRouter(cfg, svc, ingestHook)

	hsrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTPReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTPReadHeaderTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTPWriteTimeoutSec) * time.Second,
		IdleTimeout:       time.Duration(cfg.HTTPIdleTimeoutSec) * time.Second,
	}

	log.Printf("listening on %s", cfg.ListenAddr)
	if err := hsrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server: %v", err)
	}
}
