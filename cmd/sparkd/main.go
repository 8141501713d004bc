package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"sparkledger/config"
	"sparkledger/core/events"
	"sparkledger/metadata"
	"sparkledger/native/spark"
	"sparkledger/native/spark/store"
	"sparkledger/observability/logging"
	"sparkledger/service"
	"sparkledger/storage"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to the TOML config file")
		env        = flag.String("env", "dev", "deployment environment label")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup("sparkd", *env, "").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.Setup("sparkd", *env, cfg.LogFile)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Error("create data dir", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	emitter := events.Emitter(events.NoopEmitter{})
	if cfg.EventJournal != "" {
		journal, err := events.OpenJournal(cfg.EventJournal)
		if err != nil {
			log.Error("open event journal", "path", cfg.EventJournal, "error", err)
			os.Exit(1)
		}
		defer journal.Close()
		emitter = journal
	}

	tokens := spark.NewMemTokenLedger()
	engine := spark.NewEngine()
	engine.SetState(store.NewLedgerStore(db))
	engine.SetEmitter(emitter)
	engine.SetTokenLedger(tokens)
	engine.SetMetadataResolver(metadata.NewIPFSGateway(cfg.GatewayPrefix))
	engine.SetVault(cfg.Vault())
	engine.SetDAOAccount(cfg.DAO())
	engine.SetLossRatio(cfg.LossRatio)
	engine.SetDAOFee(cfg.DAOFee)
	engine.SetExhaustedShillPolicy(cfg.ShillPolicy())
	engine.SetRoyaltyRouting(cfg.Routing())

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           service.NewServer(engine, tokens, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.ListenAddress)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}
}
