package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/modaio/stylist/agent"
	"github.com/modaio/stylist/api"
	"github.com/modaio/stylist/catalog"
	"github.com/modaio/stylist/collab"
	"github.com/modaio/stylist/config"
	"github.com/modaio/stylist/core"
	"github.com/modaio/stylist/fusion"
	"github.com/modaio/stylist/index"
	"github.com/modaio/stylist/persistence"
	"github.com/modaio/stylist/session"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		host       = flag.String("host", "", "Host to listen on (overrides config)")
		port       = flag.Int("port", 0, "Port to listen on (overrides config)")
		catalogCSV = flag.String("catalog", "", "Path to catalog CSV (overrides config)")
		dbType     = flag.String("db", "", "Persistence backend: memory, bolt, badger (overrides config)")
		dbPath     = flag.String("path", "", "Persistence path (overrides config)")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(cfg, *host, *port, *catalogCSV, *dbType, *dbPath)

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func applyFlagOverrides(cfg *config.Config, host string, port int, catalogCSV, dbType, dbPath string) {
	if host != "" {
		cfg.Server.Host = host
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	if catalogCSV != "" {
		cfg.Catalog.CSVPath = catalogCSV
	}
	if dbType != "" {
		cfg.Persistence.Type = persistence.StoreType(dbType)
	}
	if dbPath != "" {
		cfg.Persistence.Path = dbPath
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	store, err := persistence.NewStore(cfg.Persistence)
	if err != nil {
		return fmt.Errorf("create persistence: %w", err)
	}
	defer store.Close()

	vectorIndex := index.NewVectorIndex(cfg.Catalog.Dimension, cfg.Index)

	cfg.Collaborators.Embedder.Dimensions = cfg.Catalog.Dimension
	embedder, err := collab.NewEmbedder(cfg.Collaborators.Embedder, logger)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}

	var chat core.ChatModel
	if cfg.Collaborators.Chat.APIKey != "" {
		chat = collab.NewStylistChat(cfg.Collaborators.Chat, logger)
	}

	var tryon core.TryOnRenderer
	if cfg.Collaborators.TryOn.BaseURL != "" {
		tryon, err = collab.NewTryOnRenderer(cfg.Collaborators.TryOn, logger)
		if err != nil {
			return fmt.Errorf("create tryon client: %w", err)
		}
	}

	var transcriber core.Transcriber
	if cfg.Collaborators.Transcriber.APIKey != "" {
		transcriber = collab.NewWhisperTranscriber(cfg.Collaborators.Transcriber, logger)
	}

	engine, err := fusion.NewEngine(vectorIndex, embedder, cfg.Fusion, logger)
	if err != nil {
		return fmt.Errorf("create fusion engine: %w", err)
	}

	sessions := session.NewStore(cfg.Session)
	classifier := agent.NewClassifier(nil, nil)
	orchestrator := agent.NewOrchestrator(sessions, engine, vectorIndex, embedder, chat, tryon, classifier, cfg.Agent, logger)

	server := api.NewServer(orchestrator, vectorIndex, transcriber, api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
	}, logger)

	// Catalog loads in the background; health reports "initializing" until
	// the index and vocabulary are in place.
	go func() {
		vocab, err := loadCatalog(context.Background(), cfg, vectorIndex, store, embedder, logger)
		if err != nil {
			logger.Error("catalog load failed", "error", err)
			return
		}
		classifier.SetVocabulary(vocab.Items, vocab.Colors)
		server.SetReady(vocab)
		logger.Info("catalog ready", "index_size", vectorIndex.Size(), "vocabulary", vocab.Stats())
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}

// loadCatalog restores catalog state from snapshots, falling back to a fresh
// CSV ingestion.
func loadCatalog(ctx context.Context, cfg *config.Config, vectorIndex core.VectorIndex, store persistence.Store, embedder core.Embedder, logger *slog.Logger) (*catalog.Vocabulary, error) {
	ingestor := catalog.NewIngestor(vectorIndex, store, embedder, logger)

	if vocab, ok, err := ingestor.Restore(ctx); err != nil {
		return nil, err
	} else if ok {
		return vocab, nil
	}

	if cfg.Catalog.CSVPath == "" {
		logger.Warn("no catalog snapshot and no csv path configured, starting with an empty catalog")
		return &catalog.Vocabulary{}, nil
	}

	products, err := catalog.LoadCSV(cfg.Catalog.CSVPath)
	if err != nil {
		return nil, err
	}
	logger.Info("ingesting catalog", "path", cfg.Catalog.CSVPath, "products", len(products))
	return ingestor.Ingest(ctx, products)
}
