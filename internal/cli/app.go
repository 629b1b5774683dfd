package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/mnemo/internal/config"
	"github.com/harun/mnemo/internal/logger"
	"github.com/harun/mnemo/internal/observability"
	"github.com/harun/mnemo/pkg/memory"
)

// app wires the configured components together for one command run
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	zl        zerolog.Logger
	store     *memory.Store
	provider  memory.EmbeddingProvider
	service   *memory.Service
	retriever *memory.Retriever
}

// openApp loads configuration and opens the store with its embedding
// provider. Every command goes through here so the config guard runs on
// each invocation.
func openApp() (*app, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, err
	}

	logCfg := logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSizeMB,
	}
	if logLevel != "" {
		logCfg.Level = logLevel
	}

	log, err := logger.New(logCfg)
	if err != nil {
		return nil, err
	}
	zl := log.GetZerolog()

	observability.EnsureRegistered()

	if cfg.Embedding.APIKey == "" {
		log.Close()
		return nil, fmt.Errorf("no embedding API key configured; set embedding.api_key or OPENAI_API_KEY")
	}

	provider := memory.NewOpenAIProvider(
		cfg.Embedding.APIKey,
		cfg.Embedding.Model,
		cfg.Embedding.Dimension,
		time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second,
	)

	store, err := memory.Open(memory.StoreConfig{
		Path:     cfg.Store.Path,
		Identity: provider.Identity(),
		Logger:   zl,
	})
	if err != nil {
		log.Close()
		return nil, err
	}

	retriever, err := memory.NewRetriever(memory.RetrieverConfig{
		Store:         store,
		Provider:      provider,
		VectorWeight:  cfg.Search.VectorWeight,
		KeywordWeight: cfg.Search.KeywordWeight,
		Logger:        zl,
	})
	if err != nil {
		store.Close()
		log.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		log:       log,
		zl:        zl,
		store:     store,
		provider:  provider,
		service:   memory.NewService(store, provider, zl),
		retriever: retriever,
	}, nil
}

// newImporter builds the note importer when an import directory is
// configured, nil otherwise.
func (a *app) newImporter() *memory.Importer {
	if a.cfg.Import.Dir == "" {
		return nil
	}
	return memory.NewImporter(a.service, a.store, a.cfg.Import.Dir, a.cfg.Import.Project, a.zl)
}

// close waits for in-flight usage write-backs before closing the store
func (a *app) close() {
	a.retriever.WaitForUsageWrites()
	a.store.Close()
	a.log.Close()
}
