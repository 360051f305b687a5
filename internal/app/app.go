package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/internal/cache/redis"
	"github.com/hebrew-ms/backend/internal/classification"
	"github.com/hebrew-ms/backend/internal/export"
	"github.com/hebrew-ms/backend/internal/extractors"
	"github.com/hebrew-ms/backend/internal/gazetteer"
	"github.com/hebrew-ms/backend/internal/kg/builder"
	"github.com/hebrew-ms/backend/internal/kg/neo4j"
	"github.com/hebrew-ms/backend/internal/llm"
	"github.com/hebrew-ms/backend/internal/pipeline"
	"github.com/hebrew-ms/backend/internal/storage/sqlite"
	"github.com/hebrew-ms/backend/internal/validator"
	"github.com/hebrew-ms/backend/pkg/config"
)

type Options struct {
	// UseIndex overrides gazetteer.useIndex when set.
	UseIndex *bool
	NoAI     bool
	// OutputDir adds the CSV sink when non-empty.
	OutputDir    string
	OutputPrefix string
	Logger       *zap.Logger
}

// Components is the wired service. Optional backends are nil when disabled.
type Components struct {
	Config    *config.Config
	Extractor *extractors.Extractor
	Index     *gazetteer.Index
	Arbiter   *classification.Arbiter
	Pipeline  *pipeline.Pipeline
	SQLite    *sqlite.Client
	Neo4j     *neo4j.Client
	Redis     *redis.Client

	closers []func()
}

func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func Build(ctx context.Context, cfg *config.Config, opts Options) (*Components, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Components{Config: cfg}

	useIndex := cfg.Gazetteer.UseIndex
	if opts.UseIndex != nil {
		useIndex = *opts.UseIndex
	}
	ex, index, err := NewExtractor(cfg, useIndex, opts.Logger)
	if err != nil {
		return nil, err
	}
	c.Extractor, c.Index = ex, index

	if cfg.Redis.Enabled && !opts.NoAI {
		rc, err := redis.NewClient(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB,
			time.Duration(cfg.LLM.CacheTTLMinutes)*time.Minute, opts.Logger)
		if err != nil {
			opts.Logger.Warn("Redis unavailable, using in-process reply cache", zap.Error(err))
		} else {
			c.Redis = rc
			c.closers = append(c.closers, func() { rc.Close() })
		}
	}

	c.Arbiter, err = NewArbiter(cfg, opts.NoAI, c.replyCache(cfg), opts.Logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	var sinks []pipeline.Sink
	if opts.OutputDir != "" {
		sinks = append(sinks, pipeline.NewCSVSink(export.NewWriter(opts.OutputDir, opts.OutputPrefix, opts.Logger), opts.Logger))
	}

	if cfg.SQLite.Enabled {
		db, err := sqlite.NewClient(cfg.SQLite.Path)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, func() { db.Close() })
		if err := db.InitSchema(); err != nil {
			c.Close()
			return nil, err
		}
		c.SQLite = db
		sinks = append(sinks, pipeline.NewStoreSink("sqlite", db))
	}

	if cfg.Neo4j.Enabled {
		kg, err := neo4j.NewClient(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, func() { kg.Close(context.Background()) })
		if err := kg.EnsureConstraints(ctx); err != nil {
			opts.Logger.Warn("Failed to ensure graph constraints", zap.Error(err))
		}
		c.Neo4j = kg
		sinks = append(sinks, pipeline.NewStoreSink("neo4j", builder.NewBuilder(cfg.Ontology.BaseNamespace, kg)))
	}

	if c.SQLite != nil {
		sinks = append(sinks, pipeline.NewRunSink(c.SQLite))
	}

	c.Pipeline = pipeline.New(c.Extractor, c.Arbiter,
		pipeline.WithSinks(sinks...),
		pipeline.WithWorkers(cfg.Extraction.Workers),
		pipeline.WithLogger(opts.Logger),
	)
	return c, nil
}

func (c *Components) replyCache(cfg *config.Config) classification.ReplyCache {
	if c.Redis != nil {
		return c.Redis
	}
	return classification.NewMemoryCache(time.Duration(cfg.LLM.CacheTTLMinutes)*time.Minute, 0)
}

// NewExtractor loads the gazetteer index, or the legacy flat set when the index is off.
// A missing index falls back to the legacy set.
func NewExtractor(cfg *config.Config, useIndex bool, logger *zap.Logger) (*extractors.Extractor, *gazetteer.Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []extractors.Option{
		extractors.WithLocationOptions(extractors.LocationOptions{
			MaxTokens:      cfg.Extraction.MaxLocationTokens,
			MinTokenLength: cfg.Extraction.MinTokenLength,
		}),
		extractors.WithLogger(logger),
	}

	if useIndex {
		files := gazetteer.Files{
			Dir:      cfg.Gazetteer.Dir,
			Master:   cfg.Gazetteer.MasterFile,
			Variants: cfg.Gazetteer.VariantsFile,
			Forms:    cfg.Gazetteer.FormsFile,
		}
		index, err := gazetteer.Load(files, cfg.Gazetteer.CacheSize, logger)
		switch {
		case err == nil:
			opts = append(opts, extractors.WithIndex(index, validator.New()))
			return extractors.New(opts...), index, nil
		case errors.Is(err, gazetteer.ErrMasterMissing):
			logger.Warn("Gazetteer index missing, using legacy gazetteer", zap.String("dir", cfg.Gazetteer.Dir))
		default:
			return nil, nil, fmt.Errorf("failed to load gazetteer index: %w", err)
		}
	}

	places, err := gazetteer.LoadSet(cfg.Gazetteer.LegacyPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Legacy gazetteer loaded", zap.Int("places", len(places)))
	opts = append(opts, extractors.WithGazetteerSet(places))
	return extractors.New(opts...), nil, nil
}

// NewArbiter builds the classification arbiter, attaching the AI classifier unless it is
// disabled.
func NewArbiter(cfg *config.Config, noAI bool, cache classification.ReplyCache, logger *zap.Logger) (*classification.Arbiter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mode, err := classification.ParseMode(cfg.Classification.Mode)
	if err != nil {
		return nil, err
	}
	arbiterOpts := []classification.ArbiterOption{classification.WithMode(mode), classification.WithLogger(logger)}

	if noAI || !cfg.LLM.Enabled {
		if mode == classification.ModeAI {
			logger.Warn("AI classification mode without an AI classifier leaves every entity unclassified")
		}
		return classification.NewArbiter(nil, arbiterOpts...), nil
	}

	client := llm.NewClient(llm.Config{
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		Temperature:       cfg.LLM.Temperature,
		MaxTokens:         cfg.LLM.MaxTokens,
		Timeout:           time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		Retries:           cfg.LLM.Retries,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Logger:            logger,
	})
	ai := classification.NewAIClassifier(client, classification.AIOptions{
		MaxWorkers: cfg.LLM.MaxWorkers,
		ChunkSize:  cfg.LLM.ChunkSize,
	}, cache, logger)
	return classification.NewArbiter(ai, arbiterOpts...), nil
}
