package main

import (
	"fmt"
	"os"

	"github.com/snipnote/scribed/internal/audio"
	"github.com/snipnote/scribed/internal/config"
	"github.com/snipnote/scribed/internal/db"
	"github.com/snipnote/scribed/internal/fetch"
	"github.com/snipnote/scribed/internal/logger"
	"github.com/snipnote/scribed/internal/notify"
	"github.com/snipnote/scribed/internal/pipeline"
	"github.com/snipnote/scribed/internal/speech"
	"github.com/snipnote/scribed/internal/store"
	"github.com/snipnote/scribed/internal/textgen"
	"github.com/snipnote/scribed/internal/worker"
	"gorm.io/gorm"
)

// app bundles the shared handles every command needs: config, logger, and an
// open job store.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	store *store.Store
	gdb   *gorm.DB
}

// loadConfig reads the config file at path, falling back to scribed.yaml in
// the working directory, and finally to pure defaults plus env overrides.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat("scribed.yaml"); err == nil {
			path = "scribed.yaml"
		} else {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

// loadApp builds the shared command context and connects to the database.
func loadApp(configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Environment, cfg.LogLevel)
	gdb, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, store: store.New(gdb), gdb: gdb}, nil
}

// buildPipeline wires the transcription pipeline from config.
func (a *app) buildPipeline() *pipeline.Pipeline {
	speechClient := speech.New(a.cfg.Speech.BaseURL, a.cfg.Speech.APIKey, a.cfg.Speech.Model, nil)
	splitter := audio.NewSplitter(a.cfg.Audio.MaxChunkBytes, a.cfg.Audio.Overlap, a.cfg.Audio.MinChunkSeconds, a.cfg.Audio.BytesPerSecond)
	return pipeline.New(speechClient, splitter, a.cfg.Worker.ChunkConcurrency, a.log)
}

// buildProcessor wires the full job processor from config.
func (a *app) buildProcessor() (*worker.Processor, error) {
	fetchClient := fetch.New(nil)
	speechClient := speech.New(a.cfg.Speech.BaseURL, a.cfg.Speech.APIKey, a.cfg.Speech.Model, nil)
	textClient := textgen.New(a.cfg.TextGen.BaseURL, a.cfg.TextGen.APIKey, a.cfg.TextGen.Model, nil)

	return worker.NewProcessor(worker.ProcessorOpts{
		Store:      a.store,
		Fetch:      fetchClient,
		Pipeline:   a.buildPipeline(),
		Chunks:     pipeline.NewChunkProcessor(fetchClient, speechClient, a.cfg.Worker.ChunkConcurrency, a.log),
		Text:       textClient,
		Notifier:   a.buildNotifier(),
		MaxRetries: a.cfg.Worker.MaxRetries,
		Log:        a.log,
	})
}

// buildNotifier assembles the configured notification adapters. Returns nil
// when none are configured.
func (a *app) buildNotifier() notify.Notifier {
	var adapters []notify.Notifier
	if url := a.cfg.Notify.SlackWebhookURL; url != "" {
		adapters = append(adapters, notify.NewSlack(url))
	}
	if token := a.cfg.Notify.DiscordBotToken; token != "" {
		d, err := notify.NewDiscord(token, a.cfg.Notify.DiscordChannelID)
		if err != nil {
			a.log.WithError(err).Warn("discord notifier disabled")
		} else {
			adapters = append(adapters, d)
		}
	}
	if len(adapters) == 0 {
		return nil
	}
	return notify.NewMulti(a.log, adapters...)
}
