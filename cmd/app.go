package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jfmyers9/luna/internal/cache"
	"github.com/jfmyers9/luna/internal/config"
	"github.com/jfmyers9/luna/internal/history"
	"github.com/jfmyers9/luna/internal/music"
	"github.com/jfmyers9/luna/internal/player"
	"github.com/jfmyers9/luna/internal/playlist"
	"github.com/jfmyers9/luna/internal/youtube"
	"github.com/rs/zerolog"
)

// app bundles the components shared by commands
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	playlists  *playlist.Store
	cache      *cache.Store
	thumbnails *cache.Thumbnails
	youtube    *youtube.Client
	history    *history.Log
}

// openApp loads configuration and opens the stores under the data directory
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(logFile, logLevel)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	logger.Debug().Str("data_dir", cfg.DataDir).Msg("Using data directory")

	yt := youtube.New(youtube.Config{
		Binary:         cfg.YTDLPBinary,
		FFmpegLocation: cfg.FFmpegLocation,
		OutputDir:      cfg.DownloadsDir(),
	}, logger)

	playlists := playlist.NewStore(cfg.PlaylistsFile(), logger)

	store, err := cache.NewStore(cfg.DownloadsDir(), yt, playlists, cfg.MaxUnpinned, logger)
	if err != nil {
		return nil, err
	}

	historyStore, err := openHistoryStore(cfg)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		playlists:  playlists,
		cache:      store,
		thumbnails: cache.NewThumbnails(cfg.ThumbnailsDir(), logger),
		youtube:    yt,
		history:    history.NewLog(historyStore, logger),
	}, nil
}

func openHistoryStore(cfg *config.Config) (history.Store, error) {
	if cfg.History.Backend == config.HistorySQLite {
		s, err := history.NewSQLiteStore(cfg.HistoryFile())
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		return s, nil
	}

	s, err := history.NewCSVStore(cfg.HistoryFile())
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	return s, nil
}

// newPlayer wires a playback session over mpv
func (a *app) newPlayer() *player.Orchestrator {
	engine := music.NewMPVEngine(a.cfg.MPVBinary, a.logger)
	session := player.NewSession(engine, a.history, a.logger)
	seq := player.NewSequencer(a.playlists, nil)
	volume := a.cfg.Volume

	return player.New(player.Config{
		Workers:       a.cfg.DownloadWorkers,
		FetchRate:     a.cfg.DownloadRate,
		InitialVolume: &volume,
	}, a.cache, a.playlists, session, seq, a.logger)
}

func (a *app) Close() {
	if err := a.history.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close history")
	}
}

// signalContext is cancelled on the first SIGINT/SIGTERM; a second signal
// forces exit
func signalContext(logger zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			signal.Stop(sigChan)
			return
		}
		logger.Info().Msg("Shutdown signal received, stopping playback")
		cancel()

		<-sigChan
		logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	return ctx, cancel
}
