package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"stickerd/internal/api"
	"stickerd/internal/config"
	"stickerd/internal/ffmpeg"
	"stickerd/internal/overrides"
	"stickerd/internal/pipeline"
	"stickerd/internal/pipeline/annotate"
	"stickerd/internal/pipeline/encoder"
	"stickerd/internal/pipeline/frames"
	"stickerd/internal/pipeline/scratch"
	"stickerd/internal/pipeline/screening"
	"stickerd/internal/server"
	"stickerd/internal/storage"
	"stickerd/internal/vision"
)

func main() {
	// Configure structured logging
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("Starting sticker daemon...")

	// Load config
	cfg := config.LoadConfig()
	slog.Info("Configuration loaded", "data_dir", cfg.DataDir, "port", cfg.Port)

	// Initialize database
	db, err := storage.NewDatabase(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Initialize(); err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// External services
	visionClient := vision.NewClient(cfg.Vision)
	classifier := screening.NewClient(cfg.Classifier.BaseURL, cfg.Classifier.Timeout)
	gate := screening.NewGate(classifier, cfg.Classifier.Threshold)

	// Media toolchain
	tool := ffmpeg.New(cfg.Encoder.FFmpegBin, cfg.Encoder.FFprobeBin)
	sampler := frames.NewSampler(tool, time.Duration(cfg.Encoder.FrameTimeout*float64(time.Second)))
	enc := encoder.New(tool, cfg.Encoder.MaxStickerBytes,
		time.Duration(cfg.Encoder.EncodeTimeout*float64(time.Second)))
	aggregator := annotate.NewAggregator(visionClient, cfg.Vision.ContextTokens)

	forceDuplicate := overrides.NewStore()
	forceVideoSticker := overrides.NewStore()

	proc := pipeline.NewProcessor(pipeline.Deps{
		Catalog:           db,
		Screener:          gate,
		Annotator:         aggregator,
		Transcriber:       visionClient,
		Prober:            tool,
		Encoder:           enc,
		Sampler:           sampler,
		Scratch:           scratch.NewManager(cfg.TempDir),
		Messenger:         pipeline.LogMessenger{},
		ForceDuplicate:    forceDuplicate,
		ForceVideoSticker: forceVideoSticker,
		MediaDir:          cfg.MediaDir,
	})

	// Build HTTP router
	r := server.NewRouter()
	r.Get("/health", server.HealthHandler(cfg, db))
	r.Mount("/ingest", api.IngestRouter(proc, forceDuplicate, forceVideoSticker))
	r.Mount("/catalog", api.CatalogRouter(db))

	// Write PID file
	pidPath := filepath.Join(cfg.DataDir, "daemon.pid")
	os.WriteFile(pidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644)
	defer os.Remove(pidPath)

	// Start HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 60))
	fmt.Printf("  Sticker Daemon\n")
	fmt.Printf("  http://%s\n", addr)
	fmt.Printf("  Data dir: %s\n", cfg.DataDir)
	fmt.Printf("  Vision: %s (%s)\n", cfg.Vision.BaseURL, cfg.Vision.Model)
	fmt.Printf("%s\n\n", strings.Repeat("=", 60))

	slog.Info("Daemon ready", "addr", addr)

	// Graceful shutdown on signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)

	slog.Info("Daemon stopped")
}
