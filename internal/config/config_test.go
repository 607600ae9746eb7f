package config

import (
	"os"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 8763 {
		t.Errorf("expected port 8763, got %d", cfg.Port)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %s", cfg.Host)
	}
	if cfg.Vision.BaseURL != "http://127.0.0.1:1234/v1" {
		t.Errorf("expected vision URL, got %s", cfg.Vision.BaseURL)
	}
	if cfg.Encoder.MaxStickerBytes != 1024*1024 {
		t.Errorf("expected 1MiB sticker ceiling, got %d", cfg.Encoder.MaxStickerBytes)
	}
	if cfg.Classifier.Threshold != 0.7 {
		t.Errorf("expected 0.7 classifier threshold, got %f", cfg.Classifier.Threshold)
	}
}

func TestLoadConfigEnvVars(t *testing.T) {
	t.Setenv("STICKERD_DATA_DIR", "/tmp/test-stickerd-data")
	t.Setenv("STICKERD_PORT", "9999")
	t.Setenv("STICKERD_VISION_URL", "http://localhost:5555/v1")
	t.Setenv("STICKERD_FFMPEG", "/opt/bin/ffmpeg")

	cfg := LoadConfig()

	if cfg.DataDir != "/tmp/test-stickerd-data" {
		t.Errorf("expected data dir /tmp/test-stickerd-data, got %s", cfg.DataDir)
	}
	if cfg.DBPath != "/tmp/test-stickerd-data/catalog.db" {
		t.Errorf("db path should follow data dir, got %s", cfg.DBPath)
	}
	if cfg.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Port)
	}
	if cfg.Vision.BaseURL != "http://localhost:5555/v1" {
		t.Errorf("expected vision URL override, got %s", cfg.Vision.BaseURL)
	}
	if cfg.Encoder.FFmpegBin != "/opt/bin/ffmpeg" {
		t.Errorf("expected ffmpeg override, got %s", cfg.Encoder.FFmpegBin)
	}

	// Clean up
	os.RemoveAll("/tmp/test-stickerd-data")
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = dir
	cfg.MediaDir = dir + "/media"
	cfg.TempDir = dir + "/tmp"

	cfg.EnsureDirs()

	for _, d := range []string{cfg.MediaDir, cfg.TempDir} {
		if _, err := os.Stat(d); os.IsNotExist(err) {
			t.Errorf("directory not created: %s", d)
		}
	}
}
