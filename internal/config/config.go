package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type VisionConfig struct {
	BaseURL    string  `json:"base_url"`
	APIKey     string  `json:"api_key"`
	Model      string  `json:"model"`
	Timeout    float64 `json:"timeout"`
	MaxRetries int     `json:"max_retries"`
	// Context window assumed when budgeting synthesis prompts.
	ContextTokens int `json:"context_tokens"`
}

type ClassifierConfig struct {
	BaseURL   string  `json:"base_url"`
	Timeout   float64 `json:"timeout"`
	Threshold float64 `json:"threshold"`
}

type EncoderConfig struct {
	FFmpegBin  string `json:"ffmpeg_bin"`
	FFprobeBin string `json:"ffprobe_bin"`
	// Per-subprocess timeouts in seconds. A hung transcoder must not
	// stall the owning request indefinitely.
	FrameTimeout    float64 `json:"frame_timeout"`
	EncodeTimeout   float64 `json:"encode_timeout"`
	MaxStickerBytes int64   `json:"max_sticker_bytes"`
}

type Config struct {
	DataDir  string `json:"data_dir"`
	DBPath   string `json:"db_path"`
	MediaDir string `json:"media_dir"`
	TempDir  string `json:"temp_dir"`
	Host     string `json:"host"`
	Port     int    `json:"port"`

	Vision     VisionConfig     `json:"vision"`
	Classifier ClassifierConfig `json:"classifier"`
	Encoder    EncoderConfig    `json:"encoder"`
}

func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".stickerd")
	return Config{
		DataDir:  dataDir,
		DBPath:   filepath.Join(dataDir, "catalog.db"),
		MediaDir: filepath.Join(dataDir, "media"),
		TempDir:  filepath.Join(dataDir, "tmp"),
		Host:     "127.0.0.1",
		Port:     8763,
		Vision: VisionConfig{
			BaseURL:       "http://127.0.0.1:1234/v1",
			Model:         "gpt-4o-mini",
			Timeout:       120.0,
			MaxRetries:    3,
			ContextTokens: 8192,
		},
		Classifier: ClassifierConfig{
			BaseURL:   "http://127.0.0.1:8090",
			Timeout:   30.0,
			Threshold: 0.7,
		},
		Encoder: EncoderConfig{
			FFmpegBin:       "ffmpeg",
			FFprobeBin:      "ffprobe",
			FrameTimeout:    20.0,
			EncodeTimeout:   120.0,
			MaxStickerBytes: 1024 * 1024,
		},
	}
}

func LoadConfig() Config {
	// .env is optional; a missing file is not an error.
	godotenv.Load()

	cfg := DefaultConfig()

	if dataDir := os.Getenv("STICKERD_DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
		cfg.DBPath = filepath.Join(dataDir, "catalog.db")
		cfg.MediaDir = filepath.Join(dataDir, "media")
		cfg.TempDir = filepath.Join(dataDir, "tmp")
	}
	if url := os.Getenv("STICKERD_VISION_URL"); url != "" {
		cfg.Vision.BaseURL = url
	}
	if key := os.Getenv("STICKERD_VISION_API_KEY"); key != "" {
		cfg.Vision.APIKey = key
	}
	if model := os.Getenv("STICKERD_VISION_MODEL"); model != "" {
		cfg.Vision.Model = model
	}
	if url := os.Getenv("STICKERD_CLASSIFIER_URL"); url != "" {
		cfg.Classifier.BaseURL = url
	}
	if bin := os.Getenv("STICKERD_FFMPEG"); bin != "" {
		cfg.Encoder.FFmpegBin = bin
	}
	if bin := os.Getenv("STICKERD_FFPROBE"); bin != "" {
		cfg.Encoder.FFprobeBin = bin
	}
	if port := os.Getenv("STICKERD_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}

	cfg.EnsureDirs()
	return cfg
}

func (c *Config) EnsureDirs() {
	for _, d := range []string{c.DataDir, c.MediaDir, c.TempDir} {
		os.MkdirAll(d, 0o755)
	}
}
