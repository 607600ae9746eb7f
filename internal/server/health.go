package server

import (
	"encoding/json"
	"net/http"

	"stickerd/internal/config"
	"stickerd/internal/storage"
)

type HealthResponse struct {
	Status      string `json:"status"`
	DB          string `json:"db"`
	RecordCount int    `json:"record_count"`
	VisionModel string `json:"vision_model"`
	DataDir     string `json:"data_dir"`
	Port        int    `json:"port"`
}

// HealthHandler returns a handler for GET /health.
func HealthHandler(cfg config.Config, db *storage.Database) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbStatus := "connected"
		count := 0
		if db == nil {
			dbStatus = "unavailable"
		} else if n, err := db.CountRecords(); err != nil {
			dbStatus = "error"
		} else {
			count = n
		}

		resp := HealthResponse{
			Status:      "ok",
			DB:          dbStatus,
			RecordCount: count,
			VisionModel: cfg.Vision.Model,
			DataDir:     cfg.DataDir,
			Port:        cfg.Port,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
