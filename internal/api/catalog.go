package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"stickerd/internal/storage"
)

// CatalogStore is the subset of the database the catalog surface needs.
type CatalogStore interface {
	GetMediaRecord(id string) (*storage.MediaRecord, error)
	GetTags(mediaID string) ([]string, error)
	IncrementUsage(id string) error
	UpdateDescription(id, description string) error
	FindByTag(tag string, limit int) ([]storage.MediaRecord, error)
}

// CatalogRouter exposes read access to stored records.
func CatalogRouter(store CatalogStore) chi.Router {
	r := chi.NewRouter()

	r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
		rec, err := store.GetMediaRecord(chi.URLParam(req, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if rec == nil {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rec)
	})

	r.Get("/{id}/tags", func(w http.ResponseWriter, req *http.Request) {
		tags, err := store.GetTags(chi.URLParam(req, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if tags == nil {
			tags = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string][]string{"tags": tags})
	})

	r.Post("/{id}/use", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		rec, err := store.GetMediaRecord(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if rec == nil {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		if err := store.IncrementUsage(id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Patch("/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		var body struct {
			Description string `json:"description"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Description == "" {
			http.Error(w, "description is required", http.StatusBadRequest)
			return
		}
		rec, err := store.GetMediaRecord(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if rec == nil {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		if err := store.UpdateDescription(id, body.Description); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Get("/by-tag/{tag}", func(w http.ResponseWriter, req *http.Request) {
		limit := 20
		if v := req.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}
		recs, err := store.FindByTag(chi.URLParam(req, "tag"), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []storage.MediaRecord{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"records": recs})
	})

	return r
}
