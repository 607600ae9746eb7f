package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"stickerd/internal/overrides"
	"stickerd/internal/pipeline"
)

// 50 MiB request ceiling; anything bigger is not sticker material.
const maxUploadBytes = 50 << 20

// Ingestor runs one submission through the pipeline.
type Ingestor interface {
	ProcessIncoming(ctx context.Context, item pipeline.MediaItem) (pipeline.Outcome, error)
}

type ingestResponse struct {
	Status      string `json:"status"`
	ID          string `json:"id,omitempty"`
	Description string `json:"description,omitempty"`
	DuplicateID string `json:"duplicate_id,omitempty"`
	Oversized   bool   `json:"oversized,omitempty"`
	Flagged     bool   `json:"flagged,omitempty"`
}

type overrideRequest struct {
	ConversationID string `json:"conversation_id"`
}

// IngestRouter accepts media submissions and the one-shot override arms.
func IngestRouter(proc Ingestor, forceDuplicate, forceVideo *overrides.Store) chi.Router {
	r := chi.NewRouter()

	r.Post("/", func(w http.ResponseWriter, req *http.Request) {
		item, err := parseSubmission(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		out, err := proc.ProcessIncoming(req.Context(), item)
		if err != nil {
			if errors.Is(err, pipeline.ErrUnsupportedFormat) {
				http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
				return
			}
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		resp := ingestResponse{
			Status:    string(out.Status),
			Oversized: out.Oversized,
			Flagged:   out.Flagged,
		}
		if out.Record != nil {
			resp.ID = out.Record.ID
			resp.Description = out.Record.Description
		}
		if out.Duplicate != nil {
			resp.DuplicateID = out.Duplicate.ID
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	r.Post("/force-duplicate", armHandler(forceDuplicate))
	r.Post("/force-video", armHandler(forceVideo))

	return r
}

func armHandler(store *overrides.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body overrideRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.ConversationID == "" {
			http.Error(w, "conversation_id is required", http.StatusBadRequest)
			return
		}
		store.Set(body.ConversationID)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "armed"})
	}
}

// parseSubmission accepts either a multipart form with a "media" file or a
// raw body with the media type in Content-Type.
func parseSubmission(req *http.Request) (pipeline.MediaItem, error) {
	req.Body = http.MaxBytesReader(nil, req.Body, maxUploadBytes)

	var item pipeline.MediaItem
	contentType := req.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
			return item, errors.New("invalid multipart form")
		}
		file, header, err := req.FormFile("media")
		if err != nil {
			return item, errors.New("missing media file part")
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return item, errors.New("read media part failed")
		}
		item.Data = data
		item.Mimetype = header.Header.Get("Content-Type")
		if v := req.FormValue("mimetype"); v != "" {
			item.Mimetype = v
		}
		item.ConversationID = req.FormValue("conversation_id")
		if v := req.FormValue("group_id"); v != "" {
			item.GroupID = &v
		}
		if v := req.FormValue("sender_id"); v != "" {
			item.SenderID = &v
		}
	} else {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return item, errors.New("read body failed")
		}
		item.Data = data
		item.Mimetype = contentType
		item.ConversationID = req.URL.Query().Get("conversation_id")
		if v := req.URL.Query().Get("group_id"); v != "" {
			item.GroupID = &v
		}
		if v := req.URL.Query().Get("sender_id"); v != "" {
			item.SenderID = &v
		}
	}

	if len(item.Data) == 0 {
		return item, errors.New("empty media payload")
	}
	if item.ConversationID == "" {
		return item, errors.New("conversation_id is required")
	}
	if item.Mimetype == "" {
		return item, errors.New("media type is required")
	}
	return item, nil
}
