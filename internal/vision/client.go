// Package vision talks to an OpenAI-compatible multimodal endpoint for
// image description and audio transcription.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"stickerd/internal/config"
)

// Client communicates with the vision model's OpenAI-compatible API.
type Client struct {
	baseURL    string // e.g. http://127.0.0.1:1234/v1
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

func NewClient(cfg config.VisionConfig) *Client {
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout * float64(time.Second)),
		},
		maxRetries: retries,
	}
}

// Annotation is the structured output expected from the model.
type Annotation struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// AnnotateImage sends one image with an instruction prompt and parses the
// model's JSON reply.
func (c *Client) AnnotateImage(ctx context.Context, image []byte, mimetype, prompt string) (Annotation, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimetype, base64.StdEncoding.EncodeToString(image))
	messages := []chatMessage{
		{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		},
	}

	raw, err := c.chat(ctx, messages, 1024)
	if err != nil {
		return Annotation{}, err
	}
	return parseAnnotation(raw)
}

// Complete runs a text-only prompt and parses the JSON reply. Used to
// synthesize per-frame annotations into one result.
func (c *Client) Complete(ctx context.Context, system, user string) (Annotation, error) {
	messages := []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	raw, err := c.chat(ctx, messages, 1024)
	if err != nil {
		return Annotation{}, err
	}
	return parseAnnotation(raw)
}

// Transcribe sends audio to the transcription endpoint and returns plain text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build transcription form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("build transcription form: %w", err)
	}
	if err := w.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("build transcription form: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("build transcription form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("transcription failed (status %d): %s", resp.StatusCode, string(b))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}

func (c *Client) chat(ctx context.Context, messages []chatMessage, maxTokens int) (string, error) {
	body := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": 0.3,
		"max_tokens":  maxTokens,
	}
	payload, _ := json.Marshal(body)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		c.authorize(req)

		text, err := c.doChat(req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		slog.Warn("vision chat attempt failed", "attempt", attempt, "error", err)
		if attempt < c.maxRetries {
			time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
		}
	}
	return "", lastErr
}

func (c *Client) doChat(req *http.Request) (string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat failed (status %d): %s", resp.StatusCode, string(b))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat response had no choices")
	}

	text := result.Choices[0].Message.Content
	// Strip <think>...</think> blocks from thinking models
	if strings.Contains(text, "</think>") {
		parts := strings.SplitN(text, "</think>", 2)
		text = strings.TrimSpace(parts[1])
	}
	return text, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// parseAnnotation extracts the first JSON object from a possibly chatty
// model reply. Markdown fences and surrounding prose are tolerated.
func parseAnnotation(raw string) (Annotation, error) {
	text := extractJSON(raw)
	if text == "" {
		return Annotation{}, fmt.Errorf("no JSON object in model reply")
	}
	var ann Annotation
	if err := json.Unmarshal([]byte(text), &ann); err != nil {
		return Annotation{}, fmt.Errorf("parse annotation: %w", err)
	}
	if strings.TrimSpace(ann.Description) == "" {
		return Annotation{}, fmt.Errorf("annotation missing description")
	}
	return ann, nil
}

func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
