package screening

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Prediction is one label/confidence pair from the classifier service.
type Prediction struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

type classifyResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// Client communicates with the image classifier service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout float64) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(timeout * float64(time.Second)),
		},
	}
}

// Classify posts image bytes and returns label predictions.
func (c *Client) Classify(imageBytes []byte) ([]Prediction, error) {
	resp, err := c.httpClient.Post(
		c.baseURL+"/classify", "application/octet-stream", bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("classify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("classify failed (status %d): %s", resp.StatusCode, string(b))
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode classify response: %w", err)
	}
	return result.Predictions, nil
}
