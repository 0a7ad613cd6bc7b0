package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/models"
)

// Client calls the external face extraction service. It posts raw
// frame bytes and receives bounding boxes plus embeddings; a failure
// means this frame's faces cannot be analyzed, nothing more.
type Client struct {
	url    string
	client *http.Client
}

func NewClient(cfg config.ExtractorConfig) *Client {
	return &Client{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type extractResponse struct {
	Faces []struct {
		BBox      [4]float32 `json:"bbox"`
		Embedding []float32  `json:"embedding"`
	} `json:"faces"`
}

func (c *Client) Extract(ctx context.Context, image []byte) ([]models.Face, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/extract", bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call extractor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extractor returned status %d", resp.StatusCode)
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode extractor response: %w", err)
	}

	faces := make([]models.Face, 0, len(out.Faces))
	for _, f := range out.Faces {
		faces = append(faces, models.Face{BBox: f.BBox, Embedding: f.Embedding})
	}
	return faces, nil
}
