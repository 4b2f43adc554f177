package imagepick

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPInference calls a CLIP-style similarity server:
//
//	POST {BaseURL}/similarity {"images": [base64...], "texts": [...]}
//	→ {"logits_per_image": [[...], ...]}
type HTTPInference struct {
	BaseURL    string
	APIKey     string       // optional bearer token
	HTTPClient *http.Client // nil = http.DefaultClient
}

type similarityRequest struct {
	Images []string `json:"images"`
	Texts  []string `json:"texts"`
}

type similarityResponse struct {
	LogitsPerImage [][]float64 `json:"logits_per_image"`
	Error          string      `json:"error,omitempty"`
}

// Similarity implements Inference.
func (h *HTTPInference) Similarity(ctx context.Context, images [][]byte, prompts []string) ([][]float64, error) {
	if len(images) == 0 {
		return nil, nil
	}

	reqBody := similarityRequest{Texts: prompts, Images: make([]string, len(images))}
	for i, img := range images {
		reqBody.Images[i] = EncodeBase64(img)
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("imagepick: encode inference request: %w", err)
	}

	endpoint := strings.TrimRight(h.BaseURL, "/") + "/similarity"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("imagepick: build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.APIKey)
	}

	client := h.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	const maxResponse = 4 << 20
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return nil, &NetworkError{URL: endpoint, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &NetworkError{URL: endpoint, StatusCode: resp.StatusCode}
	}

	var out similarityResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("imagepick: decode inference response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("imagepick: inference error: %s", out.Error)
	}
	return out.LogitsPerImage, nil
}
