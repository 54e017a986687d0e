package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ZanzyTHEbar/third-eye/thirdeye/config"
	"github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness"
	ports "github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness/ports"
)

// OpenAIEmbedder calls an OpenAI-compatible /v1/embeddings endpoint.
type OpenAIEmbedder struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	dims    int
}

// NewOpenAIEmbedder creates an embedder from the embedding config section. An
// empty key is allowed for local endpoints.
func NewOpenAIEmbedder(cfg config.EmbeddingConfig, httpClient *http.Client) *OpenAIEmbedder {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OpenAIEmbedder{
		client:  httpClient,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		dims:    cfg.Dims,
	}
}

type embeddingRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector of text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, harness.NewBackendError(harness.OpEmbed, harness.KindInvalidInput, 0, fmt.Errorf("empty input"))
	}

	headers := map[string]string{}
	if e.apiKey != "" {
		headers["Authorization"] = "Bearer " + e.apiKey
	}
	req := embeddingRequest{Model: e.model, Input: text, Dimensions: e.dims}

	body, err := postJSON(ctx, e.client, harness.OpEmbed, endpoint(e.baseURL, "/v1/embeddings"), headers, req, embeddingStatusKind)
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, harness.NewBackendError(harness.OpEmbed, harness.KindMalformed, http.StatusOK, fmt.Errorf("failed to decode response: %w", err))
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, harness.NewBackendError(harness.OpEmbed, harness.KindMalformed, http.StatusOK, fmt.Errorf("response has no embedding"))
	}
	if e.dims > 0 && len(resp.Data[0].Embedding) != e.dims {
		return nil, harness.NewBackendError(harness.OpEmbed, harness.KindMalformed, http.StatusOK,
			fmt.Errorf("expected %d dimensions, got %d", e.dims, len(resp.Data[0].Embedding)))
	}
	return resp.Data[0].Embedding, nil
}

func embeddingStatusKind(status int) harness.Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return harness.KindRateLimited
	case status == http.StatusRequestTimeout:
		return harness.KindTimeout
	case status >= 500:
		return harness.KindUpstream
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusNotFound:
		return harness.KindInvalidRequest
	default:
		return harness.KindInvalidInput
	}
}

// Ensure OpenAIEmbedder implements the Embedder interface.
var _ ports.Embedder = (*OpenAIEmbedder)(nil)
