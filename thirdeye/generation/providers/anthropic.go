package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/third-eye/thirdeye/config"
	"github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness"
	ports "github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness/ports"
)

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	apiVersion  string
	model       string
	maxTokens   int
	temperature float64
}

// NewAnthropicProvider creates a provider from the llm config section. The
// credential is taken from cfg.APIKey and only ever sent as a request header.
func NewAnthropicProvider(cfg config.LLMConfig, httpClient *http.Client) *AnthropicProvider {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &AnthropicProvider{
		client:      httpClient,
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		apiVersion:  cfg.APIVersion,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends one Messages request. Options override the configured
// token limit and temperature when set.
func (p *AnthropicProvider) Complete(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
	req := anthropicRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		System:      in.System,
		Messages:    make([]anthropicMessage, 0, len(in.Messages)),
	}
	if opts.MaxNewTokens > 0 {
		req.MaxTokens = opts.MaxNewTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = opts.Temperature
	}
	for _, m := range in.Messages {
		req.Messages = append(req.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	if len(req.Messages) == 0 {
		return ports.Completion{}, harness.NewBackendError(harness.OpGenerate, harness.KindInvalidRequest, 0, fmt.Errorf("no messages"))
	}

	if opts.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": p.apiVersion,
	}
	body, err := postJSON(ctx, p.client, harness.OpGenerate, endpoint(p.baseURL, "/v1/messages"), headers, req, anthropicStatusKind)
	if err != nil {
		return ports.Completion{}, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ports.Completion{}, harness.NewBackendError(harness.OpGenerate, harness.KindMalformed, http.StatusOK, fmt.Errorf("failed to decode response: %w", err))
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return ports.Completion{}, harness.NewBackendError(harness.OpGenerate, harness.KindMalformed, http.StatusOK, fmt.Errorf("response has no text content"))
	}

	return ports.Completion{
		Text: out,
		Raw:  resp.StopReason,
		Usage: &ports.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

func anthropicStatusKind(status int) harness.Kind {
	switch {
	case status == http.StatusTooManyRequests || status == 529:
		return harness.KindRateLimited
	case status == http.StatusRequestTimeout:
		return harness.KindTimeout
	case status >= 500:
		return harness.KindUpstream
	default:
		return harness.KindInvalidRequest
	}
}

// Ensure AnthropicProvider implements the Provider interface.
var _ ports.Provider = (*AnthropicProvider)(nil)
