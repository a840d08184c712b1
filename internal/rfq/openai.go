package rfq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/metalyard/metalyard/internal/shared"
)

// Interpreter is the language-model capability behind the RFQ endpoints.
type Interpreter interface {
	ParseRFQ(ctx context.Context, text string) (Summary, error)
	DraftQuote(ctx context.Context, req DraftRequest) ([]Suggestion, error)
}

// Default models, matching the ones the quoting screens were tuned against.
const (
	DefaultDraftModel = "gpt-4-0125-preview"
	DefaultParseModel = "gpt-4"
	DefaultBaseURL    = "https://api.openai.com/v1"
)

const draftTemperature = 0.1

// OpenAIConfig configures OpenAIClient.
type OpenAIConfig struct {
	BaseURL       string
	APIKey        string
	DraftModel    string
	ParseModel    string
	Timeout       time.Duration
	RatePerMinute int
	HTTPClient    *http.Client
}

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint. Calls are
// throttled, guarded by a circuit breaker and attempted once.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	draftModel string
	parseModel string
	client     *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// NewOpenAIClient constructs the client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	draftModel, parseModel := cfg.DraftModel, cfg.ParseModel
	if draftModel == "" {
		draftModel = DefaultDraftModel
	}
	if parseModel == "" {
		parseModel = DefaultParseModel
	}
	return &OpenAIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		draftModel: draftModel,
		parseModel: parseModel,
		client:     client,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "ai-provider",
			Interval: 60 * time.Second,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ParseRFQ implements Interpreter.
func (c *OpenAIClient) ParseRFQ(ctx context.Context, text string) (Summary, error) {
	content, err := c.complete(ctx, chatRequest{
		Model: c.parseModel,
		Messages: []chatMessage{
			{Role: "system", Content: parseSystemPrompt},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return Summary{}, err
	}
	return DecodeSummary(content)
}

// DraftQuote implements Interpreter.
func (c *OpenAIClient) DraftQuote(ctx context.Context, req DraftRequest) ([]Suggestion, error) {
	temperature := draftTemperature
	content, err := c.complete(ctx, chatRequest{
		Model: c.draftModel,
		Messages: []chatMessage{
			{Role: "system", Content: draftSystemPrompt},
			{Role: "user", Content: draftPrompt(req.ParsedRFQs, req.InventoryList)},
		},
		Temperature:    &temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}
	draft, err := DecodeDraft(content)
	if err != nil {
		return nil, err
	}
	return draft.Items, nil
}

func (c *OpenAIClient) complete(ctx context.Context, body chatRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", shared.Wrap(shared.KindUnavailable, "AI provider rate limit reached", err)
	}
	out, err := c.breaker.Execute(func() (any, error) {
		return c.post(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", ErrProviderUnavailable
		}
		return "", err
	}
	content := out.(string)
	if strings.TrimSpace(content) == "" {
		return "", ErrNoResponse
	}
	return content, nil
}

func (c *OpenAIClient) post(ctx context.Context, body chatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("rfq: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("rfq: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", shared.Upstream("AI provider request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", shared.Upstream("AI provider error", fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet)))
	}
	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", shared.Upstream("AI provider returned malformed completion", err)
	}
	if len(decoded.Choices) == 0 {
		return "", nil
	}
	return decoded.Choices[0].Message.Content, nil
}
