package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4.1-mini"
	DefaultTimeout = 30 * time.Second

	// maxResponseBytes bounds how much of a completion body is read.
	maxResponseBytes = 1 << 20
)

type OpenAIClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

// Option configures an OpenAIClient.
type Option func(*OpenAIClient)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(u string) Option {
	return func(c *OpenAIClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout bounds each Chat call end to end.
func WithTimeout(d time.Duration) Option {
	return func(c *OpenAIClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the transport. hc is copied, so later options
// never modify the caller's client, and a zero hc.Timeout keeps the current
// one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *OpenAIClient) {
		if hc == nil {
			return
		}
		cp := *hc
		if cp.Timeout == 0 {
			cp.Timeout = c.http.Timeout
		}
		c.http = &cp
	}
}

func NewOpenAIClient(apiKey, model string, opts ...Option) *OpenAIClient {
	if model == "" {
		model = DefaultModel
	}
	c := &OpenAIClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	Seed           int64           `json:"seed,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// StatusError is returned for a non-200 completion response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openai: status %d", e.Code)
}

// Chat sends one completion request. It never retries.
func (c *OpenAIClient) Chat(ctx context.Context, msgs []Message, options *SamplingOptions) (*Response, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("openai: messages must not be empty")
	}

	reqBody := openAIRequest{
		Model:    c.model,
		Messages: msgs,
	}
	if options != nil {
		reqBody.Temperature = options.Temperature
		reqBody.Seed = options.Seed
		if options.JSONObject {
			reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
		}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var oaiResp openAIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&oaiResp); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}

	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}
	choice := oaiResp.Choices[0]

	return &Response{
		Content:      choice.Message.Content,
		Model:        oaiResp.Model,
		FinishReason: choice.FinishReason,
	}, nil
}
