// Package chat asks a hosted chat-completion API (OpenAI compatible) to answer
// quiz questions.
package chat

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

	"github.com/arloliu/go-buzzer/logger"
)

const (
	// DefaultBaseURL is the OpenAI API host.
	DefaultBaseURL = "https://api.openai.com"
	// DefaultModel is the model used when none is configured.
	DefaultModel = "gpt-3.5-turbo"
	// DefaultSystemPrompt frames the model as a quiz contestant.
	DefaultSystemPrompt = "You are taking part in a quiz show. You will get a question you must answer quickly."

	completionsEndpoint = "/v1/chat/completions"
	defaultHTTPTimeout  = 30 * time.Second
	maxResponseBodySize = 1 << 20
)

// ErrQuestionEmpty indicates an empty question.
var ErrQuestionEmpty = errors.New("chat: question is empty")

// ErrNoAnswer indicates a successful response without any choice.
var ErrNoAnswer = errors.New("chat: no answer from API")

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Client talks to the chat-completion endpoint.
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	http         *http.Client
	logger       logger.Logger
}

// ClientOption mutates the client during construction.
type ClientOption func(*Client)

// WithBaseURL overrides the API host. No trailing slash required.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithModel sets the model name.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = strings.TrimSpace(model) }
}

// WithSystemPrompt replaces the system prompt.
func WithSystemPrompt(prompt string) ClientOption {
	return func(c *Client) { c.systemPrompt = prompt }
}

// WithHTTPClient installs a custom http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the HTTP timeout of the default client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient builds a client. An empty apiKey is accepted; the API will reject
// the call and the error is reported as the answer.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		apiKey:       strings.TrimSpace(apiKey),
		model:        DefaultModel,
		systemPrompt: DefaultSystemPrompt,
		http:         &http.Client{Timeout: defaultHTTPTimeout},
		logger:       logger.GetLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	c.baseURL = strings.TrimRight(strings.TrimSpace(c.baseURL), "/")
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}

	return c
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Answer sends question and returns the content of the first choice.
func (c *Client) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrQuestionEmpty
	}

	payload := completionRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: c.systemPrompt},
			{Role: "user", Content: question},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("chat: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("chat: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	begin := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat: execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return "", fmt.Errorf("chat: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", buildAPIError(resp.StatusCode, raw)
	}

	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("chat: decode response: %w", err)
	}

	c.logger.Debug("chat: completion received", "model", c.model, "elapsed", time.Since(begin), "choices", len(out.Choices))

	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrNoAnswer
	}

	return out.Choices[0].Message.Content, nil
}
