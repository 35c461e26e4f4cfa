package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/service-agreement/backend/pkg/circuitbreaker"
	"github.com/service-agreement/backend/pkg/logger"
)

// Completer sends one chat completion and returns the first choice's content.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

type Client struct {
	client      *openai.Client
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
}

type Options struct {
	APIBase     string
	APIKey      string
	Temperature float32
	MaxTokens   int
	// Timeout applies when a request does not carry its own.
	Timeout       time.Duration
	HTTPClient    *http.Client
	OnStateChange func(name string, from, to circuitbreaker.State)
}

type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
	Timeout      time.Duration
}

type CompletionResponse struct {
	Content string
	Model   string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UpstreamError is a failed completion call: transport error, non-2xx status,
// timeout, open circuit or a response without choices.
type UpstreamError struct {
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("completion service timed out: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("completion service returned %d: %v", e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("completion service failed: %v", e.Err)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

var ErrNoChoices = errors.New("completion response has no choices")

func NewClient(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = strings.TrimRight(opts.APIBase, "/") + "/v1"
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxProbes:        1,
		OpenTimeout:      30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		OnStateChange:    opts.OnStateChange,
		Logger:           logger.GetLogger(),
	})

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	logger.Info("LLM client initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.Duration("timeout", timeout),
	)

	return &Client{
		client:      openai.NewClientWithConfig(cfg),
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		timeout:     timeout,
		cb:          cb,
	}
}

// Complete asks for a single JSON object. It never retries; a failure is an
// *UpstreamError.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(
			ctx,
			openai.ChatCompletionRequest{
				Model:       req.Model,
				Messages:    messages,
				Temperature: temperature,
				MaxTokens:   maxTokens,
				ResponseFormat: &openai.ChatCompletionResponseFormat{
					Type: openai.ChatCompletionResponseFormatTypeJSONObject,
				},
			},
		)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return ErrNoChoices
		}

		logger.Debug("LLM completion generated",
			zap.String("model", resp.Model),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		)

		result = &CompletionResponse{
			Content: resp.Choices[0].Message.Content,
			Model:   resp.Model,
			Usage: Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
		}
		return nil
	})
	if err != nil {
		return nil, classify(ctx, err)
	}

	if result.Model == "" {
		result.Model = req.Model
	}
	return result, nil
}

func classify(ctx context.Context, err error) *UpstreamError {
	ue := &UpstreamError{Err: err}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		ue.Timeout = true
	}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		ue.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		ue.StatusCode = reqErr.HTTPStatusCode
	}
	return ue
}

// State exposes the circuit breaker state for readiness checks.
func (c *Client) State() circuitbreaker.State {
	return c.cb.State()
}
