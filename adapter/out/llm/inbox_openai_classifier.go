// Package llm implements the classification capability on top of a chat
// completion model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	openai "github.com/sashabaranov/go-openai"

	"inbox_server/core/domain"
	"inbox_server/core/port/out"
	"inbox_server/pkg/apperr"
	"inbox_server/pkg/logger"
)

const DefaultModel = "gpt-4o-mini"

type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Classifier scores a text against a label set with a zero-shot prompt.
type Classifier struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	cb          *gobreaker.CircuitBreaker
	log         *logger.Logger
}

var _ out.Classifier = (*Classifier)(nil)

func NewClassifier(cfg ClientConfig) *Classifier {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	log := logger.WithField("component", "llm")
	return &Classifier{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: float32(cfg.Temperature),
		timeout:     timeout,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openai",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				var nce *nonCircuitError
				return err == nil || errors.As(err, &nce)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
			},
		}),
		log: log,
	}
}

type scoreResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// CircuitState returns the breaker state for readiness reporting.
func (c *Classifier) CircuitState() string {
	return c.cb.State().String()
}

// Classify returns raw per-label scores; normalization is the caller's job.
func (c *Classifier) Classify(ctx context.Context, text string, labels []string) (*domain.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var content string
	_, err := c.cb.Execute(func() (interface{}, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Temperature: c.temperature,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(labels)},
				{Role: openai.ChatMessageRoleUser, Content: text},
			},
		})
		if err != nil {
			if isClientError(err) {
				return nil, &nonCircuitError{err: err}
			}
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("empty completion")
		}
		content = resp.Choices[0].Message.Content
		return nil, nil
	})

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		err = nce.err
	}
	if err != nil {
		c.log.WithError(err).Warn("[Classifier] completion failed: circuit=%s", c.cb.State().String())
		return nil, apperr.ExternalError("openai", err)
	}

	scores, err := parseScores(content)
	if err != nil {
		return nil, err
	}
	return &domain.Classification{AllScores: scores}, nil
}

func systemPrompt(labels []string) string {
	var b strings.Builder
	b.WriteString("You are an email classification AI. Score how well the email matches each category.\n\nCategories:\n")
	for _, key := range labels {
		desc := ""
		for _, l := range domain.Labels {
			if string(l.Key) == key {
				desc = l.Description
				break
			}
		}
		if desc != "" {
			b.WriteString(fmt.Sprintf("- %s: %s\n", key, desc))
		} else {
			b.WriteString(fmt.Sprintf("- %s\n", key))
		}
	}
	b.WriteString(`
Scores are between 0.0 and 1.0. Use the category keys exactly as listed.
Respond with JSON only, in this exact format:
{"scores": {"<category>": 0.0}}`)
	return b.String()
}

// parseScores accepts {"scores": {...}} or a bare label-to-score object,
// optionally wrapped in a markdown code fence.
func parseScores(content string) (map[string]float64, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var wrapped scoreResponse
	if err := json.Unmarshal([]byte(content), &wrapped); err == nil && len(wrapped.Scores) > 0 {
		return wrapped.Scores, nil
	}

	var flat map[string]float64
	if err := json.Unmarshal([]byte(content), &flat); err != nil {
		return nil, fmt.Errorf("failed to parse classification response: %w", err)
	}
	return flat, nil
}

func isClientError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 &&
			apiErr.HTTPStatusCode != http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= 400 && reqErr.HTTPStatusCode < 500 &&
			reqErr.HTTPStatusCode != http.StatusTooManyRequests
	}
	return false
}

type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}
