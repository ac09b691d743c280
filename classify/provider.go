// Package classify provides the hiring-status classifier on an
// OpenAI-compatible chat completion API. The model is constrained to a
// line-oriented STATUS/CONFIDENCE/DETAILS reply which is parsed strictly:
// anything malformed fails closed to UNCERTAIN/LOW.
package classify

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/outreachlabs/hirecall/engine"
)

// Verify interface compliance at compile time.
var _ engine.StatusClassifier = (*Provider)(nil)

// Error is a classification failure.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("classification failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

const classifierSystem = `Analyze this business response to determine their hiring status.

Respond in this EXACT format:
STATUS: [HIRING/NOT_HIRING/UNCERTAIN]
CONFIDENCE: [HIGH/MEDIUM/LOW]
DETAILS: [brief one-line summary]

Examples:
- "Yes we're hiring" -> STATUS: HIRING, CONFIDENCE: HIGH, DETAILS: Currently hiring
- "No" -> STATUS: NOT_HIRING, CONFIDENCE: HIGH, DETAILS: Not hiring
- "What position?" -> STATUS: UNCERTAIN, CONFIDENCE: LOW, DETAILS: Asked for clarification`

// Provider implements engine.StatusClassifier using chat completions.
type Provider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// Option configures the Provider.
type Option func(*options)

type options struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float32
	client      *openai.Client
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithBaseURL points the provider at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithClient injects a preconfigured client (shared across providers).
func WithClient(client *openai.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// New creates a classifier provider.
func New(opts ...Option) (*Provider, error) {
	cfg := &options{
		model:       "gpt-4o-mini",
		maxTokens:   100,
		temperature: 0.3,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := cfg.client
	if client == nil {
		apiKey := cfg.apiKey
		if apiKey == "" {
			apiKey = os.Getenv("SPEECH_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("SPEECH_API_KEY is required")
		}
		clientCfg := openai.DefaultConfig(apiKey)
		if cfg.baseURL != "" {
			clientCfg.BaseURL = cfg.baseURL
		}
		client = openai.NewClientWithConfig(clientCfg)
	}

	return &Provider{
		client:      client,
		model:       cfg.model,
		maxTokens:   cfg.maxTokens,
		temperature: cfg.temperature,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "openai-chat"
}

// Classify judges the hiring status of one utterance. Empty input never
// reaches the model: it is deterministically UNCERTAIN/LOW.
func (p *Provider) Classify(ctx context.Context, utterance string) (engine.HiringAssessment, error) {
	if strings.TrimSpace(utterance) == "" {
		return engine.HiringAssessment{
			Status:     engine.StatusUncertain,
			Confidence: engine.ConfidenceLow,
			Details:    "no response captured",
		}, nil
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystem},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Business said: %q", utterance)},
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return engine.HiringAssessment{}, &Error{Err: err}
	}
	if len(resp.Choices) == 0 {
		return engine.HiringAssessment{}, &Error{Err: fmt.Errorf("empty completion")}
	}

	return ParseAssessment(resp.Choices[0].Message.Content), nil
}

// ParseAssessment parses the STATUS/CONFIDENCE/DETAILS line protocol. It
// fails closed: a missing or unrecognized STATUS or CONFIDENCE yields a full
// UNCERTAIN/LOW assessment instead of a partially populated one.
func ParseAssessment(raw string) engine.HiringAssessment {
	var status, confidence, details string
	var haveStatus, haveConfidence bool

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "STATUS:"):
			status = strings.TrimSpace(strings.TrimPrefix(line, "STATUS:"))
			haveStatus = true
		case strings.HasPrefix(line, "CONFIDENCE:"):
			confidence = strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:"))
			haveConfidence = true
		case strings.HasPrefix(line, "DETAILS:"):
			details = strings.TrimSpace(strings.TrimPrefix(line, "DETAILS:"))
		}
	}

	if !haveStatus || !haveConfidence || !validStatus(status) || !validConfidence(confidence) {
		return engine.HiringAssessment{
			Status:     engine.StatusUncertain,
			Confidence: engine.ConfidenceLow,
			Details:    "malformed classifier reply",
		}
	}

	return engine.HiringAssessment{
		Status:     engine.HiringStatus(status),
		Confidence: engine.Confidence(confidence),
		Details:    details,
	}
}

func validStatus(s string) bool {
	switch engine.HiringStatus(s) {
	case engine.StatusHiring, engine.StatusNotHiring, engine.StatusUncertain:
		return true
	}
	return false
}

func validConfidence(c string) bool {
	switch engine.Confidence(c) {
	case engine.ConfidenceHigh, engine.ConfidenceMedium, engine.ConfidenceLow:
		return true
	}
	return false
}
