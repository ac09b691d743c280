// Package dialogue provides the dialogue generator on an OpenAI-compatible
// chat completion API. It turns the business's last utterance plus the
// business identity into a short natural reply that steers the conversation
// toward the hiring question.
package dialogue

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/outreachlabs/hirecall/engine"
)

// Verify interface compliance at compile time.
var _ engine.DialogueGenerator = (*Provider)(nil)

// Error is a dialogue generation failure.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("dialogue generation failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

const firstTurnSystem = `You are making an automated call to ask about hiring.
The business just answered the phone. Respond naturally to their greeting, then immediately ask if they're hiring.

Keep it SHORT and NATURAL - maximum 2 sentences.

Examples:
- If they say "Hello?" -> "Hello! I'm calling to ask if you're currently hiring for [position]."
- If they say "How can I help you?" -> "I'm calling to ask if you're currently hiring for [position]."
- If they say "Who is this?" -> "This is an automated inquiry. I'm calling to ask if you're currently hiring for [position]."

Just respond with the message - no labels or formatting.`

const followUpSystem = `You are a friendly professional recruiter making a phone call.

Your goal: Have a natural conversation and find out if they're hiring for the position.

CRITICAL RULES:
1. ALWAYS answer their questions directly and naturally first
2. Be warm, human, and conversational
3. Keep responses SHORT (1-2 sentences max)
4. After answering, smoothly transition to asking about hiring
5. Sound like a real person having a conversation, not a robot

Be natural, friendly, and human. Actually answer what they ask, then bring it back to hiring.

Just respond with the message - no labels or formatting.`

// Provider implements engine.DialogueGenerator using chat completions.
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

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) Option {
	return func(o *options) {
		o.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(o *options) {
		o.temperature = t
	}
}

// WithClient injects a preconfigured client (shared across providers).
func WithClient(client *openai.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// New creates a dialogue provider.
func New(opts ...Option) (*Provider, error) {
	cfg := &options{
		model:       "gpt-4o-mini",
		maxTokens:   150,
		temperature: 0.7,
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

// Reply generates a short conversational reply to the business's utterance.
func (p *Provider) Reply(ctx context.Context, req engine.DialogueRequest) (string, error) {
	system := followUpSystem
	if req.IsFirstTurn {
		system = firstTurnSystem
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return "", &Error{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Err: fmt.Errorf("empty completion")}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// userPrompt renders the conversational context for the model.
func userPrompt(req engine.DialogueRequest) string {
	b := req.Business
	if req.IsFirstTurn {
		return fmt.Sprintf(`Business: %s
Position: %s %s
Location: %s

They answered the phone with: %q

What should I say?`, b.Name, b.EmploymentType, b.Role, b.Location, req.IncomingText)
	}
	return fmt.Sprintf(`Position: %s %s
Location: %s
Business: %s

They just said: %q

How do I respond naturally?`, b.EmploymentType, b.Role, b.Location, b.Name, req.IncomingText)
}
