// Package transcribe provides the speech transcription gateway on an
// OpenAI-compatible audio-understanding chat API. Captured call audio is
// base64-encoded into an input_audio message part and the model returns the
// best-effort transcript.
package transcribe

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/outreachlabs/hirecall/engine"
)

// Verify interface compliance at compile time.
var _ engine.Transcriber = (*Provider)(nil)

// Error is a transcription failure.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcription failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RecordingFetcher resolves an opaque recording reference into audio bytes
// and their format. The telephony client implements this for recording URLs
// that require account authentication.
type RecordingFetcher interface {
	DownloadRecording(ctx context.Context, ref string) (data []byte, format string, err error)
}

// Provider implements engine.Transcriber.
type Provider struct {
	client  *openai.Client
	model   string
	fetcher RecordingFetcher
}

// Option configures the Provider.
type Option func(*options)

type options struct {
	apiKey  string
	baseURL string
	model   string
	fetcher RecordingFetcher
	client  *openai.Client
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

// WithModel sets the audio-understanding model.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithRecordingFetcher sets the fetcher used to resolve audio references.
func WithRecordingFetcher(f RecordingFetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithClient injects a preconfigured client (shared across providers).
func WithClient(client *openai.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// New creates a transcription provider.
func New(opts ...Option) (*Provider, error) {
	cfg := &options{
		model: "gpt-4o-audio-preview",
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
		client:  client,
		model:   cfg.model,
		fetcher: cfg.fetcher,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "openai-audio"
}

// Transcribe converts raw audio into text.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if len(audio) == 0 {
		return "", &Error{Err: fmt.Errorf("empty audio payload")}
	}
	if format == "" {
		format = "wav"
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Transcribe this audio accurately.",
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeInputAudio,
						InputAudio: &openai.ChatMessageInputAudio{
							Data:   base64.StdEncoding.EncodeToString(audio),
							Format: format,
						},
					},
				},
			},
		},
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		return "", &Error{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Err: fmt.Errorf("empty completion")}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// TranscribeRef fetches a recording reference and transcribes it.
func (p *Provider) TranscribeRef(ctx context.Context, ref string) (string, error) {
	if p.fetcher == nil {
		return "", &Error{Err: fmt.Errorf("no recording fetcher configured")}
	}
	data, format, err := p.fetcher.DownloadRecording(ctx, ref)
	if err != nil {
		return "", &Error{Err: err}
	}
	return p.Transcribe(ctx, data, format)
}
