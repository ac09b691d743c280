// Package synthesis provides the speech synthesizer on an OpenAI-compatible
// audio/speech endpoint. Raw PCM responses are wrapped in a WAV container
// for phone playback; MP3 responses are decoded to PCM first.
package synthesis

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	mp3 "github.com/hajimehoshi/go-mp3"
	openai "github.com/sashabaranov/go-openai"

	"github.com/outreachlabs/hirecall/engine"
)

// Verify interface compliance at compile time.
var _ engine.Synthesizer = (*Provider)(nil)

// Error is a synthesis failure.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("speech synthesis failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// pcmSampleRate is the sample rate of raw PCM speech responses.
const pcmSampleRate = 24000

// Provider implements engine.Synthesizer.
type Provider struct {
	client *openai.Client
	model  string
	voice  string
	format string
}

// Option configures the Provider.
type Option func(*options)

type options struct {
	apiKey  string
	baseURL string
	model   string
	voice   string
	format  string
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

// WithModel sets the speech model.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithVoice sets the voice.
func WithVoice(voice string) Option {
	return func(o *options) {
		o.voice = voice
	}
}

// WithResponseFormat sets the requested audio format: "pcm" or "mp3".
func WithResponseFormat(format string) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithClient injects a preconfigured client (shared across providers).
func WithClient(client *openai.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// New creates a synthesis provider.
func New(opts ...Option) (*Provider, error) {
	cfg := &options{
		model:  string(openai.TTSModel1),
		voice:  string(openai.VoiceAlloy),
		format: "pcm",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.format != "pcm" && cfg.format != "mp3" {
		return nil, fmt.Errorf("unsupported response format %q (want pcm or mp3)", cfg.format)
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
		client: client,
		model:  cfg.model,
		voice:  cfg.voice,
		format: cfg.format,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "openai-speech"
}

// Synthesize converts text to a WAV artifact suitable for phone playback.
func (p *Provider) Synthesize(ctx context.Context, text string) (engine.Audio, error) {
	if text == "" {
		return engine.Audio{}, &Error{Err: fmt.Errorf("empty input text")}
	}

	responseFormat := openai.SpeechResponseFormatPcm
	if p.format == "mp3" {
		responseFormat = openai.SpeechResponseFormatMp3
	}

	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(p.model),
		Input:          text,
		Voice:          openai.SpeechVoice(p.voice),
		ResponseFormat: responseFormat,
	})
	if err != nil {
		return engine.Audio{}, &Error{Err: err}
	}
	defer resp.Close()

	raw, err := io.ReadAll(resp)
	if err != nil {
		return engine.Audio{}, &Error{Err: err}
	}
	if len(raw) == 0 {
		return engine.Audio{}, &Error{Err: fmt.Errorf("empty audio response")}
	}

	if p.format == "mp3" {
		wav, err := mp3ToWAV(raw)
		if err != nil {
			return engine.Audio{}, &Error{Err: err}
		}
		return engine.Audio{Data: wav, Format: "wav"}, nil
	}

	return engine.Audio{
		Data:   encodeWAV(raw, pcmSampleRate, 1),
		Format: "wav",
	}, nil
}

// mp3ToWAV decodes an MP3 stream to its PCM samples and wraps them in a WAV
// container. The decoder always emits 16-bit stereo.
func mp3ToWAV(data []byte) ([]byte, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("mp3 decode: %w", err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode: %w", err)
	}

	return encodeWAV(pcm, dec.SampleRate(), 2), nil
}
