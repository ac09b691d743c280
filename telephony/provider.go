// Package telephony adapts the conversation engine to Twilio: it places
// outbound calls, receives the per-turn voice webhooks, and renders engine
// instructions into TwiML call-control documents.
package telephony

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/outreachlabs/hirecall"
	"github.com/outreachlabs/hirecall/engine"
	"github.com/outreachlabs/hirecall/internal/client"
	"github.com/outreachlabs/hirecall/internal/metrics"
)

// Webhook paths served by the provider. Action URLs rendered into TwiML are
// built from the public URL plus these paths.
const (
	PathAnswered = "/voice/answered"
	PathGreeting = "/voice/greeting"
	PathAnswer   = "/voice/answer"
	PathStatus   = "/voice/status"
)

// Provider drives Twilio calls for the conversation engine.
type Provider struct {
	client      *client.Client
	engine      *engine.Engine
	publicURL   string
	from        string
	voice       string
	ringTimeout int
	timeLimit   int
	logger      *slog.Logger

	mu    sync.RWMutex
	calls map[string]*engine.CallContext
}

// Option configures the Provider.
type Option func(*options)

type options struct {
	client      *client.Client
	engine      *engine.Engine
	publicURL   string
	from        string
	voice       string
	ringTimeout int
	timeLimit   int
	logger      *slog.Logger
}

// WithClient sets the Twilio API client.
func WithClient(c *client.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithEngine sets the conversation engine.
func WithEngine(e *engine.Engine) Option {
	return func(o *options) {
		o.engine = e
	}
}

// WithPublicURL sets the externally reachable base URL for webhooks,
// e.g. "https://example.com".
func WithPublicURL(url string) Option {
	return func(o *options) {
		o.publicURL = url
	}
}

// WithFromNumber sets the outbound caller ID.
func WithFromNumber(number string) Option {
	return func(o *options) {
		o.from = number
	}
}

// WithVoice sets the provider-native voice used for fallback speech.
func WithVoice(voice string) Option {
	return func(o *options) {
		o.voice = voice
	}
}

// WithRingTimeout sets how long to ring before giving up, in seconds.
func WithRingTimeout(seconds int) Option {
	return func(o *options) {
		o.ringTimeout = seconds
	}
}

// WithTimeLimit caps the total call duration, in seconds. This is the outer
// bound on conversations when the engine's turn cap is disabled.
func WithTimeLimit(seconds int) Option {
	return func(o *options) {
		o.timeLimit = seconds
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a Twilio telephony provider.
func New(opts ...Option) (*Provider, error) {
	cfg := &options{
		voice:       "alice",
		ringTimeout: 30,
		timeLimit:   300,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.engine == nil {
		return nil, fmt.Errorf("conversation engine is required")
	}
	if cfg.publicURL == "" {
		return nil, fmt.Errorf("public URL is required")
	}
	if cfg.from == "" {
		return nil, fmt.Errorf("from number is required")
	}

	twilioClient := cfg.client
	if twilioClient == nil {
		var err error
		twilioClient, err = client.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Twilio client: %w", err)
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		client:      twilioClient,
		engine:      cfg.engine,
		publicURL:   cfg.publicURL,
		from:        cfg.from,
		voice:       cfg.voice,
		ringTimeout: cfg.ringTimeout,
		timeLimit:   cfg.timeLimit,
		logger:      logger,
		calls:       make(map[string]*engine.CallContext),
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "twilio"
}

// PlaceCall initiates an outbound call to the business and registers its
// conversation context.
func (p *Provider) PlaceCall(ctx context.Context, to string, business engine.BusinessIdentity) (*engine.CallContext, error) {
	twilioCall, err := p.client.MakeCall(ctx, &client.MakeCallParams{
		To:                  to,
		From:                p.from,
		URL:                 p.action(PathAnswered),
		StatusCallback:      p.action(PathStatus),
		StatusCallbackEvent: []string{"initiated", "ringing", "answered", "completed"},
		Timeout:             p.ringTimeout,
		TimeLimit:           p.timeLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to make call: %w", err)
	}

	call := engine.NewCallContext(twilioCall.SID, business)

	p.mu.Lock()
	p.calls[call.ID()] = call
	p.mu.Unlock()

	metrics.CallsPlaced.Inc()
	p.logger.Info("call placed", "call_id", call.ID(), "to", to, "business", business.Name)
	return call, nil
}

// Call returns the live conversation context for a call SID.
func (p *Provider) Call(callSID string) (*engine.CallContext, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	call, ok := p.calls[callSID]
	return call, ok
}

// Calls returns the live conversation contexts.
func (p *Provider) Calls() []*engine.CallContext {
	p.mu.RLock()
	defer p.mu.RUnlock()
	calls := make([]*engine.CallContext, 0, len(p.calls))
	for _, call := range p.calls {
		calls = append(calls, call)
	}
	return calls
}

// Register adds the webhook handlers to a mux.
func (p *Provider) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST "+PathAnswered, p.HandleAnswered)
	mux.HandleFunc("POST "+PathGreeting, p.HandleGreeting)
	mux.HandleFunc("POST "+PathAnswer, p.HandleAnswer)
	mux.HandleFunc("POST "+PathStatus, p.HandleStatus)
}

// HandleAnswered handles the first webhook of a call: the business picked
// up, start listening for their greeting.
func (p *Provider) HandleAnswered(w http.ResponseWriter, r *http.Request) {
	call, ok := p.lookup(w, r)
	if !ok {
		return
	}

	instr := p.engine.OnCallAnswered(r.Context(), call)
	p.writeTwiML(w, renderInstruction(instr, p.action(PathGreeting), p.voice))
}

// HandleGreeting handles the captured greeting and speaks the engine's
// opening reply.
func (p *Provider) HandleGreeting(w http.ResponseWriter, r *http.Request) {
	call, ok := p.lookup(w, r)
	if !ok {
		return
	}

	instr := p.engine.OnGreetingCaptured(r.Context(), call, utteranceFromForm(r))
	p.writeTwiML(w, renderInstruction(instr, p.action(PathAnswer), p.voice))
}

// HandleAnswer handles a hiring answer. Terminal assessments render a
// play-then-hangup document; UNCERTAIN loops back to this same action.
func (p *Provider) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	call, ok := p.lookup(w, r)
	if !ok {
		return
	}

	instr := p.engine.OnHiringAnswerCaptured(r.Context(), call, utteranceFromForm(r))
	p.writeTwiML(w, renderInstruction(instr, p.action(PathAnswer), p.voice))
}

// HandleStatus handles call status callbacks and discards contexts for
// ended calls.
func (p *Provider) HandleStatus(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	callSID := r.FormValue("CallSid")
	status := r.FormValue("CallStatus")

	p.logger.Info("call status", "call_id", callSID, "status", status)

	switch status {
	case hirecall.CallStatusCompleted, hirecall.CallStatusBusy,
		hirecall.CallStatusNoAnswer, hirecall.CallStatusFailed,
		hirecall.CallStatusCanceled:
		p.mu.Lock()
		call, ok := p.calls[callSID]
		delete(p.calls, callSID)
		p.mu.Unlock()

		if ok && call.Outcome() == nil {
			p.logger.Warn("call ended without outcome",
				"call_id", callSID,
				"status", status,
				"state", call.State().String())
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// lookup resolves the webhook's call context. An unknown call (for example
// after a restart) is answered with the apology document so the webhook
// still receives valid call control.
func (p *Provider) lookup(w http.ResponseWriter, r *http.Request) (*engine.CallContext, bool) {
	_ = r.ParseForm()
	callSID := r.FormValue("CallSid")

	call, ok := p.Call(callSID)
	if !ok {
		p.logger.Warn("webhook for unknown call", "call_id", callSID, "path", r.URL.Path)
		p.writeTwiML(w, apologyTwiML)
		return nil, false
	}
	return call, true
}

// utteranceFromForm builds the incoming utterance from a Twilio webhook.
// SpeechResult carries the provider transcript when speech input was used;
// RecordingUrl carries a recording reference otherwise. Both may be absent,
// which is a valid empty utterance.
func utteranceFromForm(r *http.Request) engine.Utterance {
	return engine.Utterance{
		Text:     r.FormValue("SpeechResult"),
		AudioRef: r.FormValue("RecordingUrl"),
	}
}

// action builds an absolute webhook action URL.
func (p *Provider) action(path string) string {
	return p.publicURL + path
}

// writeTwiML writes a TwiML response.
func (p *Provider) writeTwiML(w http.ResponseWriter, twiml string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	_, _ = w.Write([]byte(twiml))
}

// Hangup forcefully ends a call via the REST API.
func (p *Provider) Hangup(ctx context.Context, callSID string) error {
	if _, err := p.client.HangupCall(ctx, callSID); err != nil {
		return fmt.Errorf("failed to hangup: %w", err)
	}
	return nil
}

// Close hangs up all live calls.
func (p *Provider) Close() error {
	p.mu.Lock()
	ids := make([]string, 0, len(p.calls))
	for id := range p.calls {
		ids = append(ids, id)
	}
	p.calls = make(map[string]*engine.CallContext)
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, id := range ids {
		_ = p.Hangup(ctx, id)
	}
	return nil
}
