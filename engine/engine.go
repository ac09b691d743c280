// Package engine implements the call conversation engine: the webhook-driven
// turn state machine that listens to a business, decides what to say next,
// and converges on a hiring assessment.
//
// Every external collaborator (dialogue generation, classification, speech
// synthesis, transcription, audio staging) is injected as an interface and
// wrapped in a failure boundary. A failed or slow collaborator degrades the
// turn, never the call: the engine always returns a valid call-control
// instruction.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/outreachlabs/hirecall/internal/metrics"
)

// ClosingLine is spoken before hanging up on a terminal assessment.
const ClosingLine = "Thank you so much for your time. Have a great day!"

// DefaultMaxTurns bounds the UNCERTAIN loop so a live call cannot run up
// cost indefinitely. Zero disables the cap (provider limits only).
const DefaultMaxTurns = 5

// DefaultGatherTimeout is how long to wait for the business to speak.
const DefaultGatherTimeout = 6 * time.Second

// maxTurnsDetails explains a forced UNCERTAIN outcome.
const maxTurnsDetails = "maximum follow-up turns reached"

// DialogueRequest is the context handed to the dialogue generator for one
// reply.
type DialogueRequest struct {
	Business     BusinessIdentity
	IncomingText string
	IsFirstTurn  bool
}

// DialogueGenerator produces a short natural reply to the business's last
// utterance.
type DialogueGenerator interface {
	Reply(ctx context.Context, req DialogueRequest) (string, error)
}

// StatusClassifier judges the hiring status of a business utterance.
type StatusClassifier interface {
	Classify(ctx context.Context, utterance string) (HiringAssessment, error)
}

// Audio is a synthesized audio artifact.
type Audio struct {
	Data   []byte
	Format string
}

// Synthesizer converts text into audio suitable for phone playback.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}

// Transcriber resolves a captured audio reference into text.
type Transcriber interface {
	TranscribeRef(ctx context.Context, audioRef string) (string, error)
}

// Stager makes an audio artifact reachable by URL before a play instruction
// may reference it. The returned URL is confirmed present at return time.
type Stager interface {
	Stage(ctx context.Context, name string, audio Audio) (string, error)
}

// Services are the external collaborators the engine drives.
type Services struct {
	Dialogue    DialogueGenerator
	Classifier  StatusClassifier
	Synthesizer Synthesizer
	Transcriber Transcriber
	Stager      Stager
}

// Event is a live conversation notification for observers (transcript feed).
type Event struct {
	Type     string               `json:"type"`
	CallID   string               `json:"call_id"`
	Business BusinessIdentity     `json:"business"`
	Turn     *DialogueTurn        `json:"turn,omitempty"`
	Outcome  *ConversationOutcome `json:"outcome,omitempty"`
	Time     time.Time            `json:"time"`
}

// Event types.
const (
	EventTurn    = "turn"
	EventOutcome = "outcome"
)

// Engine drives the conversation for any number of independent calls.
type Engine struct {
	svcs          Services
	logger        *slog.Logger
	maxTurns      int
	gatherTimeout time.Duration
	notify        func(Event)
}

// Option configures the Engine.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	maxTurns      int
	gatherTimeout time.Duration
	notify        func(Event)
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMaxTurns caps the number of UNCERTAIN follow-up turns. Zero or
// negative disables the cap.
func WithMaxTurns(n int) Option {
	return func(o *options) {
		o.maxTurns = n
	}
}

// WithGatherTimeout sets the maximum wait for the next utterance.
func WithGatherTimeout(d time.Duration) Option {
	return func(o *options) {
		o.gatherTimeout = d
	}
}

// WithObserver registers a callback for live conversation events.
func WithObserver(fn func(Event)) Option {
	return func(o *options) {
		o.notify = fn
	}
}

// New creates a conversation engine. Dialogue, Classifier and Synthesizer
// are required; Transcriber and Stager are optional (without a transcriber,
// audio-only utterances degrade to empty text; without a stager, every reply
// uses provider-native speech).
func New(svcs Services, opts ...Option) (*Engine, error) {
	if svcs.Dialogue == nil {
		return nil, fmt.Errorf("dialogue generator is required")
	}
	if svcs.Classifier == nil {
		return nil, fmt.Errorf("status classifier is required")
	}
	if svcs.Synthesizer == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}

	cfg := &options{
		maxTurns:      DefaultMaxTurns,
		gatherTimeout: DefaultGatherTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	return &Engine{
		svcs:          svcs,
		logger:        cfg.logger,
		maxTurns:      cfg.maxTurns,
		gatherTimeout: cfg.gatherTimeout,
		notify:        cfg.notify,
	}, nil
}

// OnCallAnswered handles the first webhook of a call: the line is open and
// the engine starts listening for the business's greeting.
func (e *Engine) OnCallAnswered(ctx context.Context, call *CallContext) Instruction {
	e.logger.Info("call answered", "call_id", call.ID(), "business", call.Business().Name)
	return Instruction{Gather: true, GatherTimeout: e.gatherTimeout}
}

// OnGreetingCaptured handles the business's opening utterance. The engine
// replies adaptively, asks the hiring question, and keeps listening.
func (e *Engine) OnGreetingCaptured(ctx context.Context, call *CallContext, incoming Utterance) Instruction {
	call.setState(RespondingToGreeting)

	incoming.Text = e.resolveText(ctx, call, incoming)
	greeting := incoming.Text
	if greeting == "" {
		// Nothing captured is not an error; treat it as a plain hello.
		greeting = "Hello"
	}

	reply := e.generateReply(ctx, call, greeting, true)
	instr := e.speak(ctx, call, reply, true)

	call.completeTurn(DialogueTurn{
		Incoming:         incoming,
		OutgoingText:     reply,
		OutgoingAudioURL: instr.AudioURL,
	}, AwaitingHiringAnswer)

	e.emitTurn(call, incoming, reply, instr.AudioURL)
	return instr
}

// OnHiringAnswerCaptured handles an answer to the hiring question. A
// terminal status thanks the business and hangs up; UNCERTAIN loops with a
// follow-up unless the turn budget is exhausted.
func (e *Engine) OnHiringAnswerCaptured(ctx context.Context, call *CallContext, incoming Utterance) Instruction {
	call.setState(Analyzing)

	incoming.Text = e.resolveText(ctx, call, incoming)
	assessment := e.classify(ctx, call, incoming.Text)

	e.logger.Info("utterance classified",
		"call_id", call.ID(),
		"status", string(assessment.Status),
		"confidence", string(assessment.Confidence))

	if assessment.Status.Terminal() {
		return e.finish(ctx, call, incoming, assessment)
	}

	// Forced termination: the follow-up budget counts analyzed answers,
	// which is the turn index once the greeting turn has completed.
	if e.maxTurns > 0 && call.TurnIndex() >= e.maxTurns {
		e.logger.Warn("turn budget exhausted", "call_id", call.ID(), "max_turns", e.maxTurns)
		assessment.Details = maxTurnsDetails
		return e.finish(ctx, call, incoming, assessment)
	}

	reply := e.generateReply(ctx, call, incoming.Text, false)
	instr := e.speak(ctx, call, reply, true)

	call.completeTurn(DialogueTurn{
		Incoming:         incoming,
		OutgoingText:     reply,
		OutgoingAudioURL: instr.AudioURL,
	}, AwaitingHiringAnswer)

	e.emitTurn(call, incoming, reply, instr.AudioURL)
	return instr
}

// finish speaks the closing line, records the outcome and hangs up.
func (e *Engine) finish(ctx context.Context, call *CallContext, incoming Utterance, assessment HiringAssessment) Instruction {
	instr := e.speak(ctx, call, ClosingLine, false)

	outcome := ConversationOutcome{
		FinalAssessment: assessment,
		TurnsTaken:      call.TurnIndex(),
	}
	call.terminate(DialogueTurn{
		Incoming:         incoming,
		OutgoingText:     ClosingLine,
		OutgoingAudioURL: instr.AudioURL,
	}, outcome)

	metrics.CallsCompleted.WithLabelValues(string(assessment.Status)).Inc()
	metrics.ConversationTurns.Observe(float64(outcome.TurnsTaken))

	e.logger.Info("conversation terminated",
		"call_id", call.ID(),
		"status", string(assessment.Status),
		"turns", outcome.TurnsTaken)

	e.emit(Event{
		Type:     EventOutcome,
		CallID:   call.ID(),
		Business: call.Business(),
		Outcome:  &outcome,
		Time:     time.Now(),
	})
	return instr
}

// resolveText returns the utterance text, transcribing the audio reference
// when the telephony provider captured audio without a transcript. A
// transcription failure degrades to empty text.
func (e *Engine) resolveText(ctx context.Context, call *CallContext, u Utterance) string {
	if u.Text != "" || u.AudioRef == "" {
		return u.Text
	}
	if e.svcs.Transcriber == nil {
		return ""
	}
	text, err := e.svcs.Transcriber.TranscribeRef(ctx, u.AudioRef)
	if err != nil {
		e.fallback(call, "transcription", err)
		return ""
	}
	return text
}

// generateReply asks the dialogue generator for a reply, substituting the
// templated hiring question if it fails.
func (e *Engine) generateReply(ctx context.Context, call *CallContext, incomingText string, first bool) string {
	reply, err := e.svcs.Dialogue.Reply(ctx, DialogueRequest{
		Business:     call.Business(),
		IncomingText: incomingText,
		IsFirstTurn:  first,
	})
	if err != nil || reply == "" {
		e.fallback(call, "dialogue", err)
		return FallbackReply(call.Business())
	}
	return reply
}

// classify judges the utterance, substituting the keyword scan if the
// classifier fails.
func (e *Engine) classify(ctx context.Context, call *CallContext, text string) HiringAssessment {
	if text == "" {
		return HiringAssessment{
			Status:     StatusUncertain,
			Confidence: ConfidenceLow,
			Details:    "no response captured",
		}
	}
	assessment, err := e.svcs.Classifier.Classify(ctx, text)
	if err != nil {
		e.fallback(call, "classification", err)
		return KeywordClassify(text)
	}
	return assessment
}

// speak synthesizes and stages the reply, returning a play instruction. If
// synthesis or staging fails, the instruction carries the literal text for
// the provider's built-in speech instead; the turn never aborts.
func (e *Engine) speak(ctx context.Context, call *CallContext, text string, gather bool) Instruction {
	instr := Instruction{
		SpeechText:    text,
		Gather:        gather,
		Hangup:        !gather,
		GatherTimeout: e.gatherTimeout,
	}

	if e.svcs.Stager == nil {
		return instr
	}

	audio, err := e.svcs.Synthesizer.Synthesize(ctx, text)
	if err != nil {
		e.fallback(call, "synthesis", err)
		return instr
	}

	name := fmt.Sprintf("%s-turn-%d", call.ID(), call.TurnIndex())
	url, err := e.svcs.Stager.Stage(ctx, name, audio)
	if err != nil {
		e.fallback(call, "staging", err)
		return instr
	}

	instr.AudioURL = url
	instr.SpeechText = ""
	return instr
}

// fallback logs and counts a degraded turn. The business party never hears
// about it.
func (e *Engine) fallback(call *CallContext, service string, err error) {
	metrics.FallbackActivations.WithLabelValues(service).Inc()
	e.logger.Warn("service fallback activated",
		"call_id", call.ID(),
		"service", service,
		"error", err)
}

func (e *Engine) emitTurn(call *CallContext, incoming Utterance, reply, audioURL string) {
	e.emit(Event{
		Type:     EventTurn,
		CallID:   call.ID(),
		Business: call.Business(),
		Turn: &DialogueTurn{
			Incoming:         incoming,
			OutgoingText:     reply,
			OutgoingAudioURL: audioURL,
		},
		Time: time.Now(),
	})
}

func (e *Engine) emit(ev Event) {
	if e.notify != nil {
		e.notify(ev)
	}
}
