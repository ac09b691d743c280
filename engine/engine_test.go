package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type stubDialogue struct {
	reply   string
	err     error
	lastReq DialogueRequest
	calls   int
}

func (s *stubDialogue) Reply(ctx context.Context, req DialogueRequest) (string, error) {
	s.calls++
	s.lastReq = req
	return s.reply, s.err
}

type stubClassifier struct {
	assessment HiringAssessment
	err        error
	lastInput  string
}

func (s *stubClassifier) Classify(ctx context.Context, utterance string) (HiringAssessment, error) {
	s.lastInput = utterance
	return s.assessment, s.err
}

type stubSynthesizer struct {
	err   error
	calls int
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, text string) (Audio, error) {
	s.calls++
	if s.err != nil {
		return Audio{}, s.err
	}
	return Audio{Data: []byte("RIFF"), Format: "wav"}, nil
}

type stubStager struct {
	err   error
	names []string
}

func (s *stubStager) Stage(ctx context.Context, name string, audio Audio) (string, error) {
	s.names = append(s.names, name)
	if s.err != nil {
		return "", s.err
	}
	return "https://example.com/audio/" + name + ".wav", nil
}

type stubTranscriber struct {
	text string
	err  error
	refs []string
}

func (s *stubTranscriber) TranscribeRef(ctx context.Context, audioRef string) (string, error) {
	s.refs = append(s.refs, audioRef)
	return s.text, s.err
}

type testHarness struct {
	dialogue    *stubDialogue
	classifier  *stubClassifier
	synthesizer *stubSynthesizer
	stager      *stubStager
	transcriber *stubTranscriber
}

func newHarness() *testHarness {
	return &testHarness{
		dialogue:    &stubDialogue{reply: "Thanks! Are you currently hiring for Full-time Line cook positions?"},
		classifier:  &stubClassifier{assessment: HiringAssessment{Status: StatusUncertain, Confidence: ConfidenceLow, Details: "unclear"}},
		synthesizer: &stubSynthesizer{},
		stager:      &stubStager{},
		transcriber: &stubTranscriber{},
	}
}

func (h *testHarness) engine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	eng, err := New(Services{
		Dialogue:    h.dialogue,
		Classifier:  h.classifier,
		Synthesizer: h.synthesizer,
		Transcriber: h.transcriber,
		Stager:      h.stager,
	}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

func testBusiness() BusinessIdentity {
	return BusinessIdentity{
		Name:           "Joe's Diner",
		Location:       "Springfield",
		Role:           "Line cook",
		EmploymentType: "Full-time",
	}
}

func TestNewRequiresCoreServices(t *testing.T) {
	h := newHarness()

	tests := []struct {
		name string
		svcs Services
	}{
		{"missing dialogue", Services{Classifier: h.classifier, Synthesizer: h.synthesizer}},
		{"missing classifier", Services{Dialogue: h.dialogue, Synthesizer: h.synthesizer}},
		{"missing synthesizer", Services{Dialogue: h.dialogue, Classifier: h.classifier}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.svcs); err == nil {
				t.Error("New should fail")
			}
		})
	}

	t.Run("transcriber and stager optional", func(t *testing.T) {
		if _, err := New(Services{Dialogue: h.dialogue, Classifier: h.classifier, Synthesizer: h.synthesizer}); err != nil {
			t.Errorf("New: %v", err)
		}
	})
}

func TestOnCallAnswered(t *testing.T) {
	h := newHarness()
	eng := h.engine(t)
	call := NewCallContext("CA100", testBusiness())

	instr := eng.OnCallAnswered(context.Background(), call)

	if !instr.Gather {
		t.Error("answered instruction should gather")
	}
	if instr.Speaks() {
		t.Errorf("engine should listen first, got audio %q speech %q", instr.AudioURL, instr.SpeechText)
	}
	if got := call.State(); got != AwaitingGreeting {
		t.Errorf("State = %v, want %v", got, AwaitingGreeting)
	}
}

func TestOnGreetingCaptured(t *testing.T) {
	t.Run("adaptive reply and transition", func(t *testing.T) {
		h := newHarness()
		eng := h.engine(t)
		call := NewCallContext("CA101", testBusiness())

		instr := eng.OnGreetingCaptured(context.Background(), call, Utterance{Text: "Hello?"})

		if !instr.Gather {
			t.Error("greeting reply should keep listening")
		}
		if instr.AudioURL == "" {
			t.Errorf("expected staged audio, got speech text %q", instr.SpeechText)
		}
		if h.dialogue.lastReq.IncomingText != "Hello?" {
			t.Errorf("IncomingText = %q, want %q", h.dialogue.lastReq.IncomingText, "Hello?")
		}
		if !h.dialogue.lastReq.IsFirstTurn {
			t.Error("greeting should be the first turn")
		}
		if got := call.State(); got != AwaitingHiringAnswer {
			t.Errorf("State = %v, want %v", got, AwaitingHiringAnswer)
		}
		if got := call.TurnIndex(); got != 1 {
			t.Errorf("TurnIndex = %d, want 1", got)
		}
	})

	t.Run("dialogue failure falls back to template", func(t *testing.T) {
		h := newHarness()
		h.dialogue.err = errors.New("model unavailable")
		eng := h.engine(t)
		call := NewCallContext("CA102", testBusiness())

		eng.OnGreetingCaptured(context.Background(), call, Utterance{Text: "Hello?"})

		turns := call.Turns()
		if len(turns) != 1 {
			t.Fatalf("len(Turns) = %d, want 1", len(turns))
		}
		reply := turns[0].OutgoingText
		if !strings.Contains(reply, "Line cook") || !strings.Contains(reply, "Full-time") {
			t.Errorf("fallback reply %q should name the position", reply)
		}
	})

	t.Run("empty greeting treated as hello", func(t *testing.T) {
		h := newHarness()
		eng := h.engine(t)
		call := NewCallContext("CA103", testBusiness())

		instr := eng.OnGreetingCaptured(context.Background(), call, Utterance{})

		if h.dialogue.lastReq.IncomingText != "Hello" {
			t.Errorf("IncomingText = %q, want %q", h.dialogue.lastReq.IncomingText, "Hello")
		}
		if !instr.Gather {
			t.Error("engine should still ask and listen")
		}
	})

	t.Run("audio-only utterance is transcribed", func(t *testing.T) {
		h := newHarness()
		h.transcriber.text = "Joe's Diner, how can I help?"
		eng := h.engine(t)
		call := NewCallContext("CA104", testBusiness())

		eng.OnGreetingCaptured(context.Background(), call, Utterance{AudioRef: "RE900"})

		if len(h.transcriber.refs) != 1 || h.transcriber.refs[0] != "RE900" {
			t.Fatalf("transcriber refs = %v, want [RE900]", h.transcriber.refs)
		}
		if h.dialogue.lastReq.IncomingText != "Joe's Diner, how can I help?" {
			t.Errorf("IncomingText = %q", h.dialogue.lastReq.IncomingText)
		}
	})

	t.Run("transcription failure degrades to empty text", func(t *testing.T) {
		h := newHarness()
		h.transcriber.err = errors.New("download failed")
		eng := h.engine(t)
		call := NewCallContext("CA105", testBusiness())

		instr := eng.OnGreetingCaptured(context.Background(), call, Utterance{AudioRef: "RE901"})

		if h.dialogue.lastReq.IncomingText != "Hello" {
			t.Errorf("IncomingText = %q, want %q", h.dialogue.lastReq.IncomingText, "Hello")
		}
		if !instr.Gather {
			t.Error("turn should continue despite transcription failure")
		}
	})
}

func TestOnHiringAnswerCaptured(t *testing.T) {
	// advance runs the greeting exchange so the call is awaiting an answer.
	advance := func(t *testing.T, eng *Engine, call *CallContext) {
		t.Helper()
		eng.OnGreetingCaptured(context.Background(), call, Utterance{Text: "Hello?"})
		if call.State() != AwaitingHiringAnswer {
			t.Fatalf("setup state = %v", call.State())
		}
	}

	t.Run("hiring answer terminates", func(t *testing.T) {
		h := newHarness()
		h.classifier.assessment = HiringAssessment{Status: StatusHiring, Confidence: ConfidenceHigh, Details: "said they are hiring"}
		eng := h.engine(t)
		call := NewCallContext("CA200", testBusiness())
		advance(t, eng, call)

		instr := eng.OnHiringAnswerCaptured(context.Background(), call, Utterance{Text: "Yes, we are hiring"})

		if !instr.Hangup {
			t.Error("terminal instruction should hang up")
		}
		if instr.Gather {
			t.Error("terminal instruction should not gather")
		}
		if got := call.State(); got != Terminated {
			t.Errorf("State = %v, want %v", got, Terminated)
		}
		outcome := call.Outcome()
		if outcome == nil {
			t.Fatal("Outcome = nil, want terminal outcome")
		}
		if outcome.FinalAssessment.Status != StatusHiring {
			t.Errorf("Status = %q, want %q", outcome.FinalAssessment.Status, StatusHiring)
		}
		if outcome.TurnsTaken != 1 {
			t.Errorf("TurnsTaken = %d, want 1", outcome.TurnsTaken)
		}
	})

	t.Run("closing line is spoken before hangup", func(t *testing.T) {
		h := newHarness()
		h.classifier.assessment = HiringAssessment{Status: StatusNotHiring, Confidence: ConfidenceHigh}
		eng := h.engine(t)
		call := NewCallContext("CA201", testBusiness())
		advance(t, eng, call)

		eng.OnHiringAnswerCaptured(context.Background(), call, Utterance{Text: "No, sorry"})

		turns := call.Turns()
		last := turns[len(turns)-1]
		if last.OutgoingText != ClosingLine {
			t.Errorf("closing text = %q, want %q", last.OutgoingText, ClosingLine)
		}
	})

	t.Run("uncertain answer loops", func(t *testing.T) {
		h := newHarness()
		eng := h.engine(t)
		call := NewCallContext("CA202", testBusiness())
		advance(t, eng, call)

		instr := eng.OnHiringAnswerCaptured(context.Background(), call, Utterance{Text: "What position?"})

		if !instr.Gather {
			t.Error("uncertain answer should keep listening")
		}
		if instr.Hangup {
			t.Error("uncertain answer should not hang up")
		}
		if got := call.State(); got != AwaitingHiringAnswer {
			t.Errorf("State = %v, want %v", got, AwaitingHiringAnswer)
		}
		if call.Outcome() != nil {
			t.Error("Outcome should be nil while the conversation loops")
		}
		if h.dialogue.lastReq.IsFirstTurn {
			t.Error("follow-up reply should not be a first-turn reply")
		}
	})

	t.Run("classifier failure uses keyword fallback", func(t *testing.T) {
		h := newHarness()
		h.classifier.err = errors.New("classifier down")
		eng := h.engine(t)
		call := NewCallContext("CA203", testBusiness())
		advance(t, eng, call)

		instr := eng.OnHiringAnswerCaptured(context.Background(), call, Utterance{Text: "No, we're not hiring"})

		if !instr.Hangup {
			t.Error("keyword NOT_HIRING should terminate")
		}
		outcome := call.Outcome()
		if outcome == nil {
			t.Fatal("Outcome = nil")
		}
		if outcome.FinalAssessment.Status != StatusNotHiring {
			t.Errorf("Status = %q, want %q", outcome.FinalAssessment.Status, StatusNotHiring)
		}
	})

	t.Run("empty answer loops as uncertain", func(t *testing.T) {
		h := newHarness()
		eng := h.engine(t)
		call := NewCallContext("CA204", testBusiness())
		advance(t, eng, call)

		instr := eng.OnHiringAnswerCaptured(context.Background(), call, Utterance{})

		if !instr.Gather {
			t.Error("silence should prompt a follow-up, not a hangup")
		}
		if call.Outcome() != nil {
			t.Error("silence should not terminate")
		}
	})
}

func TestMaxTurnsForcesTermination(t *testing.T) {
	h := newHarness()
	eng := h.engine(t, WithMaxTurns(2))
	call := NewCallContext("CA300", testBusiness())

	eng.OnGreetingCaptured(context.Background(), call, Utterance{Text: "Hello?"})

	instr := eng.OnHiringAnswerCaptured(context.Background(), call, Utterance{Text: "Hmm, not sure"})
	if instr.Hangup {
		t.Fatal("first uncertain answer should still loop")
	}

	instr = eng.OnHiringAnswerCaptured(context.Background(), call, Utterance{Text: "Who is this again?"})
	if !instr.Hangup {
		t.Fatal("budget exhausted, call should hang up")
	}

	outcome := call.Outcome()
	if outcome == nil {
		t.Fatal("Outcome = nil")
	}
	if outcome.FinalAssessment.Status != StatusUncertain {
		t.Errorf("Status = %q, want %q", outcome.FinalAssessment.Status, StatusUncertain)
	}
	if outcome.FinalAssessment.Details != "maximum follow-up turns reached" {
		t.Errorf("Details = %q", outcome.FinalAssessment.Details)
	}
	if outcome.TurnsTaken != 2 {
		t.Errorf("TurnsTaken = %d, want 2", outcome.TurnsTaken)
	}
}

func TestUnlimitedTurnsWhenCapDisabled(t *testing.T) {
	h := newHarness()
	eng := h.engine(t, WithMaxTurns(0))
	call := NewCallContext("CA301", testBusiness())

	eng.OnGreetingCaptured(context.Background(), call, Utterance{Text: "Hello?"})
	for i := 0; i < 20; i++ {
		instr := eng.OnHiringAnswerCaptured(context.Background(), call, Utterance{Text: "Hmm"})
		if instr.Hangup {
			t.Fatalf("call terminated at follow-up %d with cap disabled", i+1)
		}
	}
}

func TestSpeechDegradation(t *testing.T) {
	t.Run("synthesis failure uses provider speech", func(t *testing.T) {
		h := newHarness()
		h.synthesizer.err = errors.New("tts down")
		eng := h.engine(t)
		call := NewCallContext("CA400", testBusiness())

		instr := eng.OnGreetingCaptured(context.Background(), call, Utterance{Text: "Hello?"})

		if instr.AudioURL != "" {
			t.Errorf("AudioURL = %q, want empty on synthesis failure", instr.AudioURL)
		}
		if instr.SpeechText == "" {
			t.Error("SpeechText should carry the reply when synthesis fails")
		}
		if len(h.stager.names) != 0 {
			t.Errorf("stager should not run after failed synthesis, staged %v", h.stager.names)
		}
	})

	t.Run("staging failure uses provider speech", func(t *testing.T) {
		h := newHarness()
		h.stager.err = errors.New("disk full")
		eng := h.engine(t)
		call := NewCallContext("CA401", testBusiness())

		instr := eng.OnGreetingCaptured(context.Background(), call, Utterance{Text: "Hello?"})

		if instr.AudioURL != "" {
			t.Errorf("AudioURL = %q, want empty on staging failure", instr.AudioURL)
		}
		if instr.SpeechText == "" {
			t.Error("SpeechText should carry the reply when staging fails")
		}
	})

	t.Run("no stager skips synthesis", func(t *testing.T) {
		h := newHarness()
		eng, err := New(Services{
			Dialogue:    h.dialogue,
			Classifier:  h.classifier,
			Synthesizer: h.synthesizer,
		})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		call := NewCallContext("CA402", testBusiness())

		instr := eng.OnGreetingCaptured(context.Background(), call, Utterance{Text: "Hello?"})

		if h.synthesizer.calls != 0 {
			t.Errorf("synthesizer calls = %d, want 0 without a stager", h.synthesizer.calls)
		}
		if instr.SpeechText == "" {
			t.Error("SpeechText should carry the reply")
		}
	})

	t.Run("closing line survives synthesis failure", func(t *testing.T) {
		h := newHarness()
		h.classifier.assessment = HiringAssessment{Status: StatusHiring, Confidence: ConfidenceHigh}
		eng := h.engine(t)
		call := NewCallContext("CA403", testBusiness())
		eng.OnGreetingCaptured(context.Background(), call, Utterance{Text: "Hello?"})

		h.synthesizer.err = errors.New("tts down")
		instr := eng.OnHiringAnswerCaptured(context.Background(), call, Utterance{Text: "Yes, we are hiring"})

		if instr.SpeechText != ClosingLine {
			t.Errorf("SpeechText = %q, want %q", instr.SpeechText, ClosingLine)
		}
		if !instr.Hangup {
			t.Error("call should still hang up")
		}
		if call.Outcome() == nil {
			t.Error("outcome should still be recorded")
		}
	})
}

func TestTotalDegradation(t *testing.T) {
	h := newHarness()
	h.dialogue.err = errors.New("down")
	h.classifier.err = errors.New("down")
	h.synthesizer.err = errors.New("down")
	h.transcriber.err = errors.New("down")
	eng := h.engine(t)
	call := NewCallContext("CA500", testBusiness())

	instr := eng.OnGreetingCaptured(context.Background(), call, Utterance{Text: "Hello?"})
	if !instr.Speaks() || !instr.Gather {
		t.Errorf("degraded greeting instruction invalid: %+v", instr)
	}

	instr = eng.OnHiringAnswerCaptured(context.Background(), call, Utterance{Text: "nope"})
	if !instr.Speaks() || !instr.Hangup {
		t.Errorf("degraded terminal instruction invalid: %+v", instr)
	}
	if call.Outcome() == nil {
		t.Error("keyword fallback should still produce an outcome")
	}
}

func TestStagedAudioNames(t *testing.T) {
	h := newHarness()
	eng := h.engine(t)
	call := NewCallContext("CA600", testBusiness())

	eng.OnGreetingCaptured(context.Background(), call, Utterance{Text: "Hello?"})
	eng.OnHiringAnswerCaptured(context.Background(), call, Utterance{Text: "What position?"})

	want := []string{"CA600-turn-0", "CA600-turn-1"}
	if len(h.stager.names) != len(want) {
		t.Fatalf("staged names = %v, want %v", h.stager.names, want)
	}
	for i, name := range want {
		if h.stager.names[i] != name {
			t.Errorf("names[%d] = %q, want %q", i, h.stager.names[i], name)
		}
	}
}

func TestObserverEvents(t *testing.T) {
	var events []Event
	h := newHarness()
	h.classifier.assessment = HiringAssessment{Status: StatusHiring, Confidence: ConfidenceHigh}
	eng := h.engine(t, WithObserver(func(ev Event) { events = append(events, ev) }))
	call := NewCallContext("CA700", testBusiness())

	eng.OnGreetingCaptured(context.Background(), call, Utterance{Text: "Hello?"})
	eng.OnHiringAnswerCaptured(context.Background(), call, Utterance{Text: "Yes, we are hiring"})

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != EventTurn {
		t.Errorf("events[0].Type = %q, want %q", events[0].Type, EventTurn)
	}
	if events[0].Turn == nil || events[0].Turn.Incoming.Text != "Hello?" {
		t.Errorf("events[0].Turn = %+v", events[0].Turn)
	}
	if events[1].Type != EventOutcome {
		t.Errorf("events[1].Type = %q, want %q", events[1].Type, EventOutcome)
	}
	if events[1].Outcome == nil || events[1].Outcome.FinalAssessment.Status != StatusHiring {
		t.Errorf("events[1].Outcome = %+v", events[1].Outcome)
	}
	for i, ev := range events {
		if ev.CallID != "CA700" {
			t.Errorf("events[%d].CallID = %q, want CA700", i, ev.CallID)
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{AwaitingGreeting, "awaiting_greeting"},
		{RespondingToGreeting, "responding_to_greeting"},
		{AwaitingHiringAnswer, "awaiting_hiring_answer"},
		{Analyzing, "analyzing"},
		{Terminated, "terminated"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCallContextTurnsIsCopy(t *testing.T) {
	h := newHarness()
	eng := h.engine(t)
	call := NewCallContext("CA800", testBusiness())
	eng.OnGreetingCaptured(context.Background(), call, Utterance{Text: "Hello?"})

	turns := call.Turns()
	turns[0].OutgoingText = "mutated"

	if got := call.Turns()[0].OutgoingText; got == "mutated" {
		t.Error("Turns should return a copy")
	}
}

func ExampleFallbackReply() {
	fmt.Println(FallbackReply(BusinessIdentity{Role: "Barista", EmploymentType: "Part-time"}))
	// Output: Hi! I'm calling to ask if you're currently hiring for Part-time Barista.
}
