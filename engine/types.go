package engine

import (
	"sync"
	"time"
)

// HiringStatus is the classified hiring judgment for a business utterance.
type HiringStatus string

// Hiring status values.
const (
	StatusHiring    HiringStatus = "HIRING"
	StatusNotHiring HiringStatus = "NOT_HIRING"
	StatusUncertain HiringStatus = "UNCERTAIN"
)

// Terminal reports whether the status ends the conversation.
// UNCERTAIN is the only status that permits another turn.
func (s HiringStatus) Terminal() bool {
	return s == StatusHiring || s == StatusNotHiring
}

// Confidence is the classifier's confidence level.
type Confidence string

// Confidence values.
const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// HiringAssessment is the result of classifying one business utterance.
// Confidence never affects the terminal-vs-loop decision; only Status does.
type HiringAssessment struct {
	Status     HiringStatus `json:"status"`
	Confidence Confidence   `json:"confidence"`
	Details    string       `json:"details"`
}

// BusinessIdentity identifies the business and the position being asked
// about. It is immutable for the lifetime of a call.
type BusinessIdentity struct {
	Name           string `json:"name"`
	Location       string `json:"location"`
	Role           string `json:"role"`
	EmploymentType string `json:"employment_type"`
}

// Utterance is one side's spoken contribution in a turn. AudioRef is an
// opaque recording reference owned by the telephony adapter; the engine only
// hands it to the transcription gateway. Text may be empty if nothing was
// captured.
type Utterance struct {
	AudioRef string `json:"audio_ref,omitempty"`
	Text     string `json:"text"`
}

// DialogueTurn is one exchange: what the business said and what the engine
// decided to say back.
type DialogueTurn struct {
	Incoming         Utterance `json:"incoming"`
	OutgoingText     string    `json:"outgoing_text"`
	OutgoingAudioURL string    `json:"outgoing_audio_url,omitempty"`
}

// ConversationOutcome is the final record of a completed conversation,
// produced exactly once per call.
type ConversationOutcome struct {
	FinalAssessment HiringAssessment `json:"final_assessment"`
	TurnsTaken      int              `json:"turns_taken"`
}

// State is a position in the conversation state machine.
type State int

// Conversation states.
const (
	AwaitingGreeting State = iota
	RespondingToGreeting
	AwaitingHiringAnswer
	Analyzing
	Terminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case AwaitingGreeting:
		return "awaiting_greeting"
	case RespondingToGreeting:
		return "responding_to_greeting"
	case AwaitingHiringAnswer:
		return "awaiting_hiring_answer"
	case Analyzing:
		return "analyzing"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// CallContext tracks one in-progress call. It is created when the outbound
// call is placed and discarded when the call ends. Turns within a call are
// strictly sequential, but the telephony adapter may inspect the context from
// status callbacks, so access is guarded.
type CallContext struct {
	id       string
	business BusinessIdentity
	started  time.Time

	mu        sync.RWMutex
	state     State
	turnIndex int
	turns     []DialogueTurn
	outcome   *ConversationOutcome
}

// NewCallContext creates the context for a freshly placed call.
func NewCallContext(id string, business BusinessIdentity) *CallContext {
	return &CallContext{
		id:       id,
		business: business,
		started:  time.Now(),
		state:    AwaitingGreeting,
	}
}

// ID returns the call identifier.
func (c *CallContext) ID() string {
	return c.id
}

// Business returns the business identity for the call.
func (c *CallContext) Business() BusinessIdentity {
	return c.business
}

// StartTime returns when the call context was created.
func (c *CallContext) StartTime() time.Time {
	return c.started
}

// State returns the current conversation state.
func (c *CallContext) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// TurnIndex returns the number of completed turns.
func (c *CallContext) TurnIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.turnIndex
}

// IsFirstTurn reports whether no turn has completed yet.
func (c *CallContext) IsFirstTurn() bool {
	return c.TurnIndex() == 0
}

// Turns returns a copy of the recorded exchanges.
func (c *CallContext) Turns() []DialogueTurn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	turns := make([]DialogueTurn, len(c.turns))
	copy(turns, c.turns)
	return turns
}

// Outcome returns the final outcome, or nil while the conversation is live.
func (c *CallContext) Outcome() *ConversationOutcome {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.outcome == nil {
		return nil
	}
	out := *c.outcome
	return &out
}

// setState moves the conversation to a new state.
func (c *CallContext) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// completeTurn records an exchange and advances the turn counter.
func (c *CallContext) completeTurn(turn DialogueTurn, next State) {
	c.mu.Lock()
	c.turns = append(c.turns, turn)
	c.turnIndex++
	c.state = next
	c.mu.Unlock()
}

// terminate records the final turn and outcome and ends the conversation.
func (c *CallContext) terminate(turn DialogueTurn, outcome ConversationOutcome) {
	c.mu.Lock()
	c.turns = append(c.turns, turn)
	c.turnIndex++
	c.state = Terminated
	c.outcome = &outcome
	c.mu.Unlock()
}
