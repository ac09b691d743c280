package engine

import "time"

// Instruction is one call-control decision handed back to the telephony
// adapter at the end of a webhook turn. AudioURL and SpeechText are mutually
// exclusive: AudioURL points at a staged artifact to play, SpeechText is
// rendered with the telephony provider's built-in text-to-speech.
type Instruction struct {
	// AudioURL is the staged audio artifact to play, if synthesis and
	// staging succeeded.
	AudioURL string

	// SpeechText is the literal text to speak with the provider's native
	// voice when no staged artifact is available.
	SpeechText string

	// Gather keeps the line open and captures the next utterance after
	// playback finishes.
	Gather bool

	// Hangup ends the call after playback.
	Hangup bool

	// GatherTimeout is the maximum time to wait for the next utterance.
	GatherTimeout time.Duration
}

// Speaks reports whether the instruction plays or says anything.
func (in Instruction) Speaks() bool {
	return in.AudioURL != "" || in.SpeechText != ""
}
