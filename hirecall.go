// Package hirecall places automated phone calls to businesses, holds a short
// adaptive conversation to find out whether the business is hiring, and
// reports a structured outcome.
//
// The heart of the system is the conversation engine:
//   - engine: webhook-driven turn state machine, fallback policy, termination
//   - telephony: Twilio call placement, webhook handling, TwiML rendering
//   - dialogue, classify, transcribe, synthesis: thin providers over
//     OpenAI-compatible speech and language APIs
//   - staging: HTTP-served audio artifacts for call playback
//   - discovery: business lookup via the Google Geocoding and Places APIs
//   - feed: WebSocket broadcast of live call transcripts and outcomes
//
// # Environment Variables
//
//	TWILIO_ACCOUNT_SID - Twilio Account SID
//	TWILIO_AUTH_TOKEN  - Twilio Auth Token
//	SPEECH_API_KEY     - key for the OpenAI-compatible speech/language API
//	PLACES_API_KEY     - Google Maps Platform key (business discovery)
//
// # Quick Start
//
//	import (
//	    "github.com/outreachlabs/hirecall/engine"
//	    "github.com/outreachlabs/hirecall/telephony"
//	)
//
//	// Create the telephony adapter and the conversation engine,
//	// then serve the webhook routes (see cmd/hirecall).
package hirecall

// Version is the hirecall version.
const Version = "0.1.0"

// Twilio call status constants, as delivered on status callbacks.
const (
	CallStatusQueued     = "queued"
	CallStatusRinging    = "ringing"
	CallStatusInProgress = "in-progress"
	CallStatusCompleted  = "completed"
	CallStatusBusy       = "busy"
	CallStatusFailed     = "failed"
	CallStatusNoAnswer   = "no-answer"
	CallStatusCanceled   = "canceled"
)
