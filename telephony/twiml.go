package telephony

import (
	"encoding/xml"

	"github.com/outreachlabs/hirecall/engine"
)

// TwiML element types, marshaled in struct-field order.

// Say speaks text with the provider's built-in voice.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Play plays a staged audio artifact by URL.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

// Gather captures speech and posts the result to Action. A nested Say or
// Play is spoken before (and during) the capture window.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr,omitempty"`
	Language      string   `xml:"language,attr,omitempty"`
	Action        string   `xml:"action,attr,omitempty"`
	Method        string   `xml:"method,attr,omitempty"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	SpeechModel   string   `xml:"speechModel,attr,omitempty"`
	Say           *Say
	Play          *Play
}

// Redirect re-enters the webhook flow; placed after a Gather so silence
// still produces a webhook with an empty utterance.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Response is the TwiML document root.
type Response struct {
	XMLName  xml.Name `xml:"Response"`
	Gather   *Gather
	Say      *Say
	Play     *Play
	Redirect *Redirect
	Hangup   *Hangup
}

// apologyTwiML is the last-resort response when even instruction rendering
// fails: a generic apology and an immediate hangup. The caller never hears a
// service named.
const apologyTwiML = xml.Header + `<Response>
    <Say voice="alice">Sorry, we are having technical difficulties. Goodbye.</Say>
    <Hangup></Hangup>
</Response>`

// renderInstruction turns an engine call-control instruction into TwiML.
// Every instruction renders to a valid document; marshal failure degrades to
// the apology response.
func renderInstruction(in engine.Instruction, actionURL, voice string) string {
	resp := &Response{}

	var say *Say
	var play *Play
	if in.AudioURL != "" {
		play = &Play{URL: in.AudioURL}
	} else if in.SpeechText != "" {
		say = &Say{Voice: voice, Text: in.SpeechText}
	}

	if in.Gather {
		resp.Gather = &Gather{
			Input:         "speech",
			Language:      "en-US",
			Action:        actionURL,
			Method:        "POST",
			Timeout:       int(in.GatherTimeout.Seconds()),
			SpeechTimeout: "auto",
			SpeechModel:   "phone_call",
			Say:           say,
			Play:          play,
		}
		// Silence falls through the Gather; redirect so the turn still
		// reaches the engine as an empty utterance.
		resp.Redirect = &Redirect{Method: "POST", URL: actionURL}
	} else {
		resp.Say = say
		resp.Play = play
		if in.Hangup {
			resp.Hangup = &Hangup{}
		}
	}

	return marshalTwiML(resp)
}

// marshalTwiML renders a TwiML document, falling back to the apology
// response if marshaling fails.
func marshalTwiML(resp *Response) string {
	xmlBytes, err := xml.MarshalIndent(resp, "", "    ")
	if err != nil {
		return apologyTwiML
	}
	return xml.Header + string(xmlBytes)
}

// hangupTwiML is a bare hangup document.
func hangupTwiML() string {
	return marshalTwiML(&Response{Hangup: &Hangup{}})
}
