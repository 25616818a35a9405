// Package skill decodes the voice assistant's request envelope, routes it to
// the loop controller and encodes the response envelope.
package skill

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/thruflo/camloop/internal/apl"
)

// Request types.
const (
	RequestLaunch       = "LaunchRequest"
	RequestIntent       = "IntentRequest"
	RequestUserEvent    = "Alexa.Presentation.APL.UserEvent"
	RequestSessionEnded = "SessionEndedRequest"
)

// Intent names.
const (
	IntentOpenCamera = "OpenCameraByNumberIntent"
	IntentFallback   = "AMAZON.FallbackIntent"
	IntentCancel     = "AMAZON.CancelIntent"
	IntentStop       = "AMAZON.StopIntent"
)

const envelopeVersion = "1.0"

// RequestEnvelope is the body of one inbound call.
type RequestEnvelope struct {
	Version string  `json:"version"`
	Session Session `json:"session"`
	Request Request `json:"request"`
}

// Session carries the conversation identity and its persisted attributes.
type Session struct {
	New        bool           `json:"new"`
	SessionID  string         `json:"sessionId"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Request is the union of the request kinds the skill handles. Fields that do
// not apply to a given Type are left empty.
type Request struct {
	Type      string    `json:"type"`
	RequestID string    `json:"requestId"`
	Timestamp string    `json:"timestamp,omitempty"`
	Locale    string    `json:"locale,omitempty"`
	Intent    *Intent   `json:"intent,omitempty"`
	Token     string    `json:"token,omitempty"`
	Arguments Arguments `json:"arguments,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Intent is a recognized utterance with its slots.
type Intent struct {
	Name  string          `json:"name"`
	Slots map[string]Slot `json:"slots,omitempty"`
}

// Slot is one captured value of an intent.
type Slot struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// Arguments are the user event arguments as strings. The client may send
// numbers or booleans, which are kept in their JSON literal form.
type Arguments []string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Arguments) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("arguments: %w", err)
	}
	out := make(Arguments, 0, len(raw))
	for _, r := range raw {
		r = bytes.TrimSpace(r)
		if len(r) > 0 && r[0] == '"' {
			var s string
			if err := json.Unmarshal(r, &s); err != nil {
				return fmt.Errorf("arguments: %w", err)
			}
			out = append(out, s)
			continue
		}
		out = append(out, string(r))
	}
	*a = out
	return nil
}

// ResponseEnvelope is the body returned for one call.
type ResponseEnvelope struct {
	Version           string         `json:"version"`
	SessionAttributes map[string]any `json:"sessionAttributes,omitempty"`
	Response          Response       `json:"response"`
}

// Response holds what the assistant should say and do.
type Response struct {
	OutputSpeech     *OutputSpeech   `json:"outputSpeech,omitempty"`
	Directives       []apl.Directive `json:"directives,omitempty"`
	ShouldEndSession *bool           `json:"shouldEndSession,omitempty"`
}

// OutputSpeech is a plain text prompt.
type OutputSpeech struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// EndsSession reports whether the response closes the conversation.
func (r Response) EndsSession() bool {
	return r.ShouldEndSession != nil && *r.ShouldEndSession
}

func speak(text string) *OutputSpeech {
	return &OutputSpeech{Type: "PlainText", Text: text}
}

func endSession() Response {
	end := true
	return Response{ShouldEndSession: &end}
}
