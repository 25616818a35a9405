// Package apl builds the presentation directives sent to the display client:
// the layout document rendered once per loop and the command batches that
// advance the slideshow one step at a time.
package apl

// Command types understood by the client.
const (
	CommandSetValue    = "SetValue"
	CommandAnimateItem = "AnimateItem"
	CommandIdle        = "Idle"
	CommandSendEvent   = "SendEvent"
	CommandBack        = "Back"
)

// Directive types.
const (
	DirectiveRenderDocument  = "Alexa.Presentation.APL.RenderDocument"
	DirectiveExecuteCommands = "Alexa.Presentation.APL.ExecuteCommands"
)

// Command is one instruction in a step batch.
type Command interface {
	CommandType() string
}

// SetValue changes a property of a component.
type SetValue struct {
	Type        string `json:"type"`
	ComponentID string `json:"componentId"`
	Property    string `json:"property"`
	Value       any    `json:"value"`
}

// CommandType implements Command.
func (c SetValue) CommandType() string { return c.Type }

// AnimatedProperty is one property transition of an AnimateItem command.
type AnimatedProperty struct {
	Property string `json:"property"`
	From     any    `json:"from"`
	To       any    `json:"to"`
}

// AnimateItem animates properties of a component over Duration milliseconds.
type AnimateItem struct {
	Type        string             `json:"type"`
	ComponentID string             `json:"componentId"`
	Easing      string             `json:"easing"`
	Duration    int                `json:"duration"`
	Value       []AnimatedProperty `json:"value"`
}

// CommandType implements Command.
func (c AnimateItem) CommandType() string { return c.Type }

// Idle pauses the command sequence on the client.
type Idle struct {
	Type  string `json:"type"`
	Delay int    `json:"delay"`
}

// CommandType implements Command.
func (c Idle) CommandType() string { return c.Type }

// SendEvent makes the client call back into the skill with Arguments.
type SendEvent struct {
	Type      string   `json:"type"`
	Arguments []string `json:"arguments"`
}

// CommandType implements Command.
func (c SendEvent) CommandType() string { return c.Type }

// Back navigates the client away from the current document.
type Back struct {
	Type string `json:"type"`
}

// CommandType implements Command.
func (c Back) CommandType() string { return c.Type }

// NewSetValue returns a SetValue command.
func NewSetValue(componentID, property string, value any) SetValue {
	return SetValue{Type: CommandSetValue, ComponentID: componentID, Property: property, Value: value}
}

// NewFadeIn returns a linear opacity animation from 0 to 1.
func NewFadeIn(componentID string, durationMs int) AnimateItem {
	return AnimateItem{
		Type:        CommandAnimateItem,
		ComponentID: componentID,
		Easing:      "linear",
		Duration:    durationMs,
		Value:       []AnimatedProperty{{Property: "opacity", From: 0, To: 1}},
	}
}

// NewIdle returns an Idle command.
func NewIdle(delayMs int) Idle {
	return Idle{Type: CommandIdle, Delay: delayMs}
}

// NewSendEvent returns a SendEvent command.
func NewSendEvent(args []string) SendEvent {
	return SendEvent{Type: CommandSendEvent, Arguments: args}
}

// NewBack returns a Back command.
func NewBack() Back {
	return Back{Type: CommandBack}
}

// Directive is one entry of the response's directive list.
type Directive interface {
	DirectiveType() string
}

// RenderDocument replaces the client's document.
type RenderDocument struct {
	Type     string         `json:"type"`
	Token    string         `json:"token"`
	Document map[string]any `json:"document"`
}

// DirectiveType implements Directive.
func (d RenderDocument) DirectiveType() string { return d.Type }

// ExecuteCommands runs a command batch against the document named by Token.
type ExecuteCommands struct {
	Type     string    `json:"type"`
	Token    string    `json:"token"`
	Commands []Command `json:"commands"`
}

// DirectiveType implements Directive.
func (d ExecuteCommands) DirectiveType() string { return d.Type }

// NewRenderDocument returns a RenderDocument directive.
func NewRenderDocument(token string, doc *Document) RenderDocument {
	return RenderDocument{Type: DirectiveRenderDocument, Token: token, Document: doc.Content()}
}

// NewExecuteCommands returns an ExecuteCommands directive.
func NewExecuteCommands(token string, cmds []Command) ExecuteCommands {
	return ExecuteCommands{Type: DirectiveExecuteCommands, Token: token, Commands: cmds}
}
