package event

import (
	"encoding/json"
	"errors"
	"time"
)

// partEnvelope is the wire representation of a Part used to round-trip the
// Part interface through JSON (session stores, transport). Type selects
// which fields are meaningful.
type partEnvelope struct {
	Type string         `json:"type"`
	Text string         `json:"text,omitempty"`
	MIME string         `json:"mime,omitempty"`
	Data []byte         `json:"data,omitempty"`
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name,omitempty"`
	Args map[string]any `json:"args,omitempty"`

	// Content and Error are FunctionResponse-only fields. They are named
	// distinctly from the outer Content struct to avoid confusion when
	// reading a raw envelope.
	ResponseContent string `json:"response_content,omitempty"`
	ResponseError   string `json:"response_error,omitempty"`
}

func (p Text) toEnvelope() partEnvelope {
	return partEnvelope{Type: "text", Text: p.Text}
}

func (p Image) toEnvelope() partEnvelope {
	return partEnvelope{Type: "image", MIME: p.MIME, Data: p.Data}
}

func (p FunctionCall) toEnvelope() partEnvelope {
	return partEnvelope{Type: "function_call", ID: p.ID, Name: p.Name, Args: p.Args}
}

func (p FunctionResponse) toEnvelope() partEnvelope {
	return partEnvelope{Type: "function_response", ID: p.ID, Name: p.Name, ResponseContent: p.Content, ResponseError: p.Error}
}

func (e partEnvelope) toPart() (Part, error) {
	switch e.Type {
	case "text":
		return Text{Text: e.Text}, nil
	case "image":
		return Image{MIME: e.MIME, Data: e.Data}, nil
	case "function_call":
		return FunctionCall{ID: e.ID, Name: e.Name, Args: e.Args}, nil
	case "function_response":
		return FunctionResponse{ID: e.ID, Name: e.Name, Content: e.ResponseContent, Error: e.ResponseError}, nil
	default:
		return nil, &unknownPartTypeError{Type: e.Type}
	}
}

type unknownPartTypeError struct {
	Type string
}

func (e *unknownPartTypeError) Error() string {
	return "event: unknown part type " + e.Type
}

// contentWire is the JSON wire shape for Content.
type contentWire struct {
	Role  Role           `json:"role"`
	Parts []partEnvelope `json:"parts"`
}

// MarshalJSON implements json.Marshaler so Content round-trips through the
// Part interface.
func (c Content) MarshalJSON() ([]byte, error) {
	wire := contentWire{Role: c.Role, Parts: make([]partEnvelope, len(c.Parts))}
	for i, p := range c.Parts {
		switch v := p.(type) {
		case Text:
			wire.Parts[i] = v.toEnvelope()
		case Image:
			wire.Parts[i] = v.toEnvelope()
		case FunctionCall:
			wire.Parts[i] = v.toEnvelope()
		case FunctionResponse:
			wire.Parts[i] = v.toEnvelope()
		}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Content) UnmarshalJSON(data []byte) error {
	var wire contentWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	parts := make([]Part, len(wire.Parts))
	for i, env := range wire.Parts {
		p, err := env.toPart()
		if err != nil {
			return err
		}
		parts[i] = p
	}
	c.Role = wire.Role
	c.Parts = parts
	return nil
}

// eventWire is the JSON wire shape for Event. Err is flattened to a string
// because the error interface cannot round-trip through encoding/json.
type eventWire struct {
	ID                 string    `json:"id"`
	InvocationID       string    `json:"invocation_id"`
	Author             string    `json:"author"`
	Kind               Kind      `json:"kind"`
	Timestamp          time.Time `json:"timestamp"`
	Branch             Branch    `json:"branch"`
	Content            *Content  `json:"content,omitempty"`
	Actions            *Actions  `json:"actions,omitempty"`
	LongRunningToolIDs []string  `json:"long_running_tool_ids,omitempty"`
	Err                string    `json:"error,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	wire := eventWire{
		ID:                 e.ID,
		InvocationID:       e.InvocationID,
		Author:             e.Author,
		Kind:               e.Kind,
		Timestamp:          e.Timestamp,
		Branch:             e.Branch,
		Content:            e.Content,
		Actions:            e.Actions,
		LongRunningToolIDs: e.LongRunningToolIDs,
	}
	if e.Err != nil {
		wire.Err = e.Err.Error()
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Event) UnmarshalJSON(data []byte) error {
	var wire eventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	e.ID = wire.ID
	e.InvocationID = wire.InvocationID
	e.Author = wire.Author
	e.Kind = wire.Kind
	e.Timestamp = wire.Timestamp
	e.Branch = wire.Branch
	e.Content = wire.Content
	e.Actions = wire.Actions
	e.LongRunningToolIDs = wire.LongRunningToolIDs
	if wire.Err != "" {
		e.Err = errors.New(wire.Err)
	}
	return nil
}
