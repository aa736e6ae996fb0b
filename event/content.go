// Package event defines the Content/Part/Event data model shared by every
// other package in the runtime, the branch-path lineage scheme used to scope
// sub-agent history, and the history-view construction rules that turn a
// session's event log into the ordered Content list a model call sees.
package event

import "fmt"

// Role identifies who a Content belongs to in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Part is a tagged variant of content carried by a Content. Implementations
// are Text, Image, FunctionCall, and FunctionResponse.
type Part interface {
	isPart()
}

type (
	// Text is plain visible text.
	Text struct {
		Text string
	}

	// Image carries inline binary image data.
	Image struct {
		MIME string
		Data []byte
	}

	// FunctionCall is a model-issued request to invoke a tool. ID is assigned
	// by a response processor when the model does not supply one; see
	// flow.AssignMissingFunctionIDProcessor.
	FunctionCall struct {
		ID   string
		Name string
		Args map[string]any
	}

	// FunctionResponse carries a tool's result (or failure) back to the
	// model. ID must match the FunctionCall.ID it answers.
	FunctionResponse struct {
		ID      string
		Name    string
		Content string
		Error   string
	}
)

func (Text) isPart()             {}
func (Image) isPart()            {}
func (FunctionCall) isPart()     {}
func (FunctionResponse) isPart() {}

// Content is an ordered sequence of Parts attributed to a single Role.
// Content is immutable once appended to a session's event log.
type Content struct {
	Role  Role
	Parts []Part
}

// NewTextContent builds a single-part Text content for the given role.
func NewTextContent(role Role, text string) Content {
	return Content{Role: role, Parts: []Part{Text{Text: text}}}
}

// FunctionCalls returns every FunctionCall part in the content, in order.
func (c Content) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range c.Parts {
		if fc, ok := p.(FunctionCall); ok {
			calls = append(calls, fc)
		}
	}
	return calls
}

// FunctionResponses returns every FunctionResponse part in the content, in
// order.
func (c Content) FunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range c.Parts {
		if fr, ok := p.(FunctionResponse); ok {
			responses = append(responses, fr)
		}
	}
	return responses
}

// Text concatenates every Text part's text, in order, separated by nothing.
// It is a convenience for callers that only care about the visible text of a
// content (e.g. logging, transcripts).
func (c Content) Text() string {
	var s string
	for _, p := range c.Parts {
		if t, ok := p.(Text); ok {
			s += t.Text
		}
	}
	return s
}

func (c Content) String() string {
	return fmt.Sprintf("Content{role=%s, parts=%d}", c.Role, len(c.Parts))
}
