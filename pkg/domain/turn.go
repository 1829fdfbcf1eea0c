package domain

import "time"

// ToolCall is a request from a participant to execute an external side-effect.
type ToolCall struct {
	ID   string         `json:"id" yaml:"id" mapstructure:"id"`
	Name string         `json:"name" yaml:"name" mapstructure:"name"`
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty" mapstructure:"args"`
}

// ToolResult is the outcome of a ToolCall, folded into the turn output
// before hand-off evaluation.
type ToolResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Result  any    `json:"result,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Directive is the structured part of a participant output. The router never
// interprets natural language; explicit routing intent arrives here.
type Directive struct {
	// Next names the participant that should act next. Takes precedence over
	// rule evaluation and must reference a registered participant.
	Next string `json:"next,omitempty"`
	// Terminate ends the session after this turn.
	Terminate bool `json:"terminate,omitempty"`
	// SetContext merges the given keys into the shared context store before
	// the next turn. Last write wins.
	SetContext map[string]any `json:"set_context,omitempty"`
}

// Output is what a participant produced during its turn.
type Output struct {
	Text        string       `json:"text,omitempty"`
	Directive   *Directive   `json:"directive,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	// Err carries an external call failure as a routable payload instead of
	// aborting the session.
	Err string `json:"err,omitempty"`
}

// IsError reports whether the output is an error payload.
func (o Output) IsError() bool { return o.Err != "" }

// Turn is one immutable transcript entry. Indices are strictly monotonic and
// contiguous from 0 within a session.
type Turn struct {
	Index       int    `json:"index"`
	Participant string `json:"participant"`
	Output      Output `json:"output"`
	At          time.Time `json:"at"`
}
