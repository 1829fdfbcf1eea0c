// Package script provides a scripted responder: a participant driver that
// replays predefined outputs. It backs config-driven demo flocks and tests
// where no real model sits behind a participant.
package script

import (
	"context"
	"sync"

	"github.com/batonlabs/baton/pkg/domain"
)

// Line is one scripted reply.
type Line struct {
	// Text is the output text for the turn.
	Text string `json:"text" yaml:"text" mapstructure:"text"`
	// Next optionally names the participant to hand off to, bypassing rules.
	Next string `json:"next,omitempty" yaml:"next,omitempty" mapstructure:"next"`
	// Terminate ends the session after this turn.
	Terminate bool `json:"terminate,omitempty" yaml:"terminate,omitempty" mapstructure:"terminate"`
	// SetContext writes these keys to the shared context.
	SetContext map[string]any `json:"set_context,omitempty" yaml:"set_context,omitempty" mapstructure:"set_context"`
	// Tools are tool calls requested alongside the reply; the dispatcher
	// executes them and folds results into the turn.
	Tools []domain.ToolCall `json:"tools,omitempty" yaml:"tools,omitempty" mapstructure:"tools"`
}

// Responder replays lines in order. Once exhausted it repeats the last
// line, so a looping session keeps producing output instead of erroring.
type Responder struct {
	mu    sync.Mutex
	lines []Line
	i     int
}

// New creates a scripted responder from the given lines.
func New(lines ...Line) *Responder {
	return &Responder{lines: lines}
}

// Respond yields the next scripted line as a turn output.
func (r *Responder) Respond(ctx context.Context, state *domain.State) (domain.Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.lines) == 0 {
		return domain.Output{}, nil
	}

	line := r.lines[r.i]
	if r.i < len(r.lines)-1 {
		r.i++
	}

	output := domain.Output{Text: line.Text, ToolCalls: line.Tools}
	if line.Next != "" || line.Terminate || len(line.SetContext) > 0 {
		output.Directive = &domain.Directive{
			Next:       line.Next,
			Terminate:  line.Terminate,
			SetContext: line.SetContext,
		}
	}
	return output, nil
}
