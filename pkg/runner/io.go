package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/batonlabs/baton/pkg/domain"
)

// IOHandler defines the strategy for presenting a conversation and reading
// human input. This allows switching between plain text and rendered TUI
// modes without touching the loop.
type IOHandler interface {
	// Output presents newly recorded turns to the user.
	Output(ctx context.Context, turns []domain.Turn) error

	// Input reads a line of human input for the gate. Returning an empty
	// string is the skip signal.
	Input(ctx context.Context) (string, error)
}

// ContentRenderer transforms turn text before output, e.g. markdown to
// ANSI. Kept as a function so the loop has no TUI dependency.
type ContentRenderer func(string) (string, error)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
	}
}

func (h *TextHandler) Output(ctx context.Context, turns []domain.Turn) error {
	for _, turn := range turns {
		if turn.Output.IsError() {
			fmt.Fprintf(h.Writer, "[%s] error: %s\n", turn.Participant, turn.Output.Err)
			continue
		}

		text := turn.Output.Text
		if h.Renderer != nil {
			if rendered, err := h.Renderer(text); err == nil {
				text = rendered
			}
		}
		fmt.Fprintf(h.Writer, "[%s] %s\n", turn.Participant, strings.TrimSpace(text))

		for _, result := range turn.Output.ToolResults {
			if result.IsError {
				fmt.Fprintf(h.Writer, "  tool %s failed: %s\n", result.Name, result.Error)
			} else {
				fmt.Fprintf(h.Writer, "  tool %s: %v\n", result.Name, result.Result)
			}
		}
	}
	return nil
}

func (h *TextHandler) Input(ctx context.Context) (string, error) {
	for {
		fmt.Fprint(h.Writer, "> ")

		text, err := h.Reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && text != "" {
				return SanitizeInput(strings.TrimSpace(text))
			}
			return "", err
		}

		// Size cap, UTF-8 and control-char policy hold on the interactive
		// path too, same as the HTTP and MCP gates.
		clean, err := SanitizeInput(strings.TrimSpace(text))
		if err != nil {
			fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
			continue
		}
		return clean, nil
	}
}
