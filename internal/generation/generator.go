// Package generation defines the answer generation boundary.
package generation

import (
	"context"
	"fmt"
)

// SystemPrompt is the fixed system role message sent with every prompt.
const SystemPrompt = "You are a tax assistant."

// Result is the outcome of one generation call. Exactly one of Text or Err
// is meaningful.
type Result struct {
	Text  string
	Model string
	Err   error
}

// Failed wraps err as a failed Result.
func Failed(err error) Result {
	return Result{Err: err}
}

// OK reports whether generation succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Message renders the result for display: the answer text, or a readable
// error line.
func (r Result) Message() string {
	if r.Err != nil {
		return fmt.Sprintf("Error calling LLM: %v", r.Err)
	}
	return r.Text
}

// Generator turns an assembled prompt into an answer. Implementations report
// failures through Result rather than panicking or returning errors.
type Generator interface {
	Generate(ctx context.Context, prompt string) Result
}
