package interview

import "context"

// Oracle is the language model as seen by the scheduler. ok is false when
// the oracle could not produce an answer; callers fall back instead of failing.
type Oracle interface {
	Call(ctx context.Context, prompt, query string) (string, bool)
	Embed(ctx context.Context, text string) ([]float32, bool)
}
