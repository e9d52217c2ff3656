package analyzer

import "context"

// Completer sends instructions plus content to a language model and returns
// its raw text answer, which is expected to hold a JSON object.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, system, user string) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// Provider names accepted by configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)
