package domain

import "github.com/lodgeit-ai/ragchat/internal/domain/label"

// Classification is a tagged classifier result. Transport failures never
// escape the classifier: they surface as Fallback=true with the configured
// default label and a diagnostic reason.
type Classification struct {
	Label    label.Label
	Fallback bool
	Reason   string
}

// FragmentStream is a cancellable producer of generated text fragments.
// Recv returns io.EOF after the final fragment of a clean completion.
// Close releases the underlying connection and must be safe to call
// regardless of how far the stream was consumed.
type FragmentStream interface {
	Recv() (string, error)
	Close()
}
