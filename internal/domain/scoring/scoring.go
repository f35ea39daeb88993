// Package scoring implements Tier 2 relevance and sentiment scoring on top of
// a text completion backend.
package scoring

import (
	"context"
	"fmt"
	"time"
)

const defaultTimeout = 30 * time.Second

// Completer sends one system and user message pair to a language model and
// returns the first text block of its reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Scorer scores a batch of post texts. Results are aligned with the input;
// an error means the whole batch failed.
type Scorer interface {
	Score(ctx context.Context, texts []string) ([]Result, error)
}

// Option applies a configuration option to the LLMScorer.
type Option func(*LLMScorer)

// WithTimeout bounds each scoring call.
func WithTimeout(d time.Duration) Option {
	return func(s *LLMScorer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSystemPrompt replaces the default instruction.
func WithSystemPrompt(prompt string) Option {
	return func(s *LLMScorer) {
		if prompt != "" {
			s.system = prompt
		}
	}
}

// LLMScorer implements Scorer with a Completer.
type LLMScorer struct {
	completer Completer
	system    string
	timeout   time.Duration
}

// NewLLMScorer builds a scorer around completer.
func NewLLMScorer(completer Completer, opts ...Option) *LLMScorer {
	s := &LLMScorer{
		completer: completer,
		system:    SystemPrompt,
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score sends texts as one numbered prompt and parses the reply.
func (s *LLMScorer) Score(ctx context.Context, texts []string) ([]Result, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.completer.Complete(ctx, s.system, BuildUserPrompt(texts))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	return ParseResponse(reply, len(texts))
}
