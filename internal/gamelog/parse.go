package gamelog

import (
	"iter"
)

type parseOptions struct {
	cleanTags bool
}

// Option adjusts how a gamelog is parsed.
type Option func(*parseOptions)

// WithoutCleaning skips CleanTags, for text that was cleaned before it was stored.
func WithoutCleaning() Option {
	return func(o *parseOptions) { o.cleanTags = false }
}

func buildOptions(opts []Option) parseOptions {
	o := parseOptions{cleanTags: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Messages classifies every line of the gamelog, dropping lines that match
// no message shape. The sequence can only be consumed once.
func Messages(text string, opts ...Option) (iter.Seq[Message], error) {
	if buildOptions(opts).cleanTags {
		text = CleanTags(text)
	}
	lines, err := Lines(text)
	if err != nil {
		return nil, err
	}
	return func(yield func(Message) bool) {
		for line := range lines {
			if m, ok := Classify(line); ok && !yield(m) {
				return
			}
		}
	}, nil
}

// Parse feeds every message of the gamelog to the analyzer and returns its result.
func Parse[R any](text string, a Analyzer[R], opts ...Option) (R, error) {
	var zero R
	messages, err := Messages(text, opts...)
	if err != nil {
		return zero, err
	}
	for m := range messages {
		if err := a.Consume(m); err != nil {
			return zero, err
		}
	}
	return a.Result()
}

// ParseResult works out the result of the match recorded in a gamelog.
func ParseResult(text string, opts ...Option) (*GameResult, error) {
	return Parse[*GameResult](text, NewResultAnalyzer(), opts...)
}

// ParseWithCount returns the match result together with the number of
// classified messages.
func ParseWithCount(text string, opts ...Option) (*GameResult, int, error) {
	r, err := Parse[Pair[*GameResult, int]](text, Zip[*GameResult, int](NewResultAnalyzer(), &MessageCounter{}), opts...)
	if err != nil {
		return nil, 0, err
	}
	return r.First, r.Second, nil
}
