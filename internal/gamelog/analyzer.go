package gamelog

// Analyzer consumes a gamelog's messages in order and then produces a result.
type Analyzer[R any] interface {
	Consume(m Message) error
	Result() (R, error)
}

// Pair holds the results of two analyzers run over the same messages.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Zipped forwards every message to two analyzers.
type Zipped[A, B any] struct {
	x Analyzer[A]
	y Analyzer[B]
}

// Zip runs x and y in a single pass.
func Zip[A, B any](x Analyzer[A], y Analyzer[B]) *Zipped[A, B] {
	return &Zipped[A, B]{x: x, y: y}
}

func (z *Zipped[A, B]) Consume(m Message) error {
	if err := z.x.Consume(m); err != nil {
		return err
	}
	return z.y.Consume(m)
}

func (z *Zipped[A, B]) Result() (Pair[A, B], error) {
	a, err := z.x.Result()
	if err != nil {
		return Pair[A, B]{}, err
	}
	b, err := z.y.Result()
	if err != nil {
		return Pair[A, B]{}, err
	}
	return Pair[A, B]{First: a, Second: b}, nil
}

// MessageCounter counts classified messages. Of two transcripts of the same
// match, the one with more messages is the richer one.
type MessageCounter struct {
	count int
}

func (c *MessageCounter) Consume(Message) error {
	c.count++
	return nil
}

func (c *MessageCounter) Result() (int, error) {
	return c.count, nil
}
