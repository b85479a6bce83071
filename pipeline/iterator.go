package pipeline

import "context"

// Iterator provides pull-based sequential access to a stream of values.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

type sliceIter[T any] struct {
	items []T
	index int
}

func (it *sliceIter[T]) Next(_ context.Context) (T, bool, error) {
	if it.index >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	val := it.items[it.index]
	it.index++
	return val, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }

// chanIter reads values from a channel until it is closed.
type chanIter[T any] struct {
	ch <-chan T
}

func (it *chanIter[T]) Next(ctx context.Context) (T, bool, error) {
	select {
	case v, open := <-it.ch:
		return v, open, nil
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

func (it *chanIter[T]) Close() error { return nil }

type rangeIter struct {
	next, end int
}

func (it *rangeIter) Next(_ context.Context) (any, bool, error) {
	if it.next >= it.end {
		return nil, false, nil
	}
	v := it.next
	it.next++
	return v, true, nil
}

func (it *rangeIter) Close() error { return nil }

type errIter struct {
	err error
}

func (it errIter) Next(_ context.Context) (any, bool, error) { return nil, false, it.err }
func (it errIter) Close() error                              { return nil }

// anyIter erases the element type of an Iterator.
type anyIter[T any] struct {
	it Iterator[T]
}

func (a anyIter[T]) Next(ctx context.Context) (any, bool, error) {
	v, ok, err := a.it.Next(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}
	return v, true, nil
}

func (a anyIter[T]) Close() error { return a.it.Close() }
