package pipeline

import "context"

// Source opens a fresh Iterator for one activation.
type Source func(ctx context.Context) Iterator[any]

// Just creates a pipeline emitting values in order.
func Just(values ...any) *Pipeline {
	items := append([]any(nil), values...)
	return newPipeline("just", func(context.Context) Iterator[any] {
		return &sliceIter[any]{items: items}
	})
}

// FromSlice creates a pipeline emitting the elements of items.
func FromSlice[T any](items []T) *Pipeline {
	values := make([]any, len(items))
	for i, v := range items {
		values[i] = v
	}
	return newPipeline("slice", func(context.Context) Iterator[any] {
		return &sliceIter[any]{items: values}
	})
}

// Range creates a pipeline emitting count ints starting at start.
func Range(start, count int) *Pipeline {
	if count < 0 {
		count = 0
	}
	return newPipeline("range", func(context.Context) Iterator[any] {
		return &rangeIter{next: start, end: start + count}
	})
}

// From creates a pipeline over an existing Iterator. The iterator is shared
// by every activation, so such a pipeline is meant to be activated once.
func From[T any](iter Iterator[T]) *Pipeline {
	return newPipeline("iterator", func(context.Context) Iterator[any] {
		return anyIter[T]{it: iter}
	})
}

// FromFunc creates a pipeline from a factory called once per activation.
func FromFunc[T any](fn func(ctx context.Context) Iterator[T]) *Pipeline {
	return newPipeline("func", func(ctx context.Context) Iterator[any] {
		return anyIter[T]{it: fn(ctx)}
	})
}

// FromChan creates a pipeline emitting values received from ch until it is
// closed.
func FromChan[T any](ch <-chan T) *Pipeline {
	return newPipeline("chan", func(context.Context) Iterator[any] {
		return anyIter[T]{it: &chanIter[T]{ch: ch}}
	})
}

// Error creates a pipeline whose source fails with err on activation.
func Error(err error) *Pipeline {
	return newPipeline("error", func(context.Context) Iterator[any] {
		return errIter{err: err}
	})
}

// Empty creates a pipeline that completes without emitting.
func Empty() *Pipeline {
	return newPipeline("empty", func(context.Context) Iterator[any] {
		return &sliceIter[any]{}
	})
}
