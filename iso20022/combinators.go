package iso20022

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

func newDerivedSequence[E any](ctx context.Context) (*EntrySequence[E], context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	seq := &EntrySequence[E]{
		items:  make(chan entryResult[E]),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	return seq, runCtx
}

// Take returns a sequence yielding at most the first n successfully
// parsed entries of src, then stopping. Entry-level errors are passed
// through without counting toward n. src is closed once Take's output
// sequence is exhausted or closed.
func Take[E any](ctx context.Context, src *EntrySequence[E], n uint64) *EntrySequence[E] {
	out, runCtx := newDerivedSequence[E](ctx)
	out.Detection, out.CorrelationID = src.Detection, src.CorrelationID

	go func() {
		defer close(out.done)
		defer close(out.items)
		defer src.Close()

		var count uint64
		for count < n {
			entry, warnings, ok, err := src.Next(runCtx)
			if !ok {
				if err != nil {
					sendItem(runCtx, out.items, entryResult[E]{err: err})
				}
				return
			}
			if !sendItem(runCtx, out.items, entryResult[E]{entry: entry, warnings: warnings, err: err}) {
				return
			}
			if err == nil {
				count++
			}
		}
	}()
	return out
}

// Skip returns a sequence that discards the first n successfully
// parsed entries of src and yields everything after, including any
// entry-level errors encountered along the way (those do not count
// toward n).
func Skip[E any](ctx context.Context, src *EntrySequence[E], n uint64) *EntrySequence[E] {
	out, runCtx := newDerivedSequence[E](ctx)
	out.Detection, out.CorrelationID = src.Detection, src.CorrelationID

	go func() {
		defer close(out.done)
		defer close(out.items)
		defer src.Close()

		var skipped uint64
		for {
			entry, warnings, ok, err := src.Next(runCtx)
			if !ok {
				if err != nil {
					sendItem(runCtx, out.items, entryResult[E]{err: err})
				}
				return
			}
			if err == nil && skipped < n {
				skipped++
				continue
			}
			if !sendItem(runCtx, out.items, entryResult[E]{entry: entry, warnings: warnings, err: err}) {
				return
			}
		}
	}()
	return out
}

func sendItem[E any](ctx context.Context, ch chan entryResult[E], item entryResult[E]) bool {
	select {
	case ch <- item:
		return true
	case <-ctx.Done():
		return false
	}
}

// BatchSequence groups a source sequence's successfully parsed entries
// into fixed-size slices, returned by Batch.
type BatchSequence[E any] struct {
	src  *EntrySequence[E]
	size int
}

// Batch wraps src so that Next returns up to size entries at a time. A
// final short batch is returned once src is exhausted mid-group.
// Entry-level errors are dropped from the batch stream; a caller that
// needs to observe them should read src directly instead. size <= 0
// fails with KindArgumentOutOfRange.
func Batch[E any](src *EntrySequence[E], size int) (*BatchSequence[E], error) {
	if size <= 0 {
		return nil, newArgumentOutOfRangeError(fmt.Errorf("batch size must be positive, got %d", size))
	}
	return &BatchSequence[E]{src: src, size: size}, nil
}

// Next returns the next batch, nil with ok=false once src is
// exhausted, or an error from the underlying sequence.
func (b *BatchSequence[E]) Next(ctx context.Context) (batch []E, ok bool, err error) {
	out := make([]E, 0, b.size)
	for len(out) < b.size {
		entry, _, more, nextErr := b.src.Next(ctx)
		if !more {
			if nextErr != nil {
				return nil, false, nextErr
			}
			if len(out) > 0 {
				return out, true, nil
			}
			return nil, false, nil
		}
		if nextErr != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, true, nil
}

// Close releases the underlying source sequence.
func (b *BatchSequence[E]) Close() error { return b.src.Close() }

// Buffer prefetches up to capacity entries ahead of consumption,
// decoupling a slow downstream consumer from src's own pace. Closing
// the returned sequence also closes src. capacity <= 0 fails with
// KindArgumentOutOfRange.
func Buffer[E any](ctx context.Context, src *EntrySequence[E], capacity int) (*EntrySequence[E], error) {
	if capacity <= 0 {
		return nil, newArgumentOutOfRangeError(fmt.Errorf("buffer capacity must be positive, got %d", capacity))
	}
	runCtx, cancel := context.WithCancel(ctx)
	out := &EntrySequence[E]{
		Detection:     src.Detection,
		CorrelationID: src.CorrelationID,
		items:         make(chan entryResult[E], capacity),
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	go func() {
		defer close(out.done)
		defer close(out.items)
		defer src.Close()
		for {
			entry, warnings, ok, err := src.Next(runCtx)
			if !ok {
				if err != nil {
					sendItem(runCtx, out.items, entryResult[E]{err: err})
				}
				return
			}
			if !sendItem(runCtx, out.items, entryResult[E]{entry: entry, warnings: warnings, err: err}) {
				return
			}
		}
	}()
	return out, nil
}

// ParallelMap applies fn to each successfully parsed entry of src using
// up to concurrency workers bounded by a weighted semaphore. Delivery
// is unordered: each worker hands its result to the output sequence as
// soon as fn returns, so a slow item never blocks faster peers — a
// caller that needs document order must serialize downstream. A failed
// fn call delivers its error and cancels the remaining workers.
// Entry-level errors from src pass through untransformed; fn is never
// called for them. concurrency <= 0 fails with KindArgumentOutOfRange.
func ParallelMap[E any, R any](ctx context.Context, src *EntrySequence[E], concurrency int64, fn func(E) (R, error)) (*EntrySequence[R], error) {
	if concurrency <= 0 {
		return nil, newArgumentOutOfRangeError(fmt.Errorf("max parallelism must be positive, got %d", concurrency))
	}
	runCtx, cancel := context.WithCancel(ctx)
	out := &EntrySequence[R]{
		Detection:     src.Detection,
		CorrelationID: src.CorrelationID,
		items:         make(chan entryResult[R]),
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	sem := semaphore.NewWeighted(concurrency)

	go func() {
		var wg sync.WaitGroup
		defer close(out.done)
		defer close(out.items)
		defer wg.Wait()
		defer src.Close()

		for {
			entry, _, ok, err := src.Next(runCtx)
			if !ok {
				if err != nil {
					sendItem(runCtx, out.items, entryResult[R]{err: err})
				}
				return
			}
			if err != nil {
				if !sendItem(runCtx, out.items, entryResult[R]{err: err}) {
					return
				}
				continue
			}
			if acqErr := sem.Acquire(runCtx, 1); acqErr != nil {
				return
			}
			wg.Add(1)
			item := entry
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				mapped, mapErr := fn(item)
				sendItem(runCtx, out.items, entryResult[R]{entry: mapped, err: mapErr})
				if mapErr != nil {
					cancel()
				}
			}()
		}
	}()

	return out, nil
}
