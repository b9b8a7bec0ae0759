package engine

import (
	"context"
	"errors"
	"fmt"
)

// ProcessFunc handles a single entity end to end.
type ProcessFunc func(ctx context.Context, ref EntityRef) EntityResult

type Scheduler struct {
	process     ProcessFunc
	concurrency int
}

func NewScheduler(process ProcessFunc, concurrency int) (*Scheduler, error) {
	if process == nil {
		return nil, errors.New("process func is nil")
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", concurrency)
	}
	return &Scheduler{process: process, concurrency: concurrency}, nil
}

// Execute streams per-entity results.
//
// Channel semantics:
//   - Exactly one EntityResult is sent per ref, in the order of refs, even
//     when entities complete out of order.
//   - On context cancellation, entities that have not started are reported
//     with the context error instead of being processed.
//   - The results channel is always closed.
func (s *Scheduler) Execute(ctx context.Context, refs []EntityRef) <-chan EntityResult {
	out := make(chan EntityResult)

	// One single-slot channel per entity lets workers finish in any order
	// while the emitter preserves listing order.
	slots := make([]chan EntityResult, len(refs))
	for i := range slots {
		slots[i] = make(chan EntityResult, 1)
	}

	go func() {
		sem := make(chan struct{}, s.concurrency)
		for i, ref := range refs {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				slots[i] <- EntityResult{Ref: ref, Errors: []error{ctx.Err()}}
				continue
			}

			go func() {
				defer func() { <-sem }()
				res := s.process(ctx, ref)
				res.Ref = ref
				slots[i] <- res
			}()
		}
	}()

	go func() {
		defer close(out)
		for _, slot := range slots {
			out <- <-slot
		}
	}()

	return out
}
