package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"

	"revclean/internal/apigee"
)

// DefaultDeleteConcurrency is the maximum number of delete requests in flight
// across a whole run.
const DefaultDeleteConcurrency = 4

type RevisionDeleter interface {
	DeleteRevision(ctx context.Context, kind apigee.Kind, name string, revision int) error
}

// Deleter issues revision deletes through a limiter shared by every entity
// and collection that uses it.
type Deleter struct {
	api   RevisionDeleter
	limit *semaphore.Weighted
}

func NewDeleter(api RevisionDeleter, concurrency int64) (*Deleter, error) {
	if api == nil {
		return nil, errors.New("deleter: api is nil")
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("deleter: concurrency must be >= 1, got %d", concurrency)
	}
	return &Deleter{api: api, limit: semaphore.NewWeighted(concurrency)}, nil
}

// Delete removes the given revisions of one entity. A failed delete is
// reported and does not stop its siblings. The deleted revisions are returned
// in ascending order.
func (d *Deleter) Delete(ctx context.Context, ref EntityRef, revisions []int) (deleted []int, errs []error) {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		failed = make(map[int]error)
	)

	for _, rev := range revisions {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := d.limit.Acquire(ctx, 1)
			if err == nil {
				err = d.api.DeleteRevision(ctx, ref.Kind, ref.Name, rev)
				d.limit.Release(1)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[rev] = &OpError{Op: OpDelete, Kind: ref.Kind, Entity: ref.Name, Revision: rev, Err: err}
				return
			}
			deleted = append(deleted, rev)
		}()
	}
	wg.Wait()

	slices.Sort(deleted)
	for _, rev := range revisions {
		if err, ok := failed[rev]; ok {
			errs = append(errs, err)
		}
	}
	return deleted, errs
}
