package engine

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"revclean/internal/apigee"
)

// DefaultStatusConcurrency bounds in-flight deployment status queries per entity.
const DefaultStatusConcurrency = 4

type DeploymentChecker interface {
	DeploymentStatus(ctx context.Context, kind apigee.Kind, name string, revision int) (apigee.DeploymentStatus, error)
}

// Candidates returns the oldest len(revisions)-keep revisions in ascending
// order. The newest keep revisions are never part of the result. It returns
// nil when there are keep or fewer revisions.
func Candidates(revisions []int, keep int) []int {
	if keep < 0 {
		keep = 0
	}
	sorted := slices.Clone(revisions)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	if len(sorted) <= keep {
		return nil
	}
	return sorted[:len(sorted)-keep]
}

// Evaluation partitions the candidates of one entity. Every candidate lands
// in exactly one of Approved, Deployed or Errors.
type Evaluation struct {
	Candidates []int
	Approved   []int
	Deployed   []int
	Errors     []error
}

// Evaluate decides which revisions of one entity may be deleted. The
// candidate set is fixed before any query is issued; only candidates are
// queried. A revision whose status cannot be determined is retained.
func Evaluate(ctx context.Context, checker DeploymentChecker, ref EntityRef, revisions []int, keep int) Evaluation {
	ev := Evaluation{Candidates: Candidates(revisions, keep)}
	if len(ev.Candidates) == 0 {
		return ev
	}

	deployed := make([]bool, len(ev.Candidates))
	failed := make([]error, len(ev.Candidates))

	var g errgroup.Group
	g.SetLimit(DefaultStatusConcurrency)
	for i, rev := range ev.Candidates {
		g.Go(func() error {
			st, err := checker.DeploymentStatus(ctx, ref.Kind, ref.Name, rev)
			if err != nil {
				failed[i] = &OpError{Op: OpDeploymentStatus, Kind: ref.Kind, Entity: ref.Name, Revision: rev, Err: err}
				return nil
			}
			deployed[i] = st.Deployed()
			return nil
		})
	}
	_ = g.Wait()

	for i, rev := range ev.Candidates {
		switch {
		case failed[i] != nil:
			ev.Errors = append(ev.Errors, failed[i])
		case deployed[i]:
			ev.Deployed = append(ev.Deployed, rev)
		default:
			ev.Approved = append(ev.Approved, rev)
		}
	}
	return ev
}
