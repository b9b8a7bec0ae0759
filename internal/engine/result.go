package engine

import (
	"fmt"

	"revclean/internal/apigee"
	"revclean/internal/output"
)

// EntityRef names one proxy or shared-flow.
type EntityRef struct {
	Kind apigee.Kind
	Name string
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s/%s", r.Kind, r.Name)
}

// EntityResult is the outcome of processing a single entity.
//
// It is emitted by the scheduler and consumed by the engine, which turns it
// into an entity.finished event and, when something was deleted, a summary.
type EntityResult struct {
	Ref        EntityRef
	Revisions  []int
	Candidates []int
	Deployed   []int
	Deleted    []int
	// Pending holds revisions approved for deletion but not deleted (dry run).
	Pending []int
	Errors  []error
}

// Summary returns the deletion record for this entity; ok is false when no
// revision was deleted.
func (r EntityResult) Summary() (s output.Summary, ok bool) {
	if len(r.Deleted) == 0 {
		return output.Summary{}, false
	}
	return output.Summary{Item: r.Ref.Name, Collection: string(r.Ref.Kind), Revisions: r.Deleted}, true
}

func (r EntityResult) event(verbose bool) output.Event {
	e := output.Event{
		Type:       output.EventEntityFinished,
		Collection: string(r.Ref.Kind),
		Entity:     r.Ref.Name,
		Revisions:  r.Revisions,
		Candidates: r.Candidates,
		Deployed:   r.Deployed,
		Deleted:    r.Deleted,
		Pending:    r.Pending,
	}
	for _, err := range r.Errors {
		e.Errors = append(e.Errors, presentError(err, verbose))
	}
	return e
}
