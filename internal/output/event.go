package output

// Event types emitted during a cleanup run, in order of appearance.
const (
	EventRunStarted        = "run.started"
	EventCollectionStarted = "collection.started"
	EventCollectionEmpty   = "collection.empty"
	EventCollectionFailed  = "collection.failed"
	EventEntityFinished    = "entity.finished"
	EventRunFinished       = "run.finished"
)

// Summary records the revisions deleted from one entity. It is only emitted
// for entities where at least one revision was deleted.
type Summary struct {
	Item       string `json:"item"`
	Collection string `json:"collection,omitempty"`
	Revisions  []int  `json:"revisions"`
}

// Event is a lifecycle record for NDJSON streaming output.
//
// JSON mode aggregates the deletions reported by entity.finished events into
// a single array of Summary values.
type Event struct {
	Type       string   `json:"type"`
	Org        string   `json:"org,omitempty"`
	Collection string   `json:"collection,omitempty"`
	Entity     string   `json:"entity,omitempty"`
	Matching   bool     `json:"matching,omitempty"`
	DryRun     bool     `json:"dry_run,omitempty"`
	Keep       int      `json:"keep"`
	Entities   int      `json:"entities,omitempty"`
	Revisions  []int    `json:"revisions,omitempty"`
	Candidates []int    `json:"candidates,omitempty"`
	Deployed   []int    `json:"deployed,omitempty"`
	Deleted    []int    `json:"deleted,omitempty"`
	Pending    []int    `json:"would_delete,omitempty"`
	Errors     []string `json:"errors,omitempty"`

	// Summary is the flat list of deletions across all collections (run.finished only).
	Summary  []Summary `json:"summary,omitempty"`
	ExitCode int       `json:"exit_code,omitempty"`
}

func summaryFromEvent(e Event) (Summary, bool) {
	if e.Type != EventEntityFinished || len(e.Deleted) == 0 {
		return Summary{}, false
	}
	return Summary{Item: e.Entity, Collection: e.Collection, Revisions: e.Deleted}, true
}
