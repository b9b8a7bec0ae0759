package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"revclean/internal/apigee"
)

type Op string

const (
	OpListEntities     Op = "list entities"
	OpListRevisions    Op = "list revisions"
	OpDeploymentStatus Op = "query deployment status"
	OpDelete           Op = "delete revision"
)

// OpError attributes a failure to the collection, entity and (when relevant)
// revision it happened on. Revision is zero for entity-level operations.
type OpError struct {
	Op       Op
	Kind     apigee.Kind
	Entity   string
	Revision int
	Err      error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Op))
	b.WriteString(" ")
	b.WriteString(string(e.Kind))
	if e.Entity != "" {
		b.WriteString("/")
		b.WriteString(e.Entity)
	}
	if e.Revision > 0 {
		fmt.Fprintf(&b, " r%d", e.Revision)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// presentError renders an error for console output. Outside verbose mode,
// management API errors are reduced to their status so response bodies and
// request URLs stay out of routine output.
func presentError(err error, verbose bool) string {
	if err == nil {
		return "unknown error"
	}
	if verbose {
		return err.Error()
	}

	prefix := ""
	var oe *OpError
	if errors.As(err, &oe) {
		prefix = string(oe.Op)
		if oe.Revision > 0 {
			prefix += fmt.Sprintf(" r%d", oe.Revision)
		}
		prefix += ": "
	}

	var ae *apigee.APIError
	if errors.As(err, &ae) {
		return fmt.Sprintf("%smanagement API request failed (%d %s)", prefix, ae.StatusCode, http.StatusText(ae.StatusCode))
	}
	if oe != nil {
		return prefix + oe.Err.Error()
	}
	return err.Error()
}
