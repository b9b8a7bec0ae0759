package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

type ConsoleSink struct {
	writer    io.Writer
	format    string // "text", "json", "ndjson"
	mu        sync.Mutex
	summaries []Summary // For JSON array output
}

func NewConsoleSink(w io.Writer, format string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}
	return &ConsoleSink{
		writer: w,
		format: format,
	}
}

func (s *ConsoleSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(v)
}

func (s *ConsoleSink) writeLocked(v any) error {
	e, ok := v.(Event)
	if !ok {
		return nil
	}

	switch s.format {
	case "json":
		if sum, ok := summaryFromEvent(e); ok {
			s.summaries = append(s.summaries, sum)
		}
		return nil
	case "ndjson":
		if err := json.NewEncoder(s.writer).Encode(e); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	case "text":
		if err := writeText(s.writer, e); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func writeText(w io.Writer, e Event) error {
	matching := ""
	if e.Matching {
		matching = "matching "
	}

	var err error
	switch e.Type {
	case EventRunStarted:
		mode := ""
		if e.DryRun {
			mode = " (dry run)"
		}
		_, err = fmt.Fprintf(w, "Cleaning %s: keeping the newest %d revisions%s\n", e.Org, e.Keep, mode)
	case EventCollectionEmpty:
		_, err = fmt.Fprintf(w, "No %s%s\n", matching, e.Collection)
	case EventCollectionStarted:
		_, err = fmt.Fprintf(w, "found %d %s%s\n", e.Entities, matching, e.Collection)
	case EventCollectionFailed:
		_, err = color.New(color.FgRed).Fprintf(w, "error listing %s: %s\n", e.Collection, strings.Join(e.Errors, "; "))
	case EventEntityFinished:
		err = writeEntityText(w, e)
	case EventRunFinished:
		err = writeSummaryText(w, e)
	}
	return err
}

func writeEntityText(w io.Writer, e Event) error {
	name := e.Collection + "/" + e.Entity
	if len(e.Deleted) > 0 {
		if _, err := color.New(color.FgGreen).Fprintf(w, "deleted %s: %s\n", name, formatRevisions(e.Deleted)); err != nil {
			return err
		}
	}
	if len(e.Pending) > 0 {
		if _, err := color.New(color.FgYellow).Fprintf(w, "would delete %s: %s\n", name, formatRevisions(e.Pending)); err != nil {
			return err
		}
	}
	if len(e.Deployed) > 0 {
		if _, err := fmt.Fprintf(w, "retained deployed %s: %s\n", name, formatRevisions(e.Deployed)); err != nil {
			return err
		}
	}
	for _, msg := range e.Errors {
		if _, err := color.New(color.FgRed).Fprintf(w, "error %s: %s\n", name, msg); err != nil {
			return err
		}
	}
	return nil
}

func writeSummaryText(w io.Writer, e Event) error {
	total := 0
	for _, s := range e.Summary {
		total += len(s.Revisions)
	}
	bold := color.New(color.Bold)
	if _, err := bold.Fprintf(w, "%d revisions deleted from %d entities\n", total, len(e.Summary)); err != nil {
		return err
	}
	if e.ExitCode != 0 {
		_, err := color.New(color.FgRed).Fprintf(w, "completed with errors (exit code %d)\n", e.ExitCode)
		return err
	}
	return nil
}

func formatRevisions(revs []int) string {
	parts := make([]string, 0, len(revs))
	for _, r := range revs {
		parts = append(parts, fmt.Sprintf("%d", r))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		return writeSummaryArray(s.writer, s.summaries)
	}
	if s.format != "text" && s.format != "ndjson" {
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
	return nil
}

func writeSummaryArray(w io.Writer, summaries []Summary) error {
	if summaries == nil {
		summaries = []Summary{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summaries); err != nil {
		return err
	}
	return flushIfPossible(w)
}
