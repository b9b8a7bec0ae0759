package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"revclean/internal/apigee"
	"revclean/internal/config"
	"revclean/internal/output"
)

const (
	ExitOK      = 0
	ExitFatal   = 1
	ExitPartial = 2
)

func exitCodeForRun(fatal, partial bool) int {
	// Exit code contract:
	// 0 = completed without errors (including nothing to do)
	// 1 = configuration, authentication or setup error (nothing was deleted)
	// 2 = completed, but some entities or revisions failed
	if fatal {
		return ExitFatal
	}
	if partial {
		return ExitPartial
	}
	return ExitOK
}

// ManagementAPI is the subset of the Apigee management API the engine uses.
type ManagementAPI interface {
	EntityLister
	ListRevisions(ctx context.Context, kind apigee.Kind, name string) ([]int, error)
	DeploymentChecker
	RevisionDeleter
}

type Engine struct {
	API    ManagementAPI
	Logger hclog.Logger
	// Stderr receives the end-of-run error report. Defaults to os.Stderr.
	Stderr io.Writer
}

func NewEngine(api ManagementAPI, logger hclog.Logger) *Engine {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Engine{API: api, Logger: logger, Stderr: os.Stderr}
}

// Report is the outcome of a completed run.
type Report struct {
	Results   []EntityResult
	Summaries []output.Summary
	// Err aggregates every entity- and revision-level error; nil on a clean run.
	Err error
}

func setupOutputManager(cfg *config.Config) (*output.Manager, error) {
	outMgr := output.NewManager()

	if !cfg.Output.NoConsole {
		if err := outMgr.AddSink(output.NewConsoleSink(nil, cfg.Output.ConsoleFormat)); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	if cfg.Output.Out != "" {
		fs, err := output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(fs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	return outMgr, nil
}

// Run executes a cleanup and returns the process exit code.
func (e *Engine) Run(ctx context.Context, cfg *config.Config) int {
	outMgr, err := setupOutputManager(cfg)
	if err != nil {
		fmt.Fprintf(e.stderr(), "Error creating output sinks: %v\n", err)
		return exitCodeForRun(true, false)
	}

	runCtx := ctx
	if cfg.Runtime.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Runtime.Timeout)
		defer cancel()
	}

	report, err := e.Execute(runCtx, cfg, outMgr)
	if err != nil {
		_ = outMgr.Close()
		fmt.Fprintf(e.stderr(), "Error: %v\n", err)
		return exitCodeForRun(true, false)
	}

	code := exitCodeForRun(false, report.Err != nil)
	_ = outMgr.Write(output.Event{Type: output.EventRunFinished, Summary: report.Summaries, ExitCode: code})
	if err := outMgr.Close(); err != nil {
		fmt.Fprintf(e.stderr(), "Error writing output: %v\n", err)
	}

	if report.Err != nil {
		fmt.Fprintf(e.stderr(), "Error: %v\n", report.Err)
	}
	return code
}

// Execute processes every selected collection. The returned error is only
// set for setup failures; per-entity failures are collected in Report.Err.
func (e *Engine) Execute(ctx context.Context, cfg *config.Config, outMgr *output.Manager) (*Report, error) {
	if e.API == nil {
		return nil, errors.New("engine: management API is nil")
	}
	if outMgr == nil {
		outMgr = output.NewManager()
	}
	log := e.logger()

	deleter, err := NewDeleter(e.API, DefaultDeleteConcurrency)
	if err != nil {
		return nil, err
	}
	process := func(ctx context.Context, ref EntityRef) EntityResult {
		return e.processEntity(ctx, cfg, deleter, ref)
	}
	scheduler, err := NewScheduler(process, cfg.Runtime.Concurrency)
	if err != nil {
		return nil, err
	}

	kinds := make([]apigee.Kind, 0, len(cfg.Target.Collections))
	for _, name := range cfg.Target.Collections {
		kind, err := apigee.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}

	matching := cfg.Retention.Pattern != nil
	_ = outMgr.Write(output.Event{
		Type:   output.EventRunStarted,
		Org:    cfg.Target.Org,
		Keep:   cfg.Retention.NumToKeep,
		DryRun: cfg.Retention.DryRun,
	})

	report := &Report{}
	var runErr *multierror.Error

	for _, kind := range kinds {
		refs, err := DiscoverEntities(ctx, e.API, kind, cfg.Retention.Pattern)
		if err != nil {
			log.Error("listing failed", "collection", kind, "error", err)
			runErr = multierror.Append(runErr, err)
			_ = outMgr.Write(output.Event{
				Type:       output.EventCollectionFailed,
				Collection: string(kind),
				Errors:     []string{presentError(err, cfg.Runtime.Verbose)},
			})
			continue
		}
		if len(refs) == 0 {
			_ = outMgr.Write(output.Event{Type: output.EventCollectionEmpty, Collection: string(kind), Matching: matching})
			continue
		}

		log.Debug("found entities", "collection", kind, "count", len(refs), "matching", matching)
		_ = outMgr.Write(output.Event{
			Type:       output.EventCollectionStarted,
			Collection: string(kind),
			Entities:   len(refs),
			Matching:   matching,
		})

		for res := range scheduler.Execute(ctx, refs) {
			report.Results = append(report.Results, res)
			for _, err := range res.Errors {
				runErr = multierror.Append(runErr, err)
			}
			if s, ok := res.Summary(); ok {
				report.Summaries = append(report.Summaries, s)
			}
			_ = outMgr.Write(res.event(cfg.Runtime.Verbose))
		}
	}

	if log.IsDebug() {
		summary, _ := json.Marshal(report.Summaries)
		log.Debug("summary deleted", "summary", string(summary))
	}

	if err := runErr.ErrorOrNil(); err != nil {
		report.Err = err
	}
	return report, nil
}

func (e *Engine) processEntity(ctx context.Context, cfg *config.Config, deleter *Deleter, ref EntityRef) EntityResult {
	log := e.logger().With("entity", ref.String())
	res := EntityResult{Ref: ref}

	revisions, err := e.API.ListRevisions(ctx, ref.Kind, ref.Name)
	if err != nil {
		res.Errors = append(res.Errors, &OpError{Op: OpListRevisions, Kind: ref.Kind, Entity: ref.Name, Err: err})
		// Identifiers that are not numbers are retained; the rest are still evaluated.
		var invalid *apigee.InvalidRevisionsError
		if !errors.As(err, &invalid) {
			return res
		}
	}
	res.Revisions = revisions
	log.Debug("revisions", "revisions", revisions)

	ev := Evaluate(ctx, e.API, ref, revisions, cfg.Retention.NumToKeep)
	res.Candidates = ev.Candidates
	res.Deployed = ev.Deployed
	res.Errors = append(res.Errors, ev.Errors...)
	if len(ev.Candidates) > 0 {
		log.Debug("deployments", "candidates", ev.Candidates, "deployed", ev.Deployed, "approved", ev.Approved, "unknown", len(ev.Errors))
	}
	if len(ev.Approved) == 0 {
		return res
	}

	if cfg.Retention.DryRun {
		res.Pending = ev.Approved
		return res
	}

	deleted, errs := deleter.Delete(ctx, ref, ev.Approved)
	res.Deleted = deleted
	res.Errors = append(res.Errors, errs...)
	if len(deleted) > 0 {
		log.Debug("deleted", "revisions", deleted)
	}
	return res
}

func (e *Engine) logger() hclog.Logger {
	if e.Logger == nil {
		return hclog.NewNullLogger()
	}
	return e.Logger
}

func (e *Engine) stderr() io.Writer {
	if e.Stderr == nil {
		return os.Stderr
	}
	return e.Stderr
}
