package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"revclean/internal/apigee"
	"revclean/internal/config"
	"revclean/internal/engine"
	"revclean/internal/flags"
)

var cfg = config.New()

const retryWait = 500 * time.Millisecond

const cleanHelpTemplate = `{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}Usage:
  {{.UseLine}}

{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}Authentication:
	revclean sends a bearer token with every management API call.

	Sources (in order):
	1) --token
	2) --magictoken: the default service account token from the GCE metadata server
	3) --username/--password: Apigee Edge SSO password grant (see --ssourl)
	4) APIGEE_TOKEN environment variable
	5) gcloud CLI via gcloud auth print-access-token (if gcloud is installed and logged in)

  Examples:
    # Apigee X with a gcloud login
    gcloud auth login
    revclean clean --apigeex --org my-org -K 3

    # Apigee Edge with SSO credentials
    revclean clean --org my-org -u me@example.com -p "$APIGEE_PASSWORD" -K 3

{{if .HasAvailableSubCommands}}Available Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete all but the newest N revisions of each proxy and shared flow",
	Long: `Delete all but the newest N revisions of each API proxy and shared flow.

For every entity in the selected collections, the oldest revisions beyond the
newest --numToKeep are candidates for deletion. A candidate that is deployed to
any environment, or whose deployment status cannot be determined, is retained.
The newest --numToKeep revisions are never inspected or deleted.

Deletes are issued with at most 4 requests in flight across the whole run.
Failed deletes are reported and not retried.

Output:
	Console output is controlled by --console-format (default: text).
	- --out / --out-format: write the deletion summary (json) or every event (ndjson) to a file
	- --no-console: suppress the console sink

	NDJSON mode emits one JSON object per line. Objects are lifecycle Events with a
	"type" field (run.started, collection.started, collection.empty,
	collection.failed, entity.finished, run.finished).

Exit codes:
	0 = completed without errors (including nothing to do)
	1 = invalid arguments, authentication or setup failure (nothing was deleted)
	2 = completed, but some entities or revisions failed

Examples:
  # Keep the newest 3 revisions of shared flows whose name starts with "test-"
  revclean clean --org my-org -K 3 --collection sharedflows -R '^test-'

  # Preview on Apigee X using the metadata server token
  revclean clean --apigeex --magictoken --org my-org -K 3 --dry-run

  # Machine-readable events on stdout
  revclean clean --org my-org -K 3 --console-format ndjson
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg.Retention.NumToKeepSet = cmd.Flags().Changed(flags.FlagNumToKeep)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(engine.ExitFatal)
		}

		logger := newLogger(os.Stderr, cfg.Runtime.Verbose)
		ctx := context.Background()

		client, err := newAPIClient(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(engine.ExitFatal)
		}

		eng := engine.NewEngine(client, logger)
		os.Exit(eng.Run(ctx, cfg))
	},
}

func newLogger(w io.Writer, verbose bool) hclog.Logger {
	level := hclog.Info
	if verbose {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "revclean",
		Level:  level,
		Output: w,
		Color:  hclog.AutoColor,
	})
}

// managementBaseURL picks the API root: an explicit --mgmtserver wins,
// otherwise Apigee X or Edge depending on --apigeex.
func managementBaseURL(c *config.Config) string {
	if c.Target.MgmtServer != "" {
		return c.Target.MgmtServer
	}
	if c.Target.ApigeeX {
		return apigee.XBaseURL
	}
	return apigee.EdgeBaseURL
}

func newAPIClient(ctx context.Context, c *config.Config, logger hclog.Logger) (*apigee.Client, error) {
	ts, kind, err := apigee.ResolveTokenSource(ctx, apigee.AuthOptions{
		Token:      c.Auth.Token,
		MagicToken: c.Auth.MagicToken,
		Username:   c.Auth.Username,
		Password:   c.Auth.Password,
		SSOURL:     c.Auth.SSOURL,
	})
	if err != nil {
		if errors.Is(err, apigee.ErrNoMagicToken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to resolve Apigee auth token: %w", err)
	}
	if ts == nil {
		return nil, errors.New("an Apigee access token is required (use --token, --magictoken, --username/--password, APIGEE_TOKEN or 'gcloud auth login')")
	}
	logger.Debug("resolved access token", "source", kind)

	return apigee.NewClient(ctx, c.Target.Org, oauth2.ReuseTokenSource(nil, ts),
		apigee.WithBaseURL(managementBaseURL(c)),
		apigee.WithVerbose(c.Runtime.Verbose, logger.Named("http")),
		apigee.WithRateLimit(c.Runtime.QPS),
		apigee.WithRetries(c.Runtime.Retries, retryWait),
	)
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.SetHelpTemplate(cleanHelpTemplate)

	// Target
	cleanCmd.Flags().StringVarP(&cfg.Target.Org, flags.FlagOrg, "o", "", "Apigee organization")
	cleanCmd.Flags().StringVar(&cfg.Target.Collection, flags.FlagCollection, "", "Collection to clean: sharedflows|apiproxies (default: both)")
	cleanCmd.Flags().BoolVar(&cfg.Target.ApigeeX, flags.FlagApigeeX, false, "Use the Apigee X / hybrid management API")
	cleanCmd.Flags().StringVarP(&cfg.Target.MgmtServer, flags.FlagMgmtServer, "m", "", "Management API base URL (overrides the Edge/X default)")

	// Auth
	cleanCmd.Flags().StringVar(&cfg.Auth.Token, flags.FlagToken, "", "Bearer token for the management API")
	cleanCmd.Flags().BoolVar(&cfg.Auth.MagicToken, flags.FlagMagicToken, false, "Get a token from the GCE metadata server")
	cleanCmd.Flags().StringVarP(&cfg.Auth.Username, flags.FlagUsername, "u", "", "Apigee Edge username")
	cleanCmd.Flags().StringVarP(&cfg.Auth.Password, flags.FlagPassword, "p", "", "Apigee Edge password")
	cleanCmd.Flags().StringVar(&cfg.Auth.SSOURL, flags.FlagSSOURL, cfg.Auth.SSOURL, "Apigee Edge SSO token endpoint")

	// Retention
	cleanCmd.Flags().IntVarP(&cfg.Retention.NumToKeep, flags.FlagNumToKeep, "K", 0, "Number of newest revisions to keep per entity (required)")
	cleanCmd.Flags().StringVarP(&cfg.Retention.Regexp, flags.FlagRegexp, "R", "", "Only clean entities whose name matches this regular expression")
	cleanCmd.Flags().BoolVar(&cfg.Retention.DryRun, flags.FlagDryRun, false, "Report what would be deleted without deleting anything")

	// Output
	cleanCmd.Flags().StringVar(&cfg.Output.ConsoleFormat, flags.FlagConsoleFormat, "text", "Console output format: text|json|ndjson (default: text)")
	cleanCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write structured output to this path")
	cleanCmd.Flags().StringVar(&cfg.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	cleanCmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --out)")

	// Runtime
	cleanCmd.Flags().IntVar(&cfg.Runtime.Concurrency, flags.FlagConcurrency, cfg.Runtime.Concurrency, "Entities processed at once (default: 1)")
	cleanCmd.Flags().Float64Var(&cfg.Runtime.QPS, flags.FlagQPS, 0, "Maximum management API requests per second (0 = unlimited)")
	cleanCmd.Flags().IntVar(&cfg.Runtime.Retries, flags.FlagRetries, cfg.Runtime.Retries, "Retries for failed read requests (deletes are never retried)")
	cleanCmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Bound on the whole run (0 = no limit)")
}
