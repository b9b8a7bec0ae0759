package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"revclean/internal/flags"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "revclean",
	Short: "Delete old, undeployed revisions of Apigee proxies and shared flows",
	Long: `revclean removes old revisions of API proxies and shared flows from an Apigee
organization, keeping the newest N revisions of each and never touching a
revision that is deployed to any environment.

Examples:
	# Show available commands and global flags
	revclean --help

	# Keep the newest 5 revisions of every proxy and shared flow
	revclean clean --org my-org -K 5

	# Preview what would be deleted
	revclean clean --org my-org -K 5 --dry-run

	# Print build info
	revclean version

Output:
	By default, commands write human-readable output to stdout.
	Structured output is available via --console-format and --out (see clean --help).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&cfg.Runtime.Verbose, flags.FlagVerbose, "v", false, "Enable verbose logging (prints every management API call and full error details)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
