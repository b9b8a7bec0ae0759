package flags

// Package flags defines canonical CLI flag names shared across the CLI and engine.
// Keeping these as constants helps avoid drift between Cobra flag wiring and other
// code paths that need to reference flags (e.g. error messages from config validation).
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVarP(&cfg.Target.Org, flags.FlagOrg, "o", "", "...")
//	arg := "--" + flags.FlagOrg
const (
	// Target
	FlagOrg        = "org"
	FlagCollection = "collection"
	FlagRegexp     = "regexp"
	FlagApigeeX    = "apigeex"
	FlagMgmtServer = "mgmtserver"

	// Auth
	FlagToken      = "token"
	FlagMagicToken = "magictoken"
	FlagUsername   = "username"
	FlagPassword   = "password"
	FlagSSOURL     = "ssourl"

	// Retention
	FlagNumToKeep = "numToKeep"
	FlagDryRun    = "dry-run"

	// Output
	FlagConsoleFormat = "console-format"
	FlagOut           = "out"
	FlagOutFormat     = "out-format"
	FlagNoConsole     = "no-console"

	// Runtime
	FlagConcurrency = "concurrency"
	FlagQPS         = "qps"
	FlagRetries     = "retries"
	FlagTimeout     = "timeout"
	FlagVerbose     = "verbose"
)
