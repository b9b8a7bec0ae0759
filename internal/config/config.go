package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	CollectionSharedFlows = "sharedflows"
	CollectionProxies     = "proxies"
)

// DefaultCollections is the processing order when --collection is omitted.
var DefaultCollections = []string{CollectionSharedFlows, CollectionProxies}

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields that affect
	// cleanup behavior, keep the CLI flags in internal/cli/clean.go in sync.
	Target    Target
	Auth      Auth
	Retention Retention
	Output    Output
	Runtime   Runtime
}

type Target struct {
	// Org is the Apigee organization (see --org).
	Org string

	// Collection selects which collection to clean (see --collection).
	// Allowed values: sharedflows, proxies, apiproxies. Empty means both.
	Collection string

	// Collections is the resolved, ordered list of collections to process.
	// Populated by Validate.
	Collections []string

	// ApigeeX targets the Apigee X / hybrid management API instead of Edge (see --apigeex).
	ApigeeX bool

	// MgmtServer overrides the management API base URL (see --mgmtserver).
	MgmtServer string
}

type Auth struct {
	// Token is an explicit bearer token (see --token).
	Token string

	// MagicToken obtains a token from the GCE metadata server (see --magictoken).
	MagicToken bool

	// Username and Password authenticate against Apigee Edge SSO (see --username, --password).
	Username string
	Password string

	// SSOURL is the Edge SSO token endpoint used with Username/Password (see --ssourl).
	SSOURL string
}

type Retention struct {
	// NumToKeep is the number of newest revisions per entity that are never deleted (see --numToKeep).
	NumToKeep int

	// NumToKeepSet records whether --numToKeep was given. There is no default.
	NumToKeepSet bool

	// Regexp restricts cleanup to entities whose name matches (see --regexp).
	Regexp string

	// Pattern is the compiled Regexp; nil when Regexp is empty. Populated by Validate.
	Pattern *regexp.Regexp

	// DryRun evaluates revisions without deleting anything (see --dry-run).
	DryRun bool
}

type Output struct {
	// ConsoleFormat controls the console sink format (see --console-format).
	// Allowed values: text, json, ndjson.
	ConsoleFormat string

	// Out writes structured output to this path (see --out).
	Out string

	// OutFormat selects the format for --out (see --out-format).
	// Allowed values: json, ndjson. If empty, it is inferred from the --out file extension.
	OutFormat string

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool
}

type Runtime struct {
	// Concurrency is the number of entities processed at once (see --concurrency).
	// Must be >= 1.
	Concurrency int

	// QPS caps management API requests per second (see --qps). 0 means unlimited.
	QPS float64

	// Retries is how many times idempotent reads are retried (see --retries).
	Retries int

	// Timeout bounds the whole run (see --timeout). Zero means no limit.
	Timeout time.Duration

	// Verbose enables debug logging, including every management API call.
	Verbose bool
}

func New() *Config {
	return &Config{
		Auth: Auth{
			SSOURL: "https://login.apigee.com/oauth/token",
		},
		Output: Output{
			ConsoleFormat: "text",
		},
		Runtime: Runtime{
			Concurrency: 1,
			Retries:     2,
		},
	}
}

func (c *Config) Validate() error {
	c.Target.Org = strings.TrimSpace(c.Target.Org)
	if c.Target.Org == "" {
		return errors.New("--org is required")
	}
	if strings.Contains(c.Target.Org, "/") {
		return fmt.Errorf("invalid --org value: %q", c.Target.Org)
	}

	if !c.Retention.NumToKeepSet {
		return errors.New("you must specify a number of revisions to retain (--numToKeep, -K); there is no default")
	}
	if c.Retention.NumToKeep < 0 {
		return fmt.Errorf("--numToKeep must be >= 0, got %d", c.Retention.NumToKeep)
	}

	collections, err := ResolveCollections(c.Target.Collection)
	if err != nil {
		return err
	}
	c.Target.Collections = collections

	c.Retention.Pattern = nil
	if c.Retention.Regexp != "" {
		re, err := regexp.Compile(c.Retention.Regexp)
		if err != nil {
			return fmt.Errorf("invalid --regexp value: %w", err)
		}
		c.Retention.Pattern = re
	}

	if c.Target.MgmtServer != "" {
		u, err := url.Parse(c.Target.MgmtServer)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("invalid --mgmtserver value: %q", c.Target.MgmtServer)
		}
		c.Target.MgmtServer = strings.TrimRight(c.Target.MgmtServer, "/")
	}

	if (c.Auth.Username == "") != (c.Auth.Password == "") {
		return errors.New("--username and --password must be provided together")
	}
	if c.Auth.MagicToken && c.Auth.Token != "" {
		return errors.New("--magictoken and --token are mutually exclusive")
	}

	// Output validation
	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	if c.Output.ConsoleFormat == "" {
		return errors.New("--console-format must be one of: text, json, ndjson")
	}
	if c.Output.ConsoleFormat != "text" && c.Output.ConsoleFormat != "json" && c.Output.ConsoleFormat != "ndjson" {
		return fmt.Errorf("unsupported --console-format: %s (must be one of: text, json, ndjson)", c.Output.ConsoleFormat)
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			ext := strings.ToLower(filepath.Ext(c.Output.Out))
			switch ext {
			case ".json":
				c.Output.OutFormat = "json"
			case ".ndjson", ".jsonl":
				c.Output.OutFormat = "ndjson"
			default:
				if ext == "" {
					return errors.New("cannot infer output format from file extension (missing extension); use --out-format")
				}
				return fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
			}
		} else if c.Output.OutFormat != "json" && c.Output.OutFormat != "ndjson" {
			return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
		}
	}

	// Runtime validation
	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Runtime.QPS < 0 {
		return errors.New("--qps must be >= 0")
	}
	if c.Runtime.Retries < 0 {
		return errors.New("--retries must be >= 0")
	}
	if c.Runtime.Timeout < 0 {
		return errors.New("--timeout must be >= 0")
	}

	return nil
}

// ResolveCollections maps a --collection value to the ordered collections to
// process. "apiproxies" is accepted as an alias of "proxies".
func ResolveCollections(raw string) ([]string, error) {
	v := normalizeEnumValue(raw)
	switch v {
	case "":
		return append([]string(nil), DefaultCollections...), nil
	case CollectionSharedFlows:
		return []string{CollectionSharedFlows}, nil
	case CollectionProxies, "apiproxies":
		return []string{CollectionProxies}, nil
	default:
		return nil, fmt.Errorf("you must specify a valid option for --collection: %q (must be one of: sharedflows, apiproxies)", raw)
	}
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
