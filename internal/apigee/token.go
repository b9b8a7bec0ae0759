package apigee

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"cloud.google.com/go/compute/metadata"
	"golang.org/x/oauth2"
)

type TokenSourceKind string

const (
	TokenSourceExplicit TokenSourceKind = "explicit"
	TokenSourceMetadata TokenSourceKind = "metadata"
	TokenSourcePassword TokenSourceKind = "password"
	TokenSourceEnv      TokenSourceKind = "env:APIGEE_TOKEN"
	TokenSourceGcloud   TokenSourceKind = "gcloud"
)

// Edge SSO accepts the public client credentials of the Apigee CLI tools.
const (
	edgeSSOClientID     = "edgecli"
	edgeSSOClientSecret = "edgeclisecret"
)

var ErrNoMagicToken = errors.New("could not get magic token")

type AuthOptions struct {
	Token      string
	MagicToken bool
	Username   string
	Password   string
	SSOURL     string

	// HTTPClient is used for metadata and SSO token requests. Nil means http.DefaultClient.
	HTTPClient *http.Client
}

// ResolveTokenSource resolves credentials for the management API.
//
// Precedence:
//  1. explicit token
//  2. GCE metadata server (magic token)
//  3. Edge SSO password grant
//  4. APIGEE_TOKEN env var
//  5. gcloud CLI: `gcloud auth print-access-token`
//
// It returns a nil TokenSource when nothing is configured. It never prints the token.
func ResolveTokenSource(ctx context.Context, opts AuthOptions) (oauth2.TokenSource, TokenSourceKind, error) {
	if tok := strings.TrimSpace(opts.Token); tok != "" {
		return staticSource(tok), TokenSourceExplicit, nil
	}

	if opts.MagicToken {
		tok, err := FetchMagicToken(ctx, metadata.NewClient(opts.HTTPClient))
		if err != nil {
			return nil, "", err
		}
		return staticSource(tok), TokenSourceMetadata, nil
	}

	if opts.Username != "" {
		ts, err := passwordTokenSource(ctx, opts)
		if err != nil {
			return nil, "", err
		}
		return ts, TokenSourcePassword, nil
	}

	if env := strings.TrimSpace(os.Getenv("APIGEE_TOKEN")); env != "" {
		return staticSource(env), TokenSourceEnv, nil
	}

	tok, ok, err := tokenFromGcloud(ctx)
	if err != nil {
		return nil, "", err
	}
	if ok {
		return staticSource(tok), TokenSourceGcloud, nil
	}
	return nil, "", nil
}

func staticSource(tok string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"})
}

// FetchMagicToken obtains the default service account's access token from the
// GCE metadata server.
func FetchMagicToken(ctx context.Context, c *metadata.Client) (string, error) {
	raw, err := c.GetWithContext(ctx, "instance/service-accounts/default/token")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoMagicToken, err)
	}
	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", fmt.Errorf("%w: decode metadata response: %v", ErrNoMagicToken, err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", ErrNoMagicToken
	}
	return payload.AccessToken, nil
}

func passwordTokenSource(ctx context.Context, opts AuthOptions) (oauth2.TokenSource, error) {
	if opts.SSOURL == "" {
		return nil, errors.New("edge sso: token URL is required")
	}
	conf := &oauth2.Config{
		ClientID:     edgeSSOClientID,
		ClientSecret: edgeSSOClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  opts.SSOURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	tok, err := conf.PasswordCredentialsToken(ctx, opts.Username, opts.Password)
	if err != nil {
		return nil, fmt.Errorf("edge sso: %w", err)
	}
	return conf.TokenSource(ctx, tok), nil
}

func tokenFromGcloud(ctx context.Context) (token string, ok bool, err error) {
	_, lookErr := exec.LookPath("gcloud")
	if lookErr != nil {
		return "", false, nil
	}

	// Keep this bounded so a broken gcloud config or credential helper
	// doesn't hang the run.
	cmdCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, "gcloud", "auth", "print-access-token")
	// gcloud writes update notices to stderr; only stdout carries the token.
	out, runErr := cmd.Output()
	if runErr != nil {
		if cmdCtx.Err() != nil {
			return "", false, cmdCtx.Err()
		}
		// Not logged in or otherwise unusable: treat as "no token".
		return "", false, nil
	}

	tok := strings.TrimSpace(string(out))
	if tok == "" {
		return "", false, nil
	}
	if strings.ContainsAny(tok, " \t\n\r") {
		return "", false, errors.New("invalid token returned by gcloud: contains whitespace")
	}
	return tok, true, nil
}
