package apigee

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func tokenOf(t *testing.T, ctx context.Context, opts AuthOptions) (string, TokenSourceKind) {
	t.Helper()
	ts, kind, err := ResolveTokenSource(ctx, opts)
	if err != nil {
		t.Fatalf("ResolveTokenSource error: %v", err)
	}
	if ts == nil {
		return "", kind
	}
	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	return tok.AccessToken, kind
}

func writeGcloudStub(t *testing.T, script string) string {
	t.Helper()
	tmp := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmp, "gcloud"), []byte(script), 0o755); err != nil {
		t.Fatalf("WriteFile gcloud stub failed: %v", err)
	}
	return tmp
}

func TestResolveTokenSource(t *testing.T) {
	t.Run("explicit token wins", func(t *testing.T) {
		t.Setenv("APIGEE_TOKEN", "env-token")
		t.Setenv("PATH", t.TempDir())

		tok, src := tokenOf(t, context.Background(), AuthOptions{Token: " explicit "})
		if tok != "explicit" {
			t.Fatalf("want explicit, got %q", tok)
		}
		if src != TokenSourceExplicit {
			t.Fatalf("want %q, got %q", TokenSourceExplicit, src)
		}
	})

	t.Run("env token used", func(t *testing.T) {
		t.Setenv("APIGEE_TOKEN", "env-token")
		t.Setenv("PATH", t.TempDir())

		tok, src := tokenOf(t, context.Background(), AuthOptions{})
		if tok != "env-token" {
			t.Fatalf("want env-token, got %q", tok)
		}
		if src != TokenSourceEnv {
			t.Fatalf("want %q, got %q", TokenSourceEnv, src)
		}
	})

	t.Run("gcloud token used when env empty", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("test uses a shell script gcloud stub")
		}
		t.Setenv("APIGEE_TOKEN", "")
		t.Setenv("PATH", writeGcloudStub(t, "#!/bin/sh\necho gcloud-token\n"))

		tok, src := tokenOf(t, context.Background(), AuthOptions{})
		if tok != "gcloud-token" {
			t.Fatalf("want gcloud-token, got %q", tok)
		}
		if src != TokenSourceGcloud {
			t.Fatalf("want %q, got %q", TokenSourceGcloud, src)
		}
	})

	t.Run("nil when nothing configured", func(t *testing.T) {
		t.Setenv("APIGEE_TOKEN", "")
		t.Setenv("PATH", t.TempDir())

		ts, src, err := ResolveTokenSource(context.Background(), AuthOptions{})
		if err != nil {
			t.Fatalf("ResolveTokenSource error: %v", err)
		}
		if ts != nil {
			t.Fatalf("want nil token source")
		}
		if src != "" {
			t.Fatalf("want empty source, got %q", src)
		}
	})

	t.Run("gcloud invalid token output returns error", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("test uses a shell script gcloud stub")
		}
		t.Setenv("APIGEE_TOKEN", "")
		t.Setenv("PATH", writeGcloudStub(t, "#!/bin/sh\nprintf 'line1\\nline2\\n'\n"))

		_, _, err := ResolveTokenSource(context.Background(), AuthOptions{})
		if err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("context canceled propagates error when using gcloud", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("test uses a shell script gcloud stub")
		}
		t.Setenv("APIGEE_TOKEN", "")
		t.Setenv("PATH", writeGcloudStub(t, "#!/bin/sh\necho gcloud-token\n"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := ResolveTokenSource(ctx, AuthOptions{})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestResolveTokenSource_MagicToken(t *testing.T) {
	var flavor string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flavor = r.Header.Get("Metadata-Flavor")
		if r.URL.Path != "/computeMetadata/v1/instance/service-accounts/default/token" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"magic","expires_in":3599,"token_type":"Bearer"}`)
	}))
	t.Cleanup(server.Close)
	t.Setenv("GCE_METADATA_HOST", strings.TrimPrefix(server.URL, "http://"))

	tok, src := tokenOf(t, context.Background(), AuthOptions{MagicToken: true})
	if tok != "magic" {
		t.Fatalf("want magic, got %q", tok)
	}
	if src != TokenSourceMetadata {
		t.Fatalf("want %q, got %q", TokenSourceMetadata, src)
	}
	if flavor != "Google" {
		t.Fatalf("want Metadata-Flavor: Google, got %q", flavor)
	}
}

func TestResolveTokenSource_MagicTokenMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"token_type":"Bearer"}`)
	}))
	t.Cleanup(server.Close)
	t.Setenv("GCE_METADATA_HOST", strings.TrimPrefix(server.URL, "http://"))

	_, _, err := ResolveTokenSource(context.Background(), AuthOptions{MagicToken: true})
	if !errors.Is(err, ErrNoMagicToken) {
		t.Fatalf("expected ErrNoMagicToken, got %v", err)
	}
}

func TestResolveTokenSource_EdgePassword(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "edgecli" || pass != "edgeclisecret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("grant_type") != "password" || r.PostForm.Get("username") != "me@example.com" || r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"sso-token","token_type":"bearer","expires_in":1799,"refresh_token":"r"}`)
	}))
	t.Cleanup(server.Close)

	opts := AuthOptions{
		Username:   "me@example.com",
		Password:   "secret",
		SSOURL:     server.URL + "/oauth/token",
		HTTPClient: server.Client(),
	}
	tok, src := tokenOf(t, context.Background(), opts)
	if tok != "sso-token" {
		t.Fatalf("want sso-token, got %q", tok)
	}
	if src != TokenSourcePassword {
		t.Fatalf("want %q, got %q", TokenSourcePassword, src)
	}

	opts.Password = "wrong"
	if _, _, err := ResolveTokenSource(context.Background(), opts); err == nil {
		t.Fatalf("expected error for bad credentials")
	}
}
