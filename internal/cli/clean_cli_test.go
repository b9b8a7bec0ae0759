package cli

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func withoutEnv(keys ...string) []string {
	out := make([]string, 0, len(os.Environ()))
	for _, e := range os.Environ() {
		skip := false
		for _, key := range keys {
			if strings.HasPrefix(e, key+"=") {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, e)
		}
	}
	return out
}

func repoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	// internal/cli -> repo root
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func goExe() string {
	if runtime.GOOS == "windows" {
		return "go.exe"
	}
	return "go"
}

func buildRevcleanBinary(t *testing.T) string {
	t.Helper()

	outPath := filepath.Join(t.TempDir(), "revclean-test")
	if runtime.GOOS == "windows" {
		outPath += ".exe"
	}

	cmd := exec.Command(goExe(), "build", "-o", outPath, "./cmd/revclean")
	cmd.Dir = repoRoot(t)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build revclean binary: %v; output=%s", err, string(out))
	}

	return outPath
}

func exitCode(t *testing.T, err error, out []byte) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %T: %v; output=%s", err, err, string(out))
	}
	return exitErr.ProcessState.ExitCode()
}

func TestClean_ExitCode1_WhenNumToKeepMissing(t *testing.T) {
	binary := buildRevcleanBinary(t)
	cmd := exec.Command(binary, "clean", "--org", "acme", "--token", "t")

	out, err := cmd.CombinedOutput()
	if code := exitCode(t, err, out); code != 1 {
		t.Fatalf("expected exit code 1, got %d; output=%s", code, string(out))
	}
	if !strings.Contains(string(out), "number of revisions to retain") {
		t.Fatalf("expected validation message; output=%s", string(out))
	}
}

func TestClean_ExitCode1_WhenNoFlagsGiven(t *testing.T) {
	binary := buildRevcleanBinary(t)
	cmd := exec.Command(binary, "clean")

	out, err := cmd.CombinedOutput()
	if code := exitCode(t, err, out); code != 1 {
		t.Fatalf("expected exit code 1, got %d; output=%s", code, string(out))
	}
	if !strings.Contains(string(out), "Error:") {
		t.Fatalf("expected validation error; output=%s", string(out))
	}
}

func TestClean_ExitCode1_WhenCollectionInvalid(t *testing.T) {
	binary := buildRevcleanBinary(t)
	cmd := exec.Command(binary, "clean", "--org", "acme", "--token", "t", "-K", "2", "--collection", "environments")

	out, err := cmd.CombinedOutput()
	if code := exitCode(t, err, out); code != 1 {
		t.Fatalf("expected exit code 1, got %d; output=%s", code, string(out))
	}
	if !strings.Contains(string(out), "--collection") {
		t.Fatalf("expected collection message; output=%s", string(out))
	}
}

func TestClean_ExitCode1_WhenMagicTokenUnavailable(t *testing.T) {
	metadataSrv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(metadataSrv.Close)

	binary := buildRevcleanBinary(t)
	cmd := exec.Command(binary, "clean", "--org", "acme", "-K", "2", "--magictoken", "--mgmtserver", metadataSrv.URL)
	cmd.Env = append(withoutEnv("GCE_METADATA_HOST", "APIGEE_TOKEN"), "GCE_METADATA_HOST="+strings.TrimPrefix(metadataSrv.URL, "http://"))

	out, err := cmd.CombinedOutput()
	if code := exitCode(t, err, out); code != 1 {
		t.Fatalf("expected exit code 1, got %d; output=%s", code, string(out))
	}
	if !strings.Contains(string(out), "could not get magic token") {
		t.Fatalf("expected magic token message; output=%s", string(out))
	}
}

func TestClean_ExitCode0_WhenCollectionEmpty(t *testing.T) {
	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer test-token" {
			sawAuth = true
		}
		if r.Method == http.MethodGet && r.URL.Path == "/organizations/acme/sharedflows" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[]`))
			return
		}
		http.Error(w, "unexpected request", http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	binary := buildRevcleanBinary(t)
	cmd := exec.Command(binary, "clean",
		"--org", "acme",
		"-K", "2",
		"--collection", "sharedflows",
		"--token", "test-token",
		"--mgmtserver", srv.URL,
	)
	cmd.Env = append(withoutEnv("NO_COLOR"), "NO_COLOR=1")

	out, err := cmd.CombinedOutput()
	if code := exitCode(t, err, out); code != 0 {
		t.Fatalf("expected exit code 0, got %d; output=%s", code, string(out))
	}
	if !strings.Contains(string(out), "No sharedflows") {
		t.Fatalf("expected empty collection message; output=%s", string(out))
	}
	if !sawAuth {
		t.Fatalf("expected bearer token on management API requests")
	}
}

func TestVersion_PrintsBuildInfo(t *testing.T) {
	binary := buildRevcleanBinary(t)
	out, err := exec.Command(binary, "version").CombinedOutput()
	if code := exitCode(t, err, out); code != 0 {
		t.Fatalf("expected exit code 0, got %d; output=%s", code, string(out))
	}
	if !strings.HasPrefix(string(out), "revclean dev") {
		t.Fatalf("unexpected version output: %s", string(out))
	}
}
