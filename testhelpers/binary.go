package testhelpers

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var sharedBinaryPath string

// BinaryPath returns the gatekeeper binary built by TestMain
func BinaryPath(t *testing.T) string {
	t.Helper()
	if sharedBinaryPath == "" {
		t.Fatal("gatekeeper binary not built: call testhelpers.TestMain from the package's TestMain")
	}
	return sharedBinaryPath
}

// TestMain builds the gatekeeper binary once, runs the package's tests and
// removes the binary again.
func TestMain(m *testing.M) {
	tmpDir, err := os.MkdirTemp("", "gatekeeper-test-binary-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp directory: %v\n", err)
		os.Exit(1)
	}

	path, err := buildBinary(tmpDir)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		fmt.Fprintf(os.Stderr, "failed to build gatekeeper binary: %v\n", err)
		os.Exit(1)
	}
	sharedBinaryPath = path

	code := m.Run()
	_ = os.RemoveAll(tmpDir)
	os.Exit(code)
}

func buildBinary(dir string) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	moduleRoot := findModuleRoot(wd)
	if moduleRoot == "" {
		return "", fmt.Errorf("could not find module root (go.mod) starting from %s", wd)
	}

	binaryPath := filepath.Join(dir, "gatekeeper")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/gatekeeper")
	cmd.Dir = moduleRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%s: %w", out, err)
	}
	return binaryPath, nil
}

// findModuleRoot walks up from startDir to the directory holding go.mod
func findModuleRoot(startDir string) string {
	for dir := startDir; ; {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// CLIResult is the outcome of one gatekeeper invocation
type CLIResult struct {
	Output   string
	ExitCode int
}

// RunCLI runs the gatekeeper binary in dir with extra environment entries
func RunCLI(t *testing.T, dir string, env []string, args ...string) CLIResult {
	t.Helper()
	cmd := exec.Command(BinaryPath(t), args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_CONFIG_GLOBAL=/dev/null", "HGPLAIN=1",
		"GATEKEEPER_RUN_ID=", "BUILD_TAG=")
	cmd.Env = append(cmd.Env, env...)

	out, err := cmd.CombinedOutput()
	res := CLIResult{Output: strings.TrimSpace(string(out))}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	} else if err != nil {
		t.Fatalf("failed to run gatekeeper: %v", err)
	}
	return res
}
