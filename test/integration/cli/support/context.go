package support

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/ppbatch/internal/testutil"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastStderr   string
	LastError    error
	LastExitCode int

	// Test environment
	TempDir string
	Server  *OCRServer
	Counter *testutil.FakeCounter

	restore []func()
}

// NewTestContext creates a scenario context rooted in a fresh temporary
// directory. The working directory and the config search locations point
// into it until Cleanup runs.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "ppbatch-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	tc := &TestContext{TempDir: tempDir, Counter: &testutil.FakeCounter{}}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	if err := os.Chdir(tempDir); err != nil {
		return nil, fmt.Errorf("failed to enter temp directory: %w", err)
	}
	tc.restore = append(tc.restore, func() { _ = os.Chdir(wd) })

	for _, name := range []string{"HOME", "XDG_CONFIG_HOME"} {
		tc.setEnv(name, tempDir)
	}
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, "PPBATCH_") {
			tc.unsetEnv(name)
		}
	}
	return tc, nil
}

// Path resolves name inside the scenario directory.
func (tc *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(tc.TempDir, name)
}

// Expand replaces {tmp} and {server} in s.
func (tc *TestContext) Expand(s string) string {
	s = strings.ReplaceAll(s, "{tmp}", tc.TempDir)
	if tc.Server != nil {
		s = strings.ReplaceAll(s, "{server}", tc.Server.URL())
	}
	return s
}

func (tc *TestContext) setEnv(name, value string) {
	old, had := os.LookupEnv(name)
	_ = os.Setenv(name, value)
	tc.restore = append(tc.restore, func() {
		if had {
			_ = os.Setenv(name, old)
		} else {
			_ = os.Unsetenv(name)
		}
	})
}

func (tc *TestContext) unsetEnv(name string) {
	old, had := os.LookupEnv(name)
	if !had {
		return
	}
	_ = os.Unsetenv(name)
	tc.restore = append(tc.restore, func() { _ = os.Setenv(name, old) })
}

// Cleanup stops the server, restores the environment and removes the
// scenario directory.
func (tc *TestContext) Cleanup() error {
	if tc.Server != nil {
		tc.Server.Close()
	}
	for i := len(tc.restore) - 1; i >= 0; i-- {
		tc.restore[i]()
	}
	var errs []error
	if err := os.RemoveAll(tc.TempDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", tc.TempDir, err))
	}
	return errors.Join(errs...)
}
