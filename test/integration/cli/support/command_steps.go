package support

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/ppbatch/cmd/ppbatch/cmd"
	"github.com/cucumber/godog"
)

// RegisterCommandSteps registers steps that run ppbatch and inspect its output.
func (tc *TestContext) RegisterCommandSteps(sc *godog.ScenarioContext) {
	sc.Step(`^no device is available$`, func() error { return tc.devicesAvailable(0) })
	sc.Step(`^(\d+) devices? (?:is|are) available$`, tc.devicesAvailable)
	sc.Step(`^the device query fails with "([^"]*)"$`, tc.deviceQueryFails)
	sc.Step(`^I run "([^"]*)"$`, tc.iRun)
	sc.Step(`^the command should succeed$`, tc.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, tc.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, tc.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, tc.theOutputShouldNotContain)
	sc.Step(`^the output should contain (\d+) lines? starting with "([^"]*)"$`, tc.theOutputShouldContainLinesStartingWith)
	sc.Step(`^the error should mention "([^"]*)"$`, tc.theErrorShouldMention)
	sc.Step(`^the log should contain "([^"]*)"$`, tc.theLogShouldContain)
}

func (tc *TestContext) devicesAvailable(n int) error {
	tc.Counter.N = n
	return nil
}

func (tc *TestContext) deviceQueryFails(msg string) error {
	tc.Counter.Err = fmt.Errorf("%s", msg)
	return nil
}

// ExecuteCommand runs ppbatch in-process with the given argument line.
func (tc *TestContext) ExecuteCommand(line string) {
	line = tc.Expand(line)
	args := strings.Fields(line)
	if len(args) > 0 && args[0] == "ppbatch" {
		args = args[1:]
	}

	var stdout, stderr bytes.Buffer
	root := cmd.NewRootCommand(cmd.WithDeviceCounter(tc.Counter))
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	tc.LastCommand = line
	tc.LastError = root.ExecuteContext(context.Background())
	tc.LastOutput = stdout.String()
	tc.LastStderr = stderr.String()
	tc.LastExitCode = 0
	if tc.LastError != nil {
		tc.LastExitCode = 1
	}
}

func (tc *TestContext) iRun(line string) error {
	tc.ExecuteCommand(line)
	return nil
}

func (tc *TestContext) theCommandShouldSucceed() error {
	if tc.LastExitCode != 0 {
		return fmt.Errorf("command %q failed: %v\nstdout:\n%s\nstderr:\n%s",
			tc.LastCommand, tc.LastError, tc.LastOutput, tc.LastStderr)
	}
	return nil
}

func (tc *TestContext) theCommandShouldFail() error {
	if tc.LastExitCode == 0 {
		return fmt.Errorf("command %q succeeded, expected failure\nstdout:\n%s", tc.LastCommand, tc.LastOutput)
	}
	return nil
}

func (tc *TestContext) theOutputShouldContain(want string) error {
	if !strings.Contains(tc.LastOutput, tc.Expand(want)) {
		return fmt.Errorf("output does not contain %q:\n%s", want, tc.LastOutput)
	}
	return nil
}

func (tc *TestContext) theOutputShouldNotContain(unwanted string) error {
	if strings.Contains(tc.LastOutput, tc.Expand(unwanted)) {
		return fmt.Errorf("output unexpectedly contains %q:\n%s", unwanted, tc.LastOutput)
	}
	return nil
}

func (tc *TestContext) theOutputShouldContainLinesStartingWith(n int, prefix string) error {
	count := 0
	for _, line := range strings.Split(tc.LastOutput, "\n") {
		if strings.HasPrefix(line, prefix) {
			count++
		}
	}
	if count != n {
		return fmt.Errorf("expected %d lines starting with %q, got %d:\n%s", n, prefix, count, tc.LastOutput)
	}
	return nil
}

func (tc *TestContext) theErrorShouldMention(want string) error {
	if tc.LastError == nil {
		return fmt.Errorf("command %q returned no error", tc.LastCommand)
	}
	if !strings.Contains(tc.LastError.Error(), want) {
		return fmt.Errorf("error %q does not mention %q", tc.LastError, want)
	}
	return nil
}

func (tc *TestContext) theLogShouldContain(want string) error {
	if !strings.Contains(tc.LastStderr, want) {
		return fmt.Errorf("log does not contain %q:\n%s", want, tc.LastStderr)
	}
	return nil
}
