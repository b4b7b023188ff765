package support

import (
	"fmt"
	"strconv"

	"github.com/MeKo-Tech/ppbatch/internal/engine/remote"
	"github.com/cucumber/godog"
)

// RegisterServerSteps registers steps that drive the fake OCR server.
func (tc *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an OCR server$`, tc.anOCRServer)
	sc.Step(`^the OCR server reads "([^"]*)" as "([^"]*)" with score ([0-9.]+)$`, tc.theServerReads)
	sc.Step(`^the OCR server fails on "([^"]*)"$`, tc.theServerFailsOn)
	sc.Step(`^the OCR server should have received (\d+) "([^"]*)" requests?$`, tc.theServerShouldHaveReceived)
	sc.Step(`^the last OCR request should have option "([^"]*)" set to "([^"]*)"$`, tc.theLastRequestShouldHaveOption)
}

func (tc *TestContext) anOCRServer() error {
	if tc.Server == nil {
		tc.Server = NewOCRServer()
	}
	return nil
}

func (tc *TestContext) theServerReads(filename, text, score string) error {
	s, err := strconv.ParseFloat(score, 64)
	if err != nil {
		return err
	}
	if err := tc.anOCRServer(); err != nil {
		return err
	}
	tc.Server.Read(filename, text, s)
	return nil
}

func (tc *TestContext) theServerFailsOn(filename string) error {
	if err := tc.anOCRServer(); err != nil {
		return err
	}
	tc.Server.Fail(filename)
	return nil
}

func (tc *TestContext) requests() ([]remote.Request, error) {
	if tc.Server == nil {
		return nil, fmt.Errorf("no OCR server is running")
	}
	return tc.Server.Requests(), nil
}

func (tc *TestContext) theServerShouldHaveReceived(n int, typ string) error {
	reqs, err := tc.requests()
	if err != nil {
		return err
	}
	count := 0
	for _, r := range reqs {
		if r.Type == typ {
			count++
		}
	}
	if count != n {
		return fmt.Errorf("server received %d %q requests, want %d", count, typ, n)
	}
	return nil
}

func (tc *TestContext) theLastRequestShouldHaveOption(key, want string) error {
	reqs, err := tc.requests()
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		return fmt.Errorf("server received no requests")
	}
	got, ok := reqs[len(reqs)-1].Options[key]
	if !ok {
		return fmt.Errorf("option %q not sent", key)
	}
	if fmt.Sprint(got) != want {
		return fmt.Errorf("option %q = %v, want %s", key, got, want)
	}
	return nil
}
