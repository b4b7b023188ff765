package support

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/ppbatch/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
)

// RegisterFileSteps registers steps that create inputs and check outputs.
func (tc *TestContext) RegisterFileSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an image "([^"]*)" with text "([^"]*)"$`, tc.anImageWithText)
	sc.Step(`^a corrupt image "([^"]*)"$`, tc.aCorruptImage)
	sc.Step(`^a manifest "([^"]*)" listing:$`, tc.aManifestListing)
	sc.Step(`^an empty manifest "([^"]*)"$`, tc.anEmptyManifest)
	sc.Step(`^a file "([^"]*)" containing:$`, tc.aFileContaining)
	sc.Step(`^the file "([^"]*)" should exist$`, tc.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, tc.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, tc.theFileShouldContain)
	sc.Step(`^the report "([^"]*)" should list (\d+) entr(?:y|ies)$`, tc.theReportShouldList)
	sc.Step(`^the report "([^"]*)" should have text "([^"]*)" at position (\d+)$`, tc.theReportShouldHaveText)
}

func (tc *TestContext) anImageWithText(name, text string) error {
	cfg := testutil.DefaultTestImageConfig()
	cfg.Text = text
	return tc.saveImage(name, testutil.GenerateTextImage(cfg))
}

func (tc *TestContext) saveImage(name string, img image.Image) error {
	path := tc.Path(name)
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return imaging.Save(img, path)
}

func (tc *TestContext) aCorruptImage(name string) error {
	return os.WriteFile(tc.Path(name), []byte("not an image"), 0o600)
}

func (tc *TestContext) aManifestListing(name string, table *godog.Table) error {
	if len(table.Rows) == 0 {
		return fmt.Errorf("manifest table needs a header row")
	}
	header := table.Rows[0].Cells
	var files []map[string]string
	for _, row := range table.Rows[1:] {
		rec := map[string]string{}
		for i, cell := range row.Cells {
			if i >= len(header) || cell.Value == "" {
				continue
			}
			rec[header[i].Value] = tc.Path(tc.Expand(cell.Value))
		}
		files = append(files, rec)
	}
	return tc.writeManifest(name, files)
}

func (tc *TestContext) anEmptyManifest(name string) error {
	return tc.writeManifest(name, []map[string]string{})
}

func (tc *TestContext) writeManifest(name string, files []map[string]string) error {
	data, err := json.MarshalIndent(map[string]interface{}{"files": files}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tc.Path(name), data, 0o600)
}

func (tc *TestContext) aFileContaining(name string, body *godog.DocString) error {
	path := tc.Path(name)
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(tc.Expand(body.Content)), 0o600)
}

func (tc *TestContext) theFileShouldExist(name string) error {
	if !testutil.FileExists(tc.Path(tc.Expand(name))) {
		return fmt.Errorf("file %s does not exist", name)
	}
	return nil
}

func (tc *TestContext) theFileShouldNotExist(name string) error {
	if testutil.FileExists(tc.Path(tc.Expand(name))) {
		return fmt.Errorf("file %s exists", name)
	}
	return nil
}

func (tc *TestContext) theFileShouldContain(name, want string) error {
	data, err := os.ReadFile(tc.Path(tc.Expand(name)))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), want) {
		return fmt.Errorf("file %s does not contain %q:\n%s", name, want, data)
	}
	return nil
}

type reportDoc struct {
	Code   string `json:"code"`
	Result []struct {
		P1    string  `json:"P1"`
		Score float64 `json:"score"`
		Text  string  `json:"text"`
	} `json:"result"`
}

func (tc *TestContext) readReport(name string) (*reportDoc, error) {
	data, err := os.ReadFile(tc.Path(tc.Expand(name)))
	if err != nil {
		return nil, err
	}
	var doc reportDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("report %s is not valid JSON: %w", name, err)
	}
	if doc.Code != "0" {
		return nil, fmt.Errorf("report %s has code %q", name, doc.Code)
	}
	return &doc, nil
}

func (tc *TestContext) theReportShouldList(name string, n int) error {
	doc, err := tc.readReport(name)
	if err != nil {
		return err
	}
	if len(doc.Result) != n {
		return fmt.Errorf("report %s lists %d entries, want %d", name, len(doc.Result), n)
	}
	return nil
}

func (tc *TestContext) theReportShouldHaveText(name, text string, pos int) error {
	doc, err := tc.readReport(name)
	if err != nil {
		return err
	}
	if pos < 1 || pos > len(doc.Result) {
		return fmt.Errorf("report %s has no entry %d", name, pos)
	}
	if got := doc.Result[pos-1].Text; got != text {
		return fmt.Errorf("report %s entry %d has text %q, want %q", name, pos, got, text)
	}
	return nil
}
