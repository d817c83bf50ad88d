package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares its snapshot against
// a golden file at testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// A scenario declaring want_error fails unless the pipeline error
// contains that substring; the snapshot then records the error text in
// place of the output.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	switch {
	case scenario.WantError == "" && result.Err != nil:
		t.Fatalf("scenario %s: unexpected pipeline error: %v", scenario.Name, result.Err)
	case scenario.WantError != "" && result.Err == nil:
		t.Fatalf("scenario %s: expected error containing %q, pipeline succeeded", scenario.Name, scenario.WantError)
	case scenario.WantError != "" && !containsError(result.Err, scenario.WantError):
		t.Fatalf("scenario %s: error %q does not contain %q", scenario.Name, result.Err, scenario.WantError)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Snapshot(scenario, result))

	return nil
}

func containsError(err error, substr string) bool {
	return err != nil && strings.Contains(err.Error(), substr)
}
