package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/samwightt/rubberdux/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// Canonical renders the snapshot as canonical JSON.
func (s *TraceSnapshot) Canonical() ([]byte, error) {
	trace := make(ir.IRArray, len(s.Trace))
	for i, ev := range s.Trace {
		obj := ir.IRObject{
			"seq":  ir.IRInt(ev.Seq),
			"kind": ir.IRString(ev.Kind),
			"name": ir.IRString(ev.Name),
		}
		if ev.Pipe != "" {
			obj["pipe"] = ir.IRString(ev.Pipe)
		}
		if ev.Value != nil {
			obj["value"] = ev.Value
		}
		if ev.Dropped {
			obj["dropped"] = ir.IRBool(true)
		}
		trace[i] = obj
	}

	return ir.MarshalCanonical(ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"trace":         trace,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	traceJSON, err := snapshot.Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
