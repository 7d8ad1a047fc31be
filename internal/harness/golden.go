package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/telimart/telimart/internal/doctype"
)

// DefaultFlowToken is stamped on dispatches of scenarios without one.
const DefaultFlowToken = "test-flow-default"

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	FlowToken    string       `json:"flow_token,omitempty"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to the generic shape
// doctype.MarshalCanonical accepts.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":  event.Seq,
			"type": event.Type,
			"op":   event.Op,
		}
		if event.Store != "" {
			eventMap["store"] = event.Store
		}
		if event.Args != nil {
			eventMap["args"] = event.Args
		}
		if len(event.Fields) > 0 {
			eventMap["fields"] = event.Fields
		}
		if event.Result != nil {
			eventMap["result"] = event.Result
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
	if s.FlowToken != "" {
		result["flow_token"] = s.FlowToken
	}
	return result
}

// Canonical returns the snapshot as canonical JSON.
func (s *TraceSnapshot) Canonical() ([]byte, error) {
	return doctype.MarshalCanonical(s.toCanonicalMap())
}

// Snapshot builds the trace snapshot of a finished scenario.
func Snapshot(scenario *Scenario, result *Result) TraceSnapshot {
	token := scenario.FlowToken
	if token == "" {
		token = DefaultFlowToken
	}
	return TraceSnapshot{
		ScenarioName: scenario.Name,
		FlowToken:    token,
		Trace:        result.Trace,
	}
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass. Test failure (via
// goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	snapshot := Snapshot(scenario, result)
	traceJSON, err := snapshot.Canonical()
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return result, nil
}
