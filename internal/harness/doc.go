// Package harness provides conformance testing for rubberdux pipes and
// selectors.
//
// A scenario compiles CUE pipe declarations, wires them into a pipe engine
// over an in-memory store, dispatches events step by step, and asserts on
// the resulting trace, the selector emissions, and the final state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	specs:
//	  - path/to/pipes.cue
//	initial_state: { ready: false }
//	selectors:
//	  - name: user
//	    path: user
//	steps:
//	  - dispatch: login
//	    content: { user: ada }
//	  - set_state: { ready: false }
//	assertions:
//	  - type: trace_contains
//	    action: ready
//	    payload: { user: ada }
//	  - type: final_state
//	    expect: { "profile.name": "Ada" }
//
// # Assertion Types
//
//   - trace_contains: An action of the given type (and pipe) was forwarded with a matching payload
//   - trace_order: Action types appear in the specified order
//   - trace_count: An action type was forwarded exactly N times
//   - dropped_count: Exactly N events were dropped before registration
//   - selector_emits: A named selector emitted exactly the listed values
//   - final_state: State values at gjson paths match
//   - pipe_failed: The named pipe failed; pipe failures are errors otherwise
//
// # Deterministic Testing
//
// The harness uses:
//   - Sequential pipe IDs (testutil.SequentialGenerator)
//   - Deterministic logical clock (testutil.DeterministicClock)
//   - In-memory SQLite journal (isolated per run)
//
// This ensures identical traces across runs for golden file comparison.
package harness
