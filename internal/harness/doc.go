// Package harness runs scripted scenarios against the full cascade stack.
//
// A scenario declares components (their states and effects) and a list
// of steps: mounting, setting state, advancing time and delivering timing
// signals. The harness drives a host.Runtime through hooks.Instrumentation
// into an engine.Engine, all on a testutil.ManualClock, so output is
// deterministic and can be compared against golden files.
//
// Scenario files are YAML:
//
//	name: long-task-grouping
//	description: effects that set state during a long task are grouped
//	components:
//	  - name: Dashboard
//	    states:
//	      - {name: data, initial: 0, line: 3}
//	    effects:
//	      - line: 6
//	        deps: []
//	        sets: [{state: data, value: 42}]
//	steps:
//	  - mount: Dashboard
//	  - long_task: {start_ms: 0, duration_ms: 60}
//	assertions:
//	  - {type: contains, text: "Long task 60ms"}
//
// An effect without deps runs after every render; deps: [] runs once.
// The optional config field holds CUE text in the cascade config format.
package harness
