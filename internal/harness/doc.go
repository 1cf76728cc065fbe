// Package harness provides conformance testing for enhancement runs.
//
// A scenario describes a compiled output directory (classes and other
// files), an optional library directory reachable only through the classpath
// fallback, a list of passes, and a sequence of runs with expectations.
// Each scenario executes in a fresh temporary directory with fixed run IDs
// and a single worker, so its trace is reproducible and can be compared
// against a golden file.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	classes:
//	  - name: com.x.Foo
//	    super: com.x.Base
//	library:
//	  - name: com.x.Base
//	    super: io.ebean.Model
//	files:
//	  - path: META-INF/ebean.mf
//	    content: "packages: com.x"
//	passes:
//	  - name: entity
//	    kind: marker
//	    extends: [io.ebean.Model]
//	runs:
//	  - inputs: [com.x.Foo]
//	    expect:
//	      status: completed
//	      working: 1
//	      outcomes: { com.x.Foo: enhanced }
//	      passes: { com.x.Foo: [entity] }
//	      diagnostics: ["enhanced: com/x/Foo"]
//
// # Pass Kinds
//
//   - marker: appends a trailer once (marker defaults to the pass name)
//   - noop: never changes a class
//   - fail: returns an error for the listed classes (all when none listed)
//   - panic: panics for the listed classes (all when none listed)
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/marker.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
