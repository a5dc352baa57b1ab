// Package harness runs YAML scenarios against stored content, a fake live
// world and the wire reconciler, and snapshots the outcome for golden
// comparison.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	catalog: ../catalogs/basic        # optional CUE catalog directory
//	max_cable_degree: 5               # optional
//	entities:
//	  - id: a
//	    name: combinator
//	    x: 0
//	    y: 0
//	    direction: north
//	    first_stage: 1
//	    value: { n: 1 }
//	    live: [2]                     # stages with a spawned live object
//	steps:
//	  - op: apply_patch
//	    entity: a
//	    stage: 3
//	    set: { n: 3 }
//	    remove: [m]
//	  - op: reconcile
//	    stage: 2
//	    mode: save
//	    expect: changed
//	assertions:
//	  - type: value_at
//	    entity: a
//	    stage: 3
//	    expect: { name: combinator, n: 3 }
//
// Every step records a trace event with its outcome. A step's expect field,
// when present, must equal that outcome.
//
// # Deterministic Testing
//
// Entities carry fixed IDs from the scenario, live objects are numbered by a
// testutil.Sequence in spawn order, and all snapshots are canonical JSON, so
// the same scenario always produces byte-identical golden output.
package harness
