// Package harness runs share-reconciliation scenarios end to end.
//
// A scenario saves, deletes and reconciles IWO Number records through the
// real document service, hook registry and reconciler against a fresh
// in-memory SQLite store. Every call the reconciler makes to the store is
// recorded in a trace, which can be asserted on and compared with a golden
// file.
//
// # Scenario Format
//
//	name: team_change
//	description: "Members added and removed across saves"
//	flow_token: flow-team-change   # optional, fixed for golden traces
//	setup:
//	  grants:                      # pre-existing shares, not traced
//	    - record: IWO-0001
//	      user: mallory
//	steps:
//	  - save:
//	      name: IWO-0001
//	      team_members:
//	        - user: alice
//	    expect_grants: [alice]
//	  - reconcile: IWO-0001
//	  - delete: IWO-0001
//	    expect_grants: []
//	  - save: {name: ""}
//	    expect_error: invalid record
//	assertions:
//	  - type: grants
//	    record: IWO-0001
//	    users: []
//	  - type: trace_count
//	    op: Create
//	    count: 1
//	  - type: trace_contains
//	    op: Delete
//	    args: {user: mallory}
//	  - type: trace_order
//	    ops: [Create, Delete]
//	  - type: notifications
//	    user: alice
//	    count: 1
//
// # Deterministic Testing
//
// Store row names come from a sequence generator, creation stamps from a
// frozen clock, dispatch sequence numbers from testutil.DeterministicClock
// and flow tokens from testutil.FixedFlowGenerator, so the same scenario
// always produces the same trace.
package harness
