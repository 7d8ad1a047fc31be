// Package share keeps the DocShare grants of a record in step with its
// team_members table.
//
// The Reconciler runs inside the document lifecycle hooks:
//
//   - OnSave grants read, write, share and notify to every non-empty team
//     member that does not yet hold a grant, then revokes the grants of
//     users no longer on the team.
//   - OnDelete revokes every grant on the record.
//
// After a successful OnSave the set of users holding a grant on the record
// equals the set of distinct non-empty users in its team table. Running
// OnSave twice with the same team makes no writes the second time.
//
// The store is injected through the Store interface. Calls run on the
// caller's goroutine and every store call receives the caller's context.
// A store failure aborts the call and is returned wrapped; grants already
// added in the same call are kept.
package share
