// Package hooks is the host framework's document-event registry.
//
// Handlers are registered per (event, doctype) pair, or for every doctype
// with the "*" wildcard. Dispatch runs the matching handlers synchronously
// on the caller's goroutine in registration order, doctype-specific
// handlers before wildcard ones. The first handler error aborts the
// dispatch and is returned.
//
// Every dispatch is stamped with a strictly increasing sequence number
// from a Sequencer and a flow token from a FlowTokenGenerator. Both are
// attached to the context (see FromContext) so that logs and traces of
// everything a save triggers can be correlated.
package hooks
