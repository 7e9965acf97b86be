// Package live turns committed writes into continuously updated query
// results.
//
// A Tracker maps table names to subscriptions. The store publishes the set
// of tables each committed transaction changed; the tracker's dispatcher
// delivers those events in commit order. A Stream registers with the
// tracker, computes its first value, then recomputes on a single worker
// goroutine whenever one of its tables is invalidated.
//
// Delivery guarantees:
//   - no missed updates: a commit after Watch returns is reflected in a
//     later emission
//   - coalescing: invalidations that arrive while a recomputation is
//     pending produce one recomputation
//   - latest value wins: a stream buffers at most one unread value
package live
