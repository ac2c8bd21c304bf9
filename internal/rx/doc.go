// Package rx implements the push-based reactive primitives the pipe and
// selector engines are built on.
//
// DELIVERY MODEL:
//
// Every Next call walks its observers synchronously, depth-first, on the
// caller's goroutine. There is no scheduler, no buffering and no
// backpressure: a slow observer blocks the emitting call. Locks guard only
// observer sets and operator state; callbacks never run while a lock is held,
// so an observer may re-enter Next or Subscribe. A re-entrant Next supersedes
// the delivery in progress, so no observer receives an older value after a
// newer one.
//
// Primitives:
//   - Subject: multicast, no replay
//   - BehaviorSubject: multicast, replays the current value on subscribe
//   - CombineLatest: N-way join, gated until every source has emitted
//   - DistinctUntilChanged: drops consecutive equal values
//   - Share: ref-counted single upstream subscription
//
// FAILURE ISOLATION:
//
// Subjects recover a panicking observer, detach it, and report a *PanicError
// through that observer's Error callback. Operators forward errors
// downstream and unsubscribe upstream, so a failure tears down exactly one
// subscription chain and leaves sibling observers running.
package rx
