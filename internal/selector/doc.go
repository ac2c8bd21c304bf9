// Package selector implements the rubberdux selector engine: memoized,
// deduplicated, multicast views over store state.
//
// Every selector is built the same way: map the source through a derive
// function, drop consecutive equal results, and share one upstream
// subscription across all consumers. The engine's root state stream is a
// BehaviorSubject seeded with GetState and pushed on every store
// notification, so the first consumer to connect sees the current state at
// once. A consumer joining an already-connected selector waits for the next
// change: shared stages do not replay.
//
// Equality defaults to rx.StrictEqual. State that is mutated in place is not
// seen as changed; produce new values or pass WithEqual.
package selector
