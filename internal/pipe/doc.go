// Package pipe implements the rubberdux pipe engine.
//
// The engine routes named events to per-name multicast streams, lets callers
// declare pipes that join several named streams into one action stream, and
// forwards every pipe's actions to the store through a single output
// channel.
//
// ARCHITECTURE:
//
// Event Registry:
// One rx.Subject per event name, created on first reference by Dispatch or
// by a pipe's Stream call, and never pruned for the life of the Engine.
//
// Output Channel:
// One rx.Subject of actions per Engine. It is subscribed to the store's
// Dispatch exactly once, in New, and is never torn down.
//
// Event Flow:
//  1. Dispatch(event) looks up the stream for event.Name
//  2. Every pipe joined on that name recomputes its CombineLatest tuple
//  3. The pipe body maps the tuple to an action
//  4. The action is stamped, recorded, and pushed into the output channel
//  5. The output channel calls store.Dispatch
//
// DROP POLICY:
//
// Dispatching a name no pipe has referenced yet registers an empty stream and
// discards the event. This is deliberate and observable: it is logged at
// debug level, counted by Dropped, passed to WithDropHandler, and recorded
// with delivered=false.
//
// FAILURE ISOLATION:
//
// A pipe whose stream fails (a TryMap error or a recovered panic) is detached
// and reported as a *PipeError. A store.Dispatch panic is recovered into a
// *DispatchError. Neither stops the output channel from forwarding other
// pipes' actions.
package pipe
