// Package audit buffers security events and delivers them to sinks off the
// request path.
//
// A [Dispatcher] owns a bounded channel and one worker. With DropIfFull set,
// Emit never blocks and overflow is counted; otherwise Emit waits for space or
// for the caller's context. Sink errors go to the OnFailure hook and are never
// returned to the operation that produced the event.
//
// [Event] carries a ULID, the action name, the acting user, an optional
// resource, client metadata and free-form details.
//
// This package does not decide which events exist; the Engine and the flows do.
// It must not import authcore or any sibling internal package.
package audit
