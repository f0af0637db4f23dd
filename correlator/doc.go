// Package correlator matches responses to the requests that caused them.
//
// Every request gets an id of the form "<unix-ms>-<uuidv4>" and a pending
// entry holding a one-slot channel. The entry leaves the map exactly once, by
// whichever of these happens first:
//
//   - a response or error envelope carrying its id arrives
//   - the request's timeout fires (*errors.TimeoutError)
//   - the caller's context is cancelled
//   - FailAll rejects everything, as Disconnect does with ErrConnectionClosed
//
// The party that removes the entry is the only one that writes to its
// channel, so a caller never sees two outcomes and a late response for an
// expired request is simply dropped as unmatched.
//
// Requests are matched by id, not arrival order; any number may be in flight.
// Requests are sent even while disconnected and then left to time out.
//
// Streaming requests register a ChunkFunc. Chunk frames are passed to it on
// the read goroutine in arrival order; the complete frame resolves the
// request and an error frame rejects it with ErrStreamAborted wrapping a
// *errors.RemoteError.
//
// Envelopes that answer no pending request (notifications, status updates,
// error envelopes without an id) go to handlers registered with
// OnNotification.
package correlator
