// Package errors provides standardized error handling patterns for agentwire components.
//
// # Overview
//
// Errors fall into three classes: Transient (temporary, retryable), Invalid
// (bad input, non-retryable) and Fatal (unrecoverable). On top of the classes the
// package defines the request-level error kinds a caller of the client sees:
//
//   - *TimeoutError: no response arrived within the request deadline
//     (errors.Is(err, ErrRequestTimeout), IsTimeout(err))
//   - *RemoteError: the peer answered with success=false
//     (errors.Is(err, ErrRemoteFailure), IsRemote(err))
//   - ErrConnectionClosed: the request was pending when Disconnect was called
//   - ErrReconnectExhausted: automatic reconnection gave up
//
// # Wrapping
//
// Wrap third-party errors with component context:
//
//	if err := dialer.Dial(url); err != nil {
//	    return errors.WrapTransient(err, "Connection", "Connect", "dial websocket")
//	}
//
// The resulting message follows "component.method: action failed: cause" and the
// classification survives errors.As through any further %w wrapping.
//
// # Retry decisions
//
//	if errors.IsTransient(err) {
//	    // offer "retry" to the user
//	}
package errors
