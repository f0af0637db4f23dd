// Package connection keeps the agent's single WebSocket connection alive.
//
// Manager sits between the transport and the request correlator. It owns the
// reconnect policy, the keepalive loop and the connection status broadcast:
//
//   - After a socket that had opened closes or errors, one reconnect attempt is
//     scheduled after ReconnectDelay. A failed attempt schedules the next one
//     until MaxReconnectAttempts is spent, then a terminal Status carrying
//     "reconnect attempts exhausted" is published and retrying stops.
//   - Only one attempt is ever pending; further drop events while it waits are
//     ignored.
//   - The attempt counter resets to zero when Opened fires and on every manual
//     Connect. A failed manual Connect is returned to the caller and never
//     retried automatically.
//   - While connected a ping envelope is sent every KeepaliveInterval. Inbound
//     pongs are consumed here; everything else goes to the MessageHandler.
//   - If AuthToken is set an auth envelope is sent after every open.
//   - Disconnect cancels both timers and closes the socket. It is the only way
//     to stop automatic reconnection. Dispose additionally cancels the root
//     context every timer goroutine derives from, so a timer that fires late
//     does nothing.
//
// Status is replaced, never mutated, on each transition and listeners are
// called in transition order.
package connection
