// Package health tracks the health of the client's components.
//
// Each component (the WebSocket connection, the NATS bridge) reports a Status
// into a shared Monitor. Status has three states: healthy, degraded and
// unhealthy. AggregateHealth folds them into a single status for the /health
// endpoint served by the metric package; any unhealthy component makes the
// aggregate unhealthy.
//
// FromConnection converts a connection snapshot into a Status. Error text is
// sanitized first: URLs, IP addresses, ports and anything that looks like a
// credential are masked before the message is exposed over HTTP.
//
//	monitor := health.NewMonitor()
//	client.OnConnectionStatusChanged(func(s connection.Status) {
//		monitor.Update("websocket", health.FromConnection("websocket", s.Connected, s.LastConnected, s.Error))
//	})
package health
