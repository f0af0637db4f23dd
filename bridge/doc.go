// Package bridge republishes what a client observes on the WebSocket onto
// NATS, so other local processes can follow the remote service without
// holding their own connection.
//
// Two kinds of events are forwarded:
//
//	<prefix>.notify.<type>   every notification envelope, as received
//	<prefix>.status          every connection status transition
//
// Events are queued from the client's listener callbacks and published by a
// single background worker, in order. Each publish is retried with a short
// fixed backoff; an event that still fails is logged and dropped.
//
//	nc, _ := natsclient.NewClient(cfg.NATS.URL)
//	_ = nc.Connect(ctx)
//
//	b := bridge.New(nc, bridge.WithPrefix(cfg.NATS.SubjectPrefix), bridge.WithLogger(logger))
//	if err := b.Start(ctx, c); err != nil {
//		return err
//	}
//	defer b.Stop(5 * time.Second)
package bridge
