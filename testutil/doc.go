// Package testutil provides test doubles shared across agentwire packages.
//
// Peer is an in-process WebSocket server standing in for the remote agent
// service. It speaks the envelope protocol, records what the client sends and
// lets a test answer requests, push stream chunks or notifications, refuse
// handshakes and drop connections:
//
//	peer := testutil.NewPeer(t, testutil.WithPeerHandler(func(p *testutil.Peer, env *message.Envelope) {
//		if env.Type == message.TypeRequest {
//			_ = p.RespondOK(env.RequestID, map[string]string{"status": "ok"})
//		}
//	}))
//	c, _ := client.New(cfg)
//	_ = c.Connect(ctx, peer.URL())
//
// MockNATSClient replaces natsclient.Client where only Publish and Subscribe
// are needed, with failure injection through FailNext:
//
//	nc := testutil.NewMockNATSClient()
//	nc.FailNext(2, natsclient.ErrNotConnected)
//	...
//	msg := testutil.WaitForMessage(t, nc, "agentwire.status", time.Second)
//
// Everything here is for tests only and is never imported by production code.
package testutil
