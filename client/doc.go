// Package client is the entry point for code that talks to the remote agent
// service. It wires a connection.Manager, a correlator.Correlator and a
// stream.Aggregator into one object with an explicit lifecycle:
//
//	c, err := client.New(cfg, client.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer c.Dispose()
//
//	if err := c.Connect(ctx, ""); err != nil {
//		return err // initial failures are not retried
//	}
//
//	result, err := c.SendRequest(ctx, "getTasks", nil, 0)
//
// Streaming requests hand each chunk to a callback and return the
// concatenated text once the service sends its completion frame:
//
//	res, err := c.SendStreamingRequest(ctx, "chat", prompt, func(text string) {
//		fmt.Print(text)
//	})
//
// After a drop the client reconnects on its own, up to the configured number
// of attempts. Disconnect is the only way to stop that; it also rejects every
// pending request with errors.ErrConnectionClosed.
package client
