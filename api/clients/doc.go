// Package clients provides a Go client for the move daemon.
//
//	c := clients.NewMoveClient("http://127.0.0.1:8080")
//	if _, err := c.Connect(ctx, "0xabc..."); err != nil {
//		return err
//	}
//	resp, err := c.Move(ctx, &api.MoveRequest{Identity: "0xabc...", Move: 5})
//
// Non-200 answers are returned as *StatusError.
package clients
