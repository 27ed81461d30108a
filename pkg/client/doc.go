/*
Package client talks to a running replicad over its control socket.

Each call opens a connection, writes one request and reads one reply.
Per-resource failures are returned inside the results; only failures
of the request as a whole are returned as errors.

	c := client.NewClient("/var/run/replicad/control.sock")
	results, err := c.SetRole(ctx, types.RolePrimary, "data0")
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%s: %v\n", r.Resource, r.Err)
		}
	}
*/
package client
