// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package supervisor runs long-lived services under a suture tree.

	campus-vote (root)
	└── api-layer
	    └── http-server

A crashed service is restarted with backoff; canceling the context passed to
Serve shuts every service down within TreeConfig.ShutdownTimeout.

	tree := supervisor.NewTree(supervisor.TreeConfig{})
	tree.AddAPIService(supervisor.NewHTTPService(server, server.Addr, 10*time.Second))
	err := tree.Serve(ctx)
*/
package supervisor
