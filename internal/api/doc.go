// Package api provides the loopback control API of the launcher.
//
// The GUI shell uses it to read the supervised backend's state, browse the
// launch journal and follow lifecycle events over a WebSocket. Prometheus
// metrics are served on /metrics.
//
// The server binds 127.0.0.1 only. Every route except /api/v1/health needs
// a bearer token issued by the run's auth.Signer; WebSocket clients may pass
// it as the token query parameter instead.
//
//	server, err := api.New(deps)
//	err = server.Start(ctx, port)
//	defer server.Close()
package api
