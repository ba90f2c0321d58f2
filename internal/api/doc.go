// Package api provides the read-only HTTP inspection API for the forensic
// readiness core.
//
// It exposes the profile registry, the provisioned evidence stores and
// their records, and the state of each evidence collection path. Nothing
// can be changed through it.
//
// When a JWT secret is configured every route except /health requires a
// bearer token carrying the evidence:read scope. A Hub streams each stored
// record to WebSocket clients subscribed to its store key.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
