// Package backend forwards gateway requests to upstream services.
//
// Targets are either lb://<service>, resolved through the static
// service Registry with round-robin instance choice, or a direct
// http(s):// base URL. HTTPForwarder sends the request over an httplb
// client, strips hop-by-hop headers and adds the X-Forwarded-* set.
//
// # Usage
//
//	client := backend.NewClient(ctx, backend.ClientConfig{Timeout: 30 * time.Second})
//	defer backend.CloseClient(client)
//
//	registry, err := backend.NewRegistry(cfg.Spec.Services)
//	fwd := backend.NewHTTPForwarder(client, registry)
//	resp, err := fwd.Forward(ctx, r, "lb://car-microservice")
package backend
