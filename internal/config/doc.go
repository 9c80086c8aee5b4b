// Package config provides configuration types and loading for the
// edge gateway.
//
// The configuration is a single YAML document describing the listener,
// the token validation call, named circuit breaker policies, static
// service instances, local fallback endpoints and the route table.
//
// # Features
//
//   - Environment variable substitution with ${VAR:-default} syntax
//   - Defaults for every optional field (ApplyDefaults)
//   - Validation that reports every problem in one util.ValidationError
//   - Debounced file watching for hot reload
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("configs/gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// # File Watching
//
//	watcher, err := config.NewWatcher(path, func(cfg *config.GatewayConfig) {
//	    // rebuild the route table
//	}, config.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = watcher.Start(ctx)
package config
