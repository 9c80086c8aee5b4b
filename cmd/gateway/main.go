// Package main is the entry point for the edge gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vyrodovalexey/edgegw/internal/config"
	"github.com/vyrodovalexey/edgegw/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags(flag.CommandLine, os.Args[1:])

	if flags.showVersion {
		printVersion()
		return
	}

	logger, err := initLogger(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig(flags.configPath, logger)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	app, err := newApplication(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize gateway", observability.Error(err))
	}

	if err := run(context.Background(), app, flags.configPath, logger); err != nil {
		logger.Fatal("gateway terminated", observability.Error(err))
	}
}

// parseFlags parses command line flags. Environment variables provide
// the defaults.
func parseFlags(fs *flag.FlagSet, args []string) cliFlags {
	var f cliFlags
	fs.StringVar(&f.configPath, "config", getEnvOrDefault("GATEWAY_CONFIG_PATH", "configs/gateway.yaml"),
		"Path to configuration file")
	fs.StringVar(&f.logLevel, "log-level", getEnvOrDefault("GATEWAY_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", getEnvOrDefault("GATEWAY_LOG_FORMAT", "json"),
		"Log format (json, console)")
	fs.BoolVar(&f.showVersion, "version", getEnvBool("GATEWAY_SHOW_VERSION", false),
		"Show version information")
	_ = fs.Parse(args)
	return f
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("edgegw version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) (observability.Logger, error) {
	return observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
		Output: getEnvOrDefault("GATEWAY_LOG_OUTPUT", "stdout"),
	})
}

// loadConfig loads and validates the configuration.
func loadConfig(configPath string, logger observability.Logger) (*config.GatewayConfig, error) {
	logger.Info("starting edgegw",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	logger.Info("configuration loaded",
		observability.String("name", cfg.Metadata.Name),
		observability.Int("routes", len(cfg.Spec.Routes)),
		observability.Int("services", len(cfg.Spec.Services)),
		observability.Int("circuit_breakers", len(cfg.Spec.CircuitBreakers)),
		observability.Int("fallbacks", len(cfg.Spec.Fallbacks)),
		observability.Bool("token_cache", cfg.Spec.Auth.Cache.Enabled),
	)

	return cfg, nil
}
