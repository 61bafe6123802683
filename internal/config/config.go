// Package config holds process-level settings: where to listen and
// whether to run in development mode. Grounded on
// agentkube-agentkube/config/config.go's flag-plus-struct shape. Where
// kubeconfigs are searched for and where persisted state lives are not
// configured here; pkg/appdir and the user's home/config directories
// decide those.
package config

import (
	"flag"
	"os"
	"strconv"
)

// Config is the process-wide configuration, parsed once at startup.
type Config struct {
	// ListenAddr is the host portion of the HTTP/WebSocket listen
	// address; empty means all interfaces.
	ListenAddr string
	// Port is the TCP port the HTTP/WebSocket server binds to.
	Port int
	// DevMode relaxes gin's release-mode logging and CORS checks for
	// local development against the desktop shell.
	DevMode bool
	// ExtraKubeconfigPaths lists additional kubeconfig files or
	// directories. Parse never sets it and nothing reads it: kubeconfig
	// discovery scans only the well-known search paths (§6).
	ExtraKubeconfigPaths []string
}

const (
	defaultPort = 47821
	envPort     = "CLUSTERCORE_PORT"
	envDevMode  = "CLUSTERCORE_DEV"
)

// Parse builds a Config from command-line flags and environment
// overrides, matching the teacher's Parse(os.Args) call shape.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("clustercore", flag.ContinueOnError)

	cfg := &Config{Port: defaultPort}
	if v := os.Getenv(envPort); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}

	fs.StringVar(&cfg.ListenAddr, "listen-addr", "", "address to bind the HTTP/WebSocket server to (empty = all interfaces)")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "port to bind the HTTP/WebSocket server to")
	fs.BoolVar(&cfg.DevMode, "dev", os.Getenv(envDevMode) == "1", "run in development mode (verbose gin logging, permissive CORS)")

	if len(args) > 1 {
		if err := fs.Parse(args[1:]); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
