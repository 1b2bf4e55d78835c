// Package server parses configuration and runs the auth server.
package server

import (
	"context"
	"flag"

	"github.com/keystrand/keystrand/internal/app"
)

// ParseConfig loads configuration from the environment and lets flags
// override it.
func ParseConfig(fs *flag.FlagSet, args []string) (app.Config, error) {
	cfg, err := app.ParseConfigFromEnv()
	if err != nil {
		return app.Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The HTTP server address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path to the SQLite database file")
	fs.StringVar(&cfg.RPID, "rp-id", cfg.RPID, "WebAuthn relying party id")
	fs.StringVar(&cfg.Origin, "origin", cfg.Origin, "Web origin allowed to call the API")
	fs.DurationVar(&cfg.ChallengeTTL, "challenge-ttl", cfg.ChallengeTTL, "How long an issued challenge stays valid")
	fs.BoolVar(&cfg.SecureCookies, "secure-cookies", cfg.SecureCookies, "Mark session cookies Secure")
	if err := fs.Parse(args); err != nil {
		return app.Config{}, err
	}
	return cfg, nil
}

// Run starts the auth server.
func Run(ctx context.Context, cfg app.Config) error {
	return app.Run(ctx, cfg)
}
