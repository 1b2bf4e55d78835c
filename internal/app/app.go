package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/keystrand/keystrand/internal/auth/challenge"
	"github.com/keystrand/keystrand/internal/auth/service"
	"github.com/keystrand/keystrand/internal/auth/session"
	"github.com/keystrand/keystrand/internal/auth/storage/sqlite"
	"github.com/keystrand/keystrand/internal/passkey"
	"github.com/keystrand/keystrand/internal/platform/config"
	"github.com/keystrand/keystrand/internal/platform/otel"
	"github.com/keystrand/keystrand/internal/web"
)

// sweepInterval paces the background cleanup of expired challenges and
// sessions.
const sweepInterval = time.Minute

// Config holds the service configuration.
type Config struct {
	HTTPAddr      string        `env:"KEYSTRAND_HTTP_ADDR" envDefault:"localhost:8080"`
	DBPath        string        `env:"KEYSTRAND_DB_PATH" envDefault:"keystrand.db"`
	RPID          string        `env:"KEYSTRAND_RP_ID" envDefault:"localhost"`
	Origin        string        `env:"KEYSTRAND_ORIGIN" envDefault:"http://localhost:8080"`
	SessionKey    string        `env:"KEYSTRAND_SESSION_KEY"`
	ChallengeTTL  time.Duration `env:"KEYSTRAND_CHALLENGE_TTL" envDefault:"5m"`
	SecureCookies bool          `env:"KEYSTRAND_SECURE_COOKIES" envDefault:"false"`
}

// ParseConfigFromEnv loads the service configuration from the environment.
func ParseConfigFromEnv() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration the server cannot start without.
func (cfg Config) Validate() error {
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("http address is required")
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if cfg.RPID == "" {
		return fmt.Errorf("relying party id is required")
	}
	if cfg.Origin == "" {
		return fmt.Errorf("origin is required")
	}
	key, err := hex.DecodeString(cfg.SessionKey)
	if err != nil {
		return fmt.Errorf("session key must be hex encoded: %w", err)
	}
	if len(key) < 32 {
		return fmt.Errorf("session key must be at least 32 bytes")
	}
	return nil
}

// Run assembles the service from cfg and serves until the context ends.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	sessionKey, err := hex.DecodeString(cfg.SessionKey)
	if err != nil {
		return fmt.Errorf("decode session key: %w", err)
	}

	shutdownTracing, err := otel.Setup(ctx, "keystrand")
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("shutdown tracing: %v", err)
		}
		cancel()
	}()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close storage: %v", err)
		}
	}()

	challenges := challenge.NewManager(store, cfg.ChallengeTTL)
	sessions := session.NewManager(store)

	svc, err := service.New(service.Config{
		RelyingParty: &passkey.RelyingParty{ID: cfg.RPID, Origin: cfg.Origin},
		Challenges:   challenges,
		Sessions:     sessions,
		Users:        store,
		Credentials:  store,
	})
	if err != nil {
		return fmt.Errorf("build auth service: %w", err)
	}

	handler, err := web.NewHandler(web.HandlerConfig{
		Auth:          svc,
		Origin:        cfg.Origin,
		SessionKey:    sessionKey,
		SecureCookies: cfg.SecureCookies,
	})
	if err != nil {
		return fmt.Errorf("build handler: %w", err)
	}

	server, err := web.NewServer(web.Config{HTTPAddr: cfg.HTTPAddr, Handler: handler})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	go sweepLoop(ctx, challenges, sessions)

	return server.ListenAndServe(ctx)
}

// sweepLoop periodically clears expired challenges and sessions until the
// context ends.
func sweepLoop(ctx context.Context, challenges *challenge.Manager, sessions *session.Manager) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := challenges.Sweep(ctx); err != nil && ctx.Err() == nil {
				log.Printf("sweep challenges: %v", err)
			}
			if err := sessions.Sweep(ctx); err != nil && ctx.Err() == nil {
				log.Printf("sweep sessions: %v", err)
			}
		}
	}
}
