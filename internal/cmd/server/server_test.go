package server

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "localhost:8080" {
		t.Fatalf("unexpected default http addr %q", cfg.HTTPAddr)
	}
	if cfg.RPID != "localhost" {
		t.Fatalf("unexpected default rp id %q", cfg.RPID)
	}
}

func TestParseConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("KEYSTRAND_HTTP_ADDR", "0.0.0.0:9000")
	t.Setenv("KEYSTRAND_RP_ID", "auth.example.com")

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-http-addr", "localhost:7000", "-challenge-ttl", "2m"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "localhost:7000" {
		t.Fatalf("expected flag to win, got %q", cfg.HTTPAddr)
	}
	if cfg.RPID != "auth.example.com" {
		t.Fatalf("expected env value, got %q", cfg.RPID)
	}
	if cfg.ChallengeTTL != 2*time.Minute {
		t.Fatalf("unexpected challenge ttl %v", cfg.ChallengeTTL)
	}
}

func TestParseConfigBadFlag(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	if _, err := ParseConfig(fs, []string{"-challenge-ttl", "nope"}); err == nil {
		t.Fatal("expected error")
	}
}
