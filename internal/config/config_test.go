package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWithHome_HomeFrom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if _, ok := HomeFrom(ctx); ok {
		t.Fatal("expected no home in empty context")
	}
	ctx = WithHome(ctx, "/foo/bar")
	got, ok := HomeFrom(ctx)
	if !ok || got != "/foo/bar" {
		t.Fatalf("HomeFrom: got %q, ok=%v; want /foo/bar, true", got, ok)
	}
}

func TestMustHomeFrom(t *testing.T) {
	t.Parallel()
	ctx := WithHome(context.Background(), "/anmar")
	if got := MustHomeFrom(ctx); got != "/anmar" {
		t.Fatalf("MustHomeFrom: got %q", got)
	}
}

func TestMustHomeFrom_panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when home missing")
		}
	}()
	MustHomeFrom(context.Background())
}

func TestResolveHome_override(t *testing.T) {
	t.Parallel()
	got, err := ResolveHome("/custom/home")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	if got != filepath.Clean("/custom/home") {
		t.Fatalf("ResolveHome: got %q", got)
	}
}

func TestResolveHome_env(t *testing.T) {
	t.Setenv("ANMAR_HOME", "/env/home")
	got, err := ResolveHome("")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	if got != filepath.Clean("/env/home") {
		t.Fatalf("ResolveHome from env: got %q", got)
	}
}

func TestResolveHome_default(t *testing.T) {
	t.Setenv("ANMAR_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("UserHomeDir: %v", err)
	}
	got, err := ResolveHome("")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	want := filepath.Join(home, ".anmar")
	if got != want {
		t.Fatalf("ResolveHome default: got %q, want %q", got, want)
	}
}

func TestLoadMissingFileDefaults(t *testing.T) {
	t.Setenv("ANMAR_API_KEY", "")
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != DefaultAddr || cfg.DB.Driver != "sqlite" {
		t.Fatalf("defaults: %+v", cfg)
	}
	if len(cfg.Engineers) != 2 || cfg.Engineers[0] != "Maria P." || cfg.Engineers[1] != "Juan" {
		t.Fatalf("engineer pool: %v", cfg.Engineers)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	t.Setenv("ANMAR_API_KEY", "env-key")
	home := t.TempDir()
	body := []byte(`
addr: "0.0.0.0:9000"
engineers:
  - "Ana"
  - "  "
  - "Luis"
quota:
  max_active_tickets: 3
advisor:
  base_url: "https://api.example.com"
  timeout_seconds: 10
`)
	if err := os.WriteFile(filepath.Join(home, FileName), body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(home)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "0.0.0.0:9000" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if len(cfg.Engineers) != 2 || cfg.Engineers[1] != "Luis" {
		t.Fatalf("engineers = %v", cfg.Engineers)
	}
	if cfg.Quota.MaxActiveTickets != 3 {
		t.Fatalf("quota = %d", cfg.Quota.MaxActiveTickets)
	}
	if cfg.Advisor.APIKey != "env-key" {
		t.Fatalf("advisor key = %q", cfg.Advisor.APIKey)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, FileName), []byte("addr: [broken"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(home); err == nil {
		t.Fatal("expected parse error")
	}
}
