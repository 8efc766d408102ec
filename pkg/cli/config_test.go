package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func tempConfig(t *testing.T) *Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := LoadConfigWithPath(path)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestLoadConfigCreatesFile(t *testing.T) {
	cfg := tempConfig(t)
	if _, err := os.Stat(cfg.Path()); err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if len(cfg.Contexts) != 0 {
		t.Fatalf("fresh config has %d contexts", len(cfg.Contexts))
	}
}

func TestConfigContextLifecycle(t *testing.T) {
	cfg := tempConfig(t)

	err := cfg.AddContext("site", &Context{
		APIKey:       "key-123456789",
		Model:        "gemini-2.0-flash-live-001",
		Instructions: "assist the foreman",
	})
	if err != nil {
		t.Fatal(err)
	}

	// First context becomes current automatically.
	cur, err := cfg.GetCurrentContext()
	if err != nil {
		t.Fatal(err)
	}
	if cur.Name != "site" {
		t.Fatalf("current = %q", cur.Name)
	}

	if err := cfg.AddContext("gateway", &Context{GatewayURL: "wss://gw.example"}); err != nil {
		t.Fatal(err)
	}
	if err := cfg.UseContext("gateway"); err != nil {
		t.Fatal(err)
	}

	// Reload from disk and verify persistence.
	cfg2, err := LoadConfigWithPath(cfg.Path())
	if err != nil {
		t.Fatal(err)
	}
	if cfg2.CurrentContext != "gateway" {
		t.Fatalf("current after reload = %q", cfg2.CurrentContext)
	}
	ctx, err := cfg2.GetContext("site")
	if err != nil {
		t.Fatal(err)
	}
	if ctx.Model != "gemini-2.0-flash-live-001" || ctx.Instructions != "assist the foreman" {
		t.Fatalf("context lost fields: %+v", ctx)
	}

	names := cfg2.ListContexts()
	if len(names) != 2 || names[0] != "gateway" || names[1] != "site" {
		t.Fatalf("names = %v", names)
	}

	if err := cfg2.DeleteContext("gateway"); err != nil {
		t.Fatal(err)
	}
	if cfg2.CurrentContext != "" {
		t.Fatalf("current not cleared after deleting it: %q", cfg2.CurrentContext)
	}
	if err := cfg2.DeleteContext("nope"); err == nil {
		t.Fatal("want error deleting unknown context")
	}
}

func TestResolveContext(t *testing.T) {
	cfg := tempConfig(t)
	if err := cfg.AddContext("a", &Context{APIKey: "ka"}); err != nil {
		t.Fatal(err)
	}
	if err := cfg.AddContext("b", &Context{APIKey: "kb"}); err != nil {
		t.Fatal(err)
	}

	ctx, err := cfg.ResolveContext("")
	if err != nil || ctx.Name != "a" {
		t.Fatalf("resolve empty = %v, %v", ctx, err)
	}
	ctx, err = cfg.ResolveContext("b")
	if err != nil || ctx.Name != "b" {
		t.Fatalf("resolve b = %v, %v", ctx, err)
	}
	if _, err := cfg.ResolveContext("c"); err == nil {
		t.Fatal("want error for unknown context")
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := MaskAPIKey("short"); got != "*****" {
		t.Fatalf("short = %q", got)
	}
	if got := MaskAPIKey("abcd1234efgh"); got != "abcd****efgh" {
		t.Fatalf("long = %q", got)
	}
}
