package daemoncfg

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileIsEmptyConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Servers) != 0 {
		t.Fatalf("expected empty Servers, got %v", cfg.Servers)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.toml")

	cfg := Config{Servers: []ServerEntry{
		{APIHost: "https://a.example.com", APIToken: "token-a"},
		{APIHost: "https://b.example.com", APIToken: "token-b"},
	}}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(got.Servers))
	}
	if got.Servers[0].APIHost != "https://a.example.com" || got.Servers[0].APIToken != "token-a" {
		t.Fatalf("unexpected first entry: %+v", got.Servers[0])
	}
}

func TestConnectAppendsNewEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.toml")

	cfg, err := Connect(path, "https://control.example.com", "tok-1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if len(cfg.Servers) != 1 {
		t.Fatalf("expected 1 server after first connect, got %d", len(cfg.Servers))
	}

	cfg, err = Connect(path, "https://control2.example.com", "tok-2")
	if err != nil {
		t.Fatalf("second connect: %v", err)
	}
	if len(cfg.Servers) != 2 {
		t.Fatalf("expected 2 servers after second connect, got %d", len(cfg.Servers))
	}
}

func TestConnectRejectsDuplicateToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.toml")

	if _, err := Connect(path, "https://control.example.com", "tok-1"); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	_, err := Connect(path, "https://control.example.com", "tok-1")
	if !errors.Is(err, ErrTokenAlreadyConnected) {
		t.Fatalf("expected ErrTokenAlreadyConnected, got %v", err)
	}
}

func TestRemoveEntry(t *testing.T) {
	cfg := Config{Servers: []ServerEntry{
		{APIHost: "https://a.example.com", APIToken: "token-a"},
		{APIHost: "https://b.example.com", APIToken: "token-b"},
	}}

	updated, removed := RemoveEntry(cfg, "token-a")
	if !removed {
		t.Fatal("expected removed=true")
	}
	if len(updated.Servers) != 1 || updated.Servers[0].APIToken != "token-b" {
		t.Fatalf("unexpected remaining servers: %+v", updated.Servers)
	}

	_, removed = RemoveEntry(updated, "not-present")
	if removed {
		t.Fatal("expected removed=false for an absent token")
	}
}
