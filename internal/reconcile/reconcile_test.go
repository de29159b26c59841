package reconcile

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/wirewarden/wirewarden/internal/daemoncfg"
	"github.com/wirewarden/wirewarden/internal/platform"
	"github.com/wirewarden/wirewarden/internal/wiredoc"
)

var _ platform.Platform = (*fakePlatform)(nil)

// fakePlatform is a recording implementation of platform.Platform: it
// never touches a real kernel, just records what it was asked to do so
// tests can assert on the reconciler's decisions.
type fakePlatform struct {
	mu sync.Mutex

	managed map[string]string // name -> private key, as if read from the kernel

	applies   []applyCall
	removed   []string
	applyErr  map[string]error // interface name -> error to return once
	removeErr map[string]error
}

type applyCall struct {
	Interface string
	Config    wiredoc.DaemonConfig
	HadPrev   bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		managed:   make(map[string]string),
		applyErr:  make(map[string]error),
		removeErr: make(map[string]error),
	}
}

func (f *fakePlatform) ManagedInterfaces(_ context.Context, prefix string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.managed))
	for name, key := range f.managed {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			out[name] = key
		}
	}
	return out, nil
}

func (f *fakePlatform) ApplyConfig(_ context.Context, name string, cfg wiredoc.DaemonConfig, prev *wiredoc.DaemonConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.applyErr[name]; ok {
		delete(f.applyErr, name)
		return err
	}
	f.applies = append(f.applies, applyCall{Interface: name, Config: cfg, HadPrev: prev != nil})
	f.managed[name] = cfg.Server.PrivateKey
	return nil
}

func (f *fakePlatform) RemoveInterface(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.removeErr[name]; ok {
		delete(f.removeErr, name)
		return err
	}
	f.removed = append(f.removed, name)
	delete(f.managed, name)
	return nil
}

func (f *fakePlatform) applyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applies)
}

// fakeFetcher returns a fixed config or error every call.
type fakeFetcher struct {
	cfg wiredoc.DaemonConfig
	err error
}

func (f *fakeFetcher) FetchConfig(context.Context) (wiredoc.DaemonConfig, error) {
	return f.cfg, f.err
}

type fakeGoneError struct{ gone bool }

func (e *fakeGoneError) Error() string { return "fake fetch error" }
func (e *fakeGoneError) IsGone() bool  { return e.gone }

func configFor(serverID, privateKey string) wiredoc.DaemonConfig {
	return wiredoc.DaemonConfig{
		Server: wiredoc.ServerInfo{
			ID:         serverID,
			Name:       "srv-" + serverID,
			PrivateKey: privateKey,
			PublicKey:  "pub-" + privateKey,
			Address:    "10.0.0.1/24",
			ListenPort: 51820,
		},
		Network: wiredoc.NetworkInfo{ID: "net1", Name: "net", CIDR: "10.0.0.0/24", PersistentKeepalive: 25},
	}
}

func writeDaemonConfig(t *testing.T, entries ...daemoncfg.ServerEntry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daemon.toml")
	if err := daemoncfg.Save(path, daemoncfg.Config{Servers: entries}); err != nil {
		t.Fatalf("save daemon config: %v", err)
	}
	return path
}

func TestRunOnceAppliesFreshConfig(t *testing.T) {
	path := writeDaemonConfig(t, daemoncfg.ServerEntry{APIHost: "https://a.example.com", APIToken: "tok-a"})
	plat := newFakePlatform()

	r := New(path, func(entry daemoncfg.ServerEntry) Fetcher {
		return &fakeFetcher{cfg: configFor("s1", "key-a")}
	}, plat)

	r.RunOnce(t.Context())

	if plat.applyCount() != 1 {
		t.Fatalf("expected 1 apply, got %d", plat.applyCount())
	}
	if plat.applies[0].Interface != "wwg0" {
		t.Fatalf("expected first allocated interface to be wwg0, got %s", plat.applies[0].Interface)
	}
	if plat.applies[0].HadPrev {
		t.Fatal("expected first apply to be a full apply (no prior config)")
	}
}

func TestRunOnceSkipsUnchangedConfig(t *testing.T) {
	path := writeDaemonConfig(t, daemoncfg.ServerEntry{APIHost: "https://a.example.com", APIToken: "tok-a"})
	plat := newFakePlatform()
	cfg := configFor("s1", "key-a")

	r := New(path, func(entry daemoncfg.ServerEntry) Fetcher {
		return &fakeFetcher{cfg: cfg}
	}, plat)

	r.RunOnce(t.Context())
	r.RunOnce(t.Context())

	if plat.applyCount() != 1 {
		t.Fatalf("expected the second cycle to skip an unchanged config, got %d applies", plat.applyCount())
	}
}

func TestRunOnceReappliesChangedConfig(t *testing.T) {
	path := writeDaemonConfig(t, daemoncfg.ServerEntry{APIHost: "https://a.example.com", APIToken: "tok-a"})
	plat := newFakePlatform()

	call := 0
	r := New(path, func(entry daemoncfg.ServerEntry) Fetcher {
		call++
		cfg := configFor("s1", "key-a")
		if call > 1 {
			cfg.Server.ListenPort = 51821
		}
		return &fakeFetcher{cfg: cfg}
	}, plat)

	r.RunOnce(t.Context())
	r.RunOnce(t.Context())

	if plat.applyCount() != 2 {
		t.Fatalf("expected 2 applies after the config changed, got %d", plat.applyCount())
	}
	if !plat.applies[1].HadPrev {
		t.Fatal("expected the second apply to carry a prior config for differential apply")
	}
}

func TestRunOnceReusesInterfaceForKnownKey(t *testing.T) {
	path := writeDaemonConfig(t, daemoncfg.ServerEntry{APIHost: "https://a.example.com", APIToken: "tok-a"})
	plat := newFakePlatform()
	plat.managed["wwg3"] = "key-a" // interface already exists in the kernel from a prior process run

	r := New(path, func(entry daemoncfg.ServerEntry) Fetcher {
		return &fakeFetcher{cfg: configFor("s1", "key-a")}
	}, plat)

	r.RunOnce(t.Context())

	if plat.applyCount() != 1 || plat.applies[0].Interface != "wwg3" {
		t.Fatalf("expected reuse of live interface wwg3, got %+v", plat.applies)
	}
}

func TestRunOnceRemovesInterfaceNotInPlan(t *testing.T) {
	path := writeDaemonConfig(t, daemoncfg.ServerEntry{APIHost: "https://a.example.com", APIToken: "tok-a"})
	plat := newFakePlatform()

	fetchers := map[string]*fakeFetcher{
		"tok-a": {cfg: configFor("s1", "key-a")},
	}
	r := New(path, func(entry daemoncfg.ServerEntry) Fetcher {
		return fetchers[entry.APIToken]
	}, plat)

	r.RunOnce(t.Context())
	if plat.applyCount() != 1 {
		t.Fatalf("expected 1 apply in the first cycle, got %d", plat.applyCount())
	}

	if err := daemoncfg.Save(path, daemoncfg.Config{}); err != nil {
		t.Fatalf("rewrite config empty: %v", err)
	}
	r.RunOnce(t.Context())

	if len(plat.removed) != 1 || plat.removed[0] != "wwg0" {
		t.Fatalf("expected wwg0 to be removed once it left the config, got %v", plat.removed)
	}
}

func TestRunOnceGoneEntryIsPrunedFromConfig(t *testing.T) {
	path := writeDaemonConfig(t,
		daemoncfg.ServerEntry{APIHost: "https://a.example.com", APIToken: "tok-a"},
		daemoncfg.ServerEntry{APIHost: "https://b.example.com", APIToken: "tok-b"},
	)
	plat := newFakePlatform()

	r := New(path, func(entry daemoncfg.ServerEntry) Fetcher {
		if entry.APIToken == "tok-a" {
			return &fakeFetcher{err: &fakeGoneError{gone: true}}
		}
		return &fakeFetcher{cfg: configFor("s2", "key-b")}
	}, plat)

	r.RunOnce(t.Context())

	cfg, err := daemoncfg.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.Servers) != 1 || cfg.Servers[0].APIToken != "tok-b" {
		t.Fatalf("expected only tok-b to remain, got %+v", cfg.Servers)
	}
	if plat.applyCount() != 1 {
		t.Fatalf("expected the surviving entry to still be applied, got %d applies", plat.applyCount())
	}
}

func TestRunOnceTransientFetchErrorDoesNotPruneConfig(t *testing.T) {
	path := writeDaemonConfig(t, daemoncfg.ServerEntry{APIHost: "https://a.example.com", APIToken: "tok-a"})
	plat := newFakePlatform()

	r := New(path, func(entry daemoncfg.ServerEntry) Fetcher {
		return &fakeFetcher{err: &fakeGoneError{gone: false}}
	}, plat)

	r.RunOnce(t.Context())

	cfg, err := daemoncfg.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.Servers) != 1 {
		t.Fatalf("expected the entry to survive a transient error, got %+v", cfg.Servers)
	}
	if plat.applyCount() != 0 {
		t.Fatalf("expected no apply when the fetch failed, got %d", plat.applyCount())
	}
}

func TestRunOnceTransientFetchErrorAfterSuccessDoesNotRemoveInterface(t *testing.T) {
	path := writeDaemonConfig(t, daemoncfg.ServerEntry{APIHost: "https://a.example.com", APIToken: "tok-a"})
	plat := newFakePlatform()

	call := 0
	r := New(path, func(entry daemoncfg.ServerEntry) Fetcher {
		call++
		if call > 1 {
			return &fakeFetcher{err: &fakeGoneError{gone: false}}
		}
		return &fakeFetcher{cfg: configFor("s1", "key-a")}
	}, plat)

	r.RunOnce(t.Context())
	if plat.applyCount() != 1 || plat.applies[0].Interface != "wwg0" {
		t.Fatalf("expected wwg0 applied in the first cycle, got %+v", plat.applies)
	}

	// tok-a is still configured, but this cycle's fetch hits a transient
	// error rather than Gone — wwg0 must survive, not be torn down.
	r.RunOnce(t.Context())

	if len(plat.removed) != 0 {
		t.Fatalf("expected no interface removal on a transient fetch error, got %v", plat.removed)
	}
	if _, ok := plat.managed["wwg0"]; !ok {
		t.Fatal("expected wwg0 to still be managed after a transient fetch error")
	}
}

func TestRunOnceApplyFailureLeavesAppliedUnchanged(t *testing.T) {
	path := writeDaemonConfig(t, daemoncfg.ServerEntry{APIHost: "https://a.example.com", APIToken: "tok-a"})
	plat := newFakePlatform()

	call := 0
	r := New(path, func(entry daemoncfg.ServerEntry) Fetcher {
		call++
		cfg := configFor("s1", "key-a")
		if call > 1 {
			cfg.Server.ListenPort = 51821
		}
		return &fakeFetcher{cfg: cfg}
	}, plat)

	r.RunOnce(t.Context())
	if plat.applyCount() != 1 {
		t.Fatalf("expected 1 apply in the first cycle, got %d", plat.applyCount())
	}

	plat.applyErr["wwg0"] = errApplyBoom
	r.RunOnce(t.Context())
	if plat.applyCount() != 1 {
		t.Fatalf("expected the failed apply not to be recorded, got %d applies", plat.applyCount())
	}

	// Next cycle retries and succeeds since the injected error was one-shot.
	r.RunOnce(t.Context())
	if plat.applyCount() != 2 {
		t.Fatalf("expected the retried apply to succeed, got %d applies", plat.applyCount())
	}
}

func TestStartStopRunsAtLeastOneCycle(t *testing.T) {
	path := writeDaemonConfig(t, daemoncfg.ServerEntry{APIHost: "https://a.example.com", APIToken: "tok-a"})
	plat := newFakePlatform()

	r := New(path, func(entry daemoncfg.ServerEntry) Fetcher {
		return &fakeFetcher{cfg: configFor("s1", "key-a")}
	}, plat)
	r.Interval = time.Hour

	r.Start(t.Context())
	deadline := time.Now().Add(2 * time.Second)
	for plat.applyCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	r.Stop()

	if plat.applyCount() != 1 {
		t.Fatalf("expected Start to run an immediate cycle, got %d applies", plat.applyCount())
	}
}

var errApplyBoom = &fakeApplyError{}

type fakeApplyError struct{}

func (e *fakeApplyError) Error() string { return "boom" }
