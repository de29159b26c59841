// Package reconcile drives the daemon's convergence loop (spec §4.7):
// on a timer, fetch each configured server's DaemonConfig in parallel,
// classify the results, and apply the changes to the kernel
// sequentially across interfaces.
package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/wirewarden/wirewarden/internal/daemoncfg"
	"github.com/wirewarden/wirewarden/internal/platform"
	"github.com/wirewarden/wirewarden/internal/wiredoc"
)

// DefaultInterval is how often the reconcile loop runs when the caller
// doesn't override it.
const DefaultInterval = 30 * time.Second

// DefaultPrefix is the shared name prefix for every daemon-managed
// kernel interface.
const DefaultPrefix = "wwg"

// Fetcher is the subset of pkg/apiclient.Client the reconciler depends
// on. goneError is implemented by the concrete error FetchConfig returns
// on failure; a nil error means success.
type Fetcher interface {
	FetchConfig(ctx context.Context) (wiredoc.DaemonConfig, error)
}

// FetcherFactory builds a Fetcher for one config entry. Exists so the
// reconciler doesn't depend on pkg/apiclient's constructor signature
// directly, and so tests can substitute fakes per entry.
type FetcherFactory func(entry daemoncfg.ServerEntry) Fetcher

type goneError interface {
	IsGone() bool
}

// Reconciler owns the cycle loop, the daemon's on-disk config, and the
// per-host in-memory state spec §4.7 requires to survive restart with
// stable interface names.
type Reconciler struct {
	ConfigPath string
	NewFetcher FetcherFactory
	Platform   platform.Platform
	Interval   time.Duration
	Prefix     string

	mu          sync.Mutex
	applied     map[string]wiredoc.DaemonConfig // interface name -> last applied config
	assignments map[string]string               // private_key_b64 -> interface name
	entryIface  map[string]string               // api_token -> interface name, for transient-failure survival

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Reconciler with the given dependencies, defaulting
// Interval and Prefix when left zero.
func New(configPath string, newFetcher FetcherFactory, plat platform.Platform) *Reconciler {
	return &Reconciler{
		ConfigPath:  configPath,
		NewFetcher:  newFetcher,
		Platform:    plat,
		Interval:    DefaultInterval,
		Prefix:      DefaultPrefix,
		applied:     make(map[string]wiredoc.DaemonConfig),
		assignments: make(map[string]string),
		entryIface:  make(map[string]string),
	}
}

// Start launches the reconcile loop in a background goroutine. Stop
// cancels it and blocks until the loop has exited.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx)
}

// Stop cancels the loop and waits for it to exit.
func (r *Reconciler) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.done)

	if r.Interval <= 0 {
		r.Interval = DefaultInterval
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	r.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// fetchResult is the outcome of fetching one configured entry.
type fetchResult struct {
	entry daemoncfg.ServerEntry
	iface string
	cfg   wiredoc.DaemonConfig
	err   error
	gone  bool
}

// RunOnce executes a single reconcile cycle: list managed interfaces,
// fetch every configured entry in parallel, then apply sequentially.
// Exported so tests can drive cycles directly without waiting on the
// ticker.
func (r *Reconciler) RunOnce(ctx context.Context) {
	cfg, err := daemoncfg.Load(r.ConfigPath)
	if err != nil {
		slog.Error("reconcile: load config", "error", err)
		return
	}
	if len(cfg.Servers) == 0 {
		slog.Debug("reconcile: no servers configured")
	}

	liveByKey, err := r.Platform.ManagedInterfaces(ctx, r.Prefix)
	if err != nil {
		slog.Error("reconcile: list managed interfaces", "error", err)
		liveByKey = map[string]string{}
	}
	liveNameByKey := make(map[string]string, len(liveByKey))
	usedNames := make(map[string]struct{}, len(liveByKey))
	for name, key := range liveByKey {
		liveNameByKey[key] = name
		usedNames[name] = struct{}{}
	}

	results := r.fetchAll(ctx, cfg.Servers, liveNameByKey, usedNames)

	plan := make(map[string]wiredoc.DaemonConfig)
	keep := make(map[string]struct{})
	var goneEntries []daemoncfg.ServerEntry
	for _, res := range results {
		switch {
		case res.gone:
			goneEntries = append(goneEntries, res.entry)
		case res.err != nil:
			slog.Warn("reconcile: fetch failed, retrying next cycle", "api_host", res.entry.APIHost, "error", res.err)
			// A transient failure must not tear down the interface this
			// entry is already running on — only a Gone classification
			// (handled above) or removal from the config file does that.
			if name, ok := r.knownIfaceForEntry(res.entry.APIToken); ok {
				keep[name] = struct{}{}
			}
		default:
			plan[res.iface] = res.cfg
			r.rememberEntryIface(res.entry.APIToken, res.iface)
		}
	}

	// plan can be empty with zero configured entries; that's how a fully
	// emptied config tears every managed interface down below.
	r.applyPlan(ctx, plan)
	r.removeUnplanned(ctx, plan, keep)

	if len(goneEntries) > 0 {
		r.pruneGone(cfg, goneEntries)
	}
}

func (r *Reconciler) fetchAll(ctx context.Context, entries []daemoncfg.ServerEntry, liveNameByKey map[string]string, usedNames map[string]struct{}) []fetchResult {
	results := make([]fetchResult, len(entries))
	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Add(1)
		go func(i int, entry daemoncfg.ServerEntry) {
			defer wg.Done()
			fetcher := r.NewFetcher(entry)
			cfg, err := fetcher.FetchConfig(ctx)
			if err != nil {
				var ge goneError
				gone := false
				if ok := asGoneError(err, &ge); ok {
					gone = ge.IsGone()
				}
				results[i] = fetchResult{entry: entry, err: err, gone: gone}
				return
			}
			iface := r.assignInterface(cfg.Server.PrivateKey, liveNameByKey, usedNames)
			results[i] = fetchResult{entry: entry, iface: iface, cfg: cfg}
		}(i, entry)
	}
	wg.Wait()
	return results
}

func asGoneError(err error, target *goneError) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if ge, ok := err.(goneError); ok {
			*target = ge
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// assignInterface implements spec §4.7's key-derived naming: reuse a
// live kernel interface for this key if one exists, else reuse a prior
// in-memory assignment, else allocate the lowest unused prefix+N.
func (r *Reconciler) assignInterface(privateKeyB64 string, liveNameByKey map[string]string, usedNames map[string]struct{}) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name, ok := liveNameByKey[privateKeyB64]; ok {
		r.assignments[privateKeyB64] = name
		usedNames[name] = struct{}{}
		return name
	}
	if name, ok := r.assignments[privateKeyB64]; ok {
		usedNames[name] = struct{}{}
		return name
	}
	name := lowestUnusedName(r.Prefix, usedNames)
	r.assignments[privateKeyB64] = name
	usedNames[name] = struct{}{}
	return name
}

// knownIfaceForEntry returns the interface name this entry was last seen
// on, if any, so a transient fetch failure can protect that interface
// from removeUnplanned without needing a fresh DaemonConfig this cycle.
func (r *Reconciler) knownIfaceForEntry(apiToken string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.entryIface[apiToken]
	return name, ok
}

func (r *Reconciler) rememberEntryIface(apiToken, name string) {
	r.mu.Lock()
	r.entryIface[apiToken] = name
	r.mu.Unlock()
}

func lowestUnusedName(prefix string, used map[string]struct{}) string {
	for n := 0; ; n++ {
		name := prefix + strconv.Itoa(n)
		if _, ok := used[name]; !ok {
			return name
		}
	}
}

func (r *Reconciler) applyPlan(ctx context.Context, plan map[string]wiredoc.DaemonConfig) {
	names := make([]string, 0, len(plan))
	for name := range plan {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg := plan[name]
		r.mu.Lock()
		prevCfg, hasPrev := r.applied[name]
		r.mu.Unlock()

		if hasPrev && prevCfg.Equal(cfg) {
			continue
		}

		var prevPtr *wiredoc.DaemonConfig
		if hasPrev {
			prevPtr = &prevCfg
		}
		if err := r.Platform.ApplyConfig(ctx, name, cfg, prevPtr); err != nil {
			slog.Error("reconcile: apply config failed, retrying next cycle", "interface", name, "error", err)
			continue
		}
		r.mu.Lock()
		r.applied[name] = cfg
		r.mu.Unlock()
		slog.Info("reconcile: applied config", "interface", name, "server", cfg.Server.Name, "peers", len(cfg.Peers))
	}
}

// removeUnplanned tears down every interface this process has applied
// (those recorded in r.applied) that has no corresponding entry left
// configured this cycle. An interface missing from plan merely because
// its entry's fetch failed transiently (see keep, populated in RunOnce)
// is left alone; only interfaces whose entry is Gone or was dropped from
// the config file are removed. Managed interfaces found in the kernel
// that this process has never applied are not removed.
func (r *Reconciler) removeUnplanned(ctx context.Context, plan map[string]wiredoc.DaemonConfig, keep map[string]struct{}) {
	r.mu.Lock()
	stale := make([]string, 0)
	for name := range r.applied {
		if _, ok := plan[name]; ok {
			continue
		}
		if _, ok := keep[name]; ok {
			continue
		}
		stale = append(stale, name)
	}
	r.mu.Unlock()

	for _, name := range stale {
		if err := r.Platform.RemoveInterface(ctx, name); err != nil {
			slog.Error("reconcile: remove interface failed, retrying next cycle", "interface", name, "error", err)
			continue
		}
		r.mu.Lock()
		delete(r.applied, name)
		for key, n := range r.assignments {
			if n == name {
				delete(r.assignments, key)
			}
		}
		for token, n := range r.entryIface {
			if n == name {
				delete(r.entryIface, token)
			}
		}
		r.mu.Unlock()
		slog.Info("reconcile: removed interface", "interface", name)
	}
}

func (r *Reconciler) pruneGone(cfg daemoncfg.Config, gone []daemoncfg.ServerEntry) {
	updated := cfg
	for _, entry := range gone {
		var removed bool
		updated, removed = daemoncfg.RemoveEntry(updated, entry.APIToken)
		if removed {
			slog.Warn("reconcile: server gone, removed from config", "api_host", entry.APIHost)
		}
		r.mu.Lock()
		delete(r.entryIface, entry.APIToken)
		r.mu.Unlock()
	}
	if err := daemoncfg.Save(r.ConfigPath, updated); err != nil {
		slog.Error("reconcile: save config after pruning gone entries", "error", err)
	}
}
