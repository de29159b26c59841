// Package platform is the capability set the reconciler drives: create
// and tear down kernel WireGuard interfaces, read back the private keys
// of already-managed ones, and apply a DaemonConfig differentially
// against whatever was last applied. internal/reconcile depends only on
// the Platform interface; platform_linux.go is the real implementation,
// platform_stub.go backs every other GOOS.
package platform

import (
	"context"

	"github.com/wirewarden/wirewarden/internal/wiredoc"
)

// Platform is everything the reconciler needs from the host kernel.
type Platform interface {
	// ManagedInterfaces lists every kernel interface whose name starts
	// with prefix and returns its base64 private key, as reported by the
	// kernel to the owning process. This is the source of truth for
	// spec §4.7's key-derived interface identity.
	ManagedInterfaces(ctx context.Context, prefix string) (map[string]string, error)

	// ApplyConfig realizes cfg on the named interface. If prev is nil
	// (first apply, or the interface was just created) this is a full
	// apply: create interface, device config with ReplacePeers, address
	// flush+assign, link up. If prev is non-nil this is a differential
	// apply per spec §4.7's ordering guarantees.
	ApplyConfig(ctx context.Context, name string, cfg wiredoc.DaemonConfig, prev *wiredoc.DaemonConfig) error

	// RemoveInterface tears down a managed interface. Removing an
	// already-absent interface is not an error — teardown must be
	// idempotent so a retried cycle doesn't fail on its own prior
	// success.
	RemoveInterface(ctx context.Context, name string) error
}
