//go:build !linux

package platform

import (
	"context"
	"errors"
	"runtime"

	"github.com/wirewarden/wirewarden/internal/wiredoc"
)

// ErrUnsupported is returned by every Kernel method on a non-Linux
// GOOS: kernel WireGuard device management is a Linux-only capability.
var ErrUnsupported = errors.New("platform: kernel WireGuard management is not supported on " + runtime.GOOS)

// Kernel is the non-Linux stand-in for the real Linux implementation.
// It satisfies Platform but every method fails, so a non-Linux build of
// the daemon can still compile (and its CLI scaffolding run) without
// ever successfully reconciling an interface.
type Kernel struct{}

// NewKernel constructs the stub Platform implementation.
func NewKernel() *Kernel { return &Kernel{} }

func (k *Kernel) ManagedInterfaces(_ context.Context, _ string) (map[string]string, error) {
	return nil, ErrUnsupported
}

func (k *Kernel) ApplyConfig(_ context.Context, _ string, _ wiredoc.DaemonConfig, _ *wiredoc.DaemonConfig) error {
	return ErrUnsupported
}

func (k *Kernel) RemoveInterface(_ context.Context, _ string) error {
	return ErrUnsupported
}
