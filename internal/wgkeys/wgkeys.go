// Package wgkeys wraps wgctrl's wgtypes key helpers for the handful of
// operations the control plane needs: generating a fresh Curve25519
// keypair at Server/Client creation time, and parsing/validating
// base64-encoded keys read back from storage or the wire.
package wgkeys

import (
	"fmt"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// Pair is a freshly generated WireGuard keypair.
type Pair struct {
	Private wgtypes.Key
	Public  wgtypes.Key
}

// Generate creates a new Curve25519 keypair.
func Generate() (Pair, error) {
	priv, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return Pair{}, fmt.Errorf("generate wireguard key: %w", err)
	}
	return Pair{Private: priv, Public: priv.PublicKey()}, nil
}

// ParsePublic validates that s is a well-formed base64 WireGuard public
// key, returning it in canonical form.
func ParsePublic(s string) (string, error) {
	key, err := wgtypes.ParseKey(s)
	if err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}
	return key.String(), nil
}

// PublicFromPrivate derives the public key for a base64-encoded private
// key. The reconciler does not call it: its interface-identity tracking
// matches live interfaces by private key directly.
func PublicFromPrivate(privateB64 string) (string, error) {
	key, err := wgtypes.ParseKey(privateB64)
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	return key.PublicKey().String(), nil
}
