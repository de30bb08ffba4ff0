// Package pubkey defines the opaque 32-byte account identifier used to key
// troves, stability providers and stakers. It carries no signing or PDA
// derivation capability — that remains the host's on-chain collaborator —
// only identity and a human-readable base58 rendering, mirroring how the
// engine treats every account as an already-authenticated input.
package pubkey

import (
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
)

// Size is the fixed byte length of a Key, matching the Solana account-key
// convention the protocol was modeled on.
const Size = 32

// Key is an opaque account identifier.
type Key [Size]byte

// Zero is the all-zero key, used as a sentinel for "no recipient" in
// collateral-routing style checks.
var Zero Key

// New builds a Key from exactly Size bytes.
func New(b []byte) (Key, error) {
	if len(b) != Size {
		return Key{}, fmt.Errorf("pubkey: key must be %d bytes, got %d", Size, len(b))
	}
	var k Key
	copy(k[:], b)
	return k, nil
}

// MustNew is New but panics on bad input — for constructing fixture keys in
// tests, never for host-supplied data.
func MustNew(b []byte) Key {
	k, err := New(b)
	if err != nil {
		panic(err)
	}
	return k
}

// String renders the key as base58, matching the original protocol's
// human-readable account addresses.
func (k Key) String() string {
	return base58.Encode(k[:])
}

// Hex renders the key as lowercase hex, useful for log correlation fields
// where base58 is harder to diff.
func (k Key) Hex() string {
	return hex.EncodeToString(k[:])
}

// Bytes returns a copy of the underlying bytes.
func (k Key) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, k[:])
	return out
}

// IsZero reports whether k is the zero key.
func (k Key) IsZero() bool { return k == Zero }

// Decode parses a base58-encoded key.
func Decode(s string) (Key, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Key{}, fmt.Errorf("pubkey: invalid base58: %w", err)
	}
	return New(b)
}
