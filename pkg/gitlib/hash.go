// Package gitlib provides read-only access to git object stores: a libgit2
// backed Repository and an in-memory MemStore, both behind the Store interface.
package gitlib

import (
	"encoding/hex"
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Constants for hash operations.
const (
	// HashSize is the size of a SHA-1 hash in bytes.
	HashSize = 20
	// HashHexSize is the size of a hex-encoded SHA-1 hash.
	HashHexSize = 40
	// shortHashSize is the abbreviated hex length used in log output.
	shortHashSize = 8
)

// ErrInvalidHash is returned when a hex string is not a full SHA-1 hash.
var ErrInvalidHash = errors.New("invalid hash")

// Hash represents a git object hash (SHA-1).
type Hash [HashSize]byte

// ZeroHash returns the zero value hash. Stores use it to mean "no object",
// e.g. the empty tree baseline of a root commit.
func ZeroHash() Hash {
	return Hash{}
}

// NewHash creates a Hash from a hex string, ignoring malformed input.
// Used for testing and initialization.
func NewHash(hexStr string) Hash {
	hash, err := ParseHash(hexStr)
	if err != nil {
		return Hash{}
	}

	return hash
}

// ParseHash decodes a 40 character hex string.
func ParseHash(hexStr string) (Hash, error) {
	var hash Hash

	if len(hexStr) != HashHexSize {
		return hash, fmt.Errorf("%w: %q", ErrInvalidHash, hexStr)
	}

	_, err := hex.Decode(hash[:], []byte(hexStr))
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %q: %w", ErrInvalidHash, hexStr, err)
	}

	return hash, nil
}

// HashFromOid converts a libgit2 Oid to Hash.
func HashFromOid(oid *git2go.Oid) Hash {
	var h Hash
	if oid == nil {
		return h
	}

	copy(h[:], oid[:])

	return h
}

// String returns the hex representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the abbreviated hex representation of the hash.
func (h Hash) Short() string {
	return h.String()[:shortHashSize]
}

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ToOid converts Hash back to libgit2 Oid.
func (h Hash) ToOid() *git2go.Oid {
	oid := new(git2go.Oid)
	copy(oid[:], h[:])

	return oid
}
