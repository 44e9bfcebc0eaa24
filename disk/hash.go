package disk

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Hasher turns a key's textual rendering into the filename used under
// data/. Any collision-resistant digest of at least 256 bits is
// acceptable; a 64-bit hash like xxhash is explicitly not, since short
// digests raise the odds of two distinct keys colliding on one data file.
type Hasher interface {
	Hash(key string) string
}

// Blake2b256 hashes with BLAKE2b-256, reachable as an indirect dependency
// through badger/pebble's transitive requirements and a stronger choice
// than the shorter hashes those stores use for block checksums.
type Blake2b256 struct{}

func (Blake2b256) Hash(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
