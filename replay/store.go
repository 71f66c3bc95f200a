// Package replay provides nonce replay protection for TAP signatures.
//
// A Store answers one question atomically: has this (issuer, keyid, nonce)
// triple been seen before? Implementations differ only in the consistency
// of that answer: LRUStore is correct within one process, RedisStore is
// strongly consistent across instances sharing a Redis, and NoopStore never
// rejects and exists solely for explicit unsafe configuration.
package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Context identifies one signature for replay purposes. It is used only to
// derive a store key and is never persisted verbatim.
type Context struct {
	Issuer string
	KeyID  string
	Nonce  string

	// TTL is how long the nonce must stay marked. Typically the remaining
	// validity of the signature.
	TTL time.Duration
}

// Store is a replay protection backend. Seen must behave as one atomic
// check-and-mark from the caller's perspective: the first call for a given
// context returns false and marks it; any further call before TTL expiry
// returns true, meaning reject as replay.
type Store interface {
	Seen(ctx context.Context, rc Context) (bool, error)
}

// Key derives the store key for a replay context: the hex SHA-256 of
// salt|issuer|keyid|nonce. Raw tuples never reach a backend.
func Key(salt string, rc Context) string {
	h := sha256.New()
	h.Write([]byte(salt))
	h.Write([]byte{'|'})
	h.Write([]byte(rc.Issuer))
	h.Write([]byte{'|'})
	h.Write([]byte(rc.KeyID))
	h.Write([]byte{'|'})
	h.Write([]byte(rc.Nonce))

	return hex.EncodeToString(h.Sum(nil))
}
