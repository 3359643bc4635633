// Package id mints the identifiers stamped on engine runs and audit records.
package id

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var gen = newGenerator()

type generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func newGenerator() *generator {
	var seed int64
	_ = binary.Read(cryptorand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// Monotonic entropy keeps ids minted within one millisecond in mint
	// order, so audit rows sort the way they happened.
	return &generator{entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)}
}

// New returns one ULID string. ULIDs sort lexicographically by creation
// time, which suits both the per-process run id and the audit table index.
func New() string {
	gen.mu.Lock()
	defer gen.mu.Unlock()

	u, err := ulid.New(ulid.Timestamp(time.Now().UTC()), gen.entropy)
	if err != nil {
		// Reachable only if the entropy source fails.
		panic(err)
	}
	return u.String()
}
