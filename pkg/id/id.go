package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Scheme names an identifier format.
type Scheme string

const (
	SchemeULID Scheme = "ulid"
	SchemeUUID Scheme = "uuid"
)

// Generator allocates record identifiers. Uniqueness is finally enforced by
// the store; callers retry on a duplicate.
type Generator interface {
	NewID() string
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func() string

func (f GeneratorFunc) NewID() string { return f() }

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	// Seed a PRNG from crypto/rand so ULID entropy is unpredictable.
	// ulid.Monotonic keeps IDs generated within the same millisecond
	// lexicographically increasing.
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a ULID string (time-sortable identifier).
func New() string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), mono)
	if err != nil {
		// Only possible when the clock goes past year 10889 or entropy fails.
		panic(err)
	}
	return id.String()
}

// NewUUID returns a random (version 4) UUID string.
func NewUUID() string {
	return uuid.NewString()
}

// ForScheme returns the generator for the named scheme. An empty scheme
// selects ULID.
func ForScheme(s Scheme) (Generator, error) {
	switch s {
	case "", SchemeULID:
		return GeneratorFunc(New), nil
	case SchemeUUID:
		return GeneratorFunc(NewUUID), nil
	default:
		return nil, fmt.Errorf("unknown id scheme %q", s)
	}
}
