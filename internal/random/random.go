// Package random provides the pluggable seed sources behind every stochastic
// component of the framework.
package random

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	mrand "math/rand"
	"sync/atomic"
)

// SeedSource produces seeds for the per-component random generators.
type SeedSource interface {
	Next() int64
}

type systemSource struct{}

func (systemSource) Next() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Entropy pool failures are not recoverable in any useful way here;
		// fall back to a counter value.
		return counter.Add(1)
	}
	v := int64(binary.LittleEndian.Uint64(buf[:]) & math.MaxInt64)
	if v == 0 {
		v = 1
	}
	return v
}

var counter atomic.Int64

type counterSource struct{}

func (counterSource) Next() int64 {
	return counter.Add(1)
}

// System returns a seed source backed by the system entropy pool.
func System() SeedSource { return systemSource{} }

// Counter returns a deterministic seed source backed by a process-wide
// monotone counter. Used by tests and the deterministic run mode.
func Counter() SeedSource { return counterSource{} }

// ForSettings picks the seed source matching the deterministic flag.
func ForSettings(deterministic bool) SeedSource {
	if deterministic {
		return Counter()
	}
	return System()
}

// New creates a random generator seeded from src.
func New(src SeedSource) *mrand.Rand {
	if src == nil {
		src = System()
	}
	return mrand.New(mrand.NewSource(src.Next()))
}
