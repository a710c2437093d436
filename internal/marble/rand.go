package marble

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// cryptoSource feeds math/rand/v2 from the operating system CSPRNG.
type cryptoSource struct{}

func (cryptoSource) Uint64() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic("marble: crypto/rand unavailable: " + err.Error())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// NewSecureRand returns a generator backed by crypto/rand, the production default.
func NewSecureRand() *rand.Rand {
	return rand.New(cryptoSource{})
}

// NewSource returns a deterministic generator for tests and replays.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// QuickPick returns a random integer in [0,n), or 0 when n <= 0.
func QuickPick(rng *rand.Rand, n int) int {
	if n <= 0 {
		return 0
	}
	return rng.IntN(n)
}

// QuickBooleanChanceOf returns true with probability p.
func QuickBooleanChanceOf(rng *rand.Rand, p float64) bool {
	return rng.Float64() < p
}
