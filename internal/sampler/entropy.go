package sampler

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// splitMixGamma is the SplitMix64 increment used to expand a seed.
const splitMixGamma = 0x9E3779B97F4A7C15

// Entropy selects the randomness behind a draw. Seeded draws are
// reproducible from the seed; Unpredictable draws read the OS CSPRNG.
type Entropy struct {
	seed   int64
	seeded bool
}

func Seeded(seed int64) Entropy {
	return Entropy{seed: seed, seeded: true}
}

func Unpredictable() Entropy {
	return Entropy{}
}

// Seed returns the seed and true for seeded entropy.
func (e Entropy) Seed() (int64, bool) {
	return e.seed, e.seeded
}

// SeedPtr is the nullable form stored in audit records.
func (e Entropy) SeedPtr() *int64 {
	if !e.seeded {
		return nil
	}
	s := e.seed
	return &s
}

func (e Entropy) String() string {
	if e.seeded {
		return "seeded"
	}
	return "unpredictable"
}

func (e Entropy) rand() *rand.Rand {
	if e.seeded {
		return rand.New(rand.NewPCG(expandSeed(uint64(e.seed))))
	}
	return rand.New(cryptoSource{})
}

// expandSeed derives both 128-bit PCG state words from seed with SplitMix64.
// Seeding only the high word would leave every draw sharing the low half of
// the state.
func expandSeed(seed uint64) (uint64, uint64) {
	seed += splitMixGamma
	hi := mix64(seed)
	seed += splitMixGamma
	return hi, mix64(seed)
}

func mix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

type cryptoSource struct{}

func (cryptoSource) Uint64() uint64 {
	var b [8]byte
	// crypto/rand.Read never returns an error; it crashes the program if the
	// OS source fails.
	_, _ = crand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}
