// Package game provides deterministic pseudo-random permutations used to give
// each player a private ordering of answer options. The generator is
// intentionally weak (string hash + LCG): the threat model is casual collusion
// via shared option labels, not cryptographic unpredictability, and replayable
// output is a hard requirement.
package game

// Rand is a linear-congruential generator with a fixed modulus. The same seed
// always yields the same sequence.
type Rand struct {
	state int64
}

// Seed derives a 32-bit seed from the concatenated parts (order-sensitive).
func Seed(parts ...string) int64 {
	var h int32
	for _, p := range parts {
		for _, c := range p {
			h = (h << 5) - h + int32(c)
		}
	}
	if h < 0 {
		h = -h
	}
	return int64(h)
}

// NewRand returns a generator initialized from seed.
func NewRand(seed int64) *Rand {
	return &Rand{state: seed}
}

// Float64 returns the next value in [0, 1).
func (r *Rand) Float64() float64 {
	r.state = (r.state*9301 + 49297) % 233280
	return float64(r.state) / 233280
}

// Intn returns the next value in [0, n).
func (r *Rand) Intn(n int) int {
	return int(r.Float64() * float64(n))
}

// Perm returns a permutation of [0, n) produced by a Fisher-Yates shuffle
// driven by r. perm[i] is the original index of the element shown at
// position i.
func (r *Rand) Perm(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}
