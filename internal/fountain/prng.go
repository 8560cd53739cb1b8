package fountain

import "math/rand/v2"

// Park-Miller minimal standard generator. Encoder and decoder must agree on
// every draw, so the constants are part of the wire format.
const (
	prngA       = 16807
	prngM       = 1<<31 - 1
	prngMaxRand = prngM - 1
)

type prng struct {
	state uint32
}

func (p *prng) next() uint32 {
	p.state = uint32(uint64(p.state) * prngA % prngM)
	return p.state
}

// randomSeed draws a valid LT seed in [1, prngM-1].
func randomSeed() uint32 {
	return 1 + rand.Uint32N(prngM-1)
}

func validLTSeed(seed uint32) bool {
	return seed >= 1 && seed < prngM
}
