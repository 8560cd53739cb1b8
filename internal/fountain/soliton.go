package fountain

import "math"

// Robust soliton parameters.
const (
	solitonC     = 0.1
	solitonDelta = 0.5
)

// solitonCDF returns the cumulative robust soliton distribution over
// degrees 1..k. cdf[d-1] is P(degree <= d).
func solitonCDF(k int) []float64 {
	fk := float64(k)
	s := solitonC * math.Log(fk/solitonDelta) * math.Sqrt(fk)
	pivot := int(math.Floor(fk / s))

	mu := make([]float64, k)
	var sum float64
	for d := 1; d <= k; d++ {
		var rho, tau float64
		if d == 1 {
			rho = 1 / fk
		} else {
			rho = 1 / float64(d*(d-1))
		}
		switch {
		case d < pivot:
			tau = s / (fk * float64(d))
		case d == pivot:
			tau = s / fk * math.Log(s/solitonDelta)
		}
		mu[d-1] = rho + tau
		sum += mu[d-1]
	}

	cdf := make([]float64, k)
	var acc float64
	for i, m := range mu {
		acc += m / sum
		cdf[i] = acc
	}
	return cdf
}

// sampler draws LT block compositions. It is NOT safe for concurrent use.
type sampler struct {
	k   int
	cdf []float64
	rng prng
	set map[int]struct{}
}

func newSampler(k int) *sampler {
	return &sampler{k: k, cdf: solitonCDF(k), set: make(map[int]struct{})}
}

func (s *sampler) degree() int {
	p := float64(s.rng.next()) / prngMaxRand
	for i, v := range s.cdf {
		if v > p {
			return i + 1
		}
	}
	return s.k
}

// sourceIndices seeds the generator, draws a degree and then that many
// distinct source indices. Indices are appended to dst in draw order. The
// generator state afterwards is the seed of the next block.
func (s *sampler) sourceIndices(seed uint32, dst []int) []int {
	s.rng.state = seed
	d := s.degree()
	clear(s.set)
	for len(s.set) < d {
		i := int(s.rng.next() % uint32(s.k))
		if _, ok := s.set[i]; ok {
			continue
		}
		s.set[i] = struct{}{}
		dst = append(dst, i)
	}
	return dst
}
