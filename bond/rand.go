package bond

import (
	"math/rand/v2"
)

// Uniform returns a pseudo-random number in [0, 1) which is a pure function of
// (seed, step, key). Draws do not depend on the order in which pairs are
// visited, so they are the same for any number of workers.
func Uniform(seed uint32, step uint64, key Key) float64 {
	hi := mix64(uint64(seed)<<32 ^ mix64(step))
	lo := mix64(uint64(key) ^ 0x9e3779b97f4a7c15)
	pcg := rand.NewPCG(hi, lo)
	return float64(pcg.Uint64()>>11) * 0x1p-53
}

// mix64 is the splitmix64 finalizer.
func mix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
