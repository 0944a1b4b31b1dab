package mathx

import "math"

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Hash2 mixes a seed with two coordinates. Equal inputs always give equal outputs,
// which is what makes generated mazes and fire runs reproducible.
func Hash2(seed int64, a, b int) uint64 {
	ua := uint64(uint32(int32(a)))
	ub := uint64(uint32(int32(b)))
	v := uint64(seed) ^ (ua * 0x9e3779b97f4a7c15) ^ (ub * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

func Hash3(seed int64, a, b, c int) uint64 {
	ua := uint64(uint32(int32(a)))
	ub := uint64(uint32(int32(b)))
	uc := uint64(uint32(int32(c)))
	v := uint64(seed) ^ (ua * 0x9e3779b97f4a7c15) ^ (ub * 0xc2b2ae3d27d4eb4f) ^ (uc * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// Unit maps a hash onto [0,1) using its top 53 bits.
func Unit(h uint64) float64 {
	return float64(h>>11) / (1 << 53)
}

// Derive returns a child seed for the (a, b) sub-stream of seed.
func Derive(seed int64, a, b int) int64 {
	return int64(Hash2(seed, a, b) & math.MaxInt64)
}
