// Package procedural generates noise textures for materials: tileable
// periodic Perlin maps and non-repeating detail maps.
package procedural

import (
	"math/rand"

	"github.com/chewxy/math32"
)

// gradients are the twelve cube edge midpoints of improved Perlin noise.
var gradients = [12][3]float32{
	{1, 1, 0}, {-1, 1, 0}, {1, -1, 0}, {-1, -1, 0},
	{1, 0, 1}, {-1, 0, 1}, {1, 0, -1}, {-1, 0, -1},
	{0, 1, 1}, {0, -1, 1}, {0, 1, -1}, {0, -1, -1},
}

// Perlin is improved Perlin noise. With a positive Period the lattice wraps
// every Period units on each axis, so images sampled over one period tile.
type Perlin struct {
	Period int
	perm   [512]int
}

// NewPerlin builds the permutation table from seed; equal seeds give equal
// noise.
func NewPerlin(seed int64, period int) *Perlin {
	p := &Perlin{Period: period}
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < 256; i++ {
		p.perm[i] = i
	}
	rng.Shuffle(256, func(i, j int) { p.perm[i], p.perm[j] = p.perm[j], p.perm[i] })
	copy(p.perm[256:], p.perm[:256])
	return p
}

func fade(t float32) float32 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(t, a, b float32) float32 {
	return a + t*(b-a)
}

func grad(hash int, x, y, z float32) float32 {
	g := gradients[hash%12]
	return g[0]*x + g[1]*y + g[2]*z
}

func (p *Perlin) wrap(i int) int {
	if p.Period > 0 {
		i %= p.Period
		if i < 0 {
			i += p.Period
		}
	}
	return i & 255
}

// Noise3 returns noise in about [-1, 1]. It is zero on lattice points.
func (p *Perlin) Noise3(x, y, z float32) float32 {
	fx, fy, fz := math32.Floor(x), math32.Floor(y), math32.Floor(z)
	ix, iy, iz := int(fx), int(fy), int(fz)
	x, y, z = x-fx, y-fy, z-fz
	u, v, w := fade(x), fade(y), fade(z)

	x0, x1 := p.wrap(ix), p.wrap(ix+1)
	y0, y1 := p.wrap(iy), p.wrap(iy+1)
	z0, z1 := p.wrap(iz), p.wrap(iz+1)
	hash := func(a, b, c int) int {
		return p.perm[p.perm[p.perm[a]+b]+c]
	}

	return lerp(w,
		lerp(v,
			lerp(u, grad(hash(x0, y0, z0), x, y, z), grad(hash(x1, y0, z0), x-1, y, z)),
			lerp(u, grad(hash(x0, y1, z0), x, y-1, z), grad(hash(x1, y1, z0), x-1, y-1, z))),
		lerp(v,
			lerp(u, grad(hash(x0, y0, z1), x, y, z-1), grad(hash(x1, y0, z1), x-1, y, z-1)),
			lerp(u, grad(hash(x0, y1, z1), x, y-1, z-1), grad(hash(x1, y1, z1), x-1, y-1, z-1))))
}

// FBM sums octaves of noise, doubling the frequency and scaling the
// amplitude by persistence each octave, normalized back to about [-1, 1].
// Doubling keeps a periodic lattice periodic.
func (p *Perlin) FBM(x, y, z float32, octaves int, persistence float32) float32 {
	var sum, norm float32
	amp, freq := float32(1), float32(1)
	for i := 0; i < octaves; i++ {
		sum += p.Noise3(x*freq, y*freq, z*freq) * amp
		norm += amp
		amp *= persistence
		freq *= 2
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

// Marble returns a vein pattern in [0, 1]: a sine along x distorted by FBM.
// stripes counts the veins across one unit of x.
func (p *Perlin) Marble(x, y float32, stripes float32) float32 {
	d := p.FBM(x, y, 0, 4, 0.5) * 2
	s := math32.Sin((x*stripes + d) * math32.Pi)
	return s * s
}
