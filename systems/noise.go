package systems

import (
	"github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r3"
)

// Offsets that decorrelate the three potential components sampled from one field.
var (
	potentialOffsetY = r3.Vec{X: 31.416, Y: 47.853, Z: 12.793}
	potentialOffsetZ = r3.Vec{X: -71.337, Y: 19.124, Z: 63.251}
)

const curlEpsilon = 0.1

// CurlNoise is a divergence-free 3D vector field built as the curl of a
// simplex-noise vector potential.
type CurlNoise struct {
	noise opensimplex.Noise
}

// NewCurlNoise creates a field from the given seed.
func NewCurlNoise(seed int64) *CurlNoise {
	return &CurlNoise{noise: opensimplex.New(seed)}
}

func (c *CurlNoise) potential(p r3.Vec) r3.Vec {
	py := r3.Add(p, potentialOffsetY)
	pz := r3.Add(p, potentialOffsetZ)
	return r3.Vec{
		X: c.noise.Eval3(p.X, p.Y, p.Z),
		Y: c.noise.Eval3(py.X, py.Y, py.Z),
		Z: c.noise.Eval3(pz.X, pz.Y, pz.Z),
	}
}

// Sample returns the curl at p*scale using central differences. The result is
// left in units of a single difference step, so its magnitude stays near 0.1.
func (c *CurlNoise) Sample(p r3.Vec, scale float64) r3.Vec {
	q := r3.Scale(scale, p)
	e := curlEpsilon
	dx := r3.Sub(c.potential(r3.Add(q, r3.Vec{X: e})), c.potential(r3.Sub(q, r3.Vec{X: e})))
	dy := r3.Sub(c.potential(r3.Add(q, r3.Vec{Y: e})), c.potential(r3.Sub(q, r3.Vec{Y: e})))
	dz := r3.Sub(c.potential(r3.Add(q, r3.Vec{Z: e})), c.potential(r3.Sub(q, r3.Vec{Z: e})))
	// curl ψ = (∂ψz/∂y − ∂ψy/∂z, ∂ψx/∂z − ∂ψz/∂x, ∂ψy/∂x − ∂ψx/∂y)
	return r3.Vec{
		X: (dy.Z - dz.Y) * 0.5,
		Y: (dz.X - dx.Z) * 0.5,
		Z: (dx.Y - dy.X) * 0.5,
	}
}

// noiseBank caches one field per seed.
type noiseBank struct {
	fields map[int64]*CurlNoise
}

func newNoiseBank() *noiseBank {
	return &noiseBank{fields: make(map[int64]*CurlNoise)}
}

func (b *noiseBank) get(seed int64) *CurlNoise {
	f, ok := b.fields[seed]
	if !ok {
		f = NewCurlNoise(seed)
		b.fields[seed] = f
	}
	return f
}
