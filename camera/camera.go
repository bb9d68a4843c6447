// Package camera provides the perspective orbit camera used to view the
// particle field.
package camera

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	nearPlane = 0.1
	maxPitch  = math.Pi/2 - 0.01
)

// Camera looks at the origin from Distance along +Z, after rotating the
// scene by Yaw about Y and Pitch about X.
type Camera struct {
	Distance float64
	FOV      float64 // vertical field of view, degrees
	Yaw      float64 // radians
	Pitch    float64 // radians

	ViewportW, ViewportH float64

	MinDistance, MaxDistance float64

	home float64
}

// New creates a camera at distance from the origin.
func New(viewportW, viewportH, distance, fov float64) *Camera {
	return &Camera{
		Distance:    distance,
		FOV:         fov,
		ViewportW:   viewportW,
		ViewportH:   viewportH,
		MinDistance: distance * 0.25,
		MaxDistance: distance * 4,
		home:        distance,
	}
}

// focal returns the focal length in pixels.
func (c *Camera) focal() float64 {
	return c.ViewportH / 2 / math.Tan(c.FOV*math.Pi/360)
}

// view rotates p into camera space.
func (c *Camera) view(p r3.Vec) r3.Vec {
	sy, cy := math.Sincos(c.Yaw)
	x := p.X*cy + p.Z*sy
	z := -p.X*sy + p.Z*cy
	sp, cp := math.Sincos(c.Pitch)
	return r3.Vec{X: x, Y: p.Y*cp - z*sp, Z: p.Y*sp + z*cp}
}

// Project maps a world point to screen pixels. scale is pixels per world
// unit at the point's depth. ok is false behind the near plane.
func (c *Camera) Project(p r3.Vec) (sx, sy, scale float64, ok bool) {
	q := c.view(p)
	depth := c.Distance - q.Z
	if depth < nearPlane {
		return 0, 0, 0, false
	}
	scale = c.focal() / depth
	sx = c.ViewportW/2 + q.X*scale
	sy = c.ViewportH/2 - q.Y*scale
	return sx, sy, scale, true
}

// Orbit rotates the view. Pitch is clamped short of the poles.
func (c *Camera) Orbit(dyaw, dpitch float64) {
	c.Yaw = math.Remainder(c.Yaw+dyaw, 2*math.Pi)
	c.Pitch = max(-maxPitch, min(maxPitch, c.Pitch+dpitch))
}

// ZoomBy scales the distance by 1/factor within the limits.
func (c *Camera) ZoomBy(factor float64) {
	if factor <= 0 {
		return
	}
	c.Distance = max(c.MinDistance, min(c.MaxDistance, c.Distance/factor))
}

// Resize updates the viewport dimensions.
func (c *Camera) Resize(viewportW, viewportH float64) {
	c.ViewportW = viewportW
	c.ViewportH = viewportH
}

// Reset restores the initial distance and orientation.
func (c *Camera) Reset() {
	c.Distance = c.home
	c.Yaw = 0
	c.Pitch = 0
}
