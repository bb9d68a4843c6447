package extract

import (
	"math"
)

// GaussianBlur applies a separable Gaussian of the given sigma with clamped
// borders. The kernel radius is max(1, floor(2.5σ)). sigma <= 0 returns src.
func GaussianBlur(src *Grid, sigma float64) *Grid {
	if sigma <= 0 {
		return src
	}
	radius := max(1, int(math.Floor(sigma*2.5)))
	kernel := make([]float64, 2*radius+1)
	s2 := 2 * sigma * sigma
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / s2)
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	w, h := src.W, src.H
	tmp := NewGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			acc := 0.0
			for k := -radius; k <= radius; k++ {
				xx := min(w-1, max(0, x+k))
				acc += src.Data[y*w+xx] * kernel[k+radius]
			}
			tmp.Data[y*w+x] = acc
		}
	}
	out := NewGrid(w, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			acc := 0.0
			for k := -radius; k <= radius; k++ {
				yy := min(h-1, max(0, y+k))
				acc += tmp.Data[yy*w+x] * kernel[k+radius]
			}
			out.Data[y*w+x] = acc
		}
	}
	return out
}

var (
	sobelX = [9]float64{-1, 0, 1, -2, 0, 2, -1, 0, 1}
	sobelY = [9]float64{-1, -2, -1, 0, 0, 0, 1, 2, 1}
)

// Sobel returns gradient magnitude and direction (radians, atan2(gy, gx)).
// The outermost ring of pixels is left at zero.
func Sobel(src *Grid) (mag, dir *Grid) {
	w, h := src.W, src.H
	mag = NewGrid(w, h)
	dir = NewGrid(w, h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			var gx, gy float64
			k := 0
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					v := src.Data[(y+ky)*w+x+kx]
					gx += v * sobelX[k]
					gy += v * sobelY[k]
					k++
				}
			}
			mag.Data[y*w+x] = math.Hypot(gx, gy)
			dir.Data[y*w+x] = math.Atan2(gy, gx)
		}
	}
	return mag, dir
}

// NonMaxSuppression thins gradient ridges to one pixel by comparing each
// magnitude with its two neighbours across the edge. Direction is binned
// into the 0°, 45°, 90° and 135° sectors (±22.5°).
func NonMaxSuppression(mag, dir *Grid) *Grid {
	w, h := mag.W, mag.H
	out := NewGrid(w, h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			angle := math.Mod(dir.Data[i]*180/math.Pi+180, 180)
			m := mag.Data[i]
			var m1, m2 float64
			switch {
			case angle < 22.5 || angle >= 157.5:
				m1, m2 = mag.Data[i-1], mag.Data[i+1]
			case angle < 67.5:
				m1, m2 = mag.Data[i-w+1], mag.Data[i+w-1]
			case angle < 112.5:
				m1, m2 = mag.Data[i-w], mag.Data[i+w]
			default:
				m1, m2 = mag.Data[i-w-1], mag.Data[i+w+1]
			}
			if m >= m1 && m >= m2 {
				out.Data[i] = m
			}
		}
	}
	return out
}

// Hysteresis seeds every pixel at or above high and grows 8-connected regions
// through pixels at or above low. The one-pixel border is never visited.
func Hysteresis(nms *Grid, low, high float64) *Mask {
	w, h := nms.W, nms.H
	out := NewMask(w, h)
	var stack []int
	for i, v := range nms.Data {
		if v >= high && v > 0 {
			out.Bits[i] = true
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx, ny := x+dx, y+dy
				if nx <= 0 || nx >= w-1 || ny <= 0 || ny >= h-1 {
					continue
				}
				j := ny*w + nx
				if !out.Bits[j] && nms.Data[j] >= low && nms.Data[j] > 0 {
					out.Bits[j] = true
					stack = append(stack, j)
				}
			}
		}
	}
	return out
}

// Edges runs the Canny-style chain on a grayscale grid and returns surviving
// pixels inside the margin, with NMS magnitude as strength.
func Edges(gray *Grid, sigma, low, high, margin float64) []Pixel {
	blurred := GaussianBlur(gray, sigma)
	mag, dir := Sobel(blurred)
	nms := NonMaxSuppression(mag, dir)
	strong := Hysteresis(nms, low, high)

	b := interior(gray.W, gray.H, margin)
	var out []Pixel
	for y := b.y0; y < b.y1; y++ {
		for x := b.x0; x < b.x1; x++ {
			if strong.At(x, y) {
				out = append(out, Pixel{X: x, Y: y, Strength: nms.At(x, y)})
			}
		}
	}
	return out
}
