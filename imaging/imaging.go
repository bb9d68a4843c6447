// Package imaging turns encoded image bytes into a fixed-size square RGBA canvas.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const mimeSVG = "image/svg+xml"

// Quadrant sampling grid: samplesPerAxis x samplesPerAxis probes per quadrant.
const (
	samplesPerAxis  = 16
	brightThreshold = 128
	minQuadrants    = 2
)

// Options configures Preprocess.
type Options struct {
	Size       int         // canvas edge in pixels
	Background color.Color // letterbox fill; nil means black
}

// Result is a canonical canvas ready for extraction.
type Result struct {
	Canvas *image.RGBA
	// Source is the decoded image's bounds before fitting.
	Source image.Rectangle
	// Placed is where the source landed on the canvas.
	Placed image.Rectangle
	// Warning is a non-fatal *IncompleteImageWarning, or nil.
	Warning error
}

// Preprocess decodes data and fits it, aspect preserved and centred, onto a
// Size x Size canvas filled with the background colour. An empty mime is sniffed.
func Preprocess(data []byte, mime string, opts Options) (Result, error) {
	if opts.Size <= 0 {
		return Result{}, fmt.Errorf("imaging: canvas size must be positive, got %d", opts.Size)
	}
	bg := opts.Background
	if bg == nil {
		bg = color.Black
	}

	mime = normalizeMime(mime, data)
	canvas := image.NewRGBA(image.Rect(0, 0, opts.Size, opts.Size))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	var (
		src    image.Rectangle
		placed image.Rectangle
		err    error
	)
	if mime == mimeSVG {
		src, placed, err = drawSVG(canvas, data)
	} else {
		src, placed, err = drawRaster(canvas, data)
	}
	if err != nil {
		return Result{}, &DecodeError{Mime: mime, Err: err}
	}

	res := Result{Canvas: canvas, Source: src, Placed: placed}
	if q := ForegroundQuadrants(canvas); q < minQuadrants {
		res.Warning = &IncompleteImageWarning{Quadrants: q}
	}
	return res, nil
}

func normalizeMime(mime string, data []byte) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime != "" {
		return mime
	}
	if looksLikeSVG(data) {
		return mimeSVG
	}
	return http.DetectContentType(data)
}

func looksLikeSVG(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

func drawRaster(canvas *image.RGBA, data []byte) (image.Rectangle, image.Rectangle, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return image.Rectangle{}, image.Rectangle{}, err
	}
	sb := img.Bounds()
	if sb.Dx() <= 0 || sb.Dy() <= 0 {
		return sb, image.Rectangle{}, ErrEmptyImage
	}
	dr := FitRect(sb.Dx(), sb.Dy(), canvas.Bounds().Dx())
	xdraw.CatmullRom.Scale(canvas, dr, img, sb, xdraw.Over, nil)
	return sb, dr, nil
}

func drawSVG(canvas *image.RGBA, data []byte) (image.Rectangle, image.Rectangle, error) {
	data = svgPayload(data)
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
	if err != nil {
		return image.Rectangle{}, image.Rectangle{}, err
	}
	vw, vh := icon.ViewBox.W, icon.ViewBox.H
	if vw <= 0 || vh <= 0 {
		return image.Rectangle{}, image.Rectangle{}, ErrEmptyImage
	}
	src := image.Rect(0, 0, int(vw+0.5), int(vh+0.5))

	size := canvas.Bounds().Dx()
	dr := fitRectF(vw, vh, size)
	icon.SetTarget(float64(dr.Min.X), float64(dr.Min.Y), float64(dr.Dx()), float64(dr.Dy()))

	scanner := rasterx.NewScannerGV(size, size, canvas, canvas.Bounds())
	dasher := rasterx.NewDasher(size, size, scanner)
	icon.Draw(dasher, 1)
	return src, dr, nil
}

// svgPayload returns raw SVG markup, decoding a base64 body or data URL if needed.
func svgPayload(data []byte) []byte {
	trimmed := bytes.TrimSpace(data)
	if i := bytes.Index(trimmed, []byte(";base64,")); i >= 0 && bytes.HasPrefix(trimmed, []byte("data:")) {
		trimmed = trimmed[i+len(";base64,"):]
	} else if bytes.HasPrefix(trimmed, []byte("<")) {
		return trimmed
	}
	decoded, err := base64.StdEncoding.DecodeString(string(trimmed))
	if err != nil {
		return data
	}
	return decoded
}

// FitRect returns the largest rectangle with aspect w:h centred in a size x size square.
func FitRect(w, h, size int) image.Rectangle {
	return fitRectF(float64(w), float64(h), size)
}

func fitRectF(w, h float64, size int) image.Rectangle {
	s := float64(size)
	scale := s / w
	if h*scale > s {
		scale = s / h
	}
	dw := int(w*scale + 0.5)
	dh := int(h*scale + 0.5)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	x0 := (size - dw) / 2
	y0 := (size - dh) / 2
	return image.Rect(x0, y0, x0+dw, y0+dh)
}

// ForegroundQuadrants counts the canvas quadrants containing at least one
// foreground sample. Samples brighter than the threshold are foreground unless
// they make up the majority of the grid, in which case the canvas is read as
// dark strokes on a light background and the dark samples count instead.
func ForegroundQuadrants(img *image.RGBA) int {
	b := img.Bounds()
	halfW, halfH := b.Dx()/2, b.Dy()/2
	if halfW == 0 || halfH == 0 {
		return 0
	}
	var bright [4]int
	total := 0
	for q := 0; q < 4; q++ {
		x0 := b.Min.X + (q%2)*halfW
		y0 := b.Min.Y + (q/2)*halfH
		bright[q] = quadrantBright(img, x0, y0, halfW, halfH)
		total += bright[q]
	}
	perQuadrant := samplesPerAxis * samplesPerAxis
	inverted := total*2 > 4*perQuadrant

	count := 0
	for _, n := range bright {
		if inverted {
			n = perQuadrant - n
		}
		if n > 0 {
			count++
		}
	}
	return count
}

// quadrantBright returns how many grid samples in the quadrant are bright.
func quadrantBright(img *image.RGBA, x0, y0, w, h int) int {
	n := 0
	for sy := 0; sy < samplesPerAxis; sy++ {
		y := y0 + (2*sy+1)*h/(2*samplesPerAxis)
		for sx := 0; sx < samplesPerAxis; sx++ {
			x := x0 + (2*sx+1)*w/(2*samplesPerAxis)
			i := img.PixOffset(x, y)
			sum := int(img.Pix[i]) + int(img.Pix[i+1]) + int(img.Pix[i+2])
			if sum > 3*brightThreshold {
				n++
			}
		}
	}
	return n
}
