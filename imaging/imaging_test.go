package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func filled(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestFitRect(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		want image.Rectangle
	}{
		{"square", 10, 10, image.Rect(0, 0, 100, 100)},
		{"wide", 200, 100, image.Rect(0, 25, 100, 75)},
		{"tall", 50, 100, image.Rect(25, 0, 75, 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FitRect(tt.w, tt.h, 100))
		})
	}
}

func TestPreprocessRasterLetterbox(t *testing.T) {
	// A wide white image lands in a horizontal band; rows above and below stay background.
	data := encodePNG(t, filled(40, 20, color.White))

	res, err := Preprocess(data, "image/png", Options{Size: 64})
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 64, 64), res.Canvas.Bounds())
	assert.Equal(t, image.Rect(0, 0, 40, 20), res.Source)
	assert.Equal(t, image.Rect(0, 16, 64, 48), res.Placed)

	assert.Equal(t, color.RGBA{0, 0, 0, 255}, res.Canvas.RGBAAt(32, 4))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, res.Canvas.RGBAAt(32, 32))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, res.Canvas.RGBAAt(32, 60))
	assert.NoError(t, res.Warning)
}

func TestPreprocessSniffsMime(t *testing.T) {
	data := encodePNG(t, filled(8, 8, color.White))
	res, err := Preprocess(data, "", Options{Size: 16})
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, res.Canvas.RGBAAt(8, 8))
}

func TestPreprocessDecodeError(t *testing.T) {
	_, err := Preprocess([]byte("definitely not an image"), "image/png", Options{Size: 16})
	require.Error(t, err)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "image/png", de.Mime)
}

func TestPreprocessZeroSize(t *testing.T) {
	_, err := Preprocess(encodePNG(t, filled(4, 4, color.White)), "image/png", Options{})
	assert.Error(t, err)
}

func TestPreprocessIncompleteWarning(t *testing.T) {
	img := filled(64, 64, color.Black)
	for y := 4; y < 20; y++ {
		for x := 4; x < 20; x++ {
			img.Set(x, y, color.White)
		}
	}
	res, err := Preprocess(encodePNG(t, img), "image/png", Options{Size: 64})
	require.NoError(t, err)
	require.NotNil(t, res.Canvas)

	var w *IncompleteImageWarning
	require.True(t, errors.As(res.Warning, &w))
	assert.Equal(t, 1, w.Quadrants)
}

const squareSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100" width="100" height="100">
<rect x="10" y="10" width="80" height="80" fill="#ffffff"/>
</svg>`

func TestPreprocessSVG(t *testing.T) {
	for _, tt := range []struct {
		name string
		data []byte
	}{
		{"raw", []byte(squareSVG)},
		{"base64", []byte(base64.StdEncoding.EncodeToString([]byte(squareSVG)))},
		{"data url", []byte("data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(squareSVG)))},
	} {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Preprocess(tt.data, "image/svg+xml", Options{Size: 100})
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 100, 100), res.Source)

			center := res.Canvas.RGBAAt(50, 50)
			assert.Greater(t, int(center.R), 200)
			corner := res.Canvas.RGBAAt(2, 2)
			assert.Less(t, int(corner.R), 50)
			assert.NoError(t, res.Warning)
		})
	}
}

func TestForegroundQuadrants(t *testing.T) {
	assert.Equal(t, 0, ForegroundQuadrants(filled(32, 32, color.Black)))
	assert.Equal(t, 0, ForegroundQuadrants(filled(32, 32, color.White)), "uniform light canvas has no strokes")
	assert.Equal(t, 0, ForegroundQuadrants(filled(32, 32, color.Gray{Y: 120})))
}

func TestForegroundQuadrantsDarkOnLight(t *testing.T) {
	// Dark ink confined to the top-left quadrant of a white page.
	img := filled(64, 64, color.White)
	for y := 2; y < 30; y++ {
		for x := 2; x < 30; x++ {
			img.Set(x, y, color.Black)
		}
	}
	assert.Equal(t, 1, ForegroundQuadrants(img))

	res, err := Preprocess(encodePNG(t, img), "image/png", Options{Size: 64, Background: color.White})
	require.NoError(t, err)
	var w *IncompleteImageWarning
	require.True(t, errors.As(res.Warning, &w))
	assert.Equal(t, 1, w.Quadrants)
}

func TestForegroundQuadrantsDarkOnLightSpread(t *testing.T) {
	// A dark cross through the centre touches every quadrant.
	img := filled(64, 64, color.White)
	for i := 0; i < 64; i++ {
		for d := 30; d < 34; d++ {
			img.Set(i, d, color.Black)
			img.Set(d, i, color.Black)
		}
	}
	assert.Equal(t, 4, ForegroundQuadrants(img))
}
