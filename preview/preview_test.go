package preview

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/tracer/camera"
	"github.com/pthm-cable/tracer/config"
	"github.com/pthm-cable/tracer/systems"
	"github.com/pthm-cable/tracer/trace"
)

func red(img image.Image, x, y int) uint32 {
	r, _, _, _ := img.At(x, y).RGBA()
	return r >> 8
}

func testOptions() Options {
	return Options{
		Width:      100,
		Height:     100,
		Background: config.Color{},
		Foreground: config.Color{R: 1, G: 1, B: 1},
		Extent:     200,
		Camera:     camera.New(100, 100, 100, 90),
	}
}

func TestFrame_DrawsVisibleParticles(t *testing.T) {
	buf := systems.NewRenderBuffer(2)
	buf.Len = 2
	// Slot 0: red particle at the origin. Slot 1: retired, far right.
	buf.Colors[0] = 1
	buf.Alpha[0] = 1
	buf.Size[0] = 10
	buf.Positions[3] = 80
	buf.Colors[3] = 1
	buf.Size[1] = 10

	img, err := Frame(buf, testOptions())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 100), img.Bounds())
	assert.Greater(t, red(img, 50, 50), uint32(200), "particle at the origin projects to the centre")
	assert.Zero(t, red(img, 90, 50), "zero alpha slots are skipped")
	assert.Zero(t, red(img, 2, 2), "background stays clear")
}

func TestFrame_NeedsCamera(t *testing.T) {
	opts := testOptions()
	opts.Camera = nil
	_, err := Frame(systems.NewRenderBuffer(1), opts)
	assert.Error(t, err)
}

func TestWritePathPNG(t *testing.T) {
	p := trace.NewPath([]r2.Vec{{X: -50, Y: 0.5}, {X: 50, Y: 0.5}})

	var buf bytes.Buffer
	require.NoError(t, WritePathPNG(&buf, p, testOptions()))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	// x = ±50 maps to columns 25 and 75; y = 0.5 sits half a unit above row 50.
	assert.Greater(t, max(red(img, 50, 49), red(img, 50, 50)), uint32(100))
	assert.Zero(t, red(img, 10, 50), "outside the segment")
	assert.Zero(t, red(img, 50, 10), "away from the line")
}

func TestPath_SinglePointMarker(t *testing.T) {
	opts := testOptions()
	opts.PointRadius = 3
	img, err := Path(trace.NewPath([]r2.Vec{{X: 0, Y: 0}}), opts)
	require.NoError(t, err)
	assert.Greater(t, red(img, 50, 50), uint32(200))
}

func TestPath_RejectsZeroExtent(t *testing.T) {
	opts := testOptions()
	opts.Extent = 0
	_, err := Path(trace.NewPath([]r2.Vec{{}}), opts)
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	opts := OptionsFromConfig(cfg, 320, 200)
	assert.Equal(t, 320, opts.Width)
	assert.Equal(t, cfg.Tracing.Extent, opts.Extent)
	require.NotNil(t, opts.Camera)
	assert.Equal(t, cfg.Screen.CameraZ, opts.Camera.Distance)
}
