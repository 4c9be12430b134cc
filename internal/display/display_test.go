package display

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cellwatch/internal/grid"
	"github.com/banshee-data/cellwatch/internal/sim"
	"github.com/banshee-data/cellwatch/internal/testutil"
	"github.com/banshee-data/cellwatch/internal/timeutil"
)

var (
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{0, 0, 0, 255}
	line  = color.RGBA{225, 225, 225, 255}
)

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestHeadless_Resize(t *testing.T) {
	h := NewHeadless(800, 600)
	assert.Equal(t, sim.Viewport{Width: 800, Height: 600}, h.Viewport())

	require.NoError(t, h.Resize(400, 0))
	assert.Equal(t, sim.Viewport{Width: 400, Height: 0}, h.Viewport())
	assert.Error(t, h.Resize(-1, 10))
	assert.Error(t, h.Resize(MaxViewportSize+1, 10))
	assert.Error(t, h.Resize(10, 1_000_000_000))
	assert.Equal(t, sim.Viewport{Width: 400, Height: 0}, h.Viewport())

	require.NoError(t, h.Resize(MaxViewportSize, MaxViewportSize))
}

func TestHeadless_AdminRoute(t *testing.T) {
	h := NewHeadless(80, 60)
	mux := http.NewServeMux()
	h.AttachAdminRoutes(mux)

	w := testutil.Serve(t, mux, testutil.LocalRequest(http.MethodGet, "/debug/viewport", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"width":80,"height":60}`, w.Body.String())

	post := func(form url.Values) int {
		req := testutil.LocalRequest(http.MethodPost, "/debug/viewport", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return testutil.Serve(t, mux, req).Code
	}
	assert.Equal(t, http.StatusOK, post(url.Values{"width": {"160"}, "height": {"120"}}))
	assert.Equal(t, sim.Viewport{Width: 160, Height: 120}, h.Viewport())
	assert.Equal(t, http.StatusBadRequest, post(url.Values{"width": {"x"}, "height": {"1"}}))
	assert.Equal(t, http.StatusBadRequest, post(url.Values{"width": {"-5"}, "height": {"1"}}))
	assert.Equal(t, http.StatusBadRequest, post(url.Values{"width": {"1000000000"}, "height": {"1000000000"}}))
	assert.Equal(t, sim.Viewport{Width: 160, Height: 120}, h.Viewport())
}

func TestImageCanvas(t *testing.T) {
	c := NewImageCanvas(sim.Viewport{Width: 10, Height: 10})
	c.Fill(white)
	c.Line(3, 0, 3, 10, line)
	c.Line(0, 5, 10, 5, line)
	c.Rect(6, 6, 2, 2, black)
	c.Rect(9, 9, 5, 5, black)

	assert.Equal(t, white, rgbaAt(c.Img, 0, 0))
	assert.Equal(t, line, rgbaAt(c.Img, 3, 9))
	assert.Equal(t, line, rgbaAt(c.Img, 9, 5))
	assert.Equal(t, black, rgbaAt(c.Img, 7, 7))
	assert.Equal(t, white, rgbaAt(c.Img, 8, 8))
	assert.Equal(t, black, rgbaAt(c.Img, 9, 9), "clipped rect still paints inside bounds")
}

func TestOffscreen_RendersEngine(t *testing.T) {
	disp := NewHeadless(32, 24)
	e, err := sim.New(sim.Options{
		Clock:    timeutil.NewMockClock(testutil.Epoch),
		Viewport: disp.Viewport(),
	})
	require.NoError(t, err)
	require.True(t, e.Grid().Place(1, 1, grid.NewCell(0, testutil.Epoch)))

	off := NewOffscreen(disp)
	var buf bytes.Buffer
	assert.ErrorIs(t, off.WritePNG(&buf), ErrNoFrame)

	e.Render(off)
	assert.ErrorIs(t, off.WritePNG(&buf), ErrNoFrame, "first frame is published by the next Fill")
	e.Render(off)
	require.NoError(t, off.WritePNG(&buf))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 24), img.Bounds())
	assert.Equal(t, white, rgbaAt(img, 4, 4))
	assert.Equal(t, line, rgbaAt(img, 0, 4))
	assert.Equal(t, black, rgbaAt(img, 8, 8))
	assert.Equal(t, black, rgbaAt(img, 14, 14))
	assert.Equal(t, line, rgbaAt(img, 16, 15))
}

func TestOffscreen_AdminRoute(t *testing.T) {
	off := NewOffscreen(NewHeadless(4, 4))
	mux := http.NewServeMux()
	off.AttachAdminRoutes(mux)

	w := testutil.Serve(t, mux, testutil.LocalRequest(http.MethodGet, "/debug/render.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	off.Fill(white)
	off.Fill(white)
	w = testutil.Serve(t, mux, testutil.LocalRequest(http.MethodGet, "/debug/render.png", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	_, err := png.Decode(w.Body)
	assert.NoError(t, err)
}
