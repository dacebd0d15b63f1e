// Package display provides an in-memory Display the renderer can draw into.
// The framebuffer keeps the last bitmap and text per region and recomposes the
// whole canvas on every draw, so a shorter string never leaves stale pixels.
package display

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"sort"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"

	"github.com/kjstillabower/weather-display/internal/render"
)

type textEntry struct {
	region  render.Region
	content render.Content
}

type imageEntry struct {
	region render.Region
	img    image.Image
}

// Framebuffer is an RGBA canvas implementing render.Display.
type Framebuffer struct {
	mu     sync.RWMutex
	canvas *image.RGBA
	bg     color.Color
	texts  map[render.RegionID]textEntry
	images map[render.RegionID]imageEntry
}

// NewFramebuffer returns a black canvas of the given size.
func NewFramebuffer(width, height int) (*Framebuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid framebuffer size %dx%d", width, height)
	}
	fb := &Framebuffer{
		canvas: image.NewRGBA(image.Rect(0, 0, width, height)),
		bg:     color.Black,
		texts:  make(map[render.RegionID]textEntry),
		images: make(map[render.RegionID]imageEntry),
	}
	fb.compose()
	return fb, nil
}

// FaceFor maps a region font to a font face.
func FaceFor(f render.Font) font.Face {
	if f == render.FontInfo {
		return inconsolata.Bold8x16
	}
	return basicfont.Face7x13
}

// DrawText implements render.Display.
func (fb *Framebuffer) DrawText(r render.Region, c render.Content) error {
	if r.Kind != render.KindText {
		return fmt.Errorf("region %s is not a text region", r.ID)
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.texts[r.ID] = textEntry{region: r, content: c}
	fb.compose()
	return nil
}

// DrawImage implements render.Display.
func (fb *Framebuffer) DrawImage(r render.Region, img image.Image) error {
	if r.Kind != render.KindImage {
		return fmt.Errorf("region %s is not an image region", r.ID)
	}
	if img == nil {
		return fmt.Errorf("region %s: nil image", r.ID)
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.images[r.ID] = imageEntry{region: r, img: img}
	fb.compose()
	return nil
}

// compose redraws the canvas: background fill, bitmaps, then text. Bitmaps
// draw the background role first. Caller holds mu.
func (fb *Framebuffer) compose() {
	draw.Draw(fb.canvas, fb.canvas.Bounds(), image.NewUniform(fb.bg), image.Point{}, draw.Src)

	imgs := make([]imageEntry, 0, len(fb.images))
	for _, e := range fb.images {
		imgs = append(imgs, e)
	}
	sort.Slice(imgs, func(i, j int) bool {
		bi := imgs[i].region.Role == render.RoleBackground
		bj := imgs[j].region.Role == render.RoleBackground
		if bi != bj {
			return bi
		}
		return imgs[i].region.ID < imgs[j].region.ID
	})
	for _, e := range imgs {
		b := e.img.Bounds()
		dst := image.Rect(e.region.X, e.region.Y, e.region.X+b.Dx(), e.region.Y+b.Dy())
		draw.Draw(fb.canvas, dst, e.img, b.Min, draw.Over)
	}

	for _, e := range fb.texts {
		if e.content.Text == "" {
			continue
		}
		face := FaceFor(e.region.Font)
		d := font.Drawer{
			Dst:  fb.canvas,
			Src:  image.NewUniform(e.content.Color),
			Face: face,
			Dot:  fixed.P(e.region.X, e.region.Y+face.Metrics().Ascent.Ceil()),
		}
		d.DrawString(e.content.Text)
	}
}

// Bounds returns the canvas size.
func (fb *Framebuffer) Bounds() image.Rectangle {
	return fb.canvas.Bounds()
}

// Snapshot returns a copy of the current canvas.
func (fb *Framebuffer) Snapshot() *image.RGBA {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	out := image.NewRGBA(fb.canvas.Bounds())
	copy(out.Pix, fb.canvas.Pix)
	return out
}

// WritePNG encodes the current canvas as PNG.
func (fb *Framebuffer) WritePNG(w io.Writer) error {
	return png.Encode(w, fb.Snapshot())
}
