package render

import "image"

// Display is the capability the renderer draws through. Implementations own the
// physical or in-memory surface; the renderer owns what each region shows.
type Display interface {
	DrawText(r Region, c Content) error
	DrawImage(r Region, img image.Image) error
}
