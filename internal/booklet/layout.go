package booklet

import "github.com/local/bookletd/internal/document"

// SlotsPerSheet is the number of source pages tiled onto one output sheet.
const SlotsPerSheet = 4

// Layout is the fixed placement grid of an output sheet.
type Layout struct {
	Size  document.Size
	Slots [SlotsPerSheet]document.Rect
}

// QuadLayout splits a sheet into a 2x2 grid, ordered top-left, top-right,
// bottom-left, bottom-right. Each slot is half the sheet's width and height.
func QuadLayout(size document.Size) Layout {
	w, h := size.Width/2, size.Height/2
	return Layout{
		Size: size,
		Slots: [SlotsPerSheet]document.Rect{
			{X: 0, Y: h, Width: w, Height: h},
			{X: w, Y: h, Width: w, Height: h},
			{X: 0, Y: 0, Width: w, Height: h},
			{X: w, Y: 0, Width: w, Height: h},
		},
	}
}
