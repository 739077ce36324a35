package rectgp

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/draw"
)

// WritePreview renders up to cols*rows samples as a PNG contact sheet, cols
// canvases per row with a 1-pixel separator, upscaled by scale with
// nearest-neighbour so single-pixel outlines stay crisp.
func (d *Dataset) WritePreview(w io.Writer, cols, scale int) error {
	if d.Len() == 0 {
		return ErrEmptyDataset
	}

	if cols < 1 || scale < 1 {
		return fmt.Errorf("preview: cols and scale must be positive, got %d and %d", cols, scale)
	}

	if cols > d.Len() {
		cols = d.Len()
	}

	rows := (d.Len() + cols - 1) / cols
	cellW, cellH := d.Width+1, d.Height+1

	sheet := image.NewGray(image.Rect(0, 0, cols*cellW+1, rows*cellH+1))
	draw.Draw(sheet, sheet.Bounds(), image.NewUniform(color.Gray{Y: 96}), image.Point{}, draw.Src)

	for i := 0; i < d.Len(); i++ {
		ox := 1 + (i%cols)*cellW
		oy := 1 + (i/cols)*cellH
		row := d.Row(i)

		for y := 0; y < d.Height; y++ {
			for x := 0; x < d.Width; x++ {
				v := uint8(0)
				if row[y*d.Width+x] != 0 {
					v = 255
				}

				sheet.SetGray(ox+x, oy+y, color.Gray{Y: v})
			}
		}
	}

	b := sheet.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.NearestNeighbor.Scale(out, out.Bounds(), sheet, b, draw.Src, nil)

	if err := png.Encode(w, out); err != nil {
		return fmt.Errorf("preview: encode png: %w", err)
	}

	return nil
}
