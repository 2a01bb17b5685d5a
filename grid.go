/*
Luminance grid
Copyright (C) 2006-2011 Yangli Hector Yee
Copyright (C) 2011-2016 Steven Myint, Jeff Terrace
Copyright (C) 2023 Ivan Latunov

This program is free software; you can redistribute it and/or modify it under
the terms of the GNU General Public License as published by the Free Software
Foundation; either version 2 of the License, or (at your option) any later
version.

This program is distributed in the hope that it will be useful, but WITHOUT ANY
WARRANTY; without even the implied warranty of MERCHANTABILITY or FITNESS FOR A
PARTICULAR PURPOSE. See the GNU General Public License for more details.

You should have received a copy of the GNU General Public License along with
this program; if not, write to the Free Software Foundation, Inc., 59 Temple
Place, Suite 330, Boston, MA 02111-1307 USA
*/

package imgcompare

import (
	"image"
	"sync"
)

// lumaGrid is the colour-free view of an image: one alpha-premultiplied
// luminance and one alpha sample per pixel, both on the 8-bit scale.
type lumaGrid struct {
	width  int
	height int
	luma   []float64
	alpha  []float64
}

func newLumaGrid(img *image.NRGBA) *lumaGrid {
	b := img.Bounds()
	g := &lumaGrid{
		width:  b.Dx(),
		height: b.Dy(),
	}
	g.luma = make([]float64, g.width*g.height)
	g.alpha = make([]float64, g.width*g.height)

	wg := sync.WaitGroup{}
	for y := 0; y < g.height; y++ {
		wg.Add(1)
		go func(y int) {
			defer wg.Done()
			row := img.Pix[y*img.Stride:]
			for x := 0; x < g.width; x++ {
				p := row[x*4 : x*4+4]
				i := x + y*g.width
				// Premultiplied, so a fully transparent pixel is black
				// whatever colour it stores.
				g.luma[i] = luminance(p[0], p[1], p[2]) * float64(p[3]) / 255
				g.alpha[i] = float64(p[3])
			}
		}(y)
	}
	wg.Wait()

	return g
}

func (g *lumaGrid) value(x, y int) (luma, alpha float64) {
	i := x + y*g.width
	return g.luma[i], g.alpha[i]
}
