/*
Metric math & pixel funcs
Copyright (C) 2006-2011 Yangli Hector Yee
Copyright (C) 2011-2016 Steven Myint, Jeff Terrace
Copyright (C) 2023 Ivan Latunov

This program is free software; you can redistribute it and/or modify it under
the terms of the GNU General Public License as published by the Free Software
Foundation; either version 2 of the License, or (at your option) any later
version.

This program is distributed in the hope that it will be useful, but WITHOUT ANY
WARRANTY; without even the implied warranty of MERCHANTABILITY or FITNESS FOR A
PARTICULAR PURPOSE.  See the GNU General Public License for more details.

You should have received a copy of the GNU General Public License along with
this program; if not, write to the Free Software Foundation, Inc., 59 Temple
Place, Suite 330, Boston, MA 02111-1307 USA
*/

package imgcompare

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// Brightness weights on the 8-bit scale.
const (
	lumaR = 0.3
	lumaG = 0.59
	lumaB = 0.11
)

func luminance(r, g, b uint8) float64 {
	return lumaR*float64(r) + lumaG*float64(g) + lumaB*float64(b)
}

// commonSize is the grid both images are resampled to: the smaller width and
// the smaller height, taken independently.
func commonSize(a, b image.Rectangle) (w, h int) {
	w = a.Dx()
	if b.Dx() < w {
		w = b.Dx()
	}
	h = a.Dy()
	if b.Dy() < h {
		h = b.Dy()
	}
	return w, h
}

// resample returns img as a w×h NRGBA anchored at the origin. Images that are
// already the right size are copied pixel for pixel; the rest are scaled with
// a bilinear filter, which is deterministic for identical inputs.
func resample(img image.Image, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}
	sr := img.Bounds()
	if sr.Dx() == w && sr.Dy() == h {
		draw.Draw(dst, dst.Bounds(), img, sr.Min, draw.Src)
		return dst
	}
	draw.BiLinear.Scale(dst, dst.Bounds(), img, sr, draw.Src, nil)
	return dst
}

// dimmed renders a matching pixel: its luminance as grey, pulled towards
// black by dim (0 keeps full brightness, 1 is black).
func dimmed(luma, dim float64) color.NRGBA {
	v := uint8(math.Round(clamp(luma*(1-dim), 0, 255)))
	return color.NRGBA{v, v, v, 255}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
