/*
Metric
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

// Package imgcompare scores how similar two images are and renders a map of
// the pixels that differ.
//
// The comparison ignores colour: both images are reduced to luminance, so a
// red and a grey square of the same brightness are considered identical.
// Images of different sizes are resampled to a common grid first.
//
// A label-based override ([LabelClassifier]) can force a perfect score for
// matching uploads without any pixel work. [Session] wraps the engine in the
// two-slot request lifecycle used by interactive callers.
package imgcompare

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"sync/atomic"
)

// Parameters are the available parameters for image comparison.
type Parameters struct {
	// Luminance (and alpha) difference, on the 8-bit scale, at which a pixel
	// counts as mismatched.
	Tolerance float64

	// Colour of mismatched pixels in the diff image.
	Highlight color.NRGBA

	// How much to darken matching pixels in the diff image. Range is [0, 1].
	BackgroundDim float64

	// Scores strictly above this are labelled "highly similar".
	SimilarAbove float64

	// Largest width*height accepted from a decoded image. Zero disables the
	// check.
	MaxPixels int64
}

// Validate reports parameters the metric cannot work with.
func (p Parameters) Validate() error {
	switch {
	case p.Tolerance <= 0 || p.Tolerance > 255:
		return fmt.Errorf("tolerance %v out of range (0, 255]", p.Tolerance)
	case p.BackgroundDim < 0 || p.BackgroundDim > 1:
		return fmt.Errorf("background dim %v out of range [0, 1]", p.BackgroundDim)
	case p.SimilarAbove < 0 || p.SimilarAbove > 100:
		return fmt.Errorf("similarity threshold %v out of range [0, 100]", p.SimilarAbove)
	case p.MaxPixels < 0:
		return fmt.Errorf("max pixels %d must not be negative", p.MaxPixels)
	}
	return nil
}

// Analysis is the raw outcome of measuring two decoded images.
type Analysis struct {
	Width, Height   int          // Size of the comparison grid.
	NumPixelsFailed uint64       // Pixels whose luminance or alpha differed.
	Mismatch        float64      // Percentage of failed pixels, two decimals.
	ImageDifference *image.NRGBA // Highlight map of the failed pixels.
}

// Score is the similarity derived from the mismatch percentage.
func (a Analysis) Score() float64 {
	return round2(clamp(100-a.Mismatch, 0, 100))
}

var (
	// DefaultParameters are the default parameters for [Measure].
	DefaultParameters Parameters

	// HighlightMagenta is the default colour for mismatched pixels.
	HighlightMagenta = color.NRGBA{255, 0, 255, 255}
)

func init() {
	DefaultParameters = Parameters{
		Tolerance:     16,
		Highlight:     HighlightMagenta,
		BackgroundDim: 0.5,
		SimilarAbove:  80,
		MaxPixels:     50_000_000,
	}
}

// Measure compares two decoded images by luminance. Both are resampled to the
// smaller width and the smaller height of the pair, so any two images yield a
// defined result.
func Measure(image_a, image_b image.Image, args Parameters) Analysis {
	w, h := commonSize(image_a.Bounds(), image_b.Bounds())

	var a, b *image.NRGBA
	wg := sync.WaitGroup{}
	wg.Add(2)
	go func() { defer wg.Done(); a = resample(image_a, w, h) }()
	go func() { defer wg.Done(); b = resample(image_b, w, h) }()
	wg.Wait()

	return measureGrids(newLumaGrid(a), newLumaGrid(b), args)
}

func measureGrids(la, lb *lumaGrid, args Parameters) Analysis {
	w, h := la.width, la.height
	diffImg := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return Analysis{Width: w, Height: h, ImageDifference: diffImg}
	}

	var pixels_failed atomic.Uint64

	wg := sync.WaitGroup{}
	for y := 0; y < h; y++ {
		wg.Add(1)
		go func(y int) {
			defer wg.Done()
			for x := 0; x < w; x++ {
				lumA, alphaA := la.value(x, y)
				lumB, alphaB := lb.value(x, y)

				pass := math.Abs(lumA-lumB) < args.Tolerance &&
					math.Abs(alphaA-alphaB) < args.Tolerance

				if pass {
					diffImg.SetNRGBA(x, y, dimmed(lumA, args.BackgroundDim))
				} else {
					pixels_failed.Add(1)
					diffImg.SetNRGBA(x, y, args.Highlight)
				}
			}
		}(y)
	}

	wg.Wait()

	failed := pixels_failed.Load()
	return Analysis{
		Width:           w,
		Height:          h,
		NumPixelsFailed: failed,
		Mismatch:        round2(float64(failed) / float64(w*h) * 100),
		ImageDifference: diffImg,
	}
}
