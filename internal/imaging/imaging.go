// SPDX-License-Identifier: MIT

// Package imaging holds the pixel-level helpers shared by capture, OCR and
// archival: cropping, scaling, dedup similarity and frame encoding.
package imaging

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Dedup comparison happens on a fixed small canvas so the cost per tick is
// independent of monitor resolution.
const (
	compareWidth  = 480
	compareHeight = 300
)

// Crop returns a copy of the rectangle (x, y, w, h) from src.
func Crop(src image.Image, x, y, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, image.Pt(x, y), draw.Src)
	return dst
}

// Resize scales src to w times h with bilinear interpolation.
func Resize(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

// ResizeHQ scales src with Catmull-Rom, used where quality matters more than
// speed (thumbnails, OCR pre-scale).
func ResizeHQ(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

// ScaleToWidth resizes src to the given width preserving aspect ratio.
func ScaleToWidth(src image.Image, width int) *image.RGBA {
	b := src.Bounds()
	if b.Dx() == 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	ratio := float64(width) / float64(b.Dx())
	height := int(float64(b.Dy()) * ratio)
	if height < 1 {
		height = 1
	}
	return ResizeHQ(src, width, height)
}

// Grayscale converts src to 8-bit gray.
func Grayscale(src image.Image) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// Similarity compares two images by downscaled pixel difference and returns
// a 0.0-1.0 score: 1 - mean(|delta RGB|)/255 on a 480x300 canvas. Identical
// inputs score exactly 1.0 and the measure is symmetric.
func Similarity(a, b image.Image) float64 {
	ra := Resize(a, compareWidth, compareHeight)
	rb := Resize(b, compareWidth, compareHeight)

	var sum uint64
	n := len(ra.Pix)
	if len(rb.Pix) < n {
		n = len(rb.Pix)
	}
	var count uint64
	for i := 0; i < n; i += 4 {
		// RGB only; alpha is constant for screen captures.
		for c := 0; c < 3; c++ {
			pa := int(ra.Pix[i+c])
			pb := int(rb.Pix[i+c])
			d := pa - pb
			if d < 0 {
				d = -d
			}
			sum += uint64(d)
			count++
		}
	}
	if count == 0 {
		return 1.0
	}
	mean := float64(sum) / float64(count)
	return 1.0 - mean/255.0
}

// IsDuplicate reports whether next is within threshold similarity of prev.
func IsDuplicate(next, prev image.Image, threshold float64) (bool, float64) {
	sim := Similarity(next, prev)
	return sim >= threshold, sim
}
