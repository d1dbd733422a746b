package camera

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultAspect is used for status frames until a real frame has been seen.
const DefaultAspect = 16.0 / 9.0

var (
	statusBackground = color.RGBA{A: 0xff}
	statusText       = color.RGBA{R: 0xff, G: 0xff, A: 0xff}
)

// statusMargin is the left offset of the text, in output pixels.
const statusMargin = 20

// RenderStatus draws text onto a solid raster width pixels wide whose height
// follows aspect. The text is drawn with a bitmap face and scaled up so it
// stays legible on wide frames.
func RenderStatus(text string, width int, aspect float64) *image.RGBA {
	if aspect <= 0 {
		aspect = DefaultAspect
	}
	height := int(math.Round(float64(width) / aspect))
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(statusBackground), image.Point{}, draw.Src)
	if text == "" {
		return dst
	}

	face := basicfont.Face7x13
	metrics := face.Metrics()
	textW := font.MeasureString(face, text).Ceil()
	textH := (metrics.Ascent + metrics.Descent).Ceil()

	src := image.NewRGBA(image.Rect(0, 0, textW, textH))
	d := &font.Drawer{
		Dst:  src,
		Src:  image.NewUniform(statusText),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: metrics.Ascent},
	}
	d.DrawString(text)

	scale := width / 600
	if scale < 1 {
		scale = 1
	}
	// baseline sits on the vertical centre, like a text origin at (20, h/2)
	baseline := height / 2
	top := baseline - metrics.Ascent.Ceil()*scale
	target := image.Rect(statusMargin, top, statusMargin+textW*scale, top+textH*scale)
	draw.NearestNeighbor.Scale(dst, target, src, src.Bounds(), draw.Over, nil)
	return dst
}

// packRGB strips the alpha channel of an RGBA image.
func packRGB(img *image.RGBA) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		o := y * w * 3
		for x := 0; x < w; x++ {
			out[o+x*3] = row[x*4]
			out[o+x*3+1] = row[x*4+1]
			out[o+x*3+2] = row[x*4+2]
		}
	}
	return out
}
