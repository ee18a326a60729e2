package media

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
)

// asciiRamp runs from dark to light.
const asciiRamp = "@%#*+=-:. "

// RenderASCII draws the image at path as width columns of text. Rows are
// halved to compensate for terminal glyphs being about twice as tall as wide.
func RenderASCII(path string, width int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decode thumbnail: %w", err)
	}
	return asciiFromImage(img, width), nil
}

func asciiFromImage(img image.Image, width int) string {
	b := img.Bounds()
	if width <= 0 || b.Dx() == 0 || b.Dy() == 0 {
		return ""
	}
	if width > b.Dx() {
		width = b.Dx()
	}
	height := b.Dy() * width / b.Dx() / 2
	if height < 1 {
		height = 1
	}

	var sb strings.Builder
	for row := 0; row < height; row++ {
		y := b.Min.Y + row*b.Dy()/height
		for col := 0; col < width; col++ {
			x := b.Min.X + col*b.Dx()/width
			r, g, bl, _ := img.At(x, y).RGBA()
			// Rec. 601 luma on 16-bit channels
			lum := (299*r + 587*g + 114*bl) / 1000
			idx := int(lum) * (len(asciiRamp) - 1) / 0xffff
			sb.WriteByte(asciiRamp[idx])
		}
		if row < height-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
