package media

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAsciiFromImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			if x >= 4 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	got := asciiFromImage(img, 8)
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2:\n%s", len(lines), got)
	}
	for _, line := range lines {
		if line != "@@@@    " {
			t.Fatalf("line = %q, want dark left half and light right half", line)
		}
	}
}

func TestRenderASCIIFromJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thumb.jpg")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 320, 180))
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatal(err)
	}
	f.Close()

	art, err := RenderASCII(path, 40)
	if err != nil {
		t.Fatalf("RenderASCII() error = %v", err)
	}
	lines := strings.Split(art, "\n")
	if len(lines) != 11 || len(lines[0]) != 40 {
		t.Fatalf("art is %dx%d", len(lines[0]), len(lines))
	}

	bad := filepath.Join(t.TempDir(), "bad.jpg")
	mustWriteFile(t, bad, "not an image")
	if _, err := RenderASCII(bad, 40); err == nil {
		t.Fatal("expected decode error")
	}
}
