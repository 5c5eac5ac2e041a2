package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 5), B: uint8(x ^ y), A: 255})
		}
	}

	return img
}

func TestRawRGBARoundTrip(t *testing.T) {
	src := testImage(37, 19)

	var buf bytes.Buffer
	if err := writeRawRGBA(&buf, src); err != nil {
		t.Fatalf("writeRawRGBA failed: %v", err)
	}

	got, err := readRawRGBA(&buf)
	if err != nil {
		t.Fatalf("readRawRGBA failed: %v", err)
	}

	if got.Rect != src.Rect {
		t.Fatalf("bounds = %v, want %v", got.Rect, src.Rect)
	}

	if !bytes.Equal(got.Pix, src.Pix) {
		t.Error("pixels differ after round trip")
	}
}

func TestRawRGBASubImage(t *testing.T) {
	src := testImage(20, 20)
	sub := src.SubImage(image.Rect(4, 6, 14, 11)).(*image.RGBA)

	var buf bytes.Buffer
	if err := writeRawRGBA(&buf, sub); err != nil {
		t.Fatalf("writeRawRGBA failed: %v", err)
	}

	got, err := readRawRGBA(&buf)
	if err != nil {
		t.Fatalf("readRawRGBA failed: %v", err)
	}

	for y := 0; y < 5; y++ {
		for x := 0; x < 10; x++ {
			if got.RGBAAt(x, y) != sub.RGBAAt(x+4, y+6) {
				t.Fatalf("pixel (%d,%d) differs", x, y)
			}
		}
	}
}

func TestReadRawRGBATruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := writeRawRGBA(&buf, testImage(8, 8)); err != nil {
		t.Fatalf("writeRawRGBA failed: %v", err)
	}

	if _, err := readRawRGBA(bytes.NewReader(buf.Bytes()[:buf.Len()/2])); err == nil {
		t.Error("expected an error for a truncated stream")
	}
}

func TestWriteImage(t *testing.T) {
	dir := t.TempDir()
	src := testImage(16, 9)

	t.Run("png", func(t *testing.T) {
		path := filepath.Join(dir, "out.png")
		if err := writeImage(path, src); err != nil {
			t.Fatalf("writeImage failed: %v", err)
		}

		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()

		m, err := png.Decode(f)
		if err != nil {
			t.Fatalf("png.Decode failed: %v", err)
		}

		if m.Bounds() != src.Bounds() {
			t.Errorf("bounds = %v, want %v", m.Bounds(), src.Bounds())
		}
	})

	t.Run("raw", func(t *testing.T) {
		path := filepath.Join(dir, "out"+rawExt)
		if err := writeImage(path, src); err != nil {
			t.Fatalf("writeImage failed: %v", err)
		}

		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()

		got, err := readRawRGBA(f)
		if err != nil {
			t.Fatalf("readRawRGBA failed: %v", err)
		}

		if !bytes.Equal(got.Pix, src.Pix) {
			t.Error("pixels differ")
		}
	})
}

func TestPrintInfo(t *testing.T) {
	data, err := os.ReadFile("../../testdata/test.420.progressive.jpg")
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := printInfo(&buf, data); err != nil {
		t.Fatalf("printInfo failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"size: 150x103", "components: 3", "progressive: true"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}

	if err := printInfo(&buf, []byte{0, 1, 2}); err == nil {
		t.Error("expected an error for non-JPEG input")
	}
}
