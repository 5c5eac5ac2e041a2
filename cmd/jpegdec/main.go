package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/makepad/jpegdec"
)

func main() {
	var inputFile = flag.String("input", "", "Input JPEG file")
	var outputFile = flag.String("output", "", "Output file, .png or .rgba.zst (optional, defaults to input filename with .png extension)")
	var info = flag.Bool("info", false, "Print the frame header and exit")
	var rotate = flag.Bool("rotate", false, "Apply the EXIF orientation")
	var workers = flag.Int("workers", runtime.NumCPU(), "Goroutines used for the inverse DCT and color conversion")
	flag.Parse()

	if *inputFile == "" {
		log.Fatal("Input file is required. Use -input flag.")
	}

	// Read input file
	data, err := os.ReadFile(*inputFile)
	if err != nil {
		log.Fatalf("Failed to read input file: %v", err)
	}

	if *info {
		if err := printInfo(os.Stdout, data); err != nil {
			log.Fatalf("Failed to read JPEG header: %v", err)
		}

		return
	}

	img, err := jpegdec.DecodeBytes(data, &jpegdec.Options{AutoRotate: *rotate, Concurrency: *workers})
	if err != nil {
		log.Fatalf("Failed to decode JPEG: %v", err)
	}

	// Determine output filename
	output := *outputFile
	if output == "" {
		ext := filepath.Ext(*inputFile)
		output = (*inputFile)[:len(*inputFile)-len(ext)] + ".png"
	}

	if err := writeImage(output, img); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}

	log.Printf("Decoded %dx%d image to %s", img.Rect.Dx(), img.Rect.Dy(), output)
}

// printInfo writes what Test and DecodeHeader report about data.
func printInfo(w io.Writer, data []byte) error {
	width, height, ok := jpegdec.Test(data)
	fmt.Fprintf(w, "test: ok=%t size=%dx%d\n", ok, width, height)

	h, err := jpegdec.DecodeHeader(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "size: %dx%d\n", h.Width, h.Height)
	fmt.Fprintf(w, "components: %d\n", h.Components)
	fmt.Fprintf(w, "layout: %s\n", h.Layout)
	fmt.Fprintf(w, "progressive: %t\n", h.Progressive)
	fmt.Fprintf(w, "restart interval: %d\n", h.RestartInterval)

	return nil
}

// writeImage stores img in the format selected by the extension of path.
func writeImage(path string, img *image.RGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if strings.HasSuffix(path, rawExt) {
		err = writeRawRGBA(f, img)
	} else {
		err = png.Encode(f, img)
	}

	if cerr := f.Close(); err == nil {
		err = cerr
	}

	return err
}
