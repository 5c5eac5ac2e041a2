package main

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"runtime"

	"github.com/klauspost/compress/zstd"
)

// rawExt selects the zstd-compressed raw RGBA output format.
const rawExt = ".rgba.zst"

// writeRawRGBA writes img as a big-endian uint32 width and height followed by
// the RGBA pixels, all compressed as one zstd stream.
func writeRawRGBA(w io.Writer, img *image.RGBA) error {
	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderConcurrency(runtime.NumCPU()),
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
	)
	if err != nil {
		return fmt.Errorf("zstd encoder: %w", err)
	}

	width, height := img.Rect.Dx(), img.Rect.Dy()

	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:], uint32(width))
	binary.BigEndian.PutUint32(hdr[4:], uint32(height))

	if _, err := enc.Write(hdr[:]); err != nil {
		enc.Close()
		return fmt.Errorf("zstd encode: %w", err)
	}

	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		if _, err := enc.Write(row); err != nil {
			enc.Close()
			return fmt.Errorf("zstd encode: %w", err)
		}
	}

	return enc.Close()
}

// readRawRGBA reads an image written by writeRawRGBA.
func readRawRGBA(r io.Reader) (*image.RGBA, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1), zstd.WithDecoderLowmem(true))
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer dec.Close()

	var hdr [8]byte
	if _, err := io.ReadFull(dec, hdr[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	width := int(binary.BigEndian.Uint32(hdr[0:]))
	height := int(binary.BigEndian.Uint32(hdr[4:]))
	if width <= 0 || height <= 0 || width > 1<<16 || height > 1<<16 {
		return nil, fmt.Errorf("read header: invalid size %dx%d", width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if _, err := io.ReadFull(dec, img.Pix); err != nil {
		return nil, fmt.Errorf("read pixels: %w", err)
	}

	return img, nil
}
