// Package jpegdec implements a decoder for baseline, extended sequential and
// progressive Huffman-coded JPEG images with one or three 8-bit components.
//
// Supported luma sampling layouts are 4:4:4, 4:4:0, 4:2:2 and 4:2:0 with
// 1x1 chroma. Three-component images tagged with an EXIF photometric
// interpretation of RGB are drawn as RGB planes. Everything else (CMYK,
// 12-bit, lossless, arithmetic coding) is reported as [ErrUnsupported];
// [Decode] and [DecodeConfig] fall back to the standard library for those.
package jpegdec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"sync"
)

// Standard error types for JPEG decoding.
var (
	ErrNoJPEG         = errors.New("not a JPEG file")
	ErrUnsupported    = errors.New("unsupported format")
	ErrSyntax         = errors.New("syntax error")
	ErrNotImplemented = errors.New("not implemented")
)

// Specific decoding failures. Each wraps ErrUnsupported or ErrSyntax.
var (
	ErrPrecision       = fmt.Errorf("sample precision is not 8 bits: %w", ErrUnsupported)
	ErrComponentCount  = fmt.Errorf("component count is not 1 or 3: %w", ErrUnsupported)
	ErrComponentIndex  = fmt.Errorf("component ids are not 1..N: %w", ErrUnsupported)
	ErrChromaSampling  = fmt.Errorf("chroma sampling factor is not 1x1: %w", ErrUnsupported)
	ErrLumaSampling    = fmt.Errorf("luma sampling factor is not supported: %w", ErrUnsupported)
	ErrHuffmanOverflow = fmt.Errorf("huffman table has too many codes: %w", ErrSyntax)
	ErrExifPhotometric = fmt.Errorf("EXIF photometric interpretation does not match the components: %w", ErrSyntax)
	ErrExifFormat      = fmt.Errorf("unsupported EXIF field format: %w", ErrSyntax)
	ErrTruncated       = fmt.Errorf("missing end of image: %w", ErrSyntax)
	ErrRestartMarker   = fmt.Errorf("expected restart marker not found: %w", ErrSyntax)
)

// Options specifies decoding parameters.
type Options struct {
	// AutoRotate applies the EXIF orientation tag so the image is returned
	// in its intended viewing orientation.
	AutoRotate bool
	// Concurrency is the number of goroutines used for the final IDCT and
	// color conversion. Values below 2 decode on the calling goroutine.
	Concurrency int
}

// Header describes a JPEG frame without decoding its scans.
type Header struct {
	Width, Height   int
	Components      int
	Layout          string // "Y", "YUV420", "YUV422", "YUV440", "YUV444" or "RGB444"
	Progressive     bool
	RestartInterval int
}

// decoderPool is a pool of decoder structs to reduce allocation overhead.
var decoderPool = sync.Pool{
	New: func() interface{} {
		return newDecoder()
	},
}

// Interface to check if a reader knows its remaining length.
type readerWithLen interface {
	Len() int
}

// readAllData reads data from r, pre-allocating if the size is known.
func readAllData(r io.Reader) ([]byte, error) {
	if rl, ok := r.(readerWithLen); ok {
		size := rl.Len()
		if size > 0 {
			data := make([]byte, size)
			_, err := io.ReadFull(r, data)
			if err != nil {
				return nil, fmt.Errorf("failed to read image data: %w", err)
			}

			return data, nil
		}
	}

	return io.ReadAll(r)
}

// Test walks the markers of data up to the first frame header and reports
// the image dimensions. It returns ok == false for anything that is not a
// JPEG with one or three components. Nothing beyond the frame header is
// validated.
func Test(data []byte) (width, height int, ok bool) {
	width, height, ncomp, ok := probe(data)
	if !ok || (ncomp != 1 && ncomp != 3) {
		return 0, 0, false
	}

	return width, height, true
}

// DecodeHeader parses the segments of data up to the first scan. It fails
// with the same errors DecodeBytes would report for those segments.
func DecodeHeader(data []byte) (Header, error) {
	d := decoderPool.Get().(*decoder)
	defer func() {
		d.reset()
		decoderPool.Put(d)
	}()

	if err := d.decode(data, true); err != nil {
		return Header{}, err
	}

	return Header{
		Width:           d.width,
		Height:          d.height,
		Components:      d.ncomp,
		Layout:          d.layout.String(),
		Progressive:     d.progressive,
		RestartInterval: d.restartInterval,
	}, nil
}

// DecodeBytes decodes a complete JPEG file held in memory.
// Unlike Decode it never falls back to another decoder.
func DecodeBytes(data []byte, opts ...*Options) (*image.RGBA, error) {
	d := decoderPool.Get().(*decoder)
	defer func() {
		d.reset()
		decoderPool.Put(d)
	}()

	if len(opts) > 0 && opts[0] != nil {
		d.autoRotate = opts[0].AutoRotate
		d.concurrency = opts[0].Concurrency
	}

	if err := d.decode(data, false); err != nil {
		return nil, err
	}

	img := d.img
	if d.autoRotate && d.orientation > 1 {
		img = transform(img, d.orientation)
	}

	return img, nil
}

// Decode reads a JPEG image from r and returns it as an [image.Image].
// Images this package does not support are handed to the standard
// library's decoder.
func Decode(r io.Reader, opts ...*Options) (image.Image, error) {
	data, err := readAllData(r)
	if err != nil {
		return nil, err
	}

	img, err := DecodeBytes(data, opts...)
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			// Note: The standard library's jpeg.Decode does not auto-rotate based on EXIF.
			return jpeg.Decode(bytes.NewReader(data))
		}

		return nil, err
	}

	return img, nil
}

// DecodeConfig returns the color model and dimensions of a JPEG image without decoding the entire image data.
// The dimensions returned are as stored in the file (SOF marker), ignoring any EXIF orientation tags.
func DecodeConfig(r io.Reader) (image.Config, error) {
	data, err := readAllData(r)
	if err != nil {
		return image.Config{}, err
	}

	h, err := DecodeHeader(data)
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			return jpeg.DecodeConfig(bytes.NewReader(data))
		}

		return image.Config{}, err
	}

	return image.Config{
		ColorModel: color.RGBAModel,
		Width:      h.Width,
		Height:     h.Height,
	}, nil
}

// Encode is not implemented. It always returns ErrNotImplemented.
func Encode(w io.Writer, m image.Image) error {
	return fmt.Errorf("jpeg encode: %w", ErrNotImplemented)
}

// init registers the JPEG format with the standard library's image package.
func init() {
	decodeWrapper := func(r io.Reader) (image.Image, error) {
		return Decode(r)
	}

	image.RegisterFormat("jpeg", "\xff\xd8", decodeWrapper, DecodeConfig)
}
