// Package dicomjpeg exposes the jpegdec decoder as a go-dicom codec for the
// JPEG Baseline (Process 1) and JPEG Extended (Process 2 & 4) transfer
// syntaxes. Only 8-bit frames can be decoded; encoding is not implemented.
package dicomjpeg

import (
	"fmt"

	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	"github.com/cocosip/go-dicom/pkg/imaging/codec"
	"github.com/cocosip/go-dicom/pkg/imaging/imagetypes"

	"github.com/makepad/jpegdec"
)

var _ codec.Codec = (*Codec)(nil)

// Codec implements the external codec.Codec interface on top of jpegdec.
type Codec struct {
	transferSyntax *transfer.Syntax
}

// NewCodec creates a codec bound to the given transfer syntax.
func NewCodec(ts *transfer.Syntax) *Codec {
	return &Codec{
		transferSyntax: ts,
	}
}

// Name returns the codec name
func (c *Codec) Name() string {
	return fmt.Sprintf("jpegdec (%s)", c.transferSyntax.UID().UID())
}

// TransferSyntax returns the transfer syntax this codec handles
func (c *Codec) TransferSyntax() *transfer.Syntax {
	return c.transferSyntax
}

// GetDefaultParameters returns the default codec parameters
func (c *Codec) GetDefaultParameters() codec.Parameters {
	return NewParameters()
}

// Encode is not supported; it always returns an error wrapping
// jpegdec.ErrNotImplemented.
func (c *Codec) Encode(oldPixelData imagetypes.PixelData, newPixelData imagetypes.PixelData, parameters codec.Parameters) error {
	return fmt.Errorf("%s encode: %w", c.Name(), jpegdec.ErrNotImplemented)
}

// Decode decodes every JPEG frame of oldPixelData and appends the
// interleaved 8-bit samples to newPixelData.
func (c *Codec) Decode(oldPixelData imagetypes.PixelData, newPixelData imagetypes.PixelData, parameters codec.Parameters) error {
	if oldPixelData == nil || newPixelData == nil {
		return fmt.Errorf("source and destination PixelData cannot be nil")
	}

	// Get frame info
	frameInfo := oldPixelData.GetFrameInfo()
	if frameInfo == nil {
		return fmt.Errorf("failed to get frame info from source pixel data")
	}

	if frameInfo.BitsAllocated != 0 && frameInfo.BitsAllocated != 8 {
		return fmt.Errorf("bits allocated %d: %w", frameInfo.BitsAllocated, jpegdec.ErrUnsupported)
	}

	samples := int(frameInfo.SamplesPerPixel)
	if samples != 1 && samples != 3 {
		return fmt.Errorf("samples per pixel %d: %w", samples, jpegdec.ErrUnsupported)
	}

	opts := optionsFrom(parameters)

	// Process all frames
	frameCount := oldPixelData.FrameCount()
	for frameIndex := 0; frameIndex < frameCount; frameIndex++ {
		// Get encoded frame data
		frameData, err := oldPixelData.GetFrame(frameIndex)
		if err != nil {
			return fmt.Errorf("failed to get frame %d: %w", frameIndex, err)
		}

		if len(frameData) == 0 {
			return fmt.Errorf("frame %d pixel data is empty", frameIndex)
		}

		img, err := jpegdec.DecodeBytes(frameData, opts)
		if err != nil {
			return fmt.Errorf("JPEG decode failed for frame %d: %w", frameIndex, err)
		}

		// Verify dimensions match
		width, height := img.Rect.Dx(), img.Rect.Dy()
		if width != int(frameInfo.Width) || height != int(frameInfo.Height) {
			return fmt.Errorf("decoded dimensions (%dx%d) don't match expected (%dx%d)",
				width, height, frameInfo.Width, frameInfo.Height)
		}

		// Add decoded frame to destination
		if err := newPixelData.AddFrame(pack(img.Pix, samples)); err != nil {
			return fmt.Errorf("failed to add decoded frame %d: %w", frameIndex, err)
		}
	}

	return nil
}

// optionsFrom maps codec parameters onto decoder options.
func optionsFrom(parameters codec.Parameters) *jpegdec.Options {
	opts := &jpegdec.Options{}
	if parameters == nil {
		return opts
	}

	if v, ok := parameters.GetParameter("concurrency").(int); ok {
		opts.Concurrency = v
	}

	if v, ok := parameters.GetParameter("autoRotate").(bool); ok {
		opts.AutoRotate = v
	}

	return opts
}

// pack converts RGBA pixels to interleaved samples: the red channel for
// single-sample frames, RGB triples otherwise.
func pack(pix []byte, samples int) []byte {
	n := len(pix) / 4
	out := make([]byte, n*samples)

	if samples == 1 {
		for i := 0; i < n; i++ {
			out[i] = pix[i*4]
		}

		return out
	}

	for i := 0; i < n; i++ {
		copy(out[i*3:i*3+3], pix[i*4:i*4+3])
	}

	return out
}

// Register registers codecs for the JPEG Baseline and JPEG Extended transfer
// syntaxes with the global registry
func Register() {
	registry := codec.GetGlobalRegistry()
	registry.RegisterCodec(transfer.JPEGBaseline8Bit, NewCodec(transfer.JPEGBaseline8Bit))
	registry.RegisterCodec(transfer.JPEGExtended12Bit, NewCodec(transfer.JPEGExtended12Bit))
}

func init() {
	Register()
}
