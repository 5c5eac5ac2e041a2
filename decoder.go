package jpegdec

import (
	"bytes"
	"errors"
	"image"
)

// component stores information about a single color component (e.g., Y, Cb, or Cr).
type component struct {
	id               int   // Component identifier, 1..3.
	h, v             int   // Sampling factors.
	tq               int   // Quantization table selector.
	td, ta           int   // Huffman table selectors for DC and AC coefficients.
	dcPred           int32 // DC prediction value for differential coding.
	offset           int   // Offset of the component's first block inside an MCU.
	blocksW, blocksH int   // Block grid of the component.
}

// decoder holds the state of the JPEG decoding process.
type decoder struct {
	data              []byte           // Input buffer containing the entire JPEG file.
	width, height     int              // Dimensions of the image.
	mbWidth, mbHeight int              // Dimensions of the image in MCUs.
	ncomp             int              // Number of color components (1 for grayscale, 3 for color).
	comp              [3]component     // Array to hold data for each color component.
	layout            layout           // MCU layout of the frame.
	progressive       bool             // Frame is SOF2.
	sofSeen           bool             // A frame header was parsed.
	restartInterval   int              // Restart interval in MCUs or blocks, 0 if disabled.
	qt                [4][64]int32     // Quantization tables in folded order.
	huff              [8]*huffmanTable // DC tables 0..3, AC tables 4..7. Pointers for pooling.
	huffUsed          uint8            // Bitmask of the tables defined by DHT.
	coeffs            []int32          // Coefficients of every MCU, kept across scans.
	br                bitReader        // Entropy-coded segment reader.
	eobrun            int              // Blocks left in the current end-of-band run.
	photometric       int              // EXIF photometric interpretation, -1 if absent.
	orientation       int              // EXIF orientation tag (1-8).
	autoRotate        bool             // Whether to auto-rotate based on EXIF orientation.
	concurrency       int              // Goroutines used by finish.
	img               *image.RGBA      // Final decoded image.
}

// errDecode is used for internal panics during the hot decoding path.
type errDecode struct{ error }

// newDecoder creates a new decoder instance and allocates the large tables.
func newDecoder() *decoder {
	d := new(decoder)
	for i := range d.huff {
		d.huff[i] = new(huffmanTable)
	}

	return d
}

// reset clears the decoder state for reuse, preserving the allocated tables.
func (d *decoder) reset() {
	// Save pointers to the tables.
	huffTmp := d.huff
	huffUsed := d.huffUsed
	coeffsTmp := d.coeffs[:0]

	// Zero the struct. This clears references (data, img, etc.) allowing GC, and resets all state variables.
	*d = decoder{}

	// Restore pointers to the tables. Defined Huffman tables are cleared so
	// a stream that uses a table it never defined sees the empty table.
	for i, t := range huffTmp {
		if huffUsed&(1<<i) != 0 {
			clear(t.lookup[:])
		}
	}

	d.huff = huffTmp
	d.coeffs = coeffsTmp
}

// panic triggers an internal panic to signal a decoding error in the hot path.
func (d *decoder) panic(err error) {
	panic(errDecode{err})
}

// segment returns the payload of the marker segment whose length field
// starts at pos.
func (d *decoder) segment(pos int) ([]byte, error) {
	if pos+2 > len(d.data) {
		return nil, ErrTruncated
	}

	n := int(d.data[pos])<<8 | int(d.data[pos+1])
	if n < 2 {
		return nil, ErrSyntax
	}

	if pos+n > len(d.data) {
		return nil, ErrTruncated
	}

	return d.data[pos+2 : pos+n], nil
}

// Marker Decoders

// decodeAPP1 decodes an APP1 segment. Only Exif blocks are looked at.
func (d *decoder) decodeAPP1(seg []byte) error {
	if !bytes.HasPrefix(seg, []byte("Exif\x00\x00")) {
		return nil
	}

	info, err := parseExif(seg[6:])
	if err != nil {
		return err
	}

	if info.orientation != 0 {
		d.orientation = info.orientation
	}

	if info.photometric < 0 {
		return nil
	}

	d.photometric = info.photometric
	if !d.sofSeen {
		return nil
	}

	d.layout, err = checkPhotometric(d.layout, d.photometric)

	return err
}

// decodeSOF decodes the Start of Frame segment. It extracts image dimensions,
// number of components, and component-specific information like subsampling factors.
func (d *decoder) decodeSOF(seg []byte, marker byte) error {
	if d.sofSeen {
		return ErrSyntax
	}

	if len(seg) < 6 {
		return ErrSyntax
	}

	if seg[0] != 8 {
		return ErrPrecision
	}

	d.height = int(seg[1])<<8 | int(seg[2])
	d.width = int(seg[3])<<8 | int(seg[4])
	d.ncomp = int(seg[5])

	switch d.ncomp {
	case 1, 3: // Grayscale or YCbCr/RGB
	default:
		return ErrComponentCount
	}

	if len(seg) < 6+3*d.ncomp {
		return ErrSyntax
	}

	if d.width == 0 || d.height == 0 {
		return ErrSyntax
	}

	for i := 0; i < d.ncomp; i++ {
		p := seg[6+3*i:]
		c := &d.comp[i]

		c.id = int(p[0])
		if c.id != i+1 {
			return ErrComponentIndex
		}

		c.h = int(p[1]) >> 4
		c.v = int(p[1]) & 15
		c.tq = int(p[2])
		if c.tq > 3 {
			return ErrSyntax
		}
	}

	if d.ncomp == 1 {
		d.comp[0].h, d.comp[0].v = 1, 1
		d.layout = layoutY
	} else {
		if seg[6+3+1] != 0x11 || seg[6+6+1] != 0x11 {
			return ErrChromaSampling
		}

		switch seg[6+1] {
		case 0x11:
			d.layout = layoutYUV444
		case 0x12:
			d.layout = layoutYUV440
		case 0x21:
			d.layout = layoutYUV422
		case 0x22:
			d.layout = layoutYUV420
		default:
			return ErrLumaSampling
		}
	}

	d.sofSeen = true
	d.progressive = marker == 0xC2

	if d.photometric >= 0 {
		var err error
		if d.layout, err = checkPhotometric(d.layout, d.photometric); err != nil {
			return err
		}
	}

	info := &layouts[d.layout]
	d.mbWidth = (d.width + info.mcuW - 1) / info.mcuW
	d.mbHeight = (d.height + info.mcuH - 1) / info.mcuH

	lumaBlocks := info.h * info.v
	for i := 0; i < d.ncomp; i++ {
		c := &d.comp[i]

		cw := (d.width*c.h + info.h - 1) / info.h
		ch := (d.height*c.v + info.v - 1) / info.v
		c.blocksW = (cw + 7) / 8
		c.blocksH = (ch + 7) / 8

		c.offset = 0
		if i > 0 {
			c.offset = 64 * (lumaBlocks + i - 1)
		}
	}

	return nil
}

// decodeDHT decodes the Define Huffman Table segment. It parses Huffman table
// specifications and builds fast lookup tables for entropy decoding.
func (d *decoder) decodeDHT(seg []byte) error {
	var counts [16]byte

	for len(seg) > 0 {
		if len(seg) < 17 {
			return ErrSyntax
		}

		class, id := seg[0]>>4, seg[0]&15
		if class > 1 || id > 3 {
			return ErrSyntax
		}

		copy(counts[:], seg[1:17])

		total := 0
		for _, n := range counts {
			total += int(n)
		}

		if total >= 256 {
			return ErrHuffmanOverflow
		}

		if len(seg) < 17+total {
			return ErrSyntax
		}

		i := int(class)*4 + int(id)
		d.huffUsed |= 1 << i

		if err := d.huff[i].build(&counts, seg[17:17+total]); err != nil {
			return err
		}

		seg = seg[17+total:]
	}

	return nil
}

// decodeDQT decodes the Define Quantization Table segment. Tables are stored
// in folded order so they line up with the coefficient blocks.
func (d *decoder) decodeDQT(seg []byte) error {
	for len(seg) > 0 {
		precision, id := seg[0]>>4, seg[0]&15
		if precision > 1 || id > 3 {
			return ErrSyntax
		}

		size := 64
		if precision != 0 {
			size = 128
		}

		if len(seg) < 1+size {
			return ErrSyntax
		}

		t := &d.qt[id]
		for k := 0; k < 64; k++ {
			if precision != 0 {
				t[folding[k]] = int32(seg[1+2*k])<<8 | int32(seg[2+2*k])
			} else {
				t[folding[k]] = int32(seg[1+k])
			}
		}

		seg = seg[1+size:]
	}

	return nil
}

// decodeDRI decodes the Define Restart Interval segment.
func (d *decoder) decodeDRI(seg []byte) error {
	if len(seg) < 2 {
		return ErrSyntax
	}

	d.restartInterval = int(seg[0])<<8 | int(seg[1])

	return nil
}

// decodeSOS parses a Start of Scan header.
func (d *decoder) decodeSOS(seg []byte) (scanHeader, error) {
	var s scanHeader

	if !d.sofSeen || len(seg) < 1 {
		return s, ErrSyntax
	}

	s.ncomp = int(seg[0])
	if s.ncomp < 1 || s.ncomp > d.ncomp || len(seg) < 1+2*s.ncomp+3 {
		return s, ErrSyntax
	}

	for j := 0; j < s.ncomp; j++ {
		id := int(seg[1+2*j])
		if id < 1 || id > d.ncomp {
			return s, ErrSyntax
		}

		c := &d.comp[id-1]
		c.td = int(seg[2+2*j]) >> 4
		c.ta = int(seg[2+2*j]) & 15
		if c.td > 3 || c.ta > 3 {
			return s, ErrSyntax
		}

		s.comps[j] = id - 1
	}

	p := seg[1+2*s.ncomp:]
	s.ss, s.se = int(p[0]), int(p[1])
	s.ah, s.al = int(p[2])>>4, int(p[2])&15

	if s.ss > s.se || s.se > 63 {
		return s, ErrSyntax
	}

	if s.ss > 0 && s.ncomp != 1 {
		return s, ErrSyntax
	}

	return s, nil
}

// allocCoeffs sizes the coefficient buffer for the frame, reusing pooled
// storage when it is large enough.
func (d *decoder) allocCoeffs() {
	n := d.mbWidth * d.mbHeight * d.layout.coeffsPerMCU()
	if len(d.coeffs) == n {
		return
	}

	if cap(d.coeffs) >= n {
		d.coeffs = d.coeffs[:n]
		clear(d.coeffs)

		return
	}

	d.coeffs = make([]int32, n)
}

// transform applies rotation and flipping to the decoded RGBA image based on the EXIF orientation tag.
func transform(src *image.RGBA, orientation int) *image.RGBA {
	srcWidth, srcHeight := src.Rect.Dx(), src.Rect.Dy()

	dstWidth, dstHeight := srcWidth, srcHeight

	// Orientations 5-8 involve 90/270 degree rotations, swapping width and height.
	if orientation >= 5 {
		dstWidth, dstHeight = srcHeight, srcWidth
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstWidth, dstHeight))

	// Iterate over the source image dimensions (forward mapping).
	for sy := 0; sy < srcHeight; sy++ {
		for sx := 0; sx < srcWidth; sx++ {
			var dx, dy int

			// Map source coordinates (sx, sy) to destination coordinates (dx, dy).
			switch orientation {
			case 2: // Flip horizontal
				dx, dy = srcWidth-1-sx, sy
			case 3: // Rotate 180
				dx, dy = srcWidth-1-sx, srcHeight-1-sy
			case 4: // Flip vertical
				dx, dy = sx, srcHeight-1-sy
			case 5: // Transpose
				dx, dy = sy, sx
			case 6: // Rotate 90 CW
				dx, dy = srcHeight-1-sy, sx
			case 7: // Transverse
				dx, dy = srcHeight-1-sy, srcWidth-1-sx
			case 8: // Rotate 270 CW
				dx, dy = sy, srcWidth-1-sx
			default:
				return src
			}

			so := sy*src.Stride + sx*4
			do := dy*dst.Stride + dx*4

			copy(dst.Pix[do:do+4], src.Pix[so:so+4])
		}
	}

	return dst
}

// probe walks the markers of data up to the first frame header and returns
// its dimensions and component count.
func probe(data []byte) (width, height, ncomp int, ok bool) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return 0, 0, 0, false
	}

	pos := 2
	for pos+3 < len(data) {
		if data[pos] != 0xFF {
			return 0, 0, 0, false
		}

		marker := data[pos+1]
		if marker == 0xFF {
			pos++

			continue
		}

		if marker >= 0xD0 && marker <= 0xD7 {
			pos += 2

			continue
		}

		n := int(data[pos+2])<<8 | int(data[pos+3])
		if n < 2 || pos+2+n > len(data) {
			return 0, 0, 0, false
		}

		switch marker {
		case 0xC0, 0xC1, 0xC2:
			if n < 8 {
				return 0, 0, 0, false
			}

			seg := data[pos+4:]
			height = int(seg[1])<<8 | int(seg[2])
			width = int(seg[3])<<8 | int(seg[4])
			ncomp = int(seg[5])

			return width, height, ncomp, true
		case 0xDA, 0xD9:
			return 0, 0, 0, false
		}

		pos += 2 + n
	}

	return 0, 0, 0, false
}

// decode walks the markers of data. With headerOnly it stops at the first
// scan, or at the end of the data once a frame header was seen. Otherwise it
// decodes every scan and draws the image when EOI is reached.
func (d *decoder) decode(data []byte, headerOnly bool) error {
	d.data = data
	d.orientation = 1 // Default orientation (Top-Left)
	d.photometric = -1

	// Check for SOI (Start of Image) marker.
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return ErrNoJPEG
	}

	pos := 2

	for {
		if pos+1 >= len(data) {
			if headerOnly && d.sofSeen {
				return nil
			}

			return ErrTruncated
		}

		if data[pos] != 0xFF {
			return ErrSyntax
		}

		marker := data[pos+1]
		pos += 2

		if marker == 0xFF {
			// Fill byte: the second 0xFF may start the marker.
			pos--

			continue
		}

		if !segmentMarker(marker) {
			// EOI, and any other marker that is neither handled nor
			// skipped, ends the image.
			if !d.sofSeen {
				if unsupportedMarker(marker) {
					return ErrUnsupported
				}

				return ErrSyntax
			}

			if headerOnly {
				return nil
			}

			d.allocCoeffs()
			d.finish()

			return nil
		}

		seg, err := d.segment(pos)
		if err != nil {
			if headerOnly && d.sofSeen && errors.Is(err, ErrTruncated) {
				return nil
			}

			return err
		}

		next := pos + 2 + len(seg)

		switch {
		case marker == 0xC0, marker == 0xC1, marker == 0xC2:
			// SOF0, SOF1, SOF2
			err = d.decodeSOF(seg, marker)
		case marker == 0xC4:
			err = d.decodeDHT(seg)
		case marker == 0xDB:
			err = d.decodeDQT(seg)
		case marker == 0xDD:
			err = d.decodeDRI(seg)
		case marker == 0xE1:
			err = d.decodeAPP1(seg)
		case marker == 0xDA:
			if headerOnly {
				if !d.sofSeen {
					return ErrSyntax
				}

				return nil
			}

			var s scanHeader
			if s, err = d.decodeSOS(seg); err != nil {
				return err
			}

			d.allocCoeffs()
			next, err = d.decodeScan(&s, next)
		default:
			// JPG, DNL, COM, APPn and JPGn are skipped.
		}

		if err != nil {
			return err
		}

		pos = next
	}
}

// segmentMarker reports whether the decode loop handles or skips marker
// rather than ending the image at it.
func segmentMarker(marker byte) bool {
	switch marker {
	case 0xC0, 0xC1, 0xC2, 0xC4, 0xC8, 0xDA, 0xDB, 0xDC, 0xDD:
		return true
	}

	return marker >= 0xE0 && marker <= 0xFE
}

// unsupportedMarker reports whether marker belongs to a coding process this
// package does not decode: lossless, hierarchical and arithmetic-coded
// frames, DAC, DHP and EXP.
func unsupportedMarker(marker byte) bool {
	switch marker {
	case 0xC4, 0xC8:
		return false
	case 0xDE, 0xDF:
		return true
	}

	return marker >= 0xC3 && marker <= 0xCF
}
