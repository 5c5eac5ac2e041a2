package jpegdec

// EXIF tag constants
const (
	tagPhotometricInterpretation = 0x0106
	tagOrientation               = 0x0112
)

// Photometric interpretation values.
const (
	photometricWhiteIsZero = 0
	photometricBlackIsZero = 1
	photometricRGB         = 2
	photometricYCbCr       = 6
)

// EXIF data type constants. Codes above typeDoubleFloat are invalid.
const (
	typeUnsignedByte  = 1
	typeUnsignedShort = 3
	typeUnsignedLong  = 4
	typeUndefined     = 7
	typeDoubleFloat   = 12
)

// exifReader wraps the TIFF data of an Exif block with bounds-checked reads
// in the block's byte order.
type exifReader struct {
	data         []byte
	littleEndian bool
}

func (r *exifReader) uint16(offset int) uint16 {
	if offset < 0 || offset+1 >= len(r.data) {
		return 0
	}
	if r.littleEndian {
		return uint16(r.data[offset]) | (uint16(r.data[offset+1]) << 8)
	}
	return (uint16(r.data[offset]) << 8) | uint16(r.data[offset+1])
}

func (r *exifReader) uint32(offset int) uint32 {
	if offset < 0 || offset+3 >= len(r.data) {
		return 0
	}
	if r.littleEndian {
		return uint32(r.data[offset]) | (uint32(r.data[offset+1]) << 8) |
			(uint32(r.data[offset+2]) << 16) | (uint32(r.data[offset+3]) << 24)
	}
	return (uint32(r.data[offset]) << 24) | (uint32(r.data[offset+1]) << 16) |
		(uint32(r.data[offset+2]) << 8) | uint32(r.data[offset+3])
}

// scalar returns the first value of an integer field whose data fits in the
// entry itself.
func (r *exifReader) scalar(entry int, format uint16) (uint32, bool) {
	switch format {
	case typeUnsignedByte, typeUndefined:
		if entry+8 >= len(r.data) {
			return 0, false
		}
		return uint32(r.data[entry+8]), true
	case typeUnsignedShort:
		return uint32(r.uint16(entry + 8)), true
	case typeUnsignedLong:
		return r.uint32(entry + 8), true
	}

	return 0, false
}

// exifInfo holds the IFD0 fields the decoder acts on.
type exifInfo struct {
	photometric int // -1 when absent.
	orientation int // 0 when absent.
}

// parseExif reads IFD0 of the TIFF structure in data (the APP1 payload after
// the "Exif\0\0" signature). A damaged structure ends the walk with whatever
// was found so far; a field with an unknown format code is an error.
func parseExif(data []byte) (exifInfo, error) {
	info := exifInfo{photometric: -1}

	if len(data) < 8 {
		return info, nil
	}

	reader := &exifReader{data: data}

	// Check byte order
	if data[0] == 0x49 && data[1] == 0x49 {
		reader.littleEndian = true // Intel (little-endian)
	} else if data[0] == 0x4D && data[1] == 0x4D {
		reader.littleEndian = false // Motorola (big-endian)
	} else {
		return info, nil
	}

	if reader.uint16(2) != 42 {
		return info, nil
	}

	ifdOffset := int(reader.uint32(4))
	if ifdOffset < 8 || ifdOffset+2 > len(data) {
		return info, nil
	}

	numEntries := int(reader.uint16(ifdOffset))
	for i := 0; i < numEntries; i++ {
		entry := ifdOffset + 2 + i*12
		if entry+12 > len(data) {
			break
		}

		tag := reader.uint16(entry)
		format := reader.uint16(entry + 2)
		if format > typeDoubleFloat {
			return info, ErrExifFormat
		}

		switch tag {
		case tagPhotometricInterpretation:
			if v, ok := reader.scalar(entry, format); ok {
				info.photometric = int(v)
			}
		case tagOrientation:
			if v, ok := reader.scalar(entry, format); ok && v >= 1 && v <= 8 {
				info.orientation = int(v)
			}
		}
	}

	return info, nil
}

// checkPhotometric reconciles a photometric interpretation tag with the
// frame layout. RGB upgrades 4:4:4 frames to RGB planes; a 4:4:4 frame
// accepts no other value.
func checkPhotometric(l layout, photometric int) (layout, error) {
	gray := l == layoutY

	if l == layoutYUV444 && photometric != photometricRGB {
		return l, ErrExifPhotometric
	}

	switch photometric {
	case photometricRGB:
		if l != layoutYUV444 && l != layoutRGB444 {
			return l, ErrExifPhotometric
		}
		return layoutRGB444, nil
	case photometricWhiteIsZero, photometricBlackIsZero:
		if !gray {
			return l, ErrExifPhotometric
		}
	case photometricYCbCr:
		if gray {
			return l, ErrExifPhotometric
		}
	}

	return l, nil
}
