package jpegdec

// Bitstream handling

// bitReader reads the entropy-coded segment of a scan.
//
// The cache holds up to 32 bits, left aligned; bits counts how many of them
// are valid. Loading stops at a marker (0xFF followed by a non-zero byte) and
// at the end of the data; from then on zero bytes are shifted in so trailing
// Huffman codes still decode.
type bitReader struct {
	data   []byte
	pos    int    // Next byte to load.
	cache  uint32 // Lookahead bits, most significant first.
	bits   uint   // Number of valid bits in cache.
	marker bool   // Loading stopped at a marker.
	starts [4]int // Start offsets of the bytes in cache, indexed by loaded&3.
	loaded uint   // Bytes shifted into cache since enter.
}

// enter resets the reader at an absolute offset into data.
func (r *bitReader) enter(data []byte, offset int) {
	r.data = data
	r.pos = offset
	r.cache = 0
	r.bits = 0
	r.marker = false
	r.loaded = 0
	r.restock()
}

// restock loads destuffed bytes until more than 24 bits are valid.
func (r *bitReader) restock() {
	for r.bits <= 24 {
		start := r.pos
		var b byte

		if !r.marker && r.pos < len(r.data) {
			b = r.data[r.pos]
			if b != 0xFF {
				r.pos++
			} else if r.pos+1 >= len(r.data) {
				// A lone 0xFF at the end of the data is data.
				r.pos++
			} else if r.data[r.pos+1] == 0x00 {
				// Stuffed 0xFF00.
				r.pos += 2
			} else {
				// Marker: leave it for the segment parser.
				r.marker = true
				b = 0
			}
		}

		r.starts[r.loaded&3] = start
		r.loaded++
		r.cache |= uint32(b) << (24 - r.bits)
		r.bits += 8
	}
}

// peek returns the next n bits (1 <= n <= 25) without consuming them.
func (r *bitReader) peek(n uint) uint32 {
	return r.cache >> (32 - n)
}

// skip consumes n bits (n <= 25).
func (r *bitReader) skip(n uint) {
	r.cache <<= n
	r.bits -= n
	r.restock()
}

// get1 reads a single bit.
func (r *bitReader) get1() bool {
	v := r.cache >> 31
	r.skip(1)

	return v == 1
}

// getn reads n bits as an unsigned integer.
func (r *bitReader) getn(n uint) int32 {
	if n == 0 {
		return 0
	}

	v := r.peek(n)
	r.skip(n)

	return int32(v)
}

// getCode decodes one Huffman symbol using the 16-bit lookahead.
func (r *bitReader) getCode(t *huffmanTable) byte {
	e := t.lookup[r.cache>>16]
	r.skip(uint(e & 0xFF))

	return byte(e >> 8)
}

// leave returns the offset of the first byte none of whose bits were
// consumed. The unconsumed bits of a partially read byte are fill bits.
func (r *bitReader) leave() int {
	k := r.bits >> 3
	if k == 0 {
		return r.pos
	}

	return r.starts[(r.loaded-k)&3]
}
