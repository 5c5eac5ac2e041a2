package jpegdec

// huffmanTable maps every 16-bit lookahead window directly to the symbol of
// the code that prefixes it. Entries are symbol<<8 | codeLength; the zero
// value decodes everything as symbol 0 without consuming bits.
type huffmanTable struct {
	lookup [1 << 16]uint16
}

// build fills the table from a DHT code-length histogram (counts[i] codes of
// length i+1) and the symbols in canonical order.
func (t *huffmanTable) build(counts *[16]byte, symbols []byte) error {
	pos := 0
	k := 0

	for n := 1; n <= 16; n++ {
		span := 1 << (16 - n)

		for i := 0; i < int(counts[n-1]); i++ {
			if pos+span > len(t.lookup) || k >= len(symbols) {
				return ErrHuffmanOverflow
			}

			e := uint16(symbols[k])<<8 | uint16(n)
			for j := pos; j < pos+span; j++ {
				t.lookup[j] = e
			}

			pos += span
			k++
		}
	}

	clear(t.lookup[pos:])

	return nil
}
