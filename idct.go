package jpegdec

// folding maps the zig-zag position of a coefficient to its slot in the
// block layout expected by partialIDCT.
var folding = [64]uint8{
	56, 57, 8, 40, 9, 58, 59, 10, 41, 0, 48, 1, 42, 11, 60, 61,
	12, 43, 2, 49, 16, 32, 17, 50, 3, 44, 13, 62, 63, 14, 45, 4,
	51, 18, 33, 24, 25, 34, 19, 52, 5, 46, 15, 47, 6, 53, 20, 35,
	26, 27, 36, 21, 54, 7, 55, 22, 37, 28, 29, 38, 23, 39, 30, 31,
}

// Fixed-point cosines, cos(k*pi/16) scaled by 1<<fix and truncated.
const (
	fix = 8

	c0 = 256
	c1 = 251
	c2 = 236
	c3 = 212
	c4 = 181
	c5 = 142
	c6 = 97
	c7 = 49

	c7pc1 = c7 + c1
	c5pc3 = c5 + c3
	c7mc1 = c7 - c1
	c5mc3 = c5 - c3
	c0s   = c0 >> 1
	c6pc2 = c6 + c2
	c6mc2 = c6 - c2
)

// unswizzleTransposeSwizzle reorders the output of the first pass into the
// input layout of the second pass: out[k] = in[uts[k]].
var uts = [64]uint8{
	3, 11, 27, 19, 51, 59, 43, 35, 1, 9, 25, 17, 49, 57, 41, 33,
	5, 13, 29, 21, 53, 61, 45, 37, 7, 15, 31, 23, 55, 63, 47, 39,
	6, 14, 30, 22, 54, 62, 46, 38, 2, 10, 26, 18, 50, 58, 42, 34,
	4, 12, 28, 20, 52, 60, 44, 36, 0, 8, 24, 16, 48, 56, 40, 32,
}

// unswizzleTranspose turns the output of the second pass into row-major
// pixel order: out[k] = in[ut[k]].
var ut = [64]uint8{
	0, 8, 24, 16, 48, 56, 40, 32, 1, 9, 25, 17, 49, 57, 41, 33,
	2, 10, 26, 18, 50, 58, 42, 34, 3, 11, 27, 19, 51, 59, 43, 35,
	4, 12, 28, 20, 52, 60, 44, 36, 5, 13, 29, 21, 53, 61, 45, 37,
	6, 14, 30, 22, 54, 62, 46, 38, 7, 15, 31, 23, 55, 63, 47, 39,
}

// partialIDCT runs the 8-point butterfly on the eight columns of in.
func partialIDCT(out, in *[64]int32) {
	for i := 0; i < 8; i++ {
		x3 := in[i]
		x1 := in[i+8]
		x5 := in[i+16]
		x7 := in[i+24]
		x6 := in[i+32]
		x2 := in[i+40]
		x4 := in[i+48]
		x0 := in[i+56]

		// Odd part.
		q17 := c1 * (x1 + x7)
		q35 := c3 * (x3 + x5)
		r3 := c7pc1*x1 - q17
		d3 := c5pc3*x3 - q35
		r0 := c7mc1*x7 + q17
		d0 := c5mc3*x5 + q35
		b0 := r0 + d0
		d2 := r3 + d3
		d1 := r0 - d0
		b3 := r3 - d3
		b1 := c4 * ((d1 + d2) >> fix)
		b2 := c4 * ((d1 - d2) >> fix)

		// Even part.
		q26 := c2 * (x2 + x6)
		p04 := c4*(x0+x4) + c0s
		n04 := c4*(x0-x4) + c0s
		p26 := c6mc2*x6 + q26
		n62 := c6pc2*x2 - q26
		a0 := p04 + p26
		a1 := n04 + n62
		a3 := p04 - p26
		a2 := n04 - n62

		out[i] = (a0 + b0) >> (fix + 1)
		out[i+8] = (a1 + b1) >> (fix + 1)
		out[i+16] = (a3 + b3) >> (fix + 1)
		out[i+24] = (a2 + b2) >> (fix + 1)
		out[i+32] = (a0 - b0) >> (fix + 1)
		out[i+40] = (a1 - b1) >> (fix + 1)
		out[i+48] = (a3 - b3) >> (fix + 1)
		out[i+56] = (a2 - b2) >> (fix + 1)
	}
}

// convertBlock dequantizes a block and replaces it with its inverse DCT in
// row-major order. Samples are centered on zero and not clamped.
func convertBlock(blk *[64]int32, qt *[64]int32) {
	var t0, t1 [64]int32

	for i := range t0 {
		t0[i] = blk[i] * qt[i]
	}

	partialIDCT(&t1, &t0)
	for k := range t0 {
		t0[k] = t1[uts[k]]
	}

	partialIDCT(&t1, &t0)
	for k := range blk {
		blk[k] = t1[ut[k]]
	}
}

// convertBlocks runs convertBlock over consecutive blocks. pattern holds a
// 2-bit component index per block, low bits first; a value of 3 restarts the
// pattern. sel maps component index to quantization table.
func convertBlocks(coeffs []int32, pattern uint16, qt *[4][64]int32, sel *[3]int) {
	cur := pattern
	for off := 0; off+64 <= len(coeffs); off += 64 {
		if cur&3 == 3 {
			cur = pattern
		}

		convertBlock((*[64]int32)(coeffs[off:off+64]), &qt[sel[cur&3]])
		cur >>= 2
	}
}
