package jpegdec

// scanHeader holds the parameters of one SOS segment.
type scanHeader struct {
	comps  [3]int // Frame component indices, in scan order.
	ncomp  int    // Number of components in the scan.
	ss, se int    // Spectral selection, zig-zag positions.
	ah, al int    // Successive approximation bit positions.
}

// makeCoeff decodes the magnitude category cat and its cat extra bits into a
// signed coefficient.
func makeCoeff(cat uint, code int32) int32 {
	if cat == 0 {
		return 0
	}

	if code&(1<<(cat-1)) != 0 {
		return code
	}

	return code + 1 - (1 << cat)
}

// Entropy Decoding

// decodeBlock decodes the part of one block that scan s carries.
func (d *decoder) decodeBlock(blk *[64]int32, c *component, s *scanHeader) {
	br := &d.br

	if s.ah == 0 {
		if s.ss == 0 {
			cat := uint(br.getCode(d.huff[c.td]))
			if cat > 16 {
				d.panic(ErrSyntax)
			}

			c.dcPred += makeCoeff(cat, br.getn(cat))
			blk[folding[0]] = c.dcPred << s.al

			if s.se > 0 {
				d.decodeAC(blk, c, 1, s.se, s.al)
			}

			return
		}

		d.decodeAC(blk, c, s.ss, s.se, s.al)

		return
	}

	if s.ss == 0 {
		if br.get1() {
			blk[folding[0]] |= 1 << s.al
		}

		return
	}

	d.refineAC(blk, c, s.ss, s.se, s.al)
}

// decodeAC decodes the first pass over coefficients start..end. An EOB run
// code ends the block and, in progressive frames, sets the number of
// following blocks to skip. Sequential frames have no EOB runs: any such
// code is a plain EOB.
func (d *decoder) decodeAC(blk *[64]int32, c *component, start, end, al int) {
	if d.eobrun > 0 {
		d.eobrun--

		return
	}

	br := &d.br
	t := d.huff[4+c.ta]

	for i := start; i <= end; i++ {
		rc := br.getCode(t)
		run := int(rc >> 4)
		cat := uint(rc & 15)

		switch {
		case cat != 0:
			i += run
			if i > end {
				d.panic(ErrSyntax)
			}

			blk[folding[i]] = makeCoeff(cat, br.getn(cat)) << al
		case run == 15:
			i += 15
		default:
			if d.progressive {
				d.eobrun = (1 << run) - 1 + int(br.getn(uint(run)))
			}

			return
		}
	}
}

// refineAC adds one bit of precision to coefficients start..end. Coefficients
// that are already non-zero receive a correction bit; zero coefficients may
// become significant with magnitude 1<<al.
func (d *decoder) refineAC(blk *[64]int32, c *component, start, end, al int) {
	br := &d.br
	t := d.huff[4+c.ta]
	p1 := int32(1) << al
	m1 := -p1
	i := start

	if d.eobrun <= 0 {
	block:
		for i <= end {
			rc := br.getCode(t)
			run := int(rc >> 4)
			cat := rc & 15

			var val int32
			if cat != 0 {
				if br.get1() {
					val = p1
				} else {
					val = m1
				}
			} else if run != 15 {
				d.eobrun = (1 << run) + int(br.getn(uint(run)))

				break block
			}

			for i <= end {
				z := folding[i]
				if blk[z] != 0 {
					d.refineBit(&blk[z], p1, m1)
				} else {
					if run == 0 {
						if val != 0 {
							blk[z] = val
						}

						i++

						break
					}

					run--
				}

				i++
			}
		}
	}

	if d.eobrun > 0 {
		for ; i <= end; i++ {
			z := folding[i]
			if blk[z] != 0 {
				d.refineBit(&blk[z], p1, m1)
			}
		}

		d.eobrun--
	}
}

// refineBit reads a correction bit for a non-zero coefficient.
func (d *decoder) refineBit(coef *int32, p1, m1 int32) {
	if !d.br.get1() || *coef&p1 != 0 {
		return
	}

	if *coef >= 0 {
		*coef += p1
	} else {
		*coef += m1
	}
}

// decodeScan decodes the entropy-coded segment that starts at offset and
// returns the offset of the marker that follows it.
// Handles panics from the hot path.
func (d *decoder) decodeScan(s *scanHeader, offset int) (next int, err error) {
	defer func() {
		if r := recover(); r != nil {
			if de, ok := r.(errDecode); ok {
				err = de.error
			} else {
				panic(r)
			}
		}
	}()

	for k := range d.comp {
		d.comp[k].dcPred = 0
	}

	d.eobrun = 0
	d.br.enter(d.data, offset)

	cpmb := d.layout.coeffsPerMCU()
	todo := d.restartInterval

	if s.ncomp == 1 {
		// Non-interleaved: the component's own block grid, one block per unit.
		c := &d.comp[s.comps[0]]
		total := c.blocksW * c.blocksH
		n := 0

		for by := 0; by < c.blocksH; by++ {
			for bx := 0; bx < c.blocksW; bx++ {
				mb := (by/c.v)*d.mbWidth + bx/c.h
				sub := (by%c.v)*c.h + bx%c.h
				at := mb*cpmb + c.offset + sub*64

				d.decodeBlock((*[64]int32)(d.coeffs[at:at+64]), c, s)

				n++
				d.restart(&todo, total-n)
			}
		}
	} else {
		total := d.mbWidth * d.mbHeight

		for mb := 0; mb < total; mb++ {
			base := mb * cpmb

			for j := 0; j < s.ncomp; j++ {
				c := &d.comp[s.comps[j]]

				for sub := 0; sub < c.h*c.v; sub++ {
					at := base + c.offset + sub*64
					d.decodeBlock((*[64]int32)(d.coeffs[at:at+64]), c, s)
				}
			}

			d.restart(&todo, total-mb-1)
		}
	}

	return d.nextMarker(d.br.leave()), nil
}

// restart is called after every restart unit; left is the number of units
// remaining in the scan. When the interval expires it expects an RSTn marker,
// resets the predictors and re-enters the bitstream after the marker.
func (d *decoder) restart(todo *int, left int) {
	if d.restartInterval == 0 || left == 0 {
		return
	}

	*todo--
	if *todo > 0 {
		return
	}

	q := d.br.leave()
	for q+1 < len(d.data) && d.data[q] == 0xFF && d.data[q+1] == 0xFF {
		q++
	}

	if q+1 >= len(d.data) || d.data[q] != 0xFF || d.data[q+1]&0xF8 != 0xD0 {
		d.panic(ErrRestartMarker)
	}

	*todo = d.restartInterval
	for k := range d.comp {
		d.comp[k].dcPred = 0
	}

	d.eobrun = 0
	d.br.enter(d.data, q+2)
}

// nextMarker returns the offset of the first marker at or after q, skipping
// stuffed bytes. It returns len(d.data) if there is none.
func (d *decoder) nextMarker(q int) int {
	for ; q+1 < len(d.data); q++ {
		if d.data[q] == 0xFF && d.data[q+1] != 0x00 {
			return q
		}
	}

	return len(d.data)
}
