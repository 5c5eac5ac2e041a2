package jpegdec

import (
	"encoding/binary"
	"math"
)

// zigzag maps a zig-zag index to its natural (row-major) position.
var zigzag = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10, 17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34, 27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36, 29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46, 53, 60, 61, 54, 47, 55, 62, 63,
}

// bitWriter accumulates an entropy-coded segment with 0xFF stuffing.
type bitWriter struct {
	out []byte
	acc uint32
	n   uint
}

func (w *bitWriter) put(v uint32, n uint) {
	for i := int(n) - 1; i >= 0; i-- {
		w.acc = w.acc<<1 | (v>>uint(i))&1
		w.n++

		if w.n == 8 {
			b := byte(w.acc)
			w.out = append(w.out, b)
			if b == 0xFF {
				w.out = append(w.out, 0x00)
			}

			w.acc, w.n = 0, 0
		}
	}
}

// flush pads the last byte with 1 bits.
func (w *bitWriter) flush() {
	if w.n > 0 {
		pad := 8 - w.n
		w.put(1<<pad-1, pad)
	}
}

// testEncoder tables: every DC category is a 4-bit code equal to the
// category, every AC symbol an 8-bit code equal to its index in acSymbols.
var acSymbols = func() []byte {
	s := []byte{0x00, 0xF0}
	for r := 0; r < 16; r++ {
		for c := 1; c <= 10; c++ {
			s = append(s, byte(r<<4|c))
		}
	}

	return s
}()

var acCodes = func() map[byte]uint32 {
	m := make(map[byte]uint32, len(acSymbols))
	for i, s := range acSymbols {
		m[s] = uint32(i)
	}

	return m
}()

// encodeOptions controls the synthetic baseline encoder.
type encodeOptions struct {
	h, v     int    // Luma sampling factors of color images.
	q        int    // Flat quantizer.
	restart  int    // Restart interval in MCUs, 0 for none.
	dqt16    bool   // Write a 16-bit quantization table.
	exif     []byte // TIFF payload of an Exif APP1 segment.
	lateExif bool   // Place the Exif segment after the frame header.
}

func category(v int) uint {
	if v < 0 {
		v = -v
	}

	var c uint
	for v != 0 {
		c++
		v >>= 1
	}

	return c
}

func magnitude(v int, c uint) uint32 {
	if v < 0 {
		return uint32(v + 1<<c - 1)
	}

	return uint32(v)
}

// fdct computes the quantized zig-zag coefficients of an 8x8 block of
// samples in [0, 255].
func fdct(px *[64]float64, q int) [64]int {
	var out [64]int

	for k := 0; k < 64; k++ {
		u, v := zigzag[k]%8, zigzag[k]/8

		cu, cv := 1.0, 1.0
		if u == 0 {
			cu = 1 / math.Sqrt2
		}

		if v == 0 {
			cv = 1 / math.Sqrt2
		}

		var sum float64
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				sum += (px[y*8+x] - 128) *
					math.Cos(float64(2*x+1)*float64(u)*math.Pi/16) *
					math.Cos(float64(2*y+1)*float64(v)*math.Pi/16)
			}
		}

		out[k] = int(math.Round(cu * cv / 4 * sum / float64(q)))
	}

	return out
}

func appendSegment(dst []byte, marker byte, body []byte) []byte {
	n := len(body) + 2
	dst = append(dst, 0xFF, marker, byte(n>>8), byte(n))

	return append(dst, body...)
}

// encodeTest writes a baseline JPEG of one or three 8-bit planes of size
// w x h. Chroma planes are box-filtered to the luma sampling factors.
func encodeTest(planes [][]byte, w, h int, o encodeOptions) []byte {
	n := len(planes)
	if o.q == 0 {
		o.q = 2
	}

	samp := [][2]int{{1, 1}, {1, 1}, {1, 1}}
	if n == 3 && o.h > 0 {
		samp[0] = [2]int{o.h, o.v}
	}

	mw, mh := 8*samp[0][0], 8*samp[0][1]
	mbw, mbh := (w+mw-1)/mw, (h+mh-1)/mh

	out := []byte{0xFF, 0xD8}

	app1 := func() {
		if o.exif != nil {
			out = appendSegment(out, 0xE1, append([]byte("Exif\x00\x00"), o.exif...))
		}
	}

	if !o.lateExif {
		app1()
	}

	if o.dqt16 {
		body := []byte{0x10}
		for i := 0; i < 64; i++ {
			body = append(body, byte(o.q>>8), byte(o.q))
		}

		out = appendSegment(out, 0xDB, body)
	} else {
		body := []byte{0x00}
		for i := 0; i < 64; i++ {
			body = append(body, byte(o.q))
		}

		out = appendSegment(out, 0xDB, body)
	}

	sof := []byte{8, byte(h >> 8), byte(h), byte(w >> 8), byte(w), byte(n)}
	for i := 0; i < n; i++ {
		sof = append(sof, byte(i+1), byte(samp[i][0]<<4|samp[i][1]), 0)
	}

	out = appendSegment(out, 0xC0, sof)

	if o.lateExif {
		app1()
	}

	dht := []byte{0x00, 0, 0, 0, 12, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	dht = append(dht, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11)
	dht = append(dht, 0x10, 0, 0, 0, 0, 0, 0, 0, byte(len(acSymbols)), 0, 0, 0, 0, 0, 0, 0, 0)
	dht = append(dht, acSymbols...)
	out = appendSegment(out, 0xC4, dht)

	if o.restart > 0 {
		out = appendSegment(out, 0xDD, []byte{byte(o.restart >> 8), byte(o.restart)})
	}

	sos := []byte{byte(n)}
	for i := 0; i < n; i++ {
		sos = append(sos, byte(i+1), 0x00)
	}

	sos = append(sos, 0, 63, 0)
	out = appendSegment(out, 0xDA, sos)

	sample := func(ci, x, y int) float64 {
		sx, sy := samp[0][0]/samp[ci][0], samp[0][1]/samp[ci][1]

		var total int
		for dy := 0; dy < sy; dy++ {
			for dx := 0; dx < sx; dx++ {
				xx := min(x*sx+dx, w-1)
				yy := min(y*sy+dy, h-1)
				total += int(planes[ci][yy*w+xx])
			}
		}

		return float64(total) / float64(sx*sy)
	}

	var (
		bw      bitWriter
		pred    [3]int
		count   int
		rstNext int
		px      [64]float64
	)

	for my := 0; my < mbh; my++ {
		for mx := 0; mx < mbw; mx++ {
			if o.restart > 0 && count == o.restart {
				bw.flush()
				bw.out = append(bw.out, 0xFF, byte(0xD0+rstNext&7))
				rstNext++
				count = 0
				pred = [3]int{}
			}

			count++

			for ci := 0; ci < n; ci++ {
				ch, cv := samp[ci][0], samp[ci][1]
				for by := 0; by < cv; by++ {
					for bx := 0; bx < ch; bx++ {
						for y := 0; y < 8; y++ {
							for x := 0; x < 8; x++ {
								px[y*8+x] = sample(ci, (mx*ch+bx)*8+x, (my*cv+by)*8+y)
							}
						}

						qz := fdct(&px, o.q)

						diff := qz[0] - pred[ci]
						pred[ci] = qz[0]

						c := category(diff)
						bw.put(uint32(c), 4)
						bw.put(magnitude(diff, c), c)

						run := 0
						for k := 1; k < 64; k++ {
							if qz[k] == 0 {
								run++

								continue
							}

							for run > 15 {
								bw.put(acCodes[0xF0], 8)
								run -= 16
							}

							c := category(qz[k])
							bw.put(acCodes[byte(run<<4)|byte(c)], 8)
							bw.put(magnitude(qz[k], c), c)
							run = 0
						}

						if run > 0 {
							bw.put(acCodes[0x00], 8)
						}
					}
				}
			}
		}
	}

	bw.flush()
	out = append(out, bw.out...)

	return append(out, 0xFF, 0xD9)
}

// testPlanes returns n smooth planes of size w x h.
func testPlanes(n, w, h int) [][]byte {
	planes := make([][]byte, n)
	for ci := range planes {
		p := make([]byte, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := 128 + 100*math.Sin(float64(x)*0.4+float64(ci))*math.Cos(float64(y)*0.3)
				p[y*w+x] = byte(v)
			}
		}

		planes[ci] = p
	}

	return planes
}

// exifEntry is one IFD0 field with its value stored inline.
type exifEntry struct {
	tag, format uint16
	count       uint32
	value       uint32
}

// buildExif returns a TIFF structure holding a single IFD with entries.
func buildExif(order binary.ByteOrder, entries ...exifEntry) []byte {
	buf := make([]byte, 8+2+12*len(entries)+4)
	if order == binary.LittleEndian {
		copy(buf, "II")
	} else {
		copy(buf, "MM")
	}

	order.PutUint16(buf[2:], 42)
	order.PutUint32(buf[4:], 8)
	order.PutUint16(buf[8:], uint16(len(entries)))

	for i, e := range entries {
		p := buf[10+12*i:]
		order.PutUint16(p[0:], e.tag)
		order.PutUint16(p[2:], e.format)
		order.PutUint32(p[4:], e.count)

		switch e.format {
		case typeUnsignedShort:
			order.PutUint16(p[8:], uint16(e.value))
		case typeUnsignedByte, typeUndefined:
			p[8] = byte(e.value)
		default:
			order.PutUint32(p[8:], e.value)
		}
	}

	return buf
}

// orientationExif is a little-endian Exif block holding only an orientation.
func orientationExif(orientation int) []byte {
	return buildExif(binary.LittleEndian, exifEntry{tagOrientation, typeUnsignedShort, 1, uint32(orientation)})
}
