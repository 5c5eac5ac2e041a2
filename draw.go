package jpegdec

import (
	"image"
	"sync"
)

// layout identifies how the blocks of an MCU are arranged and drawn.
type layout int

const (
	layoutY layout = iota
	layoutYUV420
	layoutYUV422
	layoutYUV440
	layoutYUV444
	layoutRGB444
)

// drawFunc writes one converted MCU to dst. blk holds the MCU's samples in
// block order, (x0, y0) is its top-left pixel and w, h its visible size.
type drawFunc func(dst *image.RGBA, blk []int32, x0, y0, w, h int)

// layoutInfo describes an MCU layout.
type layoutInfo struct {
	name       string
	mcuW, mcuH int      // MCU size in pixels.
	h, v       int      // Luma blocks per MCU, horizontally and vertically.
	pattern    uint16   // Quantization selector per block, 2 bits each.
	draw       drawFunc // MCU painter.
}

var layouts = [...]layoutInfo{
	layoutY:      {"Y", 8, 8, 1, 1, 0x000C, drawY},
	layoutYUV420: {"YUV420", 16, 16, 2, 2, 0x3900, drawYUV420},
	layoutYUV422: {"YUV422", 16, 8, 2, 1, 0x0390, drawYUV422},
	layoutYUV440: {"YUV440", 8, 16, 1, 2, 0x1390, drawYUV440},
	layoutYUV444: {"YUV444", 8, 8, 1, 1, 0x00E4, drawYUV444},
	layoutRGB444: {"RGB444", 8, 8, 1, 1, 0x01E4, drawRGB444},
}

func (l layout) String() string {
	if l < 0 || int(l) >= len(layouts) {
		return "unknown"
	}

	return layouts[l].name
}

// coeffsPerMCU returns the number of coefficients stored per MCU.
func (l layout) coeffsPerMCU() int {
	if l == layoutY {
		return 64
	}

	info := &layouts[l]

	return 64*info.h*info.v + 128
}

// clip clamps an int32 value to the valid 8-bit pixel range [0, 255].
func clip(x int32) byte {
	if x < 0 {
		return 0
	}

	if x > 255 {
		return 255
	}

	return byte(x)
}

// putYUV converts one luma/chroma triple and stores it as an opaque pixel.
// y is already offset by 128, u and v are centered on zero.
func putYUV(p []byte, y, u, v int32) {
	y <<= 8
	p[0] = clip((y + 359*v) >> 8)
	p[1] = clip((y - 88*u - 183*v) >> 8)
	p[2] = clip((y + 454*u) >> 8)
	p[3] = 255
}

func drawY(dst *image.RGBA, blk []int32, x0, y0, w, h int) {
	for i := 0; i < h; i++ {
		p := dst.Pix[(y0+i)*dst.Stride+x0*4:]
		for k := 0; k < w; k++ {
			c := clip(blk[i*8+k] + 128)
			p[k*4], p[k*4+1], p[k*4+2], p[k*4+3] = c, c, c, 255
		}
	}
}

func drawYUV420(dst *image.RGBA, blk []int32, x0, y0, w, h int) {
	for i := 0; i < h; i++ {
		p := dst.Pix[(y0+i)*dst.Stride+x0*4:]
		for k := 0; k < w; k++ {
			y := blk[((i>>3)*2+(k>>3))*64+(i&7)*8+(k&7)] + 128
			c := (i>>1)*8 + k>>1
			putYUV(p[k*4:], y, blk[256+c], blk[320+c])
		}
	}
}

func drawYUV422(dst *image.RGBA, blk []int32, x0, y0, w, h int) {
	for i := 0; i < h; i++ {
		p := dst.Pix[(y0+i)*dst.Stride+x0*4:]
		for k := 0; k < w; k++ {
			y := blk[(k>>3)*64+i*8+(k&7)] + 128
			c := i*8 + k>>1
			putYUV(p[k*4:], y, blk[128+c], blk[192+c])
		}
	}
}

func drawYUV440(dst *image.RGBA, blk []int32, x0, y0, w, h int) {
	for i := 0; i < h; i++ {
		p := dst.Pix[(y0+i)*dst.Stride+x0*4:]
		for k := 0; k < w; k++ {
			y := blk[(i>>3)*64+(i&7)*8+k] + 128
			c := (i>>1)*8 + k
			putYUV(p[k*4:], y, blk[128+c], blk[192+c])
		}
	}
}

func drawYUV444(dst *image.RGBA, blk []int32, x0, y0, w, h int) {
	for i := 0; i < h; i++ {
		p := dst.Pix[(y0+i)*dst.Stride+x0*4:]
		for k := 0; k < w; k++ {
			c := i*8 + k
			putYUV(p[k*4:], blk[c]+128, blk[64+c], blk[128+c])
		}
	}
}

func drawRGB444(dst *image.RGBA, blk []int32, x0, y0, w, h int) {
	for i := 0; i < h; i++ {
		p := dst.Pix[(y0+i)*dst.Stride+x0*4:]
		for k := 0; k < w; k++ {
			c := i*8 + k
			p[k*4] = clip(blk[c] + 128)
			p[k*4+1] = clip(blk[64+c] + 128)
			p[k*4+2] = clip(blk[128+c] + 128)
			p[k*4+3] = 255
		}
	}
}

// finish runs the inverse DCT over the accumulated coefficients and paints
// every MCU into d.img. MCU rows are split into stripes when concurrency is
// enabled; stripes touch disjoint coefficients and pixels.
func (d *decoder) finish() {
	d.img = image.NewRGBA(image.Rect(0, 0, d.width, d.height))

	rows := d.mbHeight
	workers := min(d.concurrency, rows)
	if workers < 2 {
		d.finishRows(0, rows)

		return
	}

	rowsPerWorker := (rows + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < rows; start += rowsPerWorker {
		end := min(start+rowsPerWorker, rows)

		wg.Add(1)
		go d.finishStripe(start, end, &wg)
	}

	wg.Wait()
}

func (d *decoder) finishStripe(start, end int, wg *sync.WaitGroup) {
	defer wg.Done()

	d.finishRows(start, end)
}

// finishRows converts and draws the MCU rows [start, end).
func (d *decoder) finishRows(start, end int) {
	info := &layouts[d.layout]
	cpmb := d.layout.coeffsPerMCU()
	rowLen := d.mbWidth * cpmb
	sel := [3]int{d.comp[0].tq, d.comp[1].tq, d.comp[2].tq}

	for mby := start; mby < end; mby++ {
		row := d.coeffs[mby*rowLen : (mby+1)*rowLen]
		convertBlocks(row, info.pattern, &d.qt, &sel)

		y0 := mby * info.mcuH
		h := min(info.mcuH, d.height-y0)

		for mbx := 0; mbx < d.mbWidth; mbx++ {
			x0 := mbx * info.mcuW
			w := min(info.mcuW, d.width-x0)

			info.draw(d.img, row[mbx*cpmb:(mbx+1)*cpmb], x0, y0, w, h)
		}
	}
}
