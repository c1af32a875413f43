package engine

import (
	"io"

	"github.com/klauspost/compress/zlib"
)

// Filter type, as per the PNG spec.
const (
	ftNone    = 0
	ftSub     = 1
	ftUp      = 2
	ftAverage = 3
	ftPaeth   = 4
)

// interlacePass describes one pass of the Adam7 interlacing scheme.
type interlacePass struct {
	xFactor, yFactor, xOffset, yOffset int
}

var adam7Passes = [7]interlacePass{
	{8, 8, 0, 0},
	{8, 8, 4, 0},
	{4, 8, 0, 4},
	{4, 4, 2, 0},
	{2, 4, 0, 2},
	{2, 2, 1, 0},
	{1, 2, 0, 1},
}

// One full-frame pass for non-interlaced images.
var straightPass = [1]interlacePass{{1, 1, 0, 0}}

func passExtent(size, offset, factor int) int {
	n := size - offset
	if n <= 0 {
		return 0
	}
	return (n + factor - 1) / factor
}

func (d *Decoder) bitsPerPixel() int {
	switch d.colorType {
	case ctGreyscale, ctPaletted:
		return d.depth
	case ctGreyscaleAlpha:
		return 2 * d.depth
	case ctTrueColor:
		return 3 * d.depth
	case ctTrueColorAlpha:
		return 4 * d.depth
	}
	return 0
}

// WorkbufLen reports the scratch buffer size DecodeFrame requires for the
// configured image: two filtered rows at the source encoding. It is zero
// before DecodeImageConfig has succeeded.
func (d *Decoder) WorkbufLen() uint64 {
	if !d.configDone {
		return 0
	}
	rowSize := 1 + (d.bitsPerPixel()*d.width+7)/8
	return uint64(2 * rowSize)
}

func (d *Decoder) checkTarget(f PixelFormat) error {
	switch f {
	case FormatGrey8:
		if d.colorType != ctGreyscale || d.hasTRNS {
			return UnsupportedError("greyscale output for non-greyscale image")
		}
	case FormatIndexed8:
		if d.colorType != ctPaletted {
			return UnsupportedError("indexed output for non-paletted image")
		}
	case FormatRGBANonpremul:
		// Every source converts to RGBA.
	default:
		return UnsupportedError("output pixel format " + f.String())
	}
	return nil
}

// DecodeFrame decodes the pixel data into pb, converting scanlines to the
// buffer's pixel format. workbuf must be at least WorkbufLen() bytes and is
// used only for the duration of the call.
func (d *Decoder) DecodeFrame(pb *PixelBuffer, workbuf []byte) error {
	if !d.configDone {
		return FormatError("image config not decoded")
	}
	if d.stage != dsSeenIDAT {
		return FormatError("frame already decoded")
	}
	cfg := pb.Config()
	if int(cfg.Width) != d.width || int(cfg.Height) != d.height {
		return FormatError("pixel buffer dimensions mismatch")
	}
	if err := d.checkTarget(cfg.Format); err != nil {
		return err
	}
	if uint64(len(workbuf)) < d.WorkbufLen() {
		return UnsupportedError("work buffer too short")
	}

	if cfg.Format == FormatIndexed8 {
		copy(pb.Palette(), d.palette[:])
	}

	zr, err := zlib.NewReader(idatReader{d})
	if err != nil {
		return FormatError("invalid zlib stream: " + err.Error())
	}
	defer zr.Close()

	rowSize := 1 + (d.bitsPerPixel()*d.width+7)/8
	cr := workbuf[:rowSize]
	pr := workbuf[rowSize : 2*rowSize]
	fbpp := (d.bitsPerPixel() + 7) / 8

	passes := straightPass[:]
	if d.interlace == itAdam7 {
		passes = adam7Passes[:]
	}
	for _, p := range passes {
		pw := passExtent(d.width, p.xOffset, p.xFactor)
		ph := passExtent(d.height, p.yOffset, p.yFactor)
		if pw == 0 || ph == 0 {
			continue
		}
		prow := 1 + (d.bitsPerPixel()*pw+7)/8
		clear(pr[:prow])
		for y := 0; y < ph; y++ {
			if _, err := io.ReadFull(zr, cr[:prow]); err != nil {
				if err == io.EOF || err == io.ErrUnexpectedEOF {
					return FormatError("not enough pixel data")
				}
				return err
			}
			if err := unfilterRow(cr[:prow], pr[:prow], fbpp); err != nil {
				return err
			}
			d.writeRow(pb, cr[1:prow], p.yOffset+y*p.yFactor, p.xOffset, p.xFactor, pw)
			cr, pr = pr, cr
		}
	}

	// The compressed stream must end exactly with the last scanline.
	var tail [1]byte
	if n, err := zr.Read(tail[:]); n != 0 || err != io.EOF {
		return FormatError("too much pixel data")
	}

	return d.finish()
}

func unfilterRow(cr, pr []byte, bytesPerPixel int) error {
	cdat := cr[1:]
	pdat := pr[1:]
	switch cr[0] {
	case ftNone:
		// No-op.
	case ftSub:
		for i := bytesPerPixel; i < len(cdat); i++ {
			cdat[i] += cdat[i-bytesPerPixel]
		}
	case ftUp:
		for i, p := range pdat {
			cdat[i] += p
		}
	case ftAverage:
		// The first pixel has no pixel to the left of it.
		for i := 0; i < bytesPerPixel; i++ {
			cdat[i] += pdat[i] / 2
		}
		for i := bytesPerPixel; i < len(cdat); i++ {
			cdat[i] += uint8((int(cdat[i-bytesPerPixel]) + int(pdat[i])) / 2)
		}
	case ftPaeth:
		filterPaeth(cdat, pdat, bytesPerPixel)
	default:
		return FormatError("bad filter type")
	}
	return nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func filterPaeth(cdat, pdat []byte, bytesPerPixel int) {
	var a, b, c, pa, pb, pc int
	for i := 0; i < bytesPerPixel; i++ {
		a, c = 0, 0
		for j := i; j < len(cdat); j += bytesPerPixel {
			b = int(pdat[j])
			pa = b - c
			pb = a - c
			pc = abs(pa + pb)
			pa = abs(pa)
			pb = abs(pb)
			if pa <= pb && pa <= pc {
				// a is the nearest predictor.
			} else if pb <= pc {
				a = b
			} else {
				a = c
			}
			a += int(cdat[j])
			a &= 0xff
			cdat[j] = uint8(a)
			c = b
		}
	}
}

// greyDepthScale expands a sub-8-bit grey sample to 8 bits by bit
// replication.
func greyDepthScale(depth int) uint8 {
	switch depth {
	case 1:
		return 0xFF
	case 2:
		return 0x55
	default: // 4
		return 0x11
	}
}

// writeRow converts one unfiltered scanline into the pixel buffer. The
// scanline holds npix pixels that land at x = xOffset + i*xStep of output
// row y.
func (d *Decoder) writeRow(pb *PixelBuffer, cdat []byte, y, xOffset, xStep, npix int) {
	switch pb.cfg.Format {
	case FormatGrey8:
		d.writeRowGrey8(pb.buf, cdat, y, xOffset, xStep, npix)
	case FormatIndexed8:
		d.writeRowIndexed8(pb.buf, cdat, y, xOffset, xStep, npix)
	default:
		d.writeRowRGBA(pb.buf, cdat, y, xOffset, xStep, npix)
	}
}

func (d *Decoder) writeRowGrey8(dst, cdat []byte, y, xOffset, xStep, npix int) {
	base := y * d.width
	switch d.depth {
	case 8:
		for i := 0; i < npix; i++ {
			dst[base+xOffset+i*xStep] = cdat[i]
		}
	case 16:
		for i := 0; i < npix; i++ {
			dst[base+xOffset+i*xStep] = cdat[2*i]
		}
	default:
		scale := greyDepthScale(d.depth)
		mask := uint8(1<<uint(d.depth) - 1)
		bit := 0
		for i := 0; i < npix; i++ {
			v := (cdat[bit>>3] >> uint(8-d.depth-bit&7)) & mask
			dst[base+xOffset+i*xStep] = v * scale
			bit += d.depth
		}
	}
}

func (d *Decoder) writeRowIndexed8(dst, cdat []byte, y, xOffset, xStep, npix int) {
	base := y * d.width
	if d.depth == 8 {
		for i := 0; i < npix; i++ {
			dst[base+xOffset+i*xStep] = cdat[i]
		}
		return
	}
	mask := uint8(1<<uint(d.depth) - 1)
	bit := 0
	for i := 0; i < npix; i++ {
		dst[base+xOffset+i*xStep] = (cdat[bit>>3] >> uint(8-d.depth-bit&7)) & mask
		bit += d.depth
	}
}

func (d *Decoder) writeRowRGBA(dst, cdat []byte, y, xOffset, xStep, npix int) {
	put := func(i int, r, g, b, a uint8) {
		o := (y*d.width + xOffset + i*xStep) * 4
		dst[o+0] = r
		dst[o+1] = g
		dst[o+2] = b
		dst[o+3] = a
	}

	switch d.colorType {
	case ctGreyscale:
		tg := uint16(d.transparent[0])<<8 | uint16(d.transparent[1])
		switch d.depth {
		case 8:
			for i := 0; i < npix; i++ {
				v := cdat[i]
				a := uint8(0xFF)
				if d.hasTRNS && uint16(v) == tg {
					a = 0
				}
				put(i, v, v, v, a)
			}
		case 16:
			for i := 0; i < npix; i++ {
				raw := uint16(cdat[2*i])<<8 | uint16(cdat[2*i+1])
				v := cdat[2*i]
				a := uint8(0xFF)
				if d.hasTRNS && raw == tg {
					a = 0
				}
				put(i, v, v, v, a)
			}
		default:
			scale := greyDepthScale(d.depth)
			mask := uint8(1<<uint(d.depth) - 1)
			bit := 0
			for i := 0; i < npix; i++ {
				raw := (cdat[bit>>3] >> uint(8-d.depth-bit&7)) & mask
				bit += d.depth
				v := raw * scale
				a := uint8(0xFF)
				if d.hasTRNS && uint16(raw) == tg {
					a = 0
				}
				put(i, v, v, v, a)
			}
		}
	case ctTrueColor:
		if d.depth == 8 {
			tr, tg, tb := d.transparent[1], d.transparent[3], d.transparent[5]
			for i := 0; i < npix; i++ {
				r, g, b := cdat[3*i], cdat[3*i+1], cdat[3*i+2]
				a := uint8(0xFF)
				if d.hasTRNS && r == tr && g == tg && b == tb {
					a = 0
				}
				put(i, r, g, b, a)
			}
		} else {
			tr := uint16(d.transparent[0])<<8 | uint16(d.transparent[1])
			tg := uint16(d.transparent[2])<<8 | uint16(d.transparent[3])
			tb := uint16(d.transparent[4])<<8 | uint16(d.transparent[5])
			for i := 0; i < npix; i++ {
				r16 := uint16(cdat[6*i])<<8 | uint16(cdat[6*i+1])
				g16 := uint16(cdat[6*i+2])<<8 | uint16(cdat[6*i+3])
				b16 := uint16(cdat[6*i+4])<<8 | uint16(cdat[6*i+5])
				a := uint8(0xFF)
				if d.hasTRNS && r16 == tr && g16 == tg && b16 == tb {
					a = 0
				}
				put(i, cdat[6*i], cdat[6*i+2], cdat[6*i+4], a)
			}
		}
	case ctPaletted:
		mask := uint8(1<<uint(d.depth) - 1)
		bit := 0
		for i := 0; i < npix; i++ {
			var idx uint8
			if d.depth == 8 {
				idx = cdat[i]
			} else {
				idx = (cdat[bit>>3] >> uint(8-d.depth-bit&7)) & mask
				bit += d.depth
			}
			e := d.palette[4*int(idx):]
			put(i, e[2], e[1], e[0], e[3])
		}
	case ctGreyscaleAlpha:
		if d.depth == 8 {
			for i := 0; i < npix; i++ {
				v, a := cdat[2*i], cdat[2*i+1]
				put(i, v, v, v, a)
			}
		} else {
			for i := 0; i < npix; i++ {
				v, a := cdat[4*i], cdat[4*i+2]
				put(i, v, v, v, a)
			}
		}
	default: // ctTrueColorAlpha
		if d.depth == 8 {
			for i := 0; i < npix; i++ {
				put(i, cdat[4*i], cdat[4*i+1], cdat[4*i+2], cdat[4*i+3])
			}
		} else {
			for i := 0; i < npix; i++ {
				put(i, cdat[8*i], cdat[8*i+2], cdat[8*i+4], cdat[8*i+6])
			}
		}
	}
}
