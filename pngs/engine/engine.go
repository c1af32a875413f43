// Package engine implements a streaming PNG decoder that fills a
// caller-provided pixel buffer in one of several target pixel formats.
//
// The decoder is used in two steps: DecodeImageConfig walks the container
// up to the start of the pixel data and reports the image's geometry and
// native pixel format, then DecodeFrame inflates, unfilters and converts
// the pixel data into a PixelBuffer whose format the caller has chosen.
// A decoder handles exactly one image; all of its state is local to one
// decode call chain.
package engine

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

const pngHeader = "\x89PNG\r\n\x1a\n"

// Color type, as per the PNG spec.
const (
	ctGreyscale      = 0
	ctTrueColor      = 2
	ctPaletted       = 3
	ctGreyscaleAlpha = 4
	ctTrueColorAlpha = 6
)

// Interlace type.
const (
	itNone  = 0
	itAdam7 = 1
)

// Decoding stage.
// The PNG specification says that the IHDR, PLTE (if present), tRNS (if
// present), IDAT and IEND chunks must appear in that order. There may be
// multiple IDAT chunks, and IDAT chunks must be sequential.
// https://www.w3.org/TR/PNG/#5ChunkOrdering
const (
	dsStart = iota
	dsSeenIHDR
	dsSeenPLTE
	dsSeentRNS
	dsSeenIDAT
	dsSeenIEND
)

// Limits are decode guard rails applied before any pixel memory is sized.
type Limits struct {
	// MaxPixels bounds width*height of an accepted image.
	MaxPixels uint64
}

// DefaultLimits accepts images up to 256 megapixels.
var DefaultLimits = Limits{MaxPixels: 1 << 28}

// Decoder decodes a single PNG image from an io.Reader.
type Decoder struct {
	r      io.Reader
	limits Limits
	crc    hash.Hash32

	width, height int
	depth         int
	colorType     int
	interlace     int

	palette      [PaletteBytes]byte // BGRA, non-premultiplied
	paletteCount int
	hasTRNS      bool
	transparent  [6]byte

	stage      int
	idatLength uint32
	configDone bool
	tmp        [3 * 256]byte
}

// NewDecoder returns a decoder reading one PNG image from r.
// It fails only for an unusable configuration, before any input is read.
func NewDecoder(r io.Reader, limits Limits) (*Decoder, error) {
	if r == nil {
		return nil, UnsupportedError("nil input reader")
	}
	if limits.MaxPixels == 0 {
		return nil, UnsupportedError("zero MaxPixels limit")
	}
	return &Decoder{r: r, limits: limits, crc: crc32.NewIEEE()}, nil
}

// DecodeImageConfig consumes the container up to the first IDAT chunk and
// returns the image's geometry and native pixel format. It must be called
// exactly once, before DecodeFrame.
func (d *Decoder) DecodeImageConfig() (ImageConfig, error) {
	if d.configDone {
		return ImageConfig{}, FormatError("image config already decoded")
	}
	if err := d.checkHeader(); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return ImageConfig{}, err
	}
	for d.stage != dsSeenIDAT {
		if err := d.parseChunk(); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return ImageConfig{}, err
		}
	}
	if uint64(d.width)*uint64(d.height) > d.limits.MaxPixels {
		return ImageConfig{}, UnsupportedError("image exceeds pixel limit")
	}
	d.configDone = true
	return ImageConfig{
		Width:  uint32(d.width),
		Height: uint32(d.height),
		Format: d.nativeFormat(),
	}, nil
}

func (d *Decoder) nativeFormat() PixelFormat {
	switch d.colorType {
	case ctGreyscale:
		if d.hasTRNS {
			// Transparency survives only through the RGBA path.
			return FormatRGBANonpremul
		}
		if d.depth == 16 {
			return FormatGrey16BE
		}
		return FormatGrey8
	case ctPaletted:
		return FormatIndexed8
	default:
		return FormatRGBANonpremul
	}
}

func (d *Decoder) checkHeader() error {
	if _, err := io.ReadFull(d.r, d.tmp[:len(pngHeader)]); err != nil {
		return err
	}
	if string(d.tmp[:len(pngHeader)]) != pngHeader {
		return FormatError("not a PNG file")
	}
	return nil
}

func (d *Decoder) parseChunk() error {
	if _, err := io.ReadFull(d.r, d.tmp[:8]); err != nil {
		return err
	}
	length := binary.BigEndian.Uint32(d.tmp[:4])
	d.crc.Reset()
	d.crc.Write(d.tmp[4:8])

	switch string(d.tmp[4:8]) {
	case "IHDR":
		if d.stage != dsStart {
			return errChunkOrder
		}
		d.stage = dsSeenIHDR
		return d.parseIHDR(length)
	case "PLTE":
		if d.stage != dsSeenIHDR {
			return errChunkOrder
		}
		d.stage = dsSeenPLTE
		return d.parsePLTE(length)
	case "tRNS":
		if d.stage != dsSeenIHDR && d.stage != dsSeenPLTE {
			return errChunkOrder
		}
		d.stage = dsSeentRNS
		return d.parsetRNS(length)
	case "IDAT":
		if d.stage < dsSeenIHDR {
			return errChunkOrder
		}
		if d.colorType == ctPaletted && d.stage < dsSeenPLTE {
			return FormatError("missing palette")
		}
		d.stage = dsSeenIDAT
		d.idatLength = length
		// The chunk CRC is verified as the pixel data is consumed.
		return nil
	case "IEND":
		return FormatError("missing image data")
	}

	if length > 0x7fffffff {
		return FormatError(fmt.Sprintf("bad chunk length: %d", length))
	}
	return d.skipChunk(length)
}

func (d *Decoder) parseIHDR(length uint32) error {
	if length != 13 {
		return FormatError("bad IHDR length")
	}
	if _, err := io.ReadFull(d.r, d.tmp[:13]); err != nil {
		return err
	}
	d.crc.Write(d.tmp[:13])
	if d.tmp[10] != 0 {
		return UnsupportedError("compression method")
	}
	if d.tmp[11] != 0 {
		return UnsupportedError("filter method")
	}
	if d.tmp[12] != itNone && d.tmp[12] != itAdam7 {
		return FormatError("invalid interlace method")
	}
	d.interlace = int(d.tmp[12])

	w := int32(binary.BigEndian.Uint32(d.tmp[0:4]))
	h := int32(binary.BigEndian.Uint32(d.tmp[4:8]))
	if w <= 0 || h <= 0 {
		return FormatError("non-positive dimension")
	}
	nPixels64 := int64(w) * int64(h)
	nPixels := int(nPixels64)
	if nPixels64 != int64(nPixels) {
		return UnsupportedError("dimension overflow")
	}
	// There can be up to 8 bytes per pixel, for 16 bits per channel RGBA.
	if nPixels != (nPixels*8)/8 {
		return UnsupportedError("dimension overflow")
	}

	d.depth = int(d.tmp[8])
	d.colorType = int(d.tmp[9])

	valid := false
	switch d.colorType {
	case ctGreyscale:
		valid = d.depth == 1 || d.depth == 2 || d.depth == 4 || d.depth == 8 || d.depth == 16
	case ctTrueColor, ctGreyscaleAlpha, ctTrueColorAlpha:
		valid = d.depth == 8 || d.depth == 16
	case ctPaletted:
		valid = d.depth == 1 || d.depth == 2 || d.depth == 4 || d.depth == 8
	}
	if !valid {
		return UnsupportedError(fmt.Sprintf("bit depth %d, color type %d", d.depth, d.colorType))
	}

	d.width, d.height = int(w), int(h)
	return d.verifyChecksum()
}

func (d *Decoder) parsePLTE(length uint32) error {
	np := int(length / 3)
	if length%3 != 0 || np <= 0 || np > 256 || np > 1<<uint(d.depth) {
		return FormatError("bad PLTE length")
	}
	if _, err := io.ReadFull(d.r, d.tmp[:3*np]); err != nil {
		return err
	}
	d.crc.Write(d.tmp[:3*np])
	switch d.colorType {
	case ctPaletted:
		for i := 0; i < np; i++ {
			d.palette[4*i+0] = d.tmp[3*i+2] // B
			d.palette[4*i+1] = d.tmp[3*i+1] // G
			d.palette[4*i+2] = d.tmp[3*i+0] // R
			d.palette[4*i+3] = 0xFF
		}
		d.paletteCount = np
	case ctTrueColor, ctTrueColorAlpha:
		// A suggested palette; ignored.
	default:
		return FormatError("PLTE, color type mismatch")
	}
	return d.verifyChecksum()
}

func (d *Decoder) parsetRNS(length uint32) error {
	switch d.colorType {
	case ctGreyscale:
		if length != 2 {
			return FormatError("bad tRNS length")
		}
		if _, err := io.ReadFull(d.r, d.tmp[:length]); err != nil {
			return err
		}
		d.crc.Write(d.tmp[:length])
		copy(d.transparent[:2], d.tmp[:2])
		d.hasTRNS = true
	case ctTrueColor:
		if length != 6 {
			return FormatError("bad tRNS length")
		}
		if _, err := io.ReadFull(d.r, d.tmp[:length]); err != nil {
			return err
		}
		d.crc.Write(d.tmp[:length])
		copy(d.transparent[:6], d.tmp[:6])
		d.hasTRNS = true
	case ctPaletted:
		if d.paletteCount == 0 {
			return FormatError("tRNS, PLTE required")
		}
		if length > 256 || int(length) > d.paletteCount {
			return FormatError("bad tRNS length")
		}
		if _, err := io.ReadFull(d.r, d.tmp[:length]); err != nil {
			return err
		}
		d.crc.Write(d.tmp[:length])
		for i := 0; i < int(length); i++ {
			d.palette[4*i+3] = d.tmp[i]
		}
		d.hasTRNS = true
	default:
		return FormatError("tRNS, color type mismatch")
	}
	return d.verifyChecksum()
}

func (d *Decoder) skipChunk(length uint32) error {
	for length > 0 {
		n, err := io.ReadFull(d.r, d.tmp[:min(len(d.tmp), int(length))])
		if err != nil {
			return err
		}
		d.crc.Write(d.tmp[:n])
		length -= uint32(n)
	}
	return d.verifyChecksum()
}

func (d *Decoder) verifyChecksum() error {
	if _, err := io.ReadFull(d.r, d.tmp[:4]); err != nil {
		return err
	}
	if binary.BigEndian.Uint32(d.tmp[:4]) != d.crc.Sum32() {
		return FormatError("invalid checksum")
	}
	return nil
}

// idatReader presents one or more IDAT chunks as one continuous stream,
// minus the intermediate chunk headers and footers, verifying each chunk's
// CRC as it is exhausted.
type idatReader struct {
	d *Decoder
}

func (r idatReader) Read(p []byte) (int, error) {
	d := r.d
	if len(p) == 0 {
		return 0, nil
	}
	for d.idatLength == 0 {
		// We have exhausted an IDAT chunk. Verify the checksum of that
		// chunk, then expect the next chunk to be another IDAT.
		if err := d.verifyChecksum(); err != nil {
			return 0, err
		}
		if _, err := io.ReadFull(d.r, d.tmp[:8]); err != nil {
			return 0, err
		}
		d.idatLength = binary.BigEndian.Uint32(d.tmp[:4])
		if string(d.tmp[4:8]) != "IDAT" {
			return 0, FormatError("not enough pixel data")
		}
		d.crc.Reset()
		d.crc.Write(d.tmp[4:8])
	}
	if int(d.idatLength) < 0 {
		return 0, UnsupportedError("IDAT chunk length overflow")
	}
	n, err := d.r.Read(p[:min(len(p), int(d.idatLength))])
	d.crc.Write(p[:n])
	d.idatLength -= uint32(n)
	return n, err
}

// finish drains the remainder of the current IDAT chunk, then walks the
// trailing chunks through IEND.
func (d *Decoder) finish() error {
	for d.idatLength > 0 {
		n, err := io.ReadFull(d.r, d.tmp[:min(len(d.tmp), int(d.idatLength))])
		if err != nil {
			return err
		}
		d.crc.Write(d.tmp[:n])
		d.idatLength -= uint32(n)
	}
	if err := d.verifyChecksum(); err != nil {
		return err
	}

	for d.stage != dsSeenIEND {
		if _, err := io.ReadFull(d.r, d.tmp[:8]); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return err
		}
		length := binary.BigEndian.Uint32(d.tmp[:4])
		d.crc.Reset()
		d.crc.Write(d.tmp[4:8])

		if string(d.tmp[4:8]) == "IEND" {
			if length != 0 {
				return FormatError("bad IEND length")
			}
			d.stage = dsSeenIEND
			return d.verifyChecksum()
		}
		if length > 0x7fffffff {
			return FormatError(fmt.Sprintf("bad chunk length: %d", length))
		}
		if err := d.skipChunk(length); err != nil {
			return err
		}
	}
	return nil
}
