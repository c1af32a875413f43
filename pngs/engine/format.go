package engine

// PixelFormat identifies the memory representation of decoded pixels.
type PixelFormat uint32

const (
	FormatInvalid PixelFormat = iota

	// FormatGrey8 is one byte per pixel, no alpha.
	FormatGrey8

	// FormatGrey16LE and FormatGrey16BE are two bytes per pixel in the
	// named byte order. They are reported as native formats only; the
	// decoder does not produce them as output.
	FormatGrey16LE
	FormatGrey16BE

	// FormatIndexed8 is one palette index byte per pixel plus a 256-entry
	// BGRA palette carried in the tail of the pixel buffer.
	FormatIndexed8

	// FormatRGBANonpremul is four bytes per pixel, R, G, B, A order,
	// non-premultiplied alpha.
	FormatRGBANonpremul
)

func (f PixelFormat) String() string {
	switch f {
	case FormatGrey8:
		return "grey8"
	case FormatGrey16LE:
		return "grey16le"
	case FormatGrey16BE:
		return "grey16be"
	case FormatIndexed8:
		return "indexed8"
	case FormatRGBANonpremul:
		return "rgba-nonpremul"
	default:
		return "invalid"
	}
}

// BytesPerPixel returns the plane stride contribution of one pixel,
// or 0 for an invalid format.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatGrey8, FormatIndexed8:
		return 1
	case FormatGrey16LE, FormatGrey16BE:
		return 2
	case FormatRGBANonpremul:
		return 4
	default:
		return 0
	}
}

// PaletteBytes is the size of the palette region of an indexed pixel buffer.
const PaletteBytes = 256 * 4

// ImageConfig describes decoded image geometry and pixel format.
//
// DecodeImageConfig reports the image's native format; callers may rewrite
// Format to one of the supported output formats before constructing the
// pixel buffer, and DecodeFrame will convert scanlines accordingly.
type ImageConfig struct {
	Width  uint32
	Height uint32
	Format PixelFormat
}

// Valid reports whether the configuration has non-zero dimensions and a
// recognized pixel format.
func (c ImageConfig) Valid() bool {
	return c.Width > 0 && c.Height > 0 &&
		c.Format > FormatInvalid && c.Format <= FormatRGBANonpremul
}

// BufferSize returns the pixel buffer size in bytes this configuration
// requires. Indexed buffers carry their palette after the pixel plane.
func (c ImageConfig) BufferSize() uint64 {
	n := uint64(c.Width) * uint64(c.Height) * uint64(c.Format.BytesPerPixel())
	if c.Format == FormatIndexed8 {
		n += PaletteBytes
	}
	return n
}

// PixelBuffer is a caller-provided byte region the decoder fills with
// pixels in the configured format. The decoder never allocates pixel
// memory of its own.
type PixelBuffer struct {
	cfg ImageConfig
	buf []byte
}

// NewPixelBuffer wraps buf as the destination for an image decoded with
// the given configuration. buf must be at least cfg.BufferSize() bytes.
func NewPixelBuffer(cfg ImageConfig, buf []byte) (*PixelBuffer, error) {
	if !cfg.Valid() {
		return nil, FormatError("invalid pixel configuration")
	}
	if uint64(len(buf)) < cfg.BufferSize() {
		return nil, UnsupportedError("pixel buffer too short")
	}
	return &PixelBuffer{cfg: cfg, buf: buf}, nil
}

// Config returns the buffer's pixel configuration.
func (p *PixelBuffer) Config() ImageConfig { return p.cfg }

// Plane returns the pixel plane: indices, grey bytes or RGBA quads.
func (p *PixelBuffer) Plane() []byte {
	n := uint64(p.cfg.Width) * uint64(p.cfg.Height) * uint64(p.cfg.Format.BytesPerPixel())
	return p.buf[:n]
}

// Palette returns the 256-entry BGRA non-premultiplied palette region of
// an indexed buffer, or nil for any other format.
func (p *PixelBuffer) Palette() []byte {
	if p.cfg.Format != FormatIndexed8 {
		return nil
	}
	n := uint64(p.cfg.Width) * uint64(p.cfg.Height)
	return p.buf[n : n+PaletteBytes]
}
