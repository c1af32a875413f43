// Package pngs decodes PNG images into caller-owned pixel surfaces,
// choosing the cheapest output representation for a mobile rendering
// pipeline: direct RGBA, 8-bit greyscale, 8-bit indexed with a
// premultiplied palette, or a single-channel alpha mask.
//
// It is a Go port of the org.bitmapdecoder "pngs" library. The PNG
// bitstream work (inflate, filter reconstruction, interlacing, checksums)
// is done by the engine subpackage; this package is the orchestration
// around it: format and buffer-strategy selection, capacity validation,
// palette premultiplication and mask extraction.
package pngs

import (
	"bytes"
	"io"
	"log"

	"github.com/bitmapdecoder/pngs-go/pngs/engine"
)

// newEngine builds the decoding engine for one call. It is a package
// variable so the engine-initialization failure path stays testable.
var newEngine = func(r io.Reader) (*engine.Decoder, error) {
	return engine.NewDecoder(r, engine.DefaultLimits)
}

// Decode decodes the PNG image in data[pos:limit] into dst.
//
// With a nil palette the image is decoded to non-premultiplied RGBA
// (greyscale images to 8-bit grey). With a palette sink the image must be
// indexed: the plane of palette indices is written to dst, the converted
// premultiplied palette to *palette, and the options govern whether the
// plane is instead collapsed to an alpha mask.
//
// The input bytes are never mutated. The returned code is 0 on failure,
// negative if the engine could not be initialized, and otherwise carries
// the Flag* bits describing the surface contents.
func Decode(data []byte, pos, limit int, dst Surface, palette *Palette, options Options) ResultCode {
	if dst == nil || pos < 0 || pos > limit || limit > len(data) {
		return ResultFailure
	}
	opts := options.decoded()

	dec, err := newEngine(bytes.NewReader(data[pos:limit]))
	if err != nil {
		log.Printf("pngs: failed to initialize decoder: %v", err)
		return ResultEngineInitFailure
	}

	cfg, err := dec.DecodeImageConfig()
	if err != nil {
		log.Printf("pngs: failed to read image config: %v", err)
		return ResultFailure
	}
	if !cfg.Valid() {
		log.Printf("pngs: invalid image configuration")
		return ResultFailure
	}

	capW, capH := dst.Size()
	if capW < 0 || capH < 0 ||
		uint64(cfg.Width)*uint64(cfg.Height) > uint64(capW)*uint64(capH) {
		log.Printf("pngs: image %dx%d exceeds surface capacity %dx%d",
			cfg.Width, cfg.Height, capW, capH)
		return ResultFailure
	}

	strategy := selectStrategy(&cfg, palette != nil)
	switch strategy {
	case strategyDirectGrey, strategyDirectRGBA:
		return decodeDirect(dec, cfg, dst, strategy)
	case strategyTransientIndexed:
		return decodeTransient(dec, cfg, dst, palette, opts)
	default:
		log.Printf("pngs: no output strategy for %v image with palette sink", cfg.Format)
		return ResultFailure
	}
}

// decodeDirect decodes greyscale or RGBA pixels straight into the locked
// destination surface.
func decodeDirect(dec *engine.Decoder, cfg engine.ImageConfig, dst Surface, strategy outputStrategy) ResultCode {
	pix, err := dst.LockPixels()
	if err != nil {
		log.Printf("pngs: could not lock destination surface: %v", err)
		return ResultFailure
	}
	defer dst.UnlockPixels()

	need := uint64(cfg.Width) * uint64(cfg.Height) * uint64(strategy.bytesPerPixel())
	if uint64(len(pix)) < need {
		log.Printf("pngs: destination surface too small: have %d bytes, need %d", len(pix), need)
		return ResultFailure
	}

	if _, ok := decodeFrame(dec, cfg, pix[:need]); !ok {
		return ResultFailure
	}

	if strategy == strategyDirectGrey {
		return decodeFlags{grey: true, opaque: true}.resultCode()
	}
	return decodeFlags{}.resultCode()
}

// decodeTransient decodes the indexed plane and palette into a buffer
// owned by this call, converts the palette into the caller's sink, and
// copies out either the plane or its extracted alpha mask.
func decodeTransient(dec *engine.Decoder, cfg engine.ImageConfig, dst Surface, palette *Palette, opts decodeOptions) ResultCode {
	n := uint64(cfg.Width) * uint64(cfg.Height)
	buf := make([]byte, n+engine.PaletteBytes)

	pb, ok := decodeFrame(dec, cfg, buf)
	if !ok {
		return ResultFailure
	}
	plane := pb.Plane()
	rawPalette := pb.Palette()

	opaque := convertPalette(palette, rawPalette)

	pix, err := dst.LockPixels()
	if err != nil {
		log.Printf("pngs: could not lock destination surface: %v", err)
		return ResultFailure
	}
	defer dst.UnlockPixels()

	if uint64(len(pix)) < n {
		log.Printf("pngs: destination surface too small: have %d bytes, need %d", len(pix), n)
		return ResultFailure
	}
	out := pix[:n]

	flags := decodeFlags{opaque: opaque}
	switch {
	case opts.extractMask:
		extractMask(out, plane, rawPalette)
		flags.mask = true
	case opts.decodeAsMask && !opaque && extractMaskChecked(out, plane, rawPalette):
		flags.mask = true
	default:
		// Declined or never attempted: plain copy of the indexed plane.
		copy(out, plane)
	}
	return flags.resultCode()
}

// decodeFrame sizes the engine's work buffer, wraps buf as the pixel
// buffer for cfg and runs the frame decode. The work buffer is dropped
// when it returns, on every path.
func decodeFrame(dec *engine.Decoder, cfg engine.ImageConfig, buf []byte) (*engine.PixelBuffer, bool) {
	pb, err := engine.NewPixelBuffer(cfg, buf)
	if err != nil {
		log.Printf("pngs: failed to initialize pixel buffer: %v", err)
		return nil, false
	}
	workbuf := make([]byte, dec.WorkbufLen())
	if err := dec.DecodeFrame(pb, workbuf); err != nil {
		log.Printf("pngs: failed to decode image: %v", err)
		return nil, false
	}
	return pb, true
}
