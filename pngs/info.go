package pngs

import (
	"encoding/binary"

	"github.com/bitmapdecoder/pngs-go/pngs/engine"
)

const pngSignature = "\x89PNG\r\n\x1a\n"

// PNG color types, as stored in the IHDR chunk.
const (
	pngColorGreyscale = 0
	pngColorRGB       = 2
	pngColorIndexed   = 3
)

// HeaderInfo is the result of peeking at a PNG header without decoding
// any pixel data.
type HeaderInfo struct {
	Width, Height int
	ColorType     int
}

func (h HeaderInfo) IsIndexed() bool   { return h.ColorType == pngColorIndexed }
func (h HeaderInfo) IsGreyscale() bool { return h.ColorType == pngColorGreyscale }
func (h HeaderInfo) IsRGB() bool       { return h.ColorType == pngColorRGB }

// ImageInfo reads the PNG signature and IHDR chunk from data and reports
// the image's dimensions and color type. ok is false if data does not
// start with a PNG image.
func ImageInfo(data []byte) (info HeaderInfo, ok bool) {
	// Signature, IHDR length+type, then the 13-byte IHDR payload.
	if len(data) < 8+8+13 {
		return HeaderInfo{}, false
	}
	if string(data[:8]) != pngSignature || string(data[12:16]) != "IHDR" {
		return HeaderInfo{}, false
	}
	info.Width = int(binary.BigEndian.Uint32(data[16:20]))
	info.Height = int(binary.BigEndian.Uint32(data[20:24]))
	info.ColorType = int(data[25])
	return info, true
}

// DecodingResult describes the outcome of DecodeIndexed: the populated
// surface, the converted premultiplied palette and the decode flags.
type DecodingResult struct {
	Surface *MemorySurface
	Palette Palette

	code ResultCode
}

// DecodedAsMask reports whether the surface holds an alpha mask rather
// than palette indices.
func (r *DecodingResult) DecodedAsMask() bool { return r.code&FlagMask != 0 }

// DecodedAsGreyscale reports whether the surface holds greyscale pixels.
func (r *DecodingResult) DecodedAsGreyscale() bool { return r.code&FlagGrey != 0 }

// IsOpaque reports whether every pixel written is fully opaque.
func (r *DecodingResult) IsOpaque() bool { return r.code&FlagOpaque != 0 }

// PaletteSize returns the number of meaningful palette entries.
func (r *DecodingResult) PaletteSize() int { return r.Palette.Size() }

// DecodeIndexed decodes an indexed or greyscale PNG into a freshly
// allocated one-byte-per-pixel surface. It is the convenience entry point
// for callers that want the library to size the destination.
func DecodeIndexed(data []byte, options Options) (*DecodingResult, error) {
	info, ok := ImageInfo(data)
	if !ok {
		return nil, newError(ErrHeader, "pngs: not a PNG image")
	}
	if !info.IsIndexed() && !info.IsGreyscale() {
		return nil, newError(ErrUnsupported, "pngs: image is neither indexed nor greyscale")
	}
	// The header dimensions are untrusted; bound them before they size an
	// allocation. The engine re-checks the same limit during its decode.
	if n := uint64(info.Width) * uint64(info.Height); n == 0 || n > engine.DefaultLimits.MaxPixels {
		return nil, newError(ErrUnsupported, "pngs: image dimensions out of range")
	}

	surface := NewMemorySurface(info.Width, info.Height, 1)
	result := &DecodingResult{Surface: surface}

	code := Decode(data, 0, len(data), surface, &result.Palette, options)
	if code == ResultEngineInitFailure {
		return nil, newError(ErrEngineInit, "pngs: decoder initialization failed")
	}
	if !code.Ok() {
		return nil, newError(ErrFrame, "pngs: decoding failed")
	}
	result.code = code
	return result, nil
}
