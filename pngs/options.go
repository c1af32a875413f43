package pngs

// Options is a bitset of caller intent flags for Decode.
type Options uint32

const (
	// OptionDecodeAsMask attempts best-effort conversion of an indexed
	// image to a single-channel alpha mask. If the image's visible pixels
	// use more than one hue the conversion is declined and the indexed
	// plane is copied as-is.
	OptionDecodeAsMask Options = 1 << 0

	// OptionExtractMask forces mask conversion regardless of palette hue
	// uniformity.
	OptionExtractMask Options = 1 << 1
)

// DefaultOptions is the recommended option set for callers that can
// consume either representation.
const DefaultOptions = OptionDecodeAsMask

// decodeOptions is the structured, internal form of Options; the bitset
// exists only at the API boundary.
type decodeOptions struct {
	decodeAsMask bool
	extractMask  bool
}

func (o Options) decoded() decodeOptions {
	return decodeOptions{
		decodeAsMask: o&OptionDecodeAsMask != 0,
		extractMask:  o&OptionExtractMask != 0,
	}
}

// ResultCode is the outcome of a Decode call: 0 is failure, a negative
// value is an engine-initialization failure, and a positive value carries
// the success bit plus the Flag* bits describing what was written to the
// destination surface.
type ResultCode int32

const (
	// ResultFailure means nothing was written to the destination surface.
	ResultFailure ResultCode = 0

	// ResultEngineInitFailure means the decoding engine could not be
	// initialized; distinct from a content failure.
	ResultEngineInitFailure ResultCode = -1
)

const (
	resultSuccess ResultCode = 1 << 0

	// FlagMask means the surface holds a single-channel alpha mask
	// extracted from the palette.
	FlagMask ResultCode = 1 << 1

	// FlagGrey means the surface holds 8-bit greyscale pixels.
	FlagGrey ResultCode = 1 << 2

	// FlagOpaque means every pixel written is fully opaque.
	FlagOpaque ResultCode = 1 << 3
)

// Ok reports whether the decode succeeded.
func (r ResultCode) Ok() bool { return r&resultSuccess != 0 && r > 0 }

// decodeFlags is the structured, internal form of the result bits.
type decodeFlags struct {
	mask   bool
	grey   bool
	opaque bool
}

func (f decodeFlags) resultCode() ResultCode {
	code := resultSuccess
	if f.mask {
		code |= FlagMask
	}
	if f.grey {
		code |= FlagGrey
	}
	if f.opaque {
		code |= FlagOpaque
	}
	return code
}
