package pngs

import "github.com/bitmapdecoder/pngs-go/pngs/engine"

// outputStrategy is the closed set of ways decoded pixels reach the
// destination surface. Exactly one strategy is selected per call.
type outputStrategy uint8

const (
	// strategyInvalid means the caller's option/format combination has no
	// valid output; the request is rejected before any decode work.
	strategyInvalid outputStrategy = iota

	// strategyDirectGrey decodes 8-bit greyscale straight into the locked
	// destination surface.
	strategyDirectGrey

	// strategyDirectRGBA decodes non-premultiplied RGBA straight into the
	// locked destination surface.
	strategyDirectRGBA

	// strategyTransientIndexed decodes the indexed plane plus palette into
	// a transient buffer owned by the decode call, converts the palette,
	// and copies the plane out to the surface afterwards.
	strategyTransientIndexed
)

// selectStrategy picks the output representation for the decoded image and
// rewrites cfg.Format in place to the format the engine must produce, so
// the engine decodes directly into the chosen representation with no
// separate conversion pass. First match wins.
func selectStrategy(cfg *engine.ImageConfig, wantPalette bool) outputStrategy {
	switch {
	case cfg.Format == engine.FormatGrey8 ||
		cfg.Format == engine.FormatGrey16LE ||
		cfg.Format == engine.FormatGrey16BE:
		cfg.Format = engine.FormatGrey8
		return strategyDirectGrey
	case !wantPalette:
		cfg.Format = engine.FormatRGBANonpremul
		return strategyDirectRGBA
	case cfg.Format == engine.FormatIndexed8:
		return strategyTransientIndexed
	default:
		return strategyInvalid
	}
}

func (s outputStrategy) bytesPerPixel() int {
	if s == strategyDirectRGBA {
		return 4
	}
	return 1
}
