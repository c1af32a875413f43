package pngs

// Fixed-point alpha scaling constants. a*alphaScale spreads an 8-bit alpha
// across 16 bits so that dividing by alphaUnit reproduces a/255 without
// floating point. Downstream consumers depend on this exact rounding;
// the arithmetic is a compatibility requirement, not a tunable.
const (
	alphaScale = 0x101 * 0x101
	alphaUnit  = 0xFFFF
)

// premultiply converts one non-premultiplied ARGB color to premultiplied
// ARGB. Alpha 0xFF leaves the color channels unchanged; alpha 0x00 zeroes
// them.
func premultiply(argb uint32) uint32 {
	a := 0xFF & (argb >> 24)
	a16 := a * alphaScale

	r := 0xFF & (argb >> 16)
	r = ((r * a16) / alphaUnit) >> 8
	g := 0xFF & (argb >> 8)
	g = ((g * a16) / alphaUnit) >> 8
	b := 0xFF & argb
	b = ((b * a16) / alphaUnit) >> 8

	return a<<24 | r<<16 | g<<8 | b
}
