package pngs

// PaletteEntries is the number of colors a Palette holds.
const PaletteEntries = 256

// Palette is a 256-entry color table in R, G, B, A byte order with
// premultiplied alpha, as produced by a successful indexed decode.
// It is written once per decode call and never retained by the library.
type Palette [PaletteEntries * 4]byte

// RGBA returns entry i's premultiplied channels.
func (p *Palette) RGBA(i int) (r, g, b, a uint8) {
	e := p[4*i:]
	return e[0], e[1], e[2], e[3]
}

// Size returns the number of meaningful palette entries: trailing entries
// identical to the last one are considered padding.
func (p *Palette) Size() int {
	last := [4]byte{p[4*255], p[4*255+1], p[4*255+2], p[4*255+3]}
	for i := 254; i > 0; i-- {
		if p[4*i] != last[0] || p[4*i+1] != last[1] || p[4*i+2] != last[2] || p[4*i+3] != last[3] {
			return i + 2
		}
	}
	return 1
}

// convertPalette fills dst from a 256-entry BGRA non-premultiplied table,
// premultiplying each entry, and reports whether every entry was fully
// opaque.
func convertPalette(dst *Palette, src []byte) bool {
	opaque := true
	for i := 0; i < PaletteEntries*4; i += 4 {
		b, g, r, a := src[i], src[i+1], src[i+2], src[i+3]
		argb := premultiply(uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
		dst[i+0] = uint8(argb >> 16)
		dst[i+1] = uint8(argb >> 8)
		dst[i+2] = uint8(argb)
		dst[i+3] = uint8(argb >> 24)
		opaque = opaque && a == 0xFF
	}
	return opaque
}
