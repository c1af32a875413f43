package pngs

// Mask extraction runs over the engine's raw BGRA palette rather than the
// premultiplied output table: premultiplication scales the color channels
// by alpha, which would break hue comparison between entries that differ
// only in transparency. The alpha byte is at the same offset in both.

// extractMask writes each indexed pixel's palette alpha into dst.
// dst and plane must both hold one byte per pixel.
func extractMask(dst, plane, pal []byte) {
	for i, idx := range plane {
		dst[i] = pal[4*int(idx)+3]
	}
}

// extractMaskChecked performs the same per-pixel alpha lookup, but only if
// every non-transparent pixel shares a single hue: collapsing a multi-hue
// image to one alpha channel would lose information. It reports whether
// the conversion held; on false, dst contents are unspecified and the
// caller falls back to a plain copy of the indexed plane.
func extractMaskChecked(dst, plane, pal []byte) bool {
	var hue uint32
	seen := false
	for i, idx := range plane {
		e := pal[4*int(idx) : 4*int(idx)+4]
		a := e[3]
		if a != 0 {
			rgb := uint32(e[0])<<16 | uint32(e[1])<<8 | uint32(e[2])
			if !seen {
				hue = rgb
				seen = true
			} else if rgb != hue {
				return false
			}
		}
		dst[i] = a
	}
	return true
}
