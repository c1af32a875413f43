package engine_test

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/klauspost/compress/zlib"

	"github.com/bitmapdecoder/pngs-go/pngs/engine"
)

// chunk assembles one PNG chunk with its length and CRC.
func chunk(typ string, payload []byte) []byte {
	out := make([]byte, 8, 12+len(payload))
	binary.BigEndian.PutUint32(out[:4], uint32(len(payload)))
	copy(out[4:8], typ)
	out = append(out, payload...)
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(payload)
	return binary.BigEndian.AppendUint32(out, crc.Sum32())
}

func deflate(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// buildPNG assembles a minimal PNG: IHDR, any extra chunks, one IDAT
// holding the deflated scanlines, IEND.
func buildPNG(t *testing.T, width, height, depth, colorType, interlace int, extra [][]byte, scanlines []byte) []byte {
	t.Helper()
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(width))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(height))
	ihdr[8] = byte(depth)
	ihdr[9] = byte(colorType)
	ihdr[12] = byte(interlace)

	data := []byte("\x89PNG\r\n\x1a\n")
	data = append(data, chunk("IHDR", ihdr)...)
	for _, c := range extra {
		data = append(data, c...)
	}
	data = append(data, chunk("IDAT", deflate(t, scanlines))...)
	return append(data, chunk("IEND", nil)...)
}

// decodeInto runs the full config+frame sequence, decoding into a buffer
// of the requested format.
func decodeInto(t *testing.T, data []byte, format engine.PixelFormat) (*engine.PixelBuffer, error) {
	t.Helper()
	d, err := engine.NewDecoder(bytes.NewReader(data), engine.DefaultLimits)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := d.DecodeImageConfig()
	if err != nil {
		return nil, err
	}
	cfg.Format = format
	pb, err := engine.NewPixelBuffer(cfg, make([]byte, cfg.BufferSize()))
	if err != nil {
		t.Fatal(err)
	}
	return pb, d.DecodeFrame(pb, make([]byte, d.WorkbufLen()))
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeGrey8(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 17, 5))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 13)
	}
	pb, err := decodeInto(t, encode(t, img), engine.FormatGrey8)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if !bytes.Equal(pb.Plane(), img.Pix) {
		t.Fatalf("plane mismatch")
	}
}

func TestDecodeGrey16TakesHighByte(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 4, 3))
	for i := 0; i < len(img.Pix); i += 2 {
		img.Pix[i] = uint8(i * 11)
		img.Pix[i+1] = uint8(i * 7)
	}
	pb, err := decodeInto(t, encode(t, img), engine.FormatGrey8)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	want := make([]byte, 12)
	for i := range want {
		want[i] = img.Pix[2*i]
	}
	if !bytes.Equal(pb.Plane(), want) {
		t.Fatalf("plane = % x, want % x", pb.Plane(), want)
	}
}

func TestDecodeIndexedPlaneAndPalette(t *testing.T) {
	palette := make(color.Palette, 0, 40)
	for i := 0; i < 40; i++ {
		a := uint8(0xFF)
		if i%5 == 0 {
			a = uint8(i * 3)
		}
		palette = append(palette, color.NRGBA{
			R: uint8(i), G: uint8(i * 2), B: uint8(i * 3), A: a,
		})
	}
	img := image.NewPaletted(image.Rect(0, 0, 9, 4), palette)
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 40)
	}

	pb, err := decodeInto(t, encode(t, img), engine.FormatIndexed8)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if !bytes.Equal(pb.Plane(), img.Pix) {
		t.Fatalf("plane mismatch")
	}
	pal := pb.Palette()
	for i, c := range palette {
		e := pal[4*i : 4*i+4]
		n := c.(color.NRGBA)
		if e[0] != n.B || e[1] != n.G || e[2] != n.R || e[3] != n.A {
			t.Fatalf("palette[%d] = % x, want BGRA of %+v", i, e, n)
		}
	}
}

func TestDecodeTruecolorToRGBA(t *testing.T) {
	// Translucent pixels force the truecolor-alpha color type; a second
	// image with uniform alpha exercises plain truecolor.
	for _, opaque := range []bool{false, true} {
		img := image.NewNRGBA(image.Rect(0, 0, 6, 6))
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i] = uint8(i)
			img.Pix[i+1] = uint8(i * 3)
			img.Pix[i+2] = uint8(255 - i)
			if opaque {
				img.Pix[i+3] = 0xFF
			} else {
				img.Pix[i+3] = uint8(i + 1)
			}
		}
		pb, err := decodeInto(t, encode(t, img), engine.FormatRGBANonpremul)
		if err != nil {
			t.Fatalf("opaque=%v: DecodeFrame: %v", opaque, err)
		}
		if !bytes.Equal(pb.Plane(), img.Pix) {
			t.Fatalf("opaque=%v: pixel mismatch", opaque)
		}
	}
}

func TestDecode16BitTruecolorToRGBA(t *testing.T) {
	img := image.NewNRGBA64(image.Rect(0, 0, 3, 2))
	for i := range img.Pix {
		img.Pix[i] = uint8(i*37 + 5)
	}
	pb, err := decodeInto(t, encode(t, img), engine.FormatRGBANonpremul)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	want := make([]byte, len(img.Pix)/2)
	for i := range want {
		want[i] = img.Pix[2*i]
	}
	if !bytes.Equal(pb.Plane(), want) {
		t.Fatalf("pixels = % x, want % x", pb.Plane(), want)
	}
}

func TestDecodeGreyToRGBA(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 1))
	copy(img.Pix, []byte{0x00, 0x7F, 0xFF})
	pb, err := decodeInto(t, encode(t, img), engine.FormatRGBANonpremul)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	want := []byte{
		0x00, 0x00, 0x00, 0xFF,
		0x7F, 0x7F, 0x7F, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF,
	}
	if !bytes.Equal(pb.Plane(), want) {
		t.Fatalf("pixels = % x, want % x", pb.Plane(), want)
	}
}

func TestDecodeSubByteGrey(t *testing.T) {
	// 3x2 4-bit greyscale, hand-assembled: two pixels per byte, MSB
	// first, rows padded to a byte boundary.
	scanlines := []byte{
		0, 0x01<<4 | 0x02, 0x03 << 4,
		0, 0x0F<<4 | 0x08, 0x00,
	}
	data := buildPNG(t, 3, 2, 4, 0, 0, nil, scanlines)

	pb, err := decodeInto(t, data, engine.FormatGrey8)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	want := []byte{0x11, 0x22, 0x33, 0xFF, 0x88, 0x00}
	if !bytes.Equal(pb.Plane(), want) {
		t.Fatalf("plane = % x, want % x", pb.Plane(), want)
	}
}

func TestDecodeAdam7Grey(t *testing.T) {
	// 2x2 interlaced greyscale touches passes 1, 6 and 7 only.
	scanlines := []byte{
		0, 0x10, // pass 1: pixel (0,0)
		0, 0x20, // pass 6: pixel (1,0)
		0, 0x30, 0x40, // pass 7: pixels (0,1) (1,1)
	}
	data := buildPNG(t, 2, 2, 8, 0, 1, nil, scanlines)

	pb, err := decodeInto(t, data, engine.FormatGrey8)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	want := []byte{0x10, 0x20, 0x30, 0x40}
	if !bytes.Equal(pb.Plane(), want) {
		t.Fatalf("plane = % x, want % x", pb.Plane(), want)
	}
}

func TestDecodeGreyColorKey(t *testing.T) {
	// Greyscale with a tRNS color key promotes to RGBA with the keyed
	// value fully transparent.
	scanlines := []byte{0, 0x40, 0x80, 0xC0}
	trns := chunk("tRNS", []byte{0x00, 0x80})
	data := buildPNG(t, 3, 1, 8, 0, 0, [][]byte{trns}, scanlines)

	d, err := engine.NewDecoder(bytes.NewReader(data), engine.DefaultLimits)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := d.DecodeImageConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Format != engine.FormatRGBANonpremul {
		t.Fatalf("native format = %v, want %v", cfg.Format, engine.FormatRGBANonpremul)
	}
	pb, err := engine.NewPixelBuffer(cfg, make([]byte, cfg.BufferSize()))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.DecodeFrame(pb, make([]byte, d.WorkbufLen())); err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	want := []byte{
		0x40, 0x40, 0x40, 0xFF,
		0x80, 0x80, 0x80, 0x00,
		0xC0, 0xC0, 0xC0, 0xFF,
	}
	if !bytes.Equal(pb.Plane(), want) {
		t.Fatalf("pixels = % x, want % x", pb.Plane(), want)
	}
}

func TestNativeFormats(t *testing.T) {
	cases := []struct {
		name string
		img  image.Image
		want engine.PixelFormat
	}{
		{"grey8", image.NewGray(image.Rect(0, 0, 2, 2)), engine.FormatGrey8},
		{"grey16", image.NewGray16(image.Rect(0, 0, 2, 2)), engine.FormatGrey16BE},
		{"indexed", image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{
			color.NRGBA{A: 0xFF}, color.NRGBA{R: 0xFF, A: 0xFF},
		}), engine.FormatIndexed8},
		{"rgba", image.NewNRGBA(image.Rect(0, 0, 2, 2)), engine.FormatRGBANonpremul},
	}
	for _, tc := range cases {
		d, err := engine.NewDecoder(bytes.NewReader(encode(t, tc.img)), engine.DefaultLimits)
		if err != nil {
			t.Fatal(err)
		}
		cfg, err := d.DecodeImageConfig()
		if err != nil {
			t.Fatalf("%s: DecodeImageConfig: %v", tc.name, err)
		}
		if cfg.Format != tc.want {
			t.Errorf("%s: format = %v, want %v", tc.name, cfg.Format, tc.want)
		}
	}
}

func TestTargetFormatMismatch(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{
		color.NRGBA{A: 0xFF}, color.NRGBA{R: 0xFF, A: 0xFF},
	})
	if _, err := decodeInto(t, encode(t, img), engine.FormatGrey8); err == nil {
		t.Fatal("decoding an indexed image as greyscale succeeded")
	}
}

func TestWorkbufLen(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 1))
	d, err := engine.NewDecoder(bytes.NewReader(encode(t, img)), engine.DefaultLimits)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.DecodeImageConfig(); err != nil {
		t.Fatal(err)
	}
	// Two filter-prefixed 100-byte rows.
	if got := d.WorkbufLen(); got != 202 {
		t.Fatalf("WorkbufLen() = %d, want 202", got)
	}
}

func TestPixelLimit(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 3))
	d, err := engine.NewDecoder(bytes.NewReader(encode(t, img)), engine.Limits{MaxPixels: 8})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.DecodeImageConfig(); err == nil {
		t.Fatal("9-pixel image passed an 8-pixel limit")
	}
}

func TestNewDecoderValidation(t *testing.T) {
	if _, err := engine.NewDecoder(nil, engine.DefaultLimits); err == nil {
		t.Fatal("nil reader accepted")
	}
	if _, err := engine.NewDecoder(bytes.NewReader(nil), engine.Limits{}); err == nil {
		t.Fatal("zero pixel limit accepted")
	}
}

func TestTrailingPixelData(t *testing.T) {
	// One extra byte in the deflate stream beyond the expected scanlines.
	scanlines := []byte{0, 0x10, 0x20, 0xEE}
	data := buildPNG(t, 2, 1, 8, 0, 0, nil, scanlines)
	if _, err := decodeInto(t, data, engine.FormatGrey8); err == nil {
		t.Fatal("surplus pixel data accepted")
	}
}

func TestMalformedInputsFailCleanly(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{
		color.NRGBA{A: 0xFF}, color.NRGBA{R: 0xFF, A: 0x80}, color.NRGBA{G: 0xFF, A: 0xFF},
	})
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 3)
	}
	data := encode(t, img)

	for n := 0; n <= len(data); n++ {
		if _, err := decodeInto(t, data[:n], engine.FormatIndexed8); err == nil && n < len(data) {
			t.Fatalf("truncation at %d decoded successfully", n)
		}
	}
	for i := range data {
		corrupt := bytes.Clone(data)
		corrupt[i] ^= 0xA5
		// Any outcome but a panic is acceptable; most flips are caught by
		// the CRC or zlib checks.
		decodeInto(t, corrupt, engine.FormatIndexed8)
	}
}
