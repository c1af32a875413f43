package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/bitmapdecoder/pngs-go/pngs"
	"github.com/bitmapdecoder/pngs-go/pngs/engine"
)

func main() {
	var (
		inPath   string
		outPath  string
		dumpInfo bool
		asMask   bool
		asRGBA   bool
		dumpPal  bool
	)
	flag.StringVar(&inPath, "in", "", "input PNG file")
	flag.StringVar(&outPath, "out", "", "output PNG file")
	flag.BoolVar(&dumpInfo, "info", false, "print header info and exit")
	flag.BoolVar(&asMask, "mask", false, "decode indexed input to an alpha mask")
	flag.BoolVar(&asRGBA, "rgba", false, "decode input to non-premultiplied RGBA")
	flag.BoolVar(&dumpPal, "palette", false, "dump the converted premultiplied palette as hex")
	flag.Parse()

	if inPath == "" {
		fmt.Fprintln(os.Stderr, "usage: pngsdec -in <input.png> [-out <output.png>] [-info|-mask|-rgba|-palette]")
		os.Exit(2)
	}

	data, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	info, ok := pngs.ImageInfo(data)
	if !ok {
		fmt.Fprintln(os.Stderr, "not a PNG file:", inPath)
		os.Exit(1)
	}

	if dumpInfo {
		kind := "other"
		switch {
		case info.IsIndexed():
			kind = "indexed"
		case info.IsGreyscale():
			kind = "greyscale"
		case info.IsRGB():
			kind = "rgb"
		}
		fmt.Printf("%s: %dx%d %s\n", inPath, info.Width, info.Height, kind)
		return
	}

	if asRGBA {
		if n := uint64(info.Width) * uint64(info.Height); n == 0 || n > engine.DefaultLimits.MaxPixels {
			fmt.Fprintln(os.Stderr, "image dimensions out of range:", inPath)
			os.Exit(1)
		}
		surface := pngs.NewMemorySurface(info.Width, info.Height, 4)
		code := pngs.Decode(data, 0, len(data), surface, nil, 0)
		if !code.Ok() {
			fmt.Fprintln(os.Stderr, "decode failed")
			os.Exit(1)
		}
		img := &image.NRGBA{
			Pix:    surface.Pix(),
			Stride: info.Width * 4,
			Rect:   image.Rect(0, 0, info.Width, info.Height),
		}
		writeImage(outPath, img)
		return
	}

	options := pngs.DefaultOptions
	if asMask {
		options |= pngs.OptionExtractMask
	}
	result, err := pngs.DecodeIndexed(data, options)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("%s: mask=%v greyscale=%v opaque=%v palette=%d\n",
		inPath, result.DecodedAsMask(), result.DecodedAsGreyscale(),
		result.IsOpaque(), result.PaletteSize())

	if dumpPal {
		fmt.Println(hex.Dump(result.Palette[:4*result.PaletteSize()]))
		return
	}

	if outPath != "" {
		img := &image.Gray{
			Pix:    result.Surface.Pix(),
			Stride: info.Width,
			Rect:   image.Rect(0, 0, info.Width, info.Height),
		}
		writeImage(outPath, img)
	}
}

func writeImage(path string, img image.Image) {
	if path == "" {
		fmt.Fprintln(os.Stderr, "missing -out path")
		os.Exit(2)
	}
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
