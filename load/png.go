// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package load

// png.go decodes images into RGBA mip chains ready for GPU upload.

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders.
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// Mip is one level of decoded pixel data, tightly packed RGBA.
type Mip struct {
	Data     []byte
	Width    uint16
	Height   uint16
	Bpp      uint8
	Channels uint8
}

// Image decodes raw file bytes into RGBA and optionally generates
// the full mip chain by successive half-size downscales.
func Image(raw []byte, withMips bool) ([]Mip, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("load: image decode: %w", err)
	}
	rgba := toRGBA(src)
	mips := []Mip{asMip(rgba)}
	if !withMips {
		return mips, nil
	}
	w, h := rgba.Bounds().Dx(), rgba.Bounds().Dy()
	for w > 1 || h > 1 {
		w = max(w/2, 1)
		h = max(h/2, 1)
		next := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(next, next.Bounds(), rgba, rgba.Bounds(), xdraw.Src, nil)
		mips = append(mips, asMip(next))
		rgba = next
	}
	return mips, nil
}

// toRGBA converts any decoded image to tightly packed RGBA.
func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Stride == rgba.Bounds().Dx()*4 {
		return rgba
	}
	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(rgba, rgba.Bounds(), src, b.Min, xdraw.Src)
	return rgba
}

func asMip(rgba *image.RGBA) Mip {
	b := rgba.Bounds()
	return Mip{
		Data:     rgba.Pix,
		Width:    uint16(b.Dx()),
		Height:   uint16(b.Dy()),
		Bpp:      4,
		Channels: 4,
	}
}
