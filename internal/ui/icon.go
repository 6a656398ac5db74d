package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

var iconOnce struct {
	sync.Once
	data []byte
}

// iconBytes renders the tray icon at first use: a 16x16 solid square. Good
// enough until the product ships real artwork.
func iconBytes() []byte {
	iconOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 16, 16))
		fill := color.RGBA{R: 0x2d, G: 0x6c, B: 0xdf, A: 0xff}
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				img.Set(x, y, fill)
			}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err == nil {
			iconOnce.data = buf.Bytes()
		}
	})
	return iconOnce.data
}
