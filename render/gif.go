package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"os"
	"runtime"

	"github.com/carbocation/go-quantize/quantize"
	"github.com/carbocation/pfx"
)

type indexedPaletted struct {
	key   int
	image *image.Paletted
}

// MakeGIF assembles ordered frames into an animated gif. The delay between
// frames is in hundredths of a second. The quantizer sees *all* input frames,
// and the resulting palette is shared across the output so colors do not
// flicker between frames.
func MakeGIF(frames []image.Image, delay int, withTransparency bool) (*gif.GIF, error) {
	outGif := &gif.GIF{}

	quantizer := quantize.MedianCutQuantizer{
		Aggregation:    quantize.Mean,
		Weighting:      nil,
		AddTransparent: withTransparency,
	}

	pal := quantizer.QuantizeMultiple(make([]color.Color, 0, 256), frames)

	// Palettization is surprisingly slow and worth parallelizing.
	palettedImages := make(chan indexedPaletted)
	semaphore := make(chan struct{}, runtime.NumCPU())

	go func() {
		for k, img := range frames {
			semaphore <- struct{}{}

			go func(k int, img image.Image) {
				defer func() { <-semaphore }()

				palettedImage := image.NewPaletted(img.Bounds(), pal)
				draw.Draw(palettedImage, img.Bounds(), img, img.Bounds().Min, draw.Over)

				palettedImages <- indexedPaletted{key: k, image: palettedImage}
			}(k, img)
		}
	}()

	// Reassemble in frame order.
	sorted := make([]*image.Paletted, len(frames))
	for range frames {
		p := <-palettedImages
		sorted[p.key] = p.image
	}

	for _, palettedImage := range sorted {
		outGif.Image = append(outGif.Image, palettedImage)
		outGif.Delay = append(outGif.Delay, delay)
	}

	return outGif, nil
}

// SaveGIF writes an assembled gif to disk.
func SaveGIF(path string, g *gif.GIF) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	return pfx.Err(gif.EncodeAll(f, g))
}
