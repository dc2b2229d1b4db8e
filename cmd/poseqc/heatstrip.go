package main

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/carbocation/pfx"
	hist2 "github.com/grd/histogram"

	"github.com/danceqc/posemisc/landmark"
)

const (
	heatBins         = 20
	heightMultiplier = 4
	widthMultiplier  = 2
)

// writeHeatStrip renders one column per frame: each column is a histogram of
// that frame's landmark visibilities, log-scaled to grayscale, with the
// frame's mean visibility bin marked in blue. High visibility is at the top,
// so a healthy clip reads as a bright band along the upper edge.
func writeHeatStrip(path string, seq landmark.Sequence) error {
	if len(seq) == 0 {
		return nil
	}

	outImg := image.NewNRGBA(image.Rect(0, 0, len(seq)*widthMultiplier, heatBins*heightMultiplier))

	for x, fr := range seq {
		if fr.Empty() {
			continue
		}

		hg, err := hist2.NewHistogram(hist2.Range(0, heatBins, 1.0/heatBins))
		if err != nil {
			return pfx.Err(err)
		}

		for _, lm := range fr.Landmarks {
			hg.Add(clamp01(lm.Visibility))
		}

		maxCount := 0
		for y := 0; y < heatBins; y++ {
			if v := hg.Get(y); v > maxCount {
				maxCount = v
			}
		}

		logCount := math.Log1p(float64(maxCount))

		for y := 0; y < heatBins; y++ {
			logRatio := math.Log1p(float64(hg.Get(y))) / logCount

			val := uint8(math.Floor(255 * logRatio))
			if val == 0 {
				continue
			}

			// Bin 0 holds visibility near 0; draw it at the bottom.
			row := heatBins - 1 - y
			for mult := 0; mult < heightMultiplier; mult++ {
				for xmul := 0; xmul < widthMultiplier; xmul++ {
					outImg.Set(x*widthMultiplier+xmul, row*heightMultiplier+mult, color.NRGBA{R: val, G: val, B: val, A: 255})
				}
			}
		}

		// Mark the frame's mean visibility
		binWithMean, err := hg.Find(clamp01(fr.Landmarks.MeanVisibility()))
		if err != nil {
			return pfx.Err(err)
		}
		row := heatBins - 1 - binWithMean
		for mult := 0; mult < heightMultiplier; mult++ {
			for xmul := 0; xmul < widthMultiplier; xmul++ {
				outImg.Set(x*widthMultiplier+xmul, row*heightMultiplier+mult, color.NRGBA{R: 0, G: 0, B: 255, A: 255})
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	if err := png.Encode(f, outImg); err != nil {
		f.Close()
		return pfx.Err(err)
	}

	return pfx.Err(f.Close())
}

// clamp01 keeps a visibility inside the histogram range; 1.0 itself would
// land one past the last bin.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v >= 1 {
		return 1 - 1e-9
	}
	return v
}
