package ocr

import (
	"context"
	"image"
	"os"

	_ "image/jpeg"
	_ "image/png"
)

// BrightnessAnalyzer implements domain.PhotoAnalyzer with a luminance
// check. An undecodable file yields no flags; face detection requires an
// external vision backend and is not attempted here.
type BrightnessAnalyzer struct {
	// MinLuminance is the average luminance (0-255) below which the photo
	// is flagged too dark. Zero means the default of 40.
	MinLuminance float64
}

const defaultMinLuminance = 40.0

// CheckPhotoQuality decodes the image and flags it when too dark.
func (a *BrightnessAnalyzer) CheckPhotoQuality(ctx context.Context, filePath string) []string {
	if ctx.Err() != nil {
		return nil
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil
	}

	min := a.MinLuminance
	if min <= 0 {
		min = defaultMinLuminance
	}

	if averageLuminance(img) < min {
		return []string{"PHOTO_OR_IMAGE_TOO_DARK"}
	}
	return nil
}

// averageLuminance samples the image on a coarse grid; full iteration is
// unnecessary for a brightness estimate.
func averageLuminance(img image.Image) float64 {
	bounds := img.Bounds()
	if bounds.Empty() {
		return 0
	}

	stepX := bounds.Dx() / 64
	if stepX < 1 {
		stepX = 1
	}
	stepY := bounds.Dy() / 64
	if stepY < 1 {
		stepY = 1
	}

	var total float64
	var count int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma, scaled from 16-bit channels.
			total += (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}
