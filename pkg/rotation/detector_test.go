package rotation

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stripes draws dark bars on a white page; horizontal bars mimic text lines.
func stripes(w, h int, horizontal bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := y
			if !horizontal {
				v = x
			}
			c := color.NRGBA{255, 255, 255, 255}
			if (v/12)%2 == 0 {
				c = color.NRGBA{20, 20, 20, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestDetectUprightPage(t *testing.T) {
	img := stripes(400, 300, true)
	angle := Detect(img, DefaultThreshold)
	assert.Equal(t, 0, angle)
}

func TestDetectSidewaysPage(t *testing.T) {
	img := stripes(300, 400, false) // vertical bars: page rotated a quarter turn
	angle := Detect(img, DefaultThreshold)
	require.Contains(t, []int{90, 270}, angle)

	corrected, applied := DetectAndCorrect(img)
	assert.Equal(t, angle, applied)
	// corrected raster must have the bars horizontal again
	assert.Equal(t, 400, corrected.Bounds().Dx())
	assert.Equal(t, 300, corrected.Bounds().Dy())
}

func TestDetectBlankPageDoesNotRotate(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
		}
	}
	// all scores are zero; the asymmetric guard must keep the page as-is
	angle := Detect(img, DefaultThreshold)
	assert.Equal(t, 0, angle)

	corrected, applied := DetectAndCorrect(img)
	assert.Equal(t, 0, applied)
	assert.Equal(t, img.Bounds(), corrected.Bounds())
}

func TestDetectHighThresholdSuppressesRotation(t *testing.T) {
	img := stripes(300, 400, false)
	// an absurd threshold can never be met, so even an obviously sideways
	// page stays unrotated
	assert.Equal(t, 0, Detect(img, 1e9))
}

func TestApplyAngles(t *testing.T) {
	img := stripes(40, 20, true)

	r90 := Apply(img, 90)
	assert.Equal(t, 20, r90.Bounds().Dx())
	assert.Equal(t, 40, r90.Bounds().Dy())

	r180 := Apply(img, 180)
	assert.Equal(t, 40, r180.Bounds().Dx())
	assert.Equal(t, 20, r180.Bounds().Dy())

	r270 := Apply(img, 270)
	assert.Equal(t, 20, r270.Bounds().Dx())

	r0 := Apply(img, 0)
	assert.Equal(t, img.Bounds(), r0.Bounds())
}
