// Package rotation decides whether a scanned page raster is sideways or
// upside down and corrects it before extraction. Pure heuristic, no model
// call: text pages score higher when their line structure runs horizontal.
package rotation

import (
	"image"
	"log"
	"math"

	"github.com/disintegration/imaging"
)

// DefaultThreshold is the minimum best/zero score ratio required before a
// non-zero angle is adopted. Noise can make a wrong orientation score
// marginally higher than the true one, so absent clear evidence we do not
// rotate.
const DefaultThreshold = 1.2

// scoring runs on a thumbnail; the chosen angle is applied to the full raster
const scoreMaxDim = 800

var candidates = []int{0, 90, 180, 270}

// DetectAndCorrect scores the four candidate orientations and returns the
// corrected raster together with the chosen clockwise angle. The input is
// returned untouched (angle 0) when no orientation is convincingly better.
func DetectAndCorrect(img image.Image) (*image.NRGBA, int) {
	angle := Detect(img, DefaultThreshold)
	return Apply(img, angle), angle
}

// Detect returns the candidate angle in {0, 90, 180, 270} with the maximal
// orientation score, falling back to 0 unless best/zero >= threshold.
func Detect(img image.Image, threshold float64) int {
	gray := imaging.Grayscale(thumbnail(img))

	scores := make(map[int]float64, len(candidates))
	for _, a := range candidates {
		scores[a] = orientationScore(rotateGray(gray, a))
	}

	best := 0
	bestScore := scores[0]
	for _, a := range candidates { // fixed order so ties keep the smaller angle
		if scores[a] > bestScore {
			best = a
			bestScore = scores[a]
		}
	}

	if best != 0 {
		zero := scores[0]
		var ratio float64
		switch {
		case zero > 0:
			ratio = bestScore / zero
		case bestScore > 0:
			ratio = math.Inf(1)
		default:
			ratio = 1.0
		}
		if ratio < threshold {
			log.Printf("rotation skip: best=%d score=%.4f not significantly better than 0 (score=%.4f ratio=%.2f)", best, bestScore, scores[0], ratio)
			return 0
		}
		log.Printf("rotation detected: %d (score=%.4f, 0 score=%.4f)", best, bestScore, scores[0])
	}
	return best
}

// Apply rotates img clockwise by angle (0, 90, 180 or 270).
func Apply(img image.Image, angle int) *image.NRGBA {
	switch angle {
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	}
	return imaging.Clone(img)
}

func rotateGray(img *image.NRGBA, angle int) *image.NRGBA {
	if angle == 0 {
		return img
	}
	return Apply(img, angle)
}

func thumbnail(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= scoreMaxDim && b.Dy() <= scoreMaxDim {
		return img
	}
	if b.Dx() >= b.Dy() {
		return imaging.Resize(img, scoreMaxDim, 0, imaging.Box)
	}
	return imaging.Resize(img, 0, scoreMaxDim, imaging.Box)
}
