package rotation

import (
	"image"
	"math"
)

const (
	sobelThreshold = 100 // gradient magnitude above which a pixel is an edge
	houghVotes     = 100 // accumulator votes required to count a line
)

// orientationScore rates how "upright" a grayscale raster looks. Correctly
// oriented text has strong horizontal structure: the row projection of the
// edge map varies much more than the column projection, and a line transform
// finds mostly near-horizontal segments.
//
//	score = 0.6*(row variance / column variance) + 0.4*(horizontal line count)
func orientationScore(gray *image.NRGBA) float64 {
	edges := sobelEdges(gray)

	rowSums := make([]float64, edges.h)
	colSums := make([]float64, edges.w)
	for y := 0; y < edges.h; y++ {
		for x := 0; x < edges.w; x++ {
			if edges.at(x, y) {
				rowSums[y]++
				colSums[x]++
			}
		}
	}

	hVar := variance(rowSums)
	vVar := variance(colSums)
	ratio := hVar
	if vVar > 0 {
		ratio = hVar / vVar
	}

	return ratio*0.6 + float64(horizontalLines(edges))*0.4
}

type edgeMap struct {
	w, h int
	bits []bool
}

func (e *edgeMap) at(x, y int) bool { return e.bits[y*e.w+x] }

// sobelEdges computes a binary edge map from the luminance channel.
func sobelEdges(gray *image.NRGBA) *edgeMap {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	lum := make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// grayscale NRGBA: R==G==B
			lum[y*w+x] = int(gray.NRGBAAt(b.Min.X+x, b.Min.Y+y).R)
		}
	}

	e := &edgeMap{w: w, h: h, bits: make([]bool, w*h)}
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -lum[(y-1)*w+x-1] + lum[(y-1)*w+x+1] +
				-2*lum[y*w+x-1] + 2*lum[y*w+x+1] +
				-lum[(y+1)*w+x-1] + lum[(y+1)*w+x+1]
			gy := -lum[(y-1)*w+x-1] - 2*lum[(y-1)*w+x] - lum[(y-1)*w+x+1] +
				lum[(y+1)*w+x-1] + 2*lum[(y+1)*w+x] + lum[(y+1)*w+x+1]
			if gx < 0 {
				gx = -gx
			}
			if gy < 0 {
				gy = -gy
			}
			if gx+gy >= sobelThreshold*2 {
				e.bits[y*w+x] = true
			}
		}
	}
	return e
}

var (
	sinTab [180]float64
	cosTab [180]float64
)

func init() {
	for t := 0; t < 180; t++ {
		rad := float64(t) * math.Pi / 180
		sinTab[t] = math.Sin(rad)
		cosTab[t] = math.Cos(rad)
	}
}

// horizontalLines runs a Hough transform over the edge map and counts
// accumulator cells with enough votes whose line direction is within 15
// degrees of horizontal. In the normal-angle parameterization a horizontal
// segment has theta near 90.
func horizontalLines(e *edgeMap) int {
	diag := int(math.Ceil(math.Hypot(float64(e.w), float64(e.h))))
	nRho := 2*diag + 1
	acc := make([]int, 180*nRho)

	for y := 0; y < e.h; y++ {
		for x := 0; x < e.w; x++ {
			if !e.at(x, y) {
				continue
			}
			for t := 0; t < 180; t++ {
				rho := int(math.Round(float64(x)*cosTab[t]+float64(y)*sinTab[t])) + diag
				acc[t*nRho+rho]++
			}
		}
	}

	count := 0
	for t := 76; t <= 104; t++ { // |theta-90| < 15
		for r := 0; r < nRho; r++ {
			if acc[t*nRho+r] >= houghVotes {
				count++
			}
		}
	}
	return count
}

func variance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	sum := 0.0
	for _, v := range vals {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(vals))
}
