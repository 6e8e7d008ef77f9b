package cv

import (
	"image"
	"math"
	"sort"
)

// MatchResult describes the outcome of matching one template against one
// frame. Confidence is a similarity score in [0,1], not a probability.
// Found is true iff Confidence >= the configured threshold (>= at the
// boundary).
type MatchResult struct {
	Found      bool
	Location   image.Point
	Confidence float64
	Template   string
	Width      int
	Height     int
}

// Center returns the center point of the matched area, which is where a
// click on the element should land.
func (r *MatchResult) Center() image.Point {
	return image.Point{
		X: r.Location.X + r.Width/2,
		Y: r.Location.Y + r.Height/2,
	}
}

// MatchConfig configures a single matching call.
type MatchConfig struct {
	// Threshold is the minimum confidence for a match to count as found.
	Threshold float64
	// Grayscale matches on the luminance plane (the default mode, roughly
	// halves or better the per-call cost). Color matching loses nothing but
	// speed and is only worth it when color is the sole discriminator.
	Grayscale bool
	// SearchRegion limits the scan area when non-nil.
	SearchRegion *image.Rectangle
	// MinDistance is the non-maximum-suppression radius for multi-match:
	// no two reported matches are closer than this in either axis.
	MinDistance int
	// MaxMatches caps multi-match results, 0 = unlimited.
	MaxMatches int
}

// DefaultMatchConfig returns the recommended settings.
func DefaultMatchConfig() *MatchConfig {
	return &MatchConfig{
		Threshold:   0.8,
		Grayscale:   true,
		MinDistance: 10,
	}
}

// FindTemplate scans the frame for the best occurrence of the template.
// The scan proceeds in raster order and keeps a candidate only when it
// strictly beats the best score so far, so exact ties resolve to the first
// candidate in raster-scan order.
//
// The matcher never rescales: the template must have been captured at (or
// scaled to) the frame's resolution. Rescaling here would change the match
// statistics unpredictably, so it is the caller's problem.
func FindTemplate(frame *Frame, tmpl *image.RGBA, tmplGray *image.Gray, config *MatchConfig) *MatchResult {
	if config == nil {
		config = DefaultMatchConfig()
	}

	if config.Grayscale {
		return findGray(frame.Gray(), tmplGray, config)
	}
	return findColor(frame.Pix, tmpl, config)
}

// FindTemplateAll returns all occurrences above threshold, non-maximum
// suppressed so one real UI element is not reported multiple times.
func FindTemplateAll(frame *Frame, tmpl *image.RGBA, tmplGray *image.Gray, config *MatchConfig) []MatchResult {
	if config == nil {
		config = DefaultMatchConfig()
	}

	var candidates []MatchResult
	if config.Grayscale {
		candidates = collectGray(frame.Gray(), tmplGray, config)
	} else {
		candidates = collectColor(frame.Pix, tmpl, config)
	}

	return suppress(candidates, config.MinDistance, config.MaxMatches)
}

// suppress applies non-maximum suppression: candidates are taken best-first
// (confidence descending, raster order on ties) and any later candidate
// within minDistance of an accepted one on both axes is dropped.
func suppress(candidates []MatchResult, minDistance, maxMatches int) []MatchResult {
	if len(candidates) == 0 {
		return nil
	}

	// Candidates arrive in raster order; a stable sort keeps that order
	// within equal confidences.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	var kept []MatchResult
	for _, c := range candidates {
		tooClose := false
		for _, k := range kept {
			dx := abs(c.Location.X - k.Location.X)
			dy := abs(c.Location.Y - k.Location.Y)
			if dx < minDistance && dy < minDistance {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}
		kept = append(kept, c)
		if maxMatches > 0 && len(kept) >= maxMatches {
			break
		}
	}

	return kept
}

func searchBounds(frameBounds image.Rectangle, tw, th int, config *MatchConfig) (image.Rectangle, bool) {
	bounds := frameBounds
	if config.SearchRegion != nil {
		bounds = config.SearchRegion.Intersect(frameBounds)
		if bounds.Empty() {
			return bounds, false
		}
	}
	if tw > bounds.Dx() || th > bounds.Dy() {
		return bounds, false
	}
	return bounds, true
}

func findGray(haystack, needle *image.Gray, config *MatchConfig) *MatchResult {
	tw := needle.Bounds().Dx()
	th := needle.Bounds().Dy()

	bounds, ok := searchBounds(haystack.Bounds(), tw, th, config)
	if !ok {
		return &MatchResult{}
	}

	nSum, nSumSq := grayStats(needle)

	best := -1.0
	bestLoc := image.Point{}

	maxY := bounds.Max.Y - th
	maxX := bounds.Max.X - tw
	for y := bounds.Min.Y; y <= maxY; y++ {
		for x := bounds.Min.X; x <= maxX; x++ {
			score := nccGrayAt(haystack, needle, x, y, tw, th, nSum, nSumSq)
			if score > best {
				best = score
				bestLoc = image.Point{X: x, Y: y}
			}
		}
	}

	return &MatchResult{
		Found:      best >= config.Threshold,
		Location:   bestLoc,
		Confidence: best,
		Width:      tw,
		Height:     th,
	}
}

func collectGray(haystack, needle *image.Gray, config *MatchConfig) []MatchResult {
	tw := needle.Bounds().Dx()
	th := needle.Bounds().Dy()

	bounds, ok := searchBounds(haystack.Bounds(), tw, th, config)
	if !ok {
		return nil
	}

	nSum, nSumSq := grayStats(needle)

	var results []MatchResult
	maxY := bounds.Max.Y - th
	maxX := bounds.Max.X - tw
	for y := bounds.Min.Y; y <= maxY; y++ {
		for x := bounds.Min.X; x <= maxX; x++ {
			score := nccGrayAt(haystack, needle, x, y, tw, th, nSum, nSumSq)
			if score >= config.Threshold {
				results = append(results, MatchResult{
					Found:      true,
					Location:   image.Point{X: x, Y: y},
					Confidence: score,
					Width:      tw,
					Height:     th,
				})
			}
		}
	}
	return results
}

// grayStats precomputes the template's pixel sum and sum of squares so the
// per-position NCC only walks the haystack window.
func grayStats(img *image.Gray) (sum, sumSq float64) {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := (y - bounds.Min.Y) * img.Stride
		for x := 0; x < bounds.Dx(); x++ {
			v := float64(img.Pix[row+x])
			sum += v
			sumSq += v * v
		}
	}
	return sum, sumSq
}

// nccGrayAt computes normalized cross-correlation of the template against the
// haystack window at (x, y). The score is the raw correlation with negative
// values clamped to 0, so a configured threshold compares directly against
// the correlation coefficient.
func nccGrayAt(haystack, needle *image.Gray, x, y, tw, th int, nSum, nSumSq float64) float64 {
	var sumH, sumHN, sumHH float64
	n := float64(tw * th)

	hb := haystack.Bounds()

	for ny := 0; ny < th; ny++ {
		hRow := (y+ny-hb.Min.Y)*haystack.Stride + (x - hb.Min.X)
		nRow := ny * needle.Stride
		for nx := 0; nx < tw; nx++ {
			h := float64(haystack.Pix[hRow+nx])
			v := float64(needle.Pix[nRow+nx])
			sumH += h
			sumHN += h * v
			sumHH += h * h
		}
	}

	numerator := sumHN - sumH*nSum/n
	denomH := math.Sqrt(sumHH - sumH*sumH/n)
	denomN := math.Sqrt(nSumSq - nSum*nSum/n)

	if denomH == 0 || denomN == 0 {
		// Flat template or flat window: correlation is undefined, treat a
		// perfectly flat pair as identical and anything else as no match.
		if denomH == 0 && denomN == 0 && sumH/n == nSum/n {
			return 1.0
		}
		return 0
	}

	correlation := numerator / (denomH * denomN)
	if correlation < 0 {
		return 0
	}
	return correlation
}

func findColor(haystack, needle *image.RGBA, config *MatchConfig) *MatchResult {
	tw := needle.Bounds().Dx()
	th := needle.Bounds().Dy()

	bounds, ok := searchBounds(haystack.Bounds(), tw, th, config)
	if !ok {
		return &MatchResult{}
	}

	best := -1.0
	bestLoc := image.Point{}

	maxY := bounds.Max.Y - th
	maxX := bounds.Max.X - tw
	for y := bounds.Min.Y; y <= maxY; y++ {
		for x := bounds.Min.X; x <= maxX; x++ {
			score := nccColorAt(haystack, needle, x, y, tw, th)
			if score > best {
				best = score
				bestLoc = image.Point{X: x, Y: y}
			}
		}
	}

	return &MatchResult{
		Found:      best >= config.Threshold,
		Location:   bestLoc,
		Confidence: best,
		Width:      tw,
		Height:     th,
	}
}

func collectColor(haystack, needle *image.RGBA, config *MatchConfig) []MatchResult {
	tw := needle.Bounds().Dx()
	th := needle.Bounds().Dy()

	bounds, ok := searchBounds(haystack.Bounds(), tw, th, config)
	if !ok {
		return nil
	}

	var results []MatchResult
	maxY := bounds.Max.Y - th
	maxX := bounds.Max.X - tw
	for y := bounds.Min.Y; y <= maxY; y++ {
		for x := bounds.Min.X; x <= maxX; x++ {
			score := nccColorAt(haystack, needle, x, y, tw, th)
			if score >= config.Threshold {
				results = append(results, MatchResult{
					Found:      true,
					Location:   image.Point{X: x, Y: y},
					Confidence: score,
					Width:      tw,
					Height:     th,
				})
			}
		}
	}
	return results
}

// nccColorAt computes NCC over the three color channels jointly, with the
// same clamped-correlation score as the gray path.
func nccColorAt(haystack, needle *image.RGBA, x, y, tw, th int) float64 {
	var sumH, sumN, sumHN, sumHH, sumNN float64
	n := float64(tw * th * 3)

	hb := haystack.Bounds()

	for ny := 0; ny < th; ny++ {
		hRow := (y+ny-hb.Min.Y)*haystack.Stride + (x-hb.Min.X)*4
		nRow := ny * needle.Stride
		for nx := 0; nx < tw; nx++ {
			hIdx := hRow + nx*4
			nIdx := nRow + nx*4
			for c := 0; c < 3; c++ {
				h := float64(haystack.Pix[hIdx+c])
				v := float64(needle.Pix[nIdx+c])
				sumH += h
				sumN += v
				sumHN += h * v
				sumHH += h * h
				sumNN += v * v
			}
		}
	}

	numerator := sumHN - sumH*sumN/n
	denomH := math.Sqrt(sumHH - sumH*sumH/n)
	denomN := math.Sqrt(sumNN - sumN*sumN/n)

	if denomH == 0 || denomN == 0 {
		if denomH == 0 && denomN == 0 && sumH == sumN {
			return 1.0
		}
		return 0
	}

	correlation := numerator / (denomH * denomN)
	if correlation < 0 {
		return 0
	}
	return correlation
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
