package cv

import (
	"image"
	"image/color"
	"testing"
)

// solidFrame builds a frame filled with a single gray value.
func solidFrame(w, h int, fill uint8) *Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = fill
		img.Pix[i+1] = fill
		img.Pix[i+2] = fill
		img.Pix[i+3] = 255
	}
	return NewFrame(img)
}

// paintPattern writes a deterministic non-flat pattern into the image at
// the given origin. Equal channels keep luminance identical to the channel
// value.
func paintPattern(img *image.RGBA, ox, oy, w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*37 + y*91 + 17) % 251)
			img.SetRGBA(ox+x, oy+y, rgbaGray(v))
		}
	}
}

func rgbaGray(v uint8) color.RGBA {
	return color.RGBA{R: v, G: v, B: v, A: 255}
}

// patternTemplate builds the same pattern as paintPattern at origin.
func patternTemplate(w, h int) (*image.RGBA, *image.Gray) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	paintPattern(img, 0, 0, w, h)
	return img, ToGray(img)
}

func TestFindTemplateExactMatch(t *testing.T) {
	frame := solidFrame(48, 48, 0)
	paintPattern(frame.Pix, 12, 9, 8, 8)
	tmpl, tmplGray := patternTemplate(8, 8)

	result := FindTemplate(frame, tmpl, tmplGray, DefaultMatchConfig())

	if !result.Found {
		t.Fatalf("expected match, got confidence %.4f", result.Confidence)
	}
	if result.Location != image.Pt(12, 9) {
		t.Errorf("location = %v, want (12,9)", result.Location)
	}
	if result.Confidence < 0.99 {
		t.Errorf("confidence = %.4f, want near 1.0", result.Confidence)
	}
	if result.Width != 8 || result.Height != 8 {
		t.Errorf("matched size = %dx%d, want 8x8", result.Width, result.Height)
	}
}

func TestFindTemplateThresholdBoundary(t *testing.T) {
	// A flat template on a flat frame correlates at exactly 1.0, which
	// pins the score for boundary checks.
	frame := solidFrame(20, 20, 100)
	tmpl, tmplGray := solidFrame(4, 4, 100).Pix, ToGray(solidFrame(4, 4, 100).Pix)

	tests := []struct {
		name      string
		threshold float64
		want      bool
	}{
		{"confidence equals threshold", 1.0, true},
		{"confidence above threshold", 0.8, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultMatchConfig()
			config.Threshold = tt.threshold

			result := FindTemplate(frame, tmpl, tmplGray, config)
			if result.Found != tt.want {
				t.Errorf("Found = %v (confidence %.4f), want %v", result.Found, result.Confidence, tt.want)
			}
		})
	}
}

func TestFindTemplateBelowThreshold(t *testing.T) {
	// Horizontal gradient frame against a vertical gradient template:
	// correlation near zero, so the score stays near zero.
	frame := solidFrame(30, 30, 0)
	for y := 0; y < 30; y++ {
		for x := 0; x < 30; x++ {
			frame.Pix.SetRGBA(x, y, rgbaGray(uint8(x*8)))
		}
	}
	tmpl := image.NewRGBA(image.Rect(0, 0, 6, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			tmpl.SetRGBA(x, y, rgbaGray(uint8(y*40)))
		}
	}

	result := FindTemplate(frame, tmpl, ToGray(tmpl), DefaultMatchConfig())
	if result.Found {
		t.Errorf("expected no match, got confidence %.4f at %v", result.Confidence, result.Location)
	}
}

func TestFindTemplateMidCorrelationRejected(t *testing.T) {
	// The window is constructed so its correlation with the template is
	// exactly 0.6: centered template [-20,20,-20,20], centered window
	// [-35,-5,5,35], dot product 1200 over norms 40*50. The score must be
	// the raw correlation, so the default 0.8 threshold rejects it; a
	// [0,1]-remapped score would report 0.8 and accept.
	frame := NewFrame(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	frame.Pix.SetRGBA(0, 0, rgbaGray(65))
	frame.Pix.SetRGBA(1, 0, rgbaGray(95))
	frame.Pix.SetRGBA(0, 1, rgbaGray(105))
	frame.Pix.SetRGBA(1, 1, rgbaGray(135))

	tmpl := image.NewRGBA(image.Rect(0, 0, 2, 2))
	tmpl.SetRGBA(0, 0, rgbaGray(80))
	tmpl.SetRGBA(1, 0, rgbaGray(120))
	tmpl.SetRGBA(0, 1, rgbaGray(80))
	tmpl.SetRGBA(1, 1, rgbaGray(120))

	result := FindTemplate(frame, tmpl, ToGray(tmpl), DefaultMatchConfig())
	if result.Found {
		t.Errorf("mid-correlation window reported found at confidence %.4f", result.Confidence)
	}
	if result.Confidence < 0.6-1e-9 || result.Confidence > 0.6+1e-9 {
		t.Errorf("confidence = %.6f, want raw correlation 0.6", result.Confidence)
	}
}

func TestFindTemplateAntiCorrelationClampsToZero(t *testing.T) {
	frame := NewFrame(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	frame.Pix.SetRGBA(0, 0, rgbaGray(120))
	frame.Pix.SetRGBA(1, 0, rgbaGray(80))
	frame.Pix.SetRGBA(0, 1, rgbaGray(120))
	frame.Pix.SetRGBA(1, 1, rgbaGray(80))

	tmpl := image.NewRGBA(image.Rect(0, 0, 2, 2))
	tmpl.SetRGBA(0, 0, rgbaGray(80))
	tmpl.SetRGBA(1, 0, rgbaGray(120))
	tmpl.SetRGBA(0, 1, rgbaGray(80))
	tmpl.SetRGBA(1, 1, rgbaGray(120))

	result := FindTemplate(frame, tmpl, ToGray(tmpl), DefaultMatchConfig())
	if result.Found || result.Confidence != 0 {
		t.Errorf("anti-correlated window: got confidence %.4f, want 0", result.Confidence)
	}
}

func TestFindTemplateRasterTieBreak(t *testing.T) {
	// Two identical copies of the pattern. Both windows score 1.0; the
	// first in raster-scan order must win.
	frame := solidFrame(48, 48, 0)
	paintPattern(frame.Pix, 20, 20, 6, 6)
	paintPattern(frame.Pix, 5, 5, 6, 6)
	tmpl, tmplGray := patternTemplate(6, 6)

	result := FindTemplate(frame, tmpl, tmplGray, DefaultMatchConfig())
	if !result.Found {
		t.Fatalf("expected match, got confidence %.4f", result.Confidence)
	}
	if result.Location != image.Pt(5, 5) {
		t.Errorf("location = %v, want raster-first (5,5)", result.Location)
	}
}

func TestFindTemplateAllSuppression(t *testing.T) {
	frame := solidFrame(64, 48, 0)
	paintPattern(frame.Pix, 2, 2, 6, 6)
	paintPattern(frame.Pix, 9, 2, 6, 6)
	paintPattern(frame.Pix, 40, 2, 6, 6)
	tmpl, tmplGray := patternTemplate(6, 6)

	config := DefaultMatchConfig()
	config.Threshold = 0.97
	config.MinDistance = 10

	results := FindTemplateAll(frame, tmpl, tmplGray, config)
	if len(results) != 2 {
		t.Fatalf("got %d matches, want 2 after suppression: %+v", len(results), results)
	}
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			dx := abs(results[i].Location.X - results[j].Location.X)
			dy := abs(results[i].Location.Y - results[j].Location.Y)
			if dx < config.MinDistance && dy < config.MinDistance {
				t.Errorf("matches %v and %v closer than %d px", results[i].Location, results[j].Location, config.MinDistance)
			}
		}
	}
}

func TestFindTemplateAllMaxMatches(t *testing.T) {
	frame := solidFrame(64, 48, 0)
	paintPattern(frame.Pix, 2, 2, 6, 6)
	paintPattern(frame.Pix, 40, 2, 6, 6)
	tmpl, tmplGray := patternTemplate(6, 6)

	config := DefaultMatchConfig()
	config.Threshold = 0.97
	config.MaxMatches = 1

	results := FindTemplateAll(frame, tmpl, tmplGray, config)
	if len(results) != 1 {
		t.Fatalf("got %d matches, want 1 with MaxMatches=1", len(results))
	}
}

func TestFindTemplateSearchRegion(t *testing.T) {
	frame := solidFrame(48, 48, 0)
	paintPattern(frame.Pix, 30, 30, 6, 6)
	tmpl, tmplGray := patternTemplate(6, 6)

	excluding := image.Rect(0, 0, 20, 20)
	including := image.Rect(24, 24, 48, 48)

	config := DefaultMatchConfig()
	config.SearchRegion = &excluding
	if result := FindTemplate(frame, tmpl, tmplGray, config); result.Found {
		t.Errorf("match found in region excluding the pattern: %+v", result)
	}

	config.SearchRegion = &including
	result := FindTemplate(frame, tmpl, tmplGray, config)
	if !result.Found {
		t.Fatalf("no match in region containing the pattern, confidence %.4f", result.Confidence)
	}
	if result.Location != image.Pt(30, 30) {
		t.Errorf("location = %v, want (30,30)", result.Location)
	}
}

func TestFindTemplateLargerThanFrame(t *testing.T) {
	frame := solidFrame(10, 10, 0)
	tmpl, tmplGray := patternTemplate(20, 20)

	result := FindTemplate(frame, tmpl, tmplGray, DefaultMatchConfig())
	if result.Found {
		t.Errorf("oversized template reported found: %+v", result)
	}
}

func TestColorMatchingDiscriminates(t *testing.T) {
	// A red template and a gray patch of identical luminance are
	// indistinguishable on the gray plane but not in color mode.
	frame := solidFrame(30, 30, 0)
	for y := 10; y < 14; y++ {
		for x := 10; x < 14; x++ {
			frame.Pix.SetRGBA(x, y, color.RGBA{R: 76, G: 76, B: 76, A: 255})
		}
	}

	tmpl := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			tmpl.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	grayConfig := DefaultMatchConfig()
	grayResult := FindTemplate(frame, tmpl, ToGray(tmpl), grayConfig)
	if !grayResult.Found || grayResult.Location != image.Pt(10, 10) {
		t.Errorf("grayscale mode: got %+v, want match at (10,10)", grayResult)
	}

	colorConfig := DefaultMatchConfig()
	colorConfig.Grayscale = false
	colorResult := FindTemplate(frame, tmpl, ToGray(tmpl), colorConfig)
	if colorResult.Found {
		t.Errorf("color mode matched across different colors: %+v", colorResult)
	}
}

func TestFindTemplateOffsetFrameBounds(t *testing.T) {
	// Window-scoped captures carry screen-coordinate bounds. Locations must
	// come back in the frame's own coordinate space so Center() lands the
	// cursor on the element without any extra mapping.
	img := image.NewRGBA(image.Rect(100, 50, 148, 98))
	for y := 50; y < 98; y++ {
		for x := 100; x < 148; x++ {
			img.SetRGBA(x, y, rgbaGray(0))
		}
	}
	paintPattern(img, 112, 59, 8, 8)
	frame := NewFrame(img)
	tmpl, tmplGray := patternTemplate(8, 8)

	result := FindTemplate(frame, tmpl, tmplGray, DefaultMatchConfig())
	if !result.Found {
		t.Fatalf("expected match, got confidence %.4f", result.Confidence)
	}
	if result.Location != image.Pt(112, 59) {
		t.Errorf("location = %v, want absolute (112,59)", result.Location)
	}
	if got := result.Center(); got != image.Pt(116, 63) {
		t.Errorf("Center() = %v, want (116,63)", got)
	}
}

func TestMatchResultCenter(t *testing.T) {
	result := &MatchResult{Location: image.Pt(10, 20), Width: 8, Height: 6}
	if got := result.Center(); got != image.Pt(14, 23) {
		t.Errorf("Center() = %v, want (14,23)", got)
	}
}
