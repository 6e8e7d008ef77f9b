package cv

import (
	"fmt"
	"image"
)

// TemplateSource supplies decoded template images by composite identity.
// pkg/templates implements it; tests substitute fakes.
type TemplateSource interface {
	Images(name, category, version string) (*image.RGBA, *image.Gray, Template, error)
}

// Service binds a Capturer and a TemplateSource into the perception calls the
// rest of the engine uses. Every Find captures a fresh frame: frames are
// never cached, a stale frame is worse than a slow one when the screen is
// the only source of truth.
type Service struct {
	capturer  Capturer
	source    TemplateSource
	threshold float64
	grayscale bool
}

// NewService creates a CV service with the configured default threshold and
// grayscale mode.
func NewService(capturer Capturer, source TemplateSource, threshold float64, grayscale bool) *Service {
	return &Service{
		capturer:  capturer,
		source:    source,
		threshold: threshold,
		grayscale: grayscale,
	}
}

// Capture grabs a fresh frame of the full surface.
func (s *Service) Capture() (*Frame, error) {
	return s.capturer.Capture(nil)
}

// Find captures a fresh frame and matches the named template against it.
func (s *Service) Find(name, category, version string) (*MatchResult, error) {
	frame, err := s.Capture()
	if err != nil {
		return nil, err
	}
	return s.FindInFrame(frame, name, category, version)
}

// FindInFrame matches the named template against an already captured frame.
func (s *Service) FindInFrame(frame *Frame, name, category, version string) (*MatchResult, error) {
	rgba, gray, tmpl, err := s.source.Images(name, category, version)
	if err != nil {
		return nil, fmt.Errorf("load template %s/%s: %w", category, name, err)
	}

	config := s.matchConfig(tmpl)
	result := FindTemplate(frame, rgba, gray, config)
	result.Template = tmpl.Key()
	return result, nil
}

// FindAll captures a fresh frame and returns every suppressed occurrence of
// the named template.
func (s *Service) FindAll(name, category, version string, minDistance, maxMatches int) ([]MatchResult, error) {
	frame, err := s.Capture()
	if err != nil {
		return nil, err
	}

	rgba, gray, tmpl, err := s.source.Images(name, category, version)
	if err != nil {
		return nil, fmt.Errorf("load template %s/%s: %w", category, name, err)
	}

	config := s.matchConfig(tmpl)
	if minDistance > 0 {
		config.MinDistance = minDistance
	}
	config.MaxMatches = maxMatches

	results := FindTemplateAll(frame, rgba, gray, config)
	for i := range results {
		results[i].Template = tmpl.Key()
	}
	return results, nil
}

// matchConfig builds a per-call config, letting the template's declared
// threshold and region override the service defaults.
func (s *Service) matchConfig(tmpl Template) *MatchConfig {
	config := DefaultMatchConfig()
	config.Threshold = s.threshold
	config.Grayscale = s.grayscale

	if tmpl.Threshold > 0 {
		config.Threshold = tmpl.Threshold
	}
	if tmpl.Region != nil {
		config.SearchRegion = tmpl.Region.Rect()
	}
	return config
}
