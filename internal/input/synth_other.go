//go:build !windows

package input

import "fmt"

// unsupportedSynthesizer reports failure on platforms without an input
// backend. Detection still works everywhere; only dispatch is
// platform-bound.
type unsupportedSynthesizer struct{}

// NewSynthesizer returns the platform input synthesizer.
func NewSynthesizer() Synthesizer {
	return &unsupportedSynthesizer{}
}

func (s *unsupportedSynthesizer) MoveAndClick(x, y int) error {
	return fmt.Errorf("input synthesis not supported on this platform")
}

func (s *unsupportedSynthesizer) KeyCombo(keys ...string) error {
	return fmt.Errorf("input synthesis not supported on this platform")
}
