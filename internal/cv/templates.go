package cv

import "fmt"

// Template is the metadata side of a reference image. The decoded pixel
// buffers live in the template store; matching code receives them alongside
// this descriptor.
type Template struct {
	Name      string
	Category  string
	Version   string
	Path      string
	Threshold float64
	Region    *Region
}

// Key returns the composite identity used for caching and logging.
func (t Template) Key() string {
	if t.Version == "" {
		return fmt.Sprintf("%s/%s", t.Category, t.Name)
	}
	return fmt.Sprintf("%s/%s@%s", t.Category, t.Name, t.Version)
}

// WithThreshold returns a copy with an overridden matching threshold.
func (t Template) WithThreshold(threshold float64) Template {
	t.Threshold = threshold
	return t
}

// InRegion returns a copy restricted to a search region.
func (t Template) InRegion(x1, y1, x2, y2 int) Template {
	region := NewRegion(x1, y1, x2, y2)
	t.Region = &region
	return t
}
