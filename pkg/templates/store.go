// Package templates manages the reference images the perception loop matches
// against. Templates are declared in YAML manifests, stored on disk as
// category/name[_version].png, decoded once on first access, and cached for
// the process lifetime until explicitly invalidated.
package templates

import (
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/giapdang/autocapcut/internal/cv"
)

// ErrTemplateInvalid reports a template that fails validation: missing file,
// undecodable content, or zero dimensions. It is a configuration problem,
// not a per-item failure, and is never retried.
type ErrTemplateInvalid struct {
	Key string
	Err error
}

func (e *ErrTemplateInvalid) Error() string {
	return fmt.Sprintf("template %s invalid: %v", e.Key, e.Err)
}

func (e *ErrTemplateInvalid) Unwrap() error { return e.Err }

// Retryable marks template problems as terminal for the retry controller.
func (e *ErrTemplateInvalid) Retryable() bool { return false }

// Template is a cached, decoded reference image. The pixel buffers are
// immutable once loaded; Invalidate unlinks the cache entry but never
// mutates a Template that a match may still be holding.
type Template struct {
	cv.Template

	Image    *image.RGBA
	Gray     *image.Gray
	Width    int
	Height   int
	Checksum uint32
}

// Validation is the outcome of checking a template asset on disk.
type Validation struct {
	ValidDimensions bool
	Decodable       bool
}

// OK reports whether the asset passed every check.
func (v Validation) OK() bool {
	return v.ValidDimensions && v.Decodable
}

type cacheKey struct {
	name     string
	category string
	version  string
}

// Store holds template definitions and their decoded image cache. Reads are
// safe concurrently with the hot loop; invalidation swaps map entries under
// the write lock and leaves handed-out Templates untouched.
type Store struct {
	mu      sync.RWMutex
	baseDir string
	defs    map[cacheKey]cv.Template
	cache   map[cacheKey]*Template
}

// NewStore creates a store rooted at the template asset directory.
func NewStore(baseDir string) *Store {
	return &Store{
		baseDir: baseDir,
		defs:    make(map[cacheKey]cv.Template),
		cache:   make(map[cacheKey]*Template),
	}
}

// Register adds a template definition programmatically.
func (s *Store) Register(def cv.Template) error {
	if def.Name == "" {
		return fmt.Errorf("template name cannot be empty")
	}
	if def.Category == "" {
		return fmt.Errorf("template %s: category cannot be empty", def.Name)
	}

	if def.Path == "" {
		def.Path = s.assetPath(def.Name, def.Category, def.Version)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[cacheKey{def.Name, def.Category, def.Version}] = def
	return nil
}

// Has reports whether a definition exists for the identity.
func (s *Store) Has(name, category, version string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.defs[cacheKey{name, category, version}]
	return ok
}

// List returns the keys of all registered definitions.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.defs))
	for _, def := range s.defs {
		keys = append(keys, def.Key())
	}
	return keys
}

// Definitions returns a copy of every registered definition.
func (s *Store) Definitions() []cv.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]cv.Template, 0, len(s.defs))
	for _, def := range s.defs {
		defs = append(defs, def)
	}
	return defs
}

// Get returns the decoded template for an explicit (name, category, version)
// identity, loading and caching it on first access. The store never guesses
// a version: the caller states which UI generation it expects.
func (s *Store) Get(name, category, version string) (*Template, error) {
	key := cacheKey{name, category, version}

	s.mu.RLock()
	if cached, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return cached, nil
	}
	def, defined := s.defs[key]
	s.mu.RUnlock()

	if !defined {
		// Undeclared templates still resolve by path convention, so ad-hoc
		// assets can be matched without a manifest entry.
		def = cv.Template{
			Name:     name,
			Category: category,
			Version:  version,
			Path:     s.assetPath(name, category, version),
		}
	}

	loaded, err := load(def)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another goroutine may have loaded it meanwhile; keep the first instance
	// so repeated Gets return identical pointers.
	if cached, ok := s.cache[key]; ok {
		return cached, nil
	}
	s.cache[key] = loaded
	return loaded, nil
}

// Resolve tries the given versions in the declared order and returns the
// first whose asset exists on disk. The empty string means the unversioned
// base file. This is the documented deterministic fallback; the store never
// infers versions at runtime.
func (s *Store) Resolve(name, category string, versions ...string) (*Template, error) {
	if len(versions) == 0 {
		versions = []string{""}
	}

	var lastErr error
	for _, version := range versions {
		tmpl, err := s.Get(name, category, version)
		if err == nil {
			return tmpl, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no version of %s/%s resolved (tried %d): %w", category, name, len(versions), lastErr)
}

// Images implements cv.TemplateSource.
func (s *Store) Images(name, category, version string) (*image.RGBA, *image.Gray, cv.Template, error) {
	tmpl, err := s.Get(name, category, version)
	if err != nil {
		return nil, nil, cv.Template{}, err
	}
	return tmpl.Image, tmpl.Gray, tmpl.Template, nil
}

// Invalidate drops every cached version of (name, category). The next Get
// decodes the asset again. In-flight matches keep their own Template pointer
// and are unaffected.
func (s *Store) Invalidate(name, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.cache {
		if key.name == name && key.category == category {
			delete(s.cache, key)
		}
	}
}

// Validate checks the asset on disk without touching the cache. Management
// tooling runs this; the hot path never does.
func (s *Store) Validate(name, category, version string) (Validation, error) {
	def := cv.Template{
		Name:     name,
		Category: category,
		Version:  version,
		Path:     s.assetPath(name, category, version),
	}

	s.mu.RLock()
	if declared, ok := s.defs[cacheKey{name, category, version}]; ok {
		def = declared
	}
	s.mu.RUnlock()

	var v Validation

	file, err := os.Open(def.Path)
	if err != nil {
		return v, &ErrTemplateInvalid{Key: def.Key(), Err: err}
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return v, &ErrTemplateInvalid{Key: def.Key(), Err: fmt.Errorf("decode: %w", err)}
	}
	v.Decodable = true

	bounds := img.Bounds()
	v.ValidDimensions = bounds.Dx() > 0 && bounds.Dy() > 0
	if !v.ValidDimensions {
		return v, &ErrTemplateInvalid{Key: def.Key(), Err: fmt.Errorf("zero dimensions %dx%d", bounds.Dx(), bounds.Dy())}
	}

	return v, nil
}

// assetPath maps an identity to its on-disk file:
// baseDir/category/name_version.png, or baseDir/category/name.png for the
// unversioned base.
func (s *Store) assetPath(name, category, version string) string {
	filename := name + ".png"
	if version != "" {
		filename = fmt.Sprintf("%s_%s.png", name, version)
	}
	return filepath.Join(s.baseDir, category, filename)
}

// load decodes the asset and precomputes the gray plane and checksum.
func load(def cv.Template) (*Template, error) {
	file, err := os.Open(def.Path)
	if err != nil {
		return nil, &ErrTemplateInvalid{Key: def.Key(), Err: err}
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, &ErrTemplateInvalid{Key: def.Key(), Err: fmt.Errorf("decode: %w", err)}
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, &ErrTemplateInvalid{Key: def.Key(), Err: fmt.Errorf("zero dimensions %dx%d", bounds.Dx(), bounds.Dy())}
	}

	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(bounds)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				rgba.Set(x, y, img.At(x, y))
			}
		}
	}

	return &Template{
		Template: def,
		Image:    rgba,
		Gray:     cv.ToGray(rgba),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Checksum: crc32.ChecksumIEEE(rgba.Pix),
	}, nil
}
