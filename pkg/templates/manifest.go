package templates

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/giapdang/autocapcut/internal/cv"
)

// Definition is one template entry in a manifest file.
type Definition struct {
	Name      string     `yaml:"name"`
	Category  string     `yaml:"category"`
	Version   string     `yaml:"version,omitempty"`
	File      string     `yaml:"file,omitempty"`
	Threshold float64    `yaml:"threshold,omitempty"`
	Region    *RegionDef `yaml:"region,omitempty"`
}

// RegionDef restricts matching to a screen area.
type RegionDef struct {
	X1 int `yaml:"x1"`
	Y1 int `yaml:"y1"`
	X2 int `yaml:"x2"`
	Y2 int `yaml:"y2"`
}

// Manifest is the structure of a template YAML file.
type Manifest struct {
	Templates []Definition `yaml:"templates"`
}

// LoadManifest registers all templates declared in a YAML file.
func (s *Store) LoadManifest(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest %s: %w", path, err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("unmarshal manifest %s: %w", path, err)
	}

	for i, def := range manifest.Templates {
		if def.Name == "" {
			return fmt.Errorf("manifest %s: template %d: name cannot be empty", path, i+1)
		}
		if def.Category == "" {
			return fmt.Errorf("manifest %s: template %d (%s): category cannot be empty", path, i+1, def.Name)
		}

		tmpl := cv.Template{
			Name:      def.Name,
			Category:  def.Category,
			Version:   def.Version,
			Threshold: def.Threshold,
		}
		if def.File != "" {
			tmpl.Path = filepath.Join(s.baseDir, def.File)
		}
		if def.Region != nil {
			region := cv.NewRegion(def.Region.X1, def.Region.Y1, def.Region.X2, def.Region.Y2)
			tmpl.Region = &region
		}

		if err := s.Register(tmpl); err != nil {
			return fmt.Errorf("manifest %s: %w", path, err)
		}
	}

	return nil
}

// LoadManifestDir registers templates from every YAML file in a directory.
func (s *Store) LoadManifestDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read manifest directory %s: %w", dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		if err := s.LoadManifest(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
		loaded++
	}

	if loaded == 0 {
		return fmt.Errorf("no manifest files in %s", dir)
	}
	return nil
}
