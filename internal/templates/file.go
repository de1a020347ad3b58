// Package templates keeps the template library in sync with a directory of
// YAML files. Each file describes one public template document.
package templates

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/starford/mindmaps/internal/apperr"
	"github.com/starford/mindmaps/internal/models"
)

// SystemAuthor owns every synced template. No account has this id, so
// templates cannot be edited through the API.
const SystemAuthor = "system"

// Namespace derives stable template document ids from slugs.
var Namespace = uuid.MustParse("5f1b7c8e-3a52-4a8e-9d0c-2c4e6b1f7a90")

var slugRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// File is the on-disk template format.
type File struct {
	Slug        string              `yaml:"slug"`
	Title       string              `yaml:"title"`
	Description string              `yaml:"description"`
	Category    models.Category     `yaml:"category"`
	Tags        []string            `yaml:"tags"`
	Nodes       []models.Node       `yaml:"nodes"`
	Connections []models.Connection `yaml:"connections"`
}

// Parse decodes a template file. name is the file's path and supplies the
// slug when the file does not set one.
func Parse(name string, data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, apperr.Validation(fmt.Errorf("%s: %w", name, err))
	}
	if f.Slug == "" {
		f.Slug = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}
	if !slugRe.MatchString(f.Slug) {
		return nil, apperr.Validation(fmt.Errorf("%s: invalid slug %q", name, f.Slug))
	}
	return &f, nil
}

// ID returns the document id of the template with slug.
func ID(slug string) string {
	return uuid.NewSHA1(Namespace, []byte(slug)).String()
}

// MindMap converts f to a validated public template document.
func (f *File) MindMap(now time.Time) (*models.MindMap, error) {
	m := &models.MindMap{
		ID:          ID(f.Slug),
		Title:       f.Title,
		Description: f.Description,
		Nodes:       f.Nodes,
		Connections: f.Connections,
		Author:      SystemAuthor,
		IsPublic:    true,
		Tags:        f.Tags,
		Template:    true,
		Category:    f.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i := range m.Nodes {
		if m.Nodes[i].Size == "" {
			m.Nodes[i].Size = models.SizeMedium
		}
		if m.Nodes[i].Color == "" {
			m.Nodes[i].Color = models.DefaultColor
		}
	}
	m.Normalize()
	if err := m.Validate(); err != nil {
		return nil, apperr.Validation(fmt.Errorf("template %s: %w", f.Slug, err))
	}
	return m, nil
}
