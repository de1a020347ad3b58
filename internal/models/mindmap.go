// Package models defines the domain types for mind maps.
package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Size controls a node's rendered footprint.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// Valid reports whether s is one of the known sizes.
func (s Size) Valid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	}
	return false
}

// Footprint returns the rendered width and height of a node of this size.
// Unknown sizes render as medium.
func (s Size) Footprint() (w, h float64) {
	switch s {
	case SizeSmall:
		return 80, 40
	case SizeLarge:
		return 120, 60
	default:
		return 100, 50
	}
}

// Category classifies a mind map in the public gallery.
type Category string

const (
	CategoryBusiness  Category = "Business"
	CategoryEducation Category = "Education"
	CategoryCreative  Category = "Creative"
	CategoryPersonal  Category = "Personal"
	CategoryOther     Category = "Other"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryBusiness, CategoryEducation, CategoryCreative, CategoryPersonal, CategoryOther}

// Palette is the fixed set of colors offered by the editor.
var Palette = []string{"#ec4899", "#6b7280", "#000000", "#3b82f6", "#10b981", "#f59e0b", "#ef4444", "#8b5cf6"}

// DefaultColor is the first palette entry.
const DefaultColor = "#ec4899"

var hexColorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidColor reports whether c is a #rgb or #rrggbb hex color.
func ValidColor(c string) bool {
	return hexColorRe.MatchString(c)
}

// Node is a positioned, labeled, colored shape on the canvas.
type Node struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Text  string  `json:"text"`
	Color string  `json:"color"`
	Size  Size    `json:"size"`
}

// Validate implements validation.Validatable.
func (n Node) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.ID, validation.Required),
		validation.Field(&n.Text, validation.By(notBlank)),
		validation.Field(&n.Color, validation.Required, validation.Match(hexColorRe).Error("must be a hex color")),
		validation.Field(&n.Size, validation.Required, validation.In(SizeSmall, SizeMedium, SizeLarge)),
	)
}

// Connection is a directed edge between two node ids.
type Connection struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Validate implements validation.Validatable.
func (c Connection) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.From, validation.Required),
		validation.Field(&c.To, validation.Required),
	)
}

// MindMap is a persisted mind-map document.
type MindMap struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
	Author      string       `json:"author"`
	IsPublic    bool         `json:"isPublic"`
	Tags        []string     `json:"tags"`
	Template    bool         `json:"template"`
	Category    Category     `json:"category"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Normalize trims text fields, canonicalizes tags, and fills defaults for
// absent collections and category.
func (m *MindMap) Normalize() {
	m.Title = strings.TrimSpace(m.Title)
	m.Description = strings.TrimSpace(m.Description)
	m.Tags = NormalizeTags(m.Tags)
	if m.Nodes == nil {
		m.Nodes = []Node{}
	}
	if m.Connections == nil {
		m.Connections = []Connection{}
	}
	if m.Category == "" {
		m.Category = CategoryOther
	}
}

// Validate implements validation.Validatable. It checks field rules and the
// graph invariant that every connection endpoint names a node in the map.
func (m MindMap) Validate() error {
	err := validation.ValidateStruct(&m,
		validation.Field(&m.Title, validation.By(notBlank), validation.Length(0, 200)),
		validation.Field(&m.Description, validation.Length(0, 2000)),
		validation.Field(&m.Author, validation.Required),
		validation.Field(&m.Category, validation.Required, validation.In(categoryValues()...)),
		validation.Field(&m.Nodes),
		validation.Field(&m.Connections),
	)
	if err != nil {
		return err
	}
	return validateGraph(m.Nodes, m.Connections)
}

// MindMapDraft is the input for creating a document.
type MindMapDraft struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
	IsPublic    bool         `json:"isPublic"`
	Tags        []string     `json:"tags"`
	Category    Category     `json:"category"`
}

// MindMapPatch is a partial update. A nil field is absent and leaves the
// stored value alone; a non-nil field overwrites it, including empty
// strings, false, and empty slices.
type MindMapPatch struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Nodes       *[]Node       `json:"nodes,omitempty"`
	Connections *[]Connection `json:"connections,omitempty"`
	IsPublic    *bool         `json:"isPublic,omitempty"`
	Tags        *[]string     `json:"tags,omitempty"`
	Category    *Category     `json:"category,omitempty"`
}

// Empty reports whether the patch carries no fields.
func (p MindMapPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Nodes == nil && p.Connections == nil &&
		p.IsPublic == nil && p.Tags == nil && p.Category == nil
}

// Apply overwrites every present field of m.
func (p MindMapPatch) Apply(m *MindMap) {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.Nodes != nil {
		m.Nodes = append([]Node{}, (*p.Nodes)...)
	}
	if p.Connections != nil {
		m.Connections = append([]Connection{}, (*p.Connections)...)
	}
	if p.IsPublic != nil {
		m.IsPublic = *p.IsPublic
	}
	if p.Tags != nil {
		m.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.Category != nil {
		m.Category = *p.Category
	}
}

// NormalizeTags trims tags and drops blanks and duplicates, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ParseCategory returns the category named s (case-insensitive).
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

func validateGraph(nodes []Node, conns []Connection) error {
	ids := make(map[string]struct{}, len(nodes))
	for i, n := range nodes {
		if _, dup := ids[n.ID]; dup {
			return validation.Errors{"nodes": fmt.Errorf("node %d: duplicate id %q", i, n.ID)}
		}
		ids[n.ID] = struct{}{}
	}
	for i, c := range conns {
		if _, ok := ids[c.From]; !ok {
			return validation.Errors{"connections": fmt.Errorf("connection %d: unknown source node %q", i, c.From)}
		}
		if _, ok := ids[c.To]; !ok {
			return validation.Errors{"connections": fmt.Errorf("connection %d: unknown target node %q", i, c.To)}
		}
	}
	return nil
}

func categoryValues() []any {
	out := make([]any, len(Categories))
	for i, c := range Categories {
		out[i] = c
	}
	return out
}

func notBlank(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return validation.NewError("validation_required", "cannot be blank")
	}
	return nil
}
