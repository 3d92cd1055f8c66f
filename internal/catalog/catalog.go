// Package catalog holds the site's read-only content: the service and
// article records that pages are rendered from, indexed by slug.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var defaultContent []byte

// DefaultServiceImage is used for services without an image of their own.
const DefaultServiceImage = "symbol.png"

// Service is one offering with its long-form detail page.
type Service struct {
	Slug          string   `yaml:"slug"`
	Title         string   `yaml:"title"`
	Summary       string   `yaml:"summary"`
	Image         string   `yaml:"image"`
	LongCopy      string   `yaml:"long_copy"`
	ValueTitle    string   `yaml:"value_title"`
	Bullets       []string `yaml:"bullets"`
	OutcomesTitle string   `yaml:"outcomes_title"`
	Outcomes      []string `yaml:"outcomes"`
	SustainTitle  string   `yaml:"sustain_title"`
	SustainPoints []string `yaml:"sustain_points"`
}

// Article is one editorial post. Body holds trusted HTML fragments.
type Article struct {
	Slug        string   `yaml:"slug"`
	Title       string   `yaml:"title"`
	Author      string   `yaml:"author"`
	Date        string   `yaml:"date"`
	ReadingTime string   `yaml:"reading_time"`
	Image       string   `yaml:"image"`
	Tags        []string `yaml:"tags"`
	Excerpt     string   `yaml:"excerpt"`
	Body        []string `yaml:"body"`
}

// Highlight is one panel of the home page operations band.
type Highlight struct {
	Title   string   `yaml:"title"`
	Lead    string   `yaml:"lead"`
	Bullets []string `yaml:"bullets"`
	Footer  string   `yaml:"footer"`
	Image   string   `yaml:"image"`
}

// Story is the customer case study teased on the home page.
type Story struct {
	Headline string   `yaml:"headline"`
	Quote    []string `yaml:"quote"`
	Closing  string   `yaml:"closing"`
	Image    string   `yaml:"image"`
}

type document struct {
	Brand      string      `yaml:"brand"`
	Highlights []Highlight `yaml:"highlights"`
	Story      *Story      `yaml:"story"`
	Services   []Service   `yaml:"services"`
	Articles   []Article   `yaml:"articles"`
}

// Registry is an immutable, slug-indexed view of the site content. It is
// safe for concurrent use because nothing mutates it after Load.
type Registry struct {
	brand         string
	highlights    []Highlight
	story         *Story
	services      []Service
	articles      []Article
	serviceBySlug map[string]int
	articleBySlug map[string]int
}

// Default returns the registry built from the embedded content.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultContent))
}

// LoadFile reads a YAML catalog from path. An empty path selects the
// embedded content.
func LoadFile(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a YAML catalog and indexes it. Slugs must be non-empty and
// unique within their kind.
func Load(r io.Reader) (*Registry, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog: empty document")
		}
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}

	reg := &Registry{
		brand:         doc.Brand,
		highlights:    doc.Highlights,
		story:         doc.Story,
		services:      doc.Services,
		articles:      doc.Articles,
		serviceBySlug: make(map[string]int, len(doc.Services)),
		articleBySlug: make(map[string]int, len(doc.Articles)),
	}
	for i := range reg.services {
		s := &reg.services[i]
		if err := checkSlug(s.Slug, reg.serviceBySlug); err != nil {
			return nil, fmt.Errorf("catalog: service %d: %w", i, err)
		}
		if s.Image == "" {
			s.Image = DefaultServiceImage
		}
		reg.serviceBySlug[s.Slug] = i
	}
	for i, h := range reg.highlights {
		if strings.TrimSpace(h.Title) == "" {
			return nil, fmt.Errorf("catalog: highlight %d: title is empty", i)
		}
	}
	for i, a := range reg.articles {
		if err := checkSlug(a.Slug, reg.articleBySlug); err != nil {
			return nil, fmt.Errorf("catalog: article %d: %w", i, err)
		}
		reg.articleBySlug[a.Slug] = i
	}
	return reg, nil
}

func checkSlug(slug string, seen map[string]int) error {
	if strings.TrimSpace(slug) == "" {
		return errors.New("slug is empty")
	}
	if _, dup := seen[slug]; dup {
		return fmt.Errorf("duplicate slug %q", slug)
	}
	return nil
}

// Brand is the site name shown in titles and notifications.
func (r *Registry) Brand() string {
	return r.brand
}

// Highlights lists the operations band panels in catalog order.
func (r *Registry) Highlights() []Highlight {
	return append([]Highlight(nil), r.highlights...)
}

// Story returns the featured case study, if the catalog has one.
func (r *Registry) Story() (Story, bool) {
	if r.story == nil {
		return Story{}, false
	}
	return *r.story, true
}

// Services lists services in catalog order.
func (r *Registry) Services() []Service {
	return append([]Service(nil), r.services...)
}

// Articles lists articles in catalog order.
func (r *Registry) Articles() []Article {
	return append([]Article(nil), r.articles...)
}

// Service looks up a service by slug.
func (r *Registry) Service(slug string) (Service, bool) {
	i, ok := r.serviceBySlug[slug]
	if !ok {
		return Service{}, false
	}
	return r.services[i], true
}

// Article looks up an article by slug.
func (r *Registry) Article(slug string) (Article, bool) {
	i, ok := r.articleBySlug[slug]
	if !ok {
		return Article{}, false
	}
	return r.articles[i], true
}
