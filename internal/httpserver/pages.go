package httpserver

import (
	"embed"
	"html/template"
	"time"

	"github.com/gopartnerr/zeyatek/internal/catalog"
	"github.com/gopartnerr/zeyatek/internal/intake"
	"github.com/gopartnerr/zeyatek/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Catalog HTML is authored content, not visitor input.
var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"trusted": func(s string) template.HTML { return template.HTML(s) },
}).ParseFS(templateFS, "templates/*.html"))

const homeArticleLimit = 3

// pageData is the single view model shared by all page templates.
type pageData struct {
	Brand       string
	Title       string
	Description string
	Year        int

	Highlights []catalog.Highlight
	Story      *catalog.Story
	Services   []catalog.Service
	Articles   []catalog.Article
	Service    catalog.Service
	Article    catalog.Article

	ShareLinkedIn string
	ShareX        string

	Form    intake.Form
	Success string
	Error   string
}

func (s *Server) newPage(title, description string) pageData {
	brand := s.catalog.Brand()
	if brand == "" {
		brand = model.Brand
	}
	if title == "" {
		title = brand + " — IT & Digital Transformation"
	} else {
		title = title + " — " + brand
	}
	return pageData{
		Brand:       brand,
		Title:       title,
		Description: description,
		Year:        time.Now().Year(),
	}
}

func (s *Server) homePage() pageData {
	p := s.newPage("", "GoPartnerr: Security, data, applications, and infrastructure done right.")
	p.Highlights = s.catalog.Highlights()
	if story, ok := s.catalog.Story(); ok {
		p.Story = &story
	}
	p.Services = s.catalog.Services()
	p.Articles = s.catalog.Articles()
	if len(p.Articles) > homeArticleLimit {
		p.Articles = p.Articles[:homeArticleLimit]
	}
	return p
}
