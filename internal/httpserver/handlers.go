package httpserver

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gopartnerr/zeyatek/internal/intake"
	"github.com/gopartnerr/zeyatek/internal/model"
)

const saveFailedMessage = "Something went wrong saving your message. Please try again."

func (s *Server) handleHome(c *gin.Context) {
	c.HTML(http.StatusOK, "home.html", s.homePage())
}

func (s *Server) handleService(c *gin.Context) {
	svc, ok := s.catalog.Service(c.Param("slug"))
	if !ok {
		c.Redirect(http.StatusFound, "/#services")
		return
	}
	p := s.newPage(svc.Title, svc.Summary)
	p.Service = svc
	c.HTML(http.StatusOK, "service.html", p)
}

func (s *Server) handleArticles(c *gin.Context) {
	p := s.newPage("Insights", "Articles on proposals, security, data, and modernization.")
	p.Articles = s.catalog.Articles()
	c.HTML(http.StatusOK, "articles.html", p)
}

func (s *Server) handleArticle(c *gin.Context) {
	art, ok := s.catalog.Article(c.Param("slug"))
	if !ok {
		c.Redirect(http.StatusFound, "/articles")
		return
	}
	p := s.newPage(art.Title, art.Excerpt)
	p.Article = art

	pageURL := absoluteURL(c, "/articles/"+art.Slug)
	p.ShareLinkedIn = "https://www.linkedin.com/shareArticle?" + url.Values{
		"mini": {"true"},
		"url":  {pageURL},
	}.Encode()
	p.ShareX = "https://twitter.com/intent/tweet?" + url.Values{
		"url":  {pageURL},
		"text": {art.Title},
	}.Encode()
	c.HTML(http.StatusOK, "article.html", p)
}

// handleContact always answers with the home page. Validation problems are
// shown inline with 200; a failed save is shown inline with 500.
func (s *Server) handleContact(c *gin.Context) {
	form := intake.Form{
		Name:    c.PostForm("name"),
		Email:   c.PostForm("email"),
		Message: c.PostForm("message"),
	}

	p := s.homePage()
	ack, err := s.intake.Submit(c.Request.Context(), form)

	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		p.Form = form
		p.Error = verr.UserMessage()
		c.HTML(http.StatusOK, "home.html", p)
	case err != nil:
		s.logger.Error().Err(err).Msg("contact submission failed")
		p.Form = form
		p.Error = saveFailedMessage
		c.HTML(http.StatusInternalServerError, "home.html", p)
	default:
		p.Success = ack.Message
		c.HTML(http.StatusOK, "home.html", p)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"uptime":        time.Since(s.startTime).String(),
		"notifications": s.cfg.NotificationsEnabled,
		"services":      len(s.catalog.Services()),
		"articles":      len(s.catalog.Articles()),
	})
}

func absoluteURL(c *gin.Context, path string) string {
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: c.Request.Host, Path: path}).String()
}
