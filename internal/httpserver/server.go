package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gopartnerr/zeyatek/internal/catalog"
	"github.com/gopartnerr/zeyatek/internal/intake"
	"github.com/rs/zerolog"
)

// Submitter is the narrow intake contract required by the contact form.
type Submitter interface {
	Submit(ctx context.Context, form intake.Form) (intake.Ack, error)
}

// Config holds the HTTP listener settings.
type Config struct {
	Addr      string
	StaticDir string
	// NotificationsEnabled is reported by the health endpoint.
	NotificationsEnabled bool
}

// Server renders the public site and accepts contact-form submissions.
type Server struct {
	cfg       Config
	catalog   *catalog.Registry
	intake    Submitter
	logger    zerolog.Logger
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new site server. Content comes from reg and contact
// submissions go to submitter; neither is looked up from global state.
func NewServer(cfg Config, reg *catalog.Registry, submitter Submitter, logger zerolog.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:5114"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:       cfg,
		catalog:   reg,
		intake:    submitter,
		logger:    logger.With().Str("component", "httpserver").Logger(),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

// Handler returns the routed gin engine.
func (s *Server) Handler() http.Handler {
	return s.router()
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))
	r.SetHTMLTemplate(pages)

	r.GET("/", s.handleHome)
	r.GET("/services/:slug", s.handleService)
	r.GET("/articles", s.handleArticles)
	r.GET("/articles/:slug", s.handleArticle)
	r.POST("/contact", s.handleContact)
	r.GET("/healthz", s.handleHealth)

	if s.cfg.StaticDir != "" {
		r.Static("/static", s.cfg.StaticDir)
	}
	return r
}

// Start binds the listener. Requests are handled once Serve runs.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.router(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()
	return nil
}

// Serve handles requests on the listener bound by Start and blocks until the
// server stops. It returns nil after Stop and the accept error otherwise.
func (s *Server) Serve() error {
	if s.server == nil || s.listener == nil {
		return errors.New("httpserver: serve called before start")
	}
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("httpserver: serve: %w", err)
	}
	return nil
}

// Addr returns the bound listen address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
