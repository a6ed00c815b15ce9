package simulator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openlis/astmsim/generator"
	"github.com/openlis/astmsim/logger"
	"github.com/openlis/astmsim/template"
)

// Control surface defaults and bounds.
const (
	DefaultAPIAddr = ":8080"

	// MaxPushCount bounds one push request; a run is executed synchronously
	// inside the request.
	MaxPushCount = 100
)

// API is the HTTP control surface: health, template listing, push triggers,
// and Prometheus metrics for one simulator server.
type API struct {
	server   *Server
	catalog  *template.Catalog
	analyzer string
	pusher   Pusher
	addr     string

	engine   *gin.Engine
	ln       net.Listener
	http     *http.Server
	registry *prometheus.Registry
	metrics  *httpMetrics
	logger   logger.Logger
}

// APIOption configures an API.
type APIOption func(*API)

// WithAPIAddr sets the control surface listen address, ":8080" by default.
func WithAPIAddr(addr string) APIOption {
	return func(a *API) { a.addr = addr }
}

// WithDefaultAnalyzerType sets the analyzer type used by push requests that
// do not name one.
func WithDefaultAnalyzerType(t string) APIOption {
	return func(a *API) { a.analyzer = strings.ToUpper(t) }
}

// WithPusher sets the delivery used by POST /push. Without one the endpoint
// answers 503.
func WithPusher(p Pusher) APIOption {
	return func(a *API) { a.pusher = p }
}

// WithAPILogger sets the control surface logger.
func WithAPILogger(l logger.Logger) APIOption {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAPI builds the control surface for server, listing and generating from
// catalog.
func NewAPI(server *Server, catalog *template.Catalog, opts ...APIOption) (*API, error) {
	if server == nil {
		return nil, errors.New("simulator: api requires a server")
	}
	if catalog == nil || catalog.Len() == 0 {
		return nil, errors.New("simulator: api requires a non-empty catalog")
	}

	a := &API{
		server:   server,
		catalog:  catalog,
		analyzer: server.Template().Type(),
		addr:     DefaultAPIAddr,
		metrics:  newHTTPMetrics(),
		logger:   logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(sessionCollectors(server)...)
	a.registry.MustRegister(a.metrics.collectors()...)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(a.logger))
	engine.Use(a.metrics.middleware())

	engine.GET("/health", a.handleHealth)
	engine.GET("/templates", a.handleTemplates)
	engine.POST("/push", a.handlePush)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	a.engine = engine

	return a, nil
}

// Router returns the underlying gin engine, mainly for tests.
func (a *API) Router() *gin.Engine {
	return a.engine
}

// Start binds the control surface listener and serves in the background.
func (a *API) Start() error {
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("simulator: api listen %s: %w", a.addr, err)
	}
	a.ln = ln
	a.http = &http.Server{
		Handler:           a.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := a.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("simulator: api server failed", "error", err)
		}
	}()

	a.logger.Info("simulator: control api listening", "addr", ln.Addr().String())

	return nil
}

// Shutdown stops the control surface, waiting for in-flight requests up to
// the context deadline.
func (a *API) Shutdown(ctx context.Context) error {
	if a.http == nil {
		return nil
	}

	return a.http.Shutdown(ctx)
}

// Addr returns the bound control surface address.
func (a *API) Addr() string {
	if a.ln == nil {
		return a.addr
	}

	return a.ln.Addr().String()
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"service":         "astm-simulator",
		"uptime":          a.server.Uptime().String(),
		"analyzer_type":   a.server.Template().Type(),
		"analyzer_name":   a.server.Template().Analyzer.Name,
		"active_sessions": a.server.ActiveSessions(),
	})
}

func (a *API) handleTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"templates": a.catalog.Types(),
	})
}

// pushRequest is the optional JSON body of POST /push; set values override
// the query parameters.
type pushRequest struct {
	AnalyzerType string `json:"analyzer_type"`
	Count        int    `json:"count"`
}

func (a *API) handlePush(c *gin.Context) {
	if a.pusher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "push delivery is not configured",
		})

		return
	}

	analyzerType := c.DefaultQuery("analyzer_type", a.analyzer)

	countParam := c.DefaultQuery("count", "1")
	count, err := strconv.Atoi(countParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "invalid count: " + countParam,
		})

		return
	}

	if c.Request.ContentLength > 0 {
		var body pushRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			// A malformed body is ignored; the query parameters still apply.
			a.logger.Warn("simulator: ignoring malformed push body", "error", err)
		} else {
			if body.AnalyzerType != "" {
				analyzerType = body.AnalyzerType
			}
			if body.Count > 0 {
				count = body.Count
			}
		}
	}

	if count < 1 || count > MaxPushCount {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": fmt.Sprintf("count %d out of range [1, %d]", count, MaxPushCount),
		})

		return
	}

	tpl := a.catalog.Get(strings.ToUpper(analyzerType))

	run := &PushRun{
		Generator:    generator.New(tpl),
		Pusher:       a.pusher,
		AnalyzerType: tpl.Type(),
		Count:        count,
		Logger:       a.logger,
	}

	a.logger.Info("simulator: push requested",
		"analyzer_type", tpl.Type(), "count", count, "client_ip", c.ClientIP())

	summary := run.Run(c.Request.Context())
	if summary.Results == nil {
		summary.Results = []PushResult{}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "completed",
		"total":      summary.Total,
		"successful": summary.Successful,
		"failed":     summary.Failed,
		"results":    summary.Results,
	})
}

// requestLogger logs one line per request through the logger facade.
func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		kv := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
			"bytes", c.Writer.Size(),
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error("http request", kv...)
		case status >= http.StatusBadRequest:
			log.Warn("http request", kv...)
		default:
			log.Info("http request", kv...)
		}
	}
}
