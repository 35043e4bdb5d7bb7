// Package server exposes the summarization API over HTTP.
package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"reease-summarizer/internal/monitor"
	"reease-summarizer/internal/records"
	"reease-summarizer/internal/service"
)

// MaxBodyBytes caps request bodies
const MaxBodyBytes = 10 << 20

const errMissingCredential = "GEMINI_API_KEY is not configured and no api_key was provided"

// Summarizer is the subset of service.SummarizationService the handlers need
type Summarizer interface {
	Generate(ctx context.Context, sourceText string, directive service.CompressionDirective, credential string) service.GenerationResult
	SummarizeRecordBatchReport(ctx context.Context, recs []records.ThreadRecord, credential string) service.BatchReport
}

// Options configures an HTTPServer
type Options struct {
	// DefaultCredential is used when a request carries no api_key
	DefaultCredential string
	Metrics           *monitor.Metrics
}

// HTTPServer serves the summarization endpoints
type HTTPServer struct {
	engine  *gin.Engine
	service Summarizer
	opts    Options
	logger  *slog.Logger
}

// NewHTTPServer creates the server and registers its routes
func NewHTTPServer(srv Summarizer, opts Options, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &HTTPServer{
		engine:  engine,
		service: srv,
		opts:    opts,
		logger:  logger,
	}

	s.registerMiddlewares()
	s.registerRoutes()

	return s
}

// Handler returns the root handler for use with http.Server
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

func (s *HTTPServer) registerMiddlewares() {
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.requestLogger())
	s.engine.Use(s.corsMiddleware())
}

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP())
	}
}

// corsMiddleware allows browser-extension callers on any origin
func (s *HTTPServer) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *HTTPServer) registerRoutes() {
	api := s.engine.Group("/api/v1")
	{
		api.POST("/summarize", s.summarizeText)
		api.POST("/summarize/threads", s.summarizeThreads)
	}

	s.engine.GET("/health", s.healthCheck)
	if s.opts.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))
	}
}

type summarizeRequest struct {
	Text        string `json:"text"`
	Compression string `json:"compression"`
	APIKey      string `json:"api_key"`
}

func (s *HTTPServer) summarizeText(c *gin.Context) {
	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		s.respondError(c, http.StatusBadRequest, service.ErrInvalidInput.Error())
		return
	}

	credential, ok := s.credential(c, req.APIKey)
	if !ok {
		return
	}

	result := s.service.Generate(c.Request.Context(), text, service.ParseDirective(req.Compression), credential)
	if !result.OK {
		s.respondError(c, statusForFailure(result.Kind), result.Reason)
		return
	}

	c.JSON(http.StatusOK, service.TextResult{Success: true, Summary: result.Text})
}

type threadsResponse struct {
	Success bool `json:"success"`
	service.BatchReport
}

func (s *HTTPServer) summarizeThreads(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
	if err != nil {
		s.respondError(c, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if !gjson.ValidBytes(body) {
		s.respondError(c, http.StatusBadRequest, records.ErrInvalidJSON.Error())
		return
	}

	payload := gjson.ParseBytes(body)
	field := payload.Get("records")
	if !field.IsArray() {
		s.respondError(c, http.StatusBadRequest, records.ErrNotAList.Error())
		return
	}
	recs, err := records.ParseRecords([]byte(field.Raw))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	credential, ok := s.credential(c, payload.Get("api_key").String())
	if !ok {
		return
	}

	report := s.service.SummarizeRecordBatchReport(c.Request.Context(), recs, credential)
	c.JSON(http.StatusOK, threadsResponse{Success: true, BatchReport: report})
}

func (s *HTTPServer) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// credential picks the request key over the configured default and responds 401 when neither exists
func (s *HTTPServer) credential(c *gin.Context, fromRequest string) (string, bool) {
	if fromRequest != "" {
		return fromRequest, true
	}
	if s.opts.DefaultCredential != "" {
		return s.opts.DefaultCredential, true
	}
	s.respondError(c, http.StatusUnauthorized, errMissingCredential)
	return "", false
}

func statusForFailure(kind service.FailureKind) int {
	switch kind {
	case service.FailureInvalidInput:
		return http.StatusBadRequest
	case service.FailureRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func (s *HTTPServer) respondError(c *gin.Context, statusCode int, message string) {
	if statusCode >= http.StatusInternalServerError {
		s.logger.Error("HTTP error",
			"path", c.Request.URL.Path,
			"status", statusCode,
			"message", message)
	}
	c.JSON(statusCode, service.TextResult{Success: false, Error: message})
}
