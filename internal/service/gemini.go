package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"reease-summarizer/internal/monitor"
)

const (
	// ProviderGemini identifies the Gemini API in rate limits and metrics
	ProviderGemini = "gemini"

	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-1.5-flash-latest"

	// candidateTextPath locates the generated text in a generateContent response
	candidateTextPath = "candidates.0.content.parts.0.text"
)

// GeminiRequest is the generateContent request payload
type GeminiRequest struct {
	Contents []GeminiContent `json:"contents"`
}

// GeminiContent is one entry of the request contents list
type GeminiContent struct {
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart holds a single text part
type GeminiPart struct {
	Text string `json:"text"`
}

var markerStripper = strings.NewReplacer("*", "", "#", "")

// CleanSummary removes the formatting markers the model tends to emit
func CleanSummary(text string) string {
	return markerStripper.Replace(text)
}

// GeminiService implements Generator against the Gemini generateContent endpoint
type GeminiService struct {
	client      *http.Client
	baseURL     string
	modelName   string
	logger      *slog.Logger
	rateLimiter monitor.AIProviderRateLimiter
	metrics     *monitor.Metrics
}

// NewGeminiService creates a Gemini service. Empty baseURL or modelName select the defaults.
// The service enforces no timeout of its own; callers bound calls through the context or the client.
func NewGeminiService(client *http.Client, baseURL, modelName string, logger *slog.Logger) *GeminiService {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &GeminiService{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		modelName: modelName,
		logger:    logger,
	}
}

// SetRateLimiter sets the rate limiter for this service
func (g *GeminiService) SetRateLimiter(rateLimiter monitor.AIProviderRateLimiter) {
	g.rateLimiter = rateLimiter
}

// SetMetrics sets the metrics sink for this service
func (g *GeminiService) SetMetrics(metrics *monitor.Metrics) {
	g.metrics = metrics
}

// GetProviderID returns the unique identifier for this AI provider
func (g *GeminiService) GetProviderID() string {
	return ProviderGemini
}

// Summarize sends prompt to the generation endpoint and returns the cleaned text.
// It issues at most one HTTP request and never retries.
func (g *GeminiService) Summarize(ctx context.Context, prompt, credential string) GenerationResult {
	if err := g.checkRateLimit(); err != nil {
		g.metrics.ObserveRequest(g.GetProviderID(), monitor.OutcomeRateLimited, 0)
		return Failure(FailureRateLimited, err.Error())
	}

	if g.rateLimiter != nil {
		if err := g.rateLimiter.RegisterCall(g.GetProviderID()); err != nil {
			g.logger.Warn("Failed to register API call for rate limiting", "error", err)
		}
	}

	g.logger.Info("Sending prompt to Gemini API",
		"provider", g.GetProviderID(),
		"model", g.modelName,
		"prompt_length", len(prompt))

	start := time.Now()
	result := g.execute(ctx, prompt, credential)
	g.metrics.ObserveRequest(g.GetProviderID(), outcomeLabel(result), time.Since(start))

	return result
}

func (g *GeminiService) execute(ctx context.Context, prompt, credential string) GenerationResult {
	payload, err := json.Marshal(GeminiRequest{
		Contents: []GeminiContent{{Parts: []GeminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return Failure(FailureTransport, fmt.Sprintf("API request failed: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(credential), bytes.NewReader(payload))
	if err != nil {
		return Failure(FailureTransport, fmt.Sprintf("API request failed: %v", redact(err)))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		err = redact(err)
		g.logger.Error("Gemini API request failed",
			"provider", g.GetProviderID(),
			"model", g.modelName,
			"error", err)
		return Failure(FailureTransport, fmt.Sprintf("API request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		g.logger.Error("Gemini API returned error status",
			"provider", g.GetProviderID(),
			"status", resp.StatusCode,
			"response", string(body))
		return Failure(FailureTransport, fmt.Sprintf("API request failed: %s", statusLine(resp)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		g.logger.Error("Failed to read Gemini API response", "provider", g.GetProviderID(), "error", err)
		return Failure(FailureTransport, fmt.Sprintf("API request failed: %v", err))
	}

	text := gjson.GetBytes(body, candidateTextPath)
	if !gjson.ValidBytes(body) || !text.Exists() || text.Type != gjson.String {
		g.logger.Warn("Gemini API response has no candidate text",
			"provider", g.GetProviderID(),
			"model", g.modelName,
			"response_length", len(body))
		return Failure(FailureMalformedResponse, noSummaryReason)
	}

	summary := CleanSummary(text.String())

	g.logger.Info("Gemini API response received",
		"provider", g.GetProviderID(),
		"model", g.modelName,
		"summary_length", len(summary))

	return Success(summary)
}

func (g *GeminiService) endpoint(credential string) string {
	query := url.Values{}
	query.Set("key", credential)
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?%s", g.baseURL, url.PathEscape(g.modelName), query.Encode())
}

// checkRateLimit validates that the provider is not rate limited before making a call
func (g *GeminiService) checkRateLimit() error {
	if g.rateLimiter == nil {
		return nil
	}

	providerID := g.GetProviderID()
	status := g.rateLimiter.GetProviderStatus(providerID)

	if status == monitor.StatusThrottled {
		usage, limit := g.rateLimiter.GetProviderUsage(providerID)
		g.logger.Warn("Rate limit exceeded for provider",
			"provider", providerID,
			"usage", usage,
			"limit", limit)
		return fmt.Errorf("rate limit exceeded for provider %s: %d/%d requests", providerID, usage, limit)
	}

	if status == monitor.StatusWarning {
		usage, limit := g.rateLimiter.GetProviderUsage(providerID)
		g.logger.Warn("Rate limit warning for provider",
			"provider", providerID,
			"usage", usage,
			"limit", limit)
	}

	return nil
}

// statusLine renders "<code> <status text>"
func statusLine(resp *http.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

// redact drops the request URL from transport errors since it carries the credential
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

func outcomeLabel(r GenerationResult) string {
	switch {
	case r.OK:
		return monitor.OutcomeSuccess
	case r.Kind == FailureMalformedResponse:
		return monitor.OutcomeMalformed
	case r.Kind == FailureRateLimited:
		return monitor.OutcomeRateLimited
	default:
		return monitor.OutcomeTransport
	}
}
