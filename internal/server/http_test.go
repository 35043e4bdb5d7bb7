package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reease-summarizer/internal/monitor"
	"reease-summarizer/internal/records"
	"reease-summarizer/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSummarizer struct {
	mu          sync.Mutex
	texts       []string
	credentials []string
	directives  []service.CompressionDirective
	result      service.GenerationResult
	batches     [][]records.ThreadRecord
}

func (f *fakeSummarizer) Generate(_ context.Context, text string, directive service.CompressionDirective, credential string) service.GenerationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.credentials = append(f.credentials, credential)
	f.directives = append(f.directives, directive)
	return f.result
}

func (f *fakeSummarizer) SummarizeRecordBatchReport(_ context.Context, recs []records.ThreadRecord, credential string) service.BatchReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credentials = append(f.credentials, credential)
	f.batches = append(f.batches, recs)
	return service.BatchReport{
		Summaries: []records.GroupedSummary{{GroupKey: "1", Body: "done"}},
		Omitted:   []service.OmittedGroup{{GroupKey: "2", Reason: service.ReasonEmptyThread}},
	}
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestSummarize_Success(t *testing.T) {
	fake := &fakeSummarizer{result: service.Success("tl;dr")}
	srv := NewHTTPServer(fake, Options{DefaultCredential: "server-key"}, testLogger())

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/summarize", `{"text":"long text","compression":"25%"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true, "summary": "tl;dr"}, decode(t, rec))
	assert.Equal(t, []string{"server-key"}, fake.credentials)
	assert.Equal(t, []service.CompressionDirective{service.DirectiveQuarter}, fake.directives)
}

func TestSummarize_RequestKeyWins(t *testing.T) {
	fake := &fakeSummarizer{result: service.Success("ok")}
	srv := NewHTTPServer(fake, Options{DefaultCredential: "server-key"}, testLogger())

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/summarize", `{"text":"t","api_key":"user-key"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"user-key"}, fake.credentials)
	assert.Equal(t, []service.CompressionDirective{service.DirectiveDefault}, fake.directives)
}

func TestSummarize_MissingCredential(t *testing.T) {
	fake := &fakeSummarizer{}
	srv := NewHTTPServer(fake, Options{}, testLogger())

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/summarize", `{"text":"t"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "GEMINI_API_KEY")
	assert.Empty(t, fake.credentials)
}

func TestSummarize_TrimsText(t *testing.T) {
	fake := &fakeSummarizer{result: service.Success("ok")}
	srv := NewHTTPServer(fake, Options{DefaultCredential: "k"}, testLogger())

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/summarize", `{"text":"  hi there \n"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"hi there"}, fake.texts)
}

func TestSummarize_EmptyTextBeforeCredential(t *testing.T) {
	for _, body := range []string{`{"text":""}`, `{"text":" \n\t "}`, `{}`} {
		fake := &fakeSummarizer{}
		srv := NewHTTPServer(fake, Options{}, testLogger())

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/summarize", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, service.ErrInvalidInput.Error(), decode(t, rec)["error"])
		assert.Empty(t, fake.texts)
	}
}

func TestSummarize_FailureStatus(t *testing.T) {
	testCases := []struct {
		name   string
		result service.GenerationResult
		status int
	}{
		{"invalid input", service.Failure(service.FailureInvalidInput, "source text cannot be empty"), http.StatusBadRequest},
		{"transport", service.Failure(service.FailureTransport, "API request failed: 500 Internal Server Error"), http.StatusBadGateway},
		{"malformed", service.Failure(service.FailureMalformedResponse, "No summary generated"), http.StatusBadGateway},
		{"rate limited", service.Failure(service.FailureRateLimited, "rate limit exceeded"), http.StatusTooManyRequests},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewHTTPServer(&fakeSummarizer{result: tc.result}, Options{DefaultCredential: "k"}, testLogger())
			rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/summarize", `{"text":"t"}`)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, map[string]any{"success": false, "error": tc.result.Reason}, decode(t, rec))
		})
	}
}

func TestSummarize_BadBody(t *testing.T) {
	srv := NewHTTPServer(&fakeSummarizer{}, Options{DefaultCredential: "k"}, testLogger())
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/summarize", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummarizeThreads(t *testing.T) {
	fake := &fakeSummarizer{}
	srv := NewHTTPServer(fake, Options{DefaultCredential: "k"}, testLogger())

	body := `{"records":[{"thread_id":1,"body":"a"},{"thread_id":"1","body":"b"},{"body":"x"},"junk"]}`
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/summarize/threads", body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{
		"success": true,
		"summaries": [{"thread_id":"1","body":"done"}],
		"omitted": [{"thread_id":"2","reason":"empty thread"}]
	}`, rec.Body.String())

	require.Len(t, fake.batches, 1)
	batch := fake.batches[0]
	require.Len(t, batch, 4)
	require.NotNil(t, batch[0].GroupKey)
	require.NotNil(t, batch[1].GroupKey)
	assert.Equal(t, *batch[0].GroupKey, *batch[1].GroupKey, "numeric and string ids share a group")
	assert.Nil(t, batch[2].GroupKey)
	assert.Nil(t, batch[3].GroupKey)
}

func TestSummarizeThreads_NotAList(t *testing.T) {
	for _, body := range []string{`{"records":{"thread_id":1}}`, `{}`, `{"records":"x"}`} {
		fake := &fakeSummarizer{}
		srv := NewHTTPServer(fake, Options{DefaultCredential: "k"}, testLogger())
		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/summarize/threads", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, records.ErrNotAList.Error(), decode(t, rec)["error"])
		assert.Empty(t, fake.batches)
	}
}

func TestSummarizeThreads_InvalidJSON(t *testing.T) {
	srv := NewHTTPServer(&fakeSummarizer{}, Options{DefaultCredential: "k"}, testLogger())
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/summarize/threads", `[{"thread_id":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, records.ErrInvalidJSON.Error(), decode(t, rec)["error"])
}

func TestHealthAndCORS(t *testing.T) {
	srv := NewHTTPServer(&fakeSummarizer{}, Options{}, testLogger())

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = doJSON(t, srv.Handler(), http.MethodOptions, "/api/v1/summarize", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics are only mounted when configured")
}

func TestEndToEndWithMetrics(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user-key", r.URL.Query().Get("key"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": "**Short** #summary"}}},
			}},
		})
	}))
	defer upstream.Close()

	metrics := monitor.NewMetrics(nil)
	gemini := service.NewGeminiService(upstream.Client(), upstream.URL, "", testLogger())
	gemini.SetMetrics(metrics)
	svc := service.NewSummarizationService(gemini, nil, testLogger())

	srv := NewHTTPServer(svc, Options{Metrics: metrics}, testLogger())

	payload, err := json.Marshal(map[string]string{"text": "Some text", "compression": "50%", "api_key": "user-key"})
	require.NoError(t, err)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/summarize", string(payload))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Short summary", decode(t, rec)["summary"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", bytes.NewReader(nil))
	out := httptest.NewRecorder()
	srv.Handler().ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)
	assert.Contains(t, out.Body.String(), `summarizer_generation_requests_total{outcome="success",provider="gemini"} 1`)
}
