package service

import (
	"context"
	"log/slog"

	"reease-summarizer/internal/records"
)

// TextResult is the outcome of SummarizeText as seen by user interfaces
type TextResult struct {
	Success bool   `json:"success"`
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SummarizationService wires prompt building, generation and thread grouping together
type SummarizationService struct {
	generator Generator
	grouper   *ThreadGrouper
	logger    *slog.Logger
}

// NewSummarizationService creates the service. A nil grouper gets a sequential one.
func NewSummarizationService(generator Generator, grouper *ThreadGrouper, logger *slog.Logger) *SummarizationService {
	if logger == nil {
		logger = slog.Default()
	}
	if grouper == nil {
		grouper = NewThreadGrouper(generator, ThreadGrouperOptions{}, logger)
	}

	return &SummarizationService{
		generator: generator,
		grouper:   grouper,
		logger:    logger,
	}
}

// SummarizeText builds the directive prompt and returns the provider result.
// Any failure is handed back to the caller unchanged; nothing is retried.
func (s *SummarizationService) SummarizeText(ctx context.Context, sourceText string, directive CompressionDirective, credential string) TextResult {
	return toTextResult(s.Generate(ctx, sourceText, directive, credential))
}

// Generate is SummarizeText returning the full GenerationResult
func (s *SummarizationService) Generate(ctx context.Context, sourceText string, directive CompressionDirective, credential string) GenerationResult {
	prompt, err := BuildPrompt(sourceText, directive)
	if err != nil {
		s.logger.Warn("Rejected summarization request", "error", err)
		return Failure(FailureInvalidInput, err.Error())
	}

	s.logger.Info("Summarizing text",
		"text_length", len(sourceText),
		"compression", directive.Label())

	result := s.generator.Summarize(ctx, prompt, credential)
	if !result.OK {
		s.logger.Error("Summarization failed", "kind", result.Kind, "reason", result.Reason)
	}
	return result
}

// SummarizeRecordBatch summarizes every thread of recs
func (s *SummarizationService) SummarizeRecordBatch(ctx context.Context, recs []records.ThreadRecord, credential string) []records.GroupedSummary {
	return s.grouper.GroupAndSummarize(ctx, recs, credential)
}

// SummarizeRecordBatchReport is SummarizeRecordBatch including omitted-group diagnostics
func (s *SummarizationService) SummarizeRecordBatchReport(ctx context.Context, recs []records.ThreadRecord, credential string) BatchReport {
	return s.grouper.Run(ctx, recs, credential)
}

func toTextResult(r GenerationResult) TextResult {
	if r.OK {
		return TextResult{Success: true, Summary: r.Text}
	}
	return TextResult{Success: false, Error: r.Reason}
}
