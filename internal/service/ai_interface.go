package service

import (
	"context"

	"reease-summarizer/internal/records"
)

// Generator sends a single prompt to a text-generation provider.
// Implementations perform one outbound call per invocation and do not retry.
type Generator interface {
	Summarize(ctx context.Context, prompt, credential string) GenerationResult
}

// Summarizer is the API consumed by the CLI and HTTP layers.
// The credential is always passed explicitly and never read from ambient state.
type Summarizer interface {
	// SummarizeText summarizes one text with the given compression directive
	SummarizeText(ctx context.Context, sourceText string, directive CompressionDirective, credential string) TextResult

	// SummarizeRecordBatch summarizes each thread of a record set; failed threads are omitted
	SummarizeRecordBatch(ctx context.Context, recs []records.ThreadRecord, credential string) []records.GroupedSummary
}
