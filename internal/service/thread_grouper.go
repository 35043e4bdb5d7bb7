package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"reease-summarizer/internal/monitor"
	"reease-summarizer/internal/records"
)

// Omission reasons reported in BatchReport
const (
	ReasonEmptyThread = "empty thread"
	ReasonCancelled   = "batch cancelled"
)

// CleanThreadSummary normalizes a thread summary onto a single line
func CleanThreadSummary(text string) string {
	return strings.ReplaceAll(CleanSummary(text), "\n", " ")
}

// ThreadGrouperOptions tunes how groups are dispatched.
// MaxConcurrency below 1 means sequential; RequestsPerSecond of 0 disables pacing.
type ThreadGrouperOptions struct {
	MaxConcurrency    int
	RequestsPerSecond float64
}

// OmittedGroup describes a thread that produced no summary
type OmittedGroup struct {
	GroupKey string      `json:"thread_id"`
	Reason   string      `json:"reason"`
	Kind     FailureKind `json:"kind,omitempty"`
}

// BatchReport separates produced summaries from omitted groups.
// Both slices follow the first-seen order of the group keys.
type BatchReport struct {
	Summaries []records.GroupedSummary `json:"summaries"`
	Omitted   []OmittedGroup           `json:"omitted"`
}

// ThreadGrouper groups records by thread and summarizes each thread independently
type ThreadGrouper struct {
	generator      Generator
	logger         *slog.Logger
	metrics        *monitor.Metrics
	maxConcurrency int64
	limiter        *rate.Limiter
}

// NewThreadGrouper creates a grouper that summarizes through generator
func NewThreadGrouper(generator Generator, opts ThreadGrouperOptions, logger *slog.Logger) *ThreadGrouper {
	if logger == nil {
		logger = slog.Default()
	}

	maxConcurrency := int64(opts.MaxConcurrency)
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &ThreadGrouper{
		generator:      generator,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		limiter:        limiter,
	}
}

// SetMetrics sets the metrics sink for batch outcomes
func (t *ThreadGrouper) SetMetrics(metrics *monitor.Metrics) {
	t.metrics = metrics
}

// GroupAndSummarize returns one summary per thread that could be summarized.
// Failed and empty threads are left out; the call itself never fails.
func (t *ThreadGrouper) GroupAndSummarize(ctx context.Context, recs []records.ThreadRecord, credential string) []records.GroupedSummary {
	return t.Run(ctx, recs, credential).Summaries
}

type groupOutcome struct {
	summary *records.GroupedSummary
	omitted *OmittedGroup
}

// Run summarizes every thread and reports which groups were omitted and why
func (t *ThreadGrouper) Run(ctx context.Context, recs []records.ThreadRecord, credential string) BatchReport {
	batchID := uuid.NewString()
	grouped := records.GroupByKey(recs)
	groups := grouped.All()

	t.logger.Info("Summarizing record batch",
		"batch_id", batchID,
		"record_count", len(recs),
		"group_count", len(groups),
		"max_concurrency", t.maxConcurrency)
	t.logger.Debug("Batch thread ids", "batch_id", batchID, "thread_ids", grouped.Keys())

	outcomes := make([]groupOutcome, len(groups))
	sem := semaphore.NewWeighted(t.maxConcurrency)
	var wg sync.WaitGroup

	for i, group := range groups {
		combined := group.CombinedText()
		if combined == "" {
			outcomes[i] = omit(group.Key, ReasonEmptyThread, FailureNone)
			continue
		}

		if ctx.Err() != nil || sem.Acquire(ctx, 1) != nil {
			outcomes[i] = omit(group.Key, ReasonCancelled, FailureNone)
			continue
		}

		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				sem.Release(1)
				outcomes[i] = omit(group.Key, ReasonCancelled, FailureNone)
				continue
			}
		}

		wg.Add(1)
		go func(i int, key, combined string) {
			defer wg.Done()
			defer sem.Release(1)
			outcomes[i] = t.summarizeGroup(ctx, batchID, key, combined, credential)
		}(i, group.Key, combined)
	}

	wg.Wait()

	report := BatchReport{
		Summaries: make([]records.GroupedSummary, 0, len(groups)),
		Omitted:   make([]OmittedGroup, 0),
	}
	for _, o := range outcomes {
		if o.summary != nil {
			report.Summaries = append(report.Summaries, *o.summary)
			t.metrics.ObserveGroup(monitor.GroupSummarized)
			continue
		}
		report.Omitted = append(report.Omitted, *o.omitted)
		t.metrics.ObserveGroup(omittedLabel(*o.omitted))
	}
	t.metrics.ObserveBatch()

	t.logger.Info("Record batch summarized",
		"batch_id", batchID,
		"summarized", len(report.Summaries),
		"omitted", len(report.Omitted))

	return report
}

func (t *ThreadGrouper) summarizeGroup(ctx context.Context, batchID, key, combined, credential string) groupOutcome {
	result := t.generator.Summarize(ctx, BuildThreadPrompt(combined), credential)
	if !result.OK {
		t.logger.Warn("Thread summarization failed, omitting group",
			"batch_id", batchID,
			"group_key", key,
			"kind", result.Kind,
			"reason", result.Reason)
		return omit(key, result.Reason, result.Kind)
	}

	return groupOutcome{summary: &records.GroupedSummary{
		GroupKey: key,
		Body:     CleanThreadSummary(result.Text),
	}}
}

func omit(key, reason string, kind FailureKind) groupOutcome {
	return groupOutcome{omitted: &OmittedGroup{GroupKey: key, Reason: reason, Kind: kind}}
}

func omittedLabel(o OmittedGroup) string {
	switch o.Reason {
	case ReasonEmptyThread:
		return monitor.GroupEmpty
	case ReasonCancelled:
		return monitor.GroupCancelled
	default:
		return monitor.GroupFailed
	}
}
