// Package rag orchestrates the question answering pipeline: intent routing,
// query caching, date-aware schedule lookup, vector retrieval and grounded
// generation.
//
// The pipeline degrades instead of failing: every internal error maps to a
// polite Vietnamese answer and Query never returns an error to the caller.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vhoang/troly/internal/dateparse"
	"github.com/vhoang/troly/internal/intent"
	"github.com/vhoang/troly/internal/llm"
	"github.com/vhoang/troly/internal/log"
	"github.com/vhoang/troly/internal/querycache"
	"github.com/vhoang/troly/internal/schedule"
	"github.com/vhoang/troly/internal/vectorstore"
)

// Orchestrator runs the full pipeline. Construct with New; all collaborators
// are required except via options.
type Orchestrator struct {
	store     VectorStore
	generator Generator
	schedules ScheduleSource
	cache     Cache
	parser    *dateparse.Parser
	logger    log.Logger
	now       func() time.Time
	topK      int
	threshold float64
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the time source used for date context. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithTopK sets the retrieval result limit.
func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		o.topK = k
	}
}

// WithThreshold sets the retrieval similarity cutoff.
func WithThreshold(t float64) Option {
	return func(o *Orchestrator) {
		o.threshold = t
	}
}

// New creates an Orchestrator.
func New(store VectorStore, generator Generator, schedules ScheduleSource,
	cache Cache, parser *dateparse.Parser, logger log.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = log.NewNop()
	}
	o := &Orchestrator{
		store:     store,
		generator: generator,
		schedules: schedules,
		cache:     cache,
		parser:    parser,
		logger:    logger,
		now:       time.Now,
		topK:      vectorstore.DefaultTopK,
		threshold: vectorstore.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Query answers one question. The returned Response always carries a
// presentable answer; internal failures surface as apology texts.
func (o *Orchestrator) Query(ctx context.Context, req QueryRequest) Response {
	question := strings.TrimSpace(req.Question)
	kind := intent.Classify(question)

	o.logger.Info("query received",
		"intent", kind.String(),
		"question_length", len(question),
		"source_type", req.SourceType)

	// Greetings never touch retrieval, cache or the model.
	if kind == intent.Greeting {
		return Response{
			Answer:    greetingAnswer(question),
			Sources:   []Source{},
			Query:     question,
			Intent:    kind.String(),
			SessionID: req.SessionID,
		}
	}

	isSchedule := kind == intent.Schedule

	// Date-sensitive answers go stale overnight, so only non-schedule
	// queries consult the cache.
	if !isSchedule {
		if cached, ok := o.cache.Get(question, req.SourceType); ok {
			if resp, ok := cached.(Response); ok {
				o.logger.Info("cache hit", "question_length", len(question))
				resp.Cached = true
				resp.SessionID = req.SessionID
				return resp
			}
		}
	}

	// Resolve the date expression and enhance the retrieval query with the
	// explicit date, schedule queries only.
	searchQuery := question
	var dateExpr dateparse.Expression
	var hasDate bool
	if isSchedule {
		dateExpr, hasDate = o.parser.Parse(question)
		if hasDate {
			searchQuery = dateExpr.Enhance(question)
		}
	}

	// Exact structured matches outrank anything retrieval can produce.
	var docs []contextDoc
	if isSchedule && hasDate {
		docs = o.exactScheduleMatches(ctx, dateExpr)
	}

	results, err := o.store.Search(ctx, searchQuery,
		vectorstore.WithTopK(o.topK),
		vectorstore.WithThreshold(o.threshold),
		vectorstore.WithSourceType(req.SourceType))
	if err != nil {
		o.logger.Error("vector search failed", "error", err)
		return o.failureResponse(err, question, kind, req.SessionID)
	}

	docs = mergeResults(docs, results)

	if len(docs) == 0 {
		o.logger.Info("no relevant context found")
		return Response{
			Answer:    noContextAnswer(question),
			Sources:   []Source{},
			Query:     question,
			Intent:    kind.String(),
			SessionID: req.SessionID,
		}
	}

	answer, err := o.generator.Generate(ctx, llm.Request{
		Question:    question,
		Context:     toContextDocs(docs),
		History:     req.History,
		DateContext: dateparse.CurrentDateContext(o.now()),
	})
	if err != nil {
		o.logger.Error("generation failed", "error", err)
		return o.failureResponse(err, question, kind, req.SessionID)
	}

	resp := Response{
		Answer:       answer,
		Sources:      toSources(docs),
		Query:        question,
		NumRetrieved: len(docs),
		Intent:       kind.String(),
		SessionID:    req.SessionID,
	}

	if !isSchedule {
		o.cache.Set(question, req.SourceType, resp)
	}
	return resp
}

// exactScheduleMatches loads calendar entries for the resolved date range.
// A lookup failure degrades to vector-only retrieval rather than failing the
// query.
func (o *Orchestrator) exactScheduleMatches(ctx context.Context, expr dateparse.Expression) []contextDoc {
	pred := expr.Predicate()
	entries, err := o.schedules.SchedulesInRange(ctx, pred.Start, pred.End)
	if err != nil {
		o.logger.Error("structured schedule lookup failed", "error", err)
		return nil
	}

	o.logger.Info("structured schedule matches",
		"count", len(entries),
		"from", pred.Start.Format("2006-01-02"),
		"to", pred.End.Format("2006-01-02"))

	docs := make([]contextDoc, 0, len(entries))
	for _, entry := range entries {
		docs = append(docs, contextDoc{
			content: schedule.FormatSchedule(entry),
			metadata: map[string]string{
				vectorstore.MetaSourceType: vectorstore.SourceTypeSchedule,
				"date":                     entry.Date.Format("2006-01-02"),
			},
			score: 1.0,
		})
	}
	return docs
}

// mergeResults appends vector hits after the exact matches, dropping
// duplicates by content.
func mergeResults(docs []contextDoc, results []vectorstore.Result) []contextDoc {
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		seen[d.content] = struct{}{}
	}
	for _, r := range results {
		if _, dup := seen[r.Document.Content]; dup {
			continue
		}
		seen[r.Document.Content] = struct{}{}
		metadata := r.Document.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		docs = append(docs, contextDoc{
			content:  r.Document.Content,
			metadata: metadata,
			score:    r.Score,
		})
	}
	return docs
}

// failureResponse maps an internal error to the matching apology.
func (o *Orchestrator) failureResponse(err error, question string, kind intent.Kind, sessionID string) Response {
	answer := answerError
	if errors.Is(err, context.DeadlineExceeded) {
		answer = answerTimeout
	}
	return Response{
		Answer:    answer,
		Sources:   []Source{},
		Query:     question,
		Intent:    kind.String(),
		SessionID: sessionID,
	}
}

// toContextDocs converts internal docs for the generator, full content.
func toContextDocs(docs []contextDoc) []llm.ContextDoc {
	out := make([]llm.ContextDoc, len(docs))
	for i, d := range docs {
		sourceType := d.metadata[vectorstore.MetaSourceType]
		if sourceType == "" {
			sourceType = "unknown"
		}
		out[i] = llm.ContextDoc{
			Content:    d.content,
			SourceType: sourceType,
			Score:      d.score,
		}
	}
	return out
}

// toSources converts internal docs for the API response, truncated content.
func toSources(docs []contextDoc) []Source {
	out := make([]Source, len(docs))
	for i, d := range docs {
		out[i] = Source{
			Content:  truncate(d.content, sourcePreviewLimit),
			Metadata: d.metadata,
			Score:    d.score,
		}
	}
	return out
}

// truncate limits s to n runes, appending an ellipsis marker when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// CacheStats exposes query cache counters for the stats endpoint.
func (o *Orchestrator) CacheStats() querycache.Stats {
	return o.cache.Stats()
}

// ClearCache drops cache entries. An empty pattern clears everything and
// returns the previous size.
func (o *Orchestrator) ClearCache(pattern string) int {
	if pattern == "" {
		n := o.cache.Stats().Size
		o.cache.InvalidateAll()
		return n
	}
	return o.cache.Invalidate(pattern)
}

// StoreStats exposes vector store counts for the stats endpoint.
func (o *Orchestrator) StoreStats(ctx context.Context) (vectorstore.Stats, error) {
	stats, err := o.store.Stats(ctx)
	if err != nil {
		return vectorstore.Stats{}, fmt.Errorf("reading store stats: %w", err)
	}
	return stats, nil
}
