package rag

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vhoang/troly/internal/log"
	"github.com/vhoang/troly/internal/schedule"
	"github.com/vhoang/troly/internal/vectorstore"
)

// metadataPreviewLimit truncates the content preview stored in metadata.
const metadataPreviewLimit = 100

// Indexer replaces vector store content from the structured sources.
// Each Index method is replace-by-type: old embeddings of that source type
// are deleted before the fresh ones are written, so a crash mid-index loses
// at worst one source type until the next run. Every replacement clears the
// query cache, since cached answers may cite the removed rows.
type Indexer struct {
	store        VectorStore
	source       ContentSource
	cache        Cache
	logger       log.Logger
	chunkSize    int
	chunkOverlap int
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithChunking overrides the chunk size and overlap.
func WithChunking(size, overlap int) IndexerOption {
	return func(ix *Indexer) {
		ix.chunkSize = size
		ix.chunkOverlap = overlap
	}
}

// NewIndexer creates an Indexer.
func NewIndexer(store VectorStore, source ContentSource, cache Cache, logger log.Logger, opts ...IndexerOption) *Indexer {
	if logger == nil {
		logger = log.NewNop()
	}
	ix := &Indexer{
		store:        store,
		source:       source,
		cache:        cache,
		logger:       logger,
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// replaceSourceType clears the stored embeddings of one source type and the
// query cache. Cache entries are stale from this point even if the add that
// follows fails.
func (ix *Indexer) replaceSourceType(ctx context.Context, sourceType string) error {
	if _, err := ix.store.DeleteBySourceType(ctx, sourceType); err != nil {
		return fmt.Errorf("clearing %s embeddings: %w", sourceType, err)
	}
	ix.cache.InvalidateAll()
	return nil
}

// IndexSchedules replaces all schedule embeddings. Calendar entries are short
// and indexed whole, one document each.
func (ix *Indexer) IndexSchedules(ctx context.Context) (int, error) {
	entries, err := ix.source.ListSchedules(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading schedules: %w", err)
	}
	if len(entries) == 0 {
		ix.logger.Warn("no schedules to index")
		return 0, nil
	}

	if err := ix.replaceSourceType(ctx, vectorstore.SourceTypeSchedule); err != nil {
		return 0, err
	}

	docs := make([]vectorstore.Document, 0, len(entries))
	for _, entry := range entries {
		sourceID := strconv.FormatInt(entry.ID, 10)
		docs = append(docs, vectorstore.Document{
			ID:      vectorstore.SourceTypeSchedule + "_" + sourceID,
			Content: schedule.FormatSchedule(entry),
			Metadata: map[string]string{
				vectorstore.MetaSourceType: vectorstore.SourceTypeSchedule,
				vectorstore.MetaSourceID:   sourceID,
				"date":                     entry.Date.Format("2006-01-02"),
				"leader":                   entry.Leader,
				"location":                 entry.Location,
				"content_preview":          truncate(entry.Content, metadataPreviewLimit),
			},
		})
	}

	indexed, err := ix.store.AddBatch(ctx, docs)
	if err != nil {
		return indexed, fmt.Errorf("indexing schedules: %w", err)
	}

	ix.logger.Info("indexed schedules", "count", indexed)
	return indexed, nil
}

// IndexNews replaces all news embeddings. Long articles are chunked.
func (ix *Indexer) IndexNews(ctx context.Context) (int, error) {
	articles, err := ix.source.ListNews(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading news: %w", err)
	}
	if len(articles) == 0 {
		return 0, nil
	}

	if err := ix.replaceSourceType(ctx, vectorstore.SourceTypeNews); err != nil {
		return 0, err
	}

	var docs []vectorstore.Document
	for _, article := range articles {
		sourceID := strconv.FormatInt(article.ID, 10)
		text := schedule.FormatNews(article)
		for i, chunk := range ChunkText(text, ix.chunkSize, ix.chunkOverlap) {
			docs = append(docs, vectorstore.Document{
				ID:      fmt.Sprintf("%s_%s_%d", vectorstore.SourceTypeNews, sourceID, i),
				Content: chunk,
				Metadata: map[string]string{
					vectorstore.MetaSourceType: vectorstore.SourceTypeNews,
					vectorstore.MetaSourceID:   sourceID,
					vectorstore.MetaTitle:      article.Title,
					"chunk_index":              strconv.Itoa(i),
				},
			})
		}
	}

	indexed, err := ix.store.AddBatch(ctx, docs)
	if err != nil {
		return indexed, fmt.Errorf("indexing news: %w", err)
	}

	ix.logger.Info("indexed news", "articles", len(articles), "chunks", indexed)
	return indexed, nil
}

// IndexAnnouncements replaces all announcement embeddings. Expired
// announcements are excluded at the source.
func (ix *Indexer) IndexAnnouncements(ctx context.Context) (int, error) {
	items, err := ix.source.ListAnnouncements(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading announcements: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	if err := ix.replaceSourceType(ctx, vectorstore.SourceTypeAnnouncement); err != nil {
		return 0, err
	}

	var docs []vectorstore.Document
	for _, item := range items {
		sourceID := strconv.FormatInt(item.ID, 10)
		text := schedule.FormatAnnouncement(item)
		for i, chunk := range ChunkText(text, ix.chunkSize, ix.chunkOverlap) {
			docs = append(docs, vectorstore.Document{
				ID:      fmt.Sprintf("%s_%s_%d", vectorstore.SourceTypeAnnouncement, sourceID, i),
				Content: chunk,
				Metadata: map[string]string{
					vectorstore.MetaSourceType: vectorstore.SourceTypeAnnouncement,
					vectorstore.MetaSourceID:   sourceID,
					vectorstore.MetaTitle:      item.Title,
					"priority":                 item.Priority,
					"chunk_index":              strconv.Itoa(i),
				},
			})
		}
	}

	indexed, err := ix.store.AddBatch(ctx, docs)
	if err != nil {
		return indexed, fmt.Errorf("indexing announcements: %w", err)
	}

	ix.logger.Info("indexed announcements", "items", len(items), "chunks", indexed)
	return indexed, nil
}

// IndexDocument stores one free-form reference document, such as extracted
// file content, and replaces the document embeddings with its chunks.
// Returns the chunk count and the assigned source ID.
func (ix *Indexer) IndexDocument(ctx context.Context, title, content string) (int, string, error) {
	if len(ChunkText(content, ix.chunkSize, ix.chunkOverlap)) == 0 {
		return 0, "", fmt.Errorf("document %q has no content", title)
	}

	id, err := ix.source.SaveDocument(ctx, title, content)
	if err != nil {
		return 0, "", fmt.Errorf("storing document %q: %w", title, err)
	}

	n, err := ix.IndexDocuments(ctx)
	if err != nil {
		return n, "", err
	}

	sourceID := strconv.FormatInt(id, 10)
	ix.logger.Info("indexed document", "title", title, "chunks", n, "source_id", sourceID)
	return n, sourceID, nil
}

// IndexDocuments replaces the document embeddings from the stored reference
// documents.
func (ix *Indexer) IndexDocuments(ctx context.Context) (int, error) {
	stored, err := ix.source.ListDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading documents: %w", err)
	}
	if len(stored) == 0 {
		return 0, nil
	}

	if err := ix.replaceSourceType(ctx, vectorstore.SourceTypeDocument); err != nil {
		return 0, err
	}

	var docs []vectorstore.Document
	for _, d := range stored {
		sourceID := strconv.FormatInt(d.ID, 10)
		for i, chunk := range ChunkText(d.Content, ix.chunkSize, ix.chunkOverlap) {
			docs = append(docs, vectorstore.Document{
				ID:      fmt.Sprintf("%s_%s_%d", vectorstore.SourceTypeDocument, sourceID, i),
				Content: chunk,
				Metadata: map[string]string{
					vectorstore.MetaSourceType: vectorstore.SourceTypeDocument,
					vectorstore.MetaSourceID:   sourceID,
					vectorstore.MetaTitle:      d.Title,
					"chunk_index":              strconv.Itoa(i),
				},
			})
		}
	}

	indexed, err := ix.store.AddBatch(ctx, docs)
	if err != nil {
		return indexed, fmt.Errorf("indexing documents: %w", err)
	}
	return indexed, nil
}

// Counts reports how many chunks each source contributed in a full reindex.
type Counts struct {
	Schedules     int `json:"schedules"`
	News          int `json:"news"`
	Announcements int `json:"announcements"`
	Documents     int `json:"documents"`
}

// ReindexAll rebuilds every source, stored reference documents included, and
// clears the query cache.
func (ix *Indexer) ReindexAll(ctx context.Context) (Counts, error) {
	var counts Counts
	var err error

	if counts.Schedules, err = ix.IndexSchedules(ctx); err != nil {
		return counts, err
	}
	if counts.News, err = ix.IndexNews(ctx); err != nil {
		return counts, err
	}
	if counts.Announcements, err = ix.IndexAnnouncements(ctx); err != nil {
		return counts, err
	}
	if counts.Documents, err = ix.IndexDocuments(ctx); err != nil {
		return counts, err
	}

	ix.cache.InvalidateAll()
	ix.logger.Info("full reindex complete",
		"schedules", counts.Schedules,
		"news", counts.News,
		"announcements", counts.Announcements,
		"documents", counts.Documents)
	return counts, nil
}
