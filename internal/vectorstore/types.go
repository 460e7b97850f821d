package vectorstore

import "time"

// Source type constants for indexed documents.
const (
	// SourceTypeSchedule represents working-calendar entries.
	SourceTypeSchedule = "schedule"

	// SourceTypeNews represents published news articles.
	SourceTypeNews = "news"

	// SourceTypeAnnouncement represents official announcements.
	SourceTypeAnnouncement = "announcement"

	// SourceTypeDocument represents uploaded reference documents.
	SourceTypeDocument = "document"
)

// Metadata keys every indexed document carries.
const (
	MetaSourceType = "source_type"
	MetaSourceID   = "source_id"
	MetaTitle      = "title"
)

// Document is a chunk of indexed text with its provenance metadata.
type Document struct {
	ID        string            // Unique identifier, assigned on Add when empty
	Content   string            // Chunk text
	Metadata  map[string]string // Provenance: source_type, source_id, title, ...
	CreatedAt time.Time
}

// SourceType returns the document's source type from metadata.
func (d Document) SourceType() string {
	return d.Metadata[MetaSourceType]
}

// SourceID returns the origin record identifier from metadata.
func (d Document) SourceID() string {
	return d.Metadata[MetaSourceID]
}

// Result is a single search hit. Score is cosine similarity rounded to three
// decimals, in [0, 1] for non-negative embeddings; 1.0 marks an exact
// structured match injected upstream.
type Result struct {
	Document Document
	Score    float64
}

// Stats summarizes store contents.
type Stats struct {
	Total    int64            `json:"total"`
	BySource map[string]int64 `json:"by_source"`
}

// SearchOption configures search behavior using the functional options pattern.
type SearchOption func(*searchConfig)

// searchConfig holds internal search configuration.
type searchConfig struct {
	topK       int
	threshold  float64
	sourceType string
}

// WithTopK sets the maximum number of results to return.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithThreshold sets the minimum similarity score to include a result.
func WithThreshold(t float64) SearchOption {
	return func(c *searchConfig) {
		c.threshold = t
	}
}

// WithSourceType restricts search to one source type.
func WithSourceType(sourceType string) SearchOption {
	return func(c *searchConfig) {
		c.sourceType = sourceType
	}
}

// buildSearchConfig applies search options over the store defaults.
func (s *Store) buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:      s.topK,
		threshold: s.threshold,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
