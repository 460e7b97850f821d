package vectorstore_test

import (
	"context"
	"testing"

	"github.com/vhoang/troly/internal/log"
	"github.com/vhoang/troly/internal/testutil"
	"github.com/vhoang/troly/internal/vectorstore"
)

// testDimension matches the vector(1024) column in the migration.
const testDimension = 1024

func TestStorePostgres_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	querier := vectorstore.NewPostgresQuerier(db.Pool)
	store := vectorstore.New(querier, testutil.NewHashEmbedder(testDimension), log.NewNop(), testDimension)

	docs := []vectorstore.Document{
		{
			ID:      "news_1_0",
			Content: "Trường tổ chức lễ khai giảng năm học mới.",
			Metadata: map[string]string{
				vectorstore.MetaSourceType: vectorstore.SourceTypeNews,
				vectorstore.MetaSourceID:   "1",
			},
		},
		{
			ID:      "schedule_2",
			Content: "Họp giao ban đầu tuần tại phòng A101.",
			Metadata: map[string]string{
				vectorstore.MetaSourceType: vectorstore.SourceTypeSchedule,
				vectorstore.MetaSourceID:   "2",
			},
		},
	}
	if n, err := store.AddBatch(ctx, docs); err != nil || n != 2 {
		t.Fatalf("AddBatch = %d, %v", n, err)
	}

	// The hash embedder maps identical text to identical vectors, so
	// querying with the exact content must return that document at 1.0.
	results, err := store.Search(ctx, "Họp giao ban đầu tuần tại phòng A101.",
		vectorstore.WithThreshold(0.99))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Document.ID != "schedule_2" {
		t.Errorf("top result = %q", results[0].Document.ID)
	}
	if results[0].Score != 1.0 {
		t.Errorf("score = %v, want 1.0", results[0].Score)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("total = %d, want 2", stats.Total)
	}
	if stats.BySource[vectorstore.SourceTypeNews] != 1 {
		t.Errorf("news count = %d, want 1", stats.BySource[vectorstore.SourceTypeNews])
	}

	// Upsert keeps the ID stable.
	docs[0].Content = "Trường tổ chức lễ khai giảng, cập nhật."
	if err := store.Add(ctx, docs[0]); err != nil {
		t.Fatalf("Add upsert: %v", err)
	}
	stats, err = store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 {
		t.Errorf("total after upsert = %d, want 2", stats.Total)
	}

	deleted, err := store.DeleteBySourceType(ctx, vectorstore.SourceTypeNews)
	if err != nil {
		t.Fatalf("DeleteBySourceType: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
}
