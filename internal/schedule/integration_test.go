package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/vhoang/troly/internal/schedule"
	"github.com/vhoang/troly/internal/testutil"
)

func TestRepositoryPostgres_ListSchedulesIncludesDraft(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	repo := schedule.NewRepository(db.Pool)

	day := time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC)
	for _, row := range []struct {
		content string
		status  string
	}{
		{"Họp giao ban", "approved"},
		{"Họp dự kiến", "draft"},
		{"Họp đã hủy", "cancelled"},
	} {
		_, err := db.Pool.Exec(ctx, `
			INSERT INTO schedules (date, day_of_week, content, status)
			VALUES ($1, 'Thứ năm', $2, $3)`, day, row.content, row.status)
		if err != nil {
			t.Fatalf("inserting schedule: %v", err)
		}
	}

	listed, err := repo.ListSchedules(ctx)
	if err != nil {
		t.Fatalf("ListSchedules: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed = %d, want 2 (approved and draft)", len(listed))
	}

	// Exact lookup and indexing must see the same calendar.
	inRange, err := repo.SchedulesInRange(ctx, day, day)
	if err != nil {
		t.Fatalf("SchedulesInRange: %v", err)
	}
	if len(inRange) != len(listed) {
		t.Errorf("in range = %d, listed = %d, want equal", len(inRange), len(listed))
	}
}

func TestRepositoryPostgres_SaveDocumentReplaces(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	repo := schedule.NewRepository(db.Pool)

	first, err := repo.SaveDocument(ctx, "Giới thiệu", "Trường Đại học Thái Bình.")
	if err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	second, err := repo.SaveDocument(ctx, "Giới thiệu", "Trường Đại học Thái Bình, bản cập nhật.")
	if err != nil {
		t.Fatalf("SaveDocument again: %v", err)
	}
	if first == second {
		t.Errorf("both saves returned id %d", first)
	}

	docs, err := repo.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("documents = %d, want 1 (save replaces the previous upload)", len(docs))
	}
	if docs[0].ID != second || docs[0].Content != "Trường Đại học Thái Bình, bản cập nhật." {
		t.Errorf("stored document = %+v", docs[0])
	}
}
