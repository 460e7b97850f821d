package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/vhoang/troly/internal/dateparse"
	"github.com/vhoang/troly/internal/llm"
	"github.com/vhoang/troly/internal/querycache"
	"github.com/vhoang/troly/internal/schedule"
	"github.com/vhoang/troly/internal/vectorstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Thursday, 22 January 2026.
var testNow = time.Date(2026, 1, 22, 9, 0, 0, 0, time.UTC)

type mockStore struct {
	results     []vectorstore.Result
	searchErr   error
	searchCalls int
	lastQuery   string
}

func (m *mockStore) Add(context.Context, vectorstore.Document) error { return nil }

func (m *mockStore) AddBatch(_ context.Context, docs []vectorstore.Document) (int, error) {
	return len(docs), nil
}

func (m *mockStore) Search(_ context.Context, query string, _ ...vectorstore.SearchOption) ([]vectorstore.Result, error) {
	m.searchCalls++
	m.lastQuery = query
	return m.results, m.searchErr
}

func (m *mockStore) DeleteBySource(context.Context, string, string) (int64, error) { return 0, nil }
func (m *mockStore) DeleteBySourceType(context.Context, string) (int64, error)     { return 0, nil }
func (m *mockStore) DeleteAll(context.Context) (int64, error)                      { return 0, nil }
func (m *mockStore) Stats(context.Context) (vectorstore.Stats, error) {
	return vectorstore.Stats{}, nil
}

type mockGenerator struct {
	answer  string
	err     error
	calls   int
	lastReq llm.Request
}

func (m *mockGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	m.calls++
	m.lastReq = req
	return m.answer, m.err
}

type mockScheduleSource struct {
	entries   []schedule.Schedule
	err       error
	calls     int
	lastStart time.Time
	lastEnd   time.Time
}

func (m *mockScheduleSource) SchedulesInRange(_ context.Context, start, end time.Time) ([]schedule.Schedule, error) {
	m.calls++
	m.lastStart, m.lastEnd = start, end
	return m.entries, m.err
}

type mockCache struct {
	data     map[string]any
	getCalls int
	setCalls int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string]any)}
}

func (m *mockCache) Get(query, sourceType string) (any, bool) {
	m.getCalls++
	v, ok := m.data[query+"|"+sourceType]
	return v, ok
}

func (m *mockCache) Set(query, sourceType string, response any) {
	m.setCalls++
	m.data[query+"|"+sourceType] = response
}

func (m *mockCache) Invalidate(string) int   { return 0 }
func (m *mockCache) InvalidateAll()          { m.data = make(map[string]any) }
func (m *mockCache) Stats() querycache.Stats { return querycache.Stats{Size: len(m.data)} }

type fixture struct {
	store     *mockStore
	generator *mockGenerator
	schedules *mockScheduleSource
	cache     *mockCache
	orch      *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		store:     &mockStore{},
		generator: &mockGenerator{answer: "câu trả lời"},
		schedules: &mockScheduleSource{},
		cache:     newMockCache(),
	}
	parser := dateparse.NewParser(dateparse.WithNow(func() time.Time { return testNow }))
	f.orch = New(f.store, f.generator, f.schedules, f.cache, parser, nil,
		WithClock(func() time.Time { return testNow }))
	return f
}

func vectorResult(content, sourceType string, score float64) vectorstore.Result {
	return vectorstore.Result{
		Document: vectorstore.Document{
			Content:  content,
			Metadata: map[string]string{vectorstore.MetaSourceType: sourceType},
		},
		Score: score,
	}
}

func TestQuery_GreetingShortCircuits(t *testing.T) {
	f := newFixture()

	resp := f.orch.Query(context.Background(), QueryRequest{Question: "xin chào", SessionID: "s1"})

	if resp.Answer != answerHello {
		t.Errorf("Answer = %q, want canned hello", resp.Answer)
	}
	if resp.Intent != "greeting" {
		t.Errorf("Intent = %q, want greeting", resp.Intent)
	}
	if resp.SessionID != "s1" {
		t.Errorf("SessionID = %q, want echoed", resp.SessionID)
	}
	if f.store.searchCalls != 0 || f.generator.calls != 0 || f.schedules.calls != 0 || f.cache.getCalls != 0 {
		t.Error("greeting touched a collaborator")
	}
}

func TestQuery_GeneralUsesCacheOnRepeat(t *testing.T) {
	f := newFixture()
	f.store.results = []vectorstore.Result{vectorResult("tin tức", "news", 0.8)}

	ctx := context.Background()
	first := f.orch.Query(ctx, QueryRequest{Question: "tin tức mới nhất"})
	if first.Cached {
		t.Error("first query marked cached")
	}
	if f.cache.setCalls != 1 {
		t.Fatalf("cache.Set calls = %d, want 1", f.cache.setCalls)
	}

	second := f.orch.Query(ctx, QueryRequest{Question: "tin tức mới nhất", SessionID: "s2"})
	if !second.Cached {
		t.Error("repeat query not served from cache")
	}
	if second.Answer != first.Answer {
		t.Error("cached answer differs")
	}
	if second.SessionID != "s2" {
		t.Error("cached response did not carry the new session id")
	}
	if f.store.searchCalls != 1 {
		t.Errorf("search calls = %d, want 1 (second served from cache)", f.store.searchCalls)
	}
}

func TestQuery_ScheduleBypassesCache(t *testing.T) {
	f := newFixture()
	f.store.results = []vectorstore.Result{vectorResult("lịch", "schedule", 0.9)}

	ctx := context.Background()
	f.orch.Query(ctx, QueryRequest{Question: "lịch công tác hôm nay"})
	f.orch.Query(ctx, QueryRequest{Question: "lịch công tác hôm nay"})

	if f.cache.getCalls != 0 || f.cache.setCalls != 0 {
		t.Errorf("schedule query touched cache: get=%d set=%d", f.cache.getCalls, f.cache.setCalls)
	}
	if f.store.searchCalls != 2 {
		t.Errorf("search calls = %d, want 2", f.store.searchCalls)
	}
}

func TestQuery_ScheduleExactMatchFirst(t *testing.T) {
	f := newFixture()
	f.schedules.entries = []schedule.Schedule{{
		ID:      1,
		Date:    time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC),
		Content: "Họp giao ban",
	}}
	f.store.results = []vectorstore.Result{vectorResult("kết quả vector", "schedule", 0.7)}

	resp := f.orch.Query(context.Background(), QueryRequest{Question: "hôm nay có lịch gì"})

	if f.schedules.calls != 1 {
		t.Fatalf("schedule lookups = %d, want 1", f.schedules.calls)
	}
	wantDay := time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC)
	if !f.schedules.lastStart.Equal(wantDay) || !f.schedules.lastEnd.Equal(wantDay) {
		t.Errorf("lookup range = [%v, %v], want today", f.schedules.lastStart, f.schedules.lastEnd)
	}
	if resp.NumRetrieved != 2 {
		t.Fatalf("NumRetrieved = %d, want 2", resp.NumRetrieved)
	}
	if resp.Sources[0].Score != 1.0 {
		t.Errorf("exact match score = %v, want 1.0", resp.Sources[0].Score)
	}
	if !strings.Contains(resp.Sources[0].Content, "Họp giao ban") {
		t.Errorf("exact match not first: %q", resp.Sources[0].Content)
	}
	// The retrieval query carries the resolved date.
	if !strings.Contains(f.store.lastQuery, "Ngày cần tìm") {
		t.Errorf("search query not date-enhanced: %q", f.store.lastQuery)
	}
	// The generator sees the current date.
	if !strings.Contains(f.generator.lastReq.DateContext, "22/01/2026") {
		t.Errorf("DateContext = %q", f.generator.lastReq.DateContext)
	}
}

func TestQuery_MergeDeduplicatesByContent(t *testing.T) {
	f := newFixture()
	f.schedules.entries = []schedule.Schedule{{
		ID:      1,
		Date:    time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC),
		Content: "Họp giao ban",
	}}
	exact := schedule.FormatSchedule(f.schedules.entries[0])
	f.store.results = []vectorstore.Result{
		{Document: vectorstore.Document{Content: exact,
			Metadata: map[string]string{vectorstore.MetaSourceType: "schedule"}}, Score: 0.95},
		vectorResult("khác", "news", 0.5),
	}

	resp := f.orch.Query(context.Background(), QueryRequest{Question: "hôm nay có lịch gì"})

	if resp.NumRetrieved != 2 {
		t.Errorf("NumRetrieved = %d, want 2 (duplicate dropped)", resp.NumRetrieved)
	}
}

func TestQuery_NoContextAnswer(t *testing.T) {
	f := newFixture()

	resp := f.orch.Query(context.Background(), QueryRequest{Question: "tin tức mới nhất"})

	if resp.Answer != answerNoContextDefault {
		t.Errorf("Answer = %q, want no-context default", resp.Answer)
	}
	if f.generator.calls != 0 {
		t.Error("generator called with no context")
	}
	if f.cache.setCalls != 0 {
		t.Error("no-context response was cached")
	}
}

func TestQuery_NoContextHelpAnswer(t *testing.T) {
	f := newFixture()

	resp := f.orch.Query(context.Background(), QueryRequest{Question: "bạn hướng dẫn sử dụng với, tôi chưa rõ cách dùng hệ thống"})

	if resp.Answer != answerNoContextHelp {
		t.Errorf("Answer = %q, want help guide", resp.Answer)
	}
}

func TestQuery_NoContextGreetingSubstring(t *testing.T) {
	f := newFixture()

	// Too long for the greeting short-circuit, but the embedded "chào"
	// still routes the empty retrieval to the introduction.
	resp := f.orch.Query(context.Background(), QueryRequest{
		Question: "cho tôi gửi lời chào và hỏi thông tin về chương trình liên kết quốc tế của nhà trường",
	})

	if resp.Answer != answerHello {
		t.Errorf("Answer = %q, want introduction", resp.Answer)
	}
	if f.generator.calls != 0 {
		t.Error("generator called with no context")
	}
}

func TestQuery_SearchErrorMapsToApology(t *testing.T) {
	f := newFixture()
	f.store.searchErr = errors.New("db down")

	resp := f.orch.Query(context.Background(), QueryRequest{Question: "tin tức mới nhất"})

	if resp.Answer != answerError {
		t.Errorf("Answer = %q, want generic apology", resp.Answer)
	}
}

func TestQuery_GenerationTimeoutMapsToTimeoutApology(t *testing.T) {
	f := newFixture()
	f.store.results = []vectorstore.Result{vectorResult("tin", "news", 0.8)}
	f.generator.err = context.DeadlineExceeded

	resp := f.orch.Query(context.Background(), QueryRequest{Question: "tin tức mới nhất"})

	if resp.Answer != answerTimeout {
		t.Errorf("Answer = %q, want timeout apology", resp.Answer)
	}
	if f.cache.setCalls != 0 {
		t.Error("failed response was cached")
	}
}

func TestQuery_ScheduleLookupFailureDegrades(t *testing.T) {
	f := newFixture()
	f.schedules.err = errors.New("db down")
	f.store.results = []vectorstore.Result{vectorResult("lịch từ vector", "schedule", 0.8)}

	resp := f.orch.Query(context.Background(), QueryRequest{Question: "hôm nay có lịch gì"})

	if resp.Answer != "câu trả lời" {
		t.Errorf("Answer = %q, want generated answer despite lookup failure", resp.Answer)
	}
	if resp.NumRetrieved != 1 {
		t.Errorf("NumRetrieved = %d, want 1", resp.NumRetrieved)
	}
}

func TestQuery_SourcePreviewTruncated(t *testing.T) {
	f := newFixture()
	long := strings.Repeat("a", 400)
	f.store.results = []vectorstore.Result{vectorResult(long, "news", 0.8)}

	resp := f.orch.Query(context.Background(), QueryRequest{Question: "tin tức mới nhất"})

	if got := resp.Sources[0].Content; len([]rune(got)) != sourcePreviewLimit+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("preview length = %d, want %d plus ellipsis", len([]rune(got)), sourcePreviewLimit+3)
	}
	// The generator still receives the full content.
	if f.generator.lastReq.Context[0].Content != long {
		t.Error("generator context was truncated")
	}
}

func TestClearCache(t *testing.T) {
	f := newFixture()
	f.cache.data["a|"] = Response{}
	f.cache.data["b|"] = Response{}

	if n := f.orch.ClearCache(""); n != 2 {
		t.Errorf("ClearCache = %d, want 2", n)
	}
	if len(f.cache.data) != 0 {
		t.Error("cache not cleared")
	}
}
