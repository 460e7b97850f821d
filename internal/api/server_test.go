package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/vhoang/troly/internal/querycache"
	"github.com/vhoang/troly/internal/rag"
	"github.com/vhoang/troly/internal/vectorstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubPipeline struct {
	response  rag.Response
	lastReq   rag.QueryRequest
	panicking bool
	statsErr  error
	cleared   string
}

func (p *stubPipeline) Query(_ context.Context, req rag.QueryRequest) rag.Response {
	if p.panicking {
		panic("boom")
	}
	p.lastReq = req
	return p.response
}

func (p *stubPipeline) CacheStats() querycache.Stats {
	return querycache.Stats{Size: 2, MaxSize: 100, Hits: 5, Misses: 5, HitRate: 0.5}
}

func (p *stubPipeline) ClearCache(pattern string) int {
	p.cleared = pattern
	return 3
}

func (p *stubPipeline) StoreStats(context.Context) (vectorstore.Stats, error) {
	if p.statsErr != nil {
		return vectorstore.Stats{}, p.statsErr
	}
	return vectorstore.Stats{Total: 42, BySource: map[string]int64{"news": 42}}, nil
}

type stubIndexer struct {
	reindexErr  error
	lastTitle   string
	lastIndexed string
}

func (ix *stubIndexer) IndexSchedules(context.Context) (int, error) {
	ix.lastIndexed = "schedules"
	return 10, nil
}

func (ix *stubIndexer) IndexNews(context.Context) (int, error) {
	ix.lastIndexed = "news"
	return 20, nil
}

func (ix *stubIndexer) IndexAnnouncements(context.Context) (int, error) {
	ix.lastIndexed = "announcements"
	return 5, nil
}

func (ix *stubIndexer) IndexDocument(_ context.Context, title, _ string) (int, string, error) {
	ix.lastTitle = title
	return 4, "abc-123", nil
}

func (ix *stubIndexer) ReindexAll(context.Context) (rag.Counts, error) {
	if ix.reindexErr != nil {
		return rag.Counts{}, ix.reindexErr
	}
	return rag.Counts{Schedules: 10, News: 20, Announcements: 5}, nil
}

type stubVectorAdmin struct {
	lastSourceType string
	lastSourceID   string
	allDeleted     bool
}

func (s *stubVectorAdmin) DeleteBySource(_ context.Context, sourceType, sourceID string) (int64, error) {
	s.lastSourceType, s.lastSourceID = sourceType, sourceID
	return 3, nil
}

func (s *stubVectorAdmin) DeleteBySourceType(_ context.Context, sourceType string) (int64, error) {
	s.lastSourceType = sourceType
	return 7, nil
}

func (s *stubVectorAdmin) DeleteAll(context.Context) (int64, error) {
	s.allDeleted = true
	return 42, nil
}

type testServer struct {
	pipeline *stubPipeline
	indexer  *stubIndexer
	store    *stubVectorAdmin
	handler  http.Handler
}

func newTestServer(t *testing.T, mutate ...func(*ServerConfig)) *testServer {
	t.Helper()
	ts := &testServer{
		pipeline: &stubPipeline{response: rag.Response{Answer: "đáp án", Intent: "general"}},
		indexer:  &stubIndexer{},
		store:    &stubVectorAdmin{},
	}
	cfg := ServerConfig{
		Pipeline: ts.pipeline,
		Indexer:  ts.indexer,
		Store:    ts.store,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts.handler = srv.Handler()
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	return w
}

func TestNewServer_RequiredDependencies(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Error("expected error without pipeline")
	}
	if _, err := NewServer(ServerConfig{Pipeline: &stubPipeline{}}); err == nil {
		t.Error("expected error without indexer")
	}
}

func TestChat(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/v1/chat", `{"question":"học phí bao nhiêu","session_id":"s1"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp rag.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Answer != "đáp án" {
		t.Errorf("answer = %q", resp.Answer)
	}
	if ts.pipeline.lastReq.SessionID != "s1" {
		t.Errorf("session id = %q, want s1", ts.pipeline.lastReq.SessionID)
	}
}

func TestChat_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty body", ``, "invalid_body"},
		{"bad json", `{`, "invalid_body"},
		{"missing question", `{"source_type":"news"}`, "question_required"},
		{"too long", `{"question":"` + strings.Repeat("a", 2001) + `"}`, "question_too_long"},
		{"bad source type", `{"question":"hi?","source_type":"gossip"}`, "invalid_source_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/api/v1/chat", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding error body: %v", err)
			}
			if body.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.code)
			}
		})
	}
}

func TestChat_WrongMethod(t *testing.T) {
	ts := newTestServer(t)

	if w := ts.do(http.MethodGet, "/api/v1/chat", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestIndexDocument(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/v1/index/document", `{"title":"Quy chế","content":"Nội dung quy chế."}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var resp struct {
		SourceID string `json:"source_id"`
		Chunks   int    `json:"chunks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.SourceID != "abc-123" || resp.Chunks != 4 {
		t.Errorf("resp = %+v", resp)
	}
	if ts.indexer.lastTitle != "Quy chế" {
		t.Errorf("title = %q", ts.indexer.lastTitle)
	}
}

func TestIndexDocument_MissingFields(t *testing.T) {
	ts := newTestServer(t)

	if w := ts.do(http.MethodPost, "/api/v1/index/document", `{"content":"x"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing title: status = %d", w.Code)
	}
	if w := ts.do(http.MethodPost, "/api/v1/index/document", `{"title":"x"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing content: status = %d", w.Code)
	}
}

func TestIndexSource(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/v1/index/news", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if ts.indexer.lastIndexed != "news" {
		t.Errorf("indexed = %q, want news", ts.indexer.lastIndexed)
	}
	var resp struct {
		Source  string `json:"source"`
		Indexed int    `json:"indexed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Source != "news" || resp.Indexed != 20 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestReindex(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/v1/reindex", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var counts rag.Counts
	if err := json.Unmarshal(w.Body.Bytes(), &counts); err != nil {
		t.Fatal(err)
	}
	if counts.Schedules != 10 || counts.News != 20 || counts.Announcements != 5 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestReindex_Failure(t *testing.T) {
	ts := newTestServer(t)
	ts.indexer.reindexErr = errors.New("db down")

	if w := ts.do(http.MethodPost, "/api/v1/reindex", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestStats(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/v1/stats", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Vectors vectorstore.Stats `json:"vectors"`
		Cache   querycache.Stats  `json:"cache"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Vectors.Total != 42 {
		t.Errorf("vector total = %d", resp.Vectors.Total)
	}
	if resp.Cache.HitRate != 0.5 {
		t.Errorf("hit rate = %v", resp.Cache.HitRate)
	}
}

func TestCacheEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/v1/cache/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	var stats querycache.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Size != 2 {
		t.Errorf("size = %d, want 2", stats.Size)
	}

	w = ts.do(http.MethodPost, "/api/v1/cache/clear?pattern=học+phí", "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
	if ts.pipeline.cleared != "học phí" {
		t.Errorf("pattern = %q", ts.pipeline.cleared)
	}
}

func TestDeleteVectors(t *testing.T) {
	t.Run("by source", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodDelete, "/api/v1/vectors/news?source_id=9", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if ts.store.lastSourceType != "news" || ts.store.lastSourceID != "9" {
			t.Errorf("scope = %q/%q", ts.store.lastSourceType, ts.store.lastSourceID)
		}
	})

	t.Run("by type", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodDelete, "/api/v1/vectors/schedule", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if ts.store.lastSourceType != "schedule" || ts.store.allDeleted {
			t.Error("wrong scope")
		}
	})

	t.Run("all", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodDelete, "/api/v1/vectors", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if !ts.store.allDeleted {
			t.Error("DeleteAll not called")
		}
	})

	t.Run("source id without type", func(t *testing.T) {
		ts := newTestServer(t)
		if w := ts.do(http.MethodDelete, "/api/v1/vectors?source_id=9", ""); w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		ts := newTestServer(t)
		if w := ts.do(http.MethodDelete, "/api/v1/vectors/gossip", ""); w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

type stubHealth struct{ err error }

func (s *stubHealth) Check(context.Context) error { return s.err }

func TestReady_GeneratorReported(t *testing.T) {
	ts := newTestServer(t, func(cfg *ServerConfig) {
		cfg.Health = &stubHealth{err: errors.New("connection refused")}
	})

	w := ts.do(http.MethodGet, "/ready", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (generator outage is not fatal)", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["generator"] != "unreachable" {
		t.Errorf("generator = %q, want unreachable", body["generator"])
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body)
	}
}

func TestReady_NoPool(t *testing.T) {
	ts := newTestServer(t)

	if w := ts.do(http.MethodGet, "/ready", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/v1/stats", "")

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestRecovery(t *testing.T) {
	ts := newTestServer(t)
	ts.pipeline.panicking = true

	w := ts.do(http.MethodPost, "/api/v1/chat", `{"question":"gây lỗi"}`)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *ServerConfig) {
		cfg.RateLimit = 0.001
		cfg.RateBurst = 1
	})

	if w := ts.do(http.MethodGet, "/api/v1/stats", ""); w.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w.Code)
	}
	w := ts.do(http.MethodGet, "/api/v1/stats", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestRateLimit_HealthExempt(t *testing.T) {
	ts := newTestServer(t, func(cfg *ServerConfig) {
		cfg.RateLimit = 0.001
		cfg.RateBurst = 1
	})

	for i := 0; i < 5; i++ {
		if w := ts.do(http.MethodGet, "/health", ""); w.Code != http.StatusOK {
			t.Fatalf("health request %d status = %d", i, w.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, func(cfg *ServerConfig) {
		cfg.CORSOrigins = []string{"https://tbu.edu.vn"}
	})

	r := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	r.Header.Set("Origin", "https://tbu.edu.vn")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://tbu.edu.vn" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestCORS_UnknownOriginGetsNoHeaders(t *testing.T) {
	ts := newTestServer(t, func(cfg *ServerConfig) {
		cfg.CORSOrigins = []string{"https://tbu.edu.vn"}
	})

	r := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	r.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow origin = %q, want empty", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xri        string
		xff        string
		trustProxy bool
		want       string
	}{
		{"remote addr", "10.0.0.1:1234", "", "", false, "10.0.0.1"},
		{"proxy headers ignored when untrusted", "10.0.0.1:1234", "1.2.3.4", "", false, "10.0.0.1"},
		{"x-real-ip", "10.0.0.1:1234", "1.2.3.4", "", true, "1.2.3.4"},
		{"x-forwarded-for first", "10.0.0.1:1234", "", "1.2.3.4, 5.6.7.8", true, "1.2.3.4"},
		{"invalid header falls back", "10.0.0.1:1234", "not-an-ip", "", true, "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
