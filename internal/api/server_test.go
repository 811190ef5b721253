package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sitebrain/sitebrain/internal/config"
	"github.com/sitebrain/sitebrain/internal/ingest"
	"github.com/sitebrain/sitebrain/internal/knowledge"
	"github.com/sitebrain/sitebrain/internal/log"
	"github.com/sitebrain/sitebrain/internal/pipeline"
)

type stubModels struct {
	pingErr error
	genErr  error
}

func (s *stubModels) Ping(context.Context) error { return s.pingErr }

func (s *stubModels) Probe(context.Context) (bool, bool, error) { return true, true, nil }

func (s *stubModels) Generate(_ context.Context, _ string) (string, error) {
	if s.genErr != nil {
		return "", s.genErr
	}
	return "Stub answer.", nil
}

func (s *stubModels) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1}, nil
}

type stubIndex struct {
	docs    []knowledge.Document
	results []knowledge.Result
}

func (s *stubIndex) Search(context.Context, []float32, int) ([]knowledge.Result, error) {
	return s.results, nil
}

func (s *stubIndex) Documents(context.Context) ([]knowledge.Document, error) {
	return s.docs, nil
}

func (s *stubIndex) Delete(_ context.Context, origin string) error {
	for i, d := range s.docs {
		if d.Origin == origin {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *stubIndex) ChunkCount(context.Context) (int64, error) {
	return int64(len(s.results)), nil
}

type stubLoader struct{ fileErr error }

func (s *stubLoader) IngestFile(context.Context, string) error { return s.fileErr }

func (s *stubLoader) IngestDirectory(context.Context, string) (ingest.Report, error) {
	return ingest.Report{}, nil
}

func newTestServer(t *testing.T, models *stubModels, index *stubIndex, loader *stubLoader) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		DataDir:             t.TempDir(),
		SupportedExtensions: []string{".txt", ".md"},
		MaxUploadSizeMB:     1,
		SimilarityTopK:      3,
	}
	svc := pipeline.New(cfg, models, index, loader, log.NewNop())
	if got := svc.Initialize(context.Background()); got != pipeline.StatusSuccess {
		t.Fatalf("Initialize() = %v", got)
	}

	srv, err := NewServer(ServerConfig{Service: svc, Logger: log.NewNop(), RateBurst: 1000})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestQueryEndpoint(t *testing.T) {
	index := &stubIndex{results: []knowledge.Result{
		{Content: "We ship worldwide.", Origin: "https://example.com/shipping"},
	}}
	ts := newTestServer(t, &stubModels{}, index, &stubLoader{})

	t.Run("answers a question", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/api/v1/query", map[string]string{"question": "Do you ship?"})
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if id := resp.Header.Get("X-Request-ID"); id == "" {
			t.Error("response missing X-Request-ID")
		}

		var body queryResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Answer != "Stub answer." {
			t.Errorf("answer = %q", body.Answer)
		}
		if len(body.Sources) != 1 || body.Sources[0] != "https://example.com/shipping" {
			t.Errorf("sources = %v", body.Sources)
		}
	})

	t.Run("rejects missing question", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/api/v1/query", map[string]string{})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/v1/query", "application/json", strings.NewReader("{broken"))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})
}

func TestQueryBeforeInit(t *testing.T) {
	cfg := &config.Config{
		DataDir:        t.TempDir(),
		SimilarityTopK: 3,
	}
	svc := pipeline.New(cfg, &stubModels{}, &stubIndex{}, &stubLoader{}, log.NewNop())
	srv, err := NewServer(ServerConfig{Service: svc, Logger: log.NewNop()})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/query", map[string]string{"question": "hi"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 before init", resp.StatusCode)
	}
}

func TestQueryGenerationFailure(t *testing.T) {
	models := &stubModels{}
	ts := newTestServer(t, models, &stubIndex{}, &stubLoader{})
	models.genErr = errors.New("model crashed")

	resp := postJSON(t, ts.URL+"/api/v1/query", map[string]string{"question": "hi"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func uploadFile(t *testing.T, url, filename, content string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(url+"/api/v1/documents", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestDocumentEndpoints(t *testing.T) {
	index := &stubIndex{docs: []knowledge.Document{
		{Origin: "manual.txt", FileType: "txt", ProcessedAt: time.Now()},
	}}
	ts := newTestServer(t, &stubModels{}, index, &stubLoader{})

	t.Run("upload", func(t *testing.T) {
		resp := uploadFile(t, ts.URL, "notes.txt", "useful notes content")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Errorf("status = %d, want 201", resp.StatusCode)
		}
	})

	t.Run("upload rejects bad extension", func(t *testing.T) {
		resp := uploadFile(t, ts.URL, "evil.exe", "MZ")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("list", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/v1/documents")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}

		var body struct {
			Documents []pipeline.DocumentInfo `json:"documents"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if len(body.Documents) == 0 {
			t.Error("no documents listed")
		}
	})

	t.Run("delete", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/documents/manual.txt", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("status = %d, want 204", resp.StatusCode)
		}
	})

	t.Run("delete unknown document", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/documents/ghost.txt", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("healthy service", func(t *testing.T) {
		ts := newTestServer(t, &stubModels{}, &stubIndex{}, &stubLoader{})

		resp, err := http.Get(ts.URL + "/health")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d", resp.StatusCode)
		}

		var h pipeline.Health
		if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
			t.Fatal(err)
		}
		if !h.Ready {
			t.Errorf("health = %+v", h)
		}
	})

	t.Run("degraded service returns 503", func(t *testing.T) {
		models := &stubModels{}
		ts := newTestServer(t, models, &stubIndex{}, &stubLoader{})
		models.pingErr = errors.New("gone")

		resp, err := http.Get(ts.URL + "/health")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", resp.StatusCode)
		}
	})
}

func TestStatsEndpoint(t *testing.T) {
	index := &stubIndex{
		docs:    []knowledge.Document{{Origin: "a.txt"}},
		results: []knowledge.Result{{Content: "x"}, {Content: "y"}},
	}
	ts := newTestServer(t, &stubModels{}, index, &stubLoader{})

	resp, err := http.Get(ts.URL + "/api/v1/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var stats pipeline.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 1 || stats.Chunks != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir(), SimilarityTopK: 3}
	svc := pipeline.New(cfg, &stubModels{}, &stubIndex{}, &stubLoader{}, log.NewNop())
	svc.Initialize(context.Background())
	srv, err := NewServer(ServerConfig{Service: svc, Logger: log.NewNop(), RateBurst: 2})
	if err != nil {
		t.Fatal(err)
	}
	limited := httptest.NewServer(srv.Handler())
	defer limited.Close()

	var saw429 bool
	for i := 0; i < 10; i++ {
		resp, err := http.Get(limited.URL + "/api/v1/stats")
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			saw429 = true
		}
		resp.Body.Close()
	}
	if !saw429 {
		t.Error("burst of requests never rate limited")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := newRateLimiter(1.0, 5)
	rl.lastCleanup = time.Now().Add(-10 * time.Minute)
	rl.visitors["10.0.0.1"] = &visitor{
		limiter:  nil,
		lastSeen: time.Now().Add(-time.Hour),
	}

	if !rl.allow("10.0.0.2") {
		t.Error("fresh visitor denied")
	}
	if _, ok := rl.visitors["10.0.0.1"]; ok {
		t.Error("stale visitor not swept")
	}
}
