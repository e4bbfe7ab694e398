package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

type fakeService struct {
	ready     bool
	processed [][]domain.FileRef
	contents  []string
	ingestErr error
	answer    domain.Answer
	turns     []domain.Turn
	cleared   int
	panicAsk  bool
}

func (f *fakeService) ProcessFiles(_ context.Context, files []domain.FileRef) (domain.IngestSummary, error) {
	f.processed = append(f.processed, files)
	for _, ref := range files {
		data, err := os.ReadFile(ref.Path)
		if err != nil {
			return domain.IngestSummary{}, err
		}
		f.contents = append(f.contents, string(data))
	}
	if f.ingestErr != nil {
		return domain.IngestSummary{Skipped: []string{files[0].Name}}, f.ingestErr
	}
	f.ready = true
	return domain.IngestSummary{Files: len(files), Chunks: 3 * len(files), Summary: "summary"}, nil
}

func (f *fakeService) Ask(_ context.Context, q string) (domain.Answer, error) {
	if f.panicAsk {
		panic("boom")
	}
	if strings.TrimSpace(q) == "" {
		return domain.Answer{}, domain.ErrEmptyQuestion
	}
	a := f.answer
	a.Question = q
	return a, nil
}

func (f *fakeService) History(context.Context) ([]domain.Turn, error) { return f.turns, nil }

func (f *fakeService) ClearHistory(context.Context) error {
	f.cleared++
	f.turns = nil
	return nil
}

func (f *fakeService) Ready() bool { return f.ready }

func (f *fakeService) Stats(context.Context) (domain.Stats, error) {
	return domain.Stats{Ready: f.ready, Files: 2, Chunks: 6, Embedder: "tfidf", Model: "extractive"}, nil
}

func newTestServer(t *testing.T, svc *fakeService) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(svc, Config{}, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestUpload(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc)

	body, ctype := multipartBody(t, map[string]string{"../../notes.txt": "hello world"})
	resp, err := http.Post(srv.URL+"/api/documents", ctype, body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	var out uploadResponse
	decode(t, resp, &out)
	assert.Equal(t, 1, out.Files)
	assert.Equal(t, 3, out.Chunks)
	assert.Equal(t, "Processed 1 files into 3 chunks.", out.Message)

	require.Len(t, svc.processed, 1)
	ref := svc.processed[0][0]
	assert.Equal(t, "notes.txt", ref.Name)
	assert.Equal(t, []string{"hello world"}, svc.contents)
	_, err = os.Stat(ref.Path)
	assert.True(t, os.IsNotExist(err), "upload should be removed after processing")
}

func TestUploadWithoutFiles(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	body, ctype := multipartBody(t, nil)
	resp, err := http.Post(srv.URL+"/api/documents", ctype, body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var out errorResponse
	decode(t, resp, &out)
	assert.Equal(t, msgNoUpload, out.Error)

	resp, err = http.Post(srv.URL+"/api/documents", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestUploadNothingUsable(t *testing.T) {
	srv := newTestServer(t, &fakeService{ingestErr: domain.ErrNoDocuments})
	body, ctype := multipartBody(t, map[string]string{"image.png": "\x89PNG"})
	resp, err := http.Post(srv.URL+"/api/documents", ctype, body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out uploadResponse
	decode(t, resp, &out)
	assert.Equal(t, msgNoText, out.Message)
	assert.Equal(t, []string{"image.png"}, out.Skipped)
}

func postAsk(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/ask", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestAsk(t *testing.T) {
	svc := &fakeService{ready: true, answer: domain.Answer{
		Answer:  "Go is a language.",
		Sources: []domain.Source{{Filename: "go.pdf", Page: 2, Snippet: "Go is...", Score: 0.8}},
	}}
	srv := newTestServer(t, svc)

	resp := postAsk(t, srv, `{"question":"What is Go?"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out domain.Answer
	decode(t, resp, &out)
	assert.Equal(t, "What is Go?", out.Question)
	assert.Equal(t, "Go is a language.", out.Answer)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "go.pdf", out.Sources[0].Filename)
}

func TestAskErrors(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc)

	var out errorResponse
	resp := postAsk(t, srv, `{"question":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decode(t, resp, &out)
	assert.Equal(t, msgEnterQuestion, out.Error)

	resp = postAsk(t, srv, `{"question":"What is Go?"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	decode(t, resp, &out)
	assert.Equal(t, msgProcessFirst, out.Error)

	resp = postAsk(t, srv, `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAskPanicRecovered(t *testing.T) {
	srv := newTestServer(t, &fakeService{ready: true, panicAsk: true})
	resp := postAsk(t, srv, `{"question":"q"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestHistory(t *testing.T) {
	svc := &fakeService{turns: []domain.Turn{{Question: "q1", Answer: "a1"}}}
	srv := newTestServer(t, svc)

	resp, err := http.Get(srv.URL + "/api/history")
	require.NoError(t, err)
	var out struct {
		Turns []domain.Turn `json:"turns"`
	}
	decode(t, resp, &out)
	assert.Equal(t, svc.turns, out.Turns)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/history", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1, svc.cleared)

	resp, err = http.Get(srv.URL + "/api/history")
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.JSONEq(t, `{"turns":[]}`, string(raw))
}

func TestHealthStatsAndMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeService{ready: true})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "fixed-id")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", resp.Header.Get(RequestIDHeader))
	var health map[string]any
	decode(t, resp, &health)
	assert.Equal(t, map[string]any{"status": "ok", "ready": true}, health)

	resp, err = http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	var st domain.Stats
	decode(t, resp, &st)
	assert.Equal(t, domain.Stats{Ready: true, Files: 2, Chunks: 6, Embedder: "tfidf", Model: "extractive"}, st)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `docqa_http_requests_total{method="GET",route="GET /healthz",status="2xx"}`)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := New(&fakeService{}, Config{ShutdownTimeout: time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
