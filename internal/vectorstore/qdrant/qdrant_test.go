package qdrant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/vectorstore/storetest"
)

type point struct {
	ID      string         `json:"id"`
	Vector  []float64      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// fakeQdrant implements the handful of collection endpoints the client uses.
type fakeQdrant struct {
	mu      sync.Mutex
	size    int
	exists  bool
	points  map[string]point
	apiKeys []string
	creates int
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	rest := strings.TrimPrefix(r.URL.Path, "/collections/docs")
	switch {
	case rest == "" && r.Method == http.MethodGet:
		if !f.exists {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"result": map[string]any{
			"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": f.size, "distance": "Cosine"}}},
		}})
	case rest == "" && r.Method == http.MethodPut:
		var body struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.exists, f.size, f.points = true, body.Vectors.Size, map[string]point{}
		f.creates++
		writeJSON(w, map[string]any{"result": true})
	case rest == "" && r.Method == http.MethodDelete:
		if !f.exists {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		f.exists, f.points = false, nil
		writeJSON(w, map[string]any{"result": true})
	case !f.exists:
		http.Error(w, "not found", http.StatusNotFound)
	case rest == "/points" && r.Method == http.MethodPut:
		var body struct {
			Points []point `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			if _, err := uuid.Parse(p.ID); err != nil {
				http.Error(w, "bad id", http.StatusBadRequest)
				return
			}
			f.points[p.ID] = p
		}
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})
	case rest == "/points/count":
		writeJSON(w, map[string]any{"result": map[string]any{"count": len(f.points)}})
	case rest == "/points/search":
		var body struct {
			Vector []float64 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		type hit struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		}
		hits := make([]hit, 0, len(f.points))
		for _, p := range f.points {
			score := 0.0
			for i := range p.Vector {
				score += p.Vector[i] * body.Vector[i]
			}
			hits = append(hits, hit{Score: score, Payload: p.Payload})
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
		if len(hits) > body.Limit {
			hits = hits[:body.Limit]
		}
		writeJSON(w, map[string]any{"result": hits})
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestStorage(t *testing.T) (*Storage, *fakeQdrant) {
	t.Helper()
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewStorage(Config{URL: srv.URL, APIKey: "secret", Collection: "docs"}), fake
}

func TestStorage(t *testing.T) {
	s, fake := newTestStorage(t)
	storetest.Run(t, s)

	for _, key := range fake.apiKeys {
		assert.Equal(t, "secret", key)
	}
}

func TestInitKeepsMatchingCollection(t *testing.T) {
	ctx := t.Context()
	s, fake := newTestStorage(t)
	require.NoError(t, s.Init(ctx, 3))
	chunks, vectors := storetest.Chunks()
	require.NoError(t, s.Upsert(ctx, chunks, vectors))

	other := NewStorage(Config{URL: s.url, Collection: "docs"})
	require.NoError(t, other.Init(ctx, 3))
	n, err := other.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, fake.creates)

	require.NoError(t, other.Init(ctx, 4))
	n, err = other.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 4, fake.size)
}

func TestMissingCollection(t *testing.T) {
	ctx := t.Context()
	s, _ := newTestStorage(t)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	res, err := s.Search(ctx, []float64{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.NoError(t, s.Clear(ctx))
}

func TestPointIDIsStableUUID(t *testing.T) {
	a := PointID("doc1:0")
	assert.Equal(t, a, PointID("doc1:0"))
	assert.NotEqual(t, a, PointID("doc1:1"))
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}
