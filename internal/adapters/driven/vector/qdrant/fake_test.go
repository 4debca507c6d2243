package qdrant

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
)

// fakeQdrant is a minimal in-memory Qdrant REST server. It scores with raw
// cosine like a collection created with distance Cosine.
type fakeQdrant struct {
	mu         sync.Mutex
	collection string
	created    bool
	size       int
	points     map[string]fakePoint
	requests   []*http.Request
	fail       int
}

type fakePoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type fakeCondition struct {
	Key   string `json:"key"`
	Match struct {
		Value any   `json:"value"`
		Any   []any `json:"any"`
	} `json:"match"`
	Range *struct {
		Gte float64 `json:"gte"`
	} `json:"range"`
}

type fakeFilter struct {
	Must []fakeCondition `json:"must"`
}

func newFakeQdrant(t *testing.T, collection string) (*fakeQdrant, *httptest.Server) {
	t.Helper()
	f := &fakeQdrant{collection: collection, points: make(map[string]fakePoint)}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeQdrant) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)

	if f.fail > 0 {
		f.fail--
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"status":{"error":"overloaded"}}`)
		return
	}

	base := "/collections/" + f.collection
	switch {
	case r.URL.Path == "/readyz":
		w.WriteHeader(http.StatusOK)
	case r.URL.Path == base && r.Method == http.MethodGet:
		if !f.created {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"status":{"error":"Not found: Collection doesn't exist!"}}`)
			return
		}
		f.ok(w, map[string]any{"config": map[string]any{"params": map[string]any{
			"vectors": map[string]any{"size": f.size, "distance": "Cosine"}}}})
	case r.URL.Path == base && r.Method == http.MethodPut:
		var req struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.created = true
		f.size = req.Vectors.Size
		f.ok(w, true)
	case r.URL.Path == base+"/points" && r.Method == http.MethodPut:
		var req struct {
			Points []fakePoint `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, p := range req.Points {
			if len(p.Vector) != f.size {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"status":{"error":"Wrong input: Vector dimension error"}}`)
				return
			}
		}
		for _, p := range req.Points {
			f.points[p.ID] = p
		}
		f.ok(w, map[string]any{"status": "completed"})
	case r.URL.Path == base+"/points/search":
		var req struct {
			Vector []float32  `json:"vector"`
			Limit  int        `json:"limit"`
			Filter fakeFilter `json:"filter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		type hit struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		}
		var hits []hit
		for _, p := range f.matching(req.Filter) {
			hits = append(hits, hit{ID: p.ID, Score: rawCosine(req.Vector, p.Vector), Payload: p.Payload})
		}
		// Qdrant breaks score ties by its own point order, not by version.
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
		if len(hits) > req.Limit {
			hits = hits[:req.Limit]
		}
		f.ok(w, hits)
	case r.URL.Path == base+"/points/count":
		var req struct {
			Filter fakeFilter `json:"filter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.ok(w, map[string]any{"count": len(f.matching(req.Filter))})
	case r.URL.Path == base+"/points/delete":
		var req struct {
			Filter fakeFilter `json:"filter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, p := range f.matching(req.Filter) {
			delete(f.points, p.ID)
		}
		f.ok(w, map[string]any{"status": "completed"})
	case r.URL.Path == base+"/points/scroll":
		var req struct {
			Filter     fakeFilter `json:"filter"`
			Limit      int        `json:"limit"`
			Offset     string     `json:"offset"`
			WithVector bool       `json:"with_vector"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		all := f.matching(req.Filter)
		var page []fakePoint
		var next any
		for _, p := range all {
			if req.Offset != "" && p.ID < req.Offset {
				continue
			}
			if len(page) == req.Limit {
				next = p.ID
				break
			}
			if !req.WithVector {
				p.Vector = nil
			}
			page = append(page, p)
		}
		f.ok(w, map[string]any{"points": page, "next_page_offset": next})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeQdrant) ok(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok", "time": 0.001})
}

// matching returns points satisfying every condition, ordered by id.
func (f *fakeQdrant) matching(filter fakeFilter) []fakePoint {
	var out []fakePoint
	for _, p := range f.points {
		if matchesAll(p.Payload, filter.Must) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func matchesAll(payload map[string]any, conds []fakeCondition) bool {
	for _, c := range conds {
		if c.Range != nil {
			n, ok := payload[c.Key].(float64)
			if !ok || n < c.Range.Gte {
				return false
			}
			continue
		}
		got := fmt.Sprint(payload[c.Key])
		if c.Match.Value != nil && got != fmt.Sprint(c.Match.Value) {
			return false
		}
		if c.Match.Any != nil {
			found := false
			for _, v := range c.Match.Any {
				if got == fmt.Sprint(v) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func rawCosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		// Qdrant normalises on insert; zero vectors map to the midpoint.
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func (f *fakeQdrant) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Method + " " + strings.TrimSuffix(r.URL.Path, "/")
	}
	return out
}
