// Package qdrant implements the vector index on a Qdrant collection over its
// REST API.
//
// All journeys share one collection. The qualified namespace is stored in
// every point payload and applied as a must-filter on every read and delete,
// so a query in one journey never sees another journey's points.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/logger"
)

// Backend is the name reported in IndexStats.
const Backend = "qdrant"

const (
	payloadNamespaceKey = "_tq_namespace"
	payloadChunkIDKey   = "chunk_id"
	maxErrorBodyBytes   = 1024
	scrollPageSize      = 256
	queryOverfetch      = 2
)

var pointIDNamespaceUUID = uuid.MustParse("5d3c3f0e-8f7a-4b8e-9a61-3c1f2e7d9b40")

// Verify interface compliance.
var _ driven.VectorIndex = (*Index)(nil)

// Config holds Qdrant connection settings.
type Config struct {
	// URL is the Qdrant REST endpoint, e.g. http://localhost:6333.
	URL string

	// Collection is the shared collection name.
	Collection string

	// APIKey is sent as the api-key header when set.
	APIKey string

	// NamespacePrefix qualifies journey namespaces in payloads.
	NamespacePrefix string

	// Timeout bounds each HTTP call. Defaults to 10s.
	Timeout time.Duration

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Index is a VectorIndex backed by Qdrant.
type Index struct {
	cfg      Config
	baseURL  string
	nsPrefix string
	http     *http.Client

	mu               sync.Mutex
	dims             map[string]int
	collectionExists bool
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type point struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
	Vector  []float32       `json:"vector,omitempty"`
}

// New creates a Qdrant index. No request is made until first use.
func New(cfg Config) (*Index, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("%w: qdrant url is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, fmt.Errorf("%w: qdrant collection is required", domain.ErrInvalidInput)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Index{
		cfg:      cfg,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		nsPrefix: strings.TrimSpace(cfg.NamespacePrefix),
		http:     client,
		dims:     make(map[string]int),
	}, nil
}

// Ping checks that Qdrant is ready.
func (q *Index) Ping(ctx context.Context) error {
	const op = "vector.qdrant.ping"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.baseURL+"/readyz", nil)
	if err != nil {
		return domain.Fatal(op, err)
	}
	q.setHeaders(req)
	resp, err := q.http.Do(req)
	if err != nil {
		return domain.Retrievable(op, fmt.Errorf("%w: %v", domain.ErrVectorIndexUnavailable, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Retrievable(op, fmt.Errorf("%w: ready check returned status %d",
			domain.ErrVectorIndexUnavailable, resp.StatusCode))
	}
	return nil
}

// Upsert writes chunks as points with deterministic ids.
func (q *Index) Upsert(ctx context.Context, namespace string, chunks []domain.Chunk) (int, error) {
	const op = "vector.qdrant.upsert"
	if len(chunks) == 0 {
		return 0, nil
	}
	dims := len(chunks[0].Embedding)
	if dims == 0 {
		return 0, domain.Fatal(op, fmt.Errorf("%w: chunk %s has no embedding", domain.ErrInvalidInput, chunks[0].ID))
	}
	for k := range chunks {
		if len(chunks[k].Embedding) != dims {
			return 0, domain.Fatal(op, fmt.Errorf("%w: chunk %s has %d dimensions, batch has %d",
				domain.ErrDimensionMismatch, chunks[k].ID, len(chunks[k].Embedding), dims))
		}
	}

	qualifiedNS := q.qualifyNamespace(namespace)
	known, err := q.namespaceDims(ctx, qualifiedNS)
	if err != nil {
		return 0, err
	}
	if known != 0 && known != dims {
		return 0, domain.Fatal(op, fmt.Errorf("%w: namespace %q has %d dimensions, got %d",
			domain.ErrDimensionMismatch, namespace, known, dims))
	}
	if err := q.ensureCollection(ctx, dims); err != nil {
		return 0, err
	}

	points := make([]map[string]any, 0, len(chunks))
	for k := range chunks {
		c := &chunks[k]
		points = append(points, map[string]any{
			"id":      q.pointID(qualifiedNS, c.ID),
			"vector":  c.Embedding,
			"payload": chunkPayload(qualifiedNS, c),
		})
	}

	if err := q.doJSON(ctx, op, http.MethodPut, q.collectionPath("/points?wait=true"),
		map[string]any{"points": points}, nil); err != nil {
		return 0, err
	}

	q.mu.Lock()
	q.dims[qualifiedNS] = dims
	q.mu.Unlock()

	logger.Debug("qdrant upsert", "namespace", qualifiedNS, "points", len(points))
	return len(points), nil
}

// Query searches the namespace and returns chunks ranked by normalised cosine.
func (q *Index) Query(ctx context.Context, namespace string, vector []float32, topK int,
	filter *domain.ChunkFilter) ([]domain.ScoredChunk, error) {
	const op = "vector.qdrant.query"
	if topK <= 0 {
		return nil, domain.Fatal(op, fmt.Errorf("%w: top_k=%d", domain.ErrInvalidInput, topK))
	}

	qualifiedNS := q.qualifyNamespace(namespace)
	known, err := q.namespaceDims(ctx, qualifiedNS)
	if err != nil {
		return nil, err
	}
	if known == 0 {
		return nil, nil
	}
	if known != len(vector) {
		return nil, domain.Fatal(op, fmt.Errorf("%w: namespace %q has %d dimensions, query has %d",
			domain.ErrDimensionMismatch, namespace, known, len(vector)))
	}

	// Qdrant cuts ties at the limit by its own order; fetching a margin lets
	// domain.TopK apply the shared tie-break before truncating.
	req := map[string]any{
		"vector":       vector,
		"limit":        topK * queryOverfetch,
		"with_payload": true,
		"with_vector":  false,
		"filter":       q.buildFilter(qualifiedNS, "", filter),
	}
	var results []point
	if err := q.doJSON(ctx, op, http.MethodPost, q.collectionPath("/points/search"), req, &results); err != nil {
		return nil, err
	}

	hits := make([]domain.ScoredChunk, 0, len(results))
	for _, p := range results {
		c, ok := payloadChunk(p.Payload)
		if !ok {
			continue
		}
		hits = append(hits, domain.ScoredChunk{Chunk: c, Score: domain.NormaliseCosine(p.Score)})
	}
	return domain.TopK(hits, topK), nil
}

// Delete removes a version's points, or the whole namespace when versionID
// is empty.
func (q *Index) Delete(ctx context.Context, namespace, versionID string) (int, error) {
	const op = "vector.qdrant.delete"
	qualifiedNS := q.qualifyNamespace(namespace)

	exists, err := q.hasCollection(ctx)
	if err != nil || !exists {
		return 0, err
	}

	filter := q.buildFilter(qualifiedNS, versionID, nil)
	n, err := q.count(ctx, filter)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if err := q.doJSON(ctx, op, http.MethodPost, q.collectionPath("/points/delete?wait=true"),
			map[string]any{"filter": filter}, nil); err != nil {
			return 0, err
		}
	}

	if versionID == "" {
		q.mu.Lock()
		delete(q.dims, qualifiedNS)
		q.mu.Unlock()
	}
	return n, nil
}

// Prune removes the version's points from sequence keep onwards.
func (q *Index) Prune(ctx context.Context, namespace, versionID string, keep int) (int, error) {
	const op = "vector.qdrant.prune"
	exists, err := q.hasCollection(ctx)
	if err != nil || !exists {
		return 0, err
	}

	filter := q.buildFilter(q.qualifyNamespace(namespace), versionID, nil)
	filter["must"] = append(filter["must"].([]any), map[string]any{
		"key": "sequence", "range": map[string]any{"gte": keep},
	})
	n, err := q.count(ctx, filter)
	if err != nil || n == 0 {
		return 0, err
	}
	if err := q.doJSON(ctx, op, http.MethodPost, q.collectionPath("/points/delete?wait=true"),
		map[string]any{"filter": filter}, nil); err != nil {
		return 0, err
	}
	return n, nil
}

// Stats counts the namespace's points and distinct versions.
func (q *Index) Stats(ctx context.Context, namespace string) (domain.IndexStats, error) {
	qualifiedNS := q.qualifyNamespace(namespace)
	stats := domain.IndexStats{Backend: Backend, Namespace: namespace}

	exists, err := q.hasCollection(ctx)
	if err != nil || !exists {
		return stats, err
	}

	versions := make(map[string]struct{})
	err = q.scroll(ctx, q.buildFilter(qualifiedNS, "", nil), false, func(p point) bool {
		stats.Chunks++
		if v, ok := p.Payload["version_id"].(string); ok {
			versions[v] = struct{}{}
		}
		return true
	})
	if err != nil {
		return stats, err
	}
	stats.Versions = len(versions)
	if stats.Chunks > 0 {
		if stats.Dimensions, err = q.namespaceDims(ctx, qualifiedNS); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// Close releases idle connections.
func (q *Index) Close() error {
	q.http.CloseIdleConnections()
	return nil
}

// namespaceDims returns the namespace's vector size, 0 when it has no points.
func (q *Index) namespaceDims(ctx context.Context, qualifiedNS string) (int, error) {
	q.mu.Lock()
	d, ok := q.dims[qualifiedNS]
	q.mu.Unlock()
	if ok {
		return d, nil
	}

	exists, err := q.hasCollection(ctx)
	if err != nil || !exists {
		return 0, err
	}

	dims := 0
	err = q.scroll(ctx, q.buildFilter(qualifiedNS, "", nil), true, func(p point) bool {
		dims = len(p.Vector)
		return false
	})
	if err != nil {
		return 0, err
	}
	if dims > 0 {
		q.mu.Lock()
		q.dims[qualifiedNS] = dims
		q.mu.Unlock()
	}
	return dims, nil
}

func (q *Index) hasCollection(ctx context.Context) (bool, error) {
	q.mu.Lock()
	exists := q.collectionExists
	q.mu.Unlock()
	if exists {
		return true, nil
	}

	err := q.doJSON(ctx, "vector.qdrant.collection", http.MethodGet, q.collectionPath(""), nil, nil)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	q.mu.Lock()
	q.collectionExists = true
	q.mu.Unlock()
	return true, nil
}

func (q *Index) ensureCollection(ctx context.Context, dims int) error {
	exists, err := q.hasCollection(ctx)
	if err != nil || exists {
		return err
	}

	req := map[string]any{
		"vectors": map[string]any{"size": dims, "distance": "Cosine"},
	}
	if err := q.doJSON(ctx, "vector.qdrant.create_collection", http.MethodPut, q.collectionPath(""), req, nil); err != nil {
		return err
	}
	logger.Info("qdrant collection created", "collection", q.cfg.Collection, "dimensions", dims)

	q.mu.Lock()
	q.collectionExists = true
	q.mu.Unlock()
	return nil
}

func (q *Index) count(ctx context.Context, filter map[string]any) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	err := q.doJSON(ctx, "vector.qdrant.count", http.MethodPost, q.collectionPath("/points/count"),
		map[string]any{"filter": filter, "exact": true}, &result)
	return result.Count, err
}

// scroll pages through matching points until fn returns false.
func (q *Index) scroll(ctx context.Context, filter map[string]any, withVector bool, fn func(point) bool) error {
	var offset json.RawMessage
	for {
		req := map[string]any{
			"filter":       filter,
			"limit":        scrollPageSize,
			"with_payload": []string{"version_id"},
			"with_vector":  withVector,
		}
		if len(offset) > 0 {
			req["offset"] = offset
		}
		var page struct {
			Points         []point         `json:"points"`
			NextPageOffset json.RawMessage `json:"next_page_offset"`
		}
		if err := q.doJSON(ctx, "vector.qdrant.scroll", http.MethodPost, q.collectionPath("/points/scroll"), req, &page); err != nil {
			return err
		}
		for _, p := range page.Points {
			if !fn(p) {
				return nil
			}
		}
		if len(page.NextPageOffset) == 0 || string(page.NextPageOffset) == "null" {
			return nil
		}
		offset = page.NextPageOffset
	}
}

func (q *Index) buildFilter(qualifiedNS, versionID string, filter *domain.ChunkFilter) map[string]any {
	must := []any{matchValue(payloadNamespaceKey, qualifiedNS)}
	if versionID != "" {
		must = append(must, matchValue("version_id", versionID))
	}
	if !filter.IsEmpty() {
		if len(filter.SourceTypes) > 0 {
			types := make([]string, len(filter.SourceTypes))
			for k, st := range filter.SourceTypes {
				types[k] = string(st)
			}
			must = append(must, matchAny("source_type", types))
		}
		if len(filter.VersionIDs) > 0 {
			must = append(must, matchAny("version_id", filter.VersionIDs))
		}
	}
	return map[string]any{"must": must}
}

func matchValue(key, value string) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"value": value}}
}

func matchAny(key string, values []string) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"any": values}}
}

func (q *Index) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return domain.Fatal(op, fmt.Errorf("encoding request: %w", err))
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, body)
	if err != nil {
		return domain.Fatal(op, fmt.Errorf("building request: %w", err))
	}
	q.setHeaders(req)

	resp, err := q.http.Do(req)
	if err != nil {
		return domain.Retrievable(op, fmt.Errorf("%w: %v", domain.ErrVectorIndexUnavailable, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Retrievable(op, fmt.Errorf("reading response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.ClassifyHTTPStatus(op, resp.StatusCode, truncateBody(raw))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.Fatal(op, fmt.Errorf("decoding envelope: %w", err))
	}
	if msg := parseEnvelopeStatus(env.Status); msg != "" {
		return domain.Fatal(op, errors.New(msg))
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return domain.Fatal(op, fmt.Errorf("decoding result: %w", err))
	}
	return nil
}

func (q *Index) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if q.cfg.APIKey != "" {
		req.Header.Set("api-key", q.cfg.APIKey)
	}
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") || strings.EqualFold(statusString, "acknowledged") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil && strings.TrimSpace(statusObject.Error) != "" {
		return strings.TrimSpace(statusObject.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func (q *Index) qualifyNamespace(namespace string) string {
	ns := domain.JourneyKey(namespace)
	if q.nsPrefix == "" {
		return ns
	}
	return q.nsPrefix + ":" + ns
}

func (q *Index) pointID(qualifiedNS, chunkID string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(qualifiedNS+"|"+chunkID)).String()
}

func (q *Index) collectionPath(suffix string) string {
	return "/collections/" + q.cfg.Collection + suffix
}
