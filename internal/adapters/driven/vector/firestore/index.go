// Package firestore implements the vector index on Cloud Firestore vector
// search.
//
// Layout: {collection}/{journey key} holds the namespace dimension, and its
// chunks subcollection holds one document per chunk with a Vector32 field.
// FindNearest requires a vector index on the Embedding field of the chunks
// collection group.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

// Backend is the name reported in IndexStats.
const Backend = "firestore"

const (
	chunksCollection = "chunks"
	distanceField    = "VectorDistance"
	deleteBatchSize  = 500
	maxNearest       = 1000
)

var docIDNamespace = uuid.MustParse("b1f0c6a2-4d7e-4f3a-8e15-6a2d9c0b7e31")

// Verify interface compliance.
var _ driven.VectorIndex = (*Index)(nil)

// chunkDoc is the Firestore document representation of a chunk.
type chunkDoc struct {
	ChunkID       string             `firestore:"ChunkID"`
	VersionID     string             `firestore:"VersionID"`
	Journey       string             `firestore:"Journey"`
	SourceType    string             `firestore:"SourceType"`
	DocumentURI   string             `firestore:"DocumentURI"`
	Sequence      int                `firestore:"Sequence"`
	Text          string             `firestore:"Text"`
	Start         int                `firestore:"Start"`
	End           int                `firestore:"End"`
	CoreStart     int                `firestore:"CoreStart"`
	TokenCount    int                `firestore:"TokenCount"`
	OverlapTokens int                `firestore:"OverlapTokens"`
	Embedding     firestore.Vector32 `firestore:"Embedding,omitempty"`
	UpdatedAt     time.Time          `firestore:"UpdatedAt"`

	// Distance is populated by FindNearest only.
	Distance float64 `firestore:"VectorDistance,omitempty"`
}

type namespaceDoc struct {
	Journey    string `firestore:"Journey"`
	Dimensions int    `firestore:"Dimensions"`
}

func toChunkDoc(c *domain.Chunk) *chunkDoc {
	return &chunkDoc{
		ChunkID:       c.ID,
		VersionID:     c.VersionID,
		Journey:       c.Journey,
		SourceType:    string(c.SourceType),
		DocumentURI:   c.DocumentURI,
		Sequence:      c.Sequence,
		Text:          c.Text,
		Start:         c.Start,
		End:           c.End,
		CoreStart:     c.CoreStart,
		TokenCount:    c.TokenCount,
		OverlapTokens: c.OverlapTokens,
		Embedding:     firestore.Vector32(c.Embedding),
		UpdatedAt:     time.Now().UTC(),
	}
}

func fromChunkDoc(d *chunkDoc) domain.Chunk {
	return domain.Chunk{
		ID:            d.ChunkID,
		VersionID:     d.VersionID,
		Journey:       d.Journey,
		SourceType:    domain.SourceType(d.SourceType),
		DocumentURI:   d.DocumentURI,
		Sequence:      d.Sequence,
		Text:          d.Text,
		Start:         d.Start,
		End:           d.End,
		CoreStart:     d.CoreStart,
		TokenCount:    d.TokenCount,
		OverlapTokens: d.OverlapTokens,
	}
}

// Config holds Firestore settings.
type Config struct {
	ProjectID  string
	DatabaseID string
	Collection string

	// CredentialsFile is an optional service account key path.
	CredentialsFile string
}

// Index is a VectorIndex backed by Firestore.
type Index struct {
	client     *firestore.Client
	collection string
}

// New connects to Firestore.
func New(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("%w: firestore project is required", domain.ErrInvalidInput)
	}
	if cfg.Collection == "" {
		cfg.Collection = "traceq_chunks"
	}
	if cfg.DatabaseID == "" {
		cfg.DatabaseID = firestore.DefaultDatabaseID
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, cfg.DatabaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &Index{client: client, collection: cfg.Collection}, nil
}

func (f *Index) namespaceRef(namespace string) *firestore.DocumentRef {
	return f.client.Collection(f.collection).Doc(domain.JourneyKey(namespace))
}

func (f *Index) chunks(namespace string) *firestore.CollectionRef {
	return f.namespaceRef(namespace).Collection(chunksCollection)
}

func (f *Index) docID(namespace, chunkID string) string {
	return uuid.NewSHA1(docIDNamespace, []byte(domain.JourneyKey(namespace)+"|"+chunkID)).String()
}

// Upsert records the namespace dimension and writes chunk documents.
func (f *Index) Upsert(ctx context.Context, namespace string, chunks []domain.Chunk) (int, error) {
	const op = "vector.firestore.upsert"
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

	nsRef := f.namespaceRef(namespace)
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(nsRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return tx.Set(nsRef, &namespaceDoc{Journey: namespace, Dimensions: dims})
			}
			return err
		}
		var ns namespaceDoc
		if err := doc.DataTo(&ns); err != nil {
			return err
		}
		if ns.Dimensions != dims {
			return domain.Fatal(op, fmt.Errorf("%w: namespace %q has %d dimensions, got %d",
				domain.ErrDimensionMismatch, namespace, ns.Dimensions, dims))
		}
		return nil
	})
	if err != nil {
		return 0, classify(op, err)
	}

	bw := f.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(chunks))
	for k := range chunks {
		ref := f.chunks(namespace).Doc(f.docID(namespace, chunks[k].ID))
		job, err := bw.Set(ref, toChunkDoc(&chunks[k]))
		if err != nil {
			bw.End()
			return 0, classify(op, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return 0, classify(op, err)
		}
	}
	return len(chunks), nil
}

// Query runs a cosine FindNearest over the namespace's chunks.
func (f *Index) Query(ctx context.Context, namespace string, vector []float32, topK int,
	filter *domain.ChunkFilter) ([]domain.ScoredChunk, error) {
	const op = "vector.firestore.query"
	if topK <= 0 {
		return nil, domain.Fatal(op, fmt.Errorf("%w: top_k=%d", domain.ErrInvalidInput, topK))
	}

	dims, err := f.dimensions(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if dims == 0 {
		return nil, nil
	}
	if dims != len(vector) {
		return nil, domain.Fatal(op, fmt.Errorf("%w: namespace %q has %d dimensions, query has %d",
			domain.ErrDimensionMismatch, namespace, dims, len(vector)))
	}

	q := f.chunks(namespace).Query
	if !filter.IsEmpty() {
		if len(filter.SourceTypes) > 0 {
			types := make([]string, len(filter.SourceTypes))
			for k, st := range filter.SourceTypes {
				types[k] = string(st)
			}
			q = q.Where("SourceType", "in", types)
		}
		if len(filter.VersionIDs) > 0 {
			q = q.Where("VersionID", "in", filter.VersionIDs)
		}
	}

	limit := topK
	if limit > maxNearest {
		limit = maxNearest
	}
	vq := q.FindNearest("Embedding", firestore.Vector32(vector), limit, firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: distanceField})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	hits := make([]domain.ScoredChunk, 0, limit)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, classify(op, err)
		}
		var d chunkDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, domain.Fatal(op, fmt.Errorf("decoding chunk: %w", err))
		}
		c := fromChunkDoc(&d)
		if !filter.Matches(&c) {
			continue
		}
		// Cosine distance is 1 - cos.
		hits = append(hits, domain.ScoredChunk{Chunk: c, Score: domain.NormaliseCosine(1 - d.Distance)})
	}
	return domain.TopK(hits, topK), nil
}

// Delete removes a version's chunk documents, or the whole namespace.
func (f *Index) Delete(ctx context.Context, namespace, versionID string) (int, error) {
	const op = "vector.firestore.delete"
	q := f.chunks(namespace).Query
	if versionID != "" {
		q = q.Where("VersionID", "==", versionID)
	}

	total := 0
	for {
		refs, err := f.refs(ctx, q.Limit(deleteBatchSize), nil)
		if err != nil {
			return total, classify(op, err)
		}
		n, err := f.deleteRefs(ctx, refs)
		total += n
		if err != nil {
			return total, classify(op, err)
		}
		if len(refs) < deleteBatchSize {
			break
		}
	}

	if versionID == "" {
		if _, err := f.namespaceRef(namespace).Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
			return total, classify(op, err)
		}
	}
	return total, nil
}

// Prune removes the version's chunk documents from sequence keep onwards.
// The sequence is compared client side so no composite index is needed.
func (f *Index) Prune(ctx context.Context, namespace, versionID string, keep int) (int, error) {
	const op = "vector.firestore.prune"
	q := f.chunks(namespace).Where("VersionID", "==", versionID).Select("Sequence")
	refs, err := f.refs(ctx, q, func(doc *firestore.DocumentSnapshot) bool {
		seq, err := doc.DataAt("Sequence")
		if err != nil {
			return false
		}
		n, ok := seq.(int64)
		return ok && int(n) >= keep
	})
	if err != nil {
		return 0, classify(op, err)
	}
	n, err := f.deleteRefs(ctx, refs)
	if err != nil {
		return n, classify(op, err)
	}
	return n, nil
}

// refs collects the references of documents matching q and keep.
func (f *Index) refs(ctx context.Context, q firestore.Query,
	keep func(*firestore.DocumentSnapshot) bool) ([]*firestore.DocumentRef, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*firestore.DocumentRef
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(doc) {
			out = append(out, doc.Ref)
		}
	}
}

func (f *Index) deleteRefs(ctx context.Context, refs []*firestore.DocumentRef) (int, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	bw := f.client.BulkWriter(ctx)
	for _, ref := range refs {
		if _, err := bw.Delete(ref); err != nil {
			bw.End()
			return 0, err
		}
	}
	bw.End()
	return len(refs), nil
}

// Stats counts chunk documents and distinct versions.
func (f *Index) Stats(ctx context.Context, namespace string) (domain.IndexStats, error) {
	const op = "vector.firestore.stats"
	stats := domain.IndexStats{Backend: Backend, Namespace: namespace}

	iter := f.chunks(namespace).Select("VersionID").Documents(ctx)
	defer iter.Stop()

	versions := make(map[string]struct{})
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return stats, classify(op, err)
		}
		stats.Chunks++
		if v, err := doc.DataAt("VersionID"); err == nil {
			if s, ok := v.(string); ok {
				versions[s] = struct{}{}
			}
		}
	}
	stats.Versions = len(versions)
	if stats.Chunks > 0 {
		dims, err := f.dimensions(ctx, namespace)
		if err != nil {
			return stats, err
		}
		stats.Dimensions = dims
	}
	return stats, nil
}

// Close closes the Firestore client.
func (f *Index) Close() error {
	return f.client.Close()
}

func (f *Index) dimensions(ctx context.Context, namespace string) (int, error) {
	doc, err := f.namespaceRef(namespace).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, nil
		}
		return 0, classify("vector.firestore.namespace", err)
	}
	var ns namespaceDoc
	if err := doc.DataTo(&ns); err != nil {
		return 0, domain.Fatal("vector.firestore.namespace", err)
	}
	return ns.Dimensions, nil
}

// classify maps gRPC status codes onto the error taxonomy. Typed errors
// pass through unchanged.
func classify(op string, err error) error {
	if domain.IsFatal(err) || domain.IsRetrievable(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Retrievable(op, err)
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal:
		return domain.Retrievable(op, fmt.Errorf("%w: %v", domain.ErrVectorIndexUnavailable, err))
	default:
		return domain.Fatal(op, err)
	}
}
