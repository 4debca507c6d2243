package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

// chunkStore implements driven.ChunkStore.
type chunkStore struct {
	store *Store
}

var _ driven.ChunkStore = (*chunkStore)(nil)

const chunkColumns = `id, version_id, journey, source_type, document_uri, sequence, text,
	start_offset, end_offset, core_start, token_count, overlap_tokens, embedding`

// SaveChunks replaces a version's chunk set in a single transaction.
func (s *chunkStore) SaveChunks(ctx context.Context, journey, versionID string, chunks []domain.Chunk) error {
	key := domain.JourneyKey(journey)

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM chunks WHERE journey_key = ? AND version_id = ?", key, versionID); err != nil {
			return fmt.Errorf("clearing chunks: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (journey_key, version_id, sequence, id, journey, source_type, document_uri,
				text, start_offset, end_offset, core_start, token_count, overlap_tokens, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(journey_key, version_id, sequence) DO UPDATE SET
				id = excluded.id,
				text = excluded.text,
				start_offset = excluded.start_offset,
				end_offset = excluded.end_offset,
				core_start = excluded.core_start,
				token_count = excluded.token_count,
				overlap_tokens = excluded.overlap_tokens,
				embedding = excluded.embedding
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for i := range chunks {
			c := &chunks[i]
			_, err := stmt.ExecContext(ctx,
				key, versionID, c.Sequence, c.ID, c.Journey, string(c.SourceType), c.DocumentURI,
				c.Text, c.Start, c.End, c.CoreStart, c.TokenCount, c.OverlapTokens,
				float32SliceToBytes(c.Embedding),
			)
			if err != nil {
				return fmt.Errorf("saving chunk %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// GetChunks returns a version's chunks in sequence order.
func (s *chunkStore) GetChunks(ctx context.Context, journey, versionID string) ([]domain.Chunk, error) {
	return s.query(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE journey_key = ? AND version_id = ? ORDER BY sequence",
		domain.JourneyKey(journey), versionID)
}

// ListChunks returns every chunk of a journey ordered by version and sequence.
func (s *chunkStore) ListChunks(ctx context.Context, journey string) ([]domain.Chunk, error) {
	return s.query(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE journey_key = ? ORDER BY version_id, sequence",
		domain.JourneyKey(journey))
}

// DeleteChunks removes one version's chunks, or the whole journey's when
// versionID is empty.
func (s *chunkStore) DeleteChunks(ctx context.Context, journey, versionID string) (int, error) {
	var res sql.Result
	var err error
	key := domain.JourneyKey(journey)
	if versionID == "" {
		res, err = s.store.db.ExecContext(ctx, "DELETE FROM chunks WHERE journey_key = ?", key)
	} else {
		res, err = s.store.db.ExecContext(ctx,
			"DELETE FROM chunks WHERE journey_key = ? AND version_id = ?", key, versionID)
	}
	if err != nil {
		return 0, fmt.Errorf("deleting chunks: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *chunkStore) query(ctx context.Context, query string, args ...any) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Chunk
		var sourceType string
		var embedding []byte
		err := rows.Scan(&c.ID, &c.VersionID, &c.Journey, &sourceType, &c.DocumentURI, &c.Sequence, &c.Text,
			&c.Start, &c.End, &c.CoreStart, &c.TokenCount, &c.OverlapTokens, &embedding)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.SourceType = domain.SourceType(sourceType)
		c.Embedding = bytesToFloat32Slice(embedding)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}
