package qdrant

import (
	"github.com/custodia-labs/traceq/internal/core/domain"
)

func chunkPayload(qualifiedNS string, c *domain.Chunk) map[string]any {
	return map[string]any{
		payloadNamespaceKey: qualifiedNS,
		payloadChunkIDKey:   c.ID,
		"version_id":        c.VersionID,
		"journey":           c.Journey,
		"source_type":       string(c.SourceType),
		"document_uri":      c.DocumentURI,
		"sequence":          c.Sequence,
		"text":              c.Text,
		"start":             c.Start,
		"end":               c.End,
		"core_start":        c.CoreStart,
		"token_count":       c.TokenCount,
		"overlap_tokens":    c.OverlapTokens,
	}
}

// payloadChunk rebuilds a chunk from a search payload. JSON numbers arrive
// as float64.
func payloadChunk(p map[string]any) (domain.Chunk, bool) {
	id, _ := p[payloadChunkIDKey].(string)
	if id == "" {
		return domain.Chunk{}, false
	}
	return domain.Chunk{
		ID:            id,
		VersionID:     str(p["version_id"]),
		Journey:       str(p["journey"]),
		SourceType:    domain.SourceType(str(p["source_type"])),
		DocumentURI:   str(p["document_uri"]),
		Sequence:      num(p["sequence"]),
		Text:          str(p["text"]),
		Start:         num(p["start"]),
		End:           num(p["end"]),
		CoreStart:     num(p["core_start"]),
		TokenCount:    num(p["token_count"]),
		OverlapTokens: num(p["overlap_tokens"]),
	}, true
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
