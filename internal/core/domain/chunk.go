package domain

import "fmt"

// Chunk is a token-bounded slice of a DocumentVersion's extracted text.
// A chunk never outlives its version.
type Chunk struct {
	// ID is deterministic: journey, version and sequence index.
	ID string `json:"id"`

	// VersionID is the owning document version.
	VersionID string `json:"version_id"`

	// Journey is the namespace the chunk is indexed under.
	Journey string `json:"journey"`

	// SourceType is copied from the version for metadata filtering.
	SourceType SourceType `json:"source_type"`

	// DocumentURI is copied from the version.
	DocumentURI string `json:"document_uri"`

	// Sequence is the 0-based position within the document.
	Sequence int `json:"sequence"`

	// Text is the chunk content including the leading overlap.
	Text string `json:"text"`

	// Start is the byte offset of Text in the source document.
	Start int `json:"start"`

	// End is the exclusive byte offset of Text in the source document.
	End int `json:"end"`

	// CoreStart is where the non-overlap part begins. Concatenating
	// source[CoreStart:End] over all chunks rebuilds the document.
	CoreStart int `json:"core_start"`

	// TokenCount is the estimated token count of Text.
	TokenCount int `json:"token_count"`

	// OverlapTokens is how many leading tokens repeat the previous chunk.
	OverlapTokens int `json:"overlap_tokens"`

	// Embedding is the vector for Text. Empty until embedded.
	Embedding []float32 `json:"-"`
}

// ChunkID builds the deterministic chunk identifier.
func ChunkID(journey, versionID string, sequence int) string {
	return fmt.Sprintf("%s_%s_%d", journey, versionID, sequence)
}

// CoreText returns the non-overlap part of the chunk text.
func (c *Chunk) CoreText() (string, error) {
	offset := c.CoreStart - c.Start
	if offset < 0 || offset > len(c.Text) || c.End-c.Start != len(c.Text) {
		return "", fmt.Errorf("%w: chunk %s span [%d,%d) core %d text %d bytes",
			ErrCorruptChunk, c.ID, c.Start, c.End, c.CoreStart, len(c.Text))
	}
	return c.Text[offset:], nil
}

// Overlaps reports whether two chunks of the same version cover the same
// new content. Neighbours of one chunking share only the overlap window
// before CoreStart, so they never overlap here.
func (c *Chunk) Overlaps(other *Chunk) bool {
	if c.VersionID != other.VersionID {
		return false
	}
	if c.ID != "" && c.ID == other.ID {
		return true
	}
	return c.CoreStart < other.End && other.CoreStart < c.End
}

// ScoredChunk is a vector index hit.
type ScoredChunk struct {
	// Chunk carries the stored metadata and text.
	Chunk Chunk

	// Score is cosine similarity normalised to [0,1].
	Score float64
}

// ChunkFilter is an optional metadata predicate for vector queries.
// Empty slices match everything; non-empty slices behave like $in.
type ChunkFilter struct {
	// SourceTypes restricts hits to these source types.
	SourceTypes []SourceType

	// VersionIDs restricts hits to these versions.
	VersionIDs []string
}

// IsEmpty returns true if the filter matches every chunk.
func (f *ChunkFilter) IsEmpty() bool {
	return f == nil || (len(f.SourceTypes) == 0 && len(f.VersionIDs) == 0)
}

// Matches evaluates the filter against a chunk.
func (f *ChunkFilter) Matches(c *Chunk) bool {
	if f.IsEmpty() {
		return true
	}
	if len(f.SourceTypes) > 0 && !containsSource(f.SourceTypes, c.SourceType) {
		return false
	}
	if len(f.VersionIDs) > 0 && !containsString(f.VersionIDs, c.VersionID) {
		return false
	}
	return true
}

func containsSource(list []SourceType, s SourceType) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// IndexStats describes the content of one vector namespace.
type IndexStats struct {
	// Backend names the serving index implementation.
	Backend string `json:"backend"`

	// Namespace is the journey name.
	Namespace string `json:"namespace"`

	// Chunks is the number of stored vectors.
	Chunks int `json:"chunks"`

	// Versions is the number of distinct versions.
	Versions int `json:"versions"`

	// Dimensions is the recorded vector size, 0 when empty.
	Dimensions int `json:"dimensions"`
}
