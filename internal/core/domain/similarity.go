package domain

import (
	"math"
	"sort"
)

// CosineScore returns cosine similarity mapped to [0,1], where 1 means the
// vectors point the same way. Zero-length or zero vectors score 0.
func CosineScore(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
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
		return 0
	}
	return NormaliseCosine(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// NormaliseCosine maps a raw cosine in [-1,1] onto [0,1].
func NormaliseCosine(cos float64) float64 {
	s := (cos + 1) / 2
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

// RankBefore is the single ordering used by every index implementation and
// the context assembler: higher score, then newer version, then earlier
// sequence, then chunk id.
func RankBefore(a, b *ScoredChunk) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Chunk.VersionID != b.Chunk.VersionID {
		return a.Chunk.VersionID > b.Chunk.VersionID
	}
	if a.Chunk.Sequence != b.Chunk.Sequence {
		return a.Chunk.Sequence < b.Chunk.Sequence
	}
	return a.Chunk.ID < b.Chunk.ID
}

// SortScored orders hits in place using RankBefore.
func SortScored(hits []ScoredChunk) {
	sort.SliceStable(hits, func(i, j int) bool {
		return RankBefore(&hits[i], &hits[j])
	})
}

// TopK sorts hits and truncates to k. k <= 0 keeps everything.
func TopK(hits []ScoredChunk, k int) []ScoredChunk {
	SortScored(hits)
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
