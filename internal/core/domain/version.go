package domain

import (
	"fmt"
	"time"
)

// SourceType classifies the kind of requirement document.
type SourceType string

// Supported source types.
const (
	SourceFSD           SourceType = "fsd"
	SourceAddendum      SourceType = "addendum"
	SourceAnnexure      SourceType = "annexure"
	SourceEmail         SourceType = "email"
	SourceMeetingNotes  SourceType = "meeting_notes"
	SourceChangeRequest SourceType = "change_request"
)

// AllSourceTypes returns every supported source type.
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceFSD,
		SourceAddendum,
		SourceAnnexure,
		SourceEmail,
		SourceMeetingNotes,
		SourceChangeRequest,
	}
}

// IsValid returns true if the source type is recognised.
func (s SourceType) IsValid() bool {
	for _, t := range AllSourceTypes() {
		if s == t {
			return true
		}
	}
	return false
}

// String returns the string representation.
func (s SourceType) String() string {
	return string(s)
}

// VersionStatus tracks whether a version is visible to queries.
type VersionStatus string

const (
	// VersionPending is set at record time; the version is invisible to queries.
	VersionPending VersionStatus = "pending"

	// VersionIndexed is set once the full chunk set has been stored.
	VersionIndexed VersionStatus = "indexed"
)

// VersionTimeLayout is the compact UTC timestamp prefix of a version id.
const VersionTimeLayout = "20060102T150405"

// MaxVersionDisambiguator bounds the numeric suffix used on same-second collisions.
const MaxVersionDisambiguator = 999

// FormatVersionID builds a version id. attempt 1 yields the bare id; later
// attempts append "-<attempt>" so ids of one source type stay in record
// order. Ids from the same second but different source types sort by
// source type name, not by record order.
func FormatVersionID(t time.Time, source SourceType, attempt int) string {
	id := t.UTC().Format(VersionTimeLayout) + "Z-" + string(source)
	if attempt > 1 {
		id += fmt.Sprintf("-%03d", attempt)
	}
	return id
}

// DocumentVersion is one ingested document instance within a journey.
// Versions are immutable apart from the one-way pending to indexed transition.
type DocumentVersion struct {
	// ID is the timestamp-prefixed version identifier.
	ID string `json:"version_id"`

	// Journey is the owning journey name.
	Journey string `json:"journey"`

	// SourceType is the document category.
	SourceType SourceType `json:"source_type"`

	// DocumentURI references the raw document in the blob store.
	DocumentURI string `json:"document_uri"`

	// Format is the extraction format (txt, md, pdf, ...).
	Format string `json:"format,omitempty"`

	// EffectiveDate is the user-supplied business date, if any.
	EffectiveDate *time.Time `json:"effective_date,omitempty"`

	// Notes are free-form user notes.
	Notes string `json:"notes,omitempty"`

	// Summary is the auto-generated summary of the document.
	Summary string `json:"summary,omitempty"`

	// CreatedAt is the ingestion time, used by retention.
	CreatedAt time.Time `json:"created_at"`

	// Status is pending until the chunk set is fully indexed.
	Status VersionStatus `json:"status"`

	// ChunkCount is the number of chunks stored for the version.
	ChunkCount int `json:"chunk_count"`

	// EmbeddingModel names the model that produced the chunk vectors.
	EmbeddingModel string `json:"embedding_model,omitempty"`
}

// IsIndexed reports whether the version is visible to queries.
func (v *DocumentVersion) IsIndexed() bool {
	return v.Status == VersionIndexed
}

// Namespace records the embedding dimension bound to a journey's vector namespace.
type Namespace struct {
	// Journey is the namespace name.
	Journey string

	// Dimensions is the vector size every chunk in the namespace must have.
	Dimensions int

	// Model is the embedding model that first wrote the namespace.
	Model string
}
