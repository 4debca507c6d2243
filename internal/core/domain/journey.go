package domain

import (
	"strings"
	"time"
)

// Journey is a named business-process grouping of requirement documents.
type Journey struct {
	// Name is unique across journeys, compared case-insensitively.
	Name string `json:"name"`

	// Description explains which process the journey covers.
	Description string `json:"description"`

	// CreatedAt is when the journey was created.
	CreatedAt time.Time `json:"created_at"`

	// IsDefault marks seeded journeys, which cannot be deleted.
	IsDefault bool `json:"is_default"`
}

// JourneyKey returns the case-insensitive lookup key for a journey name.
func JourneyKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DefaultJourneys returns the journeys seeded on first start.
func DefaultJourneys() []Journey {
	return []Journey{
		{
			Name:        "Point of Settlement",
			Description: "Settlement of card and wallet transactions at the point of sale",
			IsDefault:   true,
		},
		{
			Name:        "Payment Processing",
			Description: "Authorisation, clearing and reconciliation of payments",
			IsDefault:   true,
		},
		{
			Name:        "Account Management",
			Description: "Customer account lifecycle, limits and profile changes",
			IsDefault:   true,
		},
	}
}

// JourneyDeletePolicy decides what happens to a journey's versions when the
// journey is deleted.
type JourneyDeletePolicy string

// Available deletion policies.
const (
	// JourneyDeleteOrphan keeps versions and chunks; they stay reachable by
	// journey name and reattach if the journey is recreated.
	JourneyDeleteOrphan JourneyDeletePolicy = "orphan"

	// JourneyDeleteCascade removes every version, chunk and vector of the journey.
	JourneyDeleteCascade JourneyDeletePolicy = "cascade"
)

// IsValid returns true if the policy is recognised.
func (p JourneyDeletePolicy) IsValid() bool {
	return p == JourneyDeleteOrphan || p == JourneyDeleteCascade
}
