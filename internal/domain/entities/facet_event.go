package entities

import (
	"time"

	"github.com/google/uuid"
)

// FacetEventType represents the type of facet event
type FacetEventType string

const (
	// FacetEventTypeInvalidated means cached option lists for Facets are stale
	FacetEventTypeInvalidated FacetEventType = "facets_invalidated"
)

// FacetEvent announces a change to one or more facet option lists
type FacetEvent struct {
	ID        string         `json:"id"`
	EventType FacetEventType `json:"event_type"`
	Facets    []string       `json:"facets"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewFacetEvent creates a new facet event. An empty facet list means every facet.
func NewFacetEvent(eventType FacetEventType, facets []string) *FacetEvent {
	return &FacetEvent{
		ID:        uuid.NewString(),
		EventType: eventType,
		Facets:    facets,
		Timestamp: time.Now().UTC(),
	}
}
