package domain

import "time"

// Event is a cluster of near-duplicate articles describing one real-world
// story. Events are derived on each clustering pass and never authoritative;
// singleton articles are noise, not size-1 events.
type Event struct {
	ID                  string
	Title               string
	Summary             string
	Keywords            []string
	Category            string
	EarliestPublishedAt *time.Time
	RepresentativeID    string
	MemberIDs           []string
	Sources             []string
}
