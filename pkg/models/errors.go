package models

import "errors"

var (
	// ErrPeriodicRequiresIndexable is returned when a Connector sets
	// PeriodicIndexingEnabled without IsIndexable.
	ErrPeriodicRequiresIndexable = errors.New("periodic_indexing_enabled requires is_indexable")
	// ErrPeriodicRequiresFrequency is returned when a Connector sets
	// PeriodicIndexingEnabled without a positive IndexingFrequencyMins.
	ErrPeriodicRequiresFrequency = errors.New("periodic_indexing_enabled requires indexing_frequency_minutes > 0")
)
