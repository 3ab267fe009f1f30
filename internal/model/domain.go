package model

import "time"

// FailureRecord captures the most recent failure for a domain.
type FailureRecord struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// DomainState is the persisted per-domain record used for re-crawl memory
// and failure introspection.
type DomainState struct {
	Key          string         `json:"key"`
	LastSuccess  *time.Time     `json:"last_success,omitempty"`
	LastFailure  *FailureRecord `json:"last_failure,omitempty"`
	PagesFetched int            `json:"pages_fetched,omitempty"`
	Visited      []string       `json:"visited,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
