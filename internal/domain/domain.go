package domain

import (
	"fmt"
	"time"
)

// DomainStatus enumerates the scrape lifecycle of a submitted URL.
type DomainStatus string

const (
	DomainStatusPending    DomainStatus = "pending"
	DomainStatusProcessing DomainStatus = "processing"
	DomainStatusGenerating DomainStatus = "generating"
	DomainStatusComplete   DomainStatus = "complete"
	DomainStatusError      DomainStatus = "error"
)

var domainTransitions = map[DomainStatus][]DomainStatus{
	DomainStatusPending:    {DomainStatusProcessing},
	DomainStatusProcessing: {DomainStatusGenerating, DomainStatusError},
	DomainStatusGenerating: {DomainStatusComplete, DomainStatusError},
}

// ParseDomainStatus rejects values outside the closed set.
func ParseDomainStatus(s string) (DomainStatus, error) {
	switch st := DomainStatus(s); st {
	case DomainStatusPending, DomainStatusProcessing, DomainStatusGenerating, DomainStatusComplete, DomainStatusError:
		return st, nil
	}
	return "", fmt.Errorf("%w: domain status %q", ErrInvalidStatus, s)
}

// Terminal reports whether no further pipeline transition follows.
func (s DomainStatus) Terminal() bool {
	return s == DomainStatusComplete || s == DomainStatusError
}

// CanTransitionTo reports whether next is a legal pipeline step from s.
func (s DomainStatus) CanTransitionTo(next DomainStatus) bool {
	for _, allowed := range domainTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Domain is a submitted source URL and its scraping lifecycle record.
type Domain struct {
	ID        int64        `json:"id"`
	URL       string       `json:"url"`
	Status    DomainStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
