package video

import (
	"context"

	"productreel/internal/domain"
)

// Disabled stands in for an unconfigured provider. Every call fails with a
// provider error carrying Reason, so requests get a 502 instead of a crash.
type Disabled struct {
	Reason string
}

func NewDisabled(reason string) *Disabled {
	return &Disabled{Reason: reason}
}

func (d *Disabled) Submit(context.Context, SubmitRequest) (*Task, error) {
	return nil, domain.NewProviderError("kling", d.Reason, nil)
}

func (d *Disabled) Poll(context.Context, string) (*Task, error) {
	return nil, domain.NewProviderError("kling", d.Reason, nil)
}

var _ Provider = (*Disabled)(nil)
