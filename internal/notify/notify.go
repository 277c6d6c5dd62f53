// Package notify delivers pool creation records to external sinks.
package notify

import (
	"context"
	"errors"
	"fmt"

	"dlmm-notifier/internal/domain"
	"dlmm-notifier/internal/observability"
)

// Notifier delivers a pool creation to a sink.
type Notifier interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Notify delivers pc once. Failed deliveries are not retried.
	Notify(ctx context.Context, pc *domain.PoolCreation) error
}

// Multi fans a record out to every notifier.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a notifier delivering to all of notifiers.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

var _ Notifier = (*Multi)(nil)

// Name implements Notifier.
func (m *Multi) Name() string { return "multi" }

// Notify delivers pc to every sink. One failing sink does not stop the others;
// all failures are joined into the returned error.
func (m *Multi) Notify(ctx context.Context, pc *domain.PoolCreation) error {
	var errs []error
	for _, n := range m.notifiers {
		err := n.Notify(ctx, pc)
		observability.RecordNotification(n.Name(), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
