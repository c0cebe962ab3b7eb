// Package publish fans newly created notifications out to live consumers.
package publish

import (
	"context"
	"errors"

	"storyloom/backend/internal/notification/domain"
)

// Publisher delivers a persisted notification. Delivery is best-effort; the stored row is the
// source of truth.
type Publisher interface {
	Publish(ctx context.Context, n *domain.Notification) error
}

// Multi publishes to every non-nil publisher and joins their errors.
type Multi []Publisher

// Publish calls each publisher in order. A failing publisher does not stop the rest.
func (m Multi) Publish(ctx context.Context, n *domain.Notification) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
