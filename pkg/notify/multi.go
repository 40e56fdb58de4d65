package notify

import (
	"context"
	"errors"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// Multi fans a notice out to every notifier and joins their errors.
type Multi []subscription.Notifier

// Notify implements subscription.Notifier.
func (m Multi) Notify(ctx context.Context, n subscription.Notice) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
