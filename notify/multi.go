package notify

import (
	"context"
	"errors"

	"github.com/civicpulse/authcore"
)

// Multi sends to every notifier and joins their errors.
type Multi []authcore.Notifier

// Send tries every notifier and joins their errors.
func (m Multi) Send(ctx context.Context, n authcore.Notification) error {
	var errs []error
	for _, target := range m {
		if target == nil {
			continue
		}
		if err := target.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
