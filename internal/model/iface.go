package model

import "context"

// LeadAppender persists accepted leads to the append-only log.
type LeadAppender interface {
	Append(lead Lead) error
}

// LeadNotifier relays an accepted lead to staff. Implementations never
// return errors; failures are reported in the result.
type LeadNotifier interface {
	Notify(ctx context.Context, lead Lead) DeliveryResult
}
