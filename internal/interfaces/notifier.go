package interfaces

import "context"

// Notifier delivers human-readable reports. Delivery is fire-and-forget:
// implementations log failures but never fail the cycle.
type Notifier interface {
	Send(ctx context.Context, msg string)
}
