package core

import "context"

// Notifier delivers short operational messages to the platform administrators.
type Notifier interface {
	NotifyAdmins(ctx context.Context, msg string) error
}
