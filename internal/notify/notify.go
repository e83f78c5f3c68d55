// Package notify dispatches rendered notifications after voucher events.
// Dispatch is best-effort by contract: the redemption path commits first and
// treats a failed send as a logging concern, never a rollback.
package notify

import "context"

// Dispatcher sends one notification and returns an opaque delivery reference.
type Dispatcher interface {
	Send(ctx context.Context, orgID, templateRef, recipient string, data map[string]string) (string, error)
}
