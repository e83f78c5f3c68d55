package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// LogDispatcher records notifications in the application log instead of
// delivering them. Used when no SMTP relay is configured, e.g. local
// development and tests.
type LogDispatcher struct{}

// NewLogDispatcher creates a LogDispatcher.
func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{}
}

// Send implements Dispatcher by logging the would-be delivery.
func (d *LogDispatcher) Send(_ context.Context, orgID, templateRef, recipient string, data map[string]string) (string, error) {
	log.Info().
		Str("organization_id", orgID).
		Str("template", templateRef).
		Str("recipient", recipient).
		Interface("data", data).
		Msg("notification logged (no SMTP relay configured)")
	return fmt.Sprintf("log-%d", time.Now().UnixNano()), nil
}
