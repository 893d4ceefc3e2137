// Package retention keeps users coming back: daily check-ins, goals and
// weekly reports.
package retention

import (
	"context"
	"time"

	"github.com/ibeckermayer/threadpulse/internal/assistant/providers"
	"github.com/ibeckermayer/threadpulse/internal/store"
)

// Completer runs free-form prompts. A nil Completer disables the generated
// parts of check-ins and reports.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts providers.Options) (string, error)
}

func localDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(store.DateLayout)
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
