package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts time so day-boundary logic is testable.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

var Module = fx.Module("clock",
	fx.Provide(func() Clock { return SystemClock{} }),
)

// StartOfDay truncates t to local midnight. Violation "today" windows are
// server-local by design; timezone normalization is a documented limitation.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same local calendar day.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}
