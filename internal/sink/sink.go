package sink

import (
	"context"
	"errors"
	"regexp"
	"time"

	"elderpass/internal/checkin"
)

// ErrSinkUnavailable covers every way the durable store can fail: cannot
// connect, cannot create a partition, cannot append, timed out. Write-path
// callers (the flush scheduler) treat it as transient and retry next tick;
// read-path callers surface it immediately.
var ErrSinkUnavailable = errors.New("durable sink unavailable")

// Sink is the durable store for check events, partitioned by calendar day.
// Once an event is written it is permanent; there is no delete path.
type Sink interface {
	// Write records the event in the partition matching its date, creating
	// the partition on first use.
	Write(ctx context.Context, evt checkin.Event) error
	// ReadDay returns one day's events in append order. A day with no
	// partition yields no events and no error.
	ReadDay(ctx context.Context, day string) ([]checkin.Event, error)
	// ReadAll returns every stored event, partitions in day order, rows in
	// append order within each partition.
	ReadAll(ctx context.Context) ([]checkin.Event, error)
	// Partitions lists existing day keys, ascending.
	Partitions(ctx context.Context) ([]string, error)
}

var dayKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidDayKey reports whether day has the partition-key shape YYYY-MM-DD.
func ValidDayKey(day string) bool {
	return dayKeyPattern.MatchString(day)
}

// DayKey derives the partition key for an instant: YYYY-MM-DD in the given
// location, zero-padded. The key is a pure function of the instant and the
// configured timezone; the same instant keys to different days in different
// zones, so every caller must use the one configured location.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
