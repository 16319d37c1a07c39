package shield

import (
	"context"
	"time"
)

// StatsEvent is one gate decision, recorded for dashboards and abuse review.
//
// Identity is only kept when the store is configured to track keys; it is
// high-cardinality.
type StatsEvent struct {
	Identity   string
	Policy     string
	Conclusion Conclusion
	Reason     ReasonKind
	Method     string
	Path       string
	At         time.Time
}

// StatsStore persists decision statistics. Callers treat errors as
// best-effort and never fail a request on them.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
