// Package oracle maps message metadata to a label name. The oracle is a
// black box to the rest of the system: it may return a known name or a new
// one, and stability across calls is not guaranteed.
package oracle

import (
	"context"

	"github.com/joshsymonds/labelsweep/internal/mailbox"
)

// Labeler produces a short label name (at most three words) for a message,
// given the label names already known to the current run.
type Labeler interface {
	GenerateLabel(ctx context.Context, msg mailbox.MessageSummary, knownLabels []string) (string, error)
}
