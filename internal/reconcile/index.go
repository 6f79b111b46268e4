package reconcile

import (
	"sort"

	"github.com/joshsymonds/labelsweep/internal/mailbox"
)

// labelIndex is the name->id mapping for one reconciliation run. It is
// seeded from the remote label list and only ever grows; it is the sole
// authority on "does this label already exist" within a run.
//
// Only user labels are indexed. Every message carries system ids (INBOX,
// UNREAD, the CATEGORY_* family), so seeding those would skip the whole
// mailbox, and the oracle should never be offered a system name for reuse.
type labelIndex struct {
	byName map[string]mailbox.LabelID
	ids    map[mailbox.LabelID]struct{}
}

func newLabelIndex(records []mailbox.LabelRecord) labelIndex {
	idx := labelIndex{
		byName: make(map[string]mailbox.LabelID, len(records)),
		ids:    make(map[mailbox.LabelID]struct{}, len(records)),
	}
	for _, rec := range records {
		if rec.Kind != mailbox.LabelKindUser {
			continue
		}
		idx.add(rec.Name, rec.ID)
	}
	return idx
}

func (x labelIndex) add(name string, id mailbox.LabelID) {
	x.byName[name] = id
	if id != "" {
		x.ids[id] = struct{}{}
	}
}

func (x labelIndex) lookup(name string) (mailbox.LabelID, bool) {
	id, ok := x.byName[name]
	return id, ok
}

// names returns the known label names in stable order, the form handed to
// the oracle.
func (x labelIndex) names() []string {
	out := make([]string, 0, len(x.byName))
	for name := range x.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// action is the outcome of the pure per-message decision step.
type action int

const (
	// actionSkip: the message already carries a label known to this run;
	// the oracle is never consulted.
	actionSkip action = iota
	// actionLabel: the message needs a label from the oracle.
	actionLabel
)

// decide inspects a message against the index. It reads the index but never
// mutates it, which keeps the skip rule testable in isolation.
func decide(idx labelIndex, msg mailbox.MessageSummary) action {
	for _, id := range msg.LabelIDs {
		if _, ok := idx.ids[id]; ok {
			return actionSkip
		}
	}
	return actionLabel
}
