// Package mailbox defines the narrow mailbox surface labelsweep requires
// and the domain types it trades in.
package mailbox

import "context"

// Client is the mailbox surface required by the reconciler and the HTTP API.
// All failures from the provider surface as *UpstreamError; the client never
// retries.
type Client interface {
	// ListLabels returns the full current label taxonomy.
	ListLabels(ctx context.Context) ([]LabelRecord, error)
	// CreateLabel creates a user label. "Already exists" responses are
	// returned as upstream errors; deduplication is the caller's job.
	CreateLabel(ctx context.Context, name string) (LabelRecord, error)
	// ListMessagesPage returns one fixed-size page of message refs. A nil
	// cursor requests the first page.
	ListMessagesPage(ctx context.Context, cursor *PageCursor) (MessagePage, error)
	// FetchDetail resolves a ref into its metadata summary. One round trip
	// per message.
	FetchDetail(ctx context.Context, ref MessageRef) (MessageSummary, error)
	// AssignLabel adds a label to a message. Additive only; existing labels
	// are never removed.
	AssignLabel(ctx context.Context, id MessageID, label LabelID) error
}
