package mailbox

type MessageID string
type LabelID string

// MessageRef identifies a message within a listing page; the detail fetch
// resolves it into a MessageSummary.
type MessageRef struct {
	ID MessageID
}

// LabelKind partitions labels into user-created and provider-managed.
type LabelKind string

const (
	LabelKindUser   LabelKind = "user"
	LabelKindSystem LabelKind = "system"
)

// LabelRecord is one entry of the remote label taxonomy.
type LabelRecord struct {
	ID   LabelID   `json:"id"`
	Name string    `json:"name"`
	Kind LabelKind `json:"kind"`
}

// Attachment carries attachment metadata only; bodies are never fetched.
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// MessageSummary is the metadata view of one message. Immutable once
// fetched; identity is the ID.
type MessageSummary struct {
	ID          MessageID    `json:"id"`
	Subject     string       `json:"subject"`
	From        string       `json:"from"`
	Date        string       `json:"date"`
	Snippet     string       `json:"snippet"`
	LabelIDs    []LabelID    `json:"label_ids"`
	Attachments []Attachment `json:"attachments"`
}

// PageCursor is the opaque provider token threading one listing page to the
// next.
type PageCursor string

// MessagePage is one page of message refs. Next is nil when the stream is
// exhausted; a non-nil Next must be passed to the following ListMessagesPage
// call.
type MessagePage struct {
	Refs []MessageRef
	Next *PageCursor
}
