// internal/runtime/googleapi.go — adapts *gmail.Service to our small interface
package runtime

import (
	"context"
	"errors"
	"fmt"

	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/joshsymonds/labelsweep/internal/mailbox"
	"github.com/joshsymonds/labelsweep/internal/rate"
)

// Fixed listing page size: summaries are fetched one round trip each, so
// pages stay small.
const defaultPageSize = 10

type googleClient struct {
	svc      *gmailv1.Service
	limiter  rate.Limiter
	pageSize int64
}

// NewGoogleAPIClient wraps a Gmail service in the mailbox surface. Every
// outbound call waits on limiter first; a nil limiter means the caller
// paces itself.
func NewGoogleAPIClient(svc *gmailv1.Service, limiter rate.Limiter) mailbox.Client {
	return &googleClient{svc: svc, limiter: limiter, pageSize: defaultPageSize}
}

func (g *googleClient) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

func (g *googleClient) ListLabels(ctx context.Context) ([]mailbox.LabelRecord, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	res, err := g.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", upstream(err))
	}
	records := make([]mailbox.LabelRecord, 0, len(res.Labels))
	for _, l := range res.Labels {
		records = append(records, mailbox.LabelRecord{
			ID:   mailbox.LabelID(l.Id),
			Name: l.Name,
			Kind: labelKind(l.Type),
		})
	}
	return records, nil
}

func (g *googleClient) CreateLabel(ctx context.Context, name string) (mailbox.LabelRecord, error) {
	if err := g.wait(ctx); err != nil {
		return mailbox.LabelRecord{}, err
	}
	created, err := g.svc.Users.Labels.Create("me", &gmailv1.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return mailbox.LabelRecord{}, fmt.Errorf("create label %q: %w", name, upstream(err))
	}
	return mailbox.LabelRecord{
		ID:   mailbox.LabelID(created.Id),
		Name: created.Name,
		Kind: mailbox.LabelKindUser,
	}, nil
}

func (g *googleClient) ListMessagesPage(ctx context.Context, cursor *mailbox.PageCursor) (mailbox.MessagePage, error) {
	if err := g.wait(ctx); err != nil {
		return mailbox.MessagePage{}, err
	}
	call := g.svc.Users.Messages.List("me").MaxResults(g.pageSize)
	if cursor != nil {
		call = call.PageToken(string(*cursor))
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return mailbox.MessagePage{}, fmt.Errorf("list messages: %w", upstream(err))
	}
	page := mailbox.MessagePage{Refs: make([]mailbox.MessageRef, 0, len(res.Messages))}
	for _, m := range res.Messages {
		page.Refs = append(page.Refs, mailbox.MessageRef{ID: mailbox.MessageID(m.Id)})
	}
	if res.NextPageToken != "" {
		next := mailbox.PageCursor(res.NextPageToken)
		page.Next = &next
	}
	return page, nil
}

func (g *googleClient) FetchDetail(ctx context.Context, ref mailbox.MessageRef) (mailbox.MessageSummary, error) {
	if err := g.wait(ctx); err != nil {
		return mailbox.MessageSummary{}, err
	}
	msg, err := g.svc.Users.Messages.Get("me", string(ref.ID)).Format("full").Context(ctx).Do()
	if err != nil {
		return mailbox.MessageSummary{}, fmt.Errorf("fetch message %s: %w", ref.ID, upstream(err))
	}

	summary := mailbox.MessageSummary{
		ID:      ref.ID,
		Snippet: msg.Snippet,
	}
	for _, lid := range msg.LabelIds {
		summary.LabelIDs = append(summary.LabelIDs, mailbox.LabelID(lid))
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				summary.Subject = h.Value
			case "From":
				summary.From = h.Value
			case "Date":
				summary.Date = h.Value
			}
		}
		summary.Attachments = collectAttachments(msg.Payload.Parts, nil)
	}
	return summary, nil
}

func (g *googleClient) AssignLabel(ctx context.Context, id mailbox.MessageID, label mailbox.LabelID) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	_, err := g.svc.Users.Messages.Modify("me", string(id), &gmailv1.ModifyMessageRequest{
		AddLabelIds: []string{string(label)},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("assign label %s to %s: %w", label, id, upstream(err))
	}
	return nil
}

func collectAttachments(parts []*gmailv1.MessagePart, acc []mailbox.Attachment) []mailbox.Attachment {
	for _, part := range parts {
		if part == nil {
			continue
		}
		if part.Filename != "" {
			att := mailbox.Attachment{Filename: part.Filename, MimeType: part.MimeType}
			if part.Body != nil {
				att.Size = part.Body.Size
			}
			acc = append(acc, att)
		}
		acc = collectAttachments(part.Parts, acc)
	}
	return acc
}

func labelKind(t string) mailbox.LabelKind {
	if t == "system" {
		return mailbox.LabelKindSystem
	}
	return mailbox.LabelKindUser
}

// upstream converts provider rejections into the typed upstream error,
// preserving status and body.
func upstream(err error) error {
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return &mailbox.UpstreamError{Status: ge.Code, Body: ge.Body}
	}
	return err
}

var _ mailbox.Client = (*googleClient)(nil)
