// Package apiclient implements the mailbox surface against a running
// labelsweep-server, presenting a wrapped session credential instead of
// talking to the provider directly.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/joshsymonds/labelsweep/internal/mailbox"
)

// Client calls the labelsweep HTTP API. The server returns full message
// summaries per page, so FetchDetail is served from the summaries of pages
// already listed rather than a second round trip.
type Client struct {
	base   string
	bearer string
	http   *http.Client

	summaries map[mailbox.MessageID]mailbox.MessageSummary
}

// New builds a client for the API at base presenting the wrapped credential.
func New(base, bearer string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		base:      base,
		bearer:    bearer,
		http:      hc,
		summaries: make(map[mailbox.MessageID]mailbox.MessageSummary),
	}
}

// FetchToken retrieves the current session credential from the server,
// waiting server-side if none has been issued yet.
func FetchToken(ctx context.Context, base string, hc *http.Client) (string, error) {
	if hc == nil {
		hc = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/token", nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch session credential: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &mailbox.UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}
	var payload struct {
		APIToken string `json:"api_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	return payload.APIToken, nil
}

func (c *Client) ListLabels(ctx context.Context) ([]mailbox.LabelRecord, error) {
	var grouped map[string][]mailbox.LabelRecord
	if err := c.get(ctx, "/labels", nil, &grouped); err != nil {
		return nil, err
	}
	var records []mailbox.LabelRecord
	for _, group := range grouped {
		records = append(records, group...)
	}
	return records, nil
}

func (c *Client) CreateLabel(ctx context.Context, name string) (mailbox.LabelRecord, error) {
	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	q := url.Values{"name": {name}}
	if err := c.do(ctx, http.MethodPost, "/labels", q, &created); err != nil {
		return mailbox.LabelRecord{}, err
	}
	return mailbox.LabelRecord{
		ID:   mailbox.LabelID(created.ID),
		Name: created.Name,
		Kind: mailbox.LabelKindUser,
	}, nil
}

func (c *Client) ListMessagesPage(ctx context.Context, cursor *mailbox.PageCursor) (mailbox.MessagePage, error) {
	q := url.Values{}
	if cursor != nil {
		q.Set("pageToken", string(*cursor))
	}
	var payload struct {
		Emails        []mailbox.MessageSummary `json:"emails"`
		NextPageToken *string                  `json:"next_page_token"`
	}
	if err := c.get(ctx, "/emails", q, &payload); err != nil {
		return mailbox.MessagePage{}, err
	}

	page := mailbox.MessagePage{Refs: make([]mailbox.MessageRef, 0, len(payload.Emails))}
	for _, summary := range payload.Emails {
		c.summaries[summary.ID] = summary
		page.Refs = append(page.Refs, mailbox.MessageRef{ID: summary.ID})
	}
	if payload.NextPageToken != nil {
		next := mailbox.PageCursor(*payload.NextPageToken)
		page.Next = &next
	}
	return page, nil
}

func (c *Client) FetchDetail(ctx context.Context, ref mailbox.MessageRef) (mailbox.MessageSummary, error) {
	summary, ok := c.summaries[ref.ID]
	if !ok {
		return mailbox.MessageSummary{}, fmt.Errorf("message %s not in any listed page", ref.ID)
	}
	return summary, nil
}

func (c *Client) AssignLabel(ctx context.Context, id mailbox.MessageID, label mailbox.LabelID) error {
	q := url.Values{"label_id": {string(label)}}
	return c.do(ctx, http.MethodPost, "/emails/"+url.PathEscape(string(id))+"/label", q, nil)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, q, out)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, out any) error {
	target := c.base + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return &mailbox.UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

var _ mailbox.Client = (*Client)(nil)
