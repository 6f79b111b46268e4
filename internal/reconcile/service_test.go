package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/joshsymonds/labelsweep/internal/mailbox"
)

type assignment struct {
	Message mailbox.MessageID
	Label   mailbox.LabelID
}

type fakeClient struct {
	labels        []mailbox.LabelRecord
	listLabelsErr error

	pages     []mailbox.MessagePage
	listCalls int

	details   map[mailbox.MessageID]mailbox.MessageSummary
	detailErr map[mailbox.MessageID]error

	created   []string
	createErr error
	assigned  []assignment
	assignErr error
}

func (f *fakeClient) ListLabels(ctx context.Context) ([]mailbox.LabelRecord, error) {
	_ = ctx
	if f.listLabelsErr != nil {
		return nil, f.listLabelsErr
	}
	return f.labels, nil
}

func (f *fakeClient) CreateLabel(ctx context.Context, name string) (mailbox.LabelRecord, error) {
	_ = ctx
	if f.createErr != nil {
		return mailbox.LabelRecord{}, f.createErr
	}
	f.created = append(f.created, name)
	return mailbox.LabelRecord{
		ID:   mailbox.LabelID(fmt.Sprintf("Label_%d", len(f.created))),
		Name: name,
		Kind: mailbox.LabelKindUser,
	}, nil
}

func (f *fakeClient) ListMessagesPage(ctx context.Context, cursor *mailbox.PageCursor) (mailbox.MessagePage, error) {
	_ = ctx
	_ = cursor
	f.listCalls++
	if len(f.pages) == 0 {
		return mailbox.MessagePage{}, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeClient) FetchDetail(ctx context.Context, ref mailbox.MessageRef) (mailbox.MessageSummary, error) {
	_ = ctx
	if err := f.detailErr[ref.ID]; err != nil {
		return mailbox.MessageSummary{}, err
	}
	if summary, ok := f.details[ref.ID]; ok {
		return summary, nil
	}
	return mailbox.MessageSummary{ID: ref.ID}, nil
}

func (f *fakeClient) AssignLabel(ctx context.Context, id mailbox.MessageID, label mailbox.LabelID) error {
	_ = ctx
	if f.assignErr != nil {
		return f.assignErr
	}
	f.assigned = append(f.assigned, assignment{Message: id, Label: label})
	return nil
}

type fakeLabeler struct {
	labels map[mailbox.MessageID]string
	calls  []mailbox.MessageID
	seen   [][]string
	err    error
}

func (f *fakeLabeler) GenerateLabel(ctx context.Context, msg mailbox.MessageSummary, knownLabels []string) (string, error) {
	_ = ctx
	f.calls = append(f.calls, msg.ID)
	f.seen = append(f.seen, knownLabels)
	if f.err != nil {
		return "", f.err
	}
	return f.labels[msg.ID], nil
}

func newTestService(client *fakeClient, labeler *fakeLabeler) *Service {
	return NewService(client, labeler, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func page(next bool, ids ...string) mailbox.MessagePage {
	pg := mailbox.MessagePage{}
	for _, id := range ids {
		pg.Refs = append(pg.Refs, mailbox.MessageRef{ID: mailbox.MessageID(id)})
	}
	if next {
		cursor := mailbox.PageCursor("cursor-" + ids[len(ids)-1])
		pg.Next = &cursor
	}
	return pg
}

func manyIDs(prefix string, n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("%s-%d", prefix, i))
	}
	return out
}

func TestRunCreatesLabelOncePerName(t *testing.T) {
	client := &fakeClient{
		pages: []mailbox.MessagePage{page(false, "a", "b")},
	}
	labeler := &fakeLabeler{labels: map[mailbox.MessageID]string{"a": "Acme", "b": "Acme"}}
	svc := newTestService(client, labeler)

	rep, err := svc.Run(context.Background(), Options{PageBudget: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(client.created) != 1 || client.created[0] != "Acme" {
		t.Fatalf("created = %v, want exactly one Acme", client.created)
	}
	if len(client.assigned) != 2 {
		t.Fatalf("assigned = %v, want 2 assignments", client.assigned)
	}
	if client.assigned[0].Label != client.assigned[1].Label {
		t.Fatalf("assignments reference different label ids: %v", client.assigned)
	}
	if rep.Created != 1 || rep.Reused != 1 || rep.Scanned != 2 {
		t.Fatalf("report = %+v, want created 1, reused 1, scanned 2", rep)
	}
}

func TestSkipRuleNeverConsultsOracle(t *testing.T) {
	client := &fakeClient{
		labels: []mailbox.LabelRecord{{ID: "Label_7", Name: "Acme", Kind: mailbox.LabelKindUser}},
		pages:  []mailbox.MessagePage{page(false, "a")},
		details: map[mailbox.MessageID]mailbox.MessageSummary{
			"a": {ID: "a", LabelIDs: []mailbox.LabelID{"Label_7"}},
		},
	}
	labeler := &fakeLabeler{}
	svc := newTestService(client, labeler)

	rep, err := svc.Run(context.Background(), Options{PageBudget: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(labeler.calls) != 0 {
		t.Fatalf("oracle consulted for already-labeled message: %v", labeler.calls)
	}
	if rep.Skipped != 1 || rep.Labeled() != 0 {
		t.Fatalf("report = %+v, want skipped 1, labeled 0", rep)
	}
}

func TestSystemLabelsDoNotTriggerSkip(t *testing.T) {
	client := &fakeClient{
		labels: []mailbox.LabelRecord{
			{ID: "INBOX", Name: "INBOX", Kind: mailbox.LabelKindSystem},
			{ID: "UNREAD", Name: "UNREAD", Kind: mailbox.LabelKindSystem},
			{ID: "Label_1", Name: "Receipts", Kind: mailbox.LabelKindUser},
		},
		pages: []mailbox.MessagePage{page(false, "a", "b")},
		details: map[mailbox.MessageID]mailbox.MessageSummary{
			"a": {ID: "a", LabelIDs: []mailbox.LabelID{"INBOX", "UNREAD"}},
			"b": {ID: "b", LabelIDs: []mailbox.LabelID{"INBOX", "Label_1"}},
		},
	}
	labeler := &fakeLabeler{labels: map[mailbox.MessageID]string{"a": "Receipts"}}
	svc := newTestService(client, labeler)

	rep, err := svc.Run(context.Background(), Options{PageBudget: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// "a" carries only system ids and must reach the oracle; "b" also
	// carries a user label and is skipped.
	if len(labeler.calls) != 1 || labeler.calls[0] != "a" {
		t.Fatalf("oracle calls = %v, want exactly [a]", labeler.calls)
	}
	if len(labeler.seen[0]) != 1 || labeler.seen[0][0] != "Receipts" {
		t.Fatalf("oracle offered labels %v, want only user names", labeler.seen[0])
	}
	if len(client.assigned) != 1 || client.assigned[0] != (assignment{Message: "a", Label: "Label_1"}) {
		t.Fatalf("assigned = %v, want Receipts reused for a", client.assigned)
	}
	if rep.Skipped != 1 || rep.Reused != 1 || rep.Created != 0 {
		t.Fatalf("report = %+v, want skipped 1, reused 1, created 0", rep)
	}
}

func TestPageBudgetBoundsTheRun(t *testing.T) {
	client := &fakeClient{
		pages: []mailbox.MessagePage{
			page(true, manyIDs("p1", 10)...),
			page(true, manyIDs("p2", 10)...),
			page(false, manyIDs("p3", 4)...),
		},
	}
	labeler := &fakeLabeler{labels: map[mailbox.MessageID]string{}}
	// Every message gets the same label so the fake stays simple.
	for _, ids := range [][]string{manyIDs("p1", 10), manyIDs("p2", 10), manyIDs("p3", 4)} {
		for _, id := range ids {
			labeler.labels[mailbox.MessageID(id)] = "Bulk"
		}
	}
	svc := newTestService(client, labeler)

	rep, err := svc.Run(context.Background(), Options{PageBudget: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Scanned != 20 {
		t.Fatalf("scanned = %d, want 20", rep.Scanned)
	}
	if client.listCalls != 2 {
		t.Fatalf("list calls = %d, want 2 despite trailing cursor", client.listCalls)
	}
}

func TestRunStopsWhenCursorExhausted(t *testing.T) {
	client := &fakeClient{pages: []mailbox.MessagePage{page(false, "a")}}
	labeler := &fakeLabeler{labels: map[mailbox.MessageID]string{"a": "Acme"}}
	svc := newTestService(client, labeler)

	if _, err := svc.Run(context.Background(), Options{PageBudget: 5}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.listCalls != 1 {
		t.Fatalf("list calls = %d, want 1 after cursor exhaustion", client.listCalls)
	}
}

func TestRunReusesExistingLabel(t *testing.T) {
	client := &fakeClient{
		labels: []mailbox.LabelRecord{{ID: "Label_1", Name: "Acme", Kind: mailbox.LabelKindUser}},
		pages:  []mailbox.MessagePage{page(false, "a")},
	}
	labeler := &fakeLabeler{labels: map[mailbox.MessageID]string{"a": "Acme"}}
	svc := newTestService(client, labeler)

	rep, err := svc.Run(context.Background(), Options{PageBudget: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(client.created) != 0 {
		t.Fatalf("created = %v, want none", client.created)
	}
	if len(client.assigned) != 1 || client.assigned[0].Label != "Label_1" {
		t.Fatalf("assigned = %v, want one assignment of Label_1", client.assigned)
	}
	if rep.Reused != 1 {
		t.Fatalf("reused = %d, want 1", rep.Reused)
	}
	if len(labeler.seen) != 1 || len(labeler.seen[0]) != 1 || labeler.seen[0][0] != "Acme" {
		t.Fatalf("oracle saw labels %v, want [Acme]", labeler.seen)
	}
}

func TestPerMessageFailureDoesNotAbortRun(t *testing.T) {
	client := &fakeClient{
		pages:     []mailbox.MessagePage{page(false, "bad", "good")},
		detailErr: map[mailbox.MessageID]error{"bad": errors.New("boom")},
	}
	labeler := &fakeLabeler{labels: map[mailbox.MessageID]string{"good": "Acme"}}
	svc := newTestService(client, labeler)

	rep, err := svc.Run(context.Background(), Options{PageBudget: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Failures) != 1 || rep.Failures[0].MessageID != "bad" {
		t.Fatalf("failures = %v, want one for bad", rep.Failures)
	}
	if len(client.assigned) != 1 || client.assigned[0].Message != "good" {
		t.Fatalf("assigned = %v, want good still labeled", client.assigned)
	}
}

func TestLabelListingErrorAbortsRun(t *testing.T) {
	client := &fakeClient{listLabelsErr: &mailbox.UpstreamError{Status: 500, Body: "backend"}}
	svc := newTestService(client, &fakeLabeler{})

	_, err := svc.Run(context.Background(), Options{PageBudget: 1})
	if _, ok := mailbox.AsUpstream(err); !ok {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestDryRunPerformsNoMutations(t *testing.T) {
	client := &fakeClient{
		pages: []mailbox.MessagePage{page(false, "a", "b")},
	}
	labeler := &fakeLabeler{labels: map[mailbox.MessageID]string{"a": "Acme", "b": "Acme"}}
	svc := newTestService(client, labeler)

	rep, err := svc.Run(context.Background(), Options{PageBudget: 1, DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(client.created) != 0 || len(client.assigned) != 0 {
		t.Fatalf("dry run mutated: created %v assigned %v", client.created, client.assigned)
	}
	// The first message reports the would-be creation, the second reuses it.
	if rep.Created != 1 || rep.Reused != 1 {
		t.Fatalf("report = %+v, want created 1 reused 1", rep)
	}
}

func TestDecideReadsValueSet(t *testing.T) {
	idx := newLabelIndex([]mailbox.LabelRecord{
		{ID: "L1", Name: "Acme", Kind: mailbox.LabelKindUser},
		{ID: "INBOX", Name: "INBOX", Kind: mailbox.LabelKindSystem},
	})

	carrying := mailbox.MessageSummary{ID: "a", LabelIDs: []mailbox.LabelID{"L1"}}
	if decide(idx, carrying) != actionSkip {
		t.Fatalf("message carrying a known id should skip")
	}
	unknown := mailbox.MessageSummary{ID: "b", LabelIDs: []mailbox.LabelID{"INBOX"}}
	if decide(idx, unknown) != actionLabel {
		t.Fatalf("message with only system ids should be labeled")
	}
	if names := idx.names(); len(names) != 1 || names[0] != "Acme" {
		t.Fatalf("names = %v, want user names only", names)
	}
}
