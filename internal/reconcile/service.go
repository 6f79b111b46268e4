// Package reconcile drives one labeling pass over the mailbox: drain
// message pages, skip anything already labeled, and reuse or create a label
// for the rest.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joshsymonds/labelsweep/internal/mailbox"
	"github.com/joshsymonds/labelsweep/internal/oracle"
	"github.com/joshsymonds/labelsweep/internal/rate"
)

const defaultPageBudget = 1

// Options controls one reconciliation run.
type Options struct {
	// PageBudget bounds how many pages are drained. A safety bound, not a
	// correctness requirement; the run also stops when the cursor is
	// exhausted.
	PageBudget int
	// DryRun logs intended mutations without performing them.
	DryRun bool
}

// Service executes reconciliation runs. The run is sequential: one message
// is fully processed before the next begins, so the label index needs no
// locking.
type Service struct {
	Client  mailbox.Client
	Labeler oracle.Labeler
	Limiter rate.Limiter
	Logger  *slog.Logger
	Clock   func() time.Time
}

// NewService constructs a Service with sane defaults.
func NewService(client mailbox.Client, labeler oracle.Labeler, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Client:  client,
		Labeler: labeler,
		Limiter: limiter,
		Logger:  logger,
		Clock:   time.Now,
	}
}

// Failure records one message the run could not label.
type Failure struct {
	MessageID mailbox.MessageID `json:"message_id"`
	Reason    string            `json:"reason"`
}

// Report aggregates the outcome of one run. Per-message failures are
// collected here; only page-level errors abort a run.
type Report struct {
	StartedAt time.Time `json:"started_at"`
	DryRun    bool      `json:"dry_run"`
	Pages     int       `json:"pages"`
	Scanned   int       `json:"scanned"`
	Skipped   int       `json:"skipped"`
	Reused    int       `json:"reused"`
	Created   int       `json:"created"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Labeled is the number of messages that received a label this run.
func (r Report) Labeled() int { return r.Reused + r.Created }

// Run performs one reconciliation pass. The returned error is non-nil only
// when the run aborted at page level (label listing or page listing);
// everything processed up to that point is still reflected in the report.
func (s *Service) Run(ctx context.Context, opts Options) (Report, error) {
	budget := opts.PageBudget
	if budget <= 0 {
		budget = defaultPageBudget
	}

	rep := Report{StartedAt: s.Clock(), DryRun: opts.DryRun}
	logger := s.Logger
	logger.InfoContext(ctx, "starting reconciliation", "page_budget", budget, "dry_run", opts.DryRun)

	if err := s.wait(ctx, "rate limit labels"); err != nil {
		return rep, err
	}
	records, err := s.Client.ListLabels(ctx)
	if err != nil {
		return rep, fmt.Errorf("seed label index: %w", err)
	}
	idx := newLabelIndex(records)

	var cursor *mailbox.PageCursor
	for page := 0; page < budget; page++ {
		if err := s.wait(ctx, "rate limit page"); err != nil {
			return rep, err
		}
		pg, err := s.Client.ListMessagesPage(ctx, cursor)
		if err != nil {
			return rep, fmt.Errorf("list page %d: %w", page+1, err)
		}
		rep.Pages++

		for _, ref := range pg.Refs {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return rep, fmt.Errorf("reconciliation canceled: %w", ctxErr)
			}
			if procErr := s.processMessage(ctx, &rep, idx, ref, opts.DryRun); procErr != nil {
				rep.Failures = append(rep.Failures, Failure{MessageID: ref.ID, Reason: procErr.Error()})
				logger.WarnContext(ctx, "message failed", "id", ref.ID, "error", procErr)
			}
		}

		if pg.Next == nil {
			break
		}
		cursor = pg.Next
	}

	logger.InfoContext(ctx, "reconciliation finished",
		"pages", rep.Pages,
		"scanned", rep.Scanned,
		"skipped", rep.Skipped,
		"labeled", rep.Labeled(),
		"failures", len(rep.Failures),
	)
	return rep, nil
}

func (s *Service) processMessage(ctx context.Context, rep *Report, idx labelIndex, ref mailbox.MessageRef, dryRun bool) error {
	if err := s.wait(ctx, "rate limit detail"); err != nil {
		return err
	}
	msg, err := s.Client.FetchDetail(ctx, ref)
	if err != nil {
		return err
	}
	rep.Scanned++

	if decide(idx, msg) == actionSkip {
		rep.Skipped++
		s.Logger.DebugContext(ctx, "already labeled", "id", msg.ID)
		return nil
	}

	name, err := s.Labeler.GenerateLabel(ctx, msg, idx.names())
	if err != nil {
		return err
	}

	if id, ok := idx.lookup(name); ok {
		if !dryRun {
			if err := s.assign(ctx, msg.ID, id); err != nil {
				return err
			}
		}
		rep.Reused++
		s.Logger.InfoContext(ctx, "applied existing label", "id", msg.ID, "label", name, "dry_run", dryRun)
		return nil
	}

	var id mailbox.LabelID
	if !dryRun {
		if err := s.wait(ctx, "rate limit create"); err != nil {
			return err
		}
		created, err := s.Client.CreateLabel(ctx, name)
		if err != nil {
			return err
		}
		id = created.ID
	}
	// Recorded even in dry runs so later messages in the run reuse the name
	// instead of re-creating it.
	idx.add(name, id)
	if !dryRun {
		if err := s.assign(ctx, msg.ID, id); err != nil {
			return err
		}
	}
	rep.Created++
	s.Logger.InfoContext(ctx, "created and applied label", "id", msg.ID, "label", name, "dry_run", dryRun)
	return nil
}

func (s *Service) assign(ctx context.Context, id mailbox.MessageID, label mailbox.LabelID) error {
	if err := s.wait(ctx, "rate limit assign"); err != nil {
		return err
	}
	return s.Client.AssignLabel(ctx, id, label)
}

func (s *Service) wait(ctx context.Context, operation string) error {
	if s.Limiter == nil {
		return nil
	}
	if err := s.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}
