package finance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// JournalCommandHandler handles journal entry commands
type JournalCommandHandler struct {
	repo     *AggregateRepository[*finance.JournalEntry]
	sequence shared.SequenceGenerator
	window   valueobject.OpenPeriodWindow
	runner   commandRunner
}

// NewJournalCommandHandler creates a journal command handler. deps.Window
// bounds the journal dates the handler accepts.
func NewJournalCommandHandler(repo *AggregateRepository[*finance.JournalEntry], deps HandlerDeps) *JournalCommandHandler {
	deps = deps.withDefaults()
	return &JournalCommandHandler{
		repo:     repo,
		sequence: deps.Sequence,
		window:   deps.Window,
		runner:   newCommandRunner("journal", finance.AggregateTypeJournal, deps),
	}
}

func toJournalLineInput(l JournalLine, _ int) finance.JournalLineInput {
	return finance.JournalLineInput{
		AccountID:   l.AccountID,
		Debit:       l.Debit,
		Credit:      l.Credit,
		Description: l.Description,
		CostCenter:  l.CostCenter,
		Project:     l.Project,
		Reference:   l.Reference,
		TaxCode:     l.TaxCode,
	}
}

// CreateJournal drafts a journal entry, posting it straight away when AutoPost
// is set and the lines balance
func (h *JournalCommandHandler) CreateJournal(ctx context.Context, cmd CreateJournalCommand) (string, error) {
	ctx, finish, err := h.runner.begin(ctx, "CreateJournal", cmd, cmd.CommandMeta, "")
	if err != nil {
		return "", err
	}
	journal, err := finance.CreateJournal(ctx, h.sequence, finance.CreateJournalParams{
		TenantID:    cmd.TenantID,
		JournalDate: cmd.JournalDate,
		JournalType: cmd.JournalType,
		Description: cmd.Description,
		Reference:   cmd.Reference,
		Currency:    h.runner.currencyOr(cmd.Currency),
		Lines:       lo.Map(cmd.Lines, toJournalLineInput),
		AutoPost:    cmd.AutoPost,
		Window:      h.window,
		CreatedBy:   cmd.UserID,
	})
	if err != nil {
		return "", finish(err)
	}
	if err := h.repo.Save(ctx, journal); err != nil {
		return "", finish(err)
	}
	h.runner.logger.Info("journal created",
		zap.String("journal_id", journal.ID()),
		zap.String("journal_number", journal.JournalNumber()),
		zap.String("fiscal_period", journal.FiscalPeriod()),
		zap.String("status", string(journal.Status())),
	)
	return journal.ID(), finish(nil)
}

func (h *JournalCommandHandler) AddJournalLine(ctx context.Context, cmd AddJournalLineCommand) error {
	return mutateAggregate(ctx, h.runner, h.repo, "AddJournalLine", cmd, cmd.CommandMeta, cmd.JournalID,
		func(_ context.Context, j *finance.JournalEntry) error {
			return j.AddJournalLine(toJournalLineInput(cmd.Line, 0), cmd.UserID)
		})
}

// UpdateJournal applies every supplied change to a draft journal in one save
func (h *JournalCommandHandler) UpdateJournal(ctx context.Context, cmd UpdateJournalCommand) error {
	return mutateAggregate(ctx, h.runner, h.repo, "UpdateJournal", cmd, cmd.CommandMeta, cmd.JournalID,
		func(_ context.Context, j *finance.JournalEntry) error {
			if cmd.Description != nil {
				if err := j.UpdateDescription(*cmd.Description, cmd.UserID); err != nil {
					return err
				}
			}
			if cmd.Reference != nil {
				if err := j.UpdateReference(*cmd.Reference, cmd.UserID); err != nil {
					return err
				}
			}
			if cmd.JournalDate != nil {
				if err := j.UpdateJournalDate(*cmd.JournalDate, h.window, cmd.UserID); err != nil {
					return err
				}
			}
			if cmd.Lines != nil {
				return j.UpdateLines(lo.Map(cmd.Lines, toJournalLineInput), cmd.UserID)
			}
			return nil
		})
}

func (h *JournalCommandHandler) PostJournal(ctx context.Context, cmd PostJournalCommand) error {
	return mutateAggregate(ctx, h.runner, h.repo, "PostJournal", cmd, cmd.CommandMeta, cmd.JournalID,
		func(_ context.Context, j *finance.JournalEntry) error {
			return j.Post(cmd.UserID)
		})
}

func (h *JournalCommandHandler) CancelJournal(ctx context.Context, cmd CancelJournalCommand) error {
	return mutateAggregate(ctx, h.runner, h.repo, "CancelJournal", cmd, cmd.CommandMeta, cmd.JournalID,
		func(_ context.Context, j *finance.JournalEntry) error {
			return j.Cancel(cmd.UserID, cmd.Reason)
		})
}

// ReverseJournal reverses a posted journal and returns the reversing journal's ID.
//
// The reversing journal is a new stream and is written first as a draft. The
// original is then marked reversed, retrying on version conflicts. If that
// fails the draft is cancelled, so no half-applied reversal stays open. The
// reversing journal is posted last unless the command leaves it in draft.
func (h *JournalCommandHandler) ReverseJournal(ctx context.Context, cmd ReverseJournalCommand) (string, error) {
	ctx, finish, err := h.runner.begin(ctx, "ReverseJournal", cmd, cmd.CommandMeta, cmd.JournalID)
	if err != nil {
		return "", err
	}

	original, err := h.repo.Load(ctx, cmd.TenantID, cmd.JournalID)
	if err != nil {
		return "", finish(err)
	}
	reversing, err := original.BuildReversingEntry(ctx, h.sequence, finance.ReversalParams{
		Date:       cmd.ReversingDate,
		ReversedBy: cmd.UserID,
		Window:     h.window,
	})
	if err != nil {
		return "", finish(err)
	}
	if err := h.repo.Save(ctx, reversing); err != nil {
		return "", finish(err)
	}

	err = retryOnConflict(ctx, h.runner.retry, h.runner.onConflict(ctx, cmd.JournalID), func(ctx context.Context) error {
		current, err := h.repo.Load(ctx, cmd.TenantID, cmd.JournalID)
		if err != nil {
			return err
		}
		if err := current.MarkReversed(reversing.ID(), cmd.ReversingDate, cmd.UserID); err != nil {
			return err
		}
		return h.repo.Save(ctx, current)
	})
	if err != nil {
		h.abandonReversal(ctx, reversing, cmd, err)
		return "", finish(err)
	}

	if !cmd.LeaveDraft {
		if err := reversing.Post(cmd.UserID); err != nil {
			return "", finish(err)
		}
		if err := h.repo.Save(ctx, reversing); err != nil {
			h.runner.logger.Error("journal reversed but reversing journal left in draft",
				zap.String("journal_id", cmd.JournalID),
				zap.String("reversing_journal_id", reversing.ID()),
				zap.Error(err),
			)
			return "", finish(err)
		}
	}
	return reversing.ID(), finish(nil)
}

// abandonReversal cancels a reversing draft whose original could not be marked
func (h *JournalCommandHandler) abandonReversal(ctx context.Context, reversing *finance.JournalEntry, cmd ReverseJournalCommand, cause error) {
	fields := []zap.Field{
		zap.String("journal_id", cmd.JournalID),
		zap.String("reversing_journal_id", reversing.ID()),
		zap.NamedError("cause", cause),
	}
	if err := reversing.Cancel(cmd.UserID, fmt.Sprintf("reversal of %s aborted: %v", cmd.JournalID, cause)); err != nil {
		h.runner.logger.Error("reversing draft could not be cancelled", append(fields, zap.Error(err))...)
		return
	}
	if err := h.repo.Save(ctx, reversing); err != nil {
		h.runner.logger.Error("reversing draft could not be cancelled", append(fields, zap.Error(err))...)
		return
	}
	h.runner.logger.Warn("reversal aborted, reversing draft cancelled", fields...)
}

func (h *JournalCommandHandler) GetJournal(ctx context.Context, tenantID uuid.UUID, journalID string) (finance.JournalState, error) {
	j, err := h.repo.Load(ctx, tenantID, journalID)
	if err != nil {
		return finance.JournalState{}, err
	}
	return j.State(), nil
}
