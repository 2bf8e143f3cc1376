package finance

import (
	"context"

	"github.com/google/uuid"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"go.uber.org/zap"
)

// ReconciliationIssueService lists and resolves payment/invoice mismatches
type ReconciliationIssueService struct {
	repo   finance.ReconciliationIssueRepository
	runner commandRunner
}

func NewReconciliationIssueService(repo finance.ReconciliationIssueRepository, deps HandlerDeps) *ReconciliationIssueService {
	deps = deps.withDefaults()
	return &ReconciliationIssueService{
		repo:   repo,
		runner: newCommandRunner("reconciliation", "ReconciliationIssue", deps),
	}
}

// ResolveIssue closes an open issue with a resolution note
func (s *ReconciliationIssueService) ResolveIssue(ctx context.Context, cmd ResolveReconciliationIssueCommand) error {
	ctx, finish, err := s.runner.begin(ctx, "ResolveReconciliationIssue", cmd, cmd.CommandMeta, cmd.IssueID.String())
	if err != nil {
		return err
	}
	issue, err := s.repo.FindByIDForTenant(ctx, cmd.TenantID, cmd.IssueID)
	if err != nil {
		return finish(err)
	}
	if err := issue.Resolve(cmd.UserID, cmd.Resolution); err != nil {
		return finish(err)
	}
	if err := s.repo.Save(ctx, issue); err != nil {
		return finish(err)
	}
	s.runner.logger.Info("reconciliation issue resolved",
		zap.String("issue_id", issue.ID.String()),
		zap.String("payment_id", issue.PaymentID),
		zap.String("kind", string(issue.Kind)),
	)
	return finish(nil)
}

func (s *ReconciliationIssueService) GetIssue(ctx context.Context, tenantID, issueID uuid.UUID) (*finance.ReconciliationIssue, error) {
	return s.repo.FindByIDForTenant(ctx, tenantID, issueID)
}

// ListIssues returns one page of issues matching filter
func (s *ReconciliationIssueService) ListIssues(ctx context.Context, tenantID uuid.UUID, filter finance.ReconciliationIssueFilter) (shared.Paginated[finance.ReconciliationIssue], error) {
	filter.Filter = filter.Filter.Normalized()
	return s.repo.FindAllForTenant(ctx, tenantID, filter)
}

// CountOpen returns the number of issues still waiting for resolution
func (s *ReconciliationIssueService) CountOpen(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.repo.CountOpen(ctx, tenantID)
}
