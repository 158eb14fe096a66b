package scheduler

import (
	"context"
	"fmt"

	appfees "github.com/schoolerp/backend/internal/application/fees"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/infrastructure/config"
	"github.com/schoolerp/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// FeeJobExecutor dispatches scheduled jobs to the fee application services
type FeeJobExecutor struct {
	lateFees       *appfees.LateFeeService
	reconciliation *appfees.ReconciliationService
	policy         fees.LateFinePolicy
	logger         *zap.Logger
}

// NewFeeJobExecutor creates a new fee job executor. The late-fine policy is
// parsed from configuration once at construction.
func NewFeeJobExecutor(
	lateFees *appfees.LateFeeService,
	reconciliation *appfees.ReconciliationService,
	cfg *config.LateFeeConfig,
	logger *zap.Logger,
) (*FeeJobExecutor, error) {
	policy, err := PolicyFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	return &FeeJobExecutor{
		lateFees:       lateFees,
		reconciliation: reconciliation,
		policy:         policy,
		logger:         logger,
	}, nil
}

// Execute runs one scheduled job
func (e *FeeJobExecutor) Execute(ctx context.Context, job *Job) error {
	ctx, span := telemetry.StartSpan(ctx, "job."+string(job.Type),
		attribute.String("job_id", job.ID.String()),
		attribute.String("school_id", job.SchoolID.String()),
	)
	defer span.End()

	switch job.Type {
	case JobTypeLateFeeSweep:
		result, err := e.lateFees.RunSweep(ctx, appfees.SweepRequest{
			SchoolID: job.SchoolID,
			Policy:   e.policy,
			AsOf:     job.WindowEnd,
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return err
		}
		telemetry.SetAttribute(span, "fined", result.Fined)
		e.logger.Info("Scheduled late-fee sweep finished",
			zap.String("school_id", job.SchoolID.String()),
			zap.String("period", result.Period),
			zap.Int("fined", result.Fined),
			zap.Int("skipped", result.Skipped),
		)
		return nil

	case JobTypeReconciliation:
		result, err := e.reconciliation.Reconcile(ctx, appfees.ReconcileRequest{
			SchoolID: job.SchoolID,
			From:     job.WindowStart,
			To:       job.WindowEnd,
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return err
		}
		telemetry.SetAttribute(span, "anomalies", result.Anomalies)
		e.logger.Info("Scheduled reconciliation finished",
			zap.String("school_id", job.SchoolID.String()),
			zap.Int("payments_seen", result.PaymentsSeen),
			zap.Int("confirmed", result.Confirmed),
			zap.Int("anomalies", result.Anomalies),
		)
		return nil

	default:
		return ErrInvalidJobType
	}
}

// PolicyFromConfig builds the domain fine policy from configuration
func PolicyFromConfig(cfg *config.LateFeeConfig) (fees.LateFinePolicy, error) {
	var policy fees.LateFinePolicy

	switch cfg.PolicyType {
	case "flat":
		amount, err := decimal.NewFromString(cfg.FlatAmount)
		if err != nil {
			return policy, fmt.Errorf("%w: latefee.flat_amount %q: %v", ErrInvalidConfig, cfg.FlatAmount, err)
		}
		policy = fees.LateFinePolicy{Type: fees.LateFinePolicyFlat, Amount: amount}
	case "percent":
		percent, err := decimal.NewFromString(cfg.Percent)
		if err != nil {
			return policy, fmt.Errorf("%w: latefee.percent %q: %v", ErrInvalidConfig, cfg.Percent, err)
		}
		policy = fees.LateFinePolicy{Type: fees.LateFinePolicyPercent, Percent: percent}
	default:
		return policy, fmt.Errorf("%w: unknown latefee.policy_type %q", ErrInvalidConfig, cfg.PolicyType)
	}

	if err := policy.Validate(); err != nil {
		return policy, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return policy, nil
}

// Ensure FeeJobExecutor implements JobExecutor
var _ JobExecutor = (*FeeJobExecutor)(nil)
