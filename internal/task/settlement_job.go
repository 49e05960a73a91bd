package task

import (
	"context"
	"fmt"
	"time"

	"github.com/blues/launchpad/internal/logger"
	"github.com/blues/launchpad/internal/logic"
	"github.com/blues/launchpad/internal/metrics"
	"github.com/blues/launchpad/internal/model"
	"github.com/go-co-op/gocron/v2"
	"github.com/panjf2000/ants/v2"
)

// SettlementJob 结算中项目的参与记录清算任务
type SettlementJob struct {
	engine   *logic.Engine
	pool     *ants.Pool
	interval time.Duration
}

// NewSettlementJob 创建结算任务
func NewSettlementJob(engine *logic.Engine, pool *ants.Pool, interval time.Duration) *SettlementJob {
	return &SettlementJob{
		engine:   engine,
		pool:     pool,
		interval: interval,
	}
}

// GetName 获取任务名称
func (j *SettlementJob) GetName() string {
	return "participation_settler"
}

// GetSchedule 获取调度配置
func (j *SettlementJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *SettlementJob) Execute() {
	defer metrics.ObserveTask(j.GetName())()
	logger.Info("Starting participation settlement task")

	ctx := context.Background()
	projects, err := j.engine.ListProjects(ctx, model.ProjectStatusSettlementStarted)
	if err != nil {
		logger.Error("Failed to fetch settling projects: %v", err)
		return
	}

	settled := sweep(j.pool, projects, func(project *model.Project) int {
		return j.settleProject(ctx, project)
	})
	logger.Info("Participation settlement task completed. Settled %d records", settled)
}

// settleProject 处理一个项目所有尚未清算的记录
func (j *SettlementJob) settleProject(ctx context.Context, project *model.Project) int {
	success := project.Details.SettlementOutcome == model.SettlementSuccess
	id := project.ID
	count := 0
	do := func(what string, err error) {
		if attempt(fmt.Sprintf("%s (project %d)", what, id), err) {
			count++
		}
	}

	evaluations, err := j.engine.ListEvaluations(ctx, id, "")
	if err != nil {
		logger.Error("Failed to fetch evaluations of project %d: %v", id, err)
		return count
	}
	outcome := project.Details.EvaluationRound.EvaluatorsOutcome.Kind
	for _, evaluation := range evaluations {
		if evaluation.RewardedOrSlashed == nil && (outcome == model.OutcomeRewarded || outcome == model.OutcomeSlashed) {
			do(fmt.Sprintf("reward or slash evaluation %d", evaluation.ID), j.engine.EvaluationRewardOrSlash(ctx, id, evaluation.ID))
		}
		if evaluation.CurrentPlmcBond.IsPositive() {
			do(fmt.Sprintf("unbond evaluation %d", evaluation.ID), j.engine.EvaluationUnbond(ctx, id, evaluation.ID))
		}
	}

	bids, err := j.engine.ListBids(ctx, id, "")
	if err != nil {
		logger.Error("Failed to fetch bids of project %d: %v", id, err)
		return count
	}
	for _, bid := range bids {
		if success && bid.Status.IsWinning() && !bid.CtMinted {
			do(fmt.Sprintf("mint bid %d", bid.ID), j.engine.MintCtForBid(ctx, id, bid.ID))
		}
		if !bid.FundsReleased && bid.FundingAssetAmountLocked.IsPositive() {
			if success {
				do(fmt.Sprintf("pay out bid %d", bid.ID), j.engine.PayoutBidFunds(ctx, id, bid.ID))
			} else {
				do(fmt.Sprintf("release bid %d", bid.ID), j.engine.ReleaseBidFunds(ctx, id, bid.ID))
			}
		}
		if bid.PlmcBond.IsPositive() {
			do(fmt.Sprintf("unbond bid %d", bid.ID), j.engine.BidUnbond(ctx, id, bid.ID))
		}
	}

	contributions, err := j.engine.ListContributions(ctx, id, "")
	if err != nil {
		logger.Error("Failed to fetch contributions of project %d: %v", id, err)
		return count
	}
	for _, contribution := range contributions {
		if success && !contribution.CtMinted {
			do(fmt.Sprintf("mint contribution %d", contribution.ID), j.engine.MintCtForContribution(ctx, id, contribution.ID))
		}
		if !contribution.FundsReleased && contribution.FundingAssetAmount.IsPositive() {
			if success {
				do(fmt.Sprintf("pay out contribution %d", contribution.ID), j.engine.PayoutContributionFunds(ctx, id, contribution.ID))
			} else {
				do(fmt.Sprintf("release contribution %d", contribution.ID), j.engine.ReleaseContributionFunds(ctx, id, contribution.ID))
			}
		}
		if contribution.PlmcBond.IsPositive() {
			do(fmt.Sprintf("unbond contribution %d", contribution.ID), j.engine.ContributionUnbond(ctx, id, contribution.ID))
		}
	}
	return count
}
