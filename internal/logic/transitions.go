package logic

import (
	"context"

	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/logger"
	"github.com/blues/launchpad/internal/metrics"
	"github.com/blues/launchpad/internal/model"
	"github.com/blues/launchpad/internal/store"
)

// OnInitialize 执行当前区块到期的自动转换，每个转换单独一个事务
//
// 失败的转换记录错误日志并计数，项目状态不推进，也不会重试。
func (e *Engine) OnInitialize(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.BlockNumber()
	metrics.CurrentBlock.Set(float64(now))

	var due []model.ProjectUpdate
	err := e.run(ctx, now, func(tx *txContext) (err error) {
		if due, err = tx.store.DueUpdates(now); err != nil {
			return err
		}
		if err = tx.store.SetCounter(store.CounterBlockHeight, now); err != nil {
			return err
		}
		return tx.store.SaveDueUpdates(now, nil)
	})
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, update := range due {
		update := update
		err := e.run(ctx, now, func(tx *txContext) error {
			return e.applyUpdate(tx, update)
		})
		if err != nil {
			logger.Error("Block %d: %s for project %d failed: %v", now, update.UpdateType, update.ProjectID, err)
			metrics.SchedulerFailures.WithLabelValues(string(update.UpdateType)).Inc()
			continue
		}
		applied++
	}
	if len(due) > 0 {
		logger.Debug("Block %d: applied %d/%d project updates", now, applied, len(due))
	}

	err = e.run(ctx, now, func(tx *txContext) error {
		_, err := e.expireReadinessQueries(tx)
		return err
	})
	if err != nil {
		logger.Error("Block %d: expiring readiness queries failed: %v", now, err)
	}
	return applied, nil
}

func (e *Engine) applyUpdate(tx *txContext, update model.ProjectUpdate) error {
	switch update.UpdateType {
	case model.UpdateEvaluationEnd:
		return e.endEvaluation(tx, update.ProjectID)
	case model.UpdateEnglishAuctionStart:
		return e.startEnglishAuction(tx, e.cfg.SystemAccount, update.ProjectID)
	case model.UpdateCandleAuctionStart:
		return e.startCandleAuction(tx, update.ProjectID)
	case model.UpdateCommunityFundingStart:
		return e.startCommunityFunding(tx, update.ProjectID)
	case model.UpdateRemainderFundingStart:
		return e.startRemainderFunding(tx, update.ProjectID)
	case model.UpdateFundingEnd:
		return e.endFunding(tx, update.ProjectID)
	case model.UpdateProjectDecision:
		return e.projectDecision(tx, update.ProjectID, update.Decision)
	case model.UpdateStartSettlement:
		return e.startSettlement(tx, update.ProjectID)
	default:
		return errs.New(errs.ErrValidity, "未知的转换类型: %s", update.UpdateType)
	}
}

// setStatus 修改项目状态，提交后记录指标
func (e *Engine) setStatus(tx *txContext, project *model.Project, status model.ProjectStatus) {
	from := project.Details.Status
	project.Details.Status = status
	id, now := project.ID, tx.now
	tx.afterCommit(func() {
		metrics.Transitions.WithLabelValues(string(status)).Inc()
		logger.Info("Project %d: %s -> %s at block %d", id, from, status, now)
	})
}

// EndEvaluation 结束评估轮
func (e *Engine) EndEvaluation(ctx context.Context, projectID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		return e.endEvaluation(tx, projectID)
	})
}

// StartCandleAuction 进入蜡烛拍卖
func (e *Engine) StartCandleAuction(ctx context.Context, projectID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		return e.startCandleAuction(tx, projectID)
	})
}

// StartCommunityFunding 拍卖清算并进入社区轮
func (e *Engine) StartCommunityFunding(ctx context.Context, projectID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		return e.startCommunityFunding(tx, projectID)
	})
}

// StartRemainderFunding 进入剩余轮
func (e *Engine) StartRemainderFunding(ctx context.Context, projectID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		return e.startRemainderFunding(tx, projectID)
	})
}

// EndFunding 结束募资
func (e *Engine) EndFunding(ctx context.Context, projectID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		return e.endFunding(tx, projectID)
	})
}
