package logic

import (
	"context"

	"github.com/blues/launchpad/internal/calc"
	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/ledger"
	"github.com/blues/launchpad/internal/logger"
	"github.com/blues/launchpad/internal/metrics"
	"github.com/blues/launchpad/internal/model"
	"github.com/blues/launchpad/internal/oracle"
	"github.com/blues/launchpad/internal/store"
	"github.com/shopspring/decimal"
)

// StartEvaluation 发行方开启评估轮，元数据随之冻结
func (e *Engine) StartEvaluation(ctx context.Context, caller string, projectID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		project, err := tx.store.GetProject(projectID)
		if err != nil {
			return err
		}
		if err := e.ensureIssuer(project, caller); err != nil {
			return err
		}
		if err := ensureStatus(project, model.ProjectStatusApplication); err != nil {
			return err
		}
		if project.Details.Frozen {
			return errs.New(errs.ErrFrozen, "项目 %d 已冻结", projectID)
		}

		round := model.BlockRange{Start: tx.now + 1, End: tx.now + e.cfg.EvaluationDuration}
		project.Details.Frozen = true
		project.Details.Rounds.Evaluation = round
		e.setStatus(tx, project, model.ProjectStatusEvaluationRound)

		if err := e.insertUpdate(tx, round.End+1, projectID, model.UpdateEvaluationEnd, ""); err != nil {
			return err
		}
		return tx.store.SaveProject(project)
	})
}

// Evaluate 抵押 PLMC 评估项目，返回评估ID
func (e *Engine) Evaluate(ctx context.Context, evaluator string, projectID uint32, usd decimal.Decimal) (uint32, error) {
	var evaluationID uint32
	err := e.execute(ctx, func(tx *txContext) error {
		project, err := tx.store.GetProject(projectID)
		if err != nil {
			return err
		}
		if err := ensureStatus(project, model.ProjectStatusEvaluationRound); err != nil {
			return err
		}
		if err := e.ensureNotIssuer(project, evaluator); err != nil {
			return err
		}
		if usd.LessThan(e.cfg.MinUsdPerEvaluation) {
			return errs.New(errs.ErrValidity, "评估金额 %s 低于最小值 %s", usd, e.cfg.MinUsdPerEvaluation)
		}

		price, err := e.oracle.Price(model.NativeAsset)
		if err != nil {
			return err
		}
		plmcDecimals, err := e.plmcDecimals()
		if err != nil {
			return err
		}
		bond, err := oracle.ConvertFromUsd(usd, price, plmcDecimals)
		if err != nil {
			return err
		}
		if !bond.IsPositive() {
			return errs.New(errs.ErrBadMath, "评估抵押为零")
		}

		reason := ledger.HoldReason(ledger.ReasonEvaluation, projectID)
		round := &project.Details.EvaluationRound

		existing, err := tx.store.ListEvaluations(projectID, evaluator)
		if err != nil {
			return err
		}
		if len(existing) >= e.cfg.MaxEvaluationsPerUser {
			lowest := lowestEvaluation(existing)
			if !bond.GreaterThan(lowest.OriginalPlmcBond) {
				return errs.New(errs.ErrCapacityExceeded, "%s 的评估数量已达上限 %d", evaluator, e.cfg.MaxEvaluationsPerUser)
			}
			if _, err := tx.ledger.Release(model.NativeAsset, reason, evaluator, lowest.CurrentPlmcBond, ledger.Exact); err != nil {
				return err
			}
			round.TotalBondedUsd = round.TotalBondedUsd.Sub(lowest.TotalUsd())
			round.TotalBondedPlmc = round.TotalBondedPlmc.Sub(lowest.OriginalPlmcBond)
			if err := tx.store.DeleteEvaluation(projectID, lowest.ID); err != nil {
				return err
			}
			evicted := lowest.ID
			tx.afterCommit(func() {
				metrics.Evictions.WithLabelValues(string(model.ParticipationEvaluation)).Inc()
				logger.Info("Evaluation %d of project %d evicted by a larger bond", evicted, projectID)
			})
		}

		all, err := tx.store.ListEvaluations(projectID, "")
		if err != nil {
			return err
		}
		if len(all) >= e.cfg.MaxEvaluationsPerProject {
			return errs.New(errs.ErrCapacityExceeded, "项目 %d 的评估数量已达上限 %d", projectID, e.cfg.MaxEvaluationsPerProject)
		}

		threshold := e.cfg.EvaluationSuccessThreshold.Mul(project.Details.FundraisingTarget)
		early, late := calc.SplitEarlyLate(usd, threshold, round.TotalBondedUsd)

		if _, err := tx.ledger.Hold(model.NativeAsset, reason, evaluator, bond, ledger.Exact); err != nil {
			return err
		}

		id, err := tx.store.NextID(store.CounterEvaluationID)
		if err != nil {
			return err
		}
		evaluationID = uint32(id)
		evaluation := &model.Evaluation{
			ProjectID:         projectID,
			ID:                evaluationID,
			Evaluator:         evaluator,
			OriginalPlmcBond:  bond,
			CurrentPlmcBond:   bond,
			EarlyUsdAmount:    early,
			LateUsdAmount:     late,
			When:              tx.now,
			CtMigrationStatus: model.MigrationStatus{State: model.MigrationNotStarted},
		}
		if err := tx.store.SaveEvaluation(evaluation); err != nil {
			return err
		}

		round.TotalBondedUsd = round.TotalBondedUsd.Add(usd)
		round.TotalBondedPlmc = round.TotalBondedPlmc.Add(bond)
		tx.afterCommit(func() {
			metrics.Participations.WithLabelValues(string(model.ParticipationEvaluation)).Inc()
		})
		return tx.store.SaveProject(project)
	})
	if err != nil {
		return 0, err
	}
	return evaluationID, nil
}

// lowestEvaluation 原始抵押最小的评估，相同时取ID最小的
func lowestEvaluation(evaluations []*model.Evaluation) *model.Evaluation {
	lowest := evaluations[0]
	for _, evaluation := range evaluations[1:] {
		if evaluation.OriginalPlmcBond.LessThan(lowest.OriginalPlmcBond) {
			lowest = evaluation
		}
	}
	return lowest
}

func (e *Engine) endEvaluation(tx *txContext, projectID uint32) error {
	project, err := tx.store.GetProject(projectID)
	if err != nil {
		return err
	}
	if err := ensureStatus(project, model.ProjectStatusEvaluationRound); err != nil {
		return err
	}
	if tx.now <= project.Details.Rounds.Evaluation.End {
		return errs.New(errs.ErrInvalidState, "项目 %d 的评估轮尚未结束", projectID)
	}
	if err := e.removeUpdate(tx, projectID); err != nil {
		return err
	}

	threshold := e.cfg.EvaluationSuccessThreshold.Mul(project.Details.FundraisingTarget)
	if project.Details.EvaluationRound.TotalBondedUsd.GreaterThanOrEqual(threshold) {
		round := model.BlockRange{Start: tx.now + 1, End: tx.now + e.cfg.AuctionInitializePeriodDuration}
		project.Details.Rounds.AuctionInitialize = round
		e.setStatus(tx, project, model.ProjectStatusAuctionInitializePeriod)
		if err := e.insertUpdate(tx, round.End+1, projectID, model.UpdateEnglishAuctionStart, ""); err != nil {
			return err
		}
	} else {
		project.Details.EvaluationRound.EvaluatorsOutcome = model.EvaluatorsOutcome{Kind: model.OutcomeUnchanged}
		e.setStatus(tx, project, model.ProjectStatusEvaluationFailed)
		if err := e.insertUpdate(tx, tx.now+1, projectID, model.UpdateStartSettlement, ""); err != nil {
			return err
		}
	}
	return tx.store.SaveProject(project)
}
