package logic

import (
	"context"

	"github.com/blues/launchpad/internal/calc"
	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/model"
	"github.com/shopspring/decimal"
)

var (
	failureRatio = decimal.RequireFromString("0.33")
	slashedRatio = decimal.RequireFromString("0.75")
	successRatio = decimal.RequireFromString("0.9")
)

func (e *Engine) endFunding(tx *txContext, projectID uint32) error {
	project, err := tx.store.GetProject(projectID)
	if err != nil {
		return err
	}

	details := &project.Details
	soldOut := !details.RemainingContributionTokens().IsPositive()
	switch details.Status {
	case model.ProjectStatusCommunityRound:
		if !soldOut {
			return errs.New(errs.ErrInvalidState, "项目 %d 的社区轮尚未售罄", projectID)
		}
	case model.ProjectStatusRemainderRound:
		if !soldOut && tx.now <= details.Rounds.Remainder.End {
			return errs.New(errs.ErrInvalidState, "项目 %d 的剩余轮尚未结束", projectID)
		}
	case model.ProjectStatusFundingFailed:
		if details.EvaluationRound.EvaluatorsOutcome.Kind != "" {
			return errs.New(errs.ErrInvalidState, "项目 %d 的募资已结束", projectID)
		}
	default:
		return errs.New(errs.ErrInvalidState, "项目 %d 当前状态为 %s", projectID, details.Status)
	}
	if err := e.removeUpdate(tx, projectID); err != nil {
		return err
	}

	ratio, err := calc.FundingRatio(details.FundingReached, details.FundraisingTarget)
	if err != nil {
		return err
	}

	outcome := &details.EvaluationRound.EvaluatorsOutcome
	switch {
	case ratio.LessThanOrEqual(failureRatio):
		*outcome = model.EvaluatorsOutcome{Kind: model.OutcomeSlashed}
		e.setStatus(tx, project, model.ProjectStatusFundingFailed)
		err = e.insertUpdate(tx, tx.now+1, projectID, model.UpdateStartSettlement, "")
	case ratio.LessThanOrEqual(slashedRatio):
		*outcome = model.EvaluatorsOutcome{Kind: model.OutcomeSlashed}
		e.setStatus(tx, project, model.ProjectStatusAwaitingProjectDecision)
		err = e.insertUpdate(tx, tx.now+e.cfg.ManualAcceptanceDuration+1, projectID, model.UpdateProjectDecision, model.DecisionAcceptFunding)
	case ratio.LessThan(successRatio):
		*outcome = model.EvaluatorsOutcome{Kind: model.OutcomeUnchanged}
		e.setStatus(tx, project, model.ProjectStatusAwaitingProjectDecision)
		err = e.insertUpdate(tx, tx.now+e.cfg.ManualAcceptanceDuration+1, projectID, model.UpdateProjectDecision, model.DecisionAcceptFunding)
	default:
		evaluations, listErr := tx.store.ListEvaluations(projectID, "")
		if listErr != nil {
			return listErr
		}
		info, rewardErr := calc.ComputeRewardInfo(details.FundingReached, project.CtSold(), e.cfg.FeeBrackets, evaluations, project.Metadata.TokenInformation.Decimals)
		if rewardErr != nil {
			return rewardErr
		}
		*outcome = model.EvaluatorsOutcome{Kind: model.OutcomeRewarded, Reward: &info}
		e.setStatus(tx, project, model.ProjectStatusFundingSuccessful)
		err = e.insertUpdate(tx, tx.now+e.cfg.SuccessToSettlementTime, projectID, model.UpdateStartSettlement, "")
	}
	if err != nil {
		return err
	}
	return tx.store.SaveProject(project)
}

// DecideProjectOutcome 发行方在等待期内决定接受或拒绝募资结果，下一区块生效
func (e *Engine) DecideProjectOutcome(ctx context.Context, caller string, projectID uint32, decision model.FundingDecision) error {
	return e.execute(ctx, func(tx *txContext) error {
		project, err := tx.store.GetProject(projectID)
		if err != nil {
			return err
		}
		if err := e.ensureIssuer(project, caller); err != nil {
			return err
		}
		if err := ensureStatus(project, model.ProjectStatusAwaitingProjectDecision); err != nil {
			return err
		}
		if decision != model.DecisionAcceptFunding && decision != model.DecisionRejectFunding {
			return errs.New(errs.ErrValidity, "未知的决定: %s", decision)
		}
		if err := e.removeUpdate(tx, projectID); err != nil {
			return err
		}
		return e.insertUpdate(tx, tx.now+1, projectID, model.UpdateProjectDecision, decision)
	})
}

// projectDecision 执行发行方的决定，没有决定时视为接受
func (e *Engine) projectDecision(tx *txContext, projectID uint32, decision model.FundingDecision) error {
	project, err := tx.store.GetProject(projectID)
	if err != nil {
		return err
	}
	if err := ensureStatus(project, model.ProjectStatusAwaitingProjectDecision); err != nil {
		return err
	}
	if err := e.removeUpdate(tx, projectID); err != nil {
		return err
	}

	if decision == model.DecisionRejectFunding {
		e.setStatus(tx, project, model.ProjectStatusFundingFailed)
		err = e.insertUpdate(tx, tx.now+1, projectID, model.UpdateStartSettlement, "")
	} else {
		e.setStatus(tx, project, model.ProjectStatusFundingSuccessful)
		err = e.insertUpdate(tx, tx.now+e.cfg.SuccessToSettlementTime, projectID, model.UpdateStartSettlement, "")
	}
	if err != nil {
		return err
	}
	return tx.store.SaveProject(project)
}
