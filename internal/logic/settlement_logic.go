package logic

import (
	"context"

	"github.com/blues/launchpad/internal/calc"
	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/ledger"
	"github.com/blues/launchpad/internal/model"
	"github.com/shopspring/decimal"
)

// StartSettlement 募资结束后开始结算，任何人都可以调用
func (e *Engine) StartSettlement(ctx context.Context, projectID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		return e.startSettlement(tx, projectID)
	})
}

func (e *Engine) startSettlement(tx *txContext, projectID uint32) error {
	project, err := tx.store.GetProject(projectID)
	if err != nil {
		return err
	}
	if err := ensureStatus(project,
		model.ProjectStatusFundingSuccessful,
		model.ProjectStatusFundingFailed,
		model.ProjectStatusEvaluationFailed,
	); err != nil {
		return err
	}
	if err := e.removeUpdate(tx, projectID); err != nil {
		return err
	}

	success := project.Details.Status == model.ProjectStatusFundingSuccessful
	project.Details.FundingEndBlock = tx.now
	if success {
		project.Details.SettlementOutcome = model.SettlementSuccess
		err := tx.ledger.CreateAsset(project.CtAsset(), project.Metadata.TokenInformation.Decimals, decimal.Zero, project.Issuer)
		if err != nil {
			return err
		}
	} else {
		project.Details.SettlementOutcome = model.SettlementFailure
	}
	e.setStatus(tx, project, model.ProjectStatusSettlementStarted)
	return tx.store.SaveProject(project)
}

// settlingProject 读取处于结算中的项目
func settlingProject(tx *txContext, projectID uint32) (*model.Project, error) {
	project, err := tx.store.GetProject(projectID)
	if err != nil {
		return nil, err
	}
	if err := ensureStatus(project, model.ProjectStatusSettlementStarted); err != nil {
		return nil, err
	}
	return project, nil
}

func ensureOutcome(project *model.Project, outcome model.SettlementOutcome) error {
	if project.Details.SettlementOutcome != outcome {
		return errs.New(errs.ErrInvalidState, "项目 %d 的结算结果为 %s", project.ID, project.Details.SettlementOutcome)
	}
	return nil
}

// EvaluationRewardOrSlash 按评估者整体结果奖励或罚没单条评估
func (e *Engine) EvaluationRewardOrSlash(ctx context.Context, projectID, evaluationID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		project, err := settlingProject(tx, projectID)
		if err != nil {
			return err
		}
		evaluation, err := tx.store.GetEvaluation(projectID, evaluationID)
		if err != nil {
			return err
		}
		if evaluation.RewardedOrSlashed != nil {
			return errs.New(errs.ErrInvalidState, "评估 %d 已结算", evaluationID)
		}

		outcome := project.Details.EvaluationRound.EvaluatorsOutcome
		switch outcome.Kind {
		case model.OutcomeRewarded:
			if outcome.Reward == nil {
				return errs.New(errs.ErrInvalidState, "项目 %d 缺少奖励信息", projectID)
			}
			reward := calc.EvaluatorReward(*outcome.Reward, evaluation, project.Metadata.TokenInformation.Decimals)
			if err := tx.ledger.Mint(project.CtAsset(), evaluation.Evaluator, reward); err != nil {
				return err
			}
			evaluation.RewardedOrSlashed = &model.RewardOrSlash{Kind: model.OutcomeRewarded, Amount: reward}

		case model.OutcomeSlashed:
			plmcDecimals, err := e.plmcDecimals()
			if err != nil {
				return err
			}
			slash := decimal.Min(calc.SlashAmount(evaluation.OriginalPlmcBond, e.cfg.EvaluatorSlash, plmcDecimals), evaluation.CurrentPlmcBond)
			reason := ledger.HoldReason(ledger.ReasonEvaluation, projectID)
			if _, err := tx.ledger.TransferOnHold(model.NativeAsset, reason, evaluation.Evaluator, e.cfg.TreasuryAccount, slash, ledger.Exact); err != nil {
				return err
			}
			evaluation.CurrentPlmcBond = evaluation.CurrentPlmcBond.Sub(slash)
			evaluation.RewardedOrSlashed = &model.RewardOrSlash{Kind: model.OutcomeSlashed, Amount: slash}

		default:
			return errs.New(errs.ErrInvalidState, "项目 %d 的评估者没有奖励或罚没", projectID)
		}
		return tx.store.SaveEvaluation(evaluation)
	})
}

// EvaluationUnbond 解冻评估抵押，有奖惩时需先执行奖惩
func (e *Engine) EvaluationUnbond(ctx context.Context, projectID, evaluationID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		project, err := settlingProject(tx, projectID)
		if err != nil {
			return err
		}
		evaluation, err := tx.store.GetEvaluation(projectID, evaluationID)
		if err != nil {
			return err
		}
		kind := project.Details.EvaluationRound.EvaluatorsOutcome.Kind
		if kind != model.OutcomeUnchanged && evaluation.RewardedOrSlashed == nil {
			return errs.New(errs.ErrInvalidState, "评估 %d 需要先执行奖惩", evaluationID)
		}
		if !evaluation.CurrentPlmcBond.IsPositive() {
			return errs.New(errs.ErrInvalidState, "评估 %d 已解冻", evaluationID)
		}

		reason := ledger.HoldReason(ledger.ReasonEvaluation, projectID)
		if _, err := tx.ledger.Release(model.NativeAsset, reason, evaluation.Evaluator, evaluation.CurrentPlmcBond, ledger.Exact); err != nil {
			return err
		}
		evaluation.CurrentPlmcBond = decimal.Zero
		return tx.store.SaveEvaluation(evaluation)
	})
}

// MintCtForBid 给成交的出价发放贡献代币
func (e *Engine) MintCtForBid(ctx context.Context, projectID, bidID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		project, err := settlingProject(tx, projectID)
		if err != nil {
			return err
		}
		if err := ensureOutcome(project, model.SettlementSuccess); err != nil {
			return err
		}
		bid, err := tx.store.GetBid(projectID, bidID)
		if err != nil {
			return err
		}
		if !bid.Status.IsWinning() || bid.CtMinted {
			return errs.New(errs.ErrInvalidState, "出价 %d 不能发放代币", bidID)
		}

		if err := tx.ledger.Mint(project.CtAsset(), bid.Bidder, bid.FinalCtAmount); err != nil {
			return err
		}
		vesting, err := e.vesting(bid.PlmcBond, bid.Multiplier)
		if err != nil {
			return err
		}
		bid.CtMinted = true
		if bid.PlmcVestingInfo == nil {
			bid.PlmcVestingInfo = &vesting
		}
		return tx.store.SaveBid(bid)
	})
}

// MintCtForContribution 给购买记录发放贡献代币
func (e *Engine) MintCtForContribution(ctx context.Context, projectID, contributionID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		project, err := settlingProject(tx, projectID)
		if err != nil {
			return err
		}
		if err := ensureOutcome(project, model.SettlementSuccess); err != nil {
			return err
		}
		contribution, err := tx.store.GetContribution(projectID, contributionID)
		if err != nil {
			return err
		}
		if contribution.CtMinted {
			return errs.New(errs.ErrInvalidState, "购买记录 %d 已发放代币", contributionID)
		}

		if err := tx.ledger.Mint(project.CtAsset(), contribution.Contributor, contribution.CtAmount); err != nil {
			return err
		}
		vesting, err := e.vesting(contribution.PlmcBond, contribution.Multiplier)
		if err != nil {
			return err
		}
		contribution.CtMinted = true
		if contribution.PlmcVestingInfo == nil {
			contribution.PlmcVestingInfo = &vesting
		}
		return tx.store.SaveContribution(contribution)
	})
}

func (e *Engine) vesting(bond decimal.Decimal, multiplier uint8) (model.VestingInfo, error) {
	plmcDecimals, err := e.plmcDecimals()
	if err != nil {
		return model.VestingInfo{}, err
	}
	return calc.CalculateVesting(bond, multiplier, e.cfg.BlocksPerHour, plmcDecimals), nil
}

// unbondable 成功时需释放期结束，失败时立即可解冻
func unbondable(tx *txContext, project *model.Project, vesting *model.VestingInfo) error {
	if project.Details.SettlementOutcome == model.SettlementFailure {
		return nil
	}
	if vesting == nil {
		return errs.New(errs.ErrInvalidState, "需要先发放代币")
	}
	if tx.now < project.Details.FundingEndBlock+vesting.Duration {
		return errs.New(errs.ErrInvalidState, "释放期在区块 %d 结束", project.Details.FundingEndBlock+vesting.Duration)
	}
	return nil
}

// BidUnbond 解冻出价抵押
func (e *Engine) BidUnbond(ctx context.Context, projectID, bidID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		project, err := settlingProject(tx, projectID)
		if err != nil {
			return err
		}
		bid, err := tx.store.GetBid(projectID, bidID)
		if err != nil {
			return err
		}
		if !bid.PlmcBond.IsPositive() {
			return errs.New(errs.ErrInvalidState, "出价 %d 没有抵押", bidID)
		}
		if err := unbondable(tx, project, bid.PlmcVestingInfo); err != nil {
			return err
		}

		reason := ledger.HoldReason(ledger.ReasonParticipation, projectID)
		if _, err := tx.ledger.Release(model.NativeAsset, reason, bid.Bidder, bid.PlmcBond, ledger.Exact); err != nil {
			return err
		}
		bid.PlmcBond = decimal.Zero
		return tx.store.SaveBid(bid)
	})
}

// ContributionUnbond 解冻购买抵押
func (e *Engine) ContributionUnbond(ctx context.Context, projectID, contributionID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		project, err := settlingProject(tx, projectID)
		if err != nil {
			return err
		}
		contribution, err := tx.store.GetContribution(projectID, contributionID)
		if err != nil {
			return err
		}
		if !contribution.PlmcBond.IsPositive() {
			return errs.New(errs.ErrInvalidState, "购买记录 %d 没有抵押", contributionID)
		}
		if err := unbondable(tx, project, contribution.PlmcVestingInfo); err != nil {
			return err
		}

		reason := ledger.HoldReason(ledger.ReasonParticipation, projectID)
		if _, err := tx.ledger.Release(model.NativeAsset, reason, contribution.Contributor, contribution.PlmcBond, ledger.Exact); err != nil {
			return err
		}
		contribution.PlmcBond = decimal.Zero
		return tx.store.SaveContribution(contribution)
	})
}

// ReleaseBidFunds 募资失败时退还出价锁定的资产
func (e *Engine) ReleaseBidFunds(ctx context.Context, projectID, bidID uint32) error {
	return e.moveBidFunds(ctx, projectID, bidID, model.SettlementFailure)
}

// PayoutBidFunds 募资成功时将出价资产转给发行方
func (e *Engine) PayoutBidFunds(ctx context.Context, projectID, bidID uint32) error {
	return e.moveBidFunds(ctx, projectID, bidID, model.SettlementSuccess)
}

func (e *Engine) moveBidFunds(ctx context.Context, projectID, bidID uint32, outcome model.SettlementOutcome) error {
	return e.execute(ctx, func(tx *txContext) error {
		project, err := settlingProject(tx, projectID)
		if err != nil {
			return err
		}
		if err := ensureOutcome(project, outcome); err != nil {
			return err
		}
		bid, err := tx.store.GetBid(projectID, bidID)
		if err != nil {
			return err
		}
		if bid.FundsReleased || !bid.FundingAssetAmountLocked.IsPositive() {
			return errs.New(errs.ErrInvalidState, "出价 %d 没有待处理的资产", bidID)
		}

		to := bid.Bidder
		if outcome == model.SettlementSuccess {
			to = project.Metadata.FundingDestinationAccount
		}
		if err := tx.ledger.Transfer(string(bid.FundingAsset), project.FundAccount(), to, bid.FundingAssetAmountLocked, ledger.Expendable); err != nil {
			return err
		}
		bid.FundsReleased = true
		return tx.store.SaveBid(bid)
	})
}

// ReleaseContributionFunds 募资失败时退还购买锁定的资产
func (e *Engine) ReleaseContributionFunds(ctx context.Context, projectID, contributionID uint32) error {
	return e.moveContributionFunds(ctx, projectID, contributionID, model.SettlementFailure)
}

// PayoutContributionFunds 募资成功时将购买资产转给发行方
func (e *Engine) PayoutContributionFunds(ctx context.Context, projectID, contributionID uint32) error {
	return e.moveContributionFunds(ctx, projectID, contributionID, model.SettlementSuccess)
}

func (e *Engine) moveContributionFunds(ctx context.Context, projectID, contributionID uint32, outcome model.SettlementOutcome) error {
	return e.execute(ctx, func(tx *txContext) error {
		project, err := settlingProject(tx, projectID)
		if err != nil {
			return err
		}
		if err := ensureOutcome(project, outcome); err != nil {
			return err
		}
		contribution, err := tx.store.GetContribution(projectID, contributionID)
		if err != nil {
			return err
		}
		if contribution.FundsReleased || !contribution.FundingAssetAmount.IsPositive() {
			return errs.New(errs.ErrInvalidState, "购买记录 %d 没有待处理的资产", contributionID)
		}

		to := contribution.Contributor
		if outcome == model.SettlementSuccess {
			to = project.Metadata.FundingDestinationAccount
		}
		if err := tx.ledger.Transfer(string(contribution.FundingAsset), project.FundAccount(), to, contribution.FundingAssetAmount, ledger.Expendable); err != nil {
			return err
		}
		contribution.FundsReleased = true
		return tx.store.SaveContribution(contribution)
	})
}
