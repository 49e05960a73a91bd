package logic

import (
	"context"

	"github.com/blues/launchpad/internal/calc"
	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/ledger"
	"github.com/blues/launchpad/internal/logger"
	"github.com/blues/launchpad/internal/metrics"
	"github.com/blues/launchpad/internal/model"
	"github.com/blues/launchpad/internal/store"
	"github.com/shopspring/decimal"
)

// Contribute 社区轮或剩余轮按成交价购买，超出剩余量的部分不购买
func (e *Engine) Contribute(ctx context.Context, caller model.Caller, projectID uint32, ctAmount decimal.Decimal, multiplier uint8, asset model.AcceptedFundingAsset) (uint32, error) {
	var contributionID uint32
	err := e.execute(ctx, func(tx *txContext) error {
		project, err := tx.store.GetProject(projectID)
		if err != nil {
			return err
		}
		if err := ensureStatus(project, model.ProjectStatusCommunityRound, model.ProjectStatusRemainderRound); err != nil {
			return err
		}
		if err := e.ensureNotIssuer(project, caller.Account); err != nil {
			return err
		}
		if !ctAmount.IsPositive() {
			return errs.New(errs.ErrValidity, "购买数量必须大于零")
		}
		if !project.Metadata.AcceptsAsset(asset) {
			return errs.New(errs.ErrValidity, "项目 %d 不接受 %s", projectID, asset)
		}
		wap := project.Details.WeightedAveragePrice
		if !wap.Valid {
			return errs.New(errs.ErrInvalidState, "项目 %d 没有成交价", projectID)
		}
		remaining := project.Details.RemainingContributionTokens()
		if !remaining.IsPositive() {
			return errs.New(errs.ErrInvalidState, "项目 %d 已售罄", projectID)
		}

		ticketSize, ok := project.Metadata.ContributingTicketSizes.For(caller.InvestorType)
		if !ok {
			return errs.New(errs.ErrValidity, "未知的投资者类别: %s", caller.InvestorType)
		}
		if err := calc.ValidateMultiplier(caller.InvestorType, multiplier); err != nil {
			return err
		}

		buyable := decimal.Min(ctAmount, remaining)
		ticket := buyable.Mul(wap.Decimal)

		existing, err := tx.store.ListContributions(projectID, "")
		if err != nil {
			return err
		}
		didTotal := decimal.Zero
		for _, contribution := range existing {
			if contribution.Did == caller.Did {
				didTotal = didTotal.Add(contribution.UsdContributionAmount)
			}
		}
		if err := checkTicket(ticketSize, ticket, didTotal); err != nil {
			return err
		}

		p, err := e.participationPricing(asset)
		if err != nil {
			return err
		}
		bond, lock, err := p.bondAndLock(ticket, multiplier)
		if err != nil {
			return err
		}

		mine, err := tx.store.ListContributions(projectID, caller.Account)
		if err != nil {
			return err
		}
		if len(mine) >= e.cfg.MaxContributionsPerUser {
			if err := e.evictContribution(tx, project, mine[0]); err != nil {
				return err
			}
		}
		all, err := tx.store.ListContributions(projectID, "")
		if err != nil {
			return err
		}
		if len(all) >= e.cfg.MaxContributionsPerProject {
			return errs.New(errs.ErrCapacityExceeded, "项目 %d 的购买数量已达上限 %d", projectID, e.cfg.MaxContributionsPerProject)
		}

		reason := ledger.HoldReason(ledger.ReasonParticipation, projectID)
		if _, err := tx.ledger.Hold(model.NativeAsset, reason, caller.Account, bond, ledger.Exact); err != nil {
			return err
		}
		if err := tx.ledger.Transfer(string(asset), caller.Account, project.FundAccount(), lock, ledger.Preserve); err != nil {
			return err
		}

		id, err := tx.store.NextID(store.CounterContributionID)
		if err != nil {
			return err
		}
		contributionID = uint32(id)
		contribution := &model.Contribution{
			ProjectID:             projectID,
			ID:                    contributionID,
			Contributor:           caller.Account,
			Did:                   caller.Did,
			InvestorType:          caller.InvestorType,
			CtAmount:              buyable,
			UsdContributionAmount: ticket,
			Multiplier:            multiplier,
			FundingAsset:          asset,
			FundingAssetAmount:    lock,
			PlmcBond:              bond,
			When:                  tx.now,
			CtMigrationStatus:     model.MigrationStatus{State: model.MigrationNotStarted},
		}
		if err := tx.store.SaveContribution(contribution); err != nil {
			return err
		}

		// 先消耗拍卖剩余量，再消耗社区分配量
		fromAuction := decimal.Min(buyable, project.Details.RemainingAuctionTokens)
		project.Details.RemainingAuctionTokens = project.Details.RemainingAuctionTokens.Sub(fromAuction)
		project.Details.RemainingCommunityTokens = project.Details.RemainingCommunityTokens.Sub(buyable.Sub(fromAuction))
		project.Details.FundingReached = project.Details.FundingReached.Add(ticket)

		if !project.Details.RemainingContributionTokens().IsPositive() {
			if err := e.removeUpdate(tx, projectID); err != nil {
				return err
			}
			if err := e.insertUpdate(tx, tx.now+1, projectID, model.UpdateFundingEnd, ""); err != nil {
				return err
			}
			tx.afterCommit(func() {
				logger.Info("Project %d sold out, funding ends next block", projectID)
			})
		}
		tx.afterCommit(func() {
			metrics.Participations.WithLabelValues(string(model.ParticipationContribution)).Inc()
		})
		return tx.store.SaveProject(project)
	})
	if err != nil {
		return 0, err
	}
	return contributionID, nil
}

// evictContribution 移除购买记录并全额退还，已售出的代币不回到剩余量
func (e *Engine) evictContribution(tx *txContext, project *model.Project, contribution *model.Contribution) error {
	reason := ledger.HoldReason(ledger.ReasonParticipation, project.ID)
	if _, err := tx.ledger.Release(model.NativeAsset, reason, contribution.Contributor, contribution.PlmcBond, ledger.Exact); err != nil {
		return err
	}
	if err := tx.ledger.Transfer(string(contribution.FundingAsset), project.FundAccount(), contribution.Contributor, contribution.FundingAssetAmount, ledger.Expendable); err != nil {
		return err
	}
	project.Details.FundingReached = project.Details.FundingReached.Sub(contribution.UsdContributionAmount)
	if err := tx.store.DeleteContribution(project.ID, contribution.ID); err != nil {
		return err
	}
	tx.afterCommit(func() {
		metrics.Evictions.WithLabelValues(string(model.ParticipationContribution)).Inc()
	})
	return nil
}

func (e *Engine) startRemainderFunding(tx *txContext, projectID uint32) error {
	project, err := tx.store.GetProject(projectID)
	if err != nil {
		return err
	}
	if err := ensureStatus(project, model.ProjectStatusCommunityRound); err != nil {
		return err
	}
	if tx.now <= project.Details.Rounds.Community.End {
		return errs.New(errs.ErrInvalidState, "项目 %d 的社区轮尚未结束", projectID)
	}
	if err := e.removeUpdate(tx, projectID); err != nil {
		return err
	}

	round := model.BlockRange{Start: tx.now + 1, End: tx.now + e.cfg.RemainderFundingDuration}
	project.Details.Rounds.Remainder = round
	e.setStatus(tx, project, model.ProjectStatusRemainderRound)

	if err := e.insertUpdate(tx, round.End+1, projectID, model.UpdateFundingEnd, ""); err != nil {
		return err
	}
	return tx.store.SaveProject(project)
}
