package logic

import (
	"context"
	"errors"
	"strconv"

	"github.com/blues/launchpad/internal/auction"
	"github.com/blues/launchpad/internal/calc"
	"github.com/blues/launchpad/internal/chain"
	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/ledger"
	"github.com/blues/launchpad/internal/logger"
	"github.com/blues/launchpad/internal/metrics"
	"github.com/blues/launchpad/internal/model"
	"github.com/blues/launchpad/internal/store"
	"github.com/shopspring/decimal"
)

// StartEnglishAuction 发行方或系统账户在准备期内开启英式拍卖
func (e *Engine) StartEnglishAuction(ctx context.Context, caller string, projectID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		return e.startEnglishAuction(tx, caller, projectID)
	})
}

func (e *Engine) startEnglishAuction(tx *txContext, caller string, projectID uint32) error {
	project, err := tx.store.GetProject(projectID)
	if err != nil {
		return err
	}
	if caller != project.Issuer && caller != e.cfg.SystemAccount {
		return errs.New(errs.ErrUnauthorized, "只有发行方或系统账户可以开启拍卖")
	}
	if err := ensureStatus(project, model.ProjectStatusAuctionInitializePeriod); err != nil {
		return err
	}
	if tx.now < project.Details.Rounds.AuctionInitialize.Start {
		return errs.New(errs.ErrInvalidState, "项目 %d 的拍卖准备期尚未开始", projectID)
	}
	if err := e.removeUpdate(tx, projectID); err != nil {
		return err
	}

	round := model.BlockRange{Start: tx.now + 1, End: tx.now + e.cfg.EnglishAuctionDuration}
	project.Details.Rounds.English = round
	e.setStatus(tx, project, model.ProjectStatusAuctionEnglish)

	bucket := auction.NewBucket(projectID, project.Metadata.AuctionAllocationSize, project.Metadata.MinimumPrice)
	if err := tx.store.SaveBucket(&bucket); err != nil {
		return err
	}
	if err := e.insertUpdate(tx, round.End+1, projectID, model.UpdateCandleAuctionStart, ""); err != nil {
		return err
	}
	return tx.store.SaveProject(project)
}

func (e *Engine) startCandleAuction(tx *txContext, projectID uint32) error {
	project, err := tx.store.GetProject(projectID)
	if err != nil {
		return err
	}
	if err := ensureStatus(project, model.ProjectStatusAuctionEnglish); err != nil {
		return err
	}
	if tx.now <= project.Details.Rounds.English.End {
		return errs.New(errs.ErrInvalidState, "项目 %d 的英式拍卖尚未结束", projectID)
	}
	if err := e.removeUpdate(tx, projectID); err != nil {
		return err
	}

	round := model.BlockRange{Start: tx.now + 1, End: tx.now + e.cfg.CandleAuctionDuration}
	project.Details.Rounds.Candle = round
	e.setStatus(tx, project, model.ProjectStatusAuctionCandle)

	if err := e.insertUpdate(tx, round.End+1, projectID, model.UpdateCommunityFundingStart, ""); err != nil {
		return err
	}
	return tx.store.SaveProject(project)
}

// Bid 拍卖出价，按价格档位拆分为多条出价记录，返回新记录的ID
func (e *Engine) Bid(ctx context.Context, caller model.Caller, projectID uint32, ctAmount decimal.Decimal, multiplier uint8, asset model.AcceptedFundingAsset) ([]uint32, error) {
	var bidIDs []uint32
	err := e.execute(ctx, func(tx *txContext) error {
		project, err := tx.store.GetProject(projectID)
		if err != nil {
			return err
		}
		if !project.Details.Status.IsAuction() {
			return errs.New(errs.ErrInvalidState, "项目 %d 不在拍卖轮", projectID)
		}
		if err := e.ensureNotIssuer(project, caller.Account); err != nil {
			return err
		}
		if !ctAmount.IsPositive() {
			return errs.New(errs.ErrValidity, "出价数量必须大于零")
		}
		if !project.Metadata.AcceptsAsset(asset) {
			return errs.New(errs.ErrValidity, "项目 %d 不接受 %s", projectID, asset)
		}
		if ctAmount.GreaterThan(project.Metadata.AuctionAllocationSize) {
			return errs.New(errs.ErrValidity, "出价数量 %s 超过拍卖分配量", ctAmount)
		}
		ticketSize, ok := project.Metadata.BiddingTicketSizes.For(caller.InvestorType)
		if !ok {
			return errs.New(errs.ErrUnauthorized, "%s 投资者不能参与拍卖", caller.InvestorType)
		}
		if err := calc.ValidateMultiplier(caller.InvestorType, multiplier); err != nil {
			return err
		}

		bucket, err := tx.store.GetBucket(projectID)
		if err != nil {
			return err
		}
		slices, next := auction.Split(*bucket, ctAmount)

		ticket := decimal.Zero
		for _, slice := range slices {
			ticket = ticket.Add(slice.Amount.Mul(slice.Price))
		}
		existing, err := tx.store.ListBids(projectID, "")
		if err != nil {
			return err
		}
		didTotal := decimal.Zero
		for _, bid := range existing {
			if bid.Did == caller.Did {
				didTotal = didTotal.Add(bid.OriginalTicket())
			}
		}
		if err := checkTicket(ticketSize, ticket, didTotal); err != nil {
			return err
		}

		pricing, err := e.participationPricing(asset)
		if err != nil {
			return err
		}

		for _, slice := range slices {
			id, err := e.placeBid(tx, project, caller, slice, multiplier, asset, pricing)
			if err != nil {
				return err
			}
			bidIDs = append(bidIDs, id)
		}
		return tx.store.SaveBucket(&next)
	})
	if err != nil {
		return nil, err
	}
	return bidIDs, nil
}

// pricing 一次参与使用的价格和精度
type pricing struct {
	plmcPrice     decimal.Decimal
	plmcDecimals  uint8
	assetPrice    decimal.Decimal
	assetDecimals uint8
}

func (e *Engine) participationPricing(asset model.AcceptedFundingAsset) (pricing, error) {
	var p pricing
	var err error
	if p.plmcPrice, err = e.oracle.Price(model.NativeAsset); err != nil {
		return p, err
	}
	if p.plmcDecimals, err = e.plmcDecimals(); err != nil {
		return p, err
	}
	if p.assetPrice, err = e.oracle.Price(string(asset)); err != nil {
		return p, err
	}
	if p.assetDecimals, err = e.oracle.Decimals(string(asset)); err != nil {
		return p, err
	}
	return p, nil
}

// bondAndLock 计算 ticket 对应的抵押和锁定资产
func (p pricing) bondAndLock(ticket decimal.Decimal, multiplier uint8) (decimal.Decimal, decimal.Decimal, error) {
	bond, err := calc.PlmcBond(ticket, multiplier, p.plmcPrice, p.plmcDecimals)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	lock, err := calc.FundingAssetAmount(ticket, p.assetPrice, p.assetDecimals)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return bond, lock, nil
}

func (e *Engine) placeBid(tx *txContext, project *model.Project, caller model.Caller, slice auction.Slice, multiplier uint8, asset model.AcceptedFundingAsset, p pricing) (uint32, error) {
	reason := ledger.HoldReason(ledger.ReasonParticipation, project.ID)
	bond, lock, err := p.bondAndLock(slice.Amount.Mul(slice.Price), multiplier)
	if err != nil {
		return 0, err
	}

	mine, err := tx.store.ListBids(project.ID, caller.Account)
	if err != nil {
		return 0, err
	}
	if len(mine) >= e.cfg.MaxBidsPerUser {
		if err := e.evictBid(tx, project, mine[0]); err != nil {
			return 0, err
		}
	}
	all, err := tx.store.ListBids(project.ID, "")
	if err != nil {
		return 0, err
	}
	if len(all) >= e.cfg.MaxBidsPerProject {
		return 0, errs.New(errs.ErrCapacityExceeded, "项目 %d 的出价数量已达上限 %d", project.ID, e.cfg.MaxBidsPerProject)
	}

	if _, err := tx.ledger.Hold(model.NativeAsset, reason, caller.Account, bond, ledger.Exact); err != nil {
		return 0, err
	}
	if err := tx.ledger.Transfer(string(asset), caller.Account, project.FundAccount(), lock, ledger.Preserve); err != nil {
		return 0, err
	}

	id, err := tx.store.NextID(store.CounterBidID)
	if err != nil {
		return 0, err
	}
	bid := &model.Bid{
		ProjectID:                project.ID,
		ID:                       uint32(id),
		Bidder:                   caller.Account,
		Did:                      caller.Did,
		InvestorType:             caller.InvestorType,
		Status:                   model.BidStatus{Kind: model.BidStatusUnknown, Amount: decimal.Zero},
		OriginalCtAmount:         slice.Amount,
		OriginalCtUsdPrice:       slice.Price,
		FinalCtAmount:            slice.Amount,
		FinalCtUsdPrice:          slice.Price,
		FundingAsset:             asset,
		FundingAssetAmountLocked: lock,
		Multiplier:               multiplier,
		PlmcBond:                 bond,
		When:                     tx.now,
		CtMigrationStatus:        model.MigrationStatus{State: model.MigrationNotStarted},
	}
	if err := tx.store.SaveBid(bid); err != nil {
		return 0, err
	}
	tx.afterCommit(func() {
		metrics.Participations.WithLabelValues(string(model.ParticipationBid)).Inc()
	})
	return bid.ID, nil
}

// evictBid 移除出价并全额退还抵押和锁定资产
func (e *Engine) evictBid(tx *txContext, project *model.Project, bid *model.Bid) error {
	reason := ledger.HoldReason(ledger.ReasonParticipation, project.ID)
	if _, err := tx.ledger.Release(model.NativeAsset, reason, bid.Bidder, bid.PlmcBond, ledger.Exact); err != nil {
		return err
	}
	if err := tx.ledger.Transfer(string(bid.FundingAsset), project.FundAccount(), bid.Bidder, bid.FundingAssetAmountLocked, ledger.Expendable); err != nil {
		return err
	}
	if err := tx.store.DeleteBid(project.ID, bid.ID); err != nil {
		return err
	}
	projectID, bidID := project.ID, bid.ID
	tx.afterCommit(func() {
		metrics.Evictions.WithLabelValues(string(model.ParticipationBid)).Inc()
		logger.Info("Bid %d of project %d evicted", bidID, projectID)
	})
	return nil
}

func (e *Engine) startCommunityFunding(tx *txContext, projectID uint32) error {
	project, err := tx.store.GetProject(projectID)
	if err != nil {
		return err
	}
	if err := ensureStatus(project, model.ProjectStatusAuctionCandle); err != nil {
		return err
	}
	candle := project.Details.Rounds.Candle
	if tx.now <= candle.End {
		return errs.New(errs.ErrInvalidState, "项目 %d 的蜡烛拍卖尚未结束", projectID)
	}
	if err := e.removeUpdate(tx, projectID); err != nil {
		return err
	}

	nonce, err := tx.store.NextID(store.CounterRandomNonce)
	if err != nil {
		return err
	}
	hash, err := e.random.Random(tx.ctx, chain.Subject("candle", nonce))
	if err != nil {
		return err
	}
	end := candleEnding(candle, chain.Uint64(hash))
	project.Details.RandomCandleEnding = &end

	bids, err := tx.store.ListBids(projectID, "")
	if err != nil {
		return err
	}
	bucket, err := tx.store.GetBucket(projectID)
	if err != nil {
		return err
	}

	result, err := auction.Clear(bids, project.Details.RemainingAuctionTokens, *bucket, end, e.repricer())
	noWinners := errors.Is(err, auction.ErrNoBidsFound)
	if err != nil && !noWinners {
		return err
	}

	reason := ledger.HoldReason(ledger.ReasonParticipation, projectID)
	for _, refund := range result.Refunds {
		if refund.Plmc.IsPositive() {
			if _, err := tx.ledger.Release(model.NativeAsset, reason, refund.Bidder, refund.Plmc, ledger.Exact); err != nil {
				return err
			}
		}
		if refund.Asset.IsPositive() {
			if err := tx.ledger.Transfer(string(refund.FundingAsset), project.FundAccount(), refund.Bidder, refund.Asset, ledger.Expendable); err != nil {
				return err
			}
		}
	}
	for _, bid := range result.Bids {
		if err := tx.store.SaveBid(bid); err != nil {
			return err
		}
	}

	if noWinners {
		e.setStatus(tx, project, model.ProjectStatusFundingFailed)
		if err := e.insertUpdate(tx, tx.now+1, projectID, model.UpdateFundingEnd, ""); err != nil {
			return err
		}
		return tx.store.SaveProject(project)
	}

	project.Details.WeightedAveragePrice = decimal.NewNullDecimal(result.WeightedAveragePrice)
	project.Details.RemainingAuctionTokens = project.Details.RemainingAuctionTokens.Sub(result.SoldAmount)
	project.Details.FundingReached = project.Details.FundingReached.Add(result.FundingReached)

	round := model.BlockRange{Start: tx.now + 1, End: tx.now + e.cfg.CommunityFundingDuration}
	project.Details.Rounds.Community = round
	e.setStatus(tx, project, model.ProjectStatusCommunityRound)
	if err := e.insertUpdate(tx, round.End+1, projectID, model.UpdateRemainderFundingStart, ""); err != nil {
		return err
	}

	wap, _ := result.WeightedAveragePrice.Float64()
	tx.afterCommit(func() {
		metrics.AuctionClearingPrice.WithLabelValues(strconv.FormatUint(uint64(projectID), 10)).Set(wap)
		logger.Info("Project %d auction cleared: wap=%s sold=%s", projectID, result.WeightedAveragePrice, result.SoldAmount)
	})
	return tx.store.SaveProject(project)
}

// repricer 按当前价格重新计算出价的抵押和锁定资产
func (e *Engine) repricer() auction.Repricer {
	return func(bid *model.Bid, ticket decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
		p, err := e.participationPricing(bid.FundingAsset)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		return p.bondAndLock(ticket, bid.Multiplier)
	}
}

// candleEnding 在蜡烛拍卖区间内选出实际结束区块，区间足够时严格位于起止之间
func candleEnding(candle model.BlockRange, random uint64) uint64 {
	if candle.End < candle.Start+2 {
		return candle.Start
	}
	return candle.Start + 1 + random%(candle.End-candle.Start-1)
}
