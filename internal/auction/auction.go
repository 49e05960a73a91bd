package auction

import (
	"sort"

	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/model"
	"github.com/shopspring/decimal"
)

const wapPrecision = 18

var tranchePercent = decimal.RequireFromString("0.1")

// ErrNoBidsFound 没有成交的出价
var ErrNoBidsFound = errs.New(errs.ErrNotFound, "没有成交的出价")

// NewBucket 根据拍卖分配量和最低价创建价格阶梯，第一档覆盖全部分配量
func NewBucket(projectID uint32, allocation, minimumPrice decimal.Decimal) model.Bucket {
	return model.Bucket{
		ProjectID:    projectID,
		AmountLeft:   allocation,
		CurrentPrice: minimumPrice,
		InitialPrice: minimumPrice,
		DeltaPrice:   minimumPrice.Mul(tranchePercent),
		DeltaAmount:  allocation.Mul(tranchePercent),
	}
}

// Slice 按价格档位拆分后的一笔出价
type Slice struct {
	Amount decimal.Decimal
	Price  decimal.Decimal
}

// Split 将 amount 按档位拆分，返回各档成交和推进后的档位
func Split(bucket model.Bucket, amount decimal.Decimal) ([]Slice, model.Bucket) {
	slices := make([]Slice, 0, 1)
	remaining := amount
	for remaining.IsPositive() {
		sliceAmount := decimal.Min(remaining, bucket.AmountLeft)
		slices = append(slices, Slice{Amount: sliceAmount, Price: bucket.CurrentPrice})
		bucket = bucket.Update(sliceAmount)
		remaining = remaining.Sub(sliceAmount)
	}
	return slices, bucket
}

// Repricer 按新的USD金额重新计算出价的抵押和锁定资产
type Repricer func(bid *model.Bid, ticket decimal.Decimal) (plmcBond, fundingAsset decimal.Decimal, err error)

// Refund 清算时应退还给出价人的数量
type Refund struct {
	BidID        uint32
	Bidder       string
	FundingAsset model.AcceptedFundingAsset
	Plmc         decimal.Decimal
	Asset        decimal.Decimal
}

// Result 清算结果
type Result struct {
	Bids                 []*model.Bid
	Refunds              []*Refund
	WeightedAveragePrice decimal.Decimal
	SoldAmount           decimal.Decimal
	FundingReached       decimal.Decimal
}

type refundBook struct {
	order []*Refund
	byID  map[uint32]*Refund
}

func (r *refundBook) add(bid *model.Bid, plmc, asset decimal.Decimal) {
	if !plmc.IsPositive() && !asset.IsPositive() {
		return
	}
	refund, ok := r.byID[bid.ID]
	if !ok {
		refund = &Refund{BidID: bid.ID, Bidder: bid.Bidder, FundingAsset: bid.FundingAsset, Plmc: decimal.Zero, Asset: decimal.Zero}
		r.byID[bid.ID] = refund
		r.order = append(r.order, refund)
	}
	refund.Plmc = refund.Plmc.Add(plmc)
	refund.Asset = refund.Asset.Add(asset)
}

// Clear 计算拍卖的统一成交价
//
// 出价按原始价格降序、ID升序处理：晚于随机结束区块或分配量用尽的出价被拒绝并全额退还，
// 放不下的出价部分成交并退还多余部分。成交价为成交出价原始价格按代币数量的加权平均，
// 价格阶梯未离开第一档时直接取最低价。高于成交价的出价随后按成交价重新计价并退还差额。
// 没有成交的出价时仍返回拒绝和退款结果，同时返回 ErrNoBidsFound。
func Clear(bids []*model.Bid, allocation decimal.Decimal, bucket model.Bucket, endBlock uint64, reprice Repricer) (*Result, error) {
	sorted := append([]*model.Bid(nil), bids...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].OriginalCtUsdPrice.Cmp(sorted[j].OriginalCtUsdPrice); c != 0 {
			return c > 0
		}
		return sorted[i].ID < sorted[j].ID
	})

	refunds := &refundBook{byID: make(map[uint32]*Refund)}
	buyable := allocation
	winners := make([]*model.Bid, 0, len(sorted))

	for _, bid := range sorted {
		switch {
		case bid.When > endBlock:
			reject(bid, model.RejectionAfterCandleEnd, refunds)
		case !buyable.IsPositive():
			reject(bid, model.RejectionNoTokensLeft, refunds)
		case bid.OriginalCtAmount.LessThanOrEqual(buyable):
			bid.Status = model.BidStatus{Kind: model.BidStatusAccepted, Amount: bid.OriginalCtAmount}
			bid.FinalCtAmount = bid.OriginalCtAmount
			bid.FinalCtUsdPrice = bid.OriginalCtUsdPrice
			buyable = buyable.Sub(bid.OriginalCtAmount)
			winners = append(winners, bid)
		default:
			ticket := buyable.Mul(bid.OriginalCtUsdPrice)
			plmc, asset, err := reprice(bid, ticket)
			if err != nil {
				return nil, err
			}
			refunds.add(bid, nonNegative(bid.PlmcBond.Sub(plmc)), nonNegative(bid.FundingAssetAmountLocked.Sub(asset)))

			bid.Status = model.BidStatus{Kind: model.BidStatusPartiallyAccepted, Amount: buyable}
			bid.FinalCtAmount = buyable
			bid.FinalCtUsdPrice = bid.OriginalCtUsdPrice
			bid.PlmcBond = decimal.Min(bid.PlmcBond, plmc)
			bid.FundingAssetAmountLocked = decimal.Min(bid.FundingAssetAmountLocked, asset)
			buyable = decimal.Zero
			winners = append(winners, bid)
		}
	}

	if len(winners) == 0 {
		return &Result{
			Bids:                 sorted,
			Refunds:              refunds.order,
			WeightedAveragePrice: decimal.Zero,
			SoldAmount:           decimal.Zero,
			FundingReached:       decimal.Zero,
		}, ErrNoBidsFound
	}

	wap, err := weightedAveragePrice(winners, bucket)
	if err != nil {
		return nil, err
	}

	sold := decimal.Zero
	fundingReached := decimal.Zero
	for _, bid := range winners {
		if bid.OriginalCtUsdPrice.GreaterThan(wap) {
			ticket := bid.FinalCtAmount.Mul(wap)
			plmc, asset, err := reprice(bid, ticket)
			if err != nil {
				return nil, err
			}
			refunds.add(bid, nonNegative(bid.PlmcBond.Sub(plmc)), nonNegative(bid.FundingAssetAmountLocked.Sub(asset)))

			bid.FinalCtUsdPrice = wap
			bid.PlmcBond = decimal.Min(bid.PlmcBond, plmc)
			bid.FundingAssetAmountLocked = decimal.Min(bid.FundingAssetAmountLocked, asset)
		}
		sold = sold.Add(bid.FinalCtAmount)
		fundingReached = fundingReached.Add(bid.FinalCtAmount.Mul(bid.FinalCtUsdPrice))
	}

	return &Result{
		Bids:                 sorted,
		Refunds:              refunds.order,
		WeightedAveragePrice: wap,
		SoldAmount:           sold,
		FundingReached:       fundingReached,
	}, nil
}

func reject(bid *model.Bid, reason model.RejectionReason, refunds *refundBook) {
	refunds.add(bid, bid.PlmcBond, bid.FundingAssetAmountLocked)
	bid.Status = model.BidStatus{Kind: model.BidStatusRejected, Amount: decimal.Zero, Reason: reason}
	bid.FinalCtAmount = decimal.Zero
	bid.FinalCtUsdPrice = bid.OriginalCtUsdPrice
	bid.PlmcBond = decimal.Zero
	bid.FundingAssetAmountLocked = decimal.Zero
}

func weightedAveragePrice(winners []*model.Bid, bucket model.Bucket) (decimal.Decimal, error) {
	if bucket.IsFirst() {
		return bucket.InitialPrice, nil
	}

	totalCt := decimal.Zero
	weighted := decimal.Zero
	for _, bid := range winners {
		totalCt = totalCt.Add(bid.FinalCtAmount)
		weighted = weighted.Add(bid.FinalCtAmount.Mul(bid.OriginalCtUsdPrice))
	}
	if !totalCt.IsPositive() {
		return decimal.Zero, errs.New(errs.ErrBadMath, "成交数量为零")
	}
	return weighted.DivRound(totalCt, wapPrecision), nil
}

func nonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
