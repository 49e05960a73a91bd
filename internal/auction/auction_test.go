package auction

import (
	"errors"
	"testing"

	"github.com/blues/launchpad/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// oneToOne 抵押和锁定资产都等于USD金额
func oneToOne(_ *model.Bid, ticket decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	return ticket, ticket, nil
}

type order struct {
	bidder string
	amount string
	when   uint64
}

func newBids(t *testing.T, bucket model.Bucket, orders ...order) ([]*model.Bid, model.Bucket) {
	t.Helper()
	bids := make([]*model.Bid, 0)
	for _, o := range orders {
		var slices []Slice
		slices, bucket = Split(bucket, d(o.amount))
		for _, slice := range slices {
			ticket := slice.Amount.Mul(slice.Price)
			bids = append(bids, &model.Bid{
				ID:                       uint32(len(bids)),
				Bidder:                   o.bidder,
				OriginalCtAmount:         slice.Amount,
				OriginalCtUsdPrice:       slice.Price,
				FinalCtAmount:            slice.Amount,
				FinalCtUsdPrice:          slice.Price,
				FundingAsset:             model.FundingAssetUSDT,
				FundingAssetAmountLocked: ticket,
				PlmcBond:                 ticket,
				Multiplier:               1,
				When:                     o.when,
			})
		}
	}
	return bids, bucket
}

func TestNewBucket(t *testing.T) {
	bucket := NewBucket(1, d("100000"), d("10"))
	assert.True(t, bucket.AmountLeft.Equal(d("100000")))
	assert.True(t, bucket.DeltaAmount.Equal(d("10000")))
	assert.True(t, bucket.DeltaPrice.Equal(d("1")))
	assert.True(t, bucket.IsFirst())
}

func TestSplitAdvancesTranches(t *testing.T) {
	bucket := NewBucket(1, d("100000"), d("1"))

	slices, bucket := Split(bucket, d("125000"))
	require.Len(t, slices, 3)
	assert.True(t, slices[0].Amount.Equal(d("100000")))
	assert.True(t, slices[0].Price.Equal(d("1")))
	assert.True(t, slices[1].Amount.Equal(d("10000")))
	assert.True(t, slices[1].Price.Equal(d("1.1")))
	assert.True(t, slices[2].Amount.Equal(d("5000")))
	assert.True(t, slices[2].Price.Equal(d("1.2")))

	assert.True(t, bucket.CurrentPrice.Equal(d("1.2")))
	assert.True(t, bucket.AmountLeft.Equal(d("5000")))
	assert.False(t, bucket.IsFirst())
}

func TestClearPartiallyAcceptsLaterBidder(t *testing.T) {
	bucket := NewBucket(1, d("100000"), d("1"))
	bids, bucket := newBids(t, bucket,
		order{"alice", "60000", 10},
		order{"bob", "50000", 11},
	)
	require.Len(t, bids, 3)

	result, err := Clear(bids, d("100000"), bucket, 100, oneToOne)
	require.NoError(t, err)

	byID := make(map[uint32]*model.Bid)
	for _, bid := range result.Bids {
		byID[bid.ID] = bid
	}

	assert.Equal(t, model.BidStatusAccepted, byID[0].Status.Kind)
	assert.True(t, byID[0].FinalCtAmount.Equal(d("60000")))

	assert.Equal(t, model.BidStatusPartiallyAccepted, byID[1].Status.Kind)
	assert.True(t, byID[1].FinalCtAmount.Equal(d("30000")))
	assert.Equal(t, model.BidStatusAccepted, byID[2].Status.Kind)

	bobTotal := byID[1].FinalCtAmount.Add(byID[2].FinalCtAmount)
	assert.True(t, bobTotal.Equal(d("40000")))
	assert.True(t, result.SoldAmount.Equal(d("100000")))

	// (10,000 * 1.1 + 90,000 * 1) / 100,000
	assert.True(t, result.WeightedAveragePrice.Equal(d("1.01")), result.WeightedAveragePrice.String())
	assert.True(t, byID[2].FinalCtUsdPrice.Equal(d("1.01")))
	assert.True(t, byID[0].FinalCtUsdPrice.Equal(d("1")))
	assert.True(t, result.FundingReached.Equal(d("100100")))
}

func TestClearRefundsMatchBondReduction(t *testing.T) {
	bucket := NewBucket(1, d("100000"), d("1"))
	bids, bucket := newBids(t, bucket,
		order{"alice", "60000", 10},
		order{"bob", "50000", 11},
		order{"carol", "5000", 500},
	)

	original := make(map[uint32]decimal.Decimal)
	for _, bid := range bids {
		original[bid.ID] = bid.PlmcBond
	}

	result, err := Clear(bids, d("100000"), bucket, 100, oneToOne)
	require.NoError(t, err)

	refunded := make(map[uint32]decimal.Decimal)
	for _, refund := range result.Refunds {
		assert.True(t, refund.Plmc.Equal(refund.Asset))
		refunded[refund.BidID] = refund.Plmc
	}

	for _, bid := range result.Bids {
		delta := original[bid.ID].Sub(bid.PlmcBond)
		got, ok := refunded[bid.ID]
		if !ok {
			got = decimal.Zero
		}
		assert.True(t, delta.Equal(got), "bid %d: bond delta %s refunds %s", bid.ID, delta, got)
	}

	for _, bid := range result.Bids {
		if bid.Bidder == "carol" {
			assert.Equal(t, model.BidStatusRejected, bid.Status.Kind)
			assert.Equal(t, model.RejectionAfterCandleEnd, bid.Status.Reason)
			assert.True(t, bid.PlmcBond.IsZero())
		}
	}
}

func TestClearRejectsWhenAllocationExhausted(t *testing.T) {
	bucket := NewBucket(1, d("1000"), d("2"))
	bids, bucket := newBids(t, bucket,
		order{"alice", "900", 1},
		order{"dave", "100", 2},
		order{"bob", "100", 3},
		order{"carol", "100", 4},
	)

	result, err := Clear(bids, d("1000"), bucket, 10, oneToOne)
	require.NoError(t, err)

	sold := decimal.Zero
	for _, bid := range result.Bids {
		if bid.Status.IsWinning() {
			sold = sold.Add(bid.FinalCtAmount)
		}
		switch bid.Bidder {
		case "alice":
			assert.Equal(t, model.BidStatusPartiallyAccepted, bid.Status.Kind)
			assert.True(t, bid.FinalCtAmount.Equal(d("800")))
		case "dave":
			assert.Equal(t, model.BidStatusRejected, bid.Status.Kind)
			assert.Equal(t, model.RejectionNoTokensLeft, bid.Status.Reason)
		default:
			assert.Equal(t, model.BidStatusAccepted, bid.Status.Kind)
		}
	}
	assert.True(t, sold.Equal(d("1000")))
	// (100 * 2.4 + 100 * 2.2 + 800 * 2) / 1000
	assert.True(t, result.WeightedAveragePrice.Equal(d("2.06")), result.WeightedAveragePrice.String())
}

func TestClearFirstBucketUsesMinimumPrice(t *testing.T) {
	bucket := NewBucket(1, d("100000"), d("3"))
	bids, bucket := newBids(t, bucket, order{"alice", "500", 1})

	result, err := Clear(bids, d("100000"), bucket, 10, oneToOne)
	require.NoError(t, err)
	assert.True(t, result.WeightedAveragePrice.Equal(d("3")))
	assert.Empty(t, result.Refunds)
}

func TestClearWithoutWinners(t *testing.T) {
	bucket := NewBucket(1, d("100000"), d("3"))
	bids, bucket := newBids(t, bucket, order{"alice", "500", 50})

	result, err := Clear(bids, d("100000"), bucket, 10, oneToOne)
	assert.True(t, errors.Is(err, ErrNoBidsFound))
	require.NotNil(t, result)
	require.Len(t, result.Refunds, 1)
	assert.True(t, result.Refunds[0].Plmc.Equal(d("1500")))
	assert.Equal(t, model.BidStatusRejected, result.Bids[0].Status.Kind)

	_, err = Clear(nil, d("100000"), bucket, 10, oneToOne)
	assert.True(t, errors.Is(err, ErrNoBidsFound))
}
