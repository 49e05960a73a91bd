package logic

import (
	"errors"
	"testing"

	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// settleAll 结算项目的所有参与记录，需在释放期结束后调用
func (h *harness) settleAll(id uint32) {
	h.t.Helper()

	evaluations, err := h.engine.ListEvaluations(h.ctx, id, "")
	require.NoError(h.t, err)
	for _, evaluation := range evaluations {
		require.NoError(h.t, h.engine.EvaluationRewardOrSlash(h.ctx, id, evaluation.ID))
		require.NoError(h.t, h.engine.EvaluationUnbond(h.ctx, id, evaluation.ID))
	}

	bids, err := h.engine.ListBids(h.ctx, id, "")
	require.NoError(h.t, err)
	for _, bid := range bids {
		require.NoError(h.t, h.engine.MintCtForBid(h.ctx, id, bid.ID))
		require.NoError(h.t, h.engine.PayoutBidFunds(h.ctx, id, bid.ID))
		require.NoError(h.t, h.engine.BidUnbond(h.ctx, id, bid.ID))
	}

	contributions, err := h.engine.ListContributions(h.ctx, id, "")
	require.NoError(h.t, err)
	for _, contribution := range contributions {
		require.NoError(h.t, h.engine.MintCtForContribution(h.ctx, id, contribution.ID))
		require.NoError(h.t, h.engine.PayoutContributionFunds(h.ctx, id, contribution.ID))
		require.NoError(h.t, h.engine.ContributionUnbond(h.ctx, id, contribution.ID))
	}
}

func TestSuccessfulSettlement(t *testing.T) {
	h := newHarness(t, nil)
	id := h.toSettlement()

	project := h.project(id)
	assert.Equal(t, model.SettlementSuccess, project.Details.SettlementOutcome)
	assert.Equal(t, uint64(33), project.Details.FundingEndBlock)
	outcome := project.Details.EvaluationRound.EvaluatorsOutcome
	require.Equal(t, model.OutcomeRewarded, outcome.Kind)
	require.NotNil(t, outcome.Reward)
	assert.True(t, outcome.Reward.EarlyEvaluatorRewardPot.Equal(d("900")))
	assert.True(t, outcome.Reward.NormalEvaluatorRewardPot.Equal(d("3600")))

	bids, err := h.engine.ListBids(h.ctx, id, alice.Account)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	bidID := bids[0].ID

	// 释放期未结束前不能解冻
	assert.True(t, errors.Is(h.engine.BidUnbond(h.ctx, id, bidID), errs.ErrInvalidState))
	require.NoError(t, h.engine.MintCtForBid(h.ctx, id, bidID))
	assert.True(t, errors.Is(h.engine.MintCtForBid(h.ctx, id, bidID), errs.ErrInvalidState))
	assert.True(t, errors.Is(h.engine.BidUnbond(h.ctx, id, bidID), errs.ErrInvalidState))
	assert.True(t, errors.Is(h.engine.ReleaseBidFunds(h.ctx, id, bidID), errs.ErrInvalidState))

	bids, err = h.engine.ListBids(h.ctx, id, alice.Account)
	require.NoError(t, err)
	require.NotNil(t, bids[0].PlmcVestingInfo)
	assert.Equal(t, uint64(1), bids[0].PlmcVestingInfo.Duration)
	assert.True(t, bids[0].PlmcVestingInfo.Total.Equal(d("100000")))

	h.advance(1)
	require.NoError(t, h.engine.PayoutBidFunds(h.ctx, id, bidID))
	require.NoError(t, h.engine.BidUnbond(h.ctx, id, bidID))

	contributions, err := h.engine.ListContributions(h.ctx, id, carol.Account)
	require.NoError(t, err)
	require.Len(t, contributions, 3)
	for _, contribution := range contributions {
		require.NoError(t, h.engine.MintCtForContribution(h.ctx, id, contribution.ID))
		require.NoError(t, h.engine.PayoutContributionFunds(h.ctx, id, contribution.ID))
		require.NoError(t, h.engine.ContributionUnbond(h.ctx, id, contribution.ID))
	}

	evaluations, err := h.engine.ListEvaluations(h.ctx, id, evaluator)
	require.NoError(t, err)
	require.Len(t, evaluations, 1)
	assert.True(t, errors.Is(h.engine.EvaluationUnbond(h.ctx, id, evaluations[0].ID), errs.ErrInvalidState))
	require.NoError(t, h.engine.EvaluationRewardOrSlash(h.ctx, id, evaluations[0].ID))
	require.NoError(t, h.engine.EvaluationUnbond(h.ctx, id, evaluations[0].ID))

	ct := model.CtAsset(id)
	assert.True(t, h.balance(ct, alice.Account, "").Equal(d("100000")))
	assert.True(t, h.balance(ct, carol.Account, "").Equal(d("50000")))
	assert.True(t, h.balance(ct, evaluator, "").Equal(d("4500")))

	assert.True(t, h.balance("USDT", "destination", "").Equal(d("150000")))
	assert.True(t, h.balance("USDT", model.FundAccount(id), "").IsZero())
	for _, account := range []string{evaluator, alice.Account, carol.Account} {
		assert.True(t, h.balance("PLMC", account, "").Equal(d("1000000")), account)
	}
}

func TestSettlementRequiresSettlingProject(t *testing.T) {
	h := newHarness(t, nil)
	id := h.toEnglishAuction()

	assert.True(t, errors.Is(h.engine.StartSettlement(h.ctx, id), errs.ErrInvalidState))
	assert.True(t, errors.Is(h.engine.MintCtForBid(h.ctx, id, 0), errs.ErrInvalidState))
	assert.True(t, errors.Is(h.engine.EvaluationUnbond(h.ctx, id, 0), errs.ErrInvalidState))
}
