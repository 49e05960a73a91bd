package logic

import (
	"errors"
	"testing"

	"github.com/blues/launchpad/internal/config"
	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartialFundingAcceptedByDefault(t *testing.T) {
	h := newHarness(t, nil)
	id := h.toEnglishAuction()

	_, err := h.engine.Bid(h.ctx, alice, id, d("60000"), 1, model.FundingAssetUSDT)
	require.NoError(t, err)
	h.toCommunity(id)
	assert.True(t, h.project(id).Details.WeightedAveragePrice.Decimal.Equal(d("1")))

	_, err = h.engine.Contribute(h.ctx, carol, id, d("60000"), 1, model.FundingAssetUSDT)
	require.NoError(t, err)
	project := h.project(id)
	assert.True(t, project.Details.RemainingAuctionTokens.IsZero())
	assert.True(t, project.Details.RemainingCommunityTokens.Equal(d("30000")))
	assert.True(t, project.Details.FundingReached.Equal(d("120000")))

	h.advanceTo(36)
	h.requireStatus(id, model.ProjectStatusRemainderRound)

	h.advanceTo(42)
	project = h.project(id)
	assert.Equal(t, model.ProjectStatusAwaitingProjectDecision, project.Details.Status)
	assert.Equal(t, model.OutcomeUnchanged, project.Details.EvaluationRound.EvaluatorsOutcome.Kind)

	block, update, err := h.engine.PendingUpdate(id)
	require.NoError(t, err)
	require.NotNil(t, update)
	assert.Equal(t, uint64(48), block)
	assert.Equal(t, model.DecisionAcceptFunding, update.Decision)

	h.advanceTo(48)
	h.requireStatus(id, model.ProjectStatusFundingSuccessful)
	h.advanceTo(50)
	project = h.project(id)
	assert.Equal(t, model.ProjectStatusSettlementStarted, project.Details.Status)
	assert.Equal(t, model.SettlementSuccess, project.Details.SettlementOutcome)

	evaluations, err := h.engine.ListEvaluations(h.ctx, id, evaluator)
	require.NoError(t, err)
	require.Len(t, evaluations, 1)
	assert.True(t, errors.Is(h.engine.EvaluationRewardOrSlash(h.ctx, id, evaluations[0].ID), errs.ErrInvalidState))
	require.NoError(t, h.engine.EvaluationUnbond(h.ctx, id, evaluations[0].ID))
	assert.True(t, h.balance("PLMC", evaluator, "").Equal(d("1000000")))
}

func TestContributionBeyondRemainingIsCapped(t *testing.T) {
	h := newHarness(t, nil)
	id := h.toEnglishAuction()

	_, err := h.engine.Bid(h.ctx, alice, id, d("100000"), 1, model.FundingAssetUSDT)
	require.NoError(t, err)
	h.toCommunity(id)

	_, err = h.engine.Contribute(h.ctx, carol, id, d("70000"), 1, model.FundingAssetUSDT)
	require.NoError(t, err)

	contributions, err := h.engine.ListContributions(h.ctx, id, carol.Account)
	require.NoError(t, err)
	require.Len(t, contributions, 1)
	assert.True(t, contributions[0].CtAmount.Equal(d("50000")))
	assert.True(t, h.balance("USDT", carol.Account, "").Equal(d("950000")))

	_, err = h.engine.Contribute(h.ctx, bob, id, d("10"), 1, model.FundingAssetUSDT)
	assert.True(t, errors.Is(err, errs.ErrInvalidState))

	block, update, err := h.engine.PendingUpdate(id)
	require.NoError(t, err)
	require.NotNil(t, update)
	assert.Equal(t, uint64(31), block)
	assert.Equal(t, model.UpdateFundingEnd, update.UpdateType)
}

func TestContributionsPerProjectCap(t *testing.T) {
	h := newHarness(t, func(cfg *config.EngineConfig) {
		cfg.MaxContributionsPerUser = 2
		cfg.MaxContributionsPerProject = 2
	})
	dave := model.Caller{Account: "dave", Did: "did:dave", InvestorType: model.InvestorRetail}
	require.NoError(t, h.engine.Mint(h.ctx, "PLMC", dave.Account, d("1000000")))
	require.NoError(t, h.engine.Mint(h.ctx, "USDT", dave.Account, d("1000000")))

	id := h.toEnglishAuction()
	_, err := h.engine.Bid(h.ctx, alice, id, d("100000"), 1, model.FundingAssetUSDT)
	require.NoError(t, err)
	h.toCommunity(id)

	for _, amount := range []string{"100", "200"} {
		_, err := h.engine.Contribute(h.ctx, carol, id, d(amount), 1, model.FundingAssetUSDT)
		require.NoError(t, err)
	}

	_, err = h.engine.Contribute(h.ctx, dave, id, d("100"), 1, model.FundingAssetUSDT)
	assert.True(t, errors.Is(err, errs.ErrCapacityExceeded), "got %v", err)
	assert.True(t, h.balance("USDT", dave.Account, "").Equal(d("1000000")))
	assert.True(t, h.balance("PLMC", dave.Account, participationReason(id)).IsZero())

	// 替换自己最早的一笔不增加项目总数
	_, err = h.engine.Contribute(h.ctx, carol, id, d("300"), 1, model.FundingAssetUSDT)
	require.NoError(t, err)
	all, err := h.engine.ListContributions(h.ctx, id, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].CtAmount.Equal(d("200")))
	assert.True(t, all[1].CtAmount.Equal(d("300")))
}

func TestContributionValidation(t *testing.T) {
	h := newHarness(t, nil)
	id := h.toEnglishAuction()

	_, err := h.engine.Contribute(h.ctx, carol, id, d("100"), 1, model.FundingAssetUSDT)
	assert.True(t, errors.Is(err, errs.ErrInvalidState))

	_, err = h.engine.Bid(h.ctx, alice, id, d("10000"), 1, model.FundingAssetUSDT)
	require.NoError(t, err)
	h.toCommunity(id)

	tests := []struct {
		name       string
		amount     string
		multiplier uint8
		asset      model.AcceptedFundingAsset
	}{
		{"zero amount", "0", 1, model.FundingAssetUSDT},
		{"below minimum", "0.5", 1, model.FundingAssetUSDT},
		{"retail multiplier above five", "100", 6, model.FundingAssetUSDT},
		{"asset not accepted", "100", 1, model.FundingAssetDOT},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.Contribute(h.ctx, carol, id, d(tt.amount), tt.multiplier, tt.asset)
			assert.True(t, errors.Is(err, errs.ErrValidity), "got %v", err)
		})
	}
}

func TestDecideProjectOutcomeRequiresAwaitingStatus(t *testing.T) {
	h := newHarness(t, nil)
	id := h.toEnglishAuction()

	err := h.engine.DecideProjectOutcome(h.ctx, issuer, id, model.DecisionAcceptFunding)
	assert.True(t, errors.Is(err, errs.ErrInvalidState))
}
