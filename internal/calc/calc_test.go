package calc

import (
	"errors"
	"testing"

	"github.com/blues/launchpad/internal/config"
	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestValidateMultiplier(t *testing.T) {
	tests := []struct {
		name       string
		investor   model.InvestorType
		multiplier uint8
		wantErr    bool
	}{
		{"retail lower bound", model.InvestorRetail, 1, false},
		{"retail upper bound", model.InvestorRetail, 5, false},
		{"retail above bound", model.InvestorRetail, 6, true},
		{"professional upper bound", model.InvestorProfessional, 10, false},
		{"professional above bound", model.InvestorProfessional, 11, true},
		{"institutional upper bound", model.InvestorInstitutional, 25, false},
		{"institutional above bound", model.InvestorInstitutional, 26, true},
		{"zero multiplier", model.InvestorInstitutional, 0, true},
		{"unknown investor", model.InvestorType("whale"), 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMultiplier(tt.investor, tt.multiplier)
			if tt.wantErr {
				assert.True(t, errors.Is(err, errs.ErrValidity))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPlmcBond(t *testing.T) {
	// 10,000 USD with multiplier 2 bonds 5,000 USD of PLMC at 0.5 USD
	bond, err := PlmcBond(d("10000"), 2, d("0.5"), 10)
	require.NoError(t, err)
	assert.True(t, bond.Equal(d("10000")), bond.String())

	_, err = PlmcBond(d("10000"), 0, d("0.5"), 10)
	assert.True(t, errors.Is(err, errs.ErrBadMath))

	_, err = PlmcBond(d("10000"), 1, decimal.Zero, 10)
	assert.True(t, errors.Is(err, errs.ErrBadMath))
}

func TestFundingAssetAmountTruncatesToAssetDecimals(t *testing.T) {
	amount, err := FundingAssetAmount(d("100"), d("3"), 6)
	require.NoError(t, err)
	assert.True(t, amount.Equal(d("33.333333")), amount.String())
}

func TestVestingDuration(t *testing.T) {
	assert.Equal(t, uint64(1), VestingDuration(1, 300))
	// (2.167*2 - 2.167) weeks of 50,400 blocks
	assert.Equal(t, uint64(109216), VestingDuration(2, 300))
	assert.Greater(t, VestingDuration(25, 300), VestingDuration(10, 300))
}

func TestNewVestingInfo(t *testing.T) {
	info := NewVestingInfo(d("100"), 0, 10)
	assert.True(t, info.AmountPerBlock.Equal(d("100")))

	info = NewVestingInfo(d("100"), 3, 2)
	assert.True(t, info.AmountPerBlock.Equal(d("33.33")))
	assert.Equal(t, uint64(3), info.Duration)
}

func TestFees(t *testing.T) {
	brackets := config.DefaultEngineConfig().FeeBrackets

	tests := []struct {
		name    string
		funding string
		want    string
	}{
		{"within first bracket", "500000", "50000"},
		{"first bracket limit", "1000000", "100000"},
		{"second bracket", "3000000", "260000"},
		{"third bracket", "6000000", "480000"},
		{"zero", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fees(d(tt.funding), brackets)
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestFundingRatio(t *testing.T) {
	ratio, err := FundingRatio(d("80"), d("100"))
	require.NoError(t, err)
	assert.True(t, ratio.Equal(d("0.8")))

	_, err = FundingRatio(d("80"), decimal.Zero)
	assert.True(t, errors.Is(err, errs.ErrBadMath))
}

func TestSplitEarlyLate(t *testing.T) {
	early, late := SplitEarlyLate(d("300"), d("1000"), d("800"))
	assert.True(t, early.Equal(d("200")))
	assert.True(t, late.Equal(d("100")))

	early, late = SplitEarlyLate(d("300"), d("1000"), d("1200"))
	assert.True(t, early.IsZero())
	assert.True(t, late.Equal(d("300")))
}

func TestEvaluatorRewardsSumToPots(t *testing.T) {
	evaluations := []*model.Evaluation{
		{ID: 0, EarlyUsdAmount: d("600"), LateUsdAmount: d("0")},
		{ID: 1, EarlyUsdAmount: d("400"), LateUsdAmount: d("1000")},
		{ID: 2, EarlyUsdAmount: d("0"), LateUsdAmount: d("2000")},
	}

	info, err := ComputeRewardInfo(d("1000000"), d("100000"), config.DefaultEngineConfig().FeeBrackets, evaluations, 18)
	require.NoError(t, err)

	// 10% fee -> 10,000 CT, 30% to evaluators -> 3,000 CT
	assert.True(t, info.EarlyEvaluatorRewardPot.Equal(d("600")), info.EarlyEvaluatorRewardPot.String())
	assert.True(t, info.NormalEvaluatorRewardPot.Equal(d("2400")), info.NormalEvaluatorRewardPot.String())
	assert.True(t, info.EarlyEvaluatorTotalBondedUsd.Equal(d("1000")))
	assert.True(t, info.NormalEvaluatorTotalBondedUsd.Equal(d("4000")))

	total := decimal.Zero
	for _, evaluation := range evaluations {
		total = total.Add(EvaluatorReward(info, evaluation, 18))
	}
	assert.True(t, total.Equal(d("3000")), total.String())

	// 600/1000*600 + 600/4000*2400
	assert.True(t, EvaluatorReward(info, evaluations[0], 18).Equal(d("720")))
}

func TestSlashAmount(t *testing.T) {
	assert.True(t, SlashAmount(d("1000"), d("0.2"), 10).Equal(d("200")))
}
