package calc

import (
	"github.com/blues/launchpad/internal/config"
	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/model"
	"github.com/blues/launchpad/internal/oracle"
	"github.com/shopspring/decimal"
)

const (
	// MinMultiplier 最小倍数
	MinMultiplier = 1
	// MaxMultiplier 最大倍数
	MaxMultiplier = 25

	// 比例运算保留的小数位
	ratioPrecision = 18
)

var (
	evaluatorRewardShare = decimal.RequireFromString("0.3")
	earlyPotShare        = decimal.RequireFromString("0.2")
	normalPotShare       = decimal.RequireFromString("0.8")
	vestingWeeksFactor   = decimal.RequireFromString("2.167")
)

// MultiplierMax 各类投资者允许的最大倍数
func MultiplierMax(investor model.InvestorType) uint8 {
	switch investor {
	case model.InvestorRetail:
		return 5
	case model.InvestorProfessional:
		return 10
	case model.InvestorInstitutional:
		return MaxMultiplier
	default:
		return 0
	}
}

// ValidateMultiplier 检查倍数是否在投资者类别允许的范围内
func ValidateMultiplier(investor model.InvestorType, multiplier uint8) error {
	limit := MultiplierMax(investor)
	if limit == 0 {
		return errs.New(errs.ErrValidity, "未知的投资者类别: %s", investor)
	}
	if multiplier < MinMultiplier || multiplier > limit {
		return errs.New(errs.ErrValidity, "倍数 %d 超出 %s 的范围 [%d, %d]", multiplier, investor, MinMultiplier, limit)
	}
	return nil
}

// BondingRequirementUsd 需要抵押的USD价值
func BondingRequirementUsd(ticketUsd decimal.Decimal, multiplier uint8) (decimal.Decimal, error) {
	if multiplier == 0 {
		return decimal.Zero, errs.New(errs.ErrBadMath, "倍数为零")
	}
	return ticketUsd.DivRound(decimal.NewFromInt(int64(multiplier)), ratioPrecision), nil
}

// PlmcBond 抵押的 PLMC 数量
func PlmcBond(ticketUsd decimal.Decimal, multiplier uint8, plmcPrice decimal.Decimal, plmcDecimals uint8) (decimal.Decimal, error) {
	usdBond, err := BondingRequirementUsd(ticketUsd, multiplier)
	if err != nil {
		return decimal.Zero, err
	}
	return oracle.ConvertFromUsd(usdBond, plmcPrice, plmcDecimals)
}

// FundingAssetAmount 需要锁定的募资资产数量
func FundingAssetAmount(ticketUsd, assetPrice decimal.Decimal, assetDecimals uint8) (decimal.Decimal, error) {
	return oracle.ConvertFromUsd(ticketUsd, assetPrice, assetDecimals)
}

// VestingDuration 倍数对应的释放期（区块），至少一个区块
func VestingDuration(multiplier uint8, blocksPerHour uint64) uint64 {
	m := decimal.NewFromInt(int64(multiplier))
	weeks := vestingWeeksFactor.Mul(m).Sub(vestingWeeksFactor)
	blocksPerWeek := decimal.NewFromInt(int64(7 * 24 * blocksPerHour))
	blocks := weeks.Mul(blocksPerWeek).Floor()
	if !blocks.IsPositive() {
		return 1
	}
	return uint64(blocks.IntPart())
}

// NewVestingInfo 按释放期计算每区块释放量，释放期为零时一次性释放
func NewVestingInfo(total decimal.Decimal, duration uint64, decimals uint8) model.VestingInfo {
	if duration == 0 {
		return model.VestingInfo{Total: total, AmountPerBlock: total, Duration: 0}
	}
	perBlock := total.DivRound(decimal.NewFromInt(int64(duration)), int32(decimals)+8).Truncate(int32(decimals))
	return model.VestingInfo{Total: total, AmountPerBlock: perBlock, Duration: duration}
}

// CalculateVesting 根据倍数计算释放信息
func CalculateVesting(total decimal.Decimal, multiplier uint8, blocksPerHour uint64, decimals uint8) model.VestingInfo {
	return NewVestingInfo(total, VestingDuration(multiplier, blocksPerHour), decimals)
}

// Fees 按阶梯计算募资手续费（USD）
func Fees(fundingReached decimal.Decimal, brackets []config.FeeBracket) decimal.Decimal {
	fees := decimal.Zero
	remaining := fundingReached
	previousLimit := decimal.Zero

	for _, bracket := range brackets {
		if !remaining.IsPositive() {
			break
		}
		taxable := remaining
		if bracket.Limit.IsPositive() {
			taxable = decimal.Min(remaining, decimal.Max(decimal.Zero, bracket.Limit.Sub(previousLimit)))
			previousLimit = bracket.Limit
		}
		fees = fees.Add(taxable.Mul(bracket.Percent))
		remaining = remaining.Sub(taxable)
	}
	return fees
}

// FundingRatio 募资完成比例
func FundingRatio(fundingReached, fundingTarget decimal.Decimal) (decimal.Decimal, error) {
	if !fundingTarget.IsPositive() {
		return decimal.Zero, errs.New(errs.ErrBadMath, "募资目标无效: %s", fundingTarget)
	}
	return fundingReached.DivRound(fundingTarget, 9), nil
}

// SplitEarlyLate 将评估金额拆分为早鸟部分和普通部分，早鸟部分不超过距阈值的缺口
func SplitEarlyLate(usd, threshold, totalBondedUsd decimal.Decimal) (early, late decimal.Decimal) {
	gap := decimal.Max(decimal.Zero, threshold.Sub(totalBondedUsd))
	early = decimal.Min(usd, gap)
	return early, usd.Sub(early)
}

// ComputeRewardInfo 计算评估者奖励池
func ComputeRewardInfo(fundingReached, ctSold decimal.Decimal, brackets []config.FeeBracket, evaluations []*model.Evaluation, ctDecimals uint8) (model.RewardInfo, error) {
	if !fundingReached.IsPositive() {
		return model.RewardInfo{}, errs.New(errs.ErrBadMath, "募资金额为零")
	}

	fees := Fees(fundingReached, brackets)
	feePercent := fees.DivRound(fundingReached, ratioPrecision)
	feeCt := feePercent.Mul(ctSold)
	evaluatorRewards := feeCt.Mul(evaluatorRewardShare)

	info := model.RewardInfo{
		EarlyEvaluatorRewardPot:       evaluatorRewards.Mul(earlyPotShare).Truncate(int32(ctDecimals)),
		NormalEvaluatorRewardPot:      evaluatorRewards.Mul(normalPotShare).Truncate(int32(ctDecimals)),
		EarlyEvaluatorTotalBondedUsd:  decimal.Zero,
		NormalEvaluatorTotalBondedUsd: decimal.Zero,
	}
	for _, evaluation := range evaluations {
		info.EarlyEvaluatorTotalBondedUsd = info.EarlyEvaluatorTotalBondedUsd.Add(evaluation.EarlyUsdAmount)
		info.NormalEvaluatorTotalBondedUsd = info.NormalEvaluatorTotalBondedUsd.Add(evaluation.TotalUsd())
	}
	return info, nil
}

// EvaluatorReward 单条评估应得的贡献代币
func EvaluatorReward(info model.RewardInfo, evaluation *model.Evaluation, ctDecimals uint8) decimal.Decimal {
	reward := decimal.Zero
	if info.EarlyEvaluatorTotalBondedUsd.IsPositive() {
		share := evaluation.EarlyUsdAmount.DivRound(info.EarlyEvaluatorTotalBondedUsd, ratioPrecision)
		reward = reward.Add(share.Mul(info.EarlyEvaluatorRewardPot))
	}
	if info.NormalEvaluatorTotalBondedUsd.IsPositive() {
		share := evaluation.TotalUsd().DivRound(info.NormalEvaluatorTotalBondedUsd, ratioPrecision)
		reward = reward.Add(share.Mul(info.NormalEvaluatorRewardPot))
	}
	return reward.Truncate(int32(ctDecimals))
}

// SlashAmount 罚没数量
func SlashAmount(originalBond, slashPercent decimal.Decimal, plmcDecimals uint8) decimal.Decimal {
	return originalBond.Mul(slashPercent).Truncate(int32(plmcDecimals))
}
