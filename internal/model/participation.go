package model

import (
	"github.com/shopspring/decimal"
)

// ParticipationType 参与类型
type ParticipationType string

const (
	ParticipationEvaluation   ParticipationType = "evaluation"
	ParticipationBid          ParticipationType = "bid"
	ParticipationContribution ParticipationType = "contribution"
)

// MigrationState 迁移状态
type MigrationState string

const (
	MigrationNotStarted MigrationState = "not_started"
	MigrationSent       MigrationState = "sent"
	MigrationConfirmed  MigrationState = "confirmed"
	MigrationFailed     MigrationState = "failed"
)

// MigrationStatus 单条参与记录的迁移状态
type MigrationStatus struct {
	State   MigrationState `json:"state"`
	QueryID uint64         `json:"query_id,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// IsNotStarted 是否尚未发送
func (m MigrationStatus) IsNotStarted() bool {
	return m.State == "" || m.State == MigrationNotStarted
}

// VestingInfo 线性释放信息
type VestingInfo struct {
	Total          decimal.Decimal `json:"total"`
	AmountPerBlock decimal.Decimal `json:"amount_per_block"`
	Duration       uint64          `json:"duration"`
}

// RewardOrSlash 单条评估的奖励或罚没结果，只设置一次
type RewardOrSlash struct {
	Kind   OutcomeKind     `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
}

// Evaluation 评估记录
type Evaluation struct {
	ProjectID         uint32          `json:"project_id" gorm:"primaryKey;autoIncrement:false"`
	ID                uint32          `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Evaluator         string          `json:"evaluator" gorm:"index;not null"`
	OriginalPlmcBond  decimal.Decimal `json:"original_plmc_bond" gorm:"type:numeric"`
	CurrentPlmcBond   decimal.Decimal `json:"current_plmc_bond" gorm:"type:numeric"`
	EarlyUsdAmount    decimal.Decimal `json:"early_usd_amount" gorm:"type:numeric"`
	LateUsdAmount     decimal.Decimal `json:"late_usd_amount" gorm:"type:numeric"`
	When              uint64          `json:"when"`
	RewardedOrSlashed *RewardOrSlash  `json:"rewarded_or_slashed" gorm:"serializer:json"`
	CtMigrationStatus MigrationStatus `json:"ct_migration_status" gorm:"serializer:json"`
}

// TableName 自定义表名
func (Evaluation) TableName() string {
	return "evaluation"
}

// TotalUsd 评估的USD总额
func (e *Evaluation) TotalUsd() decimal.Decimal {
	return e.EarlyUsdAmount.Add(e.LateUsdAmount)
}

// BidStatusKind 出价状态
type BidStatusKind string

const (
	BidStatusUnknown           BidStatusKind = "unknown"
	BidStatusAccepted          BidStatusKind = "accepted"
	BidStatusPartiallyAccepted BidStatusKind = "partially_accepted"
	BidStatusRejected          BidStatusKind = "rejected"
)

// RejectionReason 拒绝原因
type RejectionReason string

const (
	RejectionAfterCandleEnd RejectionReason = "after_candle_end"
	RejectionNoTokensLeft   RejectionReason = "no_tokens_left"
)

// BidStatus 出价结算状态
type BidStatus struct {
	Kind   BidStatusKind   `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
	Reason RejectionReason `json:"reason,omitempty"`
}

// IsWinning 是否全部或部分成交
func (s BidStatus) IsWinning() bool {
	return s.Kind == BidStatusAccepted || s.Kind == BidStatusPartiallyAccepted
}

// Bid 出价记录，每个价格档位一条
type Bid struct {
	ProjectID                uint32               `json:"project_id" gorm:"primaryKey;autoIncrement:false"`
	ID                       uint32               `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Bidder                   string               `json:"bidder" gorm:"index;not null"`
	Did                      string               `json:"did" gorm:"index"`
	InvestorType             InvestorType         `json:"investor_type"`
	Status                   BidStatus            `json:"status" gorm:"serializer:json"`
	OriginalCtAmount         decimal.Decimal      `json:"original_ct_amount" gorm:"type:numeric"`
	OriginalCtUsdPrice       decimal.Decimal      `json:"original_ct_usd_price" gorm:"type:numeric"`
	FinalCtAmount            decimal.Decimal      `json:"final_ct_amount" gorm:"type:numeric"`
	FinalCtUsdPrice          decimal.Decimal      `json:"final_ct_usd_price" gorm:"type:numeric"`
	FundingAsset             AcceptedFundingAsset `json:"funding_asset"`
	FundingAssetAmountLocked decimal.Decimal      `json:"funding_asset_amount_locked" gorm:"type:numeric"`
	Multiplier               uint8                `json:"multiplier"`
	PlmcBond                 decimal.Decimal      `json:"plmc_bond" gorm:"type:numeric"`
	PlmcVestingInfo          *VestingInfo         `json:"plmc_vesting_info" gorm:"serializer:json"`
	When                     uint64               `json:"when"`
	FundsReleased            bool                 `json:"funds_released"`
	CtMinted                 bool                 `json:"ct_minted"`
	CtMigrationStatus        MigrationStatus      `json:"ct_migration_status" gorm:"serializer:json"`
}

// TableName 自定义表名
func (Bid) TableName() string {
	return "bid"
}

// OriginalTicket 原始出价的USD金额
func (b *Bid) OriginalTicket() decimal.Decimal {
	return b.OriginalCtAmount.Mul(b.OriginalCtUsdPrice)
}

// Contribution 社区轮或剩余轮的购买记录
type Contribution struct {
	ProjectID             uint32               `json:"project_id" gorm:"primaryKey;autoIncrement:false"`
	ID                    uint32               `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Contributor           string               `json:"contributor" gorm:"index;not null"`
	Did                   string               `json:"did" gorm:"index"`
	InvestorType          InvestorType         `json:"investor_type"`
	CtAmount              decimal.Decimal      `json:"ct_amount" gorm:"type:numeric"`
	UsdContributionAmount decimal.Decimal      `json:"usd_contribution_amount" gorm:"type:numeric"`
	Multiplier            uint8                `json:"multiplier"`
	FundingAsset          AcceptedFundingAsset `json:"funding_asset"`
	FundingAssetAmount    decimal.Decimal      `json:"funding_asset_amount" gorm:"type:numeric"`
	PlmcBond              decimal.Decimal      `json:"plmc_bond" gorm:"type:numeric"`
	PlmcVestingInfo       *VestingInfo         `json:"plmc_vesting_info" gorm:"serializer:json"`
	When                  uint64               `json:"when"`
	FundsReleased         bool                 `json:"funds_released"`
	CtMinted              bool                 `json:"ct_minted"`
	CtMigrationStatus     MigrationStatus      `json:"ct_migration_status" gorm:"serializer:json"`
}

// TableName 自定义表名
func (Contribution) TableName() string {
	return "contribution"
}
