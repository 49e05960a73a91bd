package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ProjectStatus 项目状态
type ProjectStatus string

const (
	ProjectStatusApplication             ProjectStatus = "application"               // 已申请
	ProjectStatusEvaluationRound         ProjectStatus = "evaluation_round"          // 评估轮
	ProjectStatusEvaluationFailed        ProjectStatus = "evaluation_failed"         // 评估失败
	ProjectStatusAuctionInitializePeriod ProjectStatus = "auction_initialize_period" // 拍卖准备期
	ProjectStatusAuctionEnglish          ProjectStatus = "auction_english"           // 英式拍卖
	ProjectStatusAuctionCandle           ProjectStatus = "auction_candle"            // 蜡烛拍卖
	ProjectStatusCommunityRound          ProjectStatus = "community_round"           // 社区轮
	ProjectStatusRemainderRound          ProjectStatus = "remainder_round"           // 剩余轮
	ProjectStatusFundingSuccessful       ProjectStatus = "funding_successful"        // 募资成功
	ProjectStatusFundingFailed           ProjectStatus = "funding_failed"            // 募资失败
	ProjectStatusAwaitingProjectDecision ProjectStatus = "awaiting_project_decision" // 等待发行方决定
	ProjectStatusSettlementStarted       ProjectStatus = "settlement_started"        // 结算中
)

// IsAuction 是否处于拍卖轮
func (s ProjectStatus) IsAuction() bool {
	return s == ProjectStatusAuctionEnglish || s == ProjectStatusAuctionCandle
}

// InvestorType 投资者类别
type InvestorType string

const (
	InvestorRetail        InvestorType = "retail"
	InvestorProfessional  InvestorType = "professional"
	InvestorInstitutional InvestorType = "institutional"
)

// AcceptedFundingAsset 可接受的募资资产
type AcceptedFundingAsset string

const (
	FundingAssetUSDT AcceptedFundingAsset = "USDT"
	FundingAssetUSDC AcceptedFundingAsset = "USDC"
	FundingAssetDOT  AcceptedFundingAsset = "DOT"
)

// NativeAsset 抵押资产
const NativeAsset = "PLMC"

// SupportedFundingAssets 支持的募资资产
var SupportedFundingAssets = []AcceptedFundingAsset{FundingAssetUSDT, FundingAssetUSDC, FundingAssetDOT}

// TokenInformation 代币信息
type TokenInformation struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// TicketSize 单次参与的最小值和单个身份的最大值（USD）
type TicketSize struct {
	UsdMinimumPerParticipation decimal.NullDecimal `json:"usd_minimum_per_participation"`
	UsdMaximumPerDid           decimal.NullDecimal `json:"usd_maximum_per_did"`
}

// BiddingTicketSizes 拍卖轮各类投资者的限额，零售投资者不能出价
type BiddingTicketSizes struct {
	Professional  TicketSize `json:"professional"`
	Institutional TicketSize `json:"institutional"`
}

// For 返回对应类别的限额
func (b BiddingTicketSizes) For(investor InvestorType) (TicketSize, bool) {
	switch investor {
	case InvestorProfessional:
		return b.Professional, true
	case InvestorInstitutional:
		return b.Institutional, true
	default:
		return TicketSize{}, false
	}
}

// ContributingTicketSizes 社区轮和剩余轮各类投资者的限额
type ContributingTicketSizes struct {
	Retail        TicketSize `json:"retail"`
	Professional  TicketSize `json:"professional"`
	Institutional TicketSize `json:"institutional"`
}

// For 返回对应类别的限额
func (c ContributingTicketSizes) For(investor InvestorType) (TicketSize, bool) {
	switch investor {
	case InvestorRetail:
		return c.Retail, true
	case InvestorProfessional:
		return c.Professional, true
	case InvestorInstitutional:
		return c.Institutional, true
	default:
		return TicketSize{}, false
	}
}

// ProjectMetadata 项目元数据，评估开始后冻结
type ProjectMetadata struct {
	TokenInformation          TokenInformation        `json:"token_information" gorm:"embedded;embeddedPrefix:token_"`
	AuctionAllocationSize     decimal.Decimal         `json:"auction_allocation_size" gorm:"type:numeric"`
	CommunityAllocationSize   decimal.Decimal         `json:"community_allocation_size" gorm:"type:numeric"`
	MinimumPrice              decimal.Decimal         `json:"minimum_price" gorm:"type:numeric"`
	BiddingTicketSizes        BiddingTicketSizes      `json:"bidding_ticket_sizes" gorm:"serializer:json"`
	ContributingTicketSizes   ContributingTicketSizes `json:"contributing_ticket_sizes" gorm:"serializer:json"`
	ParticipationCurrencies   []AcceptedFundingAsset  `json:"participation_currencies" gorm:"serializer:json"`
	FundingDestinationAccount string                  `json:"funding_destination_account"`
	OfferingDocumentHash      string                  `json:"offering_document_hash"`
}

// TotalAllocationSize 总分配量
func (m ProjectMetadata) TotalAllocationSize() decimal.Decimal {
	return m.AuctionAllocationSize.Add(m.CommunityAllocationSize)
}

// AcceptsAsset 是否接受该募资资产
func (m ProjectMetadata) AcceptsAsset(asset AcceptedFundingAsset) bool {
	for _, a := range m.ParticipationCurrencies {
		if a == asset {
			return true
		}
	}
	return false
}

// BlockRange 轮次区块区间，零值表示未设置
type BlockRange struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// IsSet 区间是否已设置
func (r BlockRange) IsSet() bool {
	return r.Start != 0 || r.End != 0
}

// RoundTimes 各轮次的区块区间
type RoundTimes struct {
	Evaluation        BlockRange `json:"evaluation"`
	AuctionInitialize BlockRange `json:"auction_initialize"`
	English           BlockRange `json:"english"`
	Candle            BlockRange `json:"candle"`
	Community         BlockRange `json:"community"`
	Remainder         BlockRange `json:"remainder"`
}

// OutcomeKind 评估者结果
type OutcomeKind string

const (
	OutcomeUnchanged OutcomeKind = "unchanged"
	OutcomeRewarded  OutcomeKind = "rewarded"
	OutcomeSlashed   OutcomeKind = "slashed"
)

// RewardInfo 评估奖励池信息
type RewardInfo struct {
	EarlyEvaluatorRewardPot       decimal.Decimal `json:"early_evaluator_reward_pot"`
	NormalEvaluatorRewardPot      decimal.Decimal `json:"normal_evaluator_reward_pot"`
	EarlyEvaluatorTotalBondedUsd  decimal.Decimal `json:"early_evaluator_total_bonded_usd"`
	NormalEvaluatorTotalBondedUsd decimal.Decimal `json:"normal_evaluator_total_bonded_usd"`
}

// EvaluatorsOutcome 募资结束后评估者的整体结果，Kind 为空表示尚未确定
type EvaluatorsOutcome struct {
	Kind   OutcomeKind `json:"kind"`
	Reward *RewardInfo `json:"reward,omitempty"`
}

// EvaluationRoundInfo 评估轮汇总
type EvaluationRoundInfo struct {
	TotalBondedUsd    decimal.Decimal   `json:"total_bonded_usd" gorm:"type:numeric"`
	TotalBondedPlmc   decimal.Decimal   `json:"total_bonded_plmc" gorm:"type:numeric"`
	EvaluatorsOutcome EvaluatorsOutcome `json:"evaluators_outcome" gorm:"serializer:json"`
}

// SettlementOutcome 结算结果标记
type SettlementOutcome string

const (
	SettlementNotReady SettlementOutcome = ""
	SettlementSuccess  SettlementOutcome = "success"
	SettlementFailure  SettlementOutcome = "failure"
)

// ChannelState 跨链通道状态
type ChannelState string

const (
	ChannelClosed ChannelState = ""
	ChannelOpen   ChannelState = "open"
)

// ChannelStatus 双向通道状态
type ChannelStatus struct {
	ProjectToHub ChannelState `json:"project_to_hub"`
	HubToProject ChannelState `json:"hub_to_project"`
}

// IsOpen 双向是否均已打开
func (c ChannelStatus) IsOpen() bool {
	return c.ProjectToHub == ChannelOpen && c.HubToProject == ChannelOpen
}

// ProjectDetails 项目运行时状态
type ProjectDetails struct {
	Status                   ProjectStatus            `json:"status" gorm:"index"`
	Frozen                   bool                     `json:"frozen"`
	Rounds                   RoundTimes               `json:"rounds" gorm:"serializer:json"`
	WeightedAveragePrice     decimal.NullDecimal      `json:"weighted_average_price" gorm:"type:numeric"`
	RemainingAuctionTokens   decimal.Decimal          `json:"remaining_auction_tokens" gorm:"type:numeric"`
	RemainingCommunityTokens decimal.Decimal          `json:"remaining_community_tokens" gorm:"type:numeric"`
	FundingReached           decimal.Decimal          `json:"funding_reached" gorm:"type:numeric"`
	FundraisingTarget        decimal.Decimal          `json:"fundraising_target" gorm:"type:numeric"`
	EvaluationRound          EvaluationRoundInfo      `json:"evaluation_round" gorm:"embedded;embeddedPrefix:eval_"`
	RandomCandleEnding       *uint64                  `json:"random_candle_ending"`
	SettlementOutcome        SettlementOutcome        `json:"settlement_outcome"`
	FundingEndBlock          uint64                   `json:"funding_end_block"`
	ParaID                   *uint32                  `json:"para_id"`
	Channel                  ChannelStatus            `json:"channel" gorm:"embedded;embeddedPrefix:channel_"`
	MigrationReadiness       *MigrationReadinessCheck `json:"migration_readiness" gorm:"serializer:json"`
	MigrationStarted         bool                     `json:"migration_started"`
}

// RemainingContributionTokens 剩余可售代币总量
func (d ProjectDetails) RemainingContributionTokens() decimal.Decimal {
	return d.RemainingAuctionTokens.Add(d.RemainingCommunityTokens)
}

// Project 募资项目
type Project struct {
	ID        uint32          `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Issuer    string          `json:"issuer" gorm:"index;not null"`
	Metadata  ProjectMetadata `json:"metadata" gorm:"embedded;embeddedPrefix:meta_"`
	Details   ProjectDetails  `json:"details" gorm:"embedded;embeddedPrefix:details_"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName 自定义表名
func (Project) TableName() string {
	return "project"
}

// FundAccount 项目资金账户
func (p *Project) FundAccount() string {
	return FundAccount(p.ID)
}

// CtAsset 项目贡献代币的资产ID
func (p *Project) CtAsset() string {
	return CtAsset(p.ID)
}

// CtSold 已售出的贡献代币数量
func (p *Project) CtSold() decimal.Decimal {
	return p.Metadata.TotalAllocationSize().Sub(p.Details.RemainingContributionTokens())
}

// FundAccount 项目资金账户
func FundAccount(projectID uint32) string {
	return fmt.Sprintf("fund/%d", projectID)
}

// CtAsset 项目贡献代币的资产ID
func CtAsset(projectID uint32) string {
	return fmt.Sprintf("CT-%d", projectID)
}

// Caller 调用方身份
type Caller struct {
	Account      string       `json:"account"`
	Did          string       `json:"did"`
	InvestorType InvestorType `json:"investor_type"`
}
