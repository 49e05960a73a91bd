package model

// UpdateType 自动状态转换类型
type UpdateType string

const (
	UpdateEvaluationEnd         UpdateType = "evaluation_end"
	UpdateEnglishAuctionStart   UpdateType = "english_auction_start"
	UpdateCandleAuctionStart    UpdateType = "candle_auction_start"
	UpdateCommunityFundingStart UpdateType = "community_funding_start"
	UpdateRemainderFundingStart UpdateType = "remainder_funding_start"
	UpdateFundingEnd            UpdateType = "funding_end"
	UpdateProjectDecision       UpdateType = "project_decision"
	UpdateStartSettlement       UpdateType = "start_settlement"
)

// FundingDecision 发行方对募资结果的决定
type FundingDecision string

const (
	DecisionAcceptFunding FundingDecision = "accept_funding"
	DecisionRejectFunding FundingDecision = "reject_funding"
)

// ProjectUpdate 区块待执行的项目状态转换
type ProjectUpdate struct {
	ID         uint64          `json:"-" gorm:"primaryKey"`
	Block      uint64          `json:"block" gorm:"index;not null"`
	Position   int             `json:"position"`
	ProjectID  uint32          `json:"project_id" gorm:"index;not null"`
	UpdateType UpdateType      `json:"update_type"`
	Decision   FundingDecision `json:"decision,omitempty"`
}

// TableName 自定义表名
func (ProjectUpdate) TableName() string {
	return "project_update"
}
