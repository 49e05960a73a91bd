package handler

import (
	"github.com/blues/launchpad/internal/model"
	"github.com/shopspring/decimal"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 项目相关请求模型

// ProjectIDResponse 创建项目响应
type ProjectIDResponse struct {
	ProjectID uint32 `json:"project_id"`
}

// DecisionRequest 发行方决定
type DecisionRequest struct {
	Decision model.FundingDecision `json:"decision" binding:"required"`
}

// PendingUpdateResponse 下一次自动转换
type PendingUpdateResponse struct {
	Block  uint64               `json:"block"`
	Update *model.ProjectUpdate `json:"update"`
}

// 参与相关请求模型

// EvaluateRequest 评估请求
type EvaluateRequest struct {
	UsdAmount decimal.Decimal `json:"usd_amount"`
}

// ParticipateRequest 出价或购买请求
type ParticipateRequest struct {
	CtAmount   decimal.Decimal            `json:"ct_amount"`
	Multiplier uint8                      `json:"multiplier" binding:"required"`
	Asset      model.AcceptedFundingAsset `json:"asset" binding:"required"`
}

// ParticipationIDResponse 新建参与记录的ID
type ParticipationIDResponse struct {
	IDs []uint32 `json:"ids"`
}

// 迁移相关请求模型

// DestinationRequest 目标链设置
type DestinationRequest struct {
	ParaID uint32 `json:"para_id" binding:"required"`
}

// ChannelRequest 通道打开通知
type ChannelRequest struct {
	Direction string `json:"direction" binding:"required"`
}

// MigrateResponse 单个参与者的迁移结果
type MigrateResponse struct {
	Participant string `json:"participant"`
	Batches     int    `json:"batches"`
}

// BalanceResponse 余额查询结果
type BalanceResponse struct {
	Asset   string          `json:"asset"`
	Account string          `json:"account"`
	Reason  string          `json:"reason,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
}
