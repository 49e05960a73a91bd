package xcm

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MessageKind 发往目标链的消息类型
type MessageKind string

const (
	// KindReadinessCheck 查询持仓和接收模块
	KindReadinessCheck MessageKind = "readiness_check"
	// KindMigration 迁移一批代币
	KindMigration MessageKind = "migration"
)

// Message 发往目标链的消息
type Message struct {
	ID          uuid.UUID   `json:"id"`
	Destination uint32      `json:"destination"` // 目标链 para id
	Kind        MessageKind `json:"kind"`
	ProjectID   uint32      `json:"project_id"`

	HoldingQueryID uint64 `json:"holding_query_id,omitempty"`
	PalletQueryID  uint64 `json:"pallet_query_id,omitempty"`
	ModuleName     string `json:"module_name,omitempty"` // 查询的接收模块名

	QueryID uint64 `json:"query_id,omitempty"` // 迁移结果回报使用的查询
	Payload []byte `json:"payload,omitempty"`  // EncodeMigrations 的结果
}

// NewReadinessCheck 构造迁移准备检查消息
func NewReadinessCheck(destination, projectID uint32, holdingQueryID, palletQueryID uint64, moduleName string) Message {
	return Message{
		ID:             uuid.New(),
		Destination:    destination,
		Kind:           KindReadinessCheck,
		ProjectID:      projectID,
		HoldingQueryID: holdingQueryID,
		PalletQueryID:  palletQueryID,
		ModuleName:     moduleName,
	}
}

// NewMigration 构造迁移消息
func NewMigration(destination, projectID uint32, queryID uint64, payload []byte) Message {
	return Message{
		ID:          uuid.New(),
		Destination: destination,
		Kind:        KindMigration,
		ProjectID:   projectID,
		QueryID:     queryID,
		Payload:     payload,
	}
}

// ResponseKind 目标链响应类型
type ResponseKind string

const (
	ResponseAssets         ResponseKind = "assets"
	ResponsePalletsInfo    ResponseKind = "pallets_info"
	ResponseDispatchResult ResponseKind = "dispatch_result"
)

// Asset 目标链报告的持仓
type Asset struct {
	ID     string          `json:"id"`
	Origin uint32          `json:"origin"` // 资产所在链
	Amount decimal.Decimal `json:"amount"`
}

// PalletInfo 目标链报告的模块信息
type PalletInfo struct {
	Index      uint8  `json:"index"`
	Name       string `json:"name"`
	ModuleName string `json:"module_name"`
	Major      uint32 `json:"major"`
	Minor      uint32 `json:"minor"`
	Patch      uint32 `json:"patch"`
}

// Response 目标链对查询的响应
type Response struct {
	QueryID uint64       `json:"query_id"`
	Origin  uint32       `json:"origin"` // 响应来源 para id
	Kind    ResponseKind `json:"kind"`

	Assets  []Asset      `json:"assets,omitempty"`
	Pallets []PalletInfo `json:"pallets,omitempty"`

	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}
