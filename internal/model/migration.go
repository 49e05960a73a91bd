package model

import (
	"github.com/shopspring/decimal"
)

// MigrationOrigin 迁移记录的来源
type MigrationOrigin struct {
	User              string            `json:"user"`
	ID                uint32            `json:"id"`
	ParticipationType ParticipationType `json:"participation_type"`
}

// MigrationInfo 迁移到目标链的代币数量和释放期
type MigrationInfo struct {
	CtAmount    decimal.Decimal `json:"ct_amount"`
	VestingTime uint64          `json:"vesting_time"`
}

// Migration 单条迁移
type Migration struct {
	Origin MigrationOrigin `json:"origin"`
	Info   MigrationInfo   `json:"info"`
}

// Migrations 迁移列表
type Migrations []Migration

// TotalCtAmount 迁移的代币总量
func (m Migrations) TotalCtAmount() decimal.Decimal {
	total := decimal.Zero
	for _, migration := range m {
		total = total.Add(migration.Info.CtAmount)
	}
	return total
}

// Origins 迁移来源列表
func (m Migrations) Origins() []MigrationOrigin {
	origins := make([]MigrationOrigin, 0, len(m))
	for _, migration := range m {
		origins = append(origins, migration.Origin)
	}
	return origins
}

// UnconfirmedMigration 已发送待确认的迁移批次
type UnconfirmedMigration struct {
	QueryID   uint64            `json:"query_id" gorm:"primaryKey;autoIncrement:false"`
	ProjectID uint32            `json:"project_id" gorm:"index"`
	User      string            `json:"user"`
	Origins   []MigrationOrigin `json:"origins" gorm:"serializer:json"`
}

// TableName 自定义表名
func (UnconfirmedMigration) TableName() string {
	return "unconfirmed_migration"
}

// QueryKind 跨链查询类型
type QueryKind string

const (
	QueryKindHolding   QueryKind = "holding"
	QueryKindPallet    QueryKind = "pallet"
	QueryKindMigration QueryKind = "migration"
)

// ActiveQuery 已注册等待响应的跨链查询
type ActiveQuery struct {
	QueryID   uint64    `json:"query_id" gorm:"primaryKey;autoIncrement:false"`
	ProjectID uint32    `json:"project_id" gorm:"index"`
	Kind      QueryKind `json:"kind"`
	ExpiresAt uint64    `json:"expires_at"`
}

// TableName 自定义表名
func (ActiveQuery) TableName() string {
	return "active_query"
}

// CheckOutcome 迁移准备检查结果
type CheckOutcome string

const (
	CheckAwaitingResponse CheckOutcome = "awaiting_response"
	CheckPassed           CheckOutcome = "passed"
	CheckFailed           CheckOutcome = "failed"
)

// QueryCheck 单项检查
type QueryCheck struct {
	QueryID uint64       `json:"query_id"`
	Outcome CheckOutcome `json:"outcome"`
}

// MigrationReadinessCheck 迁移准备检查
type MigrationReadinessCheck struct {
	HoldingCheck QueryCheck `json:"holding_check"`
	PalletCheck  QueryCheck `json:"pallet_check"`
}

// IsReady 两项检查都通过
func (c *MigrationReadinessCheck) IsReady() bool {
	return c != nil && c.HoldingCheck.Outcome == CheckPassed && c.PalletCheck.Outcome == CheckPassed
}

// BothFailed 两项检查都失败
func (c *MigrationReadinessCheck) BothFailed() bool {
	return c != nil && c.HoldingCheck.Outcome == CheckFailed && c.PalletCheck.Outcome == CheckFailed
}

// Retryable 没有等待中的检查且至少一项失败，包括查询超时
func (c *MigrationReadinessCheck) Retryable() bool {
	if c == nil || c.HoldingCheck.Outcome == CheckAwaitingResponse || c.PalletCheck.Outcome == CheckAwaitingResponse {
		return false
	}
	return c.HoldingCheck.Outcome == CheckFailed || c.PalletCheck.Outcome == CheckFailed
}
