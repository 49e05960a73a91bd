package model

import (
	"github.com/shopspring/decimal"
)

// Balance 账户余额，Reason 为空表示可用余额，否则为该原因下的冻结余额
type Balance struct {
	Asset   string          `json:"asset" gorm:"primaryKey"`
	Account string          `json:"account" gorm:"primaryKey"`
	Reason  string          `json:"reason" gorm:"primaryKey"`
	Amount  decimal.Decimal `json:"amount" gorm:"type:numeric"`
}

// TableName 自定义表名
func (Balance) TableName() string {
	return "balance"
}

// Asset 资产登记
type Asset struct {
	ID         string          `json:"id" gorm:"primaryKey"`
	Decimals   uint8           `json:"decimals"`
	MinBalance decimal.Decimal `json:"min_balance" gorm:"type:numeric"`
	Admin      string          `json:"admin"`
}

// TableName 自定义表名
func (Asset) TableName() string {
	return "asset"
}

// Counter 自增计数器
type Counter struct {
	Name  string `json:"name" gorm:"primaryKey"`
	Value uint64 `json:"value"`
}

// TableName 自定义表名
func (Counter) TableName() string {
	return "counter"
}
