package model

import (
	"github.com/shopspring/decimal"
)

// Bucket 拍卖价格阶梯的当前档位
type Bucket struct {
	ProjectID    uint32          `json:"project_id" gorm:"primaryKey;autoIncrement:false"`
	AmountLeft   decimal.Decimal `json:"amount_left" gorm:"type:numeric"`
	CurrentPrice decimal.Decimal `json:"current_price" gorm:"type:numeric"`
	InitialPrice decimal.Decimal `json:"initial_price" gorm:"type:numeric"`
	DeltaPrice   decimal.Decimal `json:"delta_price" gorm:"type:numeric"`
	DeltaAmount  decimal.Decimal `json:"delta_amount" gorm:"type:numeric"`
}

// TableName 自定义表名
func (Bucket) TableName() string {
	return "bucket"
}

// Update 在当前档位成交 amount，档位耗尽时返回下一档
func (b Bucket) Update(amount decimal.Decimal) Bucket {
	b.AmountLeft = b.AmountLeft.Sub(amount)
	if !b.AmountLeft.IsPositive() {
		return b.Next()
	}
	return b
}

// Next 下一档位
func (b Bucket) Next() Bucket {
	b.AmountLeft = b.DeltaAmount
	b.CurrentPrice = b.CurrentPrice.Add(b.DeltaPrice)
	return b
}

// IsFirst 是否仍在第一档
func (b Bucket) IsFirst() bool {
	return b.CurrentPrice.Equal(b.InitialPrice)
}
