package oracle

import (
	"sync"

	"github.com/blues/launchpad/internal/errs"
	"github.com/shopspring/decimal"
)

// PriceProvider 资产的USD价格来源，价格按整币计
type PriceProvider interface {
	GetPrice(asset string) (decimal.Decimal, bool)
}

// StaticProvider 固定价格表
type StaticProvider struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewStaticProvider 创建固定价格表
func NewStaticProvider(prices map[string]decimal.Decimal) *StaticProvider {
	p := &StaticProvider{prices: make(map[string]decimal.Decimal, len(prices))}
	for asset, price := range prices {
		p.prices[asset] = price
	}
	return p
}

// GetPrice 获取价格
func (p *StaticProvider) GetPrice(asset string) (decimal.Decimal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	price, ok := p.prices[asset]
	return price, ok
}

// SetPrice 更新价格
func (p *StaticProvider) SetPrice(asset string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[asset] = price
}

// Client 带精度换算的价格客户端
type Client struct {
	provider    PriceProvider
	decimals    map[string]uint8
	usdDecimals uint8
}

// NewClient 创建价格客户端，decimals 为各资产的精度
func NewClient(provider PriceProvider, decimals map[string]uint8, usdDecimals uint8) *Client {
	d := make(map[string]uint8, len(decimals))
	for asset, dec := range decimals {
		d[asset] = dec
	}
	return &Client{provider: provider, decimals: d, usdDecimals: usdDecimals}
}

// Price 资产的USD价格
func (c *Client) Price(asset string) (decimal.Decimal, error) {
	price, ok := c.provider.GetPrice(asset)
	if !ok {
		return decimal.Zero, errs.New(errs.ErrNotFound, "价格不存在: %s", asset)
	}
	if !price.IsPositive() {
		return decimal.Zero, errs.New(errs.ErrBadMath, "价格无效: %s=%s", asset, price)
	}
	return price, nil
}

// Decimals 资产精度
func (c *Client) Decimals(asset string) (uint8, error) {
	dec, ok := c.decimals[asset]
	if !ok {
		return 0, errs.New(errs.ErrNotFound, "资产精度未登记: %s", asset)
	}
	return dec, nil
}

// UsdDecimals USD 金额精度
func (c *Client) UsdDecimals() uint8 {
	return c.usdDecimals
}

// UsdToAsset 将USD金额换算为资产数量，按资产精度向下取整
func (c *Client) UsdToAsset(asset string, usd decimal.Decimal) (decimal.Decimal, error) {
	price, err := c.Price(asset)
	if err != nil {
		return decimal.Zero, err
	}
	dec, err := c.Decimals(asset)
	if err != nil {
		return decimal.Zero, err
	}
	return ConvertFromUsd(usd, price, dec)
}

// AssetToUsd 将资产数量换算为USD金额，按USD精度向下取整
func (c *Client) AssetToUsd(asset string, amount decimal.Decimal) (decimal.Decimal, error) {
	price, err := c.Price(asset)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(price).Truncate(int32(c.usdDecimals)), nil
}

// ConvertFromUsd usd / price，按 decimals 向下取整
func ConvertFromUsd(usd, price decimal.Decimal, decimals uint8) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, errs.New(errs.ErrBadMath, "价格无效: %s", price)
	}
	return usd.DivRound(price, int32(decimals)+8).Truncate(int32(decimals)), nil
}
