package ledger

import (
	"fmt"

	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/model"
	"github.com/blues/launchpad/internal/store"
	"github.com/shopspring/decimal"
)

// Precision 金额精度要求
type Precision int

const (
	// Exact 余额不足时失败
	Exact Precision = iota
	// BestEffort 余额不足时尽量划转
	BestEffort
)

// Preservation 账户保留策略
type Preservation int

const (
	// Expendable 允许账户余额低于最小余额
	Expendable Preservation = iota
	// Preserve 可用余额不得低于资产的最小余额
	Preserve
)

// 冻结原因
const (
	ReasonEvaluation    = "evaluation"
	ReasonParticipation = "participation"
)

// HoldReason 项目相关的冻结原因
func HoldReason(reason string, projectID uint32) string {
	return fmt.Sprintf("%s/%d", reason, projectID)
}

// Ledger 资产账本，作用于调用方传入的事务存储
type Ledger struct {
	store store.Store
}

// New 创建资产账本
func New(st store.Store) *Ledger {
	return &Ledger{store: st}
}

// CreateAsset 登记资产
func (l *Ledger) CreateAsset(id string, decimals uint8, minBalance decimal.Decimal, admin string) error {
	if _, err := l.store.GetAsset(id); err == nil {
		return errs.New(errs.ErrInvalidState, "资产已存在: %s", id)
	}
	return l.store.SaveAsset(&model.Asset{ID: id, Decimals: decimals, MinBalance: minBalance, Admin: admin})
}

// Free 可用余额
func (l *Ledger) Free(asset, account string) (decimal.Decimal, error) {
	return l.store.GetBalance(asset, account, "")
}

// Held 某原因下的冻结余额
func (l *Ledger) Held(asset, reason, account string) (decimal.Decimal, error) {
	return l.store.GetBalance(asset, account, reason)
}

// Mint 铸造资产
func (l *Ledger) Mint(asset, to string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errs.New(errs.ErrBadMath, "铸造数量为负: %s", amount)
	}
	if _, err := l.store.GetAsset(asset); err != nil {
		return err
	}
	return l.adjust(asset, to, "", amount)
}

// Hold 将可用余额冻结到 reason 下，返回实际冻结数量
func (l *Ledger) Hold(asset, reason, account string, amount decimal.Decimal, precision Precision) (decimal.Decimal, error) {
	amount, err := l.withdrawable(asset, account, amount, precision, Expendable)
	if err != nil {
		return decimal.Zero, err
	}
	if err := l.adjust(asset, account, "", amount.Neg()); err != nil {
		return decimal.Zero, err
	}
	if err := l.adjust(asset, account, reason, amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// Release 解冻 reason 下的余额，返回实际解冻数量
func (l *Ledger) Release(asset, reason, account string, amount decimal.Decimal, precision Precision) (decimal.Decimal, error) {
	amount, err := l.heldAmount(asset, reason, account, amount, precision)
	if err != nil {
		return decimal.Zero, err
	}
	if err := l.adjust(asset, account, reason, amount.Neg()); err != nil {
		return decimal.Zero, err
	}
	if err := l.adjust(asset, account, "", amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// TransferOnHold 从 from 的冻结余额直接划转到 to 的可用余额
func (l *Ledger) TransferOnHold(asset, reason, from, to string, amount decimal.Decimal, precision Precision) (decimal.Decimal, error) {
	amount, err := l.heldAmount(asset, reason, from, amount, precision)
	if err != nil {
		return decimal.Zero, err
	}
	if err := l.adjust(asset, from, reason, amount.Neg()); err != nil {
		return decimal.Zero, err
	}
	if err := l.adjust(asset, to, "", amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// Transfer 可用余额划转
func (l *Ledger) Transfer(asset, from, to string, amount decimal.Decimal, preservation Preservation) error {
	amount, err := l.withdrawable(asset, from, amount, Exact, preservation)
	if err != nil {
		return err
	}
	if err := l.adjust(asset, from, "", amount.Neg()); err != nil {
		return err
	}
	return l.adjust(asset, to, "", amount)
}

func (l *Ledger) withdrawable(asset, account string, amount decimal.Decimal, precision Precision, preservation Preservation) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, errs.New(errs.ErrBadMath, "数量为负: %s", amount)
	}
	free, err := l.store.GetBalance(asset, account, "")
	if err != nil {
		return decimal.Zero, err
	}

	available := free
	if preservation == Preserve {
		meta, err := l.store.GetAsset(asset)
		if err != nil {
			return decimal.Zero, err
		}
		available = decimal.Max(decimal.Zero, free.Sub(meta.MinBalance))
	}

	if available.LessThan(amount) {
		if precision == Exact {
			return decimal.Zero, errs.New(errs.ErrInsufficientFunds, "%s 的 %s 余额不足: 需要 %s, 可用 %s", account, asset, amount, available)
		}
		return available, nil
	}
	return amount, nil
}

func (l *Ledger) heldAmount(asset, reason, account string, amount decimal.Decimal, precision Precision) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, errs.New(errs.ErrBadMath, "数量为负: %s", amount)
	}
	held, err := l.store.GetBalance(asset, account, reason)
	if err != nil {
		return decimal.Zero, err
	}
	if held.LessThan(amount) {
		if precision == Exact {
			return decimal.Zero, errs.New(errs.ErrInsufficientFunds, "%s 在 %s 下冻结的 %s 不足: 需要 %s, 冻结 %s", account, reason, asset, amount, held)
		}
		return held, nil
	}
	return amount, nil
}

func (l *Ledger) adjust(asset, account, reason string, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	current, err := l.store.GetBalance(asset, account, reason)
	if err != nil {
		return err
	}
	next := current.Add(delta)
	if next.IsNegative() {
		return errs.New(errs.ErrInsufficientFunds, "%s 的 %s 余额不足", account, asset)
	}
	return l.store.SetBalance(asset, account, reason, next)
}
