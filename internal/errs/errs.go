package errs

import (
	"errors"
	"fmt"
)

// 错误分类，业务错误统一通过 %w 包装这些哨兵错误
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrValidity          = errors.New("validity error")
	ErrBadMath           = errors.New("bad math")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrTransportFailure  = errors.New("transport failure")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrFrozen            = errors.New("project frozen")
)

// New 创建带分类的错误
func New(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Kind 返回错误所属的分类，未知错误返回 nil
func Kind(err error) error {
	for _, kind := range []error{
		ErrNotFound,
		ErrInvalidState,
		ErrValidity,
		ErrBadMath,
		ErrInsufficientFunds,
		ErrCapacityExceeded,
		ErrTransportFailure,
		ErrUnauthorized,
		ErrFrozen,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
