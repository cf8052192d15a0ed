package rewards

import "errors"

var (
	ErrNilState          = errors.New("rewards: state not configured")
	ErrNilIssuer         = errors.New("rewards: credential issuer not configured")
	ErrOverflow          = errors.New("rewards: ledger amount overflow")
	ErrNegativeAmount    = errors.New("rewards: amount must not be negative")
	ErrTokenMismatch     = errors.New("rewards: bucket token mismatch")
	ErrInsufficientFunds = errors.New("rewards: insufficient funds supplied")
	ErrCustodyShortfall  = errors.New("rewards: custody balance below ledger liability")
	ErrVaultNotFound     = errors.New("rewards: no custody vault for token")
	ErrWrongIssuer       = errors.New("rewards: credential issued by unexpected issuer")
	ErrWrongCredential   = errors.New("rewards: credential does not match account record")
	ErrDepositRefused    = errors.New("rewards: credential deposit refused")
)
