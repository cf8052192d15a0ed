package rewards

import (
	"fmt"

	"claimledger/core/amount"
)

// Bucket is a transient funds container handed across the component boundary:
// an amount of a single token. The engine takes required funds out of
// incoming buckets and hands payouts and remainders back in outgoing ones;
// final delivery is the host's responsibility.
type Bucket struct {
	token  string
	amount amount.Decimal
}

// NewBucket creates a bucket holding amt of token. Amounts are never
// negative.
func NewBucket(token string, amt amount.Decimal) (*Bucket, error) {
	if amt.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	return &Bucket{token: token, amount: amt}, nil
}

// Token returns the token the bucket holds.
func (b *Bucket) Token() string { return b.token }

// Amount returns the current holdings.
func (b *Bucket) Amount() amount.Decimal { return b.amount }

// IsEmpty reports whether the bucket holds nothing.
func (b *Bucket) IsEmpty() bool { return b.amount.IsZero() }

// Take splits amt out of the bucket into a new bucket of the same token. It
// fails when amt exceeds the current holdings.
func (b *Bucket) Take(amt amount.Decimal) (*Bucket, error) {
	if amt.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	if b.amount.Cmp(amt) < 0 {
		return nil, fmt.Errorf("%w: token %s holds %s, take of %s requested",
			ErrInsufficientFunds, b.token, b.amount, amt)
	}
	remaining, err := b.amount.Sub(amt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	b.amount = remaining
	return &Bucket{token: b.token, amount: amt}, nil
}

// Put merges other into the bucket. The tokens must match.
func (b *Bucket) Put(other *Bucket) error {
	if other == nil {
		return nil
	}
	if other.token != b.token {
		return fmt.Errorf("%w: bucket holds %s, got %s", ErrTokenMismatch, b.token, other.token)
	}
	sum, err := b.amount.Add(other.amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	b.amount = sum
	other.amount = amount.Zero()
	return nil
}
