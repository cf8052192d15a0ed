package rewards

import (
	"fmt"
	"strconv"
	"strings"

	"claimledger/core/amount"
)

// applyAccountEntry merges one (category, token) delta into a ledger row and
// returns the amount actually applied. Adds are checked and fail on
// overflow. Removes clamp at the current balance so the ledger never goes
// negative; the clamped value, not the requested one, is returned so vault
// reconciliation stays in step with the ledger. Zero token entries and empty
// category maps are pruned.
func applyAccountEntry(row *AccountRow, category, token string, amt amount.Decimal, add bool) (amount.Decimal, error) {
	if amt.Sign() < 0 {
		return amount.Decimal{}, fmt.Errorf("%w: account %s category %q token %s",
			ErrNegativeAmount, row.Address, category, token)
	}
	tokens := row.Balances[category]
	if tokens == nil {
		tokens = make(map[string]amount.Decimal)
		row.Balances[category] = tokens
	}
	current := tokens[token]

	applied := amt
	var next amount.Decimal
	var err error
	if add {
		next, err = current.Add(amt)
		if err != nil {
			return amount.Decimal{}, fmt.Errorf("%w: account %s category %q token %s: %v",
				ErrOverflow, row.Address, category, token, err)
		}
	} else {
		applied = current.Min(amt)
		next, err = current.Sub(applied)
		if err != nil {
			return amount.Decimal{}, fmt.Errorf("%w: account %s category %q token %s: %v",
				ErrOverflow, row.Address, category, token, err)
		}
	}

	if next.Sign() > 0 {
		tokens[token] = next
	} else {
		delete(tokens, token)
		if len(tokens) == 0 {
			delete(row.Balances, category)
		}
	}
	return applied, nil
}

// OrderKey builds the composite order-ledger key from a receipt-series
// identifier and an order number.
func OrderKey(receipt string, orderID uint64) string {
	var b strings.Builder
	b.WriteString(receipt)
	b.WriteByte('#')
	b.WriteString(strconv.FormatUint(orderID, 10))
	b.WriteByte('#')
	return b.String()
}
