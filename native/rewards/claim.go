package rewards

import (
	"errors"
	"fmt"

	"claimledger/core/amount"
	"claimledger/core/events"
)

// Claim reads and zeroes the ledger entries matching the presented
// credentials, sums the amounts per token and withdraws the sums from custody
// into payout buckets. Verification of the credentials themselves is the
// host's job; the engine refuses anything not issued by the expected issuer
// and anything that does not match the account record. Duplicate account
// credentials are counted once; order ids already claimed are skipped
// silently.
func (e *Engine) Claim(accountCreds []*Credential, orderCreds []*OrderCredential) ([]*Bucket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, ErrNilState
	}
	// Issuer checks run before any mutation so a rejected credential aborts
	// the whole call without touching the ledger.
	for _, cred := range accountCreds {
		if cred != nil && cred.Issuer != e.issuerName {
			return nil, fmt.Errorf("%w: account credential %s", ErrWrongIssuer, cred.ID)
		}
	}
	for _, cred := range orderCreds {
		if cred != nil && cred.Issuer != e.issuerName {
			return nil, fmt.Errorf("%w: order credential for receipt %s", ErrWrongIssuer, cred.Receipt)
		}
	}

	e.state.Begin()
	out, evt, err := e.claim(accountCreds, orderCreds)
	if err != nil {
		e.state.Rollback()
		return nil, err
	}
	if err := e.state.Commit(); err != nil {
		e.state.Rollback()
		return nil, err
	}
	e.emitter.Emit(evt)
	return out, nil
}

func (e *Engine) claim(accountCreds []*Credential, orderCreds []*OrderCredential) ([]*Bucket, events.Event, error) {
	totals := make(map[string]amount.Decimal)
	addTotal := func(token string, amt amount.Decimal) error {
		next, err := totals[token].Add(amt)
		if err != nil {
			return fmt.Errorf("%w: claim total for token %s: %v", ErrOverflow, token, err)
		}
		totals[token] = next
		return nil
	}

	accountsClaimed := 0
	seen := make(map[string]bool)
	for _, cred := range accountCreds {
		if cred == nil || seen[cred.Account] {
			continue
		}
		seen[cred.Account] = true
		row, ok, err := e.state.RewardsGet(cred.Account)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			// No row was ever created for this credential's account.
			continue
		}
		if row.Credential != cred.ID {
			return nil, nil, fmt.Errorf("%w: account %s", ErrWrongCredential, cred.Account)
		}
		if row.Empty() {
			continue
		}
		for _, tokens := range row.Balances {
			for token, amt := range tokens {
				if err := addTotal(token, amt); err != nil {
					return nil, nil, err
				}
			}
		}
		// Reset the whole row in one step; the row stays present but empty.
		row.Balances = make(map[string]map[string]amount.Decimal)
		if err := e.state.RewardsPut(cred.Account, row); err != nil {
			return nil, nil, err
		}
		accountsClaimed++
	}

	ordersClaimed := 0
	for _, cred := range orderCreds {
		if cred == nil {
			continue
		}
		for _, id := range cred.OrderIDs {
			key := OrderKey(cred.Receipt, id)
			amt, ok, err := e.state.OrderGet(key)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				// Already claimed or never granted.
				continue
			}
			if err := addTotal(e.rewardToken, amt); err != nil {
				return nil, nil, err
			}
			if err := e.state.OrderDelete(key); err != nil {
				return nil, nil, err
			}
			ordersClaimed++
		}
	}

	var out []*Bucket
	payout := make(map[string]amount.Decimal, len(totals))
	for _, token := range sortedTokens(totals) {
		total := totals[token]
		if total.Sign() <= 0 {
			continue
		}
		bucket, err := e.vaultDebit(token, total)
		if err != nil {
			if errors.Is(err, ErrVaultNotFound) {
				// A promised total with no vault at all is the same
				// desynchronization as a shortfall.
				e.log.Error("custody desynchronization: claimed token has no vault", "token", token)
				return nil, nil, fmt.Errorf("%w: token %s has no custody vault", ErrCustodyShortfall, token)
			}
			return nil, nil, err
		}
		out = append(out, bucket)
		payout[token] = total
	}
	evt := events.RewardsClaimed{Accounts: accountsClaimed, Orders: ordersClaimed, Totals: payout}
	return out, evt, nil
}
