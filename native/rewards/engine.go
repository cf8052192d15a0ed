package rewards

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"claimledger/core/amount"
	"claimledger/core/events"
	"claimledger/native/rewards/batch"
)

// State describes the functionality the reward engine needs from the
// surrounding state implementation. Begin, Commit and Rollback bound one
// atomic public operation: either every ledger mutation and vault movement
// commits, or none do.
type State interface {
	Begin()
	Commit() error
	Rollback()
	RewardsGet(key string) (*AccountRow, bool, error)
	RewardsPut(key string, row *AccountRow) error
	OrderGet(key string) (amount.Decimal, bool, error)
	OrderPut(key string, amt amount.Decimal) error
	OrderDelete(key string) error
	VaultBalance(token string) (amount.Decimal, bool, error)
	SetVaultBalance(token string, amt amount.Decimal) error
}

// Engine wires the reward ledger business logic with external state, the
// host credential issuer and an event emitter. A single mutex serializes all
// public operations; the host environment is expected to call one operation
// at a time.
type Engine struct {
	mu          sync.Mutex
	state       State
	emitter     events.Emitter
	issuer      CredentialIssuer
	codec       AddressCodec
	log         *slog.Logger
	rewardToken string
	issuerName  string
}

// NewEngine creates a reward engine paying order rewards in rewardToken and
// accepting claim credentials from issuerName. State and issuer are
// configured via SetState and SetIssuer before use.
func NewEngine(rewardToken, issuerName string) *Engine {
	return &Engine{
		emitter:     events.NoopEmitter{},
		codec:       HexCodec{},
		log:         slog.Default(),
		rewardToken: rewardToken,
		issuerName:  issuerName,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetIssuer configures the host credential issuer.
func (e *Engine) SetIssuer(issuer CredentialIssuer) { e.issuer = issuer }

// SetCodec configures the identifier formatting strategy. Passing nil resets
// to the local hex codec.
func (e *Engine) SetCodec(codec AddressCodec) {
	if codec == nil {
		e.codec = HexCodec{}
		return
	}
	e.codec = codec
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger overrides the engine logger. Passing nil resets to the default.
func (e *Engine) SetLogger(log *slog.Logger) {
	if log == nil {
		e.log = slog.Default()
		return
	}
	e.log = log
}

// RewardToken returns the designated token order rewards are paid in.
func (e *Engine) RewardToken() string { return e.rewardToken }

// Grant merges reward batches into the ledger, moving the net required funds
// from the supplied buckets into custody. It returns payout buckets for
// tokens whose net delta was negative (order overwrites) followed by the
// unconsumed remainder of every incoming bucket.
func (e *Engine) Grant(accounts *batch.Accounts, orders *batch.Orders, funds []*Bucket) ([]*Bucket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applyLocked(accounts, orders, true, funds)
}

// GrantAccounts merges a single accounts batch.
func (e *Engine) GrantAccounts(accounts *batch.Accounts, funds []*Bucket) ([]*Bucket, error) {
	return e.Grant(accounts, nil, funds)
}

// GrantOrders merges a single orders batch.
func (e *Engine) GrantOrders(orders *batch.Orders, funds []*Bucket) ([]*Bucket, error) {
	return e.Grant(nil, orders, funds)
}

// Remove unmerges reward batches, clamping at current balances, and returns
// the released custody funds. Over-removal is not an error; the clamped
// amount is what custody releases.
func (e *Engine) Remove(accounts *batch.Accounts, orders *batch.Orders) ([]*Bucket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applyLocked(accounts, orders, false, nil)
}

// RemoveAccounts unmerges a single accounts batch.
func (e *Engine) RemoveAccounts(accounts *batch.Accounts) ([]*Bucket, error) {
	return e.Remove(accounts, nil)
}

// RemoveOrders unmerges a single orders batch.
func (e *Engine) RemoveOrders(orders *batch.Orders) ([]*Bucket, error) {
	return e.Remove(nil, orders)
}

func (e *Engine) applyLocked(accounts *batch.Accounts, orders *batch.Orders, add bool, funds []*Bucket) ([]*Bucket, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	e.state.Begin()
	out, issued, evt, err := e.apply(accounts, orders, add, funds)
	if err != nil {
		e.state.Rollback()
		return nil, err
	}
	if err := e.state.Commit(); err != nil {
		e.state.Rollback()
		return nil, err
	}
	for _, credEvt := range issued {
		e.emitter.Emit(credEvt)
	}
	e.emitter.Emit(evt)
	return out, nil
}

func (e *Engine) apply(accounts *batch.Accounts, orders *batch.Orders, add bool, funds []*Bucket) ([]*Bucket, []events.CredentialIssued, events.Event, error) {
	deltas := make(map[string]amount.Decimal)
	addDelta := func(token string, amt amount.Decimal, positive bool) error {
		var next amount.Decimal
		var err error
		if positive {
			next, err = deltas[token].Add(amt)
		} else {
			next, err = deltas[token].Sub(amt)
		}
		if err != nil {
			return fmt.Errorf("%w: token %s running total: %v", ErrOverflow, token, err)
		}
		deltas[token] = next
		return nil
	}

	var issued []events.CredentialIssued
	accountsTouched := 0
	if accounts != nil {
		for i := range accounts.Accounts {
			acct := &accounts.Accounts[i]
			key, err := e.codec.CredentialKey(acct.Address)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("rewards: derive credential key for %s: %w", acct.Address, err)
			}
			row, ok, err := e.state.RewardsGet(key)
			if err != nil {
				return nil, nil, nil, err
			}
			if !ok {
				if !add {
					// Nothing recorded for this account, nothing to remove.
					continue
				}
				if e.issuer == nil {
					return nil, nil, nil, ErrNilIssuer
				}
				cred, err := e.issuer.Issue(key)
				if errors.Is(err, ErrDepositRefused) {
					e.log.Info("credential deposit refused, skipping account", "account", acct.Address)
					continue
				}
				if err != nil {
					return nil, nil, nil, fmt.Errorf("rewards: issue credential for %s: %w", acct.Address, err)
				}
				row = NewAccountRow(acct.Address)
				row.Credential = cred.ID
				issued = append(issued, events.CredentialIssued{Account: acct.Address, Credential: cred.ID.String()})
			}
			for _, entry := range acct.Entries {
				applied, err := applyAccountEntry(row, entry.Category, entry.Token, entry.Amount, add)
				if err != nil {
					return nil, nil, nil, err
				}
				if err := addDelta(entry.Token, applied, add); err != nil {
					return nil, nil, nil, err
				}
			}
			if err := e.state.RewardsPut(key, row); err != nil {
				return nil, nil, nil, err
			}
			accountsTouched++
		}
	}

	ordersTouched := 0
	if orders != nil {
		for i := range orders.Pairs {
			pair := &orders.Pairs[i]
			for _, reward := range pair.Orders {
				key := OrderKey(pair.Receipt, reward.ID)
				old, ok, err := e.state.OrderGet(key)
				if err != nil {
					return nil, nil, nil, err
				}
				if add {
					if reward.Amount.Sign() < 0 {
						return nil, nil, nil, fmt.Errorf("%w: order %s", ErrNegativeAmount, key)
					}
					// An order entry exists only while a non-zero amount is
					// unclaimed; setting to zero removes it.
					if reward.Amount.IsZero() {
						if ok {
							if err := e.state.OrderDelete(key); err != nil {
								return nil, nil, nil, err
							}
						}
					} else if err := e.state.OrderPut(key, reward.Amount); err != nil {
						return nil, nil, nil, err
					}
					// Re-granting an order is a set: custody tracks the net
					// balance change, not the raw amount.
					diff, err := reward.Amount.Sub(old)
					if err != nil {
						return nil, nil, nil, fmt.Errorf("%w: order %s: %v", ErrOverflow, key, err)
					}
					if err := addDelta(e.rewardToken, diff, true); err != nil {
						return nil, nil, nil, err
					}
					ordersTouched++
				} else if ok {
					if err := e.state.OrderDelete(key); err != nil {
						return nil, nil, nil, err
					}
					if err := addDelta(e.rewardToken, old, false); err != nil {
						return nil, nil, nil, err
					}
					ordersTouched++
				}
			}
		}
	}

	out, err := e.reconcile(deltas, funds)
	if err != nil {
		return nil, nil, nil, err
	}

	totals := make(map[string]amount.Decimal, len(deltas))
	for token, delta := range deltas {
		if !delta.IsZero() {
			totals[token] = delta
		}
	}
	var evt events.Event
	if add {
		evt = events.RewardsGranted{Accounts: accountsTouched, Orders: ordersTouched, Totals: totals}
	} else {
		evt = events.RewardsRemoved{Accounts: accountsTouched, Orders: ordersTouched, Totals: totals}
	}
	return out, issued, evt, nil
}

// reconcile moves funds to match the net per-token ledger deltas: positive
// deltas are taken from the supplied buckets into custody, negative deltas
// are released from custody. Funds sufficiency is verified per token before
// anything is committed; the staged state is rolled back on any failure.
func (e *Engine) reconcile(deltas map[string]amount.Decimal, funds []*Bucket) ([]*Bucket, error) {
	byToken := make(map[string]*Bucket)
	for _, bucket := range funds {
		if bucket == nil {
			continue
		}
		if existing, ok := byToken[bucket.Token()]; ok {
			if err := existing.Put(bucket); err != nil {
				return nil, err
			}
		} else {
			byToken[bucket.Token()] = bucket
		}
	}

	var out []*Bucket
	for _, token := range sortedTokens(deltas) {
		delta := deltas[token]
		switch {
		case delta.Sign() > 0:
			bucket := byToken[token]
			held := amount.Zero()
			if bucket != nil {
				held = bucket.Amount()
			}
			if held.Cmp(delta) < 0 {
				return nil, fmt.Errorf("%w: token %s requires %s, supplied %s",
					ErrInsufficientFunds, token, delta, held)
			}
			taken, err := bucket.Take(delta)
			if err != nil {
				return nil, err
			}
			if err := e.vaultCredit(token, taken.Amount()); err != nil {
				return nil, err
			}
		case delta.Sign() < 0:
			released, err := e.vaultDebit(token, delta.Neg())
			if err != nil {
				return nil, err
			}
			out = append(out, released)
		}
	}

	remainders := make([]string, 0, len(byToken))
	for token := range byToken {
		remainders = append(remainders, token)
	}
	sort.Strings(remainders)
	for _, token := range remainders {
		if bucket := byToken[token]; !bucket.IsEmpty() {
			out = append(out, bucket)
		}
	}
	return out, nil
}

func (e *Engine) vaultCredit(token string, amt amount.Decimal) error {
	balance, _, err := e.state.VaultBalance(token)
	if err != nil {
		return err
	}
	next, err := balance.Add(amt)
	if err != nil {
		return fmt.Errorf("%w: custody for token %s: %v", ErrOverflow, token, err)
	}
	return e.state.SetVaultBalance(token, next)
}

func (e *Engine) vaultDebit(token string, amt amount.Decimal) (*Bucket, error) {
	balance, ok, err := e.state.VaultBalance(token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: token %s", ErrVaultNotFound, token)
	}
	if balance.Cmp(amt) < 0 {
		e.log.Error("custody desynchronization: vault holds less than the ledger promised",
			"token", token, "custody", balance.String(), "required", amt.String())
		return nil, fmt.Errorf("%w: token %s requires %s, custody holds %s",
			ErrCustodyShortfall, token, amt, balance)
	}
	next, err := balance.Sub(amt)
	if err != nil {
		return nil, fmt.Errorf("%w: custody for token %s: %v", ErrOverflow, token, err)
	}
	if err := e.state.SetVaultBalance(token, next); err != nil {
		return nil, err
	}
	return NewBucket(token, amt)
}

func sortedTokens(deltas map[string]amount.Decimal) []string {
	tokens := make([]string, 0, len(deltas))
	for token := range deltas {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}
