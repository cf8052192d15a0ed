// Package batch decodes the compact reward-batch dialect submitted by the
// administrator. The dialect is JSON with single quotes tolerated; numbers may
// appear as native literals or as strings. Parsing is all-or-nothing: any
// unknown field, wrong shape or unparseable number fails the whole parse.
package batch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"claimledger/core/amount"
)

// ErrMalformed wraps every parse failure produced by this package.
var ErrMalformed = errors.New("batch: malformed reward data")

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

func parseRoot(text string) (gjson.Result, error) {
	normalized := strings.ReplaceAll(text, "'", "\"")
	if !gjson.Valid(normalized) {
		return gjson.Result{}, malformed("invalid structure")
	}
	return gjson.Parse(normalized), nil
}

// ParseAccounts decodes an accounts batch. The top level is an object with an
// optional "categories" dictionary (id to category name), an optional
// "tokens" dictionary (id to token address) and an "accounts" list. When a
// dictionary is declared its references must be ids (native numbers or
// numeric strings); without a dictionary, references are direct name strings.
func ParseAccounts(text string) (*Accounts, error) {
	root, err := parseRoot(text)
	if err != nil {
		return nil, err
	}
	if !root.IsObject() {
		return nil, malformed("accounts batch must be an object")
	}

	var (
		categories map[uint64]string
		tokens     map[uint64]string
		accounts   gjson.Result
		seen       bool
	)
	root.ForEach(func(key, value gjson.Result) bool {
		switch key.Str {
		case "categories":
			categories, err = parseDict(value, "categories")
		case "tokens":
			tokens, err = parseDict(value, "tokens")
		case "accounts":
			accounts, seen = value, true
		default:
			err = malformed("unknown field %q in accounts batch", key.Str)
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	if !seen {
		return nil, malformed("accounts batch missing %q field", "accounts")
	}
	if !accounts.IsArray() {
		return nil, malformed("%q must be an array", "accounts")
	}

	out := &Accounts{}
	accounts.ForEach(func(_, value gjson.Result) bool {
		var acct AccountRewards
		acct, err = parseAccountRewards(value, categories, tokens)
		if err != nil {
			return false
		}
		out.Accounts = append(out.Accounts, acct)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseDict(value gjson.Result, field string) (map[uint64]string, error) {
	if !value.IsObject() {
		return nil, malformed("%q must be an object", field)
	}
	dict := make(map[uint64]string)
	var err error
	value.ForEach(func(key, entry gjson.Result) bool {
		var id uint64
		id, err = strconv.ParseUint(key.Str, 10, 64)
		if err != nil {
			err = malformed("%q key %q is not an unsigned integer", field, key.Str)
			return false
		}
		if entry.Type != gjson.String {
			err = malformed("%q entry %d must be a string", field, id)
			return false
		}
		if _, dup := dict[id]; dup {
			err = malformed("%q declares id %d twice", field, id)
			return false
		}
		dict[id] = entry.Str
		return true
	})
	if err != nil {
		return nil, err
	}
	return dict, nil
}

func parseAccountRewards(value gjson.Result, categories, tokens map[uint64]string) (AccountRewards, error) {
	var acct AccountRewards
	if !value.IsObject() {
		return acct, malformed("account rewards entry must be an object")
	}
	var (
		rewards gjson.Result
		seen    bool
		err     error
	)
	value.ForEach(func(key, field gjson.Result) bool {
		switch key.Str {
		case "account_address":
			if field.Type != gjson.String {
				err = malformed("%q must be a string", "account_address")
				return false
			}
			acct.Address = field.Str
		case "rewards":
			rewards, seen = field, true
		default:
			err = malformed("unknown field %q in account rewards entry", key.Str)
		}
		return err == nil
	})
	if err != nil {
		return acct, err
	}
	if acct.Address == "" {
		return acct, malformed("account rewards entry missing %q", "account_address")
	}
	if !seen || !rewards.IsArray() {
		return acct, malformed("account %q rewards must be an array", acct.Address)
	}

	rewards.ForEach(func(_, categoryEntry gjson.Result) bool {
		if !categoryEntry.IsArray() {
			err = malformed("account %q reward entry must be an array", acct.Address)
			return false
		}
		parts := categoryEntry.Array()
		if len(parts) != 2 {
			err = malformed("account %q reward entry must be a [category, entries] pair", acct.Address)
			return false
		}
		var category string
		category, err = resolveRef(parts[0], categories, "category")
		if err != nil {
			return false
		}
		if !parts[1].IsArray() {
			err = malformed("account %q category %q entries must be an array", acct.Address, category)
			return false
		}
		parts[1].ForEach(func(_, tokenEntry gjson.Result) bool {
			if !tokenEntry.IsArray() {
				err = malformed("account %q token entry must be an array", acct.Address)
				return false
			}
			pair := tokenEntry.Array()
			if len(pair) != 2 {
				err = malformed("account %q token entry must be a [token, amount] pair", acct.Address)
				return false
			}
			var token string
			token, err = resolveRef(pair[0], tokens, "token")
			if err != nil {
				return false
			}
			var amt amount.Decimal
			amt, err = decimalValue(pair[1], "reward amount")
			if err != nil {
				return false
			}
			acct.Entries = append(acct.Entries, Entry{Category: category, Token: token, Amount: amt})
			return true
		})
		return err == nil
	})
	if err != nil {
		return acct, err
	}
	return acct, nil
}

func resolveRef(value gjson.Result, dict map[uint64]string, what string) (string, error) {
	if dict == nil {
		if value.Type != gjson.String {
			return "", malformed("%s reference must be a name string when no dictionary is declared", what)
		}
		return value.Str, nil
	}
	id, err := uintValue(value, what+" id")
	if err != nil {
		return "", err
	}
	name, ok := dict[id]
	if !ok {
		return "", malformed("%s id %d was never declared in this batch", what, id)
	}
	return name, nil
}

// ParseOrders decodes an orders batch: a top-level array of receipt-series
// objects, each with a "pair_receipt_address" and a "pair_rewards" list of
// [order id, amount] pairs.
func ParseOrders(text string) (*Orders, error) {
	root, err := parseRoot(text)
	if err != nil {
		return nil, err
	}
	if !root.IsArray() {
		return nil, malformed("orders batch must be an array")
	}
	out := &Orders{}
	root.ForEach(func(_, value gjson.Result) bool {
		var pair PairOrders
		pair, err = parsePairOrders(value)
		if err != nil {
			return false
		}
		out.Pairs = append(out.Pairs, pair)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parsePairOrders(value gjson.Result) (PairOrders, error) {
	var pair PairOrders
	if !value.IsObject() {
		return pair, malformed("pair orders entry must be an object")
	}
	var err error
	value.ForEach(func(key, field gjson.Result) bool {
		switch key.Str {
		case "pair_receipt_address":
			if field.Type != gjson.String {
				err = malformed("%q must be a string", "pair_receipt_address")
				return false
			}
			pair.Receipt = field.Str
		case "pair_rewards":
			if !field.IsArray() {
				err = malformed("%q must be an array", "pair_rewards")
				return false
			}
			field.ForEach(func(_, entry gjson.Result) bool {
				if !entry.IsArray() {
					err = malformed("order reward entry must be an array")
					return false
				}
				parts := entry.Array()
				if len(parts) != 2 {
					err = malformed("order reward entry must be an [id, amount] pair")
					return false
				}
				var id uint64
				id, err = uintValue(parts[0], "order id")
				if err != nil {
					return false
				}
				var amt amount.Decimal
				amt, err = decimalValue(parts[1], "order reward")
				if err != nil {
					return false
				}
				pair.Orders = append(pair.Orders, OrderReward{ID: id, Amount: amt})
				return true
			})
		default:
			err = malformed("unknown field %q in pair orders entry", key.Str)
		}
		return err == nil
	})
	if err != nil {
		return pair, err
	}
	if pair.Receipt == "" {
		return pair, malformed("pair rewards without a preceding %q", "pair_receipt_address")
	}
	return pair, nil
}

func uintValue(value gjson.Result, field string) (uint64, error) {
	switch value.Type {
	case gjson.Number:
		id, err := strconv.ParseUint(value.Raw, 10, 64)
		if err != nil {
			return 0, malformed("%s %q is not an unsigned integer", field, value.Raw)
		}
		return id, nil
	case gjson.String:
		id, err := strconv.ParseUint(value.Str, 10, 64)
		if err != nil {
			return 0, malformed("%s %q is not an unsigned integer", field, value.Str)
		}
		return id, nil
	default:
		return 0, malformed("%s must be a number or a number string", field)
	}
}

func decimalValue(value gjson.Result, field string) (amount.Decimal, error) {
	var text string
	switch value.Type {
	case gjson.Number:
		text = value.Raw
	case gjson.String:
		text = value.Str
	default:
		return amount.Decimal{}, malformed("%s must be a number or a number string", field)
	}
	amt, err := amount.Parse(text)
	if err != nil {
		return amount.Decimal{}, malformed("%s %q is not a valid decimal", field, text)
	}
	return amt, nil
}
