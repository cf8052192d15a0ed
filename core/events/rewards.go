package events

import (
	"strconv"

	"claimledger/core/amount"
)

const (
	TypeRewardsGranted   = "rewards.granted"
	TypeRewardsRemoved   = "rewards.removed"
	TypeRewardsClaimed   = "rewards.claimed"
	TypeCredentialIssued = "rewards.credential_issued"
)

// RewardsGranted is emitted after a grant batch commits. Totals carry the net
// per-token amounts moved into custody.
type RewardsGranted struct {
	Accounts int
	Orders   int
	Totals   map[string]amount.Decimal
}

func (RewardsGranted) EventType() string { return TypeRewardsGranted }

func (e RewardsGranted) Attributes() map[string]string {
	attrs := map[string]string{
		"accounts": strconv.Itoa(e.Accounts),
		"orders":   strconv.Itoa(e.Orders),
	}
	addTotals(attrs, e.Totals)
	return attrs
}

// RewardsRemoved is emitted after a removal batch commits. Totals carry the
// clamped per-token amounts released from custody.
type RewardsRemoved struct {
	Accounts int
	Orders   int
	Totals   map[string]amount.Decimal
}

func (RewardsRemoved) EventType() string { return TypeRewardsRemoved }

func (e RewardsRemoved) Attributes() map[string]string {
	attrs := map[string]string{
		"accounts": strconv.Itoa(e.Accounts),
		"orders":   strconv.Itoa(e.Orders),
	}
	addTotals(attrs, e.Totals)
	return attrs
}

// RewardsClaimed is emitted after a claim commits. Totals carry the per-token
// payout amounts.
type RewardsClaimed struct {
	Accounts int
	Orders   int
	Totals   map[string]amount.Decimal
}

func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

func (e RewardsClaimed) Attributes() map[string]string {
	attrs := map[string]string{
		"accounts": strconv.Itoa(e.Accounts),
		"orders":   strconv.Itoa(e.Orders),
	}
	addTotals(attrs, e.Totals)
	return attrs
}

// CredentialIssued is emitted when a fresh claim credential is bound to a
// first-seen account.
type CredentialIssued struct {
	Account    string
	Credential string
}

func (CredentialIssued) EventType() string { return TypeCredentialIssued }

func (e CredentialIssued) Attributes() map[string]string {
	return map[string]string{
		"account":    e.Account,
		"credential": e.Credential,
	}
}

func addTotals(attrs map[string]string, totals map[string]amount.Decimal) {
	for token, total := range totals {
		attrs["total."+token] = total.String()
	}
}
