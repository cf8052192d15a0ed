package rewards

import (
	"strings"

	"github.com/google/uuid"

	"claimledger/core/amount"
)

// AccountRow is the persistent ledger row of one account: nested category to
// token to amount balances plus the credential bound to the account. Rows are
// created lazily on first grant and kept present-but-empty after a claim so
// external indexes still observe a last-known row.
type AccountRow struct {
	Address    string
	Credential uuid.UUID
	Balances   map[string]map[string]amount.Decimal
}

// NewAccountRow returns an empty row for the given account address.
func NewAccountRow(address string) *AccountRow {
	return &AccountRow{
		Address:  address,
		Balances: make(map[string]map[string]amount.Decimal),
	}
}

// Clone returns a deep copy to avoid callers mutating shared state.
func (r *AccountRow) Clone() *AccountRow {
	if r == nil {
		return nil
	}
	out := &AccountRow{
		Address:    r.Address,
		Credential: r.Credential,
		Balances:   make(map[string]map[string]amount.Decimal, len(r.Balances)),
	}
	for category, tokens := range r.Balances {
		copied := make(map[string]amount.Decimal, len(tokens))
		for token, amt := range tokens {
			copied[token] = amt
		}
		out.Balances[category] = copied
	}
	return out
}

// Empty reports whether the row carries no balances.
func (r *AccountRow) Empty() bool {
	return r == nil || len(r.Balances) == 0
}

// Credential proves the right to claim one account's accrued rewards. It is
// issued by the host-controlled issuer when an account is first seen and is
// verified by the host before reaching the engine; the engine only checks
// that it belongs to the expected issuer and matches the account record.
type Credential struct {
	ID      uuid.UUID
	Issuer  string
	Account string
}

// OrderCredential proves ownership of order receipts within one receipt
// series.
type OrderCredential struct {
	Issuer   string
	Receipt  string
	OrderIDs []uint64
}

// CredentialIssuer mints claim credentials on behalf of the host. Issue may
// fail with ErrDepositRefused when the destination account cannot accept the
// credential; the engine then discards it and skips that account's entries
// for the batch.
type CredentialIssuer interface {
	Issue(account string) (*Credential, error)
}

// AddressCodec converts a host account identifier into the credential key
// used to index ledger rows. Implementations are supplied by the host and
// must be deterministic for a given environment.
type AddressCodec interface {
	CredentialKey(address string) (string, error)
}

// HexCodec is the local-environment codec: identifiers are already compact
// hex keys and pass through unchanged.
type HexCodec struct{}

func (HexCodec) CredentialKey(address string) (string, error) {
	return address, nil
}

// NetworkCodec derives credential keys from human-readable network addresses
// by dropping the prefix up to and including the first separator.
type NetworkCodec struct{}

func (NetworkCodec) CredentialKey(address string) (string, error) {
	if _, suffix, ok := strings.Cut(address, "1"); ok {
		return suffix, nil
	}
	return address, nil
}
