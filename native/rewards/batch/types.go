package batch

import "claimledger/core/amount"

// Accounts is a fully resolved accounts batch. Dictionary indirection present
// in the wire form is resolved during parsing and never retained.
type Accounts struct {
	Accounts []AccountRewards
}

// AccountRewards lists the reward deltas for one account.
type AccountRewards struct {
	Address string
	Entries []Entry
}

// Entry is one (category, token, amount) delta.
type Entry struct {
	Category string
	Token    string
	Amount   amount.Decimal
}

// Orders is a parsed orders batch.
type Orders struct {
	Pairs []PairOrders
}

// PairOrders lists the per-order rewards of one receipt series.
type PairOrders struct {
	Receipt string
	Orders  []OrderReward
}

// OrderReward is the reward owed to a single order.
type OrderReward struct {
	ID     uint64
	Amount amount.Decimal
}
