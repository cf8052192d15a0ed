package batch

import (
	"strconv"
	"strings"
)

// Encode renders the canonical wire form of an accounts batch: double-quoted
// JSON, direct category and token names (no dictionaries), amounts as
// strings, and entries regrouped under one list per category in first-seen
// order. The rendering is a canonicalization: a batch whose same-category
// entries were interleaved re-parses with those entries adjacent, so strict
// equality only holds from the second Parse/Encode cycle onward. Totals per
// account, category and token are always preserved.
func (a *Accounts) Encode() string {
	var b strings.Builder
	b.WriteString(`{"accounts":[`)
	for i := range a.Accounts {
		if i > 0 {
			b.WriteByte(',')
		}
		encodeAccountRewards(&b, &a.Accounts[i])
	}
	b.WriteString(`]}`)
	return b.String()
}

func encodeAccountRewards(b *strings.Builder, acct *AccountRewards) {
	b.WriteString(`{"account_address":`)
	b.WriteString(strconv.Quote(acct.Address))
	b.WriteString(`,"rewards":[`)
	// Group flat entries back into per-category lists, keeping first-seen
	// category order.
	var order []string
	grouped := make(map[string][]Entry)
	for _, entry := range acct.Entries {
		if _, ok := grouped[entry.Category]; !ok {
			order = append(order, entry.Category)
		}
		grouped[entry.Category] = append(grouped[entry.Category], entry)
	}
	for i, category := range order {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		b.WriteString(strconv.Quote(category))
		b.WriteString(`,[`)
		for j, entry := range grouped[category] {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('[')
			b.WriteString(strconv.Quote(entry.Token))
			b.WriteByte(',')
			b.WriteString(strconv.Quote(entry.Amount.String()))
			b.WriteByte(']')
		}
		b.WriteString(`]]`)
	}
	b.WriteString(`]}`)
}

// Encode renders the canonical wire form of an orders batch. Parsing the
// result yields an equal structure.
func (o *Orders) Encode() string {
	var b strings.Builder
	b.WriteByte('[')
	for i := range o.Pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		pair := &o.Pairs[i]
		b.WriteString(`{"pair_receipt_address":`)
		b.WriteString(strconv.Quote(pair.Receipt))
		b.WriteString(`,"pair_rewards":[`)
		for j, reward := range pair.Orders {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('[')
			b.WriteString(strconv.FormatUint(reward.ID, 10))
			b.WriteByte(',')
			b.WriteString(strconv.Quote(reward.Amount.String()))
			b.WriteByte(']')
		}
		b.WriteString(`]}`)
	}
	b.WriteByte(']')
	return b.String()
}
