package rewards

import (
	"errors"
	"testing"

	"claimledger/core/amount"
)

func TestApplyAccountEntryAdd(t *testing.T) {
	row := NewAccountRow("acc1")

	applied, err := applyAccountEntry(row, "Liquidity", "T", amount.MustParse("100"), true)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !applied.Equal(amount.MustParse("100")) {
		t.Fatalf("expected applied 100, got %s", applied)
	}
	applied, err = applyAccountEntry(row, "Liquidity", "T", amount.MustParse("23.5"), true)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !applied.Equal(amount.MustParse("23.5")) {
		t.Fatalf("expected applied 23.5, got %s", applied)
	}
	if !row.Balances["Liquidity"]["T"].Equal(amount.MustParse("123.5")) {
		t.Fatalf("unexpected balance %s", row.Balances["Liquidity"]["T"])
	}
}

func TestApplyAccountEntryRemoveClamps(t *testing.T) {
	row := NewAccountRow("acc1")
	if _, err := applyAccountEntry(row, "C", "T", amount.MustParse("500"), true); err != nil {
		t.Fatalf("apply: %v", err)
	}

	applied, err := applyAccountEntry(row, "C", "T", amount.MustParse("800"), false)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !applied.Equal(amount.MustParse("500")) {
		t.Fatalf("expected clamp to 500, got %s", applied)
	}
	if !row.Empty() {
		t.Fatalf("expected pruned row, got %+v", row.Balances)
	}
}

func TestApplyAccountEntryPrunesEmptyLeaves(t *testing.T) {
	row := NewAccountRow("acc1")
	if _, err := applyAccountEntry(row, "C", "T", amount.MustParse("10"), true); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := applyAccountEntry(row, "C", "U", amount.MustParse("5"), true); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := applyAccountEntry(row, "C", "T", amount.MustParse("10"), false); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, ok := row.Balances["C"]["T"]; ok {
		t.Fatal("zero token entry must be pruned")
	}
	if _, ok := row.Balances["C"]; !ok {
		t.Fatal("category with remaining token must stay")
	}
	if _, err := applyAccountEntry(row, "C", "U", amount.MustParse("99"), false); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, ok := row.Balances["C"]; ok {
		t.Fatal("empty category must be pruned")
	}
}

func TestApplyAccountEntryRejectsNegative(t *testing.T) {
	row := NewAccountRow("acc1")
	_, err := applyAccountEntry(row, "C", "T", amount.MustParse("-1"), true)
	if !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestOrderKeyFormat(t *testing.T) {
	if got := OrderKey("pair1_address", 42); got != "pair1_address#42#" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestBucketTakeAndPut(t *testing.T) {
	bucket := mustBucket(t, "T", "100")

	taken, err := bucket.Take(amount.MustParse("30"))
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if !taken.Amount().Equal(amount.MustParse("30")) || !bucket.Amount().Equal(amount.MustParse("70")) {
		t.Fatalf("unexpected amounts %s / %s", taken.Amount(), bucket.Amount())
	}

	if _, err := bucket.Take(amount.MustParse("71")); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if err := bucket.Put(taken); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !bucket.Amount().Equal(amount.MustParse("100")) || !taken.IsEmpty() {
		t.Fatalf("unexpected amounts after put: %s / %s", bucket.Amount(), taken.Amount())
	}

	other := mustBucket(t, "U", "1")
	if err := bucket.Put(other); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("expected ErrTokenMismatch, got %v", err)
	}
}

func TestNetworkCodecDerivesSuffix(t *testing.T) {
	key, err := NetworkCodec{}.CredentialKey("account_rdx1qsp0all")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	if key != "qsp0all" {
		t.Fatalf("unexpected key %q", key)
	}
	key, err = HexCodec{}.CredentialKey("deadbeef")
	if err != nil || key != "deadbeef" {
		t.Fatalf("unexpected %q %v", key, err)
	}
}
