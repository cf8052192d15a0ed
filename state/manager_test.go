package state

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"claimledger/core/amount"
	"claimledger/native/rewards"
	"claimledger/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewManager(db)
}

func TestAccountRowRoundTrip(t *testing.T) {
	m := newTestManager(t)

	row := rewards.NewAccountRow("acc1")
	row.Credential = uuid.MustParse("4f5e8a3e-bd49-43c7-9a3f-0f1f2ab56c01")
	row.Balances["Liquidity"] = map[string]amount.Decimal{
		"T": amount.MustParse("123.34"),
		"U": amount.MustParse("0.5"),
	}
	row.Balances["Trading"] = map[string]amount.Decimal{
		"T": amount.MustParse("234.45"),
	}
	require.NoError(t, m.RewardsPut("acc1", row))

	loaded, ok, err := m.RewardsGet("acc1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "acc1", loaded.Address)
	require.Equal(t, row.Credential, loaded.Credential)
	require.True(t, loaded.Balances["Liquidity"]["T"].Equal(amount.MustParse("123.34")))
	require.True(t, loaded.Balances["Trading"]["T"].Equal(amount.MustParse("234.45")))

	_, ok, err = m.RewardsGet("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEmptyRowStaysPresent(t *testing.T) {
	m := newTestManager(t)

	row := rewards.NewAccountRow("acc1")
	require.NoError(t, m.RewardsPut("acc1", row))

	loaded, ok, err := m.RewardsGet("acc1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, loaded.Empty())
}

func TestOrderEntryLifecycle(t *testing.T) {
	m := newTestManager(t)

	key := rewards.OrderKey("pair1_address", 1)
	require.NoError(t, m.OrderPut(key, amount.MustParse("123.45")))

	amt, ok, err := m.OrderGet(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, amt.Equal(amount.MustParse("123.45")))

	require.NoError(t, m.OrderDelete(key))
	_, ok, err = m.OrderGet(key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVaultBalance(t *testing.T) {
	m := newTestManager(t)

	_, ok, err := m.VaultBalance("T")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.SetVaultBalance("T", amount.MustParse("357.79")))
	bal, ok, err := m.VaultBalance("T")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, bal.Equal(amount.MustParse("357.79")))
}

func TestStagingRollbackLeavesDatabaseUntouched(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.SetVaultBalance("T", amount.MustParse("100")))

	m.Begin()
	require.NoError(t, m.SetVaultBalance("T", amount.MustParse("999")))
	require.NoError(t, m.OrderPut("p#1#", amount.MustParse("1")))

	// Staged writes are visible through the overlay.
	bal, ok, err := m.VaultBalance("T")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, bal.Equal(amount.MustParse("999")))

	m.Rollback()

	bal, ok, err = m.VaultBalance("T")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, bal.Equal(amount.MustParse("100")))

	_, ok, err = m.OrderGet("p#1#")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStagingCommitFlushes(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.OrderPut("p#1#", amount.MustParse("5")))

	m.Begin()
	require.NoError(t, m.OrderDelete("p#1#"))
	require.NoError(t, m.OrderPut("p#2#", amount.MustParse("7")))

	// Staged delete hides the entry before commit.
	_, ok, err := m.OrderGet("p#1#")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.Commit())

	_, ok, err = m.OrderGet("p#1#")
	require.NoError(t, err)
	require.False(t, ok)

	amt, ok, err := m.OrderGet("p#2#")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, amt.Equal(amount.MustParse("7")))
}

func TestNegativeAmountRejected(t *testing.T) {
	m := newTestManager(t)
	err := m.SetVaultBalance("T", amount.MustParse("-1"))
	require.Error(t, err)
}
