package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/potionshop/internal/shop"
)

func chain(t *testing.T, entries ...shop.LedgerEntry) []shop.LedgerEntry {
	t.Helper()
	prev := ""
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range entries {
		entries[i].Seq = int64(i + 1)
		entries[i].PrevHash = prev
		entries[i].CreatedAt = at.Add(time.Duration(i) * time.Second)
		h, err := EntryHash(entries[i])
		require.NoError(t, err)
		entries[i].Hash = h
		prev = h
	}
	return entries
}

func TestEntryHash_Deterministic(t *testing.T) {
	e := shop.LedgerEntry{Seq: 1, TxnID: "txn-0001", ChangeType: shop.ChangeGenesis, Amount: 100}
	h1, err := EntryHash(e)
	require.NoError(t, err)
	h2, err := EntryHash(e)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	e.Amount = 101
	h3, err := EntryHash(e)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestEntryHash_IgnoresOwnHash(t *testing.T) {
	e := shop.LedgerEntry{Seq: 1, ChangeType: shop.ChangeGenesis}
	h1, _ := EntryHash(e)
	e.Hash = "anything"
	h2, _ := EntryHash(e)
	assert.Equal(t, h1, h2)
}

func TestVerifyChain(t *testing.T) {
	entries := chain(t,
		shop.LedgerEntry{ChangeType: shop.ChangeGenesis, Amount: 100},
		shop.LedgerEntry{ChangeType: shop.ChangeLiquidDeposit, LiquidType: shop.Red, Amount: 500},
		shop.LedgerEntry{ChangeType: shop.ChangeSale, SubType: shop.SubGoldCredit, Amount: 50},
	)
	require.NoError(t, VerifyChain(0, "", entries))

	// Resuming from a checkpoint.
	require.NoError(t, VerifyChain(1, entries[0].Hash, entries[1:]))

	tampered := append([]shop.LedgerEntry(nil), entries...)
	tampered[1].Amount = 5000
	err := VerifyChain(0, "", tampered)
	var ce *ChainError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(2), ce.Seq)
	assert.Contains(t, ce.Reason, "hash")

	err = VerifyChain(0, "", []shop.LedgerEntry{entries[0], entries[2]})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(3), ce.Seq)
}
