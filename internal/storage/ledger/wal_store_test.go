package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	store, err := NewStore(dir, nil)
	require.NoError(t, err)
	return store
}

func TestAddAndListLots(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	defer store.Close()

	first, err := store.AddLot("AAPL", decimal.NewFromInt(100), decimal.NewFromInt(1))
	require.NoError(t, err)
	second, err := store.AddLot("AAPL", decimal.NewFromInt(95), decimal.NewFromInt(2))
	require.NoError(t, err)

	lots := store.Lots("AAPL")
	require.Len(t, lots, 2)
	require.Equal(t, first.ID, lots[0].ID)
	require.Equal(t, second.ID, lots[1].ID)
}

func TestAddLot_RejectsInvalidInputs(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	defer store.Close()

	_, err := store.AddLot("AAPL", decimal.Zero, decimal.NewFromInt(1))
	require.Error(t, err)
	require.Empty(t, store.Lots("AAPL"))
}

func TestRemoveLot(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	defer store.Close()

	lot, err := store.AddLot("AAPL", decimal.NewFromInt(100), decimal.NewFromInt(1))
	require.NoError(t, err)

	require.True(t, store.RemoveLot("AAPL", lot.ID))
	require.Empty(t, store.Lots("AAPL"))
}

func TestRemoveLot_UnknownIDIsNoop(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	defer store.Close()

	_, err := store.AddLot("AAPL", decimal.NewFromInt(100), decimal.NewFromInt(1))
	require.NoError(t, err)

	require.False(t, store.RemoveLot("AAPL", "no-such-id"))
	require.Len(t, store.Lots("AAPL"), 1)
}

func TestRemoveLot_LastLotClearsSymbol(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	defer store.Close()

	lot, err := store.AddLot("AAPL", decimal.NewFromInt(100), decimal.NewFromInt(1))
	require.NoError(t, err)
	require.True(t, store.RemoveLot("AAPL", lot.ID))

	require.NotContains(t, store.Symbols(), "AAPL")
}

func TestLowestBuyPrice(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	defer store.Close()

	_, err := store.AddLot("AAPL", decimal.NewFromInt(100), decimal.NewFromInt(1))
	require.NoError(t, err)
	_, err = store.AddLot("AAPL", decimal.NewFromInt(90), decimal.NewFromInt(1))
	require.NoError(t, err)

	lowest, ok := store.LowestBuyPrice("AAPL")
	require.True(t, ok)
	require.True(t, lowest.Equal(decimal.NewFromInt(90)))
}

func TestReloadRecoversBook(t *testing.T) {
	dir := t.TempDir()

	store := newTestStore(t, dir)
	lot, err := store.AddLot("AAPL", decimal.NewFromFloat(123.45), decimal.NewFromFloat(0.5))
	require.NoError(t, err)
	_, err = store.AddLot("TSLA", decimal.NewFromInt(200), decimal.NewFromInt(1))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reloaded := newTestStore(t, dir)
	defer reloaded.Close()

	lots := reloaded.Lots("AAPL")
	require.Len(t, lots, 1)
	require.Equal(t, lot.ID, lots[0].ID)
	require.True(t, lots[0].BuyPrice.Equal(decimal.NewFromFloat(123.45)))
	require.True(t, lots[0].Quantity.Equal(decimal.NewFromFloat(0.5)))
	require.Len(t, reloaded.Lots("TSLA"), 1)
}

func TestReloadAfterRemoval(t *testing.T) {
	dir := t.TempDir()

	store := newTestStore(t, dir)
	lot, err := store.AddLot("AAPL", decimal.NewFromInt(100), decimal.NewFromInt(1))
	require.NoError(t, err)
	keep, err := store.AddLot("AAPL", decimal.NewFromInt(95), decimal.NewFromInt(1))
	require.NoError(t, err)
	require.True(t, store.RemoveLot("AAPL", lot.ID))
	require.NoError(t, store.Close())

	reloaded := newTestStore(t, dir)
	defer reloaded.Close()

	lots := reloaded.Lots("AAPL")
	require.Len(t, lots, 1)
	require.Equal(t, keep.ID, lots[0].ID)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	defer store.Close()

	_, err := store.AddLot("AAPL", decimal.NewFromInt(100), decimal.NewFromInt(1))
	require.NoError(t, err)

	snapshot := store.Snapshot()
	snapshot["AAPL"][0].BuyPrice = decimal.NewFromInt(1)
	delete(snapshot, "AAPL")

	lots := store.Lots("AAPL")
	require.Len(t, lots, 1)
	require.True(t, lots[0].BuyPrice.Equal(decimal.NewFromInt(100)))
}

func TestReset(t *testing.T) {
	dir := t.TempDir()

	store := newTestStore(t, dir)
	_, err := store.AddLot("AAPL", decimal.NewFromInt(100), decimal.NewFromInt(1))
	require.NoError(t, err)
	store.Reset()
	require.Empty(t, store.Symbols())
	require.NoError(t, store.Close())

	reloaded := newTestStore(t, dir)
	defer reloaded.Close()
	require.Empty(t, reloaded.Symbols())
}
