package vault_test

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanSea/AlignmentVault/internal/oracle"
	"github.com/RyanSea/AlignmentVault/internal/types"
	"github.com/RyanSea/AlignmentVault/internal/vault"
)

var (
	selfAddr        = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	collectionAddr  = common.HexToAddress("0x00000000000000000000000000000000000000C0")
	otherCollection = common.HexToAddress("0x00000000000000000000000000000000000000C1")
	ownerAddr       = common.HexToAddress("0x00000000000000000000000000000000000000B0")
	recipientAddr   = common.HexToAddress("0x00000000000000000000000000000000000000D0")
)

const testPool = types.PoolVaultID(21)

type addCall struct {
	pool     types.PoolVaultID
	currency sdkmath.Int
	itemIDs  []types.ItemID
	shares   sdkmath.Int
}

// stubVenue is a deterministic in-memory stand-in for every external
// collaborator, per the substitutability requirement on the oracle adapter.
type stubVenue struct {
	vaults     map[common.Address][]types.PoolVaultID
	snapshot   types.ReserveSnapshot
	itemOwners map[types.ItemID]common.Address

	currency map[common.Address]sdkmath.Int
	shares   map[common.Address]sdkmath.Int

	rewards sdkmath.Int
	pending sdkmath.Int
	staked  sdkmath.Int

	addCalls []addCall
	addErr   error
	onAdd    func() error

	lpSeq int64
}

func newStubVenue() *stubVenue {
	return &stubVenue{
		vaults: map[common.Address][]types.PoolVaultID{
			collectionAddr: {testPool},
		},
		snapshot: types.ReserveSnapshot{
			CurrencyReserve:  sdkmath.NewInt(100),
			ItemShareReserve: sdkmath.NewInt(10),
		},
		itemOwners: make(map[types.ItemID]common.Address),
		currency:   make(map[common.Address]sdkmath.Int),
		shares:     make(map[common.Address]sdkmath.Int),
		rewards:    sdkmath.ZeroInt(),
		pending:    sdkmath.ZeroInt(),
		staked:     sdkmath.ZeroInt(),
	}
}

func (s *stubVenue) VaultsForCollection(_ context.Context, collection common.Address) ([]types.PoolVaultID, error) {
	return s.vaults[collection], nil
}

func (s *stubVenue) Reserves(_ context.Context, _ types.PoolVaultID) (types.ReserveSnapshot, error) {
	return s.snapshot, nil
}

func (s *stubVenue) AddLiquidity(_ context.Context, id types.PoolVaultID, currencyAmount sdkmath.Int, itemIDs []types.ItemID, shareAmount sdkmath.Int) (sdkmath.Int, error) {
	if s.onAdd != nil {
		if err := s.onAdd(); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	if s.addErr != nil {
		return sdkmath.ZeroInt(), s.addErr
	}

	s.addCalls = append(s.addCalls, addCall{pool: id, currency: currencyAmount, itemIDs: itemIDs, shares: shareAmount})
	s.currency[selfAddr] = s.balanceOf(s.currency, selfAddr).Sub(currencyAmount)
	s.shares[selfAddr] = s.balanceOf(s.shares, selfAddr).Sub(shareAmount)

	s.lpSeq++
	return sdkmath.NewInt(100 * s.lpSeq), nil
}

func (s *stubVenue) Stake(_ context.Context, lpTokens sdkmath.Int) error {
	s.staked = s.staked.Add(lpTokens)
	return nil
}

func (s *stubVenue) ClaimRewards(_ context.Context) (sdkmath.Int, error) {
	claimed := s.rewards
	s.rewards = sdkmath.ZeroInt()
	s.shares[selfAddr] = s.balanceOf(s.shares, selfAddr).Add(claimed)
	return claimed, nil
}

func (s *stubVenue) PendingRewards(_ context.Context) (sdkmath.Int, error) {
	return s.pending, nil
}

func (s *stubVenue) OwnerOf(_ context.Context, id types.ItemID) (common.Address, error) {
	owner, ok := s.itemOwners[id]
	if !ok {
		return common.Address{}, errors.New("nonexistent token")
	}
	return owner, nil
}

func (s *stubVenue) balanceOf(balances map[common.Address]sdkmath.Int, owner common.Address) sdkmath.Int {
	if balance, ok := balances[owner]; ok {
		return balance
	}
	return sdkmath.ZeroInt()
}

type stubCurrency struct{ venue *stubVenue }

func (t stubCurrency) BalanceOf(_ context.Context, owner common.Address) (sdkmath.Int, error) {
	return t.venue.balanceOf(t.venue.currency, owner), nil
}

func (t stubCurrency) Transfer(_ context.Context, to common.Address, amount sdkmath.Int) error {
	t.venue.currency[selfAddr] = t.venue.balanceOf(t.venue.currency, selfAddr).Sub(amount)
	t.venue.currency[to] = t.venue.balanceOf(t.venue.currency, to).Add(amount)
	return nil
}

func (t stubCurrency) Wrap(_ context.Context, amount sdkmath.Int) error {
	t.venue.currency[selfAddr] = t.venue.balanceOf(t.venue.currency, selfAddr).Add(amount)
	return nil
}

type stubShares struct{ venue *stubVenue }

func (t stubShares) BalanceOf(_ context.Context, owner common.Address) (sdkmath.Int, error) {
	return t.venue.balanceOf(t.venue.shares, owner), nil
}

func (t stubShares) Transfer(_ context.Context, to common.Address, amount sdkmath.Int) error {
	t.venue.shares[selfAddr] = t.venue.balanceOf(t.venue.shares, selfAddr).Sub(amount)
	t.venue.shares[to] = t.venue.balanceOf(t.venue.shares, to).Add(amount)
	return nil
}

type memJournal struct {
	alignments []types.AlignmentReceipt
	yields     []types.YieldReceipt
	events     []types.InventoryEvent
}

func (j *memJournal) RecordAlignment(receipt types.AlignmentReceipt) error {
	j.alignments = append(j.alignments, receipt)
	return nil
}

func (j *memJournal) RecordYield(receipt types.YieldReceipt) error {
	j.yields = append(j.yields, receipt)
	return nil
}

func (j *memJournal) RecordInventoryEvent(event types.InventoryEvent) error {
	j.events = append(j.events, event)
	return nil
}

func newUninitializedVault(t *testing.T, s *stubVenue, journal *memJournal) *vault.Vault {
	t.Helper()
	deps := vault.Deps{
		Registry:   s,
		Reserves:   s,
		Liquidity:  s,
		Staking:    s,
		Items:      s,
		Currency:   stubCurrency{s},
		Shares:     stubShares{s},
		ShareScale: sdkmath.NewInt(1),
		Self:       selfAddr,
	}
	if journal != nil {
		deps.Journal = journal
	}
	v, err := vault.New(deps)
	require.NoError(t, err)
	return v
}

func newTestVault(t *testing.T, s *stubVenue) *vault.Vault {
	t.Helper()
	v := newUninitializedVault(t, s, nil)
	require.NoError(t, v.Initialize(context.Background(), collectionAddr, types.SentinelPoolVaultID, ownerAddr))
	return v
}

func depositItems(t *testing.T, v *vault.Vault, s *stubVenue, ids ...types.ItemID) {
	t.Helper()
	for _, id := range ids {
		s.itemOwners[id] = selfAddr
		require.NoError(t, v.OnItemReceived(context.Background(), collectionAddr, id))
	}
}

func TestInitializeSentinelBindsFirstPool(t *testing.T) {
	s := newStubVenue()
	v := newUninitializedVault(t, s, nil)

	require.NoError(t, v.Initialize(context.Background(), collectionAddr, types.SentinelPoolVaultID, ownerAddr))
	assert.Equal(t, testPool, v.PoolVaultID())
	assert.Equal(t, ownerAddr, v.Owner())
	assert.Equal(t, collectionAddr, v.Collection())

	// Initialize again afterward fails
	err := v.Initialize(context.Background(), collectionAddr, types.SentinelPoolVaultID, ownerAddr)
	require.ErrorIs(t, err, vault.ErrAlreadyInitialized)
}

func TestInitializeNoPoolForCollection(t *testing.T) {
	s := newStubVenue()
	s.vaults = map[common.Address][]types.PoolVaultID{}
	v := newUninitializedVault(t, s, nil)

	err := v.Initialize(context.Background(), collectionAddr, types.SentinelPoolVaultID, ownerAddr)
	require.ErrorIs(t, err, vault.ErrInvalidVaultID)
}

func TestInitializeMismatchedPoolID(t *testing.T) {
	s := newStubVenue()
	v := newUninitializedVault(t, s, nil)

	err := v.Initialize(context.Background(), collectionAddr, types.PoolVaultID(99), ownerAddr)
	require.ErrorIs(t, err, vault.ErrInvalidVaultID)
}

func TestInitializeZeroOwnerRejected(t *testing.T) {
	s := newStubVenue()
	v := newUninitializedVault(t, s, nil)

	err := v.Initialize(context.Background(), collectionAddr, types.SentinelPoolVaultID, common.Address{})
	require.ErrorIs(t, err, vault.ErrAlignedAsset)
}

func TestDisableInitializersBlocksInitialization(t *testing.T) {
	s := newStubVenue()
	v := newUninitializedVault(t, s, nil)

	require.NoError(t, v.DisableInitializers())
	err := v.Initialize(context.Background(), collectionAddr, types.SentinelPoolVaultID, ownerAddr)
	require.ErrorIs(t, err, vault.ErrInitializersDisabled)
}

func TestRenounceOwnershipAlwaysRejected(t *testing.T) {
	s := newStubVenue()
	v := newTestVault(t, s)

	err := v.TransferOwnership(common.Address{})
	require.ErrorIs(t, err, vault.ErrAlignedAsset)
	assert.Equal(t, ownerAddr, v.Owner())

	require.NoError(t, v.TransferOwnership(recipientAddr))
	assert.Equal(t, recipientAddr, v.Owner())
}

func TestOnItemReceivedIsIdempotent(t *testing.T) {
	s := newStubVenue()
	v := newTestVault(t, s)

	require.NoError(t, v.OnItemReceived(context.Background(), collectionAddr, 5))
	require.NoError(t, v.OnItemReceived(context.Background(), collectionAddr, 5))
	assert.Equal(t, 1, v.InventorySize())
}

func TestOnItemReceivedRejectsForeignCollection(t *testing.T) {
	s := newStubVenue()
	v := newTestVault(t, s)

	err := v.OnItemReceived(context.Background(), otherCollection, 5)
	require.ErrorIs(t, err, vault.ErrUnwantedNFT)
	assert.Equal(t, 0, v.InventorySize())
}

func TestCheckInventoryIsIdempotent(t *testing.T) {
	s := newStubVenue()
	v := newTestVault(t, s)

	s.itemOwners[1] = selfAddr
	s.itemOwners[2] = selfAddr
	s.itemOwners[3] = recipientAddr

	// Over-inclusive candidate set: 3 is owned elsewhere, 4 does not exist
	candidates := []types.ItemID{1, 2, 3, 4}
	require.NoError(t, v.CheckInventory(context.Background(), candidates))
	assert.Equal(t, []types.ItemID{1, 2}, v.InventoryItems())

	require.NoError(t, v.CheckInventory(context.Background(), candidates))
	assert.Equal(t, []types.ItemID{1, 2}, v.InventoryItems())
}

func TestAlignNftsConsumesListAtFloor(t *testing.T) {
	s := newStubVenue()
	v := newTestVault(t, s)
	depositItems(t, v, s, 1, 2)
	s.currency[selfAddr] = sdkmath.NewInt(25)

	require.NoError(t, v.AlignNfts(context.Background(), []types.ItemID{1, 2}))

	require.Len(t, s.addCalls, 1)
	call := s.addCalls[0]
	assert.Equal(t, testPool, call.pool)
	assert.Equal(t, sdkmath.NewInt(20), call.currency) // floor 10 per item
	assert.Equal(t, []types.ItemID{1, 2}, call.itemIDs)
	assert.True(t, call.shares.IsZero())
	assert.Equal(t, 0, v.InventorySize())
	assert.True(t, s.staked.IsPositive())
}

func TestAlignNftsUntrackedItem(t *testing.T) {
	s := newStubVenue()
	v := newTestVault(t, s)
	depositItems(t, v, s, 1)
	s.currency[selfAddr] = sdkmath.NewInt(100)

	err := v.AlignNfts(context.Background(), []types.ItemID{1, 9})
	require.ErrorIs(t, err, vault.ErrUntrackedItem)
	assert.Equal(t, 1, v.InventorySize())
	assert.Empty(t, s.addCalls)
}

func TestAlignNftsInsufficientFundsIsAtomic(t *testing.T) {
	s := newStubVenue()
	v := newTestVault(t, s)
	depositItems(t, v, s, 1, 2)
	s.currency[selfAddr] = sdkmath.NewInt(15) // needs 20 for both

	err := v.AlignNfts(context.Background(), []types.ItemID{1, 2})
	require.ErrorIs(t, err, vault.ErrInsufficientFunds)
	assert.Equal(t, []types.ItemID{1, 2}, v.InventoryItems())
	assert.Empty(t, s.addCalls)
}

func TestAlignNftsVenueFailureRestoresInventory(t *testing.T) {
	s := newStubVenue()
	v := newTestVault(t, s)
	depositItems(t, v, s, 1, 2)
	s.currency[selfAddr] = sdkmath.NewInt(25)
	s.addErr = errors.New("pool reverted")

	err := v.AlignNfts(context.Background(), []types.ItemID{1, 2})
	require.Error(t, err)
	assert.Equal(t, []types.ItemID{1, 2}, v.InventoryItems())
}

func TestAlignNftsPriceUnavailable(t *testing.T) {
	s := newStubVenue()
	v := newTestVault(t, s)
	depositItems(t, v, s, 1)
	s.currency[selfAddr] = sdkmath.NewInt(25)
	s.snapshot.ItemShareReserve = sdkmath.ZeroInt()

	err := v.AlignNfts(context.Background(), []types.ItemID{1})
	require.ErrorIs(t, err, oracle.ErrNoNFTXVault)
	assert.Equal(t, 1, v.InventorySize())
}

func TestAlignTokensCapsAmountAndUsesAllShares(t *testing.T) {
	s := newStubVenue()
	v := newTestVault(t, s)
	s.currency[selfAddr] = sdkmath.NewInt(50)
	s.shares[selfAddr] = sdkmath.NewInt(7)

	require.NoError(t, v.AlignTokens(context.Background(), sdkmath.NewInt(100)))

	require.Len(t, s.addCalls, 1)
	call := s.addCalls[0]
	assert.Equal(t, sdkmath.NewInt(50), call.currency)
	assert.Empty(t, call.itemIDs)
	assert.Equal(t, sdkmath.NewInt(7), call.shares)
}

func TestAlignTokensEmptyVaultIsNoOp(t *testing.T) {
	s := newStubVenue()
	v := newTestVault(t, s)

	require.NoError(t, v.AlignTokens(context.Background(), sdkmath.NewInt(100)))
	assert.Empty(t, s.addCalls)
}

func TestAlignMaxLiquidityWithShareBalance(t *testing.T) {
	// 25 currency at floor 10 with inventory {1,2,3}: consumes 1 and 2,
	// then adds the remaining 5 single-sided against the share balance.
	s := newStubVenue()
	v := newTestVault(t, s)
	depositItems(t, v, s, 1, 2, 3)
	s.currency[selfAddr] = sdkmath.NewInt(25)
	s.shares[selfAddr] = sdkmath.NewInt(4)

	require.NoError(t, v.AlignMaxLiquidity(context.Background()))

	require.Len(t, s.addCalls, 2)
	paired := s.addCalls[0]
	assert.Equal(t, sdkmath.NewInt(20), paired.currency)
	assert.Equal(t, []types.ItemID{1, 2}, paired.itemIDs)

	single := s.addCalls[1]
	assert.Equal(t, sdkmath.NewInt(5), single.currency)
	assert.Empty(t, single.itemIDs)
	assert.Equal(t, sdkmath.NewInt(4), single.shares)

	assert.Equal(t, []types.ItemID{3}, v.InventoryItems())
	assert.True(t, s.balanceOf(s.currency, selfAddr).IsZero())
}

func TestAlignMaxLiquidityWithoutShareBalanceLeavesRemainder(t *testing.T) {
	s := newStubVenue()
	v := newTestVault(t, s)
	depositItems(t, v, s, 1, 2, 3)
	s.currency[selfAddr] = sdkmath.NewInt(25)

	require.NoError(t, v.AlignMaxLiquidity(context.Background()))

	require.Len(t, s.addCalls, 1)
	assert.Equal(t, sdkmath.NewInt(20), s.addCalls[0].currency)
	assert.Equal(t, []types.ItemID{3}, v.InventoryItems())
	assert.Equal(t, sdkmath.NewInt(5), s.balanceOf(s.currency, selfAddr))
}

func TestAlignMaxLiquidityNothingToAlign(t *testing.T) {
	s := newStubVenue()
	v := newTestVault(t, s)

	require.NoError(t, v.AlignMaxLiquidity(context.Background()))
	assert.Empty(t, s.addCalls)
}

func TestAlignMaxLiquiditySharesOnly(t *testing.T) {
	s := newStubVenue()
	v := newTestVault(t, s)
	s.currency[selfAddr] = sdkmath.NewInt(5)
	s.shares[selfAddr] = sdkmath.NewInt(9)

	require.NoError(t, v.AlignMaxLiquidity(context.Background()))

	require.Len(t, s.addCalls, 1)
	call := s.addCalls[0]
	assert.Equal(t, sdkmath.NewInt(5), call.currency)
	assert.Equal(t, sdkmath.NewInt(9), call.shares)
}

func TestClaimYieldNullRecipientCompoundsEverything(t *testing.T) {
	s := newStubVenue()
	journal := &memJournal{}
	v := newUninitializedVault(t, s, journal)
	require.NoError(t, v.Initialize(context.Background(), collectionAddr, types.SentinelPoolVaultID, ownerAddr))

	s.rewards = sdkmath.NewInt(7)
	require.NoError(t, v.ClaimYield(context.Background(), common.Address{}))

	require.Len(t, s.addCalls, 1)
	assert.True(t, s.addCalls[0].currency.IsZero())
	assert.Equal(t, sdkmath.NewInt(7), s.addCalls[0].shares)

	require.Len(t, journal.yields, 1)
	receipt := journal.yields[0]
	assert.Equal(t, sdkmath.NewInt(7), receipt.Claimed)
	assert.Equal(t, sdkmath.NewInt(7), receipt.Compounded)
	assert.True(t, receipt.PaidOut.IsZero())
	assert.Empty(t, receipt.Recipient)
}

func TestClaimYieldSplitsOddTowardCompounding(t *testing.T) {
	s := newStubVenue()
	journal := &memJournal{}
	v := newUninitializedVault(t, s, journal)
	require.NoError(t, v.Initialize(context.Background(), collectionAddr, types.SentinelPoolVaultID, ownerAddr))

	// 7 units claimed: 4 compounded, 3 paid out
	s.rewards = sdkmath.NewInt(7)
	require.NoError(t, v.ClaimYield(context.Background(), recipientAddr))

	assert.Equal(t, sdkmath.NewInt(3), s.balanceOf(s.shares, recipientAddr))
	require.Len(t, s.addCalls, 1)
	assert.Equal(t, sdkmath.NewInt(4), s.addCalls[0].shares)

	require.Len(t, journal.yields, 1)
	receipt := journal.yields[0]
	assert.Equal(t, receipt.Claimed, receipt.Compounded.Add(receipt.PaidOut))
	assert.True(t, receipt.Compounded.GTE(receipt.PaidOut))
	assert.Equal(t, recipientAddr.Hex(), receipt.Recipient)
}

func TestClaimYieldNothingAccruedIsNoOp(t *testing.T) {
	s := newStubVenue()
	v := newTestVault(t, s)

	require.NoError(t, v.ClaimYield(context.Background(), recipientAddr))
	assert.Empty(t, s.addCalls)
	assert.True(t, s.balanceOf(s.shares, recipientAddr).IsZero())
}

func TestReentrancyRejected(t *testing.T) {
	s := newStubVenue()
	v := newTestVault(t, s)
	depositItems(t, v, s, 1)
	s.currency[selfAddr] = sdkmath.NewInt(25)
	s.shares[selfAddr] = sdkmath.NewInt(3)

	// The venue calls back into the vault mid-execution.
	s.onAdd = func() error {
		return v.AlignTokens(context.Background(), sdkmath.NewInt(1))
	}

	err := v.AlignNfts(context.Background(), []types.ItemID{1})
	require.ErrorIs(t, err, vault.ErrReentrancy)
	// The rejected unit of work left no partial effects behind.
	assert.Equal(t, []types.ItemID{1}, v.InventoryItems())
}

func TestAlignmentReceiptsJournaled(t *testing.T) {
	s := newStubVenue()
	journal := &memJournal{}
	v := newUninitializedVault(t, s, journal)
	require.NoError(t, v.Initialize(context.Background(), collectionAddr, types.SentinelPoolVaultID, ownerAddr))
	depositItems(t, v, s, 1, 2)
	s.currency[selfAddr] = sdkmath.NewInt(25)

	require.NoError(t, v.AlignNfts(context.Background(), []types.ItemID{1, 2}))

	require.Len(t, journal.alignments, 1)
	receipt := journal.alignments[0]
	assert.Equal(t, types.AlignmentNfts, receipt.Kind)
	assert.Equal(t, []types.ItemID{1, 2}, receipt.ItemIDs)
	assert.Equal(t, sdkmath.NewInt(20), receipt.CurrencySpent)
	assert.Equal(t, sdkmath.NewInt(10), receipt.FloorPrice)
	assert.NotEmpty(t, receipt.OperationID)

	// Two RECEIVED events plus two CONSUMED events
	require.Len(t, journal.events, 4)
}

func TestSummaryReflectsHoldings(t *testing.T) {
	s := newStubVenue()
	v := newTestVault(t, s)
	depositItems(t, v, s, 8)
	s.currency[selfAddr] = sdkmath.NewInt(12)
	s.shares[selfAddr] = sdkmath.NewInt(3)
	s.pending = sdkmath.NewInt(2)

	summary, err := v.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, collectionAddr.Hex(), summary.Collection)
	assert.Equal(t, testPool, summary.PoolVaultID)
	assert.Equal(t, 1, summary.InventorySize)
	assert.Equal(t, "12", summary.CurrencyBalance)
	assert.Equal(t, "3", summary.ShareBalance)
	assert.Equal(t, "2", summary.PendingYield)
}

func TestOperationsRequireInitialization(t *testing.T) {
	s := newStubVenue()
	v := newUninitializedVault(t, s, nil)
	ctx := context.Background()

	require.ErrorIs(t, v.AlignNfts(ctx, []types.ItemID{1}), vault.ErrNotInitialized)
	require.ErrorIs(t, v.AlignTokens(ctx, sdkmath.NewInt(1)), vault.ErrNotInitialized)
	require.ErrorIs(t, v.AlignMaxLiquidity(ctx), vault.ErrNotInitialized)
	require.ErrorIs(t, v.ClaimYield(ctx, recipientAddr), vault.ErrNotInitialized)
	require.ErrorIs(t, v.CheckInventory(ctx, nil), vault.ErrNotInitialized)
	require.ErrorIs(t, v.OnItemReceived(ctx, collectionAddr, 1), vault.ErrNotInitialized)
	_, err := v.EstimateFloor(ctx)
	require.ErrorIs(t, err, vault.ErrNotInitialized)
}
