/*

The vault core: a permanent, non-withdrawable pool of currency and items bound
to one collection and one external pool vault. Operations convert holdings into
external pool liquidity and harvest the yield that liquidity generates. Assets
that enter the vault's accounting never leave except into the pool as liquidity
or through the reward-split path.

Every mutating entry point executes as one unit of work behind a non-blocking
guard: internal state is mutated before any external call that could re-enter,
and rolled back if the external call fails so no partial effects persist.

*/

package vault

import (
	"context"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RyanSea/AlignmentVault/internal/inventory"
	"github.com/RyanSea/AlignmentVault/internal/logger"
	"github.com/RyanSea/AlignmentVault/internal/metrics"
	"github.com/RyanSea/AlignmentVault/internal/oracle"
	"github.com/RyanSea/AlignmentVault/internal/types"
	"github.com/RyanSea/AlignmentVault/internal/venue"
)

// Journal persists receipts for completed operations. It is write-behind:
// journal failures are logged, never propagated, because the vault's in-memory
// state is the source of truth within a unit of work.
type Journal interface {
	RecordAlignment(receipt types.AlignmentReceipt) error
	RecordYield(receipt types.YieldReceipt) error
	RecordInventoryEvent(event types.InventoryEvent) error
}

// Deps holds every external collaborator the vault calls into.
type Deps struct {
	Registry  venue.PoolRegistry
	Reserves  venue.ReserveSource
	Liquidity venue.LiquidityVenue
	Staking   venue.StakingPosition
	Items     venue.ItemRegistry
	Currency  venue.CurrencyWrapper
	Shares    venue.FungibleToken

	// Journal is optional; nil disables receipt persistence.
	Journal Journal

	// ShareScale is the item-share token's fixed-point denomination per whole item.
	ShareScale sdkmath.Int

	// Self is the vault's identity on the external venue, used for balance and
	// ownership queries.
	Self common.Address
}

func validateDeps(deps Deps) error {
	if deps.Registry == nil {
		return fmt.Errorf("pool registry cannot be nil")
	}
	if deps.Reserves == nil {
		return fmt.Errorf("reserve source cannot be nil")
	}
	if deps.Liquidity == nil {
		return fmt.Errorf("liquidity venue cannot be nil")
	}
	if deps.Staking == nil {
		return fmt.Errorf("staking position cannot be nil")
	}
	if deps.Items == nil {
		return fmt.Errorf("item registry cannot be nil")
	}
	if deps.Currency == nil {
		return fmt.Errorf("currency wrapper cannot be nil")
	}
	if deps.Shares == nil {
		return fmt.Errorf("share token cannot be nil")
	}
	if deps.ShareScale.IsNil() || !deps.ShareScale.IsPositive() {
		return fmt.Errorf("share scale must be positive")
	}
	if deps.Self == (common.Address{}) {
		return fmt.Errorf("vault self address cannot be zero")
	}
	return nil
}

// Vault is the singleton alignment vault. It is created uninitialized and
// becomes active through exactly one Initialize call.
type Vault struct {
	// mu is the reentrancy guard: held for the full unit of work of every
	// mutating entry point, acquired non-blocking so re-entry is rejected
	// rather than queued.
	mu     sync.Mutex
	logger zerolog.Logger
	deps   Deps

	initialized   bool
	initsDisabled bool
	owner         common.Address
	collection    common.Address
	poolVaultID   types.PoolVaultID
	oracle        *oracle.FloorOracle
	ledger        *inventory.Ledger
}

// New creates an uninitialized vault with validated dependencies.
func New(deps Deps) (*Vault, error) {
	if err := validateDeps(deps); err != nil {
		return nil, fmt.Errorf("vault dependency validation failed: %w", err)
	}
	return &Vault{
		logger: logger.GetForComponent("vault_core"),
		deps:   deps,
		ledger: inventory.NewLedger(),
	}, nil
}

// enter acquires the reentrancy guard or rejects the call.
func (v *Vault) enter() error {
	if !v.mu.TryLock() {
		return ErrReentrancy
	}
	return nil
}

// Initialize binds the vault permanently to one collection and one external
// pool vault and sets the operating owner. It runs exactly once. A requested
// pool vault id of 0 resolves to the collection's first pool; no pool for the
// collection is a fatal ErrInvalidVaultID.
func (v *Vault) Initialize(ctx context.Context, collection common.Address, requested types.PoolVaultID, owner common.Address) error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.mu.Unlock()

	if v.initsDisabled {
		return ErrInitializersDisabled
	}
	if v.initialized {
		return ErrAlreadyInitialized
	}
	if collection == (common.Address{}) {
		return fmt.Errorf("%w: aligned collection cannot be the zero address", ErrInvalidVaultID)
	}
	// An ownerless vault can never align or claim again, stranding capital.
	if owner == (common.Address{}) {
		return fmt.Errorf("%w: vault owner cannot be the zero address", ErrAlignedAsset)
	}

	resolved, err := venue.ResolvePoolVault(ctx, v.deps.Registry, collection, requested)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidVaultID, err)
	}

	floorOracle, err := oracle.New(v.deps.Reserves, resolved, v.deps.ShareScale)
	if err != nil {
		return fmt.Errorf("failed to construct floor oracle: %w", err)
	}

	v.collection = collection
	v.poolVaultID = resolved
	v.owner = owner
	v.oracle = floorOracle
	v.initialized = true

	v.logger.Info().
		Str("collection", collection.Hex()).
		Uint64("poolVaultID", uint64(resolved)).
		Str("owner", owner.Hex()).
		Msg("Vault initialized and permanently bound")
	return nil
}

// DisableInitializers irreversibly blocks any further initialization attempt.
// Operators call it once deployment is confirmed correct.
func (v *Vault) DisableInitializers() error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.mu.Unlock()

	v.initsDisabled = true
	v.logger.Info().Msg("Initializers permanently disabled")
	return nil
}

// TransferOwnership moves operator authority to a new owner. Renouncing to the
// zero address is rejected: an ownerless vault can never again call the gated
// alignment or claim entry points.
func (v *Vault) TransferOwnership(newOwner common.Address) error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.mu.Unlock()

	if !v.initialized {
		return ErrNotInitialized
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("%w: renouncing ownership would strand unaligned capital", ErrAlignedAsset)
	}

	previous := v.owner
	v.owner = newOwner
	v.logger.Info().
		Str("previousOwner", previous.Hex()).
		Str("newOwner", newOwner.Hex()).
		Msg("Vault ownership transferred")
	return nil
}

// Owner returns the current owner.
func (v *Vault) Owner() common.Address {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.owner
}

// Collection returns the aligned collection address.
func (v *Vault) Collection() common.Address {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.collection
}

// PoolVaultID returns the bound external pool vault id.
func (v *Vault) PoolVaultID() types.PoolVaultID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.poolVaultID
}

// InventoryItems returns the tracked item ids in ascending order.
func (v *Vault) InventoryItems() []types.ItemID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ledger.Items()
}

// InventorySize returns the number of tracked item ids.
func (v *Vault) InventorySize() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ledger.Len()
}

// EstimateFloor returns the current floor price estimate in currency units per
// whole item. Read-only; not guarded.
func (v *Vault) EstimateFloor(ctx context.Context) (sdkmath.Int, error) {
	v.mu.Lock()
	o := v.oracle
	initialized := v.initialized
	v.mu.Unlock()

	if !initialized {
		return sdkmath.ZeroInt(), ErrNotInitialized
	}
	return o.EstimateFloor(ctx)
}

// PendingYield returns the reward currently accrued on the staked position.
// Read-only; not guarded.
func (v *Vault) PendingYield(ctx context.Context) (sdkmath.Int, error) {
	v.mu.Lock()
	initialized := v.initialized
	v.mu.Unlock()

	if !initialized {
		return sdkmath.ZeroInt(), ErrNotInitialized
	}
	return v.deps.Staking.PendingRewards(ctx)
}

// OnItemReceived is the passive safe-transfer hook. It inserts the item id into
// inventory, idempotently, and rejects items of any other collection.
func (v *Vault) OnItemReceived(ctx context.Context, collection common.Address, id types.ItemID) error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.mu.Unlock()

	if !v.initialized {
		return ErrNotInitialized
	}
	if collection != v.collection {
		return fmt.Errorf("%w: got %s, aligned to %s", ErrUnwantedNFT, collection.Hex(), v.collection.Hex())
	}

	if v.ledger.Add(id) {
		metrics.ItemsTrackedTotal.Inc()
		v.journalInventory(types.InventoryReceived, id)
		v.logger.Info().Uint64("itemID", uint64(id)).Msg("Item received and tracked")
	} else {
		v.logger.Debug().Uint64("itemID", uint64(id)).Msg("Item already tracked, delivery ignored")
	}
	return nil
}

// CheckInventory reconciles the ledger against the external item registry.
// For each candidate id, the id is inserted iff the vault currently owns it and
// it is untracked; already-tracked or not-owned ids are silently skipped, so
// callers may pass an over-inclusive superset and invoke it repeatedly.
func (v *Vault) CheckInventory(ctx context.Context, candidateIDs []types.ItemID) error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.mu.Unlock()

	if !v.initialized {
		return ErrNotInitialized
	}

	discovered := 0
	for _, id := range candidateIDs {
		if v.ledger.Contains(id) {
			continue
		}
		owner, err := v.deps.Items.OwnerOf(ctx, id)
		if err != nil {
			// Nonexistent or unqueryable ids count as not owned.
			continue
		}
		if owner != v.deps.Self {
			continue
		}
		v.ledger.Add(id)
		metrics.ItemsTrackedTotal.Inc()
		v.journalInventory(types.InventoryDiscovered, id)
		discovered++
	}

	v.logger.Info().
		Int("candidates", len(candidateIDs)).
		Int("discovered", discovered).
		Int("inventorySize", v.ledger.Len()).
		Msg("Inventory reconciliation complete")
	return nil
}

// AlignNfts pairs each listed item with floorPrice currency units and submits
// the bundle as pool liquidity. The list is all-or-nothing: every id must be
// tracked and the whole list must be affordable, else nothing is consumed.
func (v *Vault) AlignNfts(ctx context.Context, itemIDs []types.ItemID) error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.mu.Unlock()

	if !v.initialized {
		return ErrNotInitialized
	}
	if len(itemIDs) == 0 {
		return nil
	}

	seen := make(map[types.ItemID]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: item %d listed twice", ErrUntrackedItem, id)
		}
		seen[id] = struct{}{}
		if !v.ledger.Contains(id) {
			return fmt.Errorf("%w: item %d", ErrUntrackedItem, id)
		}
	}

	floor, err := v.oracle.EstimateFloor(ctx)
	if err != nil {
		return err
	}
	need := floor.MulRaw(int64(len(itemIDs)))

	balance, err := v.deps.Currency.BalanceOf(ctx, v.deps.Self)
	if err != nil {
		return fmt.Errorf("failed to query currency balance: %w", err)
	}
	if balance.LT(need) {
		return fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, need.String(), balance.String())
	}

	lp, err := v.consumeAndAdd(ctx, itemIDs, need)
	if err != nil {
		return err
	}

	v.recordAlignment(types.AlignmentNfts, itemIDs, need, sdkmath.ZeroInt(), floor, lp)
	return nil
}

// AlignTokens adds liquidity bounded by an explicit currency amount, capped to
// the vault's balance, paired with the vault's entire item-share balance. It
// never touches inventory. A zero bundle is a trivially-successful no-op.
func (v *Vault) AlignTokens(ctx context.Context, currencyAmount sdkmath.Int) error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.mu.Unlock()

	if !v.initialized {
		return ErrNotInitialized
	}
	return v.alignShares(ctx, currencyAmount)
}

// alignShares is the amount-bounded single-sided path. Caller must hold the
// guard.
func (v *Vault) alignShares(ctx context.Context, currencyAmount sdkmath.Int) error {
	if currencyAmount.IsNil() || currencyAmount.IsNegative() {
		currencyAmount = sdkmath.ZeroInt()
	}

	balance, err := v.deps.Currency.BalanceOf(ctx, v.deps.Self)
	if err != nil {
		return fmt.Errorf("failed to query currency balance: %w", err)
	}
	if currencyAmount.GT(balance) {
		currencyAmount = balance
	}

	shares, err := v.deps.Shares.BalanceOf(ctx, v.deps.Self)
	if err != nil {
		return fmt.Errorf("failed to query share balance: %w", err)
	}

	if currencyAmount.IsZero() && shares.IsZero() {
		v.logger.Debug().Msg("Nothing to align, skipping")
		return nil
	}

	lp, err := v.addAndStake(ctx, currencyAmount, nil, shares)
	if err != nil {
		return err
	}

	v.recordAlignment(types.AlignmentTokens, nil, currencyAmount, shares, sdkmath.ZeroInt(), lp)
	return nil
}

// AlignMaxLiquidity deploys the maximum capital the vault can deploy in one
// unit of work: it consumes min(affordable, inventory) items paired at floor,
// then adds any remaining currency single-sided against the vault's share
// balance, if one exists. Discrete-item pairing runs first because it directly
// deepens floor support.
func (v *Vault) AlignMaxLiquidity(ctx context.Context) error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.mu.Unlock()

	if !v.initialized {
		return ErrNotInitialized
	}

	balance, err := v.deps.Currency.BalanceOf(ctx, v.deps.Self)
	if err != nil {
		return fmt.Errorf("failed to query currency balance: %w", err)
	}
	shares, err := v.deps.Shares.BalanceOf(ctx, v.deps.Self)
	if err != nil {
		return fmt.Errorf("failed to query share balance: %w", err)
	}

	if v.ledger.Len() == 0 && balance.IsZero() && shares.IsZero() {
		v.logger.Debug().Msg("Nothing to align, skipping")
		return nil
	}

	consumed := []types.ItemID(nil)
	spent := sdkmath.ZeroInt()
	totalLP := sdkmath.ZeroInt()
	floor := sdkmath.ZeroInt()

	if v.ledger.Len() > 0 && balance.IsPositive() {
		floor, err = v.oracle.EstimateFloor(ctx)
		if err != nil {
			return err
		}
		if floor.IsPositive() {
			affordable := balance.Quo(floor)
			n := v.ledger.Len()
			if affordable.LT(sdkmath.NewInt(int64(n))) {
				n = int(affordable.Int64())
			}
			if n > 0 {
				consumed = v.ledger.Items()[:n]
				spent = floor.MulRaw(int64(n))
				lp, err := v.consumeAndAdd(ctx, consumed, spent)
				if err != nil {
					return err
				}
				totalLP = totalLP.Add(lp)
			}
		}
	}

	sharesSpent := sdkmath.ZeroInt()
	remainder := balance.Sub(spent)
	if remainder.IsPositive() && shares.IsPositive() {
		lp, err := v.addAndStake(ctx, remainder, nil, shares)
		if err != nil {
			return err
		}
		totalLP = totalLP.Add(lp)
		spent = spent.Add(remainder)
		sharesSpent = shares
	}

	if totalLP.IsZero() {
		v.logger.Debug().Msg("No deployable capital at current floor, skipping")
		return nil
	}

	v.recordAlignment(types.AlignmentMax, consumed, spent, sharesSpent, floor, totalLP)
	return nil
}

// ClaimYield withdraws accrued rewards from the staked position and splits
// them. The zero-address sentinel compounds 100%; any other recipient receives
// exactly half, with the odd smallest unit favoring the compounded half.
func (v *Vault) ClaimYield(ctx context.Context, recipient common.Address) error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.mu.Unlock()

	if !v.initialized {
		return ErrNotInitialized
	}

	claimed, err := v.deps.Staking.ClaimRewards(ctx)
	if err != nil {
		return fmt.Errorf("failed to claim rewards: %w", err)
	}
	if claimed.IsNil() || claimed.IsZero() {
		v.logger.Debug().Msg("No yield accrued, skipping")
		return nil
	}

	compounded := claimed
	paidOut := sdkmath.ZeroInt()
	if recipient != (common.Address{}) {
		paidOut = claimed.QuoRaw(2)
		compounded = claimed.Sub(paidOut)
	}

	if paidOut.IsPositive() {
		if err := v.deps.Shares.Transfer(ctx, recipient, paidOut); err != nil {
			return fmt.Errorf("failed to pay out yield share: %w", err)
		}
	}

	if compounded.IsPositive() {
		lp, err := v.addAndStake(ctx, sdkmath.ZeroInt(), nil, compounded)
		if err != nil {
			return err
		}
		v.logger.Debug().Str("lpMinted", lp.String()).Msg("Compounded yield restaked")
	}

	metrics.YieldClaimsTotal.Inc()
	receipt := types.YieldReceipt{
		OperationID: uuid.New().String(),
		Claimed:     claimed,
		Compounded:  compounded,
		PaidOut:     paidOut,
		Timestamp:   time.Now(),
	}
	if recipient != (common.Address{}) {
		receipt.Recipient = recipient.Hex()
	}
	if v.deps.Journal != nil {
		if err := v.deps.Journal.RecordYield(receipt); err != nil {
			v.logger.Error().Err(err).Msg("Failed to journal yield receipt")
		}
	}

	v.logger.Info().
		Str("claimed", claimed.String()).
		Str("compounded", compounded.String()).
		Str("paidOut", paidOut.String()).
		Str("recipient", receipt.Recipient).
		Msg("Yield claimed and split")
	return nil
}

// Summary assembles the operator-facing view of identity and holdings.
func (v *Vault) Summary(ctx context.Context) (types.VaultSummary, error) {
	v.mu.Lock()
	if !v.initialized {
		v.mu.Unlock()
		return types.VaultSummary{}, ErrNotInitialized
	}
	summary := types.VaultSummary{
		Collection:    v.collection.Hex(),
		PoolVaultID:   v.poolVaultID,
		Owner:         v.owner.Hex(),
		InventorySize: v.ledger.Len(),
		Inventory:     v.ledger.Items(),
	}
	v.mu.Unlock()

	balance, err := v.deps.Currency.BalanceOf(ctx, v.deps.Self)
	if err != nil {
		return types.VaultSummary{}, fmt.Errorf("failed to query currency balance: %w", err)
	}
	shares, err := v.deps.Shares.BalanceOf(ctx, v.deps.Self)
	if err != nil {
		return types.VaultSummary{}, fmt.Errorf("failed to query share balance: %w", err)
	}
	pending, err := v.deps.Staking.PendingRewards(ctx)
	if err != nil {
		return types.VaultSummary{}, fmt.Errorf("failed to query pending rewards: %w", err)
	}

	summary.CurrencyBalance = balance.String()
	summary.ShareBalance = shares.String()
	summary.PendingYield = pending.String()
	return summary, nil
}

// consumeAndAdd removes the ids from the ledger, submits the paired bundle, and
// stakes the minted position. The ledger mutation happens before the external
// call; on venue failure the ids are restored so the unit of work has no effect.
func (v *Vault) consumeAndAdd(ctx context.Context, itemIDs []types.ItemID, currencyAmount sdkmath.Int) (sdkmath.Int, error) {
	for _, id := range itemIDs {
		v.ledger.Remove(id)
	}

	lp, err := v.deps.Liquidity.AddLiquidity(ctx, v.poolVaultID, currencyAmount, itemIDs, sdkmath.ZeroInt())
	if err != nil {
		for _, id := range itemIDs {
			v.ledger.Add(id)
		}
		return sdkmath.ZeroInt(), fmt.Errorf("failed to add paired liquidity: %w", err)
	}

	for _, id := range itemIDs {
		v.journalInventory(types.InventoryConsumed, id)
	}
	metrics.ItemsConsumedTotal.Add(float64(len(itemIDs)))

	if err := v.deps.Staking.Stake(ctx, lp); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to stake liquidity position: %w", err)
	}
	return lp, nil
}

// addAndStake submits a share-only bundle and stakes the minted position.
func (v *Vault) addAndStake(ctx context.Context, currencyAmount sdkmath.Int, itemIDs []types.ItemID, shareAmount sdkmath.Int) (sdkmath.Int, error) {
	lp, err := v.deps.Liquidity.AddLiquidity(ctx, v.poolVaultID, currencyAmount, itemIDs, shareAmount)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to add liquidity: %w", err)
	}
	if err := v.deps.Staking.Stake(ctx, lp); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to stake liquidity position: %w", err)
	}
	return lp, nil
}

func (v *Vault) recordAlignment(kind types.AlignmentKind, itemIDs []types.ItemID, currencySpent, sharesSpent, floor, lp sdkmath.Int) {
	metrics.AlignmentsTotal.WithLabelValues(string(kind)).Inc()

	receipt := types.AlignmentReceipt{
		OperationID:   uuid.New().String(),
		Kind:          kind,
		ItemIDs:       itemIDs,
		CurrencySpent: currencySpent,
		SharesSpent:   sharesSpent,
		FloorPrice:    floor,
		LPMinted:      lp,
		Timestamp:     time.Now(),
	}
	if v.deps.Journal != nil {
		if err := v.deps.Journal.RecordAlignment(receipt); err != nil {
			v.logger.Error().Err(err).Msg("Failed to journal alignment receipt")
		}
	}

	v.logger.Info().
		Str("kind", string(kind)).
		Int("items", len(itemIDs)).
		Str("currencySpent", currencySpent.String()).
		Str("sharesSpent", sharesSpent.String()).
		Str("lpMinted", lp.String()).
		Str("operationID", receipt.OperationID).
		Msg("Liquidity aligned")
}

func (v *Vault) journalInventory(kind types.InventoryEventKind, id types.ItemID) {
	if v.deps.Journal == nil {
		return
	}
	event := types.InventoryEvent{Kind: kind, ItemID: id, Timestamp: time.Now()}
	if err := v.deps.Journal.RecordInventoryEvent(event); err != nil {
		v.logger.Error().Err(err).Msg("Failed to journal inventory event")
	}
}
