/*

Live adapter for an NFTX-style venue on an EVM chain. Calls are ABI-packed and
sent through a single JSON-RPC client; operator transactions are signed locally.
The adapter resolves vault and pair addresses lazily from the factories and
caches them, since bindings never change once a pool exists.

*/

package venue

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	sdkmath "cosmossdk.io/math"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/RyanSea/AlignmentVault/internal/logger"
	"github.com/RyanSea/AlignmentVault/internal/types"
	"github.com/RyanSea/AlignmentVault/internal/utils"
)

// Mainnet deployments of the external venue. Overridable through Config for
// testnets and forks.
var (
	DefaultVaultFactory = common.HexToAddress("0xBE86f647b167567525cCAAfcd6f881F1Ee558216")
	DefaultLPStaking    = common.HexToAddress("0x688c3E4658B5367da06fd629E41879beaB538E37")
	DefaultStakingZap   = common.HexToAddress("0xdC774D5260ec66e5DD4627E1DD800Eff3911345C")
	DefaultWETH         = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	DefaultSushiFactory = common.HexToAddress("0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac")
)

const factoryABIJSON = `[
	{"name":"vaultsForAsset","type":"function","stateMutability":"view","inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"address[]"}]},
	{"name":"vault","type":"function","stateMutability":"view","inputs":[{"name":"vaultId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]}
]`

const vaultTokenABIJSON = `[
	{"name":"vaultId","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const erc20ABIJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const wethABIJSON = `[
	{"name":"deposit","type":"function","stateMutability":"payable","inputs":[],"outputs":[]}
]`

const pairABIJSON = `[
	{"name":"getReserves","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}]},
	{"name":"token0","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const sushiFactoryABIJSON = `[
	{"name":"getPair","type":"function","stateMutability":"view","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"outputs":[{"name":"","type":"address"}]}
]`

const zapABIJSON = `[
	{"name":"addLiquidity721","type":"function","stateMutability":"nonpayable","inputs":[{"name":"vaultId","type":"uint256"},{"name":"ids","type":"uint256[]"},{"name":"minWethIn","type":"uint256"},{"name":"wethIn","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"addLiquidity","type":"function","stateMutability":"nonpayable","inputs":[{"name":"vaultId","type":"uint256"},{"name":"wethIn","type":"uint256"},{"name":"vTokenIn","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const stakingABIJSON = `[
	{"name":"deposit","type":"function","stateMutability":"nonpayable","inputs":[{"name":"vaultId","type":"uint256"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"name":"claimRewards","type":"function","stateMutability":"nonpayable","inputs":[{"name":"vaultId","type":"uint256"}],"outputs":[]},
	{"name":"dividendOf","type":"function","stateMutability":"view","inputs":[{"name":"vaultId","type":"uint256"},{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const erc721ABIJSON = `[
	{"name":"ownerOf","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"name":"isApprovedForAll","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"operator","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"setApprovalForAll","type":"function","stateMutability":"nonpayable","inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"outputs":[]}
]`

var (
	factoryABI      = mustABI(factoryABIJSON)
	vaultTokenABI   = mustABI(vaultTokenABIJSON)
	erc20ABI        = mustABI(erc20ABIJSON)
	wethABI         = mustABI(wethABIJSON)
	pairABI         = mustABI(pairABIJSON)
	sushiFactoryABI = mustABI(sushiFactoryABIJSON)
	zapABI          = mustABI(zapABIJSON)
	stakingABI      = mustABI(stakingABIJSON)
	erc721ABI       = mustABI(erc721ABIJSON)
)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded ABI: %v", err))
	}
	return parsed
}

// allowanceThreshold is the point below which the adapter re-approves a spender.
var allowanceThreshold = new(big.Int).Lsh(big.NewInt(1), 200)

// Config holds the live adapter's connection and deployment parameters. Zero
// address fields fall back to the mainnet defaults.
type Config struct {
	RPC            string
	OperatorKeyHex string
	Collection     common.Address

	VaultFactory common.Address
	LPStaking    common.Address
	StakingZap   common.Address
	WETH         common.Address
	SushiFactory common.Address
}

// EthereumVenue implements PoolRegistry, ReserveSource, LiquidityVenue,
// StakingPosition, and ItemRegistry against the live deployment.
type EthereumVenue struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	self    common.Address
	chainID *big.Int

	collection   common.Address
	factory      common.Address
	lpStaking    common.Address
	stakingZap   common.Address
	weth         common.Address
	sushiFactory common.Address

	logger zerolog.Logger

	// boundPool scopes the staking position once the vault's pool is resolved.
	boundPool    types.PoolVaultID
	boundPoolSet bool

	mu         sync.Mutex
	vaultAddrs map[types.PoolVaultID]common.Address
	pairAddrs  map[types.PoolVaultID]common.Address
	approvals  map[common.Address]map[common.Address]bool
}

// NewEthereumVenue dials the JSON-RPC endpoint and validates the operator key.
func NewEthereumVenue(ctx context.Context, cfg Config) (*EthereumVenue, error) {
	if cfg.RPC == "" {
		return nil, fmt.Errorf("rpc endpoint cannot be empty")
	}
	if cfg.Collection == (common.Address{}) {
		return nil, fmt.Errorf("collection address cannot be zero")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.OperatorKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse operator key: %w", err)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPC)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc endpoint: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to query chain id: %w", err)
	}

	venue := &EthereumVenue{
		client:       client,
		key:          key,
		self:         crypto.PubkeyToAddress(key.PublicKey),
		chainID:      chainID,
		collection:   cfg.Collection,
		factory:      orDefault(cfg.VaultFactory, DefaultVaultFactory),
		lpStaking:    orDefault(cfg.LPStaking, DefaultLPStaking),
		stakingZap:   orDefault(cfg.StakingZap, DefaultStakingZap),
		weth:         orDefault(cfg.WETH, DefaultWETH),
		sushiFactory: orDefault(cfg.SushiFactory, DefaultSushiFactory),
		logger:       logger.GetForComponent("ethereum_venue"),
		vaultAddrs:   make(map[types.PoolVaultID]common.Address),
		pairAddrs:    make(map[types.PoolVaultID]common.Address),
		approvals:    make(map[common.Address]map[common.Address]bool),
	}

	venue.logger.Info().
		Str("self", venue.self.Hex()).
		Str("chainID", chainID.String()).
		Str("collection", cfg.Collection.Hex()).
		Msg("Ethereum venue adapter connected")
	return venue, nil
}

func orDefault(addr, fallback common.Address) common.Address {
	if addr == (common.Address{}) {
		return fallback
	}
	return addr
}

// Self returns the operator address transactions are signed with.
func (e *EthereumVenue) Self() common.Address {
	return e.self
}

// BindPool scopes the staking position to the resolved pool vault.
func (e *EthereumVenue) BindPool(id types.PoolVaultID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.boundPool = id
	e.boundPoolSet = true
}

// Close releases the underlying RPC client.
func (e *EthereumVenue) Close() {
	e.client.Close()
}

// VaultsForCollection implements PoolRegistry.
func (e *EthereumVenue) VaultsForCollection(ctx context.Context, collection common.Address) ([]types.PoolVaultID, error) {
	out, err := e.call(ctx, e.factory, factoryABI, "vaultsForAsset", collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query vaults for asset: %w", err)
	}
	addrs, ok := out[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected vaultsForAsset return type")
	}

	ids := make([]types.PoolVaultID, 0, len(addrs))
	for _, addr := range addrs {
		idOut, err := e.call(ctx, addr, vaultTokenABI, "vaultId")
		if err != nil {
			return nil, fmt.Errorf("failed to query vault id of %s: %w", addr.Hex(), err)
		}
		rawID, ok := idOut[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected vaultId return type")
		}
		id := types.PoolVaultID(rawID.Uint64())
		ids = append(ids, id)

		e.mu.Lock()
		e.vaultAddrs[id] = addr
		e.mu.Unlock()
	}
	return ids, nil
}

// Reserves implements ReserveSource.
func (e *EthereumVenue) Reserves(ctx context.Context, id types.PoolVaultID) (types.ReserveSnapshot, error) {
	pair, err := e.pairFor(ctx, id)
	if err != nil {
		return types.ReserveSnapshot{}, err
	}

	token0Out, err := e.call(ctx, pair, pairABI, "token0")
	if err != nil {
		return types.ReserveSnapshot{}, fmt.Errorf("failed to query pair token0: %w", err)
	}
	token0, ok := token0Out[0].(common.Address)
	if !ok {
		return types.ReserveSnapshot{}, fmt.Errorf("unexpected token0 return type")
	}

	out, err := e.call(ctx, pair, pairABI, "getReserves")
	if err != nil {
		return types.ReserveSnapshot{}, fmt.Errorf("failed to query pair reserves: %w", err)
	}
	reserve0, ok0 := out[0].(*big.Int)
	reserve1, ok1 := out[1].(*big.Int)
	if !ok0 || !ok1 {
		return types.ReserveSnapshot{}, fmt.Errorf("unexpected getReserves return types")
	}

	currencyRaw, shareRaw := reserve0, reserve1
	if token0 != e.weth {
		currencyRaw, shareRaw = reserve1, reserve0
	}

	currency, err := utils.BigIntToSDKInt(currencyRaw)
	if err != nil {
		return types.ReserveSnapshot{}, fmt.Errorf("invalid currency reserve: %w", err)
	}
	shares, err := utils.BigIntToSDKInt(shareRaw)
	if err != nil {
		return types.ReserveSnapshot{}, fmt.Errorf("invalid item-share reserve: %w", err)
	}
	return types.ReserveSnapshot{CurrencyReserve: currency, ItemShareReserve: shares}, nil
}

// AddLiquidity implements LiquidityVenue. Item bundles route through the 721
// zap entry point; share-only bundles through the token entry point. The zap
// credits pool-liquidity tokens to the operator, measured as a pair balance
// delta because the zap does not surface mint amounts to callers.
func (e *EthereumVenue) AddLiquidity(ctx context.Context, id types.PoolVaultID, currencyAmount sdkmath.Int, itemIDs []types.ItemID, shareAmount sdkmath.Int) (sdkmath.Int, error) {
	if len(itemIDs) > 0 && !shareAmount.IsZero() {
		return sdkmath.ZeroInt(), fmt.Errorf("zap cannot mix discrete items and share amounts in one bundle")
	}

	vtoken, err := e.vaultAddress(ctx, id)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	pair, err := e.pairFor(ctx, id)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	currencyRaw, err := utils.SDKIntToBigInt(currencyAmount)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("invalid currency amount: %w", err)
	}

	before, err := e.pairBalance(ctx, pair)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	if err := e.ensureERC20Allowance(ctx, e.weth, e.stakingZap); err != nil {
		return sdkmath.ZeroInt(), err
	}

	if len(itemIDs) > 0 {
		if err := e.ensureCollectionApproval(ctx, e.stakingZap); err != nil {
			return sdkmath.ZeroInt(), err
		}
		ids := make([]*big.Int, len(itemIDs))
		for i, itemID := range itemIDs {
			ids[i] = new(big.Int).SetUint64(uint64(itemID))
		}
		data, err := zapABI.Pack("addLiquidity721", new(big.Int).SetUint64(uint64(id)), ids, big.NewInt(0), currencyRaw)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("failed to pack addLiquidity721: %w", err)
		}
		if _, err := e.transact(ctx, e.stakingZap, nil, data); err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("addLiquidity721 transaction failed: %w", err)
		}
	} else {
		if err := e.ensureERC20Allowance(ctx, vtoken, e.stakingZap); err != nil {
			return sdkmath.ZeroInt(), err
		}
		shareRaw, err := utils.SDKIntToBigInt(shareAmount)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("invalid share amount: %w", err)
		}
		data, err := zapABI.Pack("addLiquidity", new(big.Int).SetUint64(uint64(id)), currencyRaw, shareRaw)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("failed to pack addLiquidity: %w", err)
		}
		if _, err := e.transact(ctx, e.stakingZap, nil, data); err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("addLiquidity transaction failed: %w", err)
		}
	}

	after, err := e.pairBalance(ctx, pair)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	minted := after.Sub(before)
	if minted.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("pool-liquidity balance decreased across add")
	}

	e.logger.Info().
		Uint64("poolVaultID", uint64(id)).
		Int("items", len(itemIDs)).
		Str("currencyIn", currencyAmount.String()).
		Str("sharesIn", shareAmount.String()).
		Str("lpMinted", minted.String()).
		Msg("Liquidity added on venue")
	return minted, nil
}

// Stake implements StakingPosition.
func (e *EthereumVenue) Stake(ctx context.Context, lpTokens sdkmath.Int) error {
	id, err := e.requireBoundPool()
	if err != nil {
		return err
	}
	if lpTokens.IsNil() || lpTokens.IsZero() {
		return nil
	}

	pair, err := e.pairFor(ctx, id)
	if err != nil {
		return err
	}
	if err := e.ensureERC20Allowance(ctx, pair, e.lpStaking); err != nil {
		return err
	}

	amountRaw, err := utils.SDKIntToBigInt(lpTokens)
	if err != nil {
		return fmt.Errorf("invalid lp token amount: %w", err)
	}
	data, err := stakingABI.Pack("deposit", new(big.Int).SetUint64(uint64(id)), amountRaw)
	if err != nil {
		return fmt.Errorf("failed to pack staking deposit: %w", err)
	}
	if _, err := e.transact(ctx, e.lpStaking, nil, data); err != nil {
		return fmt.Errorf("staking deposit transaction failed: %w", err)
	}
	return nil
}

// ClaimRewards implements StakingPosition. Rewards arrive as item-share tokens;
// the claimed amount is the share balance delta across the claim.
func (e *EthereumVenue) ClaimRewards(ctx context.Context) (sdkmath.Int, error) {
	id, err := e.requireBoundPool()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	vtoken, err := e.vaultAddress(ctx, id)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	before, err := e.erc20Balance(ctx, vtoken, e.self)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	data, err := stakingABI.Pack("claimRewards", new(big.Int).SetUint64(uint64(id)))
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to pack claimRewards: %w", err)
	}
	if _, err := e.transact(ctx, e.lpStaking, nil, data); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("claimRewards transaction failed: %w", err)
	}

	after, err := e.erc20Balance(ctx, vtoken, e.self)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	claimed := after.Sub(before)
	if claimed.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("share balance decreased across claim")
	}
	return claimed, nil
}

// PendingRewards implements StakingPosition.
func (e *EthereumVenue) PendingRewards(ctx context.Context) (sdkmath.Int, error) {
	id, err := e.requireBoundPool()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	out, err := e.call(ctx, e.lpStaking, stakingABI, "dividendOf", new(big.Int).SetUint64(uint64(id)), e.self)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to query pending rewards: %w", err)
	}
	raw, ok := out[0].(*big.Int)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("unexpected dividendOf return type")
	}
	return utils.BigIntToSDKInt(raw)
}

// OwnerOf implements ItemRegistry against the bound collection.
func (e *EthereumVenue) OwnerOf(ctx context.Context, id types.ItemID) (common.Address, error) {
	out, err := e.call(ctx, e.collection, erc721ABI, "ownerOf", new(big.Int).SetUint64(uint64(id)))
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to query item owner: %w", err)
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected ownerOf return type")
	}
	return owner, nil
}

// ShareToken returns the fungible item-share token of a pool vault.
func (e *EthereumVenue) ShareToken(ctx context.Context, id types.PoolVaultID) (*ERC20Token, error) {
	addr, err := e.vaultAddress(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ERC20Token{venue: e, token: addr}, nil
}

// WrappedCurrency returns the venue's wrapped-currency token.
func (e *EthereumVenue) WrappedCurrency() *WETHToken {
	return &WETHToken{ERC20Token{venue: e, token: e.weth}}
}

// ERC20Token implements FungibleToken over the adapter's client.
type ERC20Token struct {
	venue *EthereumVenue
	token common.Address
}

// BalanceOf returns the owner's token balance.
func (t *ERC20Token) BalanceOf(ctx context.Context, owner common.Address) (sdkmath.Int, error) {
	return t.venue.erc20Balance(ctx, t.token, owner)
}

// Transfer moves tokens from the operator to a recipient.
func (t *ERC20Token) Transfer(ctx context.Context, to common.Address, amount sdkmath.Int) error {
	amountRaw, err := utils.SDKIntToBigInt(amount)
	if err != nil {
		return fmt.Errorf("invalid transfer amount: %w", err)
	}
	data, err := erc20ABI.Pack("transfer", to, amountRaw)
	if err != nil {
		return fmt.Errorf("failed to pack transfer: %w", err)
	}
	if _, err := t.venue.transact(ctx, t.token, nil, data); err != nil {
		return fmt.Errorf("transfer transaction failed: %w", err)
	}
	return nil
}

// WETHToken adds native-currency wrapping on top of the ERC-20 surface.
type WETHToken struct {
	ERC20Token
}

// Wrap deposits native currency into the wrapper, minting the fungible
// equivalent to the operator.
func (t *WETHToken) Wrap(ctx context.Context, amount sdkmath.Int) error {
	amountRaw, err := utils.SDKIntToBigInt(amount)
	if err != nil {
		return fmt.Errorf("invalid wrap amount: %w", err)
	}
	data, err := wethABI.Pack("deposit")
	if err != nil {
		return fmt.Errorf("failed to pack deposit: %w", err)
	}
	if _, err := t.venue.transact(ctx, t.token, amountRaw, data); err != nil {
		return fmt.Errorf("wrap transaction failed: %w", err)
	}
	return nil
}

func (e *EthereumVenue) requireBoundPool() (types.PoolVaultID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.boundPoolSet {
		return 0, fmt.Errorf("staking position is not bound to a pool vault")
	}
	return e.boundPool, nil
}

func (e *EthereumVenue) vaultAddress(ctx context.Context, id types.PoolVaultID) (common.Address, error) {
	e.mu.Lock()
	if addr, ok := e.vaultAddrs[id]; ok {
		e.mu.Unlock()
		return addr, nil
	}
	e.mu.Unlock()

	out, err := e.call(ctx, e.factory, factoryABI, "vault", new(big.Int).SetUint64(uint64(id)))
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to resolve vault address: %w", err)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected vault return type")
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: vault id %d", ErrNoVaultForCollection, id)
	}

	e.mu.Lock()
	e.vaultAddrs[id] = addr
	e.mu.Unlock()
	return addr, nil
}

func (e *EthereumVenue) pairFor(ctx context.Context, id types.PoolVaultID) (common.Address, error) {
	e.mu.Lock()
	if addr, ok := e.pairAddrs[id]; ok {
		e.mu.Unlock()
		return addr, nil
	}
	e.mu.Unlock()

	vtoken, err := e.vaultAddress(ctx, id)
	if err != nil {
		return common.Address{}, err
	}
	out, err := e.call(ctx, e.sushiFactory, sushiFactoryABI, "getPair", e.weth, vtoken)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to resolve pair address: %w", err)
	}
	pair, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected getPair return type")
	}
	if pair == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: no pair for vault id %d", ErrNoVaultForCollection, id)
	}

	e.mu.Lock()
	e.pairAddrs[id] = pair
	e.mu.Unlock()
	return pair, nil
}

func (e *EthereumVenue) pairBalance(ctx context.Context, pair common.Address) (sdkmath.Int, error) {
	return e.erc20Balance(ctx, pair, e.self)
}

func (e *EthereumVenue) erc20Balance(ctx context.Context, token, owner common.Address) (sdkmath.Int, error) {
	out, err := e.call(ctx, token, erc20ABI, "balanceOf", owner)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to query token balance: %w", err)
	}
	raw, ok := out[0].(*big.Int)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("unexpected balanceOf return type")
	}
	return utils.BigIntToSDKInt(raw)
}

func (e *EthereumVenue) ensureERC20Allowance(ctx context.Context, token, spender common.Address) error {
	if e.approvalCached(token, spender) {
		return nil
	}

	out, err := e.call(ctx, token, erc20ABI, "allowance", e.self, spender)
	if err != nil {
		return fmt.Errorf("failed to query allowance: %w", err)
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return fmt.Errorf("unexpected allowance return type")
	}
	if allowance.Cmp(allowanceThreshold) >= 0 {
		e.cacheApproval(token, spender)
		return nil
	}

	data, err := erc20ABI.Pack("approve", spender, abi.MaxUint256)
	if err != nil {
		return fmt.Errorf("failed to pack approve: %w", err)
	}
	if _, err := e.transact(ctx, token, nil, data); err != nil {
		return fmt.Errorf("approve transaction failed: %w", err)
	}
	e.cacheApproval(token, spender)
	return nil
}

func (e *EthereumVenue) ensureCollectionApproval(ctx context.Context, operator common.Address) error {
	if e.approvalCached(e.collection, operator) {
		return nil
	}

	out, err := e.call(ctx, e.collection, erc721ABI, "isApprovedForAll", e.self, operator)
	if err != nil {
		return fmt.Errorf("failed to query collection approval: %w", err)
	}
	approved, ok := out[0].(bool)
	if !ok {
		return fmt.Errorf("unexpected isApprovedForAll return type")
	}
	if approved {
		e.cacheApproval(e.collection, operator)
		return nil
	}

	data, err := erc721ABI.Pack("setApprovalForAll", operator, true)
	if err != nil {
		return fmt.Errorf("failed to pack setApprovalForAll: %w", err)
	}
	if _, err := e.transact(ctx, e.collection, nil, data); err != nil {
		return fmt.Errorf("setApprovalForAll transaction failed: %w", err)
	}
	e.cacheApproval(e.collection, operator)
	return nil
}

func (e *EthereumVenue) approvalCached(token, spender common.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.approvals[token][spender]
}

func (e *EthereumVenue) cacheApproval(token, spender common.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.approvals[token] == nil {
		e.approvals[token] = make(map[common.Address]bool)
	}
	e.approvals[token][spender] = true
}

func (e *EthereumVenue) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}
	raw, err := e.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s call returned no values", method)
	}
	return out, nil
}

func (e *EthereumVenue) transact(ctx context.Context, to common.Address, value *big.Int, data []byte) (*ethtypes.Receipt, error) {
	if value == nil {
		value = big.NewInt(0)
	}

	nonce, err := e.client.PendingNonceAt(ctx, e.self)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending nonce: %w", err)
	}
	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}
	gasLimit, err := e.client.EstimateGas(ctx, ethereum.CallMsg{
		From: e.self, To: &to, Value: value, Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := ethtypes.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(e.chainID), e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := e.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, e.client, signed)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for transaction %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %s reverted", signed.Hash().Hex())
	}

	e.logger.Debug().
		Str("txHash", signed.Hash().Hex()).
		Str("to", to.Hex()).
		Uint64("gasUsed", receipt.GasUsed).
		Msg("Transaction mined")
	return receipt, nil
}
