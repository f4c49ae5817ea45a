package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/RyanSea/AlignmentVault/internal/config"
	"github.com/RyanSea/AlignmentVault/internal/logger"
	"github.com/RyanSea/AlignmentVault/internal/state"
	"github.com/RyanSea/AlignmentVault/internal/types"
	"github.com/RyanSea/AlignmentVault/internal/utils"
	"github.com/RyanSea/AlignmentVault/internal/vault"
	"github.com/RyanSea/AlignmentVault/internal/venue"
	"github.com/RyanSea/AlignmentVault/internal/web"
)

const (
	// ShareDecimals is the item-share token's fixed-point decimals per whole item.
	ShareDecimals = 18

	InventoryScanInterval = 30 * time.Minute
)

// main is the entry point for the alignment vault service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("AlignmentVault starting...")

	// Initialize database connection for the receipt journal
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	journal, err := state.NewPostgresJournal()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create receipt journal")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- 2. Venue Adapter Initialization (with Safety Switch) ---
	if os.Getenv("VAULT_MODE") != "live" {
		log.Fatal().Msg("VAULT_MODE is not set to 'live'. Halting to prevent accidental execution. Set VAULT_MODE=live to run.")
	}
	log.Warn().Msg("Initializing vault in LIVE mode. Real transactions will be broadcast.")

	collection := common.HexToAddress(config.AlignedCollection)
	ethVenue, err := venue.NewEthereumVenue(ctx, venue.Config{
		RPC:            config.EthRPC,
		OperatorKeyHex: config.OperatorPrivateKey,
		Collection:     collection,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize venue adapter")
	}
	defer ethVenue.Close()

	resolvedPool, err := venue.ResolvePoolVault(ctx, ethVenue, collection, types.PoolVaultID(config.PoolVaultID))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve pool vault for collection")
	}
	ethVenue.BindPool(resolvedPool)

	shareToken, err := ethVenue.ShareToken(ctx, resolvedPool)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve item-share token")
	}

	shareScale, err := utils.PowerOfTen(ShareDecimals)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute share scale")
	}

	// --- 3. Vault Construction & One-Time Initialization ---
	v, err := vault.New(vault.Deps{
		Registry:   ethVenue,
		Reserves:   ethVenue,
		Liquidity:  ethVenue,
		Staking:    ethVenue,
		Items:      ethVenue,
		Currency:   ethVenue.WrappedCurrency(),
		Shares:     shareToken,
		Journal:    journal,
		ShareScale: shareScale,
		Self:       ethVenue.Self(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to construct vault")
	}

	owner := common.HexToAddress(config.OwnerAddress)
	if err := v.Initialize(ctx, collection, types.PoolVaultID(config.PoolVaultID), owner); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize vault")
	}
	if os.Getenv("DISABLE_INITIALIZERS") == "true" {
		if err := v.DisableInitializers(); err != nil {
			log.Fatal().Err(err).Msg("Failed to disable initializers")
		}
	}

	// --- 4. Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}
	webServer := web.NewWebServer(webPort, config.OperatorAPIKey, v)
	go func() {
		log.Info().Str("port", webPort).Msg("Starting operator web surface")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 5. Inventory Reconciliation Loop ---
	// Direct transfers bypass the safe-transfer hook, so the ledger is
	// periodically reconciled against an over-inclusive candidate range.
	scanMax := mustAtoi(os.Getenv("INVENTORY_SCAN_MAX"), 0)
	if scanMax > 0 {
		go runInventoryScan(ctx, v, scanMax)
	} else {
		log.Info().Msg("INVENTORY_SCAN_MAX not set, periodic reconciliation disabled")
	}

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, exiting")
}

// runInventoryScan periodically reconciles the ledger against the item
// registry over the candidate id range [1, scanMax].
func runInventoryScan(ctx context.Context, v *vault.Vault, scanMax int) {
	candidates := make([]types.ItemID, scanMax)
	for i := range candidates {
		candidates[i] = types.ItemID(i + 1)
	}

	ticker := time.NewTicker(InventoryScanInterval)
	defer ticker.Stop()

	// Run first scan immediately
	if err := v.CheckInventory(ctx, candidates); err != nil {
		log.Error().Err(err).Msg("Inventory reconciliation failed")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Inventory scan loop stopped due to context cancellation")
			return
		case <-ticker.C:
			if err := v.CheckInventory(ctx, candidates); err != nil {
				log.Error().Err(err).Msg("Inventory reconciliation failed")
			}
		}
	}
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
