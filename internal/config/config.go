package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// AlignedCollection is the address of the collection this vault is bound to.
	AlignedCollection string
	// PoolVaultID is the external pool identifier, 0 meaning "first available".
	PoolVaultID uint64
	// OwnerAddress is the identity authorized to trigger alignment and claims.
	OwnerAddress string

	// EthRPC is the JSON-RPC endpoint of the chain hosting the external venue.
	EthRPC string
	// OperatorPrivateKey is the hex-encoded key used to sign venue transactions.
	OperatorPrivateKey string

	// OperatorAPIKey gates the mutating HTTP endpoints.
	OperatorAPIKey string
)

// LoadConfig loads configuration from environment variables and sets the global
// config vars. All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	AlignedCollection, err = getEnv("ALIGNED_COLLECTION")
	if err != nil {
		return err
	}

	PoolVaultID, err = getEnvAsUint64("POOL_VAULT_ID")
	if err != nil {
		return err
	}

	OwnerAddress, err = getEnv("OWNER_ADDRESS")
	if err != nil {
		return err
	}

	EthRPC, err = getEnv("ETH_RPC")
	if err != nil {
		return err
	}

	OperatorPrivateKey, err = getEnv("OPERATOR_PRIVATE_KEY")
	if err != nil {
		return err
	}

	OperatorAPIKey, err = getEnv("OPERATOR_API_KEY")
	if err != nil {
		return err
	}

	log.Debug().
		Str("AlignedCollection", AlignedCollection).
		Uint64("PoolVaultID", PoolVaultID).
		Str("OwnerAddress", OwnerAddress).
		Str("EthRPC", EthRPC).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}
