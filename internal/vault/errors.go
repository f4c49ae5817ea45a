package vault

import "errors"

// Error definitions for zero-tolerance error handling. Every error fails the
// entire unit of work; no partial effects persist.
var (
	ErrNotInitialized       = errors.New("vault is not initialized")
	ErrAlreadyInitialized   = errors.New("vault is already initialized")
	ErrInitializersDisabled = errors.New("initialization is permanently disabled")
	ErrInvalidVaultID       = errors.New("pool vault id does not exist for the aligned collection")
	ErrAlignedAsset         = errors.New("operation would release or strand an aligned asset")
	ErrUnwantedNFT          = errors.New("item does not belong to the aligned collection")
	ErrUntrackedItem        = errors.New("item id is not tracked in inventory")
	ErrInsufficientFunds    = errors.New("currency balance cannot fund the requested alignment")
	ErrReentrancy           = errors.New("mutating entry point invoked while another is mid-execution")
)
