/*

Write-behind journal for vault receipts. The vault's in-memory state is the
source of truth within a unit of work; the journal exists for the operator
dashboard and post-hoc accounting.

*/

package state

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/RyanSea/AlignmentVault/internal/types"
)

// PostgresJournal persists receipts through the global connection pool.
type PostgresJournal struct{}

// NewPostgresJournal returns a journal backed by the initialized database.
func NewPostgresJournal() (*PostgresJournal, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return &PostgresJournal{}, nil
}

// RecordAlignment persists one alignment receipt.
func (j *PostgresJournal) RecordAlignment(receipt types.AlignmentReceipt) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	itemIDs := make([]int64, len(receipt.ItemIDs))
	for i, id := range receipt.ItemIDs {
		itemIDs[i] = int64(id)
	}

	query := `
		INSERT INTO alignment_receipts
			(operation_id, kind, item_ids, currency_spent, shares_spent, floor_price, lp_minted, receipt_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`
	_, err := DB.Exec(query,
		receipt.OperationID, string(receipt.Kind), pq.Array(itemIDs),
		receipt.CurrencySpent.String(), receipt.SharesSpent.String(),
		receipt.FloorPrice.String(), receipt.LPMinted.String(), receipt.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert alignment receipt: %w", err)
	}

	log.Debug().Str("operationID", receipt.OperationID).Str("kind", string(receipt.Kind)).Msg("Alignment receipt journaled")
	return nil
}

// RecordYield persists one yield receipt.
func (j *PostgresJournal) RecordYield(receipt types.YieldReceipt) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO yield_receipts
			(operation_id, claimed, compounded, paid_out, recipient, receipt_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6);`
	_, err := DB.Exec(query,
		receipt.OperationID, receipt.Claimed.String(), receipt.Compounded.String(),
		receipt.PaidOut.String(), receipt.Recipient, receipt.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert yield receipt: %w", err)
	}

	log.Debug().Str("operationID", receipt.OperationID).Msg("Yield receipt journaled")
	return nil
}

// RecordInventoryEvent persists one ledger membership change.
func (j *PostgresJournal) RecordInventoryEvent(event types.InventoryEvent) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `INSERT INTO inventory_events (kind, item_id, event_timestamp) VALUES ($1, $2, $3);`
	_, err := DB.Exec(query, string(event.Kind), int64(event.ItemID), event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert inventory event: %w", err)
	}
	return nil
}

// RecentAlignments returns the newest alignment receipts, newest first.
func RecentAlignments(limit int) ([]types.AlignmentReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT operation_id, kind, item_ids, currency_spent, shares_spent, floor_price, lp_minted, receipt_timestamp
		FROM alignment_receipts
		ORDER BY receipt_timestamp DESC
		LIMIT $1;`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alignment receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.AlignmentReceipt
	for rows.Next() {
		var receipt types.AlignmentReceipt
		var kind string
		var itemIDs pq.Int64Array
		var currencySpent, sharesSpent, floor, minted string
		if err := rows.Scan(&receipt.OperationID, &kind, &itemIDs,
			&currencySpent, &sharesSpent, &floor, &minted, &receipt.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan alignment receipt: %w", err)
		}
		receipt.Kind = types.AlignmentKind(kind)
		receipt.ItemIDs = make([]types.ItemID, len(itemIDs))
		for i, id := range itemIDs {
			receipt.ItemIDs[i] = types.ItemID(id)
		}
		if receipt.CurrencySpent, err = parseNumeric(currencySpent); err != nil {
			return nil, err
		}
		if receipt.SharesSpent, err = parseNumeric(sharesSpent); err != nil {
			return nil, err
		}
		if receipt.FloorPrice, err = parseNumeric(floor); err != nil {
			return nil, err
		}
		if receipt.LPMinted, err = parseNumeric(minted); err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, rows.Err()
}

// RecentYields returns the newest yield receipts, newest first.
func RecentYields(limit int) ([]types.YieldReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT operation_id, claimed, compounded, paid_out, recipient, receipt_timestamp
		FROM yield_receipts
		ORDER BY receipt_timestamp DESC
		LIMIT $1;`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query yield receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.YieldReceipt
	for rows.Next() {
		var receipt types.YieldReceipt
		var claimed, compounded, paidOut string
		if err := rows.Scan(&receipt.OperationID, &claimed, &compounded, &paidOut,
			&receipt.Recipient, &receipt.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan yield receipt: %w", err)
		}
		if receipt.Claimed, err = parseNumeric(claimed); err != nil {
			return nil, err
		}
		if receipt.Compounded, err = parseNumeric(compounded); err != nil {
			return nil, err
		}
		if receipt.PaidOut, err = parseNumeric(paidOut); err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, rows.Err()
}

func parseNumeric(value string) (sdkmath.Int, error) {
	parsed, ok := sdkmath.NewIntFromString(value)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to parse numeric column value %q", value)
	}
	return parsed, nil
}
