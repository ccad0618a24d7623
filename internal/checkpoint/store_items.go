package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SavePreparedItem records an uploaded item. Saving the same index again
// replaces the earlier URIs.
func (s *Store) SavePreparedItem(ctx context.Context, item PreparedItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	err := s.execWithoutResultRetry(ctx,
		`INSERT INTO prepared_items (run_id, item_index, name, image_uri, metadata_uri, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, item_index) DO UPDATE SET
		   name = excluded.name, image_uri = excluded.image_uri, metadata_uri = excluded.metadata_uri`,
		item.RunID, item.Index, item.Name, item.ImageURI, item.MetadataURI, formatTime(item.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save prepared item %d: %w", item.Index, err)
	}
	return nil
}

// PreparedItems returns the prepared items of a run ordered by index.
func (s *Store) PreparedItems(ctx context.Context, runID string) ([]PreparedItem, error) {
	rows, err := s.query(ctx,
		"SELECT run_id, item_index, name, image_uri, metadata_uri, created_at FROM prepared_items WHERE run_id = ? ORDER BY item_index",
		runID)
	if err != nil {
		return nil, fmt.Errorf("list prepared items: %w", err)
	}
	defer rows.Close()

	var items []PreparedItem
	for rows.Next() {
		var (
			item       PreparedItem
			createdRaw string
		)
		if err := rows.Scan(&item.RunID, &item.Index, &item.Name, &item.ImageURI, &item.MetadataURI, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan prepared item: %w", err)
		}
		item.CreatedAt = parseTime(createdRaw)
		items = append(items, item)
	}
	return items, rows.Err()
}

// SavePendingMint records the instance keypair for a mint before it is
// submitted. An existing unconfirmed record for the sequence is kept so a
// resumed run reuses the same keypair.
func (s *Store) SavePendingMint(ctx context.Context, record MintRecord) error {
	now := time.Now()
	err := s.execWithoutResultRetry(ctx,
		`INSERT INTO mint_records (run_id, sequence, instance_address, instance_key, confirmed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT (run_id, sequence) DO NOTHING`,
		record.RunID, record.Sequence, record.InstanceAddress, encodeKey(record.InstanceKey),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("save pending mint %d: %w", record.Sequence, err)
	}
	return nil
}

// ConfirmMint marks a mint confirmed with its signature and drops the key.
func (s *Store) ConfirmMint(ctx context.Context, runID string, sequence int, signature string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE mint_records SET confirmed = 1, signature = ?, instance_key = NULL, updated_at = ? WHERE run_id = ? AND sequence = ?",
		nullable(signature), formatTime(time.Now()), runID, sequence,
	)
	if err != nil {
		return fmt.Errorf("confirm mint %d: %w", sequence, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("confirm mint %d: no pending record", sequence)
	}
	return nil
}

// Mints returns every mint record of a run ordered by sequence.
func (s *Store) Mints(ctx context.Context, runID string) ([]MintRecord, error) {
	rows, err := s.query(ctx,
		"SELECT run_id, sequence, instance_address, instance_key, signature, confirmed, created_at, updated_at FROM mint_records WHERE run_id = ? ORDER BY sequence",
		runID)
	if err != nil {
		return nil, fmt.Errorf("list mints: %w", err)
	}
	defer rows.Close()

	var records []MintRecord
	for rows.Next() {
		var (
			record     MintRecord
			keyRaw     sql.NullString
			signature  sql.NullString
			confirmed  int
			createdRaw string
			updatedRaw string
		)
		if err := rows.Scan(&record.RunID, &record.Sequence, &record.InstanceAddress, &keyRaw, &signature, &confirmed, &createdRaw, &updatedRaw); err != nil {
			return nil, fmt.Errorf("scan mint: %w", err)
		}
		key, err := decodeKey(keyRaw)
		if err != nil {
			return nil, fmt.Errorf("decode mint key %d: %w", record.Sequence, err)
		}
		record.InstanceKey = key
		record.Signature = signature.String
		record.Confirmed = confirmed != 0
		record.CreatedAt = parseTime(createdRaw)
		record.UpdatedAt = parseTime(updatedRaw)
		records = append(records, record)
	}
	return records, rows.Err()
}

// ConfirmedMintCount returns how many mints of a run have confirmed.
func (s *Store) ConfirmedMintCount(ctx context.Context, runID string) (int, error) {
	var count int
	if err := s.queryRow(ctx, "SELECT COUNT(1) FROM mint_records WHERE run_id = ? AND confirmed = 1", runID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count mints: %w", err)
	}
	return count, nil
}
