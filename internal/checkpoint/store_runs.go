package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

const runColumns = "id, batch_key, status, failed_stage, error_message, identity, item_count, mint_count, collection_mint, collection_metadata_uri, pending_collection_mint, pending_collection_key, mechanism_address, pending_mechanism, pending_mechanism_key, config_lines_loaded, created_at, updated_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id                string
		batchKey          string
		statusStr         string
		failedStage       sql.NullString
		errorMessage      sql.NullString
		identity          string
		itemCount         int
		mintCount         int
		collectionMint    sql.NullString
		collectionURI     sql.NullString
		pendingCollection sql.NullString
		pendingCollKey    sql.NullString
		mechanismAddress  sql.NullString
		pendingMechanism  sql.NullString
		pendingMechKey    sql.NullString
		configLinesLoaded int
		createdRaw        string
		updatedRaw        string
	)
	if err := scanner.Scan(
		&id,
		&batchKey,
		&statusStr,
		&failedStage,
		&errorMessage,
		&identity,
		&itemCount,
		&mintCount,
		&collectionMint,
		&collectionURI,
		&pendingCollection,
		&pendingCollKey,
		&mechanismAddress,
		&pendingMechanism,
		&pendingMechKey,
		&configLinesLoaded,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	collKey, err := decodeKey(pendingCollKey)
	if err != nil {
		return nil, fmt.Errorf("decode pending collection key: %w", err)
	}
	mechKey, err := decodeKey(pendingMechKey)
	if err != nil {
		return nil, fmt.Errorf("decode pending mechanism key: %w", err)
	}

	return &Run{
		ID:                    id,
		BatchKey:              batchKey,
		Status:                Status(statusStr),
		FailedStage:           Status(failedStage.String),
		ErrorMessage:          errorMessage.String,
		Identity:              identity,
		ItemCount:             itemCount,
		MintCount:             mintCount,
		CollectionMint:        collectionMint.String,
		CollectionMetadataURI: collectionURI.String,
		PendingCollectionMint: pendingCollection.String,
		PendingCollectionKey:  collKey,
		MechanismAddress:      mechanismAddress.String,
		PendingMechanism:      pendingMechanism.String,
		PendingMechanismKey:   mechKey,
		ConfigLinesLoaded:     configLinesLoaded,
		CreatedAt:             parseTime(createdRaw),
		UpdatedAt:             parseTime(updatedRaw),
	}, nil
}

func encodeKey(key []byte) any {
	if len(key) == 0 {
		return nil
	}
	return base58.Encode(key)
}

func decodeKey(value sql.NullString) ([]byte, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	return base58.Decode(value.String)
}

func nullable(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

// CreateRun inserts a new idle run for the batch.
func (s *Store) CreateRun(ctx context.Context, batchKey, identity string, itemCount, mintCount int) (*Run, error) {
	now := time.Now().UTC()
	run := &Run{
		ID:        uuid.NewString(),
		BatchKey:  batchKey,
		Status:    StatusIdle,
		Identity:  identity,
		ItemCount: itemCount,
		MintCount: mintCount,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.execWithoutResultRetry(ctx,
		`INSERT INTO runs (id, batch_key, status, identity, item_count, mint_count, config_lines_loaded, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		run.ID, run.BatchKey, string(run.Status), run.Identity, run.ItemCount, run.MintCount,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// GetRun fetches a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.queryRow(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// LatestRunForBatch returns the most recent run for a batch key, or nil when
// the batch has never run.
func (s *Store) LatestRunForBatch(ctx context.Context, batchKey string) (*Run, error) {
	row := s.queryRow(ctx,
		"SELECT "+runColumns+" FROM runs WHERE batch_key = ? ORDER BY created_at DESC LIMIT 1", batchKey)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first, optionally filtered by status.
func (s *Store) ListRuns(ctx context.Context, limit int, statuses ...Status) ([]*Run, error) {
	query := "SELECT " + runColumns + " FROM runs"
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Transition moves a run to the next status. The update only applies when the
// run is still in the status the caller observed.
func (s *Store) Transition(ctx context.Context, id string, to Status) (*Run, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(run.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, run.Status, to)
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		"UPDATE runs SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(to), formatTime(now), id, string(run.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("transition run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, id)
	}
	run.Status = to
	run.UpdatedAt = now
	return run, nil
}

// MarkFailed records the failing stage and message and moves the run to failed.
func (s *Store) MarkFailed(ctx context.Context, id string, stage Status, message string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, failed_stage = ?, error_message = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN (?, ?)`,
		string(StatusFailed), string(stage), message, formatTime(time.Now()), id,
		string(StatusComplete), string(StatusFailed),
	)
	if err != nil {
		return fmt.Errorf("mark run failed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s is already terminal", ErrInvalidTransition, id)
	}
	return nil
}

// Reopen returns a failed run to the given status so it can resume. The
// failure details are cleared.
func (s *Store) Reopen(ctx context.Context, id string, status Status) (*Run, error) {
	if status.IsTerminal() {
		return nil, fmt.Errorf("%w: cannot reopen into %s", ErrInvalidTransition, status)
	}
	res, err := s.execWithRetry(ctx,
		"UPDATE runs SET status = ?, failed_stage = NULL, error_message = NULL, updated_at = ? WHERE id = ? AND status = ?",
		string(status), formatTime(time.Now()), id, string(StatusFailed),
	)
	if err != nil {
		return nil, fmt.Errorf("reopen run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: %s is not failed", ErrInvalidTransition, id)
	}
	return s.GetRun(ctx, id)
}

// SetPendingCollection records the collection mint keypair before submission.
func (s *Store) SetPendingCollection(ctx context.Context, id, mint string, key []byte) error {
	return s.updateRun(ctx, id, "pending_collection_mint = ?, pending_collection_key = ?", nullable(mint), encodeKey(key))
}

// SetCollection records the confirmed collection and clears the pending key.
func (s *Store) SetCollection(ctx context.Context, id, mint, metadataURI string) error {
	return s.updateRun(ctx, id,
		"collection_mint = ?, collection_metadata_uri = ?, pending_collection_mint = NULL, pending_collection_key = NULL",
		nullable(mint), nullable(metadataURI))
}

// SetCollectionMetadataURI records the uploaded collection metadata before
// the collection is registered.
func (s *Store) SetCollectionMetadataURI(ctx context.Context, id, metadataURI string) error {
	return s.updateRun(ctx, id, "collection_metadata_uri = ?", nullable(metadataURI))
}

// SetPendingMechanism records the candy machine keypair before submission.
func (s *Store) SetPendingMechanism(ctx context.Context, id, address string, key []byte) error {
	return s.updateRun(ctx, id, "pending_mechanism = ?, pending_mechanism_key = ?", nullable(address), encodeKey(key))
}

// SetMechanism records the confirmed candy machine address. The pending key
// is kept until config lines are loaded.
func (s *Store) SetMechanism(ctx context.Context, id, address string) error {
	return s.updateRun(ctx, id, "mechanism_address = ?", nullable(address))
}

// SetConfigLinesLoaded records how many config lines are on chain.
func (s *Store) SetConfigLinesLoaded(ctx context.Context, id string, loaded int) error {
	return s.updateRun(ctx, id, "config_lines_loaded = ?", loaded)
}

// ClearPendingMechanism drops the candy machine keypair once it is no longer needed.
func (s *Store) ClearPendingMechanism(ctx context.Context, id string) error {
	return s.updateRun(ctx, id, "pending_mechanism = NULL, pending_mechanism_key = NULL")
}

func (s *Store) updateRun(ctx context.Context, id, assignments string, args ...any) error {
	args = append(args, formatTime(time.Now()), id)
	res, err := s.execWithRetry(ctx, "UPDATE runs SET "+assignments+", updated_at = ? WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
