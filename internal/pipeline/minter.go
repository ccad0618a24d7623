package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/compute_budget"
	"github.com/blocto/solana-go-sdk/types"

	"mintline/internal/candymachine"
	"mintline/internal/checkpoint"
	"mintline/internal/ledger"
	"mintline/internal/logging"
	"mintline/internal/retry"
	"mintline/internal/services"
)

// mint_v2 with collection verification needs more than the default
// 200k compute units.
const mintComputeUnits = 400_000

// Minter mints instances against the candy machine one at a time.
type Minter struct {
	ledger ledger.Client
	store  *checkpoint.Store
	policy retry.Policy
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewMinter builds a Minter. sleep may be nil to use a context-aware timer.
func NewMinter(client ledger.Client, store *checkpoint.Store, policy retry.Policy, logger *slog.Logger, sleep func(ctx context.Context, d time.Duration) error) *Minter {
	if sleep == nil {
		sleep = pause
	}
	return &Minter{
		ledger: client,
		store:  store,
		policy: policy,
		logger: logging.NewComponentLogger(logger, "minter"),
		sleep:  sleep,
	}
}

// Checkpointed returns the mint records already stored for the run.
func (m *Minter) Checkpointed(ctx context.Context, run *checkpoint.Run) ([]checkpoint.MintRecord, error) {
	return m.store.Mints(ctx, run.ID)
}

// MintSequential mints sequence numbers 0..count-1, skipping those already
// confirmed for the run. Every mint waits for finalized commitment, and the
// loop pauses for the full pacing delay after each confirmed mint except the
// last. count must not exceed the mechanism's remaining supply.
func (m *Minter) MintSequential(ctx context.Context, run *checkpoint.Run, mechanism DistributionMechanism, count int, pacing time.Duration) ([]checkpoint.MintRecord, error) {
	stage := string(checkpoint.StatusMinting)
	if mechanism.Address == "" {
		return nil, services.Wrap(services.ErrValidation, stage, "mint", "candy machine address missing", nil)
	}
	if count < 0 {
		return nil, services.NewConfigurationError("mint.count", "must be >= 0")
	}
	if count > mechanism.ItemsAvailable {
		return nil, services.NewConfigurationError("mint.count",
			fmt.Sprintf("%d exceeds mechanism.items_available %d", count, mechanism.ItemsAvailable))
	}

	existing, err := m.store.Mints(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	bySequence := make(map[int]checkpoint.MintRecord, len(existing))
	for _, record := range existing {
		bySequence[record.Sequence] = record
	}

	candyMachine := common.PublicKeyFromString(mechanism.Address)
	collectionMint := common.PublicKeyFromString(mechanism.CollectionMint)
	records := make([]checkpoint.MintRecord, 0, count)
	for seq := 0; seq < count; seq++ {
		if record, ok := bySequence[seq]; ok && record.Confirmed {
			records = append(records, record)
			continue
		}
		record, submitted, err := m.mintOne(ctx, run, seq, bySequence[seq], candyMachine, collectionMint)
		if err != nil {
			return records, err
		}
		records = append(records, record)
		m.logger.Info("instance minted",
			logging.String(logging.FieldEventType, "item_minted"),
			logging.Int("sequence", seq),
			logging.Address(record.InstanceAddress),
			logging.Signature(record.Signature),
			logging.String("progress", fmt.Sprintf("%d/%d", seq+1, count)),
		)
		if submitted && seq < count-1 && pacing > 0 {
			if err := m.sleep(ctx, pacing); err != nil {
				return records, err
			}
		}
	}
	return records, nil
}

func (m *Minter) mintOne(ctx context.Context, run *checkpoint.Run, seq int, pending checkpoint.MintRecord, candyMachine, collectionMint common.PublicKey) (checkpoint.MintRecord, bool, error) {
	stage := string(checkpoint.StatusMinting)
	nftMint, resumed, err := pendingAccount(pending.InstanceKey)
	if err != nil {
		return checkpoint.MintRecord{}, false, fmt.Errorf("restore pending mint keypair %d: %w", seq, err)
	}
	record := checkpoint.MintRecord{
		RunID:           run.ID,
		Sequence:        seq,
		InstanceAddress: nftMint.PublicKey.ToBase58(),
		InstanceKey:     nftMint.PrivateKey,
	}

	if resumed {
		landed, err := adoptIfLanded(ctx, m.ledger, m.policy, nftMint.PublicKey)
		if err != nil {
			return checkpoint.MintRecord{}, false, services.StampStage(err, stage)
		}
		if landed {
			m.logger.Info("adopting mint from earlier attempt", logging.Int("sequence", seq))
			return m.confirm(ctx, record, "", false)
		}
	} else if err := m.store.SavePendingMint(ctx, record); err != nil {
		return checkpoint.MintRecord{}, false, err
	}

	identity := m.ledger.Identity()
	mintIx, err := candymachine.MintV2(candymachine.MintParam{
		CandyMachine:   candyMachine,
		MintAuthority:  identity,
		Payer:          identity,
		Owner:          identity,
		NFTMint:        nftMint.PublicKey,
		CollectionMint: collectionMint,
		CollectionAuth: identity,
	})
	if err != nil {
		return checkpoint.MintRecord{}, false, fmt.Errorf("build mint %d: %w", seq, err)
	}

	receipt, err := submit(ctx, m.ledger, m.policy, stage, ledger.Transaction{
		Label: fmt.Sprintf("mint %d", seq),
		Instructions: []types.Instruction{
			compute_budget.SetComputeUnitLimit(compute_budget.SetComputeUnitLimitParam{Units: mintComputeUnits}),
			mintIx,
		},
		Signers: []types.Account{nftMint},
	}, ledger.CommitmentFinalized)
	if err != nil {
		return checkpoint.MintRecord{}, true, err
	}
	return m.confirm(ctx, record, receipt.Signature, true)
}

func (m *Minter) confirm(ctx context.Context, record checkpoint.MintRecord, signature string, submitted bool) (checkpoint.MintRecord, bool, error) {
	if err := m.store.ConfirmMint(ctx, record.RunID, record.Sequence, signature); err != nil {
		return checkpoint.MintRecord{}, submitted, err
	}
	record.Signature = signature
	record.Confirmed = true
	record.InstanceKey = nil
	return record, submitted, nil
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
