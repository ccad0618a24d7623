package pipeline

import (
	"context"
	"errors"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"

	"mintline/internal/ledger"
	"mintline/internal/retry"
	"mintline/internal/services"
)

// submit sends tx under the retry policy. Only transient, non-ambiguous
// failures are resubmitted; the error that ends the loop is stamped with the
// stage.
func submit(ctx context.Context, client ledger.Client, policy retry.Policy, stage string, tx ledger.Transaction, commitment ledger.Commitment) (ledger.Receipt, error) {
	var receipt ledger.Receipt
	err := retry.Do(ctx, policy, tx.Label, func(ctx context.Context) error {
		got, err := client.SubmitAndConfirm(ctx, tx, commitment)
		if err != nil {
			return err
		}
		receipt = got
		return nil
	})
	if err != nil {
		if !errors.Is(err, services.ErrTransaction) && !errors.Is(err, context.Canceled) {
			err = &services.TransactionError{Reason: tx.Label, Cause: err}
		}
		return ledger.Receipt{}, services.StampStage(err, stage)
	}
	return receipt, nil
}

// pendingAccount returns the keypair persisted for a pending account, or a
// new keypair when none was persisted.
func pendingAccount(key []byte) (types.Account, bool, error) {
	if len(key) == 0 {
		return types.NewAccount(), false, nil
	}
	account, err := types.AccountFromBytes(key)
	if err != nil {
		return types.Account{}, false, err
	}
	return account, true, nil
}

// adoptIfLanded reports whether an account from an earlier attempt already
// exists on chain.
func adoptIfLanded(ctx context.Context, client ledger.Client, policy retry.Policy, address common.PublicKey) (bool, error) {
	var exists bool
	err := retry.Do(ctx, policy, "lookup "+address.ToBase58(), func(ctx context.Context) error {
		ok, err := client.AccountExists(ctx, address)
		if err != nil {
			return err
		}
		exists = ok
		return nil
	})
	return exists, err
}
