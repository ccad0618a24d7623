// Package ledger submits signed Solana transactions and waits for them to reach
// a requested confirmation commitment.
//
// The Client interface is the only surface pipeline stages depend on: the
// signer identity, submit-and-confirm, and the handful of account queries the
// stages need for rent and resume decisions. RPCClient implements it on top of
// the blocto solana-go-sdk JSON-RPC client.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
)

// Commitment is a confirmation level, ordered processed < confirmed < finalized.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// ParseCommitment validates a configured commitment name.
func ParseCommitment(value string) (Commitment, error) {
	switch c := Commitment(strings.ToLower(strings.TrimSpace(value))); c {
	case CommitmentProcessed, CommitmentConfirmed, CommitmentFinalized:
		return c, nil
	case "":
		return CommitmentConfirmed, nil
	default:
		return "", fmt.Errorf("unsupported commitment %q", value)
	}
}

func (c Commitment) rank() int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	default:
		return 0
	}
}

// Satisfies reports whether an observed commitment is at least as strong as c.
func (c Commitment) Satisfies(observed Commitment) bool {
	return observed.rank() >= c.rank() && observed.rank() > 0
}

// Transaction is an unsigned instruction list. The identity always signs as
// fee payer; Signers lists the additional keypairs the instructions require.
type Transaction struct {
	Label        string
	Instructions []types.Instruction
	Signers      []types.Account
}

// Receipt describes a confirmed transaction.
type Receipt struct {
	Signature  string
	Commitment Commitment
	Slot       uint64
}

// Client is the ledger collaborator used by pipeline stages.
type Client interface {
	Identity() common.PublicKey
	SubmitAndConfirm(ctx context.Context, tx Transaction, commitment Commitment) (Receipt, error)
	MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
	AccountExists(ctx context.Context, address common.PublicKey) (bool, error)
	Balance(ctx context.Context) (uint64, error)
}
