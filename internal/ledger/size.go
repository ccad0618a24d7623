package ledger

import (
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/pkg/bincode"
	"github.com/blocto/solana-go-sdk/types"
)

// MaxTransactionSize is the packet limit a serialized legacy transaction must fit in.
const MaxTransactionSize = 1232

const signatureSize = 64

// TransactionSize returns the wire size of a legacy transaction paid by
// feePayer and carrying ixs, signatures included. The blockhash does not
// change the size, so a zero hash stands in for it.
func TransactionSize(feePayer common.PublicKey, ixs []types.Instruction) (int, error) {
	msg := types.NewMessage(types.NewMessageParam{
		FeePayer:        feePayer,
		RecentBlockhash: common.PublicKey{}.ToBase58(),
		Instructions:    ixs,
	})
	body, err := msg.Serialize()
	if err != nil {
		return 0, fmt.Errorf("serialize message: %w", err)
	}
	signers := int(msg.Header.NumRequireSignatures)
	return len(bincode.UintToVarLenBytes(uint64(signers))) + signers*signatureSize + len(body), nil
}

// Fits reports whether ixs fit in one transaction paid by feePayer.
func Fits(feePayer common.PublicKey, ixs ...types.Instruction) (bool, error) {
	size, err := TransactionSize(feePayer, ixs)
	if err != nil {
		return false, err
	}
	return size <= MaxTransactionSize, nil
}
