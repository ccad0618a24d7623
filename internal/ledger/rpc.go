package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/blocto/solana-go-sdk/types"

	"mintline/internal/config"
	"mintline/internal/logging"
	"mintline/internal/services"
)

const (
	defaultPollInterval   = 500 * time.Millisecond
	defaultConfirmTimeout = 90 * time.Second
)

// RPCClient submits transactions through a Solana JSON-RPC endpoint.
type RPCClient struct {
	rpc            *client.Client
	identity       types.Account
	pollInterval   time.Duration
	confirmTimeout time.Duration
	logger         *slog.Logger
}

// RPCOptions tunes confirmation polling.
type RPCOptions struct {
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
	Logger         *slog.Logger
}

// NewRPCClient connects to endpoint and signs as identity.
func NewRPCClient(endpoint string, identity types.Account, opts RPCOptions) *RPCClient {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = defaultConfirmTimeout
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = rpc.DevnetRPCEndpoint
	}
	return &RPCClient{
		rpc:            client.NewClient(endpoint),
		identity:       identity,
		pollInterval:   opts.PollInterval,
		confirmTimeout: opts.ConfirmTimeout,
		logger:         logging.NewComponentLogger(opts.Logger, "ledger"),
	}
}

// NewFromConfig loads the signer keypair and builds an RPCClient from cfg.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*RPCClient, error) {
	if cfg == nil {
		return nil, errors.New("ledger: config is nil")
	}
	identity, err := LoadKeypair(ctx, KeypairSource{
		Path:   cfg.Solana.KeypairPath,
		Env:    cfg.Solana.KeypairEnv,
		Secret: cfg.Solana.KeypairSecret,
	})
	if err != nil {
		return nil, err
	}
	return NewRPCClient(cfg.Solana.RPCURL, identity, RPCOptions{
		PollInterval:   time.Duration(cfg.Solana.PollIntervalMillis) * time.Millisecond,
		ConfirmTimeout: time.Duration(cfg.Solana.ConfirmTimeoutSeconds) * time.Second,
		Logger:         logger,
	}), nil
}

// Identity returns the fee payer and signing authority.
func (c *RPCClient) Identity() common.PublicKey {
	return c.identity.PublicKey
}

// Sign builds a transaction for the given recent blockhash, signed by the
// identity and every extra signer.
func (c *RPCClient) Sign(tx Transaction, blockhash string) (types.Transaction, error) {
	signers := make([]types.Account, 0, len(tx.Signers)+1)
	signers = append(signers, c.identity)
	for _, s := range tx.Signers {
		if s.PublicKey == c.identity.PublicKey {
			continue
		}
		signers = append(signers, s)
	}
	return types.NewTransaction(types.NewTransactionParam{
		Signers: signers,
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        c.identity.PublicKey,
			RecentBlockhash: blockhash,
			Instructions:    tx.Instructions,
		}),
	})
}

// SubmitAndConfirm signs tx with a fresh blockhash, sends it and polls its
// status until commitment is reached, the blockhash expires, or the
// confirmation timeout elapses.
func (c *RPCClient) SubmitAndConfirm(ctx context.Context, tx Transaction, commitment Commitment) (Receipt, error) {
	label := strings.TrimSpace(tx.Label)
	if label == "" {
		label = "transaction"
	}
	if len(tx.Instructions) == 0 {
		return Receipt{}, &services.TransactionError{Reason: label + ": no instructions"}
	}

	latest, err := c.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return Receipt{}, classifyRPC(label, "get latest blockhash", err)
	}
	signed, err := c.Sign(tx, latest.Blockhash)
	if err != nil {
		return Receipt{}, &services.TransactionError{Reason: label + ": sign", Cause: err}
	}

	sig, err := c.rpc.SendTransaction(ctx, signed)
	if err != nil {
		return Receipt{}, classifySend(label, err)
	}
	c.logger.Debug("transaction submitted",
		logging.String("label", label),
		logging.Signature(sig),
		logging.String("commitment", string(commitment)),
	)

	return c.awaitCommitment(ctx, label, sig, latest.LatestValidBlockHeight, commitment)
}

func (c *RPCClient) awaitCommitment(ctx context.Context, label, sig string, lastValidHeight uint64, commitment Commitment) (Receipt, error) {
	deadline := time.Now().Add(c.confirmTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.rpc.GetSignatureStatus(ctx, sig)
		switch {
		case err != nil:
			c.logger.Debug("signature status poll failed", logging.Signature(sig), logging.Error(err))
		case status != nil:
			if status.Err != nil {
				return Receipt{}, &services.TransactionError{
					Reason:    fmt.Sprintf("%s: failed on-chain: %v", label, status.Err),
					Signature: sig,
				}
			}
			observed := CommitmentProcessed
			if status.ConfirmationStatus != nil {
				observed = Commitment(*status.ConfirmationStatus)
			}
			if commitment.Satisfies(observed) {
				return Receipt{Signature: sig, Commitment: observed, Slot: status.Slot}, nil
			}
		default:
			if lastValidHeight > 0 {
				if res, herr := c.rpc.RpcClient.GetBlockHeight(ctx); herr == nil && res.Error == nil && res.Result > lastValidHeight {
					return Receipt{}, &services.TransactionError{
						Reason:    label + ": blockhash expired before the transaction landed",
						Signature: sig,
						Transient: true,
					}
				}
			}
		}

		if time.Now().After(deadline) {
			return Receipt{}, &services.TransactionError{
				Reason:    fmt.Sprintf("%s: not %s within %s", label, commitment, c.confirmTimeout),
				Signature: sig,
				Transient: true,
				Ambiguous: true,
				Cause:     services.ErrTimeout,
			}
		}
		select {
		case <-ctx.Done():
			return Receipt{}, &services.TransactionError{
				Reason:    label + ": confirmation wait cancelled",
				Signature: sig,
				Ambiguous: true,
				Cause:     ctx.Err(),
			}
		case <-ticker.C:
		}
	}
}

// MinimumBalanceForRentExemption returns the lamports an account of size bytes needs.
func (c *RPCClient) MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, size)
	if err != nil {
		return 0, classifyRPC("rent", "get minimum balance for rent exemption", err)
	}
	return lamports, nil
}

// AccountExists reports whether an account holds lamports at address.
func (c *RPCClient) AccountExists(ctx context.Context, address common.PublicKey) (bool, error) {
	info, err := c.rpc.GetAccountInfo(ctx, address.ToBase58())
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "not found") || strings.Contains(msg, "could not find account") {
			return false, nil
		}
		return false, classifyRPC("account", "get account info", err)
	}
	return info.Lamports > 0, nil
}

// Balance returns the identity's lamport balance.
func (c *RPCClient) Balance(ctx context.Context) (uint64, error) {
	lamports, err := c.rpc.GetBalance(ctx, c.identity.PublicKey.ToBase58())
	if err != nil {
		return 0, classifyRPC("balance", "get balance", err)
	}
	return lamports, nil
}
