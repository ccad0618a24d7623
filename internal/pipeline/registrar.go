package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/types"

	"mintline/internal/checkpoint"
	"mintline/internal/ledger"
	"mintline/internal/logging"
	"mintline/internal/retry"
	"mintline/internal/services"
)

// Registrar creates the collection NFT once per run.
type Registrar struct {
	ledger     ledger.Client
	uploader   *AssetUploader
	store      *checkpoint.Store
	policy     retry.Policy
	collection CollectionSpec
	commitment ledger.Commitment
	logger     *slog.Logger
}

// NewRegistrar builds a Registrar.
func NewRegistrar(client ledger.Client, uploader *AssetUploader, store *checkpoint.Store, policy retry.Policy, settings Settings, logger *slog.Logger) *Registrar {
	return &Registrar{
		ledger:     client,
		uploader:   uploader,
		store:      store,
		policy:     policy,
		collection: settings.Collection,
		commitment: settings.Commitment,
		logger:     logging.NewComponentLogger(logger, "registrar"),
	}
}

// Descriptor rebuilds the collection descriptor from a run that already
// registered its collection.
func (r *Registrar) Descriptor(run *checkpoint.Run) (CollectionDescriptor, bool) {
	if run.CollectionMint == "" {
		return CollectionDescriptor{}, false
	}
	return r.descriptor(run.CollectionMetadataURI, run.CollectionMint), true
}

func (r *Registrar) descriptor(metadataURI, mint string) CollectionDescriptor {
	return CollectionDescriptor{
		Name:          r.collection.Name,
		Description:   r.collection.Description,
		ImageURI:      r.collection.ImageURI,
		MetadataURI:   metadataURI,
		MintAddress:   mint,
		OwnerIdentity: r.ledger.Identity().ToBase58(),
	}
}

// Register uploads the collection metadata and creates the collection NFT,
// waiting for the configured commitment. A collection mint persisted by an
// earlier attempt is adopted when it exists on chain and resubmitted with
// the same keypair when it does not.
func (r *Registrar) Register(ctx context.Context, run *checkpoint.Run) (CollectionDescriptor, error) {
	if desc, ok := r.Descriptor(run); ok {
		return desc, nil
	}
	stage := string(checkpoint.StatusRegisteringCollection)

	metadataURI := run.CollectionMetadataURI
	if metadataURI == "" {
		uri, err := r.uploadMetadata(ctx)
		if err != nil {
			return CollectionDescriptor{}, err
		}
		if err := r.store.SetCollectionMetadataURI(ctx, run.ID, uri); err != nil {
			return CollectionDescriptor{}, err
		}
		run.CollectionMetadataURI = uri
		metadataURI = uri
	}

	mint, resumed, err := pendingAccount(run.PendingCollectionKey)
	if err != nil {
		return CollectionDescriptor{}, fmt.Errorf("restore pending collection keypair: %w", err)
	}
	if resumed {
		landed, err := adoptIfLanded(ctx, r.ledger, r.policy, mint.PublicKey)
		if err != nil {
			return CollectionDescriptor{}, services.StampStage(err, stage)
		}
		if landed {
			r.logger.Info("adopting collection from earlier attempt",
				logging.Address(mint.PublicKey.ToBase58()),
			)
			return r.finish(ctx, run, metadataURI, mint.PublicKey.ToBase58())
		}
	} else {
		if err := r.store.SetPendingCollection(ctx, run.ID, mint.PublicKey.ToBase58(), mint.PrivateKey); err != nil {
			return CollectionDescriptor{}, err
		}
	}

	instructions, err := r.instructions(ctx, mint.PublicKey, metadataURI)
	if err != nil {
		return CollectionDescriptor{}, err
	}
	receipt, err := submit(ctx, r.ledger, r.policy, stage, ledger.Transaction{
		Label:        "create collection",
		Instructions: instructions,
		Signers:      []types.Account{mint},
	}, r.commitment)
	if err != nil {
		return CollectionDescriptor{}, err
	}
	r.logger.Info("collection registered",
		logging.Address(mint.PublicKey.ToBase58()),
		logging.Signature(receipt.Signature),
		logging.String("metadata_uri", metadataURI),
	)
	return r.finish(ctx, run, metadataURI, mint.PublicKey.ToBase58())
}

func (r *Registrar) finish(ctx context.Context, run *checkpoint.Run, metadataURI, mint string) (CollectionDescriptor, error) {
	if err := r.store.SetCollection(ctx, run.ID, mint, metadataURI); err != nil {
		return CollectionDescriptor{}, err
	}
	run.CollectionMint = mint
	run.PendingCollectionMint = ""
	run.PendingCollectionKey = nil
	return r.descriptor(metadataURI, mint), nil
}

func (r *Registrar) uploadMetadata(ctx context.Context) (string, error) {
	doc := map[string]any{
		"name":         r.collection.Name,
		"description":  r.collection.Description,
		"image":        r.collection.ImageURI,
		"isCollection": true,
	}
	if symbol := strings.TrimSpace(r.collection.Symbol); symbol != "" {
		doc["symbol"] = symbol
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode collection metadata: %w", err)
	}
	return r.uploader.Upload(ctx, body, "collection-metadata.json", "application/json")
}

// instructions builds the create-collection transaction: a decimals-0 mint,
// sized metadata v3, the identity's token account holding the single token,
// and a master edition with max supply 0. The size starts at zero and the
// metadata program counts each verified member.
func (r *Registrar) instructions(ctx context.Context, mint common.PublicKey, metadataURI string) ([]types.Instruction, error) {
	identity := r.ledger.Identity()
	metadata, err := token_metadata.GetTokenMetaPubkey(mint)
	if err != nil {
		return nil, fmt.Errorf("derive collection metadata: %w", err)
	}
	edition, err := token_metadata.GetMasterEdition(mint)
	if err != nil {
		return nil, fmt.Errorf("derive collection master edition: %w", err)
	}
	ata, _, err := common.FindAssociatedTokenAddress(identity, mint)
	if err != nil {
		return nil, fmt.Errorf("derive collection token account: %w", err)
	}

	var rent uint64
	if err := retry.Do(ctx, r.policy, "mint rent", func(ctx context.Context) error {
		v, err := r.ledger.MinimumBalanceForRentExemption(ctx, token.MintAccountSize)
		rent = v
		return err
	}); err != nil {
		return nil, services.StampStage(err, string(checkpoint.StatusRegisteringCollection))
	}

	maxSupply := uint64(0)
	return []types.Instruction{
		system.CreateAccount(system.CreateAccountParam{
			From:     identity,
			New:      mint,
			Owner:    common.TokenProgramID,
			Lamports: rent,
			Space:    token.MintAccountSize,
		}),
		token.InitializeMint(token.InitializeMintParam{
			Decimals:   0,
			Mint:       mint,
			MintAuth:   identity,
			FreezeAuth: &identity,
		}),
		token_metadata.CreateMetadataAccountV3(token_metadata.CreateMetadataAccountV3Param{
			Metadata:                metadata,
			Mint:                    mint,
			MintAuthority:           identity,
			UpdateAuthority:         identity,
			Payer:                   identity,
			UpdateAuthorityIsSigner: true,
			IsMutable:               r.collection.IsMutable,
			Data: token_metadata.DataV2{
				Name:                 r.collection.Name,
				Symbol:               r.collection.Symbol,
				Uri:                  metadataURI,
				SellerFeeBasisPoints: uint16(r.collection.SellerFeeBasisPoints),
				Creators: &[]token_metadata.Creator{
					{Address: identity, Verified: true, Share: 100},
				},
			},
			CollectionDetails: &token_metadata.CollectionDetails{
				Enum: 0,
				V1:   token_metadata.CollectionDetailsV1{Size: 0},
			},
		}),
		associated_token_account.CreateAssociatedTokenAccount(associated_token_account.CreateAssociatedTokenAccountParam{
			Funder:                 identity,
			Owner:                  identity,
			Mint:                   mint,
			AssociatedTokenAccount: ata,
		}),
		token.MintTo(token.MintToParam{
			Mint:   mint,
			To:     ata,
			Auth:   identity,
			Amount: 1,
		}),
		token_metadata.CreateMasterEditionV3(token_metadata.CreateMasterEditionParam{
			Edition:         edition,
			Mint:            mint,
			UpdateAuthority: identity,
			MintAuthority:   identity,
			Metadata:        metadata,
			Payer:           identity,
			MaxSupply:       &maxSupply,
		}),
	}, nil
}
