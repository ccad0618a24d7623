package candymachine

import (
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/near/borsh-go"
)

// CreateParam holds the accounts and data for a new candy machine.
type CreateParam struct {
	CandyMachine     common.PublicKey
	Authority        common.PublicKey
	Payer            common.PublicKey
	CollectionMint   common.PublicKey
	CollectionAuth   common.PublicKey
	Data             Data
	TokenStandard    uint8
	RentExemptAmount uint64
}

// Create returns the system create-account instruction followed by
// initialize_v2. The candy machine keypair and collection update authority
// must sign.
func Create(p CreateParam) ([]types.Instruction, error) {
	if err := p.Data.Validate(); err != nil {
		return nil, err
	}
	space := AccountSize(p.Data)
	initIx, err := InitializeV2(p)
	if err != nil {
		return nil, err
	}
	return []types.Instruction{
		system.CreateAccount(system.CreateAccountParam{
			From:     p.Payer,
			New:      p.CandyMachine,
			Owner:    ProgramID,
			Lamports: p.RentExemptAmount,
			Space:    space,
		}),
		initIx,
	}, nil
}

type initializeV2Args struct {
	Data          Data
	TokenStandard uint8
}

// InitializeV2 builds the initialize_v2 instruction.
func InitializeV2(p CreateParam) (types.Instruction, error) {
	authorityPDA, err := AuthorityPDA(p.CandyMachine)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive authority pda: %w", err)
	}
	collectionMetadata, err := token_metadata.GetTokenMetaPubkey(p.CollectionMint)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive collection metadata: %w", err)
	}
	collectionEdition, err := token_metadata.GetMasterEdition(p.CollectionMint)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive collection master edition: %w", err)
	}
	delegateRecord, err := CollectionDelegateRecord(p.CollectionMint, p.CollectionAuth, authorityPDA)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive collection delegate record: %w", err)
	}

	data, err := encode(initializeV2Discriminator, initializeV2Args{Data: p.Data, TokenStandard: p.TokenStandard})
	if err != nil {
		return types.Instruction{}, err
	}

	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			{PubKey: p.CandyMachine, IsSigner: false, IsWritable: true},
			{PubKey: authorityPDA, IsSigner: false, IsWritable: true},
			{PubKey: p.Authority, IsSigner: false, IsWritable: false},
			{PubKey: p.Payer, IsSigner: true, IsWritable: true},
			none(), // rule set
			{PubKey: collectionMetadata, IsSigner: false, IsWritable: true},
			{PubKey: p.CollectionMint, IsSigner: false, IsWritable: false},
			{PubKey: collectionEdition, IsSigner: false, IsWritable: false},
			{PubKey: p.CollectionAuth, IsSigner: true, IsWritable: true},
			{PubKey: delegateRecord, IsSigner: false, IsWritable: true},
			{PubKey: common.MetaplexTokenMetaProgramID, IsSigner: false, IsWritable: false},
			{PubKey: common.SystemProgramID, IsSigner: false, IsWritable: false},
			{PubKey: sysvarInstructions, IsSigner: false, IsWritable: false},
			none(), // authorization rules program
			none(), // authorization rules
		},
		Data: data,
	}, nil
}

type addConfigLinesArgs struct {
	Index       uint32
	ConfigLines []ConfigLine
}

// AddConfigLines loads lines starting at index. Lines must already be in
// their stored (prefix-stripped) form.
func AddConfigLines(candyMachine, authority common.PublicKey, index uint32, lines []ConfigLine) (types.Instruction, error) {
	if len(lines) == 0 {
		return types.Instruction{}, fmt.Errorf("no config lines to add")
	}
	data, err := encode(addConfigLinesDiscriminator, addConfigLinesArgs{Index: index, ConfigLines: lines})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			{PubKey: candyMachine, IsSigner: false, IsWritable: true},
			{PubKey: authority, IsSigner: true, IsWritable: false},
		},
		Data: data,
	}, nil
}

// MintParam holds the accounts for one mint_v2 call.
type MintParam struct {
	CandyMachine   common.PublicKey
	MintAuthority  common.PublicKey
	Payer          common.PublicKey
	Owner          common.PublicKey
	NFTMint        common.PublicKey
	CollectionMint common.PublicKey
	CollectionAuth common.PublicKey
}

// MintV2 builds the mint_v2 instruction for a new NFT mint keypair. The mint
// authority, the payer and the new mint must sign.
func MintV2(p MintParam) (types.Instruction, error) {
	authorityPDA, err := AuthorityPDA(p.CandyMachine)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive authority pda: %w", err)
	}
	nftMetadata, err := token_metadata.GetTokenMetaPubkey(p.NFTMint)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive nft metadata: %w", err)
	}
	nftEdition, err := token_metadata.GetMasterEdition(p.NFTMint)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive nft master edition: %w", err)
	}
	tokenAccount, _, err := common.FindAssociatedTokenAddress(p.Owner, p.NFTMint)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive token account: %w", err)
	}
	collectionMetadata, err := token_metadata.GetTokenMetaPubkey(p.CollectionMint)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive collection metadata: %w", err)
	}
	collectionEdition, err := token_metadata.GetMasterEdition(p.CollectionMint)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive collection master edition: %w", err)
	}
	delegateRecord, err := CollectionDelegateRecord(p.CollectionMint, p.CollectionAuth, authorityPDA)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive collection delegate record: %w", err)
	}

	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			{PubKey: p.CandyMachine, IsSigner: false, IsWritable: true},
			{PubKey: authorityPDA, IsSigner: false, IsWritable: true},
			{PubKey: p.MintAuthority, IsSigner: true, IsWritable: false},
			{PubKey: p.Payer, IsSigner: true, IsWritable: true},
			{PubKey: p.Owner, IsSigner: false, IsWritable: false},
			{PubKey: p.NFTMint, IsSigner: true, IsWritable: true},
			{PubKey: p.Payer, IsSigner: true, IsWritable: false}, // nft mint authority
			{PubKey: nftMetadata, IsSigner: false, IsWritable: true},
			{PubKey: nftEdition, IsSigner: false, IsWritable: true},
			{PubKey: tokenAccount, IsSigner: false, IsWritable: true},
			none(), // token record
			{PubKey: delegateRecord, IsSigner: false, IsWritable: false},
			{PubKey: p.CollectionMint, IsSigner: false, IsWritable: false},
			{PubKey: collectionMetadata, IsSigner: false, IsWritable: true},
			{PubKey: collectionEdition, IsSigner: false, IsWritable: false},
			{PubKey: p.CollectionAuth, IsSigner: false, IsWritable: false},
			{PubKey: common.MetaplexTokenMetaProgramID, IsSigner: false, IsWritable: false},
			{PubKey: common.TokenProgramID, IsSigner: false, IsWritable: false},
			{PubKey: common.SPLAssociatedTokenAccountProgramID, IsSigner: false, IsWritable: false},
			{PubKey: common.SystemProgramID, IsSigner: false, IsWritable: false},
			{PubKey: sysvarInstructions, IsSigner: false, IsWritable: false},
			{PubKey: sysvarSlotHashes, IsSigner: false, IsWritable: false},
			none(), // authorization rules program
			none(), // authorization rules
		},
		Data: append([]byte(nil), mintV2Discriminator[:]...),
	}, nil
}

// none marks an omitted optional Anchor account.
func none() types.AccountMeta {
	return types.AccountMeta{PubKey: ProgramID, IsSigner: false, IsWritable: false}
}

func encode(disc [8]byte, args any) ([]byte, error) {
	body, err := borsh.Serialize(args)
	if err != nil {
		return nil, fmt.Errorf("borsh encode: %w", err)
	}
	out := make([]byte, 0, len(disc)+len(body))
	out = append(out, disc[:]...)
	return append(out, body...), nil
}
