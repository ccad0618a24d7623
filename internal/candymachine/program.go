// Package candymachine builds instructions for the Metaplex Candy Machine Core
// program: account creation and initialize_v2, add_config_lines, and mint_v2.
//
// Instruction data follows the Anchor convention: an 8-byte discriminator
// (sha256("global:<name>")[:8]) followed by borsh-encoded arguments.
package candymachine

import (
	"crypto/sha256"

	"github.com/blocto/solana-go-sdk/common"
)

var (
	// ProgramID is the Candy Machine Core (v3) program.
	ProgramID = common.PublicKeyFromString("CndyV3LdqHUfDLmE5naZjVN8rBZz4tqhdefbAnjHG3JR")

	sysvarInstructions = common.PublicKeyFromString("Sysvar1nstructions1111111111111111111111111")
	sysvarSlotHashes   = common.PublicKeyFromString("SysvarS1otHashes111111111111111111111111111")
)

// TokenStandard values accepted by initialize_v2.
const (
	TokenStandardNonFungible             uint8 = 0
	TokenStandardProgrammableNonFungible uint8 = 4
)

func discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

var (
	initializeV2Discriminator   = discriminator("initialize_v2")
	addConfigLinesDiscriminator = discriminator("add_config_lines")
	mintV2Discriminator         = discriminator("mint_v2")
)

// AuthorityPDA derives the candy machine's signing PDA.
func AuthorityPDA(candyMachine common.PublicKey) (common.PublicKey, error) {
	pda, _, err := common.FindProgramAddress(
		[][]byte{[]byte("candy_machine"), candyMachine.Bytes()},
		ProgramID,
	)
	return pda, err
}

// CollectionDelegateRecord derives the token-metadata delegate record that
// lets the authority PDA verify items into the collection.
func CollectionDelegateRecord(collectionMint, updateAuthority, delegate common.PublicKey) (common.PublicKey, error) {
	pda, _, err := common.FindProgramAddress(
		[][]byte{
			[]byte("metadata"),
			common.MetaplexTokenMetaProgramID.Bytes(),
			collectionMint.Bytes(),
			[]byte("collection_delegate"),
			updateAuthority.Bytes(),
			delegate.Bytes(),
		},
		common.MetaplexTokenMetaProgramID,
	)
	return pda, err
}
