package pipeline

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/mr-tron/base58"

	"mintline/internal/candymachine"
	"mintline/internal/config"
	"mintline/internal/ledger"
	"mintline/internal/services"
)

// Metadata program limits for the collection NFT.
const (
	maxMetadataNameLength   = 32
	maxMetadataSymbolLength = 10
	maxSellerFeeBasisPoints = 10000
)

// CollectionSpec configures the collection NFT.
type CollectionSpec struct {
	Name                 string
	Symbol               string
	Description          string
	ImageURI             string
	SellerFeeBasisPoints int
	IsMutable            bool
}

// MechanismSpec configures the candy machine.
type MechanismSpec struct {
	ItemsAvailable  int
	ConfigLines     candymachine.ConfigLineSettings
	ConfigLineBatch int
	Creators        []config.Creator
}

// Settings is the validated configuration surface of one pipeline run.
type Settings struct {
	ItemCount  int
	MintCount  int
	Pacing     time.Duration
	Commitment ledger.Commitment
	Collection CollectionSpec
	Mechanism  MechanismSpec
}

// SettingsFromConfig maps the loaded configuration onto pipeline settings.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	commitment, err := ledger.ParseCommitment(cfg.Solana.Commitment)
	if err != nil {
		return Settings{}, services.NewConfigurationError("solana.commitment", err.Error())
	}
	creators := make([]config.Creator, len(cfg.Mechanism.Creators))
	copy(creators, cfg.Mechanism.Creators)
	if len(creators) == 0 {
		creators = []config.Creator{{Share: 100}}
	}
	return Settings{
		ItemCount:  cfg.Mint.ItemCount,
		MintCount:  cfg.Mint.Count,
		Pacing:     time.Duration(cfg.Mint.PacingMillis) * time.Millisecond,
		Commitment: commitment,
		Collection: CollectionSpec{
			Name:                 cfg.Collection.Name,
			Symbol:               cfg.Collection.Symbol,
			Description:          cfg.Collection.Description,
			ImageURI:             cfg.Collection.ImageURI,
			SellerFeeBasisPoints: cfg.Collection.SellerFeeBasisPoints,
			IsMutable:            cfg.Collection.IsMutable,
		},
		Mechanism: MechanismSpec{
			ItemsAvailable: cfg.Mechanism.ItemsAvailable,
			ConfigLines: candymachine.ConfigLineSettings{
				PrefixName:   cfg.Mechanism.PrefixName,
				NameLength:   uint32(max(cfg.Mechanism.NameLength, 0)),
				PrefixURI:    cfg.Mechanism.PrefixURI,
				URILength:    uint32(max(cfg.Mechanism.URILength, 0)),
				IsSequential: cfg.Mechanism.IsSequential,
			},
			ConfigLineBatch: cfg.Mechanism.ConfigLineBatch,
			Creators:        creators,
		},
	}, nil
}

// Validate enforces every business rule that can be checked without a
// network call. Violations are reported as *services.ConfigurationError.
func (s Settings) Validate() error {
	if s.ItemCount < 0 {
		return services.NewConfigurationError("mint.item_count", "must be >= 0")
	}
	if s.MintCount < 0 {
		return services.NewConfigurationError("mint.count", "must be >= 0")
	}
	if s.Pacing < 0 {
		return services.NewConfigurationError("mint.pacing_ms", "must be >= 0")
	}
	if s.Mechanism.ItemsAvailable <= 0 {
		return services.NewConfigurationError("mechanism.items_available", "must be positive")
	}
	if s.MintCount > s.Mechanism.ItemsAvailable {
		return services.NewConfigurationError("mint.count",
			fmt.Sprintf("%d exceeds mechanism.items_available %d", s.MintCount, s.Mechanism.ItemsAvailable))
	}
	if s.ItemCount > s.Mechanism.ItemsAvailable {
		return services.NewConfigurationError("mint.item_count",
			fmt.Sprintf("%d exceeds mechanism.items_available %d", s.ItemCount, s.Mechanism.ItemsAvailable))
	}
	if s.Mechanism.ConfigLineBatch <= 0 {
		return services.NewConfigurationError("mechanism.config_line_batch", "must be positive")
	}
	if err := s.validateCollection(); err != nil {
		return err
	}
	if err := s.validateCreators(); err != nil {
		return err
	}
	return s.validateConfigLines()
}

func (s Settings) validateCollection() error {
	name := strings.TrimSpace(s.Collection.Name)
	if name == "" {
		return services.NewConfigurationError("collection.name", "must be set")
	}
	if len(name) > maxMetadataNameLength {
		return services.NewConfigurationError("collection.name", fmt.Sprintf("exceeds %d bytes", maxMetadataNameLength))
	}
	if len(s.Collection.Symbol) > maxMetadataSymbolLength {
		return services.NewConfigurationError("collection.symbol", fmt.Sprintf("exceeds %d bytes", maxMetadataSymbolLength))
	}
	if s.Collection.SellerFeeBasisPoints < 0 || s.Collection.SellerFeeBasisPoints > maxSellerFeeBasisPoints {
		return services.NewConfigurationError("collection.seller_fee_basis_points", "must be between 0 and 10000")
	}
	if strings.TrimSpace(s.Collection.ImageURI) == "" {
		return services.NewConfigurationError("collection.image_uri", "must be set")
	}
	return nil
}

func (s Settings) validateCreators() error {
	creators := s.Mechanism.Creators
	if len(creators) == 0 || len(creators) > candymachine.MaxCreators {
		return services.NewConfigurationError("mechanism.creators",
			fmt.Sprintf("must list between 1 and %d creators", candymachine.MaxCreators))
	}
	total := 0
	seen := make(map[string]struct{}, len(creators))
	for i, c := range creators {
		if c.Share < 0 || c.Share > 100 {
			return services.NewConfigurationError(fmt.Sprintf("mechanism.creators[%d].share", i), "must be between 0 and 100")
		}
		total += c.Share
		addr := strings.TrimSpace(c.Address)
		if addr != "" {
			if raw, err := base58.Decode(addr); err != nil || len(raw) != common.PublicKeyLength {
				return services.NewConfigurationError(fmt.Sprintf("mechanism.creators[%d].address", i), "is not a valid public key")
			}
		}
		if _, dup := seen[addr]; dup {
			return services.NewConfigurationError(fmt.Sprintf("mechanism.creators[%d].address", i), "is listed twice")
		}
		seen[addr] = struct{}{}
	}
	if total != 100 {
		return services.NewConfigurationError("mechanism.creators", fmt.Sprintf("shares sum to %d, must sum to 100", total))
	}
	return nil
}

func (s Settings) validateConfigLines() error {
	cl := s.Mechanism.ConfigLines
	if cl.NameLength == 0 {
		return services.NewConfigurationError("mechanism.name_length", "must be positive")
	}
	if cl.URILength == 0 {
		return services.NewConfigurationError("mechanism.uri_length", "must be positive")
	}
	if err := (candymachine.Data{
		ItemsAvailable:     uint64(s.Mechanism.ItemsAvailable),
		Creators:           []candymachine.Creator{{PercentageShare: 100}},
		ConfigLineSettings: &cl,
	}).Validate(); err != nil {
		return services.NewConfigurationError("mechanism", err.Error())
	}
	return nil
}

// ResolveCreators maps the configured creator table onto on-chain creators.
// An empty address stands for the signer identity.
func (s Settings) ResolveCreators(identity common.PublicKey) []candymachine.Creator {
	out := make([]candymachine.Creator, 0, len(s.Mechanism.Creators))
	for _, c := range s.Mechanism.Creators {
		addr := identity
		if trimmed := strings.TrimSpace(c.Address); trimmed != "" {
			addr = common.PublicKeyFromString(trimmed)
		}
		out = append(out, candymachine.Creator{
			Address:         addr,
			Verified:        addr == identity,
			PercentageShare: uint8(c.Share),
		})
	}
	return out
}

// CheckLine validates one item against the config line settings and
// returns the form stored on chain.
func (s Settings) CheckLine(name, uri string) (candymachine.ConfigLine, error) {
	if !utf8.ValidString(name) {
		return candymachine.ConfigLine{}, services.NewConfigurationError("item name", "must be valid UTF-8")
	}
	line, err := candymachine.StoredLine(s.Mechanism.ConfigLines, candymachine.ConfigLine{Name: name, URI: uri})
	if err != nil {
		return candymachine.ConfigLine{}, services.NewConfigurationError("mechanism.config_line", err.Error())
	}
	return line, nil
}

// Warnings lists settings that validate but are likely mistakes.
func (s Settings) Warnings() []string {
	var out []string
	if s.ItemCount < s.Mechanism.ItemsAvailable {
		out = append(out, fmt.Sprintf(
			"mechanism.items_available (%d) exceeds mint.item_count (%d); the candy machine program refuses to mint until every line is loaded",
			s.Mechanism.ItemsAvailable, s.ItemCount))
	}
	if s.MintCount > s.ItemCount {
		out = append(out, fmt.Sprintf("mint.count (%d) exceeds mint.item_count (%d)", s.MintCount, s.ItemCount))
	}
	return out
}
