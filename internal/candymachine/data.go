package candymachine

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/blocto/solana-go-sdk/common"
)

// Fixed-size portion of a candy machine account that precedes config lines.
const (
	maxSymbolLength  = 10
	maxCreatorLimit  = 5
	maxCreatorLen    = 32 + 1 + 1
	maxNameLength    = 32
	maxURILength     = 200
	hiddenSectionLen = 8 + // discriminator
		1 + // version
		1 + // token standard
		6 + // features
		32 + // authority
		32 + // mint authority
		32 + // collection mint
		8 + // items redeemed
		8 + // items available
		4 + maxSymbolLength +
		2 + // seller fee basis points
		8 + // max supply
		1 + // is mutable
		4 + maxCreatorLimit*maxCreatorLen +
		1 + 4 + maxNameLength + 4 + 4 + maxURILength + 4 + 1 + // config line settings
		1 + 4 + maxNameLength + 4 + maxURILength + 32 // hidden settings

	// MaxCreators is the creator limit the mechanism leaves room for; one
	// slot is reserved for the candy machine authority PDA on minted items.
	MaxCreators = maxCreatorLimit - 1
)

// Creator is a royalty recipient on minted items.
type Creator struct {
	Address         common.PublicKey
	Verified        bool
	PercentageShare uint8
}

// ConfigLineSettings describes how item names and URIs are stored.
type ConfigLineSettings struct {
	PrefixName   string
	NameLength   uint32
	PrefixURI    string
	URILength    uint32
	IsSequential bool
}

// HiddenSettings is never used here but keeps the borsh layout complete.
type HiddenSettings struct {
	Name string
	URI  string
	Hash [32]byte
}

// Data is the borsh layout of CandyMachineData.
type Data struct {
	ItemsAvailable       uint64
	Symbol               string
	SellerFeeBasisPoints uint16
	MaxSupply            uint64
	IsMutable            bool
	Creators             []Creator
	ConfigLineSettings   *ConfigLineSettings
	HiddenSettings       *HiddenSettings
}

// ConfigLine is one item loaded into the mechanism.
type ConfigLine struct {
	Name string
	URI  string
}

// Validate checks the invariants the program enforces at initialization.
func (d Data) Validate() error {
	if d.ItemsAvailable == 0 {
		return errors.New("items available must be positive")
	}
	if len(d.Symbol) > maxSymbolLength {
		return fmt.Errorf("symbol exceeds %d bytes", maxSymbolLength)
	}
	if d.SellerFeeBasisPoints > 10000 {
		return errors.New("seller fee basis points exceed 10000")
	}
	if len(d.Creators) == 0 || len(d.Creators) > MaxCreators {
		return fmt.Errorf("creator count must be between 1 and %d", MaxCreators)
	}
	total := 0
	for _, c := range d.Creators {
		total += int(c.PercentageShare)
	}
	if total != 100 {
		return fmt.Errorf("creator shares sum to %d, want 100", total)
	}
	if s := d.ConfigLineSettings; s != nil {
		if len(s.PrefixName)+int(s.NameLength) > maxNameLength {
			return fmt.Errorf("prefix name plus name length exceed %d", maxNameLength)
		}
		if len(s.PrefixURI)+int(s.URILength) > maxURILength {
			return fmt.Errorf("prefix uri plus uri length exceed %d", maxURILength)
		}
	}
	return nil
}

// AccountSize returns the byte size of a candy machine account for d.
func AccountSize(d Data) uint64 {
	if d.ConfigLineSettings == nil || d.HiddenSettings != nil {
		return hiddenSectionLen
	}
	items := d.ItemsAvailable
	lineLen := uint64(d.ConfigLineSettings.NameLength) + uint64(d.ConfigLineSettings.URILength)
	return hiddenSectionLen +
		4 + // loaded line count
		items*lineLen +
		(items/8 + 1) + // loaded bitmask
		4 + items*4 // mint indices
}

// StoredLine returns the portion of line actually written on-chain once the
// configured prefixes are stripped, validating it against the lengths.
func StoredLine(settings ConfigLineSettings, line ConfigLine) (ConfigLine, error) {
	name, ok := stripPrefix(line.Name, settings.PrefixName)
	if !ok {
		return ConfigLine{}, fmt.Errorf("name %q does not start with prefix %q", line.Name, settings.PrefixName)
	}
	uri, ok := stripPrefix(line.URI, settings.PrefixURI)
	if !ok {
		return ConfigLine{}, fmt.Errorf("uri %q does not start with prefix %q", line.URI, settings.PrefixURI)
	}
	if uint32(len(name)) > settings.NameLength {
		return ConfigLine{}, fmt.Errorf("name %q is %d bytes, limit %d", line.Name, len(name), settings.NameLength)
	}
	if uint32(len(uri)) > settings.URILength {
		return ConfigLine{}, fmt.Errorf("uri %q is %d bytes, limit %d", line.URI, len(uri), settings.URILength)
	}
	if !utf8.ValidString(name) || !utf8.ValidString(uri) {
		return ConfigLine{}, errors.New("config line must be valid UTF-8")
	}
	return ConfigLine{Name: name, URI: uri}, nil
}

func stripPrefix(value, prefix string) (string, bool) {
	if prefix == "" {
		return value, true
	}
	if len(value) < len(prefix) || value[:len(prefix)] != prefix {
		return "", false
	}
	return value[len(prefix):], true
}
