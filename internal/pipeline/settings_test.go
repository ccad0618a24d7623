package pipeline_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/blocto/solana-go-sdk/types"

	"mintline/internal/config"
	"mintline/internal/pipeline"
	"mintline/internal/services"
	"mintline/internal/testsupport"
)

func settingsFor(t *testing.T, mutate func(cfg *config.Config)) pipeline.Settings {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	settings, err := pipeline.SettingsFromConfig(cfg)
	if err != nil {
		t.Fatalf("SettingsFromConfig: %v", err)
	}
	return settings
}

func TestSettingsValidate(t *testing.T) {
	other := types.NewAccount().PublicKey.ToBase58()
	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"mint count over supply", func(c *config.Config) { c.Mechanism.ItemsAvailable = 2; c.Mint.ItemCount = 2; c.Mint.Count = 3 }, "mint.count"},
		{"items over supply", func(c *config.Config) { c.Mechanism.ItemsAvailable = 2; c.Mint.Count = 1 }, "mint.item_count"},
		{"empty collection name", func(c *config.Config) { c.Collection.Name = " " }, "collection.name"},
		{"long collection name", func(c *config.Config) { c.Collection.Name = strings.Repeat("x", 33) }, "collection.name"},
		{"fee", func(c *config.Config) { c.Collection.SellerFeeBasisPoints = 10001 }, "collection.seller_fee_basis_points"},
		{"shares", func(c *config.Config) { c.Mechanism.Creators = []config.Creator{{Share: 60}} }, "mechanism.creators"},
		{"bad address", func(c *config.Config) {
			c.Mechanism.Creators = []config.Creator{{Share: 50}, {Address: "not-base58!", Share: 50}}
		}, "mechanism.creators[1].address"},
		{"duplicate creator", func(c *config.Config) {
			c.Mechanism.Creators = []config.Creator{{Address: other, Share: 50}, {Address: other, Share: 50}}
		}, "mechanism.creators[1].address"},
		{"too many creators", func(c *config.Config) {
			c.Mechanism.Creators = []config.Creator{{Share: 20}, {Address: other, Share: 20},
				{Address: types.NewAccount().PublicKey.ToBase58(), Share: 20},
				{Address: types.NewAccount().PublicKey.ToBase58(), Share: 20},
				{Address: types.NewAccount().PublicKey.ToBase58(), Share: 20}}
		}, "mechanism.creators"},
		{"name length", func(c *config.Config) { c.Mechanism.NameLength = 0 }, "mechanism.name_length"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := settingsFor(t, tc.mutate).Validate()
			var cfgErr *services.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if cfgErr.Field != tc.field {
				t.Fatalf("field = %q, want %q (%v)", cfgErr.Field, tc.field, err)
			}
		})
	}
}

func TestSettingsDefaultsValidate(t *testing.T) {
	settings := settingsFor(t, nil)
	if err := settings.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if len(settings.Mechanism.Creators) != 1 || settings.Mechanism.Creators[0].Share != 100 {
		t.Fatalf("expected identity as sole creator, got %+v", settings.Mechanism.Creators)
	}
}

func TestSettingsResolveCreators(t *testing.T) {
	identity := types.NewAccount().PublicKey
	other := types.NewAccount().PublicKey
	settings := settingsFor(t, func(c *config.Config) {
		c.Mechanism.Creators = []config.Creator{{Share: 70}, {Address: other.ToBase58(), Share: 30}}
	})
	creators := settings.ResolveCreators(identity)
	if len(creators) != 2 {
		t.Fatalf("expected 2 creators, got %d", len(creators))
	}
	if creators[0].Address != identity || !creators[0].Verified || creators[0].PercentageShare != 70 {
		t.Fatalf("unexpected identity creator: %+v", creators[0])
	}
	if creators[1].Address != other || creators[1].Verified {
		t.Fatalf("third-party creator must not be verified: %+v", creators[1])
	}
}

func TestSettingsCheckLine(t *testing.T) {
	settings := settingsFor(t, func(c *config.Config) {
		c.Mechanism.PrefixURI = "https://arweave.net/"
		c.Mechanism.URILength = 8
	})
	line, err := settings.CheckLine("Item #1", "https://arweave.net/abc")
	if err != nil {
		t.Fatalf("CheckLine: %v", err)
	}
	if line.URI != "abc" || line.Name != "Item #1" {
		t.Fatalf("unexpected stored line: %+v", line)
	}
	if _, err := settings.CheckLine("Item #1", "https://example.com/abc"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected prefix mismatch to be rejected, got %v", err)
	}
	if _, err := settings.CheckLine("Item #1", "https://arweave.net/abcdefghi"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected overlong uri to be rejected, got %v", err)
	}
}

func TestBatchKeyStable(t *testing.T) {
	settings := settingsFor(t, nil)
	a := pipeline.BatchKey(settings, "images|json", "signer")
	if a != pipeline.BatchKey(settings, "images|json", "signer") {
		t.Fatal("batch key must be deterministic")
	}
	if a == pipeline.BatchKey(settings, "images|json", "other") {
		t.Fatal("batch key must depend on identity")
	}
	settings.ItemCount++
	if a == pipeline.BatchKey(settings, "images|json", "signer") {
		t.Fatal("batch key must depend on item count")
	}
}
