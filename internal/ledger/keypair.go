package ledger

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretspb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/blocto/solana-go-sdk/types"

	"mintline/internal/services"
)

// KeypairSource lists the places a signer keypair may come from, in priority
// order: Secret Manager version, environment variable, then file.
type KeypairSource struct {
	Path   string
	Env    string
	Secret string
}

// ErrNoKeypair reports that no keypair source was configured.
var ErrNoKeypair = errors.New("no signer keypair configured")

// LoadKeypair resolves the signer from the first configured source.
func LoadKeypair(ctx context.Context, src KeypairSource) (types.Account, error) {
	if name := strings.TrimSpace(src.Secret); name != "" {
		data, err := accessSecret(ctx, name)
		if err != nil {
			return types.Account{}, services.Wrap(services.ErrConfiguration, "", "load keypair", "secret manager", err)
		}
		return DecodeKeypair(data)
	}
	if env := strings.TrimSpace(src.Env); env != "" {
		if value := strings.TrimSpace(os.Getenv(env)); value != "" {
			return DecodeKeypair([]byte(value))
		}
	}
	if path := strings.TrimSpace(src.Path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return types.Account{}, services.Wrap(services.ErrConfiguration, "", "load keypair", path, err)
		}
		return DecodeKeypair(data)
	}
	return types.Account{}, services.Wrap(services.ErrConfiguration, "", "load keypair", "", ErrNoKeypair)
}

// DecodeKeypair accepts a solana-keygen JSON array of 64 bytes or a base58
// encoded secret key.
func DecodeKeypair(data []byte) (types.Account, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return types.Account{}, services.Wrap(services.ErrConfiguration, "", "decode keypair", "empty keypair", nil)
	}
	if strings.HasPrefix(trimmed, "[") {
		raw, err := decodeKeypairJSON([]byte(trimmed))
		if err != nil {
			return types.Account{}, services.Wrap(services.ErrConfiguration, "", "decode keypair", "", err)
		}
		acc, err := types.AccountFromBytes(raw)
		if err != nil {
			return types.Account{}, services.Wrap(services.ErrConfiguration, "", "decode keypair", "", err)
		}
		return acc, nil
	}
	acc, err := types.AccountFromBase58(trimmed)
	if err != nil {
		return types.Account{}, services.Wrap(services.ErrConfiguration, "", "decode keypair", "base58", err)
	}
	return acc, nil
}

func decodeKeypairJSON(data []byte) ([]byte, error) {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("unmarshal keypair json: %w", err)
	}
	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("unexpected secret key length: got %d, want %d", len(ints), ed25519.PrivateKeySize)
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("byte out of range at %d: %d", i, v)
		}
		out[i] = byte(v)
	}
	return out, nil
}

func accessSecret(ctx context.Context, name string) ([]byte, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secretmanager client: %w", err)
	}
	defer client.Close()

	resp, err := client.AccessSecretVersion(ctx, &secretspb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("access secret version %s: %w", name, err)
	}
	if resp == nil || resp.Payload == nil {
		return nil, fmt.Errorf("secret %s has no payload", name)
	}
	return resp.Payload.Data, nil
}
