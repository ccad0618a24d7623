package pipeline

import (
	"errors"
	"fmt"

	"mintline/internal/candymachine"
	"mintline/internal/checkpoint"
)

// CollectionDescriptor is the collection NFT anchoring the batch.
type CollectionDescriptor struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	ImageURI      string `json:"image_uri"`
	MetadataURI   string `json:"metadata_uri"`
	MintAddress   string `json:"mint_address"`
	OwnerIdentity string `json:"owner_identity"`
}

// DistributionMechanism is the initialized candy machine.
type DistributionMechanism struct {
	Address            string                          `json:"address"`
	CollectionMint     string                          `json:"collection_mint"`
	ItemsAvailable     int                             `json:"items_available"`
	ItemsLoaded        int                             `json:"items_loaded"`
	ConfigLineSettings candymachine.ConfigLineSettings `json:"config_line_settings"`
}

// Result is everything a completed run produced.
type Result struct {
	RunID      string                    `json:"run_id"`
	Collection CollectionDescriptor      `json:"collection"`
	Mechanism  DistributionMechanism     `json:"mechanism"`
	Items      []checkpoint.PreparedItem `json:"items"`
	Mints      []checkpoint.MintRecord   `json:"mints"`
}

// MintedAddresses lists the instance address of every confirmed mint.
func (r *Result) MintedAddresses() []string {
	out := make([]string, 0, len(r.Mints))
	for _, m := range r.Mints {
		if m.Confirmed {
			out = append(out, m.InstanceAddress)
		}
	}
	return out
}

// StageError reports the stage a run failed in and the triggering error.
type StageError struct {
	RunID string
	Stage checkpoint.Status
	Err   error
}

func (e *StageError) Error() string {
	if e.RunID == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("run %s failed during %s: %v", e.RunID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrIdentityBusy is returned when another run holds the signer identity.
var ErrIdentityBusy = errors.New("another run is using this signer identity")
