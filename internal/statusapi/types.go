package statusapi

import (
	"time"

	"mintline/internal/checkpoint"
	"mintline/internal/logging"
)

// RunView is the JSON form of a checkpointed run. Pending keypairs are
// never exposed.
type RunView struct {
	ID                string    `json:"id"`
	BatchKey          string    `json:"batch_key"`
	Status            string    `json:"status"`
	FailedStage       string    `json:"failed_stage,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	Identity          string    `json:"identity"`
	ItemCount         int       `json:"item_count"`
	MintCount         int       `json:"mint_count"`
	CollectionMint    string    `json:"collection_mint,omitempty"`
	MechanismAddress  string    `json:"mechanism_address,omitempty"`
	ConfigLinesLoaded int       `json:"config_lines_loaded"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ItemView is one prepared item.
type ItemView struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	ImageURI    string `json:"image_uri"`
	MetadataURI string `json:"metadata_uri"`
}

// MintView is one mint record.
type MintView struct {
	Sequence        int    `json:"sequence"`
	InstanceAddress string `json:"instance_address"`
	Signature       string `json:"signature,omitempty"`
	Confirmed       bool   `json:"confirmed"`
}

// RunListResponse is returned by GET /runs.
type RunListResponse struct {
	Runs []RunView `json:"runs"`
}

// RunDetailResponse is returned by GET /runs/{id}.
type RunDetailResponse struct {
	Run   RunView    `json:"run"`
	Items []ItemView `json:"items"`
	Mints []MintView `json:"mints"`
}

// LogStreamResponse is returned by GET /logs. Next is the cursor to pass as
// since on the following request.
type LogStreamResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// FromRun converts a checkpoint run.
func FromRun(run *checkpoint.Run) RunView {
	return RunView{
		ID:                run.ID,
		BatchKey:          run.BatchKey,
		Status:            string(run.Status),
		FailedStage:       string(run.FailedStage),
		ErrorMessage:      run.ErrorMessage,
		Identity:          run.Identity,
		ItemCount:         run.ItemCount,
		MintCount:         run.MintCount,
		CollectionMint:    run.CollectionMint,
		MechanismAddress:  run.MechanismAddress,
		ConfigLinesLoaded: run.ConfigLinesLoaded,
		CreatedAt:         run.CreatedAt,
		UpdatedAt:         run.UpdatedAt,
	}
}

// NewRunDetail assembles the detail view of one run.
func NewRunDetail(run *checkpoint.Run, items []checkpoint.PreparedItem, mints []checkpoint.MintRecord) RunDetailResponse {
	return RunDetailResponse{
		Run:   FromRun(run),
		Items: fromItems(items),
		Mints: fromMints(mints),
	}
}

func fromItems(items []checkpoint.PreparedItem) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, item := range items {
		out = append(out, ItemView{
			Index:       item.Index,
			Name:        item.Name,
			ImageURI:    item.ImageURI,
			MetadataURI: item.MetadataURI,
		})
	}
	return out
}

func fromMints(mints []checkpoint.MintRecord) []MintView {
	out := make([]MintView, 0, len(mints))
	for _, m := range mints {
		out = append(out, MintView{
			Sequence:        m.Sequence,
			InstanceAddress: m.InstanceAddress,
			Signature:       m.Signature,
			Confirmed:       m.Confirmed,
		})
	}
	return out
}
