package checkpoint

import "time"

// Status is the pipeline state recorded for a run.
type Status string

const (
	StatusIdle                  Status = "idle"
	StatusPreparing             Status = "preparing"
	StatusRegisteringCollection Status = "registering_collection"
	StatusInitializingMechanism Status = "initializing_mechanism"
	StatusMinting               Status = "minting"
	StatusComplete              Status = "complete"
	StatusFailed                Status = "failed"
)

var forwardOrder = []Status{
	StatusIdle,
	StatusPreparing,
	StatusRegisteringCollection,
	StatusInitializingMechanism,
	StatusMinting,
	StatusComplete,
}

// Statuses lists every status in pipeline order, failed last.
func Statuses() []Status {
	out := make([]Status, 0, len(forwardOrder)+1)
	out = append(out, forwardOrder...)
	return append(out, StatusFailed)
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

func (s Status) position() int {
	for i, candidate := range forwardOrder {
		if candidate == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether from -> to is allowed: exactly one step
// forward, or into failed from any non-terminal status.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusFailed {
		return from.position() >= 0
	}
	fromPos, toPos := from.position(), to.position()
	return fromPos >= 0 && toPos == fromPos+1
}

// Run is one execution of the pipeline for a batch.
type Run struct {
	ID                    string    `json:"id"`
	BatchKey              string    `json:"batch_key"`
	Status                Status    `json:"status"`
	FailedStage           Status    `json:"failed_stage,omitempty"`
	ErrorMessage          string    `json:"error_message,omitempty"`
	Identity              string    `json:"identity"`
	ItemCount             int       `json:"item_count"`
	MintCount             int       `json:"mint_count"`
	CollectionMint        string    `json:"collection_mint,omitempty"`
	CollectionMetadataURI string    `json:"collection_metadata_uri,omitempty"`
	PendingCollectionMint string    `json:"pending_collection_mint,omitempty"`
	PendingCollectionKey  []byte    `json:"-"`
	MechanismAddress      string    `json:"mechanism_address,omitempty"`
	PendingMechanism      string    `json:"pending_mechanism,omitempty"`
	PendingMechanismKey   []byte    `json:"-"`
	ConfigLinesLoaded     int       `json:"config_lines_loaded"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Precedes reports whether s comes before other in pipeline order.
func (s Status) Precedes(other Status) bool {
	a, b := s.position(), other.position()
	return a >= 0 && b >= 0 && a < b
}

// ResumeStatus is the first unfinished stage of a run. An unfinished run
// resumes where it stopped; a failed run resumes at the stage that failed,
// or at the first stage whose output is missing when that is unknown.
func (r *Run) ResumeStatus() Status {
	if r.Status != StatusFailed {
		return r.Status
	}
	if r.FailedStage.position() > 0 && !r.FailedStage.IsTerminal() {
		return r.FailedStage
	}
	switch {
	case r.MechanismAddress != "" && r.ConfigLinesLoaded >= r.ItemCount:
		return StatusMinting
	case r.CollectionMint != "":
		return StatusInitializingMechanism
	default:
		return StatusPreparing
	}
}

// PreparedItem is an uploaded item ready to be loaded into the mechanism.
type PreparedItem struct {
	RunID       string    `json:"-"`
	Index       int       `json:"index"`
	Name        string    `json:"name"`
	ImageURI    string    `json:"image_uri"`
	MetadataURI string    `json:"metadata_uri"`
	CreatedAt   time.Time `json:"created_at"`
}

// MintRecord is one mint attempt. A record is written before submission with
// Confirmed=false and updated once the transaction confirms.
type MintRecord struct {
	RunID           string    `json:"-"`
	Sequence        int       `json:"sequence"`
	InstanceAddress string    `json:"instance_address"`
	InstanceKey     []byte    `json:"-"`
	Signature       string    `json:"signature,omitempty"`
	Confirmed       bool      `json:"confirmed"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
