package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"

	"mintline/internal/candymachine"
	"mintline/internal/checkpoint"
	"mintline/internal/ledger"
	"mintline/internal/logging"
	"mintline/internal/retry"
	"mintline/internal/services"
)

// Initializer creates the candy machine and loads the prepared items into it.
type Initializer struct {
	ledger     ledger.Client
	store      *checkpoint.Store
	policy     retry.Policy
	settings   Settings
	commitment ledger.Commitment
	logger     *slog.Logger
}

// NewInitializer builds an Initializer.
func NewInitializer(client ledger.Client, store *checkpoint.Store, policy retry.Policy, settings Settings, logger *slog.Logger) *Initializer {
	return &Initializer{
		ledger:     client,
		store:      store,
		policy:     policy,
		settings:   settings,
		commitment: settings.Commitment,
		logger:     logging.NewComponentLogger(logger, "initializer"),
	}
}

// Mechanism describes the run's candy machine as far as it is recorded.
func (i *Initializer) Mechanism(run *checkpoint.Run) DistributionMechanism {
	return DistributionMechanism{
		Address:            run.MechanismAddress,
		CollectionMint:     run.CollectionMint,
		ItemsAvailable:     i.settings.Mechanism.ItemsAvailable,
		ItemsLoaded:        run.ConfigLinesLoaded,
		ConfigLineSettings: i.settings.Mechanism.ConfigLines,
	}
}

// Initialize creates the candy machine bound to the collection and loads
// items as config lines in batches. Both steps resume from the checkpoint.
func (i *Initializer) Initialize(ctx context.Context, run *checkpoint.Run, collection CollectionDescriptor, items []checkpoint.PreparedItem) (DistributionMechanism, error) {
	if collection.MintAddress == "" {
		return DistributionMechanism{}, services.Wrap(services.ErrValidation, string(checkpoint.StatusInitializingMechanism),
			"initialize mechanism", "collection mint missing", nil)
	}
	lines, err := i.configLines(items)
	if err != nil {
		return DistributionMechanism{}, err
	}

	if run.MechanismAddress == "" {
		if err := i.create(ctx, run, common.PublicKeyFromString(collection.MintAddress)); err != nil {
			return DistributionMechanism{}, err
		}
	}
	if err := i.loadLines(ctx, run, lines); err != nil {
		return DistributionMechanism{}, err
	}
	if run.PendingMechanism != "" {
		if err := i.store.ClearPendingMechanism(ctx, run.ID); err != nil {
			return DistributionMechanism{}, err
		}
		run.PendingMechanism = ""
		run.PendingMechanismKey = nil
	}
	return i.Mechanism(run), nil
}

func (i *Initializer) configLines(items []checkpoint.PreparedItem) ([]candymachine.ConfigLine, error) {
	lines := make([]candymachine.ConfigLine, 0, len(items))
	for idx, item := range items {
		if item.Index != idx {
			return nil, services.Wrap(services.ErrValidation, string(checkpoint.StatusInitializingMechanism),
				"config lines", fmt.Sprintf("prepared items are not contiguous at index %d", idx), nil)
		}
		line, err := i.settings.CheckLine(item.Name, item.MetadataURI)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (i *Initializer) create(ctx context.Context, run *checkpoint.Run, collectionMint common.PublicKey) error {
	stage := string(checkpoint.StatusInitializingMechanism)
	account, resumed, err := pendingAccount(run.PendingMechanismKey)
	if err != nil {
		return fmt.Errorf("restore pending candy machine keypair: %w", err)
	}
	address := account.PublicKey.ToBase58()

	if resumed {
		landed, err := adoptIfLanded(ctx, i.ledger, i.policy, account.PublicKey)
		if err != nil {
			return services.StampStage(err, stage)
		}
		if landed {
			i.logger.Info("adopting candy machine from earlier attempt", logging.Address(address))
			return i.recordMechanism(ctx, run, address)
		}
	} else if err := i.store.SetPendingMechanism(ctx, run.ID, address, account.PrivateKey); err != nil {
		return err
	}
	run.PendingMechanism = address
	run.PendingMechanismKey = account.PrivateKey

	identity := i.ledger.Identity()
	data := candymachine.Data{
		ItemsAvailable:       uint64(i.settings.Mechanism.ItemsAvailable),
		Symbol:               i.settings.Collection.Symbol,
		SellerFeeBasisPoints: uint16(i.settings.Collection.SellerFeeBasisPoints),
		MaxSupply:            0,
		IsMutable:            i.settings.Collection.IsMutable,
		Creators:             i.settings.ResolveCreators(identity),
		ConfigLineSettings:   &i.settings.Mechanism.ConfigLines,
	}
	if err := data.Validate(); err != nil {
		return services.NewConfigurationError("mechanism", err.Error())
	}

	size := candymachine.AccountSize(data)
	var rent uint64
	if err := retry.Do(ctx, i.policy, "candy machine rent", func(ctx context.Context) error {
		v, err := i.ledger.MinimumBalanceForRentExemption(ctx, size)
		rent = v
		return err
	}); err != nil {
		return services.StampStage(err, stage)
	}

	instructions, err := candymachine.Create(candymachine.CreateParam{
		CandyMachine:     account.PublicKey,
		Authority:        identity,
		Payer:            identity,
		CollectionMint:   collectionMint,
		CollectionAuth:   identity,
		Data:             data,
		TokenStandard:    candymachine.TokenStandardNonFungible,
		RentExemptAmount: rent,
	})
	if err != nil {
		return fmt.Errorf("build candy machine instructions: %w", err)
	}

	receipt, err := submit(ctx, i.ledger, i.policy, stage, ledger.Transaction{
		Label:        "initialize candy machine",
		Instructions: instructions,
		Signers:      []types.Account{account},
	}, i.commitment)
	if err != nil {
		return err
	}
	i.logger.Info("candy machine initialized",
		logging.Address(address),
		logging.Signature(receipt.Signature),
		logging.Int("items_available", i.settings.Mechanism.ItemsAvailable),
		logging.Uint64("account_size", size),
	)
	return i.recordMechanism(ctx, run, address)
}

func (i *Initializer) recordMechanism(ctx context.Context, run *checkpoint.Run, address string) error {
	if err := i.store.SetMechanism(ctx, run.ID, address); err != nil {
		return err
	}
	run.MechanismAddress = address
	return nil
}

func (i *Initializer) loadLines(ctx context.Context, run *checkpoint.Run, lines []candymachine.ConfigLine) error {
	stage := string(checkpoint.StatusInitializingMechanism)
	candyMachine := common.PublicKeyFromString(run.MechanismAddress)
	batch := i.settings.Mechanism.ConfigLineBatch

	for loaded := run.ConfigLinesLoaded; loaded < len(lines); {
		ix, end, err := i.fitConfigLines(candyMachine, lines, loaded, min(loaded+batch, len(lines)))
		if err != nil {
			return err
		}
		receipt, err := submit(ctx, i.ledger, i.policy, stage, ledger.Transaction{
			Label:        fmt.Sprintf("add config lines %d-%d", loaded, end-1),
			Instructions: []types.Instruction{ix},
		}, i.commitment)
		if err != nil {
			return err
		}
		if err := i.store.SetConfigLinesLoaded(ctx, run.ID, end); err != nil {
			return err
		}
		run.ConfigLinesLoaded = end
		i.logger.Info("config lines loaded",
			logging.Int("from", loaded),
			logging.Int("to", end-1),
			logging.Int("total", len(lines)),
			logging.Signature(receipt.Signature),
		)
		loaded = end
	}
	return nil
}

// fitConfigLines builds the add_config_lines instruction for lines[from:end],
// shrinking end until the transaction fits the packet limit.
func (i *Initializer) fitConfigLines(candyMachine common.PublicKey, lines []candymachine.ConfigLine, from, end int) (types.Instruction, int, error) {
	identity := i.ledger.Identity()
	for ; end > from; end-- {
		ix, err := candymachine.AddConfigLines(candyMachine, identity, uint32(from), lines[from:end])
		if err != nil {
			return types.Instruction{}, 0, fmt.Errorf("build config lines %d-%d: %w", from, end-1, err)
		}
		fits, err := ledger.Fits(identity, ix)
		if err != nil {
			return types.Instruction{}, 0, fmt.Errorf("size config lines %d-%d: %w", from, end-1, err)
		}
		if fits {
			return ix, end, nil
		}
	}
	return types.Instruction{}, 0, services.NewConfigurationError("mechanism.uri_length",
		fmt.Sprintf("config line %d does not fit in one transaction", from))
}
