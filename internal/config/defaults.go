package config

const (
	defaultStateDir              = "~/.local/share/mintline"
	defaultLogDir                = "~/.local/share/mintline/logs"
	defaultLockDir               = "~/.local/share/mintline/locks"
	defaultImagesDir             = "build/images"
	defaultMetadataDir           = "build/json"
	defaultRPCURL                = "https://api.devnet.solana.com"
	defaultCommitment            = "confirmed"
	defaultConfirmTimeoutSeconds = 90
	defaultPollIntervalMillis    = 500
	defaultStorageBackend        = "irys"
	defaultStorageTimeoutSeconds = 60
	defaultCollectionName        = "Phoenix NFT"
	defaultCollectionDescription = "500 NFTs collection"
	defaultCollectionImageURI    = "https://arweave.net/E28XGBMBQwGVc-XMKVTCGv4cjy36K4vbOy5oLhQclBw"
	defaultSellerFeeBasisPoints  = 999
	defaultItemsAvailable        = 5000
	defaultNameLength            = 32
	defaultURILength             = 200
	defaultConfigLineBatch       = 10
	defaultItemCount             = 3
	defaultMintCount             = 3
	defaultPacingMillis          = 1000
	defaultRetryMaxAttempts      = 4
	defaultRetryInitialMillis    = 500
	defaultRetryMaxMillis        = 8000
	defaultRetryMultiplier       = 2.0
	defaultCheckpointDriver      = "sqlite"
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultAPIBind               = "127.0.0.1:7597"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			LockDir:     defaultLockDir,
			ImagesDir:   defaultImagesDir,
			MetadataDir: defaultMetadataDir,
		},
		Solana: Solana{
			RPCURL:                defaultRPCURL,
			Commitment:            defaultCommitment,
			ConfirmTimeoutSeconds: defaultConfirmTimeoutSeconds,
			PollIntervalMillis:    defaultPollIntervalMillis,
		},
		Storage: Storage{
			Backend:        defaultStorageBackend,
			TimeoutSeconds: defaultStorageTimeoutSeconds,
		},
		Collection: Collection{
			Name:                 defaultCollectionName,
			Description:          defaultCollectionDescription,
			ImageURI:             defaultCollectionImageURI,
			SellerFeeBasisPoints: defaultSellerFeeBasisPoints,
			IsMutable:            true,
		},
		Mechanism: Mechanism{
			ItemsAvailable:  defaultItemsAvailable,
			NameLength:      defaultNameLength,
			URILength:       defaultURILength,
			ConfigLineBatch: defaultConfigLineBatch,
		},
		Mint: Mint{
			ItemCount:    defaultItemCount,
			Count:        defaultMintCount,
			PacingMillis: defaultPacingMillis,
		},
		Retry: Retry{
			MaxAttempts:          defaultRetryMaxAttempts,
			InitialBackoffMillis: defaultRetryInitialMillis,
			MaxBackoffMillis:     defaultRetryMaxMillis,
			Multiplier:           defaultRetryMultiplier,
		},
		Checkpoint: Checkpoint{
			Driver: defaultCheckpointDriver,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		API: API{
			Bind: defaultAPIBind,
		},
	}
}
