package config

const (
	defaultDataDir          = "~/.local/share/ticketsync"
	defaultLedgerFile       = "migration/ticket_details.json"
	defaultArtifactDir      = "complete_ticket_data"
	defaultAttachmentDir    = "attachments"
	defaultTrackerFile      = "migration/attachment_urls.json"
	defaultCompletionDir    = "completion_flags"
	defaultLogDir           = "logs"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
	defaultStoragePrefix    = "attachments"
	defaultS3Region         = "us-east-1"
)

// Ledger backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Storage types.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
	StorageGCS   = "gcs"
)

// Default returns a Config populated with repository defaults. Relative paths
// resolve against paths.data_dir during normalization.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:       defaultDataDir,
			LedgerFile:    defaultLedgerFile,
			ArtifactDir:   defaultArtifactDir,
			AttachmentDir: defaultAttachmentDir,
			TrackerFile:   defaultTrackerFile,
			CompletionDir: defaultCompletionDir,
			LogDir:        defaultLogDir,
		},
		Source: Source{
			BatchSize:      20,
			Concurrency:    20,
			RequestTimeout: 30,
			MaxRetries:     3,
		},
		Ledger: Ledger{
			Backend: BackendJSON,
		},
		Workers: Workers{
			Attachments:             10,
			Conversations:           10,
			ConversationAttachments: 7,
		},
		Workflow: Workflow{
			PollIntervalMillis:              500,
			MaxEmptyChecks:                  60,
			CompletedEmptyChecks:            20,
			UseCompletionFlag:               true,
			ArtifactWaitSeconds:             10,
			ConversationArtifactWaitSeconds: 30,
			ErrorRetryInterval:              5,
			MaxClaimErrors:                  10,
		},
		Pipeline: Pipeline{
			ConsumerDelaySeconds:  5,
			DependentDelaySeconds: 10,
		},
		Storage: Storage{
			Type:   StorageLocal,
			Prefix: defaultStoragePrefix,
			Region: defaultS3Region,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
