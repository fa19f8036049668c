package config

const (
	defaultConfigPath                = "~/.config/clipforge/config.toml"
	defaultDataDir                   = "~/.local/share/clipforge"
	defaultWorkDir                   = "~/.local/share/clipforge/work"
	defaultLogDir                    = "~/.local/share/clipforge/logs"
	defaultObjectStoreRoot           = "~/.local/share/clipforge/objects"
	defaultPreviewTTLDays            = 7
	defaultBucket                    = "uploads"
	defaultPublicBaseURL             = "http://localhost:9000"
	defaultFFmpegBinary              = "ffmpeg"
	defaultFFprobeBinary             = "ffprobe"
	defaultTranscoderTimeout         = 1800
	defaultPreviewVideoKbps          = 400
	defaultPreviewAudioKbps          = 64
	defaultSilenceThresholdDB        = -35
	defaultSilenceMinSeconds         = 0.4
	defaultTranscriptionBaseURL      = "https://api.openai.com/v1"
	defaultTranscriptionModel        = "whisper-1"
	defaultTranscriptionMaxAttempts  = 5
	defaultTranscriptionBackoffBase  = 1.0
	defaultTranscriptionTimeout      = 600
	defaultWorkflowWorkers           = 4
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
	defaultWorkflowMaxDeliveries     = 3
	defaultAPIBind                   = "127.0.0.1:8080"
	defaultMaxUploadMB               = 2048
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"

	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
	ObjectStoreFS    = "fs"
	ObjectStoreS3    = "s3"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		Database: Database{
			Driver: DatabaseSQLite,
		},
		ObjectStore: ObjectStore{
			Backend:        ObjectStoreFS,
			Root:           defaultObjectStoreRoot,
			Bucket:         defaultBucket,
			PublicBaseURL:  defaultPublicBaseURL,
			PreviewTTLDays: defaultPreviewTTLDays,
		},
		Transcoder: Transcoder{
			FFmpegBinary:       defaultFFmpegBinary,
			FFprobeBinary:      defaultFFprobeBinary,
			TimeoutSeconds:     defaultTranscoderTimeout,
			PreviewVideoKbps:   defaultPreviewVideoKbps,
			PreviewAudioKbps:   defaultPreviewAudioKbps,
			SilenceThresholdDB: defaultSilenceThresholdDB,
			SilenceMinSeconds:  defaultSilenceMinSeconds,
		},
		Transcription: Transcription{
			BaseURL:            defaultTranscriptionBaseURL,
			Model:              defaultTranscriptionModel,
			MaxAttempts:        defaultTranscriptionMaxAttempts,
			BackoffBaseSeconds: defaultTranscriptionBackoffBase,
			TimeoutSeconds:     defaultTranscriptionTimeout,
		},
		Workflow: Workflow{
			Workers:            defaultWorkflowWorkers,
			QueuePollInterval:  2,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
			MaxDeliveries:      defaultWorkflowMaxDeliveries,
		},
		API: API{
			Bind:        defaultAPIBind,
			MaxUploadMB: defaultMaxUploadMB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
