package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateObjectStore(); err != nil {
		return err
	}
	if err := c.validateTranscoder(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DatabaseSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database.path must be set for the sqlite driver")
		}
	case DatabasePostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver (or set %s)", envDatabaseDSN)
		}
	default:
		return fmt.Errorf("database.driver: unsupported value %q", c.Database.Driver)
	}
	return nil
}

func (c *Config) validateObjectStore() error {
	switch c.ObjectStore.Backend {
	case ObjectStoreFS:
		if strings.TrimSpace(c.ObjectStore.Root) == "" {
			return errors.New("object_store.root must be set for the fs backend")
		}
	case ObjectStoreS3:
		if c.ObjectStore.Endpoint == "" {
			return errors.New("object_store.endpoint must be set for the s3 backend")
		}
		if c.ObjectStore.AccessKey == "" || c.ObjectStore.SecretKey == "" {
			return fmt.Errorf("object_store credentials are required for the s3 backend (or set %s and %s)", envS3AccessKey, envS3SecretKey)
		}
	default:
		return fmt.Errorf("object_store.backend: unsupported value %q", c.ObjectStore.Backend)
	}
	if c.ObjectStore.PreviewTTLDays < 0 {
		return errors.New("object_store.preview_ttl_days must be >= 0")
	}
	return nil
}

func (c *Config) validateTranscoder() error {
	if err := ensurePositiveMap(map[string]int{
		"transcoder.timeout_seconds":    c.Transcoder.TimeoutSeconds,
		"transcoder.preview_video_kbps": c.Transcoder.PreviewVideoKbps,
		"transcoder.preview_audio_kbps": c.Transcoder.PreviewAudioKbps,
	}); err != nil {
		return err
	}
	if c.Transcoder.SilenceThresholdDB >= 0 {
		return errors.New("transcoder.silence_threshold_db must be negative")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if c.Transcription.BackoffBaseSeconds < 0 {
		return errors.New("transcription.backoff_base_seconds must be >= 0")
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		return errors.New("transcription.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.workers":              c.Workflow.Workers,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.max_deliveries":       c.Workflow.MaxDeliveries,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
