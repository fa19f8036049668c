package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	envTranscriptionAPIKey = "CLIPFORGE_TRANSCRIPTION_API_KEY"
	envDatabaseDSN         = "CLIPFORGE_DATABASE_DSN"
	envS3AccessKey         = "CLIPFORGE_S3_ACCESS_KEY"
	envS3SecretKey         = "CLIPFORGE_S3_SECRET_KEY"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	if err := c.normalizeObjectStore(); err != nil {
		return err
	}
	c.normalizeTranscoder()
	c.normalizeTranscription()
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = filepath.Join(c.Paths.DataDir, "work")
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDatabase() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "", "sqlite3":
		c.Database.Driver = DatabaseSQLite
	case "postgresql", "pgx":
		c.Database.Driver = DatabasePostgres
	}
	if value, ok := os.LookupEnv(envDatabaseDSN); ok && strings.TrimSpace(value) != "" {
		c.Database.DSN = value
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.Driver == DatabaseSQLite {
		if strings.TrimSpace(c.Database.Path) == "" {
			c.Database.Path = filepath.Join(c.Paths.DataDir, "clipforge.db")
		}
		var err error
		if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
			return fmt.Errorf("database.path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeObjectStore() error {
	c.ObjectStore.Backend = strings.ToLower(strings.TrimSpace(c.ObjectStore.Backend))
	switch c.ObjectStore.Backend {
	case "", "filesystem", "local":
		c.ObjectStore.Backend = ObjectStoreFS
	case "minio":
		c.ObjectStore.Backend = ObjectStoreS3
	}
	c.ObjectStore.Bucket = strings.TrimSpace(c.ObjectStore.Bucket)
	if c.ObjectStore.Bucket == "" {
		c.ObjectStore.Bucket = defaultBucket
	}
	c.ObjectStore.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.ObjectStore.PublicBaseURL), "/")
	if c.ObjectStore.PublicBaseURL == "" {
		c.ObjectStore.PublicBaseURL = defaultPublicBaseURL
	}
	c.ObjectStore.Endpoint = strings.TrimSpace(c.ObjectStore.Endpoint)
	if value, ok := os.LookupEnv(envS3AccessKey); ok && strings.TrimSpace(value) != "" {
		c.ObjectStore.AccessKey = value
	}
	if value, ok := os.LookupEnv(envS3SecretKey); ok && strings.TrimSpace(value) != "" {
		c.ObjectStore.SecretKey = value
	}
	c.ObjectStore.AccessKey = strings.TrimSpace(c.ObjectStore.AccessKey)
	c.ObjectStore.SecretKey = strings.TrimSpace(c.ObjectStore.SecretKey)
	if c.ObjectStore.Backend == ObjectStoreFS {
		if strings.TrimSpace(c.ObjectStore.Root) == "" {
			c.ObjectStore.Root = filepath.Join(c.Paths.DataDir, "objects")
		}
		var err error
		if c.ObjectStore.Root, err = expandPath(c.ObjectStore.Root); err != nil {
			return fmt.Errorf("object_store.root: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeTranscoder() {
	c.Transcoder.FFmpegBinary = strings.TrimSpace(c.Transcoder.FFmpegBinary)
	if c.Transcoder.FFmpegBinary == "" {
		c.Transcoder.FFmpegBinary = defaultFFmpegBinary
	}
	c.Transcoder.FFprobeBinary = strings.TrimSpace(c.Transcoder.FFprobeBinary)
	if c.Transcoder.FFprobeBinary == "" {
		c.Transcoder.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Transcoder.SilenceMinSeconds <= 0 {
		c.Transcoder.SilenceMinSeconds = defaultSilenceMinSeconds
	}
}

func (c *Config) normalizeTranscription() {
	if c.Transcription.APIKey == "" {
		if value, ok := os.LookupEnv(envTranscriptionAPIKey); ok {
			c.Transcription.APIKey = value
		}
	}
	c.Transcription.APIKey = strings.TrimSpace(c.Transcription.APIKey)
	c.Transcription.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transcription.BaseURL), "/")
	if c.Transcription.BaseURL == "" {
		c.Transcription.BaseURL = defaultTranscriptionBaseURL
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultTranscriptionModel
	}
	if c.Transcription.MaxAttempts <= 0 {
		c.Transcription.MaxAttempts = defaultTranscriptionMaxAttempts
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	if c.API.MaxUploadMB <= 0 {
		c.API.MaxUploadMB = defaultMaxUploadMB
	}
	origins := make([]string, 0, len(c.API.AllowedOrigins))
	for _, origin := range c.API.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.API.AllowedOrigins = origins
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
