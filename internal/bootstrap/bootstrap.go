// Package bootstrap builds the shared backend/config plumbing the three
// cmd/corefs-* binaries need, so mount/vkey/stat agree on how a bucket
// config turns into a live *s3.Backend.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/s3fuse/corefs/internal/config"
	"github.com/s3fuse/corefs/internal/crypto"
	"github.com/s3fuse/corefs/internal/storage/s3"
	"github.com/s3fuse/corefs/pkg/utils"
)

// LoadConfig reads path (if non-empty) over the compiled-in defaults, then
// layers environment variable overrides on top, matching the precedence
// order spec.md §6 documents: defaults < file < environment.
func LoadConfig(path string) (*config.Configuration, error) {
	cfg := config.NewDefault()
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, fmt.Errorf("bootstrap: load config: %w", err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("bootstrap: apply env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bootstrap: invalid config: %w", err)
	}
	return cfg, nil
}

// BuildBackend constructs the S3 backend named by cfg.Bucket. Only the S3
// service is wired; a GCS bucket config returns an error naming the
// unimplemented service rather than silently falling back to S3.
func BuildBackend(ctx context.Context, cfg *config.Configuration) (*s3.Backend, error) {
	if cfg.Bucket.Name == "" {
		return nil, fmt.Errorf("bootstrap: bucket.name is required")
	}
	switch cfg.Bucket.Service {
	case "", "s3":
		s3cfg := s3.NewDefaultConfig()
		s3cfg.Region = cfg.Bucket.Region
		s3cfg.Endpoint = cfg.Bucket.Endpoint
		s3cfg.ForcePathStyle = cfg.Bucket.ForcePathStyle
		s3cfg.DisableSSL = !cfg.Bucket.UseSSL
		s3cfg.AccessKeyID = cfg.Bucket.AccessKeyID
		s3cfg.SecretAccessKey = cfg.Bucket.SecretAccessKey
		s3cfg.SessionToken = cfg.Bucket.SessionToken
		s3cfg.MultipartThreshold = 32 * 1024 * 1024
		s3cfg.MultipartChunkSize = 8 * 1024 * 1024
		s3cfg.MultipartConcurrency = cfg.Performance.MaxConcurrency
		if s3cfg.MultipartConcurrency <= 0 {
			s3cfg.MultipartConcurrency = 8
		}
		return s3.NewBackend(ctx, cfg.Bucket.Name, s3cfg)
	default:
		return nil, fmt.Errorf("bootstrap: unsupported bucket service %q", cfg.Bucket.Service)
	}
}

// NewLogger builds the structured logger cmd/corefs-mount logs through,
// configured from cfg.Global.LogLevel/LogFile.
func NewLogger(cfg *config.Configuration, component string) (*utils.StructuredLogger, error) {
	level, err := utils.ParseLogLevel(cfg.Global.LogLevel)
	if err != nil {
		level = utils.INFO
	}

	loggerCfg := utils.DefaultStructuredLoggerConfig()
	loggerCfg.Level = level
	if cfg.Global.LogFile != "" {
		f, err := os.OpenFile(cfg.Global.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: open log file: %w", err)
		}
		loggerCfg.Output = f
	}

	logger, err := utils.NewStructuredLogger(loggerCfg)
	if err != nil {
		return nil, err
	}
	return logger.WithComponent(component), nil
}

// ObjectStoreAdapter adapts *s3.Backend to crypto.ObjectStore, so
// corefs-mount and corefs-vkey can share one VolumeKeyManager wiring
// instead of each hand-rolling their own.
type ObjectStoreAdapter struct {
	Backend *s3.Backend
}

func NewObjectStoreAdapter(backend *s3.Backend) *ObjectStoreAdapter {
	return &ObjectStoreAdapter{Backend: backend}
}

func (a *ObjectStoreAdapter) GetObject(ctx context.Context, key string) ([]byte, string, error) {
	return a.Backend.GetObjectWithETag(ctx, key)
}

func (a *ObjectStoreAdapter) PutObject(ctx context.Context, key string, data []byte) (string, error) {
	return a.Backend.PutObjectWithETag(ctx, key, data)
}

func (a *ObjectStoreAdapter) CopyObjectIfMatch(ctx context.Context, srcKey, dstKey, matchETag string) error {
	return a.Backend.CopyObjectIfMatch(ctx, srcKey, dstKey, matchETag)
}

func (a *ObjectStoreAdapter) DeleteObject(ctx context.Context, key string) error {
	return a.Backend.DeleteObject(ctx, key)
}

// DeriveWrapKey produces the key that wraps a bucket's volume data key,
// from a local key file if one is configured, otherwise from passphrase
// via PBKDF2. Returns an error if neither is available.
func DeriveWrapKey(cfg *config.Configuration, passphrase string) ([]byte, error) {
	if cfg.Security.Encryption.VolumeKeyFile != "" {
		return crypto.ReadPrivateFile(cfg.Security.Encryption.VolumeKeyFile)
	}
	if passphrase == "" {
		return nil, fmt.Errorf("bootstrap: no passphrase given and no volume_key_file configured")
	}
	return crypto.DeriveVolumeWrapKey(passphrase, cfg.Bucket.Name), nil
}

// NewVolumeKeyManager builds a crypto.VolumeKeyManager for cfg's bucket,
// wrapped under wrapKey, defaulting the key object's path when unset.
func NewVolumeKeyManager(backend *s3.Backend, cfg *config.Configuration, wrapKey []byte) *crypto.VolumeKeyManager {
	objectID := cfg.Security.Encryption.VolumeKeyID
	if objectID == "" {
		objectID = ".s3fuse/volume_key"
	}
	return crypto.NewVolumeKeyManager(NewObjectStoreAdapter(backend), objectID, wrapKey)
}
