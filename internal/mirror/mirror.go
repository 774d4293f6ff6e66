// Package mirror copies finished artifacts to remote storage.
package mirror

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	BackendS3   = "s3"
	BackendGCS  = "gcs"
	BackendSFTP = "sftp"
)

// Config selects the backend and carries its settings. Only the fields of the
// chosen backend are read.
type Config struct {
	Backend string
	// Prefix is prepended to every object key or remote path.
	Prefix string

	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string

	GCSBucket string
	// GCSCredentials is a service account JSON, raw or base64 encoded.
	GCSCredentials string

	SFTPHost       string
	SFTPPort       string
	SFTPUser       string
	SFTPPassword   string
	SFTPPrivateKey string
	// SFTPHostKey pins the server key. Without it any host key is accepted.
	SFTPHostKey string
}

// Mirror uploads artifacts to a single backend.
type Mirror struct {
	logger *slog.Logger
	cfg    Config
}

// New validates cfg. An empty backend returns a nil Mirror and no error.
func New(logger *slog.Logger, cfg Config) (*Mirror, error) {
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch cfg.Backend {
	case "":
		return nil, nil
	case BackendS3:
		if cfg.S3Bucket == "" || cfg.S3Region == "" {
			return nil, fmt.Errorf("s3 mirror needs bucket and region")
		}
	case BackendGCS:
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("gcs mirror needs a bucket")
		}
	case BackendSFTP:
		if cfg.SFTPHost == "" || cfg.SFTPUser == "" {
			return nil, fmt.Errorf("sftp mirror needs host and user")
		}
		if cfg.SFTPPassword == "" && cfg.SFTPPrivateKey == "" {
			return nil, fmt.Errorf("sftp mirror needs a password or private key")
		}
		if _, err := sftpHostKey(cfg); err != nil {
			return nil, fmt.Errorf("sftp mirror: %w", err)
		}
		if strings.TrimSpace(cfg.SFTPHostKey) == "" {
			logger.Warn("sftp mirror accepts any host key, set MIRROR_SFTP_HOST_KEY to pin it")
		}
	default:
		return nil, fmt.Errorf("unknown mirror backend: %s", cfg.Backend)
	}
	return &Mirror{logger: logger, cfg: cfg}, nil
}

// Name is the backend identifier used in logs and metrics.
func (m *Mirror) Name() string {
	return m.cfg.Backend
}

// Upload streams the file at localPath to the backend.
func (m *Mirror) Upload(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	key := objectKey(m.cfg.Prefix, filepath.Base(localPath))
	if err := m.write(ctx, key, f); err != nil {
		return err
	}
	m.logger.Info("artifact mirrored", "backend", m.cfg.Backend, "key", key)
	return nil
}

func (m *Mirror) write(ctx context.Context, key string, reader io.Reader) error {
	switch m.cfg.Backend {
	case BackendS3:
		if err := uploadS3(ctx, m.cfg, key, reader); err != nil {
			return fmt.Errorf("failed to upload to S3: %w", err)
		}
	case BackendGCS:
		if err := uploadGCS(ctx, m.cfg, key, reader); err != nil {
			return fmt.Errorf("failed to upload to GCS: %w", err)
		}
	case BackendSFTP:
		if err := uploadSFTP(ctx, m.cfg, key, reader); err != nil {
			return fmt.Errorf("failed to upload to SFTP: %w", err)
		}
	default:
		return fmt.Errorf("unknown mirror backend: %s", m.cfg.Backend)
	}
	return nil
}

func objectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
