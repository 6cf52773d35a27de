// Package backup takes encrypted snapshots of the ledger database and stores
// them in S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/store"
)

// ErrDisabled is returned when storage or the snapshot passphrase is not
// configured.
var ErrDisabled = errors.New("backups are not configured")

// ErrNotFound is returned for an unknown snapshot id.
var ErrNotFound = errors.New("backup not found")

const keyPrefix = "snapshots/"

// s3Client is the subset of the S3 API the manager uses.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Config struct {
	S3         S3Config
	Passphrase string
}

// Manager takes one snapshot at a time and records each attempt in the
// backups table.
type Manager struct {
	mu         sync.Mutex
	db         *sql.DB
	backups    *store.BackupStore
	client     s3Client
	bucket     string
	passphrase string
	logger     *slog.Logger
	now        func() time.Time
}

// NewManager returns a manager. It is disabled unless both the S3 settings
// and the passphrase are present.
func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	var client s3Client
	if cfg.S3.complete() && cfg.Passphrase != "" {
		client = newS3Client(cfg.S3)
	}
	return newManager(db, client, cfg.S3.Bucket, cfg.Passphrase, logger)
}

func newManager(db *sql.DB, client s3Client, bucket, passphrase string, logger *slog.Logger) *Manager {
	return &Manager{
		db:         db,
		backups:    store.NewBackupStore(db),
		client:     client,
		bucket:     bucket,
		passphrase: passphrase,
		logger:     logger,
		now:        time.Now,
	}
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (m *Manager) Enabled() bool {
	return m.client != nil
}

var unsafeReason = regexp.MustCompile(`[^a-z0-9-]+`)

func objectName(at time.Time, reason string) string {
	slug := strings.Trim(unsafeReason.ReplaceAllString(strings.ToLower(reason), "-"), "-")
	if slug == "" {
		slug = "manual"
	}
	return fmt.Sprintf("allowance-%s-%s.db.enc", at.UTC().Format("20060102T150405Z"), slug)
}

// Snapshot copies the live database with VACUUM INTO, encrypts the copy and
// uploads it. The returned record is completed; on failure the record is
// kept with status failed.
func (m *Manager) Snapshot(ctx context.Context, reason string) (*model.Backup, error) {
	if !m.Enabled() {
		return nil, ErrDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	at := m.now()
	filename := objectName(at, reason)
	record, err := m.backups.Create(ctx, filename, keyPrefix+filename, reason, at)
	if err != nil {
		return nil, err
	}

	size, err := m.upload(ctx, record)
	if err != nil {
		if markErr := m.backups.MarkFailed(ctx, record.ID, err.Error()); markErr != nil {
			m.logger.ErrorContext(ctx, "mark backup failed", "backup_id", record.ID, "error", markErr)
		}
		m.logger.ErrorContext(ctx, "snapshot failed", "backup_id", record.ID, "reason", reason, "error", err)
		return nil, err
	}

	completed, err := m.backups.MarkCompleted(ctx, record.ID, size, m.now())
	if err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "snapshot uploaded", "backup_id", record.ID, "key", record.S3Key, "size_bytes", size)
	return completed, nil
}

func (m *Manager) upload(ctx context.Context, record *model.Backup) (int64, error) {
	dir, err := os.MkdirTemp("", "allowance-snapshot-")
	if err != nil {
		return 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	copyPath := filepath.Join(dir, "allowance.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, copyPath); err != nil {
		return 0, fmt.Errorf("copy database: %w", err)
	}

	plaintext, err := os.ReadFile(copyPath)
	if err != nil {
		return 0, fmt.Errorf("read database copy: %w", err)
	}
	sealed, err := Seal(plaintext, m.passphrase)
	if err != nil {
		return 0, fmt.Errorf("encrypt: %w", err)
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(record.S3Key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return 0, fmt.Errorf("upload to s3: %w", err)
	}
	return int64(len(sealed)), nil
}

// List returns the most recent snapshot records, newest first.
func (m *Manager) List(ctx context.Context, limit int) ([]model.Backup, error) {
	if limit <= 0 {
		limit = 50
	}
	return m.backups.List(ctx, limit)
}

// Fetch downloads a completed snapshot and returns the decrypted SQLite file.
func (m *Manager) Fetch(ctx context.Context, id int64) ([]byte, error) {
	if !m.Enabled() {
		return nil, ErrDisabled
	}

	record, err := m.backups.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil || record.Status != model.BackupStatusCompleted {
		return nil, ErrNotFound
	}

	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Open(sealed, m.passphrase)
}
