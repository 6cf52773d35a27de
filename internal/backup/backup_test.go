package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/allowance/internal/database"
	"github.com/dukerupert/allowance/internal/model"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func setupManager(t *testing.T, client s3Client) *Manager {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := newManager(db, client, "ledger-backups", "snapshot-pass", logger)
	m.now = func() time.Time { return time.Date(2024, time.May, 4, 7, 8, 9, 0, time.UTC) }
	return m
}

func TestNewManagerDisabledWithoutConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	m := NewManager(Config{}, nil, logger)
	assert.False(t, m.Enabled())

	m = NewManager(Config{S3: S3Config{Bucket: "b", AccessKey: "k", SecretKey: "s"}}, nil, logger)
	assert.False(t, m.Enabled(), "a passphrase is required")

	m = NewManager(Config{
		S3:         S3Config{Bucket: "b", AccessKey: "k", SecretKey: "s", Region: "us-east-1"},
		Passphrase: "p",
	}, nil, logger)
	assert.True(t, m.Enabled())
}

func TestSnapshotDisabled(t *testing.T) {
	m := setupManager(t, nil)

	_, err := m.Snapshot(context.Background(), "manual")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = m.Fetch(context.Background(), 1)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestSnapshotRoundTrip(t *testing.T) {
	client := newMockS3()
	m := setupManager(t, client)
	ctx := context.Background()

	record, err := m.Snapshot(ctx, "Before Reset!")
	require.NoError(t, err)
	assert.Equal(t, model.BackupStatusCompleted, record.Status)
	assert.Equal(t, "allowance-20240504T070809Z-before-reset.db.enc", record.Filename)
	assert.Equal(t, "snapshots/"+record.Filename, record.S3Key)
	assert.Equal(t, "Before Reset!", record.Reason)
	assert.NotNil(t, record.CompletedAt)

	stored, ok := client.objects[record.S3Key]
	require.True(t, ok, "object not uploaded")
	assert.Equal(t, int64(len(stored)), record.SizeBytes)
	assert.False(t, bytes.HasPrefix(stored, []byte("SQLite format 3")), "upload must be encrypted")

	plain, err := m.Fetch(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(plain, []byte("SQLite format 3\x00")))

	list, err := m.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, record.ID, list[0].ID)
}

func TestSnapshotUploadFailure(t *testing.T) {
	client := newMockS3()
	client.putErr = errors.New("bucket unavailable")
	m := setupManager(t, client)
	ctx := context.Background()

	_, err := m.Snapshot(ctx, "manual")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")

	list, err := m.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.BackupStatusFailed, list[0].Status)
	assert.Contains(t, list[0].ErrorMessage, "bucket unavailable")

	_, err = m.Fetch(ctx, list[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestObjectNameFallsBackToManual(t *testing.T) {
	at := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "allowance-20240102T030405Z-manual.db.enc", objectName(at, "  !!  "))
}
