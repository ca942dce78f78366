package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aouyang1/quoteframe/config"
	"github.com/aouyang1/quoteframe/slides"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrBackupDisabled = errors.New("remote backup is not configured, set QF_S3_BUCKET")

const backupTimeout = 5 * time.Minute

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

// BackupStore is the part of the slide store a backup reads and restores.
type BackupStore interface {
	Export() slides.Backup
	Import(b slides.Backup) error
}

// BackupManager keeps a copy of the interchange file in S3.
type BackupManager struct {
	uploader   uploader
	downloader downloader

	bucket   string
	key      string
	interval time.Duration

	store BackupStore

	mu         sync.Mutex
	lastPushed []byte
}

func NewBackupManager(ctx context.Context, cfg config.BackupConfig, st BackupStore) (*BackupManager, error) {
	if !cfg.Enabled() {
		return nil, ErrBackupDisabled
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	// Load the Shared AWS Configuration (~/.aws/config)
	ctxCfg, cancelCfg := context.WithTimeout(ctx, 3*time.Second)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctxCfg, opts...)
	cancelCfg()
	if err != nil {
		return nil, fmt.Errorf("unable to load aws config, %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	return newBackupManager(
		manager.NewUploader(s3Client),
		manager.NewDownloader(s3Client),
		cfg.Bucket, cfg.Key, cfg.Interval.Duration, st,
	), nil
}

func newBackupManager(up uploader, down downloader, bucket, key string, interval time.Duration, st BackupStore) *BackupManager {
	return &BackupManager{
		uploader:   up,
		downloader: down,
		bucket:     bucket,
		key:        key,
		interval:   interval,
		store:      st,
	}
}

// Push uploads the current export.
func (b *BackupManager) Push(ctx context.Context) error {
	data, err := b.store.Export().Marshal()
	if err != nil {
		return fmt.Errorf("unable to encode backup, %w", err)
	}
	return b.push(ctx, data)
}

func (b *BackupManager) push(ctx context.Context, data []byte) error {
	if _, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("unable to upload backup to s3, %s, %w", b.key, err)
	}

	b.mu.Lock()
	b.lastPushed = data
	b.mu.Unlock()

	slog.Info("pushed backup", "bucket", b.bucket, "key", b.key, "bytes", len(data))
	return nil
}

// Restore downloads the remote file and imports it through the store.
func (b *BackupManager) Restore(ctx context.Context) error {
	buf := manager.NewWriteAtBuffer(nil)
	if _, err := b.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	}); err != nil {
		return fmt.Errorf("unable to download backup from s3, %s, %w", b.key, err)
	}

	backup, err := slides.ParseBackup(buf.Bytes())
	if err != nil {
		return err
	}
	if err := b.store.Import(backup); err != nil {
		return err
	}

	b.mu.Lock()
	b.lastPushed = buf.Bytes()
	b.mu.Unlock()

	slog.Info("restored backup", "bucket", b.bucket, "key", b.key, "slides", len(backup.Slides))
	return nil
}

// pushIfChanged skips the upload when the export matches the last one sent.
func (b *BackupManager) pushIfChanged(ctx context.Context) (bool, error) {
	data, err := b.store.Export().Marshal()
	if err != nil {
		return false, fmt.Errorf("unable to encode backup, %w", err)
	}

	b.mu.Lock()
	unchanged := bytes.Equal(data, b.lastPushed)
	b.mu.Unlock()
	if unchanged {
		return false, nil
	}
	return true, b.push(ctx, data)
}

// Run pushes on every interval tick until ctx is done.
func (b *BackupManager) Run(ctx context.Context) {
	if b.interval <= 0 {
		slog.Info("periodic backup disabled")
		return
	}
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pushCtx, cancel := context.WithTimeout(ctx, backupTimeout)
			if _, err := b.pushIfChanged(pushCtx); err != nil {
				slog.Warn("error while pushing backup", "error", err)
			}
			cancel()
		}
	}
}
