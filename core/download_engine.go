package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/smartystreets/clock"
	"go.uber.org/zap"

	"github.com/smarty/liftoff/contracts"
)

const (
	maxDownloadAttempts      = 3
	downloadProgressInterval = 2 * time.Second
)

// DownloadEngine fetches one release file into a temp file and verifies it.
type DownloadEngine struct {
	primary       Transfer
	fallback      Transfer
	strategies    *HostStrategyTable
	integrity     contracts.IntegrityCheck
	locator       *StorageLocator
	tempDirectory string
	maxAttempts   int
	interval      time.Duration
	sleeper       *clock.Sleeper
	logger        *zap.Logger
}

func NewDownloadEngine(
	client HTTPDoer,
	locator *StorageLocator,
	strategies *HostStrategyTable,
	integrity contracts.IntegrityCheck,
	tempDirectory string,
	logger *zap.Logger,
) *DownloadEngine {
	single := NewStreamTransfer(client)
	return &DownloadEngine{
		primary:       NewChunkedTransfer(client, single),
		fallback:      single,
		strategies:    strategies,
		integrity:     integrity,
		locator:       locator,
		tempDirectory: tempDirectory,
		maxAttempts:   maxDownloadAttempts,
		interval:      downloadProgressInterval,
		logger:        logger,
	}
}

func (this *DownloadEngine) Download(ctx context.Context, request contracts.DownloadRequest) (result contracts.DownloadResult, err error) {
	policy := newBackOff(time.Second, 8*time.Second)
	for attempt := 1; attempt <= this.maxAttempts; attempt++ {
		result, err = this.attempt(ctx, request)
		result.Attempts = attempt
		if err == nil {
			this.logger.Info("download complete",
				zap.String("name", request.Name),
				zap.String("size", humanSize(result.Size)),
				zap.Int("attempts", attempt))
			return result, nil
		}
		if ctx.Err() != nil {
			return result, fmt.Errorf("%w: %s: %w", contracts.ErrDownloadFailed, request.Name, ctx.Err())
		}
		if errors.Is(err, contracts.ErrConfiguration) {
			return result, err
		}
		this.logger.Warn("download attempt failed",
			zap.String("name", request.Name),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == this.maxAttempts {
			break
		}
		if pause := sleep(ctx, this.sleeper, policy.NextBackOff()); pause != nil {
			return result, fmt.Errorf("%w: %s: %w", contracts.ErrDownloadFailed, request.Name, pause)
		}
	}
	return result, fmt.Errorf("%w: %s after %d attempts: %w", contracts.ErrDownloadFailed, request.Name, this.maxAttempts, err)
}

func (this *DownloadEngine) attempt(ctx context.Context, request contracts.DownloadRequest) (result contracts.DownloadResult, err error) {
	address, err := this.normalize(ctx, request.URL)
	if err != nil {
		return result, err
	}
	file, err := os.CreateTemp(this.tempDirectory, "liftoff-*"+contracts.ArchiveExtension)
	if err != nil {
		return result, err
	}
	kept := false
	defer func() {
		if !kept {
			closeResource(file)
			_ = os.Remove(file.Name())
		}
	}()

	primary := TransferRequest{URL: address, Strategy: this.strategies.Lookup(address)}
	if err = this.transfer(ctx, this.primary, primary, request, file); err != nil {
		if ctx.Err() != nil {
			return result, err
		}
		this.logger.Info("primary transfer failed, retrying with a plain request", zap.String("url", address), zap.Error(err))
		if err = rewind(file); err != nil {
			return result, err
		}
		if err = this.transfer(ctx, this.fallback, TransferRequest{URL: address}, request, file); err != nil {
			return result, err
		}
	}
	if err = file.Close(); err != nil {
		return result, err
	}
	err = this.integrity.Verify(contracts.DownloadedFile{
		Path:           file.Name(),
		ExpectedSHA256: request.ExpectedSHA256,
		ExpectedSize:   request.ExpectedSize,
	})
	if err != nil {
		return result, err
	}
	result.SHA256, result.Size, err = FileSHA256(file.Name())
	if err != nil {
		return result, err
	}
	result.Path = file.Name()
	kept = true
	return result, nil
}

func (this *DownloadEngine) transfer(ctx context.Context, transfer Transfer, request TransferRequest, download contracts.DownloadRequest, file *os.File) error {
	progress := newProgressCounter(download.ExpectedSize, this.interval, func(written, total string) {
		this.logger.Info("downloading", zap.String("name", download.Name), zap.String("written", written), zap.String("total", total))
	})
	defer closeResource(progress)
	request.Progress = progress
	_, err := transfer.Transfer(ctx, request, file)
	return err
}

// normalize forces share links to download and resolves bare storage paths.
func (this *DownloadEngine) normalize(ctx context.Context, address string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(address))
	if err != nil {
		return "", fmt.Errorf("%w: %s", contracts.ErrConfiguration, err)
	}
	if parsed.Scheme == "" && parsed.Host == "" {
		if this.locator == nil {
			return "", fmt.Errorf("%w: no storage to resolve %s", contracts.ErrConfiguration, address)
		}
		resolved, _, err := this.locator.Locate(ctx, "/"+strings.TrimLeft(parsed.Path, "/"))
		return resolved, err
	}
	if strings.HasPrefix(parsed.Path, "/s/") && !parsed.Query().Has("download") {
		query := parsed.Query()
		query.Set("download", "1")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func rewind(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	_, err := file.Seek(0, io.SeekStart)
	return err
}
