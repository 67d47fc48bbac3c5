package core

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/smartystreets/clock"
	"go.uber.org/zap"

	"github.com/smarty/liftoff/contracts"
)

// RetryGateway retries gateway calls that fail with contracts.RetryErr.
type RetryGateway struct {
	contracts.DownloadURLResolver
	inner    contracts.StorageGateway
	maxRetry int
	sleeper  *clock.Sleeper
	logger   *zap.Logger
}

func NewRetryGateway(inner contracts.StorageGateway, maxRetry int, logger *zap.Logger) *RetryGateway {
	return &RetryGateway{
		DownloadURLResolver: inner,
		inner:               inner,
		maxRetry:            maxRetry,
		logger:              logger,
	}
}

func (this *RetryGateway) Authenticate(ctx context.Context, username, password string) (credential contracts.Credential, err error) {
	err = this.retry(ctx, "authenticate", func() (err error) {
		credential, err = this.inner.Authenticate(ctx, username, password)
		return err
	})
	return credential, err
}

func (this *RetryGateway) Upload(ctx context.Context, credential contracts.Credential, request contracts.UploadRequest) error {
	return this.retry(ctx, "upload", func() error {
		if request.Body != nil {
			if _, err := request.Body.Seek(0, io.SeekStart); err != nil {
				return err
			}
		}
		return this.inner.Upload(ctx, credential, request)
	})
}

func (this *RetryGateway) GetMetadata(ctx context.Context, credential contracts.Credential, remotePath string) (metadata contracts.StorageMetadata, err error) {
	err = this.retry(ctx, "metadata", func() (err error) {
		metadata, err = this.inner.GetMetadata(ctx, credential, remotePath)
		return err
	})
	return metadata, err
}

func (this *RetryGateway) Mkdir(ctx context.Context, credential contracts.Credential, remotePath string) error {
	return this.retry(ctx, "mkdir", func() error {
		return this.inner.Mkdir(ctx, credential, remotePath)
	})
}

func (this *RetryGateway) retry(ctx context.Context, operation string, action func() error) (err error) {
	policy := newBackOff(time.Second*3, time.Second*30)
	for x := 0; x <= this.maxRetry; x++ {
		err = action()
		if err == nil {
			return nil
		}
		if !errors.Is(err, contracts.RetryErr) {
			return err
		}
		if x < this.maxRetry {
			delay := policy.NextBackOff()
			this.logger.Warn("storage call failed, retry imminent",
				zap.String("operation", operation), zap.Duration("delay", delay), zap.Error(err))
			if sleepErr := sleep(ctx, this.sleeper, delay); sleepErr != nil {
				return sleepErr
			}
		}
	}
	return err
}
