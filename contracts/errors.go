package contracts

import "errors"

var (
	RetryErr               = errors.New("retry")
	ErrPackaging           = errors.New("packaging failed")
	ErrSchemaMismatch      = errors.New("manifest schema mismatch")
	ErrManifestUnavailable = errors.New("manifest unavailable")
	ErrManifestConflict    = errors.New("manifest changed during publish")
	ErrDownloadFailed      = errors.New("download failed")
	ErrIntegrity           = errors.New("integrity check failed")
	ErrConfiguration       = errors.New("configuration error")
)
