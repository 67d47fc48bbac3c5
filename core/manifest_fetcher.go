package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/smarty/liftoff/contracts"
)

type HTTPDoer interface {
	Do(request *http.Request) (*http.Response, error)
}

type CredentialSource interface {
	Credential(ctx context.Context) (contracts.Credential, error)
}

const maxManifestBytes = 32 << 20

// ManifestFetcher obtains the manifest by direct download, falling back to
// a storage lookup that may need credentials.
type ManifestFetcher struct {
	client   HTTPDoer
	locator  *StorageLocator
	settings contracts.ConnectionSettings
	logger   *zap.Logger
}

func NewManifestFetcher(client HTTPDoer, locator *StorageLocator, settings contracts.ConnectionSettings, logger *zap.Logger) *ManifestFetcher {
	return &ManifestFetcher{
		client:   client,
		locator:  locator,
		settings: settings,
		logger:   logger,
	}
}

// Fetch returns nil when no strategy produced a valid manifest. That means the
// check could not run, not that the manifest is empty.
func (this *ManifestFetcher) Fetch(ctx context.Context) *contracts.Manifest {
	address, err := this.settings.ManifestURL()
	if err != nil {
		this.logger.Warn("manifest url could not be composed", zap.Error(err))
	} else if manifest, err := this.download(ctx, address, contracts.Credential{}); err == nil {
		return manifest
	} else {
		this.logger.Info("direct manifest download failed", zap.String("url", address), zap.Error(err))
	}
	if ctx.Err() != nil {
		return nil
	}
	return this.fetchThroughStorage(ctx)
}

func (this *ManifestFetcher) fetchThroughStorage(ctx context.Context) *contracts.Manifest {
	if this.locator == nil {
		return nil
	}
	remotePath := this.settings.ResolvedManifestPath()
	address, credential, err := this.locator.Locate(ctx, remotePath)
	if err != nil {
		this.logger.Warn("manifest storage lookup failed", zap.String("path", remotePath), zap.Error(err))
		return nil
	}
	for _, attempt := range []contracts.Credential{{}, credential} {
		manifest, err := this.download(ctx, address, attempt)
		if err == nil {
			return manifest
		}
		this.logger.Info("storage manifest download failed",
			zap.String("url", address), zap.Bool("authorized", !attempt.IsZero()), zap.Error(err))
	}
	return nil
}

func (this *ManifestFetcher) download(ctx context.Context, address string, credential contracts.Credential) (*contracts.Manifest, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Cache-Control", "no-cache")
	credential.Authorize(request)

	response, err := this.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer closeResource(response.Body)
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %s", response.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(response.Body, maxManifestBytes))
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimPrefix(bytes.TrimSpace(raw), []byte("\xef\xbb\xbf"))
	if looksLikeHTML(raw) {
		return nil, fmt.Errorf("%w: response is an html page", contracts.ErrManifestUnavailable)
	}
	return contracts.ParseManifest(raw)
}

func looksLikeHTML(raw []byte) bool {
	return len(raw) > 0 && raw[0] == '<'
}
