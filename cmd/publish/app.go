package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smarty/liftoff/contracts"
	"github.com/smarty/liftoff/core"
	"github.com/smarty/liftoff/shell"
)

const (
	defaultSettingsFileName = "publish.settings.json"
	maxGatewayRetry         = 4
	compressionLevel        = 6
	publishLockWait         = 2 * time.Minute
)

type PublishOptions struct {
	Version            string
	ArtifactsDirectory string
	SettingsPath       string
	Notes              string
	LogLevel           string
}

type PublishApp struct {
	options PublishOptions
	logger  *zap.Logger
}

func NewPublishApp(options PublishOptions) *PublishApp {
	return &PublishApp{options: options, logger: shell.NewLogger(options.LogLevel, "")}
}

func (this *PublishApp) Run(ctx context.Context) (err error) {
	defer func() { _ = this.logger.Sync() }()

	loader := core.NewSettingsLoader(shell.NewDiskFileSystem(""), shell.NewEnvironment())
	settings, err := loader.LoadPublishSettings(this.settingsPath())
	if err != nil {
		return err
	}

	root, err := filepath.Abs(this.options.ArtifactsDirectory)
	if err != nil {
		return err
	}
	artifacts, err := core.NewArtifactDiscovery(shell.NewDiskFileSystem(root)).Discover()
	if err != nil {
		return fmt.Errorf("%w: %s", contracts.ErrPackaging, err)
	}

	temp, err := os.MkdirTemp("", "liftoff-publish-")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(temp) }()

	report, err := this.publisher(settings, temp).Publish(ctx, core.PublishRequest{
		Version:   contracts.Version(strings.TrimSpace(this.options.Version)),
		Root:      root,
		Artifacts: artifacts,
		Notes:     this.options.Notes,
	})
	if err != nil {
		return err
	}
	for _, file := range report.Files {
		this.logger.Info("published",
			zap.String("project", file.Project),
			zap.String("platform", file.Platform.String()),
			zap.String("remote", file.RemotePath))
	}
	this.logger.Info("manifest updated",
		zap.String("path", report.ManifestPath),
		zap.Int64("revision", report.Revision))
	return nil
}

// settingsPath is the --settings value, else publish.settings.json from the
// working directory when it exists. Blank means environment only.
func (this *PublishApp) settingsPath() string {
	if this.options.SettingsPath != "" {
		return this.options.SettingsPath
	}
	if _, err := os.Stat(defaultSettingsFileName); err == nil {
		return defaultSettingsFileName
	}
	return ""
}

func (this *PublishApp) publisher(settings contracts.PublishSettings, temp string) *core.Publisher {
	client := shell.NewHTTPClient()
	gateway := core.NewRetryGateway(shell.NewFileStoreGateway(client, settings.BaseURL, this.logger), maxGatewayRetry, this.logger)
	credentials := core.NewCredentialCache(gateway, settings.Username, settings.Password)
	locator := core.NewStorageLocator(gateway, credentials, settings.BaseURL)
	manifests := core.NewManifestFetcher(client, locator, settings.Connection(), this.logger)
	packager := core.NewArtifactPackager(temp, newDiskFileSystem, newZipWriter, this.logger)
	locker := shell.NewFileLock(filepath.Join(os.TempDir(), "liftoff-publish.lock"), publishLockWait)
	return core.NewPublisher(packager, gateway, credentials, manifests, locker, settings, this.logger)
}

func newDiskFileSystem(root string) core.DirectoryPackageBuilderFileSystem {
	return shell.NewDiskFileSystem(root)
}

func newZipWriter(writer io.Writer) contracts.ArchiveWriter {
	return shell.NewZipArchiveWriter(writer, compressionLevel)
}
